// go-nrflite
// Copyright (c) 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-nrflite.
//
// go-nrflite is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-nrflite is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-nrflite; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

package testing

import (
	"io"
	"math/rand/v2"
)

// JitterConfig configures JitteryPort.
type JitterConfig struct {
	// Noise is delivered once, ahead of the first byte from the backend.
	Noise []byte
	// Seed makes fragmentation reproducible. Zero picks a random seed.
	Seed uint64
	// MaxFragment caps the bytes returned by one Read. Zero disables
	// fragmentation.
	MaxFragment int
	// IdleEvery makes every n-th Read return (0, nil) like a port read
	// timeout. Zero disables it.
	IdleEvery int
}

// JitteryPort wraps a serial backend the way a USB-UART bridge behaves:
// reads come back fragmented, some reads time out empty, and line noise can
// precede the first frame. Writes pass through unchanged.
type JitteryPort struct {
	backend io.ReadWriter
	rng     *rand.Rand
	pending []byte
	config  JitterConfig
	reads   int
}

// NewJitteryPort wraps backend.
func NewJitteryPort(backend io.ReadWriter, config JitterConfig) *JitteryPort {
	seed := config.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &JitteryPort{
		backend: backend,
		config:  config,
		rng:     rand.New(rand.NewPCG(seed, seed^0x6E72666C)), //nolint:gosec // test data
		pending: append([]byte(nil), config.Noise...),
	}
}

// Write passes data to the backend.
func (j *JitteryPort) Write(data []byte) (int, error) {
	return j.backend.Write(data) //nolint:wrapcheck // pass-through
}

// Read returns buffered backend data in random fragments.
func (j *JitteryPort) Read(buf []byte) (int, error) {
	j.reads++
	if j.config.IdleEvery > 0 && j.reads%j.config.IdleEvery == 0 {
		return 0, nil
	}

	if len(j.pending) == 0 {
		var chunk [256]byte
		n, err := j.backend.Read(chunk[:])
		if err != nil || n == 0 {
			return 0, err //nolint:wrapcheck // pass-through
		}
		j.pending = append(j.pending, chunk[:n]...)
	}

	n := min(len(buf), len(j.pending))
	if j.config.MaxFragment > 0 && n > 1 {
		n = 1 + j.rng.IntN(min(n, j.config.MaxFragment))
	}
	copy(buf, j.pending[:n])
	j.pending = j.pending[n:]
	return n, nil
}
