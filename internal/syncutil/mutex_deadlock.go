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

//go:build deadlock

package syncutil

import (
	"os"
	"time"

	deadlock "github.com/sasha-s/go-deadlock"
)

// A radio transaction takes microseconds; anything holding a bus lock for
// seconds is stuck. NRFLITE_DEADLOCK_TIMEOUT overrides the limit.
func init() {
	deadlock.Opts.DeadlockTimeout = 5 * time.Second
	if v := os.Getenv("NRFLITE_DEADLOCK_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			deadlock.Opts.DeadlockTimeout = d
		}
	}
}

// Mutex serialises bus transactions.
type Mutex struct {
	deadlock.Mutex
}

// RWMutex guards handler registration.
type RWMutex struct {
	deadlock.RWMutex
}

// DeadlockDetection reports whether lock-order checking is compiled in.
func DeadlockDetection() bool { return true }
