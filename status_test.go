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

package nrflite

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		str     string
		status  Status
		pipe    int
		txOK    bool
		failed  bool
		rxReady bool
		txFull  bool
	}{
		{name: "reset", status: 0x0E, pipe: PipeRxEmpty, str: "RxDR- TxDS- MaxRT- TxFull- RxPipe:7"},
		{name: "data waiting", status: 0x42, pipe: PipeData, rxReady: true, str: "RxDR+ TxDS- MaxRT- TxFull- RxPipe:1"},
		{name: "ack payload", status: 0x60, pipe: PipeAck, txOK: true, rxReady: true, str: "RxDR+ TxDS+ MaxRT- TxFull- RxPipe:0"},
		{name: "failed and full", status: 0x1F, pipe: PipeRxEmpty, failed: true, txFull: true, str: "RxDR- TxDS- MaxRT+ TxFull+ RxPipe:7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.pipe, tt.status.RxPipe())
			assert.Equal(t, tt.txOK, tt.status.TxOK())
			assert.Equal(t, tt.failed, tt.status.TxFailed())
			assert.Equal(t, tt.rxReady, tt.status.RxReady())
			assert.Equal(t, tt.txFull, tt.status.TxFull())
			assert.Equal(t, tt.str, tt.status.String())
		})
	}
}

func TestFIFOStatus(t *testing.T) {
	t.Parallel()

	empty := FIFOStatus(0x11)
	assert.True(t, empty.TxEmpty())
	assert.True(t, empty.RxEmpty())
	assert.False(t, empty.TxFull())
	assert.False(t, empty.RxFull())
	assert.Equal(t, "TxReuse- TxFull- TxEmpty+ RxFull- RxEmpty+", empty.String())

	full := FIFOStatus(0x22)
	assert.True(t, full.TxFull())
	assert.True(t, full.RxFull())
	assert.Equal(t, "TxReuse- TxFull+ TxEmpty- RxFull+ RxEmpty-", full.String())
}
