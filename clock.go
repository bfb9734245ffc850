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

import "time"

// Clock supplies time to the driver. Engines sleep through it for settle
// delays and poll intervals, so tests can substitute a fake.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// spinThreshold is the longest delay served by busy-waiting instead of the
// scheduler, which cannot wake a goroutine with microsecond accuracy.
const spinThreshold = time.Millisecond

// SystemClock is the real-time Clock.
type SystemClock struct{}

// Now implements Clock
func (SystemClock) Now() time.Time { return time.Now() }

// Sleep implements Clock. Delays under a millisecond spin.
func (SystemClock) Sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	if d >= spinThreshold {
		time.Sleep(d)
		return
	}
	spin(d)
}
