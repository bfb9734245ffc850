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

// Events are the interrupt conditions decoded from one STATUS read.
type Events struct {
	TxOK     bool // packet sent, and acknowledged if that was requested
	TxFailed bool // retries exhausted
	RxReady  bool // packet received
}

// Any reports whether any condition is set.
func (e Events) Any() bool {
	return e.TxOK || e.TxFailed || e.RxReady
}

func (e Events) mask() byte {
	var m byte
	if e.TxOK {
		m |= statusTxDS
	}
	if e.TxFailed {
		m |= statusMaxRT
	}
	if e.RxReady {
		m |= statusRxDR
	}
	return m
}

// WhatHappened reports what caused the radio to raise its IRQ line. Unless
// clearing is disabled, the reported flags are cleared in the radio.
func (d *Device) WhatHappened() (Events, error) {
	status, err := d.readStatus()
	if err != nil {
		return Events{}, err
	}

	ev := Events{
		TxOK:     status.TxOK(),
		TxFailed: status.TxFailed(),
		RxReady:  status.RxReady(),
	}

	if d.clearEvents && ev.Any() {
		if err := d.clearFlags(ev.mask()); err != nil {
			return ev, err
		}
	}
	return ev, nil
}

// SetEventClearing controls whether WhatHappened clears the flags it
// reports. It is on by default.
func (d *Device) SetEventClearing(enabled bool) {
	d.clearEvents = enabled
}

// suppressEventClearing turns flag clearing off while an engine polls STATUS
// itself, and returns a func that restores the previous setting.
func (d *Device) suppressEventClearing() func() {
	prev := d.clearEvents
	d.clearEvents = false
	return func() { d.clearEvents = prev }
}
