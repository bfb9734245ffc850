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
	"errors"
	"fmt"

	"periph.io/x/conn/v3/gpio"
)

// ErrTransportClosed is returned by a RadioTransport after Close.
var ErrTransportClosed = errors.New("simulator transport closed")

// RadioTransport connects a driver to a VirtualRadio. It satisfies the
// nrflite Transport interface.
type RadioTransport struct {
	radio    *VirtualRadio
	failures map[byte]error
	budget   map[byte]int
	shared   bool
	closed   bool
}

// NewRadioTransport creates a transport with a dedicated enable line. Pass
// radio.Enable() to the driver as its enable pin.
func NewRadioTransport(radio *VirtualRadio) *RadioTransport {
	return &RadioTransport{radio: radio, failures: make(map[byte]error), budget: make(map[byte]int)}
}

// NewSharedPinTransport creates a transport whose select line is also the
// radio's enable line, like a board with CE tied to CSN. The enable line
// drops for every transaction and rises again at its end.
func NewSharedPinTransport(radio *VirtualRadio) *RadioTransport {
	t := NewRadioTransport(radio)
	t.shared = true
	return t
}

// Transfer implements nrflite.Transport.
func (t *RadioTransport) Transfer(cmd byte, buf []byte) error {
	a := t.radio.air
	a.mu.Lock()
	defer a.mu.Unlock()

	if t.closed {
		return ErrTransportClosed
	}
	if err, ok := t.failures[cmd]; ok {
		if n, limited := t.budget[cmd]; limited {
			if n <= 1 {
				delete(t.failures, cmd)
				delete(t.budget, cmd)
			} else {
				t.budget[cmd] = n - 1
			}
		}
		return fmt.Errorf("simulated failure for 0x%02X: %w", cmd, err)
	}

	if t.shared {
		t.radio.setEnable(gpio.Low)
	}
	t.radio.exchange(cmd, buf)
	if t.shared {
		// CE held high in transmit mode empties the queue.
		t.radio.setEnable(gpio.High)
		t.radio.transmit(-1)
	}
	return nil
}

// SelectPin implements nrflite.SelectLine. It is nil unless the select line
// is shared with the enable line.
func (t *RadioTransport) SelectPin() gpio.PinIO {
	if !t.shared {
		return nil
	}
	return t.radio.enable
}

// FailCommand makes every transaction with cmd fail with err.
func (t *RadioTransport) FailCommand(cmd byte, err error) {
	t.radio.air.mu.Lock()
	t.failures[cmd] = err
	delete(t.budget, cmd)
	t.radio.air.mu.Unlock()
}

// FailCommandTimes makes the next n transactions with cmd fail with err.
func (t *RadioTransport) FailCommandTimes(cmd byte, err error, n int) {
	t.radio.air.mu.Lock()
	t.failures[cmd] = err
	t.budget[cmd] = n
	t.radio.air.mu.Unlock()
}

// Close implements nrflite.Transport.
func (t *RadioTransport) Close() error {
	t.radio.air.mu.Lock()
	t.closed = true
	t.radio.air.mu.Unlock()
	return nil
}
