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
	"errors"
	"sync"

	"periph.io/x/conn/v3/gpio"
)

// Transport exchanges bytes with an nRF24L01 radio.
// This can be implemented by hardware SPI, a bit-banged two-wire bus, or a
// serial bridge.
type Transport interface {
	// Transfer clocks cmd followed by buf out to the radio as one
	// transaction. Every byte is full duplex: buf is overwritten with the
	// bytes clocked in while it was sent.
	Transfer(cmd byte, buf []byte) error

	// Close releases the underlying bus
	Close() error
}

// Line is the part of a GPIO pin the driver needs to drive the radio's
// enable (CE) line. periph.io gpio.PinIO satisfies it.
type Line interface {
	Out(l gpio.Level) error
	Read() gpio.Level
}

// SelectLine is implemented by transports that drive the radio's select
// (CSN) line from a GPIO. When the same pin is also used as the enable line
// the device switches to shared-pin behaviour. SelectPin returns nil when
// the bus drives CSN itself.
type SelectLine interface {
	SelectPin() gpio.PinIO
}

// TransportType names a transport for logs and errors
type TransportType string

const (
	// TransportSPI represents a hardware SPI bus.
	TransportSPI TransportType = "spi"
	// TransportTwoWire represents the bit-banged two-wire bus.
	TransportTwoWire TransportType = "twowire"
	// TransportUART represents a serial bridge.
	TransportUART TransportType = "uart"
	// TransportMock represents a mock transport for testing
	TransportMock TransportType = "mock"
)

// MockTransport provides a scripted implementation of Transport for testing.
// Register reads answer from Registers, every transaction is recorded.
type MockTransport struct {
	Registers map[byte][]byte
	errorMap  map[byte]error
	Ops       []MockOp
	mu        sync.Mutex
	closed    bool
}

// MockOp records one transaction seen by MockTransport
type MockOp struct {
	Data []byte
	Cmd  byte
}

// NewMockTransport creates a new mock transport
func NewMockTransport() *MockTransport {
	return &MockTransport{
		Registers: make(map[byte][]byte),
		errorMap:  make(map[byte]error),
	}
}

// Transfer implements Transport
func (m *MockTransport) Transfer(cmd byte, buf []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return errors.New("transport is closed")
	}
	m.Ops = append(m.Ops, MockOp{Cmd: cmd, Data: append([]byte(nil), buf...)})

	if err, ok := m.errorMap[cmd]; ok {
		return err
	}

	switch {
	case cmd&0xE0 == cmdReadRegister:
		copy(buf, m.Registers[cmd&registerMask])
	case cmd&0xE0 == cmdWriteRegister:
		m.Registers[cmd&registerMask] = append([]byte(nil), buf...)
	default:
		for i := range buf {
			buf[i] = 0
		}
	}
	return nil
}

// Close implements Transport
func (m *MockTransport) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// SetRegister sets the value returned by reads of reg
func (m *MockTransport) SetRegister(reg byte, val ...byte) {
	m.mu.Lock()
	m.Registers[reg] = val
	m.mu.Unlock()
}

// SetError configures an error to be returned for a specific command byte
func (m *MockTransport) SetError(cmd byte, err error) {
	m.mu.Lock()
	m.errorMap[cmd] = err
	m.mu.Unlock()
}

// Writes returns the values written to reg, oldest first
func (m *MockTransport) Writes(reg byte) [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out [][]byte
	for _, op := range m.Ops {
		if op.Cmd == cmdWriteRegister|reg {
			out = append(out, op.Data)
		}
	}
	return out
}

// Reset clears the recorded transactions
func (m *MockTransport) Reset() {
	m.mu.Lock()
	m.Ops = nil
	m.mu.Unlock()
}
