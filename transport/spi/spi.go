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

// Package spi provides the hardware SPI transport for nRF24L01 radios
package spi

import (
	"fmt"

	"github.com/ZaparooProject/go-nrflite"
	"github.com/ZaparooProject/go-nrflite/internal/syncutil"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

const (
	// DefaultFrequency is well under the radio's 10 MHz limit so long
	// jumper wires still work.
	DefaultFrequency = 4 * physic.MegaHertz
	mode             = spi.Mode0
	traceDepth       = 8
)

// Option configures a Transport
type Option func(*Transport)

// WithFrequency sets the SPI clock.
func WithFrequency(f physic.Frequency) Option {
	return func(t *Transport) {
		t.freq = f
	}
}

// Transport implements nrflite.Transport over a periph.io SPI port.
//
// The chip select is either driven by the SPI controller or, when a CSN pin
// is given, by a GPIO that is held low around each transaction. A GPIO CSN
// may also be wired to the radio's CE input; the driver detects that through
// SelectPin.
type Transport struct {
	port     spi.PortCloser
	conn     spi.Conn
	csn      gpio.PinIO
	trace    *nrflite.TraceBuffer
	portName string
	freq     physic.Frequency
	w        [1 + nrflite.MaxPayloadSize]byte
	r        [1 + nrflite.MaxPayloadSize]byte
	mu       syncutil.Mutex
	closed   bool
}

// New opens an SPI port by name, e.g. "/dev/spidev0.0" or "SPI0.0". csnName
// names a GPIO to drive CSN, or is empty to use the controller's chip select.
func New(portName, csnName string, opts ...Option) (*Transport, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}

	t := &Transport{portName: portName, freq: DefaultFrequency}
	for _, opt := range opts {
		opt(t)
	}

	if csnName != "" {
		t.csn = gpioreg.ByName(csnName)
		if t.csn == nil {
			return nil, fmt.Errorf("failed to find CSN pin %s", csnName)
		}
	}

	port, err := spireg.Open(portName)
	if err != nil {
		return nil, fmt.Errorf("failed to open SPI port %s: %w", portName, err)
	}

	conn, err := port.Connect(t.freq, mode, 8)
	if err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to connect SPI: %w", err)
	}

	t.port = port
	if err := t.attach(conn); err != nil {
		_ = port.Close()
		return nil, err
	}
	return t, nil
}

// NewFromConn wraps an already connected SPI conn. csn may be nil.
func NewFromConn(conn spi.Conn, csn gpio.PinIO, name string) (*Transport, error) {
	t := &Transport{portName: name, csn: csn}
	if err := t.attach(conn); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Transport) attach(conn spi.Conn) error {
	t.conn = conn
	t.trace = nrflite.NewTraceBuffer("SPI", t.portName, traceDepth)
	if t.csn != nil {
		if err := t.csn.Out(gpio.High); err != nil {
			return fmt.Errorf("failed to deselect radio: %w", err)
		}
	}
	return nil
}

// Transfer implements nrflite.Transport.
//
//nolint:wrapcheck // WrapError intentionally wraps errors with trace data
func (t *Transport) Transfer(cmd byte, buf []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nrflite.NewTransportError("transfer", t.portName, nrflite.ErrTransportClosed, nrflite.ErrorTypePermanent)
	}
	if len(buf) > nrflite.MaxPayloadSize {
		return fmt.Errorf("%w: %d bytes", nrflite.ErrPayloadTooLarge, len(buf))
	}

	n := 1 + len(buf)
	t.w[0] = cmd
	copy(t.w[1:n], buf)
	t.trace.RecordTX(t.w[:n], fmt.Sprintf("Cmd 0x%02X", cmd))

	if err := t.setSelect(gpio.Low); err != nil {
		return t.trace.WrapError(err)
	}
	txErr := t.conn.Tx(t.w[:n], t.r[:n])
	if err := t.setSelect(gpio.High); err != nil && txErr == nil {
		txErr = err
	}
	if txErr != nil {
		return t.trace.WrapError(nrflite.NewTransportError("transfer", t.portName, txErr, nrflite.ErrorTypeTransient))
	}

	t.trace.RecordRX(t.r[:n], fmt.Sprintf("Status 0x%02X", t.r[0]))
	copy(buf, t.r[1:n])
	return nil
}

func (t *Transport) setSelect(l gpio.Level) error {
	if t.csn == nil {
		return nil
	}
	if err := t.csn.Out(l); err != nil {
		return fmt.Errorf("failed to drive CSN: %w", err)
	}
	return nil
}

// SelectPin implements nrflite.SelectLine.
func (t *Transport) SelectPin() gpio.PinIO {
	return t.csn
}

// Close implements nrflite.Transport. The CSN pin is left high.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	if t.port == nil {
		return nil
	}
	if err := t.port.Close(); err != nil {
		return fmt.Errorf("failed to close SPI port: %w", err)
	}
	return nil
}

// Type returns the transport type
func (*Transport) Type() nrflite.TransportType {
	return nrflite.TransportSPI
}

// Frequency returns the configured SPI clock, or 0 for an injected conn.
func (t *Transport) Frequency() physic.Frequency {
	return t.freq
}
