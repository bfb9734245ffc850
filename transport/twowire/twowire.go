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

// Package twowire drives an nRF24L01 over two GPIOs.
//
// The clock line also drives CSN through an RC network, and CE is tied to
// it, so the radio deselects (and listens) whenever the clock rests high. A
// single data line carries MOSI and MISO: the host samples it as an input,
// then drives the outgoing bit before each clock pulse.
package twowire

import (
	"fmt"
	"runtime"
	"time"

	"github.com/ZaparooProject/go-nrflite"
	"github.com/ZaparooProject/go-nrflite/internal/syncutil"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// DefaultDischarge suits the 22 nF capacitor and 220 ohm resistor most
// two-pin boards use.
const DefaultDischarge = 500 * time.Microsecond

// DataLine is the shared MOSI/MISO pin. gpio.PinIO satisfies it.
type DataLine interface {
	In(pull gpio.Pull, edge gpio.Edge) error
	Out(l gpio.Level) error
	Read() gpio.Level
}

// CriticalSection brackets the bit shifting of one transaction, which must
// not be interrupted long enough for the select capacitor to charge.
type CriticalSection interface {
	Enter()
	Exit()
}

// lockedThread keeps the goroutine on one OS thread while shifting. A user
// space process cannot mask interrupts.
type lockedThread struct{}

func (lockedThread) Enter() { runtime.LockOSThread() }
func (lockedThread) Exit()  { runtime.UnlockOSThread() }

// Option configures a Transport
type Option func(*Transport)

// WithDischarge sets how long the select capacitor needs to discharge and
// recharge around each transaction.
func WithDischarge(d time.Duration) Option {
	return func(t *Transport) {
		t.discharge = d
	}
}

// WithCriticalSection replaces the default thread lock.
func WithCriticalSection(cs CriticalSection) Option {
	return func(t *Transport) {
		t.critical = cs
	}
}

// WithClock replaces the clock used for the discharge waits.
func WithClock(c nrflite.Clock) Option {
	return func(t *Transport) {
		t.clock = c
	}
}

// Transport implements nrflite.Transport over a data and a clock GPIO.
type Transport struct {
	data      DataLine
	clk       gpio.PinIO
	critical  CriticalSection
	clock     nrflite.Clock
	name      string
	discharge time.Duration
	mu        syncutil.Mutex
	closed    bool
}

// New opens the named data and clock pins, e.g. "GPIO17" and "GPIO27".
func New(dataName, clockName string, opts ...Option) (*Transport, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}

	data := gpioreg.ByName(dataName)
	if data == nil {
		return nil, fmt.Errorf("failed to find data pin %s", dataName)
	}
	clk := gpioreg.ByName(clockName)
	if clk == nil {
		return nil, fmt.Errorf("failed to find clock pin %s", clockName)
	}
	return NewFromPins(data, clk, opts...)
}

// NewFromPins builds a transport on already opened pins. The clock is left
// high so the radio starts deselected.
func NewFromPins(data DataLine, clk gpio.PinIO, opts ...Option) (*Transport, error) {
	t := &Transport{
		data:      data,
		clk:       clk,
		critical:  lockedThread{},
		clock:     nrflite.SystemClock{},
		name:      clk.Name(),
		discharge: DefaultDischarge,
	}
	for _, opt := range opts {
		opt(t)
	}

	if err := data.In(gpio.Float, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("failed to release data line: %w", err)
	}
	if err := clk.Out(gpio.High); err != nil {
		return nil, fmt.Errorf("failed to raise clock line: %w", err)
	}
	return t, nil
}

// Transfer implements nrflite.Transport. Framing errors cannot be detected
// on this bus.
func (t *Transport) Transfer(cmd byte, buf []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nrflite.NewTransportError("transfer", t.name, nrflite.ErrTransportClosed, nrflite.ErrorTypePermanent)
	}

	if err := t.clk.Out(gpio.Low); err != nil {
		return t.wrap(err)
	}
	t.clock.Sleep(t.discharge)

	err := t.shiftAll(cmd, buf)

	if clkErr := t.clk.Out(gpio.High); clkErr != nil && err == nil {
		err = clkErr
	}
	t.clock.Sleep(t.discharge)
	if err != nil {
		return t.wrap(err)
	}
	return nil
}

func (t *Transport) shiftAll(cmd byte, buf []byte) error {
	t.critical.Enter()
	defer t.critical.Exit()

	if _, err := t.shift(cmd); err != nil {
		return err
	}
	for i, b := range buf {
		in, err := t.shift(b)
		if err != nil {
			return err
		}
		buf[i] = in
	}
	return nil
}

// shift exchanges one byte, most significant bit first.
func (t *Transport) shift(out byte) (byte, error) {
	var in byte
	for range 8 {
		bit, err := t.bit(out&0x80 != 0)
		in <<= 1
		if bit {
			in |= 1
		}
		if err != nil {
			return in, err
		}
		out <<= 1
	}
	return in, nil
}

// bit samples the data line, then drives b and clocks it in.
func (t *Transport) bit(b bool) (bool, error) {
	in := t.data.Read() == gpio.High
	if err := t.data.Out(gpio.Level(b)); err != nil {
		return in, err
	}
	if err := t.clk.Out(gpio.High); err != nil {
		return in, err
	}
	if err := t.clk.Out(gpio.Low); err != nil {
		return in, err
	}
	if err := t.data.Out(gpio.Low); err != nil {
		return in, err
	}
	return in, t.data.In(gpio.Float, gpio.NoEdge)
}

func (t *Transport) wrap(err error) error {
	return nrflite.NewTransportError("transfer", t.name, err, nrflite.ErrorTypeTransient)
}

// SelectPin implements nrflite.SelectLine. The clock line is also CE, so the
// driver always runs in shared-pin mode on this bus.
func (t *Transport) SelectPin() gpio.PinIO {
	return t.clk
}

// Close implements nrflite.Transport. The pins are left as they are.
func (t *Transport) Close() error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	return nil
}

// Type returns the transport type
func (*Transport) Type() nrflite.TransportType {
	return nrflite.TransportTwoWire
}
