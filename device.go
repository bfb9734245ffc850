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
	"fmt"
	"io"
	"time"

	"periph.io/x/conn/v3/gpio"
)

// Option configures a Device at construction
type Option func(*Device) error

// WithEnablePin sets the GPIO driving the radio's CE line. When the transport
// drives CSN from the same pin the device runs in shared-pin mode.
func WithEnablePin(ce Line) Option {
	return func(d *Device) error {
		if ce == nil {
			return ErrNoEnablePin
		}
		d.ce = ce
		return nil
	}
}

// WithClock replaces the real-time clock, mainly for tests.
func WithClock(c Clock) Option {
	return func(d *Device) error {
		d.clock = c
		return nil
	}
}

// WithDiagnostics sets the writer PrintDetails reports to.
func WithDiagnostics(w io.Writer) Option {
	return func(d *Device) error {
		d.diag = w
		return nil
	}
}

// noDestination marks the destination cache as empty.
const noDestination = -1

// Device represents an nRF24L01(+) radio.
//
// Thread Safety: Device is NOT thread-safe. All methods must be called from
// a single goroutine, and blocking calls (Send, HasData) must not be mixed
// with the interrupt-driven calls (StartSend, WhatHappened, HasDataISR) for
// the same transaction. Use listen.Session to share a radio between
// goroutines.
type Device struct {
	transport     Transport
	ce            Line
	clock         Clock
	diag          io.Writer
	lastDataCheck time.Time
	config        RadioConfig
	timing        timing
	mode          Mode
	lastDest      int
	clearEvents   bool
	sharedPin     bool
}

// New creates a device for the radio behind transport. Call Init before use.
func New(transport Transport, config RadioConfig, opts ...Option) (*Device, error) {
	if transport == nil {
		return nil, fmt.Errorf("%w: nil transport", ErrTransportClosed)
	}
	config, err := config.validate()
	if err != nil {
		return nil, err
	}

	device := &Device{
		transport:   transport,
		clock:       SystemClock{},
		config:      config,
		timing:      timingFor(config.Bitrate),
		mode:        ModePowerDown,
		lastDest:    noDestination,
		clearEvents: true,
	}

	for _, opt := range opts {
		if err := opt(device); err != nil {
			return nil, err
		}
	}

	if sl, ok := transport.(SelectLine); ok && sl.SelectPin() != nil {
		csn := sl.SelectPin()
		if device.ce == nil || device.ce == Line(csn) {
			device.ce = csn
			device.sharedPin = true
		}
	}
	if device.ce == nil {
		return nil, ErrNoEnablePin
	}

	return device, nil
}

// Init turns the radio on and puts it into receive mode. It returns
// ErrCommunicationFailed when the radio does not read back its
// configuration.
func (d *Device) Init() error {
	d.clearEvents = true
	d.lastDest = noDestination
	d.clock.Sleep(offToPowerDown)

	writes := []struct {
		val []byte
		reg byte
	}{
		{reg: regRFCh, val: []byte{d.config.Channel}},
		{reg: regRFSetup, val: []byte{d.timing.rfSetup}},
		{reg: regSetupRetr, val: []byte{d.timing.setupRetr}},
		{reg: regRxAddrP1, val: addressBytes(AddressFor(d.config.ID))},
		{reg: regDynPD, val: []byte{dynpdPipe0 | dynpdPipe1}},
		{reg: regFeature, val: []byte{featureDynPLen | featureAckPay | featureDynAck}},
	}
	for _, w := range writes {
		if err := d.writeRegister(w.reg, w.val...); err != nil {
			return fmt.Errorf("failed to configure register 0x%02X: %w", w.reg, err)
		}
	}

	if err := d.flushRx(); err != nil {
		return err
	}
	if err := d.flushTx(); err != nil {
		return err
	}
	if err := d.clearFlags(statusAllFlags); err != nil {
		return err
	}

	if err := d.writeRegister(regConfig, configRxMode); err != nil {
		return err
	}
	if err := d.ce.Out(gpio.High); err != nil {
		return fmt.Errorf("failed to raise enable line: %w", err)
	}
	d.clock.Sleep(powerDownToRxTx)

	cfg, err := d.readRegister(regConfig)
	if err != nil {
		return err
	}
	if cfg != configRxMode {
		Debugf("CONFIG read back 0x%02X, wrote 0x%02X", cfg, configRxMode)
		d.mode = ModePowerDown
		return ErrCommunicationFailed
	}

	d.mode = ModeReceive
	Debugf("radio %d ready on channel %d at %s", d.config.ID, d.config.Channel, d.config.Bitrate)
	return nil
}

// Config returns the radio configuration, with the channel clamped.
func (d *Device) Config() RadioConfig {
	return d.config
}

// SharedPin reports whether CE and CSN share one line.
func (d *Device) SharedPin() bool {
	return d.sharedPin
}

// Transport returns the underlying transport
func (d *Device) Transport() Transport {
	return d.transport
}

// Close powers the radio down and closes the transport.
func (d *Device) Close() error {
	pdErr := d.PowerDown()
	if err := d.transport.Close(); err != nil {
		return fmt.Errorf("failed to close transport: %w", err)
	}
	return pdErr
}

func addressBytes(a Address) []byte {
	return a[:]
}
