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

	"periph.io/x/conn/v3/gpio"
)

// Mode is the radio's operating mode.
type Mode int

const (
	// ModePowerDown draws under 1 uA; registers are retained.
	ModePowerDown Mode = iota
	// ModeStandby is powered with the enable line low. It sits between
	// receive and transmit.
	ModeStandby
	// ModeReceive listens on the configured channel.
	ModeReceive
	// ModeTransmit sends queued packets when the enable line rises.
	ModeTransmit
)

func (m Mode) String() string {
	switch m {
	case ModePowerDown:
		return "power-down"
	case ModeStandby:
		return "standby"
	case ModeReceive:
		return "receive"
	case ModeTransmit:
		return "transmit"
	default:
		return "unknown"
	}
}

// Mode returns the operating mode the driver last put the radio in.
func (d *Device) Mode() Mode {
	return d.mode
}

// setEnable drives the dedicated CE line. In shared-pin mode the line is
// CSN as well and belongs to the transport, so it is left alone.
func (d *Device) setEnable(l gpio.Level) error {
	if d.sharedPin || d.ce.Read() == l {
		return nil
	}
	if err := d.ce.Out(l); err != nil {
		return fmt.Errorf("failed to set enable line: %w", err)
	}
	return nil
}

// pulseEnable starts transmission of the packet at the head of the transmit
// queue. In shared-pin mode CE is already high, so loading the queue was
// enough.
func (d *Device) pulseEnable() error {
	if d.sharedPin {
		return nil
	}
	if err := d.ce.Out(gpio.High); err != nil {
		return fmt.Errorf("failed to pulse enable line: %w", err)
	}
	d.clock.Sleep(ceTransmission)
	if err := d.ce.Out(gpio.Low); err != nil {
		return fmt.Errorf("failed to pulse enable line: %w", err)
	}
	return nil
}

// enterStandby drops the enable line so the radio stops listening or
// transmitting. Mode changes must be written from here, never directly
// from receive.
func (d *Device) enterStandby() error {
	if err := d.setEnable(gpio.Low); err != nil {
		return err
	}
	if d.mode != ModePowerDown {
		d.mode = ModeStandby
	}
	return nil
}

// enterReceive powers the radio up as a receiver and raises the enable line.
func (d *Device) enterReceive() error {
	cfg, err := d.readRegister(regConfig)
	if err != nil {
		return err
	}

	want := cfg | configPwrUp | configPrimRx
	if cfg != want {
		if err := d.enterStandby(); err != nil {
			return err
		}
		if err := d.writeRegister(regConfig, want); err != nil {
			return err
		}
	}

	if err := d.setEnable(gpio.High); err != nil {
		return err
	}

	if cfg&configPwrUp == 0 {
		d.clock.Sleep(powerDownToRxTx)
	}
	d.mode = ModeReceive
	return nil
}

// enterTransmit powers the radio up as a transmitter, passing through
// standby when it was receiving.
func (d *Device) enterTransmit() error {
	cfg, err := d.readRegister(regConfig)
	if err != nil {
		return err
	}

	want := cfg&^configPrimRx | configPwrUp
	if cfg != want {
		if cfg&configPrimRx != 0 && cfg&configPwrUp != 0 {
			if err := d.enterStandby(); err != nil {
				return err
			}
		}
		if err := d.writeRegister(regConfig, want); err != nil {
			return err
		}
		d.clock.Sleep(powerDownToRxTx)
	}

	d.mode = ModeTransmit
	return nil
}

// StartRx switches the radio into receive mode without checking for data,
// for callers that wait on the IRQ line. Packets still queued by StartSend
// are sent first. It returns ErrCommunicationFailed when the radio does not
// confirm the mode.
func (d *Device) StartRx() error {
	if d.mode == ModeTransmit {
		fifo, err := d.readFIFOStatus()
		if err != nil {
			return err
		}
		if !fifo.TxEmpty() {
			if err := d.drainTx(); err != nil {
				return err
			}
		}
	}

	if err := d.enterReceive(); err != nil {
		return err
	}
	cfg, err := d.readRegister(regConfig)
	if err != nil {
		return err
	}
	if cfg&(configPwrUp|configPrimRx) != configPwrUp|configPrimRx {
		return ErrCommunicationFailed
	}
	return nil
}

// PowerDown turns the radio off. Send and HasData power it back up.
func (d *Device) PowerDown() error {
	if err := d.setEnable(gpio.Low); err != nil {
		return err
	}
	cfg, err := d.readRegister(regConfig)
	if err != nil {
		return err
	}
	if err := d.writeRegister(regConfig, cfg&^configPwrUp); err != nil {
		return err
	}
	d.mode = ModePowerDown
	return nil
}
