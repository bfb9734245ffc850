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
	"fmt"
)

// SendType selects whether the receiver must acknowledge a packet.
type SendType int

const (
	// RequireAck makes the hardware retry up to 15 times until the
	// receiver acknowledges.
	RequireAck SendType = iota
	// NoAck transmits the packet once.
	NoAck
)

// Send transmits payload to the radio with ID to and waits for the outcome.
// It returns ErrTransmitFailed when the hardware exhausted its retries, in
// which case the transmit queue has been flushed.
func (d *Device) Send(to byte, payload []byte, sendType SendType) error {
	if err := d.prepareTx(to, payload, sendType); err != nil {
		return err
	}

	status, err := d.readStatus()
	if err != nil {
		return err
	}
	if status.TxOK() || status.TxFailed() {
		if err := d.clearFlags(statusTxDS | statusMaxRT); err != nil {
			return err
		}
	}

	if err := d.loadAndTrigger(payload, sendType); err != nil {
		return err
	}
	return d.waitForTx()
}

// StartSend queues payload for the radio with ID to and starts transmission
// without waiting. Use WhatHappened, typically from an IRQ handler, to learn
// the outcome.
func (d *Device) StartSend(to byte, payload []byte, sendType SendType) error {
	if err := d.prepareTx(to, payload, sendType); err != nil {
		return err
	}
	return d.loadAndTrigger(payload, sendType)
}

// prepareTx leaves the radio in transmit mode, addressed to the destination,
// with room in the transmit queue.
func (d *Device) prepareTx(to byte, payload []byte, sendType SendType) error {
	if to == 0 {
		return ErrInvalidRadioID
	}
	if len(payload) > MaxPayloadSize {
		return fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(payload))
	}

	if err := d.enterTransmit(); err != nil {
		return err
	}
	if err := d.setDestination(to); err != nil {
		return err
	}

	fifo, err := d.readFIFOStatus()
	if err != nil {
		return err
	}

	// The acknowledgment needs a free receive slot.
	if fifo.RxFull() && sendType == RequireAck {
		if err := d.flushRx(); err != nil {
			return err
		}
	}

	if fifo.TxFull() {
		Debugln("transmit queue full, draining before loading")
		if err := d.drainTx(); err != nil {
			return err
		}
	}
	return nil
}

// setDestination points TX_ADDR at the radio with ID to. RX_ADDR_P0 gets the
// same address so the radio can receive the acknowledgment. The registers
// are only written when the destination changes.
func (d *Device) setDestination(to byte) error {
	if int(to) == d.lastDest {
		return nil
	}
	addr := AddressFor(to)
	if err := d.writeRegister(regTxAddr, addr[:]...); err != nil {
		return err
	}
	if err := d.writeRegister(regRxAddrP0, addr[:]...); err != nil {
		return err
	}
	d.lastDest = int(to)
	return nil
}

func (d *Device) loadAndTrigger(payload []byte, sendType SendType) error {
	cmd := byte(cmdWritePayload)
	if sendType == NoAck {
		cmd = cmdWritePayloadNoAck
	}
	if err := d.command(cmd, payload); err != nil {
		return err
	}
	return d.pulseEnable()
}

// drainTx sends whatever is in the transmit queue until it is empty. Packets
// the hardware gives up on are dropped.
func (d *Device) drainTx() error {
	if err := d.pulseEnable(); err != nil {
		return err
	}
	err := d.waitForTx()
	if errors.Is(err, ErrTransmitFailed) {
		Debugf("dropped queued packets while draining: %v", err)
		return nil
	}
	return err
}

// waitForTx polls STATUS until the transmit queue is empty or the hardware
// reports it gave up. Interrupt flags are kept set for WhatHappened only
// outside this loop.
func (d *Device) waitForTx() error {
	restore := d.suppressEventClearing()
	defer restore()

	for range txPollCeiling {
		d.clock.Sleep(d.timing.retryWait)

		status, err := d.readStatus()
		if err != nil {
			return err
		}

		switch {
		case status.TxOK():
			if err := d.clearFlags(statusTxDS); err != nil {
				return err
			}
			fifo, err := d.readFIFOStatus()
			if err != nil {
				return err
			}
			if fifo.TxEmpty() {
				return nil
			}
			if err := d.pulseEnable(); err != nil {
				return err
			}
		case status.TxFailed():
			if err := d.flushTx(); err != nil {
				return err
			}
			if err := d.clearFlags(statusMaxRT); err != nil {
				return err
			}
			Debugf("no acknowledgment from radio %d", d.lastDest)
			return ErrTransmitFailed
		}
	}

	if err := d.flushTx(); err != nil {
		return err
	}
	return fmt.Errorf("%w: no result after %d polls", ErrTransmitFailed, txPollCeiling)
}
