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
)

// HasData reports the length of the packet waiting from another radio, or 0
// when there is none. It switches the radio into receive mode if needed.
//
// When CE and CSN share a pin every status check briefly stops the radio
// listening, so polling callers are limited to one check per interval
// derived from the bitrate; calls inside the interval return 0. Pass
// usingInterrupts when calling only after the IRQ line fired.
func (d *Device) HasData(usingInterrupts bool) (int, error) {
	pipe, n, err := d.Pending(usingInterrupts)
	if err != nil || pipe != PipeData {
		return 0, err
	}
	return n, nil
}

// Pending reports the pipe and length of the packet at the head of the
// receive queue. Unlike HasData it tells an empty queue (PipeRxEmpty) apart
// from a zero-length packet or an acknowledgment payload (PipeAck), either of
// which must be read or discarded before later packets can be seen. It
// switches the radio into receive mode and honours the same shared-pin
// polling limit, reporting PipeRxEmpty inside the interval.
func (d *Device) Pending(usingInterrupts bool) (pipe, n int, err error) {
	if d.sharedPin && !usingInterrupts {
		now := d.clock.Now()
		if now.Sub(d.lastDataCheck) < d.timing.hasDataInterval {
			return PipeRxEmpty, 0, nil
		}
		d.lastDataCheck = now
	}

	if err := d.enterReceive(); err != nil {
		return PipeRxEmpty, 0, err
	}

	status, err := d.readStatus()
	if err != nil {
		return PipeRxEmpty, 0, err
	}
	pipe = status.RxPipe()
	if pipe != PipeData && pipe != PipeAck {
		return pipe, 0, nil
	}
	n, ok, err := d.rxPacketLength()
	if err != nil || !ok {
		return PipeRxEmpty, 0, err
	}
	return pipe, n, nil
}

// HasDataISR is HasData for interrupt handlers: it skips the shared-pin
// polling limit.
func (d *Device) HasDataISR() (int, error) {
	return d.HasData(true)
}

// ReadData copies the packet at the head of the receive queue into buf and
// returns its length. The packet may be data (after HasData) or an
// acknowledgment payload (after HasAckData).
func (d *Device) ReadData(buf []byte) (int, error) {
	n, ok, err := d.rxPacketLength()
	if err != nil || !ok {
		return 0, err
	}
	if len(buf) < n {
		return 0, fmt.Errorf("read data: %w: packet is %d bytes", io.ErrShortBuffer, n)
	}

	if err := d.fetch(cmdReadPayload, buf[:n]); err != nil {
		return 0, err
	}

	status, err := d.readStatus()
	if err != nil {
		return n, err
	}
	if status.RxReady() {
		if err := d.clearFlags(statusRxDR); err != nil {
			return n, err
		}
	}
	return n, nil
}

// DiscardData removes the packet at the head of the receive queue, e.g. one
// with an unexpected length.
func (d *Device) DiscardData() error {
	var scratch [MaxPayloadSize]byte
	_, err := d.ReadData(scratch[:])
	return err
}

// rxPacketLength probes the width of the packet at the head of the receive
// queue. A width over 32 means the radio lost sync: the queue is flushed,
// the flags cleared and ok is false.
func (d *Device) rxPacketLength() (n int, ok bool, err error) {
	var width [1]byte
	if err := d.fetch(cmdReadPayloadWidth, width[:]); err != nil {
		return 0, false, err
	}

	if width[0] > MaxPayloadSize {
		Debugf("invalid payload width %d, flushing receive queue", width[0])
		if err := d.flushRx(); err != nil {
			return 0, false, err
		}
		if err := d.clearFlags(statusAllFlags); err != nil {
			return 0, false, err
		}
		return 0, false, nil
	}
	return int(width[0]), true, nil
}
