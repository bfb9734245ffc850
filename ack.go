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

import "fmt"

// AddAckData stages payload to be returned automatically in the
// acknowledgment of the next packet received from another radio. The radio
// holds up to three; more are silently dropped by the hardware, so pass
// clearExisting to discard stale ones first.
func (d *Device) AddAckData(payload []byte, clearExisting bool) error {
	if len(payload) > MaxPayloadSize {
		return fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(payload))
	}
	if clearExisting {
		// Acknowledgment payloads live in the transmit queue.
		if err := d.flushTx(); err != nil {
			return err
		}
	}
	return d.command(cmdWriteAckPayload|ackPayloadPipeForData, payload)
}

// HasAckData reports the length of an acknowledgment payload received after
// a Send, or 0 when there is none. Read it with ReadData.
func (d *Device) HasAckData() (int, error) {
	status, err := d.readStatus()
	if err != nil {
		return 0, err
	}
	if status.RxPipe() != PipeAck {
		return 0, nil
	}
	n, _, err := d.rxPacketLength()
	return n, err
}
