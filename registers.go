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

// command issues a transaction that only writes: buf is sent and the bytes
// clocked back are discarded.
func (d *Device) command(cmd byte, buf []byte) error {
	var scratch [MaxPayloadSize]byte
	n := copy(scratch[:], buf)
	if err := d.transport.Transfer(cmd, scratch[:n]); err != nil {
		return &TransportError{Op: fmt.Sprintf("command 0x%02X", cmd), Err: err, Type: ErrorTypeTransient}
	}
	return nil
}

// fetch issues a transaction that reads len(buf) bytes into buf.
func (d *Device) fetch(cmd byte, buf []byte) error {
	for i := range buf {
		buf[i] = cmdNOP
	}
	if err := d.transport.Transfer(cmd, buf); err != nil {
		return &TransportError{Op: fmt.Sprintf("read 0x%02X", cmd), Err: err, Type: ErrorTypeTransient}
	}
	return nil
}

func (d *Device) readRegisterInto(reg byte, buf []byte) error {
	return d.fetch(cmdReadRegister|(reg&registerMask), buf)
}

func (d *Device) readRegister(reg byte) (byte, error) {
	var buf [1]byte
	err := d.readRegisterInto(reg, buf[:])
	return buf[0], err
}

func (d *Device) writeRegister(reg byte, val ...byte) error {
	return d.command(cmdWriteRegister|(reg&registerMask), val)
}

func (d *Device) readStatus() (Status, error) {
	s, err := d.readRegister(regStatus)
	return Status(s), err
}

func (d *Device) readFIFOStatus() (FIFOStatus, error) {
	f, err := d.readRegister(regFIFOStatus)
	return FIFOStatus(f), err
}

// clearFlags writes 1 to the given STATUS interrupt bits, which clears them.
func (d *Device) clearFlags(mask byte) error {
	return d.writeRegister(regStatus, mask&statusAllFlags)
}

func (d *Device) flushTx() error {
	return d.command(cmdFlushTx, nil)
}

func (d *Device) flushRx() error {
	return d.command(cmdFlushRx, nil)
}
