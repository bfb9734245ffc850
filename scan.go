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

// ScanChannel listens on channel measurements times and returns how many
// samples saw a carrier above -64 dBm. It needs a dedicated enable line.
// The configured channel and receive mode are restored afterwards.
func (d *Device) ScanChannel(channel byte, measurements int) (hits int, err error) {
	if d.sharedPin {
		return 0, fmt.Errorf("scan channel: %w", ErrSharedPinUnsupported)
	}
	if channel > MaxChannel {
		channel = MaxChannel
	}

	if err := d.enterReceive(); err != nil {
		return 0, err
	}
	if err := d.enterStandby(); err != nil {
		return 0, err
	}

	// Restore on every path so a failed scan still leaves the radio
	// listening on its own channel. The first error wins.
	defer func() {
		restoreErr := d.writeRegister(regRFCh, d.config.Channel)
		if restoreErr == nil {
			restoreErr = d.enterReceive()
		}
		if err == nil {
			err = restoreErr
		}
	}()

	if err := d.writeRegister(regRFCh, channel); err != nil {
		return 0, err
	}

	for range measurements {
		if err := d.ce.Out(gpio.High); err != nil {
			return hits, fmt.Errorf("failed to raise enable line: %w", err)
		}
		d.clock.Sleep(rpdSample)
		if err := d.ce.Out(gpio.Low); err != nil {
			return hits, fmt.Errorf("failed to drop enable line: %w", err)
		}
		rpd, err := d.readRegister(regRPD)
		if err != nil {
			return hits, err
		}
		if rpd&1 != 0 {
			hits++
		}
	}
	return hits, nil
}
