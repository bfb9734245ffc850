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
	"strings"
	"time"
)

// Bitrate is the over-the-air data rate.
type Bitrate int

const (
	// Bitrate2Mbps is the fastest rate and the default.
	Bitrate2Mbps Bitrate = iota
	// Bitrate1Mbps trades speed for a little range.
	Bitrate1Mbps
	// Bitrate250Kbps gives the best range.
	Bitrate250Kbps
)

func (b Bitrate) String() string {
	switch b {
	case Bitrate2Mbps:
		return "2Mbps"
	case Bitrate1Mbps:
		return "1Mbps"
	case Bitrate250Kbps:
		return "250Kbps"
	default:
		return "unknown"
	}
}

// ParseBitrate converts "2Mbps", "1Mbps" or "250Kbps" (case-insensitive,
// suffix optional) into a Bitrate.
func ParseBitrate(s string) (Bitrate, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "2mbps", "2m", "2":
		return Bitrate2Mbps, nil
	case "1mbps", "1m", "1":
		return Bitrate1Mbps, nil
	case "250kbps", "250k", "250":
		return Bitrate250Kbps, nil
	default:
		return 0, fmt.Errorf("unknown bitrate %q", s)
	}
}

// Radio limits
const (
	MaxPayloadSize = 32
	MaxChannel     = 125
	DefaultChannel = 100
)

// Timing constants from the nRF24L01+ datasheet.
const (
	// offToPowerDown covers the power-on reset once Vcc rises above 1.9 V.
	offToPowerDown = 100 * time.Millisecond
	// powerDownToRxTx covers 4.5 ms crystal startup to Standby plus 130 us
	// to RX or TX mode.
	powerDownToRxTx = 5 * time.Millisecond
	// ceTransmission is the minimum enable pulse that starts a transmission.
	ceTransmission = 10 * time.Microsecond
	// rpdSample is how long the receiver listens before RPD is sampled.
	rpdSample = 400 * time.Microsecond
)

// Queue geometry
const (
	txQueueSlots    = 3
	hardwareRetries = 15
	// txPollCeiling bounds the drain loop: every queued packet may use all
	// hardware retries, one poll per retry period.
	txPollCeiling = txQueueSlots * (hardwareRetries + 1)
)

// RadioConfig is fixed when the device is created.
type RadioConfig struct {
	// ID is this radio's address byte, 1-255. Peers send to it by ID.
	ID byte
	// Bitrate sets the data rate. Both ends must match.
	Bitrate Bitrate
	// Channel selects 2400+Channel MHz. Values above 125 are clamped.
	Channel byte
}

// DefaultRadioConfig returns a 2 Mbps configuration on channel 100.
func DefaultRadioConfig(id byte) RadioConfig {
	return RadioConfig{
		ID:      id,
		Bitrate: Bitrate2Mbps,
		Channel: DefaultChannel,
	}
}

func (c RadioConfig) validate() (RadioConfig, error) {
	if c.ID == 0 {
		return c, ErrInvalidRadioID
	}
	switch c.Bitrate {
	case Bitrate2Mbps, Bitrate1Mbps, Bitrate250Kbps:
	default:
		return c, fmt.Errorf("invalid bitrate %d", c.Bitrate)
	}
	if c.Channel > MaxChannel {
		c.Channel = MaxChannel
	}
	return c, nil
}

// timing holds the values derived from the bitrate.
type timing struct {
	// rfSetup and setupRetr are written to RF_SETUP and SETUP_RETR.
	rfSetup   byte
	setupRetr byte
	// retryWait is the transmit poll interval, matched to the hardware
	// auto-retransmit delay.
	retryWait time.Duration
	// hasDataInterval is the minimum gap between status checks when CE and
	// CSN share a pin, so the radio keeps listening between checks.
	hasDataInterval time.Duration
}

func timingFor(b Bitrate) timing {
	switch b {
	case Bitrate1Mbps:
		return timing{
			rfSetup:         rfSetup1Mbps,
			setupRetr:       setupRetr500,
			retryWait:       500 * time.Microsecond,
			hasDataInterval: 1200 * time.Microsecond,
		}
	case Bitrate250Kbps:
		return timing{
			rfSetup:         rfSetup250Kbps,
			setupRetr:       setupRetr1500,
			retryWait:       1500 * time.Microsecond,
			hasDataInterval: 8000 * time.Microsecond,
		}
	default:
		return timing{
			rfSetup:         rfSetup2Mbps,
			setupRetr:       setupRetr500,
			retryWait:       500 * time.Microsecond,
			hasDataInterval: 600 * time.Microsecond,
		}
	}
}

// Address is a 5-byte pipe address.
type Address [5]byte

// addressPrefix is shared by every radio; the last byte is the radio ID.
var addressPrefix = [4]byte{1, 2, 3, 4}

// AddressFor returns the on-air address of the radio with the given ID.
func AddressFor(id byte) Address {
	return Address{addressPrefix[0], addressPrefix[1], addressPrefix[2], addressPrefix[3], id}
}

func (a Address) String() string {
	return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X", a[0], a[1], a[2], a[3], a[4])
}
