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

package listen

import (
	"time"

	"periph.io/x/conn/v3/gpio"
)

// InterruptLine is the radio's active-low IRQ output. gpio.PinIn satisfies
// it once configured with a falling edge.
type InterruptLine interface {
	WaitForEdge(timeout time.Duration) bool
	Read() gpio.Level
}

// RecoveryConfig configures how a session reinitialises a radio that keeps
// failing.
type RecoveryConfig struct {
	// Backoff is the delay between recovery attempts
	Backoff time.Duration
	// MaxAttempts is the number of attempts before the session gives up
	MaxAttempts int
}

// DefaultRecoveryConfig returns the default recovery settings
func DefaultRecoveryConfig() RecoveryConfig {
	return RecoveryConfig{
		Backoff:     500 * time.Millisecond,
		MaxAttempts: 3,
	}
}

// Config holds listen loop options
type Config struct {
	// IRQ switches the loop from polling to waiting on the interrupt line.
	IRQ InterruptLine
	// PollInterval is the delay between receive checks when polling.
	PollInterval time.Duration
	// IRQTimeout bounds each wait on the interrupt line, so pause and
	// cancellation are noticed.
	IRQTimeout time.Duration
	// MaxConsecutiveErrors is how many failed cycles in a row trigger
	// recovery.
	MaxConsecutiveErrors int
	Recovery             RecoveryConfig
}

// DefaultConfig returns the default listen configuration
func DefaultConfig() *Config {
	return &Config{
		PollInterval:         5 * time.Millisecond,
		IRQTimeout:           100 * time.Millisecond,
		MaxConsecutiveErrors: 3,
		Recovery:             DefaultRecoveryConfig(),
	}
}

func (c *Config) withDefaults() *Config {
	out := DefaultConfig()
	if c == nil {
		return out
	}
	out.IRQ = c.IRQ
	if c.PollInterval > 0 {
		out.PollInterval = c.PollInterval
	}
	if c.IRQTimeout > 0 {
		out.IRQTimeout = c.IRQTimeout
	}
	if c.MaxConsecutiveErrors > 0 {
		out.MaxConsecutiveErrors = c.MaxConsecutiveErrors
	}
	if c.Recovery.MaxAttempts > 0 {
		out.Recovery.MaxAttempts = c.Recovery.MaxAttempts
	}
	if c.Recovery.Backoff > 0 {
		out.Recovery.Backoff = c.Recovery.Backoff
	}
	return out
}
