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
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ZaparooProject/go-nrflite"
	"github.com/ZaparooProject/go-nrflite/internal/syncutil"
)

// ErrRecoveryFailed is returned when every recovery attempt failed.
var ErrRecoveryFailed = errors.New("radio recovery failed")

// Recoverer brings a failing radio back into a usable state
type Recoverer interface {
	// Recover tries to restore the radio. It returns nil on success.
	Recover(ctx context.Context) error

	// Device returns the current device, which may change after a reopen.
	Device() *nrflite.Device
}

// ReopenFunc reopens the transport and returns a fresh, uninitialised device
type ReopenFunc func() (*nrflite.Device, error)

// DefaultRecoverer tries in order:
// 1. Init on the existing device, which rewrites every register
// 2. Reopen through the caller's function, then Init
type DefaultRecoverer struct {
	device      *nrflite.Device
	reopen      ReopenFunc
	backoff     time.Duration
	maxAttempts int
	mu          syncutil.Mutex
}

// NewDefaultRecoverer creates a recoverer. A nil reopen limits it to
// reinitialising the existing device.
func NewDefaultRecoverer(device *nrflite.Device, reopen ReopenFunc, cfg RecoveryConfig) *DefaultRecoverer {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultRecoveryConfig().MaxAttempts
	}
	return &DefaultRecoverer{
		device:      device,
		reopen:      reopen,
		backoff:     cfg.Backoff,
		maxAttempts: cfg.MaxAttempts,
	}
}

// Recover implements Recoverer
func (r *DefaultRecoverer) Recover(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var lastErr error
	for attempt := range r.maxAttempts {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.backoff):
			}
		}

		err := r.device.Init()
		if err == nil {
			nrflite.Debugf("radio recovered on attempt %d", attempt+1)
			return nil
		}
		lastErr = err

		if r.reopen == nil {
			continue
		}
		_ = r.device.Close()
		device, err := r.reopen()
		if err != nil {
			lastErr = err
			continue
		}
		r.device = device
		if err := device.Init(); err != nil {
			lastErr = err
			continue
		}
		nrflite.Debugf("radio reopened on attempt %d", attempt+1)
		return nil
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrRecoveryFailed, r.maxAttempts, lastErr)
}

// Device implements Recoverer
func (r *DefaultRecoverer) Device() *nrflite.Device {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.device
}
