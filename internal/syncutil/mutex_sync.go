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

//go:build !deadlock

// Package syncutil holds the locks that guard transports and listen
// sessions. Plain sync types are used unless the module is built with
// -tags=deadlock, which swaps in github.com/sasha-s/go-deadlock.
package syncutil

import "sync"

// Mutex serialises bus transactions.
//
//nolint:gocritic // embedded to expose Lock/Unlock
type Mutex struct {
	sync.Mutex
}

// RWMutex guards handler registration.
//
//nolint:gocritic // embedded to expose Lock/Unlock
type RWMutex struct {
	sync.RWMutex
}

// DeadlockDetection reports whether lock-order checking is compiled in.
func DeadlockDetection() bool { return false }
