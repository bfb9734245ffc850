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

//go:build !prod

package nrflite

import (
	"fmt"
	"testing"
	"time"

	testutil "github.com/ZaparooProject/go-nrflite/internal/testing"
	"github.com/stretchr/testify/require"
)

// simRadio is a Device wired to a simulated radio.
type simRadio struct {
	*Device
	sim   *testutil.VirtualRadio
	clock *testutil.FakeClock
}

// newSimRadio creates and initialises a radio with the given ID on air. With
// shared set, CE and CSN share one pin; otherwise CE is a dedicated line.
func newSimRadio(t *testing.T, air *testutil.Air, id byte, shared bool) *simRadio {
	t.Helper()
	return newSimRadioWithConfig(t, air, DefaultRadioConfig(id), shared)
}

func newSimRadioWithConfig(t *testing.T, air *testutil.Air, config RadioConfig, shared bool) *simRadio {
	t.Helper()

	sim := air.NewRadio(fmt.Sprintf("radio%d", config.ID))
	clock := testutil.NewFakeClock()
	opts := []Option{WithClock(clock)}

	var transport Transport
	if shared {
		transport = testutil.NewSharedPinTransport(sim)
	} else {
		transport = testutil.NewRadioTransport(sim)
		opts = append(opts, WithEnablePin(sim.Enable()))
	}

	device, err := New(transport, config, opts...)
	require.NoError(t, err)
	require.NoError(t, device.Init())
	require.Equal(t, shared, device.SharedPin())

	return &simRadio{Device: device, sim: sim, clock: clock}
}

// readPacket reads the packet at the head of r's receive queue so later
// sends are not refused for lack of space.
func readPacket(t *testing.T, r *simRadio) []byte {
	t.Helper()

	r.clock.Advance(10 * time.Millisecond)
	n, err := r.HasData(false)
	require.NoError(t, err)
	buf := make([]byte, MaxPayloadSize)
	got, err := r.ReadData(buf)
	require.NoError(t, err)
	require.Equal(t, n, got)
	return buf[:got]
}

// pinModes runs a test once with a dedicated enable line and once with CE
// and CSN sharing a pin.
var pinModes = []struct {
	name   string
	shared bool
}{
	{name: "DedicatedEnable", shared: false},
	{name: "SharedPin", shared: true},
}
