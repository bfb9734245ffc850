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
	"testing"
	"time"

	"github.com/ZaparooProject/go-nrflite"
	testutil "github.com/ZaparooProject/go-nrflite/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const readConfig = byte(testutil.RegConfig) // R_REGISTER | CONFIG

type testRadio struct {
	device    *nrflite.Device
	sim       *testutil.VirtualRadio
	transport *testutil.RadioTransport
}

func newTestRadio(t *testing.T, air *testutil.Air, id byte) *testRadio {
	t.Helper()

	sim := air.NewRadio(fmt.Sprintf("radio%d", id))
	transport := testutil.NewRadioTransport(sim)
	device, err := nrflite.New(transport, nrflite.DefaultRadioConfig(id),
		nrflite.WithEnablePin(sim.Enable()), nrflite.WithClock(testutil.NewFakeClock()))
	require.NoError(t, err)
	require.NoError(t, device.Init())
	return &testRadio{device: device, sim: sim, transport: transport}
}

func fastConfig() *Config {
	return &Config{
		PollInterval:         time.Millisecond,
		IRQTimeout:           10 * time.Millisecond,
		MaxConsecutiveErrors: 3,
		Recovery:             RecoveryConfig{MaxAttempts: 2, Backoff: time.Millisecond},
	}
}

// runSession starts s in the background. The returned channel yields
// Start's result; cleanup cancels the loop and waits for it.
func runSession(t *testing.T, s *Session) (<-chan error, context.CancelFunc) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	finished := make(chan struct{})
	go func() {
		done <- s.Start(ctx)
		close(finished)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-finished:
		case <-time.After(2 * time.Second):
		}
	})
	return done, cancel
}

func collect(t *testing.T, ch <-chan Packet, n int) [][]byte {
	t.Helper()
	var got [][]byte
	for len(got) < n {
		select {
		case p := <-ch:
			got = append(got, p.Data)
		case <-time.After(2 * time.Second):
			require.FailNow(t, "timed out waiting for packets", "got %d of %d", len(got), n)
		}
	}
	return got
}

func TestSession_Delivers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		irq  bool
	}{
		{name: "Polling", irq: false},
		{name: "Interrupt", irq: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			air := testutil.NewAir()
			tx := newTestRadio(t, air, 1)
			rx := newTestRadio(t, air, 2)

			config := fastConfig()
			if tt.irq {
				config.IRQ = rx.sim.IRQ()
			}
			session := NewSession(rx.device, config)
			packets := make(chan Packet, 8)
			session.SetOnPacket(func(p Packet) error {
				packets <- p
				return nil
			})
			done, cancel := runSession(t, session)

			want := [][]byte{[]byte("one"), []byte("two"), []byte("three")}
			for _, payload := range want {
				require.NoError(t, tx.device.Send(2, payload, nrflite.RequireAck))
			}
			assert.Equal(t, want, collect(t, packets, len(want)))
			assert.Equal(t, uint64(len(want)), session.Stats().Packets)

			cancel()
			require.ErrorIs(t, <-done, context.Canceled)
		})
	}
}

func TestSession_QueueHead(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		head []byte
		want [][]byte
		pipe int
		irq  bool
	}{
		{name: "ZeroLengthPolling", pipe: nrflite.PipeData, want: [][]byte{{}, []byte("real")}},
		{name: "ZeroLengthInterrupt", pipe: nrflite.PipeData, irq: true, want: [][]byte{{}, []byte("real")}},
		{name: "StrayAckPolling", pipe: nrflite.PipeAck, head: []byte("ack"), want: [][]byte{[]byte("real")}},
		{name: "StrayAckInterrupt", pipe: nrflite.PipeAck, head: []byte("ack"), irq: true, want: [][]byte{[]byte("real")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rx := newTestRadio(t, testutil.NewAir(), 2)
			rx.sim.Inject(tt.pipe, tt.head)
			rx.sim.Inject(nrflite.PipeData, []byte("real"))

			config := fastConfig()
			if tt.irq {
				config.IRQ = rx.sim.IRQ()
			}
			session := NewSession(rx.device, config)
			packets := make(chan Packet, 8)
			session.SetOnPacket(func(p Packet) error {
				packets <- p
				return nil
			})
			runSession(t, session)

			assert.Equal(t, tt.want, collect(t, packets, len(tt.want)))
			assert.Zero(t, rx.sim.RxQueueLen())
		})
	}
}

func TestSession_AckPayload(t *testing.T) {
	t.Parallel()

	air := testutil.NewAir()
	tx := newTestRadio(t, air, 1)
	rx := newTestRadio(t, air, 2)

	server := NewSession(rx.device, fastConfig())
	received := make(chan Packet, 4)
	server.SetOnPacket(func(p Packet) error {
		received <- p
		return nil
	})
	require.NoError(t, server.AddAckData([]byte("pong"), false))
	runSession(t, server)

	client := NewSession(tx.device, fastConfig())
	acks := make(chan Packet, 4)
	client.SetOnAck(func(p Packet) error {
		acks <- p
		return nil
	})

	require.NoError(t, client.Send(2, []byte("ping"), nrflite.RequireAck))
	assert.Equal(t, [][]byte{[]byte("pong")}, collect(t, acks, 1))
	assert.Equal(t, [][]byte{[]byte("ping")}, collect(t, received, 1))
	assert.Equal(t, uint64(1), client.Stats().AckPackets)
}

func TestSession_PauseResume(t *testing.T) {
	t.Parallel()

	air := testutil.NewAir()
	tx := newTestRadio(t, air, 1)
	rx := newTestRadio(t, air, 2)

	session := NewSession(rx.device, fastConfig())
	packets := make(chan Packet, 4)
	session.SetOnPacket(func(p Packet) error {
		packets <- p
		return nil
	})
	runSession(t, session)

	require.NoError(t, session.PauseAndWait(context.Background(), time.Second))
	require.NoError(t, tx.device.Send(2, []byte("held"), nrflite.RequireAck))

	select {
	case p := <-packets:
		require.FailNow(t, "packet delivered while paused", "%q", p.Data)
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, 1, rx.sim.RxQueueLen())

	session.Resume()
	assert.Equal(t, [][]byte{[]byte("held")}, collect(t, packets, 1))
}

func TestSession_CallbackFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		callback func(Packet) error
		name     string
		wantErr  string
	}{
		{
			name:     "Error",
			callback: func(Packet) error { return errors.New("boom") },
			wantErr:  "OnPacket callback failed: boom",
		},
		{
			name:     "Panic",
			callback: func(Packet) error { panic("bad packet") },
			wantErr:  "OnPacket callback panicked: bad packet",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			air := testutil.NewAir()
			tx := newTestRadio(t, air, 1)
			rx := newTestRadio(t, air, 2)

			session := NewSession(rx.device, fastConfig())
			session.SetOnPacket(tt.callback)
			done, _ := runSession(t, session)

			require.NoError(t, tx.device.Send(2, []byte("x"), nrflite.RequireAck))
			select {
			case err := <-done:
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			case <-time.After(2 * time.Second):
				require.FailNow(t, "session did not stop")
			}
		})
	}
}

func TestSession_RecoversAfterErrors(t *testing.T) {
	t.Parallel()

	air := testutil.NewAir()
	tx := newTestRadio(t, air, 1)
	rx := newTestRadio(t, air, 2)
	rx.transport.FailCommandTimes(readConfig, assert.AnError, 3)

	session := NewSession(rx.device, fastConfig())
	packets := make(chan Packet, 4)
	session.SetOnPacket(func(p Packet) error {
		packets <- p
		return nil
	})
	runSession(t, session)

	require.Eventually(t, func() bool {
		return session.Stats().Recoveries == 1
	}, 2*time.Second, time.Millisecond)
	assert.Equal(t, uint64(3), session.Stats().Errors)

	require.NoError(t, tx.device.Send(2, []byte("after"), nrflite.RequireAck))
	assert.Equal(t, [][]byte{[]byte("after")}, collect(t, packets, 1))
}

func TestSession_RecoveryExhausted(t *testing.T) {
	t.Parallel()

	rx := newTestRadio(t, testutil.NewAir(), 2)
	rx.transport.FailCommand(readConfig, assert.AnError)

	session := NewSession(rx.device, fastConfig())
	done, _ := runSession(t, session)

	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrRecoveryFailed)
		require.ErrorIs(t, err, assert.AnError)
	case <-time.After(2 * time.Second):
		require.FailNow(t, "session did not stop")
	}
}

func TestSession_FatalError(t *testing.T) {
	t.Parallel()

	rx := newTestRadio(t, testutil.NewAir(), 2)
	rx.transport.FailCommand(readConfig, nrflite.ErrTransportClosed)

	session := NewSession(rx.device, fastConfig())
	done, _ := runSession(t, session)

	select {
	case err := <-done:
		require.ErrorIs(t, err, nrflite.ErrTransportClosed)
		assert.Equal(t, uint64(1), session.Stats().Errors)
		assert.Zero(t, session.Stats().Recoveries)
	case <-time.After(2 * time.Second):
		require.FailNow(t, "session did not stop")
	}
}

func TestSession_Close(t *testing.T) {
	t.Parallel()

	rx := newTestRadio(t, testutil.NewAir(), 2)
	session := NewSession(rx.device, fastConfig())
	done, _ := runSession(t, session)

	require.NoError(t, session.PauseAndWait(context.Background(), time.Second))
	require.NoError(t, session.Close())

	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrSessionClosed)
	case <-time.After(2 * time.Second):
		require.FailNow(t, "paused session did not stop on close")
	}

	require.ErrorIs(t, session.Start(context.Background()), ErrSessionClosed)
	require.ErrorIs(t, session.Send(1, nil, nrflite.NoAck), ErrSessionClosed)
	require.ErrorIs(t, session.AddAckData(nil, false), ErrSessionClosed)
}

func TestConfig_WithDefaults(t *testing.T) {
	t.Parallel()

	var nilConfig *Config
	assert.Equal(t, DefaultConfig(), nilConfig.withDefaults())

	custom := (&Config{PollInterval: time.Second, Recovery: RecoveryConfig{MaxAttempts: 7}}).withDefaults()
	assert.Equal(t, time.Second, custom.PollInterval)
	assert.Equal(t, 7, custom.Recovery.MaxAttempts)
	assert.Equal(t, DefaultRecoveryConfig().Backoff, custom.Recovery.Backoff)
	assert.Equal(t, DefaultConfig().IRQTimeout, custom.IRQTimeout)
	assert.Nil(t, custom.IRQ)
}
