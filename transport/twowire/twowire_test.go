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

package twowire

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ZaparooProject/go-nrflite"
	testutil "github.com/ZaparooProject/go-nrflite/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

// fakeChip decodes the two-wire bus from the pin calls the transport makes.
// A rising clock edge while the host drives the data line clocks a bit; a
// rising edge with the line released ends the transaction.
type fakeChip struct {
	radio        *testutil.VirtualRadio
	clk          *chipClock
	dataErr      error
	scripted     [][]byte
	transactions [][]byte
	response     []byte
	current      []byte
	mu           sync.Mutex
	bits         int
	acc          byte
	level        gpio.Level
	driven       bool
	selected     bool
	answered     bool
}

// chipClock is the clock pin as seen by fakeChip.
type chipClock struct {
	*gpiotest.Pin
	chip   *fakeChip
	levels []gpio.Level
}

func newFakeChip(scripted ...[]byte) *fakeChip {
	c := &fakeChip{scripted: scripted}
	c.clk = &chipClock{Pin: &gpiotest.Pin{N: "CLK"}, chip: c}
	return c
}

func (c *fakeChip) In(gpio.Pull, gpio.Edge) error {
	c.mu.Lock()
	c.driven = false
	c.mu.Unlock()
	return nil
}

func (c *fakeChip) Out(l gpio.Level) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dataErr != nil {
		return c.dataErr
	}
	c.driven = true
	c.level = l
	return nil
}

// Read returns the bit the chip presents for the next clock.
func (c *fakeChip) Read() gpio.Level {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.bits / 8
	if i >= len(c.response) {
		return gpio.Low
	}
	return gpio.Level(c.response[i]&(0x80>>(c.bits%8)) != 0)
}

func (p *chipClock) Out(l gpio.Level) error {
	c := p.chip
	c.mu.Lock()
	p.levels = append(p.levels, l)
	var enable gpio.Level
	notify := false

	switch {
	case l == gpio.Low && !c.selected:
		c.selected = true
		c.current = nil
		c.bits = 0
		c.answered = false
		c.response = nil
		if n := len(c.transactions); n < len(c.scripted) {
			c.response = c.scripted[n]
		}
		enable, notify = gpio.Low, true
	case l == gpio.High && c.selected && c.driven:
		c.acc = c.acc<<1 | boolBit(c.level)
		c.bits++
		if c.bits%8 == 0 {
			c.current = append(c.current, c.acc)
			if len(c.current) == 1 {
				c.answerRead(c.current[0])
			}
		}
	case l == gpio.High && c.selected:
		c.selected = false
		c.transactions = append(c.transactions, c.current)
		if c.radio != nil && !c.answered && len(c.current) > 0 {
			c.radio.Exchange(c.current[0], append([]byte(nil), c.current[1:]...))
		}
		enable, notify = gpio.High, true
	}
	c.mu.Unlock()

	if notify && c.radio != nil {
		return c.radio.Enable().Out(enable)
	}
	return nil
}

// answerRead runs read commands against the backing radio as soon as the
// command byte is known, so the reply can be shifted out.
func (c *fakeChip) answerRead(cmd byte) {
	if c.radio == nil {
		return
	}
	if cmd >= 0x20 && cmd != 0x60 && cmd != 0x61 {
		return
	}
	reply := make([]byte, nrflite.MaxPayloadSize)
	for i := range reply {
		reply[i] = 0xFF
	}
	c.radio.Exchange(cmd, reply)
	c.response = append([]byte{0x0E}, reply...)
	c.answered = true
}

func (c *fakeChip) Transactions() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transactions
}

func boolBit(l gpio.Level) byte {
	if l == gpio.High {
		return 1
	}
	return 0
}

type countingSection struct {
	enter, exit int
}

func (s *countingSection) Enter() { s.enter++ }
func (s *countingSection) Exit()  { s.exit++ }

func newTestTransport(t *testing.T, chip *fakeChip, opts ...Option) (*Transport, *testutil.FakeClock, *countingSection) {
	t.Helper()
	clock := testutil.NewFakeClock()
	cs := &countingSection{}
	opts = append([]Option{WithClock(clock), WithCriticalSection(cs)}, opts...)
	transport, err := NewFromPins(chip, chip.clk, opts...)
	require.NoError(t, err)
	return transport, clock, cs
}

func TestTransfer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		buf      []byte
		reply    []byte
		wantWire []byte
		wantBuf  []byte
		cmd      byte
	}{
		{
			name:     "CommandOnly",
			cmd:      0xE1,
			reply:    []byte{0x0E},
			wantWire: []byte{0xE1},
			wantBuf:  []byte{},
		},
		{
			name:     "ReadRegister",
			cmd:      0x05,
			buf:      []byte{0xFF},
			reply:    []byte{0x0E, 0x64},
			wantWire: []byte{0x05, 0xFF},
			wantBuf:  []byte{0x64},
		},
		{
			name:     "WriteAddress",
			cmd:      0x30,
			buf:      []byte{0x01, 0x02, 0x03, 0x04, 0x05},
			reply:    []byte{0x0E},
			wantWire: []byte{0x30, 0x01, 0x02, 0x03, 0x04, 0x05},
			wantBuf:  []byte{0x00, 0x00, 0x00, 0x00, 0x00},
		},
		{
			name:     "AlternatingBits",
			cmd:      0xA0,
			buf:      []byte{0xAA, 0x55},
			reply:    []byte{0x0E, 0x5A, 0xA5},
			wantWire: []byte{0xA0, 0xAA, 0x55},
			wantBuf:  []byte{0x5A, 0xA5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			chip := newFakeChip(tt.reply)
			transport, _, _ := newTestTransport(t, chip)

			buf := append([]byte{}, tt.buf...)
			require.NoError(t, transport.Transfer(tt.cmd, buf))
			assert.Equal(t, tt.wantBuf, buf)

			got := chip.Transactions()
			require.Len(t, got, 1)
			assert.Equal(t, tt.wantWire, got[0])
		})
	}
}

func TestTransfer_DischargeAndCriticalSection(t *testing.T) {
	t.Parallel()

	chip := newFakeChip()
	transport, clock, cs := newTestTransport(t, chip, WithDischarge(800*time.Microsecond))

	require.NoError(t, transport.Transfer(0x07, []byte{0xFF}))
	require.NoError(t, transport.Transfer(0xE2, nil))

	slept, calls := clock.Slept()
	assert.Equal(t, 4*800*time.Microsecond, slept)
	assert.Equal(t, 4, calls)
	assert.Equal(t, 2, cs.enter)
	assert.Equal(t, 2, cs.exit)

	// Starts high, then each transaction is low, a pulse per bit, high.
	levels := chip.clk.levels
	require.Len(t, levels, 1+(1+2*16+1)+(1+2*8+1))
	assert.Equal(t, gpio.High, levels[0])
	assert.Equal(t, gpio.Low, levels[1])
	assert.Equal(t, gpio.High, levels[len(levels)-1])
}

func TestTransfer_DataLineError(t *testing.T) {
	t.Parallel()

	chip := newFakeChip()
	transport, clock, cs := newTestTransport(t, chip)
	chip.dataErr = errors.New("pin busy")

	err := transport.Transfer(0x20, []byte{0x0B})
	require.Error(t, err)

	var te *nrflite.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, nrflite.ErrorTypeTransient, te.Type)
	assert.False(t, nrflite.IsFatal(err))

	// The first failed pin write ends the bit: the clock is never pulsed,
	// only released to deselect the radio, and the critical section left.
	assert.Equal(t, []gpio.Level{gpio.High, gpio.Low, gpio.High}, chip.clk.levels)
	assert.Equal(t, cs.enter, cs.exit)
	_, calls := clock.Slept()
	assert.Equal(t, 2, calls)
}

func TestTransport_Close(t *testing.T) {
	t.Parallel()

	chip := newFakeChip()
	transport, _, _ := newTestTransport(t, chip)
	assert.Equal(t, nrflite.TransportTwoWire, transport.Type())

	require.NoError(t, transport.Close())
	require.NoError(t, transport.Close())

	err := transport.Transfer(0xFF, nil)
	require.ErrorIs(t, err, nrflite.ErrTransportClosed)
	assert.True(t, nrflite.IsFatal(err))
	assert.Empty(t, chip.Transactions())
}

func TestTransport_WithRadio(t *testing.T) {
	t.Parallel()

	air := testutil.NewAir()
	chip := newFakeChip()
	chip.radio = air.NewRadio("twowire")
	transport, _, _ := newTestTransport(t, chip, WithDischarge(0))

	tx, err := nrflite.New(transport, nrflite.DefaultRadioConfig(1), nrflite.WithClock(testutil.NewFakeClock()))
	require.NoError(t, err)
	assert.True(t, tx.SharedPin())
	require.NoError(t, tx.Init())

	rxSim := air.NewRadio("receiver")
	rxClock := testutil.NewFakeClock()
	rx, err := nrflite.New(testutil.NewSharedPinTransport(rxSim), nrflite.DefaultRadioConfig(2),
		nrflite.WithClock(rxClock))
	require.NoError(t, err)
	require.NoError(t, rx.Init())

	payload := []byte("two wires")
	require.NoError(t, tx.Send(2, payload, nrflite.RequireAck))

	rxClock.Advance(10 * time.Millisecond)
	n, err := rx.HasData(false)
	require.NoError(t, err)
	require.Equal(t, len(payload), n)

	buf := make([]byte, n)
	_, err = rx.ReadData(buf)
	require.NoError(t, err)
	assert.Equal(t, payload, buf)
}
