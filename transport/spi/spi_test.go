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

package spi

import (
	"errors"
	"testing"

	"github.com/ZaparooProject/go-nrflite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/conntest"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spitest"
)

// recordingPin remembers every level driven on it.
type recordingPin struct {
	*gpiotest.Pin
	levels []gpio.Level
}

func newRecordingPin(name string) *recordingPin {
	return &recordingPin{Pin: &gpiotest.Pin{N: name}}
}

func (p *recordingPin) Out(l gpio.Level) error {
	p.levels = append(p.levels, l)
	return p.Pin.Out(l)
}

func newPlayback(t *testing.T, ops ...conntest.IO) (*spitest.Playback, spi.Conn) {
	t.Helper()
	p := &spitest.Playback{Playback: conntest.Playback{Ops: ops, DontPanic: true}}
	conn, err := p.Connect(DefaultFrequency, spi.Mode0, 8)
	require.NoError(t, err)
	return p, conn
}

func TestTransfer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		buf  []byte
		want []byte
		op   conntest.IO
		cmd  byte
	}{
		{
			name: "read status",
			cmd:  0x07,
			buf:  []byte{0xFF},
			op:   conntest.IO{W: []byte{0x07, 0xFF}, R: []byte{0x0E, 0x0E}},
			want: []byte{0x0E},
		},
		{
			name: "write channel",
			cmd:  0x25,
			buf:  []byte{100},
			op:   conntest.IO{W: []byte{0x25, 100}, R: []byte{0x0E, 0x02}},
			want: []byte{0x02},
		},
		{
			name: "flush with no data",
			cmd:  0xE1,
			buf:  nil,
			op:   conntest.IO{W: []byte{0xE1}, R: []byte{0x0E}},
			want: nil,
		},
		{
			name: "read address",
			cmd:  0x0B,
			buf:  []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF},
			op: conntest.IO{
				W: []byte{0x0B, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF},
				R: []byte{0x0E, 1, 2, 3, 4, 5},
			},
			want: []byte{1, 2, 3, 4, 5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			playback, conn := newPlayback(t, tt.op)
			transport, err := NewFromConn(conn, nil, "test")
			require.NoError(t, err)

			require.NoError(t, transport.Transfer(tt.cmd, tt.buf))
			if tt.want == nil {
				assert.Empty(t, tt.buf)
			} else {
				assert.Equal(t, tt.want, tt.buf)
			}
			require.NoError(t, playback.Close(), "all ops consumed")
		})
	}
}

func TestTransfer_DrivesCSN(t *testing.T) {
	t.Parallel()

	_, conn := newPlayback(t,
		conntest.IO{W: []byte{0x07, 0xFF}, R: []byte{0x0E, 0x0E}},
		conntest.IO{W: []byte{0xE2}, R: []byte{0x0E}},
	)
	csn := newRecordingPin("CSN")
	transport, err := NewFromConn(conn, csn, "test")
	require.NoError(t, err)

	require.NoError(t, transport.Transfer(0x07, []byte{0xFF}))
	require.NoError(t, transport.Transfer(0xE2, nil))

	assert.Equal(t, []gpio.Level{gpio.High, gpio.Low, gpio.High, gpio.Low, gpio.High}, csn.levels)
	assert.Equal(t, gpio.PinIO(csn), transport.SelectPin())
}

func TestTransfer_Record(t *testing.T) {
	t.Parallel()

	rec := &spitest.Record{Port: &spitest.Playback{Playback: conntest.Playback{
		Ops: []conntest.IO{
			{W: []byte{0xA0, 1, 2, 3}, R: []byte{0x0E, 0, 0, 0}},
			{W: []byte{0x60, 0xFF}, R: []byte{0x0E, 3}},
		},
		DontPanic: true,
	}}}
	conn, err := rec.Connect(DefaultFrequency, spi.Mode0, 8)
	require.NoError(t, err)
	transport, err := NewFromConn(conn, nil, "record")
	require.NoError(t, err)

	require.NoError(t, transport.Transfer(0xA0, []byte{1, 2, 3}))
	buf := []byte{0xFF}
	require.NoError(t, transport.Transfer(0x60, buf))

	require.Len(t, rec.Ops, 2)
	assert.Equal(t, []byte{0xA0, 1, 2, 3}, rec.Ops[0].W)
	assert.Equal(t, []byte{0x0E, 3}, rec.Ops[1].R)
	assert.Equal(t, []byte{3}, buf)
}

func TestTransfer_ErrorCarriesTrace(t *testing.T) {
	t.Parallel()

	// The second transaction does not match the script, so Tx fails.
	_, conn := newPlayback(t,
		conntest.IO{W: []byte{0x00, 0xFF}, R: []byte{0x0E, 0x0B}},
		conntest.IO{W: []byte{0x07, 0xFF}, R: []byte{0x0E, 0x0E}},
	)
	transport, err := NewFromConn(conn, nil, "spidev0.0")
	require.NoError(t, err)

	require.NoError(t, transport.Transfer(0x00, []byte{0xFF}))
	err = transport.Transfer(0x17, []byte{0xFF})
	require.Error(t, err)

	var traced *nrflite.TraceableError
	require.ErrorAs(t, err, &traced)
	assert.Equal(t, "SPI", traced.Transport)
	assert.Equal(t, "spidev0.0", traced.Port)
	require.Len(t, traced.Trace, 3)
	assert.Equal(t, nrflite.TraceTX, traced.Trace[0].Direction)
	assert.Equal(t, nrflite.TraceRX, traced.Trace[1].Direction)
	assert.Equal(t, []byte{0x17, 0xFF}, traced.Trace[2].Data)
	assert.Contains(t, traced.FormatTrace(), "Cmd 0x17")

	var te *nrflite.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, nrflite.ErrorTypeTransient, te.Type)
	assert.False(t, nrflite.IsFatal(err))
}

func TestTransfer_Limits(t *testing.T) {
	t.Parallel()

	_, conn := newPlayback(t)
	transport, err := NewFromConn(conn, nil, "test")
	require.NoError(t, err)

	err = transport.Transfer(0xA0, make([]byte, nrflite.MaxPayloadSize+1))
	require.ErrorIs(t, err, nrflite.ErrPayloadTooLarge)

	require.NoError(t, transport.Close())
	require.NoError(t, transport.Close(), "closing twice is harmless")

	err = transport.Transfer(0xFF, nil)
	require.ErrorIs(t, err, nrflite.ErrTransportClosed)
	assert.True(t, nrflite.IsFatal(err))
}

func TestTransport_WithDevice(t *testing.T) {
	t.Parallel()

	_, conn := newPlayback(t)
	csn := newRecordingPin("CSN")
	transport, err := NewFromConn(conn, csn, "test")
	require.NoError(t, err)
	assert.Equal(t, nrflite.TransportSPI, transport.Type())

	// CE wired to CSN.
	device, err := nrflite.New(transport, nrflite.DefaultRadioConfig(1), nrflite.WithEnablePin(csn))
	require.NoError(t, err)
	assert.True(t, device.SharedPin())

	// Separate CE line.
	device, err = nrflite.New(transport, nrflite.DefaultRadioConfig(1), nrflite.WithEnablePin(newRecordingPin("CE")))
	require.NoError(t, err)
	assert.False(t, device.SharedPin())

	// Controller chip select and no CE.
	plain, err := NewFromConn(conn, nil, "test")
	require.NoError(t, err)
	_, err = nrflite.New(plain, nrflite.DefaultRadioConfig(1))
	require.True(t, errors.Is(err, nrflite.ErrNoEnablePin))
}

func TestWithFrequency(t *testing.T) {
	t.Parallel()

	transport := &Transport{freq: DefaultFrequency}
	WithFrequency(8 * physic.MegaHertz)(transport)
	assert.Equal(t, 8*physic.MegaHertz, transport.Frequency())
}
