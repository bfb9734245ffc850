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

package main

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ZaparooProject/go-nrflite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nrflite.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestParseConfig_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := parseConfig(nil, io.Discard)
	require.NoError(t, err)

	assert.Equal(t, "spi", cfg.Transport.Type)
	assert.Equal(t, "GPIO25", cfg.Transport.CE)
	assert.Equal(t, 500*time.Microsecond, cfg.Transport.Discharge)
	assert.Equal(t, 1, cfg.Radio.ID)
	assert.Equal(t, nrflite.DefaultChannel, cfg.Radio.Channel)
	assert.Equal(t, nrflite.RequireAck, cfg.sendType())

	rc := cfg.radioConfig()
	assert.Equal(t, byte(1), rc.ID)
	assert.Equal(t, nrflite.Bitrate2Mbps, rc.Bitrate)
	assert.Equal(t, byte(nrflite.DefaultChannel), rc.Channel)
}

func TestParseConfig_File(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
transport:
  type: twowire
  data: GPIO17
  clock: GPIO27
  discharge: 800us
radio:
  id: 7
  channel: 42
  bitrate: 250kbps
log_dir: /tmp/nrflite
`)

	cfg, err := parseConfig([]string{"-config", path}, io.Discard)
	require.NoError(t, err)

	assert.Equal(t, "twowire", cfg.Transport.Type)
	assert.Equal(t, "GPIO17", cfg.Transport.Data)
	assert.Equal(t, "GPIO27", cfg.Transport.Clock)
	assert.Equal(t, 800*time.Microsecond, cfg.Transport.Discharge)
	assert.Equal(t, "GPIO25", cfg.Transport.CE, "unset keys keep their defaults")
	assert.Equal(t, 7, cfg.Radio.ID)
	assert.Equal(t, 42, cfg.Radio.Channel)
	assert.Equal(t, nrflite.Bitrate250Kbps, cfg.radioConfig().Bitrate)
	assert.Equal(t, "/tmp/nrflite", cfg.LogDir)
}

func TestParseConfig_FlagsOverrideFile(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "radio:\n  id: 7\n  channel: 42\n")

	cfg, err := parseConfig([]string{"-config", path, "-channel", "9", "-noack"}, io.Discard)
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Radio.ID, "file value kept when the flag is not set")
	assert.Equal(t, 9, cfg.Radio.Channel)
	assert.Equal(t, nrflite.NoAck, cfg.sendType())
}

func TestParseConfig_EmptyFile(t *testing.T) {
	t.Parallel()

	cfg, err := parseConfig([]string{"-config", writeConfig(t, "")}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Radio.ID)
}

func TestParseConfig_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		wantErr error
		name    string
		file    string
		args    []string
	}{
		{
			name:    "RadioIDZero",
			args:    []string{"-id", "0"},
			wantErr: nrflite.ErrInvalidRadioID,
		},
		{
			name: "ChannelTooHigh",
			args: []string{"-channel", "126"},
		},
		{
			name: "UnknownBitrate",
			args: []string{"-bitrate", "3mbps"},
		},
		{
			name: "SendWithoutDestination",
			args: []string{"-send", "hello"},
		},
		{
			name:    "SendTooLong",
			args:    []string{"-send", "0123456789012345678901234567890123", "-to", "2"},
			wantErr: nrflite.ErrPayloadTooLarge,
		},
		{
			name: "TwoWireWithoutPins",
			args: []string{"-transport", "twowire"},
		},
		{
			name: "UnknownTransport",
			args: []string{"-transport", "i2c"},
		},
		{
			name: "ScanWithoutMeasurements",
			args: []string{"-scan", "-measurements", "0"},
		},
		{
			name: "UnknownFileKey",
			file: "radio:\n  power: high\n",
		},
		{
			name: "MissingFile",
			args: []string{"-config", filepath.Join(os.TempDir(), "does-not-exist.yaml")},
		},
		{
			name: "UnknownFlag",
			args: []string{"-frequency", "2400"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			args := tt.args
			if tt.file != "" {
				args = append([]string{"-config", writeConfig(t, tt.file)}, args...)
			}

			_, err := parseConfig(args, io.Discard)
			require.Error(t, err)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}
