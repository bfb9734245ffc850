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
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ZaparooProject/go-nrflite"
	"gopkg.in/yaml.v3"
)

// config is the merged result of the YAML file and command-line flags.
// Flags that are set explicitly win over the file.
type config struct {
	Transport transportConfig `yaml:"transport"`
	Radio     radioConfig     `yaml:"radio"`
	LogDir    string          `yaml:"log_dir"`

	send         string
	ack          string
	report       string
	to           int
	measurements int
	stress       int
	noAck        bool
	scan         bool
	details      bool
	debug        bool
}

type radioConfig struct {
	Bitrate string `yaml:"bitrate"`
	ID      int    `yaml:"id"`
	Channel int    `yaml:"channel"`
}

type transportConfig struct {
	Type      string        `yaml:"type"`
	SPIPort   string        `yaml:"spi_port"`
	CSN       string        `yaml:"csn"`
	CE        string        `yaml:"ce"`
	IRQ       string        `yaml:"irq"`
	Data      string        `yaml:"data"`
	Clock     string        `yaml:"clock"`
	Port      string        `yaml:"port"`
	Discharge time.Duration `yaml:"discharge"`
	SPIMHz    int           `yaml:"spi_mhz"`
}

func defaultConfig() *config {
	return &config{
		Transport: transportConfig{
			Type:      "spi",
			CE:        "GPIO25",
			Port:      "auto",
			Discharge: 500 * time.Microsecond,
			SPIMHz:    4,
		},
		Radio: radioConfig{
			ID:      1,
			Channel: nrflite.DefaultChannel,
			Bitrate: "2mbps",
		},
		measurements: 100,
	}
}

// loadFile merges a YAML file over cfg.
func loadFile(cfg *config, path string) error {
	f, err := os.Open(path) // #nosec G304 -- path comes from the operator
	if err != nil {
		return fmt.Errorf("failed to open config %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

// parseConfig reads args. The -config file is applied first, then every
// flag the user set.
func parseConfig(args []string, stderr io.Writer) (*config, error) {
	cfg := defaultConfig()
	fs := flag.NewFlagSet("nrflite", flag.ContinueOnError)
	fs.SetOutput(stderr)

	configPath := fs.String("config", "", "YAML file with radio and transport settings")
	flags := defaultConfig()
	fs.StringVar(&flags.Transport.Type, "transport", flags.Transport.Type, "Bus: spi, twowire or uart")
	fs.StringVar(&flags.Transport.SPIPort, "spi-port", "", "SPI port (first available if empty)")
	fs.IntVar(&flags.Transport.SPIMHz, "spi-mhz", flags.Transport.SPIMHz, "SPI clock in MHz")
	fs.StringVar(&flags.Transport.CSN, "csn", "", "GPIO driving CSN (controller chip select if empty)")
	fs.StringVar(&flags.Transport.CE, "ce", flags.Transport.CE, "GPIO driving CE (same as -csn to share one pin)")
	fs.StringVar(&flags.Transport.IRQ, "irq", "", "GPIO connected to IRQ (poll if empty)")
	fs.StringVar(&flags.Transport.Data, "data", "", "Two-wire data GPIO")
	fs.StringVar(&flags.Transport.Clock, "clock", "", "Two-wire clock GPIO")
	fs.DurationVar(&flags.Transport.Discharge, "discharge", flags.Transport.Discharge, "Two-wire select capacitor discharge time")
	fs.StringVar(&flags.Transport.Port, "port", flags.Transport.Port, "Serial bridge port, or auto")
	fs.IntVar(&flags.Radio.ID, "id", flags.Radio.ID, "This radio's ID (1-255)")
	fs.IntVar(&flags.Radio.Channel, "channel", flags.Radio.Channel, "Channel (0-125)")
	fs.StringVar(&flags.Radio.Bitrate, "bitrate", flags.Radio.Bitrate, "Bitrate: 2mbps, 1mbps or 250kbps")
	fs.StringVar(&flags.LogDir, "log-dir", "", "Write a debug session log in this directory")

	fs.StringVar(&cfg.send, "send", "", "Send this text and exit")
	fs.IntVar(&cfg.to, "to", 0, "Destination radio ID for -send and -stress")
	fs.BoolVar(&cfg.noAck, "noack", false, "Send without requesting an acknowledgment")
	fs.StringVar(&cfg.ack, "ack", "", "Acknowledgment payload returned to senders while listening")
	fs.BoolVar(&cfg.scan, "scan", false, "Count carrier detections on every channel and exit")
	fs.IntVar(&cfg.measurements, "measurements", cfg.measurements, "Samples per channel for -scan")
	fs.BoolVar(&cfg.details, "details", false, "Print the radio registers and exit")
	fs.IntVar(&cfg.stress, "stress", 0, "Send this many random packets and report delivery")
	fs.StringVar(&cfg.report, "report", "", "Write the -stress report as JSON to this file")
	fs.BoolVar(&cfg.debug, "debug", false, "Enable debug output")

	if err := fs.Parse(args); err != nil {
		return nil, err //nolint:wrapcheck // flag already printed usage
	}

	if *configPath != "" {
		if err := loadFile(cfg, *configPath); err != nil {
			return nil, err
		}
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "transport":
			cfg.Transport.Type = flags.Transport.Type
		case "spi-port":
			cfg.Transport.SPIPort = flags.Transport.SPIPort
		case "spi-mhz":
			cfg.Transport.SPIMHz = flags.Transport.SPIMHz
		case "csn":
			cfg.Transport.CSN = flags.Transport.CSN
		case "ce":
			cfg.Transport.CE = flags.Transport.CE
		case "irq":
			cfg.Transport.IRQ = flags.Transport.IRQ
		case "data":
			cfg.Transport.Data = flags.Transport.Data
		case "clock":
			cfg.Transport.Clock = flags.Transport.Clock
		case "discharge":
			cfg.Transport.Discharge = flags.Transport.Discharge
		case "port":
			cfg.Transport.Port = flags.Transport.Port
		case "id":
			cfg.Radio.ID = flags.Radio.ID
		case "channel":
			cfg.Radio.Channel = flags.Radio.Channel
		case "bitrate":
			cfg.Radio.Bitrate = flags.Radio.Bitrate
		case "log-dir":
			cfg.LogDir = flags.LogDir
		}
	})

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *config) validate() error {
	if c.Radio.ID < 1 || c.Radio.ID > 255 {
		return fmt.Errorf("radio id %d: %w", c.Radio.ID, nrflite.ErrInvalidRadioID)
	}
	if c.Radio.Channel < 0 || c.Radio.Channel > nrflite.MaxChannel {
		return fmt.Errorf("channel %d is outside 0-%d", c.Radio.Channel, nrflite.MaxChannel)
	}
	if _, err := nrflite.ParseBitrate(c.Radio.Bitrate); err != nil {
		return err //nolint:wrapcheck // already names the value
	}
	if (c.send != "" || c.stress > 0) && (c.to < 1 || c.to > 255) {
		return errors.New("-send and -stress need -to with a radio ID (1-255)")
	}
	if len(c.send) > nrflite.MaxPayloadSize || len(c.ack) > nrflite.MaxPayloadSize {
		return fmt.Errorf("text is longer than %d bytes: %w", nrflite.MaxPayloadSize, nrflite.ErrPayloadTooLarge)
	}
	if c.scan && c.measurements < 1 {
		return errors.New("-measurements must be at least 1")
	}
	switch c.Transport.Type {
	case "spi", "uart":
	case "twowire":
		if c.Transport.Data == "" || c.Transport.Clock == "" {
			return errors.New("twowire transport needs -data and -clock")
		}
	default:
		return fmt.Errorf("unsupported transport type: %s", c.Transport.Type)
	}
	return nil
}

func (c *config) radioConfig() nrflite.RadioConfig {
	bitrate, _ := nrflite.ParseBitrate(c.Radio.Bitrate)
	return nrflite.RadioConfig{
		ID:      byte(c.Radio.ID),
		Bitrate: bitrate,
		Channel: byte(c.Radio.Channel),
	}
}

func (c *config) sendType() nrflite.SendType {
	if c.noAck {
		return nrflite.NoAck
	}
	return nrflite.RequireAck
}
