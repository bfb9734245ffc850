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
	"fmt"

	"github.com/ZaparooProject/go-nrflite"
	"github.com/ZaparooProject/go-nrflite/listen"
	"github.com/ZaparooProject/go-nrflite/transport/spi"
	"github.com/ZaparooProject/go-nrflite/transport/twowire"
	"github.com/ZaparooProject/go-nrflite/transport/uart"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

// openTransport opens the configured bus and returns the device options it
// needs, such as the CE pin.
func openTransport(cfg transportConfig) (nrflite.Transport, []nrflite.Option, error) {
	switch cfg.Type {
	case "spi":
		transport, err := spi.New(cfg.SPIPort, cfg.CSN, spi.WithFrequency(physic.Frequency(cfg.SPIMHz)*physic.MegaHertz))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create SPI transport: %w", err)
		}
		// An empty CE or one named like CSN leaves the device on the
		// transport's select pin.
		if cfg.CE == "" || cfg.CE == cfg.CSN {
			return transport, nil, nil
		}
		ce := gpioreg.ByName(cfg.CE)
		if ce == nil {
			_ = transport.Close()
			return nil, nil, fmt.Errorf("failed to find CE pin %s", cfg.CE)
		}
		return transport, []nrflite.Option{nrflite.WithEnablePin(ce)}, nil

	case "twowire":
		transport, err := twowire.New(cfg.Data, cfg.Clock, twowire.WithDischarge(cfg.Discharge))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create two-wire transport: %w", err)
		}
		return transport, nil, nil

	case "uart":
		path := cfg.Port
		if path == "" || path == "auto" {
			port, err := uart.FindBridge()
			if err != nil {
				return nil, nil, fmt.Errorf("failed to find serial bridge: %w", err)
			}
			path = port.Path
		}
		transport, err := uart.New(path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create UART transport: %w", err)
		}
		return transport, []nrflite.Option{nrflite.WithEnablePin(transport.Enable())}, nil

	default:
		return nil, nil, fmt.Errorf("unsupported transport type: %s", cfg.Type)
	}
}

// openIRQ configures the named pin for falling edges, or returns nil when
// none is configured.
func openIRQ(name string) (listen.InterruptLine, error) {
	if name == "" {
		return nil, nil
	}
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("failed to find IRQ pin %s", name)
	}
	if err := pin.In(gpio.PullUp, gpio.FallingEdge); err != nil {
		return nil, fmt.Errorf("failed to configure IRQ pin %s: %w", name, err)
	}
	return pin, nil
}
