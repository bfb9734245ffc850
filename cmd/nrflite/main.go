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

// Command nrflite sends, receives and inspects packets on an nRF24L01
// attached over SPI, two GPIOs, or a USB serial bridge.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/ZaparooProject/go-nrflite"
	"github.com/ZaparooProject/go-nrflite/listen"
)

func run(ctx context.Context, cfg *config, out io.Writer) error {
	transport, opts, err := openTransport(cfg.Transport)
	if err != nil {
		return err
	}

	irq, err := openIRQ(cfg.Transport.IRQ)
	if err != nil {
		_ = transport.Close()
		return err
	}

	opts = append(opts, nrflite.WithDiagnostics(out))
	device, err := nrflite.New(transport, cfg.radioConfig(), opts...)
	if err != nil {
		_ = transport.Close()
		return fmt.Errorf("failed to create device: %w", err)
	}
	defer func() {
		if err := device.Close(); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Failed to close device: %v\n", err)
		}
	}()

	if err := device.Init(); err != nil {
		return fmt.Errorf("failed to initialize radio: %w", err)
	}
	if cfg.debug {
		_, _ = fmt.Fprintf(out, "Radio %d on channel %d at %s (shared pin: %t)\n",
			cfg.Radio.ID, device.Config().Channel, device.Config().Bitrate, device.SharedPin())
	}

	return runMode(ctx, device, irq, cfg, out)
}

// runMode dispatches on the mode flags. Listening is the default.
func runMode(ctx context.Context, device *nrflite.Device, irq listen.InterruptLine, cfg *config, out io.Writer) error {
	switch {
	case cfg.details:
		return device.PrintDetails()
	case cfg.scan:
		return runScan(ctx, device, cfg, out)
	case cfg.send != "":
		return runSend(device, irq, cfg, out)
	case cfg.stress > 0:
		return runStress(ctx, device, cfg, out)
	default:
		return runListen(ctx, device, irq, cfg, out)
	}
}

func main() {
	os.Exit(mainWithExitCode(os.Args[1:]))
}

func mainWithExitCode(args []string) int {
	cfg, err := parseConfig(args, os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}

	if cfg.debug {
		nrflite.SetDebugEnabled(true)
	}
	if cfg.LogDir != "" {
		path, err := nrflite.InitSessionLog(cfg.LogDir)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		defer func() { _ = nrflite.CloseSessionLog() }()
		_, _ = fmt.Fprintf(os.Stderr, "Logging to %s\n", path)
	}

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		_, _ = fmt.Print("\nShutting down gracefully...\n")
		cancel()
	}()

	if err := run(ctx, cfg, os.Stdout); err != nil {
		if errors.Is(err, context.Canceled) {
			return 0
		}
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
