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
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ZaparooProject/go-nrflite"
	"github.com/ZaparooProject/go-nrflite/listen"
)

func runListen(ctx context.Context, device *nrflite.Device, irq listen.InterruptLine, cfg *config, out io.Writer) error {
	session := listen.NewSession(device, &listen.Config{IRQ: irq})
	defer func() { _ = session.Close() }()

	if cfg.ack != "" {
		if err := session.AddAckData([]byte(cfg.ack), true); err != nil {
			return fmt.Errorf("failed to queue acknowledgment payload: %w", err)
		}
	}

	session.SetOnPacket(func(p listen.Packet) error {
		_, _ = fmt.Fprintf(out, "%s  %2d bytes  %-64s  %q\n",
			p.Received.Format("15:04:05.000"), len(p.Data), hex.EncodeToString(p.Data), p.Data)
		if cfg.ack != "" {
			// Each acknowledgment consumes the queued payload.
			return session.AddAckData([]byte(cfg.ack), false)
		}
		return nil
	})

	mode := "polling"
	if irq != nil {
		mode = "IRQ"
	}
	_, _ = fmt.Fprintf(out, "Listening as radio %d (%s). Press Ctrl+C to stop...\n", cfg.Radio.ID, mode)
	return session.Start(ctx) //nolint:wrapcheck // returned as is to main
}

func runSend(device *nrflite.Device, irq listen.InterruptLine, cfg *config, out io.Writer) error {
	session := listen.NewSession(device, &listen.Config{IRQ: irq})
	defer func() { _ = session.Close() }()

	session.SetOnAck(func(p listen.Packet) error {
		_, _ = fmt.Fprintf(out, "Ack payload: %q\n", p.Data)
		return nil
	})

	if err := session.Send(byte(cfg.to), []byte(cfg.send), cfg.sendType()); err != nil {
		return fmt.Errorf("failed to send to radio %d: %w", cfg.to, err)
	}
	_, _ = fmt.Fprintf(out, "Sent %d bytes to radio %d\n", len(cfg.send), cfg.to)
	return nil
}

func runScan(ctx context.Context, device *nrflite.Device, cfg *config, out io.Writer) error {
	if device.SharedPin() {
		return fmt.Errorf("scan: %w", nrflite.ErrSharedPinUnsupported)
	}

	_, _ = fmt.Fprintf(out, "Scanning channels 0-%d, %d samples each\n", nrflite.MaxChannel, cfg.measurements)
	for ch := 0; ch <= nrflite.MaxChannel; ch++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		hits, err := device.ScanChannel(byte(ch), cfg.measurements)
		if err != nil {
			return fmt.Errorf("failed to scan channel %d: %w", ch, err)
		}
		if hits == 0 {
			continue
		}
		bar := strings.Repeat("#", max(1, hits*40/cfg.measurements))
		_, _ = fmt.Fprintf(out, "%3d  %4d MHz  %4d  %s\n", ch, 2400+ch, hits, bar)
	}
	return nil
}

// stressReport summarises a -stress run.
type stressReport struct {
	Started     time.Time     `json:"started"`
	Failures    []sendFailure `json:"failures,omitempty"`
	Bitrate     string        `json:"bitrate"`
	Packets     int           `json:"packets"`
	Delivered   int           `json:"delivered"`
	Failed      int           `json:"failed"`
	Lost        int           `json:"lost_packets"`
	Retransmits int           `json:"last_retransmits"`
	To          int           `json:"to"`
	Channel     int           `json:"channel"`
	Duration    time.Duration `json:"duration_ns"`
}

type sendFailure struct {
	Error   string `json:"error"`
	DataHex string `json:"data_hex"`
	Index   int    `json:"index"`
}

func runStress(ctx context.Context, device *nrflite.Device, cfg *config, out io.Writer) error {
	report := stressReport{
		Started: time.Now(),
		Bitrate: device.Config().Bitrate.String(),
		Channel: int(device.Config().Channel),
		To:      cfg.to,
	}

	var buf [nrflite.MaxPayloadSize + 1]byte
	for i := range cfg.stress {
		if ctx.Err() != nil {
			break
		}
		if _, err := rand.Read(buf[:]); err != nil {
			return fmt.Errorf("failed to generate payload: %w", err)
		}
		payload := buf[1 : 1+int(buf[0])%nrflite.MaxPayloadSize+1]

		report.Packets++
		err := device.Send(byte(cfg.to), payload, cfg.sendType())
		switch {
		case err == nil:
			report.Delivered++
		case errors.Is(err, nrflite.ErrTransmitFailed):
			report.Failed++
			report.Failures = append(report.Failures, sendFailure{
				Index:   i,
				Error:   err.Error(),
				DataHex: hex.EncodeToString(payload),
			})
		default:
			return fmt.Errorf("stress send %d: %w", i, err)
		}
	}
	report.Duration = time.Since(report.Started)

	det, err := device.Details()
	if err != nil {
		return err //nolint:wrapcheck // already names the register
	}
	report.Lost = det.LostPackets()
	report.Retransmits = det.Retransmits()

	_, _ = fmt.Fprintf(out, "Sent %d packets to radio %d: %d delivered, %d failed (%.1f%%) in %s\n",
		report.Packets, report.To, report.Delivered, report.Failed,
		100*float64(report.Delivered)/float64(max(report.Packets, 1)), report.Duration.Round(time.Millisecond))

	if cfg.report == "" {
		return nil
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if err := os.WriteFile(cfg.report, data, 0o600); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	_, _ = fmt.Fprintf(out, "Report written to %s\n", cfg.report)
	return nil
}
