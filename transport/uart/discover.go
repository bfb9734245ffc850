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

package uart

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"go.bug.st/serial/enumerator"
)

// ErrNoBridge is returned when no serial port looks like a bridge.
var ErrNoBridge = errors.New("no serial bridge found")

// PortInfo describes a serial port.
type PortInfo struct {
	Path         string
	VIDPID       string
	Product      string
	SerialNumber string
	USB          bool
}

// knownBridges maps the USB IDs of boards the bridge firmware runs on.
var knownBridges = map[string]string{
	"1A86:7523": "CH340",
	"1A86:55D4": "CH9102",
	"10C4:EA60": "CP210x",
	"0403:6001": "FT232R",
	"0403:6015": "FT231X",
	"2341:0043": "Arduino Uno",
	"2341:0042": "Arduino Mega",
	"2E8A:000A": "Raspberry Pi Pico",
}

// BridgeName returns the board name for a known bridge VID:PID.
func BridgeName(vidpid string) (string, bool) {
	name, ok := knownBridges[strings.ToUpper(vidpid)]
	return name, ok
}

// ListPorts returns the serial ports on this host.
func ListPorts() ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate serial ports: %w", err)
	}

	ports := make([]PortInfo, 0, len(details))
	for _, d := range details {
		p := PortInfo{
			Path:         d.Name,
			Product:      d.Product,
			SerialNumber: d.SerialNumber,
			USB:          d.IsUSB,
		}
		if d.IsUSB {
			p.VIDPID = strings.ToUpper(d.VID + ":" + d.PID)
		}
		ports = append(ports, p)
	}
	return ports, nil
}

// FindBridge returns the first port holding a known bridge board. Paths in
// ignore are skipped.
func FindBridge(ignore ...string) (PortInfo, error) {
	ports, err := ListPorts()
	if err != nil {
		return PortInfo{}, err
	}
	return selectBridge(ports, ignore)
}

func selectBridge(ports []PortInfo, ignore []string) (PortInfo, error) {
	for _, p := range ports {
		if isIgnored(p.Path, ignore) {
			continue
		}
		if _, ok := BridgeName(p.VIDPID); ok && p.USB {
			return p, nil
		}
	}
	return PortInfo{}, ErrNoBridge
}

func isIgnored(path string, ignore []string) bool {
	clean := filepath.Clean(path)
	return slices.ContainsFunc(ignore, func(p string) bool {
		return strings.EqualFold(filepath.Clean(p), clean)
	})
}
