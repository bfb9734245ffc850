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

package nrflite

import (
	"fmt"
	"strings"
)

// Details is a snapshot of the radio's registers.
type Details struct {
	Config     byte
	EnAA       byte
	EnRxAddr   byte
	SetupAW    byte
	SetupRetr  byte
	RFCh       byte
	RFSetup    byte
	Status     Status
	ObserveTx  byte
	RxPwP0     byte
	RxPwP1     byte
	FIFOStatus FIFOStatus
	DynPD      byte
	Feature    byte
	TxAddr     Address
	RxAddrP0   Address
	RxAddrP1   Address
}

// LostPackets returns the count of packets lost since the channel was last
// written, from OBSERVE_TX.
func (d Details) LostPackets() int { return int(d.ObserveTx >> 4) }

// Retransmits returns how many retries the last packet needed.
func (d Details) Retransmits() int { return int(d.ObserveTx & 0x0F) }

func (d Details) String() string {
	var sb strings.Builder
	regs := []struct {
		name string
		val  byte
	}{
		{"CONFIG", d.Config},
		{"EN_AA", d.EnAA},
		{"EN_RXADDR", d.EnRxAddr},
		{"SETUP_AW", d.SetupAW},
		{"SETUP_RETR", d.SetupRetr},
		{"RF_CH", d.RFCh},
		{"RF_SETUP", d.RFSetup},
		{"STATUS", byte(d.Status)},
		{"OBSERVE_TX", d.ObserveTx},
		{"RX_PW_P0", d.RxPwP0},
		{"RX_PW_P1", d.RxPwP1},
		{"FIFO_STATUS", byte(d.FIFOStatus)},
		{"DYNPD", d.DynPD},
		{"FEATURE", d.Feature},
	}
	for _, r := range regs {
		_, _ = fmt.Fprintf(&sb, "%-11s 0x%02X %08b\n", r.name, r.val, r.val)
	}
	_, _ = fmt.Fprintf(&sb, "%-11s %s\n", "status", d.Status)
	_, _ = fmt.Fprintf(&sb, "%-11s %s\n", "fifo", d.FIFOStatus)
	_, _ = fmt.Fprintf(&sb, "%-11s %s\n", "TX_ADDR", d.TxAddr)
	_, _ = fmt.Fprintf(&sb, "%-11s %s\n", "RX_ADDR_P0", d.RxAddrP0)
	_, _ = fmt.Fprintf(&sb, "%-11s %s", "RX_ADDR_P1", d.RxAddrP1)
	return sb.String()
}

// Details reads every configuration register.
func (d *Device) Details() (Details, error) {
	var det Details
	single := []struct {
		dst *byte
		reg byte
	}{
		{&det.Config, regConfig},
		{&det.EnAA, regEnAA},
		{&det.EnRxAddr, regEnRxAddr},
		{&det.SetupAW, regSetupAW},
		{&det.SetupRetr, regSetupRetr},
		{&det.RFCh, regRFCh},
		{&det.RFSetup, regRFSetup},
		{(*byte)(&det.Status), regStatus},
		{&det.ObserveTx, regObserveTx},
		{&det.RxPwP0, regRxPwP0},
		{&det.RxPwP1, regRxPwP1},
		{(*byte)(&det.FIFOStatus), regFIFOStatus},
		{&det.DynPD, regDynPD},
		{&det.Feature, regFeature},
	}
	for _, s := range single {
		v, err := d.readRegister(s.reg)
		if err != nil {
			return det, fmt.Errorf("failed to read register 0x%02X: %w", s.reg, err)
		}
		*s.dst = v
	}

	addrs := []struct {
		dst *Address
		reg byte
	}{
		{&det.TxAddr, regTxAddr},
		{&det.RxAddrP0, regRxAddrP0},
		{&det.RxAddrP1, regRxAddrP1},
	}
	for _, a := range addrs {
		if err := d.readRegisterInto(a.reg, a.dst[:]); err != nil {
			return det, fmt.Errorf("failed to read register 0x%02X: %w", a.reg, err)
		}
	}
	return det, nil
}

// PrintDetails writes the register snapshot to the diagnostics writer set
// with WithDiagnostics, or to the debug log when there is none.
func (d *Device) PrintDetails() error {
	det, err := d.Details()
	if err != nil {
		return err
	}
	if d.diag == nil {
		Debugln(det.String())
		return nil
	}
	_, err = fmt.Fprintln(d.diag, det.String())
	return err
}
