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

// nRF24L01 SPI command opcodes
const (
	cmdReadRegister       = 0x00
	cmdWriteRegister      = 0x20
	cmdReadPayloadWidth   = 0x60
	cmdReadPayload        = 0x61
	cmdWritePayload       = 0xA0
	cmdWriteAckPayload    = 0xA8 // OR'd with the pipe number
	cmdWritePayloadNoAck  = 0xB0
	cmdFlushTx            = 0xE1
	cmdFlushRx            = 0xE2
	cmdNOP                = 0xFF
	registerMask          = 0x1F
	ackPayloadPipeForData = 1
)

// Register addresses
const (
	regConfig     = 0x00
	regEnAA       = 0x01
	regEnRxAddr   = 0x02
	regSetupAW    = 0x03
	regSetupRetr  = 0x04
	regRFCh       = 0x05
	regRFSetup    = 0x06
	regStatus     = 0x07
	regObserveTx  = 0x08
	regRPD        = 0x09
	regRxAddrP0   = 0x0A
	regRxAddrP1   = 0x0B
	regTxAddr     = 0x10
	regRxPwP0     = 0x11
	regRxPwP1     = 0x12
	regFIFOStatus = 0x17
	regDynPD      = 0x1C
	regFeature    = 0x1D
)

// CONFIG register bits
const (
	configPrimRx    = 1 << 0
	configPwrUp     = 1 << 1
	configCRCO      = 1 << 2
	configEnCRC     = 1 << 3
	configMaskMaxRT = 1 << 4
	configMaskTxDS  = 1 << 5
	configMaskRxDR  = 1 << 6
)

// configRxMode powers the radio up as a primary receiver with CRC enabled.
const configRxMode = configPwrUp | configPrimRx | configEnCRC

// STATUS register bits
const (
	statusTxFull   = 1 << 0
	statusRxPipe   = 0x0E
	statusMaxRT    = 1 << 4
	statusTxDS     = 1 << 5
	statusRxDR     = 1 << 6
	statusAllFlags = statusRxDR | statusTxDS | statusMaxRT
)

// FIFO_STATUS register bits
const (
	fifoRxEmpty = 1 << 0
	fifoRxFull  = 1 << 1
	fifoTxEmpty = 1 << 4
	fifoTxFull  = 1 << 5
	fifoTxReuse = 1 << 6
)

// DYNPD and FEATURE register bits
const (
	dynpdPipe0     = 1 << 0
	dynpdPipe1     = 1 << 1
	featureDynAck  = 1 << 0
	featureAckPay  = 1 << 1
	featureDynPLen = 1 << 2
)

// RF_SETUP and SETUP_RETR values per bitrate. All use 0 dBm output power and
// 15 hardware retries.
const (
	rfSetup2Mbps   = 0x0E
	rfSetup1Mbps   = 0x06
	rfSetup250Kbps = 0x26
	setupRetr500   = 0x1F // 500 us between retries
	setupRetr1500  = 0x5F // 1500 us between retries
)
