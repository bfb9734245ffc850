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
	"strconv"
	"strings"
)

// Status is the value of the STATUS register.
type Status byte

// Pipe numbers reported in the RX_P_NO field of STATUS.
const (
	PipeAck     = 0 // acknowledgment payloads from the radio we sent to
	PipeData    = 1 // packets from radios sending to us
	PipeUnused  = 6
	PipeRxEmpty = 7
)

// TxOK reports whether the last packet was sent (and acknowledged when
// an acknowledgment was requested).
func (s Status) TxOK() bool { return s&statusTxDS != 0 }

// TxFailed reports whether the hardware gave up after its retry budget.
func (s Status) TxFailed() bool { return s&statusMaxRT != 0 }

// RxReady reports whether a packet arrived in the receive queue.
func (s Status) RxReady() bool { return s&statusRxDR != 0 }

// TxFull reports whether the transmit queue is full.
func (s Status) TxFull() bool { return s&statusTxFull != 0 }

// RxPipe returns the pipe number of the packet at the head of the receive
// queue. PipeRxEmpty means the queue is empty.
func (s Status) RxPipe() int {
	return int(s&statusRxPipe) >> 1
}

func (s Status) String() string {
	return flags("RxDR+ TxDS+ MaxRT+ TxFull+", statusAllFlags|statusTxFull, byte(s)) +
		" RxPipe:" + strconv.Itoa(s.RxPipe())
}

// FIFOStatus is the value of the FIFO_STATUS register. Both queues hold up
// to three packets.
type FIFOStatus byte

// TxEmpty reports whether the transmit queue is empty.
func (f FIFOStatus) TxEmpty() bool { return f&fifoTxEmpty != 0 }

// TxFull reports whether the transmit queue holds three packets.
func (f FIFOStatus) TxFull() bool { return f&fifoTxFull != 0 }

// RxEmpty reports whether the receive queue is empty.
func (f FIFOStatus) RxEmpty() bool { return f&fifoRxEmpty != 0 }

// RxFull reports whether the receive queue holds three packets.
func (f FIFOStatus) RxFull() bool { return f&fifoRxFull != 0 }

func (f FIFOStatus) String() string {
	return flags("TxReuse+ TxFull+ TxEmpty+ RxFull+ RxEmpty+",
		fifoTxReuse|fifoTxFull|fifoTxEmpty|fifoRxFull|fifoRxEmpty, byte(f))
}

// flags renders the bits of b selected by mask into the '+' placeholders of
// f, most significant bit first.
func flags(f string, mask, b byte) string {
	var sb strings.Builder
	m := byte(0x80)
	for i := range len(f) {
		if f[i] != '+' {
			_ = sb.WriteByte(f[i])
			continue
		}
		for m != 0 && mask&m == 0 {
			m >>= 1
		}
		if b&m == 0 {
			_ = sb.WriteByte('-')
		} else {
			_ = sb.WriteByte('+')
		}
		m >>= 1
	}
	return sb.String()
}
