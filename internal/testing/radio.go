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

package testing

import (
	"bytes"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

// Register addresses, opcodes and bits mirror the nrflite package to avoid
// an import cycle.
const (
	RegConfig     = 0x00
	RegEnAA       = 0x01
	RegEnRxAddr   = 0x02
	RegSetupAW    = 0x03
	RegSetupRetr  = 0x04
	RegRFCh       = 0x05
	RegRFSetup    = 0x06
	RegStatus     = 0x07
	RegObserveTx  = 0x08
	RegRPD        = 0x09
	RegRxAddrP0   = 0x0A
	RegRxAddrP1   = 0x0B
	RegTxAddr     = 0x10
	RegRxPwP0     = 0x11
	RegRxPwP1     = 0x12
	RegFIFOStatus = 0x17
	RegDynPD      = 0x1C
	RegFeature    = 0x1D
)

const (
	cmdWriteRegister     = 0x20
	cmdReadPayloadWidth  = 0x60
	cmdReadPayload       = 0x61
	cmdWritePayload      = 0xA0
	cmdWriteAckPayload   = 0xA8
	cmdWritePayloadNoAck = 0xB0
	cmdFlushTx           = 0xE1
	cmdFlushRx           = 0xE2
	registerMask         = 0x1F
)

// STATUS and CONFIG bits. The CONFIG mask bits share positions with the
// STATUS flags they mask.
const (
	FlagRxDR  = 1 << 6
	FlagTxDS  = 1 << 5
	FlagMaxRT = 1 << 4
	AllFlags  = FlagRxDR | FlagTxDS | FlagMaxRT

	ConfigPrimRx = 1 << 0
	ConfigPwrUp  = 1 << 1

	statusTxFull = 1 << 0
	rfSetupRate  = 0x28
	queueSlots   = 3
	pipeEmpty    = 7
)

// resetRegisters are the power-on values from the datasheet.
func resetRegisters() map[byte][]byte {
	return map[byte][]byte{
		RegConfig:    {0x08},
		RegEnAA:      {0x3F},
		RegEnRxAddr:  {0x03},
		RegSetupAW:   {0x03},
		RegSetupRetr: {0x03},
		RegRFCh:      {0x02},
		RegRFSetup:   {0x0E},
		RegRxAddrP0:  {0xE7, 0xE7, 0xE7, 0xE7, 0xE7},
		RegRxAddrP1:  {0xC2, 0xC2, 0xC2, 0xC2, 0xC2},
		RegTxAddr:    {0xE7, 0xE7, 0xE7, 0xE7, 0xE7},
		RegRxPwP0:    {0x00},
		RegRxPwP1:    {0x00},
		RegDynPD:     {0x00},
		RegFeature:   {0x00},
	}
}

type packet struct {
	data  []byte
	pipe  int
	noAck bool
}

// CommandLogEntry records one transaction seen by a VirtualRadio.
type CommandLogEntry struct {
	Data   []byte
	Cmd    byte
	Enable bool // level of the enable line during the transaction
}

// ConfigWrite records a write to CONFIG together with the enable line level
// at the time.
type ConfigWrite struct {
	Old    byte
	New    byte
	Enable bool
}

// VirtualRadio simulates an nRF24L01+ at the register level: register file,
// 3-slot queues, dynamic payloads, auto-acknowledgment with ack payloads and
// the interrupt flags. Packets move between radios sharing an Air.
type VirtualRadio struct {
	air          *Air
	regs         map[byte][]byte
	enable       *EnableLine
	irq          *gpiotest.Pin
	name         string
	rx           []packet
	tx           []packet
	commands     []CommandLogEntry
	configWrites []ConfigWrite
	forcedWidth  int
	maxTx        int
	lost         int
	retries      int
	flags        byte
	ce           bool
}

// EnableLine is the radio's CE input. It implements gpio.PinIO so it can be
// passed as a dedicated enable pin or returned as a shared select pin.
type EnableLine struct {
	*gpiotest.Pin
	radio *VirtualRadio
}

// Out implements gpio.PinOut. A rising edge in transmit mode sends the
// packet at the head of the transmit queue.
func (l *EnableLine) Out(level gpio.Level) error {
	l.radio.air.mu.Lock()
	defer l.radio.air.mu.Unlock()
	l.radio.setEnable(level)
	return nil
}

func newRadio(air *Air, name string) *VirtualRadio {
	r := &VirtualRadio{
		air:  air,
		name: name,
		regs: resetRegisters(),
		irq:  &gpiotest.Pin{N: name + "_IRQ", L: gpio.High, EdgesChan: make(chan gpio.Level, 16)},
	}
	r.enable = &EnableLine{Pin: &gpiotest.Pin{N: name + "_CE"}, radio: r}
	return r
}

// Name returns the radio's name.
func (r *VirtualRadio) Name() string { return r.name }

// Enable returns the radio's CE line.
func (r *VirtualRadio) Enable() *EnableLine { return r.enable }

// IRQ returns the radio's active-low interrupt line. Every flag the CONFIG
// register does not mask pushes a falling edge.
func (r *VirtualRadio) IRQ() *gpiotest.Pin { return r.irq }

// Exchange runs one transaction: cmd followed by buf, which is overwritten
// with the bytes the radio clocks back.
func (r *VirtualRadio) Exchange(cmd byte, buf []byte) {
	r.air.mu.Lock()
	defer r.air.mu.Unlock()
	r.exchange(cmd, buf)
}

func (r *VirtualRadio) exchange(cmd byte, buf []byte) {
	r.commands = append(r.commands, CommandLogEntry{
		Cmd:    cmd,
		Data:   append([]byte(nil), buf...),
		Enable: r.ce,
	})

	switch {
	case cmd < cmdWriteRegister:
		r.readRegister(cmd&registerMask, buf)
	case cmd < 0x40:
		r.writeRegister(cmd&registerMask, buf)
	case cmd == cmdReadPayloadWidth:
		clear(buf)
		if len(buf) > 0 {
			buf[0] = r.payloadWidth()
		}
	case cmd == cmdReadPayload:
		r.readPayload(buf)
	case cmd == cmdWritePayload, cmd == cmdWritePayloadNoAck:
		r.queueTx(packet{data: append([]byte(nil), buf...), noAck: cmd == cmdWritePayloadNoAck})
		clear(buf)
	case cmd&0xF8 == cmdWriteAckPayload:
		r.queueTx(packet{data: append([]byte(nil), buf...), pipe: int(cmd & 0x07)})
		clear(buf)
	case cmd == cmdFlushTx:
		r.tx = nil
	case cmd == cmdFlushRx:
		r.rx = nil
		r.forcedWidth = 0
	default:
		clear(buf)
	}
}

func (r *VirtualRadio) readRegister(reg byte, buf []byte) {
	clear(buf)
	if len(buf) == 0 {
		return
	}
	switch reg {
	case RegStatus:
		buf[0] = r.status()
	case RegFIFOStatus:
		buf[0] = r.fifoStatus()
	case RegRPD:
		if r.air.carrier[r.reg(RegRFCh)] {
			buf[0] = 1
		}
	case RegObserveTx:
		buf[0] = byte(min(r.lost, 15)<<4 | min(r.retries, 15))
	default:
		copy(buf, r.regs[reg])
	}
}

func (r *VirtualRadio) writeRegister(reg byte, buf []byte) {
	if len(buf) == 0 {
		return
	}
	switch reg {
	case RegStatus:
		r.flags &^= buf[0] & AllFlags
		r.updateIRQ()
		return
	case RegFIFOStatus, RegRPD, RegObserveTx:
		return
	case RegConfig:
		r.configWrites = append(r.configWrites, ConfigWrite{Old: r.reg(RegConfig), New: buf[0], Enable: r.ce})
	case RegRFCh:
		r.lost = 0
	}
	r.regs[reg] = append([]byte(nil), buf...)
}

func (r *VirtualRadio) reg(reg byte) byte {
	if v := r.regs[reg]; len(v) > 0 {
		return v[0]
	}
	return 0
}

func (r *VirtualRadio) status() byte {
	s := r.flags
	if len(r.rx) == 0 {
		s |= pipeEmpty << 1
	} else {
		s |= byte(r.rx[0].pipe) << 1
	}
	if len(r.tx) >= queueSlots {
		s |= statusTxFull
	}
	return s
}

func (r *VirtualRadio) fifoStatus() byte {
	var f byte
	switch len(r.rx) {
	case 0:
		f |= 1 << 0
	case queueSlots:
		f |= 1 << 1
	}
	switch len(r.tx) {
	case 0:
		f |= 1 << 4
	case queueSlots:
		f |= 1 << 5
	}
	return f
}

func (r *VirtualRadio) payloadWidth() byte {
	if r.forcedWidth > 0 {
		return byte(r.forcedWidth)
	}
	if len(r.rx) == 0 {
		return 0
	}
	return byte(len(r.rx[0].data))
}

func (r *VirtualRadio) readPayload(buf []byte) {
	clear(buf)
	if len(r.rx) == 0 {
		return
	}
	copy(buf, r.rx[0].data)
	r.rx = r.rx[1:]
}

func (r *VirtualRadio) queueTx(p packet) {
	if len(r.tx) >= queueSlots {
		return
	}
	r.tx = append(r.tx, p)
	r.maxTx = max(r.maxTx, len(r.tx))
}

func (r *VirtualRadio) transmitting() bool {
	cfg := r.reg(RegConfig)
	return cfg&ConfigPwrUp != 0 && cfg&ConfigPrimRx == 0
}

func (r *VirtualRadio) listening() bool {
	cfg := r.reg(RegConfig)
	return r.ce && cfg&ConfigPwrUp != 0 && cfg&ConfigPrimRx != 0
}

func (r *VirtualRadio) setEnable(level gpio.Level) {
	_ = r.enable.Pin.Out(level)
	rising := !r.ce && level == gpio.High
	r.ce = level == gpio.High
	if rising {
		r.transmit(1)
	}
}

// transmit sends up to limit packets from the head of the transmit queue,
// all of them when limit is negative. It stops at MAX_RT like the chip.
func (r *VirtualRadio) transmit(limit int) {
	for n := 0; limit < 0 || n < limit; n++ {
		if !r.transmitting() || r.flags&FlagMaxRT != 0 || len(r.tx) == 0 {
			return
		}
		if !r.deliver(r.tx[0]) {
			return
		}
		r.tx = r.tx[1:]
	}
}

func (r *VirtualRadio) deliver(p packet) bool {
	peer := r.air.receiverFor(r)
	if p.noAck {
		if peer != nil {
			peer.receive(packet{data: p.data, pipe: 1})
		}
		r.raise(FlagTxDS)
		return true
	}

	if peer == nil || len(peer.rx) >= queueSlots {
		r.fail()
		return false
	}
	peer.receive(packet{data: p.data, pipe: 1})

	// The acknowledgment only reaches us when pipe 0 listens on the
	// destination address.
	if !bytes.Equal(r.regs[RegRxAddrP0], r.regs[RegTxAddr]) {
		r.fail()
		return false
	}
	if ack, ok := peer.takeAckPayload(1); ok {
		if len(r.rx) < queueSlots {
			r.rx = append(r.rx, packet{data: ack.data, pipe: 0})
			r.raise(FlagRxDR)
		}
		peer.raise(FlagTxDS)
	}
	r.retries = 0
	r.raise(FlagTxDS)
	return true
}

func (r *VirtualRadio) fail() {
	r.lost++
	r.retries = 15
	r.raise(FlagMaxRT)
}

func (r *VirtualRadio) receive(p packet) {
	if len(r.rx) >= queueSlots {
		return
	}
	r.rx = append(r.rx, p)
	r.raise(FlagRxDR)
}

func (r *VirtualRadio) takeAckPayload(pipe int) (packet, bool) {
	for i, p := range r.tx {
		if p.pipe == pipe && !r.transmitting() {
			r.tx = append(r.tx[:i:i], r.tx[i+1:]...)
			return p, true
		}
	}
	return packet{}, false
}

func (r *VirtualRadio) raise(flag byte) {
	before := r.flags
	r.flags |= flag
	if before&flag == 0 && r.reg(RegConfig)&flag == 0 {
		_ = r.irq.Out(gpio.Low)
		select {
		case r.irq.EdgesChan <- gpio.Low:
		default:
		}
	}
}

func (r *VirtualRadio) updateIRQ() {
	if r.flags == 0 {
		_ = r.irq.Out(gpio.High)
	}
}

// Inject places a packet in the receive queue as if it arrived on pipe.
func (r *VirtualRadio) Inject(pipe int, data []byte) {
	r.air.mu.Lock()
	defer r.air.mu.Unlock()
	r.receive(packet{data: append([]byte(nil), data...), pipe: pipe})
}

// ForcePayloadWidth makes R_RX_PL_WID report n until the receive queue is
// flushed, simulating a radio that lost sync.
func (r *VirtualRadio) ForcePayloadWidth(n int) {
	r.air.mu.Lock()
	r.forcedWidth = n
	r.air.mu.Unlock()
}

// RaiseFlags sets STATUS interrupt flags directly.
func (r *VirtualRadio) RaiseFlags(mask byte) {
	r.air.mu.Lock()
	defer r.air.mu.Unlock()
	for _, f := range []byte{FlagRxDR, FlagTxDS, FlagMaxRT} {
		if mask&f != 0 {
			r.raise(f)
		}
	}
}

// Flags returns the STATUS interrupt flags currently set.
func (r *VirtualRadio) Flags() byte {
	r.air.mu.Lock()
	defer r.air.mu.Unlock()
	return r.flags
}

// Register returns a copy of a stored register value.
func (r *VirtualRadio) Register(reg byte) []byte {
	r.air.mu.Lock()
	defer r.air.mu.Unlock()
	return append([]byte(nil), r.regs[reg]...)
}

// TxQueueLen returns the number of packets in the transmit queue.
func (r *VirtualRadio) TxQueueLen() int {
	r.air.mu.Lock()
	defer r.air.mu.Unlock()
	return len(r.tx)
}

// RxQueueLen returns the number of packets in the receive queue.
func (r *VirtualRadio) RxQueueLen() int {
	r.air.mu.Lock()
	defer r.air.mu.Unlock()
	return len(r.rx)
}

// MaxTxOccupancy returns the highest transmit queue length seen.
func (r *VirtualRadio) MaxTxOccupancy() int {
	r.air.mu.Lock()
	defer r.air.mu.Unlock()
	return r.maxTx
}

// Commands returns the transactions seen so far.
func (r *VirtualRadio) Commands() []CommandLogEntry {
	r.air.mu.Lock()
	defer r.air.mu.Unlock()
	return append([]CommandLogEntry(nil), r.commands...)
}

// CountWrites returns how many times reg was written.
func (r *VirtualRadio) CountWrites(reg byte) int {
	r.air.mu.Lock()
	defer r.air.mu.Unlock()
	n := 0
	for _, c := range r.commands {
		if c.Cmd == cmdWriteRegister|reg {
			n++
		}
	}
	return n
}

// ConfigWrites returns every CONFIG write with the enable level at the time.
func (r *VirtualRadio) ConfigWrites() []ConfigWrite {
	r.air.mu.Lock()
	defer r.air.mu.Unlock()
	return append([]ConfigWrite(nil), r.configWrites...)
}

// ClearLog forgets recorded transactions and CONFIG writes.
func (r *VirtualRadio) ClearLog() {
	r.air.mu.Lock()
	r.commands = nil
	r.configWrites = nil
	r.air.mu.Unlock()
}

// Air links the radios that can hear each other.
type Air struct {
	carrier map[byte]bool
	radios  []*VirtualRadio
	mu      sync.Mutex
}

// NewAir creates an empty medium.
func NewAir() *Air {
	return &Air{carrier: make(map[byte]bool)}
}

// NewRadio adds a powered-off radio to the medium.
func (a *Air) NewRadio(name string) *VirtualRadio {
	a.mu.Lock()
	defer a.mu.Unlock()
	r := newRadio(a, name)
	a.radios = append(a.radios, r)
	return r
}

// SetCarrier simulates another transmitter occupying channel, which the
// received power detector reports.
func (a *Air) SetCarrier(channel byte, on bool) {
	a.mu.Lock()
	a.carrier[channel] = on
	a.mu.Unlock()
}

// receiverFor finds a radio listening on the sender's channel, data rate and
// destination address.
func (a *Air) receiverFor(sender *VirtualRadio) *VirtualRadio {
	for _, r := range a.radios {
		if r == sender || !r.listening() {
			continue
		}
		if r.reg(RegRFCh) != sender.reg(RegRFCh) ||
			r.reg(RegRFSetup)&rfSetupRate != sender.reg(RegRFSetup)&rfSetupRate {
			continue
		}
		if r.reg(RegEnRxAddr)&0x02 == 0 {
			continue
		}
		if bytes.Equal(r.regs[RegRxAddrP1], sender.regs[RegTxAddr]) {
			return r
		}
	}
	return nil
}
