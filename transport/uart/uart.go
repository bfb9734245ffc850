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

// Package uart talks to an nRF24L01 through a USB-serial bridge
// microcontroller. Each exchange travels as one SLIP-stuffed request frame
// answered by one response frame; the bridge also owns the radio's CE pin.
package uart

import (
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"
	"time"

	"github.com/ZaparooProject/go-nrflite"
	"github.com/ZaparooProject/go-nrflite/internal/syncutil"
	"go.bug.st/serial"
	"periph.io/x/conn/v3/gpio"
)

const (
	// BaudRate is the bridge firmware's fixed line speed.
	BaudRate = 115200

	protocolVersion = 0x01
	opTransfer      = 0x01
	opEnable        = 0x02

	codeOK         = 0x00
	codeFail       = 0x80
	codeBadVersion = 0x90
	codeBadCommand = 0x91

	slipEnd    = 0xC0
	slipEsc    = 0xDB
	slipEscEnd = 0xDC
	slipEscEsc = 0xDD

	// Empty reads tolerated while waiting for a response. Each one lasts the
	// port read timeout.
	maxIdleReads = 20
	traceDepth   = 8
)

// ErrBridge is returned when the bridge answers with a failure code.
var ErrBridge = errors.New("bridge rejected request")

type drainer interface {
	Drain() error
}

// Transport implements nrflite.Transport over a serial bridge.
type Transport struct {
	port     io.ReadWriter
	trace    *nrflite.TraceBuffer
	enable   *EnableLine
	portName string
	mu       syncutil.Mutex
	closed   bool
}

// EnableLine is the bridge's CE pin. It satisfies nrflite.Line.
type EnableLine struct {
	t     *Transport
	level gpio.Level
}

// readTimeout is the port read timeout. 50ms works on Linux and macOS;
// Windows USB-serial drivers need longer.
func readTimeout() time.Duration {
	if runtime.GOOS == "windows" {
		return 100 * time.Millisecond
	}
	return 50 * time.Millisecond
}

// New opens the serial bridge on portName, e.g. "/dev/ttyUSB0" or "COM3".
func New(portName string) (*Transport, error) {
	port, err := serial.Open(portName, &serial.Mode{
		BaudRate: BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open UART port %s: %w", portName, err)
	}

	if err := port.SetReadTimeout(readTimeout()); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to set UART read timeout: %w", err)
	}

	return NewFromPort(port, portName), nil
}

// NewFromPort wraps an already open connection. Reads must return (0, nil)
// on timeout, as serial.Port does.
func NewFromPort(port io.ReadWriter, name string) *Transport {
	t := &Transport{
		port:     port,
		portName: name,
		trace:    nrflite.NewTraceBuffer(string(nrflite.TransportUART), name, traceDepth),
	}
	t.enable = &EnableLine{t: t, level: gpio.Low}
	return t
}

// Transfer implements nrflite.Transport.
func (t *Transport) Transfer(cmd byte, buf []byte) error {
	if len(buf) > nrflite.MaxPayloadSize {
		return fmt.Errorf("transfer 0x%02X: %w", cmd, nrflite.ErrPayloadTooLarge)
	}

	req := make([]byte, 0, len(buf)+1)
	req = append(req, cmd)
	req = append(req, buf...)

	t.mu.Lock()
	defer t.mu.Unlock()

	resp, err := t.roundTrip(opTransfer, req)
	if err != nil {
		return err
	}
	if len(resp) != len(buf)+1 {
		return t.trace.WrapError(nrflite.NewFrameCorruptedError("transfer", t.portName))
	}
	copy(buf, resp[1:])
	return nil
}

// Enable returns the bridge's CE pin.
func (t *Transport) Enable() *EnableLine {
	return t.enable
}

// Out drives CE through the bridge.
func (l *EnableLine) Out(level gpio.Level) error {
	l.t.mu.Lock()
	defer l.t.mu.Unlock()

	var v byte
	if level == gpio.High {
		v = 1
	}
	if _, err := l.t.roundTrip(opEnable, []byte{v}); err != nil {
		return err
	}
	l.level = level
	return nil
}

// Read returns the last level written.
func (l *EnableLine) Read() gpio.Level {
	l.t.mu.Lock()
	defer l.t.mu.Unlock()
	return l.level
}

// roundTrip sends one request and returns the response payload. t.mu must
// be held.
func (t *Transport) roundTrip(op byte, payload []byte) ([]byte, error) {
	if t.closed {
		return nil, nrflite.NewTransportError("transfer", t.portName, nrflite.ErrTransportClosed,
			nrflite.ErrorTypePermanent)
	}

	req := make([]byte, 0, len(payload)+3)
	req = append(req, protocolVersion, op, byte(len(payload)))
	req = append(req, payload...)
	t.trace.RecordTX(req, fmt.Sprintf("Op 0x%02X", op))

	if err := t.writeFrame(stuff(req)); err != nil {
		return nil, t.trace.WrapError(err)
	}

	resp, err := t.readFrame()
	if err != nil {
		return nil, t.trace.WrapError(err)
	}
	t.trace.RecordRX(resp, fmt.Sprintf("Code 0x%02X", resp[2]))

	switch {
	case resp[0] != protocolVersion || resp[1] != op:
		nrflite.Debugf("bridge answered version 0x%02X op 0x%02X to op 0x%02X", resp[0], resp[1], op)
		return nil, t.trace.WrapError(nrflite.NewFrameCorruptedError("response", t.portName))
	case resp[2] != codeOK:
		err := fmt.Errorf("%w: %s", ErrBridge, codeName(resp[2]))
		return nil, t.trace.WrapError(nrflite.NewTransportError("response", t.portName, err,
			nrflite.ErrorTypeTransient))
	}
	return resp[4:], nil
}

func (t *Transport) writeFrame(frame []byte) error {
	n, err := t.port.Write(frame)
	if err != nil {
		return nrflite.NewTransportError("write", t.portName, err, nrflite.ErrorTypeTransient)
	}
	if n != len(frame) {
		return nrflite.NewTransportWriteError("write", t.portName)
	}
	return t.drainWithRetry()
}

// readFrame reads one response frame: version, op, code, length, payload.
// Bytes before the first frame delimiter are skipped.
func (t *Transport) readFrame() ([]byte, error) {
	var (
		frame   []byte
		started bool
		esc     bool
		idle    int
		chunk   [64]byte
	)

	for {
		n, err := t.port.Read(chunk[:])
		if err != nil {
			return nil, nrflite.NewTransportError("read", t.portName, err, nrflite.ErrorTypeTransient)
		}
		if n == 0 {
			idle++
			if idle >= maxIdleReads {
				return nil, nrflite.NewTransportReadError("read", t.portName)
			}
			continue
		}

		for _, b := range chunk[:n] {
			switch {
			case b == slipEnd:
				if started && len(frame) > 0 {
					nrflite.Debugf("bridge restarted a frame after %d bytes", len(frame))
				}
				started, esc, frame = true, false, frame[:0]
				continue
			case !started:
				continue
			case esc:
				esc = false
				switch b {
				case slipEscEnd:
					b = slipEnd
				case slipEscEsc:
					b = slipEsc
				default:
					return nil, nrflite.NewFrameCorruptedError("read", t.portName)
				}
			case b == slipEsc:
				esc = true
				continue
			}

			frame = append(frame, b)
			if len(frame) >= 4 && len(frame) == 4+int(frame[3]) {
				return frame, nil
			}
		}
	}
}

// drainWithRetry waits for written bytes to leave the port, retrying
// interrupted system calls.
func (t *Transport) drainWithRetry() error {
	d, ok := t.port.(drainer)
	if !ok {
		return nil
	}

	const maxRetries = 3
	delay := 2 * time.Millisecond
	var err error
	for range maxRetries {
		if err = d.Drain(); err == nil || !isInterruptedSystemCall(err) {
			break
		}
		time.Sleep(delay)
		delay *= 2
	}
	if err != nil {
		return nrflite.NewTransportError("drain", t.portName, err, nrflite.ErrorTypeTransient)
	}
	return nil
}

// isInterruptedSystemCall checks if an error is caused by an interrupted system call
func isInterruptedSystemCall(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "interrupted system call") ||
		strings.Contains(errStr, "eintr")
}

// Close closes the port. Further transfers fail with ErrTransportClosed.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	if c, ok := t.port.(io.Closer); ok {
		if err := c.Close(); err != nil {
			return fmt.Errorf("UART close failed: %w", err)
		}
	}
	return nil
}

// Type returns the transport type
func (*Transport) Type() nrflite.TransportType {
	return nrflite.TransportUART
}

// stuff frames data for the wire: a leading delimiter, with delimiter and
// escape bytes inside the data escaped.
func stuff(data []byte) []byte {
	out := make([]byte, 0, len(data)+8)
	out = append(out, slipEnd)
	for _, b := range data {
		switch b {
		case slipEnd:
			out = append(out, slipEsc, slipEscEnd)
		case slipEsc:
			out = append(out, slipEsc, slipEscEsc)
		default:
			out = append(out, b)
		}
	}
	return out
}

func codeName(code byte) string {
	switch code {
	case codeFail:
		return "failure"
	case codeBadVersion:
		return "bad protocol version"
	case codeBadCommand:
		return "bad command"
	default:
		return fmt.Sprintf("code 0x%02X", code)
	}
}
