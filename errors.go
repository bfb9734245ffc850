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
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Radio errors
var (
	// ErrCommunicationFailed means a register write did not read back during
	// initialization. The radio is absent or miswired.
	ErrCommunicationFailed = errors.New("radio did not respond")
	// ErrTransmitFailed means the hardware retry budget was exhausted. The
	// transmit queue has been flushed.
	ErrTransmitFailed = errors.New("transmit failed")

	ErrInvalidRadioID       = errors.New("radio id must be between 1 and 255")
	ErrPayloadTooLarge      = errors.New("payload exceeds 32 bytes")
	ErrSharedPinUnsupported = errors.New("operation needs a dedicated enable pin")
	ErrNoEnablePin          = errors.New("no enable pin configured")
)

// Transport errors
var (
	ErrTransportClosed = errors.New("transport is closed")
	ErrTransportWrite  = errors.New("transport write failed")
	ErrTransportRead   = errors.New("transport read failed")
	ErrFrameCorrupted  = errors.New("frame corrupted")
)

// ErrorType represents the category of a transport error
type ErrorType int

const (
	// ErrorTypeTransient indicates a potentially retryable error
	ErrorTypeTransient ErrorType = iota
	// ErrorTypePermanent indicates the bus is gone
	ErrorTypePermanent
)

// TransportError wraps transport-level errors with additional context
type TransportError struct {
	Err  error     // Underlying error
	Op   string    // Operation that failed
	Port string    // Port or device identifier
	Type ErrorType // Error category
}

func (e *TransportError) Error() string {
	if e.Port != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Port, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError creates a standard transport error with consistent formatting
func NewTransportError(op, port string, err error, errType ErrorType) *TransportError {
	return &TransportError{
		Op:   op,
		Port: port,
		Err:  err,
		Type: errType,
	}
}

// NewTransportWriteError creates a write error (transient)
func NewTransportWriteError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrTransportWrite, ErrorTypeTransient)
}

// NewTransportReadError creates a read error (transient)
func NewTransportReadError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrTransportRead, ErrorTypeTransient)
}

// NewFrameCorruptedError creates a frame corruption error
func NewFrameCorruptedError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrFrameCorrupted, ErrorTypeTransient)
}

// IsFatal returns true if the error indicates the bus is gone and the
// caller should stop using the device.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var te *TransportError
	if errors.As(err, &te) && te.Type == ErrorTypePermanent {
		return true
	}
	return errors.Is(err, ErrTransportClosed)
}

// TraceDirection is the direction of a recorded transfer.
type TraceDirection string

const (
	TraceTX TraceDirection = "TX" // host to radio
	TraceRX TraceDirection = "RX" // radio to host
)

// maxTraceBytes caps how much of each transfer a trace line shows.
const maxTraceBytes = MaxPayloadSize + 1

// TraceEntry is one recorded transfer.
type TraceEntry struct {
	Timestamp time.Time
	Direction TraceDirection
	Note      string
	Data      []byte
}

func (e TraceEntry) String() string {
	line := fmt.Sprintf("[%s] %s: %s", e.Timestamp.Format("15:04:05.000"), e.Direction, hexDump(e.Data))
	if e.Note != "" {
		line += " (" + e.Note + ")"
	}
	return line
}

// TraceableError carries the bus traffic that led up to a failure. Use
// errors.As or GetTrace to reach it:
//
//	if te := nrflite.GetTrace(err); te != nil {
//	    fmt.Println(te.FormatTrace())
//	}
type TraceableError struct {
	Err       error
	Transport string
	Port      string
	Trace     []TraceEntry
}

func (e *TraceableError) Error() string { return e.Err.Error() }

func (e *TraceableError) Unwrap() error { return e.Err }

// FormatTrace renders the trace oldest first, one transfer per line.
func (e *TraceableError) FormatTrace() string {
	var sb strings.Builder
	_, _ = fmt.Fprintf(&sb, "[%s:%s] ", e.Transport, e.Port)
	if len(e.Trace) == 0 {
		_, _ = sb.WriteString("(no trace data)")
		return sb.String()
	}
	_, _ = fmt.Fprintf(&sb, "%d transfers:\n", len(e.Trace))
	for _, entry := range e.Trace {
		arrow := ">"
		if entry.Direction == TraceRX {
			arrow = "<"
		}
		_, _ = fmt.Fprintf(&sb, "  %s %s", arrow, hexDump(entry.Data))
		if entry.Note != "" {
			_, _ = fmt.Fprintf(&sb, " (%s)", entry.Note)
		}
		_ = sb.WriteByte('\n')
	}
	return sb.String()
}

func hexDump(data []byte) string {
	switch {
	case len(data) == 0:
		return "(empty)"
	case len(data) > maxTraceBytes:
		return fmt.Sprintf("% X ... (%d bytes)", data[:maxTraceBytes], len(data))
	default:
		return fmt.Sprintf("% X", data)
	}
}

// TraceBuffer keeps the last few transfers of a transport in a ring. It is
// not safe for concurrent use; transports record under their own lock.
type TraceBuffer struct {
	transport string
	port      string
	ring      []TraceEntry
	next      int
	full      bool
}

// NewTraceBuffer creates a buffer holding depth transfers (16 when depth is
// not positive).
func NewTraceBuffer(transport, port string, depth int) *TraceBuffer {
	if depth <= 0 {
		depth = 16
	}
	return &TraceBuffer{transport: transport, port: port, ring: make([]TraceEntry, depth)}
}

// RecordTX records bytes sent to the radio.
func (tb *TraceBuffer) RecordTX(data []byte, note string) { tb.record(TraceTX, data, note) }

// RecordRX records bytes received from the radio.
func (tb *TraceBuffer) RecordRX(data []byte, note string) { tb.record(TraceRX, data, note) }

func (tb *TraceBuffer) record(dir TraceDirection, data []byte, note string) {
	tb.ring[tb.next] = TraceEntry{
		Timestamp: time.Now(),
		Direction: dir,
		Note:      note,
		Data:      bytes.Clone(data),
	}
	tb.next = (tb.next + 1) % len(tb.ring)
	if tb.next == 0 {
		tb.full = true
	}
}

// Entries returns a copy of the recorded transfers, oldest first.
func (tb *TraceBuffer) Entries() []TraceEntry {
	if !tb.full {
		return append([]TraceEntry(nil), tb.ring[:tb.next]...)
	}
	out := make([]TraceEntry, 0, len(tb.ring))
	out = append(out, tb.ring[tb.next:]...)
	return append(out, tb.ring[:tb.next]...)
}

// WrapError attaches the recorded transfers to err. A nil err stays nil.
func (tb *TraceBuffer) WrapError(err error) error {
	if err == nil {
		return nil
	}
	return &TraceableError{
		Err:       err,
		Transport: tb.transport,
		Port:      tb.port,
		Trace:     tb.Entries(),
	}
}

// Clear forgets every recorded transfer.
func (tb *TraceBuffer) Clear() {
	clear(tb.ring)
	tb.next = 0
	tb.full = false
}

// HasTrace reports whether err carries a bus trace.
func HasTrace(err error) bool {
	return GetTrace(err) != nil
}

// GetTrace returns the trace carried by err, or nil.
func GetTrace(err error) *TraceableError {
	var te *TraceableError
	if errors.As(err, &te) {
		return te
	}
	return nil
}
