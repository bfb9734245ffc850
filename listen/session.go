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

// Package listen runs a receive loop on an nRF24L01 and hands packets to
// callbacks, while letting other goroutines send through the same radio.
package listen

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ZaparooProject/go-nrflite"
	"github.com/ZaparooProject/go-nrflite/internal/syncutil"
	"periph.io/x/conn/v3/gpio"
)

// ErrSessionClosed is returned by Start and Send after Close.
var ErrSessionClosed = errors.New("listen session closed")

// Packet is a payload taken from the receive queue.
type Packet struct {
	Received time.Time
	Data     []byte
}

// Stats counts what a session has seen.
type Stats struct {
	Packets    uint64
	AckPackets uint64
	Errors     uint64
	Recoveries uint64
}

// Session owns a device for the lifetime of its receive loop. Every device
// call made through the session is serialised.
type Session struct {
	onPacket   func(Packet) error
	onAck      func(Packet) error
	config     *Config
	device     *nrflite.Device
	recoverer  Recoverer
	pauseChan  chan struct{}
	resumeChan chan struct{}
	ackChan    chan struct{}
	handlerMu  syncutil.RWMutex
	deviceMu   syncutil.Mutex
	packets    atomic.Uint64
	ackPackets atomic.Uint64
	errCount   atomic.Uint64
	recoveries atomic.Uint64
	closed     atomic.Bool
	isPaused   atomic.Bool
}

// NewSession creates a session for an initialised device. A nil config
// uses DefaultConfig.
func NewSession(device *nrflite.Device, config *Config) *Session {
	config = config.withDefaults()
	return &Session{
		device:     device,
		config:     config,
		recoverer:  NewDefaultRecoverer(device, nil, config.Recovery),
		pauseChan:  make(chan struct{}, 1),
		resumeChan: make(chan struct{}, 1),
		ackChan:    make(chan struct{}, 1),
	}
}

// SetOnPacket sets the callback for received packets. An error from the
// callback stops the loop.
func (s *Session) SetOnPacket(callback func(Packet) error) {
	s.handlerMu.Lock()
	s.onPacket = callback
	s.handlerMu.Unlock()
}

// SetOnAck sets the callback for acknowledgment payloads returned by Send.
func (s *Session) SetOnAck(callback func(Packet) error) {
	s.handlerMu.Lock()
	s.onAck = callback
	s.handlerMu.Unlock()
}

// SetRecoverer replaces the default recoverer, e.g. with one that can
// reopen the transport.
func (s *Session) SetRecoverer(r Recoverer) {
	s.deviceMu.Lock()
	s.recoverer = r
	s.deviceMu.Unlock()
}

// Device returns the device the session currently drives.
func (s *Session) Device() *nrflite.Device {
	s.deviceMu.Lock()
	defer s.deviceMu.Unlock()
	return s.device
}

// Stats returns a snapshot of the session counters.
func (s *Session) Stats() Stats {
	return Stats{
		Packets:    s.packets.Load(),
		AckPackets: s.ackPackets.Load(),
		Errors:     s.errCount.Load(),
		Recoveries: s.recoveries.Load(),
	}
}

// Start runs the receive loop until ctx is done, a callback fails, or the
// radio cannot be recovered.
func (s *Session) Start(ctx context.Context) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}

	if s.config.IRQ != nil {
		if err := s.withDevice(func(d *nrflite.Device) error { return d.StartRx() }); err != nil {
			return fmt.Errorf("failed to start receiving: %w", err)
		}
		return s.runLoop(ctx, s.waitForInterrupt)
	}

	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()
	return s.runLoop(ctx, func(ctx context.Context) error {
		return s.waitForTick(ctx, ticker)
	})
}

func (s *Session) runLoop(ctx context.Context, wait func(context.Context) error) error {
	failures := 0
	for {
		if s.closed.Load() {
			return ErrSessionClosed
		}
		if err := s.handleContextAndPause(ctx); err != nil {
			return err
		}

		packets, err := s.receiveCycle()
		if err != nil {
			s.errCount.Add(1)
			failures++
			nrflite.Debugf("receive cycle failed (%d in a row): %v", failures, err)
			if nrflite.IsFatal(err) {
				return fmt.Errorf("receive failed: %w", err)
			}
			if failures >= s.config.MaxConsecutiveErrors {
				if err := s.recover(ctx); err != nil {
					return err
				}
				failures = 0
			}
		} else {
			failures = 0
		}

		for _, p := range packets {
			s.packets.Add(1)
			if err := s.deliver(s.packetHandler(), p, "OnPacket"); err != nil {
				return err
			}
		}

		if err := wait(ctx); err != nil {
			return err
		}
	}
}

// receiveCycle empties the receive queue. Packets read before an error are
// still returned.
func (s *Session) receiveCycle() ([]Packet, error) {
	s.deviceMu.Lock()
	defer s.deviceMu.Unlock()

	usingIRQ := s.config.IRQ != nil
	if usingIRQ {
		if _, err := s.device.WhatHappened(); err != nil {
			return nil, err
		}
	}

	var packets []Packet
	var buf [nrflite.MaxPayloadSize]byte
	for {
		pipe, _, err := s.device.Pending(usingIRQ)
		if err != nil {
			return packets, err
		}
		switch pipe {
		case nrflite.PipeData:
			n, err := s.device.ReadData(buf[:])
			if err != nil {
				return packets, err
			}
			packets = append(packets, Packet{Data: append([]byte{}, buf[:n]...), Received: time.Now()})
		case nrflite.PipeAck:
			// Left over from a Send whose caller did not collect it; it
			// would otherwise hide every packet queued behind it.
			nrflite.Debugf("discarding stray acknowledgment payload")
			if err := s.device.DiscardData(); err != nil {
				return packets, err
			}
		default:
			return packets, nil
		}
	}
}

func (s *Session) recover(ctx context.Context) error {
	s.deviceMu.Lock()
	defer s.deviceMu.Unlock()

	if err := s.recoverer.Recover(ctx); err != nil {
		return err
	}
	s.device = s.recoverer.Device()
	s.recoveries.Add(1)
	if s.config.IRQ != nil {
		return s.device.StartRx()
	}
	return nil
}

// Send transmits payload to the radio with ID to. An acknowledgment payload
// returned with the acknowledgment goes to the OnAck callback before Send
// returns.
func (s *Session) Send(to byte, payload []byte, sendType nrflite.SendType) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}

	var acks []Packet
	err := s.withDevice(func(d *nrflite.Device) error {
		if err := d.Send(to, payload, sendType); err != nil {
			return err
		}
		var buf [nrflite.MaxPayloadSize]byte
		for {
			n, err := d.HasAckData()
			if err != nil || n == 0 {
				break
			}
			n, err = d.ReadData(buf[:])
			if err != nil {
				break
			}
			acks = append(acks, Packet{Data: append([]byte(nil), buf[:n]...), Received: time.Now()})
		}
		if s.config.IRQ != nil {
			return d.StartRx()
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.handlerMu.RLock()
	onAck := s.onAck
	s.handlerMu.RUnlock()
	for _, p := range acks {
		s.ackPackets.Add(1)
		if err := s.deliver(onAck, p, "OnAck"); err != nil {
			return err
		}
	}
	return nil
}

// AddAckData queues payload to go back with the next acknowledgment.
func (s *Session) AddAckData(payload []byte, clearExisting bool) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	return s.withDevice(func(d *nrflite.Device) error {
		return d.AddAckData(payload, clearExisting)
	})
}

func (s *Session) withDevice(fn func(*nrflite.Device) error) error {
	s.deviceMu.Lock()
	defer s.deviceMu.Unlock()
	return fn(s.device)
}

func (s *Session) packetHandler() func(Packet) error {
	s.handlerMu.RLock()
	defer s.handlerMu.RUnlock()
	return s.onPacket
}

// deliver executes a callback with panic recovery
func (*Session) deliver(callback func(Packet) error, p Packet, name string) error {
	if callback == nil {
		return nil
	}
	var callbackErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				callbackErr = fmt.Errorf("%s callback panicked: %v", name, r)
			}
		}()
		callbackErr = callback(p)
	}()
	if callbackErr != nil {
		return fmt.Errorf("%s callback failed: %w", name, callbackErr)
	}
	return nil
}

func (s *Session) waitForTick(ctx context.Context, ticker *time.Ticker) error {
	select {
	case <-ticker.C:
		return nil
	case <-s.pauseChan:
		return s.handlePauseSignal(ctx)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// waitForInterrupt returns once the IRQ line falls, stays low, or the wait
// times out.
func (s *Session) waitForInterrupt(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.config.IRQ.Read() == gpio.Low {
		return nil
	}
	s.config.IRQ.WaitForEdge(s.config.IRQTimeout)
	return nil
}

func (s *Session) handleContextAndPause(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.pauseChan:
		return s.handlePauseSignal(ctx)
	default:
		return nil
	}
}

// handlePauseSignal sends acknowledgment and waits for resume
func (s *Session) handlePauseSignal(ctx context.Context) error {
	select {
	case s.ackChan <- struct{}{}:
	default:
	}
	select {
	case <-s.resumeChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pause stops the receive loop after its current cycle. Packets keep
// queueing in the radio, which holds three.
func (s *Session) Pause() {
	if s.isPaused.CompareAndSwap(false, true) {
		select {
		case s.pauseChan <- struct{}{}:
		default:
		}
	}
}

// PauseAndWait pauses the loop and waits until it has stopped, or until
// timeout when no loop is running.
func (s *Session) PauseAndWait(ctx context.Context, timeout time.Duration) error {
	if !s.isPaused.CompareAndSwap(false, true) {
		return nil
	}
	select {
	case s.pauseChan <- struct{}{}:
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-s.ackChan:
		return nil
	case <-timer.C:
		return nil
	case <-ctx.Done():
		s.isPaused.Store(false)
		return ctx.Err()
	}
}

// Resume restarts the receive loop after a pause
func (s *Session) Resume() {
	if s.isPaused.CompareAndSwap(true, false) {
		select {
		case s.resumeChan <- struct{}{}:
		default:
		}
	}
}

// Close stops the loop at its next cycle, waking it if paused. The device
// is left open.
func (s *Session) Close() error {
	s.closed.Store(true)
	s.isPaused.Store(false)
	select {
	case <-s.pauseChan:
	default:
	}
	select {
	case s.resumeChan <- struct{}{}:
	default:
	}
	return nil
}
