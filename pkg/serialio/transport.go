// SPDX-License-Identifier: MIT
// Copyright (c) SparkFun Electronics

// Package serialio is a thin duplex byte-stream abstraction over a physical
// serial port. It carries no protocol knowledge; the bootloader session layers
// its timing and framing rules on top of it.
package serialio

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

// Transport is the capability set the bootloader session needs from a serial
// link. A Transport is owned exclusively by one session for the lifetime of
// one upload attempt and must not be shared.
type Transport interface {
	// ReadExact blocks until len(buf) bytes have arrived or the timeout
	// elapses. On timeout it returns a *TimeoutError carrying how many bytes
	// were collected; a short read is a failure, never a partial success to
	// retry silently. The timeout is per call because the protocol runs two
	// different timeout classes.
	ReadExact(buf []byte, timeout time.Duration) error

	// WriteAll writes the whole slice or fails.
	WriteAll(p []byte) error

	// DiscardInput drops any bytes already buffered by the OS.
	DiscardInput() error

	Close() error
}

// TimeoutError reports a read that did not complete within its timeout.
type TimeoutError struct {
	Wanted int
	Got    int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("read timed out: got %d of %d bytes", e.Got, e.Wanted)
}

// PortUnavailableError reports a serial port that could not be opened because
// the device is absent or busy. Fatal for the attempt; the caller may let the
// user pick another port and start a fresh session.
type PortUnavailableError struct {
	Port string
	Err  error
}

func (e *PortUnavailableError) Error() string {
	return fmt.Sprintf("serial port %s unavailable: %v", e.Port, e.Err)
}

func (e *PortUnavailableError) Unwrap() error { return e.Err }

type serialTransport struct {
	port serial.Port
}

// Open opens the named port at the given baud rate (8N1).
func Open(portName string, baudRate int) (Transport, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, &PortUnavailableError{Port: portName, Err: err}
	}
	return &serialTransport{port: port}, nil
}

func (t *serialTransport) ReadExact(buf []byte, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	got := 0
	for got < len(buf) {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return &TimeoutError{Wanted: len(buf), Got: got}
		}
		if err := t.port.SetReadTimeout(remaining); err != nil {
			return err
		}
		n, err := t.port.Read(buf[got:])
		if err != nil {
			return err
		}
		if n == 0 {
			// go.bug.st/serial signals an expired read timeout with a
			// zero-length read and a nil error.
			return &TimeoutError{Wanted: len(buf), Got: got}
		}
		got += n
	}
	return nil
}

func (t *serialTransport) WriteAll(p []byte) error {
	for len(p) > 0 {
		n, err := t.port.Write(p)
		if err != nil {
			return err
		}
		p = p[n:]
	}
	return nil
}

func (t *serialTransport) DiscardInput() error {
	return t.port.ResetInputBuffer()
}

func (t *serialTransport) Close() error {
	return t.port.Close()
}

// ListPorts enumerates the system serial ports for interactive selection.
func ListPorts() ([]string, error) {
	return serial.GetPortsList()
}
