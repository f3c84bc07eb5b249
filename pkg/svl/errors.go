// SPDX-License-Identifier: MIT
// Copyright (c) SparkFun Electronics

package svl

import (
	"errors"
	"fmt"
	"time"
)

// HandshakeTimeoutError reports that no well-formed version packet arrived
// within the baud-detect window. The device never entered the bootloader, so
// a fresh session is safe to retry.
type HandshakeTimeoutError struct {
	Timeout time.Duration
	Err     error
}

func (e *HandshakeTimeoutError) Error() string {
	return fmt.Sprintf("no version packet within %v: baud detection failed", e.Timeout)
}

func (e *HandshakeTimeoutError) Unwrap() error { return e.Err }

// ProtocolTimeoutError reports a read that timed out after baud detection
// completed. Phase records how far the session got: a timeout during the
// handshake (before the device's first frame request) still permits a clean
// retry, one during transfer does not.
type ProtocolTimeoutError struct {
	Phase Phase
	Err   error
}

func (e *ProtocolTimeoutError) Error() string {
	return fmt.Sprintf("protocol timeout during %s: %v", e.Phase, e.Err)
}

func (e *ProtocolTimeoutError) Unwrap() error { return e.Err }

// FrameIntegrityError reports a frame whose retry budget was exhausted: the
// device kept rejecting the frame's CRC. The device is likely stuck in the
// bootloader and needs a manual reset before any retry.
type FrameIntegrityError struct {
	Frame   int
	Retries int
}

func (e *FrameIntegrityError) Error() string {
	return fmt.Sprintf("frame %d rejected %d times: retry budget exhausted", e.Frame, e.Retries)
}

// UnexpectedResponseError reports an out-of-protocol message from the device.
type UnexpectedResponseError struct {
	Phase Phase
	Cmd   byte
}

func (e *UnexpectedResponseError) Error() string {
	return fmt.Sprintf("unexpected command 0x%02X during %s", e.Cmd, e.Phase)
}

// Recoverable reports whether a failed session may be retried from scratch
// without resetting the device. Only failures before the device's first frame
// request qualify; after that point the bootloader's frame counter is out of
// sync and a fresh baud-detect cycle cannot succeed.
func Recoverable(err error) bool {
	var ht *HandshakeTimeoutError
	if errors.As(err, &ht) {
		return true
	}
	var pt *ProtocolTimeoutError
	if errors.As(err, &pt) {
		return pt.Phase == PhaseHandshake
	}
	var ue *UnexpectedResponseError
	if errors.As(err, &ue) {
		return ue.Phase == PhaseHandshake
	}
	return false
}
