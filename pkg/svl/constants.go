// SPDX-License-Identifier: MIT
// Copyright (c) SparkFun Electronics

// Package svl implements the host side of the SparkFun Variable Loader serial
// bootloader protocol: baud-rate auto-detection, version handshake, and the
// device-driven frame transfer loop with CRC validation and retransmission.
//
// Immediately after reset the device searches for a training character to
// detect the host's baud rate. On success it replies with a version packet;
// the host answers with a bootload command and the device then requests the
// blob frame by frame, re-requesting any frame whose CRC fails. Once the
// device has asked for its first frame it can no longer leave the bootloader
// without a full transfer or a power cycle.
package svl

import "time"

// Command bytes shared with the SVL firmware.
const (
	CmdVersion  = 0x01 // version report (device → host)
	CmdBootload = 0x02 // begin update (host → device)
	CmdNext     = 0x03 // send next frame (device → host)
	CmdFrame    = 0x04 // frame payload (host → device)
	CmdRetry    = 0x05 // resend previous frame (device → host)
	CmdDone     = 0x06 // transfer complete (device → host)
)

// TrainingChar is written at the configured baud rate so the device can sense
// the bit timing.
const TrainingChar = 'U'

// CRC-16-CCITT configuration. Must match the SVL firmware build bit-for-bit:
// a mismatch makes the device reject every frame.
const (
	crcPolynomial = 0x1021
	crcInitial    = 0x0000
)

// Defaults for the session options.
const (
	// DefaultFrameSize is the wired-blob chunk carried per frame.
	DefaultFrameSize = 2048

	// DefaultMaxRetries bounds re-sends of a single frame before the upload
	// aborts. The device signals no cap of its own.
	DefaultMaxRetries = 3

	// DefaultDetectTimeout bounds baud detection only; it is deliberately
	// short because a silent device here is safe to retry.
	DefaultDetectTimeout = 500 * time.Millisecond

	// DefaultProtocolTimeout bounds every read after baud detection.
	DefaultProtocolTimeout = 3 * time.Second
)
