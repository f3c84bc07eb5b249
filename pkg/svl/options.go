// SPDX-License-Identifier: MIT
// Copyright (c) SparkFun Electronics

package svl

import "time"

// ProgressFunc receives (bytesSent, totalBytes) after each frame the device
// acknowledges. Implementations should return quickly; they run on the
// session's goroutine, in event order.
type ProgressFunc func(sent, total int)

// LogFunc receives human-readable status lines.
type LogFunc func(line string)

type config struct {
	frameSize       int
	maxRetries      int
	detectTimeout   time.Duration
	protocolTimeout time.Duration
	expectedVersion int // -1 when the caller does not care
	progress        ProgressFunc
	log             LogFunc
}

func defaultConfig() config {
	return config{
		frameSize:       DefaultFrameSize,
		maxRetries:      DefaultMaxRetries,
		detectTimeout:   DefaultDetectTimeout,
		protocolTimeout: DefaultProtocolTimeout,
		expectedVersion: -1,
	}
}

// Option is a functional option for configuring a Session.
type Option func(*config)

// WithFrameSize sets the wired-blob chunk size carried per frame.
func WithFrameSize(size int) Option {
	return func(c *config) {
		if size > 0 && size <= maxPacketData {
			c.frameSize = size
		}
	}
}

// WithMaxRetries sets the per-frame retry budget. Exceeding it aborts the
// upload rather than looping forever.
func WithMaxRetries(retries int) Option {
	return func(c *config) {
		if retries >= 0 {
			c.maxRetries = retries
		}
	}
}

// WithDetectTimeout sets the short timeout bounding baud detection.
func WithDetectTimeout(timeout time.Duration) Option {
	return func(c *config) {
		if timeout > 0 {
			c.detectTimeout = timeout
		}
	}
}

// WithProtocolTimeout sets the uniform timeout bounding every read after baud
// detection.
func WithProtocolTimeout(timeout time.Duration) Option {
	return func(c *config) {
		if timeout > 0 {
			c.protocolTimeout = timeout
		}
	}
}

// WithExpectedVersion enables the permissive version check used when burning a
// bootloader: a mismatch is logged but the upload proceeds.
func WithExpectedVersion(version int) Option {
	return func(c *config) {
		c.expectedVersion = version
	}
}

// WithProgress sets the progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(c *config) {
		c.progress = fn
	}
}

// WithLog sets the status-line callback.
func WithLog(fn LogFunc) Option {
	return func(c *config) {
		c.log = fn
	}
}
