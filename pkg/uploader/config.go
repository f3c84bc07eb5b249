// SPDX-License-Identifier: MIT
// Copyright (c) SparkFun Electronics

// Package uploader exposes the firmware upload flow to front-ends: it reads an
// image, packages it into a wired update blob and drives one bootloader
// session over a serial port, streaming status lines and progress to an
// EventSink. Front-ends (CLI, GUI, service) own presentation and user-level
// retry after a manual device reset.
package uploader

import (
	"fmt"
	"time"

	"github.com/kirk-sfe/artemis-uploader/pkg/blob"
	"github.com/kirk-sfe/artemis-uploader/pkg/svl"
)

// AllowedBauds is the fixed set of rates the bootloader can auto-detect.
var AllowedBauds = []int{115200, 460800, 921600}

// DefaultBaud is the lowest allowed rate, the safe default for long cables and
// cheap USB-serial bridges.
const DefaultBaud = 115200

// Config enumerates one upload attempt.
type Config struct {
	Port      string
	Baud      int
	ImagePath string
	Board     blob.Board

	// AuthKey is required only for board families with RequiresAuth set.
	AuthKey []byte

	// Zero values fall back to the svl defaults.
	FrameSize       int
	MaxRetries      int
	DetectTimeout   time.Duration
	ProtocolTimeout time.Duration
}

// Validate checks the config and fills defaults in place.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("no serial port specified")
	}
	if c.ImagePath == "" {
		return fmt.Errorf("no firmware file specified")
	}
	if c.Baud == 0 {
		c.Baud = DefaultBaud
	}
	if !baudAllowed(c.Baud) {
		return fmt.Errorf("baud rate %d not supported (allowed: %v)", c.Baud, AllowedBauds)
	}
	if c.Board.Name == "" {
		c.Board = blob.Artemis
	}
	if c.FrameSize == 0 {
		c.FrameSize = svl.DefaultFrameSize
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = svl.DefaultMaxRetries
	}
	if c.DetectTimeout == 0 {
		c.DetectTimeout = svl.DefaultDetectTimeout
	}
	if c.ProtocolTimeout == 0 {
		c.ProtocolTimeout = svl.DefaultProtocolTimeout
	}
	return nil
}

func baudAllowed(baud int) bool {
	for _, b := range AllowedBauds {
		if b == baud {
			return true
		}
	}
	return false
}
