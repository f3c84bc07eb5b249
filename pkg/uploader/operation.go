// SPDX-License-Identifier: MIT
// Copyright (c) SparkFun Electronics

package uploader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kirk-sfe/artemis-uploader/pkg/blob"
	"github.com/kirk-sfe/artemis-uploader/pkg/serialio"
	"github.com/kirk-sfe/artemis-uploader/pkg/svl"
)

// Outcome summarizes a finished attempt, successful or not.
type Outcome struct {
	BytesSent         int
	TotalBytes        int
	BootloaderVersion int
	Elapsed           time.Duration
}

// Operation is one upload flow variant, invoked with a config and a sink.
// Variants are plain values; there is no registry or dispatch table.
type Operation interface {
	Name() string
	Run(ctx context.Context, cfg Config, sink EventSink) (Outcome, error)
}

// FirmwareUpload pushes an application image through the resident bootloader.
type FirmwareUpload struct{}

func (FirmwareUpload) Name() string { return "firmware upload" }

func (FirmwareUpload) Run(ctx context.Context, cfg Config, sink EventSink) (Outcome, error) {
	return run(ctx, cfg, sink, -1)
}

// BootloaderBurn installs a bootloader binary itself. The only behavioral
// difference from a firmware upload is the permissive version check: a
// mismatch between the installed and expected bootloader version is logged
// and the upload proceeds regardless.
type BootloaderBurn struct {
	ExpectedVersion int
}

func (BootloaderBurn) Name() string { return "bootloader update" }

func (b BootloaderBurn) Run(ctx context.Context, cfg Config, sink EventSink) (Outcome, error) {
	return run(ctx, cfg, sink, b.ExpectedVersion)
}

func run(ctx context.Context, cfg Config, sink EventSink, expectedVersion int) (Outcome, error) {
	if sink == nil {
		sink = NopSink{}
	}

	start := time.Now()
	if err := cfg.Validate(); err != nil {
		return Outcome{}, err
	}

	// Packaging happens entirely before the port is touched, so packaging
	// failures never leave a device half-bootloaded.
	image, err := os.ReadFile(cfg.ImagePath)
	if err != nil {
		return Outcome{}, &blob.InvalidImageError{
			Reason: fmt.Sprintf("cannot read %s", cfg.ImagePath),
			Err:    err,
		}
	}

	sink.Log(fmt.Sprintf("Packaging %s (%d bytes) for %s", filepath.Base(cfg.ImagePath), len(image), cfg.Board.Name))

	ota, err := blob.PackageOTA(image, cfg.Board)
	if err != nil {
		return Outcome{}, err
	}
	wired, err := blob.PackageWired(ota, cfg.Board, cfg.AuthKey)
	if err != nil {
		return Outcome{}, err
	}
	payload := wired.Bytes()
	sink.Log(fmt.Sprintf("Wired update blob is %d bytes", len(payload)))

	sink.Log(fmt.Sprintf("Opening %s at %d baud", cfg.Port, cfg.Baud))
	transport, err := serialio.Open(cfg.Port, cfg.Baud)
	if err != nil {
		return Outcome{}, err
	}
	defer transport.Close()

	opts := []svl.Option{
		svl.WithFrameSize(cfg.FrameSize),
		svl.WithMaxRetries(cfg.MaxRetries),
		svl.WithDetectTimeout(cfg.DetectTimeout),
		svl.WithProtocolTimeout(cfg.ProtocolTimeout),
		svl.WithProgress(sink.Progress),
		svl.WithLog(sink.Log),
	}
	if expectedVersion >= 0 {
		opts = append(opts, svl.WithExpectedVersion(expectedVersion))
	}

	session := svl.New(transport, opts...)
	err = session.Upload(ctx, payload)

	state := session.State()
	outcome := Outcome{
		BytesSent:         state.BytesSent,
		TotalBytes:        len(payload),
		BootloaderVersion: state.BootloaderVersion,
		Elapsed:           time.Since(start),
	}

	if err != nil {
		if NeedsReset(err) {
			sink.Log("Upload failed after transfer began; the device may require a manual reset before retrying")
		}
		return outcome, err
	}

	sink.Log(fmt.Sprintf("Upload complete: %d bytes in %v", outcome.BytesSent, outcome.Elapsed.Round(time.Millisecond)))
	return outcome, nil
}

// NeedsReset reports whether the failure left the device committed to
// bootloading: the operator must power-cycle or reset it before any retry.
// Failures before the device's first frame request (port problems, packaging
// problems, a silent device) permit a clean retry of a fresh session.
func NeedsReset(err error) bool {
	var fe *svl.FrameIntegrityError
	var pt *svl.ProtocolTimeoutError
	var ue *svl.UnexpectedResponseError
	if errors.As(err, &fe) || errors.As(err, &pt) || errors.As(err, &ue) {
		return !svl.Recoverable(err)
	}
	return false
}
