// SPDX-License-Identifier: MIT
// Copyright (c) SparkFun Electronics

package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/kirk-sfe/artemis-uploader/pkg/blob"
	"github.com/kirk-sfe/artemis-uploader/pkg/svl"
	"github.com/kirk-sfe/artemis-uploader/pkg/uploader"
)

var (
	uploadFile  string
	frameSize   int
	maxRetries  int
	plainOutput bool
	jsonOutput  bool
)

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Upload application firmware to a device",
	Long: `Package a raw application binary and push it through the SVL bootloader.

On an interactive terminal a live progress display is shown; use --plain for
log lines only, or --json for one machine-readable event per line.

If the upload fails after the device has started requesting frames, the
device is stuck in the bootloader: reset it before retrying.`,
	RunE: runUpload,
}

func init() {
	uploadCmd.Flags().StringVarP(&uploadFile, "file", "f", "", "Firmware binary to upload")
	_ = uploadCmd.MarkFlagRequired("file")
	uploadCmd.Flags().IntVar(&frameSize, "frame-size", svl.DefaultFrameSize, "Bytes per transfer frame")
	uploadCmd.Flags().IntVar(&maxRetries, "max-retries", svl.DefaultMaxRetries, "Per-frame retry budget")
	uploadCmd.Flags().BoolVar(&plainOutput, "plain", false, "Disable the progress display, print log lines only")
	uploadCmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit one JSON event per line")
	rootCmd.AddCommand(uploadCmd)
}

func runUpload(cmd *cobra.Command, args []string) error {
	return runOperation(uploader.FirmwareUpload{}, uploadFile)
}

func buildConfig(file string) (uploader.Config, error) {
	board, err := blob.BoardByName(boardName)
	if err != nil {
		return uploader.Config{}, err
	}
	cfg := uploader.Config{
		Port:       portName,
		Baud:       baudRate,
		ImagePath:  file,
		Board:      board,
		FrameSize:  frameSize,
		MaxRetries: maxRetries,
	}
	if err := cfg.Validate(); err != nil {
		return uploader.Config{}, err
	}
	return cfg, nil
}

func runOperation(op uploader.Operation, file string) error {
	cfg, err := buildConfig(file)
	if err != nil {
		return err
	}

	// Ctrl+C cancels between frames; the session finishes the exchange on the
	// wire before winding down.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	switch {
	case jsonOutput:
		_, err := op.Run(ctx, cfg, newJSONSink(os.Stdout))
		return err
	case plainOutput || !term.IsTerminal(int(os.Stdout.Fd())):
		_, err := op.Run(ctx, cfg, newPlainSink(os.Stdout))
		return err
	default:
		return runTUI(ctx, op, cfg)
	}
}
