// SPDX-License-Identifier: MIT
// Copyright (c) SparkFun Electronics

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/kirk-sfe/artemis-uploader/pkg/svl"
	"github.com/kirk-sfe/artemis-uploader/pkg/uploader"
)

// expectedSVLVersion matches the artemis_svl.bin this tool is distributed
// with. Update it when bundling a new bootloader binary.
const expectedSVLVersion = 5

var (
	bootloaderFile string
	expectVersion  int
)

var bootloaderCmd = &cobra.Command{
	Use:   "bootloader",
	Short: "Burn the SVL bootloader itself",
	Long: `Upload a bootloader binary through the resident bootloader.

The version reported by the device is compared against --expect-version; a
mismatch is logged but the upload proceeds regardless, since older bootloaders
still accept updates.`,
	RunE: runBootloader,
}

func init() {
	bootloaderCmd.Flags().StringVarP(&bootloaderFile, "file", "f", "", "Bootloader binary (artemis_svl.bin)")
	_ = bootloaderCmd.MarkFlagRequired("file")
	bootloaderCmd.Flags().IntVar(&expectVersion, "expect-version", expectedSVLVersion, "Bootloader version this binary corresponds to")
	bootloaderCmd.Flags().IntVar(&frameSize, "frame-size", svl.DefaultFrameSize, "Bytes per transfer frame")
	bootloaderCmd.Flags().BoolVar(&plainOutput, "plain", false, "Disable the progress display, print log lines only")
	bootloaderCmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit one JSON event per line")
	rootCmd.AddCommand(bootloaderCmd)
}

func runBootloader(cmd *cobra.Command, args []string) error {
	return runOperation(uploader.BootloaderBurn{ExpectedVersion: expectVersion}, bootloaderFile)
}
