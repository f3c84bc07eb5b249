// SPDX-License-Identifier: MIT
// Copyright (c) SparkFun Electronics

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/kirk-sfe/artemis-uploader/pkg/blob"
	"github.com/kirk-sfe/artemis-uploader/pkg/uploader"
)

var (
	// Connection flags
	portName  string
	baudRate  int
	boardName string
)

var rootCmd = &cobra.Command{
	Use:   "artemis-uploader",
	Short: "Artemis Firmware Uploader",
	Long: `Artemis Firmware Uploader - flash firmware over the SVL serial bootloader.

Converts a raw application binary into an OTA update blob, wraps it into a
wired update blob, and pushes it to an Artemis or Apollo3 module frame by
frame with CRC verification and retry. Handy for updating devices in the
field without compiling and uploading through Arduino.

Typical use:
  artemis-uploader ports
  artemis-uploader upload --port /dev/ttyUSB0 --file application.bin`,
	Version: "3.0.0",
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", uploader.DefaultBaud, "Baud rate (115200, 460800 or 921600)")
	rootCmd.PersistentFlags().StringVar(&boardName, "board", blob.Artemis.Name, "Board family (artemis or apollo3)")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
