// SPDX-License-Identifier: MIT
// Copyright (c) SparkFun Electronics
//
// Artemis Firmware Uploader
//
// A CLI tool for converting a raw application binary into OTA and wired
// update blobs and pushing them to the Artemis SVL serial bootloader.

package main

import (
	"os"

	"github.com/kirk-sfe/artemis-uploader/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
