// SPDX-License-Identifier: MIT
// Copyright (c) SparkFun Electronics

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kirk-sfe/artemis-uploader/pkg/blob"
)

var (
	packageFile string
	packageOut  string
)

var packageCmd = &cobra.Command{
	Use:   "package",
	Short: "Package a firmware image into a wired update blob without uploading",
	Long: `Run the packaging pipeline offline: wrap a raw binary into an OTA
container, then into a wired update blob, and write the result to a file.
Useful for inspecting the exact bytes that would go over the wire.`,
	RunE: runPackage,
}

func init() {
	packageCmd.Flags().StringVarP(&packageFile, "file", "f", "", "Firmware binary to package")
	_ = packageCmd.MarkFlagRequired("file")
	packageCmd.Flags().StringVarP(&packageOut, "out", "o", "", "Output path (default: <file>.blob)")
	rootCmd.AddCommand(packageCmd)
}

func runPackage(cmd *cobra.Command, args []string) error {
	board, err := blob.BoardByName(boardName)
	if err != nil {
		return err
	}

	image, err := os.ReadFile(packageFile)
	if err != nil {
		return err
	}

	ota, err := blob.PackageOTA(image, board)
	if err != nil {
		return err
	}
	wired, err := blob.PackageWired(ota, board, nil)
	if err != nil {
		return err
	}

	out := wired.Bytes()
	if err := blob.VerifyWired(out); err != nil {
		return fmt.Errorf("self-check failed: %w", err)
	}

	outPath := packageOut
	if outPath == "" {
		outPath = packageFile + ".blob"
	}
	if err := os.WriteFile(outPath, out, 0o644); err != nil {
		return err
	}

	fmt.Printf("Wrote %s (%d bytes, image %d bytes padded to %d)\n", outPath, len(out), len(image), ota.Length)
	return nil
}
