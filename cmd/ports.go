// SPDX-License-Identifier: MIT
// Copyright (c) SparkFun Electronics

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kirk-sfe/artemis-uploader/pkg/serialio"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List available serial ports",
	RunE:  runPorts,
}

func init() {
	rootCmd.AddCommand(portsCmd)
}

func runPorts(cmd *cobra.Command, args []string) error {
	ports, err := serialio.ListPorts()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Println("No serial ports found")
		return nil
	}
	for _, p := range ports {
		fmt.Println(p)
	}
	return nil
}
