// SPDX-License-Identifier: MIT
// Copyright (c) SparkFun Electronics

package blob

import "fmt"

// Board fixes the per-family constants that the packager and the bootloader
// agree on: the magic number identifying the image class and the flash
// addresses the image and staged blob are built for.
type Board struct {
	Name string

	// MagicNumber identifies a non-secure application image to the bootloader.
	MagicNumber uint8

	// LoadAddressImage is the absolute flash address the image runs at.
	LoadAddressImage uint32

	// LoadAddressBlob is where the bootloader stages the OTA blob before
	// installing it.
	LoadAddressBlob uint32

	// RequiresAuth marks secure bootloader variants that only accept
	// authenticated wired containers.
	RequiresAuth bool
}

var (
	// Artemis covers Artemis-based boards including the OLA and AGT.
	Artemis = Board{
		Name:             "artemis",
		MagicNumber:      0xCB,
		LoadAddressImage: 0x20000,
		LoadAddressBlob:  0xC000,
	}

	// Apollo3 covers Apollo3 Blue development boards such as the SparkFun Edge.
	Apollo3 = Board{
		Name:             "apollo3",
		MagicNumber:      0xCB,
		LoadAddressImage: 0x20000,
		LoadAddressBlob:  0xC000,
	}
)

// Boards lists the supported board families.
func Boards() []Board {
	return []Board{Artemis, Apollo3}
}

// BoardByName resolves a board family by its CLI name.
func BoardByName(name string) (Board, error) {
	for _, b := range Boards() {
		if b.Name == name {
			return b, nil
		}
	}
	return Board{}, fmt.Errorf("unknown board family %q", name)
}
