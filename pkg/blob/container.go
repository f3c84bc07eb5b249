// SPDX-License-Identifier: MIT
// Copyright (c) SparkFun Electronics

// Package blob converts a raw application binary into the two-layer update
// container the bootloader consumes: first an OTA container (header + padded
// image), then a wired container wrapping the serialized OTA bytes for
// transfer over the serial link. Both transforms are pure and deterministic.
package blob

import (
	"encoding/binary"
	"math"
)

// Container header layout. All words are little-endian.
//
//	word0  OTA:   magic<<24 | payload length    Wired: blob load address
//	word1  OTA:   image load address            Wired: wrapped byte length
//	word2  CRC-32 over the whole container, this field zeroed
//	word3  option flags
const (
	headerSize = 16
	crcOffset  = 8
	optsOffset = 12

	wordAlign = 4

	// MaxOTAPayload is the largest payload representable in the OTA header's
	// 24-bit length field.
	MaxOTAPayload = 0xFFFFFF

	// MaxWiredPayload is the largest OTA blob representable in the wired
	// header's 32-bit length field.
	MaxWiredPayload = math.MaxUint32

	// OptAuthenticated marks a container carrying an authentication tag.
	OptAuthenticated = 0x1
)

// OTAContainer is the first-layer package: the raw image padded to a word
// boundary behind a header carrying size, load address, magic number and
// integrity code. The integrity code is always recomputed on serialization,
// never trusted from input.
type OTAContainer struct {
	MagicNumber      uint8
	LoadAddressImage uint32
	Length           uint32 // padded payload length
	Options          uint32
	Payload          []byte // zero-padded to wordAlign
}

// PackageOTA wraps a raw firmware image into an OTA container for the given
// board family. The payload is zero-padded to a word boundary.
func PackageOTA(image []byte, board Board) (*OTAContainer, error) {
	if len(image) == 0 {
		return nil, &InvalidImageError{Reason: "empty image"}
	}

	padded := padToWord(image)
	if len(padded) > MaxOTAPayload {
		return nil, &InvalidImageError{
			Reason: "image exceeds the OTA length field",
			Size:   len(image),
			Max:    MaxOTAPayload,
		}
	}

	var opts uint32
	if board.RequiresAuth {
		opts |= OptAuthenticated
	}

	return &OTAContainer{
		MagicNumber:      board.MagicNumber,
		LoadAddressImage: board.LoadAddressImage,
		Length:           uint32(len(padded)),
		Options:          opts,
		Payload:          padded,
	}, nil
}

// Bytes serializes the container, computing the integrity code over the result
// with the integrity field zeroed.
func (c *OTAContainer) Bytes() []byte {
	buf := make([]byte, headerSize+len(c.Payload))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(c.MagicNumber)<<24|c.Length)
	binary.LittleEndian.PutUint32(buf[4:8], c.LoadAddressImage)
	binary.LittleEndian.PutUint32(buf[optsOffset:optsOffset+4], c.Options)
	copy(buf[headerSize:], c.Payload)

	crc := Checksum(buf)
	binary.LittleEndian.PutUint32(buf[crcOffset:crcOffset+4], crc)
	return buf
}

// WiredContainer is the second-layer package: the serialized OTA container
// behind a header carrying the staging address, length and integrity code,
// plus an authentication tag for secure board families.
type WiredContainer struct {
	LoadAddressBlob uint32
	Length          uint32 // length of the wrapped OTA bytes
	Options         uint32
	AuthTag         []byte // empty unless authenticated
	OTA             []byte // serialized OTA container
}

// PackageWired wraps a serialized OTA container for transfer over the serial
// link. For boards that require signing, key must be non-empty and the tag is
// inserted between the header and the OTA bytes.
func PackageWired(ota *OTAContainer, board Board, key []byte) (*WiredContainer, error) {
	otaBytes := ota.Bytes()
	if uint64(len(otaBytes)) > MaxWiredPayload {
		return nil, &InvalidImageError{
			Reason: "blob exceeds the wired length field",
			Size:   len(otaBytes),
			Max:    MaxWiredPayload,
		}
	}

	w := &WiredContainer{
		LoadAddressBlob: board.LoadAddressBlob,
		Length:          uint32(len(otaBytes)),
		OTA:             otaBytes,
	}
	if board.RequiresAuth {
		if len(key) == 0 {
			return nil, &InvalidImageError{Reason: "board requires an authenticated image but no key was supplied"}
		}
		w.Options |= OptAuthenticated
		w.AuthTag = Authenticate(otaBytes, key)
	}
	return w, nil
}

// Bytes serializes the wired container with its integrity code recomputed.
func (w *WiredContainer) Bytes() []byte {
	buf := make([]byte, headerSize+len(w.AuthTag)+len(w.OTA))
	binary.LittleEndian.PutUint32(buf[0:4], w.LoadAddressBlob)
	binary.LittleEndian.PutUint32(buf[4:8], w.Length)
	binary.LittleEndian.PutUint32(buf[optsOffset:optsOffset+4], w.Options)
	copy(buf[headerSize:], w.AuthTag)
	copy(buf[headerSize+len(w.AuthTag):], w.OTA)

	crc := Checksum(buf)
	binary.LittleEndian.PutUint32(buf[crcOffset:crcOffset+4], crc)
	return buf
}

// VerifyOTA recomputes the integrity code of a serialized OTA container and
// checks it against the stored value.
func VerifyOTA(b []byte) error {
	return verifyContainer(b)
}

// VerifyWired recomputes the integrity code of a serialized wired container
// and checks it against the stored value.
func VerifyWired(b []byte) error {
	return verifyContainer(b)
}

// Both container layouts keep the CRC in the same header word.
func verifyContainer(b []byte) error {
	if len(b) < headerSize {
		return &InvalidImageError{Reason: "container shorter than its header"}
	}
	stored := binary.LittleEndian.Uint32(b[crcOffset : crcOffset+4])

	scratch := make([]byte, len(b))
	copy(scratch, b)
	binary.LittleEndian.PutUint32(scratch[crcOffset:crcOffset+4], 0)

	computed := Checksum(scratch)
	if computed != stored {
		return &IntegrityError{Stored: stored, Computed: computed}
	}
	return nil
}

func padToWord(b []byte) []byte {
	rem := len(b) % wordAlign
	if rem == 0 {
		out := make([]byte, len(b))
		copy(out, b)
		return out
	}
	out := make([]byte, len(b)+wordAlign-rem)
	copy(out, b)
	return out
}
