// SPDX-License-Identifier: MIT
// Copyright (c) SparkFun Electronics

package blob

import (
	"crypto/hmac"
	"crypto/sha256"
	"hash/crc32"
)

// AuthTagSize is the length of the authentication tag embedded in wired
// containers built for secure bootloader variants.
const AuthTagSize = sha256.Size

// Checksum computes the CRC-32 (IEEE) integrity code stored in both container
// headers. The bootloader recomputes the same code over the received bytes with
// the integrity field zeroed, so the polynomial and byte order are a wire
// contract, not an implementation choice.
func Checksum(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}

// Authenticate computes the HMAC-SHA256 tag for images that must be signed
// before a secure bootloader accepts them. Key provisioning is owned by the
// caller; boards that do not require signing never call this.
func Authenticate(data, key []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}
