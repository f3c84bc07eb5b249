// SPDX-License-Identifier: MIT
// Copyright (c) SparkFun Electronics

package svl

// CalculateCRC computes the CRC-16-CCITT (XModem) checksum used on every
// packet exchanged with the bootloader.
func CalculateCRC(data []byte) uint16 {
	crc := uint16(crcInitial)
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ crcPolynomial
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
