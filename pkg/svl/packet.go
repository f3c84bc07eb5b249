// SPDX-License-Identifier: MIT
// Copyright (c) SparkFun Electronics

package svl

import (
	"fmt"
	"time"

	"github.com/kirk-sfe/artemis-uploader/pkg/serialio"
)

// Wire format, both directions:
//
//	[len:2 BE][cmd:1][data:len-3][crc:2 BE]
//
// len counts the command byte, data and CRC. The CRC covers cmd+data.
const (
	packetOverhead = 3 // command byte + 16-bit CRC
	maxPacketData  = 0xFFFF - packetOverhead
)

// Packet is one decoded protocol message.
type Packet struct {
	Cmd  byte
	Data []byte
}

// PacketError reports a malformed or corrupted packet from the device.
type PacketError struct {
	Reason string
}

func (e *PacketError) Error() string {
	return fmt.Sprintf("bad packet: %s", e.Reason)
}

// EncodePacket builds the wire form of a command and its data.
func EncodePacket(cmd byte, data []byte) ([]byte, error) {
	if len(data) > maxPacketData {
		return nil, fmt.Errorf("packet data too large: %d bytes (max %d)", len(data), maxPacketData)
	}

	n := len(data) + packetOverhead
	buf := make([]byte, 0, 2+n)
	buf = append(buf, byte(n>>8), byte(n))
	buf = append(buf, cmd)
	buf = append(buf, data...)

	crc := CalculateCRC(buf[2:])
	buf = append(buf, byte(crc>>8), byte(crc))
	return buf, nil
}

// writePacket encodes and writes one packet.
func writePacket(t serialio.Transport, cmd byte, data []byte) error {
	buf, err := EncodePacket(cmd, data)
	if err != nil {
		return err
	}
	return t.WriteAll(buf)
}

// readPacket reads and validates one packet within the given timeout. The
// timeout spans the whole packet: a device that stalls mid-packet still
// surfaces a *serialio.TimeoutError.
func readPacket(t serialio.Transport, timeout time.Duration) (*Packet, error) {
	deadline := time.Now().Add(timeout)

	var hdr [2]byte
	if err := t.ReadExact(hdr[:], timeout); err != nil {
		return nil, err
	}

	n := int(hdr[0])<<8 | int(hdr[1])
	if n < packetOverhead {
		return nil, &PacketError{Reason: fmt.Sprintf("length %d below minimum %d", n, packetOverhead)}
	}

	body := make([]byte, n)
	if err := t.ReadExact(body, time.Until(deadline)); err != nil {
		return nil, err
	}

	wireCRC := uint16(body[n-2])<<8 | uint16(body[n-1])
	if calc := CalculateCRC(body[:n-2]); calc != wireCRC {
		return nil, &PacketError{Reason: fmt.Sprintf("CRC mismatch: expected 0x%04X, got 0x%04X", calc, wireCRC)}
	}

	return &Packet{Cmd: body[0], Data: body[1 : n-2]}, nil
}
