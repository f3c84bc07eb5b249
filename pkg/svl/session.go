// SPDX-License-Identifier: MIT
// Copyright (c) SparkFun Electronics

package svl

import (
	"context"
	"errors"
	"fmt"

	"github.com/kirk-sfe/artemis-uploader/pkg/serialio"
)

// Phase is the session's position in the protocol state machine.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseBaudDetect
	PhaseHandshake
	PhaseTransfer
	PhaseComplete
	PhaseDone
	PhaseAborted
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseBaudDetect:
		return "baud detect"
	case PhaseHandshake:
		return "version handshake"
	case PhaseTransfer:
		return "transfer"
	case PhaseComplete:
		return "completing"
	case PhaseDone:
		return "done"
	case PhaseAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// State is a snapshot of one upload attempt. It is discarded with the session;
// nothing persists across attempts.
type State struct {
	Phase             Phase
	BootloaderVersion int
	Capabilities      byte
	BytesSent         int
	FrameIndex        int
	RetryCount        int // retries for the frame currently on the wire
}

// Session runs one upload attempt against the bootloader. It owns its
// Transport exclusively for the attempt's lifetime and is strictly
// half-duplex: one outstanding exchange at a time, no pipelining, all state
// transitions sequential and non-reentrant.
type Session struct {
	transport serialio.Transport
	cfg       config

	phase          Phase
	version        int
	capabilities   byte
	bytesSent      int
	frameIndex     int
	retryCount     int
	retriesByFrame map[int]int
}

// New creates a session over the given transport.
func New(t serialio.Transport, opts ...Option) *Session {
	if t == nil {
		panic("svl: transport cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Session{
		transport:      t,
		cfg:            cfg,
		phase:          PhaseIdle,
		version:        -1,
		retriesByFrame: make(map[int]int),
	}
}

// State returns a snapshot of the session.
func (s *Session) State() State {
	return State{
		Phase:             s.phase,
		BootloaderVersion: s.version,
		Capabilities:      s.capabilities,
		BytesSent:         s.bytesSent,
		FrameIndex:        s.frameIndex,
		RetryCount:        s.retryCount,
	}
}

// Upload pushes a wired update blob to the device: baud detection, version
// handshake, then the device-driven frame loop. Cancellation via ctx is
// honored between frames only; the current exchange always completes first.
func (s *Session) Upload(ctx context.Context, blob []byte) error {
	if len(blob) == 0 {
		return fmt.Errorf("nothing to upload: empty blob")
	}

	err := s.run(ctx, blob)
	if err != nil {
		s.phase = PhaseAborted
	}
	return err
}

func (s *Session) run(ctx context.Context, blob []byte) error {
	if err := s.detectBaud(); err != nil {
		return err
	}

	s.logf("Got SVL Bootloader Version: %d", s.version)
	if s.cfg.expectedVersion >= 0 && s.version != s.cfg.expectedVersion {
		// Permissive by policy: old bootloaders still accept uploads.
		s.logf("Installed bootloader version %d does not match expected %d, continuing anyway",
			s.version, s.cfg.expectedVersion)
	}

	s.logf("Sending 'enter bootloader' command")
	if err := writePacket(s.transport, CmdBootload, nil); err != nil {
		return err
	}
	s.phase = PhaseHandshake

	return s.transfer(ctx, blob)
}

// detectBaud writes the training character and waits, within the short detect
// timeout, for the device to echo a well-formed version packet at the same
// rate. Anything else counts as a failed detection.
func (s *Session) detectBaud() error {
	s.phase = PhaseBaudDetect

	if err := s.transport.DiscardInput(); err != nil {
		return err
	}
	if err := s.transport.WriteAll([]byte{TrainingChar}); err != nil {
		return err
	}

	pkt, err := readPacket(s.transport, s.cfg.detectTimeout)
	if err != nil {
		var te *serialio.TimeoutError
		var pe *PacketError
		if errors.As(err, &te) || errors.As(err, &pe) {
			return &HandshakeTimeoutError{Timeout: s.cfg.detectTimeout, Err: err}
		}
		return err
	}
	if pkt.Cmd != CmdVersion || len(pkt.Data) < 1 {
		return &HandshakeTimeoutError{
			Timeout: s.cfg.detectTimeout,
			Err:     &PacketError{Reason: fmt.Sprintf("expected version packet, got command 0x%02X", pkt.Cmd)},
		}
	}

	s.version = int(pkt.Data[0])
	if len(pkt.Data) > 1 {
		s.capabilities = pkt.Data[1]
	}
	return nil
}

// transfer runs the device-driven request loop. The device asks for each
// frame; a retry request re-sends the frame on the wire; a done indication is
// only legal after the final frame.
func (s *Session) transfer(ctx context.Context, blob []byte) error {
	total := len(blob)
	var (
		offset   int // start of the frame currently on the wire
		frameLen int // 0 when nothing is in flight
	)

	for {
		// Cancellation is honored between frames only.
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("upload cancelled: %w", err)
		}

		pkt, err := s.readResponse()
		if err != nil {
			return err
		}

		switch pkt.Cmd {
		case CmdNext:
			if s.phase == PhaseHandshake {
				// The device has committed to bootloading: from here on it
				// cannot exit without a full transfer or a power cycle.
				s.phase = PhaseTransfer
				s.logf("Device ready, sending %d bytes in frames of %d", total, s.cfg.frameSize)
			} else if frameLen > 0 {
				s.ackFrame(&offset, &frameLen, total)
			}

			if offset >= total {
				return &UnexpectedResponseError{Phase: PhaseComplete, Cmd: pkt.Cmd}
			}
			frameLen = min(s.cfg.frameSize, total-offset)
			if err := writePacket(s.transport, CmdFrame, blob[offset:offset+frameLen]); err != nil {
				return err
			}

		case CmdRetry:
			if frameLen == 0 {
				return &UnexpectedResponseError{Phase: s.phase, Cmd: pkt.Cmd}
			}
			s.retryCount++
			s.retriesByFrame[s.frameIndex]++
			if s.retryCount > s.cfg.maxRetries {
				return &FrameIntegrityError{Frame: s.frameIndex, Retries: s.retryCount - 1}
			}
			s.logf("Retrying frame %d (attempt %d of %d)", s.frameIndex, s.retryCount+1, s.cfg.maxRetries+1)
			if err := writePacket(s.transport, CmdFrame, blob[offset:offset+frameLen]); err != nil {
				return err
			}

		case CmdDone:
			s.phase = PhaseComplete
			if frameLen == 0 || offset+frameLen != total {
				return &UnexpectedResponseError{Phase: PhaseComplete, Cmd: pkt.Cmd}
			}
			s.ackFrame(&offset, &frameLen, total)
			s.phase = PhaseDone
			return nil

		default:
			return &UnexpectedResponseError{Phase: s.phase, Cmd: pkt.Cmd}
		}
	}
}

// ackFrame books the frame on the wire as accepted and emits progress.
func (s *Session) ackFrame(offset, frameLen *int, total int) {
	s.bytesSent += *frameLen
	*offset += *frameLen
	*frameLen = 0
	s.frameIndex++
	s.retryCount = 0
	if s.cfg.progress != nil {
		s.cfg.progress(s.bytesSent, total)
	}
}

// readResponse reads the device's next request under the long protocol
// timeout, mapping timeouts onto the phase they interrupted.
func (s *Session) readResponse() (*Packet, error) {
	pkt, err := readPacket(s.transport, s.cfg.protocolTimeout)
	if err != nil {
		var te *serialio.TimeoutError
		if errors.As(err, &te) {
			return nil, &ProtocolTimeoutError{Phase: s.phase, Err: err}
		}
		return nil, err
	}
	return pkt, nil
}

func (s *Session) logf(format string, args ...interface{}) {
	if s.cfg.log != nil {
		s.cfg.log(fmt.Sprintf(format, args...))
	}
}
