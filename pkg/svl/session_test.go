// SPDX-License-Identifier: MIT
// Copyright (c) SparkFun Electronics

package svl

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/kirk-sfe/artemis-uploader/pkg/serialio"
)

// fakeDevice emulates the SVL bootloader behind the Transport interface. It
// reacts to host writes synchronously, queueing its response bytes for the
// session's next read. Reads past the queue report a timeout immediately, so
// the timeout-path tests run without real delays.
type fakeDevice struct {
	version byte
	total   int // wired blob size the device expects

	// Failure-injection knobs.
	silent      bool        // never answer the training character
	versionCmd  byte        // command used for the version reply (0 = CmdVersion)
	neverReady  bool        // acknowledge bootload but never request a frame
	firstCmd    byte        // first request after bootload (0 = CmdNext)
	retries     map[int]int // frame index -> retry requests before accepting
	muteAfter   int         // go silent after accepting this many frames (0 = never)
	doneAfter   int         // claim completion after this many frames (0 = honest)
	greedy      bool        // keep requesting frames past the end of the blob
	badFrameCRC bool        // corrupt the CRC of every queued response

	started  bool
	accepted int    // frames accepted
	received []byte // payload bytes accepted so far
	sends    int    // frame packets received, including re-sends
	pending  []byte // queued device -> host bytes
}

func (d *fakeDevice) queue(cmd byte, data []byte) {
	pkt, err := EncodePacket(cmd, data)
	if err != nil {
		panic(err)
	}
	if d.badFrameCRC {
		pkt[len(pkt)-1] ^= 0xFF
	}
	d.pending = append(d.pending, pkt...)
}

func (d *fakeDevice) ReadExact(buf []byte, timeout time.Duration) error {
	if len(d.pending) < len(buf) {
		return &serialio.TimeoutError{Wanted: len(buf), Got: 0}
	}
	copy(buf, d.pending[:len(buf)])
	d.pending = d.pending[len(buf):]
	return nil
}

func (d *fakeDevice) WriteAll(p []byte) error {
	if !d.started && len(p) == 1 && p[0] == TrainingChar {
		d.started = true
		if !d.silent {
			cmd := byte(CmdVersion)
			if d.versionCmd != 0 {
				cmd = d.versionCmd
			}
			d.queue(cmd, []byte{d.version, 0x00})
		}
		return nil
	}

	cmd, data, err := parseHostPacket(p)
	if err != nil {
		return fmt.Errorf("fake device: %v", err)
	}

	switch cmd {
	case CmdBootload:
		if d.neverReady {
			return nil
		}
		first := byte(CmdNext)
		if d.firstCmd != 0 {
			first = d.firstCmd
		}
		d.queue(first, nil)

	case CmdFrame:
		d.sends++
		if d.retries[d.accepted] > 0 {
			d.retries[d.accepted]--
			d.queue(CmdRetry, nil)
			return nil
		}
		d.received = append(d.received, data...)
		d.accepted++
		if d.muteAfter > 0 && d.accepted >= d.muteAfter {
			return nil
		}
		if d.doneAfter > 0 && d.accepted >= d.doneAfter {
			d.queue(CmdDone, nil)
			return nil
		}
		if len(d.received) >= d.total {
			if d.greedy {
				d.queue(CmdNext, nil)
			} else {
				d.queue(CmdDone, nil)
			}
		} else {
			d.queue(CmdNext, nil)
		}
	}
	return nil
}

func (d *fakeDevice) DiscardInput() error {
	d.pending = nil
	return nil
}

func (d *fakeDevice) Close() error { return nil }

// parseHostPacket decodes one host packet, validating its length field and CRC
// the way the firmware does.
func parseHostPacket(p []byte) (cmd byte, data []byte, err error) {
	if len(p) < 5 {
		return 0, nil, fmt.Errorf("host wrote %d bytes, below minimum packet size", len(p))
	}
	n := int(p[0])<<8 | int(p[1])
	if len(p) != 2+n {
		return 0, nil, fmt.Errorf("length field %d does not match %d bytes on the wire", n, len(p)-2)
	}
	body := p[2:]
	wireCRC := uint16(body[n-2])<<8 | uint16(body[n-1])
	if calc := CalculateCRC(body[:n-2]); calc != wireCRC {
		return 0, nil, fmt.Errorf("host packet CRC mismatch")
	}
	return body[0], body[1 : n-2], nil
}

func testBlob(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i * 31)
	}
	return b
}

// ============================================================
// Happy Path
// ============================================================

func TestUpload_EndToEnd(t *testing.T) {
	data := testBlob(10000)
	dev := &fakeDevice{version: 5, total: len(data)}

	var progress [][2]int
	s := New(dev, WithFrameSize(512), WithProgress(func(sent, total int) {
		progress = append(progress, [2]int{sent, total})
	}))

	if err := s.Upload(context.Background(), data); err != nil {
		t.Fatalf("upload failed: %v", err)
	}

	if !bytes.Equal(dev.received, data) {
		t.Error("device did not receive the blob byte-for-byte")
	}
	if dev.accepted != 20 {
		t.Errorf("expected 20 frames, device accepted %d", dev.accepted)
	}
	if dev.sends != 20 {
		t.Errorf("expected 20 frame packets with no re-sends, got %d", dev.sends)
	}

	st := s.State()
	if st.Phase != PhaseDone {
		t.Errorf("expected phase %v, got %v", PhaseDone, st.Phase)
	}
	if st.BytesSent != 10000 {
		t.Errorf("expected 10000 bytes sent, got %d", st.BytesSent)
	}
	if st.BootloaderVersion != 5 {
		t.Errorf("expected bootloader version 5, got %d", st.BootloaderVersion)
	}

	// Progress must arrive once per accepted frame, strictly increasing, and
	// finish exactly at the blob size. The final frame is the remainder.
	if len(progress) != 20 {
		t.Fatalf("expected 20 progress events, got %d", len(progress))
	}
	prev := 0
	for i, p := range progress {
		if p[0] <= prev {
			t.Errorf("progress event %d not strictly increasing: %d after %d", i, p[0], prev)
		}
		if p[1] != 10000 {
			t.Errorf("progress event %d reports total %d, want 10000", i, p[1])
		}
		prev = p[0]
	}
	if progress[len(progress)-1][0] != 10000 {
		t.Errorf("final progress event %d, want 10000", progress[len(progress)-1][0])
	}
	if last := progress[19][0] - progress[18][0]; last != 272 {
		t.Errorf("final frame carried %d bytes, want the 272-byte remainder", last)
	}
}

func TestUpload_SingleShortFrame(t *testing.T) {
	data := testBlob(100)
	dev := &fakeDevice{version: 5, total: len(data)}

	s := New(dev, WithFrameSize(512))
	if err := s.Upload(context.Background(), data); err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	if dev.accepted != 1 {
		t.Errorf("expected a single frame, device accepted %d", dev.accepted)
	}
	if !bytes.Equal(dev.received, data) {
		t.Error("device did not receive the blob byte-for-byte")
	}
}

func TestUpload_EmptyBlob(t *testing.T) {
	dev := &fakeDevice{version: 5}
	s := New(dev)
	if err := s.Upload(context.Background(), nil); err == nil {
		t.Error("expected an error for an empty blob")
	}
}

// ============================================================
// Retries
// ============================================================

func TestUpload_RetriesOneFrame(t *testing.T) {
	data := testBlob(10000)
	dev := &fakeDevice{version: 5, total: len(data), retries: map[int]int{3: 1}}

	s := New(dev, WithFrameSize(512))
	if err := s.Upload(context.Background(), data); err != nil {
		t.Fatalf("upload failed: %v", err)
	}

	if !bytes.Equal(dev.received, data) {
		t.Error("device did not receive the blob byte-for-byte")
	}
	if dev.sends != 21 {
		t.Errorf("expected 21 frame packets (20 frames + 1 re-send), got %d", dev.sends)
	}
	if got := s.retriesByFrame[3]; got != 1 {
		t.Errorf("expected 1 retry recorded for frame 3, got %d", got)
	}
	if len(s.retriesByFrame) != 1 {
		t.Errorf("retries recorded for unexpected frames: %v", s.retriesByFrame)
	}
	if s.State().RetryCount != 0 {
		t.Errorf("retry counter should reset after the frame is accepted, got %d", s.State().RetryCount)
	}
}

func TestUpload_RetryBudgetExhausted(t *testing.T) {
	data := testBlob(2000)
	dev := &fakeDevice{version: 5, total: len(data), retries: map[int]int{0: 100}}

	s := New(dev, WithFrameSize(512), WithMaxRetries(3))
	err := s.Upload(context.Background(), data)

	var fie *FrameIntegrityError
	if !errors.As(err, &fie) {
		t.Fatalf("expected FrameIntegrityError, got %v", err)
	}
	if fie.Frame != 0 {
		t.Errorf("expected failure on frame 0, got frame %d", fie.Frame)
	}
	if fie.Retries != 3 {
		t.Errorf("expected 3 recorded retries, got %d", fie.Retries)
	}
	// One initial send plus maxRetries re-sends, then abort.
	if dev.sends != 4 {
		t.Errorf("expected 4 frame packets, got %d", dev.sends)
	}
	if Recoverable(err) {
		t.Error("an exhausted retry budget must not be recoverable")
	}
	if s.State().Phase != PhaseAborted {
		t.Errorf("expected phase %v, got %v", PhaseAborted, s.State().Phase)
	}
}

// ============================================================
// Baud Detection Failures
// ============================================================

func TestUpload_SilentDevice(t *testing.T) {
	dev := &fakeDevice{silent: true}
	s := New(dev, WithDetectTimeout(10*time.Millisecond))
	err := s.Upload(context.Background(), testBlob(100))

	var hte *HandshakeTimeoutError
	if !errors.As(err, &hte) {
		t.Fatalf("expected HandshakeTimeoutError, got %v", err)
	}
	if !Recoverable(err) {
		t.Error("a silent device must be recoverable: it never entered the bootloader")
	}
}

func TestUpload_GarbledVersionPacket(t *testing.T) {
	dev := &fakeDevice{version: 5, badFrameCRC: true}
	s := New(dev, WithDetectTimeout(10*time.Millisecond))
	err := s.Upload(context.Background(), testBlob(100))

	var hte *HandshakeTimeoutError
	if !errors.As(err, &hte) {
		t.Fatalf("expected HandshakeTimeoutError, got %v", err)
	}
	if !Recoverable(err) {
		t.Error("a garbled detection reply must be recoverable")
	}
}

func TestUpload_WrongCommandDuringDetect(t *testing.T) {
	dev := &fakeDevice{version: 5, versionCmd: CmdNext}
	s := New(dev, WithDetectTimeout(10*time.Millisecond))
	err := s.Upload(context.Background(), testBlob(100))

	var hte *HandshakeTimeoutError
	if !errors.As(err, &hte) {
		t.Fatalf("expected HandshakeTimeoutError, got %v", err)
	}
}

// ============================================================
// Handshake and Transfer Failures
// ============================================================

func TestUpload_TimeoutBeforeFirstFrameRequest(t *testing.T) {
	dev := &fakeDevice{version: 5, neverReady: true}
	s := New(dev, WithProtocolTimeout(10*time.Millisecond))
	err := s.Upload(context.Background(), testBlob(100))

	var pte *ProtocolTimeoutError
	if !errors.As(err, &pte) {
		t.Fatalf("expected ProtocolTimeoutError, got %v", err)
	}
	if pte.Phase != PhaseHandshake {
		t.Errorf("expected phase %v, got %v", PhaseHandshake, pte.Phase)
	}
	if !Recoverable(err) {
		t.Error("a timeout before the first frame request must be recoverable")
	}
}

func TestUpload_TimeoutMidTransfer(t *testing.T) {
	data := testBlob(4096)
	dev := &fakeDevice{version: 5, total: len(data), muteAfter: 2}

	s := New(dev, WithFrameSize(512), WithProtocolTimeout(10*time.Millisecond))
	err := s.Upload(context.Background(), data)

	var pte *ProtocolTimeoutError
	if !errors.As(err, &pte) {
		t.Fatalf("expected ProtocolTimeoutError, got %v", err)
	}
	if pte.Phase != PhaseTransfer {
		t.Errorf("expected phase %v, got %v", PhaseTransfer, pte.Phase)
	}
	if Recoverable(err) {
		t.Error("a mid-transfer timeout must not be recoverable: the device is committed")
	}
}

func TestUpload_UnknownCommandAfterBootload(t *testing.T) {
	dev := &fakeDevice{version: 5, firstCmd: 0x7F}
	s := New(dev)
	err := s.Upload(context.Background(), testBlob(100))

	var ure *UnexpectedResponseError
	if !errors.As(err, &ure) {
		t.Fatalf("expected UnexpectedResponseError, got %v", err)
	}
	if ure.Cmd != 0x7F {
		t.Errorf("expected offending command 0x7F, got 0x%02X", ure.Cmd)
	}
	if ure.Phase != PhaseHandshake {
		t.Errorf("expected phase %v, got %v", PhaseHandshake, ure.Phase)
	}
	if !Recoverable(err) {
		t.Error("garbage before the first frame request must be recoverable")
	}
}

func TestUpload_PrematureDone(t *testing.T) {
	data := testBlob(4096)
	dev := &fakeDevice{version: 5, total: len(data), doneAfter: 2}

	s := New(dev, WithFrameSize(512))
	err := s.Upload(context.Background(), data)

	var ure *UnexpectedResponseError
	if !errors.As(err, &ure) {
		t.Fatalf("expected UnexpectedResponseError, got %v", err)
	}
	if ure.Cmd != CmdDone {
		t.Errorf("expected offending command 0x%02X, got 0x%02X", CmdDone, ure.Cmd)
	}
	if Recoverable(err) {
		t.Error("a premature completion must not be recoverable")
	}
}

func TestUpload_FrameRequestPastEnd(t *testing.T) {
	data := testBlob(1024)
	dev := &fakeDevice{version: 5, total: len(data), greedy: true}

	s := New(dev, WithFrameSize(512))
	err := s.Upload(context.Background(), data)

	var ure *UnexpectedResponseError
	if !errors.As(err, &ure) {
		t.Fatalf("expected UnexpectedResponseError, got %v", err)
	}
	if ure.Cmd != CmdNext {
		t.Errorf("expected offending command 0x%02X, got 0x%02X", CmdNext, ure.Cmd)
	}
}

// ============================================================
// Version Policy and Cancellation
// ============================================================

func TestUpload_VersionMismatchIsLoggedNotFatal(t *testing.T) {
	data := testBlob(512)
	dev := &fakeDevice{version: 5, total: len(data)}

	var logs []string
	s := New(dev, WithExpectedVersion(4), WithLog(func(line string) {
		logs = append(logs, line)
	}))

	if err := s.Upload(context.Background(), data); err != nil {
		t.Fatalf("a version mismatch must not abort the upload: %v", err)
	}

	joined := strings.Join(logs, "\n")
	if !strings.Contains(joined, "does not match") {
		t.Errorf("expected a mismatch log line, got:\n%s", joined)
	}
}

func TestUpload_Cancelled(t *testing.T) {
	data := testBlob(4096)
	dev := &fakeDevice{version: 5, total: len(data)}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := New(dev, WithFrameSize(512))
	err := s.Upload(ctx, data)

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if s.State().Phase != PhaseAborted {
		t.Errorf("expected phase %v, got %v", PhaseAborted, s.State().Phase)
	}
	if dev.sends != 0 {
		t.Errorf("no frames should go out under a cancelled context, got %d", dev.sends)
	}
}

func TestNew_NilTransportPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected a panic for a nil transport")
		}
	}()
	New(nil)
}
