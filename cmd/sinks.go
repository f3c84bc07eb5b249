// SPDX-License-Identifier: MIT
// Copyright (c) SparkFun Electronics

package cmd

import (
	"fmt"
	"io"

	json "github.com/goccy/go-json"
)

// plainSink prints log lines and whole-percent progress updates. Used for
// non-interactive output (pipes, CI, --plain).
type plainSink struct {
	w           io.Writer
	lastPercent int
}

func newPlainSink(w io.Writer) *plainSink {
	return &plainSink{w: w, lastPercent: -1}
}

func (s *plainSink) Log(line string) {
	fmt.Fprintln(s.w, line)
}

func (s *plainSink) Progress(sent, total int) {
	percent := 0
	if total > 0 {
		percent = sent * 100 / total
	}
	if percent == s.lastPercent {
		return
	}
	s.lastPercent = percent
	fmt.Fprintf(s.w, "Sent %d of %d bytes (%d%%)\n", sent, total, percent)
}

// jsonSink emits one machine-readable event per line, for wrapping this tool
// in scripts or other front-ends.
type jsonSink struct {
	enc *json.Encoder
}

type jsonEvent struct {
	Type  string `json:"type"`
	Line  string `json:"line,omitempty"`
	Sent  int    `json:"sent,omitempty"`
	Total int    `json:"total,omitempty"`
}

func newJSONSink(w io.Writer) *jsonSink {
	return &jsonSink{enc: json.NewEncoder(w)}
}

func (s *jsonSink) Log(line string) {
	_ = s.enc.Encode(jsonEvent{Type: "log", Line: line})
}

func (s *jsonSink) Progress(sent, total int) {
	_ = s.enc.Encode(jsonEvent{Type: "progress", Sent: sent, Total: total})
}
