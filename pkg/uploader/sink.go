// SPDX-License-Identifier: MIT
// Copyright (c) SparkFun Electronics

package uploader

// EventSink receives human-readable status lines and numeric progress from a
// running operation. Events are delivered synchronously, in the order they
// occur, from the goroutine running the operation; implementations may relay
// them with channels, direct calls or anything else, and should return
// quickly.
type EventSink interface {
	Log(line string)
	Progress(sent, total int)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) Log(string)        {}
func (NopSink) Progress(int, int) {}

// SinkFuncs adapts plain functions to an EventSink. Nil fields are skipped.
type SinkFuncs struct {
	LogFunc      func(line string)
	ProgressFunc func(sent, total int)
}

func (s SinkFuncs) Log(line string) {
	if s.LogFunc != nil {
		s.LogFunc(line)
	}
}

func (s SinkFuncs) Progress(sent, total int) {
	if s.ProgressFunc != nil {
		s.ProgressFunc(sent, total)
	}
}
