// SPDX-License-Identifier: MIT
// Copyright (c) SparkFun Electronics

package blob

import "fmt"

// InvalidImageError reports an image that cannot be packaged: unreadable,
// empty, or too large for the container's length field. Packaging failures are
// fatal and happen before any transport is opened.
type InvalidImageError struct {
	Reason string
	Size   int
	Max    int
	Err    error
}

func (e *InvalidImageError) Error() string {
	if e.Max > 0 {
		return fmt.Sprintf("invalid image: %s (%d bytes, limit %d)", e.Reason, e.Size, e.Max)
	}
	return fmt.Sprintf("invalid image: %s", e.Reason)
}

func (e *InvalidImageError) Unwrap() error { return e.Err }

// IntegrityError reports a container whose stored integrity code does not match
// the code recomputed over its serialized bytes.
type IntegrityError struct {
	Stored   uint32
	Computed uint32
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity code mismatch: stored 0x%08X, computed 0x%08X", e.Stored, e.Computed)
}
