// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tlv

import (
	"errors"
	"io"
	"strconv"
)

var (
	errUnexpectedEOC     = errors.New("unexpected end of contents")
	errInvalidEOC        = errors.New("invalid end of contents")
	errIndefinitePrim    = errors.New("indefinite-length primitive data value")
	errExceedsParent     = errors.New("data value exceeds parent")
	errTagTooLarge       = errors.New("tag number too large")
	errLengthTooLarge    = errors.New("length too large")
	errReservedLength    = errors.New("reserved length byte 0xff")
	errNonMinimalTag     = errors.New("non-minimal tag")
	errNonMinimalLength  = errors.New("non-minimal length")
	errIndefiniteLength  = errors.New("indefinite length not permitted")
	errTrailingData      = errors.New("trailing data after top-level value")
	errMaxDepth          = errors.New("maximum nesting depth exceeded")
	errInvalidEOCContent = errors.New("end of contents with non-zero length")
)

// ErrTrailingData is returned by [Parse] if the input contains more bytes after
// the first top-level data value.
var ErrTrailingData = errTrailingData

// SyntaxError represents an error in the TLV encoding. The error value contains
// the location of the error within the input as well as the [Header] of the
// surrounding data value.
type SyntaxError struct {
	requireKeyedLiterals
	nonComparable

	Err error // underlying error

	// ByteOffset is the location of the error. The location is usually the start of
	// the TLV header containing the error.
	ByteOffset int

	// Header is the TLV header of the constructed TLV whose value contained the
	// malformed data.
	Header Header
}

func (e *SyntaxError) Unwrap() error { return e.Err }
func (e *SyntaxError) Error() string {
	b := []byte("tlv: syntax error")
	if !e.Header.IsEndOfContents() {
		b = append(b, " within "...)
		b = append(b, e.Header.String()...)
	}
	if e.ByteOffset > 0 {
		//goland:noinspection GoDirectComparisonOfErrors
		if e.Err == io.ErrUnexpectedEOF {
			b = strconv.AppendInt(append(b, " at offset "...), int64(e.ByteOffset), 10)
		} else {
			b = strconv.AppendInt(append(b, " for TLV beginning at offset "...), int64(e.ByteOffset), 10)
		}
	}
	if e.Err != nil {
		b = append(b, ": "...)
		b = append(b, e.Err.Error()...)
	}
	return string(b)
}
