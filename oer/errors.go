// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package oer

import (
	"errors"
	"strconv"
	"strings"
)

var (
	errNoValue       = errors.New("no value assigned")
	errTrailingData  = errors.New("trailing data after top-level value")
	errMaxDepth      = errors.New("maximum nesting depth exceeded")
	errOutOfRange    = errors.New("value out of range")
	errLength        = errors.New("invalid length determinant")
	errNonCanonical  = errors.New("non-canonical encoding")
	errEmptyInteger  = errors.New("empty integer encoding")
	errUnknownTag    = errors.New("no alternative with this tag")
	errBitStringSize = errors.New("invalid bit string length")
)

// ErrTrailingData is returned by [Unmarshal] if the input contains octets
// after the encoding of the value.
var ErrTrailingData = errTrailingData

// A SyntaxError suggests that the encoding is invalid for the object being
// decoded.
type SyntaxError struct {
	ByteOffset int    // position of the error in the input
	Object     string // qualified name of the object
	Err        error
}

func (e *SyntaxError) Error() string {
	var s strings.Builder
	s.WriteString("oer: syntax error")
	if e.Object != "" {
		s.WriteString(" decoding ")
		s.WriteString(e.Object)
	}
	s.WriteString(" at offset ")
	s.WriteString(strconv.Itoa(e.ByteOffset))
	if e.Err != nil {
		s.WriteString(": ")
		s.WriteString(e.Err.Error())
	}
	return s.String()
}

func (e *SyntaxError) Unwrap() error {
	return e.Err
}

// EncodeError indicates that a value could not be encoded for an object.
type EncodeError struct {
	Object string // qualified name of the object
	Err    error
}

func (e *EncodeError) Error() string {
	var s strings.Builder
	s.WriteString("oer: encode error")
	if e.Object != "" {
		s.WriteString(" for ")
		s.WriteString(e.Object)
	}
	s.WriteString(": ")
	s.WriteString(e.Err.Error())
	return s.String()
}

func (e *EncodeError) Unwrap() error {
	return e.Err
}
