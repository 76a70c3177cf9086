// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package per

import (
	"errors"
	"strconv"
	"strings"
)

var (
	errNoValue        = errors.New("no value assigned")
	errTrailingData   = errors.New("trailing data after top-level value")
	errMaxDepth       = errors.New("maximum nesting depth exceeded")
	errOutOfRange     = errors.New("value out of range")
	errFragment       = errors.New("invalid length determinant")
	errLengthTooLarge = errors.New("length too large")
	errNotInAlphabet  = errors.New("character not in effective alphabet")
	errEmptyInteger   = errors.New("empty integer encoding")
	errPadding        = errors.New("non-zero padding")
)

// ErrTrailingData is returned by [Unmarshal] if the input contains octets
// after the complete encoding of the value.
var ErrTrailingData = errTrailingData

// A SyntaxError suggests that the encoding is invalid for the object being
// decoded. Since PER encodings carry no tags, a mismatch between data and
// schema also surfaces as a SyntaxError.
type SyntaxError struct {
	BitOffset int    // position of the error in the input
	Object    string // qualified name of the object
	Err       error
}

func (e *SyntaxError) Error() string {
	var s strings.Builder
	s.WriteString("per: syntax error")
	if e.Object != "" {
		s.WriteString(" decoding ")
		s.WriteString(e.Object)
	}
	s.WriteString(" at bit ")
	s.WriteString(strconv.Itoa(e.BitOffset))
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
	s.WriteString("per: encode error")
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
