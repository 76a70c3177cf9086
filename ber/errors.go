// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ber

import (
	"strings"

	"codello.dev/asn1rt"
)

// A SyntaxError suggests that the ASN.1 data is invalid. This can either
// indicate an invalid TLV structure (in which case the error wraps a
// [tlv.SyntaxError]) or invalid content octets for the type being decoded. If
// the data is syntactically valid but does not match the schema,
// [StructuralError] is a better fit.
type SyntaxError struct {
	Tag asn1rt.Tag // where the syntax error occurred
	Err error
}

func (e *SyntaxError) Error() string {
	var s strings.Builder
	s.WriteString("ber: syntax error")
	if e.Tag != (asn1rt.Tag{}) {
		s.WriteString(" decoding ")
		s.WriteString(e.Tag.String())
	}
	if e.Err != nil {
		s.WriteString(": ")
		s.WriteString(e.Err.Error())
	}
	return s.String()
}

func (e *SyntaxError) Unwrap() error {
	return e.Err
}

// A StructuralError suggests that the ASN.1 data is valid, but does not match
// the object it is decoded for. Examples include unexpected tags and missing
// mandatory components.
//
// See also [SyntaxError].
type StructuralError struct {
	Tag    asn1rt.Tag
	Object string // qualified name of the object
	Err    error
}

func (e *StructuralError) Error() string {
	var s strings.Builder
	s.WriteString("ber: structural error")
	if e.Tag != (asn1rt.Tag{}) || e.Object != "" {
		s.WriteString(" decoding")
		if e.Tag != (asn1rt.Tag{}) {
			s.WriteByte(' ')
			s.WriteString(e.Tag.String())
		}
		if e.Object != "" {
			s.WriteString(" into ")
			s.WriteString(e.Object)
		}
	}
	if e.Err != nil {
		s.WriteString(": ")
		s.WriteString(e.Err.Error())
	}
	return s.String()
}

func (e *StructuralError) Unwrap() error {
	return e.Err
}

// EncodeError indicates that a value could not be encoded for an object.
// Shape and bound violations found during encoding are wrapped in an
// EncodeError.
type EncodeError struct {
	Object string // qualified name of the object
	Err    error
}

func (e *EncodeError) Error() string {
	var s strings.Builder
	s.WriteString("ber: encode error")
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
