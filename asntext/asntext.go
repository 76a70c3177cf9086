// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package asntext formats values in the ASN.1 value notation of
// [Rec. ITU-T X.680] and parses the notation of simple values.
//
// Every value that has a notation can be formatted. Values that carry unknown
// extensions or unresolved open type content have no notation and produce an
// [asn1rt.NotSupportedError]. Parsing is limited to the built-in simple types
// (including ENUMERATED, REAL and OBJECT IDENTIFIER) and to SEQUENCE OF or
// SET OF values of such types.
//
// [Rec. ITU-T X.680]: https://www.itu.int/rec/T-REC-X.680
package asntext

import (
	"errors"
	"strconv"
	"strings"

	"codello.dev/asn1rt"
)

// codecName identifies this package in errors.
const codecName = "asntext"

// Options configure formatting and parsing.
type Options struct {
	// Policy is applied to values before they are formatted and to parsed
	// values before they are assigned.
	Policy asn1rt.Policy
}

// Default validates the shape and the bounds of every value.
var Default = Options{Policy: asn1rt.Validated}

var errNoValue = errors.New("no value assigned")

// A SyntaxError reports invalid value notation. Offset is the position of the
// offending token in bytes.
type SyntaxError struct {
	Offset int
	Err    error
}

func (e *SyntaxError) Error() string {
	var s strings.Builder
	s.WriteString("asntext: syntax error at offset ")
	s.WriteString(strconv.Itoa(e.Offset))
	s.WriteString(": ")
	s.WriteString(e.Err.Error())
	return s.String()
}

func (e *SyntaxError) Unwrap() error {
	return e.Err
}

// Marshal returns the value notation of the value in the slot of o.
func Marshal(o *asn1rt.Object, opts Options) (string, error) {
	v, ok := o.Value()
	if !ok {
		return "", &asn1rt.ShapeError{Object: o.QualifiedName(), Err: errNoValue}
	}
	return MarshalValue(o, v, opts)
}

// MarshalValue returns the value notation of v as a value of o.
func MarshalValue(o *asn1rt.Object, v any, opts Options) (string, error) {
	if err := o.Validate(v, nil, opts.Policy); err != nil {
		return "", err
	}
	var e encoder
	if err := e.encode(o, v); err != nil {
		return "", err
	}
	return e.b.String(), nil
}

// Unmarshal parses the value notation s of a value of o and assigns the value
// to the slot of o using opts.Policy.
func Unmarshal(o *asn1rt.Object, s string, opts Options) (any, error) {
	p := &parser{sc: scanner{src: s}}
	if err := p.next(); err != nil {
		return nil, err
	}
	v, err := p.value(o)
	if err != nil {
		return nil, err
	}
	if p.tok.kind != tokEOF {
		return nil, p.fail(errors.New("unexpected " + p.tok.String() + " after value"))
	}
	if err = o.AssignWith(v, opts.Policy); err != nil {
		return nil, err
	}
	return v, nil
}
