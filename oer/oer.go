// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package oer implements the ASN.1 Octet Encoding Rules (OER) and their
// canonical variant COER over the objects of an [asn1rt.Schema]. The encoding
// rules are defined in [Rec. ITU-T X.696].
//
// OER encodings are octet-aligned and carry no tags except for the
// alternatives of a CHOICE. Like PER, the constraints of the schema select
// the encoding of each value. The following details apply:
//
//   - Extensible value and size constraints are not visible to OER. Such
//     values use the encoding of an unconstrained type.
//   - REAL values use IEEE 754 binary32 or binary64 if every bound of the
//     value constraint is exactly representable in that format. Other REAL
//     values use the contents octets of their BER encoding.
//   - Unknown CHOICE alternatives keep their complete encoding including the
//     tag. Unknown SEQUENCE and SET extensions keep the contents of their
//     open type field.
//   - The canonical profile omits components equal to their DEFAULT value
//     and rejects non-canonical encodings during decoding.
//
// [Rec. ITU-T X.696]: https://www.itu.int/rec/T-REC-X.696
package oer

import (
	"codello.dev/asn1rt"
	"codello.dev/asn1rt/bitbuf"
)

// codecName identifies this package in log messages.
const codecName = "oer"

// Options configure the encoder and decoder.
type Options struct {
	// Canonical selects COER. Components equal to their DEFAULT value are
	// omitted and the decoder accepts only canonical encodings.
	Canonical bool

	// MaxDepth limits the nesting of decoded values. If MaxDepth is 0,
	// [asn1rt.DefaultMaxDepth] is used.
	MaxDepth int

	// Policy is applied to decoded values before they are assigned and to
	// values before they are encoded.
	Policy asn1rt.Policy
}

// Predefined option profiles.
var (
	OER  = Options{Policy: asn1rt.Validated}
	COER = Options{Canonical: true, Policy: asn1rt.Validated}
)

func (o Options) maxDepth() int {
	if o.MaxDepth <= 0 {
		return asn1rt.DefaultMaxDepth
	}
	return o.MaxDepth
}

// Marshal returns the encoding of the value in the slot of o.
func Marshal(o *asn1rt.Object, opts Options) ([]byte, error) {
	v, ok := o.Value()
	if !ok {
		return nil, &EncodeError{Object: o.QualifiedName(), Err: errNoValue}
	}
	return MarshalValue(o, v, opts)
}

// MarshalValue returns the encoding of v as a value of o.
func MarshalValue(o *asn1rt.Object, v any, opts Options) ([]byte, error) {
	b, _, err := marshal(o, v, opts, false)
	return b, err
}

// MarshalStructure works like [MarshalValue] and additionally returns the
// layout of the encoding. Offsets and lengths of the fields are given in bits.
func MarshalStructure(o *asn1rt.Object, v any, opts Options) ([]byte, *bitbuf.Field, error) {
	b, fields, err := marshal(o, v, opts, true)
	if err != nil {
		return nil, nil, err
	}
	return b, fields[0], nil
}

func marshal(o *asn1rt.Object, v any, opts Options, record bool) ([]byte, []*bitbuf.Field, error) {
	if err := o.Validate(v, nil, opts.Policy); err != nil {
		return nil, nil, err
	}
	e := &encoder{w: bitbuf.NewWriter(), opts: opts}
	if record {
		e.w.Record()
	}
	if err := e.encode(o, v, nil); err != nil {
		return nil, nil, err
	}
	return e.w.Bytes(), e.w.Fields(), nil
}

// Unmarshal decodes the encoding of a value of o from b and assigns it to the
// slot of o using opts.Policy.
func Unmarshal(o *asn1rt.Object, b []byte, opts Options) (any, error) {
	v, _, err := unmarshal(o, b, opts, false)
	return v, err
}

// UnmarshalStructure works like [Unmarshal] and additionally returns the
// layout of the encoding.
func UnmarshalStructure(o *asn1rt.Object, b []byte, opts Options) (any, *bitbuf.Field, error) {
	v, fields, err := unmarshal(o, b, opts, true)
	if len(fields) == 0 {
		return v, nil, err
	}
	return v, fields[0], err
}

func unmarshal(o *asn1rt.Object, b []byte, opts Options, record bool) (any, []*bitbuf.Field, error) {
	d := &decoder{r: bitbuf.NewReader(b), opts: opts}
	if record {
		d.r.Record()
	}
	v, err := d.decode(o, nil)
	if err == nil && d.r.Remaining() > 0 {
		err = d.syntax(o, errTrailingData)
	}
	if err != nil {
		return nil, d.r.Fields(), err
	}
	if err = o.AssignWith(v, opts.Policy); err != nil {
		return nil, d.r.Fields(), err
	}
	return v, d.r.Fields(), nil
}
