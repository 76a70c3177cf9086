// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package per implements the ASN.1 Packed Encoding Rules (PER) over the
// objects of an [asn1rt.Schema] in both the ALIGNED and the UNALIGNED variant.
// The encoding rules are defined in [Rec. ITU-T X.691].
//
// PER encodings carry no tags. Constraints of the schema select the encoding
// of each value, so a value can only be decoded with the same schema it was
// encoded with. The following details apply:
//
//   - A complete encoding is padded to a whole number of octets. An encoding
//     without any bits is a single zero octet.
//   - REAL, OBJECT IDENTIFIER and RELATIVE-OID values use the contents octets
//     of their BER encoding.
//   - The index of an unknown ENUMERATED extension is the index within the
//     extension additions, not the numeric value of the item.
//   - Canonical encodings omit components equal to their DEFAULT value.
//     Decoding never fills in default values.
//
// [Rec. ITU-T X.691]: https://www.itu.int/rec/T-REC-X.691
package per

import (
	"codello.dev/asn1rt"
	"codello.dev/asn1rt/bitbuf"
)

// codecName identifies this package in log messages.
const codecName = "per"

// Options configure the encoder and decoder.
type Options struct {
	// Aligned selects the ALIGNED variant. Otherwise, the UNALIGNED variant is
	// used.
	Aligned bool

	// Canonical omits components equal to their DEFAULT value. Decoders
	// additionally reject non-zero padding bits.
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
	Aligned   = Options{Aligned: true, Canonical: true, Policy: asn1rt.Validated}
	Unaligned = Options{Canonical: true, Policy: asn1rt.Validated}
)

func (o Options) maxDepth() int {
	if o.MaxDepth <= 0 {
		return asn1rt.DefaultMaxDepth
	}
	return o.MaxDepth
}

//region Encoding

// Marshal returns the complete encoding of the value in the slot of o.
func Marshal(o *asn1rt.Object, opts Options) ([]byte, error) {
	v, ok := o.Value()
	if !ok {
		return nil, &EncodeError{Object: o.QualifiedName(), Err: errNoValue}
	}
	return MarshalValue(o, v, opts)
}

// MarshalValue returns the complete encoding of v as a value of o.
func MarshalValue(o *asn1rt.Object, v any, opts Options) ([]byte, error) {
	b, _, err := marshal(o, v, opts, false)
	return b, err
}

// MarshalStructure works like [MarshalValue] and additionally returns the
// layout of the encoding. The root field describes the value of o.
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
	e.finish()
	return e.w.Bytes(), e.w.Fields(), nil
}

// MarshalTo writes the encoding of v as a value of o to w. Unlike
// [MarshalValue] the encoding is not padded to an octet boundary.
func MarshalTo(w *bitbuf.Writer, o *asn1rt.Object, v any, opts Options) error {
	if err := o.Validate(v, nil, opts.Policy); err != nil {
		return err
	}
	e := &encoder{w: w, opts: opts}
	return e.encode(o, v, nil)
}

//endregion

//region Decoding

// Unmarshal decodes the complete encoding of a value of o from b and assigns
// it to the slot of o using opts.Policy.
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
	if err == nil {
		err = d.finish(o)
	}
	if err != nil {
		return nil, d.r.Fields(), err
	}
	if err = o.AssignWith(v, opts.Policy); err != nil {
		return nil, d.r.Fields(), err
	}
	return v, d.r.Fields(), nil
}

// UnmarshalFrom decodes a value of o from the current position of r and
// assigns it to the slot of o. No padding is consumed after the value.
func UnmarshalFrom(r *bitbuf.Reader, o *asn1rt.Object, opts Options) (any, error) {
	d := &decoder{r: r, opts: opts}
	v, err := d.decode(o, nil)
	if err != nil {
		return nil, err
	}
	if err = o.AssignWith(v, opts.Policy); err != nil {
		return nil, err
	}
	return v, nil
}

//endregion
