// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ber implements the ASN.1 Basic Encoding Rules (BER) and their
// canonical variants CER and DER over the objects of an [asn1rt.Schema]. The
// encoding rules are defined in [Rec. ITU-T X.690].
// See also “[A Layman's Guide to a Subset of ASN.1, BER, and DER]”.
//
// The transfer syntax is selected by an [Options] value passed to every call.
// The predefined profiles [BER], [CER] and [DER] cover the standard variants.
// Options are never stored by the package, concurrent calls with different
// options are safe as long as they do not assign the same value slot.
//
// Values are represented as described in the asn1rt package. The following
// limitations apply:
//
//   - REAL values with base 8 or 16 are converted to base 2 when decoded.
//   - Components with a DEFAULT value are omitted by the canonical profiles if
//     their value equals the default. Decoding never fills in default values.
//   - CLASS objects cannot be encoded.
//
// [Rec. ITU-T X.690]: https://www.itu.int/rec/T-REC-X.690
// [A Layman's Guide to a Subset of ASN.1, BER, and DER]: http://luca.ntop.org/Teaching/Appunti/asn1.html
package ber

import (
	"errors"
	"io"

	pkgerrors "github.com/pkg/errors"

	"codello.dev/asn1rt"
	"codello.dev/asn1rt/tlv"
)

// codecName identifies this package in log messages.
const codecName = "ber"

// Options configure the encoder and decoder. The zero value encodes plain BER
// with definite lengths and performs no value checks.
type Options struct {
	// Indefinite selects the indefinite-length format for constructed values.
	Indefinite bool

	// TrueByte is the content octet used to encode TRUE. A value of 0 means
	// 0xFF. Any non-zero octet decodes as TRUE.
	TrueByte byte

	// FragmentSize, if positive, splits string values with more content octets
	// into constructed encodings of segments of this size.
	FragmentSize int

	// SortSet orders SET components by their tag.
	SortSet bool

	// SortSetOf orders the elements of SET OF values by their encoding.
	SortSetOf bool

	// Canonical selects the canonical forms of times, omits DEFAULT values and
	// rejects non-canonical encodings during decoding.
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
	// BER uses definite lengths and no sorting.
	BER = Options{TrueByte: 0xFF, Policy: asn1rt.Validated}

	// CER uses indefinite lengths for constructed values, fragments strings
	// into segments of 1000 octets and sorts SET and SET OF values.
	CER = Options{
		Indefinite:   true,
		TrueByte:     0xFF,
		FragmentSize: 1000,
		SortSet:      true,
		SortSetOf:    true,
		Canonical:    true,
		Policy:       asn1rt.Validated,
	}

	// DER uses definite lengths only and sorts SET and SET OF values.
	DER = Options{
		TrueByte:  0xFF,
		SortSet:   true,
		SortSetOf: true,
		Canonical: true,
		Policy:    asn1rt.Validated,
	}
)

func (o Options) trueByte() byte {
	if o.TrueByte == 0 {
		return 0xFF
	}
	return o.TrueByte
}

var errNoValue = errors.New("no value assigned")

//region Encoding

// Marshal returns the encoding of the value in the slot of o.
func Marshal(o *asn1rt.Object, opts Options) ([]byte, error) {
	v, ok := o.Value()
	if !ok {
		return nil, &EncodeError{Object: o.QualifiedName(), Err: errNoValue}
	}
	return MarshalValue(o, v, opts)
}

// MarshalValue returns the encoding of v as a value of o. The slot of o is not
// modified.
func MarshalValue(o *asn1rt.Object, v any, opts Options) ([]byte, error) {
	n, err := MarshalStructure(o, v, opts)
	if err != nil {
		return nil, err
	}
	return tlv.Append(nil, n), nil
}

// MarshalStructure validates v according to opts.Policy and returns the TLV
// tree of its encoding. The tree can be serialized with [tlv.Append].
func MarshalStructure(o *asn1rt.Object, v any, opts Options) (*tlv.Node, error) {
	if err := o.Validate(v, nil, opts.Policy); err != nil {
		return nil, err
	}
	e := &encoder{opts: opts}
	return e.encode(o, v, nil)
}

//endregion

//region Decoding

// Unmarshal decodes a single data value of o from b and assigns it to the slot
// of o using opts.Policy. Data after the value is an error.
func Unmarshal(o *asn1rt.Object, b []byte, opts Options) (any, error) {
	v, _, err := UnmarshalStructure(o, b, opts)
	return v, err
}

// UnmarshalStructure works like [Unmarshal] and additionally returns the TLV
// tree of the input.
func UnmarshalStructure(o *asn1rt.Object, b []byte, opts Options) (any, *tlv.Node, error) {
	dec := opts.newDecoder(b)
	n, err := dec.ReadNode()
	if err == io.EOF {
		err = &tlv.SyntaxError{Err: io.ErrUnexpectedEOF}
	} else if err == nil && dec.InputOffset() < len(b) {
		err = &tlv.SyntaxError{ByteOffset: dec.InputOffset(), Err: tlv.ErrTrailingData}
	}
	if err != nil {
		return nil, nil, wrapSyntax(err)
	}
	d := &decoder{opts: opts}
	v, err := d.decode(o, n, nil)
	if err != nil {
		return nil, n, err
	}
	if err = o.AssignWith(v, opts.Policy); err != nil {
		return nil, n, err
	}
	return v, n, nil
}

// UnmarshalAll decodes a sequence of data values of o from b. The values are
// checked with opts.Policy but not assigned.
func UnmarshalAll(o *asn1rt.Object, b []byte, opts Options) ([]any, error) {
	nodes, err := opts.newDecoder(b).ReadAll()
	if err != nil {
		return nil, wrapSyntax(err)
	}
	vs := make([]any, 0, len(nodes))
	for i, n := range nodes {
		d := &decoder{opts: opts}
		v, err := d.decode(o, n, nil)
		if err == nil {
			err = o.Validate(v, nil, opts.Policy)
		}
		if err != nil {
			return vs, pkgerrors.WithMessagef(err, "data value %d", i)
		}
		vs = append(vs, v)
	}
	return vs, nil
}

func (o Options) newDecoder(b []byte) *tlv.Decoder {
	dec := tlv.NewDecoder(b)
	dec.Strict = o.Canonical
	dec.Definite = o.Canonical && !o.Indefinite
	dec.MaxDepth = o.MaxDepth
	return dec
}

// wrapSyntax wraps errors of the tlv package into a [SyntaxError].
func wrapSyntax(err error) error {
	var se *tlv.SyntaxError
	if errors.As(err, &se) {
		return &SyntaxError{Tag: se.Header.Tag, Err: err}
	}
	return &SyntaxError{Err: err}
}

//endregion
