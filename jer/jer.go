// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package jer implements the ASN.1 JSON Encoding Rules (JER) over the objects
// of an [asn1rt.Schema]. The encoding rules are defined in [Rec. ITU-T X.697].
//
// Values map to JSON as follows:
//
//   - BOOLEAN and NULL use the JSON literals. INTEGER values are JSON numbers
//     of arbitrary size.
//   - ENUMERATED values are the identifier of the item as a JSON string.
//   - REAL values are JSON numbers. The special values use the strings "INF",
//     "-INF", "NaN" and "-0".
//   - OCTET STRING values are hexadecimal strings. BIT STRING values are
//     objects {"value": hex, "length": n} unless the size is fixed, in which
//     case only the hexadecimal string is used.
//   - OBJECT IDENTIFIER and RELATIVE-OID values use the dotted notation.
//     Character strings and time types are JSON strings.
//   - SEQUENCE and SET values are objects with one member per present
//     component. SEQUENCE OF and SET OF values are arrays.
//   - CHOICE values are objects with a single member named after the chosen
//     alternative.
//   - OPEN TYPE and ANY values use the encoding of the resolved type.
//
// JER carries no extension indices. Unknown extensions are represented by an
// [asn1rt.Unknown] with an Index of -1 and the JSON text of the value. Unknown
// members of extensible SEQUENCE and SET values are skipped.
//
// [Rec. ITU-T X.697]: https://www.itu.int/rec/T-REC-X.697
package jer

import (
	"codello.dev/asn1rt"
)

// codecName identifies this package in log messages.
const codecName = "jer"

// Options configure the encoder and decoder.
type Options struct {
	// MaxDepth limits the nesting of decoded values. If MaxDepth is 0,
	// [asn1rt.DefaultMaxDepth] is used.
	MaxDepth int

	// Policy is applied to decoded values before they are assigned and to
	// values before they are encoded.
	Policy asn1rt.Policy

	// Indent is the number of spaces used to indent nested values. If Indent
	// is 0, the encoding contains no insignificant whitespace.
	Indent int
}

// JER is the default option profile.
var JER = Options{Policy: asn1rt.Validated}

func (o Options) maxDepth() int {
	if o.MaxDepth <= 0 {
		return asn1rt.DefaultMaxDepth
	}
	return o.MaxDepth
}

// Marshal returns the JSON encoding of the value in the slot of o.
func Marshal(o *asn1rt.Object, opts Options) ([]byte, error) {
	v, ok := o.Value()
	if !ok {
		return nil, &EncodeError{Object: o.QualifiedName(), Err: errNoValue}
	}
	return MarshalValue(o, v, opts)
}

// MarshalValue returns the JSON encoding of v as a value of o.
func MarshalValue(o *asn1rt.Object, v any, opts Options) ([]byte, error) {
	if err := o.Validate(v, nil, opts.Policy); err != nil {
		return nil, err
	}
	api := config(opts)
	s := api.BorrowStream(nil)
	defer api.ReturnStream(s)
	e := &encoder{s: s, opts: opts}
	if err := e.encode(o, v, nil); err != nil {
		return nil, err
	}
	if s.Error != nil {
		return nil, &EncodeError{Object: o.QualifiedName(), Err: s.Error}
	}
	return append([]byte(nil), s.Buffer()...), nil
}

// Unmarshal decodes the JSON encoding of a value of o from b and assigns it
// to the slot of o using opts.Policy.
func Unmarshal(o *asn1rt.Object, b []byte, opts Options) (any, error) {
	var doc any
	if err := config(opts).Unmarshal(b, &doc); err != nil {
		return nil, &SyntaxError{Err: err}
	}
	d := &decoder{opts: opts}
	v, err := d.decode(o, doc, nil)
	if err != nil {
		return nil, err
	}
	if err = o.AssignWith(v, opts.Policy); err != nil {
		return nil, err
	}
	return v, nil
}
