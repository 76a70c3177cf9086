// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ber

import (
	"errors"
	"iter"

	"codello.dev/asn1rt"
	"codello.dev/asn1rt/tlv"
)

// String types can use the primitive or constructed encoding. When using the
// constructed encoding strings can be arbitrarily nested. The functions in this
// file flatten both kinds of encodings into the content octets of the string.

var (
	errSegmentTag       = errors.New("non-matching encoding in constructed string")
	errConstructedDER   = errors.New("constructed string in definite canonical encoding")
	errSegmentPadding   = errors.New("unused bits in non-final segment of BIT STRING")
	errEmptyBitSegment  = errors.New("empty segment in constructed BIT STRING")
	errConstructedPrim  = errors.New("constructed encoding of primitive type")
	errPrimitiveConstr  = errors.New("primitive encoding of constructed type")
	errExplicitChildren = errors.New("explicit tag must contain exactly one data value")
)

// segments yields the primitive segments of a string value in order. If n is
// primitive, n itself is the only segment. Nested constructed segments must
// carry the tag segTag. The iteration stops at the first error.
func segments(n *tlv.Node, segTag asn1rt.Tag) iter.Seq2[*tlv.Node, error] {
	return func(yield func(*tlv.Node, error) bool) {
		if !n.Constructed {
			yield(n, nil)
			return
		}
		var walk func(n *tlv.Node) bool
		walk = func(n *tlv.Node) bool {
			for _, c := range n.Children {
				if c.Tag != segTag {
					yield(nil, &SyntaxError{Tag: segTag, Err: errSegmentTag})
					return false
				}
				if c.Constructed {
					if !walk(c) {
						return false
					}
				} else if !yield(c, nil) {
					return false
				}
			}
			return true
		}
		walk(n)
	}
}

// stringBytes returns the content octets of an OCTET STRING or character string
// value.
func (d *decoder) stringBytes(n *tlv.Node) ([]byte, error) {
	if !n.Constructed {
		return n.Value, nil
	}
	if d.definiteCanonical() {
		return nil, &SyntaxError{Tag: n.Tag, Err: errConstructedDER}
	}
	var b []byte
	for seg, err := range segments(n, asn1rt.Universal(asn1rt.TagOctetString)) {
		if err != nil {
			return nil, err
		}
		b = append(b, seg.Value...)
	}
	return b, nil
}

// bitString returns the value of a BIT STRING. Only the last segment of a
// constructed value may have unused bits.
func (d *decoder) bitString(n *tlv.Node) (asn1rt.BitString, error) {
	if !n.Constructed {
		bs, err := parseBitString(n.Value)
		if err != nil {
			return bs, &SyntaxError{Tag: n.Tag, Err: err}
		}
		return bs, nil
	}
	if d.definiteCanonical() {
		return asn1rt.BitString{}, &SyntaxError{Tag: n.Tag, Err: errConstructedDER}
	}
	var (
		bs   asn1rt.BitString
		last = -1
	)
	for seg, err := range segments(n, asn1rt.Universal(asn1rt.TagBitString)) {
		if err != nil {
			return bs, err
		}
		if len(seg.Value) == 0 {
			return bs, &SyntaxError{Tag: n.Tag, Err: errEmptyBitSegment}
		}
		if last > 0 {
			return bs, &SyntaxError{Tag: n.Tag, Err: errSegmentPadding}
		}
		part, err := parseBitString(seg.Value)
		if err != nil {
			return bs, &SyntaxError{Tag: n.Tag, Err: err}
		}
		last = int(seg.Value[0])
		bs.Bytes = append(bs.Bytes, part.Bytes...)
		bs.BitLength += part.BitLength
	}
	return bs, nil
}

// definiteCanonical reports whether the options describe DER, where strings
// always use the primitive encoding.
func (d *decoder) definiteCanonical() bool {
	return d.opts.Canonical && !d.opts.Indefinite
}
