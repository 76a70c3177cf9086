// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package tlv implements encoding and decoding of the tag-length-value (TLV)
// format used by the Basic Encoding Rules (BER) and related encoding rules as
// specified in [Rec. ITU-T X.690].
// See also “[A Layman's Guide to a Subset of ASN.1, BER, and DER]”.
//
// This package deals with the syntactic layer of TLV-encoding while the
// [codello.dev/asn1rt/ber] package deals with the semantic layer of BER.
//
// # Headers and Values
//
// In BER each value is encoded using a tag-length-value format. The tag and
// length (we call them a header) are represented by the [Header] type. Values
// can use the primitive or constructed encoding. Values using the constructed
// encoding are followed by more BER-encoded values and can either end
// implicitly (when using definite-length encoding) or explicitly (indefinite
// length).
//
// The [Decoder] reads a buffer as a stream of headers, primitive values and
// end-of-contents markers. The end of a constructed element is signalled by a
// zero [Header] (or, equivalently, [EndOfContents]) regardless of whether it
// uses the definite or indefinite-length encoding. [Decoder.ReadNode] reads a
// complete data value as a tree of [Node] values.
//
// A tree of nodes is serialized by [Append]. Lengths are computed from the
// bottom up, so encoders build the tree first and serialize it once.
//
// [Rec. ITU-T X.690]: https://www.itu.int/rec/T-REC-X.690
// [A Layman's Guide to a Subset of ASN.1, BER, and DER]: http://luca.ntop.org/Teaching/Appunti/asn1.html
package tlv

import (
	"math"
	"strconv"

	"codello.dev/asn1rt"
)

// TagEndOfContents is the tag number that signifies the end of a constructed
// element.
const TagEndOfContents = asn1rt.TagReserved

// EndOfContents is the end-of-contents marker signalling the end of a
// constructed element. It is the zero Header.
var EndOfContents = Header{}

// LengthIndefinite when used as a magic number for the length of a [Header]
// indicates that the data value is encoded using the constructed
// indefinite-length format.
const LengthIndefinite = -1

// MaxTag is the largest tag number supported by this package.
const MaxTag = math.MaxInt32

// Header represents a TLV header. The [Header.Length] may be [LengthIndefinite]
// if an indefinite-length encoding is used. It is invalid to use the
// indefinite-length encoding when [Header.Constructed] = false.
type Header struct {
	Tag         asn1rt.Tag
	Constructed bool
	Length      int
}

// IsEndOfContents reports whether h is the end-of-contents marker.
func (h Header) IsEndOfContents() bool {
	return h == EndOfContents
}

// String returns a string representation of h.
func (h Header) String() string {
	if h == (Header{}) {
		return "EndOfContents"
	}
	s := h.Tag.String()
	if h.Constructed {
		s += "/c"
	} else {
		s += "/p"
	}
	if h.Length == LengthIndefinite {
		return s + ":indefinite"
	}
	return s + ":" + strconv.Itoa(h.Length)
}

// requireKeyedLiterals can be embedded in a struct to require keyed literals.
type requireKeyedLiterals struct{}

// nonComparable can be embedded in a struct to prevent comparability.
type nonComparable [0]func()
