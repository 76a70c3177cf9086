// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package asn1rt implements a schema driven ASN.1 object runtime. A schema is
// a graph of [Object] values, each describing one ASN.1 type, value or value
// set as defined in [Rec. ITU-T X.680]. Objects carry their tags, components,
// constraints and table-constraint linkage, and hold a value slot that can be
// assigned native Go values. Encoding and decoding of object values using
// different encoding rules is implemented in subpackages of this package.
//
// # Mapping of ASN.1 Types to Go Values
//
// Every [Kind] has exactly one in-memory representation:
//
//   - NULL is [Null].
//   - BOOLEAN is a Go bool.
//   - INTEGER is an int64. Values that do not fit are represented as
//     [*math/big.Int]. Decoders produce int64 whenever possible.
//   - REAL is a [Real] triple of mantissa, base and exponent.
//   - ENUMERATED is the identifier of the enumeration item as a string. Unknown
//     extension items are represented as [Unknown].
//   - BIT STRING is a [BitString], OCTET STRING a byte slice.
//   - OBJECT IDENTIFIER and RELATIVE-OID are [ObjectIdentifier] and
//     [RelativeOID].
//   - All character string types are Go strings.
//   - UTCTime and GeneralizedTime are [time.Time] values.
//   - CHOICE is a [Choice], OPEN TYPE and ANY are [Open].
//   - SEQUENCE, SET and values of information object classes are
//     map[string]any, keyed by component identifiers.
//   - SEQUENCE OF and SET OF are []any.
//
// # Building a Schema
//
// Schemas are usually produced by a compiler and loaded through the schemafile
// package. They can also be built directly:
//
//	s := asn1rt.NewSchema()
//	person := s.Type(asn1rt.KindSequence, "Person", asn1rt.Extensible())
//	person.Add(
//		s.New(asn1rt.KindUTF8String, "name", asn1rt.SizeRange(1, 64)),
//		s.New(asn1rt.KindInteger, "age", asn1rt.ValueRange(0, 150), asn1rt.Optional()),
//	)
//	if err := s.Finalize(); err != nil {
//		// handle construction error
//	}
//
// [Rec. ITU-T X.680]: https://www.itu.int/rec/T-REC-X.680
package asn1rt

import (
	"strconv"
	"strings"
)

// Tag constitutes an ASN.1 tag, consisting of its class and number. For
// details, see Section 8 of Rec. ITU-T X.680.
type Tag struct {
	Class  Class
	Number uint
}

// Class holds the class part of an ASN.1 tag. The class acts as a namespace for
// the tag number. A Class value is an unsigned 2-bit integer. Class values
// whose value exceeds 2 bits are invalid.
//
//go:generate stringer -type=Class -trimprefix=Class
type Class uint8

// IsValid reports whether c is a valid Class value.
func (c Class) IsValid() bool {
	return c <= 3
}

// Predefined [Class] constants. These are all the possible values that can be
// encoded in the [Class] type.
const (
	ClassUniversal Class = iota
	ClassApplication
	ClassContextSpecific
	ClassPrivate
)

// String returns a string representation t in a format similar to the one used
// in ASN.1 notation. The tag number is enclosed by square brackets and prefixed
// with the class used. To avoid ambiguity the UNIVERSAL word is used for
// universal tags, although this is not valid ASN.1 syntax.
func (t Tag) String() string {
	if t.Class == ClassContextSpecific {
		return "[" + strconv.FormatUint(uint64(t.Number), 10) + "]"
	}
	return "[" + strings.ToUpper(t.Class.String()) + " " + strconv.FormatUint(uint64(t.Number), 10) + "]"
}

// Less orders tags by class first and number second. This is the canonical
// order of SET components in DER and CER.
func (t Tag) Less(other Tag) bool {
	if t.Class != other.Class {
		return t.Class < other.Class
	}
	return t.Number < other.Number
}

// TagMode indicates how a tag attached to an [Object] combines with the tags
// of the underlying type.
type TagMode uint8

const (
	// Implicit tags replace the outermost tag of the underlying type.
	Implicit TagMode = iota
	// Explicit tags wrap the encoding of the underlying type.
	Explicit
)

// String returns the ASN.1 keyword of m.
func (m TagMode) String() string {
	if m == Explicit {
		return "EXPLICIT"
	}
	return "IMPLICIT"
}

// TagReserved is a reserved tag number in the [ClassUniversal] namespace to be
// used by encoding rules. This assignment is defined in Rec. ITU-T X.680,
// Section 8, Table 1.
const TagReserved = 0

// These are some ASN.1 tag numbers are defined in the [ClassUniversal]
// namespace. These assignments are defined in Rec. ITU-T X.680, Section 8, Table
// 1.
const (
	TagBoolean          uint = 1
	TagInteger          uint = 2
	TagBitString        uint = 3
	TagOctetString      uint = 4
	TagNull             uint = 5
	TagOID              uint = 6
	TagObjectDescriptor uint = 7
	TagExternal         uint = 8
	TagReal             uint = 9
	TagEnumerated       uint = 10
	TagEmbeddedPDV      uint = 11
	TagUTF8String       uint = 12
	TagRelativeOID      uint = 13
	TagTime             uint = 14
	TagSequence         uint = 16
	TagSet              uint = 17
	TagNumericString    uint = 18
	TagPrintableString  uint = 19
	TagTeletexString    uint = 20
	TagT61String             = TagTeletexString
	TagVideotexString   uint = 21
	TagIA5String        uint = 22
	TagUTCTime          uint = 23
	TagGeneralizedTime  uint = 24
	TagGraphicString    uint = 25
	TagVisibleString    uint = 26
	TagISO646String          = TagVisibleString
	TagGeneralString    uint = 27
	TagUniversalString  uint = 28
	TagCharacterString  uint = 29
	TagBMPString        uint = 30
)

// Universal returns the universal tag with the given number.
func Universal(n uint) Tag {
	return Tag{Class: ClassUniversal, Number: n}
}

// DefaultMaxDepth is the nesting depth decoders accept when no explicit limit
// is configured.
const DefaultMaxDepth = 64
