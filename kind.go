// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package asn1rt

// Kind identifies the built-in ASN.1 type an [Object] is derived from. The set
// of kinds is closed. Codecs switch over all kinds exhaustively and report
// unknown kinds as schema errors.
//
//go:generate stringer -type=Kind -linecomment
type Kind uint8

const (
	KindInvalid          Kind = iota // INVALID
	KindNull                         // NULL
	KindBoolean                      // BOOLEAN
	KindInteger                      // INTEGER
	KindReal                         // REAL
	KindEnumerated                   // ENUMERATED
	KindBitString                    // BIT STRING
	KindOctetString                  // OCTET STRING
	KindOID                          // OBJECT IDENTIFIER
	KindRelativeOID                  // RELATIVE-OID
	KindObjectDescriptor             // ObjectDescriptor
	KindUTF8String                   // UTF8String
	KindNumericString                // NumericString
	KindPrintableString              // PrintableString
	KindTeletexString                // TeletexString
	KindVideotexString               // VideotexString
	KindIA5String                    // IA5String
	KindGraphicString                // GraphicString
	KindVisibleString                // VisibleString
	KindGeneralString                // GeneralString
	KindUniversalString              // UniversalString
	KindBMPString                    // BMPString
	KindUTCTime                      // UTCTime
	KindGeneralizedTime              // GeneralizedTime
	KindChoice                       // CHOICE
	KindSequence                     // SEQUENCE
	KindSet                          // SET
	KindSequenceOf                   // SEQUENCE OF
	KindSetOf                        // SET OF
	KindOpen                         // OPEN TYPE
	KindAny                          // ANY
	KindClass                        // CLASS

	kindCount
)

// IsValid reports whether k is one of the defined kinds.
func (k Kind) IsValid() bool {
	return k > KindInvalid && k < kindCount
}

// UniversalTag returns the universal tag number of k. The second return value
// is false for kinds that have no tag of their own (CHOICE, OPEN TYPE, ANY and
// CLASS).
func (k Kind) UniversalTag() (uint, bool) {
	switch k {
	case KindNull:
		return TagNull, true
	case KindBoolean:
		return TagBoolean, true
	case KindInteger:
		return TagInteger, true
	case KindReal:
		return TagReal, true
	case KindEnumerated:
		return TagEnumerated, true
	case KindBitString:
		return TagBitString, true
	case KindOctetString:
		return TagOctetString, true
	case KindOID:
		return TagOID, true
	case KindRelativeOID:
		return TagRelativeOID, true
	case KindObjectDescriptor:
		return TagObjectDescriptor, true
	case KindUTF8String:
		return TagUTF8String, true
	case KindNumericString:
		return TagNumericString, true
	case KindPrintableString:
		return TagPrintableString, true
	case KindTeletexString:
		return TagTeletexString, true
	case KindVideotexString:
		return TagVideotexString, true
	case KindIA5String:
		return TagIA5String, true
	case KindGraphicString:
		return TagGraphicString, true
	case KindVisibleString:
		return TagVisibleString, true
	case KindGeneralString:
		return TagGeneralString, true
	case KindUniversalString:
		return TagUniversalString, true
	case KindBMPString:
		return TagBMPString, true
	case KindUTCTime:
		return TagUTCTime, true
	case KindGeneralizedTime:
		return TagGeneralizedTime, true
	case KindSequence, KindSequenceOf:
		return TagSequence, true
	case KindSet, KindSetOf:
		return TagSet, true
	}
	return 0, false
}

// IsString reports whether k is one of the character string kinds.
func (k Kind) IsString() bool {
	return k == KindObjectDescriptor || (k >= KindUTF8String && k <= KindBMPString)
}

// IsTime reports whether k is UTCTime or GeneralizedTime.
func (k Kind) IsTime() bool {
	return k == KindUTCTime || k == KindGeneralizedTime
}

// IsOpen reports whether values of k carry a type selected at runtime.
func (k Kind) IsOpen() bool {
	return k == KindOpen || k == KindAny
}

// HasComponents reports whether objects of kind k hold named components.
func (k Kind) HasComponents() bool {
	return k == KindChoice || k == KindSequence || k == KindSet || k == KindClass
}

// IsList reports whether k is SEQUENCE OF or SET OF.
func (k Kind) IsList() bool {
	return k == KindSequenceOf || k == KindSetOf
}

// KnownMultiplier reports the number of bits per character of the string kinds
// that have a fixed character width (the known-multiplier character string
// types of X.691). Other kinds return 0.
func (k Kind) KnownMultiplier() int {
	switch k {
	case KindNumericString:
		return 4
	case KindPrintableString, KindIA5String, KindVisibleString:
		return 7
	case KindBMPString:
		return 16
	case KindUniversalString:
		return 32
	}
	return 0
}
