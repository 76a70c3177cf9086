// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ber

import (
	"errors"
	"fmt"
	"math"
	"math/bits"
	"strconv"
	"strings"

	"codello.dev/asn1rt"
	"codello.dev/asn1rt/internal/twos"
	"codello.dev/asn1rt/internal/vlq"
)

// This file contains the content octet encodings of the primitive types. The
// REAL and object identifier encodings are exported because the packed and
// octet encoding rules transfer these types as BER content octets.

//region [UNIVERSAL 2] INTEGER

// appendInteger appends the minimal two's complement encoding of v.
func appendInteger(dst []byte, v any) ([]byte, error) {
	if i, ok := asn1rt.Int64(v); ok {
		return twos.AppendInt64(dst, i), nil
	}
	if b, ok := asn1rt.BigInt(v); ok {
		return twos.AppendBig(dst, b), nil
	}
	return dst, fmt.Errorf("expected integer, got %T", v)
}

var (
	errEmptyInteger      = errors.New("empty integer")
	errNonMinimalInteger = errors.New("integer not minimally-encoded")
)

// parseInteger decodes an INTEGER from its content octets.
func parseInteger(b []byte) (any, error) {
	if len(b) == 0 {
		return nil, errEmptyInteger
	}
	if !twos.Minimal(b) {
		return nil, errNonMinimalInteger
	}
	return twos.Parse(b), nil
}

//endregion

//region [UNIVERSAL 9] REAL

// Content octets of the special REAL values.
const (
	realPlusInfinity  = 0b01000000
	realMinusInfinity = 0b01000001
	realNotANumber    = 0b01000010
	realMinusZero     = 0b01000011
)

// AppendReal appends the content octets of r to dst. Values in base 2 are
// written in the binary form with an odd mantissa and the shortest exponent.
// Values in base 10 are written in the NR3 form used by the canonical encoding
// rules. Zero has no content octets.
//
// See Section 8.5 and 11.3 of Rec. ITU-T X.690.
func AppendReal(dst []byte, r asn1rt.Real) ([]byte, error) {
	switch r {
	case asn1rt.PlusInfinity:
		return append(dst, realPlusInfinity), nil
	case asn1rt.MinusInfinity:
		return append(dst, realMinusInfinity), nil
	case asn1rt.NotANumber:
		return append(dst, realNotANumber), nil
	case asn1rt.MinusZero:
		return append(dst, realMinusZero), nil
	}
	if !r.IsValid() {
		return dst, fmt.Errorf("invalid REAL %v", r)
	}
	r = r.Normalize()
	if r.Mantissa == 0 {
		return dst, nil
	}
	if r.Base == 10 {
		return appendDecimalReal(dst, r), nil
	}

	m := uint64(r.Mantissa)
	var s byte
	if r.Mantissa < 0 {
		m, s = -m, 1
	}
	// The exponent is a two's complement number. Its length selects the
	// lower two bits of the first octet, lengths above 3 use an extra octet.
	exp := twos.AppendInt64(nil, r.Exponent)
	first := byte(0b10000000) | s<<6
	switch len(exp) {
	case 1, 2, 3:
		dst = append(dst, first|byte(len(exp)-1))
	default:
		dst = append(dst, first|0b11, byte(len(exp)))
	}
	dst = append(dst, exp...)
	ml := (bits.Len64(m) + 8 - 1) / 8 // mantissa is never 0
	return twos.AppendUnsigned(dst, m, ml), nil
}

// appendDecimalReal appends r in the NR3 form of ISO 6093 with a mantissa that
// has no trailing zeros, e.g. "15.E-1". A zero exponent is written as "+0".
func appendDecimalReal(dst []byte, r asn1rt.Real) []byte {
	dst = append(dst, 0x03)
	dst = strconv.AppendInt(dst, r.Mantissa, 10)
	dst = append(dst, ".E"...)
	if r.Exponent == 0 {
		return append(dst, "+0"...)
	}
	return strconv.AppendInt(dst, r.Exponent, 10)
}

// ParseReal decodes a REAL value from its content octets. The binary form is
// returned in base 2, the decimal form in base 10. Both are normalized.
func ParseReal(b []byte) (asn1rt.Real, error) {
	if len(b) == 0 {
		return asn1rt.Real{}, nil
	}
	switch {
	case b[0]&0xC0 == 0x40: // b == 0b01xxxxxx, this indicates a special value
		if len(b) != 1 {
			return asn1rt.Real{}, errors.New("invalid special value")
		}
		switch b[0] {
		case realPlusInfinity:
			return asn1rt.PlusInfinity, nil
		case realMinusInfinity:
			return asn1rt.MinusInfinity, nil
		case realNotANumber:
			return asn1rt.NotANumber, nil
		case realMinusZero:
			return asn1rt.MinusZero, nil
		}
		return asn1rt.Real{}, errors.New("invalid special value")
	case b[0]&0x80 == 0x80:
		return parseBinaryReal(b)
	}
	return parseDecimalReal(b)
}

// parseBinaryReal parses the binary form of a REAL. The exponent is adjusted
// to base 2 using the base (B) and scaling factor (F) in the encoding.
//
// See Section 8.5.7 of Rec. ITU-T X.690.
func parseBinaryReal(b []byte) (asn1rt.Real, error) {
	first := b[0]
	b = b[1:]
	s := (first & 0x40) >> 6   // bit 7
	base := (first & 0x30) >> 4 // bit 6 and 5
	if base > 2 {
		return asn1rt.Real{}, errors.New("invalid base")
	}
	f := int64((first & 0x0C) >> 2) // bit 4 and 3
	el := int(first&0x03) + 1       // bit 2 and 1
	if el == 4 {
		if len(b) == 0 {
			return asn1rt.Real{}, errors.New("missing exponent length")
		}
		el = int(b[0])
		b = b[1:]
		if el == 0 {
			return asn1rt.Real{}, errors.New("invalid exponent size")
		}
	}
	if el > 8 {
		return asn1rt.Real{}, errors.New("exponent too large")
	}
	if len(b) < el {
		return asn1rt.Real{}, errors.New("truncated exponent")
	}
	if !twos.Minimal(b[:el]) {
		return asn1rt.Real{}, errors.New("non-minimal exponent")
	}
	e, _ := twos.Parse(b[:el]).(int64)
	b = b[el:]
	if e > math.MaxInt64/8 || e < math.MinInt64/8 {
		return asn1rt.Real{}, errors.New("exponent too large")
	}
	// N * 2^F * B^E is converted into base 2.
	e = e*int64(log2Base[base]) + f

	// Trailing zero octets of the mantissa move into the exponent.
	for len(b) > 0 && b[len(b)-1] == 0 {
		b = b[:len(b)-1]
		e += 8
	}
	for len(b) > 0 && b[0] == 0 {
		b = b[1:]
	}
	if len(b) == 0 {
		return asn1rt.Real{}, errors.New("zero mantissa")
	}
	if len(b) > 8 || len(b) == 8 && b[0]&0x80 != 0 {
		return asn1rt.Real{}, errors.New("mantissa too large")
	}
	var m int64
	for _, c := range b {
		m = m<<8 | int64(c)
	}
	if s == 1 {
		m = -m
	}
	return asn1rt.Real{Mantissa: m, Base: 2, Exponent: e}.Normalize(), nil
}

// log2Base maps the base bits of the binary REAL form to the binary logarithm
// of the base.
var log2Base = [3]int{1, 3, 4}

// parseDecimalReal parses the decimal form of a REAL value.
func parseDecimalReal(b []byte) (asn1rt.Real, error) {
	nr := b[0] & 0x3F
	if nr == 0 || nr > 3 {
		return asn1rt.Real{}, errors.New("invalid decimal number representation")
	}
	s := strings.TrimLeft(string(b[1:]), " ")
	s = strings.Replace(s, ",", ".", 1)
	// ISO 6093 is stricter than the parsing below, so the syntax is checked first
	if !validateDecimalReal(s, nr) {
		return asn1rt.Real{}, errors.New("invalid decimal number")
	}

	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}
	mant, exp, _ := strings.Cut(strings.ToUpper(s), "E")
	ip, fp, _ := strings.Cut(mant, ".")
	var e int64
	if exp != "" {
		var err error
		if e, err = strconv.ParseInt(exp, 10, 64); err != nil {
			return asn1rt.Real{}, errors.New("exponent too large")
		}
	}
	digits := strings.TrimLeft(ip+fp, "0")
	e -= int64(len(fp))
	trimmed := strings.TrimRight(digits, "0")
	e += int64(len(digits) - len(trimmed))
	if trimmed == "" {
		return asn1rt.Real{}, nil
	}
	m, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return asn1rt.Real{}, errors.New("mantissa too large")
	}
	if neg {
		m = -m
	}
	return asn1rt.Real{Mantissa: m, Base: 10, Exponent: e}, nil
}

// validateDecimalReal validates the syntax of s according to the number representation specified.
// The number representation can be NR1, NR2, or NR3, according to [ISO 6093].
//
// [ISO 6093]: https://www.iso.org/standard/12285.html
func validateDecimalReal(s string, nr byte) bool {
	if s == "" {
		return false
	}
	check := uint(^s[0]&0x04) >> 2 // 1 if s[0] == '+' or '0', 0 if s[0] == '-'
	if s[0] == '+' || s[0] == '-' {
		s = s[1:]
	}
	i := 0
	for ; i < len(s); i++ {
		if s[i] < '0' || '9' < s[i] {
			break
		}
		check += uint(s[i] & 0x0F)
	}
	if i == 0 {
		return false
	}
	s = s[i:]
	// NR1 parses only (signed) integers
	if nr == 1 || s == "" {
		return s == "" && check != 0
	}
	if s[0] != '.' && s[0] != ',' {
		goto nr3
	}
	for i = 1; i < len(s); i++ {
		if s[i] < '0' || '9' < s[i] {
			break
		}
		check += uint(s[i] & 0x0F)
	}
	s = s[i:]
nr3:
	// NR2 does not have an exponent
	if nr == 2 || len(s) < 2 {
		return s == "" && check != 0
	}
	if s[0] != 'e' && s[0] != 'E' {
		return false
	}
	s = s[1:]
	expCheck := uint(s[0]&0x02) >> 1 // 1 if s[0] == '+', 0 if s[0] == '-' or '0'
	if s[0] == '-' || s[0] == '+' {
		s = s[1:]
	}
	for i = 0; i < len(s); i++ {
		if s[i] < '0' || '9' < s[i] {
			return false
		}
		expCheck += uint(s[i] & 0x0F)
	}
	if i == 0 {
		return false
	}
	// zero exponent must have plus sign
	return check != 0 && expCheck != 0
}

//endregion

//region [UNIVERSAL 3] BIT STRING

// appendBitString appends the content octets of a primitive BIT STRING: the
// number of unused bits followed by the bits with padding cleared.
func appendBitString(dst []byte, bs asn1rt.BitString) ([]byte, error) {
	if !bs.IsValid() {
		return dst, errors.New("BitString is not valid")
	}
	dst = append(dst, byte((8-bs.BitLength%8)%8))
	return append(dst, bs.Padded()...), nil
}

// parseBitString decodes the content octets of a primitive BIT STRING.
func parseBitString(b []byte) (asn1rt.BitString, error) {
	if len(b) == 0 {
		return asn1rt.BitString{}, errors.New("zero length BIT STRING")
	}
	padding := int(b[0])
	if padding > 7 || len(b) == 1 && padding > 0 {
		return asn1rt.BitString{}, errors.New("invalid padding bits in BIT STRING")
	}
	bs := asn1rt.BitString{
		Bytes:     append([]byte(nil), b[1:]...),
		BitLength: (len(b)-1)*8 - padding,
	}
	if len(bs.Bytes) > 0 {
		// zero out padding bits
		bs.Bytes[len(bs.Bytes)-1] &^= byte(1<<uint(padding) - 1)
	}
	return bs, nil
}

//endregion

//region [UNIVERSAL 6] OBJECT IDENTIFIER and [UNIVERSAL 13] RELATIVE-OID

// AppendOID appends the content octets of oid to dst. The first two arcs are
// combined into a single subidentifier.
func AppendOID(dst []byte, oid asn1rt.ObjectIdentifier) ([]byte, error) {
	if !oid.IsValid() {
		return dst, errors.New("invalid ObjectIdentifier")
	}
	dst = vlq.Append(dst, uint64(oid[0]*40+oid[1]))
	return AppendRelativeOID(dst, asn1rt.RelativeOID(oid[2:])), nil
}

// AppendRelativeOID appends the content octets of oid to dst.
func AppendRelativeOID(dst []byte, oid asn1rt.RelativeOID) []byte {
	for _, arc := range oid {
		dst = vlq.Append(dst, uint64(arc))
	}
	return dst
}

// ParseOID decodes an OBJECT IDENTIFIER from its content octets.
func ParseOID(b []byte) (asn1rt.ObjectIdentifier, error) {
	if len(b) == 0 {
		return nil, errors.New("zero length OBJECT IDENTIFIER")
	}
	// The first varint is 40*value1 + value2:
	// According to this packing, value1 can take the values 0, 1 and 2 only.
	// When value1 = 0 or value1 = 1, then value2 is <= 39. When value1 = 2,
	// then there are no restrictions on value2.
	v, n, err := vlq.Decode[uint](b, true)
	if err != nil {
		return nil, err
	}
	rest, err := ParseRelativeOID(b[n:])
	if err != nil {
		return nil, err
	}
	s := make(asn1rt.ObjectIdentifier, 2, 2+len(rest))
	if v < 80 {
		s[0], s[1] = v/40, v%40
	} else {
		s[0], s[1] = 2, v-80
	}
	return append(s, rest...), nil
}

// ParseRelativeOID decodes a RELATIVE-OID from its content octets.
func ParseRelativeOID(b []byte) (asn1rt.RelativeOID, error) {
	s := make(asn1rt.RelativeOID, 0, len(b))
	for len(b) > 0 {
		v, n, err := vlq.Decode[uint](b, true)
		if err != nil {
			return nil, err
		}
		s = append(s, v)
		b = b[n:]
	}
	return s, nil
}

//endregion
