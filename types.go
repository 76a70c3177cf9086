// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package asn1rt

import (
	"errors"
	"math"
	"math/bits"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"
)

//region [UNIVERSAL 3] BIT STRING

// BitString implements the ASN.1 BIT STRING type. A bit string is padded up to
// the nearest byte in memory and the number of valid bits is recorded. Padding
// bits will be encoded and decoded as zero bits.
//
// See also section 22 of Rec. ITU-T X.680.
type BitString struct {
	Bytes     []byte // bits packed into bytes.
	BitLength int    // length in bits.
}

// IsValid reports whether there are enough bytes in s for the indicated
// BitLength.
func (s BitString) IsValid() bool {
	return s.BitLength >= 0 && len(s.Bytes) >= (s.BitLength+8-1)/8
}

// Len returns the number of bits in s.
func (s BitString) Len() int {
	return s.BitLength
}

// At returns the bit at the given index. If the index is out of range At panics.
func (s BitString) At(i int) int {
	if i < 0 || i >= s.BitLength {
		panic("index out of range")
	}
	x := i / 8
	y := 7 - uint(i%8)
	return int(s.Bytes[x]>>y) & 1
}

// Padded returns the bytes of s with all padding bits cleared. The result has
// exactly (BitLength+7)/8 bytes and never shares memory with s.
func (s BitString) Padded() []byte {
	n := (s.BitLength + 7) / 8
	b := make([]byte, n)
	copy(b, s.Bytes[:n])
	if pad := uint(n*8 - s.BitLength); n > 0 && pad > 0 {
		b[n-1] &^= byte(1<<pad - 1)
	}
	return b
}

// String formats s into a readable binary representation. Bits will be grouped
// into bytes. The last group may have fewer than 8 characters.
func (s BitString) String() string {
	var sb strings.Builder
	sb.Grow(s.BitLength + s.BitLength/8)
	for i := 0; i < s.BitLength; i++ {
		if i > 0 && i%8 == 0 {
			sb.WriteByte(' ')
		}
		sb.WriteByte('0' + byte(s.At(i)))
	}
	return sb.String()
}

//endregion

//region [UNIVERSAL 5] NULL

// Null represents the value of the ASN.1 NULL type.
//
// See also section 24 of Rec. ITU-T X.680.
type Null struct{}

//endregion

//region [UNIVERSAL 6] OBJECT IDENTIFIER

// An ObjectIdentifier represents an ASN.1 OBJECT IDENTIFIER. The semantics of an object identifier are specified in [Rec. ITU-T X.660].
//
// See also section 32 of Rec. ITU-T X.680.
//
// [Rec. ITU-T X.660]: https://www.itu.int/rec/T-REC-X.660
type ObjectIdentifier []uint

// Equal reports whether oid and other represent the same identifier.
func (oid ObjectIdentifier) Equal(other ObjectIdentifier) bool {
	return slices.Equal(oid, other)
}

// IsValid reports whether oid can be encoded. An OID needs at least two arcs,
// the first arc is 0, 1 or 2, and the second arc is below 40 unless the first
// arc is 2.
func (oid ObjectIdentifier) IsValid() bool {
	return len(oid) >= 2 && oid[0] <= 2 && (oid[0] == 2 || oid[1] < 40)
}

// String returns the dot-separated notation of oid.
func (oid ObjectIdentifier) String() string {
	return formatArcs(oid)
}

// ParseObjectIdentifier parses the dot-separated notation of an OID.
func ParseObjectIdentifier(s string) (ObjectIdentifier, error) {
	arcs, err := parseArcs(s)
	if err != nil {
		return nil, err
	}
	oid := ObjectIdentifier(arcs)
	if !oid.IsValid() {
		return nil, errors.New("invalid object identifier " + strconv.Quote(s))
	}
	return oid, nil
}

//endregion

//region [UNIVERSAL 9] REAL

// Real represents a value of the ASN.1 REAL type as the triple
// Mantissa * Base ^ Exponent. Base is either 2 or 10 for finite values.
//
// The zero value is the number zero. Values with Base 0 are reserved for zero
// and the special values [PlusInfinity], [MinusInfinity], [NotANumber] and
// [MinusZero].
//
// See also section 21 of Rec. ITU-T X.680.
type Real struct {
	Mantissa int64
	Base     int
	Exponent int64
}

// Special REAL values.
var (
	PlusInfinity  = Real{Mantissa: 1}
	MinusInfinity = Real{Mantissa: -1}
	NotANumber    = Real{Mantissa: 2}
	MinusZero     = Real{Mantissa: -2}
)

// IsValid reports whether r is a finite value in base 2 or 10, zero, or one of
// the special values.
func (r Real) IsValid() bool {
	switch r.Base {
	case 0:
		return r.Exponent == 0 && r.Mantissa >= -2 && r.Mantissa <= 2
	case 2, 10:
		return true
	}
	return false
}

// IsSpecial reports whether r is one of the special values.
func (r Real) IsSpecial() bool {
	return r.Base == 0 && r.Mantissa != 0
}

// IsZero reports whether r is (positive) zero.
func (r Real) IsZero() bool {
	return r.Mantissa == 0 && (r.Base != 0 || r.Exponent == 0)
}

// Normalize returns the canonical representation of r. Zero becomes the zero
// Real, base 2 mantissas become odd and base 10 mantissas lose trailing zeros.
func (r Real) Normalize() Real {
	if r.Base == 0 {
		return r
	}
	if r.Mantissa == 0 {
		return Real{}
	}
	switch r.Base {
	case 2:
		tz := bits.TrailingZeros64(uint64(r.Mantissa))
		r.Mantissa >>= tz
		r.Exponent += int64(tz)
	case 10:
		for r.Mantissa%10 == 0 {
			r.Mantissa /= 10
			r.Exponent++
		}
	}
	return r
}

// Float64 returns the nearest float64 value of r.
func (r Real) Float64() float64 {
	switch {
	case r == PlusInfinity:
		return math.Inf(1)
	case r == MinusInfinity:
		return math.Inf(-1)
	case r == NotANumber:
		return math.NaN()
	case r == MinusZero:
		return math.Copysign(0, -1)
	case r.Mantissa == 0:
		return 0
	case r.Base == 2:
		return math.Ldexp(float64(r.Mantissa), int(r.Exponent))
	}
	f, _ := strconv.ParseFloat(strconv.FormatInt(r.Mantissa, 10)+"e"+strconv.FormatInt(r.Exponent, 10), 64)
	return f
}

// RealFromFloat64 converts f into its normalized base 2 representation.
func RealFromFloat64(f float64) Real {
	switch {
	case math.IsInf(f, 1):
		return PlusInfinity
	case math.IsInf(f, -1):
		return MinusInfinity
	case math.IsNaN(f):
		return NotANumber
	case f == 0 && math.Signbit(f):
		return MinusZero
	case f == 0:
		return Real{}
	}
	bts := math.Float64bits(f)
	exp := int64((bts >> 52) & 0x7FF)
	m := int64(bts & (1<<52 - 1))
	if exp == 0 {
		exp = 1 // subnormal
	} else {
		m |= 1 << 52
	}
	if bts>>63 != 0 {
		m = -m
	}
	return Real{Mantissa: m, Base: 2, Exponent: exp - 1023 - 52}.Normalize()
}

// String returns the ASN.1 value notation of r.
func (r Real) String() string {
	switch r {
	case PlusInfinity:
		return "PLUS-INFINITY"
	case MinusInfinity:
		return "MINUS-INFINITY"
	case NotANumber:
		return "NOT-A-NUMBER"
	case MinusZero:
		return "-0"
	}
	if r.Mantissa == 0 {
		return "0"
	}
	return "{ mantissa " + strconv.FormatInt(r.Mantissa, 10) +
		", base " + strconv.Itoa(r.Base) +
		", exponent " + strconv.FormatInt(r.Exponent, 10) + " }"
}

//endregion

//region [UNIVERSAL 13] RELATIVE-OID

// RelativeOID represents the ASN.1 RELATIVE OID type. This is similar to the
// [ObjectIdentifier] type, but a RelativeOID is only a suffix of an OID.
//
// See also section 32 of Rec. ITU-T X.680.
type RelativeOID []uint

// Equal reports whether oid and other represent the same identifier.
func (oid RelativeOID) Equal(other RelativeOID) bool {
	return slices.Equal(oid, other)
}

// String returns the dot-separated notation of oid.
func (oid RelativeOID) String() string {
	return formatArcs(oid)
}

// ParseRelativeOID parses the dot-separated notation of a relative OID.
func ParseRelativeOID(s string) (RelativeOID, error) {
	arcs, err := parseArcs(s)
	return RelativeOID(arcs), err
}

func formatArcs(arcs []uint) string {
	var s strings.Builder
	s.Grow(32)

	buf := make([]byte, 0, 19)
	for i, v := range arcs {
		if i > 0 {
			s.WriteByte('.')
		}
		s.Write(strconv.AppendUint(buf, uint64(v), 10))
	}

	return s.String()
}

func parseArcs(s string) ([]uint, error) {
	if s == "" {
		return nil, errors.New("empty object identifier")
	}
	parts := strings.Split(s, ".")
	arcs := make([]uint, len(parts))
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, bits.UintSize)
		if err != nil {
			return nil, errors.New("invalid arc " + strconv.Quote(p))
		}
		arcs[i] = uint(n)
	}
	return arcs, nil
}

//endregion

//region CHOICE, OPEN TYPE and extensions

// Choice is the value of a CHOICE type. Name is the identifier of the chosen
// alternative. Unknown extension alternatives use an [ExtensionName] and an
// [Unknown] value.
type Choice struct {
	Name  string
	Value any
}

// Open is the value of an OPEN TYPE or ANY. Type is the name of the type the
// Value belongs to. Content that could not be resolved to a type has an empty
// Type and an [Unknown] value carrying the raw encoding.
type Open struct {
	Type  string
	Value any
}

// Unknown represents a value that the schema does not describe: an unknown
// extension of an ENUMERATED, CHOICE, SEQUENCE or SET, or unresolved open type
// content. Index is the raw numeric index (or value) found on the wire, Raw the
// encoding of the content in the transfer syntax it was decoded from.
type Unknown struct {
	Index int
	Raw   []byte
}

// ExtensionPrefix starts the identifiers of unknown extensions in value maps,
// choice values and value paths.
const ExtensionPrefix = "_ext_"

// Unresolved is the value path segment of open type content that could not be
// resolved to a type.
const Unresolved = "_unk"

// ExtensionName returns the placeholder identifier of the unknown extension
// with index i.
func ExtensionName(i int) string {
	return ExtensionPrefix + strconv.Itoa(i)
}

// IsExtensionName reports whether name is a placeholder identifier created by
// [ExtensionName].
func IsExtensionName(name string) bool {
	return strings.HasPrefix(name, ExtensionPrefix)
}

// ExtensionIndex returns the index of the unknown extension u stored under
// name. The index carried by a name created by [ExtensionName] takes
// precedence over u.Index.
func ExtensionIndex(name string, u Unknown) int {
	if !IsExtensionName(name) {
		return u.Index
	}
	if i, err := strconv.Atoi(strings.TrimPrefix(name, ExtensionPrefix)); err == nil && i >= 0 {
		return i
	}
	return u.Index
}

// UnknownExtensions returns the unknown extensions of the SEQUENCE or SET value
// m ordered by their index. The Index of each result is set by
// [ExtensionIndex].
func UnknownExtensions(m map[string]any) []Unknown {
	var us []Unknown
	for k, v := range m {
		if u, ok := v.(Unknown); ok && IsExtensionName(k) {
			u.Index = ExtensionIndex(k, u)
			us = append(us, u)
		}
	}
	slices.SortFunc(us, func(a, b Unknown) int { return a.Index - b.Index })
	return us
}

// ValueSet is the value of an [Object] in [ModeSet]. Elements of Root and Ext
// are values of the object's type or, for ordered types, [Range] values.
type ValueSet struct {
	Root       []any
	Ext        []any
	Extensible bool
}

// All returns the root and extension values of s.
func (s ValueSet) All() []any {
	return append(slices.Clip(s.Root), s.Ext...)
}

//endregion

//region Character strings

// ValidString reports whether s only contains characters permitted for the
// string kind k. Kinds that are not restricted character strings accept any
// valid UTF-8.
func ValidString(k Kind, s string) bool {
	switch k {
	case KindNumericString:
		for i := 0; i < len(s); i++ {
			if !isNumeric(s[i]) {
				return false
			}
		}
		return true
	case KindPrintableString:
		for i := 0; i < len(s); i++ {
			if !isPrintable(s[i]) {
				return false
			}
		}
		return true
	case KindIA5String:
		for i := 0; i < len(s); i++ {
			if s[i] >= utf8.RuneSelf {
				return false
			}
		}
		return true
	case KindVisibleString:
		for i := 0; i < len(s); i++ {
			if s[i] < ' ' || s[i] >= 0x7F {
				return false
			}
		}
		return true
	case KindBMPString:
		if !utf8.ValidString(s) {
			return false
		}
		for _, r := range s {
			if r > 0xFFFF || (r >= 0xD800 && r < 0xE000) {
				return false
			}
		}
		return true
	}
	return utf8.ValidString(s)
}

// isNumeric reports whether b can appear in an ASN.1 NumericString.
func isNumeric(b byte) bool {
	return '0' <= b && b <= '9' || b == ' '
}

// isPrintable reports whether the given b is in the ASN.1 PrintableString set.
func isPrintable(b byte) bool {
	return 'a' <= b && b <= 'z' ||
		'A' <= b && b <= 'Z' ||
		'0' <= b && b <= '9' ||
		'\'' <= b && b <= ')' ||
		'+' <= b && b <= '/' ||
		b == ' ' ||
		b == ':' ||
		b == '=' ||
		b == '?'
}

// CharacterSet returns the characters of the known-multiplier string kind k in
// ascending order, or nil if k has no bounded character set.
func CharacterSet(k Kind) []rune {
	var lo, hi rune
	switch k {
	case KindNumericString:
		return []rune(" 0123456789")
	case KindPrintableString:
		rs := make([]rune, 0, 74)
		for b := byte(' '); b < 0x7F; b++ {
			if isPrintable(b) {
				rs = append(rs, rune(b))
			}
		}
		return rs
	case KindIA5String:
		lo, hi = 0, 0x7F
	case KindVisibleString:
		lo, hi = ' ', 0x7E
	default:
		return nil
	}
	rs := make([]rune, 0, hi-lo+1)
	for r := lo; r <= hi; r++ {
		rs = append(rs, r)
	}
	return rs
}

//endregion
