// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package oer

import (
	"io"
	"math"
	"math/big"

	"codello.dev/asn1rt"
	"codello.dev/asn1rt/internal/twos"
	"codello.dev/asn1rt/internal/vlq"
)

// maxItems limits the number of elements and extension additions a decoder
// accepts.
const maxItems = 1 << 26

// integerWidth returns the number of octets of the fixed-size encoding of an
// INTEGER with the constraint c. signed reports whether the encoding uses two's
// complement. A width of 0 selects a length-prefixed encoding.
func integerWidth(c *asn1rt.Constraint) (width int, signed bool) {
	if c.IsExtensible() {
		return 0, true
	}
	lb, ub := c.BigBounds()
	switch {
	case lb == nil:
		return 0, true
	case lb.Sign() >= 0 && ub == nil:
		return 0, false
	case lb.Sign() >= 0:
		if !ub.IsUint64() {
			return 0, false
		}
		switch u := ub.Uint64(); {
		case u <= math.MaxUint8:
			return 1, false
		case u <= math.MaxUint16:
			return 2, false
		case u <= math.MaxUint32:
			return 4, false
		}
		return 8, false
	case ub == nil || !lb.IsInt64() || !ub.IsInt64():
		return 0, true
	}
	switch l, u := lb.Int64(), ub.Int64(); {
	case l >= math.MinInt8 && u <= math.MaxInt8:
		return 1, true
	case l >= math.MinInt16 && u <= math.MaxInt16:
		return 2, true
	case l >= math.MinInt32 && u <= math.MaxInt32:
		return 4, true
	}
	return 8, true
}

//region Encoding

// appendLength appends the length determinant of n to dst. Lengths below 128
// use the short form.
func appendLength(dst []byte, n int) []byte {
	if n < 128 {
		return append(dst, byte(n))
	}
	l := twos.UnsignedLen(uint64(n))
	dst = append(dst, byte(0x80|l))
	return twos.AppendUnsigned(dst, uint64(n), l)
}

// length writes a length determinant.
func (e *encoder) length(n int) {
	e.w.WriteBytes(appendLength(nil, n))
}

// lengthPrefixed writes b preceded by its length determinant.
func (e *encoder) lengthPrefixed(b []byte) {
	e.length(len(b))
	e.w.WriteBytes(b)
}

// quantity writes the number of elements of a SEQUENCE OF or SET OF value.
func (e *encoder) quantity(n int) {
	l := twos.UnsignedLen(uint64(n))
	e.w.WriteBits(uint64(l), 8)
	e.w.WriteBytes(twos.AppendUnsigned(nil, uint64(n), l))
}

// appendTag appends the encoding of the tag of a CHOICE alternative to dst.
// Tag numbers of 63 and above use subsequent octets.
func appendTag(dst []byte, t asn1rt.Tag) []byte {
	if t.Number < 0x3F {
		return append(dst, byte(t.Class)<<6|byte(t.Number))
	}
	dst = append(dst, byte(t.Class)<<6|0x3F)
	return vlq.Append(dst, t.Number)
}

// tag writes the tag of a CHOICE alternative.
func (e *encoder) tag(t asn1rt.Tag) {
	e.w.WriteBytes(appendTag(nil, t))
}

// appendUnsigned appends the minimal unsigned encoding of the non-negative
// integer v.
func appendUnsigned(dst []byte, v any) ([]byte, error) {
	switch v := v.(type) {
	case int64:
		if v < 0 {
			return nil, errOutOfRange
		}
		return twos.AppendUnsigned(dst, uint64(v), twos.UnsignedLen(uint64(v))), nil
	case *big.Int:
		if v.Sign() < 0 {
			return nil, errOutOfRange
		}
		if v.Sign() == 0 {
			return append(dst, 0), nil
		}
		return append(dst, v.Bytes()...), nil
	}
	return nil, errOutOfRange
}

// integer writes the integer v using the encoding selected by the constraint
// c.
func (e *encoder) integer(c *asn1rt.Constraint, v any) error {
	width, signed := integerWidth(c)
	if width > 0 {
		lb, ub := c.BigBounds()
		b, ok := asn1rt.BigInt(v)
		if !ok || b.Cmp(lb) < 0 || b.Cmp(ub) > 0 {
			return errOutOfRange
		}
		if signed {
			e.w.WriteBytes(twos.AppendUnsigned(nil, uint64(b.Int64()), width))
		} else {
			e.w.WriteBytes(b.FillBytes(make([]byte, width)))
		}
		return nil
	}
	if signed {
		e.lengthPrefixed(twos.Append(nil, v))
		return nil
	}
	b, err := appendUnsigned(nil, v)
	if err != nil {
		return err
	}
	e.lengthPrefixed(b)
	return nil
}

//endregion

//region Decoding

// length reads a length determinant and verifies that the input holds at
// least that many octets.
func (d *decoder) length() (int, error) {
	b, err := d.r.ReadBits(8)
	if err != nil {
		return 0, err
	}
	n := int(b)
	if b&0x80 != 0 {
		l := int(b & 0x7F)
		if l == 0 || l > 8 {
			return 0, errLength
		}
		p, err := d.r.ReadBytes(l)
		if err != nil {
			return 0, err
		}
		if d.opts.Canonical && p[0] == 0 {
			return 0, errNonCanonical
		}
		u := new(big.Int).SetBytes(p)
		if !u.IsInt64() || u.Int64() > int64(d.r.Remaining()/8) {
			return 0, io.ErrUnexpectedEOF
		}
		n = int(u.Int64())
		if d.opts.Canonical && n < 128 {
			return 0, errNonCanonical
		}
	}
	if n > d.r.Remaining()/8 {
		return 0, io.ErrUnexpectedEOF
	}
	return n, nil
}

// lengthPrefixed reads octets preceded by a length determinant.
func (d *decoder) lengthPrefixed() ([]byte, error) {
	b, _, err := d.lengthPrefixedAt()
	return b, err
}

// lengthPrefixedAt works like lengthPrefixed and additionally returns the bit
// offset of the octets.
func (d *decoder) lengthPrefixedAt() ([]byte, int, error) {
	n, err := d.length()
	if err != nil {
		return nil, 0, err
	}
	start := d.r.Offset()
	b, err := d.r.ReadBytes(n)
	return b, start, err
}

// quantity reads the number of elements of a SEQUENCE OF or SET OF value.
func (d *decoder) quantity() (int, error) {
	l, err := d.r.ReadBits(8)
	if err != nil {
		return 0, err
	}
	if l == 0 || l > 8 {
		return 0, errLength
	}
	b, err := d.r.ReadBytes(int(l))
	if err != nil {
		return 0, err
	}
	if d.opts.Canonical && len(b) > 1 && b[0] == 0 {
		return 0, errNonCanonical
	}
	n, ok := twos.ParseUnsigned(b).(int64)
	if !ok || n > maxItems {
		return 0, errOutOfRange
	}
	return int(n), nil
}

// tag reads the tag of a CHOICE alternative.
func (d *decoder) tag() (asn1rt.Tag, error) {
	b, err := d.r.ReadBits(8)
	if err != nil {
		return asn1rt.Tag{}, err
	}
	t := asn1rt.Tag{Class: asn1rt.Class(b >> 6), Number: uint(b & 0x3F)}
	if t.Number < 0x3F {
		return t, nil
	}
	var buf []byte
	for {
		c, err := d.r.ReadBits(8)
		if err != nil {
			return asn1rt.Tag{}, err
		}
		buf = append(buf, byte(c))
		if c&0x80 == 0 {
			break
		}
		if len(buf) > 10 {
			return asn1rt.Tag{}, vlq.ErrOverflow
		}
	}
	n, _, err := vlq.Decode[uint](buf, true)
	if err != nil {
		return asn1rt.Tag{}, err
	}
	if d.opts.Canonical && n < 0x3F {
		return asn1rt.Tag{}, errNonCanonical
	}
	t.Number = n
	return t, nil
}

// integer reads an integer using the encoding selected by the constraint c.
func (d *decoder) integer(c *asn1rt.Constraint) (any, error) {
	width, signed := integerWidth(c)
	if width > 0 {
		b, err := d.r.ReadBytes(width)
		if err != nil {
			return nil, err
		}
		var u uint64
		for _, x := range b {
			u = u<<8 | uint64(x)
		}
		if signed {
			shift := 64 - uint(width)*8
			return int64(u<<shift) >> shift, nil
		}
		if u > math.MaxInt64 {
			return new(big.Int).SetUint64(u), nil
		}
		return int64(u), nil
	}
	b, err := d.lengthPrefixed()
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return nil, errEmptyInteger
	}
	if signed {
		if d.opts.Canonical && !twos.Minimal(b) {
			return nil, errNonCanonical
		}
		return twos.Parse(b), nil
	}
	if d.opts.Canonical && len(b) > 1 && b[0] == 0 {
		return nil, errNonCanonical
	}
	return twos.ParseUnsigned(b), nil
}

//endregion
