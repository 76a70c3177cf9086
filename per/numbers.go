// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package per

import (
	"math/big"
	"math/bits"

	"codello.dev/asn1rt"
	"codello.dev/asn1rt/internal/twos"
)

// This file implements the encoding of whole numbers and length determinants
// (X.691 clauses 11.5 to 11.9) that all other encodings are built from.

const (
	// fragment is the unit of fragmented length determinants (16K).
	fragment = 16384

	// maxConstrainedLength is the smallest upper bound for which length
	// determinants are no longer encoded as constrained whole numbers.
	maxConstrainedLength = 65536

	// maxItems bounds the total length of a fragmented value during decoding.
	maxItems = 1 << 26
)

//region Encoding

// constrained writes the offset off of a constrained whole number in a range of
// count values. A count of 0 stands for 2^64 values.
func (e *encoder) constrained(off, count uint64) {
	if count == 1 {
		return
	}
	if !e.opts.Aligned || (count != 0 && count <= 255) {
		e.w.WriteBits(off, bits.Len64(count-1))
		return
	}
	switch {
	case count == 256:
		e.w.Align()
		e.w.WriteBits(off, 8)
	case count != 0 && count <= 65536:
		e.w.Align()
		e.w.WriteBits(off, 16)
	default:
		// Indefinite length case: the number of octets is a constrained whole
		// number itself.
		n := twos.UnsignedLen(off)
		e.constrained(uint64(n-1), uint64(twos.UnsignedLen(count-1)))
		e.w.Align()
		e.w.WriteBytes(twos.AppendUnsigned(nil, off, n))
	}
}

// normallySmall writes a normally small non-negative whole number.
func (e *encoder) normallySmall(n uint64) {
	if n < 64 {
		e.w.WriteBits(n, 7)
		return
	}
	e.w.WriteBit(true)
	e.octets(new(big.Int).SetUint64(n).Bytes())
}

// smallLength writes a normally small length. n must be positive.
func (e *encoder) smallLength(n int) error {
	if n <= 64 {
		e.w.WriteBits(uint64(n-1), 7)
		return nil
	}
	e.w.WriteBit(true)
	if n >= fragment {
		return errLengthTooLarge
	}
	return e.fragments(n, 0, 0, false, func(int, int) error { return nil })
}

// bigConstrained writes the offset off of a constrained whole number whose
// range spans span+1 values. Ranges of up to 2^64 values are written by
// constrained.
func (e *encoder) bigConstrained(off, span *big.Int) {
	if span.IsUint64() {
		e.constrained(off.Uint64(), span.Uint64()+1)
		return
	}
	if !e.opts.Aligned {
		n := span.BitLen()
		k := (n + 7) / 8
		e.w.WriteBitString(new(big.Int).Lsh(off, uint(8*k-n)).FillBytes(make([]byte, k)), n)
		return
	}
	l := max(1, (off.BitLen()+7)/8)
	e.constrained(uint64(l-1), uint64((span.BitLen()+7)/8))
	e.w.Align()
	e.w.WriteBytes(off.FillBytes(make([]byte, l)))
}

// semiConstrained writes v - lb as a length-prefixed non-negative number.
func (e *encoder) semiConstrained(v, lb *big.Int) error {
	off := new(big.Int).Sub(v, lb)
	if off.Sign() < 0 {
		return errOutOfRange
	}
	data := off.Bytes()
	if len(data) == 0 {
		data = []byte{0}
	}
	e.octets(data)
	return nil
}

// unconstrained writes v as a length-prefixed two's complement number.
func (e *encoder) unconstrained(v any) {
	e.octets(twos.Append(nil, v))
}

// octets writes b preceded by an unconstrained length determinant. In the
// ALIGNED variant the octets are octet-aligned.
func (e *encoder) octets(b []byte) {
	_ = e.fragments(len(b), 0, 0, false, func(from, to int) error {
		e.w.WriteBytes(b[from:to])
		return nil
	})
}

// fragments writes the length determinant for n items followed by the items.
// If bounded is true and ub is small enough, the length is a constrained whole
// number between lb and ub. Otherwise, the length is unconstrained and items
// are split into fragments of up to 64K. write is called with the range of
// items following each length determinant.
func (e *encoder) fragments(n int, lb, ub int64, bounded bool, write func(from, to int) error) error {
	if bounded && ub < maxConstrainedLength {
		if int64(n) < lb || int64(n) > ub {
			return errOutOfRange
		}
		e.constrained(uint64(int64(n)-lb), uint64(ub-lb)+1)
		return write(0, n)
	}
	for from := 0; ; {
		rest := n - from
		if e.opts.Aligned {
			e.w.Align()
		}
		switch {
		case rest < 128:
			e.w.WriteBits(uint64(rest), 8)
			return write(from, n)
		case rest < fragment:
			e.w.WriteBits(0x8000|uint64(rest), 16)
			return write(from, n)
		}
		k := min(rest/fragment, 4)
		e.w.WriteBits(0xC0|uint64(k), 8)
		if err := write(from, from+k*fragment); err != nil {
			return err
		}
		from += k * fragment
	}
}

//endregion

//region Decoding

// constrained reads the offset of a constrained whole number in a range of
// count values. A count of 0 stands for 2^64 values.
func (d *decoder) constrained(count uint64) (uint64, error) {
	if count == 1 {
		return 0, nil
	}
	var (
		v   uint64
		err error
	)
	switch {
	case !d.opts.Aligned || (count != 0 && count <= 255):
		v, err = d.r.ReadBits(bits.Len64(count - 1))
	case count == 256:
		d.r.Align()
		v, err = d.r.ReadBits(8)
	case count != 0 && count <= 65536:
		d.r.Align()
		v, err = d.r.ReadBits(16)
	default:
		var l uint64
		if l, err = d.constrained(uint64(twos.UnsignedLen(count - 1))); err != nil {
			return 0, err
		}
		d.r.Align()
		v, err = d.r.ReadBits(int(l+1) * 8)
	}
	if err != nil {
		return 0, err
	}
	if count != 0 && v >= count {
		return 0, errOutOfRange
	}
	return v, nil
}

// normallySmall reads a normally small non-negative whole number.
func (d *decoder) normallySmall() (uint64, error) {
	large, err := d.r.ReadBit()
	if err != nil {
		return 0, err
	}
	if !large {
		return d.r.ReadBits(6)
	}
	b, err := d.octets()
	if err != nil {
		return 0, err
	}
	n := new(big.Int).SetBytes(b)
	if !n.IsUint64() {
		return 0, errOutOfRange
	}
	return n.Uint64(), nil
}

// smallLength reads a normally small length.
func (d *decoder) smallLength() (int, error) {
	large, err := d.r.ReadBit()
	if err != nil {
		return 0, err
	}
	if !large {
		n, err := d.r.ReadBits(6)
		return int(n) + 1, err
	}
	return d.fragments(0, 0, false, func(n int) error {
		if n >= fragment {
			return errLengthTooLarge
		}
		return nil
	})
}

// bigConstrained reads the offset of a constrained whole number whose range
// spans span+1 values.
func (d *decoder) bigConstrained(span *big.Int) (*big.Int, error) {
	if span.IsUint64() {
		v, err := d.constrained(span.Uint64() + 1)
		return new(big.Int).SetUint64(v), err
	}
	var off *big.Int
	if !d.opts.Aligned {
		n := span.BitLen()
		b, err := d.r.ReadBitString(n)
		if err != nil {
			return nil, err
		}
		off = new(big.Int).Rsh(new(big.Int).SetBytes(b), uint(8*len(b)-n))
	} else {
		l, err := d.constrained(uint64((span.BitLen() + 7) / 8))
		if err != nil {
			return nil, err
		}
		d.r.Align()
		b, err := d.r.ReadBytes(int(l) + 1)
		if err != nil {
			return nil, err
		}
		off = new(big.Int).SetBytes(b)
	}
	if off.Cmp(span) > 0 {
		return nil, errOutOfRange
	}
	return off, nil
}

// semiConstrained reads a length-prefixed non-negative number and adds lb.
func (d *decoder) semiConstrained(lb *big.Int) (any, error) {
	b, err := d.octets()
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return nil, errEmptyInteger
	}
	n := new(big.Int).SetBytes(b)
	return asn1rt.NormalizeInt(n.Add(n, lb)), nil
}

// unconstrained reads a length-prefixed two's complement number.
func (d *decoder) unconstrained() (any, error) {
	b, err := d.octets()
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return nil, errEmptyInteger
	}
	return twos.Parse(b), nil
}

// octets reads octets preceded by an unconstrained length determinant.
func (d *decoder) octets() ([]byte, error) {
	b, _, err := d.octetsAt()
	return b, err
}

// octetsAt works like octets and additionally returns the bit offset of the
// first octet.
func (d *decoder) octetsAt() ([]byte, int, error) {
	var b []byte
	start := -1
	_, err := d.fragments(0, 0, false, func(n int) error {
		if d.opts.Aligned {
			d.r.Align()
		}
		if start < 0 {
			start = d.r.Offset()
		}
		p, err := d.r.ReadBytes(n)
		b = append(b, p...)
		return err
	})
	return b, start, err
}

// fragments reads length determinants and calls read with the number of items
// following each of them. It returns the total number of items.
func (d *decoder) fragments(lb, ub int64, bounded bool, read func(n int) error) (int, error) {
	if bounded && ub < maxConstrainedLength {
		v, err := d.constrained(uint64(ub-lb) + 1)
		if err != nil {
			return 0, err
		}
		n := int(int64(v) + lb)
		return n, read(n)
	}
	total := 0
	for {
		if d.opts.Aligned {
			d.r.Align()
		}
		b, err := d.r.ReadBits(8)
		if err != nil {
			return total, err
		}
		var n int
		switch {
		case b&0x80 == 0:
			n = int(b)
		case b&0xC0 == 0x80:
			lo, err := d.r.ReadBits(8)
			if err != nil {
				return total, err
			}
			n = int(b&0x3F)<<8 | int(lo)
		default:
			k := int(b & 0x3F)
			if k < 1 || k > 4 {
				return total, errFragment
			}
			n = k * fragment
		}
		if total += n; total > maxItems {
			return total, errLengthTooLarge
		}
		if err = read(n); err != nil {
			return total, err
		}
		if b&0xC0 != 0xC0 {
			return total, nil
		}
	}
}

//endregion
