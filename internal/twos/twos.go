// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package twos converts integers to and from their big-endian two's
// complement and unsigned octet representations as used by BER, PER and OER.
package twos

import (
	"math/big"
)

var bigOne = big.NewInt(1)

// AppendInt64 appends the minimal two's complement encoding of i to dst.
func AppendInt64(dst []byte, i int64) []byte {
	n := 1
	for j := i; j > 127 || j < -128; j >>= 8 {
		n++
	}
	for ; n > 0; n-- {
		dst = append(dst, byte(i>>((n-1)*8)))
	}
	return dst
}

// AppendBig appends the minimal two's complement encoding of b to dst.
func AppendBig(dst []byte, b *big.Int) []byte {
	if b.IsInt64() {
		return AppendInt64(dst, b.Int64())
	}
	if b.Sign() > 0 {
		bs := b.Bytes()
		if bs[0]&0x80 != 0 {
			dst = append(dst, 0)
		}
		return append(dst, bs...)
	}
	// A negative number has to be converted to two's-complement form. So we
	// invert and subtract 1. If the most-significant-bit isn't set then we'll
	// need to pad the beginning with 0xff in order to keep the number negative.
	nMinus1 := new(big.Int).Neg(b)
	nMinus1.Sub(nMinus1, bigOne)
	bs := nMinus1.Bytes()
	for i := range bs {
		bs[i] ^= 0xff
	}
	if len(bs) == 0 || bs[0]&0x80 == 0 {
		dst = append(dst, 0xff)
	}
	return append(dst, bs...)
}

// Append appends the minimal two's complement encoding of an int64 or
// *big.Int value.
func Append(dst []byte, v any) []byte {
	switch v := v.(type) {
	case int64:
		return AppendInt64(dst, v)
	case *big.Int:
		return AppendBig(dst, v)
	}
	panic("twos: unsupported integer type")
}

// Parse decodes a big-endian two's complement integer. Values that fit are
// returned as int64, others as *big.Int. An empty slice is zero.
func Parse(b []byte) any {
	if len(b) <= 8 {
		var ret int64
		for _, c := range b {
			ret = ret<<8 | int64(c)
		}
		if len(b) > 0 && len(b) < 8 {
			ret <<= 64 - uint(len(b))*8
			ret >>= 64 - uint(len(b))*8
		}
		return ret
	}
	ret := new(big.Int).SetBytes(b)
	if b[0]&0x80 != 0 {
		// This is a negative number.
		notBytes := make([]byte, len(b))
		for i := range notBytes {
			notBytes[i] = ^b[i]
		}
		ret.SetBytes(notBytes)
		ret.Add(ret, bigOne)
		ret.Neg(ret)
	}
	if ret.IsInt64() {
		return ret.Int64()
	}
	return ret
}

// Minimal reports whether b is the minimal two's complement encoding of its
// value. Minimal encodings are not empty and do not start with nine equal
// bits.
func Minimal(b []byte) bool {
	if len(b) == 0 {
		return false
	}
	if len(b) > 1 && ((b[0] == 0 && b[1]&0x80 == 0) || (b[0] == 0xff && b[1]&0x80 == 0x80)) {
		return false
	}
	return true
}

// UnsignedLen returns the number of octets of the minimal unsigned encoding of
// u. Zero needs one octet.
func UnsignedLen(u uint64) int {
	n := 1
	for u > 255 {
		n++
		u >>= 8
	}
	return n
}

// AppendUnsigned appends u as a big-endian unsigned number of exactly n
// octets.
func AppendUnsigned(dst []byte, u uint64, n int) []byte {
	for ; n > 0; n-- {
		if n > 8 {
			dst = append(dst, 0)
			continue
		}
		dst = append(dst, byte(u>>((n-1)*8)))
	}
	return dst
}

// SignedLen returns the number of octets of the minimal two's complement
// encoding of i.
func SignedLen(i int64) int {
	n := 1
	for j := i; j > 127 || j < -128; j >>= 8 {
		n++
	}
	return n
}

// ParseUnsigned decodes a big-endian unsigned number. Values that fit into an
// int64 are returned as int64, others as *big.Int.
func ParseUnsigned(b []byte) any {
	ret := new(big.Int).SetBytes(b)
	if ret.IsInt64() {
		return ret.Int64()
	}
	return ret
}
