// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package vlq implements [Variable-length quantity] encoding as used in BER
// tag numbers and object identifier arcs. A VLQ is a base-128 representation
// of an unsigned integer with the eighth bit of each byte marking
// continuation. VLQ is identical to [LEB128] except in endianness.
//
// [Variable-length quantity]: https://en.wikipedia.org/wiki/Variable-length_quantity
// [LEB128]: https://en.wikipedia.org/wiki/LEB128
package vlq

import (
	"errors"
	"io"
	"math/bits"
	"unsafe"
)

var (
	ErrNotMinimal = errors.New("vlq is not minimally encoded")
	ErrOverflow   = errors.New("vlq too large for target type")
)

type unsigned interface {
	~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

// Decode parses an unsigned VLQ at the start of b and returns the value and
// the number of bytes it occupies. The maximum allowed value is limited by the
// size of T. If minimal is true, leading zero groups (0x80 bytes) are
// rejected.
//
// If b ends before the VLQ is complete, Decode returns [io.ErrUnexpectedEOF].
func Decode[T unsigned](b []byte, minimal bool) (ret T, n int, err error) {
	if len(b) == 0 {
		return 0, 0, io.ErrUnexpectedEOF
	}
	if b[0] == 0x80 && minimal {
		return 0, 0, ErrNotMinimal
	}
	numBits := 0
	for n < len(b) {
		c := b[n]
		n++
		if numBits == 0 {
			numBits = bits.Len8(c & 0x7f)
		} else {
			numBits += 7
		}
		if numBits > int(unsafe.Sizeof(ret)*8) {
			return 0, n, ErrOverflow
		}
		ret = ret<<7 | T(c&0x7f)
		if c&0x80 == 0 {
			return ret, n, nil
		}
	}
	return 0, n, io.ErrUnexpectedEOF
}

// Length returns the number of bytes needed to encode n as a VLQ.
func Length[T unsigned](n T) int {
	if n == 0 {
		return 1
	}
	return (bits.Len64(uint64(n)) + 6) / 7
}

// Append appends the VLQ encoding of n to dst and returns the extended
// buffer.
func Append[T unsigned](dst []byte, n T) []byte {
	for j := Length(n) - 1; j >= 0; j-- {
		b := byte(uint64(n)>>(j*7)) & 0x7f
		if j > 0 {
			b |= 0x80
		}
		dst = append(dst, b)
	}
	return dst
}
