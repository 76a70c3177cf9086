// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package bitbuf implements bit-granular cursors over byte slices as used by
// the Packed Encoding Rules. Bits are written and read most significant bit
// first. A [Writer] and a [Reader] can optionally record the fields they
// process into a tree of [Field] values describing the layout of an encoding.
package bitbuf

import (
	"errors"
	"io"
)

var errBitCount = errors.New("bitbuf: bit count must be between 0 and 64")

// Writer appends bits to a growing buffer. The zero value is an empty writer
// ready to use.
type Writer struct {
	buf []byte
	n   int // number of bits written
	recorder
}

// NewWriter returns an empty writer.
func NewWriter() *Writer {
	return &Writer{buf: make([]byte, 0, 64)}
}

// Len returns the number of bits written, including padding inserted by
// [Writer.Align].
func (w *Writer) Len() int { return w.n }

// Aligned reports whether the next bit is written at an octet boundary.
func (w *Writer) Aligned() bool { return w.n%8 == 0 }

// Bytes returns the written bits. A trailing partial octet is padded with zero
// bits. The returned slice aliases the buffer of w.
func (w *Writer) Bytes() []byte { return w.buf }

// WriteBits writes the n least significant bits of v. n must not exceed 64.
func (w *Writer) WriteBits(v uint64, n int) {
	if n < 0 || n > 64 {
		panic(errBitCount)
	}
	for n > 0 {
		free := 8 - w.n%8
		if free == 8 {
			w.buf = append(w.buf, 0)
		}
		k := min(n, free)
		chunk := byte(v>>(n-k)) & byte(1<<k-1)
		w.buf[len(w.buf)-1] |= chunk << (free - k)
		w.n += k
		n -= k
	}
}

// WriteBit writes a single bit.
func (w *Writer) WriteBit(b bool) {
	if b {
		w.WriteBits(1, 1)
	} else {
		w.WriteBits(0, 1)
	}
}

// WriteBytes writes the octets of b starting at the current bit position.
func (w *Writer) WriteBytes(b []byte) {
	if w.Aligned() {
		w.buf = append(w.buf, b...)
		w.n += len(b) * 8
		return
	}
	for _, c := range b {
		w.WriteBits(uint64(c), 8)
	}
}

// WriteBitString writes the first n bits of b.
func (w *Writer) WriteBitString(b []byte, n int) {
	w.WriteBytes(b[:n/8])
	if rest := n % 8; rest > 0 {
		w.WriteBits(uint64(b[n/8]>>(8-rest)), rest)
	}
}

// Align pads the buffer with zero bits up to the next octet boundary.
func (w *Writer) Align() {
	w.n = (w.n + 7) &^ 7
}

// Enter starts a new field with the given name at the current position if
// recording is enabled. Every call must be matched by a call to [Writer.Leave].
func (w *Writer) Enter(name string) { w.enter(name, w.n) }

// Leave ends the field started by the last call to [Writer.Enter].
func (w *Writer) Leave() { w.leave(w.n) }

// Embed adds the fields recorded by another writer as children of the current
// field. The offsets of fs are shifted by off bits.
func (w *Writer) Embed(fs []*Field, off int) { w.embed(fs, off) }

// Reader consumes bits from a byte slice.
type Reader struct {
	buf []byte
	off int // bit offset
	recorder
}

// NewReader returns a reader positioned at the first bit of b.
func NewReader(b []byte) *Reader {
	return &Reader{buf: b}
}

// Offset returns the number of bits consumed so far.
func (r *Reader) Offset() int { return r.off }

// Remaining returns the number of bits that have not been consumed.
func (r *Reader) Remaining() int { return len(r.buf)*8 - r.off }

// Aligned reports whether the next bit is read from an octet boundary.
func (r *Reader) Aligned() bool { return r.off%8 == 0 }

// ReadBits reads n bits and returns them as the least significant bits of the
// result. n must not exceed 64.
func (r *Reader) ReadBits(n int) (uint64, error) {
	if n < 0 || n > 64 {
		return 0, errBitCount
	}
	if n > r.Remaining() {
		return 0, io.ErrUnexpectedEOF
	}
	var v uint64
	for n > 0 {
		avail := 8 - r.off%8
		k := min(n, avail)
		b := r.buf[r.off/8] >> (avail - k) & byte(1<<k-1)
		v = v<<k | uint64(b)
		r.off += k
		n -= k
	}
	return v, nil
}

// ReadBit reads a single bit.
func (r *Reader) ReadBit() (bool, error) {
	v, err := r.ReadBits(1)
	return v == 1, err
}

// ReadBytes reads n octets starting at the current bit position. The result
// does not alias the input.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if n < 0 || n > r.Remaining()/8 {
		return nil, io.ErrUnexpectedEOF
	}
	b := make([]byte, n)
	if r.Aligned() {
		copy(b, r.buf[r.off/8:])
		r.off += n * 8
		return b, nil
	}
	for i := range b {
		v, _ := r.ReadBits(8)
		b[i] = byte(v)
	}
	return b, nil
}

// ReadBitString reads n bits into a new slice. Unused bits of the last octet
// are zero.
func (r *Reader) ReadBitString(n int) ([]byte, error) {
	if n < 0 || n > r.Remaining() {
		return nil, io.ErrUnexpectedEOF
	}
	b, err := r.ReadBytes(n / 8)
	if err != nil {
		return nil, err
	}
	if rest := n % 8; rest > 0 {
		v, _ := r.ReadBits(rest)
		b = append(b, byte(v)<<(8-rest))
	}
	return b, nil
}

// Align skips bits up to the next octet boundary. The skipped bits are not
// checked.
func (r *Reader) Align() {
	r.off = min((r.off+7)&^7, len(r.buf)*8)
}

// Enter starts a new field with the given name at the current position if
// recording is enabled. Every call must be matched by a call to [Reader.Leave].
func (r *Reader) Enter(name string) { r.enter(name, r.off) }

// Leave ends the field started by the last call to [Reader.Enter].
func (r *Reader) Leave() { r.leave(r.off) }

// Embed adds the fields recorded by another reader as children of the current
// field. The offsets of fs are shifted by off bits.
func (r *Reader) Embed(fs []*Field, off int) { r.embed(fs, off) }
