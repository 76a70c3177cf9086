// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bitbuf

import (
	"strconv"
	"strings"
)

// Field describes a range of bits of an encoding. Fields are nested: the
// children of a field lie within the bits of their parent.
type Field struct {
	Name     string
	Offset   int // position of the first bit
	Len      int // number of bits
	Children []*Field
}

// Bits returns the bits of f within data as a new slice. The first bit of f
// becomes the most significant bit of the first octet.
func (f *Field) Bits(data []byte) []byte {
	r := NewReader(data)
	r.off = f.Offset
	b, _ := r.ReadBitString(f.Len)
	return b
}

// Walk calls fn for f and each of its descendants in depth-first order. If fn
// returns false, the children of the respective field are skipped.
func (f *Field) Walk(fn func(f *Field, depth int) bool) {
	f.walk(fn, 0)
}

func (f *Field) walk(fn func(f *Field, depth int) bool, depth int) {
	if !fn(f, depth) {
		return
	}
	for _, c := range f.Children {
		c.walk(fn, depth+1)
	}
}

// String returns a multi-line dump of the field tree showing the bit range of
// each field.
func (f *Field) String() string {
	var sb strings.Builder
	f.Walk(func(c *Field, depth int) bool {
		sb.WriteString(strings.Repeat("  ", depth))
		sb.WriteString(c.Name)
		sb.WriteString(" @")
		sb.WriteString(strconv.Itoa(c.Offset))
		sb.WriteString(" +")
		sb.WriteString(strconv.Itoa(c.Len))
		sb.WriteByte('\n')
		return true
	})
	return sb.String()
}

// recorder collects the fields entered and left by a cursor. Recording is
// disabled until Record is called.
type recorder struct {
	recording bool
	stack     []*Field
	fields    []*Field
}

// Record enables the recording of fields.
func (r *recorder) Record() { r.recording = true }

// Fields returns the recorded top-level fields.
func (r *recorder) Fields() []*Field { return r.fields }

// Recording reports whether fields are recorded.
func (r *recorder) Recording() bool { return r.recording }

func (r *recorder) enter(name string, off int) {
	if !r.recording {
		return
	}
	f := &Field{Name: name, Offset: off}
	if len(r.stack) > 0 {
		p := r.stack[len(r.stack)-1]
		p.Children = append(p.Children, f)
	} else {
		r.fields = append(r.fields, f)
	}
	r.stack = append(r.stack, f)
}

func (r *recorder) leave(off int) {
	if !r.recording || len(r.stack) == 0 {
		return
	}
	f := r.stack[len(r.stack)-1]
	f.Len = off - f.Offset
	r.stack = r.stack[:len(r.stack)-1]
}

// embed adds copies of fs shifted by off to the current field.
func (r *recorder) embed(fs []*Field, off int) {
	if !r.recording {
		return
	}
	for _, f := range fs {
		c := f.shift(off)
		if len(r.stack) > 0 {
			p := r.stack[len(r.stack)-1]
			p.Children = append(p.Children, c)
		} else {
			r.fields = append(r.fields, c)
		}
	}
}

func (f *Field) shift(off int) *Field {
	c := &Field{Name: f.Name, Offset: f.Offset + off, Len: f.Len}
	for _, ch := range f.Children {
		c.Children = append(c.Children, ch.shift(off))
	}
	return c
}
