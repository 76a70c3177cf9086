// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tlv

import (
	"bytes"
	"fmt"
	"testing"

	"codello.dev/asn1rt"
)

func TestAppendHeader(t *testing.T) {
	tests := map[string]struct {
		h    Header
		want []byte
	}{
		"Short":       {Header{tagInteger, false, 1}, []byte{0x02, 0x01}},
		"Constructed": {Header{tagSequence, true, 0}, []byte{0x30, 0x00}},
		"Indefinite":  {Header{tagSequence, true, LengthIndefinite}, []byte{0x30, 0x80}},
		"LongLength":  {Header{tagOctetString, false, 200}, []byte{0x04, 0x81, 0xC8}},
		"TwoBytes":    {Header{tagOctetString, false, 1000}, []byte{0x04, 0x82, 0x03, 0xE8}},
		"LargeTag":    {Header{asn1rt.Tag{Class: asn1rt.ClassApplication, Number: 513}, false, 0}, []byte{0x5F, 0x84, 0x01, 0x00}},
		"Private":     {Header{asn1rt.Tag{Class: asn1rt.ClassPrivate, Number: 30}, true, 1}, []byte{0xFE, 0x01}},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got := AppendHeader(nil, tc.h)
			if !bytes.Equal(got, tc.want) {
				t.Errorf("AppendHeader(%s) = % X, want % X", tc.h, got, tc.want)
			}
			if l := HeaderLen(tc.h); l != len(tc.want) {
				t.Errorf("HeaderLen(%s) = %d, want %d", tc.h, l, len(tc.want))
			}
			h, n, err := DecodeHeader(got, true)
			if err != nil || h != tc.h || n != len(got) {
				t.Errorf("DecodeHeader(% X) = %s, %d, %v", got, h, n, err)
			}
		})
	}
}

func TestAppend(t *testing.T) {
	tests := map[string]struct {
		nodes []*Node
		want  []byte
	}{
		"Primitive": {
			[]*Node{Primitive(tagInteger, []byte{0x15})},
			[]byte{0x02, 0x01, 0x15},
		},
		"Definite": {
			[]*Node{Constructed(tagSequence, Primitive(tagInteger, []byte{0x15}), Constructed(tagSequence))},
			[]byte{0x30, 0x05, 0x02, 0x01, 0x15, 0x30, 0x00},
		},
		"Indefinite": {
			[]*Node{Indefinite(tagSequence, Primitive(tagInteger, []byte{0x15}))},
			[]byte{0x30, 0x80, 0x02, 0x01, 0x15, 0x00, 0x00},
		},
		"NestedIndefinite": {
			[]*Node{Constructed(tagSequence, Indefinite(tagSequence))},
			[]byte{0x30, 0x04, 0x30, 0x80, 0x00, 0x00},
		},
		"Verbatim": {
			[]*Node{Constructed(tagSequence, Verbatim([]byte{0x05, 0x00}))},
			[]byte{0x30, 0x02, 0x05, 0x00},
		},
		"Multiple": {
			[]*Node{Primitive(tagInteger, []byte{0x01}), Primitive(tagInteger, []byte{0x02})},
			[]byte{0x02, 0x01, 0x01, 0x02, 0x01, 0x02},
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got := Append(nil, tc.nodes...)
			if !bytes.Equal(got, tc.want) {
				t.Errorf("Append() = % X, want % X", got, tc.want)
			}
			nodes, err := ParseAll(got)
			if err != nil {
				t.Fatalf("ParseAll() error = %v", err)
			}
			if len(nodes) != len(tc.nodes) {
				t.Errorf("ParseAll() returned %d nodes, want %d", len(nodes), len(tc.nodes))
			}
		})
	}
}

func TestNode_Len(t *testing.T) {
	n := Constructed(tagSequence, Primitive(tagOctetString, make([]byte, 300)))
	// 4 bytes outer header, 4 bytes inner header
	if got := n.Len(); got != 308 {
		t.Errorf("Len() = %d, want 308", got)
	}
	if n.Length != 304 {
		t.Errorf("Length = %d, want 304", n.Length)
	}
}

func TestVerbatim(t *testing.T) {
	n := Verbatim([]byte{0x04, 0x02, 0xAB, 0xCD})
	if n.Tag != tagOctetString || n.Length != 2 || !bytes.Equal(n.Value, []byte{0xAB, 0xCD}) {
		t.Errorf("Verbatim() = %+v", n)
	}
}

func ExampleNode_String_tagged() {
	n := Constructed(tagSequence,
		Primitive(tagInteger, []byte{0x05}),
		Constructed(asn1rt.Tag{Class: asn1rt.ClassContextSpecific, Number: 0},
			Primitive(tagOctetString, []byte{0xAB, 0xCD})),
	)
	fmt.Print(n)
	// Output:
	// [UNIVERSAL 16] (2 elem)
	//   [UNIVERSAL 2] 1: 05
	//   [0] (1 elem)
	//     [UNIVERSAL 4] 2: ABCD
}

func ExampleAppend() {
	seq := Indefinite(tagSequence, Primitive(tagInteger, []byte{0x2A}))
	fmt.Printf("% X\n", Append(nil, seq))
	// Output: 30 80 02 01 2A 00 00
}
