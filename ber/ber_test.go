// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ber_test

import (
	"fmt"

	"codello.dev/asn1rt"
	"codello.dev/asn1rt/ber"
)

func ExampleMarshal() {
	s := asn1rt.NewSchema()
	point := s.Type(asn1rt.KindSequence, "Point", asn1rt.Components(
		s.New(asn1rt.KindInteger, "x"),
		s.New(asn1rt.KindInteger, "y"),
	))
	if err := s.Finalize(); err != nil {
		panic(err)
	}
	if err := point.Assign(map[string]any{"x": int64(3), "y": int64(-1)}); err != nil {
		panic(err)
	}
	b, err := ber.Marshal(point, ber.DER)
	if err != nil {
		panic(err)
	}
	fmt.Printf("% X\n", b)
	// Output: 30 06 02 01 03 02 01 FF
}

func ExampleUnmarshal() {
	s := asn1rt.NewSchema()
	flags := s.Type(asn1rt.KindSequenceOf, "Flags", asn1rt.Of(s.New(asn1rt.KindBoolean, "")))
	if err := s.Finalize(); err != nil {
		panic(err)
	}
	v, err := ber.Unmarshal(flags, []byte{0x30, 0x80, 0x01, 0x01, 0x01, 0x01, 0x01, 0x00, 0x00, 0x00}, ber.BER)
	if err != nil {
		panic(err)
	}
	fmt.Println(v)
	// Output: [true false]
}
