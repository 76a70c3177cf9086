// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tlv

import (
	"fmt"
)

func ExampleHeader_String() {
	fmt.Println(Header{Tag: tagSequence, Constructed: true, Length: LengthIndefinite})
	fmt.Println(Header{Tag: tagInteger, Length: 1})
	fmt.Println(EndOfContents)

	// Output:
	// [UNIVERSAL 16]/c:indefinite
	// [UNIVERSAL 2]/p:1
	// EndOfContents
}

func ExampleNode_String() {
	n := Constructed(tagSequence,
		Primitive(tagInteger, []byte{0x2A}),
		Indefinite(tagSequence, Primitive(tagInteger, []byte{0x01, 0x00})),
	)
	fmt.Print(n)
	fmt.Printf("% X\n", n.Bytes())

	// Output:
	// [UNIVERSAL 16] (2 elem)
	//   [UNIVERSAL 2] 1: 2A
	//   [UNIVERSAL 16] (indefinite)
	//     [UNIVERSAL 2] 2: 0100
	// 30 0B 02 01 2A 30 80 02 02 01 00 00 00
}
