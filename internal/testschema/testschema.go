// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package testschema builds the schema shared by the tests of the codec
// packages. In ASN.1 notation the schema reads:
//
//	Color ::= ENUMERATED { red, green, blue, ..., yellow(5) }
//
//	Person ::= SEQUENCE {
//	    name      UTF8String (SIZE (1..64)),
//	    age       INTEGER (0..150) OPTIONAL,
//	    email     IA5String OPTIONAL,
//	    color     Color DEFAULT red,
//	    ...,
//	    nickname  [5] VisibleString OPTIONAL
//	}
//
//	Node ::= SEQUENCE { value INTEGER, next Node OPTIONAL }
//
//	Shape ::= CHOICE {
//	    circle  [0] INTEGER (0..255),
//	    square  [1] SEQUENCE { side INTEGER },
//	    ...
//	}
//
//	ATTRIBUTE ::= CLASS { &id OBJECT IDENTIFIER UNIQUE, &Type }
//	Attributes ATTRIBUTE ::= {
//	    { &id id-at-commonName, &Type UTF8String } |
//	    { &id id-at-countryName, &Type PrintableString (SIZE (2)) }
//	}
//	Attribute ::= SEQUENCE {
//	    type   ATTRIBUTE.&id ({Attributes}),
//	    value  ATTRIBUTE.&Type ({Attributes}{@type})
//	}
//
//	Implicit ::= SEQUENCE { a INTEGER (5), b NULL }
//	Numbers ::= SEQUENCE (SIZE (0..3)) OF INTEGER (-1..1)
package testschema

import (
	"codello.dev/asn1rt"
)

// OIDs used by the Attributes value set.
var (
	CommonName  = asn1rt.ObjectIdentifier{2, 5, 4, 3}
	CountryName = asn1rt.ObjectIdentifier{2, 5, 4, 6}
)

// Fixture holds the named types of the test schema.
type Fixture struct {
	Schema *asn1rt.Schema

	Color      *asn1rt.Object
	Person     *asn1rt.Object
	Node       *asn1rt.Object
	Shape      *asn1rt.Object
	Class      *asn1rt.Object
	Attributes *asn1rt.Object
	Attribute  *asn1rt.Object
	Implicit   *asn1rt.Object
	Numbers    *asn1rt.Object
}

// New builds and finalizes a fresh copy of the test schema. It panics if the
// schema is invalid.
func New() *Fixture {
	s := asn1rt.NewSchema()
	f := &Fixture{Schema: s}

	f.Color = s.Type(asn1rt.KindEnumerated, "Color",
		asn1rt.Items("red", "green", "blue"),
		asn1rt.EnumExt(asn1rt.EnumItem{Name: "yellow", Value: 5}))

	f.Person = s.Type(asn1rt.KindSequence, "Person", asn1rt.Extensible())
	f.Person.Add(
		s.New(asn1rt.KindUTF8String, "name", asn1rt.SizeRange(1, 64)),
		s.New(asn1rt.KindInteger, "age", asn1rt.ValueRange(0, 150), asn1rt.Optional()),
		s.New(asn1rt.KindIA5String, "email", asn1rt.Optional()),
		s.Ref(f.Color, "color", asn1rt.Default("red")),
		s.New(asn1rt.KindVisibleString, "nickname", asn1rt.Tagged(asn1rt.ClassContextSpecific, 5, asn1rt.Implicit),
			asn1rt.Optional(), asn1rt.InExtension()),
	)

	f.Node = s.Type(asn1rt.KindSequence, "Node")
	f.Node.Add(
		s.New(asn1rt.KindInteger, "value"),
		s.Ref(f.Node, "next", asn1rt.Optional()),
	)

	square := s.New(asn1rt.KindSequence, "square", asn1rt.Tagged(asn1rt.ClassContextSpecific, 1, asn1rt.Implicit))
	square.Add(s.New(asn1rt.KindInteger, "side"))
	f.Shape = s.Type(asn1rt.KindChoice, "Shape", asn1rt.Extensible(), asn1rt.Components(
		s.New(asn1rt.KindInteger, "circle", asn1rt.Tagged(asn1rt.ClassContextSpecific, 0, asn1rt.Implicit), asn1rt.ValueRange(0, 255)),
		square,
	))

	cn := s.Type(asn1rt.KindUTF8String, "CommonName")
	country := s.Type(asn1rt.KindPrintableString, "CountryName", asn1rt.SizeRange(2, 2))
	f.Class = s.Type(asn1rt.KindClass, "ATTRIBUTE", asn1rt.Components(
		s.New(asn1rt.KindOID, "id", asn1rt.Unique()),
		s.New(asn1rt.KindOpen, "Type"),
	))
	f.Attributes = s.Type(asn1rt.KindClass, "Attributes", asn1rt.RefersTo(f.Class), asn1rt.AsSet(asn1rt.ValueSet{
		Root: []any{
			map[string]any{"id": CommonName, "Type": cn},
			map[string]any{"id": CountryName, "Type": country},
		},
	}))
	f.Attribute = s.Type(asn1rt.KindSequence, "Attribute", asn1rt.Components(
		s.New(asn1rt.KindOID, "type", asn1rt.Table(f.Attributes, "id")),
		s.New(asn1rt.KindOpen, "value", asn1rt.Table(f.Attributes, "Type", "type")),
	))

	f.Implicit = s.Type(asn1rt.KindSequence, "Implicit", asn1rt.Components(
		s.New(asn1rt.KindInteger, "a", asn1rt.SingleValue(5)),
		s.New(asn1rt.KindNull, "b"),
	))
	f.Numbers = s.Type(asn1rt.KindSequenceOf, "Numbers", asn1rt.SizeRange(0, 3),
		asn1rt.Of(s.New(asn1rt.KindInteger, "", asn1rt.ValueRange(-1, 1))))

	if err := s.Finalize(); err != nil {
		panic(err)
	}
	return f
}
