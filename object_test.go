// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package asn1rt_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codello.dev/asn1rt"
	"codello.dev/asn1rt/internal/testschema"
)

func ctx(n uint) asn1rt.Tag  { return asn1rt.Tag{Class: asn1rt.ClassContextSpecific, Number: n} }
func app(n uint) asn1rt.Tag  { return asn1rt.Tag{Class: asn1rt.ClassApplication, Number: n} }
func univ(n uint) asn1rt.Tag { return asn1rt.Universal(n) }

func TestObject_TagChain(t *testing.T) {
	s := asn1rt.NewSchema()
	appInt := s.Type(asn1rt.KindInteger, "AppInt", asn1rt.Tagged(asn1rt.ClassApplication, 1, asn1rt.Implicit))
	choice := s.Type(asn1rt.KindChoice, "C", asn1rt.Components(s.New(asn1rt.KindNull, "n")))
	tests := map[string]struct {
		o    *asn1rt.Object
		want []asn1rt.Tag
	}{
		"Untagged":         {s.New(asn1rt.KindInteger, "a"), []asn1rt.Tag{univ(2)}},
		"Implicit":         {s.New(asn1rt.KindInteger, "b", asn1rt.Tagged(asn1rt.ClassContextSpecific, 0, asn1rt.Implicit)), []asn1rt.Tag{ctx(0)}},
		"Explicit":         {s.New(asn1rt.KindInteger, "c", asn1rt.Tagged(asn1rt.ClassContextSpecific, 0, asn1rt.Explicit)), []asn1rt.Tag{ctx(0), univ(2)}},
		"Reference":        {s.Ref(appInt, "d"), []asn1rt.Tag{app(1)}},
		"ExplicitRef":      {s.Ref(appInt, "e", asn1rt.Tagged(asn1rt.ClassContextSpecific, 2, asn1rt.Explicit)), []asn1rt.Tag{ctx(2), app(1)}},
		"ImplicitRef":      {s.Ref(appInt, "f", asn1rt.Tagged(asn1rt.ClassPrivate, 3, asn1rt.Implicit)), []asn1rt.Tag{{Class: asn1rt.ClassPrivate, Number: 3}}},
		"UntaggedChoice":   {choice, nil},
		"TaggedChoice":     {s.Ref(choice, "g", asn1rt.Tagged(asn1rt.ClassContextSpecific, 4, asn1rt.Implicit)), []asn1rt.Tag{ctx(4)}},
		"ExplicitChoice":   {s.Ref(choice, "h", asn1rt.Tagged(asn1rt.ClassContextSpecific, 4, asn1rt.Explicit)), []asn1rt.Tag{ctx(4)}},
		"SequenceOfString": {s.New(asn1rt.KindSequenceOf, "i", asn1rt.Of(s.New(asn1rt.KindUTF8String, ""))), []asn1rt.Tag{univ(16)}},
	}
	require.NoError(t, s.Finalize())
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, tt.o.TagChain()); diff != "" {
				t.Errorf("TagChain() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSchema_Finalize(t *testing.T) {
	f := testschema.New()
	assert.True(t, f.Schema.Finalized())
	assert.Same(t, f.Person, f.Schema.Lookup("Person"))
	assert.Nil(t, f.Schema.Lookup("Missing"))
	assert.Equal(t, "Person.age", f.Person.Component("age").QualifiedName())
	assert.Equal(t, "Numbers._item_", f.Numbers.Elem().QualifiedName())

	next := f.Node.Component("next")
	assert.Same(t, f.Node, next.ContentOwner())
	assert.Len(t, next.Components(), 2)

	assert.Len(t, f.Person.RootComponents(), 4)
	adds := f.Person.ExtensionAdditions()
	require.Len(t, adds, 1)
	assert.Equal(t, "nickname", adds[0][0].Name())

	item, ext, ok := f.Color.EnumItem("yellow")
	assert.True(t, ok)
	assert.True(t, ext)
	assert.Equal(t, int64(5), item.Value)
}

func TestSchema_TypeRef(t *testing.T) {
	s := asn1rt.NewSchema()
	list := s.Type(asn1rt.KindSequenceOf, "List", asn1rt.Of(s.New(asn1rt.KindInvalid, "", asn1rt.TypeRef("Item"))))
	s.Type(asn1rt.KindBoolean, "Item")
	require.NoError(t, s.Finalize())
	assert.Equal(t, asn1rt.KindBoolean, list.Elem().Kind())
	assert.Equal(t, []asn1rt.Tag{univ(1)}, list.Elem().TagChain())
}

func TestSchema_Check(t *testing.T) {
	tests := map[string]func(s *asn1rt.Schema){
		"DuplicateComponent": func(s *asn1rt.Schema) {
			s.Type(asn1rt.KindSequence, "S", asn1rt.Components(s.New(asn1rt.KindNull, "a"), s.New(asn1rt.KindNull, "a")))
		},
		"DuplicateType": func(s *asn1rt.Schema) {
			s.Type(asn1rt.KindNull, "T")
			s.Type(asn1rt.KindNull, "T")
		},
		"EmptyEnumerated": func(s *asn1rt.Schema) {
			s.Type(asn1rt.KindEnumerated, "E")
		},
		"DuplicateEnumValue": func(s *asn1rt.Schema) {
			s.Type(asn1rt.KindEnumerated, "E", asn1rt.EnumRoot(asn1rt.EnumItem{Name: "a", Value: 1}, asn1rt.EnumItem{Name: "b", Value: 1}))
		},
		"AmbiguousChoice": func(s *asn1rt.Schema) {
			s.Type(asn1rt.KindChoice, "C", asn1rt.Components(s.New(asn1rt.KindInteger, "a"), s.New(asn1rt.KindInteger, "b")))
		},
		"AmbiguousSet": func(s *asn1rt.Schema) {
			s.Type(asn1rt.KindSet, "S", asn1rt.Components(s.New(asn1rt.KindNull, "a"), s.New(asn1rt.KindNull, "b")))
		},
		"MissingElem": func(s *asn1rt.Schema) {
			s.Type(asn1rt.KindSetOf, "L")
		},
		"UnknownType": func(s *asn1rt.Schema) {
			s.New(asn1rt.KindInteger, "x", asn1rt.TypeRef("Missing"))
		},
		"SizeOnInteger": func(s *asn1rt.Schema) {
			s.New(asn1rt.KindInteger, "x", asn1rt.SizeRange(1, 2))
		},
		"ComponentsOnInteger": func(s *asn1rt.Schema) {
			s.New(asn1rt.KindInteger, "x").Add(s.New(asn1rt.KindNull, "y"))
		},
		"InvalidDefault": func(s *asn1rt.Schema) {
			s.Type(asn1rt.KindSequence, "S", asn1rt.Components(s.New(asn1rt.KindInteger, "a", asn1rt.Default("x"))))
		},
		"CircularReference": func(s *asn1rt.Schema) {
			a := s.New(asn1rt.KindInteger, "A", asn1rt.TypeRef("B"))
			s.Type(asn1rt.KindInteger, "B", asn1rt.RefersTo(a))
		},
	}
	for name, build := range tests {
		t.Run(name, func(t *testing.T) {
			s := asn1rt.NewSchema()
			build(s)
			err := s.Finalize()
			require.Error(t, err)
			assert.True(t, errors.Is(err, asn1rt.ErrSchema), "%v", err)
			assert.False(t, s.Finalized())
		})
	}
}

func TestObject_AddAfterFinalize(t *testing.T) {
	f := testschema.New()
	assert.Panics(t, func() { f.Person.Add(f.Schema.New(asn1rt.KindNull, "x")) })
}
