// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package asn1rt_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codello.dev/asn1rt"
	"codello.dev/asn1rt/internal/testschema"
)

func TestObject_Navigate(t *testing.T) {
	f := testschema.New()
	tests := map[string]struct {
		o    *asn1rt.Object
		path []any
		want string
	}{
		"Component":  {f.Person, []any{"age"}, "Person.age"},
		"Recursive":  {f.Node, []any{"next", "next", "value"}, "Node.value"},
		"Choice":     {f.Shape, []any{"square", "side"}, "Shape.square.side"},
		"ListIndex":  {f.Numbers, []any{7}, "Numbers._item_"},
		"OpenType":   {f.Attribute, []any{"value", "CountryName"}, "CountryName"},
		"EmptyPath":  {f.Person, nil, "Person"},
		"ClassField": {f.Class, []any{"id"}, "ATTRIBUTE.id"},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := tt.o.Navigate(tt.path...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.QualifiedName())
		})
	}

	invalid := map[string]struct {
		o    *asn1rt.Object
		path []any
	}{
		"UnknownComponent": {f.Person, []any{"height"}},
		"IntoBasic":        {f.Person, []any{"age", "x"}},
		"Extension":        {f.Shape, []any{"_ext_3"}},
		"Unresolved":       {f.Attribute, []any{"value", "_unk"}},
		"IndexOnSequence":  {f.Person, []any{0}},
		"NameOnList":       {f.Numbers, []any{"x"}},
		"NegativeIndex":    {f.Numbers, []any{-1}},
		"UnknownOpenType":  {f.Attribute, []any{"value", "Missing"}},
	}
	for name, tt := range invalid {
		t.Run(name, func(t *testing.T) {
			_, err := tt.o.Navigate(tt.path...)
			assert.ErrorIs(t, err, asn1rt.ErrPath)
		})
	}
}

func TestObject_ValueAt(t *testing.T) {
	f := testschema.New()
	require.NoError(t, f.Node.Assign(map[string]any{
		"value": 1,
		"next":  map[string]any{"value": 2, "next": map[string]any{"value": 3}},
	}))
	v, err := f.Node.ValueAt("next", "next", "value")
	require.NoError(t, err)
	assert.Equal(t, int64(3), v)

	_, err = f.Node.ValueAt("next", "next", "next")
	assert.ErrorIs(t, err, asn1rt.ErrPath)

	_, err = f.Person.ValueAt("name")
	assert.ErrorIs(t, err, asn1rt.ErrPath)
}

func TestObject_SetValueAt(t *testing.T) {
	f := testschema.New()
	orig := map[string]any{"value": int64(1), "next": map[string]any{"value": int64(2)}}
	require.NoError(t, f.Node.Assign(orig))

	require.NoError(t, f.Node.SetValueAt(20, "next", "value"))
	got, _ := f.Node.Value()
	assert.True(t, asn1rt.Equal(map[string]any{"value": 1, "next": map[string]any{"value": 20}}, got))
	assert.Equal(t, int64(2), orig["next"].(map[string]any)["value"], "original value must not change")

	require.NoError(t, f.Node.SetValueAt(30, "next", "next", "value"))
	v, err := f.Node.ValueAt("next", "next", "value")
	require.NoError(t, err)
	assert.Equal(t, int64(30), v)

	require.NoError(t, f.Numbers.Assign([]any{0}))
	require.NoError(t, f.Numbers.SetValueAt(1, 1))
	got, _ = f.Numbers.Value()
	assert.True(t, asn1rt.Equal([]any{0, 1}, got))
	assert.ErrorIs(t, f.Numbers.SetValueAt(2, 0), asn1rt.ErrBound)
	assert.ErrorIs(t, f.Numbers.SetValueAt(1, 5), asn1rt.ErrPath)

	require.NoError(t, f.Shape.SetValueAt(5, "square", "side"))
	got, _ = f.Shape.Value()
	assert.True(t, asn1rt.Equal(asn1rt.Choice{Name: "square", Value: map[string]any{"side": 5}}, got))

	require.NoError(t, f.Attribute.Assign(map[string]any{
		"type":  testschema.CountryName,
		"value": asn1rt.Open{Type: "CountryName", Value: "DE"},
	}))
	require.NoError(t, f.Attribute.SetValueAt("FR", "value", "CountryName"))
	v, err = f.Attribute.ValueAt("value", "CountryName")
	require.NoError(t, err)
	assert.Equal(t, "FR", v)
}

func TestObject_SetValueAtReal(t *testing.T) {
	s := asn1rt.NewSchema()
	r := s.Type(asn1rt.KindReal, "R")
	require.NoError(t, s.Finalize())
	require.NoError(t, r.Assign(asn1rt.Real{Mantissa: 3, Base: 2, Exponent: 1}))
	require.NoError(t, r.SetValueAt(10, "base"))
	got, _ := r.Value()
	assert.Equal(t, asn1rt.Real{Mantissa: 3, Base: 10, Exponent: 1}, got)
	m, err := r.ValueAt("mantissa")
	require.NoError(t, err)
	assert.Equal(t, int64(3), m)
	assert.ErrorIs(t, r.SetValueAt(7, "base"), asn1rt.ErrShape)
}

func TestObject_ValuePaths(t *testing.T) {
	f := testschema.New()
	require.NoError(t, f.Person.Assign(map[string]any{
		"name":   "Ann",
		"age":    30,
		"color":  "blue",
		"_ext_7": asn1rt.Unknown{Index: 7, Raw: []byte{0x05, 0x00}},
	}))
	got, err := f.Person.ValuePaths()
	require.NoError(t, err)
	want := []asn1rt.PathValue{
		{Path: []any{"name"}, Value: "Ann"},
		{Path: []any{"age"}, Value: 30},
		{Path: []any{"color"}, Value: "blue"},
		{Path: []any{"_ext_7"}, Value: asn1rt.Unknown{Index: 7, Raw: []byte{0x05, 0x00}}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ValuePaths() mismatch (-want +got):\n%s", diff)
	}

	require.NoError(t, f.Attribute.Assign(map[string]any{
		"type":  testschema.CommonName,
		"value": asn1rt.Open{Value: asn1rt.Unknown{Raw: []byte{0x0C, 0x01, 'x'}}},
	}))
	got, err = f.Attribute.ValuePaths()
	require.NoError(t, err)
	want = []asn1rt.PathValue{
		{Path: []any{"type"}, Value: testschema.CommonName},
		{Path: []any{"value", "_unk"}, Value: asn1rt.Unknown{Raw: []byte{0x0C, 0x01, 'x'}}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ValuePaths() mismatch (-want +got):\n%s", diff)
	}
}
