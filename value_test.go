// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package asn1rt_test

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codello.dev/asn1rt"
	"codello.dev/asn1rt/internal/testschema"
)

func TestObject_Assign(t *testing.T) {
	f := testschema.New()
	tests := map[string]struct {
		o       *asn1rt.Object
		v       any
		wantErr error
	}{
		"Person":            {f.Person, map[string]any{"name": "Ann", "age": 30}, nil},
		"PersonMissingName": {f.Person, map[string]any{"age": 30}, asn1rt.ErrShape},
		"PersonUnknownComp": {f.Person, map[string]any{"name": "Ann", "height": 1}, asn1rt.ErrShape},
		"PersonAgeBound":    {f.Person, map[string]any{"name": "Ann", "age": 151}, asn1rt.ErrBound},
		"PersonEmptyName":   {f.Person, map[string]any{"name": ""}, asn1rt.ErrBound},
		"PersonBadEmail":    {f.Person, map[string]any{"name": "Ann", "email": "ä"}, asn1rt.ErrShape},
		"PersonUnknownExt":  {f.Person, map[string]any{"name": "Ann", "_ext_1": asn1rt.Unknown{Index: 1, Raw: []byte{1}}}, nil},
		"ColorItem":         {f.Color, "yellow", nil},
		"ColorMissing":      {f.Color, "purple", asn1rt.ErrShape},
		"ColorUnknown":      {f.Color, asn1rt.Unknown{Index: 7}, nil},
		"ShapeCircle":       {f.Shape, asn1rt.Choice{Name: "circle", Value: 255}, nil},
		"ShapeCircleBound":  {f.Shape, asn1rt.Choice{Name: "circle", Value: 256}, asn1rt.ErrBound},
		"ShapeUnknownAlt":   {f.Shape, asn1rt.Choice{Name: "triangle", Value: 1}, asn1rt.ErrShape},
		"NodeRecursive":     {f.Node, map[string]any{"value": 1, "next": map[string]any{"value": 2}}, nil},
		"NumbersSize":       {f.Numbers, []any{0, 1, -1, 0}, asn1rt.ErrBound},
		"NumbersElemBound":  {f.Numbers, []any{2}, asn1rt.ErrBound},
		"NumbersShape":      {f.Numbers, []any{"x"}, asn1rt.ErrShape},
		"BigInteger":        {f.Node, map[string]any{"value": new(big.Int).Lsh(big.NewInt(1), 100)}, nil},
		"Attribute": {f.Attribute, map[string]any{
			"type":  testschema.CommonName,
			"value": asn1rt.Open{Type: "CommonName", Value: "Ann"},
		}, nil},
		"AttributeWrongType": {f.Attribute, map[string]any{
			"type":  testschema.CommonName,
			"value": asn1rt.Open{Type: "CountryName", Value: "DE"},
		}, asn1rt.ErrBound},
		"AttributeUnknownID": {f.Attribute, map[string]any{
			"type":  asn1rt.ObjectIdentifier{2, 5, 4, 99},
			"value": asn1rt.Open{Type: "CommonName", Value: "Ann"},
		}, asn1rt.ErrBound},
		"AttributeCountrySize": {f.Attribute, map[string]any{
			"type":  testschema.CountryName,
			"value": asn1rt.Open{Type: "CountryName", Value: "DEU"},
		}, asn1rt.ErrBound},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			tt.o.Clear()
			err := tt.o.Assign(tt.v)
			if tt.wantErr == nil {
				require.NoError(t, err)
				got, ok := tt.o.Value()
				assert.True(t, ok)
				assert.True(t, asn1rt.Equal(tt.v, got))
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			assert.False(t, tt.o.HasValue(), "slot must stay empty")
		})
	}
}

func TestObject_AssignKeepsPriorValue(t *testing.T) {
	f := testschema.New()
	age := f.Person.Component("age")
	require.NoError(t, age.Assign(42))
	var be *asn1rt.BoundError
	require.ErrorAs(t, age.Assign(-1), &be)
	assert.Equal(t, "Person.age", be.Object)
	v, _ := age.Value()
	assert.Equal(t, int64(42), v)
}

func TestObject_AssignWith(t *testing.T) {
	f := testschema.New()
	age := f.Person.Component("age")
	assert.NoError(t, age.AssignWith(1000, asn1rt.Policy{Shape: true}))
	assert.ErrorIs(t, age.AssignWith("x", asn1rt.Policy{Bounds: true}), asn1rt.ErrBound)
	assert.NoError(t, age.AssignWith("x", asn1rt.Unchecked))
}

func TestObject_Reset(t *testing.T) {
	f := testschema.New()
	value := f.Node.Component("value")
	require.NoError(t, f.Node.Assign(map[string]any{"value": 1}))
	require.NoError(t, value.Assign(5))
	f.Node.Reset()
	assert.False(t, f.Node.HasValue())
	assert.False(t, value.HasValue())
}

func TestObject_ClearKeepsDefinedValues(t *testing.T) {
	f := testschema.New()
	v, ok := f.Attributes.Value()
	f.Attributes.Clear()
	assert.True(t, ok)
	assert.True(t, f.Attributes.HasValue())
	assert.IsType(t, asn1rt.ValueSet{}, v)

	s := asn1rt.NewSchema()
	answer := s.Type(asn1rt.KindInteger, "answer", asn1rt.AsValue(42))
	require.NoError(t, s.Finalize())
	answer.Clear()
	answer.Reset()
	v, ok = answer.Value()
	assert.True(t, ok)
	assert.Equal(t, int64(42), v)
}

func TestObject_AssignNormalizesNested(t *testing.T) {
	f := testschema.New()
	in := map[string]any{"value": 1, "next": map[string]any{"value": uint8(2)}}
	require.NoError(t, f.Node.Assign(in))
	v, _ := f.Node.Value()
	assert.Equal(t, map[string]any{"value": int64(1), "next": map[string]any{"value": int64(2)}}, v)
	assert.Equal(t, 1, in["value"])
}
