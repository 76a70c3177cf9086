// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package jer

import (
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codello.dev/asn1rt"
	"codello.dev/asn1rt/internal/testschema"
)

func TestMarshal_Vectors(t *testing.T) {
	f := testschema.New()
	tests := map[string]struct {
		obj  *asn1rt.Object
		val  any
		want string
	}{
		"Implicit": {
			f.Implicit, map[string]any{"a": int64(5), "b": asn1rt.Null{}},
			`{"a":5,"b":null}`,
		},
		"PersonMinimal": {
			f.Person, map[string]any{"name": "A"},
			`{"name":"A"}`,
		},
		"PersonFull": {
			f.Person, map[string]any{"name": "A", "age": int64(30), "color": "blue", "nickname": "Al"},
			`{"name":"A","age":30,"color":"blue","nickname":"Al"}`,
		},
		"Circle": {
			f.Shape, asn1rt.Choice{Name: "circle", Value: int64(5)},
			`{"circle":5}`,
		},
		"Square": {
			f.Shape, asn1rt.Choice{Name: "square", Value: map[string]any{"side": int64(3)}},
			`{"square":{"side":3}}`,
		},
		"Numbers":   {f.Numbers, []any{int64(1), int64(-1), int64(0)}, `[1,-1,0]`},
		"NoNumbers": {f.Numbers, []any{}, `[]`},
		"Yellow":    {f.Color, "yellow", `"yellow"`},
		"Node": {
			f.Node, map[string]any{"value": int64(1), "next": map[string]any{"value": int64(2)}},
			`{"value":1,"next":{"value":2}}`,
		},
		"Attribute": {
			f.Attribute, map[string]any{
				"type":  testschema.CountryName,
				"value": asn1rt.Open{Type: "CountryName", Value: "DE"},
			},
			`{"type":"2.5.4.6","value":"DE"}`,
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := MarshalValue(tc.obj, tc.val, JER)
			require.NoError(t, err)
			assert.Equal(t, tc.want, string(got))

			v, err := Unmarshal(tc.obj, got, JER)
			require.NoError(t, err)
			assert.True(t, asn1rt.Equal(tc.val, v), "got %v, want %v", v, tc.val)
		})
	}
}

func TestMarshal_Indent(t *testing.T) {
	f := testschema.New()
	got, err := MarshalValue(f.Shape, asn1rt.Choice{Name: "circle", Value: int64(5)}, Options{Indent: 2})
	require.NoError(t, err)
	assert.JSONEq(t, `{"circle":5}`, string(got))
	assert.Contains(t, string(got), "\n  \"circle\"")
}

func TestMarshal_NoValue(t *testing.T) {
	f := testschema.New()
	_, err := Marshal(f.Person, JER)
	var ee *EncodeError
	require.ErrorAs(t, err, &ee)
	assert.ErrorIs(t, err, errNoValue)

	require.NoError(t, f.Person.Assign(map[string]any{"name": "B"}))
	got, err := Marshal(f.Person, JER)
	require.NoError(t, err)
	assert.Equal(t, `{"name":"B"}`, string(got))
}

func TestPrimitives(t *testing.T) {
	s := asn1rt.NewSchema()
	bits := s.Type(asn1rt.KindBitString, "Bits")
	fixedBits := s.Type(asn1rt.KindBitString, "FixedBits", asn1rt.SizeRange(3, 3))
	octets := s.Type(asn1rt.KindOctetString, "Octets")
	oid := s.Type(asn1rt.KindOID, "OID")
	rel := s.Type(asn1rt.KindRelativeOID, "Rel")
	real := s.Type(asn1rt.KindReal, "Real")
	integer := s.Type(asn1rt.KindInteger, "Integer")
	boolean := s.Type(asn1rt.KindBoolean, "Boolean")
	require.NoError(t, s.Finalize())

	huge, _ := new(big.Int).SetString("123456789012345678901234567890", 10)
	tests := map[string]struct {
		obj  *asn1rt.Object
		val  any
		want string
	}{
		"Bits":      {bits, asn1rt.BitString{Bytes: []byte{0xA0}, BitLength: 3}, `{"value":"A0","length":3}`},
		"EmptyBits": {bits, asn1rt.BitString{Bytes: []byte{}, BitLength: 0}, `{"value":"","length":0}`},
		"FixedBits": {fixedBits, asn1rt.BitString{Bytes: []byte{0xA0}, BitLength: 3}, `"A0"`},
		"Octets":    {octets, []byte{0x01, 0xAB}, `"01AB"`},
		"OID":       {oid, asn1rt.ObjectIdentifier{2, 5, 4, 6}, `"2.5.4.6"`},
		"Relative":  {rel, asn1rt.RelativeOID{8571, 3, 2}, `"8571.3.2"`},
		"Binary":    {real, asn1rt.RealFromFloat64(1.5), `1.5`},
		"Decimal":   {real, asn1rt.Real{Mantissa: 15, Base: 10, Exponent: -1}, `15E-1`},
		"Zero":      {real, asn1rt.Real{}, `0`},
		"Infinity":  {real, asn1rt.PlusInfinity, `"INF"`},
		"MinusInf":  {real, asn1rt.MinusInfinity, `"-INF"`},
		"NaN":       {real, asn1rt.NotANumber, `"NaN"`},
		"MinusZero": {real, asn1rt.MinusZero, `"-0"`},
		"Huge":      {integer, huge, `123456789012345678901234567890`},
		"Negative":  {integer, int64(-42), `-42`},
		"True":      {boolean, true, `true`},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := MarshalValue(tc.obj, tc.val, JER)
			require.NoError(t, err)
			assert.Equal(t, tc.want, string(got))

			v, err := Unmarshal(tc.obj, got, JER)
			require.NoError(t, err)
			assert.True(t, asn1rt.Equal(tc.val, v), "got %v, want %v", v, tc.val)
		})
	}
}

func TestUnmarshal_Real(t *testing.T) {
	s := asn1rt.NewSchema()
	real := s.Type(asn1rt.KindReal, "Real")
	require.NoError(t, s.Finalize())

	tests := map[string]struct {
		in   string
		want asn1rt.Real
	}{
		"Shortest":   {`0.1`, asn1rt.RealFromFloat64(0.1)},
		"Exponent":   {`1e+21`, asn1rt.RealFromFloat64(1e21)},
		"Trailing":   {`1.50`, asn1rt.Real{Mantissa: 15, Base: 10, Exponent: -1}},
		"Scientific": {`25E2`, asn1rt.Real{Mantissa: 25, Base: 10, Exponent: 2}},
		"Integer":    {`3`, asn1rt.RealFromFloat64(3)},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			v, err := Unmarshal(real, []byte(tc.in), JER)
			require.NoError(t, err)
			assert.Equal(t, tc.want, v)
		})
	}
}

func TestMarshal_Errors(t *testing.T) {
	f := testschema.New()
	s := asn1rt.NewSchema()
	real := s.Type(asn1rt.KindReal, "Real")
	require.NoError(t, s.Finalize())

	t.Run("MissingComponent", func(t *testing.T) {
		_, err := MarshalValue(f.Person, map[string]any{"age": int64(3)}, Options{})
		assert.Error(t, err)
	})
	t.Run("Bounds", func(t *testing.T) {
		_, err := MarshalValue(f.Numbers, []any{int64(2)}, JER)
		assert.ErrorIs(t, err, asn1rt.ErrBound)
	})
	t.Run("InexactBinary", func(t *testing.T) {
		_, err := MarshalValue(real, asn1rt.Real{Mantissa: 1<<62 + 1, Base: 2}, JER)
		var ee *EncodeError
		assert.ErrorAs(t, err, &ee)
	})
	t.Run("ForeignUnknown", func(t *testing.T) {
		_, err := MarshalValue(f.Color, asn1rt.Unknown{Index: 7}, JER)
		assert.ErrorIs(t, err, asn1rt.ErrNotSupported)
	})
}

func TestUnmarshal_Errors(t *testing.T) {
	f := testschema.New()
	tests := map[string]struct {
		obj  *asn1rt.Object
		in   string
		path []any
		err  error
	}{
		"Fraction":       {f.Numbers, `[1, 0.5]`, []any{1}, errInvalidNumber},
		"MissingName":    {f.Person, `{"age": 3}`, nil, errMissing},
		"UnknownMember":  {f.Node, `{"value": 1, "bogus": 2}`, nil, errUnknownMember},
		"NestedMember":   {f.Node, `{"value": 1, "next": {"value": 2, "x": 0}}`, []any{"next"}, errUnknownMember},
		"TwoAlternative": {f.Shape, `{"circle": 1, "square": {"side": 2}}`, nil, errChoiceMembers},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Unmarshal(tc.obj, []byte(tc.in), JER)
			var se *SyntaxError
			require.ErrorAs(t, err, &se)
			assert.ErrorIs(t, err, tc.err)
			if diff := cmp.Diff(tc.path, se.Path); diff != "" {
				t.Errorf("path mismatch (-want +got):\n%s", diff)
			}
		})
	}

	t.Run("InvalidJSON", func(t *testing.T) {
		_, err := Unmarshal(f.Person, []byte(`{"name":`), JER)
		var se *SyntaxError
		assert.ErrorAs(t, err, &se)
	})
	t.Run("Bounds", func(t *testing.T) {
		_, err := Unmarshal(f.Numbers, []byte(`[5]`), JER)
		assert.ErrorIs(t, err, asn1rt.ErrBound)
	})
}

func TestUnmarshal_UnknownExtensions(t *testing.T) {
	f := testschema.New()

	v, err := Unmarshal(f.Color, []byte(`"purple"`), JER)
	require.NoError(t, err)
	assert.Equal(t, asn1rt.Unknown{Index: -1, Raw: []byte(`"purple"`)}, v)
	got, err := MarshalValue(f.Color, v, JER)
	require.NoError(t, err)
	assert.Equal(t, `"purple"`, string(got))

	v, err = Unmarshal(f.Shape, []byte(`{"triangle": [1, 2]}`), JER)
	require.NoError(t, err)
	assert.Equal(t, asn1rt.Choice{
		Name:  asn1rt.ExtensionPrefix + "triangle",
		Value: asn1rt.Unknown{Index: -1, Raw: []byte(`[1,2]`)},
	}, v)
	got, err = MarshalValue(f.Shape, v, JER)
	require.NoError(t, err)
	assert.Equal(t, `{"triangle":[1,2]}`, string(got))

	v, err = Unmarshal(f.Person, []byte(`{"name": "A", "extra": true}`), JER)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "A"}, v)
}

func TestUnmarshal_UnresolvedOpenType(t *testing.T) {
	f := testschema.New()
	v, err := Unmarshal(f.Attribute, []byte(`{"type": "1.2.3", "value": {"a": 1}}`), Options{})
	require.NoError(t, err)
	want := map[string]any{
		"type":  asn1rt.ObjectIdentifier{1, 2, 3},
		"value": asn1rt.Open{Value: asn1rt.Unknown{Index: -1, Raw: []byte(`{"a":1}`)}},
	}
	if diff := cmp.Diff(want, v); diff != "" {
		t.Errorf("Unmarshal() mismatch (-want +got):\n%s", diff)
	}
}

func TestUnmarshal_MaxDepth(t *testing.T) {
	f := testschema.New()
	in := []byte(`{"value": 1, "next": {"value": 2, "next": {"value": 3}}}`)

	_, err := Unmarshal(f.Node, in, Options{MaxDepth: 3})
	assert.ErrorIs(t, err, errMaxDepth)

	_, err = Unmarshal(f.Node, in, Options{MaxDepth: 8})
	assert.NoError(t, err)
}

func TestUnmarshal_Containing(t *testing.T) {
	s := asn1rt.NewSchema()
	inner := s.Type(asn1rt.KindSequence, "Inner", asn1rt.Components(
		s.New(asn1rt.KindBoolean, "flag"),
	))
	wrapped := s.Type(asn1rt.KindOctetString, "Wrapped", asn1rt.Containing(inner))
	require.NoError(t, s.Finalize())

	v := map[string]any{"flag": true}
	got, err := MarshalValue(wrapped, v, JER)
	require.NoError(t, err)
	assert.Equal(t, `{"flag":true}`, string(got))

	dv, err := Unmarshal(wrapped, got, JER)
	require.NoError(t, err)
	assert.Equal(t, v, dv)

	dv, err = Unmarshal(wrapped, []byte(`"0102"`), JER)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, dv)
}

func TestSyntaxError(t *testing.T) {
	err := &SyntaxError{Path: []any{"a", 2, "b"}, Err: errors.New("boom")}
	assert.Equal(t, "jer: syntax error at /a/2/b: boom", err.Error())
	assert.Equal(t, "jer: syntax error: boom", (&SyntaxError{Err: errors.New("boom")}).Error())
}

func ExampleMarshalValue() {
	f := testschema.New()
	b, err := MarshalValue(f.Shape, asn1rt.Choice{Name: "square", Value: map[string]any{"side": int64(4)}}, JER)
	if err != nil {
		panic(err)
	}
	fmt.Println(string(b))
	// Output: {"square":{"side":4}}
}
