// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package per

import (
	"bytes"
	"errors"
	"io"
	"math"
	"math/big"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codello.dev/asn1rt"
	"codello.dev/asn1rt/internal/testschema"
)

func TestMarshal_Vectors(t *testing.T) {
	f := testschema.New()
	tests := map[string]struct {
		obj       *asn1rt.Object
		val       any
		aligned   []byte
		unaligned []byte
	}{
		"Implicit": {
			f.Implicit, map[string]any{"a": int64(5), "b": asn1rt.Null{}},
			[]byte{0x00}, []byte{0x00},
		},
		"PersonMinimal": {
			f.Person, map[string]any{"name": "A"},
			[]byte{0x00, 0x01, 0x41}, []byte{0x00, 0x14, 0x10},
		},
		"PersonDefault": {
			f.Person, map[string]any{"name": "A", "color": "red"},
			[]byte{0x00, 0x01, 0x41}, []byte{0x00, 0x14, 0x10},
		},
		"PersonAge": {
			f.Person, map[string]any{"name": "A", "age": int64(30)},
			[]byte{0x40, 0x01, 0x41, 0x1E}, []byte{0x40, 0x14, 0x11, 0xE0},
		},
		"PersonNickname": {
			f.Person, map[string]any{"name": "A", "nickname": "Al"},
			[]byte{0x80, 0x01, 0x41, 0x01, 0x03, 0x02, 0x41, 0x6C},
			[]byte{0x80, 0x14, 0x10, 0x10, 0x30, 0x28, 0x3B, 0x00},
		},
		"Circle": {
			f.Shape, asn1rt.Choice{Name: "circle", Value: int64(5)},
			[]byte{0x00, 0x05}, []byte{0x01, 0x40},
		},
		"Square": {
			f.Shape, asn1rt.Choice{Name: "square", Value: map[string]any{"side": int64(3)}},
			[]byte{0x40, 0x01, 0x03}, []byte{0x40, 0x40, 0xC0},
		},
		"Numbers": {
			f.Numbers, []any{int64(1), int64(-1), int64(0)},
			[]byte{0xE1}, []byte{0xE1},
		},
		"NoNumbers": {
			f.Numbers, []any{},
			[]byte{0x00}, []byte{0x00},
		},
		"Green": {
			f.Color, "green",
			[]byte{0x20}, []byte{0x20},
		},
		"Yellow": {
			f.Color, "yellow",
			[]byte{0x80}, []byte{0x80},
		},
		"Attribute": {
			f.Attribute, map[string]any{
				"type":  testschema.CountryName,
				"value": asn1rt.Open{Type: "CountryName", Value: "DE"},
			},
			[]byte{0x03, 0x55, 0x04, 0x06, 0x02, 0x44, 0x45},
			[]byte{0x03, 0x55, 0x04, 0x06, 0x02, 0x89, 0x14},
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			for _, variant := range []struct {
				opts Options
				want []byte
			}{{Aligned, tc.aligned}, {Unaligned, tc.unaligned}} {
				got, err := MarshalValue(tc.obj, tc.val, variant.opts)
				require.NoError(t, err)
				assert.Equal(t, variant.want, got, "aligned=%t", variant.opts.Aligned)
			}
		})
	}
}

func TestRoundTrip(t *testing.T) {
	f := testschema.New()
	tests := map[string]struct {
		obj *asn1rt.Object
		val any
	}{
		"PersonComplete": {f.Person, map[string]any{
			"name": "Alice", "age": int64(42), "email": "a@b.example", "color": "blue", "nickname": "Al",
		}},
		"PersonYellow": {f.Person, map[string]any{"name": "B", "color": "yellow"}},
		"Node": {f.Node, map[string]any{
			"value": int64(1),
			"next":  map[string]any{"value": int64(-300), "next": map[string]any{"value": int64(1) << 40}},
		}},
		"Circle":    {f.Shape, asn1rt.Choice{Name: "circle", Value: int64(255)}},
		"Square":    {f.Shape, asn1rt.Choice{Name: "square", Value: map[string]any{"side": int64(-70000)}}},
		"Numbers":   {f.Numbers, []any{int64(0), int64(1), int64(-1)}},
		"Attribute": {f.Attribute, map[string]any{"type": testschema.CommonName, "value": asn1rt.Open{Type: "CommonName", Value: "Ünïcode"}}},
	}
	for name, tc := range tests {
		for _, opts := range []Options{Aligned, Unaligned} {
			t.Run(name, func(t *testing.T) {
				b, err := MarshalValue(tc.obj, tc.val, opts)
				require.NoError(t, err)
				got, err := Unmarshal(tc.obj, b, opts)
				require.NoError(t, err)
				if diff := cmp.Diff(tc.val, got); diff != "" {
					t.Errorf("Unmarshal() mismatch (-want +got):\n%s", diff)
				}
			})
		}
	}
}

func TestRoundTrip_Primitives(t *testing.T) {
	s := asn1rt.NewSchema()
	tests := map[string]struct {
		obj *asn1rt.Object
		val any
	}{
		"Boolean":      {s.Type(asn1rt.KindBoolean, "Boolean"), true},
		"Null":         {s.Type(asn1rt.KindNull, "Null"), asn1rt.Null{}},
		"Real":         {s.Type(asn1rt.KindReal, "Real"), asn1rt.Real{Mantissa: 5, Base: 2, Exponent: 3}},
		"OID":          {s.Type(asn1rt.KindOID, "OID"), asn1rt.ObjectIdentifier{1, 2, 840, 113549}},
		"RelativeOID":  {s.Type(asn1rt.KindRelativeOID, "RelativeOID"), asn1rt.RelativeOID{8571, 3, 2}},
		"BitString":    {s.Type(asn1rt.KindBitString, "BitString"), asn1rt.BitString{Bytes: []byte{0xF1, 0x80}, BitLength: 9}},
		"OctetString":  {s.Type(asn1rt.KindOctetString, "OctetString"), []byte{0x01, 0x02, 0x03}},
		"Empty":        {s.Type(asn1rt.KindOctetString, "Empty"), []byte{}},
		"UTF8String":   {s.Type(asn1rt.KindUTF8String, "UTF8String"), "héllo"},
		"BMPString":    {s.Type(asn1rt.KindBMPString, "BMPString"), "Aé€"},
		"Universal":    {s.Type(asn1rt.KindUniversalString, "Universal"), "A😀"},
		"Numeric":      {s.Type(asn1rt.KindNumericString, "Numeric"), "12 34"},
		"Printable":    {s.Type(asn1rt.KindPrintableString, "Printable"), "Test (1)"},
		"Teletex":      {s.Type(asn1rt.KindTeletexString, "Teletex"), "abc"},
		"Unbounded":    {s.Type(asn1rt.KindInteger, "Unbounded"), int64(-123456789)},
		"SemiBounded":  {s.Type(asn1rt.KindInteger, "SemiBounded", asn1rt.ValueRange(-10, nil)), int64(1000)},
		"FixedBits":    {s.Type(asn1rt.KindBitString, "FixedBits", asn1rt.SizeRange(20, 20)), asn1rt.BitString{Bytes: []byte{0xAB, 0xCD, 0xE0}, BitLength: 20}},
		"FixedOctets":  {s.Type(asn1rt.KindOctetString, "FixedOctets", asn1rt.SizeRange(4, 4)), []byte{1, 2, 3, 4}},
		"SizedOctets":  {s.Type(asn1rt.KindOctetString, "SizedOctets", asn1rt.SizeRange(1, 10)), []byte{1, 2, 3}},
		"GeneralTime":  {s.Type(asn1rt.KindGeneralizedTime, "GeneralTime"), time.Date(2024, 2, 29, 12, 30, 15, 0, time.UTC)},
		"UTCTime":      {s.Type(asn1rt.KindUTCTime, "UTCTime"), time.Date(1991, 5, 6, 23, 45, 40, 0, time.UTC)},
		"SizedVisible": {s.Type(asn1rt.KindVisibleString, "SizedVisible", asn1rt.SizeRange(0, 10)), "hello"},
	}
	require.NoError(t, s.Finalize())
	for name, tc := range tests {
		for _, opts := range []Options{Aligned, Unaligned} {
			t.Run(name, func(t *testing.T) {
				b, err := MarshalValue(tc.obj, tc.val, opts)
				require.NoError(t, err)
				got, err := Unmarshal(tc.obj, b, opts)
				require.NoError(t, err)
				assert.True(t, asn1rt.Equal(tc.val, got), "got %v, want %v", got, tc.val)
			})
		}
	}
}

func TestMarshal_Constraints(t *testing.T) {
	s := asn1rt.NewSchema()
	extInt := s.Type(asn1rt.KindInteger, "ExtInt", asn1rt.WithConstraint(asn1rt.Constraint{
		Root: []any{asn1rt.Range{Lower: 0, Upper: 7}}, Extensible: true,
	}))
	numeric := s.Type(asn1rt.KindNumericString, "Numeric")
	bits := s.Type(asn1rt.KindBitString, "Bits", asn1rt.SizeRange(4, 4))
	seq := s.Type(asn1rt.KindSequence, "Seq", asn1rt.Components(
		s.New(asn1rt.KindBoolean, "flag"),
		s.New(asn1rt.KindOctetString, "data", asn1rt.SizeRange(2, 2)),
	))
	set := s.Type(asn1rt.KindSet, "Set", asn1rt.Components(
		s.New(asn1rt.KindBoolean, "c", asn1rt.Tagged(asn1rt.ClassContextSpecific, 2, asn1rt.Implicit)),
		s.New(asn1rt.KindBoolean, "a", asn1rt.Tagged(asn1rt.ClassContextSpecific, 0, asn1rt.Implicit)),
		s.New(asn1rt.KindBoolean, "b", asn1rt.Tagged(asn1rt.ClassContextSpecific, 1, asn1rt.Implicit)),
	))
	u64 := s.Type(asn1rt.KindInteger, "U64", asn1rt.ValueRange(0, uint64(math.MaxUint64)))
	require.NoError(t, s.Finalize())
	maxU64 := new(big.Int).SetUint64(math.MaxUint64)

	tests := map[string]struct {
		obj  *asn1rt.Object
		val  any
		opts Options
		want []byte
	}{
		"ExtIntRoot":    {extInt, int64(3), Unaligned, []byte{0x30}},
		"ExtIntOutside": {extInt, int64(9), Unaligned, []byte{0x80, 0x84, 0x80}},
		"Numeric":       {numeric, "123", Unaligned, []byte{0x03, 0x23, 0x40}},
		"NumericAlign":  {numeric, "123", Aligned, []byte{0x03, 0x23, 0x40}},
		"FixedBits":     {bits, asn1rt.BitString{Bytes: []byte{0xA0}, BitLength: 4}, Unaligned, []byte{0xA0}},
		"ShortOctets":   {seq, map[string]any{"flag": true, "data": []byte{0xAB, 0xCD}}, Aligned, []byte{0xD5, 0xE6, 0x80}},
		"SetOrder":      {set, map[string]any{"a": true, "b": false, "c": false}, Unaligned, []byte{0x80}},
		"Uint64":        {u64, int64(1), Unaligned, []byte{0, 0, 0, 0, 0, 0, 0, 1}},
		"Uint64Aligned": {u64, int64(1), Aligned, []byte{0x00, 0x01}},
		"Uint64Max":     {u64, maxU64, Unaligned, bytes.Repeat([]byte{0xFF}, 8)},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := MarshalValue(tc.obj, tc.val, tc.opts)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)

			v, err := Unmarshal(tc.obj, got, tc.opts)
			require.NoError(t, err)
			assert.True(t, asn1rt.Equal(tc.val, v), "got %v, want %v", v, tc.val)
		})
	}
}

func TestMarshal_GoIntegers(t *testing.T) {
	s := asn1rt.NewSchema()
	seq := s.Type(asn1rt.KindSequence, "Seq", asn1rt.Components(s.New(asn1rt.KindInteger, "n")))
	list := s.Type(asn1rt.KindSequenceOf, "List", asn1rt.Of(s.New(asn1rt.KindInteger, "")))
	require.NoError(t, s.Finalize())
	f := testschema.New()

	tests := map[string]struct {
		obj  *asn1rt.Object
		val  any
		want []byte
	}{
		"Int":    {seq, map[string]any{"n": 5}, []byte{0x01, 0x05}},
		"Uint8":  {seq, map[string]any{"n": uint8(5)}, []byte{0x01, 0x05}},
		"Int32":  {seq, map[string]any{"n": int32(-1)}, []byte{0x01, 0xFF}},
		"List":   {list, []any{1, uint16(2)}, []byte{0x02, 0x01, 0x01, 0x01, 0x02}},
		"Choice": {f.Shape, asn1rt.Choice{Name: "circle", Value: 5}, []byte{0x00, 0x05}},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := MarshalValue(tc.obj, tc.val, Aligned)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)

			require.NoError(t, tc.obj.Assign(tc.val))
			got, err = Marshal(tc.obj, Aligned)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestMarshal_NonCanonical(t *testing.T) {
	f := testschema.New()
	opts := Options{Aligned: true, Policy: asn1rt.Validated}
	got, err := MarshalValue(f.Person, map[string]any{"name": "A", "color": "red"}, opts)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x10, 0x01, 0x41, 0x00}, got)

	v, err := Unmarshal(f.Person, got, opts)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "A", "color": "red"}, v)
}

func TestMarshal_Errors(t *testing.T) {
	f := testschema.New()
	tests := map[string]struct {
		obj    *asn1rt.Object
		val    any
		opts   Options
		target error
	}{
		"Bounds":        {f.Numbers, []any{int64(0), int64(0), int64(0), int64(0)}, Aligned, asn1rt.ErrBound},
		"TooMany":       {f.Numbers, []any{int64(0), int64(0), int64(0), int64(0)}, Options{Aligned: true}, errOutOfRange},
		"OutOfRange":    {f.Shape, asn1rt.Choice{Name: "circle", Value: int64(256)}, Options{}, errOutOfRange},
		"NotSupported":  {f.Class, map[string]any{}, Options{}, asn1rt.ErrNotSupported},
		"WrongShape":    {f.Person, "Alice", Aligned, asn1rt.ErrShape},
		"MissingName":   {f.Person, map[string]any{}, Options{}, nil},
		"UnknownItem":   {f.Color, "purple", Options{}, nil},
		"UnknownChoice": {f.Shape, asn1rt.Choice{Name: "triangle", Value: int64(1)}, Options{}, nil},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := MarshalValue(tc.obj, tc.val, tc.opts)
			require.Error(t, err)
			if tc.target != nil {
				assert.ErrorIs(t, err, tc.target)
			}
		})
	}
}

func TestMarshal_NoValue(t *testing.T) {
	f := testschema.New()
	_, err := Marshal(f.Person, Aligned)
	assert.ErrorIs(t, err, errNoValue)

	require.NoError(t, f.Shape.Assign(asn1rt.Choice{Name: "circle", Value: int64(5)}))
	got, err := Marshal(f.Shape, Aligned)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x05}, got)
}

func TestUnmarshal_Errors(t *testing.T) {
	f := testschema.New()
	tests := map[string]struct {
		obj    *asn1rt.Object
		data   []byte
		target error
	}{
		"Empty":        {f.Implicit, nil, io.ErrUnexpectedEOF},
		"EmptyShape":   {f.Shape, nil, io.ErrUnexpectedEOF},
		"TrailingData": {f.Shape, []byte{0x00, 0x05, 0x00}, ErrTrailingData},
		"Truncated":    {f.Person, []byte{0x00, 0x05, 0x41}, io.ErrUnexpectedEOF},
		"EnumRange":    {f.Color, []byte{0x60}, errOutOfRange},
		"Fragment":     {f.Node, []byte{0x00, 0xC7}, errFragment},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Unmarshal(tc.obj, tc.data, Aligned)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.target)
			var se *SyntaxError
			assert.True(t, errors.As(err, &se), "expected SyntaxError, got %T", err)
		})
	}
}

func TestUnmarshal_Padding(t *testing.T) {
	f := testschema.New()
	tests := map[string]struct {
		obj  *asn1rt.Object
		data []byte
	}{
		"Empty":    {f.Implicit, []byte{0x01}},
		"Trailing": {f.Color, []byte{0x21}},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Unmarshal(tc.obj, tc.data, Unaligned)
			assert.ErrorIs(t, err, errPadding)

			_, err = Unmarshal(tc.obj, tc.data, Options{Policy: asn1rt.Validated})
			assert.NoError(t, err)
		})
	}
}

func TestUnmarshal_UnknownExtensions(t *testing.T) {
	f := testschema.New()
	t.Run("Sequence", func(t *testing.T) {
		data := []byte{0x80, 0x01, 0x41, 0x02, 0x80, 0x01, 0x43}
		v, err := Unmarshal(f.Person, data, Aligned)
		require.NoError(t, err)
		want := map[string]any{
			"name":                    "A",
			asn1rt.ExtensionName(1): asn1rt.Unknown{Index: 1, Raw: []byte{0x43}},
		}
		assert.Equal(t, want, v)

		b, err := MarshalValue(f.Person, v, Aligned)
		require.NoError(t, err)
		assert.Equal(t, data, b)
	})
	t.Run("Choice", func(t *testing.T) {
		data := []byte{0x80, 0x01, 0x00}
		v, err := Unmarshal(f.Shape, data, Aligned)
		require.NoError(t, err)
		want := asn1rt.Choice{
			Name:  asn1rt.ExtensionName(0),
			Value: asn1rt.Unknown{Index: 0, Raw: []byte{0x00}},
		}
		assert.Equal(t, want, v)

		b, err := MarshalValue(f.Shape, v, Aligned)
		require.NoError(t, err)
		assert.Equal(t, data, b)
	})
	t.Run("Enumerated", func(t *testing.T) {
		v, err := Unmarshal(f.Color, []byte{0x81}, Aligned)
		require.NoError(t, err)
		assert.Equal(t, asn1rt.Unknown{Index: 1}, v)

		b, err := MarshalValue(f.Color, v, Aligned)
		require.NoError(t, err)
		assert.Equal(t, []byte{0x81}, b)
	})
}

func TestUnmarshal_UnresolvedOpenType(t *testing.T) {
	f := testschema.New()
	data := []byte{0x03, 0x55, 0x04, 0x63, 0x01, 0x42}
	v, err := Unmarshal(f.Attribute, data, Options{Aligned: true, Policy: asn1rt.Unchecked})
	require.NoError(t, err)
	want := map[string]any{
		"type":  asn1rt.ObjectIdentifier{2, 5, 4, 99},
		"value": asn1rt.Open{Value: asn1rt.Unknown{Raw: []byte{0x42}}},
	}
	assert.Equal(t, want, v)

	b, err := MarshalValue(f.Attribute, v, Options{Aligned: true})
	require.NoError(t, err)
	assert.Equal(t, data, b)
}

func TestUnmarshal_MaxDepth(t *testing.T) {
	f := testschema.New()
	v := map[string]any{"value": int64(0)}
	for i := 1; i < 10; i++ {
		v = map[string]any{"value": int64(i), "next": v}
	}
	b, err := MarshalValue(f.Node, v, Unaligned)
	require.NoError(t, err)

	_, err = Unmarshal(f.Node, b, Options{MaxDepth: 5})
	assert.ErrorIs(t, err, errMaxDepth)
	_, err = Unmarshal(f.Node, b, Options{})
	assert.NoError(t, err)
}

func TestStructure(t *testing.T) {
	f := testschema.New()
	b, root, err := MarshalStructure(f.Shape, asn1rt.Choice{Name: "circle", Value: int64(5)}, Unaligned)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x40}, b)
	assert.Equal(t, "Shape @0 +10\n  circle @2 +8\n", root.String())

	_, dec, err := UnmarshalStructure(f.Shape, b, Unaligned)
	require.NoError(t, err)
	assert.Equal(t, root, dec)

	_, root, err = MarshalStructure(f.Implicit, map[string]any{"a": int64(5), "b": asn1rt.Null{}}, Aligned)
	require.NoError(t, err)
	var names []string
	for _, c := range root.Children {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"preamble", "a", "b"}, names)
	assert.Zero(t, root.Len)
}

func TestStructure_OpenType(t *testing.T) {
	f := testschema.New()
	v := map[string]any{
		"type":  testschema.CountryName,
		"value": asn1rt.Open{Type: "CountryName", Value: "DE"},
	}
	_, root, err := MarshalStructure(f.Attribute, v, Aligned)
	require.NoError(t, err)
	require.Len(t, root.Children, 3)
	value := root.Children[2]
	assert.Equal(t, "value", value.Name)
	require.Len(t, value.Children, 1)
	assert.Equal(t, "CountryName", value.Children[0].Name)
	assert.Equal(t, 40, value.Children[0].Offset)
	assert.Equal(t, 16, value.Children[0].Len)
}

func TestContaining(t *testing.T) {
	s := asn1rt.NewSchema()
	inner := s.Type(asn1rt.KindInteger, "Inner", asn1rt.ValueRange(0, 255))
	wrapper := s.Type(asn1rt.KindOctetString, "Wrapper", asn1rt.Containing(inner))
	require.NoError(t, s.Finalize())

	b, err := MarshalValue(wrapper, int64(7), Aligned)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x07}, b)

	v, err := Unmarshal(wrapper, b, Aligned)
	require.NoError(t, err)
	assert.Equal(t, int64(7), v)
}
