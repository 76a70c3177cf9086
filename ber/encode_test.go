// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ber

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codello.dev/asn1rt"
	"codello.dev/asn1rt/internal/testschema"
	"codello.dev/asn1rt/tlv"
)

// primitives builds a schema with one type per primitive kind.
func primitives(t *testing.T) map[asn1rt.Kind]*asn1rt.Object {
	t.Helper()
	s := asn1rt.NewSchema()
	types := make(map[asn1rt.Kind]*asn1rt.Object)
	for _, k := range []asn1rt.Kind{
		asn1rt.KindNull, asn1rt.KindBoolean, asn1rt.KindInteger, asn1rt.KindReal,
		asn1rt.KindBitString, asn1rt.KindOctetString, asn1rt.KindOID, asn1rt.KindRelativeOID,
		asn1rt.KindUTF8String, asn1rt.KindPrintableString, asn1rt.KindIA5String,
		asn1rt.KindBMPString, asn1rt.KindUniversalString, asn1rt.KindUTCTime, asn1rt.KindGeneralizedTime,
	} {
		types[k] = s.Type(k, k.String())
	}
	require.NoError(t, s.Finalize())
	return types
}

func TestMarshal_Primitives(t *testing.T) {
	types := primitives(t)
	tests := map[string]struct {
		kind asn1rt.Kind
		val  any
		want []byte
	}{
		"Null":          {asn1rt.KindNull, asn1rt.Null{}, []byte{0x05, 0x00}},
		"True":          {asn1rt.KindBoolean, true, []byte{0x01, 0x01, 0xFF}},
		"False":         {asn1rt.KindBoolean, false, []byte{0x01, 0x01, 0x00}},
		"Integer":       {asn1rt.KindInteger, int64(128), []byte{0x02, 0x02, 0x00, 0x80}},
		"Negative":      {asn1rt.KindInteger, int64(-1), []byte{0x02, 0x01, 0xFF}},
		"Real":          {asn1rt.KindReal, asn1rt.Real{Mantissa: 10, Base: 2}, []byte{0x09, 0x03, 0x80, 0x01, 0x05}},
		"BitString":     {asn1rt.KindBitString, asn1rt.BitString{Bytes: []byte{0xF1, 0xFF}, BitLength: 9}, []byte{0x03, 0x03, 0x07, 0xF1, 0x80}},
		"OctetString":   {asn1rt.KindOctetString, []byte{0x01, 0x02}, []byte{0x04, 0x02, 0x01, 0x02}},
		"OID":           {asn1rt.KindOID, asn1rt.ObjectIdentifier{1, 2, 840, 113549}, []byte{0x06, 0x06, 0x2A, 0x86, 0x48, 0x86, 0xF7, 0x0D}},
		"RelativeOID":   {asn1rt.KindRelativeOID, asn1rt.RelativeOID{8571, 3, 2}, []byte{0x0D, 0x04, 0xC2, 0x7B, 0x03, 0x02}},
		"UTF8String":    {asn1rt.KindUTF8String, "héllo", []byte{0x0C, 0x06, 'h', 0xC3, 0xA9, 'l', 'l', 'o'}},
		"Printable":     {asn1rt.KindPrintableString, "Test", []byte{0x13, 0x04, 'T', 'e', 's', 't'}},
		"IA5String":     {asn1rt.KindIA5String, "a@b", []byte{0x16, 0x03, 'a', '@', 'b'}},
		"BMPString":     {asn1rt.KindBMPString, "Aé", []byte{0x1E, 0x04, 0x00, 'A', 0x00, 0xE9}},
		"Universal":     {asn1rt.KindUniversalString, "A", []byte{0x1C, 0x04, 0x00, 0x00, 0x00, 'A'}},
		"UTCTime":       {asn1rt.KindUTCTime, time.Date(1991, 5, 6, 23, 45, 40, 0, time.UTC), append([]byte{0x17, 0x0D}, "910506234540Z"...)},
		"Generalized":   {asn1rt.KindGeneralizedTime, time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC), append([]byte{0x18, 0x0F}, "20250102030405Z"...)},
		"EmptyOctets":   {asn1rt.KindOctetString, []byte{}, []byte{0x04, 0x00}},
		"EmptyString":   {asn1rt.KindUTF8String, "", []byte{0x0C, 0x00}},
		"RealInfinity":  {asn1rt.KindReal, asn1rt.PlusInfinity, []byte{0x09, 0x01, 0x40}},
		"RealZero":      {asn1rt.KindReal, asn1rt.Real{}, []byte{0x09, 0x00}},
		"RealDecimal":   {asn1rt.KindReal, asn1rt.Real{Mantissa: 15, Base: 10, Exponent: -1}, append([]byte{0x09, 0x07, 0x03}, "15.E-1"...)},
		"IntegerLarge":  {asn1rt.KindInteger, int64(1) << 40, []byte{0x02, 0x06, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00}},
		"IntegerMinus1": {asn1rt.KindInteger, int64(-129), []byte{0x02, 0x02, 0xFF, 0x7F}},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			o := types[tc.kind]
			got, err := MarshalValue(o, tc.val, DER)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)

			v, err := Unmarshal(o, got, DER)
			require.NoError(t, err)
			assert.True(t, asn1rt.Equal(tc.val, v), "Unmarshal() = %v, want %v", v, tc.val)
		})
	}
}

func TestMarshal_TrueByte(t *testing.T) {
	types := primitives(t)
	opts := BER
	opts.TrueByte = 0x01
	got, err := MarshalValue(types[asn1rt.KindBoolean], true, opts)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x01, 0x01}, got)

	// Any non-zero octet decodes as TRUE.
	for _, b := range []byte{0x01, 0x05, 0xFF} {
		v, err := Unmarshal(types[asn1rt.KindBoolean], []byte{0x01, 0x01, b}, BER)
		require.NoError(t, err)
		assert.Equal(t, true, v)
	}
	_, err = Unmarshal(types[asn1rt.KindBoolean], []byte{0x01, 0x01, 0x05}, DER)
	var se *SyntaxError
	assert.ErrorAs(t, err, &se)
}

func TestMarshal_Person(t *testing.T) {
	f := testschema.New()
	person := map[string]any{"name": "Ann", "age": int64(30), "color": "red"}
	tests := map[string]struct {
		opts Options
		want []byte
	}{
		"BER": {BER, []byte{0x30, 0x0B, 0x0C, 0x03, 'A', 'n', 'n', 0x02, 0x01, 0x1E, 0x0A, 0x01, 0x00}},
		"DER": {DER, []byte{0x30, 0x08, 0x0C, 0x03, 'A', 'n', 'n', 0x02, 0x01, 0x1E}},
		"CER": {CER, []byte{0x30, 0x80, 0x0C, 0x03, 'A', 'n', 'n', 0x02, 0x01, 0x1E, 0x00, 0x00}},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := MarshalValue(f.Person, person, tc.opts)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestMarshal_Indefinite(t *testing.T) {
	f := testschema.New()
	val := map[string]any{"value": int64(1), "next": map[string]any{"value": int64(2)}}

	opts := BER
	opts.Indefinite = true
	got, err := MarshalValue(f.Node, val, opts)
	require.NoError(t, err)
	want := []byte{0x30, 0x80, 0x02, 0x01, 0x01, 0x30, 0x80, 0x02, 0x01, 0x02, 0x00, 0x00, 0x00, 0x00}
	assert.Equal(t, want, got)

	v, err := Unmarshal(f.Node, got, BER)
	require.NoError(t, err)
	assert.True(t, asn1rt.Equal(val, v))

	got, err = MarshalValue(f.Node, val, BER)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x30, 0x08, 0x02, 0x01, 0x01, 0x30, 0x03, 0x02, 0x01, 0x02}, got)
}

func TestMarshal_Choice(t *testing.T) {
	f := testschema.New()
	tests := map[string]struct {
		val  asn1rt.Choice
		want []byte
	}{
		"Circle": {asn1rt.Choice{Name: "circle", Value: int64(7)}, []byte{0x80, 0x01, 0x07}},
		"Square": {asn1rt.Choice{Name: "square", Value: map[string]any{"side": int64(2)}}, []byte{0xA1, 0x03, 0x02, 0x01, 0x02}},
		"Unknown": {
			asn1rt.Choice{Name: asn1rt.ExtensionName(0), Value: asn1rt.Unknown{Raw: []byte{0x82, 0x01, 0x09}}},
			[]byte{0x82, 0x01, 0x09},
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := MarshalValue(f.Shape, tc.val, DER)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestMarshal_OpenType(t *testing.T) {
	f := testschema.New()
	val := map[string]any{
		"type":  testschema.CommonName,
		"value": asn1rt.Open{Type: "CommonName", Value: "Bob"},
	}
	got, err := MarshalValue(f.Attribute, val, DER)
	require.NoError(t, err)
	want := []byte{0x30, 0x0A, 0x06, 0x03, 0x55, 0x04, 0x03, 0x0C, 0x03, 'B', 'o', 'b'}
	assert.Equal(t, want, got)
}

func TestMarshal_Sorting(t *testing.T) {
	s := asn1rt.NewSchema()
	set := s.Type(asn1rt.KindSet, "S", asn1rt.Components(
		s.New(asn1rt.KindInteger, "b", asn1rt.Tagged(asn1rt.ClassContextSpecific, 1, asn1rt.Implicit)),
		s.New(asn1rt.KindInteger, "a", asn1rt.Tagged(asn1rt.ClassContextSpecific, 0, asn1rt.Implicit)),
	))
	setOf := s.Type(asn1rt.KindSetOf, "L", asn1rt.Of(s.New(asn1rt.KindInteger, "")))
	require.NoError(t, s.Finalize())

	got, err := MarshalValue(set, map[string]any{"a": int64(1), "b": int64(2)}, DER)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x31, 0x06, 0x80, 0x01, 0x01, 0x81, 0x01, 0x02}, got)

	got, err = MarshalValue(set, map[string]any{"a": int64(1), "b": int64(2)}, BER)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x31, 0x06, 0x81, 0x01, 0x02, 0x80, 0x01, 0x01}, got)

	list := []any{int64(3), int64(256), int64(1)}
	got, err = MarshalValue(setOf, list, DER)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x31, 0x0A, 0x02, 0x01, 0x01, 0x02, 0x01, 0x03, 0x02, 0x02, 0x01, 0x00}, got)

	got, err = MarshalValue(setOf, list, BER)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x31, 0x0A, 0x02, 0x01, 0x03, 0x02, 0x02, 0x01, 0x00, 0x02, 0x01, 0x01}, got)
}

func TestMarshal_SortingUntaggedChoice(t *testing.T) {
	s := asn1rt.NewSchema()
	set := s.Type(asn1rt.KindSet, "S", asn1rt.Components(
		s.New(asn1rt.KindInteger, "a", asn1rt.Tagged(asn1rt.ClassContextSpecific, 1, asn1rt.Implicit)),
		s.New(asn1rt.KindChoice, "b", asn1rt.Components(
			s.New(asn1rt.KindInteger, "x", asn1rt.Tagged(asn1rt.ClassContextSpecific, 0, asn1rt.Implicit)),
			s.New(asn1rt.KindInteger, "y", asn1rt.Tagged(asn1rt.ClassContextSpecific, 2, asn1rt.Implicit)),
		)),
	))
	require.NoError(t, s.Finalize())

	tests := map[string]struct {
		opts Options
		alt  string
		want []byte
	}{
		"DER":        {DER, "y", []byte{0x31, 0x06, 0x82, 0x01, 0x02, 0x81, 0x01, 0x01}},
		"DERSmaller": {DER, "x", []byte{0x31, 0x06, 0x80, 0x01, 0x02, 0x81, 0x01, 0x01}},
		"CER":        {CER, "y", []byte{0x31, 0x80, 0x82, 0x01, 0x02, 0x81, 0x01, 0x01, 0x00, 0x00}},
		"BER":        {BER, "y", []byte{0x31, 0x06, 0x81, 0x01, 0x01, 0x82, 0x01, 0x02}},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			v := map[string]any{"a": int64(1), "b": asn1rt.Choice{Name: tc.alt, Value: int64(2)}}
			got, err := MarshalValue(set, v, tc.opts)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)

			back, err := Unmarshal(set, got, tc.opts)
			require.NoError(t, err)
			assert.True(t, asn1rt.Equal(v, back), "got %v, want %v", back, v)
		})
	}
}

func TestMarshal_Fragmentation(t *testing.T) {
	types := primitives(t)
	data := bytes.Repeat([]byte{0xAB}, 1500)

	n, err := MarshalStructure(types[asn1rt.KindOctetString], data, CER)
	require.NoError(t, err)
	require.True(t, n.Constructed)
	require.Len(t, n.Children, 2)
	assert.Equal(t, 1000, len(n.Children[0].Value))
	assert.Equal(t, 500, len(n.Children[1].Value))
	assert.Equal(t, asn1rt.Universal(asn1rt.TagOctetString), n.Children[0].Tag)

	b := tlv.Append(nil, n)
	assert.Equal(t, []byte{0x24, 0x80, 0x04, 0x82, 0x03, 0xE8}, b[:6])
	assert.Equal(t, []byte{0x00, 0x00}, b[len(b)-2:])

	v, err := Unmarshal(types[asn1rt.KindOctetString], b, CER)
	require.NoError(t, err)
	assert.Equal(t, data, v)

	// DER never fragments.
	b, err = MarshalValue(types[asn1rt.KindOctetString], data, DER)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x04, 0x82, 0x05, 0xDC}, b[:4])
}

func TestMarshal_FragmentedBitString(t *testing.T) {
	types := primitives(t)
	bs := asn1rt.BitString{Bytes: bytes.Repeat([]byte{0xFF}, 1000), BitLength: 7996}
	n, err := MarshalStructure(types[asn1rt.KindBitString], bs, CER)
	require.NoError(t, err)
	require.Len(t, n.Children, 2)
	assert.Equal(t, byte(0), n.Children[0].Value[0])
	assert.Equal(t, 1000, len(n.Children[0].Value))
	assert.Equal(t, []byte{0x04, 0xF0}, n.Children[1].Value)

	v, err := Unmarshal(types[asn1rt.KindBitString], tlv.Append(nil, n), CER)
	require.NoError(t, err)
	assert.True(t, asn1rt.Equal(bs, v))
}

func TestMarshal_Containing(t *testing.T) {
	s := asn1rt.NewSchema()
	inner := s.Type(asn1rt.KindInteger, "Inner")
	wrapper := s.Type(asn1rt.KindOctetString, "Wrapper", asn1rt.Containing(inner))
	require.NoError(t, s.Finalize())

	got, err := MarshalValue(wrapper, int64(5), DER)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x04, 0x03, 0x02, 0x01, 0x05}, got)

	v, err := Unmarshal(wrapper, got, DER)
	require.NoError(t, err)
	assert.Equal(t, int64(5), v)

	// Content that is no valid encoding of the contained type stays raw.
	v, err = Unmarshal(wrapper, []byte{0x04, 0x01, 0xFF}, DER)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF}, v)
}

func TestMarshal_Errors(t *testing.T) {
	f := testschema.New()
	types := primitives(t)

	_, err := MarshalValue(f.Person, map[string]any{"age": int64(3)}, DER)
	assert.True(t, errors.Is(err, asn1rt.ErrShape), "missing component: %v", err)

	_, err = MarshalValue(f.Numbers, []any{int64(5)}, DER)
	assert.True(t, errors.Is(err, asn1rt.ErrBound), "out of range: %v", err)

	_, err = Marshal(types[asn1rt.KindInteger], DER)
	var ee *EncodeError
	assert.ErrorAs(t, err, &ee)

	_, err = MarshalValue(f.Class, map[string]any{}, Options{})
	assert.True(t, errors.Is(err, asn1rt.ErrNotSupported), "CLASS: %v", err)

	// Unchecked values are reported by the encoder.
	_, err = MarshalValue(types[asn1rt.KindOID], asn1rt.ObjectIdentifier{3}, Options{})
	assert.ErrorAs(t, err, &ee)
}

func TestMarshal_ExplicitTag(t *testing.T) {
	s := asn1rt.NewSchema()
	explicit := s.Type(asn1rt.KindInteger, "E", asn1rt.Tagged(asn1rt.ClassApplication, 3, asn1rt.Explicit))
	choice := s.Type(asn1rt.KindChoice, "C", asn1rt.Tagged(asn1rt.ClassContextSpecific, 2, asn1rt.Implicit),
		asn1rt.Components(s.New(asn1rt.KindBoolean, "b")))
	require.NoError(t, s.Finalize())

	got, err := MarshalValue(explicit, int64(5), DER)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x63, 0x03, 0x02, 0x01, 0x05}, got)

	got, err = MarshalValue(choice, asn1rt.Choice{Name: "b", Value: true}, DER)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xA2, 0x03, 0x01, 0x01, 0xFF}, got)

	v, err := Unmarshal(choice, got, DER)
	require.NoError(t, err)
	assert.Equal(t, asn1rt.Choice{Name: "b", Value: true}, v)
}
