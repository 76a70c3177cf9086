// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package schemafile

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codello.dev/asn1rt"
	"codello.dev/asn1rt/internal/testschema"
	"codello.dev/asn1rt/oer"
)

const personYAML = `
types:
  - name: Color
    kind: ENUMERATED
    items: [red, green, blue]
    extItems: ["yellow(5)"]
  - name: Person
    kind: SEQUENCE
    extensible: true
    components:
      - {name: name, kind: UTF8String, size: {min: 1, max: 64}}
      - {name: age, kind: INTEGER, range: {min: 0, max: 150}, spec: optional}
      - {name: email, kind: IA5String, spec: optional}
      - {name: color, type: Color, default: red}
      - {name: nickname, kind: VisibleString, spec: "[5] OPTIONAL", ext: true}
  - name: ATTRIBUTE
    kind: CLASS
    components:
      - {name: id, kind: OBJECT IDENTIFIER, spec: unique}
      - {name: Type, kind: OPEN TYPE}
  - name: CommonName
    kind: UTF8String
  - name: CountryName
    kind: PrintableString
    size: {min: 2, max: 2}
  - name: Attributes
    kind: CLASS
    class: ATTRIBUTE
    set:
      - {id: "2.5.4.3", Type: CommonName}
      - {id: "2.5.4.6", Type: CountryName}
  - name: Attribute
    kind: SEQUENCE
    components:
      - name: type
        kind: OBJECT IDENTIFIER
        table: {set: Attributes, field: id}
      - name: value
        kind: OPEN TYPE
        table: {set: Attributes, field: Type, path: [type]}
  - name: Numbers
    kind: SEQUENCE OF
    size: {min: 0, max: 3}
    of: {kind: INTEGER, range: {min: -1, max: 1}}
`

const colorJSON = `{
  "types": [
    {"name": "Color", "kind": "ENUMERATED", "items": ["red", "green", "blue"], "extItems": ["yellow(5)"]},
    {"name": "Small", "kind": "INTEGER", "range": {"min": 0, "max": 7}, "default": 3}
  ]
}`

const colorJSONC = `{
  // enumerations
  "types": [
    {"name": "Color", "kind": "ENUMERATED", "items": ["red", "green", "blue"], "extItems": ["yellow(5)"]},
    /* constrained integers */
    {"name": "Small", "kind": "INTEGER", "range": {"min": 0, "max": 7}, "default": 3,},
  ],
}`

func TestParse_Vectors(t *testing.T) {
	s, err := Parse([]byte(personYAML), FormatYAML)
	require.NoError(t, err)

	tests := map[string]struct {
		typ  string
		val  any
		want []byte
	}{
		"PersonMinimal": {"Person", map[string]any{"name": "A"}, []byte{0x00, 0x01, 0x41}},
		"PersonNickname": {
			"Person", map[string]any{"name": "A", "nickname": "Al"},
			[]byte{0x80, 0x01, 0x41, 0x02, 0x07, 0x80, 0x03, 0x02, 0x41, 0x6C},
		},
		"Yellow":  {"Color", "yellow", []byte{0x05}},
		"Numbers": {"Numbers", []any{int64(1), int64(-1), int64(0)}, []byte{0x01, 0x03, 0x01, 0xFF, 0x00}},
		"Attribute": {
			"Attribute", map[string]any{
				"type":  testschema.CountryName,
				"value": asn1rt.Open{Type: "CountryName", Value: "DE"},
			},
			[]byte{0x03, 0x55, 0x04, 0x06, 0x02, 0x44, 0x45},
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			o := s.Lookup(tc.typ)
			require.NotNil(t, o)
			got, err := oer.MarshalValue(o, tc.val, oer.COER)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)

			v, err := oer.Unmarshal(o, got, oer.COER)
			require.NoError(t, err)
			assert.True(t, asn1rt.Equal(tc.val, v), "got %v, want %v", v, tc.val)
		})
	}
}

func TestParse_Default(t *testing.T) {
	s, err := Parse([]byte(personYAML), FormatYAML)
	require.NoError(t, err)
	d, ok := s.Lookup("Person").Component("color").Default()
	require.True(t, ok)
	assert.Equal(t, "red", d)
}

func TestParse_Formats(t *testing.T) {
	d, err := Decode([]byte(colorJSON), FormatJSON)
	require.NoError(t, err)
	var snapshot bytes.Buffer
	require.NoError(t, WriteSnapshot(&snapshot, d))

	tests := map[string]struct {
		data   []byte
		format Format
	}{
		"JSON":  {[]byte(colorJSON), FormatJSON},
		"JSONC": {[]byte(colorJSONC), FormatJSONC},
		"CBOR":  {snapshot.Bytes(), FormatCBOR},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			s, err := Parse(tc.data, tc.format)
			require.NoError(t, err)

			color := s.Lookup("Color")
			require.NotNil(t, color)
			it, ext, ok := color.EnumItem("yellow")
			assert.True(t, ok)
			assert.True(t, ext)
			assert.Equal(t, int64(5), it.Value)

			small := s.Lookup("Small")
			require.NotNil(t, small)
			def, ok := small.Default()
			require.True(t, ok)
			assert.True(t, asn1rt.Equal(int64(3), def))
			assert.ErrorIs(t, small.Validate(int64(9), nil, asn1rt.Validated), asn1rt.ErrBound)
		})
	}
}

func TestWriteSnapshot_Deterministic(t *testing.T) {
	d, err := Decode([]byte(personYAML), FormatYAML)
	require.NoError(t, err)
	var a, b bytes.Buffer
	require.NoError(t, WriteSnapshot(&a, d))
	require.NoError(t, WriteSnapshot(&b, d))
	assert.Equal(t, a.Bytes(), b.Bytes())

	back, err := Decode(a.Bytes(), FormatCBOR)
	require.NoError(t, err)
	_, err = Build(back)
	assert.NoError(t, err)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schema.yml")
	require.NoError(t, os.WriteFile(path, []byte(personYAML), 0o600))

	s, err := Load(path)
	require.NoError(t, err)
	assert.NotNil(t, s.Lookup("Attribute"))

	_, err = Load(filepath.Join(dir, "schema.toml"))
	assert.ErrorContains(t, err, "unknown schema file extension")
	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestBuild_Errors(t *testing.T) {
	doc := `
types:
  - {name: A, kind: FOO}
  - {name: B, kind: SEQUENCE, components: [{name: x, kind: INTEGER, spec: "tag:x"}]}
  - {name: C, kind: ENUMERATED, items: [a], extItems: [b]}
`
	_, err := Parse([]byte(doc), FormatYAML)
	var merr *multierror.Error
	require.ErrorAs(t, err, &merr)
	assert.Len(t, merr.Errors, 3)

	_, err = Parse([]byte("types:\n  - {name: A, kind: INTEGER, bogus: 1}\n"), FormatYAML)
	assert.Error(t, err)

	_, err = Parse([]byte("types:\n  - {name: A, kind: SEQUENCE, components: [{name: x, type: Missing}]}\n"), FormatYAML)
	assert.ErrorIs(t, err, asn1rt.ErrSchema)
}

func TestParseKind(t *testing.T) {
	tests := map[string]asn1rt.Kind{
		"SEQUENCE OF":       asn1rt.KindSequenceOf,
		"sequence  of":      asn1rt.KindSequenceOf,
		"OBJECT IDENTIFIER": asn1rt.KindOID,
		"utf8string":        asn1rt.KindUTF8String,
		"OPEN TYPE":         asn1rt.KindOpen,
	}
	for in, want := range tests {
		got, ok := ParseKind(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := ParseKind("INVALID")
	assert.False(t, ok)
}
