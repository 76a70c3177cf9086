// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package schemafile builds [asn1rt.Schema] values from schema descriptions.
// A description lists the named types of a schema:
//
//	types:
//	  - name: Color
//	    kind: ENUMERATED
//	    items: [red, green, blue]
//	    extItems: [yellow(5)]
//	  - name: Person
//	    kind: SEQUENCE
//	    extensible: true
//	    components:
//	      - {name: name, kind: UTF8String, size: {min: 1, max: 64}}
//	      - {name: age, kind: INTEGER, range: {min: 0, max: 150}, spec: optional}
//	      - {name: color, type: Color, default: red}
//	      - {name: nickname, kind: VisibleString, spec: "[5] OPTIONAL", ext: true}
//
// Descriptions are read from YAML, JSON, JSON with comments and CBOR.
// Compiled descriptions can be stored as CBOR snapshots using
// [WriteSnapshot].
package schemafile

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/fxamacker/cbor/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"codello.dev/asn1rt"
)

// Format identifies the syntax of a description.
type Format string

// Supported description formats.
const (
	FormatYAML  Format = "yaml"
	FormatJSON  Format = "json"
	FormatJSONC Format = "jsonc"
	FormatCBOR  Format = "cbor"
)

// FormatOf returns the format of a file based on its extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	case ".jsonc":
		return FormatJSONC, nil
	case ".cbor":
		return FormatCBOR, nil
	}
	return "", errors.Errorf("unknown schema file extension %q", filepath.Ext(path))
}

// Description is the document form of a schema.
type Description struct {
	Types []*Type `yaml:"types" json:"types"`
}

// Type describes a named type, a component or an element type.
type Type struct {
	Name string `yaml:"name,omitempty" json:"name,omitempty"`

	// Kind is the ASN.1 name of the built-in type, for example "SEQUENCE OF"
	// or "UTF8String". Kind may be omitted if Type is set.
	Kind string `yaml:"kind,omitempty" json:"kind,omitempty"`

	// Type refers to a named type of the description.
	Type string `yaml:"type,omitempty" json:"type,omitempty"`

	// Spec holds the tag and the flags of a component, either as flags such
	// as "application,tag:5,optional" or as "[APPLICATION 5] OPTIONAL".
	Spec string `yaml:"spec,omitempty" json:"spec,omitempty"`

	Extensible bool    `yaml:"extensible,omitempty" json:"extensible,omitempty"`
	Extension  bool    `yaml:"ext,omitempty" json:"ext,omitempty"`
	Components []*Type `yaml:"components,omitempty" json:"components,omitempty"`
	Of         *Type   `yaml:"of,omitempty" json:"of,omitempty"`

	// Items are the root items of an ENUMERATED type in the form "name" or
	// "name(value)". ExtItems are its extension items.
	Items    []string `yaml:"items,omitempty" json:"items,omitempty"`
	ExtItems []string `yaml:"extItems,omitempty" json:"extItems,omitempty"`

	Range      *Bounds `yaml:"range,omitempty" json:"range,omitempty"`
	Values     []any   `yaml:"values,omitempty" json:"values,omitempty"`
	Size       *Bounds `yaml:"size,omitempty" json:"size,omitempty"`
	Default    any     `yaml:"default,omitempty" json:"default,omitempty"`
	Containing string  `yaml:"containing,omitempty" json:"containing,omitempty"`
	Table      *Table  `yaml:"table,omitempty" json:"table,omitempty"`

	// Class and Set turn a CLASS type into a set of information objects.
	// Each entry maps field names to values. Values of type fields name a
	// type of the description.
	Class string           `yaml:"class,omitempty" json:"class,omitempty"`
	Set   []map[string]any `yaml:"set,omitempty" json:"set,omitempty"`
}

// Bounds are the inclusive bounds of a range. A nil bound stands for MIN or
// MAX.
type Bounds struct {
	Min *int64 `yaml:"min,omitempty" json:"min,omitempty"`
	Max *int64 `yaml:"max,omitempty" json:"max,omitempty"`
}

// Table describes a table constraint.
type Table struct {
	Set   string   `yaml:"set" json:"set"`
	Field string   `yaml:"field" json:"field"`
	Path  []string `yaml:"path,omitempty" json:"path,omitempty"`
}

var jsonAPI = jsoniter.Config{
	UseNumber:             true,
	DisallowUnknownFields: true,
}.Froze()

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("schemafile: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("schemafile: CBOR decoder initialization failed: " + err.Error())
	}
}

// Decode parses a description in the given format.
func Decode(data []byte, format Format) (*Description, error) {
	var d Description
	var err error
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		err = dec.Decode(&d)
	case FormatJSON:
		err = jsonAPI.Unmarshal(data, &d)
	case FormatJSONC:
		err = jsonAPI.Unmarshal(jsonc.ToJSON(data), &d)
	case FormatCBOR:
		err = decMode.Unmarshal(data, &d)
	default:
		return nil, errors.Errorf("unknown schema format %q", format)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s schema", format)
	}
	return &d, nil
}

// Parse parses a description in the given format and builds its schema.
func Parse(data []byte, format Format) (*asn1rt.Schema, error) {
	d, err := Decode(data, format)
	if err != nil {
		return nil, err
	}
	return Build(d)
}

// Read reads the description stored in the file at path. The format is
// selected by the file extension.
func Read(path string) (*Description, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read schema")
	}
	d, err := Decode(data, format)
	if err != nil {
		return nil, errors.WithMessage(err, path)
	}
	return d, nil
}

// Load reads the description stored in the file at path and builds its
// schema.
func Load(path string) (*asn1rt.Schema, error) {
	d, err := Read(path)
	if err != nil {
		return nil, err
	}
	s, err := Build(d)
	if err != nil {
		return nil, errors.WithMessage(err, path)
	}
	return s, nil
}

// WriteSnapshot writes d to w as CBOR using the core deterministic encoding.
// Equal descriptions produce identical snapshots.
func WriteSnapshot(w io.Writer, d *Description) error {
	return errors.Wrap(encMode.NewEncoder(w).Encode(d), "write snapshot")
}
