// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"unicode"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"codello.dev/asn1rt"
	"codello.dev/asn1rt/asntext"
	"codello.dev/asn1rt/ber"
	"codello.dev/asn1rt/jer"
	"codello.dev/asn1rt/oer"
	"codello.dev/asn1rt/per"
)

// A codec is a transfer syntax configured by the command line.
type codec struct {
	marshal   func(o *asn1rt.Object, v any) ([]byte, error)
	unmarshal func(o *asn1rt.Object, b []byte) (any, error)
	// structure decodes b and returns a dump of its layout. It is nil for
	// the textual codecs.
	structure func(o *asn1rt.Object, b []byte) (fmt.Stringer, error)
}

var codecBuilders = map[string]func(p asn1rt.Policy, depth int) codec{
	"ber":     func(p asn1rt.Policy, depth int) codec { return berCodec(ber.BER, p, depth) },
	"cer":     func(p asn1rt.Policy, depth int) codec { return berCodec(ber.CER, p, depth) },
	"der":     func(p asn1rt.Policy, depth int) codec { return berCodec(ber.DER, p, depth) },
	"per":     func(p asn1rt.Policy, depth int) codec { return perCodec(per.Aligned, p, depth) },
	"uper":    func(p asn1rt.Policy, depth int) codec { return perCodec(per.Unaligned, p, depth) },
	"oer":     func(p asn1rt.Policy, depth int) codec { return oerCodec(oer.OER, p, depth) },
	"coer":    func(p asn1rt.Policy, depth int) codec { return oerCodec(oer.COER, p, depth) },
	"jer":     jerCodec,
	"asntext": textCodec,
}

func codecNames() []string {
	names := make([]string, 0, len(codecBuilders))
	for name := range codecBuilders {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// selectCodec returns the codec configured in v.
func selectCodec(v *viper.Viper) (codec, error) {
	name := strings.ToLower(v.GetString("codec"))
	build, ok := codecBuilders[name]
	if !ok {
		return codec{}, errors.Errorf("unknown codec %q", name)
	}
	p := asn1rt.Validated
	if v.GetBool("unchecked") {
		p = asn1rt.Unchecked
	}
	return build(p, v.GetInt("max-depth")), nil
}

func berCodec(opts ber.Options, p asn1rt.Policy, depth int) codec {
	opts.Policy, opts.MaxDepth = p, depth
	return codec{
		marshal: func(o *asn1rt.Object, v any) ([]byte, error) { return ber.MarshalValue(o, v, opts) },
		unmarshal: func(o *asn1rt.Object, b []byte) (any, error) {
			return ber.Unmarshal(o, b, opts)
		},
		structure: func(o *asn1rt.Object, b []byte) (fmt.Stringer, error) {
			_, n, err := ber.UnmarshalStructure(o, b, opts)
			if err != nil {
				return nil, err
			}
			return n, nil
		},
	}
}

func perCodec(opts per.Options, p asn1rt.Policy, depth int) codec {
	opts.Policy, opts.MaxDepth = p, depth
	return codec{
		marshal: func(o *asn1rt.Object, v any) ([]byte, error) { return per.MarshalValue(o, v, opts) },
		unmarshal: func(o *asn1rt.Object, b []byte) (any, error) {
			return per.Unmarshal(o, b, opts)
		},
		structure: func(o *asn1rt.Object, b []byte) (fmt.Stringer, error) {
			_, f, err := per.UnmarshalStructure(o, b, opts)
			if err != nil {
				return nil, err
			}
			return f, nil
		},
	}
}

func oerCodec(opts oer.Options, p asn1rt.Policy, depth int) codec {
	opts.Policy, opts.MaxDepth = p, depth
	return codec{
		marshal: func(o *asn1rt.Object, v any) ([]byte, error) { return oer.MarshalValue(o, v, opts) },
		unmarshal: func(o *asn1rt.Object, b []byte) (any, error) {
			return oer.Unmarshal(o, b, opts)
		},
		structure: func(o *asn1rt.Object, b []byte) (fmt.Stringer, error) {
			_, f, err := oer.UnmarshalStructure(o, b, opts)
			if err != nil {
				return nil, err
			}
			return f, nil
		},
	}
}

func jerCodec(p asn1rt.Policy, depth int) codec {
	opts := jer.Options{Policy: p, MaxDepth: depth}
	return codec{
		marshal: func(o *asn1rt.Object, v any) ([]byte, error) { return jer.MarshalValue(o, v, opts) },
		unmarshal: func(o *asn1rt.Object, b []byte) (any, error) {
			return jer.Unmarshal(o, b, opts)
		},
	}
}

func textCodec(p asn1rt.Policy, _ int) codec {
	opts := asntext.Options{Policy: p}
	return codec{
		marshal: func(o *asn1rt.Object, v any) ([]byte, error) {
			s, err := asntext.MarshalValue(o, v, opts)
			return []byte(s), err
		},
		unmarshal: func(o *asn1rt.Object, b []byte) (any, error) {
			return asntext.Unmarshal(o, string(b), opts)
		},
	}
}

// numberAPI keeps the text of JSON numbers so that large integers survive
// the conversion to YAML.
var numberAPI = jsoniter.Config{UseNumber: true}.Froze()

// Value formats used for reading and writing values as documents.
const (
	formatJSON = "json"
	formatYAML = "yaml"
	formatASN  = "asn"
)

// valueFormat returns the format of a value file based on its extension.
func valueFormat(path, fallback string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jer":
		return formatJSON
	case ".yaml", ".yml":
		return formatYAML
	case ".asn", ".asn1":
		return formatASN
	}
	return fallback
}

// readValue parses a value document. YAML documents are mapped onto the JSON
// encoding rules.
func readValue(o *asn1rt.Object, data []byte, format string) (any, error) {
	switch format {
	case formatJSON:
		return jer.Unmarshal(o, data, jer.JER)
	case formatYAML:
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, errors.Wrap(err, "parse value")
		}
		b, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(doc)
		if err != nil {
			return nil, errors.Wrap(err, "convert value")
		}
		return jer.Unmarshal(o, b, jer.JER)
	case formatASN:
		return asntext.Unmarshal(o, string(data), asntext.Default)
	}
	return nil, errors.Errorf("unknown value format %q", format)
}

// writeValue renders v as a value document.
func writeValue(o *asn1rt.Object, v any, format string, indent int) ([]byte, error) {
	switch format {
	case formatJSON:
		return jer.MarshalValue(o, v, jer.Options{Policy: asn1rt.Unchecked, Indent: indent})
	case formatYAML:
		b, err := jer.MarshalValue(o, v, jer.Options{Policy: asn1rt.Unchecked})
		if err != nil {
			return nil, err
		}
		var doc any
		if err := numberAPI.Unmarshal(b, &doc); err != nil {
			return nil, errors.Wrap(err, "convert value")
		}
		return yaml.Marshal(doc)
	case formatASN:
		s, err := asntext.MarshalValue(o, v, asntext.Options{})
		return []byte(s), err
	}
	return nil, errors.Errorf("unknown value format %q", format)
}

// decodeHex decodes hexadecimal text. White space is ignored.
func decodeHex(data []byte) ([]byte, error) {
	clean := bytes.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, data)
	b := make([]byte, hex.DecodedLen(len(clean)))
	if _, err := hex.Decode(b, clean); err != nil {
		return nil, errors.Wrap(err, "decode hex input")
	}
	return b, nil
}
