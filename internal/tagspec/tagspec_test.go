// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tagspec

import (
	"testing"

	"codello.dev/asn1rt"
)

func TestParse(t *testing.T) {
	ctx := asn1rt.ClassContextSpecific
	tests := map[string]struct {
		in   string
		want Params
	}{
		"Empty":            {"", Params{Group: -1}},
		"ContextTag":       {"tag:3", Params{Tag: asn1rt.Tag{Class: ctx, Number: 3}, Tagged: true, Group: -1}},
		"ApplicationFirst": {"application,tag:5,explicit", Params{Tag: asn1rt.Tag{Class: asn1rt.ClassApplication, Number: 5}, Tagged: true, Explicit: true, Group: -1}},
		"ClassLast":        {"tag:5,private", Params{Tag: asn1rt.Tag{Class: asn1rt.ClassPrivate, Number: 5}, Tagged: true, Group: -1}},
		"Flags":            {"optional, unique", Params{Optional: true, Unique: true, Group: -1}},
		"Group":            {"group:2,optional", Params{Optional: true, Extension: true, Group: 2}},
		"Notation":         {"[7]", Params{Tag: asn1rt.Tag{Class: ctx, Number: 7}, Tagged: true, Group: -1}},
		"NotationClass":    {"[APPLICATION 1] EXPLICIT OPTIONAL", Params{Tag: asn1rt.Tag{Class: asn1rt.ClassApplication, Number: 1}, Tagged: true, Explicit: true, Optional: true, Group: -1}},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := Parse(tt.in)
			if err != nil {
				t.Fatalf("Parse(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParse_Error(t *testing.T) {
	for _, in := range []string{"tag:x", "bogus", "application", "[FOO 1]", "[1", "[1] MAYBE", "group:-1", "[1 2 3]"} {
		if _, err := Parse(in); err == nil {
			t.Errorf("Parse(%q) error = nil, want error", in)
		}
	}
}

func TestParams_Options(t *testing.T) {
	p, err := Parse("[PRIVATE 9] EXPLICIT OPTIONAL")
	if err != nil {
		t.Fatal(err)
	}
	s := asn1rt.NewSchema()
	o := s.New(asn1rt.KindInteger, "x", p.Options()...)
	if tag, mode, ok := o.Tag(); !ok || mode != asn1rt.Explicit || tag != (asn1rt.Tag{Class: asn1rt.ClassPrivate, Number: 9}) {
		t.Errorf("Tag() = %v, %v, %v", tag, mode, ok)
	}
	if !o.Optional() {
		t.Error("Optional() = false, want true")
	}
	if want := []asn1rt.Tag{{Class: asn1rt.ClassPrivate, Number: 9}, asn1rt.Universal(asn1rt.TagInteger)}; !equalTags(o.TagChain(), want) {
		t.Errorf("TagChain() = %v, want %v", o.TagChain(), want)
	}
}

func equalTags(a, b []asn1rt.Tag) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
