// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package asn1rt_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"codello.dev/asn1rt"
	"codello.dev/asn1rt/internal/testschema"
)

func TestObject_Shape(t *testing.T) {
	f := testschema.New()
	got := f.Node.Shape(asn1rt.ShapeOptions{}).String()
	want := "Node [UNIVERSAL 16] SEQUENCE\n" +
		"  value [UNIVERSAL 2] INTEGER\n" +
		"  next [UNIVERSAL 16] Node (SEQUENCE) OPTIONAL -- recursive\n"
	assert.Equal(t, want, got)

	attr := f.Attribute.Shape(asn1rt.ShapeOptions{OpenTypes: true})
	assert.Len(t, attr.Children, 2)
	value := attr.Children[1]
	assert.Equal(t, asn1rt.KindOpen, value.Kind)
	assert.Len(t, value.Children, 2)
	assert.Equal(t, "CommonName", value.Children[0].Name)

	closed := f.Attribute.Shape(asn1rt.ShapeOptions{})
	assert.Empty(t, closed.Children[1].Children)
}

func TestObject_Complexity(t *testing.T) {
	f := testschema.New()
	tests := map[string]struct {
		o    *asn1rt.Object
		want asn1rt.Complexity
	}{
		"Basic":     {f.Color, asn1rt.Complexity{Leaves: 1}},
		"Sequence":  {f.Person, asn1rt.Complexity{Leaves: 5, Depth: 1}},
		"Recursive": {f.Node, asn1rt.Complexity{Leaves: 1, Depth: 1, Recursions: []string{"Node.next"}}},
		"Nested":    {f.Shape, asn1rt.Complexity{Leaves: 2, Depth: 2}},
		"List":      {f.Numbers, asn1rt.Complexity{Leaves: 1, Depth: 1}},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.o.Complexity())
		})
	}
}
