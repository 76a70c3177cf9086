// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package asn1rt

import (
	"math"
	"math/big"
	"slices"
	"unicode/utf8"
)

// Range is an element of a [Constraint] that matches all values between Lower
// and Upper inclusive. A nil bound stands for MIN or MAX.
type Range struct {
	Lower any
	Upper any
}

// Contains reports whether v lies within r.
func (r Range) Contains(v any) bool {
	if r.Lower != nil {
		if c, ok := compare(r.Lower, v); !ok || c > 0 {
			return false
		}
	}
	if r.Upper != nil {
		if c, ok := compare(v, r.Upper); !ok || c > 0 {
			return false
		}
	}
	return true
}

// A Constraint restricts the values or sizes of an [Object]. Root and Ext hold
// single values and [Range] elements. A value satisfies the constraint if it
// matches any element of the root, any element of the extension or if the
// constraint is extensible.
//
// A constraint with an empty root does not restrict its root values.
type Constraint struct {
	Root       []any
	Ext        []any
	Extensible bool
}

func (c Constraint) normalize() Constraint {
	norm := func(es []any) []any {
		out := make([]any, len(es))
		for i, e := range es {
			if r, ok := e.(Range); ok {
				out[i] = Range{Lower: normalizeValue(r.Lower), Upper: normalizeValue(r.Upper)}
			} else {
				out[i] = normalizeValue(e)
			}
		}
		return out
	}
	return Constraint{Root: norm(c.Root), Ext: norm(c.Ext), Extensible: c.Extensible || len(c.Ext) > 0}
}

func matchAny(es []any, v any) bool {
	for _, e := range es {
		if r, ok := e.(Range); ok {
			if r.Contains(v) {
				return true
			}
		} else if Equal(e, v) {
			return true
		}
	}
	return false
}

// InRoot reports whether v satisfies the root of c. A nil constraint or an
// empty root accepts every value.
func (c *Constraint) InRoot(v any) bool {
	return c == nil || len(c.Root) == 0 || matchAny(c.Root, v)
}

// InExtension reports whether v matches an extension element of c.
func (c *Constraint) InExtension(v any) bool {
	return c != nil && matchAny(c.Ext, v)
}

// Contains reports whether v satisfies c.
func (c *Constraint) Contains(v any) bool {
	return c == nil || c.Extensible || c.InRoot(v) || c.InExtension(v)
}

// IsExtensible reports whether c has an extension marker.
func (c *Constraint) IsExtensible() bool {
	return c != nil && c.Extensible
}

// Bounds returns the smallest lower bound and the largest upper bound of the
// integer elements of the root of c. hasLower and hasUpper are false if the
// root is unbounded in that direction or a bound does not fit into an int64.
func (c *Constraint) Bounds() (lower, upper int64, hasLower, hasUpper bool) {
	if c == nil || len(c.Root) == 0 {
		return 0, 0, false, false
	}
	lower, upper = math.MaxInt64, math.MinInt64
	hasLower, hasUpper = true, true
	for _, e := range c.Root {
		lo, hi := e, e
		if r, ok := e.(Range); ok {
			lo, hi = r.Lower, r.Upper
		}
		if l, ok := Int64(lo); ok && hasLower {
			lower = min(lower, l)
		} else {
			hasLower = false
		}
		if u, ok := Int64(hi); ok && hasUpper {
			upper = max(upper, u)
		} else {
			hasUpper = false
		}
	}
	if !hasLower {
		lower = 0
	}
	if !hasUpper {
		upper = 0
	}
	return lower, upper, hasLower, hasUpper
}

// BigBounds works like [Constraint.Bounds] but reports bounds of any
// magnitude. A nil bound means the root is unbounded in that direction.
func (c *Constraint) BigBounds() (lower, upper *big.Int) {
	if c == nil || len(c.Root) == 0 {
		return nil, nil
	}
	hasLower, hasUpper := true, true
	for _, e := range c.Root {
		lo, hi := e, e
		if r, ok := e.(Range); ok {
			lo, hi = r.Lower, r.Upper
		}
		if l, ok := BigInt(lo); ok && hasLower {
			if lower == nil || l.Cmp(lower) < 0 {
				lower = l
			}
		} else {
			hasLower = false
		}
		if u, ok := BigInt(hi); ok && hasUpper {
			if upper == nil || u.Cmp(upper) > 0 {
				upper = u
			}
		} else {
			hasUpper = false
		}
	}
	if !hasLower {
		lower = nil
	}
	if !hasUpper {
		upper = nil
	}
	return lower, upper
}

// RootCount returns the number of integer values between the bounds of the
// root of c. The second return value is false if the root is not bounded in
// both directions or the count does not fit into a uint64.
func (c *Constraint) RootCount() (uint64, bool) {
	lb, ub := c.BigBounds()
	if lb == nil || ub == nil || ub.Cmp(lb) < 0 {
		return 0, false
	}
	n := new(big.Int).Sub(ub, lb)
	if !n.IsUint64() || n.Uint64() == math.MaxUint64 {
		return 0, false
	}
	return n.Uint64() + 1, true
}

// SizeBounds returns the bounds of a size constraint. Without a lower bound
// the lower bound is 0. hasUpper is false for unbounded sizes.
func (c *Constraint) SizeBounds() (lower, upper int64, hasUpper bool) {
	lb, ub, okl, oku := c.Bounds()
	if !okl || lb < 0 {
		lb = 0
	}
	return lb, ub, oku
}

// FixedSize reports whether c permits exactly one size and returns it.
func (c *Constraint) FixedSize() (int64, bool) {
	if c.IsExtensible() {
		return 0, false
	}
	lb, ub, ok := c.SizeBounds()
	return lb, ok && lb == ub
}

// Runes expands a permitted alphabet constraint into its characters in
// ascending order. String elements contribute all their characters, [Range]
// elements of single character strings all characters in between.
func (c *Constraint) Runes() []rune {
	if c == nil {
		return nil
	}
	var rs []rune
	for _, e := range c.Root {
		switch e := e.(type) {
		case string:
			rs = append(rs, []rune(e)...)
		case Range:
			lo, _ := e.Lower.(string)
			hi, _ := e.Upper.(string)
			l, _ := utf8.DecodeRuneInString(lo)
			h, _ := utf8.DecodeRuneInString(hi)
			if lo == "" {
				l = 0
			}
			if hi == "" {
				h = utf8.MaxRune
			}
			for r := l; r <= h && h-l < 1<<16; r++ {
				rs = append(rs, r)
			}
		}
	}
	slices.Sort(rs)
	return slices.Compact(rs)
}

// Charset returns the effective character set of the string object o: the
// permitted alphabet if one is set and not extensible, or the character set
// of its kind otherwise.
func (o *Object) Charset() []rune {
	if a := o.Alphabet(); a != nil && !a.Extensible {
		if rs := a.Runes(); len(rs) > 0 {
			return rs
		}
	}
	return CharacterSet(o.kind)
}

// permits reports whether every character of s is permitted by the alphabet
// constraint c.
func (c *Constraint) permits(s string) bool {
	if c == nil || c.Extensible || len(c.Root) == 0 {
		return true
	}
	rs := c.Runes()
	for _, r := range s {
		if _, ok := slices.BinarySearch(rs, r); !ok {
			return false
		}
	}
	return true
}
