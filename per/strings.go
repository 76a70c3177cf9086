// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package per

import (
	"math/bits"
	"slices"
	"time"

	"codello.dev/asn1rt"
)

// alphabet is the effective alphabet of a known-multiplier character string
// type.
type alphabet struct {
	runes   []rune // sorted, nil for the complete BMP or Universal set
	bits    int    // bits per character
	byValue bool   // characters are encoded as their value instead of an index
}

// newAlphabet computes the character encoding for runes. If runes is nil, the
// alphabet is the complete set of 2^width characters.
func newAlphabet(runes []rune, width int, aligned bool) alphabet {
	a := alphabet{runes: runes}
	var n, largest uint64
	if runes == nil {
		n, largest = 1<<width, 1<<width-1
	} else {
		n, largest = uint64(len(runes)), uint64(runes[len(runes)-1])
	}
	if n > 0 {
		a.bits = bits.Len64(n - 1)
	}
	if aligned && a.bits > 0 {
		// The ALIGNED variant rounds up to the next power of two.
		a.bits = 1 << bits.Len(uint(a.bits-1))
	}
	a.byValue = a.bits >= 64 || largest <= 1<<a.bits-1
	return a
}

// alphabetOf returns the alphabet of the string object o.
func alphabetOf(o *asn1rt.Object, aligned bool) alphabet {
	kind := o.Kind()
	if kind.IsTime() {
		kind = asn1rt.KindVisibleString
		return newAlphabet(asn1rt.CharacterSet(kind), kind.KnownMultiplier(), aligned)
	}
	return newAlphabet(o.Charset(), kind.KnownMultiplier(), aligned)
}

// code returns the encoding of r.
func (a alphabet) code(r rune) (uint64, bool) {
	if a.runes == nil {
		return uint64(r), r >= 0 && (a.bits >= 32 || uint64(r) < 1<<a.bits)
	}
	i, ok := slices.BinarySearch(a.runes, r)
	if !ok {
		return 0, false
	}
	if a.byValue {
		return uint64(r), true
	}
	return uint64(i), true
}

// char returns the character encoded as v.
func (a alphabet) char(v uint64) (rune, bool) {
	if a.runes == nil {
		return rune(v), true
	}
	if !a.byValue {
		if v >= uint64(len(a.runes)) {
			return 0, false
		}
		return a.runes[v], true
	}
	r := rune(v)
	_, ok := slices.BinarySearch(a.runes, r)
	return r, ok
}

// alignString reports whether the characters of a string with at most ub
// characters are octet-aligned in the ALIGNED variant.
func (a alphabet) alignString(ub int64, bounded bool) bool {
	return !bounded || ub*int64(a.bits) > 16
}

// timeString returns the text of a time value of the time object o.
func timeString(o *asn1rt.Object, t time.Time, canonical bool) (string, error) {
	if o.Kind() == asn1rt.KindUTCTime {
		return asn1rt.FormatUTCTime(t, canonical)
	}
	return asn1rt.FormatGeneralizedTime(t, canonical)
}

// parseTime parses the text of a value of the time object o.
func parseTime(o *asn1rt.Object, s string) (time.Time, error) {
	if o.Kind() == asn1rt.KindUTCTime {
		return asn1rt.ParseUTCTime(s)
	}
	return asn1rt.ParseGeneralizedTime(s)
}
