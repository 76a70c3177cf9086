// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package asn1rt

import (
	"bytes"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"strconv"
	"time"
)

// BigInt converts an INTEGER value into a [big.Int]. Any Go integer type is
// accepted. The second return value is false if v is not an integer.
func BigInt(v any) (*big.Int, bool) {
	switch v := v.(type) {
	case int:
		return big.NewInt(int64(v)), true
	case int8:
		return big.NewInt(int64(v)), true
	case int16:
		return big.NewInt(int64(v)), true
	case int32:
		return big.NewInt(int64(v)), true
	case int64:
		return big.NewInt(v), true
	case uint:
		return new(big.Int).SetUint64(uint64(v)), true
	case uint8:
		return big.NewInt(int64(v)), true
	case uint16:
		return big.NewInt(int64(v)), true
	case uint32:
		return big.NewInt(int64(v)), true
	case uint64:
		return new(big.Int).SetUint64(v), true
	case *big.Int:
		if v == nil {
			return nil, false
		}
		return v, true
	}
	return nil, false
}

// Int64 converts an INTEGER value into an int64. The second return value is
// false if v is not an integer or does not fit.
func Int64(v any) (int64, bool) {
	switch v := v.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case *big.Int:
		if v == nil || !v.IsInt64() {
			return 0, false
		}
		return v.Int64(), true
	}
	b, ok := BigInt(v)
	if !ok || !b.IsInt64() {
		return 0, false
	}
	return b.Int64(), true
}

// NormalizeInt returns b as an int64 if it fits, or b otherwise.
func NormalizeInt(b *big.Int) any {
	if b.IsInt64() {
		return b.Int64()
	}
	return b
}

// normalizeValue converts Go integer types into the canonical int64 or
// *big.Int representation. Maps, slices, [Choice] and [Open] values are copied
// with their elements normalized. Other values are returned unchanged.
func normalizeValue(v any) any {
	switch v := v.(type) {
	case nil, int64, *big.Int:
		return v
	case map[string]any:
		m := make(map[string]any, len(v))
		for k, e := range v {
			m[k] = normalizeValue(e)
		}
		return m
	case []any:
		s := make([]any, len(v))
		for i, e := range v {
			s[i] = normalizeValue(e)
		}
		return s
	case Choice:
		return Choice{Name: v.Name, Value: normalizeValue(v.Value)}
	case Open:
		return Open{Type: v.Type, Value: normalizeValue(v.Value)}
	}
	if b, ok := BigInt(v); ok {
		return NormalizeInt(b)
	}
	return v
}

// Equal reports whether a and b are the same ASN.1 value. Integers of
// different Go types compare by numeric value, REAL values by their normalized
// form and times by instant. Composite values are compared recursively.
func Equal(a, b any) bool {
	if ai, ok := BigInt(a); ok {
		bi, ok := BigInt(b)
		return ok && ai.Cmp(bi) == 0
	}
	switch a := a.(type) {
	case Real:
		b, ok := b.(Real)
		return ok && a.Normalize() == b.Normalize()
	case time.Time:
		b, ok := b.(time.Time)
		return ok && a.Equal(b)
	case []byte:
		b, ok := b.([]byte)
		return ok && bytes.Equal(a, b)
	case BitString:
		b, ok := b.(BitString)
		return ok && a.BitLength == b.BitLength && bytes.Equal(a.Padded(), b.Padded())
	case *Object:
		b, ok := b.(*Object)
		return ok && a == b
	case Choice:
		b, ok := b.(Choice)
		return ok && a.Name == b.Name && Equal(a.Value, b.Value)
	case Open:
		b, ok := b.(Open)
		return ok && a.Type == b.Type && Equal(a.Value, b.Value)
	case Unknown:
		b, ok := b.(Unknown)
		return ok && a.Index == b.Index && bytes.Equal(a.Raw, b.Raw)
	case map[string]any:
		b, ok := b.(map[string]any)
		if !ok || len(a) != len(b) {
			return false
		}
		for k, av := range a {
			bv, ok := b[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	case []any:
		b, ok := b.([]any)
		if !ok || len(a) != len(b) {
			return false
		}
		for i := range a {
			if !Equal(a[i], b[i]) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}

// compare orders two values of an ordered type. The second return value is
// false if the values cannot be ordered.
func compare(a, b any) (int, bool) {
	if ai, ok := BigInt(a); ok {
		switch b := b.(type) {
		case Real:
			af, _ := new(big.Float).SetInt(ai).Float64()
			return compareFloat(af, b.Float64())
		}
		bi, ok := BigInt(b)
		if !ok {
			return 0, false
		}
		return ai.Cmp(bi), true
	}
	switch a := a.(type) {
	case Real:
		switch b := b.(type) {
		case Real:
			return compareFloat(a.Float64(), b.Float64())
		}
		if bi, ok := BigInt(b); ok {
			bf, _ := new(big.Float).SetInt(bi).Float64()
			return compareFloat(a.Float64(), bf)
		}
	case string:
		if b, ok := b.(string); ok {
			switch {
			case a < b:
				return -1, true
			case a > b:
				return 1, true
			}
			return 0, true
		}
	case time.Time:
		if b, ok := b.(time.Time); ok {
			return a.Compare(b), true
		}
	}
	return 0, false
}

func compareFloat(a, b float64) (int, bool) {
	switch {
	case math.IsNaN(a) || math.IsNaN(b):
		return 0, false
	case a < b:
		return -1, true
	case a > b:
		return 1, true
	}
	return 0, true
}

// keyOf returns a string that is equal for two values exactly if [Equal]
// reports them equal. It is used to index CLASS value sets.
func keyOf(v any) string {
	if b, ok := BigInt(v); ok {
		return "i" + b.String()
	}
	switch v := v.(type) {
	case string:
		return "s" + v
	case bool:
		return "b" + strconv.FormatBool(v)
	case []byte:
		return "o" + string(v)
	case ObjectIdentifier:
		return "d" + v.String()
	case RelativeOID:
		return "r" + v.String()
	case Real:
		n := v.Normalize()
		return fmt.Sprintf("f%d/%d/%d", n.Mantissa, n.Base, n.Exponent)
	case *Object:
		return fmt.Sprintf("t%d", v.handle)
	}
	return fmt.Sprintf("%T:%v", v, v)
}
