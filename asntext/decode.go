// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package asntext

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"math/bits"
	"strconv"
	"strings"

	"codello.dev/asn1rt"
)

type tokKind uint8

const (
	tokEOF tokKind = iota
	tokLBrace
	tokRBrace
	tokComma
	tokLParen
	tokRParen
	tokColon
	tokIdent
	tokNumber
	tokString  // cstring with quotation marks removed
	tokBString // bstring without quotes and suffix
	tokHString // hstring without quotes and suffix
)

type token struct {
	kind tokKind
	text string
	off  int
}

func (t token) String() string {
	switch t.kind {
	case tokEOF:
		return "end of input"
	case tokString:
		return strconv.Quote(t.text)
	case tokBString:
		return "'" + t.text + "'B"
	case tokHString:
		return "'" + t.text + "'H"
	}
	return strconv.Quote(t.text)
}

// scanner splits value notation into tokens. Comments start with "--" and end
// with "--" or at the end of the line.
type scanner struct {
	src string
	pos int
}

func (s *scanner) skip() {
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v':
			s.pos++
		case strings.HasPrefix(s.src[s.pos:], "--"):
			s.pos += 2
			for s.pos < len(s.src) && s.src[s.pos] != '\n' {
				if strings.HasPrefix(s.src[s.pos:], "--") {
					s.pos += 2
					break
				}
				s.pos++
			}
		default:
			return
		}
	}
}

func isDigit(c byte) bool  { return '0' <= c && c <= '9' }
func isLetter(c byte) bool { return 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' }

var punctuation = map[byte]tokKind{'{': tokLBrace, '}': tokRBrace, ',': tokComma, '(': tokLParen, ')': tokRParen, ':': tokColon}

func (s *scanner) scan() (token, error) {
	s.skip()
	start := s.pos
	if s.pos >= len(s.src) {
		return token{kind: tokEOF, off: start}, nil
	}
	c := s.src[s.pos]
	if k, ok := punctuation[c]; ok {
		s.pos++
		return token{kind: k, text: string(c), off: start}, nil
	}
	switch {
	case isLetter(c):
		for s.pos < len(s.src) && (isLetter(s.src[s.pos]) || isDigit(s.src[s.pos]) || s.src[s.pos] == '-') {
			if s.src[s.pos] == '-' && (s.pos+1 >= len(s.src) || s.src[s.pos+1] == '-') {
				break
			}
			s.pos++
		}
		return token{kind: tokIdent, text: s.src[start:s.pos], off: start}, nil
	case isDigit(c) || c == '-' && s.pos+1 < len(s.src) && isDigit(s.src[s.pos+1]):
		s.pos++
		for s.pos < len(s.src) && isDigit(s.src[s.pos]) {
			s.pos++
		}
		if s.pos+1 < len(s.src) && s.src[s.pos] == '.' && isDigit(s.src[s.pos+1]) {
			s.pos++
			for s.pos < len(s.src) && isDigit(s.src[s.pos]) {
				s.pos++
			}
		}
		if s.pos < len(s.src) && (s.src[s.pos] == 'e' || s.src[s.pos] == 'E') {
			p := s.pos + 1
			if p < len(s.src) && (s.src[p] == '-' || s.src[p] == '+') {
				p++
			}
			if p < len(s.src) && isDigit(s.src[p]) {
				for s.pos = p; s.pos < len(s.src) && isDigit(s.src[s.pos]); s.pos++ {
				}
			}
		}
		return token{kind: tokNumber, text: s.src[start:s.pos], off: start}, nil
	case c == '"':
		var b strings.Builder
		s.pos++
		for {
			i := strings.IndexByte(s.src[s.pos:], '"')
			if i < 0 {
				return token{}, &SyntaxError{Offset: start, Err: errors.New("unterminated string")}
			}
			b.WriteString(s.src[s.pos : s.pos+i])
			s.pos += i + 1
			if s.pos < len(s.src) && s.src[s.pos] == '"' {
				b.WriteByte('"')
				s.pos++
				continue
			}
			return token{kind: tokString, text: b.String(), off: start}, nil
		}
	case c == '\'':
		i := strings.IndexByte(s.src[s.pos+1:], '\'')
		if i < 0 || s.pos+i+2 >= len(s.src) {
			return token{}, &SyntaxError{Offset: start, Err: errors.New("unterminated bstring or hstring")}
		}
		body := strings.Join(strings.Fields(s.src[s.pos+1:s.pos+1+i]), "")
		s.pos += i + 2
		suffix := s.src[s.pos]
		s.pos++
		switch suffix {
		case 'B':
			return token{kind: tokBString, text: body, off: start}, nil
		case 'H':
			return token{kind: tokHString, text: body, off: start}, nil
		}
		return token{}, &SyntaxError{Offset: start, Err: fmt.Errorf("invalid string suffix %q", suffix)}
	}
	return token{}, &SyntaxError{Offset: start, Err: fmt.Errorf("unexpected character %q", c)}
}

// parser reads values of simple types with one token of lookahead.
type parser struct {
	sc  scanner
	tok token
}

func (p *parser) next() error {
	t, err := p.sc.scan()
	if err != nil {
		return err
	}
	p.tok = t
	return nil
}

func (p *parser) fail(err error) error {
	return &SyntaxError{Offset: p.tok.off, Err: err}
}

func (p *parser) unexpected(want string) error {
	return p.fail(fmt.Errorf("expected %s, got %s", want, p.tok))
}

func (p *parser) expect(k tokKind, want string) error {
	if p.tok.kind != k {
		return p.unexpected(want)
	}
	return p.next()
}

// take returns the current token if it has the kind k and advances.
func (p *parser) take(k tokKind, want string) (token, error) {
	t := p.tok
	if t.kind != k {
		return t, p.unexpected(want)
	}
	return t, p.next()
}

// simple reports whether values of o can be parsed.
func simple(o *asn1rt.Object) bool {
	switch o.Kind() {
	case asn1rt.KindNull, asn1rt.KindBoolean, asn1rt.KindInteger, asn1rt.KindEnumerated, asn1rt.KindReal,
		asn1rt.KindOID, asn1rt.KindRelativeOID, asn1rt.KindUTCTime, asn1rt.KindGeneralizedTime:
		return true
	case asn1rt.KindBitString, asn1rt.KindOctetString:
		return o.Contains() == nil
	}
	return o.Kind().IsString()
}

func (p *parser) value(o *asn1rt.Object) (any, error) {
	kind := o.Kind()
	if kind == asn1rt.KindSequenceOf || kind == asn1rt.KindSetOf {
		if !simple(o.Elem()) {
			return nil, &asn1rt.NotSupportedError{Object: o.QualifiedName(), Kind: kind, Codec: codecName}
		}
		return p.list(o)
	}
	if !simple(o) {
		return nil, &asn1rt.NotSupportedError{Object: o.QualifiedName(), Kind: kind, Codec: codecName}
	}
	switch kind {
	case asn1rt.KindNull:
		if p.tok.kind != tokIdent || p.tok.text != "NULL" {
			return nil, p.unexpected("NULL")
		}
		return asn1rt.Null{}, p.next()
	case asn1rt.KindBoolean:
		if p.tok.kind == tokIdent && (p.tok.text == "TRUE" || p.tok.text == "FALSE") {
			b := p.tok.text == "TRUE"
			return b, p.next()
		}
		return nil, p.unexpected("TRUE or FALSE")
	case asn1rt.KindInteger:
		i, ok := new(big.Int).SetString(p.tok.text, 10)
		if p.tok.kind != tokNumber || !ok {
			return nil, p.unexpected("integer")
		}
		return asn1rt.NormalizeInt(i), p.next()
	case asn1rt.KindEnumerated:
		t, err := p.take(tokIdent, "identifier")
		if err != nil {
			return nil, err
		}
		if _, _, ok := o.EnumItem(t.text); !ok {
			return nil, &SyntaxError{Offset: t.off, Err: fmt.Errorf("unknown enumeration item %q", t.text)}
		}
		return t.text, nil
	case asn1rt.KindReal:
		return p.real()
	case asn1rt.KindBitString:
		return p.bitString()
	case asn1rt.KindOctetString:
		switch t := p.tok; t.kind {
		case tokHString:
			b, err := decodeHex(t.text)
			if err != nil {
				return nil, p.fail(err)
			}
			return b, p.next()
		case tokBString:
			if len(t.text)%8 != 0 {
				return nil, p.fail(errors.New("bstring is not a multiple of 8 bits"))
			}
			bs, err := decodeBits(t.text)
			if err != nil {
				return nil, p.fail(err)
			}
			return bs.Bytes, p.next()
		}
		return nil, p.unexpected("hstring")
	case asn1rt.KindOID:
		arcs, err := p.arcs()
		if err != nil {
			return nil, err
		}
		oid := asn1rt.ObjectIdentifier(arcs)
		if !oid.IsValid() {
			return nil, p.fail(fmt.Errorf("invalid object identifier %s", oid))
		}
		return oid, nil
	case asn1rt.KindRelativeOID:
		arcs, err := p.arcs()
		return asn1rt.RelativeOID(arcs), err
	case asn1rt.KindUTCTime, asn1rt.KindGeneralizedTime:
		t, err := p.take(tokString, "time string")
		if err != nil {
			return nil, err
		}
		parse := asn1rt.ParseGeneralizedTime
		if kind == asn1rt.KindUTCTime {
			parse = asn1rt.ParseUTCTime
		}
		v, err := parse(t.text)
		if err != nil {
			return nil, &SyntaxError{Offset: t.off, Err: err}
		}
		return v, nil
	}
	t, err := p.take(tokString, "cstring")
	if err != nil {
		return nil, err
	}
	return t.text, nil
}

// list parses a SEQUENCE OF or SET OF value.
func (p *parser) list(o *asn1rt.Object) (any, error) {
	if err := p.expect(tokLBrace, "{"); err != nil {
		return nil, err
	}
	l := []any{}
	for p.tok.kind != tokRBrace {
		if len(l) > 0 {
			if err := p.expect(tokComma, ", or }"); err != nil {
				return nil, err
			}
		}
		v, err := p.value(o.Elem())
		if err != nil {
			return nil, err
		}
		l = append(l, v)
	}
	return l, p.next()
}

// real parses a REAL value: a special value, a decimal number or the
// associated SEQUENCE notation.
func (p *parser) real() (any, error) {
	switch t := p.tok; t.kind {
	case tokIdent:
		specials := map[string]asn1rt.Real{
			"PLUS-INFINITY":  asn1rt.PlusInfinity,
			"MINUS-INFINITY": asn1rt.MinusInfinity,
			"NOT-A-NUMBER":   asn1rt.NotANumber,
		}
		if r, ok := specials[t.text]; ok {
			return r, p.next()
		}
	case tokNumber:
		if t.text == "-0" {
			return asn1rt.MinusZero, p.next()
		}
		r, err := decimalReal(t.text)
		if err != nil {
			return nil, p.fail(err)
		}
		return r, p.next()
	case tokLBrace:
		return p.realSequence()
	}
	return nil, p.unexpected("real value")
}

// decimalReal converts a number token into a base 10 Real.
func decimalReal(s string) (asn1rt.Real, error) {
	mant, exp, _ := strings.Cut(strings.ToLower(s), "e")
	var e int64
	if exp != "" {
		var err error
		if e, err = strconv.ParseInt(exp, 10, 64); err != nil {
			return asn1rt.Real{}, err
		}
	}
	if i, frac, ok := strings.Cut(mant, "."); ok {
		mant = i + frac
		e -= int64(len(frac))
	}
	m, err := strconv.ParseInt(mant, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return asn1rt.Real{}, ferr
		}
		return asn1rt.RealFromFloat64(f), nil
	}
	return asn1rt.Real{Mantissa: m, Base: 10, Exponent: e}.Normalize(), nil
}

// realSequence parses { mantissa m, base b, exponent e }.
func (p *parser) realSequence() (any, error) {
	if err := p.next(); err != nil {
		return nil, err
	}
	var vals [3]int64
	for i, name := range []string{"mantissa", "base", "exponent"} {
		if i > 0 {
			if err := p.expect(tokComma, ","); err != nil {
				return nil, err
			}
		}
		if p.tok.kind != tokIdent || p.tok.text != name {
			return nil, p.unexpected(name)
		}
		if err := p.next(); err != nil {
			return nil, err
		}
		t, err := p.take(tokNumber, "integer")
		if err != nil {
			return nil, err
		}
		if vals[i], err = strconv.ParseInt(t.text, 10, 64); err != nil {
			return nil, &SyntaxError{Offset: t.off, Err: err}
		}
	}
	if err := p.expect(tokRBrace, "}"); err != nil {
		return nil, err
	}
	r := asn1rt.Real{Mantissa: vals[0], Base: int(vals[1]), Exponent: vals[2]}
	if r.Base != 2 && r.Base != 10 {
		return nil, p.fail(fmt.Errorf("invalid base %d", r.Base))
	}
	return r.Normalize(), nil
}

func (p *parser) bitString() (any, error) {
	switch t := p.tok; t.kind {
	case tokBString:
		bs, err := decodeBits(t.text)
		if err != nil {
			return nil, p.fail(err)
		}
		return bs, p.next()
	case tokHString:
		b, err := decodeHex(t.text)
		if err != nil {
			return nil, p.fail(err)
		}
		return asn1rt.BitString{Bytes: b, BitLength: len(t.text) * 4}, p.next()
	}
	return nil, p.unexpected("bstring or hstring")
}

func decodeBits(s string) (asn1rt.BitString, error) {
	b := make([]byte, (len(s)+7)/8)
	for i := range len(s) {
		switch s[i] {
		case '1':
			b[i/8] |= 0x80 >> (i % 8)
		case '0':
		default:
			return asn1rt.BitString{}, fmt.Errorf("invalid bit %q", s[i])
		}
	}
	return asn1rt.BitString{Bytes: b, BitLength: len(s)}, nil
}

// decodeHex decodes an hstring. A trailing half octet is padded with zero.
func decodeHex(s string) ([]byte, error) {
	if len(s)%2 == 1 {
		s += "0"
	}
	return hex.DecodeString(s)
}

// arcs parses an OBJECT IDENTIFIER or RELATIVE-OID value. Arcs are numbers or
// names followed by their number in parentheses.
func (p *parser) arcs() ([]uint, error) {
	if err := p.expect(tokLBrace, "{"); err != nil {
		return nil, err
	}
	var arcs []uint
	for p.tok.kind != tokRBrace {
		if p.tok.kind == tokIdent {
			if err := p.next(); err != nil {
				return nil, err
			}
			if err := p.expect(tokLParen, "("); err != nil {
				return nil, err
			}
		}
		t, err := p.take(tokNumber, "arc")
		if err != nil {
			return nil, err
		}
		n, err := strconv.ParseUint(t.text, 10, bits.UintSize)
		if err != nil {
			return nil, &SyntaxError{Offset: t.off, Err: fmt.Errorf("invalid arc %q", t.text)}
		}
		arcs = append(arcs, uint(n))
		if p.tok.kind == tokRParen {
			if err = p.next(); err != nil {
				return nil, err
			}
		}
	}
	if len(arcs) == 0 {
		return nil, p.fail(errors.New("empty object identifier"))
	}
	return arcs, p.next()
}
