// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package asn1rt

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

var (
	errInvalidUTCTime         = errors.New("invalid UTCTime")
	errInvalidGeneralizedTime = errors.New("invalid GeneralizedTime")
)

//region [UNIVERSAL 23] UTCTime

// FormatUTCTime returns t in the format YYMMDDhhmmssZ or YYMMDDhhmmss+hhmm. If
// canonical is true, t is converted to UTC first. Only years between 1950 and
// 2049 can be represented.
//
// See also section 47 of Rec. ITU-T X.680.
func FormatUTCTime(t time.Time, canonical bool) (string, error) {
	if canonical {
		t = t.UTC()
	}
	if year := t.Year(); year < 1950 || year >= 2050 {
		return "", errInvalidUTCTime
	}
	b := strings.Builder{}
	b.Grow(17)
	b.WriteString(itoaN(t.Year()%100, 2))
	b.WriteString(itoaN(int(t.Month()), 2))
	b.WriteString(itoaN(t.Day(), 2))
	b.WriteString(itoaN(t.Hour(), 2))
	b.WriteString(itoaN(t.Minute(), 2))
	b.WriteString(itoaN(t.Second(), 2))
	writeZone(&b, t)
	return b.String(), nil
}

// ParseUTCTime parses the string representation of a UTCTime value.
func ParseUTCTime(s string) (time.Time, error) {
	if len(s) < 11 || len(s) > 17 {
		return time.Time{}, errInvalidUTCTime
	}
	year := atoiN[int](s, 2)
	month := atoiN[time.Month](s[2:], 2)
	day := atoiN[int](s[4:], 2)
	hour := atoiN[int](s[6:], 2)
	minute := atoiN[int](s[8:], 2)
	s = s[10:]
	second := atoiN[int](s, 2)
	if second >= 0 {
		s = s[2:]
	} else {
		second = 0
	}
	loc := parseLocation(s)
	if loc == nil {
		return time.Time{}, errInvalidUTCTime
	}

	// UTCTime only encodes times prior to 2050. See https://tools.ietf.org/html/rfc5280#section-4.1.2.5.1
	if year < 0 {
		return time.Time{}, errInvalidUTCTime
	} else if year <= 49 {
		year += 2000
	} else {
		year += 1900
	}
	ret := time.Date(year, month, day, hour, minute, second, 0, loc)
	if ret.Year() != year || ret.Month() != month || ret.Day() != day || ret.Hour() != hour || ret.Minute() != minute || ret.Second() != second {
		return time.Time{}, errInvalidUTCTime
	}
	return ret, nil
}

//endregion

//region [UNIVERSAL 24] GeneralizedTime

// FormatGeneralizedTime returns the ASN.1 representation of t as a
// GeneralizedTime. Times in the [time.Local] location are written without a
// zone designator. If canonical is true, t is converted to UTC first. Only
// years between 1 and 9999 can be represented.
//
// See also section 46 of Rec. ITU-T X.680.
func FormatGeneralizedTime(t time.Time, canonical bool) (string, error) {
	if canonical {
		t = t.UTC()
	}
	if year := t.Year(); year < 1 || year > 9999 {
		return "", errInvalidGeneralizedTime
	}
	b := strings.Builder{}
	b.Grow(29) // allocate enough space for nanosecond precision
	b.WriteString(itoaN(t.Year()%10000, 4))
	b.WriteString(itoaN(int(t.Month()), 2))
	b.WriteString(itoaN(t.Day(), 2))
	b.WriteString(itoaN(t.Hour(), 2))
	b.WriteString(itoaN(t.Minute(), 2))
	b.WriteString(itoaN(t.Second(), 2))
	if t.Nanosecond() > 0 {
		s := strconv.FormatFloat(float64(t.Nanosecond())/float64(time.Second), 'f', -1, 64)
		b.WriteString(s[1:])
	}
	if t.Location() == time.Local {
		return b.String(), nil
	}
	writeZone(&b, t)
	return b.String(), nil
}

// ParseGeneralizedTime parses the string representation of a GeneralizedTime
// value. Values without a zone designator are interpreted in [time.Local].
func ParseGeneralizedTime(s string) (time.Time, error) {
	if len(s) < 10 {
		return time.Time{}, errInvalidGeneralizedTime
	}
	year := atoiN[int](s, 4)
	month := atoiN[time.Month](s[4:], 2)
	day := atoiN[int](s[6:], 2)
	hour := atoiN[time.Duration](s[8:], 2)
	if hour < 0 || 23 < hour {
		return time.Time{}, errInvalidGeneralizedTime
	}
	s = s[10:]
	dur := hour * time.Hour
	unit := time.Hour // unit for fractional time
	if len(s) >= 2 && '0' <= s[0] && s[0] <= '9' {
		minute := atoiN[time.Duration](s, 2)
		if minute < 0 || minute > 59 {
			return time.Time{}, errInvalidGeneralizedTime
		}
		dur += minute * time.Minute
		unit = time.Minute
		s = s[2:]
	}
	if len(s) >= 2 && '0' <= s[0] && s[0] <= '9' {
		second := atoiN[time.Duration](s, 2)
		if second < 0 || second > 59 {
			return time.Time{}, errInvalidGeneralizedTime
		}
		unit = time.Second
		dur += second * time.Second
		s = s[2:]
	}
	if len(s) > 0 && (s[0] == '.' || s[0] == ',') {
		i := 1
		for ; i < len(s); i++ {
			if s[i] < '0' || '9' < s[i] {
				break
			}
			unit /= 10
			dur += time.Duration(s[i]-'0') * unit
		}
		if i == 1 {
			return time.Time{}, errInvalidGeneralizedTime
		}
		s = s[i:]
	}
	var loc *time.Location
	if len(s) == 0 {
		loc = time.Local
	} else if loc = parseLocation(s); loc == nil {
		return time.Time{}, errInvalidGeneralizedTime
	}
	ret := time.Date(year, month, day, 0, 0, 0, 0, loc)
	ret = ret.Add(dur)
	if ret.Year() != year || ret.Month() != month || ret.Day() != day {
		return time.Time{}, errInvalidGeneralizedTime
	}
	return ret, nil
}

//endregion

func writeZone(b *strings.Builder, t time.Time) {
	_, offset := t.Zone()
	offset /= 60
	if offset == 0 {
		b.WriteByte('Z')
		return
	}
	if offset < 0 {
		b.WriteByte('-')
	} else {
		b.WriteByte('+')
	}
	b.WriteString(itoaN(offset/60, 2))
	b.WriteString(itoaN(offset%60, 2))
}

func parseLocation(s string) *time.Location {
	if len(s) == 1 && s[0] == 'Z' {
		return time.UTC
	}
	if len(s) != 5 {
		return nil
	}
	if s[0] != '+' && s[0] != '-' {
		return nil
	}
	mul := 44 - int(s[0])
	locHour := atoiN[int](s[1:], 2)
	locMinute := atoiN[int](s[3:], 2)
	if locHour < 0 || locMinute < 0 {
		return nil
	}
	return time.FixedZone("", mul*(locHour*3600+locMinute*60))
}

// itoaN returns the base 10 string representation of the absolute value of i,
// truncated or zero padded to exactly n digits.
func itoaN(i int, n int) string {
	if i < 0 {
		i = -i
	}
	bs := make([]byte, n)
	for ; n > 0; n-- {
		bs[n-1] = '0' + byte(i%10)
		i /= 10
	}
	return string(bs)
}

func atoiN[T ~int | ~int64](s string, n int) (i T) {
	if len(s) < n {
		return -1
	}
	for j := 0; j < n; j++ {
		if s[j] < '0' || '9' < s[j] {
			return -1
		}
		i = i*10 + T(s[j]-'0')
	}
	return i
}
