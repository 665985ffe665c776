package index

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/wing32s/dbase3/endian"
	"github.com/wing32s/dbase3/errs"
)

// EncodeChar right-space-pads s to keyLen bytes, mapping any embedded NUL
// to a space so character keys always compare byte-for-byte.
func EncodeChar(s string, keyLen int) []byte {
	b := make([]byte, keyLen)
	for i := range b {
		b[i] = ' '
	}
	n := len(s)
	if n > keyLen {
		n = keyLen
	}
	for i := 0; i < n; i++ {
		c := s[i]
		if c == 0 {
			c = ' '
		}
		b[i] = c
	}

	return b
}

// EncodeDouble renders v as an 8-byte little-endian IEEE-754 double, the
// wire form used for both numeric and date keys.
func EncodeDouble(v float64) []byte {
	b := make([]byte, 8)
	engine := endian.GetLittleEndianEngine()
	engine.PutUint64(b, math.Float64bits(v))

	return b
}

// DecodeDouble is the inverse of EncodeDouble.
func DecodeDouble(b []byte) float64 {
	engine := endian.GetLittleEndianEngine()

	return math.Float64frombits(engine.Uint64(b))
}

// EncodeNumeric parses a numeric field's ASCII text and encodes it as a
// key double. BulkBuild rejects negative values: the byte comparator only
// orders non-negative doubles correctly.
func EncodeNumeric(s string) ([]byte, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid numeric key %q: %w", errs.ErrInvalidArgument, s, err)
	}
	if v < 0 {
		return nil, fmt.Errorf("%w: numeric key %q is negative, unsupported by the byte comparator", errs.ErrInvalidArgument, s)
	}

	return EncodeDouble(v), nil
}

// EncodeDate accepts "YYYYMMDD" or "YYYY-MM-DD", converts to a Julian Day
// Number via Fliegel-Van Flandern, and encodes the JDN as a key double.
func EncodeDate(s string) ([]byte, error) {
	jdn, err := ParseDateToJDN(s)
	if err != nil {
		return nil, err
	}

	return EncodeDouble(float64(jdn)), nil
}

// ParseDateToJDN parses "YYYYMMDD" or "YYYY-MM-DD" and returns its Julian
// Day Number.
func ParseDateToJDN(s string) (int64, error) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "-", "")
	if len(s) != 8 {
		return 0, fmt.Errorf("%w: date %q is not YYYYMMDD or YYYY-MM-DD", errs.ErrInvalidArgument, s)
	}

	year, err1 := strconv.Atoi(s[0:4])
	month, err2 := strconv.Atoi(s[4:6])
	day, err3 := strconv.Atoi(s[6:8])
	if err1 != nil || err2 != nil || err3 != nil {
		return 0, fmt.Errorf("%w: date %q contains non-numeric components", errs.ErrInvalidArgument, s)
	}

	return JulianDayNumber(year, month, day), nil
}

// JulianDayNumber computes the Julian Day Number for a Gregorian calendar
// date using the Fliegel-Van Flandern algorithm.
func JulianDayNumber(year, month, day int) int64 {
	y, m, d := int64(year), int64(month), int64(day)

	return (1461*(y+4800+(m-14)/12))/4 +
		(367*(m-2-12*((m-14)/12)))/12 -
		(3*((y+4900+(m-14)/12)/100))/4 +
		d - 32075
}

// JDNToDate converts a Julian Day Number back to a time.Time at midnight
// UTC, for diagnostics and round-trip tests.
func JDNToDate(jdn int64) time.Time {
	l := jdn + 68569
	n := (4 * l) / 146097
	l = l - (146097*n+3)/4
	i := (4000 * (l + 1)) / 1461001
	l = l - (1461*i)/4 + 31
	j := (80 * l) / 2447
	day := l - (2447*j)/80
	l = j / 11
	month := j + 2 - 12*l
	year := 100*(n-49) + i + l

	return time.Date(int(year), time.Month(month), int(day), 0, 0, 0, 0, time.UTC)
}

// CompareChar orders two normalised character keys lexicographically.
func CompareChar(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}

			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

// CompareDouble orders two 8-byte little-endian doubles by comparing from
// the high byte (index 7) down to the low byte (index 0) — a valid total
// order for non-negative doubles with matching signs.
func CompareDouble(a, b []byte) int {
	for i := 7; i >= 0; i-- {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}

			return 1
		}
	}

	return 0
}
