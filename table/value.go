package table

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/wing32s/dbase3/errs"
	"github.com/wing32s/dbase3/format"
	"github.com/wing32s/dbase3/section"
)

// Value is the decoded value of one field in one record. Character fields
// decode to string, Numeric to float64, Logical to bool, Date to a
// YYYYMMDD string (left as text; callers needing time.Time parse it
// themselves — explicit conversion over implicit magic), and Memo to the
// block number it points at (0 means "no memo").
type Value any

// decodeField extracts one field's raw bytes from a record buffer and
// decodes them per its type.
func decodeField(raw []byte, f section.FieldDescriptor, trimSpaces bool) (Value, error) {
	switch f.Type {
	case format.Character:
		s := string(raw)
		if trimSpaces {
			s = strings.TrimRight(s, " ")
		}

		return s, nil
	case format.Numeric:
		s := strings.TrimSpace(string(raw))
		if s == "" {
			return float64(0), nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: field %q: %w", errs.ErrCorruptTable, f.Name, err)
		}

		return v, nil
	case format.Logical:
		switch raw[0] {
		case 'T', 't', 'Y', 'y':
			return true, nil
		case 'F', 'f', 'N', 'n':
			return false, nil
		default:
			return nil, nil // '?' or space: undetermined
		}
	case format.Date:
		s := strings.TrimSpace(string(raw))

		return s, nil
	case format.Memo:
		s := strings.TrimSpace(string(raw))
		if s == "" {
			return uint32(0), nil
		}
		n, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: memo pointer field %q: %w", errs.ErrCorruptTable, f.Name, err)
		}

		return uint32(n), nil
	default:
		return nil, fmt.Errorf("%w: unsupported field type %q", errs.ErrCorruptTable, f.Type)
	}
}

// encodeField renders v into the field's fixed-width, space-padded byte
// representation.
func encodeField(v Value, f section.FieldDescriptor) ([]byte, error) {
	width := int(f.Length)
	buf := bytes.Repeat([]byte{' '}, width)

	switch f.Type {
	case format.Character:
		s, _ := v.(string)
		if len(s) > width {
			s = s[:width]
		}
		copy(buf, s)

		return buf, nil
	case format.Numeric:
		var f64 float64
		switch n := v.(type) {
		case float64:
			f64 = n
		case int:
			f64 = float64(n)
		case nil:
			f64 = 0
		default:
			return nil, fmt.Errorf("%w: numeric field %q requires a numeric value", errs.ErrInvalidArgument, f.Name)
		}
		s := strconv.FormatFloat(f64, 'f', int(f.Decimals), 64)
		if len(s) > width {
			return nil, fmt.Errorf("%w: value %q overflows field %q (width %d)", errs.ErrInvalidArgument, s, f.Name, width)
		}
		copy(buf[width-len(s):], s)

		return buf, nil
	case format.Logical:
		switch b := v.(type) {
		case bool:
			if b {
				buf[0] = 'T'
			} else {
				buf[0] = 'F'
			}
		default:
			buf[0] = '?'
		}

		return buf, nil
	case format.Date:
		s, _ := v.(string)
		if len(s) > width {
			s = s[:width]
		}
		copy(buf, s)

		return buf, nil
	case format.Memo:
		var n uint32
		switch m := v.(type) {
		case uint32:
			n = m
		case int:
			n = uint32(m)
		case nil:
			n = 0
		}
		s := strconv.FormatUint(uint64(n), 10)
		if n == 0 {
			s = ""
		}
		copy(buf[width-len(s):], s)

		return buf, nil
	default:
		return nil, fmt.Errorf("%w: unsupported field type %q", errs.ErrInvalidArgument, f.Type)
	}
}
