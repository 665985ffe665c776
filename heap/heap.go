package heap

import (
	"strconv"
	"strings"

	"github.com/wing32s/dbase3/endian"
	"github.com/wing32s/dbase3/format"
	"github.com/wing32s/dbase3/index"
	"github.com/wing32s/dbase3/internal/hash"
	"github.com/wing32s/dbase3/internal/pool"
	"github.com/wing32s/dbase3/table"
)

// DefaultBudget is the default maximum number of records held resident
// in a single heap map segment.
const DefaultBudget = 8192

// Map is one cache-dense packed projection of a table segment.
type Map struct {
	bb          *pool.ByteBuffer
	buf         []byte
	recordSize  int
	specs       []FieldSpec
	byName      map[string]FieldSpec
	startRecno  uint32 // 1-based record number of local index 0
	recordCount int
}

// Release returns the Map's backing buffer to the shared segment pool.
// The Map must not be used again afterward.
func (m *Map) Release() {
	pool.PutSegmentBuffer(m.bb)
	m.bb = nil
	m.buf = nil
}

// Digest returns an xxHash64 checksum over the segment's packed bytes, a
// diagnostic aid for detecting two builds of the same records diverging;
// it is never persisted.
func (m *Map) Digest() uint64 { return hash.Digest(m.buf) }

// RecordCount returns the number of records held in this segment.
func (m *Map) RecordCount() int { return m.recordCount }

// RecnoAt returns the 1-based record number of local index i.
func (m *Map) RecnoAt(i int) uint32 { return m.startRecno + uint32(i) }

func (m *Map) recordOffset(i int) int { return i * m.recordSize }

// Build lays out specs against recordSize and packs every record of tbl
// (1-based record numbers startRecno..startRecno+count-1) into one Map.
func Build(tbl *table.Table, specs []FieldSpec, recordSize int, startRecno uint32, count int) (*Map, error) {
	laidOut, err := Layout(specs, recordSize)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]FieldSpec, len(laidOut))
	for _, s := range laidOut {
		byName[s.Name] = s
	}

	bb := pool.GetSegmentBuffer()
	bb.SetLength(count * recordSize)

	m := &Map{
		bb:          bb,
		buf:         bb.Bytes(),
		recordSize:  recordSize,
		specs:       laidOut,
		byName:      byName,
		startRecno:  startRecno,
		recordCount: count,
	}

	engine := endian.GetLittleEndianEngine()

	for i := 0; i < count; i++ {
		recno := startRecno + uint32(i)
		row, err := tbl.ReadRow(recno - 1) // table is 0-based internally
		if err != nil {
			return nil, err
		}

		rec := m.buf[m.recordOffset(i) : m.recordOffset(i)+recordSize]
		for _, spec := range laidOut {
			var v table.Value
			if spec.Name == RecnoField {
				v = float64(recno)
			} else {
				v = row.Values[spec.Name]
			}

			n := coerceInt(v)

			switch spec.Type {
			case format.Word:
				if n < 0 {
					n = 0
				}
				if n > 0xFFFF {
					n = 0xFFFF
				}
				engine.PutUint16(rec[spec.Offset:spec.Offset+2], uint16(n))
			case format.LongInt:
				if n > 0x7FFFFFFF {
					n = 0x7FFFFFFF
				}
				if n < -0x80000000 {
					n = -0x80000000
				}
				engine.PutUint32(rec[spec.Offset:spec.Offset+4], uint32(int32(n)))
			case format.Byte:
				if n < 0 {
					n = 0
				}
				if n > 0xFF {
					n = 0xFF
				}
				rec[spec.Offset] = byte(n)
			case format.BitFlags:
				if coerceBool(v) {
					rec[spec.Offset] |= 1 << spec.Bit
				}
			case format.Nibble:
				if n < 0 {
					n = 0
				}
				if n > 0xF {
					n = 0xF
				}
				if spec.NibbleHigh {
					rec[spec.Offset] |= byte(n) << 4
				} else {
					rec[spec.Offset] |= byte(n) & 0x0F
				}
			}
		}
	}

	return m, nil
}

// coerceInt converts a decoded table.Value into an integer: numeric
// strings/floats pass through; logical true/false map to 1/0; YYYYMMDD
// date strings convert via their Julian Day Number.
func coerceInt(v table.Value) int64 {
	switch t := v.(type) {
	case float64:
		return int64(t)
	case int:
		return int64(t)
	case bool:
		if t {
			return 1
		}

		return 0
	case uint32:
		return int64(t)
	case string:
		s := strings.TrimSpace(t)
		if len(s) == 8 && isAllDigits(s) {
			if jdn, err := index.ParseDateToJDN(s); err == nil {
				return jdn
			}
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}

		return 0
	default:
		return 0
	}
}

func coerceBool(v table.Value) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		s := strings.TrimSpace(strings.ToUpper(t))

		return s == "T" || s == "Y" || s == "1"
	default:
		return false
	}
}

func isAllDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}

	return true
}
