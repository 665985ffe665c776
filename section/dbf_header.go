// Package section implements the fixed-size, byte-exact header and record
// structures shared by the table (.DBF), memo (.DBT), and index (.NDX)
// codecs: Parse decodes a structure from a raw block, Bytes re-serializes
// it, with no I/O of its own: one Parse/Bytes pair per on-disk structure.
package section

import (
	"time"

	"github.com/wing32s/dbase3/endian"
	"github.com/wing32s/dbase3/errs"
	"github.com/wing32s/dbase3/format"
)

// DBFHeaderSize is the fixed size, in bytes, of the primary table header.
const DBFHeaderSize = 32

// DBFHeader is the 32-byte primary header at the start of a .DBF file.
type DBFHeader struct {
	Version         format.Version // offset 0
	Year            uint8          // offset 1, years since 1900
	Month           uint8          // offset 2
	Day             uint8          // offset 3
	RecordCount     uint32         // offset 4-7, LE
	HeaderSize      uint16         // offset 8-9, LE
	RecordSize      uint16         // offset 10-11, LE
	TableFlags      uint8          // offset 28 (IV+ only)
	LanguageDriver  uint8          // offset 29 (IV+ only)
}

// ParseDBFHeader parses a DBFHeader from the first 32 bytes of a .DBF file.
func ParseDBFHeader(data []byte) (DBFHeader, error) {
	if len(data) < DBFHeaderSize {
		return DBFHeader{}, errs.ErrCorruptTable
	}

	engine := endian.GetLittleEndianEngine()

	h := DBFHeader{
		Version:        format.Version(data[0]),
		Year:           data[1],
		Month:          data[2],
		Day:            data[3],
		RecordCount:    engine.Uint32(data[4:8]),
		HeaderSize:     engine.Uint16(data[8:10]),
		RecordSize:     engine.Uint16(data[10:12]),
		TableFlags:     data[28],
		LanguageDriver: data[29],
	}

	if !h.Version.Valid() {
		return DBFHeader{}, errs.ErrCorruptTable
	}

	return h, nil
}

// Bytes serializes the header into a 32-byte slice, zeroing every reserved
// region.
func (h DBFHeader) Bytes() []byte {
	b := make([]byte, DBFHeaderSize)
	engine := endian.GetLittleEndianEngine()

	b[0] = byte(h.Version)
	b[1] = h.Year
	b[2] = h.Month
	b[3] = h.Day
	engine.PutUint32(b[4:8], h.RecordCount)
	engine.PutUint16(b[8:10], h.HeaderSize)
	engine.PutUint16(b[10:12], h.RecordSize)
	// bytes 12..27 stay zero (reserved)
	if h.Version != format.VersionDBaseIII {
		b[28] = h.TableFlags
		b[29] = h.LanguageDriver
	}
	// bytes 30..31 stay zero (reserved)

	return b
}

// SetModifiedNow stamps the header's last-modified date with the current
// date. table.Create calls it once; later header flushes write the stored
// date back unchanged.
func (h *DBFHeader) SetModifiedNow() {
	now := time.Now()
	h.Year = uint8(now.Year() - 1900)
	h.Month = uint8(now.Month())
	h.Day = uint8(now.Day())
}
