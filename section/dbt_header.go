package section

import (
	"github.com/wing32s/dbase3/endian"
	"github.com/wing32s/dbase3/errs"
)

// DBTBlockSize is the fixed block size of a .DBT memo file.
const DBTBlockSize = 512

// DBTHeader is block 0 of a .DBT memo file.
type DBTHeader struct {
	NextFree  uint32 // offset 0-3, LE; next unallocated block number
	BlockSize uint16 // offset 4-5, LE; always DBTBlockSize in this module
}

// ParseDBTHeader parses the memo header from block 0's bytes.
func ParseDBTHeader(data []byte) (DBTHeader, error) {
	if len(data) < DBTBlockSize {
		return DBTHeader{}, errs.ErrCorruptMemo
	}

	engine := endian.GetLittleEndianEngine()

	return DBTHeader{
		NextFree:  engine.Uint32(data[0:4]),
		BlockSize: engine.Uint16(data[4:6]),
	}, nil
}

// Bytes serializes the memo header into a zero-padded 512-byte block.
func (h DBTHeader) Bytes() []byte {
	b := make([]byte, DBTBlockSize)
	engine := endian.GetLittleEndianEngine()
	engine.PutUint32(b[0:4], h.NextFree)
	engine.PutUint16(b[4:6], h.BlockSize)

	return b
}

// MemoPayloadHeaderSize is the size of the dBase IV/V per-block (type,
// length) prefix that precedes a memo payload.
const MemoPayloadHeaderSize = 8
