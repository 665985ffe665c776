package section

import (
	"bytes"

	"github.com/wing32s/dbase3/endian"
	"github.com/wing32s/dbase3/errs"
	"github.com/wing32s/dbase3/format"
)

// NdxBlockSize is the fixed block size of a .NDX index file.
const NdxBlockSize = 512

// Byte offsets for the two accepted .NDX header dialects.
const (
	v1RootOffset, v1EofOffset               = 1, 5
	v1KeyLenOffset, v1KeysMaxOffset, v1GroupLenOffset = 7, 9, 11
	v1ExprOffset                            = 17

	v2RootOffset, v2EofOffset               = 1, 5
	v2KeyLenOffset, v2KeysMaxOffset, v2GroupLenOffset = 13, 15, 19
	v2ExprOffset                            = 25

	maxExprLen = 80
)

// NdxHeader is block 0 of a .NDX index file, normalized across its two
// on-disk dialects.
type NdxHeader struct {
	Dialect    format.NdxDialect
	RootBlock  uint32
	EofBlock   uint32
	KeyLen     int
	KeysMax    int
	GroupLen   int
	Expression string
}

// validLayout checks the layout sanity predicate: 0 < key_len ≤ 255,
// 0 < keys_max ≤ 255, group_len ≥ key_len+8, and the node must fit in one
// 512-byte block.
func validLayout(keyLen, keysMax, groupLen int) bool {
	if keyLen <= 0 || keyLen > 255 {
		return false
	}
	if keysMax <= 0 || keysMax > 255 {
		return false
	}
	if groupLen < keyLen+8 {
		return false
	}
	if 4+keysMax*groupLen+4 > NdxBlockSize {
		return false
	}

	return true
}

func readExpr(data []byte, offset int) string {
	if offset >= len(data) {
		return ""
	}
	end := offset + maxExprLen
	if end > len(data) {
		end = len(data)
	}
	region := data[offset:end]
	if i := bytes.IndexByte(region, 0); i >= 0 {
		region = region[:i]
	}

	return string(region)
}

// ParseNdxHeader autodetects and parses a .NDX header from block 0's
// bytes. When both dialects pass the sanity predicate, v1 is preferred as
// the historically more common layout.
func ParseNdxHeader(data []byte) (NdxHeader, error) {
	if len(data) < NdxBlockSize {
		return NdxHeader{}, errs.ErrCorruptIndex
	}

	engine := endian.GetLittleEndianEngine()

	v1KeyLen := int(engine.Uint16(data[v1KeyLenOffset : v1KeyLenOffset+2]))
	v1KeysMax := int(engine.Uint16(data[v1KeysMaxOffset : v1KeysMaxOffset+2]))
	v1GroupLen := int(engine.Uint16(data[v1GroupLenOffset : v1GroupLenOffset+2]))
	v1Valid := validLayout(v1KeyLen, v1KeysMax, v1GroupLen)

	v2KeyLen := int(engine.Uint16(data[v2KeyLenOffset : v2KeyLenOffset+2]))
	v2KeysMax := int(engine.Uint16(data[v2KeysMaxOffset : v2KeysMaxOffset+2]))
	v2GroupLen := int(engine.Uint16(data[v2GroupLenOffset : v2GroupLenOffset+2]))
	v2Valid := validLayout(v2KeyLen, v2KeysMax, v2GroupLen)

	switch {
	case v1Valid:
		return NdxHeader{
			Dialect:    format.NdxDialectV1,
			RootBlock:  uint32(engine.Uint16(data[v1RootOffset : v1RootOffset+2])),
			EofBlock:   uint32(engine.Uint16(data[v1EofOffset : v1EofOffset+2])),
			KeyLen:     v1KeyLen,
			KeysMax:    v1KeysMax,
			GroupLen:   v1GroupLen,
			Expression: readExpr(data, v1ExprOffset),
		}, nil
	case v2Valid:
		return NdxHeader{
			Dialect:    format.NdxDialectV2,
			RootBlock:  engine.Uint32(data[v2RootOffset : v2RootOffset+4]),
			EofBlock:   engine.Uint32(data[v2EofOffset : v2EofOffset+4]),
			KeyLen:     v2KeyLen,
			KeysMax:    v2KeysMax,
			GroupLen:   v2GroupLen,
			Expression: readExpr(data, v2ExprOffset),
		}, nil
	default:
		return NdxHeader{}, errs.ErrCorruptIndex
	}
}

// Bytes serializes the header into a zero-padded 512-byte block using the
// header's own Dialect.
func (h NdxHeader) Bytes() []byte {
	b := make([]byte, NdxBlockSize)
	engine := endian.GetLittleEndianEngine()

	switch h.Dialect {
	case format.NdxDialectV1:
		engine.PutUint16(b[v1RootOffset:v1RootOffset+2], uint16(h.RootBlock))
		engine.PutUint16(b[v1EofOffset:v1EofOffset+2], uint16(h.EofBlock))
		engine.PutUint16(b[v1KeyLenOffset:v1KeyLenOffset+2], uint16(h.KeyLen))
		engine.PutUint16(b[v1KeysMaxOffset:v1KeysMaxOffset+2], uint16(h.KeysMax))
		engine.PutUint16(b[v1GroupLenOffset:v1GroupLenOffset+2], uint16(h.GroupLen))
		copy(b[v1ExprOffset:], h.Expression)
	default:
		engine.PutUint32(b[v2RootOffset:v2RootOffset+4], h.RootBlock)
		engine.PutUint32(b[v2EofOffset:v2EofOffset+4], h.EofBlock)
		engine.PutUint16(b[v2KeyLenOffset:v2KeyLenOffset+2], uint16(h.KeyLen))
		engine.PutUint16(b[v2KeysMaxOffset:v2KeysMaxOffset+2], uint16(h.KeysMax))
		engine.PutUint16(b[v2GroupLenOffset:v2GroupLenOffset+2], uint16(h.GroupLen))
		copy(b[v2ExprOffset:], h.Expression)
	}

	return b
}
