package heap

import (
	"github.com/wing32s/dbase3/endian"
	"github.com/wing32s/dbase3/format"
)

// ReadWord returns the WORD value of field name at local index i. ok is
// false on any type mismatch or out-of-range index; the accessor never
// panics.
func (m *Map) ReadWord(i int, name string) (v uint16, ok bool) {
	spec, rec, ok := m.fieldRecord(i, name, format.Word)
	if !ok {
		return 0, false
	}

	return endian.GetLittleEndianEngine().Uint16(rec[spec.Offset : spec.Offset+2]), true
}

// ReadLongInt returns the LONGINT value of field name at local index i.
func (m *Map) ReadLongInt(i int, name string) (v int32, ok bool) {
	spec, rec, ok := m.fieldRecord(i, name, format.LongInt)
	if !ok {
		return 0, false
	}

	return int32(endian.GetLittleEndianEngine().Uint32(rec[spec.Offset : spec.Offset+4])), true
}

// ReadByte returns the BYTE value of field name at local index i.
func (m *Map) ReadByte(i int, name string) (v uint8, ok bool) {
	spec, rec, ok := m.fieldRecord(i, name, format.Byte)
	if !ok {
		return 0, false
	}

	return rec[spec.Offset], true
}

// ReadBitFlag reports whether the BITFLAGS field name's bit is set at
// local index i.
func (m *Map) ReadBitFlag(i int, name string) (v bool, ok bool) {
	spec, rec, ok := m.fieldRecord(i, name, format.BitFlags)
	if !ok {
		return false, false
	}

	return rec[spec.Offset]&(1<<spec.Bit) != 0, true
}

// ReadNibble returns the NIBBLE field name's 4-bit value at local index i.
func (m *Map) ReadNibble(i int, name string) (v uint8, ok bool) {
	spec, rec, ok := m.fieldRecord(i, name, format.Nibble)
	if !ok {
		return 0, false
	}
	if spec.NibbleHigh {
		return rec[spec.Offset] >> 4, true
	}

	return rec[spec.Offset] & 0x0F, true
}

// fieldRecord validates the (index, name, expected type) triple and
// returns the field's spec and the record's byte slice.
func (m *Map) fieldRecord(i int, name string, want format.PackedType) (FieldSpec, []byte, bool) {
	if i < 0 || i >= m.recordCount {
		return FieldSpec{}, nil, false
	}
	spec, ok := m.byName[name]
	if !ok || spec.Type != want {
		return FieldSpec{}, nil, false
	}

	return spec, m.buf[m.recordOffset(i) : m.recordOffset(i)+m.recordSize], true
}
