package section

import (
	"bytes"

	"github.com/wing32s/dbase3/errs"
	"github.com/wing32s/dbase3/format"
)

// FieldDescriptorSize is the fixed size, in bytes, of a field descriptor.
const FieldDescriptorSize = 32

// MaxFields bounds the number of field descriptors Open will read before
// giving up on a corrupt header.
const MaxFields = 64

// FieldDescriptor describes one column of a table: its name, type, byte
// length, decimal count, and its computed offset within a record.
type FieldDescriptor struct {
	Name     string // up to 11 bytes, ASCII
	Type     format.FieldType
	Offset   int // 1-based byte offset within the record; 0 is the delete flag
	Length   uint8
	Decimals uint8
}

// ParseFieldDescriptor parses one 32-byte field descriptor. Offset is left
// at zero; callers must run Schema.Recompute to assign offsets.
func ParseFieldDescriptor(data []byte) (FieldDescriptor, error) {
	if len(data) < FieldDescriptorSize {
		return FieldDescriptor{}, errs.ErrCorruptTable
	}

	name := data[0:11]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}

	ft := format.FieldType(data[11])
	if !ft.Valid() {
		return FieldDescriptor{}, errs.ErrCorruptTable
	}

	return FieldDescriptor{
		Name:     string(name),
		Type:     ft,
		Length:   data[16],
		Decimals: data[17],
	}, nil
}

// Bytes serializes the field descriptor into a 32-byte slice.
func (f FieldDescriptor) Bytes() []byte {
	b := make([]byte, FieldDescriptorSize)
	name := f.Name
	if len(name) > 11 {
		name = name[:11]
	}
	copy(b[0:11], name)
	b[11] = byte(f.Type)
	b[16] = f.Length
	b[17] = f.Decimals

	return b
}

// Schema is an ordered list of field descriptors; it is the source of
// truth for record layout once Recompute has assigned offsets.
type Schema []FieldDescriptor

// Recompute assigns each field's 1-based Offset in declaration order,
// following the immediate predecessor's Offset+Length, with field 0
// reserved for the delete flag (so the first field's offset is 1).
func (s Schema) Recompute() {
	offset := 1
	for i := range s {
		s[i].Offset = offset
		offset += int(s[i].Length)
	}
}

// RecordSize returns 1 (delete flag) + the sum of every field's length, as
// required by the invariant "Record size = 1 + Σ field_length".
func (s Schema) RecordSize() int {
	total := 1
	for _, f := range s {
		total += int(f.Length)
	}

	return total
}

// HeaderSize returns 32 + 32*len(s) + 1 (the field descriptors plus the
// 0x0D terminator), as required by the invariant "Header size = 32 +
// 32·field_count + 1".
func (s Schema) HeaderSize() int {
	return DBFHeaderSize + FieldDescriptorSize*len(s) + 1
}

// HasMemo reports whether the schema contains at least one memo field.
func (s Schema) HasMemo() bool {
	for _, f := range s {
		if f.Type == format.Memo {
			return true
		}
	}

	return false
}

// Find returns the field descriptor named name (case-sensitive, matching
// dBase's exact stored name) and its zero-based index, or ok=false.
func (s Schema) Find(name string) (f FieldDescriptor, index int, ok bool) {
	for i, fd := range s {
		if fd.Name == name {
			return fd, i, true
		}
	}

	return FieldDescriptor{}, -1, false
}

// DeriveVersion computes the version byte implied by the schema's memo
// field(s). A current version of dBase III is returned unchanged. Any
// other current version (including 0 for a new table) yields
// VersionDBaseIVMemo if any field is a memo and VersionDBaseIVNoMemo
// otherwise, so 0x04 promotes to 0x05 when a memo field is added and 0x05
// demotes to 0x04 when the last one is removed.
func (s Schema) DeriveVersion(current format.Version) format.Version {
	if current == format.VersionDBaseIII {
		return format.VersionDBaseIII
	}

	if s.HasMemo() {
		return format.VersionDBaseIVMemo
	}

	return format.VersionDBaseIVNoMemo
}

const (
	// FieldDescriptorTerminator is the single byte that ends the field
	// descriptor block.
	FieldDescriptorTerminator byte = 0x0D
	// EOFMarker is the optional byte that follows the last record.
	EOFMarker byte = 0x1A
	// RecordDeleted marks a tombstoned record.
	RecordDeleted byte = '*'
	// RecordLive marks a live record.
	RecordLive byte = ' '
)
