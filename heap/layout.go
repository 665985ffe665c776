// Package heap implements the heap map: a cache-dense, bit/nibble/word-
// packed in-memory projection of selected table columns, built fresh per
// query session and segmented when a table's record count (deleted
// records included) exceeds the configured in-memory budget.
package heap

import (
	"fmt"

	"github.com/wing32s/dbase3/errs"
	"github.com/wing32s/dbase3/format"
)

// RecnoField is the sentinel source-column name meaning "the physical
// record number" rather than a column projected from the table.
const RecnoField = "#RECNO#"

// FieldSpec describes one projected column: its source field name (or
// RecnoField), its packed representation, and — for BITFLAGS fields —
// which bit within the shared byte it occupies. Offset and NibbleHigh are
// computed by Layout.
type FieldSpec struct {
	Name string
	Type format.PackedType
	Bit  uint8 // meaningful only when Type == format.BitFlags, 0..7

	Offset     int
	NibbleHigh bool
}

func widthOf(t format.PackedType) int {
	switch t {
	case format.Word:
		return 2
	case format.LongInt:
		return 4
	default:
		return 1
	}
}

type openByteKind int

const (
	openNone openByteKind = iota
	openBitFlags
	openNibble
)

type openByte struct {
	kind       openByteKind
	offset     int
	nibbleHigh bool // true once the low nibble of this byte has been filled
	usedBits   uint8 // bits already claimed in the currently open BITFLAGS byte
}

// Layout assigns each spec an Offset (and, for NIBBLE fields, a
// NibbleHigh flag), following the greedy packing rules: BITFLAGS entries
// share a byte with the immediately preceding BITFLAGS entry; NIBBLE
// entries pair up low-then-high; any other field flushes whatever byte
// was open and aligns to its own rule. It returns the laid-out specs
// (a copy; the input is not mutated) or ErrHeapOverflow if the final size
// exceeds recordSize.
func Layout(specs []FieldSpec, recordSize int) ([]FieldSpec, error) {
	out := make([]FieldSpec, len(specs))
	copy(out, specs)

	cursor := 0
	open := openByte{kind: openNone}

	for i := range out {
		switch out[i].Type {
		case format.BitFlags:
			bit := uint8(1) << out[i].Bit
			if open.kind != openBitFlags || open.usedBits&bit != 0 {
				open = openByte{kind: openBitFlags, offset: cursor}
				cursor++
			}
			open.usedBits |= bit
			out[i].Offset = open.offset

		case format.Nibble:
			if open.kind == openNibble && !open.nibbleHigh {
				out[i].Offset = open.offset
				out[i].NibbleHigh = true
				open.nibbleHigh = true
			} else {
				open = openByte{kind: openNibble, offset: cursor}
				cursor++
				out[i].Offset = open.offset
				out[i].NibbleHigh = false
				open.nibbleHigh = false
			}

		default:
			open = openByte{kind: openNone}
			align := out[i].Type.Alignment()
			if align > 1 {
				if rem := cursor % align; rem != 0 {
					cursor += align - rem
				}
			}
			out[i].Offset = cursor
			cursor += widthOf(out[i].Type)
		}
	}

	finalSize := (cursor + 7) &^ 7
	if finalSize > recordSize {
		return nil, fmt.Errorf("%w: layout needs %d bytes, budget is %d", errs.ErrHeapOverflow, finalSize, recordSize)
	}

	return out, nil
}
