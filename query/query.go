package query

import (
	"fmt"
	"sort"

	"github.com/bits-and-blooms/bloom/v3"

	"github.com/wing32s/dbase3/errs"
	"github.com/wing32s/dbase3/format"
	"github.com/wing32s/dbase3/heap"
	"github.com/wing32s/dbase3/index"
	"github.com/wing32s/dbase3/table"
)

// Engine runs queries against one table, with a pool of named NDX
// indexes for index-backed filters (LIKE/EXACT).
type Engine struct {
	tbl     *table.Table
	indexes map[string]*index.Index
	budget  int
}

// NewEngine returns an Engine over tbl. indexes maps a field name to the
// NDX index built over it; budget bounds heap-map segment size (0 means
// heap.DefaultBudget).
func NewEngine(tbl *table.Table, indexes map[string]*index.Index, budget int) *Engine {
	return &Engine{tbl: tbl, indexes: indexes, budget: budget}
}

// Execute runs q and returns the matching record numbers in ascending
// order.
func (e *Engine) Execute(q Query) ([]uint32, error) {
	n := uint(e.tbl.RecordCount())
	full := FullBitmap(n)

	if len(q.Groups) == 0 {
		return full.Recnos(), nil
	}

	specs, err := e.buildHeapSpecs(q)
	if err != nil {
		return nil, err
	}
	recordSize := chooseRecordSize(specs)
	segments, err := heap.BuildSegments(e.tbl, specs, recordSize, e.budget)
	if err != nil {
		return nil, err
	}
	defer heap.ReleaseSegments(segments)

	// Groups always combine by AND, so the cross-group accumulator starts
	// as the full universe regardless of the first group's own mode;
	// each group's *own* filters still combine by its mode (ALL starts
	// from the candidate set, ANY starts empty), handled in
	// evaluateGroup.
	matches := full.Clone()

	for gi, g := range q.Groups {
		candidate := matches
		if gi == 0 {
			candidate = full
		}

		groupBitmap, err := e.evaluateGroup(g, candidate, segments, n)
		if err != nil {
			return nil, err
		}

		matches.IntersectInPlace(groupBitmap)
		if matches.IsEmpty() {
			break
		}
	}

	return matches.Recnos(), nil
}

func (e *Engine) evaluateGroup(g Group, candidate *Bitmap, segments []*heap.Map, n uint) (*Bitmap, error) {
	var perGroup *Bitmap
	if g.Mode == ModeAll {
		perGroup = candidate.Clone()
	} else {
		perGroup = NewBitmap(n)
	}

	for _, f := range g.Filters {
		var temp *Bitmap
		var err error

		if f.Kind.indexBacked() {
			temp, err = e.evaluateIndexFilter(f, n)
		} else {
			temp = e.evaluateHeapFilter(f, segments, candidate, n)
		}
		if err != nil {
			return nil, err
		}

		if g.Mode == ModeAll {
			perGroup.IntersectInPlace(temp)
		} else {
			perGroup.UnionInPlace(temp)
		}
	}

	return perGroup, nil
}

func (e *Engine) evaluateIndexFilter(f Filter, n uint) (*Bitmap, error) {
	idx, ok := e.indexes[f.Field]
	if !ok {
		return nil, fmt.Errorf("%w: no index for field %q", errs.ErrMissingIndex, f.Field)
	}

	var recnos []uint32
	var err error
	switch f.Kind {
	case Like:
		recnos, err = idx.FindPrefixChar(f.Prefix)
	case Exact:
		recnos, err = idx.FindExactChar(f.ExactValue)
	}
	if err != nil {
		return nil, err
	}

	return FromRecnos(n, recnos), nil
}

// evaluateHeapFilter scans only the records in candidate, across every
// segment, producing the matching bitmap for one heap-backed filter.
func (e *Engine) evaluateHeapFilter(f Filter, segments []*heap.Map, candidate *Bitmap, n uint) *Bitmap {
	temp := NewBitmap(n)

	// IN filters over a large candidate set benefit from a bloom
	// pre-check before the exact float64 comparison; it never changes
	// the final result, it only skips obviously-absent values sooner.
	var bloomFilter *bloom.BloomFilter
	if f.Kind == In && len(f.Values) > 0 {
		bloomFilter = bloom.NewWithEstimates(uint(len(f.Values)), 0.01)
		for _, v := range f.Values {
			bloomFilter.Add(floatKey(v))
		}
	}

	for _, seg := range segments {
		for i := 0; i < seg.RecordCount(); i++ {
			recno := seg.RecnoAt(i)
			if !candidate.Test(uint(recno)) {
				continue
			}

			v, ok := readHeapValue(seg, i, f.Field)
			if !ok {
				continue
			}

			if matchesHeapFilter(f, v, bloomFilter) {
				temp.Set(uint(recno))
			}
		}
	}

	return temp
}

func floatKey(v float64) []byte {
	return index.EncodeDouble(v)
}

func matchesHeapFilter(f Filter, v int64, bloomFilter *bloom.BloomFilter) bool {
	switch f.Kind {
	case Equal:
		return v == int64(f.Value)
	case NotEqual:
		return v != int64(f.Value)
	case LessThan:
		return v < int64(f.Value)
	case LessEqual:
		return v <= int64(f.Value)
	case GreaterThan:
		return v > int64(f.Value)
	case GreaterEqual:
		return v >= int64(f.Value)
	case Between:
		return v >= int64(f.Value) && v <= int64(f.Value2)
	case In:
		if bloomFilter != nil && !bloomFilter.Test(floatKey(float64(v))) {
			return false
		}
		for _, cand := range f.Values {
			if int64(cand) == v {
				return true
			}
		}

		return false
	case BitSet:
		return v&(1<<f.Bit) != 0
	case BitClear:
		return v&(1<<f.Bit) == 0
	case BitMaskAll:
		return v&int64(f.Mask) == int64(f.Mask)
	case BitMaskAny:
		return v&int64(f.Mask) != 0
	default:
		return false
	}
}

// readHeapValue reads field name at local index i as an integer,
// regardless of its packed representation.
func readHeapValue(seg *heap.Map, i int, name string) (int64, bool) {
	if v, ok := seg.ReadLongInt(i, name); ok {
		return int64(v), true
	}
	if v, ok := seg.ReadWord(i, name); ok {
		return int64(v), true
	}
	if v, ok := seg.ReadByte(i, name); ok {
		return int64(v), true
	}
	if v, ok := seg.ReadBitFlag(i, name); ok {
		if v {
			return 1, true
		}

		return 0, true
	}
	if v, ok := seg.ReadNibble(i, name); ok {
		return int64(v), true
	}

	return 0, false
}

// buildHeapSpecs collects every heap-backed filter field referenced by q
// and assigns each a packed representation: logical fields pack into
// shared BITFLAGS bytes (up to 8 per byte), everything else uses LONGINT,
// wide enough for both raw numeric values and JDN-encoded dates.
func (e *Engine) buildHeapSpecs(q Query) ([]heap.FieldSpec, error) {
	seen := map[string]bool{}
	var names []string
	for _, g := range q.Groups {
		for _, f := range g.Filters {
			if f.Kind.indexBacked() || seen[f.Field] {
				continue
			}
			seen[f.Field] = true
			names = append(names, f.Field)
		}
	}
	sort.Strings(names)

	specs := make([]heap.FieldSpec, 0, len(names))
	var bitCursor uint8
	for _, name := range names {
		fd, _, ok := e.tbl.Schema().Find(name)
		if !ok {
			return nil, fmt.Errorf("%w: field %q not found", errs.ErrSchemaError, name)
		}

		if fd.Type == format.Logical {
			specs = append(specs, heap.FieldSpec{Name: name, Type: format.BitFlags, Bit: bitCursor % 8})
			bitCursor++

			continue
		}

		specs = append(specs, heap.FieldSpec{Name: name, Type: format.LongInt})
	}

	return specs, nil
}

// chooseRecordSize picks the smallest of the 16/24/32-byte segment record
// sizes that Layout accepts.
func chooseRecordSize(specs []heap.FieldSpec) int {
	for _, size := range []int{16, 24, 32} {
		if _, err := heap.Layout(specs, size); err == nil {
			return size
		}
	}

	return 32 // Layout will surface HeapOverflow if even this doesn't fit
}
