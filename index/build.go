package index

import (
	"fmt"
	"os"
	"sort"

	"github.com/wing32s/dbase3/errs"
	"github.com/wing32s/dbase3/format"
	"github.com/wing32s/dbase3/internal/hash"
	"github.com/wing32s/dbase3/internal/pool"
	"github.com/wing32s/dbase3/section"
	"github.com/wing32s/dbase3/table"
)

// pair is one (key, recno) tuple gathered from a table column before
// sorting and packing into leaves.
type pair struct {
	key   []byte
	recno uint32
}

// BulkBuild creates a new .NDX file at path indexing fieldName of tbl.
// Only live (non-deleted) records are indexed. The field must be
// Character, Numeric, or Date; anything else fails with SchemaError.
func BulkBuild(path string, tbl *table.Table, fieldName string) (*Index, error) {
	fd, _, ok := tbl.Schema().Find(fieldName)
	if !ok {
		return nil, fmt.Errorf("%w: field %q not found", errs.ErrSchemaError, fieldName)
	}

	var keyLen int
	var encode func(table.Value) ([]byte, error)
	var cmp Comparator

	switch fd.Type {
	case format.Character:
		keyLen = int(fd.Length)
		encode = func(v table.Value) ([]byte, error) {
			s, _ := v.(string)

			return EncodeChar(s, keyLen), nil
		}
		cmp = CompareChar
	case format.Numeric:
		keyLen = 8
		encode = func(v table.Value) ([]byte, error) {
			f, _ := v.(float64)
			if f < 0 {
				return nil, fmt.Errorf("%w: numeric key %v is negative, unsupported by the byte comparator", errs.ErrInvalidArgument, f)
			}

			return EncodeDouble(f), nil
		}
		cmp = CompareDouble
	case format.Date:
		keyLen = 8
		encode = func(v table.Value) ([]byte, error) {
			s, _ := v.(string)
			if s == "" {
				return EncodeDouble(0), nil
			}

			return EncodeDate(s)
		}
		cmp = CompareDouble
	default:
		return nil, fmt.Errorf("%w: field %q has unsupported type %q for indexing", errs.ErrSchemaError, fieldName, fd.Type)
	}

	pairs, err := gatherPairs(tbl, fieldName, fd.Type, encode)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(pairs, func(i, j int) bool {
		return cmp(pairs[i].key, pairs[j].key) < 0
	})

	groupLen := roundUp4(keyLen + 8)
	keysMax := (section.NdxBlockSize - 8) / groupLen

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("creating index file: %w", err)
	}

	builder := &builder{file: f, keyLen: keyLen, groupLen: groupLen, keysMax: keysMax}
	root, eof, err := builder.build(pairs)
	if err != nil {
		_ = f.Close()

		return nil, err
	}

	header := section.NdxHeader{
		Dialect:    format.NdxDialectV2,
		RootBlock:  root,
		EofBlock:   eof,
		KeyLen:     keyLen,
		KeysMax:    keysMax,
		GroupLen:   groupLen,
		Expression: fieldName,
	}
	if _, err := f.WriteAt(header.Bytes(), 0); err != nil {
		_ = f.Close()

		return nil, fmt.Errorf("writing index header: %w", err)
	}

	return &Index{file: f, header: header, digest: hash.Digest(builder.digestBuf)}, nil
}

func roundUp4(n int) int {
	return (n + 3) &^ 3
}

// gatherPairs scans every live record of tbl and encodes fieldName's value
// into an index key. The record-number scratch and the raw-value scratch
// (float64 for Numeric, string for Character/Date) are both borrowed from
// the shared pool, sized to the table's upper bound, since most tables
// have few or no deletions and the scratches rarely need to grow across a
// repeated bulk build.
func gatherPairs(tbl *table.Table, fieldName string, ft format.FieldType, encode func(table.Value) ([]byte, error)) ([]pair, error) {
	n := int(tbl.RecordCount())

	recnos, releaseRecnos := pool.GetUint32Slice(n)
	defer releaseRecnos()
	recnos = recnos[:0]

	keys := make([][]byte, 0, n)

	if ft == format.Numeric {
		raws, releaseRaws := pool.GetFloat64Slice(n)
		defer releaseRaws()
		raws = raws[:0]

		err := scanLiveRows(tbl, fieldName, func(recno uint32, v table.Value) error {
			f, _ := v.(float64)
			raws = append(raws, f)
			key, err := encode(f)
			if err != nil {
				return err
			}
			recnos = append(recnos, recno+1) // indexes carry 1-based record numbers
			keys = append(keys, key)

			return nil
		})
		if err != nil {
			return nil, err
		}
	} else {
		raws, releaseRaws := pool.GetStringSlice(n)
		defer releaseRaws()
		raws = raws[:0]

		err := scanLiveRows(tbl, fieldName, func(recno uint32, v table.Value) error {
			s, _ := v.(string)
			raws = append(raws, s)
			key, err := encode(s)
			if err != nil {
				return err
			}
			recnos = append(recnos, recno+1) // indexes carry 1-based record numbers
			keys = append(keys, key)

			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	pairs := make([]pair, len(recnos))
	for i, recno1 := range recnos {
		pairs[i] = pair{key: keys[i], recno: recno1}
	}

	return pairs, nil
}

// scanLiveRows calls fn for every non-deleted record's fieldName value, in
// record-number order.
func scanLiveRows(tbl *table.Table, fieldName string, fn func(recno uint32, v table.Value) error) error {
	for recno := uint32(0); recno < tbl.RecordCount(); recno++ {
		row, err := tbl.ReadRow(recno)
		if err != nil {
			return err
		}
		if row.Deleted {
			continue
		}
		if err := fn(recno, row.Values[fieldName]); err != nil {
			return err
		}
	}

	return nil
}

// builder packs sorted (key, recno) pairs into leaves starting at block 1,
// then builds internal levels bottom-up until a single root remains.
type builder struct {
	file             *os.File
	keyLen, groupLen int
	keysMax          int
	nextBlock        uint32
	digestBuf        []byte // every node's bytes, in write order, for the build's checksum
}

// levelEntry is one node written during a build level: its block number
// and the maximum key in its subtree, used to build the parent level.
type levelEntry struct {
	block  uint32
	maxKey []byte
}

func (b *builder) build(pairs []pair) (root, eof uint32, err error) {
	b.nextBlock = 1

	if len(pairs) == 0 {
		return 0, 1, nil
	}

	leaves, err := b.packLeaves(pairs)
	if err != nil {
		return 0, 0, err
	}

	level := leaves
	for len(level) > 1 {
		level, err = b.packInternalLevel(level)
		if err != nil {
			return 0, 0, err
		}
	}

	return level[0].block, b.nextBlock, nil
}

// packLeaves packs sorted pairs into leaf nodes of at most keysMax
// entries each, writing them sequentially starting at block 1.
func (b *builder) packLeaves(pairs []pair) ([]levelEntry, error) {
	var entries []levelEntry

	for start := 0; start < len(pairs); start += b.keysMax {
		end := start + b.keysMax
		if end > len(pairs) {
			end = len(pairs)
		}
		chunk := pairs[start:end]

		node := section.NdxNode{Groups: make([]section.NdxGroup, len(chunk))}
		for i, p := range chunk {
			node.Groups[i] = section.NdxGroup{Child: 0, Recno: p.recno, Key: p.key}
		}
		node.NumKeys = len(node.Groups)

		block := b.nextBlock
		b.nextBlock++
		if err := b.writeNode(block, node); err != nil {
			return nil, err
		}

		entries = append(entries, levelEntry{block: block, maxKey: chunk[len(chunk)-1].key})
	}

	return entries, nil
}

// packInternalLevel groups up to keysMax+1 children under each new parent,
// whose keys are the max key of each child except the last (which becomes
// last_child).
func (b *builder) packInternalLevel(children []levelEntry) ([]levelEntry, error) {
	var entries []levelEntry
	groupSize := b.keysMax + 1

	for start := 0; start < len(children); start += groupSize {
		end := start + groupSize
		if end > len(children) {
			end = len(children)
		}
		chunk := children[start:end]

		node := section.NdxNode{}
		for i := 0; i < len(chunk)-1; i++ {
			node.Groups = append(node.Groups, section.NdxGroup{
				Child: chunk[i].block,
				Recno: 0,
				Key:   chunk[i].maxKey,
			})
		}
		node.LastChild = chunk[len(chunk)-1].block
		node.NumKeys = len(node.Groups)

		block := b.nextBlock
		b.nextBlock++
		if err := b.writeNode(block, node); err != nil {
			return nil, err
		}

		entries = append(entries, levelEntry{block: block, maxKey: chunk[len(chunk)-1].maxKey})
	}

	return entries, nil
}

func (b *builder) writeNode(block uint32, node section.NdxNode) error {
	buf := node.Bytes(b.keyLen, b.groupLen)
	if _, err := b.file.WriteAt(buf, int64(block)*section.NdxBlockSize); err != nil {
		return fmt.Errorf("writing index block %d: %w", block, err)
	}
	b.digestBuf = append(b.digestBuf, buf...)

	return nil
}
