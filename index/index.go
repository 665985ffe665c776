// Package index implements the .NDX B-tree: header/node I/O delegated to
// package section, plus key normalisation, comparators, descent, ordered
// iteration, exact/prefix/range search, and bulk construction from a
// table, splitting a thin codec layer (section) from the higher-level
// engine built on top of it.
package index

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/wing32s/dbase3/errs"
	"github.com/wing32s/dbase3/section"
)

// maxDescentDepth bounds a single root-to-leaf descent, guarding against
// a cyclic or corrupt child pointer.
const maxDescentDepth = 20

// Comparator orders two encoded keys of the same kind.
type Comparator func(a, b []byte) int

// Index is an open handle to a .NDX file.
type Index struct {
	mu     sync.Mutex
	file   *os.File
	header section.NdxHeader
	digest uint64 // set by BulkBuild; zero for an Index opened from disk
}

// Digest returns the xxHash64 checksum BulkBuild computed over the
// index's node bytes, or 0 if this Index was obtained via Open rather
// than BulkBuild. It is a diagnostic aid only, never persisted.
func (idx *Index) Digest() uint64 { return idx.digest }

// Open opens an existing .NDX file and parses its header.
func Open(path string) (*Index, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: opening index: %w", errs.ErrNotFound, err)
		}

		return nil, fmt.Errorf("opening index: %w", err)
	}

	buf := make([]byte, section.NdxBlockSize)
	if _, err := io.ReadFull(f, buf); err != nil {
		_ = f.Close()

		return nil, fmt.Errorf("%w: reading index header: %w", errs.ErrCorruptIndex, err)
	}

	header, err := section.ParseNdxHeader(buf)
	if err != nil {
		_ = f.Close()

		return nil, err
	}

	return &Index{file: f, header: header}, nil
}

// Close closes the underlying file. The header is written only by
// BulkBuild, which always writes it last, so Close performs no flush.
func (idx *Index) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	return idx.file.Close()
}

// Expression returns the indexed expression string stored in the header
// (typically a field name).
func (idx *Index) Expression() string { return idx.header.Expression }

// KeyLen returns the fixed key length this index was built with.
func (idx *Index) KeyLen() int { return idx.header.KeyLen }

func (idx *Index) readNode(block uint32) (section.NdxNode, error) {
	buf := make([]byte, section.NdxBlockSize)
	if _, err := idx.file.ReadAt(buf, int64(block)*section.NdxBlockSize); err != nil {
		return section.NdxNode{}, fmt.Errorf("%w: reading index block %d: %w", errs.ErrCorruptIndex, block, err)
	}

	return section.ParseNdxNode(buf, idx.header.KeyLen, idx.header.KeysMax, idx.header.GroupLen)
}

func (idx *Index) writeNode(block uint32, node section.NdxNode) error {
	buf := node.Bytes(idx.header.KeyLen, idx.header.GroupLen)
	if _, err := idx.file.WriteAt(buf, int64(block)*section.NdxBlockSize); err != nil {
		return fmt.Errorf("writing index block %d: %w", block, err)
	}

	return nil
}

// cursor is one (block, index-within-node) pair on the descent/iteration
// stack.
type cursor struct {
	block uint32
	index int
	node  section.NdxNode
}

// descendFirstGE walks from the root to the leaf that would hold the
// first key ≥ target, returning the full stack of ancestors visited
// (root first, leaf last) for use by both point lookups and the ordered
// iterator.
func (idx *Index) descendFirstGE(target []byte, cmp Comparator) ([]cursor, error) {
	if idx.header.RootBlock == 0 {
		return nil, nil
	}

	var stack []cursor
	block := idx.header.RootBlock

	for depth := 0; depth < maxDescentDepth; depth++ {
		node, err := idx.readNode(block)
		if err != nil {
			return nil, err
		}

		pos := len(node.Groups)
		for i, g := range node.Groups {
			if cmp(g.Key, target) >= 0 {
				pos = i
				break
			}
		}

		if node.IsLeaf() {
			// index tracks the next group to emit, starting at the
			// first key ≥ target.
			stack = append(stack, cursor{block: block, index: pos, node: node})

			return stack, nil
		}

		// index tracks the next child to try if the iterator ever
		// needs to resume past the one we are about to descend into.
		stack = append(stack, cursor{block: block, index: pos + 1, node: node})

		if pos < len(node.Groups) {
			block = node.Groups[pos].Child
		} else {
			block = node.LastChild
		}
		if block == 0 {
			return stack, nil
		}
	}

	return stack, fmt.Errorf("%w: descent exceeded %d levels", errs.ErrCorruptIndex, maxDescentDepth)
}

// Cursor is a lazy, forward-only iterator over (key, recno) pairs in
// ascending key order.
type Cursor struct {
	idx   *Index
	stack []cursor
}

// Seek returns a Cursor positioned at the first key ≥ target.
func (idx *Index) Seek(target []byte, cmp Comparator) (*Cursor, error) {
	stack, err := idx.descendFirstGE(target, cmp)
	if err != nil {
		return nil, err
	}

	return &Cursor{idx: idx, stack: stack}, nil
}

// Next advances the cursor and returns the next (key, recno) pair. ok is
// false once the iterator is exhausted.
func (c *Cursor) Next() (key []byte, recno uint32, ok bool, err error) {
	for len(c.stack) > 0 {
		top := &c.stack[len(c.stack)-1]

		if top.node.IsLeaf() {
			if top.index < len(top.node.Groups) {
				g := top.node.Groups[top.index]
				top.index++

				return g.Key, g.Recno, true, nil
			}

			// Leaf exhausted: unwind to the nearest ancestor with an
			// unvisited child.
			c.stack = c.stack[:len(c.stack)-1]

			continue
		}

		// Internal node: index ranges over [0, len(Groups)], where
		// len(Groups) selects LastChild. Each value is consumed once.
		if top.index > len(top.node.Groups) {
			c.stack = c.stack[:len(c.stack)-1]

			continue
		}

		var next uint32
		if top.index < len(top.node.Groups) {
			next = top.node.Groups[top.index].Child
		} else {
			next = top.node.LastChild
		}
		top.index++

		if next == 0 {
			continue
		}

		if err := c.idx.descendLeftmost(next, &c.stack); err != nil {
			return nil, 0, false, err
		}
	}

	return nil, 0, false, nil
}

// descendLeftmost pushes the leftmost path from block down to its leaf
// onto stack, used both for the initial seek and for resuming the
// iterator into a freshly-visited subtree.
func (idx *Index) descendLeftmost(block uint32, stack *[]cursor) error {
	for depth := 0; depth < maxDescentDepth; depth++ {
		node, err := idx.readNode(block)
		if err != nil {
			return err
		}

		if node.IsLeaf() {
			*stack = append(*stack, cursor{block: block, index: 0, node: node})

			return nil
		}

		*stack = append(*stack, cursor{block: block, index: 1, node: node})

		if len(node.Groups) == 0 {
			block = node.LastChild
		} else {
			block = node.Groups[0].Child
		}
		if block == 0 {
			return nil
		}
	}

	return fmt.Errorf("%w: descent exceeded %d levels", errs.ErrCorruptIndex, maxDescentDepth)
}
