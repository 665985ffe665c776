// Package query implements the bitmap-based multi-group filter engine:
// filters and groups compose index lookups and heap-map scans into a
// sorted set of matching record numbers.
package query

import (
	"github.com/bits-and-blooms/bitset"
)

// Bitmap is a dense bitset over 1-based record numbers.
type Bitmap struct {
	set  *bitset.BitSet
	size uint
}

// NewBitmap returns an empty Bitmap sized for record numbers 1..n.
func NewBitmap(n uint) *Bitmap {
	return &Bitmap{set: bitset.New(n + 1), size: n}
}

// FullBitmap returns a Bitmap with every record number 1..n set.
func FullBitmap(n uint) *Bitmap {
	b := NewBitmap(n)
	for i := uint(1); i <= n; i++ {
		b.set.Set(i)
	}

	return b
}

// FromRecnos returns a Bitmap with exactly the given record numbers set.
func FromRecnos(n uint, recnos []uint32) *Bitmap {
	b := NewBitmap(n)
	for _, r := range recnos {
		b.Set(uint(r))
	}

	return b
}

// Set marks record number r as present.
func (b *Bitmap) Set(r uint) { b.set.Set(r) }

// Clear removes record number r.
func (b *Bitmap) Clear(r uint) { b.set.Clear(r) }

// Test reports whether record number r is present.
func (b *Bitmap) Test(r uint) bool { return b.set.Test(r) }

// IsEmpty reports whether the bitmap has no records set.
func (b *Bitmap) IsEmpty() bool { return b.set.None() }

// Popcount returns the number of records set.
func (b *Bitmap) Popcount() uint { return b.set.Count() }

// Clone returns an independent copy of b.
func (b *Bitmap) Clone() *Bitmap {
	return &Bitmap{set: b.set.Clone(), size: b.size}
}

// Union returns a new Bitmap containing every record set in b or other.
func (b *Bitmap) Union(other *Bitmap) *Bitmap {
	return &Bitmap{set: b.set.Union(other.set), size: b.size}
}

// Intersect returns a new Bitmap containing every record set in both b
// and other.
func (b *Bitmap) Intersect(other *Bitmap) *Bitmap {
	return &Bitmap{set: b.set.Intersection(other.set), size: b.size}
}

// UnionInPlace mutates b to be the union of b and other.
func (b *Bitmap) UnionInPlace(other *Bitmap) { b.set.InPlaceUnion(other.set) }

// IntersectInPlace mutates b to be the intersection of b and other.
func (b *Bitmap) IntersectInPlace(other *Bitmap) { b.set.InPlaceIntersection(other.set) }

// Recnos returns every set record number in ascending order.
func (b *Bitmap) Recnos() []uint32 {
	out := make([]uint32, 0, b.set.Count())
	for i, ok := b.set.NextSet(1); ok; i, ok = b.set.NextSet(i + 1) {
		out = append(out, uint32(i))
	}

	return out
}
