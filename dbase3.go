// Package dbase3 provides a high-performance, byte-exact codec and query
// engine for dBase III/IV/V database files.
//
// # Core Features
//
//   - Byte-exact .DBF (table), .DBT (memo), and .NDX (B-tree index) codecs
//   - A cache-dense in-memory heap map for fast non-indexed field scans
//   - A bitmap-based multi-group query engine combining index lookups and
//     heap scans
//   - Text (.TXT) and memo (.MEM) import/export, plus table compaction
//
// # Basic Usage
//
// Opening a table and its memo companion, then running a query:
//
//	db, err := dbase3.Open("CUSTOMERS.DBF")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	idx, err := db.BuildIndex("IDX_NAME.NDX", "NAME")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	recnos, err := db.Query(query.Query{Groups: []query.Group{
//	    {Mode: query.ModeAll, Filters: []query.Filter{
//	        {Kind: query.Like, Field: "NAME", Prefix: "SMITH"},
//	    }},
//	}})
//
// # Package Structure
//
// This file provides convenient top-level wrappers bundling a table, its
// optional memo companion, and a pool of named indexes into a single
// handle. For fine-grained control over any one of those pieces, use the
// table, memo, index, heap, and query packages directly.
package dbase3

import (
	"fmt"
	"io"
	"strings"

	"github.com/wing32s/dbase3/index"
	"github.com/wing32s/dbase3/interchange"
	"github.com/wing32s/dbase3/memo"
	"github.com/wing32s/dbase3/query"
	"github.com/wing32s/dbase3/section"
	"github.com/wing32s/dbase3/table"
)

// DB bundles an open table with its optional memo companion and any NDX
// indexes built over it.
type DB struct {
	Table   *table.Table
	Memo    *memo.Memo
	indexes map[string]*index.Index
	budget  int
}

// Open opens an existing table at tablePath. If the table's version byte
// is 0x05 (dBase IV/V with memo), Open also opens the companion .DBT file
// at the same path with its extension swapped to .dbt. The memo file of a
// dBase III (0x03) table is not opened.
func Open(tablePath string, opts ...table.Option) (*DB, error) {
	tbl, err := table.Open(tablePath, opts...)
	if err != nil {
		return nil, err
	}

	db := &DB{Table: tbl, indexes: make(map[string]*index.Index)}

	if tbl.HasMemo() {
		m, err := memo.Open(memoPath(tablePath), tbl.Schema().DeriveVersion(0))
		if err != nil {
			_ = tbl.Close()

			return nil, fmt.Errorf("opening memo companion: %w", err)
		}
		db.Memo = m
	}

	return db, nil
}

// Create creates a new, empty table at tablePath with the given schema,
// plus a memo companion if the schema has any memo fields.
func Create(tablePath string, schema section.Schema, opts ...table.Option) (*DB, error) {
	tbl, err := table.Create(tablePath, schema, opts...)
	if err != nil {
		return nil, err
	}

	db := &DB{Table: tbl, indexes: make(map[string]*index.Index)}

	if schema.HasMemo() {
		m, err := memo.Create(memoPath(tablePath), schema.DeriveVersion(0))
		if err != nil {
			_ = tbl.Close()

			return nil, fmt.Errorf("creating memo companion: %w", err)
		}
		db.Memo = m
	}

	return db, nil
}

func memoPath(tablePath string) string {
	if i := strings.LastIndexByte(tablePath, '.'); i >= 0 {
		return tablePath[:i] + ".dbt"
	}

	return tablePath + ".dbt"
}

// Close flushes and closes the table and, if open, its memo companion and
// every index registered with BuildIndex/UseIndex.
func (db *DB) Close() error {
	var firstErr error
	for _, idx := range db.indexes {
		if err := idx.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if db.Memo != nil {
		if err := db.Memo.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := db.Table.Close(); err != nil && firstErr == nil {
		firstErr = err
	}

	return firstErr
}

// BuildIndex bulk-builds an NDX index over fieldName at ndxPath and
// registers it under fieldName for use by Query.
func (db *DB) BuildIndex(ndxPath, fieldName string) (*index.Index, error) {
	idx, err := index.BulkBuild(ndxPath, db.Table, fieldName)
	if err != nil {
		return nil, err
	}
	db.indexes[fieldName] = idx

	return idx, nil
}

// UseIndex registers an already-open index for fieldName, for Query to
// use on Like/Exact filters against that field.
func (db *DB) UseIndex(fieldName string, idx *index.Index) {
	db.indexes[fieldName] = idx
}

// SetHeapBudget bounds the number of records each heap-map segment holds
// during Query; 0 selects heap.DefaultBudget.
func (db *DB) SetHeapBudget(budget int) { db.budget = budget }

// Query runs q against the table, using whichever registered indexes its
// Like/Exact filters reference, and returns matching record numbers in
// ascending order.
func (db *DB) Query(q query.Query) ([]uint32, error) {
	return query.NewEngine(db.Table, db.indexes, db.budget).Execute(q)
}

// ExportText writes the table's live rows in the pipe-delimited text
// interchange format.
func (db *DB) ExportText(w io.Writer) error {
	return interchange.ExportText(w, db.Table)
}

// Compact rewrites the table (and memo, if any) into fresh files at
// dstTablePath/dstMemoPath, dropping tombstoned rows and returning a new
// *DB over the compacted files.
func (db *DB) Compact(dstTablePath, dstMemoPath string) (*DB, error) {
	dstTbl, dstMemo, err := interchange.Compact(db.Table, db.Memo, dstTablePath, dstMemoPath)
	if err != nil {
		return nil, err
	}

	return &DB{Table: dstTbl, Memo: dstMemo, indexes: make(map[string]*index.Index)}, nil
}
