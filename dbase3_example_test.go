package dbase3_test

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/wing32s/dbase3"
	"github.com/wing32s/dbase3/format"
	"github.com/wing32s/dbase3/query"
	"github.com/wing32s/dbase3/section"
	"github.com/wing32s/dbase3/table"
)

// Example demonstrates the programmatic API end to end: create a table,
// append rows, build an index, run a query, and compact the result.
func Example() {
	dir, err := os.MkdirTemp("", "dbase3example")
	if err != nil {
		fmt.Println("error:", err)

		return
	}
	defer os.RemoveAll(dir)

	schema := section.Schema{
		{Name: "NAME", Type: format.Character, Length: 10},
		{Name: "AGE", Type: format.Numeric, Length: 3, Decimals: 0},
	}

	tablePath := filepath.Join(dir, "CUSTOMERS.DBF")
	db, err := dbase3.Create(tablePath, schema)
	if err != nil {
		fmt.Println("error:", err)

		return
	}
	defer db.Close()

	rows := []struct {
		name string
		age  float64
	}{
		{"ALICE", 30},
		{"ALBERT", 45},
		{"BOB", 22},
	}
	for _, r := range rows {
		if _, err := db.Table.Append(table.Row{Values: map[string]table.Value{
			"NAME": r.name,
			"AGE":  r.age,
		}}); err != nil {
			fmt.Println("error:", err)

			return
		}
	}

	if _, err := db.BuildIndex(filepath.Join(dir, "NAME.NDX"), "NAME"); err != nil {
		fmt.Println("error:", err)

		return
	}

	recnos, err := db.Query(query.Query{Groups: []query.Group{
		{Mode: query.ModeAll, Filters: []query.Filter{
			{Kind: query.Like, Field: "NAME", Prefix: "AL"},
		}},
	}})
	if err != nil {
		fmt.Println("error:", err)

		return
	}
	fmt.Println("matches:", recnos)

	if err := db.Table.SetDeleted(2, true); err != nil {
		fmt.Println("error:", err)

		return
	}

	compacted, err := db.Compact(filepath.Join(dir, "PACKED.DBF"), filepath.Join(dir, "PACKED.DBT"))
	if err != nil {
		fmt.Println("error:", err)

		return
	}
	defer compacted.Close()
	fmt.Println("compacted records:", compacted.Table.RecordCount())

	// Output:
	// matches: [1 2]
	// compacted records: 2
}
