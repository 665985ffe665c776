package heap

import (
	"github.com/wing32s/dbase3/table"
)

// BuildSegments partitions tbl's records into segments of at most budget
// records each and builds one Map per segment. Callers that scan a large
// table process one segment at a time, so peak memory is bounded by a
// single segment's footprint regardless of table size.
func BuildSegments(tbl *table.Table, specs []FieldSpec, recordSize int, budget int) ([]*Map, error) {
	if budget <= 0 {
		budget = DefaultBudget
	}

	total := int(tbl.RecordCount())
	var segments []*Map

	for start := 0; start < total; start += budget {
		count := budget
		if start+count > total {
			count = total - start
		}

		m, err := Build(tbl, specs, recordSize, uint32(start+1), count)
		if err != nil {
			return nil, err
		}
		segments = append(segments, m)
	}

	return segments, nil
}

// ReleaseSegments returns every segment's backing buffer to the shared
// pool. Callers that built segments for one scan (e.g. a single query
// execution) should release them once the scan completes.
func ReleaseSegments(segments []*Map) {
	for _, m := range segments {
		m.Release()
	}
}
