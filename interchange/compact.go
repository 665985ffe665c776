package interchange

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/wing32s/dbase3/errs"
	"github.com/wing32s/dbase3/format"
	"github.com/wing32s/dbase3/memo"
	"github.com/wing32s/dbase3/section"
	"github.com/wing32s/dbase3/table"
)

// Compact rewrites a table (and its memo companion, if any) into fresh
// files at dstTablePath/dstMemoPath, dropping tombstoned rows and
// re-packing memo blocks sequentially from block 1. Record numbers shift
// to close the gaps left by deleted rows.
func Compact(src *table.Table, srcMemo *memo.Memo, dstTablePath, dstMemoPath string) (*table.Table, *memo.Memo, error) {
	schema := src.Schema()
	memoFields := memoFieldNames(schema)

	dst, err := table.Create(dstTablePath, schema)
	if err != nil {
		return nil, nil, err
	}

	var dstMemo *memo.Memo
	if len(memoFields) > 0 {
		if srcMemo == nil {
			_ = dst.Close()

			return nil, nil, fmt.Errorf("%w: schema has memo fields but no source memo file given", errs.ErrSchemaError)
		}

		dstMemo, err = memo.Create(dstMemoPath, srcVersionOf(src))
		if err != nil {
			_ = dst.Close()

			return nil, nil, err
		}
	}

	var kept, dropped, blocksReclaimed int

	for recno := uint32(0); recno < src.RecordCount(); recno++ {
		row, err := src.ReadRow(recno)
		if err != nil {
			return nil, nil, err
		}
		if row.Deleted {
			dropped++

			continue
		}

		if dstMemo != nil {
			for _, name := range memoFields {
				block, _ := row.Values[name].(uint32)
				if block == 0 {
					continue
				}

				payload, err := srcMemo.Read(block)
				if err != nil {
					return nil, nil, err
				}
				info, err := srcMemo.Info(block)
				if err != nil {
					return nil, nil, err
				}

				newBlock, err := dstMemo.Write(payload, info.Type)
				if err != nil {
					return nil, nil, err
				}
				row.Values[name] = newBlock
				blocksReclaimed++
			}
		}

		if _, err := dst.Append(row); err != nil {
			return nil, nil, err
		}
		kept++
	}

	src.Logger().WithFields(logrus.Fields{
		"rowsKept":        kept,
		"rowsDropped":     dropped,
		"memoBlocksMoved": blocksReclaimed,
	}).Info("table compacted")

	return dst, dstMemo, nil
}

func memoFieldNames(schema section.Schema) []string {
	var names []string
	for _, f := range schema {
		if f.Type == format.Memo {
			names = append(names, f.Name)
		}
	}

	return names
}

func srcVersionOf(src *table.Table) format.Version {
	if src.HasMemo() {
		return format.VersionDBaseIVMemo
	}

	return format.VersionDBaseIII
}
