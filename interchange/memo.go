package interchange

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/wing32s/dbase3/errs"
	"github.com/wing32s/dbase3/format"
	"github.com/wing32s/dbase3/memo"
	"github.com/wing32s/dbase3/table"
)

// ExportMemo writes one line per live row of tbl, per Memo-type field that
// row carries a non-zero pointer for: the live row's position among live
// rows, the field's index in the schema, the memo type, the block number,
// and the payload as uppercase hex.
func ExportMemo(w io.Writer, tbl *table.Table, m *memo.Memo) error {
	schema := tbl.Schema()
	bw := bufio.NewWriter(w)

	liveIdx := uint32(0)
	for recno := uint32(0); recno < tbl.RecordCount(); recno++ {
		row, err := tbl.ReadRow(recno)
		if err != nil {
			return err
		}
		if row.Deleted {
			continue
		}

		for fieldIndex, f := range schema {
			if f.Type != format.Memo {
				continue
			}

			block, _ := row.Values[f.Name].(uint32)
			if block == 0 {
				continue
			}

			info, err := m.Info(block)
			if err != nil {
				return err
			}
			payload, err := m.Read(block)
			if err != nil {
				return err
			}

			hexPayload := strings.ToUpper(hex.EncodeToString(payload))
			if _, err := fmt.Fprintf(bw, "%d|%d|%d|%d|%s\n", liveIdx, fieldIndex, info.Type, block, hexPayload); err != nil {
				return err
			}
		}

		liveIdx++
	}

	return bw.Flush()
}

// ImportMemo reads the line format produced by ExportMemo, writes each
// payload into m as a fresh block, and updates and persists the
// corresponding field of the corresponding row of tbl.
func ImportMemo(r io.Reader, tbl *table.Table, m *memo.Memo) error {
	schema := tbl.Schema()

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "|", 5)
		if len(parts) != 5 {
			return fmt.Errorf("%w: malformed memo import line", errs.ErrSchemaError)
		}

		rowIndex, err := strconv.ParseUint(parts[0], 10, 32)
		if err != nil {
			return fmt.Errorf("%w: bad row index: %w", errs.ErrSchemaError, err)
		}
		fieldIndex, err := strconv.Atoi(parts[1])
		if err != nil || fieldIndex < 0 || fieldIndex >= len(schema) {
			return fmt.Errorf("%w: bad field index %q", errs.ErrSchemaError, parts[1])
		}
		memoType, err := strconv.ParseUint(parts[2], 10, 32)
		if err != nil {
			return fmt.Errorf("%w: bad memo type: %w", errs.ErrSchemaError, err)
		}
		// parts[3] is the original block number, informational only: the
		// payload is re-packed at whatever block m.Write next hands out.
		if _, err := strconv.ParseUint(parts[3], 10, 32); err != nil {
			return fmt.Errorf("%w: bad block number: %w", errs.ErrSchemaError, err)
		}
		payload, err := hex.DecodeString(parts[4])
		if err != nil {
			return fmt.Errorf("%w: bad hex payload: %w", errs.ErrSchemaError, err)
		}

		newBlock, err := m.Write(payload, format.MemoType(memoType))
		if err != nil {
			return err
		}

		row, err := tbl.ReadRow(uint32(rowIndex))
		if err != nil {
			return err
		}
		row.Values[schema[fieldIndex].Name] = newBlock
		if err := tbl.WriteRow(uint32(rowIndex), row); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("scanning memo import: %w", err)
	}

	return nil
}
