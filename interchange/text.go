// Package interchange implements the text (.TXT) and memo (.MEM) import/
// export formats, plus table+memo compaction: a fresh rewrite that drops
// tombstoned rows and re-packs memo blocks sequentially.
package interchange

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/wing32s/dbase3/errs"
	"github.com/wing32s/dbase3/format"
	"github.com/wing32s/dbase3/section"
	"github.com/wing32s/dbase3/table"
)

// ExportText writes the text interchange form of tbl to w: line 1 field
// names, line 2 field specs, then one line per live row of trimmed
// `|`-joined values.
func ExportText(w io.Writer, tbl *table.Table) error {
	schema := tbl.Schema()

	names := make([]string, len(schema))
	specs := make([]string, len(schema))
	for i, f := range schema {
		names[i] = f.Name
		if f.Decimals > 0 {
			specs[i] = fmt.Sprintf("%s(%d,%d)", f.Type.String(), f.Length, f.Decimals)
		} else {
			specs[i] = fmt.Sprintf("%s(%d)", f.Type.String(), f.Length)
		}
	}

	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintln(bw, strings.Join(names, "|")); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(bw, strings.Join(specs, "|")); err != nil {
		return err
	}

	for recno := uint32(0); recno < tbl.RecordCount(); recno++ {
		row, err := tbl.ReadRow(recno)
		if err != nil {
			return err
		}
		if row.Deleted {
			continue
		}

		values := make([]string, len(schema))
		for i, f := range schema {
			values[i] = trimmedValue(row.Values[f.Name])
		}
		if _, err := fmt.Fprintln(bw, strings.Join(values, "|")); err != nil {
			return err
		}
	}

	return bw.Flush()
}

func trimmedValue(v table.Value) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		if t {
			return "T"
		}

		return "F"
	case uint32:
		return strconv.FormatUint(uint64(t), 10)
	default:
		return ""
	}
}

// parseFieldSpec parses a "T(len)" or "T(len,dec)" spec token.
func parseFieldSpec(name, spec string) (section.FieldDescriptor, error) {
	open := strings.IndexByte(spec, '(')
	close := strings.IndexByte(spec, ')')
	if open < 0 || close < open {
		return section.FieldDescriptor{}, fmt.Errorf("%w: malformed field spec %q", errs.ErrSchemaError, spec)
	}

	ft := format.FieldType(spec[0])
	if !ft.Valid() {
		return section.FieldDescriptor{}, fmt.Errorf("%w: unknown field type in spec %q", errs.ErrSchemaError, spec)
	}

	inner := spec[open+1 : close]
	parts := strings.SplitN(inner, ",", 2)

	length, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return section.FieldDescriptor{}, fmt.Errorf("%w: bad length in spec %q: %w", errs.ErrSchemaError, spec, err)
	}

	var decimals int
	if len(parts) == 2 {
		decimals, err = strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			return section.FieldDescriptor{}, fmt.Errorf("%w: bad decimals in spec %q: %w", errs.ErrSchemaError, spec, err)
		}
	}

	trimmedName := name
	if len(trimmedName) > 11 {
		trimmedName = trimmedName[:11]
	}

	return section.FieldDescriptor{Name: trimmedName, Type: ft, Length: uint8(length), Decimals: uint8(decimals)}, nil
}

// ImportText reads the text interchange form from r and creates a new
// table at path. It creates only the .DBF file: no .DBT memo companion is
// created, even when the schema has an M field.
func ImportText(r io.Reader, path string, opts ...table.Option) (*table.Table, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	if !sc.Scan() {
		return nil, fmt.Errorf("%w: missing field-name line", errs.ErrSchemaError)
	}
	names := strings.Split(sc.Text(), "|")

	if !sc.Scan() {
		return nil, fmt.Errorf("%w: missing field-spec line", errs.ErrSchemaError)
	}
	specStrs := strings.Split(sc.Text(), "|")

	if len(names) != len(specStrs) {
		return nil, fmt.Errorf("%w: field name/spec count mismatch", errs.ErrSchemaError)
	}

	schema := make(section.Schema, len(names))
	for i := range names {
		fd, err := parseFieldSpec(names[i], specStrs[i])
		if err != nil {
			return nil, err
		}
		schema[i] = fd
	}

	tbl, err := table.Create(path, schema, opts...)
	if err != nil {
		return nil, err
	}

	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		values := strings.Split(line, "|")
		if len(values) != len(schema) {
			return nil, fmt.Errorf("%w: row has %d values, schema has %d fields", errs.ErrSchemaError, len(values), len(schema))
		}

		row := table.Row{Values: make(map[string]table.Value, len(schema))}
		for i, f := range schema {
			row.Values[f.Name] = parseImportValue(values[i], f.Type)
		}
		if _, err := tbl.Append(row); err != nil {
			return nil, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scanning text import: %w", err)
	}

	return tbl, nil
}

func parseImportValue(raw string, ft format.FieldType) table.Value {
	switch ft {
	case format.Numeric:
		v, _ := strconv.ParseFloat(strings.TrimSpace(raw), 64)

		return v
	case format.Logical:
		u := strings.ToUpper(strings.TrimSpace(raw))

		return u == "T" || u == "Y"
	case format.Memo:
		n, _ := strconv.ParseUint(strings.TrimSpace(raw), 10, 32)

		return uint32(n)
	default:
		return raw
	}
}
