package table

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/wing32s/dbase3/errs"
	"github.com/wing32s/dbase3/section"
)

// Table is an open handle to a .DBF file. A *Table is safe for concurrent
// readers; concurrent writers must still serialize externally, the mutex
// here only protects the handle's own bookkeeping (file offset, cached
// header) the way the go-dbase reference's dbaseMutex does — it is not a
// general-purpose writer-arbitration mechanism.
type Table struct {
	mu     sync.Mutex
	file   *os.File
	cfg    *Config
	header section.DBFHeader
	schema section.Schema
}

// Row is one decoded record: its field values by name, plus whether the
// record carries a delete tombstone.
type Row struct {
	Deleted bool
	Values  map[string]Value
}

// Schema returns the table's field descriptors.
func (t *Table) Schema() section.Schema { return t.schema }

// RecordCount returns the number of records the header claims to hold.
func (t *Table) RecordCount() uint32 { return t.header.RecordCount }

// HasMemo reports whether the table's version carries a memo sidecar.
func (t *Table) HasMemo() bool { return t.header.Version.HasMemo() }

// Open opens an existing .DBF file at path.
func Open(path string, opts ...Option) (*Table, error) {
	cfg, err := newConfig(opts...)
	if err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: opening table: %w", errs.ErrNotFound, err)
		}

		return nil, fmt.Errorf("opening table: %w", err)
	}

	t, err := prepareTable(f, cfg)
	if err != nil {
		_ = f.Close()

		return nil, err
	}

	cfg.Logger.WithField("path", path).WithField("records", t.header.RecordCount).Debug("table opened")

	return t, nil
}

// Create creates a new, empty .DBF file with the given schema.
func Create(path string, schema section.Schema, opts ...Option) (*Table, error) {
	cfg, err := newConfig(opts...)
	if err != nil {
		return nil, err
	}

	schema.Recompute()

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("creating table: %w", err)
	}

	header := section.DBFHeader{
		Version:    schema.DeriveVersion(0),
		HeaderSize: uint16(schema.HeaderSize()),
		RecordSize: uint16(schema.RecordSize()),
	}
	header.SetModifiedNow()

	if err := writeLayout(f, header, schema); err != nil {
		_ = f.Close()

		return nil, err
	}

	t := &Table{file: f, cfg: cfg, header: header, schema: schema}

	return t, nil
}

// prepareTable reads the header and field descriptors from an already
// open file handle, mirroring go-dbase's prepareDBF.
func prepareTable(f *os.File, cfg *Config) (*Table, error) {
	headerBuf := make([]byte, section.DBFHeaderSize)
	if _, err := io.ReadFull(f, headerBuf); err != nil {
		return nil, fmt.Errorf("%w: reading table header: %w", errs.ErrCorruptTable, err)
	}
	header, err := section.ParseDBFHeader(headerBuf)
	if err != nil {
		return nil, err
	}

	fieldCount := (int(header.HeaderSize) - section.DBFHeaderSize - 1) / section.FieldDescriptorSize
	if fieldCount <= 0 || fieldCount > section.MaxFields {
		return nil, fmt.Errorf("%w: implausible field count %d", errs.ErrCorruptTable, fieldCount)
	}

	schema := make(section.Schema, 0, fieldCount)
	descBuf := make([]byte, section.FieldDescriptorSize)
	for i := 0; i < fieldCount; i++ {
		if _, err := io.ReadFull(f, descBuf); err != nil {
			return nil, fmt.Errorf("%w: reading field descriptor %d: %w", errs.ErrCorruptTable, i, err)
		}
		fd, err := section.ParseFieldDescriptor(descBuf)
		if err != nil {
			return nil, err
		}
		schema = append(schema, fd)
	}
	schema.Recompute()

	term := make([]byte, 1)
	if _, err := io.ReadFull(f, term); err != nil {
		return nil, fmt.Errorf("%w: reading field descriptor terminator: %w", errs.ErrCorruptTable, err)
	}
	if term[0] != section.FieldDescriptorTerminator {
		return nil, fmt.Errorf("%w: missing field descriptor terminator", errs.ErrCorruptTable)
	}

	return &Table{file: f, cfg: cfg, header: header, schema: schema}, nil
}

// writeLayout writes the header, field descriptors, terminator byte, and
// the EOF marker a fresh, recordless table ends with, at the start of f.
func writeLayout(f *os.File, header section.DBFHeader, schema section.Schema) error {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("seeking to layout: %w", err)
	}
	if _, err := f.Write(header.Bytes()); err != nil {
		return fmt.Errorf("writing table header: %w", err)
	}
	for _, fd := range schema {
		if _, err := f.Write(fd.Bytes()); err != nil {
			return fmt.Errorf("writing field descriptor: %w", err)
		}
	}
	if _, err := f.Write([]byte{section.FieldDescriptorTerminator}); err != nil {
		return fmt.Errorf("writing field descriptor terminator: %w", err)
	}
	if _, err := f.Write([]byte{section.EOFMarker}); err != nil {
		return fmt.Errorf("writing EOF marker: %w", err)
	}

	return nil
}

// Close flushes the cached header and closes the underlying file.
func (t *Table) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.flushHeaderLocked(); err != nil {
		return err
	}

	return t.file.Close()
}

func (t *Table) flushHeaderLocked() error {
	if _, err := t.file.WriteAt(t.header.Bytes(), 0); err != nil {
		return fmt.Errorf("flushing table header: %w", err)
	}

	return nil
}

func (t *Table) recordOffset(recno uint32) int64 {
	return int64(t.header.HeaderSize) + int64(recno)*int64(t.header.RecordSize)
}

// ReadRow reads the record at the given zero-based record number.
func (t *Table) ReadRow(recno uint32) (Row, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if recno >= t.header.RecordCount {
		return Row{}, fmt.Errorf("%w: record %d", errs.ErrNotFound, recno)
	}

	buf := make([]byte, t.header.RecordSize)
	if _, err := t.file.ReadAt(buf, t.recordOffset(recno)); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return Row{}, fmt.Errorf("%w: record %d truncated", errs.ErrCorruptTable, recno)
		}

		return Row{}, fmt.Errorf("reading record %d: %w", recno, err)
	}

	return t.decodeRecord(buf)
}

func (t *Table) decodeRecord(buf []byte) (Row, error) {
	if ac := t.cfg.AssertContext; ac != nil {
		ac.Check(len(buf) == int(t.header.RecordSize), "decodeRecord: buffer length matches header record size")
	}

	row := Row{
		Deleted: buf[0] == section.RecordDeleted,
		Values:  make(map[string]Value, len(t.schema)),
	}
	for _, f := range t.schema {
		raw := buf[f.Offset : f.Offset+int(f.Length)]
		v, err := decodeField(raw, f, t.cfg.TrimSpaces)
		if err != nil {
			return Row{}, err
		}
		row.Values[f.Name] = v
	}

	return row, nil
}

// WriteRow overwrites the record at recno in place.
func (t *Table) WriteRow(recno uint32, row Row) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if recno >= t.header.RecordCount {
		return fmt.Errorf("%w: record %d", errs.ErrNotFound, recno)
	}

	buf, err := t.encodeRecord(row)
	if err != nil {
		return err
	}

	if _, err := t.file.WriteAt(buf, t.recordOffset(recno)); err != nil {
		return fmt.Errorf("writing record %d: %w", recno, err)
	}

	return nil
}

func (t *Table) encodeRecord(row Row) ([]byte, error) {
	if ac := t.cfg.AssertContext; ac != nil {
		ac.Check(len(t.schema) > 0, "encodeRecord: schema has at least one field")
	}

	buf := make([]byte, t.header.RecordSize)
	if row.Deleted {
		buf[0] = section.RecordDeleted
	} else {
		buf[0] = section.RecordLive
	}

	for _, f := range t.schema {
		v := row.Values[f.Name]
		encoded, err := encodeField(v, f)
		if err != nil {
			return nil, err
		}
		copy(buf[f.Offset:f.Offset+int(f.Length)], encoded)
	}

	return buf, nil
}

// Append writes row as a new record past the current end of the table and
// bumps the record count.
func (t *Table) Append(row Row) (recno uint32, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	recno = t.header.RecordCount
	buf, err := t.encodeRecord(row)
	if err != nil {
		return 0, err
	}

	// The byte at this offset is the stale EOF marker left by the previous
	// Append (or, for the first record, by writeLayout); WriteAt overwrites
	// it in place rather than leaving it behind.
	if _, err := t.file.WriteAt(buf, t.recordOffset(recno)); err != nil {
		return 0, fmt.Errorf("appending record: %w", err)
	}
	if _, err := t.file.WriteAt([]byte{section.EOFMarker}, t.recordOffset(recno+1)); err != nil {
		return 0, fmt.Errorf("writing EOF marker: %w", err)
	}

	t.header.RecordCount++
	if err := t.flushHeaderLocked(); err != nil {
		return 0, err
	}

	return recno, nil
}

// SetDeleted mutates only the delete flag byte of a record, without
// touching its field values.
func (t *Table) SetDeleted(recno uint32, deleted bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if recno >= t.header.RecordCount {
		return fmt.Errorf("%w: record %d", errs.ErrNotFound, recno)
	}

	flag := []byte{section.RecordLive}
	if deleted {
		flag[0] = section.RecordDeleted
	}

	if _, err := t.file.WriteAt(flag, t.recordOffset(recno)); err != nil {
		return fmt.Errorf("setting delete flag on record %d: %w", recno, err)
	}

	return nil
}

// ModifiedDate returns the header's stamped (year, month, day), with year
// already offset from its stored "years since 1900" form.
func (t *Table) ModifiedDate() (year int, month, day uint8) {
	return 1900 + int(t.header.Year), t.header.Month, t.header.Day
}

// LanguageDriver returns the raw language driver byte. It is zero for
// dBase III tables, which carry no language driver.
func (t *Table) LanguageDriver() uint8 { return t.header.LanguageDriver }

// Logger returns the structured logger this table was configured with.
func (t *Table) Logger() *logrus.Logger { return t.cfg.Logger }
