package table

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wing32s/dbase3/assertctx"
	"github.com/wing32s/dbase3/format"
	"github.com/wing32s/dbase3/section"
)

func testSchema() section.Schema {
	return section.Schema{
		{Name: "ID", Type: format.Numeric, Length: 6, Decimals: 0},
		{Name: "NAME", Type: format.Character, Length: 20},
		{Name: "ACTIVE", Type: format.Logical, Length: 1},
	}
}

func TestCreateOpenAppendReadRow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "people.dbf")

	tbl, err := Create(path, testSchema())
	require.NoError(t, err)

	recno, err := tbl.Append(Row{Values: map[string]Value{
		"ID":     float64(42),
		"NAME":   "ADA",
		"ACTIVE": true,
	}})
	require.NoError(t, err)
	require.Equal(t, uint32(0), recno)
	require.NoError(t, tbl.Close())

	reopened, err := Open(path, WithTrimSpaces(true))
	require.NoError(t, err)
	defer reopened.Close()

	require.Equal(t, uint32(1), reopened.RecordCount())

	row, err := reopened.ReadRow(0)
	require.NoError(t, err)
	require.False(t, row.Deleted)
	require.Equal(t, float64(42), row.Values["ID"])
	require.Equal(t, "ADA", row.Values["NAME"])
	require.Equal(t, true, row.Values["ACTIVE"])
}

func TestReadRow_OutOfRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.dbf")
	tbl, err := Create(path, testSchema())
	require.NoError(t, err)
	defer tbl.Close()

	_, err = tbl.ReadRow(0)
	require.Error(t, err)
}

func TestSetDeleted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "del.dbf")
	tbl, err := Create(path, testSchema())
	require.NoError(t, err)
	defer tbl.Close()

	_, err = tbl.Append(Row{Values: map[string]Value{"ID": float64(1), "NAME": "X", "ACTIVE": false}})
	require.NoError(t, err)

	require.NoError(t, tbl.SetDeleted(0, true))
	row, err := tbl.ReadRow(0)
	require.NoError(t, err)
	require.True(t, row.Deleted)
	require.Equal(t, "X", row.Values["NAME"])
}

func TestWriteRow_Overwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "write.dbf")
	tbl, err := Create(path, testSchema())
	require.NoError(t, err)
	defer tbl.Close()

	_, err = tbl.Append(Row{Values: map[string]Value{"ID": float64(1), "NAME": "OLD", "ACTIVE": false}})
	require.NoError(t, err)

	err = tbl.WriteRow(0, Row{Values: map[string]Value{"ID": float64(2), "NAME": "NEW", "ACTIVE": true}})
	require.NoError(t, err)

	row, err := tbl.ReadRow(0)
	require.NoError(t, err)
	require.Equal(t, "NEW                 ", row.Values["NAME"])
	require.Equal(t, float64(2), row.Values["ID"])
}

func TestEOFMarker_StampedAfterCreateAndAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eof.dbf")
	tbl, err := Create(path, testSchema())
	require.NoError(t, err)

	requireTrailingByte := func(want byte) {
		t.Helper()
		info, err := os.Stat(path)
		require.NoError(t, err)
		buf := make([]byte, 1)
		f, err := os.Open(path)
		require.NoError(t, err)
		defer f.Close()
		_, err = f.ReadAt(buf, info.Size()-1)
		require.NoError(t, err)
		require.Equal(t, want, buf[0])
	}
	requireTrailingByte(section.EOFMarker)

	_, err = tbl.Append(Row{Values: map[string]Value{"ID": float64(1), "NAME": "X", "ACTIVE": false}})
	require.NoError(t, err)
	requireTrailingByte(section.EOFMarker)

	_, err = tbl.Append(Row{Values: map[string]Value{"ID": float64(2), "NAME": "Y", "ACTIVE": true}})
	require.NoError(t, err)
	requireTrailingByte(section.EOFMarker)

	require.NoError(t, tbl.Close())
}

func TestEncodeField_NumericOverflow(t *testing.T) {
	_, err := encodeField(float64(123456789), section.FieldDescriptor{Type: format.Numeric, Length: 4, Decimals: 0})
	require.Error(t, err)
}

func TestAssertContext_RecordsChecksDuringReadWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "asserted.dbf")
	ac := &assertctx.Context{}
	ac.Begin()

	tbl, err := Create(path, testSchema(), WithAssertContext(ac))
	require.NoError(t, err)
	defer tbl.Close()

	_, err = tbl.Append(Row{Values: map[string]Value{"ID": float64(1), "NAME": "X", "ACTIVE": true}})
	require.NoError(t, err)

	_, err = tbl.ReadRow(0)
	require.NoError(t, err)

	passed, failed := ac.End()
	require.Zero(t, failed)
	require.Positive(t, passed)
}
