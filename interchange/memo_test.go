package interchange

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wing32s/dbase3/format"
	"github.com/wing32s/dbase3/memo"
	"github.com/wing32s/dbase3/section"
	"github.com/wing32s/dbase3/table"
)

func TestExportImportMemo_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	schema := section.Schema{
		{Name: "NAME", Type: format.Character, Length: 10},
		{Name: "NOTES", Type: format.Memo, Length: 10},
	}

	srcTablePath := filepath.Join(dir, "notes.dbf")
	src, err := table.Create(srcTablePath, schema)
	require.NoError(t, err)
	defer src.Close()

	srcMemo, err := memo.Create(filepath.Join(dir, "notes.dbt"), format.VersionDBaseIVMemo)
	require.NoError(t, err)
	defer srcMemo.Close()

	block1, err := srcMemo.Write([]byte("first entry"), format.MemoTypeText)
	require.NoError(t, err)
	block2, err := srcMemo.Write([]byte("second, a bit longer entry"), format.MemoTypeText)
	require.NoError(t, err)

	_, err = src.Append(table.Row{Values: map[string]table.Value{"NAME": "A", "NOTES": block1}})
	require.NoError(t, err)
	_, err = src.Append(table.Row{Values: map[string]table.Value{"NAME": "B", "NOTES": block2}})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, ExportMemo(&buf, src, srcMemo))

	lines := bytes.Count(buf.Bytes(), []byte("\n"))
	require.Equal(t, 2, lines)
	require.Contains(t, buf.String(), "0|1|")
	require.Contains(t, buf.String(), "1|1|")

	dstTablePath := filepath.Join(dir, "notes-reimported.dbf")
	dst, err := table.Create(dstTablePath, schema)
	require.NoError(t, err)
	defer dst.Close()
	_, err = dst.Append(table.Row{Values: map[string]table.Value{"NAME": "A"}})
	require.NoError(t, err)
	_, err = dst.Append(table.Row{Values: map[string]table.Value{"NAME": "B"}})
	require.NoError(t, err)

	dstMemo, err := memo.Create(filepath.Join(dir, "notes-reimported.dbt"), format.VersionDBaseIVMemo)
	require.NoError(t, err)
	defer dstMemo.Close()

	require.NoError(t, ImportMemo(&buf, dst, dstMemo))

	row0, err := dst.ReadRow(0)
	require.NoError(t, err)
	newBlock1, _ := row0.Values["NOTES"].(uint32)
	require.NotZero(t, newBlock1)
	payload1, err := dstMemo.Read(newBlock1)
	require.NoError(t, err)
	require.Equal(t, "first entry", string(payload1))

	row1, err := dst.ReadRow(1)
	require.NoError(t, err)
	newBlock2, _ := row1.Values["NOTES"].(uint32)
	require.NotZero(t, newBlock2)
	payload2, err := dstMemo.Read(newBlock2)
	require.NoError(t, err)
	require.Equal(t, "second, a bit longer entry", string(payload2))
}
