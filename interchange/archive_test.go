package interchange

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wing32s/dbase3/format"
)

func TestExportImportTextCompressed_RoundTrip(t *testing.T) {
	tbl := buildPlayersTable(t)
	defer tbl.Close()

	var buf bytes.Buffer
	require.NoError(t, ExportTextCompressed(&buf, tbl, format.CompressionZstd))
	require.True(t, isArchiveMagic(buf.Bytes()[0]))

	dstPath := filepath.Join(t.TempDir(), "reimported.dbf")
	reimported, err := ImportTextAuto(&buf, dstPath)
	require.NoError(t, err)
	defer reimported.Close()

	require.Equal(t, uint32(1), reimported.RecordCount())
}

func TestImportTextAuto_AcceptsPlainStream(t *testing.T) {
	tbl := buildPlayersTable(t)
	defer tbl.Close()

	var buf bytes.Buffer
	require.NoError(t, ExportText(&buf, tbl))

	dstPath := filepath.Join(t.TempDir(), "plain-reimported.dbf")
	reimported, err := ImportTextAuto(&buf, dstPath)
	require.NoError(t, err)
	defer reimported.Close()

	require.Equal(t, uint32(1), reimported.RecordCount())
}
