package interchange

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/wing32s/dbase3/compress"
	"github.com/wing32s/dbase3/format"
	"github.com/wing32s/dbase3/memo"
	"github.com/wing32s/dbase3/table"
)

// archiveMagic byte values double as the format.CompressionType they name,
// since every CompressionType constant (0x1..0x4) falls outside the ASCII
// range a plain .TXT/.MEM stream starts with (a field name or a decimal
// block number). A reader can therefore tell compressed from plain by
// peeking one byte.
func isArchiveMagic(b byte) bool {
	switch format.CompressionType(b) {
	case format.CompressionNone, format.CompressionZstd, format.CompressionS2, format.CompressionLZ4:
		return true
	default:
		return false
	}
}

// ExportTextCompressed writes tbl's text interchange form to w, compressed
// with codec and prefixed with a one-byte codec tag.
func ExportTextCompressed(w io.Writer, tbl *table.Table, codec format.CompressionType) error {
	var buf bytes.Buffer
	if err := ExportText(&buf, tbl); err != nil {
		return err
	}

	return writeArchive(w, buf.Bytes(), codec)
}

// ImportTextAuto reads either a plain or codec-tagged text interchange
// stream from r, transparently decompressing when tagged, and creates a
// new table at path.
func ImportTextAuto(r io.Reader, path string, opts ...table.Option) (*table.Table, error) {
	payload, err := readArchive(r)
	if err != nil {
		return nil, err
	}

	return ImportText(bytes.NewReader(payload), path, opts...)
}

// ExportMemoCompressed writes tbl's memo interchange form to w, compressed
// with codec and prefixed with a one-byte codec tag.
func ExportMemoCompressed(w io.Writer, tbl *table.Table, m *memo.Memo, codec format.CompressionType) error {
	var buf bytes.Buffer
	if err := ExportMemo(&buf, tbl, m); err != nil {
		return err
	}

	return writeArchive(w, buf.Bytes(), codec)
}

// ImportMemoAuto reads either a plain or codec-tagged memo interchange
// stream from r, transparently decompressing when tagged.
func ImportMemoAuto(r io.Reader, tbl *table.Table, m *memo.Memo) error {
	payload, err := readArchive(r)
	if err != nil {
		return err
	}

	return ImportMemo(bytes.NewReader(payload), tbl, m)
}

func writeArchive(w io.Writer, plain []byte, codecType format.CompressionType) error {
	codec, err := compress.CreateCodec(codecType, "interchange archive")
	if err != nil {
		return err
	}

	compressed, err := codec.Compress(plain)
	if err != nil {
		return fmt.Errorf("compressing interchange archive: %w", err)
	}

	if _, err := w.Write([]byte{byte(codecType)}); err != nil {
		return err
	}
	_, err = w.Write(compressed)

	return err
}

func readArchive(r io.Reader) ([]byte, error) {
	br := bufio.NewReader(r)

	tag, err := br.Peek(1)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("peeking interchange archive tag: %w", err)
	}
	if len(tag) == 0 || !isArchiveMagic(tag[0]) {
		return io.ReadAll(br)
	}

	if _, err := br.Discard(1); err != nil {
		return nil, err
	}

	compressed, err := io.ReadAll(br)
	if err != nil {
		return nil, fmt.Errorf("reading interchange archive: %w", err)
	}

	codec, err := compress.CreateCodec(format.CompressionType(tag[0]), "interchange archive")
	if err != nil {
		return nil, err
	}

	plain, err := codec.Decompress(compressed)
	if err != nil {
		return nil, fmt.Errorf("decompressing interchange archive: %w", err)
	}

	return plain, nil
}
