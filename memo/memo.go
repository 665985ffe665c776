// Package memo implements the memo codec (.DBT): creating and opening a
// memo file, appending blocks, and reading blocks back, across both the
// dBase III and dBase IV/V block framings.
package memo

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/wing32s/dbase3/endian"
	"github.com/wing32s/dbase3/errs"
	"github.com/wing32s/dbase3/format"
	"github.com/wing32s/dbase3/section"
)

// blockTerminator is the single byte that follows a memo payload in both
// the dBase III and dBase IV/V framings.
var blockTerminator = []byte{0x1A}

// Memo is an open handle to a .DBT memo file.
type Memo struct {
	mu      sync.Mutex
	file    *os.File
	header  section.DBTHeader
	framing format.MemoFraming
}

// Info describes one memo block without reading its full payload.
type Info struct {
	Block   uint32
	Type    format.MemoType
	Length  int
	NBlocks int
}

// Create creates a new, empty .DBT file whose first free block is 1
// (block 0 is reserved for the header).
func Create(path string, version format.Version) (*Memo, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("creating memo file: %w", err)
	}

	header := section.DBTHeader{NextFree: 1, BlockSize: section.DBTBlockSize}
	if _, err := f.Write(header.Bytes()); err != nil {
		_ = f.Close()

		return nil, fmt.Errorf("writing memo header: %w", err)
	}

	return &Memo{file: f, header: header, framing: format.ResolveFraming(version)}, nil
}

// Open opens an existing .DBT file, resolving its block framing from the
// owning table's version.
func Open(path string, version format.Version) (*Memo, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: opening memo file: %w", errs.ErrNotFound, err)
		}

		return nil, fmt.Errorf("opening memo file: %w", err)
	}

	buf := make([]byte, section.DBTBlockSize)
	if _, err := io.ReadFull(f, buf); err != nil {
		_ = f.Close()

		return nil, fmt.Errorf("%w: reading memo header: %w", errs.ErrCorruptMemo, err)
	}

	header, err := section.ParseDBTHeader(buf)
	if err != nil {
		_ = f.Close()

		return nil, err
	}

	return &Memo{file: f, header: header, framing: format.ResolveFraming(version)}, nil
}

// Close flushes the cached header and closes the underlying file.
func (m *Memo) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.file.WriteAt(m.header.Bytes(), 0); err != nil {
		return fmt.Errorf("flushing memo header: %w", err)
	}

	return m.file.Close()
}

func (m *Memo) blockOffset(block uint32) int64 {
	return int64(block) * int64(section.DBTBlockSize)
}

// Write appends payload as a new memo entry and returns the block number
// it was written at. The entry occupies ceil(total/BlockSize) blocks, where
// total is the payload length plus the 1-byte 0x1A terminator, plus the
// 8-byte type+length prefix under the IV/V framing.
func (m *Memo) Write(payload []byte, memoType format.MemoType) (block uint32, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	block = m.header.NextFree

	var framed []byte
	switch m.framing {
	case format.FramingIVPlus:
		framed = make([]byte, section.MemoPayloadHeaderSize+len(payload)+len(blockTerminator))
		engine := endian.GetLittleEndianEngine()
		engine.PutUint32(framed[0:4], uint32(memoType))
		engine.PutUint32(framed[4:8], uint32(len(payload)))
		copy(framed[section.MemoPayloadHeaderSize:], payload)
		copy(framed[section.MemoPayloadHeaderSize+len(payload):], blockTerminator)
	default: // FramingIII
		framed = make([]byte, len(payload)+len(blockTerminator))
		copy(framed, payload)
		copy(framed[len(payload):], blockTerminator)
	}

	if _, err := m.file.WriteAt(framed, m.blockOffset(block)); err != nil {
		return 0, fmt.Errorf("writing memo block %d: %w", block, err)
	}

	blocksUsed := (len(framed) + section.DBTBlockSize - 1) / section.DBTBlockSize
	if blocksUsed < 1 {
		blocksUsed = 1
	}
	m.header.NextFree += uint32(blocksUsed)

	return block, nil
}

// Info returns the type and byte length of the memo entry starting at
// block, without reading its full payload.
func (m *Memo) Info(block uint32) (Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if block == 0 {
		return Info{}, fmt.Errorf("%w: block 0 is reserved", errs.ErrInvalidArgument)
	}

	switch m.framing {
	case format.FramingIVPlus:
		hdr := make([]byte, section.MemoPayloadHeaderSize)
		if _, err := m.file.ReadAt(hdr, m.blockOffset(block)); err != nil {
			if err == io.EOF {
				// Block beyond end of file or a truncated header: empty memo.
				return Info{Block: block}, nil
			}

			return Info{}, fmt.Errorf("%w: reading memo block %d header: %w", errs.ErrCorruptMemo, block, err)
		}
		engine := endian.GetLittleEndianEngine()
		length := int(engine.Uint32(hdr[4:8]))

		return Info{
			Block:   block,
			Type:    format.MemoType(engine.Uint32(hdr[0:4])),
			Length:  length,
			NBlocks: (section.MemoPayloadHeaderSize + length + len(blockTerminator) + section.DBTBlockSize - 1) / section.DBTBlockSize,
		}, nil
	default:
		length, err := m.scanTerminatedLength(block)
		if err != nil {
			return Info{}, err
		}

		return Info{
			Block:   block,
			Type:    format.MemoTypeText,
			Length:  length,
			NBlocks: (length + len(blockTerminator) + section.DBTBlockSize - 1) / section.DBTBlockSize,
		}, nil
	}
}

// scanTerminatedLength reads forward from block in chunks until it finds
// the 0x1A terminator, returning the payload length before it. Without a
// terminator it returns the number of bytes scanned, up to end of file or
// the 1 MiB scan cap.
func (m *Memo) scanTerminatedLength(block uint32) (int, error) {
	const chunkSize = section.DBTBlockSize
	var total []byte
	offset := m.blockOffset(block)

	for i := 0; i < 1<<20/chunkSize; i++ { // bounded scan, no infinite loop on corrupt files
		chunk := make([]byte, chunkSize)
		n, err := m.file.ReadAt(chunk, offset+int64(len(total)))
		if n > 0 {
			total = append(total, chunk[:n]...)
		}
		if idx := bytes.Index(total, blockTerminator); idx >= 0 {
			return idx, nil
		}
		if err != nil {
			if err == io.EOF {
				break
			}

			return 0, fmt.Errorf("%w: scanning memo block %d: %w", errs.ErrCorruptMemo, block, err)
		}
	}

	return len(total), nil
}

// Read reads the full payload of the memo entry starting at block.
func (m *Memo) Read(block uint32) ([]byte, error) {
	info, err := m.Info(block)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	payload := make([]byte, info.Length)

	var payloadOffset int64
	switch m.framing {
	case format.FramingIVPlus:
		payloadOffset = m.blockOffset(block) + section.MemoPayloadHeaderSize
	default:
		payloadOffset = m.blockOffset(block)
	}

	if info.Length > 0 {
		if _, err := m.file.ReadAt(payload, payloadOffset); err != nil && err != io.EOF {
			return nil, fmt.Errorf("%w: reading memo block %d payload: %w", errs.ErrCorruptMemo, block, err)
		}
	}

	return payload, nil
}

// ReadChunk reads up to len(buf) bytes of the entry starting at block,
// beginning at byte offset within the payload, for streaming large memos
// without materializing the whole value.
func (m *Memo) ReadChunk(block uint32, offset int, buf []byte) (int, error) {
	info, err := m.Info(block)
	if err != nil {
		return 0, err
	}
	if offset >= info.Length {
		return 0, io.EOF
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var base int64
	switch m.framing {
	case format.FramingIVPlus:
		base = m.blockOffset(block) + section.MemoPayloadHeaderSize
	default:
		base = m.blockOffset(block)
	}

	remaining := info.Length - offset
	if len(buf) > remaining {
		buf = buf[:remaining]
	}

	n, err := m.file.ReadAt(buf, base+int64(offset))
	if err != nil && err != io.EOF {
		return n, fmt.Errorf("%w: reading memo block %d chunk: %w", errs.ErrCorruptMemo, block, err)
	}

	return n, nil
}
