// Package compress provides compression and decompression codecs for the
// .TXT/.MEM interchange streams produced by package interchange.
//
// It never touches the byte-exact .DBF/.DBT/.NDX formats: those are parsed
// and emitted verbatim. Compression is purely an interchange-layer
// convenience for callers who want to ship an export/backup as a smaller
// file.
//
// # Supported algorithms
//
//   - None (format.CompressionNone): passthrough, zero overhead.
//   - Zstd (format.CompressionZstd): best ratio, moderate speed; good for
//     cold-storage archival exports.
//   - S2 (format.CompressionS2): balanced ratio/speed; good default for
//     routine exports.
//   - LZ4 (format.CompressionLZ4): fastest decompression; good when exports
//     are re-imported frequently.
//
// # Architecture
//
//	type Compressor interface { Compress(data []byte) ([]byte, error) }
//	type Decompressor interface { Decompress(data []byte) ([]byte, error) }
//	type Codec interface { Compressor; Decompressor }
//
// CreateCodec and GetCodec construct a Codec from a format.CompressionType,
// so interchange.ExportTextCompressed/ExportMemoCompressed and
// ImportTextAuto/ImportMemoAuto only need to carry the CompressionType enum
// value, not a concrete codec type.
package compress
