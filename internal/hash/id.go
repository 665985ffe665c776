// Package hash wraps xxHash64 for the diagnostic digests computed over
// heap-map and bulk-built NDX byte buffers. These digests are never part
// of a persisted .DBF/.DBT/.NDX file; they only help a caller detect
// whether two in-memory buffers diverge.
package hash

import "github.com/cespare/xxhash/v2"

// ID computes the xxHash64 of the given string.
func ID(data string) uint64 {
	return xxhash.Sum64String(data)
}

// Digest computes the xxHash64 of the given byte buffer.
func Digest(data []byte) uint64 {
	return xxhash.Sum64(data)
}
