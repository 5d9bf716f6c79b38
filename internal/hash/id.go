// Package hash derives stable 64-bit identifiers via xxHash64. The engine
// keys its emitted-metadata dedup set on these, and rawlog checksums its
// chunks with the byte variant.
package hash

import "github.com/cespare/xxhash/v2"

// ID computes the xxHash64 of the given string.
func ID(data string) uint64 {
	return xxhash.Sum64String(data)
}

// Sum computes the xxHash64 of the given bytes.
func Sum(data []byte) uint64 {
	return xxhash.Sum64(data)
}
