// Package compress provides the block codecs used by raw stream capture
// files.
//
// Raw captures chunk the target byte stream; each chunk compresses
// independently so a reader can stream a capture without holding the whole
// file. Event data is dense binary but highly repetitive (header bytes and
// small deltas dominate), so even the fast codecs reach useful ratios.
package compress

import (
	"fmt"

	"github.com/embertrace/embertrace/format"
)

// Compressor compresses one chunk. The returned slice is newly allocated
// and owned by the caller; the input is not modified.
type Compressor interface {
	Compress(data []byte) ([]byte, error)
}

// Decompressor reverses Compressor. Returns an error when the input is
// corrupt or was produced by a different algorithm.
type Decompressor interface {
	Decompress(data []byte) ([]byte, error)
}

// Codec combines both directions.
type Codec interface {
	Compressor
	Decompressor
}

// NewCodec returns the codec for a capture file's compression tag.
func NewCodec(ct format.CompressionType) (Codec, error) {
	switch ct {
	case format.CompressionNone:
		return NewNoOpCompressor(), nil
	case format.CompressionZstd:
		return NewZstdCompressor(), nil
	case format.CompressionS2:
		return NewS2Compressor(), nil
	case format.CompressionLZ4:
		return NewLZ4Compressor(), nil
	default:
		return nil, fmt.Errorf("unsupported compression type: %v", ct)
	}
}
