//go:build cgozstd

package compress

import "github.com/valyala/gozstd"

// cgo binding to libzstd. Noticeably faster on large archival captures;
// opt in with -tags cgozstd.

// Compress compresses the chunk with Zstandard.
func (c ZstdCompressor) Compress(data []byte) ([]byte, error) {
	return gozstd.CompressLevel(nil, data, 3), nil
}

// Decompress reverses Compress.
func (c ZstdCompressor) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	return gozstd.Decompress(nil, data)
}
