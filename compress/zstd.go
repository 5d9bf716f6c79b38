package compress

// ZstdCompressor reaches the best ratio of the supported codecs; the
// default for archived captures. Two implementations exist behind build
// tags: the pure-Go klauspost encoder (default) and a cgo binding to
// libzstd for hosts where the extra throughput matters.
type ZstdCompressor struct{}

var _ Codec = (*ZstdCompressor)(nil)

// NewZstdCompressor creates a Zstandard codec with default settings.
func NewZstdCompressor() ZstdCompressor {
	return ZstdCompressor{}
}
