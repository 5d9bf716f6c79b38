package compress

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/embertrace/embertrace/format"
)

// sampleChunk imitates a capture chunk: repetitive header bytes and small
// deltas.
func sampleChunk() []byte {
	var buf bytes.Buffer
	for i := 0; i < 500; i++ {
		buf.Write([]byte{0x00, 0x0A, 0x29})             // poll start
		buf.Write([]byte{0x00, 0x05, 0x08, byte(i), 0}) // exec begin
		buf.Write([]byte{0x00, 0x14, 0x19})             // exec end
	}

	return buf.Bytes()
}

func TestCodecs_RoundTrip(t *testing.T) {
	types := []format.CompressionType{
		format.CompressionNone,
		format.CompressionZstd,
		format.CompressionS2,
		format.CompressionLZ4,
	}

	original := sampleChunk()
	for _, ct := range types {
		codec, err := NewCodec(ct)
		require.NoError(t, err, ct.String())

		compressed, err := codec.Compress(original)
		require.NoError(t, err, ct.String())

		restored, err := codec.Decompress(compressed)
		require.NoError(t, err, ct.String())
		require.Equal(t, original, restored, ct.String())
	}
}

func TestCodecs_CompressReducesRepetitiveData(t *testing.T) {
	original := sampleChunk()
	for _, ct := range []format.CompressionType{format.CompressionZstd, format.CompressionS2, format.CompressionLZ4} {
		codec, err := NewCodec(ct)
		require.NoError(t, err)

		compressed, err := codec.Compress(original)
		require.NoError(t, err)
		require.Less(t, len(compressed), len(original), ct.String())
	}
}

func TestCodecs_EmptyInput(t *testing.T) {
	for _, ct := range []format.CompressionType{format.CompressionZstd, format.CompressionS2, format.CompressionLZ4} {
		codec, err := NewCodec(ct)
		require.NoError(t, err)

		compressed, err := codec.Compress(nil)
		require.NoError(t, err)

		restored, err := codec.Decompress(compressed)
		require.NoError(t, err)
		require.Empty(t, restored, ct.String())
	}
}

func TestNewCodec_Unsupported(t *testing.T) {
	_, err := NewCodec(format.CompressionType(0x7F))
	require.Error(t, err)
}
