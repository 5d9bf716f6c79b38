package rawlog

import (
	"bytes"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/embertrace/embertrace/errs"
	"github.com/embertrace/embertrace/format"
)

func TestRawLog_RoundTripAllCodecs(t *testing.T) {
	chunks := [][]byte{
		{0x00, 0x0A, 0x29},
		bytes.Repeat([]byte{0x00, 0x05, 0x08, 0x64, 0x00}, 100),
		{0xFF},
	}

	for _, ct := range []format.CompressionType{
		format.CompressionNone,
		format.CompressionZstd,
		format.CompressionS2,
		format.CompressionLZ4,
	} {
		var buf bytes.Buffer
		rec, err := NewRecorder(&buf, ct)
		require.NoError(t, err, ct.String())

		for _, chunk := range chunks {
			require.NoError(t, rec.WriteChunk(chunk))
		}

		r, err := NewReader(bytes.NewReader(buf.Bytes()))
		require.NoError(t, err, ct.String())
		require.Equal(t, ct, r.Compression())

		for i, want := range chunks {
			got, err := r.ReadChunk()
			require.NoError(t, err, "%s chunk %d", ct, i)
			require.Equal(t, want, got)
		}

		_, err = r.ReadChunk()
		require.Equal(t, io.EOF, err)
	}
}

func TestRawLog_EmptyChunksDropped(t *testing.T) {
	var buf bytes.Buffer
	rec, err := NewRecorder(&buf, format.CompressionNone)
	require.NoError(t, err)

	require.NoError(t, rec.WriteChunk(nil))
	require.NoError(t, rec.WriteChunk([]byte{}))

	r, err := NewReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	_, err = r.ReadChunk()
	require.Equal(t, io.EOF, err)
}

func TestRawLog_BadMagic(t *testing.T) {
	_, err := NewReader(bytes.NewReader([]byte("NOPE\x01\x01")))
	require.ErrorIs(t, err, errs.ErrInvalidRawLog)
}

func TestRawLog_BadVersion(t *testing.T) {
	_, err := NewReader(bytes.NewReader([]byte("EMTR\x63\x01")))
	require.ErrorIs(t, err, errs.ErrInvalidRawLog)
}

func TestRawLog_ChecksumMismatch(t *testing.T) {
	var buf bytes.Buffer
	rec, err := NewRecorder(&buf, format.CompressionNone)
	require.NoError(t, err)
	require.NoError(t, rec.WriteChunk([]byte{1, 2, 3, 4}))

	// Flip one payload byte.
	data := buf.Bytes()
	data[len(data)-1] ^= 0xFF

	r, err := NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	_, err = r.ReadChunk()
	require.ErrorIs(t, err, errs.ErrInvalidRawLog)
}

func TestRawLog_TruncatedTail(t *testing.T) {
	var buf bytes.Buffer
	rec, err := NewRecorder(&buf, format.CompressionNone)
	require.NoError(t, err)
	require.NoError(t, rec.WriteChunk([]byte{1, 2, 3, 4}))
	require.NoError(t, rec.WriteChunk([]byte{5, 6, 7, 8}))

	// Cut into the second chunk's payload.
	data := buf.Bytes()[:buf.Len()-2]

	r, err := NewReader(bytes.NewReader(data))
	require.NoError(t, err)

	first, err := r.ReadChunk()
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3, 4}, first)

	_, err = r.ReadChunk()
	require.ErrorIs(t, err, errs.ErrInvalidRawLog)
}

func TestReplayFile(t *testing.T) {
	path := t.TempDir() + "/session.emt"

	f, err := os.Create(path)
	require.NoError(t, err)
	rec, err := NewRecorder(f, format.CompressionS2)
	require.NoError(t, err)
	require.NoError(t, rec.WriteChunk([]byte{0xAA}))
	require.NoError(t, rec.WriteChunk([]byte{0xBB, 0xCC}))
	require.NoError(t, f.Close())

	var replayed []byte
	require.NoError(t, ReplayFile(path, func(chunk []byte) error {
		replayed = append(replayed, chunk...)

		return nil
	}))
	require.Equal(t, []byte{0xAA, 0xBB, 0xCC}, replayed)
}
