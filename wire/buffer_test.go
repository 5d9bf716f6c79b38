package wire

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/embertrace/embertrace/errs"
)

func TestWriter_ByteAndBytes(t *testing.T) {
	var w Writer
	w.WriteByte(0x12)
	w.WriteBytes([]byte{0x34, 0x56, 0x78})

	require.Equal(t, []byte{0x12, 0x34, 0x56, 0x78}, w.Bytes())
	require.Equal(t, 4, w.Len())

	w.Reset()
	require.Equal(t, 0, w.Len())
	require.Empty(t, w.Bytes())
}

func TestWriter_CheckedWrite(t *testing.T) {
	var w Writer
	require.NoError(t, w.CheckedWrite(make([]byte, WriterCapacity)))
	require.ErrorIs(t, w.CheckedWrite([]byte{1}), errs.ErrBufferFull)
	require.Equal(t, WriterCapacity, w.Len())
}

func TestReader_Sequence(t *testing.T) {
	r := NewReader([]byte{0x9A, 0xBC, 0xDE, 0xF0})

	b, err := r.ReadByte()
	require.NoError(t, err)
	require.Equal(t, byte(0x9A), b)

	bs, err := r.ReadBytes(2)
	require.NoError(t, err)
	require.Equal(t, []byte{0xBC, 0xDE}, bs)

	b, err = r.ReadByte()
	require.NoError(t, err)
	require.Equal(t, byte(0xF0), b)
	require.Equal(t, 0, r.Remaining())

	_, err = r.ReadByte()
	require.ErrorIs(t, err, errs.ErrTruncatedInput)
}

func TestReader_CString(t *testing.T) {
	r := NewReader([]byte{'w', 'o', 'r', 'k', 0, 0xAA})
	s, err := r.ReadCString(20)
	require.NoError(t, err)
	require.Equal(t, "work", s)
	require.Equal(t, 5, r.Pos())

	// Missing terminator within the remaining bytes.
	r = NewReader([]byte{'a', 'b'})
	_, err = r.ReadCString(20)
	require.ErrorIs(t, err, errs.ErrTruncatedInput)

	// Name longer than the limit.
	long := append(make([]byte, 25), 0)
	for i := range long[:25] {
		long[i] = 'x'
	}
	r = NewReader(long)
	_, err = r.ReadCString(20)
	require.ErrorIs(t, err, errs.ErrInvalidName)
}
