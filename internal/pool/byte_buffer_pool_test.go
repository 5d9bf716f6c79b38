package pool

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestByteBuffer_AppendConsume(t *testing.T) {
	bb := NewByteBuffer(16)

	bb.Append([]byte{1, 2, 3, 4, 5})
	require.Equal(t, 5, bb.Len())

	bb.Consume(2)
	require.Equal(t, []byte{3, 4, 5}, bb.Bytes())

	bb.Append([]byte{6})
	require.Equal(t, []byte{3, 4, 5, 6}, bb.Bytes())

	bb.Consume(10)
	require.Equal(t, 0, bb.Len())

	bb.Consume(1) // no-op on empty buffer
	require.Equal(t, 0, bb.Len())
}

func TestByteBuffer_ConsumeKeepsCapacity(t *testing.T) {
	bb := NewByteBuffer(8)
	bb.Append(make([]byte, 64))
	capBefore := cap(bb.B)

	bb.Consume(32)
	require.Equal(t, capBefore, cap(bb.B), "consume must slide, not reallocate")
	require.Equal(t, 32, bb.Len())
}

func TestByteBufferPool_DiscardsOversized(t *testing.T) {
	p := NewByteBufferPool(8, 64)

	small := p.Get()
	small.Append(make([]byte, 16))
	p.Put(small)

	big := NewByteBuffer(128)
	big.Append(make([]byte, 128))
	p.Put(big) // over threshold, dropped

	got := p.Get()
	require.Equal(t, 0, got.Len(), "pooled buffers come back empty")
}
