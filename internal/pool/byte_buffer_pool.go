// Package pool provides pooled growable byte buffers for the host-side
// stream paths, keeping steady-state decoding allocation-free.
package pool

import "sync"

const (
	// StreamBufferDefaultSize sizes fresh buffers for the decoder's feed
	// window.
	StreamBufferDefaultSize = 4 * 1024
	// StreamBufferMaxThreshold drops oversized buffers instead of pooling
	// them, bounding memory held across bursts.
	StreamBufferMaxThreshold = 512 * 1024
)

// ByteBuffer is a growable byte slice with explicit consume support for
// streaming readers.
type ByteBuffer struct {
	B []byte
}

// NewByteBuffer creates a buffer with the given initial capacity.
func NewByteBuffer(defaultSize int) *ByteBuffer {
	return &ByteBuffer{B: make([]byte, 0, defaultSize)}
}

// Bytes returns the buffered data.
func (bb *ByteBuffer) Bytes() []byte {
	return bb.B
}

// Len returns the number of buffered bytes.
func (bb *ByteBuffer) Len() int {
	return len(bb.B)
}

// Reset empties the buffer, keeping its capacity.
func (bb *ByteBuffer) Reset() {
	bb.B = bb.B[:0]
}

// Append adds data to the end of the buffer, growing as needed.
func (bb *ByteBuffer) Append(data []byte) {
	bb.B = append(bb.B, data...)
}

// Consume discards the first n bytes, sliding the remainder to the front so
// the backing array keeps being reused.
func (bb *ByteBuffer) Consume(n int) {
	if n <= 0 {
		return
	}
	if n >= len(bb.B) {
		bb.B = bb.B[:0]

		return
	}
	remaining := copy(bb.B, bb.B[n:])
	bb.B = bb.B[:remaining]
}

// ByteBufferPool pools ByteBuffers, discarding those that grew past the
// configured threshold.
type ByteBufferPool struct {
	pool         sync.Pool
	maxThreshold int
}

// NewByteBufferPool creates a pool handing out buffers of defaultSize
// capacity and retiring buffers larger than maxThreshold.
func NewByteBufferPool(defaultSize, maxThreshold int) *ByteBufferPool {
	return &ByteBufferPool{
		pool: sync.Pool{
			New: func() any {
				return NewByteBuffer(defaultSize)
			},
		},
		maxThreshold: maxThreshold,
	}
}

// Get retrieves an empty buffer from the pool.
func (p *ByteBufferPool) Get() *ByteBuffer {
	bb, _ := p.pool.Get().(*ByteBuffer)

	return bb
}

// Put returns a buffer to the pool for reuse.
func (p *ByteBufferPool) Put(bb *ByteBuffer) {
	if bb == nil {
		return
	}
	if p.maxThreshold > 0 && cap(bb.B) > p.maxThreshold {
		return
	}
	bb.Reset()
	p.pool.Put(bb)
}

var streamPool = NewByteBufferPool(StreamBufferDefaultSize, StreamBufferMaxThreshold)

// GetStreamBuffer retrieves a buffer from the shared stream pool.
func GetStreamBuffer() *ByteBuffer {
	return streamPool.Get()
}

// PutStreamBuffer returns a buffer to the shared stream pool.
func PutStreamBuffer(bb *ByteBuffer) {
	streamPool.Put(bb)
}
