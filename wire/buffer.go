package wire

import (
	"fmt"

	"github.com/embertrace/embertrace/errs"
)

// WriterCapacity is the fixed capacity of the event serialization buffer.
//
// The protocol guarantees every single event fits: the worst case is a
// 4-byte extended time delta, the header byte, the type-definition sub-kind
// byte, two fixed fields and a 20-byte NUL-terminated name. Keeping the
// buffer on the stack bounds the length of the target-side critical section.
const WriterCapacity = 32

// Writer serializes one event into a fixed 32-byte buffer.
//
// The zero value is ready to use. Writes past the capacity panic; callers
// uphold the protocol bound instead of checking. CheckedWrite exists for
// paths that serialize caller-supplied names.
type Writer struct {
	buf [WriterCapacity]byte
	pos int
}

// WriteByte appends a single byte.
func (w *Writer) WriteByte(b byte) {
	w.buf[w.pos] = b
	w.pos++
}

// WriteBytes appends data. The caller guarantees capacity.
func (w *Writer) WriteBytes(data []byte) {
	n := copy(w.buf[w.pos:], data)
	if n < len(data) {
		panic(fmt.Sprintf("wire: event exceeds %d-byte buffer", WriterCapacity))
	}
	w.pos += n
}

// CheckedWrite appends data, returning ErrBufferFull instead of panicking
// when the buffer cannot hold it.
func (w *Writer) CheckedWrite(data []byte) error {
	if w.pos+len(data) > WriterCapacity {
		return fmt.Errorf("%w: %d bytes over", errs.ErrBufferFull, w.pos+len(data)-WriterCapacity)
	}
	copy(w.buf[w.pos:], data)
	w.pos += len(data)

	return nil
}

// Bytes returns the written prefix of the buffer. The slice aliases the
// writer and is valid until the next write or Reset.
func (w *Writer) Bytes() []byte {
	return w.buf[:w.pos]
}

// Len returns the number of bytes written.
func (w *Writer) Len() int {
	return w.pos
}

// Reset discards all written bytes.
func (w *Writer) Reset() {
	w.pos = 0
}

// Reader is a cursor over an immutable byte slice.
//
// All read methods return errs.ErrTruncatedInput once the slice is
// exhausted; Pos reports how many bytes were consumed so a streaming caller
// can retain the unread tail.
type Reader struct {
	buf []byte
	pos int
}

// NewReader returns a Reader over data. The reader does not copy; the caller
// must not mutate data while reading.
func NewReader(data []byte) *Reader {
	return &Reader{buf: data}
}

// ReadByte consumes and returns one byte.
func (r *Reader) ReadByte() (byte, error) {
	if r.pos >= len(r.buf) {
		return 0, errs.ErrTruncatedInput
	}
	b := r.buf[r.pos]
	r.pos++

	return b, nil
}

// ReadBytes consumes n bytes and returns them as a subslice of the
// underlying buffer.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if r.pos+n > len(r.buf) {
		return nil, errs.ErrTruncatedInput
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n

	return b, nil
}

// ReadCString consumes bytes up to and including a NUL terminator and
// returns the string before it. maxLen bounds the scan; exceeding it yields
// ErrInvalidName, a missing terminator yields ErrTruncatedInput.
func (r *Reader) ReadCString(maxLen int) (string, error) {
	for i := 0; i <= maxLen; i++ {
		if r.pos+i >= len(r.buf) {
			return "", errs.ErrTruncatedInput
		}
		if r.buf[r.pos+i] == 0 {
			s := string(r.buf[r.pos : r.pos+i])
			r.pos += i + 1

			return s, nil
		}
	}

	return "", fmt.Errorf("%w: name exceeds %d bytes", errs.ErrInvalidName, maxLen)
}

// Pos returns the number of consumed bytes.
func (r *Reader) Pos() int {
	return r.pos
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.buf) - r.pos
}
