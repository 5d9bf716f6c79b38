// Package rawlog persists the raw target byte stream for offline replay.
//
// A capture file is a fixed header followed by length-framed chunks:
//
//	header: magic "EMTR" | version u8 | compression u8
//	chunk:  payload length u32 LE | xxHash64 of payload u64 LE | payload
//
// Each chunk compresses independently with the codec named in the header,
// so readers stream captures without loading them whole, and a truncated
// tail costs only the final chunk. The checksum covers the compressed
// payload; a mismatch indicates on-disk corruption, distinct from the
// in-stream corruption the decoder resynchronizes over.
package rawlog

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/embertrace/embertrace/compress"
	"github.com/embertrace/embertrace/errs"
	"github.com/embertrace/embertrace/format"
	"github.com/embertrace/embertrace/internal/hash"
)

// Magic identifies capture files.
const Magic = "EMTR"

// Version is the current capture file version.
const Version = 1

const headerSize = len(Magic) + 2

// maxChunkSize bounds a reader's allocation for one chunk; anything larger
// is corruption.
const maxChunkSize = 16 * 1024 * 1024

// Recorder writes capture chunks to an output stream.
type Recorder struct {
	out   io.Writer
	codec compress.Codec
}

// NewRecorder writes a capture header to out and returns a Recorder whose
// chunks compress with ct.
func NewRecorder(out io.Writer, ct format.CompressionType) (*Recorder, error) {
	codec, err := compress.NewCodec(ct)
	if err != nil {
		return nil, fmt.Errorf("rawlog: %w", err)
	}

	header := make([]byte, 0, headerSize)
	header = append(header, Magic...)
	header = append(header, Version, byte(ct))
	if _, err := out.Write(header); err != nil {
		return nil, fmt.Errorf("rawlog: writing header: %w", err)
	}

	return &Recorder{out: out, codec: codec}, nil
}

// WriteChunk records one chunk of raw stream bytes. Empty chunks are
// dropped silently.
func (r *Recorder) WriteChunk(data []byte) error {
	if len(data) == 0 {
		return nil
	}

	payload, err := r.codec.Compress(data)
	if err != nil {
		return fmt.Errorf("rawlog: compressing chunk: %w", err)
	}

	var frame [12]byte
	binary.LittleEndian.PutUint32(frame[0:4], uint32(len(payload)))
	binary.LittleEndian.PutUint64(frame[4:12], hash.Sum(payload))

	if _, err := r.out.Write(frame[:]); err != nil {
		return fmt.Errorf("rawlog: writing chunk frame: %w", err)
	}
	if _, err := r.out.Write(payload); err != nil {
		return fmt.Errorf("rawlog: writing chunk payload: %w", err)
	}

	return nil
}

// Reader replays capture chunks.
type Reader struct {
	in    io.Reader
	codec compress.Codec

	compression format.CompressionType
}

// NewReader validates the capture header of in and returns a chunk reader.
func NewReader(in io.Reader) (*Reader, error) {
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(in, header); err != nil {
		return nil, fmt.Errorf("%w: short header: %w", errs.ErrInvalidRawLog, err)
	}
	if string(header[:len(Magic)]) != Magic {
		return nil, fmt.Errorf("%w: bad magic", errs.ErrInvalidRawLog)
	}
	if header[len(Magic)] != Version {
		return nil, fmt.Errorf("%w: unsupported version %d", errs.ErrInvalidRawLog, header[len(Magic)])
	}

	ct := format.CompressionType(header[len(Magic)+1])
	codec, err := compress.NewCodec(ct)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrInvalidRawLog, err)
	}

	return &Reader{in: in, codec: codec, compression: ct}, nil
}

// Compression returns the codec tag the capture was written with.
func (r *Reader) Compression() format.CompressionType {
	return r.compression
}

// ReadChunk returns the next chunk of raw stream bytes, or io.EOF after
// the last complete chunk.
func (r *Reader) ReadChunk() ([]byte, error) {
	var frame [12]byte
	if _, err := io.ReadFull(r.in, frame[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}

		return nil, fmt.Errorf("%w: short chunk frame: %w", errs.ErrInvalidRawLog, err)
	}

	size := binary.LittleEndian.Uint32(frame[0:4])
	sum := binary.LittleEndian.Uint64(frame[4:12])
	if size == 0 || size > maxChunkSize {
		return nil, fmt.Errorf("%w: chunk size %d", errs.ErrInvalidRawLog, size)
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(r.in, payload); err != nil {
		return nil, fmt.Errorf("%w: short chunk payload: %w", errs.ErrInvalidRawLog, err)
	}

	if hash.Sum(payload) != sum {
		return nil, fmt.Errorf("%w: chunk checksum mismatch", errs.ErrInvalidRawLog)
	}

	data, err := r.codec.Decompress(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: decompressing chunk: %v", errs.ErrInvalidRawLog, err)
	}

	return data, nil
}

// ReplayFile feeds every chunk of a capture file to fn in order.
func ReplayFile(path string, fn func(chunk []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("rawlog: %w", err)
	}
	defer f.Close()

	r, err := NewReader(f)
	if err != nil {
		return err
	}

	for {
		chunk, err := r.ReadChunk()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(chunk); err != nil {
			return err
		}
	}
}
