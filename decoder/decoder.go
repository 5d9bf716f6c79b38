// Package decoder reassembles the raw target byte stream into timestamped
// events.
//
// The transport delivers opaque byte chunks with no framing guarantees
// beyond "each event was one contiguous write at the source", so the
// decoder buffers partial records across Feed calls and resynchronizes
// byte-by-byte after corruption.
package decoder

import (
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/embertrace/embertrace/errs"
	"github.com/embertrace/embertrace/format"
	"github.com/embertrace/embertrace/internal/pool"
	"github.com/embertrace/embertrace/wire"
)

// Item is one decoded event with its absolute timestamp in microseconds
// since the start of the session. Timestamps are monotonic non-decreasing
// in wire order.
type Item struct {
	TS uint64
	Ev wire.Event
}

// Decoder accumulates raw bytes and parses complete records out of them.
// Not safe for concurrent use; the host pipeline runs it on one goroutine.
type Decoder struct {
	buf    *pool.ByteBuffer
	lastTS uint64

	// monitorTypes maps value-monitor IDs to their numeric type, learned
	// from ValueMonitor definitions on this stream. Owned by the decoder;
	// callers see the type embedded in each decoded event instead.
	monitorTypes map[uint8]format.ValueType

	skipped       uint64
	loggedCorrupt bool
	log           logrus.FieldLogger
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithLogger routes the decoder's one-shot corruption warnings to log.
func WithLogger(log logrus.FieldLogger) Option {
	return func(d *Decoder) {
		d.log = log
	}
}

// New creates an empty Decoder.
func New(opts ...Option) *Decoder {
	d := &Decoder{
		buf:          pool.GetStreamBuffer(),
		monitorTypes: make(map[uint8]format.ValueType),
		log:          logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Feed appends raw transport bytes to the internal buffer.
func (d *Decoder) Feed(data []byte) {
	d.buf.Append(data)
}

// Decode parses as many complete records as the buffer holds.
//
// A truncated record stays buffered for the next Feed. Any other parse
// failure means the cursor sits inside a corrupt record: the decoder
// advances a single byte and retries, so one corrupt event costs at most
// its own length in resync attempts. Corruption is logged once per
// decoder.
func (d *Decoder) Decode() []Item {
	var items []Item

	data := d.buf.Bytes()
	pos := 0

	for pos < len(data) {
		r := wire.NewReader(data[pos:])

		item, err := d.decodeOne(r)
		if err != nil {
			if errors.Is(err, errs.ErrTruncatedInput) {
				break // wait for more bytes
			}

			// Corrupt middle-of-record: skip one byte and resync.
			d.skipped++
			if !d.loggedCorrupt {
				d.loggedCorrupt = true
				d.log.WithError(err).Warn("corrupt trace record, resynchronizing")
			}
			pos++

			continue
		}

		pos += r.Pos()
		items = append(items, item)
	}

	d.buf.Consume(pos)

	return items
}

func (d *Decoder) decodeOne(r *wire.Reader) (Item, error) {
	delta, err := wire.ReadTimeDelta(r)
	if err != nil {
		return Item{}, err
	}

	ev, err := wire.DecodeEvent(r, d.lookupMonitorType)
	if err != nil {
		return Item{}, err
	}

	d.lastTS += uint64(delta)

	if def, ok := ev.(wire.ValueMonitorDef); ok {
		d.monitorTypes[def.Monitor] = def.Type
	}

	return Item{TS: d.lastTS, Ev: ev}, nil
}

func (d *Decoder) lookupMonitorType(monitor uint8) (format.ValueType, bool) {
	vt, ok := d.monitorTypes[monitor]

	return vt, ok
}

// LastTS returns the most recent absolute timestamp in microseconds.
func (d *Decoder) LastTS() uint64 {
	return d.lastTS
}

// Skipped returns how many bytes resynchronization has discarded.
func (d *Decoder) Skipped() uint64 {
	return d.skipped
}

// Buffered returns the number of bytes retained awaiting a complete record.
func (d *Decoder) Buffered() int {
	return d.buf.Len()
}

// Close releases the internal buffer back to the pool. The decoder must not
// be used afterwards.
func (d *Decoder) Close() {
	pool.PutStreamBuffer(d.buf)
	d.buf = nil
}
