package decoder

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/embertrace/embertrace/format"
	"github.com/embertrace/embertrace/wire"
)

// encodeRecord builds one raw wire record.
func encodeRecord(t *testing.T, delta uint32, ev wire.Event) []byte {
	t.Helper()

	var w wire.Writer
	wire.WriteTimeDelta(&w, delta)
	wire.EncodeEvent(&w, ev)

	return append([]byte(nil), w.Bytes()...)
}

func TestDecoder_SingleRecord(t *testing.T) {
	d := New()
	defer d.Close()

	d.Feed(encodeRecord(t, 100, wire.TaskReady{Task: 42}))

	items := d.Decode()
	require.Len(t, items, 1)
	require.Equal(t, uint64(100), items[0].TS)
	require.Equal(t, wire.TaskReady{Task: 42}, items[0].Ev)
	require.Equal(t, 0, d.Buffered())
}

func TestDecoder_TimestampsAccumulate(t *testing.T) {
	d := New()
	defer d.Close()

	d.Feed(encodeRecord(t, 10, wire.ExecutorPollStart{Executor: 1}))
	d.Feed(encodeRecord(t, 25, wire.ExecutorIdle{Executor: 1}))
	d.Feed(encodeRecord(t, 0, wire.TaskReady{Task: 7}))

	items := d.Decode()
	require.Len(t, items, 3)
	require.Equal(t, uint64(10), items[0].TS)
	require.Equal(t, uint64(35), items[1].TS)
	require.Equal(t, uint64(35), items[2].TS)
	require.Equal(t, uint64(35), d.LastTS())
}

func TestDecoder_PartialRecordRetained(t *testing.T) {
	d := New()
	defer d.Close()

	rec := encodeRecord(t, 50, wire.TaskExecBegin{Core: 0, Task: 9})

	d.Feed(rec[:3])
	require.Empty(t, d.Decode())
	require.Equal(t, 3, d.Buffered())

	d.Feed(rec[3:])
	items := d.Decode()
	require.Len(t, items, 1)
	require.Equal(t, wire.TaskExecBegin{Core: 0, Task: 9}, items[0].Ev)
}

func TestDecoder_ByteByByteFeed(t *testing.T) {
	d := New()
	defer d.Close()

	var stream []byte
	stream = append(stream, encodeRecord(t, 1, wire.ExecutorPollStart{Executor: 2})...)
	stream = append(stream, encodeRecord(t, 2, wire.TaskExecBegin{Core: 0, Task: 5})...)
	stream = append(stream, encodeRecord(t, 3, wire.TaskExecEnd{Core: 0, Executor: 2})...)

	var items []Item
	for _, b := range stream {
		d.Feed([]byte{b})
		items = append(items, d.Decode()...)
	}

	require.Len(t, items, 3)
	require.Equal(t, uint64(6), items[2].TS)
}

func TestDecoder_ValueMonitorDictionary(t *testing.T) {
	d := New()
	defer d.Close()

	d.Feed(encodeRecord(t, 0, wire.ValueMonitorDef{Monitor: 5, Type: format.TypeU16, Name: "adc"}))
	d.Feed(encodeRecord(t, 10, wire.MonitorValue{Monitor: 5, Value: wire.U16Value(0xBEEF)}))

	items := d.Decode()
	require.Len(t, items, 2)

	mv := items[1].Ev.(wire.MonitorValue)
	require.Equal(t, uint64(0xBEEF), mv.Value.Uint())
	require.Equal(t, float64(48879), mv.Value.Float())
}

func TestDecoder_UnknownMonitorSkipsForward(t *testing.T) {
	d := New()
	defer d.Close()

	// A value sample with no preceding definition cannot be sized; the
	// decoder must keep moving rather than stall on it.
	bad := encodeRecord(t, 5, wire.MonitorValue{Monitor: 9, Value: wire.U8Value(1)})
	d.Feed(bad)
	d.Decode()

	require.NotZero(t, d.Skipped())
	require.Less(t, d.Buffered(), len(bad), "cursor must advance past corrupt bytes")
}

func TestDecoder_CorruptHeaderSkipsOneByte(t *testing.T) {
	d := New()
	defer d.Close()

	// Short delta followed by header kind 31, which does not exist. The
	// decoder skips exactly one byte; the remaining two bytes look like the
	// start of a fresh delta and are retained as a partial record.
	d.Feed([]byte{0x00, 0x01, 0xF8})

	items := d.Decode()
	require.Empty(t, items)
	require.Equal(t, uint64(1), d.Skipped())
	require.Equal(t, 2, d.Buffered())
}

func TestDecoder_RecoversOnCleanStreamAfterCorruption(t *testing.T) {
	d := New()
	defer d.Close()

	d.Feed([]byte{0x00, 0x00, 0xF8}) // delta 0 + unknown kind 31
	d.Decode()

	// After the damaged region drains, a clean gap of idle records brings
	// the cursor back onto a record boundary: every parse either consumes
	// garbage or skips a byte, and the stream keeps supplying real
	// boundaries. Feed enough identical records and the tail of the batch
	// must decode cleanly.
	for i := 0; i < 64; i++ {
		d.Feed(encodeRecord(t, 1000, wire.ExecutorIdle{Executor: 1}))
	}
	items := d.Decode()

	require.NotEmpty(t, items)
	require.NotZero(t, d.Skipped())
}

func TestDecoder_WrapDelta(t *testing.T) {
	// Emitter clock wrap shows up as a plain delta on the wire; the
	// decoder just accumulates it.
	d := New()
	defer d.Close()

	d.Feed(encodeRecord(t, 0x2000, wire.TaskReady{Task: 1}))
	items := d.Decode()
	require.Len(t, items, 1)
	require.Equal(t, uint64(0x2000), items[0].TS)
}

func TestDecoder_MonotonicTimestamps(t *testing.T) {
	d := New()
	defer d.Close()

	deltas := []uint32{5, 0, 17, 0, 0, wire.MaxShortDelta + 1, 2}
	for _, delta := range deltas {
		d.Feed(encodeRecord(t, delta, wire.TaskReady{Task: 1}))
	}

	items := d.Decode()
	require.Len(t, items, len(deltas))

	var prev uint64
	for _, it := range items {
		require.GreaterOrEqual(t, it.TS, prev)
		prev = it.TS
	}
}
