// Package perfetto writes trace records as a Chrome Trace Event Format
// JSON file loadable by Perfetto and chrome://tracing.
//
// The output is a single object {"traceEvents":[ ... ]} with one JSON
// object per record carrying its ph tag. Events stream to the writer as
// they arrive; nothing is buffered beyond the current record, so traces
// survive an interrupted session up to the last comma.
package perfetto

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"

	"github.com/embertrace/embertrace/trace"
)

// jsonEvent is the wire shape of one trace event. Optional fields collapse
// via omitempty; Tid uses a pointer so tid 0 (executor state lanes)
// survives serialization while absent tids disappear.
type jsonEvent struct {
	Name  string             `json:"name,omitempty"`
	Cat   string             `json:"cat,omitempty"`
	Ph    string             `json:"ph"`
	Pid   *uint32            `json:"pid,omitempty"`
	Tid   *uint32            `json:"tid,omitempty"`
	TS    uint64             `json:"ts"`
	Dur   *uint64            `json:"dur,omitempty"`
	Scope string             `json:"s,omitempty"`
	Args  map[string]any     `json:"args,omitempty"`
}

// Writer streams trace records into an io.Writer.
type Writer struct {
	out    io.Writer
	gz     *gzip.Writer
	closer io.Closer

	first  bool
	closed bool
}

// Option configures a Writer.
type Option func(*Writer)

// WithGzip compresses the output stream. Perfetto loads .json.gz files
// directly, and traces compress roughly 10:1.
func WithGzip() Option {
	return func(w *Writer) {
		w.gz = gzip.NewWriter(w.out)
		w.out = w.gz
	}
}

// NewWriter creates a Writer emitting into out. If out is also an
// io.Closer, Close closes it after finalizing the JSON.
func NewWriter(out io.Writer, opts ...Option) (*Writer, error) {
	w := &Writer{out: out, first: true}
	if c, ok := out.(io.Closer); ok {
		w.closer = c
	}
	for _, opt := range opts {
		opt(w)
	}

	if _, err := io.WriteString(w.out, "{\"traceEvents\": ["); err != nil {
		return nil, fmt.Errorf("perfetto: writing header: %w", err)
	}

	return w, nil
}

// Emit writes one record. Implements trace.Sink.
func (w *Writer) Emit(ev trace.Event) {
	_ = w.Write(ev)
}

// Write serializes one record, returning the first I/O or encoding error.
func (w *Writer) Write(ev trace.Event) error {
	if w.closed {
		return fmt.Errorf("perfetto: write after Close")
	}

	je, ok := convert(ev)
	if !ok {
		return fmt.Errorf("perfetto: unsupported event %T", ev)
	}

	data, err := json.Marshal(je)
	if err != nil {
		return fmt.Errorf("perfetto: encoding event: %w", err)
	}

	sep := ",\n\t"
	if w.first {
		sep = "\n\t"
		w.first = false
	}
	if _, err := io.WriteString(w.out, sep); err != nil {
		return fmt.Errorf("perfetto: writing event: %w", err)
	}
	if _, err := w.out.Write(data); err != nil {
		return fmt.Errorf("perfetto: writing event: %w", err)
	}

	return nil
}

// Drain consumes records from a channel until it closes, then finalizes
// the file. Runs as the writer goroutine behind a trace.ChannelSink.
func (w *Writer) Drain(events <-chan trace.Event) error {
	for ev := range events {
		if err := w.Write(ev); err != nil {
			return err
		}
	}

	return w.Close()
}

// Close terminates the JSON array and flushes every layer.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if _, err := io.WriteString(w.out, "\n]}\n"); err != nil {
		return fmt.Errorf("perfetto: finalizing trace file: %w", err)
	}
	if w.gz != nil {
		if err := w.gz.Close(); err != nil {
			return fmt.Errorf("perfetto: closing gzip stream: %w", err)
		}
	}
	if w.closer != nil {
		if err := w.closer.Close(); err != nil {
			return fmt.Errorf("perfetto: closing output: %w", err)
		}
	}

	return nil
}

func convert(ev trace.Event) (jsonEvent, bool) {
	switch v := ev.(type) {
	case trace.Begin:
		return jsonEvent{
			Name: v.Name, Cat: v.Cat, Ph: v.Phase(),
			Pid: ptr(v.Pid), Tid: ptr(v.Tid), TS: v.TS,
			Args: stringArgs(v.Args),
		}, true
	case trace.End:
		return jsonEvent{
			Name: v.Name, Cat: v.Cat, Ph: v.Phase(),
			Pid: ptr(v.Pid), Tid: ptr(v.Tid), TS: v.TS,
			Args: stringArgs(v.Args),
		}, true
	case trace.Complete:
		return jsonEvent{
			Name: v.Name, Cat: v.Cat, Ph: v.Phase(),
			Pid: ptr(v.Pid), Tid: ptr(v.Tid), TS: v.TS, Dur: &v.Dur,
			Args: stringArgs(v.Args),
		}, true
	case trace.Counter:
		return jsonEvent{
			Name: v.Name, Ph: v.Phase(),
			Pid: ptr(v.Pid), TS: v.TS,
			Args: map[string]any{"value": v.Value},
		}, true
	case trace.Instant:
		return jsonEvent{
			Name: v.Name, Cat: v.Cat, Ph: v.Phase(),
			TS: v.TS, Scope: string(v.Scope),
			Args: stringArgs(v.Args),
		}, true
	case trace.Metadata:
		je := jsonEvent{
			Name: v.Name, Cat: v.Cat, Ph: v.Phase(),
			Pid:  ptr(v.Pid),
			Args: stringArgs(v.Args),
		}
		if v.HasTid {
			je.Tid = ptr(v.Tid)
		}

		return je, true
	default:
		return jsonEvent{}, false
	}
}

func ptr[T any](v T) *T {
	return &v
}

func stringArgs(args trace.Args) map[string]any {
	if len(args) == 0 {
		return nil
	}
	out := make(map[string]any, len(args))
	for k, v := range args {
		out[k] = v
	}

	return out
}
