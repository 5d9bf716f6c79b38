// Package embertrace is a two-sided tracing and profiling system for
// embedded asynchronous runtimes on single- and dual-core
// microcontrollers.
//
// The target side emits a compact binary event stream describing the
// lifecycle of cooperative tasks, their executors, user-defined code-region
// monitors, and numeric value samples. The host side decodes that stream,
// reconstructs per-core scheduling state machines, and writes a
// Chrome/Perfetto-compatible trace file.
//
// # Target side
//
// Install a clock and transport once at startup, then wire the runtime's
// trace hooks and sprinkle monitors:
//
//	target.Init(readMicros, rttChannel, target.WithCoreID(currentCore))
//
//	var adc = target.NewValueMonitor[uint16]("adc_reading")
//	var initMon = target.NewScopeMonitor("sensor_init")
//
//	func sensorInit() {
//	    defer initMon.Start()()
//	    adc.Record(readADC())
//	}
//
// # Host side
//
// The Pipeline wraps the host components for the common case of turning
// transport bytes into a trace file:
//
//	out, _ := os.Create("session.json")
//	p, _ := embertrace.NewPipeline(out)
//	for chunk := range transport {
//	    p.Feed(chunk)
//	}
//	p.Close()
//
// For finer control use the decoder, engine, trace, and perfetto packages
// directly; rawlog records raw captures for offline conversion with the
// embertrace CLI.
package embertrace

import (
	"io"

	"github.com/embertrace/embertrace/decoder"
	"github.com/embertrace/embertrace/engine"
	"github.com/embertrace/embertrace/perfetto"
)

// Pipeline chains decoder → engine → perfetto writer. Not safe for
// concurrent use.
type Pipeline struct {
	dec    *decoder.Decoder
	eng    *engine.Engine
	writer *perfetto.Writer
}

// NewPipeline creates a pipeline writing a Perfetto JSON trace to out.
// Engine options (symbol resolver, logging) pass through.
func NewPipeline(out io.Writer, opts ...engine.Option) (*Pipeline, error) {
	writer, err := perfetto.NewWriter(out)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		dec:    decoder.New(),
		eng:    engine.New(writer, opts...),
		writer: writer,
	}, nil
}

// Feed pushes raw transport bytes through the pipeline.
func (p *Pipeline) Feed(data []byte) {
	p.dec.Feed(data)
	for _, item := range p.dec.Decode() {
		// Transition errors already desynchronized the affected core; the
		// pipeline keeps consuming.
		_ = p.eng.Feed(item.TS, item.Ev)
	}
}

// Close flushes open scopes and finalizes the trace file.
func (p *Pipeline) Close() error {
	p.eng.Close()
	p.dec.Close()

	return p.writer.Close()
}
