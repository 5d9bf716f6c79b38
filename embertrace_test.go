package embertrace

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/embertrace/embertrace/target"
	"github.com/embertrace/embertrace/trace"
)

// streamTransport collects emitted records into one contiguous stream, the
// way a lossless transport delivers them.
type streamTransport struct {
	buf bytes.Buffer
}

func (tp *streamTransport) Write(p []byte) int {
	tp.buf.Write(p)

	return len(p)
}

// TestEndToEnd drives the full path: instrumented target code → wire
// stream → decoder → engine → Perfetto JSON.
func TestEndToEnd(t *testing.T) {
	var clock uint32
	tp := &streamTransport{}
	target.Init(func() uint32 { clock += 10; return clock }, tp)

	work := target.NewScopeMonitor("work")
	adc := target.NewValueMonitor[uint16]("adc_reading")

	const execAddr, taskAddr = uint32(0x2000_0000), uint32(0x2000_1000)

	// One poll cycle with a monitored span and a value sample.
	target.TaskNew(execAddr, taskAddr)
	target.TaskReady(taskAddr)
	target.PollStart(execAddr)
	target.TaskExecBegin(taskAddr)
	func() {
		defer work.Start()()
		adc.Record(0xBEEF)
	}()
	target.TaskExecEnd(execAddr)
	target.ExecutorIdle(execAddr)

	var out bytes.Buffer
	p, err := NewPipeline(&out)
	require.NoError(t, err)

	// Feed in small slices to exercise partial-record buffering.
	stream := tp.buf.Bytes()
	for len(stream) > 0 {
		n := 7
		if n > len(stream) {
			n = len(stream)
		}
		p.Feed(stream[:n])
		stream = stream[n:]
	}
	require.NoError(t, p.Close())

	var doc struct {
		TraceEvents []map[string]any `json:"traceEvents"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &doc))
	require.NotEmpty(t, doc.TraceEvents)

	var names []string
	var sawCounter, sawComplete bool
	for _, ev := range doc.TraceEvents {
		if name, ok := ev["name"].(string); ok {
			names = append(names, name)
		}
		switch ev["ph"] {
		case "C":
			sawCounter = true
			require.Equal(t, float64(0xBEEF), ev["args"].(map[string]any)["value"])
			require.Equal(t, float64(trace.MetricsPID), ev["pid"])
		case "X":
			if ev["name"] == "work" {
				sawComplete = true
			}
		}
	}

	require.Contains(t, names, "Scheduling")
	require.Contains(t, names, "Running")
	require.Contains(t, names, "Idle")
	require.Contains(t, names, "adc_reading")
	require.True(t, sawCounter, "value sample must become a counter")
	require.True(t, sawComplete, "scope monitor must become a complete slice")
}
