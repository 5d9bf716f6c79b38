// Package wire implements the binary event protocol shared by the target
// emission path and the host stream decoder.
//
// Each record on the wire is
//
//	<time-delta> <event-header-byte> <payload>
//
// where the header byte packs a 5-bit event kind in its upper bits and a
// 3-bit executor short ID in its lower bits (meaningful only for kinds that
// carry one). Core identity for task and monitor events is encoded in the
// kind itself: interrupt-driven core switches cannot be reconstructed later,
// so the emitting core stamps its identity at the instrumentation point.
// TaskReady carries no core because it fires inside interrupt handlers that
// are not attributed to a core.
//
// Payload fields are little-endian; time deltas are big-endian (see
// timedelta.go). The protocol guarantees every encoded event fits the
// 32-byte Writer.
package wire

import (
	"fmt"

	"github.com/embertrace/embertrace/endian"
	"github.com/embertrace/embertrace/errs"
	"github.com/embertrace/embertrace/format"
)

var leEngine = endian.GetLittleEndianEngine()

const (
	kindShift    = 3
	executorMask = 0x07
)

// Event is one decoded or to-be-encoded protocol event.
type Event interface {
	// Kind returns the 5-bit event kind.
	Kind() format.EventKind
	// executorField returns the 3-bit value packed into the header byte.
	executorField() uint8
	// encodePayload writes the payload bytes following the header byte.
	encodePayload(w *Writer)
}

// MonitorTypeFunc resolves the numeric type of a value monitor ID, learned
// from an earlier ValueMonitorDef on the same stream. It returns false for
// IDs no definition has declared.
type MonitorTypeFunc func(monitor uint8) (format.ValueType, bool)

// TaskReady reports that a task's waker fired. Core-agnostic.
type TaskReady struct {
	Task uint16
}

// TaskExecBegin reports that an executor began polling a task on Core.
type TaskExecBegin struct {
	Core uint8
	Task uint16
}

// TaskExecEnd reports that the poll on Core returned or yielded.
type TaskExecEnd struct {
	Core     uint8
	Executor uint8
}

// ExecutorPollStart reports that an executor entered its scheduling loop.
type ExecutorPollStart struct {
	Executor uint8
}

// ExecutorIdle reports that an executor ran out of ready tasks.
type ExecutorIdle struct {
	Executor uint8
}

// MonitorStart opens a code monitor span on Core.
type MonitorStart struct {
	Core    uint8
	Monitor uint8
}

// MonitorEnd closes the innermost open code monitor on Core.
type MonitorEnd struct {
	Core uint8
}

// MonitorValue carries one sample of a value monitor.
type MonitorValue struct {
	Monitor uint8
	Value   Value
}

// DataLoss is the synthetic event emitted after transport backpressure
// dropped records. Dropped counts how many events were lost.
type DataLoss struct {
	Dropped uint32
}

func (TaskReady) Kind() format.EventKind { return format.KindTaskReady }

func (e TaskExecBegin) Kind() format.EventKind {
	if e.Core == 1 {
		return format.KindTaskExecBeginCore1
	}

	return format.KindTaskExecBeginCore0
}

func (e TaskExecEnd) Kind() format.EventKind {
	if e.Core == 1 {
		return format.KindTaskExecEndCore1
	}

	return format.KindTaskExecEndCore0
}

func (ExecutorPollStart) Kind() format.EventKind { return format.KindExecutorPollStart }
func (ExecutorIdle) Kind() format.EventKind      { return format.KindExecutorIdle }

func (e MonitorStart) Kind() format.EventKind {
	if e.Core == 1 {
		return format.KindMonitorStartCore1
	}

	return format.KindMonitorStartCore0
}

func (e MonitorEnd) Kind() format.EventKind {
	if e.Core == 1 {
		return format.KindMonitorEndCore1
	}

	return format.KindMonitorEndCore0
}

func (MonitorValue) Kind() format.EventKind { return format.KindMonitorValue }
func (DataLoss) Kind() format.EventKind     { return format.KindDataLoss }

func (TaskReady) executorField() uint8           { return 0 }
func (TaskExecBegin) executorField() uint8       { return 0 }
func (e TaskExecEnd) executorField() uint8       { return e.Executor & executorMask }
func (e ExecutorPollStart) executorField() uint8 { return e.Executor & executorMask }
func (e ExecutorIdle) executorField() uint8      { return e.Executor & executorMask }
func (MonitorStart) executorField() uint8        { return 0 }
func (MonitorEnd) executorField() uint8          { return 0 }
func (MonitorValue) executorField() uint8        { return 0 }
func (DataLoss) executorField() uint8            { return 0 }

func (e TaskReady) encodePayload(w *Writer) {
	var tmp [2]byte
	leEngine.PutUint16(tmp[:], e.Task)
	w.WriteBytes(tmp[:])
}

func (e TaskExecBegin) encodePayload(w *Writer) {
	var tmp [2]byte
	leEngine.PutUint16(tmp[:], e.Task)
	w.WriteBytes(tmp[:])
}

func (TaskExecEnd) encodePayload(*Writer)       {}
func (ExecutorPollStart) encodePayload(*Writer) {}
func (ExecutorIdle) encodePayload(*Writer)      {}

func (e MonitorStart) encodePayload(w *Writer) {
	w.WriteByte(e.Monitor)
}

func (MonitorEnd) encodePayload(*Writer) {}

func (e MonitorValue) encodePayload(w *Writer) {
	w.WriteByte(e.Monitor)
	e.Value.encode(w)
}

func (e DataLoss) encodePayload(w *Writer) {
	var tmp [4]byte
	leEngine.PutUint32(tmp[:], e.Dropped)
	w.WriteBytes(tmp[:])
}

// EncodeEvent serializes ev into w: header byte, then payload. The time
// delta is written separately by the caller.
func EncodeEvent(w *Writer, ev Event) {
	w.WriteByte(uint8(ev.Kind())<<kindShift | ev.executorField())
	ev.encodePayload(w)
}

// DecodeEvent reads one event from r. The header byte has already shaped
// what follows; types resolves value-monitor payload widths and may be nil
// when the stream is known to carry no MonitorValue events.
//
// Errors: errs.ErrTruncatedInput when the payload is cut short,
// errs.ErrUnknownEvent for kinds outside the table, errs.ErrUnknownMonitor
// for a value sample whose monitor ID has no known type.
func DecodeEvent(r *Reader, types MonitorTypeFunc) (Event, error) {
	header, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	kind := format.EventKind(header >> kindShift)
	executor := header & executorMask

	switch kind {
	case format.KindTaskReady:
		task, err := readU16(r)
		if err != nil {
			return nil, err
		}

		return TaskReady{Task: task}, nil

	case format.KindTaskExecBeginCore0, format.KindTaskExecBeginCore1:
		task, err := readU16(r)
		if err != nil {
			return nil, err
		}

		return TaskExecBegin{Core: coreOf(kind, format.KindTaskExecBeginCore0), Task: task}, nil

	case format.KindTaskExecEndCore0, format.KindTaskExecEndCore1:
		return TaskExecEnd{Core: coreOf(kind, format.KindTaskExecEndCore0), Executor: executor}, nil

	case format.KindExecutorPollStart:
		return ExecutorPollStart{Executor: executor}, nil

	case format.KindExecutorIdle:
		return ExecutorIdle{Executor: executor}, nil

	case format.KindMonitorStartCore0, format.KindMonitorStartCore1:
		monitor, err := r.ReadByte()
		if err != nil {
			return nil, err
		}

		return MonitorStart{Core: coreOf(kind, format.KindMonitorStartCore0), Monitor: monitor}, nil

	case format.KindMonitorEndCore0, format.KindMonitorEndCore1:
		return MonitorEnd{Core: coreOf(kind, format.KindMonitorEndCore0)}, nil

	case format.KindMonitorValue:
		monitor, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		if types == nil {
			return nil, fmt.Errorf("%w: %d", errs.ErrUnknownMonitor, monitor)
		}
		vt, ok := types(monitor)
		if !ok {
			return nil, fmt.Errorf("%w: %d", errs.ErrUnknownMonitor, monitor)
		}
		value, err := decodeValue(r, vt)
		if err != nil {
			return nil, err
		}

		return MonitorValue{Monitor: monitor, Value: value}, nil

	case format.KindTypeDefinition:
		return decodeTypeDef(r)

	case format.KindDataLoss:
		dropped, err := readU32(r)
		if err != nil {
			return nil, err
		}

		return DataLoss{Dropped: dropped}, nil

	default:
		return nil, fmt.Errorf("%w: %d", errs.ErrUnknownEvent, kind)
	}
}

func coreOf(kind, core0 format.EventKind) uint8 {
	return uint8(kind - core0)
}

func readU16(r *Reader) (uint16, error) {
	b, err := r.ReadBytes(2)
	if err != nil {
		return 0, err
	}

	return leEngine.Uint16(b), nil
}

func readU32(r *Reader) (uint32, error) {
	b, err := r.ReadBytes(4)
	if err != nil {
		return 0, err
	}

	return leEngine.Uint32(b), nil
}
