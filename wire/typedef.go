package wire

import (
	"fmt"

	"github.com/embertrace/embertrace/errs"
	"github.com/embertrace/embertrace/format"
)

// Type-definition events bind long-lived identities to the short IDs the
// runtime events use: a task creation carries the full 32-bit task and
// executor addresses alongside the executor's registry slot, and monitor
// definitions carry the function address or name the host displays.
//
// Sub-kind numbering is fixed at TaskCreated=0, TaskEnded=1,
// FunctionMonitor=2, ScopeMonitor=3, ValueMonitor=4 for wire version 1.

// TaskCreated declares a new task and its executor binding.
type TaskCreated struct {
	Task          uint32 // full task address; compress with CompressTaskID
	ExecutorLong  uint32 // full executor address
	ExecutorShort uint8  // registry slot used by runtime events
}

// TaskEnded declares that a task will not be scheduled again.
type TaskEnded struct {
	Task          uint32
	ExecutorLong  uint32
	ExecutorShort uint8
}

// FunctionMonitorDef binds a monitor ID to a function address. The host
// resolves the address to a name via the ELF symbol table.
type FunctionMonitorDef struct {
	Monitor   uint8
	FnAddress uint32
}

// ScopeMonitorDef binds a monitor ID to a literal scope name.
type ScopeMonitorDef struct {
	Monitor uint8
	Name    string // ≤ format.MaxMonitorName bytes
}

// ValueMonitorDef binds a value monitor ID to its numeric type and name.
type ValueMonitorDef struct {
	Monitor uint8
	Type    format.ValueType
	Name    string // ≤ format.MaxMonitorName bytes
}

func (TaskCreated) Kind() format.EventKind        { return format.KindTypeDefinition }
func (TaskEnded) Kind() format.EventKind          { return format.KindTypeDefinition }
func (FunctionMonitorDef) Kind() format.EventKind { return format.KindTypeDefinition }
func (ScopeMonitorDef) Kind() format.EventKind    { return format.KindTypeDefinition }
func (ValueMonitorDef) Kind() format.EventKind    { return format.KindTypeDefinition }

func (TaskCreated) executorField() uint8        { return 0 }
func (TaskEnded) executorField() uint8          { return 0 }
func (FunctionMonitorDef) executorField() uint8 { return 0 }
func (ScopeMonitorDef) executorField() uint8    { return 0 }
func (ValueMonitorDef) executorField() uint8    { return 0 }

func (e TaskCreated) encodePayload(w *Writer) {
	encodeTaskBinding(w, format.DefTaskCreated, e.Task, e.ExecutorLong, e.ExecutorShort)
}

func (e TaskEnded) encodePayload(w *Writer) {
	encodeTaskBinding(w, format.DefTaskEnded, e.Task, e.ExecutorLong, e.ExecutorShort)
}

func encodeTaskBinding(w *Writer, def format.TypeDefKind, task, execLong uint32, execShort uint8) {
	w.WriteByte(uint8(def))
	var tmp [4]byte
	leEngine.PutUint32(tmp[:], task)
	w.WriteBytes(tmp[:])
	leEngine.PutUint32(tmp[:], execLong)
	w.WriteBytes(tmp[:])
	w.WriteByte(execShort & executorMask)
}

func (e FunctionMonitorDef) encodePayload(w *Writer) {
	w.WriteByte(uint8(format.DefFunctionMonitor))
	w.WriteByte(e.Monitor)
	var tmp [4]byte
	leEngine.PutUint32(tmp[:], e.FnAddress)
	w.WriteBytes(tmp[:])
}

func (e ScopeMonitorDef) encodePayload(w *Writer) {
	w.WriteByte(uint8(format.DefScopeMonitor))
	w.WriteByte(e.Monitor)
	writeName(w, e.Name)
}

func (e ValueMonitorDef) encodePayload(w *Writer) {
	w.WriteByte(uint8(format.DefValueMonitor))
	w.WriteByte(e.Monitor)
	w.WriteByte(uint8(e.Type))
	writeName(w, e.Name)
}

func writeName(w *Writer, name string) {
	if len(name) > format.MaxMonitorName {
		panic(fmt.Sprintf("wire: monitor name %q exceeds %d bytes", name, format.MaxMonitorName))
	}
	w.WriteBytes([]byte(name))
	w.WriteByte(0)
}

// ValidateName reports whether name fits the type-definition payload:
// at most format.MaxMonitorName bytes and no NUL.
func ValidateName(name string) error {
	if len(name) > format.MaxMonitorName {
		return fmt.Errorf("%w: %q exceeds %d bytes", errs.ErrInvalidName, name, format.MaxMonitorName)
	}
	for i := 0; i < len(name); i++ {
		if name[i] == 0 {
			return fmt.Errorf("%w: %q contains NUL", errs.ErrInvalidName, name)
		}
	}

	return nil
}

func decodeTypeDef(r *Reader) (Event, error) {
	sub, err := r.ReadByte()
	if err != nil {
		return nil, err
	}

	switch format.TypeDefKind(sub) {
	case format.DefTaskCreated, format.DefTaskEnded:
		task, err := readU32(r)
		if err != nil {
			return nil, err
		}
		execLong, err := readU32(r)
		if err != nil {
			return nil, err
		}
		execShort, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		if format.TypeDefKind(sub) == format.DefTaskCreated {
			return TaskCreated{Task: task, ExecutorLong: execLong, ExecutorShort: execShort & executorMask}, nil
		}

		return TaskEnded{Task: task, ExecutorLong: execLong, ExecutorShort: execShort & executorMask}, nil

	case format.DefFunctionMonitor:
		monitor, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		addr, err := readU32(r)
		if err != nil {
			return nil, err
		}

		return FunctionMonitorDef{Monitor: monitor, FnAddress: addr}, nil

	case format.DefScopeMonitor:
		monitor, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		name, err := r.ReadCString(format.MaxMonitorName)
		if err != nil {
			return nil, err
		}

		return ScopeMonitorDef{Monitor: monitor, Name: name}, nil

	case format.DefValueMonitor:
		monitor, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		typeTag, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		vt := format.ValueType(typeTag)
		if !vt.IsValid() {
			return nil, fmt.Errorf("%w: value type tag %d", errs.ErrUnknownEvent, typeTag)
		}
		name, err := r.ReadCString(format.MaxMonitorName)
		if err != nil {
			return nil, err
		}

		return ValueMonitorDef{Monitor: monitor, Type: vt, Name: name}, nil

	default:
		return nil, fmt.Errorf("%w: type definition %d", errs.ErrUnknownEvent, sub)
	}
}
