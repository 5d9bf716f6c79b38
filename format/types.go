package format

type (
	// EventKind is the 5-bit runtime event identifier packed into the upper
	// bits of the event header byte.
	EventKind uint8
	// TypeDefKind is the leading byte of a TypeDefinition payload.
	TypeDefKind uint8
	// ValueType is the numeric type tag carried by ValueMonitor definitions.
	ValueType uint8
	// CompressionType selects the block codec for raw capture files.
	CompressionType uint8
)

const (
	KindTaskReady          EventKind = 0  // task became ready (waker fired)
	KindTaskExecBeginCore0 EventKind = 1  // poll of a task started on core 0
	KindTaskExecBeginCore1 EventKind = 2  // poll of a task started on core 1
	KindTaskExecEndCore0   EventKind = 3  // poll returned on core 0
	KindTaskExecEndCore1   EventKind = 4  // poll returned on core 1
	KindExecutorPollStart  EventKind = 5  // executor began scheduling
	KindExecutorIdle       EventKind = 6  // executor ran out of ready tasks
	KindMonitorStartCore0  EventKind = 7  // code monitor opened on core 0
	KindMonitorStartCore1  EventKind = 8  // code monitor opened on core 1
	KindMonitorEndCore0    EventKind = 9  // code monitor closed on core 0
	KindMonitorEndCore1    EventKind = 10 // code monitor closed on core 1
	KindMonitorValue       EventKind = 11 // value monitor sample
	KindTypeDefinition     EventKind = 12 // see TypeDefKind
	KindDataLoss           EventKind = 13 // synthetic: events were dropped
)

const (
	DefTaskCreated     TypeDefKind = 0
	DefTaskEnded       TypeDefKind = 1
	DefFunctionMonitor TypeDefKind = 2
	DefScopeMonitor    TypeDefKind = 3
	DefValueMonitor    TypeDefKind = 4
)

const (
	TypeU8  ValueType = 0
	TypeU16 ValueType = 1
	TypeU32 ValueType = 2
	TypeU64 ValueType = 3
	TypeI8  ValueType = 4
	TypeI16 ValueType = 5
	TypeI32 ValueType = 6
	TypeI64 ValueType = 7
)

const (
	CompressionNone CompressionType = 0x1 // CompressionNone stores chunks verbatim.
	CompressionZstd CompressionType = 0x2 // CompressionZstd uses Zstandard.
	CompressionS2   CompressionType = 0x3 // CompressionS2 uses S2 (Snappy-compatible).
	CompressionLZ4  CompressionType = 0x4 // CompressionLZ4 uses LZ4 block format.
)

// MaxMonitorName is the longest monitor name the type-definition payloads
// accept. Bounded so every event fits the fixed 32-byte emission buffer.
const MaxMonitorName = 20

func (k EventKind) String() string {
	switch k {
	case KindTaskReady:
		return "TaskReady"
	case KindTaskExecBeginCore0:
		return "TaskExecBegin(core0)"
	case KindTaskExecBeginCore1:
		return "TaskExecBegin(core1)"
	case KindTaskExecEndCore0:
		return "TaskExecEnd(core0)"
	case KindTaskExecEndCore1:
		return "TaskExecEnd(core1)"
	case KindExecutorPollStart:
		return "ExecutorPollStart"
	case KindExecutorIdle:
		return "ExecutorIdle"
	case KindMonitorStartCore0:
		return "MonitorStart(core0)"
	case KindMonitorStartCore1:
		return "MonitorStart(core1)"
	case KindMonitorEndCore0:
		return "MonitorEnd(core0)"
	case KindMonitorEndCore1:
		return "MonitorEnd(core1)"
	case KindMonitorValue:
		return "MonitorValue"
	case KindTypeDefinition:
		return "TypeDefinition"
	case KindDataLoss:
		return "DataLoss"
	default:
		return "Unknown"
	}
}

func (d TypeDefKind) String() string {
	switch d {
	case DefTaskCreated:
		return "TaskCreated"
	case DefTaskEnded:
		return "TaskEnded"
	case DefFunctionMonitor:
		return "FunctionMonitor"
	case DefScopeMonitor:
		return "ScopeMonitor"
	case DefValueMonitor:
		return "ValueMonitor"
	default:
		return "Unknown"
	}
}

func (t ValueType) String() string {
	switch t {
	case TypeU8:
		return "u8"
	case TypeU16:
		return "u16"
	case TypeU32:
		return "u32"
	case TypeU64:
		return "u64"
	case TypeI8:
		return "i8"
	case TypeI16:
		return "i16"
	case TypeI32:
		return "i32"
	case TypeI64:
		return "i64"
	default:
		return "Unknown"
	}
}

// IsValid reports whether t is one of the eight defined numeric type tags.
func (t ValueType) IsValid() bool {
	return t <= TypeI64
}

// Width returns the payload size in bytes for samples of this type.
func (t ValueType) Width() int {
	switch t {
	case TypeU8, TypeI8:
		return 1
	case TypeU16, TypeI16:
		return 2
	case TypeU32, TypeI32:
		return 4
	case TypeU64, TypeI64:
		return 8
	default:
		return 0
	}
}

// Signed reports whether samples of this type carry a sign bit.
func (t ValueType) Signed() bool {
	return t >= TypeI8 && t <= TypeI64
}

func (c CompressionType) String() string {
	switch c {
	case CompressionNone:
		return "None"
	case CompressionZstd:
		return "Zstd"
	case CompressionS2:
		return "S2"
	case CompressionLZ4:
		return "LZ4"
	default:
		return "Unknown"
	}
}

// IsValid reports whether c names a supported block codec.
func (c CompressionType) IsValid() bool {
	return c >= CompressionNone && c <= CompressionLZ4
}
