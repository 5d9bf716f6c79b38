// Package errs defines the sentinel error values shared across embertrace
// packages.
//
// Call sites wrap these with fmt.Errorf("%w: ...") to attach context while
// keeping errors.Is comparisons working across package boundaries.
package errs

import "errors"

// Wire codec errors.
var (
	// ErrTruncatedInput indicates fewer bytes were available than the wire
	// format of the record requires. Non-fatal for streaming decoders: the
	// partial bytes stay buffered until more data arrives.
	ErrTruncatedInput = errors.New("truncated input")

	// ErrUnknownEvent indicates an event-kind ID outside the protocol table.
	ErrUnknownEvent = errors.New("unknown event kind")

	// ErrUnknownMonitor indicates a MonitorValue payload referenced a monitor
	// ID that no ValueMonitor type definition has declared yet.
	ErrUnknownMonitor = errors.New("unknown monitor id")

	// ErrInvalidName indicates a monitor name longer than the 20-byte wire
	// limit or containing a NUL byte.
	ErrInvalidName = errors.New("invalid monitor name")

	// ErrBufferFull indicates a write would exceed the fixed event buffer
	// capacity.
	ErrBufferFull = errors.New("event buffer full")
)

// Target-side errors.
var (
	// ErrRegistryFull indicates all 8 executor slots are claimed by other
	// executor addresses.
	ErrRegistryFull = errors.New("executor registry full")

	// ErrTransportFull indicates the transport accepted fewer bytes than the
	// record length; the event was dropped and counted.
	ErrTransportFull = errors.New("transport full")

	// ErrNotInitialized indicates an instrumentation point fired before
	// target.Init installed a clock and transport.
	ErrNotInitialized = errors.New("tracer not initialized")
)

// Host-side reconstruction errors.
var (
	// ErrIllegalTransition indicates an event that the executor or task state
	// machine refuses to perform from its current state. Non-fatal per event;
	// the owning core may desynchronize.
	ErrIllegalTransition = errors.New("illegal state transition")

	// ErrUnknownExecutor indicates an event referenced an executor short ID
	// not attributed to the core handling it.
	ErrUnknownExecutor = errors.New("unknown executor")

	// ErrInvalidRawLog indicates a capture file with a bad magic number,
	// unsupported version, or a chunk that fails its checksum.
	ErrInvalidRawLog = errors.New("invalid raw log")
)
