// Package engine reconstructs per-core scheduling state from the decoded
// event stream and emits drawable trace records.
//
// The state tree is Engine → {core 0, core 1} → {executor × N} →
// {task × M}. Input may be lossy: the engine survives arbitrary streams,
// desynchronizes the affected core on data loss or an impossible
// transition, and converges again once the target resumes normal
// operation. It owns its state exclusively and publishes immutable trace
// records through the sink; there is no shared mutable state with
// downstream writers.
package engine

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/embertrace/embertrace/internal/hash"
	"github.com/embertrace/embertrace/trace"
	"github.com/embertrace/embertrace/wire"
)

// Resolver turns target memory addresses into names, typically backed by
// the firmware's ELF symbol table. Missing addresses fall back to hex
// literal forms.
type Resolver interface {
	Resolve(addr uint64) (string, bool)
}

// nopResolver resolves nothing; every name falls back to its hex form.
type nopResolver struct{}

func (nopResolver) Resolve(uint64) (string, bool) { return "", false }

// Engine drives the two per-core state machines. Not safe for concurrent
// use; the host pipeline feeds it from a single goroutine.
type Engine struct {
	sink     trace.Sink
	resolver Resolver
	log      logrus.FieldLogger

	cores [2]*coreState

	// Monitor ID → name dictionaries, filled from type definitions. Code
	// and value monitors share the wire ID space but are looked up per
	// family, matching the event kinds that reference them.
	codeNames  map[uint8]string
	valueNames map[uint8]string

	// taskExec maps compressed task IDs to executor short IDs, learned from
	// TaskCreated definitions. TaskExecBegin carries no executor field, so
	// attribution happens through this binding.
	taskExec map[uint16]uint8

	// pendingPoll holds poll-start timestamps for executors no core has
	// claimed yet. The first core-tagged task-exec-begin for such an
	// executor replays the scheduling start retroactively.
	pendingPoll map[uint8]uint64

	lastTS uint64

	// emittedMeta dedups process/thread metadata records by identity hash
	// so repeated type definitions do not flood the trace.
	emittedMeta map[uint64]struct{}

	loggedUnknownValue bool
	panicOnResync      bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithResolver installs the address-to-name resolver.
func WithResolver(r Resolver) Option {
	return func(e *Engine) {
		e.resolver = r
	}
}

// WithLogger routes engine diagnostics to log.
func WithLogger(log logrus.FieldLogger) Option {
	return func(e *Engine) {
		e.log = log
	}
}

// WithPanicOnResync makes desynchronization fatal. Debugging aid for
// sessions where data loss indicates a setup problem rather than expected
// backpressure.
func WithPanicOnResync() Option {
	return func(e *Engine) {
		e.panicOnResync = true
	}
}

// New creates an Engine emitting into sink.
func New(sink trace.Sink, opts ...Option) *Engine {
	e := &Engine{
		sink:        sink,
		resolver:    nopResolver{},
		log:         logrus.StandardLogger(),
		codeNames:   make(map[uint8]string),
		valueNames:  make(map[uint8]string),
		taskExec:    make(map[uint16]uint8),
		pendingPoll: make(map[uint8]uint64),
		emittedMeta: make(map[uint64]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.cores[0] = newCoreState(0, sink)
	e.cores[1] = newCoreState(1, sink)

	e.emitStaticMetadata()

	return e
}

func executorLaneName(id uint8) string {
	return fmt.Sprintf("Executor %d", id)
}

// emitStaticMetadata names the synthetic processes once per session.
func (e *Engine) emitStaticMetadata() {
	e.sink.Emit(trace.Metadata{
		Name: "process_name", Cat: "core_overview", Pid: trace.CoreOverviewPID,
		Args: trace.Args{"name": "Core Overview"},
	})
	e.sink.Emit(trace.Metadata{
		Name: "thread_name", Cat: "core_overview", Pid: trace.CoreOverviewPID,
		Tid: trace.CoreTID(0), HasTid: true,
		Args: trace.Args{"name": "Core 0"},
	})
	e.sink.Emit(trace.Metadata{
		Name: "thread_name", Cat: "core_overview", Pid: trace.CoreOverviewPID,
		Tid: trace.CoreTID(1), HasTid: true,
		Args: trace.Args{"name": "Core 1"},
	})
	e.sink.Emit(trace.Metadata{
		Name: "process_name", Cat: "value_monitor", Pid: trace.MetricsPID,
		Args: trace.Args{"name": "Metrics"},
	})
}

// Feed processes one decoded event at its absolute timestamp.
//
// Feed never fails fatally. An illegal transition is surfaced in the return
// value after the affected core has been desynchronized; callers may log it
// and continue feeding.
func (e *Engine) Feed(ts uint64, ev wire.Event) error {
	e.lastTS = ts

	if loss, ok := ev.(wire.DataLoss); ok {
		// The hole is not attributable to a core, so both restart.
		e.log.WithField("dropped", loss.Dropped).Warn("data loss on target, resynchronizing trace")
		e.desynchronize(ts, e.cores[0], e.cores[1])

		return nil
	}

	if err := e.handle(ts, ev); err != nil {
		e.log.WithError(err).WithField("ts_us", ts).Warn("illegal transition, resynchronizing core")

		// The transition error names exactly one core's state machine.
		if core := e.coreFor(ev); core != nil {
			e.desynchronize(ts, core)
		} else {
			e.desynchronize(ts, e.cores[0], e.cores[1])
		}

		return err
	}

	return nil
}

// coreFor returns the core a core-tagged event belongs to, or nil for
// untagged events.
func (e *Engine) coreFor(ev wire.Event) *coreState {
	switch v := ev.(type) {
	case wire.TaskExecBegin:
		return e.cores[v.Core&1]
	case wire.TaskExecEnd:
		return e.cores[v.Core&1]
	case wire.MonitorStart:
		return e.cores[v.Core&1]
	case wire.MonitorEnd:
		return e.cores[v.Core&1]
	default:
		return nil
	}
}

func (e *Engine) handle(ts uint64, ev wire.Event) error {
	switch v := ev.(type) {
	case wire.TaskReady:
		// No core identity: the wake applies on whichever core knows the
		// task.
		if err := e.cores[0].onTaskReady(v.Task, ts); err != nil {
			return err
		}

		return e.cores[1].onTaskReady(v.Task, ts)

	case wire.TaskExecBegin:
		core := e.cores[v.Core&1]
		exec, ok := e.taskExec[v.Task]
		if !ok {
			// No binding yet (the TaskCreated definition was lost): the
			// executor currently scheduling on this core is the poller.
			running := core.runningExecutor()
			if running == nil {
				return nil // cannot attribute, drop
			}
			exec = running.id
		}

		// A poll-start that predates this executor's core attribution
		// replays now that the core is known.
		if _, known := core.executors[exec]; !known {
			if pollTS, pending := e.pendingPoll[exec]; pending {
				delete(e.pendingPoll, exec)
				if err := core.adoptExecutor(exec, pollTS); err != nil {
					return err
				}
			}
		}

		return core.onTaskExecBegin(exec, v.Task, ts)

	case wire.TaskExecEnd:
		return e.cores[v.Core&1].onTaskExecEnd(v.Executor, ts)

	case wire.ExecutorPollStart:
		handled0, err := e.cores[0].onPollStart(v.Executor, ts)
		if err != nil {
			return err
		}
		handled1, err := e.cores[1].onPollStart(v.Executor, ts)
		if err != nil {
			return err
		}

		if !handled0 && !handled1 {
			e.pendingPoll[v.Executor] = ts
		} else {
			delete(e.pendingPoll, v.Executor)
		}

		return nil

	case wire.ExecutorIdle:
		if err := e.cores[0].onIdle(v.Executor, ts); err != nil {
			return err
		}

		return e.cores[1].onIdle(v.Executor, ts)

	case wire.MonitorStart:
		if name, ok := e.codeNames[v.Monitor]; ok {
			e.cores[v.Core&1].onMonitorStart(name, ts)
		}

		return nil

	case wire.MonitorEnd:
		e.cores[v.Core&1].onMonitorEnd(ts)

		return nil

	case wire.MonitorValue:
		e.onMonitorValue(v, ts)

		return nil

	case wire.TaskCreated:
		return e.onTaskCreated(v, ts)

	case wire.TaskEnded:
		return e.onTaskEnded(v, ts)

	case wire.FunctionMonitorDef:
		name, ok := e.resolver.Resolve(uint64(v.FnAddress))
		if !ok {
			name = fmt.Sprintf("Function 0x%X", v.FnAddress)
		}
		e.registerCodeMonitor(v.Monitor, name)

		return nil

	case wire.ScopeMonitorDef:
		e.registerCodeMonitor(v.Monitor, v.Name)

		return nil

	case wire.ValueMonitorDef:
		e.registerValueMonitor(v.Monitor, v.Name)

		return nil

	default:
		return nil
	}
}

func (e *Engine) registerCodeMonitor(id uint8, name string) {
	if prev, ok := e.codeNames[id]; ok && prev != name {
		// Reissuing a registered ID is a protocol error; the first binding
		// wins so already-attributed spans stay consistent.
		e.log.WithField("monitor", id).Warnf("monitor id reissued (%q, was %q)", name, prev)

		return
	}
	e.codeNames[id] = name
}

func (e *Engine) registerValueMonitor(id uint8, name string) {
	if prev, ok := e.valueNames[id]; ok && prev != name {
		e.log.WithField("monitor", id).Warnf("value monitor id reissued (%q, was %q)", name, prev)

		return
	}
	e.valueNames[id] = name
}

func (e *Engine) onMonitorValue(v wire.MonitorValue, ts uint64) {
	name, ok := e.valueNames[v.Monitor]
	if !ok {
		if !e.loggedUnknownValue {
			e.loggedUnknownValue = true
			e.log.WithField("monitor", v.Monitor).Warn("value sample for unregistered monitor, discarding")
		}

		return
	}

	e.sink.Emit(trace.Counter{
		Name:  name,
		Pid:   trace.MetricsPID,
		TS:    ts,
		Value: v.Value.Float(),
	})
}

func (e *Engine) onTaskCreated(v wire.TaskCreated, ts uint64) error {
	task := wire.CompressTaskID(v.Task)
	e.taskExec[task] = v.ExecutorShort

	e.emitMetadataOnce(trace.Metadata{
		Name: "process_name", Cat: "executor", Pid: uint32(v.ExecutorShort),
		Args: trace.Args{
			"name":             e.executorName(v.ExecutorLong),
			"executor_id_long": fmt.Sprintf("%d", v.ExecutorLong),
		},
	})
	e.emitMetadataOnce(trace.Metadata{
		Name: "thread_name", Cat: "task", Pid: uint32(v.ExecutorShort),
		Tid: uint32(task), HasTid: true,
		Args: trace.Args{
			"name":         e.taskName(v.Task),
			"task_id_long": fmt.Sprintf("%d", v.Task),
		},
	})

	// No core identity: whichever core already hosts the executor adopts
	// the task.
	e.cores[0].onTaskSpawned(v.ExecutorShort, task, ts)
	e.cores[1].onTaskSpawned(v.ExecutorShort, task, ts)

	return nil
}

func (e *Engine) onTaskEnded(v wire.TaskEnded, ts uint64) error {
	task := wire.CompressTaskID(v.Task)
	e.taskExec[task] = v.ExecutorShort

	if err := e.cores[0].onTaskEnd(v.ExecutorShort, task, ts); err != nil {
		return err
	}

	return e.cores[1].onTaskEnd(v.ExecutorShort, task, ts)
}

func (e *Engine) executorName(addr uint32) string {
	if name, ok := e.resolver.Resolve(uint64(addr)); ok {
		return name
	}

	return fmt.Sprintf("Executor 0x%X", addr)
}

func (e *Engine) taskName(addr uint32) string {
	if name, ok := e.resolver.Resolve(uint64(addr)); ok {
		return name
	}

	return fmt.Sprintf("Task 0x%X", addr)
}

// emitMetadataOnce dedups metadata by identity so repeated task-created
// definitions (one per spawn of the same task) name lanes only once.
func (e *Engine) emitMetadataOnce(m trace.Metadata) {
	key := hash.ID(fmt.Sprintf("%s/%s/%d/%d/%t/%s", m.Name, m.Cat, m.Pid, m.Tid, m.HasTid, m.Args["name"]))
	if _, ok := e.emittedMeta[key]; ok {
		return
	}
	e.emittedMeta[key] = struct{}{}
	e.sink.Emit(m)
}

// Mark injects an instant event on the global scope, used to thread
// host-observed log lines into the trace alongside the reconstruction.
func (e *Engine) Mark(ts uint64, name, severity string) {
	if ts > e.lastTS {
		e.lastTS = ts
	}
	e.sink.Emit(trace.Instant{
		Name:  name,
		Cat:   severity,
		TS:    ts,
		Scope: trace.ScopeGlobal,
		Args:  trace.Args{"level": severity},
	})
}

func (e *Engine) desynchronize(ts uint64, cores ...*coreState) {
	if e.panicOnResync {
		panic("embertrace: data loss detected, resynchronization required")
	}
	for _, c := range cores {
		c.onDesynchronize(ts)
	}
}

// LastTS returns the timestamp of the most recently fed event.
func (e *Engine) LastTS() uint64 {
	return e.lastTS
}

// Close tears the engine down deterministically: every open executor,
// task, and monitor scope ends at the last observed timestamp. The engine
// must not be fed afterwards.
func (e *Engine) Close() {
	for _, c := range e.cores {
		c.onDrop(e.lastTS)
	}
}
