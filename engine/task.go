package engine

import (
	"fmt"

	"github.com/embertrace/embertrace/errs"
	"github.com/embertrace/embertrace/trace"
)

// Task lifecycle:
//
//	Spawned ──TaskReady──▶ Ready ──TaskExecBegin──▶ Running
//	Running ──TaskExecEnd, not re-awoken──▶ Idle ──TaskReady──▶ Ready
//	Running ──TaskExecEnd, re-awoken──▶ Ready
//	Running ──TaskReady──▶ Running (re-awoken flag set)
//	Running ──TaskEnd──▶ Ended
//	Running ──preempted(by)──▶ Preempted ──resume──▶ Running
//
// A task may be created lazily in Spawned, Ready, or Running: the first
// event referencing an unknown task creates it in the matching state, so a
// partial stream does not lose the task.

type taskState int

const (
	taskSpawned taskState = iota
	taskReady
	taskRunning
	taskPreempted
	taskIdle
	taskEnded
	taskDesynced
)

// openMonitor is one entry of a code-monitor stack.
type openMonitor struct {
	name  string
	start uint64
}

type taskTrace struct {
	executor uint8
	id       uint16

	state       taskState
	preemptedBy uint8 // meaningful in taskPreempted
	stateStart  uint64

	// reawoken records a TaskReady that arrived while Running; the exec-end
	// transition then goes to Ready instead of Idle.
	reawoken bool

	// monitors holds the open code monitors scoped to this task; preempted
	// holds names truncated by preemption, restored on resume.
	monitors  []openMonitor
	preempted []string

	sink trace.Sink
}

func (s taskState) String() string {
	switch s {
	case taskSpawned:
		return "Spawned"
	case taskReady:
		return "Ready"
	case taskRunning:
		return "Running"
	case taskPreempted:
		return "Preempted"
	case taskIdle:
		return "Idle"
	case taskEnded:
		return "Ended"
	case taskDesynced:
		return "Desynchronized"
	default:
		return "Unknown"
	}
}

func (t *taskTrace) stateName() string {
	if t.state == taskPreempted {
		return fmt.Sprintf("Preempted (by Executor %d)", t.preemptedBy)
	}

	return t.state.String()
}

// newTaskTrace creates a lazily-discovered task in the given state. The
// leading End closes whatever the lane showed before data loss cut the
// stream.
func newTaskTrace(executor uint8, id uint16, state taskState, ts uint64, sink trace.Sink) *taskTrace {
	t := &taskTrace{
		executor:   executor,
		id:         id,
		state:      state,
		stateStart: ts,
		sink:       sink,
	}

	sink.Emit(trace.End{Pid: uint32(executor), Tid: uint32(id), TS: ts})
	sink.Emit(trace.Begin{Name: t.stateName(), Pid: uint32(executor), Tid: uint32(id), TS: ts})

	return t
}

func (t *taskTrace) transitionTo(state taskState, by uint8, ts uint64) {
	if t.state == state && (state != taskPreempted || t.preemptedBy == by) {
		return
	}

	t.state = state
	t.preemptedBy = by
	t.stateStart = ts

	t.sink.Emit(trace.End{Pid: uint32(t.executor), Tid: uint32(t.id), TS: ts})
	t.sink.Emit(trace.Begin{Name: t.stateName(), Pid: uint32(t.executor), Tid: uint32(t.id), TS: ts})
}

func (t *taskTrace) illegal(event string) error {
	return fmt.Errorf("%w: task %d cannot %s from %s", errs.ErrIllegalTransition, t.id, event, t.state)
}

func (t *taskTrace) onReady(ts uint64) error {
	switch t.state {
	case taskSpawned, taskIdle:
		t.transitionTo(taskReady, 0, ts)
		t.reawoken = false

		return nil
	case taskRunning, taskPreempted:
		// The waker fired while the poll is still in flight; the task goes
		// back to Ready once the poll returns.
		t.reawoken = true

		return nil
	case taskReady:
		return nil // duplicate wake, harmless
	default:
		return t.illegal("become ready")
	}
}

func (t *taskTrace) onExecBegin(ts uint64) error {
	if t.state != taskReady {
		return t.illegal("begin execution")
	}
	t.transitionTo(taskRunning, 0, ts)

	return nil
}

func (t *taskTrace) onExecEnd(ts uint64) error {
	if t.state != taskRunning {
		return t.illegal("end execution")
	}

	if t.reawoken {
		t.transitionTo(taskReady, 0, ts)
	} else {
		t.transitionTo(taskIdle, 0, ts)
	}
	t.reawoken = false

	return nil
}

func (t *taskTrace) onEnd(ts uint64) error {
	if t.state != taskRunning {
		return t.illegal("end")
	}
	t.transitionTo(taskEnded, 0, ts)

	return nil
}

func (t *taskTrace) onPreempted(ts uint64, by uint8) error {
	if t.state != taskRunning {
		return t.illegal("be preempted")
	}
	t.transitionTo(taskPreempted, by, ts)

	// Truncate the open monitors at the preemption instant; the names are
	// reopened when the task resumes.
	for i := len(t.monitors) - 1; i >= 0; i-- {
		m := t.monitors[i]
		t.preempted = append(t.preempted, m.name)
		t.emitMonitorComplete(m, ts)
	}
	t.monitors = t.monitors[:0]

	return nil
}

func (t *taskTrace) onResumed(ts uint64) error {
	if t.state != taskPreempted {
		return t.illegal("resume")
	}
	t.transitionTo(taskRunning, 0, ts)

	// Reopen the truncated monitors with the resume timestamp as their new
	// start, restoring the original nesting order.
	for i := len(t.preempted) - 1; i >= 0; i-- {
		t.monitors = append(t.monitors, openMonitor{name: t.preempted[i], start: ts})
	}
	t.preempted = t.preempted[:0]

	return nil
}

func (t *taskTrace) onMonitorStart(name string, ts uint64) {
	t.monitors = append(t.monitors, openMonitor{name: name, start: ts})
}

func (t *taskTrace) onMonitorEnd(ts uint64) {
	if len(t.monitors) == 0 {
		return
	}
	m := t.monitors[len(t.monitors)-1]
	t.monitors = t.monitors[:len(t.monitors)-1]
	t.emitMonitorComplete(m, ts)
}

func (t *taskTrace) emitMonitorComplete(m openMonitor, end uint64) {
	t.sink.Emit(trace.Complete{
		Name: m.name,
		Cat:  "code_monitor",
		Pid:  uint32(t.executor),
		Tid:  uint32(t.id),
		TS:   m.start,
		Dur:  end - m.start,
	})
}

// onDesynchronize ends the open task scope at the desync timestamp. No new
// state begins: the trace for this task is abandoned and a fresh taskTrace
// takes over if the task reappears after resynchronization.
func (t *taskTrace) onDesynchronize(ts uint64) {
	t.state = taskDesynced
	t.sink.Emit(trace.End{Pid: uint32(t.executor), Tid: uint32(t.id), TS: ts})
	t.flushMonitors(ts)
}

func (t *taskTrace) flushMonitors(ts uint64) {
	for i := len(t.monitors) - 1; i >= 0; i-- {
		t.emitMonitorComplete(t.monitors[i], ts)
	}
	t.monitors = t.monitors[:0]
	t.preempted = t.preempted[:0]
}

// onDrop closes the lane at teardown: the current state ends and every
// still-open monitor completes at the last observed timestamp.
func (t *taskTrace) onDrop(ts uint64) {
	t.sink.Emit(trace.End{Pid: uint32(t.executor), Tid: uint32(t.id), TS: ts})
	t.flushMonitors(ts)
}
