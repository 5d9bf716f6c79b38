package engine

import (
	"fmt"

	"github.com/embertrace/embertrace/errs"
	"github.com/embertrace/embertrace/trace"
)

// Executor lifecycle:
//
//	Idle ──ExecutorPollStart──▶ Scheduling ──TaskExecBegin(T)──▶ Polling(T)
//	Polling(T) ──TaskExecEnd──▶ Scheduling ──ExecutorIdle──▶ Idle
//	Scheduling|Polling ──preempted(by)──▶ Preempted(by, prev)
//	Preempted(by) ──by goes Idle──▶ prev
//
// Preemption is inferred by the owning core, not here: the core issues
// onPreempted when a poll-start arrives for a different executor while this
// one is running, and onResume when the preemptor goes idle.

type executorState int

const (
	execIdle executorState = iota
	execScheduling
	execPolling
	execPreempted
	execDesynced
)

type executorTrace struct {
	id uint8

	state executorState
	// task is the polled task in execPolling, or the pre-preemption task
	// when prevPolling is set in execPreempted.
	task        uint16
	preemptedBy uint8
	prevPolling bool
	stateStart  uint64

	tasks map[uint16]*taskTrace

	sink trace.Sink
}

func (e *executorTrace) stateName() string {
	switch e.state {
	case execIdle:
		return "Idle"
	case execScheduling:
		return "Scheduling"
	case execPolling:
		return fmt.Sprintf("Polling Task %d", e.task)
	case execPreempted:
		return fmt.Sprintf("Preempted (by Executor %d)", e.preemptedBy)
	case execDesynced:
		return "Desynchronized"
	default:
		return "Unknown"
	}
}

// newExecutorPolling creates an executor trace on its first task-exec-begin,
// already polling that task. The leading End closes whatever the lane held
// before the stream picked this executor up.
func newExecutorPolling(id uint8, task uint16, ts uint64, sink trace.Sink) *executorTrace {
	e := &executorTrace{
		id:         id,
		state:      execPolling,
		task:       task,
		stateStart: ts,
		tasks:      make(map[uint16]*taskTrace),
		sink:       sink,
	}
	e.tasks[task] = newTaskTrace(id, task, taskRunning, ts, sink)

	sink.Emit(trace.End{Pid: uint32(id), Tid: 0, TS: ts})
	sink.Emit(trace.Begin{Name: e.stateName(), Pid: uint32(id), Tid: 0, TS: ts})

	return e
}

// newExecutorScheduling creates an executor trace on a post-desync
// poll-start, before any task identity is known.
func newExecutorScheduling(id uint8, ts uint64, sink trace.Sink) *executorTrace {
	e := &executorTrace{
		id:         id,
		state:      execScheduling,
		stateStart: ts,
		tasks:      make(map[uint16]*taskTrace),
		sink:       sink,
	}

	sink.Emit(trace.End{Pid: uint32(id), Tid: 0, TS: ts})
	sink.Emit(trace.Begin{Name: e.stateName(), Pid: uint32(id), Tid: 0, TS: ts})

	return e
}

// isRunning reports whether the executor occupies its core (Scheduling or
// Polling).
func (e *executorTrace) isRunning() bool {
	return e.state == execScheduling || e.state == execPolling
}

func (e *executorTrace) isPreemptedBy(id uint8) bool {
	return e.state == execPreempted && e.preemptedBy == id
}

func (e *executorTrace) transitionTo(state executorState, ts uint64) {
	if e.state == state && state != execPolling {
		return
	}

	e.state = state
	e.stateStart = ts

	e.sink.Emit(trace.End{Pid: uint32(e.id), Tid: 0, TS: ts})
	e.sink.Emit(trace.Begin{Name: e.stateName(), Pid: uint32(e.id), Tid: 0, TS: ts})
}

func (e *executorTrace) illegal(event string) error {
	return fmt.Errorf("%w: executor %d cannot %s from %s", errs.ErrIllegalTransition, e.id, event, e.stateName())
}

// onTaskSpawned records a task creation. Already-known tasks are left
// untouched: a duplicate TaskCreated after data loss must not reset state.
func (e *executorTrace) onTaskSpawned(task uint16, ts uint64) {
	if _, ok := e.tasks[task]; !ok {
		e.tasks[task] = newTaskTrace(e.id, task, taskSpawned, ts, e.sink)
	}
}

func (e *executorTrace) onTaskReady(task uint16, ts uint64) error {
	if t, ok := e.tasks[task]; ok {
		return t.onReady(ts)
	}
	e.tasks[task] = newTaskTrace(e.id, task, taskReady, ts, e.sink)

	return nil
}

func (e *executorTrace) onTaskExecBegin(task uint16, ts uint64) error {
	// At most one task per executor runs at a time.
	for _, t := range e.tasks {
		if t.state == taskRunning {
			return fmt.Errorf("%w: executor %d cannot poll task %d while task %d is running",
				errs.ErrIllegalTransition, e.id, task, t.id)
		}
	}

	if t, ok := e.tasks[task]; ok {
		if err := t.onExecBegin(ts); err != nil {
			return err
		}
	} else {
		e.tasks[task] = newTaskTrace(e.id, task, taskRunning, ts, e.sink)
	}

	e.task = task
	e.transitionTo(execPolling, ts)

	return nil
}

func (e *executorTrace) onTaskExecEnd(ts uint64) error {
	if e.state != execPolling {
		return e.illegal("end task execution")
	}

	t, ok := e.tasks[e.task]
	if !ok {
		return fmt.Errorf("%w: executor %d polling untracked task %d", errs.ErrIllegalTransition, e.id, e.task)
	}
	if err := t.onExecEnd(ts); err != nil {
		return err
	}

	e.transitionTo(execScheduling, ts)

	return nil
}

// onTaskEnd records that a task completed for good. Unknown tasks are
// ignored: the end may be the only event of a task that lived entirely
// inside a lost stream segment.
func (e *executorTrace) onTaskEnd(task uint16, ts uint64) error {
	t, ok := e.tasks[task]
	if !ok {
		return nil
	}

	if e.state != execPolling || e.task != task {
		return e.illegal(fmt.Sprintf("end task %d", task))
	}

	return t.onEnd(ts)
}

func (e *executorTrace) onPollStart(ts uint64) error {
	e.transitionTo(execScheduling, ts)

	return nil
}

func (e *executorTrace) onIdle(ts uint64) error {
	e.transitionTo(execIdle, ts)

	return nil
}

func (e *executorTrace) onPreempted(ts uint64, by uint8) error {
	var prevPolling bool
	switch e.state {
	case execScheduling:
		prevPolling = false
	case execPolling:
		prevPolling = true
	default:
		return e.illegal(fmt.Sprintf("be preempted by executor %d", by))
	}

	// The running task is displaced along with its executor. Preemption
	// while scheduling has no running task; that is not an error.
	for _, t := range e.tasks {
		if t.state == taskRunning {
			if err := t.onPreempted(ts, by); err != nil {
				return err
			}

			break
		}
	}

	e.preemptedBy = by
	e.prevPolling = prevPolling
	e.transitionTo(execPreempted, ts)

	return nil
}

func (e *executorTrace) onResume(ts uint64) error {
	if e.state != execPreempted {
		return e.illegal("resume")
	}

	for _, t := range e.tasks {
		if t.state == taskPreempted {
			if err := t.onResumed(ts); err != nil {
				return err
			}

			break
		}
	}

	// Restore the exact pre-preemption state.
	if e.prevPolling {
		e.transitionTo(execPolling, ts)
	} else {
		e.transitionTo(execScheduling, ts)
	}

	return nil
}

func (e *executorTrace) onMonitorStart(name string, ts uint64) {
	if e.state != execPolling {
		return
	}
	if t, ok := e.tasks[e.task]; ok {
		t.onMonitorStart(name, ts)
	}
}

func (e *executorTrace) onMonitorEnd(ts uint64) {
	if e.state != execPolling {
		return
	}
	if t, ok := e.tasks[e.task]; ok {
		t.onMonitorEnd(ts)
	}
}

// onDesynchronize ends the executor scope and every task scope at the
// desync timestamp.
func (e *executorTrace) onDesynchronize(ts uint64) {
	e.state = execDesynced
	e.sink.Emit(trace.End{Pid: uint32(e.id), Tid: 0, TS: ts})

	for _, t := range e.tasks {
		t.onDesynchronize(ts)
	}
}

func (e *executorTrace) onDrop(ts uint64) {
	for _, t := range e.tasks {
		t.onDrop(ts)
	}
	e.sink.Emit(trace.End{Pid: uint32(e.id), Tid: 0, TS: ts})
}
