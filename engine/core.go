package engine

import (
	"github.com/embertrace/embertrace/trace"
)

// coreState is the per-core container. It owns the executor map, infers
// preemption between executors, and tracks code monitors that fire outside
// any executor context (interrupt handlers and other bare-core regions).
type coreState struct {
	core      uint8
	executors map[uint8]*executorTrace

	// monitors is the bare-core monitor stack; preempted mirrors the
	// per-task stacks for spans truncated by executor preemption.
	monitors  []openMonitor
	preempted []string

	// attributed remembers every executor short ID that task-exec-begin
	// events have tied to this core. It survives desynchronization so a
	// post-desync poll-start can recreate the executor trace here without
	// waiting for the next core-tagged event.
	attributed map[uint8]bool

	// desynced marks that the core lane shows an open "Desynchronization"
	// slice; the next in-scope event ends it.
	desynced bool

	sink trace.Sink
}

func newCoreState(core uint8, sink trace.Sink) *coreState {
	return &coreState{
		core:       core,
		executors:  make(map[uint8]*executorTrace),
		attributed: make(map[uint8]bool),
		sink:       sink,
	}
}

func (c *coreState) tid() uint32 {
	return trace.CoreTID(c.core)
}

func (c *coreState) beginLane(name string, ts uint64) {
	c.sink.Emit(trace.Begin{Name: name, Pid: trace.CoreOverviewPID, Tid: c.tid(), TS: ts})
}

func (c *coreState) endLane(ts uint64) {
	c.sink.Emit(trace.End{Pid: trace.CoreOverviewPID, Tid: c.tid(), TS: ts})
}

// exitDesync closes the "Desynchronization" slice when the first in-scope
// event arrives after a reset.
func (c *coreState) exitDesync(ts uint64) {
	if c.desynced {
		c.desynced = false
		c.endLane(ts)
	}
}

// runningExecutor returns the executor occupying this core, if any.
func (c *coreState) runningExecutor() *executorTrace {
	for _, e := range c.executors {
		if e.isRunning() {
			return e
		}
	}

	return nil
}

// onMonitorStart attributes a code-monitor start: to the polled task when
// an executor is running, otherwise to the bare-core stack.
func (c *coreState) onMonitorStart(name string, ts uint64) {
	if e := c.runningExecutor(); e != nil {
		e.onMonitorStart(name, ts)

		return
	}
	c.monitors = append(c.monitors, openMonitor{name: name, start: ts})
}

func (c *coreState) onMonitorEnd(ts uint64) {
	if e := c.runningExecutor(); e != nil {
		e.onMonitorEnd(ts)

		return
	}

	if len(c.monitors) == 0 {
		return
	}
	m := c.monitors[len(c.monitors)-1]
	c.monitors = c.monitors[:len(c.monitors)-1]
	c.emitMonitorComplete(m, ts)
}

func (c *coreState) emitMonitorComplete(m openMonitor, end uint64) {
	c.sink.Emit(trace.Complete{
		Name: m.name,
		Cat:  "code_monitor",
		Pid:  trace.CoreOverviewPID,
		Tid:  c.tid(),
		TS:   m.start,
		Dur:  end - m.start,
	})
}

// onTaskSpawned forwards a task creation to the owning executor. A spawn
// with no executor trace on this core is ignored: it carries no core
// identity, so it cannot create one here.
func (c *coreState) onTaskSpawned(executor uint8, task uint16, ts uint64) {
	if e, ok := c.executors[executor]; ok {
		e.onTaskSpawned(task, ts)
	}
}

// onTaskReady forwards a wake to whichever executor on this core tracks the
// task. TaskReady carries no executor or core identity, so it applies only
// where the task is already known.
func (c *coreState) onTaskReady(task uint16, ts uint64) error {
	for _, e := range c.executors {
		if _, ok := e.tasks[task]; ok {
			return e.onTaskReady(task, ts)
		}
	}

	return nil
}

// onTaskExecBegin is the only event that can attribute an executor to this
// core: it is core-tagged by its event kind. An unknown executor gets a
// fresh trace already polling the task.
func (c *coreState) onTaskExecBegin(executor uint8, task uint16, ts uint64) error {
	c.exitDesync(ts)
	c.attributed[executor] = true

	if e, ok := c.executors[executor]; ok {
		return e.onTaskExecBegin(task, ts)
	}

	c.executors[executor] = newExecutorPolling(executor, task, ts, c.sink)

	return nil
}

func (c *coreState) onTaskExecEnd(executor uint8, ts uint64) error {
	if e, ok := c.executors[executor]; ok {
		return e.onTaskExecEnd(ts)
	}

	return nil // other core
}

func (c *coreState) onTaskEnd(executor uint8, task uint16, ts uint64) error {
	if e, ok := c.executors[executor]; ok {
		return e.onTaskEnd(task, ts)
	}

	return nil
}

// onPollStart drives preemption inference: a poll-start for executor E'
// while executor E occupies this core preempts E (and its running task, and
// the bare-core monitor stack) before E' takes over. The boolean reports
// whether this core attributed the event; a poll-start no core claims is
// held by the engine until a core-tagged event resolves the executor's
// placement.
func (c *coreState) onPollStart(executor uint8, ts uint64) (bool, error) {
	e, known := c.executors[executor]
	if !known {
		if !c.attributed[executor] {
			return false, nil // not this core's executor
		}

		// Known from before a desynchronization: recreate in Scheduling.
		c.exitDesync(ts)
		e = newExecutorScheduling(executor, ts, c.sink)
		c.executors[executor] = e
	}

	return true, c.startPolling(e, ts)
}

// adoptExecutor retroactively places an executor on this core: a poll-start
// arrived before any core-tagged event named the executor's core, and the
// task-exec-begin now resolving it replays the scheduling start at the
// original timestamp.
func (c *coreState) adoptExecutor(executor uint8, pollTS uint64) error {
	c.exitDesync(pollTS)
	c.attributed[executor] = true

	e := newExecutorScheduling(executor, pollTS, c.sink)
	c.executors[executor] = e

	return c.startPolling(e, pollTS)
}

func (c *coreState) startPolling(e *executorTrace, ts uint64) error {
	c.exitDesync(ts)

	// Another executor occupying the core gets preempted. e itself may
	// already count as running (fresh Scheduling trace), so exclude it.
	var running *executorTrace
	for _, other := range c.executors {
		if other.isRunning() && other.id != e.id {
			running = other

			break
		}
	}

	if running != nil {
		if err := running.onPreempted(ts, e.id); err != nil {
			return err
		}

		// Bare-core spans truncate exactly like task-scoped ones.
		for i := len(c.monitors) - 1; i >= 0; i-- {
			m := c.monitors[i]
			c.preempted = append(c.preempted, m.name)
			c.emitMonitorComplete(m, ts)
		}
		c.monitors = c.monitors[:0]

		c.endLane(ts)
	}

	c.beginLane(executorLaneName(e.id), ts)

	return e.onPollStart(ts)
}

// onIdle retires the executor from the core and resumes whichever executor
// it had preempted, restoring that executor's recorded state and the saved
// bare-core monitors.
func (c *coreState) onIdle(executor uint8, ts uint64) error {
	e, ok := c.executors[executor]
	if !ok {
		return nil // other core
	}

	c.endLane(ts)

	for _, other := range c.executors {
		if !other.isPreemptedBy(executor) {
			continue
		}
		if err := other.onResume(ts); err != nil {
			return err
		}

		c.beginLane(executorLaneName(other.id), ts)

		for i := len(c.preempted) - 1; i >= 0; i-- {
			c.monitors = append(c.monitors, openMonitor{name: c.preempted[i], start: ts})
		}
		c.preempted = c.preempted[:0]

		break
	}

	return e.onIdle(ts)
}

// onDesynchronize resets the core: every executor and task scope ends at
// the desync timestamp, open bare-core monitors flush, and the lane shows
// "Desynchronization" until the next in-scope event. The executor map is
// rebuilt from scratch; attribution memory survives.
func (c *coreState) onDesynchronize(ts uint64) {
	for _, e := range c.executors {
		e.onDesynchronize(ts)
	}
	c.executors = make(map[uint8]*executorTrace)

	for i := len(c.monitors) - 1; i >= 0; i-- {
		c.emitMonitorComplete(c.monitors[i], ts)
	}
	c.monitors = c.monitors[:0]
	c.preempted = c.preempted[:0]

	if !c.desynced {
		c.endLane(ts)
		c.desynced = true
		c.beginLane("Desynchronization", ts)
	}
}

// onDrop flushes everything at engine teardown.
func (c *coreState) onDrop(ts uint64) {
	for _, e := range c.executors {
		e.onDrop(ts)
	}

	for i := len(c.monitors) - 1; i >= 0; i-- {
		c.emitMonitorComplete(c.monitors[i], ts)
	}
	c.monitors = c.monitors[:0]

	c.endLane(ts)
}
