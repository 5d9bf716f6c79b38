package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/embertrace/embertrace/errs"
	"github.com/embertrace/embertrace/trace"
)

func newTask(state taskState) (*taskTrace, *trace.SliceSink) {
	sink := &trace.SliceSink{}

	return newTaskTrace(1, 100, state, 0, sink), sink
}

func TestTaskTrace_HappyPath(t *testing.T) {
	task, _ := newTask(taskSpawned)

	require.NoError(t, task.onReady(10))
	require.Equal(t, taskReady, task.state)

	require.NoError(t, task.onExecBegin(20))
	require.Equal(t, taskRunning, task.state)

	require.NoError(t, task.onExecEnd(30))
	require.Equal(t, taskIdle, task.state)

	require.NoError(t, task.onReady(40))
	require.NoError(t, task.onExecBegin(50))
	require.NoError(t, task.onEnd(60))
	require.Equal(t, taskEnded, task.state)
}

func TestTaskTrace_IllegalTransitions(t *testing.T) {
	task, _ := newTask(taskSpawned)

	// Spawned task cannot begin execution or end.
	require.ErrorIs(t, task.onExecBegin(5), errs.ErrIllegalTransition)
	require.ErrorIs(t, task.onExecEnd(5), errs.ErrIllegalTransition)
	require.ErrorIs(t, task.onEnd(5), errs.ErrIllegalTransition)
	require.ErrorIs(t, task.onPreempted(5, 2), errs.ErrIllegalTransition)
	require.ErrorIs(t, task.onResumed(5), errs.ErrIllegalTransition)

	// Ended is terminal.
	endedTask, _ := newTask(taskRunning)
	require.NoError(t, endedTask.onEnd(10))
	require.ErrorIs(t, endedTask.onReady(20), errs.ErrIllegalTransition)
}

func TestTaskTrace_ReawokenFlagClearsAfterUse(t *testing.T) {
	task, _ := newTask(taskRunning)

	require.NoError(t, task.onReady(5)) // re-awoken mid-poll
	require.NoError(t, task.onExecEnd(10))
	require.Equal(t, taskReady, task.state)

	// Next cycle: the flag must not leak.
	require.NoError(t, task.onExecBegin(20))
	require.NoError(t, task.onExecEnd(30))
	require.Equal(t, taskIdle, task.state)
}

func TestTaskTrace_PreemptRestoresMonitorOrder(t *testing.T) {
	task, sink := newTask(taskRunning)

	task.onMonitorStart("outer", 10)
	task.onMonitorStart("inner", 20)

	require.NoError(t, task.onPreempted(30, 2))

	// Both spans truncated at the preemption instant, innermost first.
	cs := completes(sink)
	require.Len(t, cs, 2)
	require.Equal(t, "inner", cs[0].Name)
	require.Equal(t, uint64(10), cs[0].Dur)
	require.Equal(t, "outer", cs[1].Name)
	require.Equal(t, uint64(20), cs[1].Dur)

	require.NoError(t, task.onResumed(50))
	require.Len(t, task.monitors, 2)
	require.Equal(t, "outer", task.monitors[0].name)
	require.Equal(t, "inner", task.monitors[1].name)
	require.Equal(t, uint64(50), task.monitors[0].start)
}

func TestExecutorTrace_PreemptPreservesPrevState(t *testing.T) {
	sink := &trace.SliceSink{}
	e := newExecutorPolling(1, 100, 0, sink)

	require.NoError(t, e.onPreempted(10, 2))
	require.Equal(t, execPreempted, e.state)
	require.True(t, e.isPreemptedBy(2))
	require.False(t, e.isRunning())

	require.NoError(t, e.onResume(20))
	require.Equal(t, execPolling, e.state)
	require.Equal(t, uint16(100), e.task)

	// Preemption while scheduling restores scheduling.
	require.NoError(t, e.onTaskExecEnd(30))
	require.Equal(t, execScheduling, e.state)
	require.NoError(t, e.onPreempted(40, 3))
	require.NoError(t, e.onResume(50))
	require.Equal(t, execScheduling, e.state)
}

func TestExecutorTrace_SingleRunningTask(t *testing.T) {
	sink := &trace.SliceSink{}
	e := newExecutorPolling(1, 100, 0, sink)

	err := e.onTaskExecBegin(200, 10)
	require.ErrorIs(t, err, errs.ErrIllegalTransition)
}

func TestExecutorTrace_DoublePreemptIsIllegal(t *testing.T) {
	sink := &trace.SliceSink{}
	e := newExecutorPolling(1, 100, 0, sink)

	require.NoError(t, e.onPreempted(10, 2))
	require.ErrorIs(t, e.onPreempted(20, 3), errs.ErrIllegalTransition)
	require.NoError(t, e.onResume(30))
}
