package task

import (
	"context"
	"errors"
	"iter"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mensylisir/xmbuild/common"
	"github.com/mensylisir/xmbuild/runtime"
)

// --- Test doubles ---

type mockTask struct {
	*BaseTask
	children  []Task
	failAt    int // index at which runErr is yielded, -1 for never
	runErr    error
	produced  int
	nilResult bool

	validateErr error
	initErr     error
	cleanupErr  error

	validateCalls int
	initCalls     int
	cleanupCalls  int
}

func newMockTask(name string, children ...Task) *mockTask {
	m := &mockTask{children: children, failAt: -1}
	m.BaseTask = NewBaseTask(name, "mock task "+name, m)
	return m
}

func (m *mockTask) OnRun(ctx context.Context, rt runtime.Runtime) iter.Seq2[Task, error] {
	if m.nilResult {
		return nil
	}
	return func(yield func(Task, error) bool) {
		for i, c := range m.children {
			if i == m.failAt {
				yield(nil, m.runErr)
				return
			}
			m.produced++
			if !yield(c, nil) {
				return
			}
		}
		if m.failAt >= len(m.children) {
			yield(nil, m.runErr)
		}
	}
}

func (m *mockTask) OnValidate() error {
	m.validateCalls++
	return m.validateErr
}

func (m *mockTask) OnInitialise() error {
	m.initCalls++
	return m.initErr
}

func (m *mockTask) OnCleanUp() error {
	m.cleanupCalls++
	return m.cleanupErr
}

// plainTask only implements the mandatory hook.
type plainTask struct {
	*BaseTask
}

func newPlainTask(name string) *plainTask {
	p := &plainTask{}
	p.BaseTask = NewBaseTask(name, "", p)
	return p
}

func (p *plainTask) OnRun(ctx context.Context, rt runtime.Runtime) iter.Seq2[Task, error] {
	return func(yield func(Task, error) bool) {}
}

type mockCondition struct {
	name   string
	result bool
	err    error
	calls  int
}

func (c *mockCondition) Name() string { return c.name }

func (c *mockCondition) Evaluate(ctx context.Context, rt runtime.Runtime) (bool, error) {
	c.calls++
	return c.result, c.err
}

type invalidCondition struct{ mockCondition }

func (c *invalidCondition) Validate() error { return errors.New("bad schedule") }

type mockAction struct{ name string }

func (a *mockAction) Name() string { return a.name }
func (a *mockAction) Invoke(ctx context.Context, rt runtime.Runtime, failed Task, cause error) error {
	return nil
}

type mockProject struct{ name string }

func (p *mockProject) Name() string { return p.name }

func newTestRuntime() runtime.Runtime {
	return runtime.NewBuildContext(runtime.Config{ProjectName: "test"})
}

func drain(t *testing.T, seq iter.Seq2[Task, error]) ([]Task, error) {
	t.Helper()
	var got []Task
	for child, err := range seq {
		if err != nil {
			return got, err
		}
		got = append(got, child)
	}
	return got, nil
}

var allStates = []State{
	StateUnknown, StatePending, StateCheckingConditions, StateExecuting,
	StateCompleted, StateSkipped, StateTerminated,
}

// --- Tests ---

func TestNewBaseTask_Defaults(t *testing.T) {
	m := newMockTask("compile")
	assert.Equal(t, StateUnknown, m.State())
	assert.Equal(t, "compile", m.Name())
	assert.Equal(t, "mock task compile", m.Description())
	assert.Empty(t, m.Conditions())
	assert.Empty(t, m.FailureActions())
	assert.Nil(t, m.Parent())
	assert.Nil(t, m.Project())
}

func TestNameOrType(t *testing.T) {
	assert.Equal(t, "named", newMockTask("named").NameOrType())
	assert.Equal(t, "mockTask", newMockTask("").NameOrType())
	assert.Equal(t, "plainTask", newPlainTask("").NameOrType())
	assert.Equal(t, "BaseTask", NewBaseTask("", "", nil).NameOrType())

	m := newMockTask("")
	m.SetName("renamed")
	m.SetDescription("desc")
	assert.Equal(t, "renamed", m.NameOrType())
	assert.Equal(t, "desc", m.Description())
}

func TestInitialise_AlwaysResetsToPending(t *testing.T) {
	for _, s := range allStates {
		t.Run(s.String(), func(t *testing.T) {
			m := newMockTask("a")
			m.state = s
			require.NoError(t, m.Initialise())
			assert.Equal(t, StatePending, m.State())
			assert.Equal(t, 1, m.initCalls)
		})
	}
}

func TestInitialise_Twice(t *testing.T) {
	m := newMockTask("a")
	require.NoError(t, m.Initialise())
	require.NoError(t, m.Initialise())
	assert.Equal(t, StatePending, m.State())
	assert.Equal(t, 2, m.initCalls)
}

func TestInitialise_HookError(t *testing.T) {
	m := newMockTask("a")
	m.initErr = errors.New("workspace missing")
	err := m.Initialise()
	require.Error(t, err)
	assert.Equal(t, StatePending, m.State())

	var te *Error
	require.ErrorAs(t, err, &te)
	assert.Equal(t, KindInitialise, te.Kind)
	assert.Equal(t, "a", te.Task)
}

func TestCanRun_NoConditions(t *testing.T) {
	m := newMockTask("a")
	require.NoError(t, m.Initialise())
	ok, err := m.CanRun(context.Background(), newTestRuntime())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, StateCheckingConditions, m.State())
}

func TestCanRun_AllTrue(t *testing.T) {
	c1 := &mockCondition{name: "c1", result: true}
	c2 := &mockCondition{name: "c2", result: true}
	m := newMockTask("a")
	m.AddCondition(c1, c2)

	require.NoError(t, m.Initialise())
	ok, err := m.CanRun(context.Background(), newTestRuntime())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, c1.calls)
	assert.Equal(t, 1, c2.calls)
}

func TestCanRun_ShortCircuitsThenSkip(t *testing.T) {
	c1 := &mockCondition{name: "c1", result: true}
	c2 := &mockCondition{name: "c2", result: false}
	c3 := &mockCondition{name: "c3", result: true}
	m := newMockTask("a")
	m.AddCondition(c1, c2, c3)

	require.NoError(t, m.Initialise())
	ok, err := m.CanRun(context.Background(), newTestRuntime())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, c1.calls)
	assert.Equal(t, 1, c2.calls)
	assert.Equal(t, 0, c3.calls, "conditions after the first false one are never evaluated")

	m.Skip()
	assert.Equal(t, StateSkipped, m.State())
}

func TestCanRun_ConditionErrorPropagates(t *testing.T) {
	cause := errors.New("scm unreachable")
	c1 := &mockCondition{name: "c1", err: cause}
	c2 := &mockCondition{name: "c2", result: true}
	m := newMockTask("a")
	m.AddCondition(c1, c2)

	require.NoError(t, m.Initialise())
	ok, err := m.CanRun(context.Background(), newTestRuntime())
	require.Error(t, err)
	assert.False(t, ok)
	assert.True(t, IsConditionEvaluationFailure(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 0, c2.calls)
	assert.Equal(t, StateCheckingConditions, m.State())
}

func TestCanRun_RequiresInitialise(t *testing.T) {
	for _, s := range allStates {
		if s == StatePending || s == StateCheckingConditions {
			continue
		}
		t.Run(s.String(), func(t *testing.T) {
			c := &mockCondition{name: "c", result: true}
			m := newMockTask("a")
			m.AddCondition(c)
			m.state = s

			ok, err := m.CanRun(context.Background(), newTestRuntime())
			require.Error(t, err)
			assert.False(t, ok)
			assert.True(t, IsProtocolError(err))
			assert.ErrorIs(t, err, ErrNotInitialised)
			assert.Equal(t, s, m.State(), "state is left untouched")
			assert.Equal(t, 0, c.calls)
		})
	}
}

func TestCanRun_Reevaluate(t *testing.T) {
	c := &mockCondition{name: "c", result: true}
	m := newMockTask("a")
	m.AddCondition(c)
	require.NoError(t, m.Initialise())

	for i := 0; i < 2; i++ {
		ok, err := m.CanRun(context.Background(), newTestRuntime())
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, StateCheckingConditions, m.State())
	}
	assert.Equal(t, 2, c.calls)
}

func TestRun_FullDrainCompletes(t *testing.T) {
	c1, c2 := newMockTask("c1"), newMockTask("c2")
	m := newMockTask("parent", c1, c2)
	require.NoError(t, m.Initialise())

	seq := m.Run(context.Background(), newTestRuntime())
	assert.Equal(t, StateExecuting, m.State())

	var seen []Task
	for child, err := range seq {
		require.NoError(t, err)
		assert.Equal(t, StateExecuting, m.State(), "parent stays executing while children are produced")
		seen = append(seen, child)
	}
	assert.Equal(t, []Task{c1, c2}, seen)
	assert.Equal(t, StateCompleted, m.State())
}

func TestRun_FromCheckingConditions(t *testing.T) {
	m := newMockTask("a")
	require.NoError(t, m.Initialise())
	ok, err := m.CanRun(context.Background(), newTestRuntime())
	require.NoError(t, err)
	require.True(t, ok)

	_, err = drain(t, m.Run(context.Background(), newTestRuntime()))
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, m.State())
}

func TestRun_IsLazy(t *testing.T) {
	m := newMockTask("parent", newMockTask("c1"), newMockTask("c2"), newMockTask("c3"))
	require.NoError(t, m.Initialise())

	seq := m.Run(context.Background(), newTestRuntime())
	assert.Equal(t, 0, m.produced, "the body runs only when the sequence is pulled")

	for range seq {
		assert.Equal(t, 1, m.produced)
		break
	}
	assert.Equal(t, 1, m.produced)
	assert.Equal(t, StateExecuting, m.State())
}

func TestRun_EarlyStopThenCleanUpTerminates(t *testing.T) {
	m := newMockTask("parent", newMockTask("c1"), newMockTask("c2"))
	require.NoError(t, m.Initialise())

	for range m.Run(context.Background(), newTestRuntime()) {
		break
	}
	assert.Equal(t, StateExecuting, m.State())

	require.NoError(t, m.CleanUp())
	assert.Equal(t, StateTerminated, m.State())
	assert.Equal(t, 1, m.cleanupCalls)
}

func TestRun_HookErrorLeavesExecuting(t *testing.T) {
	cause := errors.New("compiler crashed")
	child := newMockTask("c1")
	m := newMockTask("parent", child, newMockTask("c2"))
	m.failAt = 1
	m.runErr = cause
	require.NoError(t, m.Initialise())

	got, err := drain(t, m.Run(context.Background(), newTestRuntime()))
	require.Error(t, err)
	assert.Equal(t, []Task{child}, got)
	assert.True(t, IsExecutionFailure(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, StateExecuting, m.State())

	require.NoError(t, m.CleanUp())
	assert.Equal(t, StateTerminated, m.State())
}

func TestRun_ExecutionFailureNotDoubleWrapped(t *testing.T) {
	inner := NewExecutionFailure("child", errors.New("boom"))
	m := newMockTask("parent")
	m.failAt = 0
	m.runErr = inner
	require.NoError(t, m.Initialise())

	_, err := drain(t, m.Run(context.Background(), newTestRuntime()))
	assert.Same(t, inner, err)
}

func TestRun_NilSequenceCompletes(t *testing.T) {
	m := newMockTask("a")
	m.nilResult = true
	require.NoError(t, m.Initialise())

	got, err := drain(t, m.Run(context.Background(), newTestRuntime()))
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, StateCompleted, m.State())
}

func TestRun_NilChildIgnored(t *testing.T) {
	c1 := newMockTask("c1")
	m := newMockTask("parent", nil, c1)
	require.NoError(t, m.Initialise())

	got, err := drain(t, m.Run(context.Background(), newTestRuntime()))
	require.NoError(t, err)
	assert.Equal(t, []Task{c1}, got)
	assert.Equal(t, StateCompleted, m.State())
}

func TestRun_SequenceIsSinglePass(t *testing.T) {
	m := newMockTask("a", newMockTask("c1"))
	require.NoError(t, m.Initialise())

	seq := m.Run(context.Background(), newTestRuntime())
	_, err := drain(t, seq)
	require.NoError(t, err)

	_, err = drain(t, seq)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSequenceConsumed)
	assert.Equal(t, StateCompleted, m.State())
}

func TestRun_RequiresInitialise(t *testing.T) {
	for _, s := range []State{StateUnknown, StateExecuting, StateCompleted, StateSkipped, StateTerminated} {
		t.Run(s.String(), func(t *testing.T) {
			m := newMockTask("a", newMockTask("c1"))
			m.state = s

			got, err := drain(t, m.Run(context.Background(), newTestRuntime()))
			require.Error(t, err)
			assert.Empty(t, got)
			assert.True(t, IsProtocolError(err))
			assert.Equal(t, s, m.State())
			assert.Equal(t, 0, m.produced)
		})
	}
}

func TestRun_ReusedAcrossPasses(t *testing.T) {
	m := newMockTask("a", newMockTask("c1"))
	rt := newTestRuntime()
	for pass := 0; pass < 2; pass++ {
		require.NoError(t, m.Initialise())
		ok, err := m.CanRun(context.Background(), rt)
		require.NoError(t, err)
		require.True(t, ok)
		_, err = drain(t, m.Run(context.Background(), rt))
		require.NoError(t, err)
		require.NoError(t, m.CleanUp())
		assert.Equal(t, StateCompleted, m.State())
	}
	assert.Equal(t, 2, m.produced)
}

func TestSkip_FromAnyState(t *testing.T) {
	for _, s := range allStates {
		m := newMockTask("a")
		m.state = s
		m.Skip()
		assert.Equal(t, StateSkipped, m.State(), "from %s", s)
	}
}

func TestCleanUp_Normalization(t *testing.T) {
	expected := map[State]State{
		StateUnknown:            StateUnknown,
		StatePending:            StateSkipped,
		StateCheckingConditions: StateCheckingConditions,
		StateExecuting:          StateTerminated,
		StateCompleted:          StateCompleted,
		StateSkipped:            StateSkipped,
		StateTerminated:         StateTerminated,
	}
	for from, to := range expected {
		t.Run(from.String(), func(t *testing.T) {
			m := newMockTask("a")
			m.state = from
			require.NoError(t, m.CleanUp())
			assert.Equal(t, to, m.State())
			assert.Equal(t, 1, m.cleanupCalls, "the cleanup hook always runs")

			require.NoError(t, m.CleanUp())
			assert.Equal(t, to, m.State(), "normalization is idempotent")
		})
	}
}

func TestCleanUp_HookError(t *testing.T) {
	m := newMockTask("a")
	m.cleanupErr = errors.New("cannot remove workspace")
	m.state = StateExecuting

	err := m.CleanUp()
	require.Error(t, err)
	assert.Equal(t, StateTerminated, m.State())
	var te *Error
	require.ErrorAs(t, err, &te)
	assert.Equal(t, KindCleanUp, te.Kind)
}

func TestOptionalHooksDefaultToNoop(t *testing.T) {
	p := newPlainTask("plain")
	rt := newTestRuntime()

	require.NoError(t, p.Validate())
	require.NoError(t, p.Initialise())
	ok, err := p.CanRun(context.Background(), rt)
	require.NoError(t, err)
	require.True(t, ok)
	_, err = drain(t, p.Run(context.Background(), rt))
	require.NoError(t, err)
	require.NoError(t, p.CleanUp())
	assert.Equal(t, StateCompleted, p.State())
}

func TestValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		m := newMockTask("a")
		m.AddCondition(&mockCondition{name: "c"})
		m.AddFailureAction(&mockAction{name: "notify"})
		require.NoError(t, m.Validate())
		assert.Equal(t, 1, m.validateCalls)
		assert.Equal(t, StateUnknown, m.State(), "validation does not change state")
	})

	t.Run("hook error", func(t *testing.T) {
		m := newMockTask("a")
		m.validateErr = errors.New("missing command")
		err := m.Validate()
		require.Error(t, err)
		assert.True(t, IsValidationError(err))
		assert.Contains(t, err.Error(), "missing command")
		assert.Equal(t, StateUnknown, m.State())
	})

	t.Run("nil condition", func(t *testing.T) {
		m := newMockTask("a")
		m.AddCondition(nil)
		err := m.Validate()
		assert.True(t, IsValidationError(err))
		assert.Equal(t, 0, m.validateCalls)
	})

	t.Run("nil failure action", func(t *testing.T) {
		m := newMockTask("a")
		m.AddFailureAction(nil)
		assert.True(t, IsValidationError(m.Validate()))
	})

	t.Run("invalid condition", func(t *testing.T) {
		m := newMockTask("a")
		m.AddCondition(&invalidCondition{mockCondition{name: "nightly"}})
		err := m.Validate()
		require.Error(t, err)
		assert.True(t, IsValidationError(err))
		assert.Contains(t, err.Error(), "nightly")
	})

	t.Run("no body", func(t *testing.T) {
		assert.True(t, IsValidationError(NewBaseTask("x", "", nil).Validate()))
	})

	t.Run("children are not validated", func(t *testing.T) {
		child := newMockTask("child")
		child.validateErr = errors.New("broken")
		parent := newMockTask("parent", child)
		require.NoError(t, parent.Validate())
		assert.Equal(t, 0, child.validateCalls)
	})
}

func TestConditionsAndFailureActionsKeepOrder(t *testing.T) {
	c1 := &mockCondition{name: "c1"}
	c2 := &mockCondition{name: "c2"}
	a1 := &mockAction{name: "a1"}
	m := newMockTask("a")
	m.AddCondition(c1, c2, c1)
	m.AddFailureAction(a1, a1)

	assert.Equal(t, []Condition{c1, c2, c1}, m.Conditions())
	assert.Equal(t, []FailureAction{a1, a1}, m.FailureActions())

	got := m.Conditions()
	got[0] = nil
	assert.Equal(t, c1, m.Conditions()[0], "callers get a copy")
}

func TestParentAndProjectReferences(t *testing.T) {
	parent := newMockTask("parent")
	child := newMockTask("child")
	p := &mockProject{name: "demo"}

	child.SetParent(parent)
	child.SetProject(p)
	assert.Same(t, parent, child.Parent())
	assert.Equal(t, "demo", child.Project().Name())
}

func TestProtocolDiagnostics(t *testing.T) {
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)

	m := newMockTask("compile")
	m.SetLogger(log.WithField(common.TaskName, "compile"))
	m.AddCondition(&mockCondition{name: "never", result: false})
	rt := newTestRuntime()

	require.NoError(t, m.Validate())
	require.NoError(t, m.Initialise())
	ok, err := m.CanRun(context.Background(), rt)
	require.NoError(t, err)
	require.False(t, ok)
	m.Skip()
	require.NoError(t, m.CleanUp())

	var messages []string
	for _, e := range hook.AllEntries() {
		messages = append(messages, e.Message)
		assert.Equal(t, "compile", e.Data[common.TaskName])
	}
	assert.Equal(t, []string{
		"Validating task: compile",
		"Initialising task: compile",
		"Checking conditions for task: compile",
		"Condition not met for task: compile",
		"Skipping task: compile",
		"Cleaning up task: compile",
	}, messages)
	assert.Equal(t, "never", hook.AllEntries()[3].Data[common.ConditionName])

	m.SetLogger(nil)
	assert.NotNil(t, m.Logger())
}

func TestCleanUp_LogsTransition(t *testing.T) {
	cases := []struct {
		from State
		want string
	}{
		{StatePending, "Task a cleaned up: pending -> skipped"},
		{StateExecuting, "Task a cleaned up: executing -> terminated"},
	}
	for _, tc := range cases {
		t.Run(tc.from.String(), func(t *testing.T) {
			log, hook := test.NewNullLogger()
			log.SetLevel(logrus.DebugLevel)
			m := newMockTask("a")
			m.SetLogger(log)
			m.state = tc.from

			require.NoError(t, m.CleanUp())
			require.NotNil(t, hook.LastEntry())
			assert.Equal(t, tc.want, hook.LastEntry().Message)
			assert.Equal(t, logrus.DebugLevel, hook.LastEntry().Level)
		})
	}

	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	m := newMockTask("a")
	m.SetLogger(log)
	m.state = StateCompleted
	require.NoError(t, m.CleanUp())
	for _, e := range hook.AllEntries() {
		assert.NotContains(t, e.Message, "cleaned up:")
	}
}
