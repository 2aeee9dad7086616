package task

import (
	"context"
	"io"
	"iter"
	"reflect"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/mensylisir/xmbuild/common"
	"github.com/mensylisir/xmbuild/runtime"
)

var discardLogger = newDiscardLogger()

func newDiscardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// BaseTask implements the Task protocol and delegates task specific behaviour to a Body.
// Concrete tasks embed a *BaseTask created with themselves as the body:
//
//	t := &MyTask{}
//	t.BaseTask = task.NewBaseTask("name", "description", t)
type BaseTask struct {
	name           string
	description    string
	conditions     []Condition
	failureActions []FailureAction
	parent         Task
	project        Project
	state          State
	body           Body
	log            logrus.FieldLogger
}

// NewBaseTask creates a BaseTask in StateUnknown.
func NewBaseTask(name, description string, body Body) *BaseTask {
	return &BaseTask{
		name:           name,
		description:    description,
		conditions:     make([]Condition, 0),
		failureActions: make([]FailureAction, 0),
		state:          StateUnknown,
		body:           body,
		log:            discardLogger,
	}
}

// Name returns the name of the task.
func (bt *BaseTask) Name() string {
	return bt.name
}

// SetName sets the name of the task.
func (bt *BaseTask) SetName(name string) {
	bt.name = name
}

func (bt *BaseTask) NameOrType() string {
	if bt.name != "" {
		return bt.name
	}
	if bt.body == nil {
		return "BaseTask"
	}
	t := reflect.TypeOf(bt.body)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name()
}

// Description returns the description of the task.
func (bt *BaseTask) Description() string {
	return bt.description
}

// SetDescription sets the description of the task.
func (bt *BaseTask) SetDescription(desc string) {
	bt.description = desc
}

func (bt *BaseTask) State() State {
	return bt.state
}

// Conditions returns a copy of the conditions in evaluation order.
func (bt *BaseTask) Conditions() []Condition {
	c := make([]Condition, len(bt.conditions))
	copy(c, bt.conditions)
	return c
}

// AddCondition appends conditions. Duplicates are kept.
func (bt *BaseTask) AddCondition(conditions ...Condition) {
	bt.conditions = append(bt.conditions, conditions...)
}

// FailureActions returns a copy of the failure actions in invocation order.
func (bt *BaseTask) FailureActions() []FailureAction {
	a := make([]FailureAction, len(bt.failureActions))
	copy(a, bt.failureActions)
	return a
}

// AddFailureAction appends failure actions. Duplicates are kept.
func (bt *BaseTask) AddFailureAction(actions ...FailureAction) {
	bt.failureActions = append(bt.failureActions, actions...)
}

func (bt *BaseTask) Parent() Task {
	return bt.parent
}

func (bt *BaseTask) SetParent(parent Task) {
	bt.parent = parent
}

func (bt *BaseTask) Project() Project {
	return bt.project
}

func (bt *BaseTask) SetProject(project Project) {
	bt.project = project
}

// SetLogger sets the diagnostics sink. A nil logger discards diagnostics.
func (bt *BaseTask) SetLogger(log logrus.FieldLogger) {
	if log == nil {
		log = discardLogger
	}
	bt.log = log
}

// Logger returns the diagnostics sink so bodies can log alongside the protocol.
func (bt *BaseTask) Logger() logrus.FieldLogger {
	return bt.log
}

func (bt *BaseTask) Validate() error {
	name := bt.NameOrType()
	bt.log.Debugf("Validating task: %s", name)

	if bt.body == nil {
		return newError(KindValidation, name, errors.New("task has no run behaviour"))
	}
	for i, c := range bt.conditions {
		if c == nil {
			return newError(KindValidation, name, errors.Errorf("condition %d is nil", i+1))
		}
		if v, ok := c.(Validatable); ok {
			if err := v.Validate(); err != nil {
				return newError(KindValidation, name, errors.Wrapf(err, "condition '%s'", c.Name()))
			}
		}
	}
	for i, a := range bt.failureActions {
		if a == nil {
			return newError(KindValidation, name, errors.Errorf("failure action %d is nil", i+1))
		}
		if v, ok := a.(Validatable); ok {
			if err := v.Validate(); err != nil {
				return newError(KindValidation, name, errors.Wrapf(err, "failure action '%s'", a.Name()))
			}
		}
	}
	if h, ok := bt.body.(ValidateHook); ok {
		if err := h.OnValidate(); err != nil {
			return newError(KindValidation, name, err)
		}
	}
	return nil
}

func (bt *BaseTask) Initialise() error {
	name := bt.NameOrType()
	bt.log.Debugf("Initialising task: %s", name)
	bt.state = StatePending
	if h, ok := bt.body.(InitialiseHook); ok {
		if err := h.OnInitialise(); err != nil {
			return newError(KindInitialise, name, err)
		}
	}
	return nil
}

// CanRun requires the task to be Pending. Calling it without a preceding
// Initialise is a protocol error and leaves the state untouched.
func (bt *BaseTask) CanRun(ctx context.Context, rt runtime.Runtime) (bool, error) {
	name := bt.NameOrType()
	if bt.state != StatePending && bt.state != StateCheckingConditions {
		return false, newError(KindProtocol, name, errors.Wrapf(ErrNotInitialised, "cannot check conditions in state %s", bt.state))
	}

	bt.log.Debugf("Checking conditions for task: %s", name)
	bt.state = StateCheckingConditions
	for i, c := range bt.conditions {
		ok, err := c.Evaluate(ctx, rt)
		if err != nil {
			return false, newError(KindCondition, name, errors.Wrapf(err, "condition %d (%s)", i+1, c.Name()))
		}
		if !ok {
			bt.log.WithField(common.ConditionName, c.Name()).Debugf("Condition not met for task: %s", name)
			return false, nil
		}
	}
	return true, nil
}

// Run marks the task Executing and returns its child sequence. The sequence is
// single-pass. The body is not invoked until the first child is pulled.
func (bt *BaseTask) Run(ctx context.Context, rt runtime.Runtime) iter.Seq2[Task, error] {
	name := bt.NameOrType()
	if bt.state != StatePending && bt.state != StateCheckingConditions {
		err := newError(KindProtocol, name, errors.Wrapf(ErrNotInitialised, "cannot run in state %s", bt.state))
		return func(yield func(Task, error) bool) {
			yield(nil, err)
		}
	}

	bt.log.Debugf("Running task: %s", name)
	bt.state = StateExecuting

	consumed := false
	return func(yield func(Task, error) bool) {
		if consumed {
			yield(nil, newError(KindProtocol, name, ErrSequenceConsumed))
			return
		}
		consumed = true

		if children := bt.body.OnRun(ctx, rt); children != nil {
			for child, err := range children {
				if err != nil {
					bt.log.Debugf("Task %s failed while running: %v", name, err)
					if !IsExecutionFailure(err) {
						err = NewExecutionFailure(name, err)
					}
					yield(nil, err)
					return
				}
				if child == nil {
					bt.log.Warnf("Task %s produced a nil child, ignoring it", name)
					continue
				}
				if !yield(child, nil) {
					bt.log.Debugf("Task %s stopped before completion", name)
					return
				}
			}
		}

		bt.log.Debugf("Task %s has completed", name)
		bt.state = StateCompleted
	}
}

func (bt *BaseTask) Skip() {
	bt.log.Debugf("Skipping task: %s", bt.NameOrType())
	bt.state = StateSkipped
}

func (bt *BaseTask) CleanUp() error {
	name := bt.NameOrType()
	bt.log.Debugf("Cleaning up task: %s", name)
	from := bt.state
	switch from {
	case StatePending:
		bt.state = StateSkipped
	case StateExecuting:
		bt.state = StateTerminated
	}
	if bt.state != from {
		bt.log.Debugf("Task %s cleaned up: %s -> %s", name, from, bt.state)
	}
	if h, ok := bt.body.(CleanUpHook); ok {
		if err := h.OnCleanUp(); err != nil {
			return newError(KindCleanUp, name, err)
		}
	}
	return nil
}
