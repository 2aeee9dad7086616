package task

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorKind classifies failures raised by the task protocol.
type ErrorKind int

const (
	KindValidation ErrorKind = iota
	KindInitialise
	KindCondition
	KindExecution
	KindCleanUp
	KindProtocol
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation error"
	case KindInitialise:
		return "initialise failure"
	case KindCondition:
		return "condition evaluation failure"
	case KindExecution:
		return "execution failure"
	case KindCleanUp:
		return "cleanup failure"
	case KindProtocol:
		return "protocol error"
	default:
		return fmt.Sprintf("error kind %d", int(k))
	}
}

var (
	// ErrNotInitialised is returned when CanRun or Run is called out of order.
	ErrNotInitialised = errors.New("task has not been initialised for this pass")
	// ErrSequenceConsumed is yielded when a Run sequence is ranged over a second time.
	ErrSequenceConsumed = errors.New("run sequence has already been consumed")
)

// Error is raised by a task node. Task holds the node's name or type.
type Error struct {
	Kind ErrorKind
	Task string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("task '%s': %s: %v", e.Task, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Cause lets errors.Cause reach the underlying error.
func (e *Error) Cause() error {
	return e.Err
}

func newError(kind ErrorKind, taskName string, err error) *Error {
	return &Error{Kind: kind, Task: taskName, Err: err}
}

// NewExecutionFailure wraps err as an execution failure of the named task.
func NewExecutionFailure(taskName string, err error) error {
	return newError(KindExecution, taskName, err)
}

// NewInitialiseFailure wraps err as an initialise failure of the named task.
func NewInitialiseFailure(taskName string, err error) error {
	return newError(KindInitialise, taskName, err)
}

// NewConditionFailure wraps err as a condition evaluation failure of the named task.
func NewConditionFailure(taskName string, err error) error {
	return newError(KindCondition, taskName, err)
}

// NewValidationError wraps err as a validation error of the named task.
func NewValidationError(taskName string, err error) error {
	return newError(KindValidation, taskName, err)
}

func hasKind(err error, kind ErrorKind) bool {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind == kind
	}
	return false
}

func IsValidationError(err error) bool {
	return hasKind(err, KindValidation)
}

func IsExecutionFailure(err error) bool {
	return hasKind(err, KindExecution)
}

func IsInitialiseFailure(err error) bool {
	return hasKind(err, KindInitialise)
}

func IsConditionEvaluationFailure(err error) bool {
	return hasKind(err, KindCondition)
}

func IsProtocolError(err error) bool {
	return hasKind(err, KindProtocol)
}
