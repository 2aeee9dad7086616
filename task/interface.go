package task

import (
	"context"
	"iter"

	"github.com/sirupsen/logrus"

	"github.com/mensylisir/xmbuild/runtime"
)

// Task is a node of a build's task tree. A caller drives it through
// Validate, Initialise, CanRun, then either Run or Skip, and always CleanUp.
type Task interface {
	// Name returns the configured name; it may be empty.
	Name() string
	// NameOrType returns the name, or the concrete type name when no name is set.
	NameOrType() string
	Description() string
	State() State

	Conditions() []Condition
	FailureActions() []FailureAction

	Parent() Task
	SetParent(parent Task)
	Project() Project
	SetProject(project Project)

	// SetLogger injects the sink used for protocol diagnostics.
	SetLogger(log logrus.FieldLogger)

	// Validate checks the node's configuration. It does not change state or validate children.
	Validate() error
	// Initialise resets the node to Pending for a new pass.
	Initialise() error
	// CanRun evaluates the conditions in order and stops at the first false one.
	CanRun(ctx context.Context, rt runtime.Runtime) (bool, error)
	// Run returns the lazily produced child tasks. The node is Completed only once
	// the whole sequence has been consumed.
	Run(ctx context.Context, rt runtime.Runtime) iter.Seq2[Task, error]
	Skip()
	// CleanUp turns Pending into Skipped and Executing into Terminated, then calls the cleanup hook.
	CleanUp() error
}

// Body holds the task specific run behaviour. Every concrete task implements it.
type Body interface {
	// OnRun performs the task's work, yielding child tasks as they are produced.
	// Yielding a non-nil error stops the run.
	OnRun(ctx context.Context, rt runtime.Runtime) iter.Seq2[Task, error]
}

// ValidateHook is implemented by bodies with their own configuration checks.
type ValidateHook interface {
	OnValidate() error
}

// InitialiseHook is implemented by bodies that reset per-pass state.
type InitialiseHook interface {
	OnInitialise() error
}

// CleanUpHook is implemented by bodies that release resources after a pass.
type CleanUpHook interface {
	OnCleanUp() error
}

// Container is implemented by tasks whose children are known before the build starts.
type Container interface {
	Children() []Task
}

// Condition gates whether a task may run.
type Condition interface {
	Name() string
	Evaluate(ctx context.Context, rt runtime.Runtime) (bool, error)
}

// FailureAction is a remediation step the build invokes when a task's run fails.
// Task nodes only store them.
type FailureAction interface {
	Name() string
	Invoke(ctx context.Context, rt runtime.Runtime, failed Task, cause error) error
}

// Project is the owner of a task tree.
type Project interface {
	Name() string
}

// Validatable is implemented by conditions and failure actions that can check their own configuration.
type Validatable interface {
	Validate() error
}
