package project

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/mensylisir/xmbuild/common"
	"github.com/mensylisir/xmbuild/ending"
	"github.com/mensylisir/xmbuild/hook"
	"github.com/mensylisir/xmbuild/runtime"
	"github.com/mensylisir/xmbuild/task"
	"github.com/mensylisir/xmbuild/util"
)

var (
	// ErrBuildAborted is returned when the build's context is done before the walk finishes.
	ErrBuildAborted = errors.New("build aborted")
	// ErrCycle is returned when a task produces itself or one of its running ancestors.
	ErrCycle = errors.New("task is already running higher up the tree")
)

func abortError(ctx context.Context) error {
	return errors.Wrapf(ErrBuildAborted, "%v", context.Cause(ctx))
}

// Walker drives the task protocol over a tree, depth first:
// every node is initialised, gated by CanRun, then run or skipped, and every
// visited node is cleaned up exactly once after all of its children.
// Nodes produced while running are validated before their first visit.
// A Walker is used by one build at a time.
type Walker struct {
	project   task.Project
	log       logrus.FieldLogger
	metrics   *Metrics
	active    map[task.Task]bool
	validated map[task.Task]bool
}

func NewWalker(project task.Project, log logrus.FieldLogger, metrics *Metrics) *Walker {
	if log == nil {
		log = discardLogger()
	}
	return &Walker{
		project:   project,
		log:       log,
		metrics:   metrics,
		active:    make(map[task.Task]bool),
		validated: make(map[task.Task]bool),
	}
}

// Validate attaches and validates every statically known node once, pre-order,
// stopping at the first failure.
func (w *Walker) Validate(roots []task.Task) error {
	var visit func(t task.Task, parent task.Task) error
	visit = func(t task.Task, parent task.Task) error {
		if t == nil {
			return task.NewValidationError("<nil>", errors.New("task is nil"))
		}
		if w.validated[t] {
			return nil
		}
		w.validated[t] = true
		w.attach(t, parent)
		if err := t.Validate(); err != nil {
			return err
		}
		if c, ok := t.(task.Container); ok {
			for _, child := range c.Children() {
				if err := visit(child, t); err != nil {
					return err
				}
			}
		}
		return nil
	}
	for _, root := range roots {
		if err := visit(root, nil); err != nil {
			return err
		}
	}
	return nil
}

// Walk applies the protocol to t and everything it produces.
func (w *Walker) Walk(ctx context.Context, rt runtime.Runtime, t task.Task) error {
	return w.visit(ctx, rt, t, nil, "")
}

func (w *Walker) attach(t task.Task, parent task.Task) {
	if parent != nil && t.Parent() == nil {
		t.SetParent(parent)
	}
	if w.project != nil && t.Project() == nil {
		t.SetProject(w.project)
	}
}

func (w *Walker) visit(ctx context.Context, rt runtime.Runtime, t task.Task, parent task.Task, parentPath string) error {
	if w.active[t] {
		return task.NewExecutionFailure(t.NameOrType(), ErrCycle)
	}
	w.active[t] = true
	defer delete(w.active, t)

	w.attach(t, parent)
	path := t.NameOrType()
	if parentPath != "" {
		path = parentPath + "/" + path
	}
	log := w.log.WithField(common.TaskName, path)
	t.SetLogger(log)

	if !w.validated[t] {
		w.validated[t] = true
		if err := t.Validate(); err != nil {
			log.Errorf("Validation of task %s failed: %v", path, err)
			now := time.Now()
			rt.Results().Record(ending.TaskResult{
				Path:      path,
				Name:      t.NameOrType(),
				State:     t.State().String(),
				Error:     err,
				StartedAt: now,
				EndedAt:   now,
			})
			return err
		}
	}

	n := &node{
		walker:  w,
		ctx:     ctx,
		rt:      rt,
		task:    t,
		path:    path,
		log:     log,
		started: time.Now(),
	}
	err := hook.Call(n)
	if err == nil && n.cleanupErr != nil {
		err = n.cleanupErr
	}
	return err
}

func (w *Walker) runFailureActions(ctx context.Context, rt runtime.Runtime, t task.Task, cause error, log logrus.FieldLogger) []error {
	actions := t.FailureActions()
	if len(actions) == 0 {
		return nil
	}
	// Remediation still runs when the build is being cancelled.
	ctx = context.WithoutCancel(ctx)

	var errs []error
	for _, a := range actions {
		alog := log.WithField(common.ActionName, a.Name())
		alog.Infof("Invoking failure action %s", a.Name())
		err := a.Invoke(ctx, rt, t, cause)
		w.metrics.observeFailureAction(err)
		if err != nil {
			alog.Errorf("Failure action %s failed: %v", a.Name(), err)
			errs = append(errs, errors.Wrapf(err, "failure action %s", a.Name()))
		}
	}
	return errs
}

type phase int

const (
	phaseInitialise phase = iota
	phaseConditions
	phaseRun
)

// node is one visit of a task, split into hook.Interface phases.
type node struct {
	walker  *Walker
	ctx     context.Context
	rt      runtime.Runtime
	task    task.Task
	path    string
	log     logrus.FieldLogger
	started time.Time
	phase   phase

	ownErr       error
	childErr     error
	cleanupErr   error
	actionErrors []error
}

func (n *node) Try() error {
	t := n.task
	n.phase = phaseInitialise
	if err := t.Initialise(); err != nil {
		return err
	}

	n.phase = phaseConditions
	ok, err := t.CanRun(n.ctx, n.rt)
	if err != nil {
		return err
	}
	if !ok {
		t.Skip()
		n.log.Infof("Task %s skipped, its conditions are not met", n.path)
		return nil
	}

	n.log.Infof("Running task %s", n.path)
	n.phase = phaseRun
	for child, err := range t.Run(n.ctx, n.rt) {
		if err != nil {
			return err
		}
		if ctxErr := n.ctx.Err(); ctxErr != nil {
			n.childErr = abortError(n.ctx)
			return n.childErr
		}
		if err := n.walker.visit(n.ctx, n.rt, child, t, n.path); err != nil {
			if errors.Is(err, ErrBuildAborted) || !n.rt.IgnoreError() {
				n.childErr = err
				return err
			}
			n.log.Warnf("Child task %s failed but IgnoreError is true. Continuing: %v", child.NameOrType(), err)
		}
	}
	return nil
}

func (n *node) Catch(err error) error {
	if n.childErr != nil && err == n.childErr {
		return err
	}
	if errors.Is(err, hook.ErrPanic) {
		name := n.task.NameOrType()
		switch n.phase {
		case phaseInitialise:
			err = task.NewInitialiseFailure(name, err)
		case phaseConditions:
			err = task.NewConditionFailure(name, err)
		default:
			err = task.NewExecutionFailure(name, err)
		}
	}
	n.ownErr = err
	n.log.Errorf("Task %s failed: %v", n.path, err)
	// Failure actions belong to the node's own Run only.
	if n.phase == phaseRun && task.IsExecutionFailure(err) {
		n.actionErrors = n.walker.runFailureActions(n.ctx, n.rt, n.task, err, n.log)
	}
	return err
}

func (n *node) Finally() {
	if err := n.task.CleanUp(); err != nil {
		n.log.Warnf("Cleanup of task %s failed: %v", n.path, err)
		n.cleanupErr = err
	}

	state := n.task.State()
	ended := time.Now()
	resErr := n.ownErr
	if resErr == nil {
		resErr = n.cleanupErr
	}
	n.rt.Results().Record(ending.TaskResult{
		Path:         n.path,
		Name:         n.task.NameOrType(),
		State:        state.String(),
		Error:        resErr,
		ActionErrors: n.actionErrors,
		StartedAt:    n.started,
		EndedAt:      ended,
	})
	n.walker.metrics.observeTask(state.String(), ended.Sub(n.started))
	n.log.Debugf("Task %s finished as %s in %s", n.path, state, util.ShortDur(ended.Sub(n.started)))
}
