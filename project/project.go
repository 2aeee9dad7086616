package project

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/mensylisir/xmbuild/common"
	"github.com/mensylisir/xmbuild/ending"
	"github.com/mensylisir/xmbuild/logger"
	"github.com/mensylisir/xmbuild/runtime"
	"github.com/mensylisir/xmbuild/task"
)

// ErrNoTasks is returned when building a project without root tasks.
var ErrNoTasks = errors.New("project has no tasks")

func discardLogger() logrus.FieldLogger {
	return logger.Discard()
}

// Project owns an ordered list of root tasks and builds them one after another.
type Project struct {
	name        string
	description string
	tasks       []task.Task
	log         logrus.FieldLogger
	ownLogger   bool
	metrics     *Metrics
}

type Option func(*Project)

// WithLogger sets the logger used for the project and its tasks.
// During Build it takes precedence over the runtime's logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(p *Project) {
		if log != nil {
			p.log = log
			p.ownLogger = true
		}
	}
}

// WithMetrics records task and build outcomes in m.
func WithMetrics(m *Metrics) Option {
	return func(p *Project) {
		p.metrics = m
	}
}

func WithDescription(desc string) Option {
	return func(p *Project) {
		p.description = desc
	}
}

func New(name string, opts ...Option) *Project {
	p := &Project{
		name:  name,
		tasks: make([]task.Task, 0),
		log:   discardLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Project) Name() string {
	return p.name
}

func (p *Project) Description() string {
	return p.description
}

// AddTask appends root tasks and binds them to the project.
func (p *Project) AddTask(tasks ...task.Task) {
	for _, t := range tasks {
		if t == nil {
			p.log.Warnf("Ignoring nil task added to project %s", p.name)
			continue
		}
		t.SetProject(p)
		p.tasks = append(p.tasks, t)
	}
}

// Tasks returns a copy of the root tasks in build order.
func (p *Project) Tasks() []task.Task {
	out := make([]task.Task, len(p.tasks))
	copy(out, p.tasks)
	return out
}

// Validate checks every statically known task. Nothing is initialised.
func (p *Project) Validate() error {
	return p.validate(NewWalker(p, p.log, p.metrics))
}

func (p *Project) validate(w *Walker) error {
	if len(p.tasks) == 0 {
		return errors.Wrapf(ErrNoTasks, "project %s", p.name)
	}
	return w.Validate(p.tasks)
}

// Build validates the project and then walks its root tasks in order.
// The returned result is never nil. The error is the first failure that
// stopped the build, or nil when every root finished or IgnoreError let the
// build continue.
func (p *Project) Build(ctx context.Context, rt runtime.Runtime) (*ending.BuildResult, error) {
	res := rt.Results()
	log := rt.Logger()
	if p.ownLogger || log == nil {
		log = p.log.WithField(common.BuildID, rt.BuildID())
	}
	log = log.WithField(common.ProjectName, p.name)

	finish := func(err error) (*ending.BuildResult, error) {
		if ctx.Err() != nil {
			res.Abort(nil)
		}
		res.Finish()
		p.metrics.observeBuild(res.Status().String())
		if res.IsFailed() {
			log.Errorf("Build finished: %s", res.Summary())
		} else {
			log.Infof("Build finished: %s", res.Summary())
		}
		return res, err
	}

	walker := NewWalker(p, log, p.metrics)
	if err := p.validate(walker); err != nil {
		log.Errorf("Validation of project %s failed: %v", p.name, err)
		res.AddError(err)
		return finish(err)
	}

	var firstErr error
	for _, root := range p.tasks {
		if ctx.Err() != nil {
			err := abortError(ctx)
			res.AddError(err)
			if firstErr == nil {
				firstErr = err
			}
			break
		}
		err := walker.Walk(ctx, rt, root)
		if err == nil {
			continue
		}
		res.AddError(err)
		if firstErr == nil {
			firstErr = err
		}
		if errors.Is(err, ErrBuildAborted) || !rt.IgnoreError() {
			break
		}
		log.Warnf("Task %s failed but IgnoreError is true. Continuing: %v", root.NameOrType(), err)
	}

	if rt.IgnoreError() && firstErr != nil && !errors.Is(firstErr, ErrBuildAborted) {
		return finish(nil)
	}
	return finish(firstErr)
}
