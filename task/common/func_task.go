package common

import (
	"context"
	"iter"

	"github.com/pkg/errors"

	"github.com/mensylisir/xmbuild/runtime"
	"github.com/mensylisir/xmbuild/task"
)

// GeneratorFunc does a task's work and hands child tasks to emit as it goes.
// emit returns false once the caller has stopped pulling; the function should return then.
type GeneratorFunc func(ctx context.Context, rt runtime.Runtime, emit func(task.Task) bool) error

// FuncTask adapts a plain function into a task.
type FuncTask struct {
	*task.BaseTask
	gen GeneratorFunc
}

// NewFuncTask creates a leaf task that runs fn.
func NewFuncTask(name string, fn func(ctx context.Context, rt runtime.Runtime) error) *FuncTask {
	var gen GeneratorFunc
	if fn != nil {
		gen = func(ctx context.Context, rt runtime.Runtime, _ func(task.Task) bool) error {
			return fn(ctx, rt)
		}
	}
	return NewGeneratorTask(name, gen)
}

// NewGeneratorTask creates a task whose function may produce child tasks.
func NewGeneratorTask(name string, gen GeneratorFunc) *FuncTask {
	f := &FuncTask{gen: gen}
	f.BaseTask = task.NewBaseTask(name, "", f)
	return f
}

func (f *FuncTask) OnValidate() error {
	if f.gen == nil {
		return errors.New("function is required")
	}
	return nil
}

func (f *FuncTask) OnRun(ctx context.Context, rt runtime.Runtime) iter.Seq2[task.Task, error] {
	return func(yield func(task.Task, error) bool) {
		stopped := false
		emit := func(child task.Task) bool {
			if stopped {
				return false
			}
			if child != nil && child.Parent() == nil {
				child.SetParent(f)
			}
			if !yield(child, nil) {
				stopped = true
				return false
			}
			return true
		}
		if err := f.gen(ctx, rt, emit); err != nil && !stopped {
			yield(nil, err)
		}
	}
}
