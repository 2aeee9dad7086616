package common

import (
	"context"
	"iter"
	"strings"

	"github.com/pkg/errors"

	"github.com/mensylisir/xmbuild/runtime"
	"github.com/mensylisir/xmbuild/task"
)

// ItemSource lists the items a ForEachTask expands into, resolved when the task runs.
type ItemSource func(ctx context.Context, rt runtime.Runtime) ([]string, error)

// TaskFactory builds the child task for one item.
type TaskFactory func(item string) (task.Task, error)

// ForEachTask produces one child per item. Children are created only as the
// caller pulls them, so work discovered by earlier tasks can drive later ones.
type ForEachTask struct {
	*task.BaseTask
	source  ItemSource
	factory TaskFactory
}

func NewForEachTask(name string, source ItemSource, factory TaskFactory) *ForEachTask {
	f := &ForEachTask{source: source, factory: factory}
	f.BaseTask = task.NewBaseTask(name, "", f)
	return f
}

// StaticItems is an ItemSource over a fixed list.
func StaticItems(items ...string) ItemSource {
	return func(ctx context.Context, rt runtime.Runtime) ([]string, error) {
		return items, nil
	}
}

// PropertyLines reads a property at run time and returns its non-blank lines.
// A missing property is an error.
func PropertyLines(key string) ItemSource {
	return func(ctx context.Context, rt runtime.Runtime) ([]string, error) {
		v, ok := rt.Properties().String(key)
		if !ok {
			return nil, errors.Errorf("property %q is not set", key)
		}
		var items []string
		for _, line := range strings.Split(v, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				items = append(items, line)
			}
		}
		return items, nil
	}
}

func (f *ForEachTask) OnValidate() error {
	if f.source == nil {
		return errors.New("item source is required")
	}
	if f.factory == nil {
		return errors.New("task factory is required")
	}
	return nil
}

func (f *ForEachTask) OnRun(ctx context.Context, rt runtime.Runtime) iter.Seq2[task.Task, error] {
	return func(yield func(task.Task, error) bool) {
		items, err := f.source(ctx, rt)
		if err != nil {
			yield(nil, errors.Wrap(err, "failed to resolve items"))
			return
		}
		f.Logger().Debugf("Expanding %d item(s)", len(items))
		for _, item := range items {
			child, err := f.factory(item)
			if err != nil {
				yield(nil, errors.Wrapf(err, "failed to create task for item %q", item))
				return
			}
			if child != nil {
				child.SetParent(f)
			}
			if !yield(child, nil) {
				return
			}
		}
	}
}
