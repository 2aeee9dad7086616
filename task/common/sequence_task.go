package common

import (
	"context"
	"iter"

	"github.com/pkg/errors"

	"github.com/mensylisir/xmbuild/runtime"
	"github.com/mensylisir/xmbuild/task"
)

// SequenceTask runs a fixed list of child tasks in order.
type SequenceTask struct {
	*task.BaseTask
	children []task.Task
}

func NewSequenceTask(name, description string, children ...task.Task) *SequenceTask {
	s := &SequenceTask{children: make([]task.Task, 0, len(children))}
	s.BaseTask = task.NewBaseTask(name, description, s)
	s.AddChild(children...)
	return s
}

// AddChild appends children and points their parent reference at the sequence.
func (s *SequenceTask) AddChild(children ...task.Task) {
	for _, c := range children {
		if c != nil {
			c.SetParent(s)
		}
		s.children = append(s.children, c)
	}
}

// Children returns a copy of the configured children.
func (s *SequenceTask) Children() []task.Task {
	c := make([]task.Task, len(s.children))
	copy(c, s.children)
	return c
}

func (s *SequenceTask) OnValidate() error {
	for i, c := range s.children {
		if c == nil {
			return errors.Errorf("child %d is nil", i+1)
		}
	}
	return nil
}

func (s *SequenceTask) OnRun(ctx context.Context, rt runtime.Runtime) iter.Seq2[task.Task, error] {
	return func(yield func(task.Task, error) bool) {
		for _, c := range s.children {
			if !yield(c, nil) {
				return
			}
		}
	}
}
