// Package condition provides the predicates that gate whether a task may run.
package condition

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/mensylisir/xmbuild/runtime"
	"github.com/mensylisir/xmbuild/task"
)

// EvaluateFunc is the signature of a condition predicate.
type EvaluateFunc func(ctx context.Context, rt runtime.Runtime) (bool, error)

// FuncCondition adapts a function into a task.Condition.
type FuncCondition struct {
	name string
	fn   EvaluateFunc
}

// Func creates a named condition from fn.
func Func(name string, fn EvaluateFunc) *FuncCondition {
	return &FuncCondition{name: name, fn: fn}
}

func (c *FuncCondition) Name() string {
	return c.name
}

func (c *FuncCondition) Validate() error {
	if c.fn == nil {
		return errors.Errorf("condition %q has no function", c.name)
	}
	return nil
}

func (c *FuncCondition) Evaluate(ctx context.Context, rt runtime.Runtime) (bool, error) {
	return c.fn(ctx, rt)
}

// Always is a condition that is always met.
func Always() task.Condition {
	return Static(true)
}

// Never is a condition that is never met.
func Never() task.Condition {
	return Static(false)
}

// Static returns a condition with a fixed outcome.
func Static(value bool) task.Condition {
	return Func(fmt.Sprintf("static(%t)", value), func(context.Context, runtime.Runtime) (bool, error) {
		return value, nil
	})
}

// AllOf is met when every inner condition is met. Evaluation stops at the first unmet one.
type AllOf struct {
	conditions []task.Condition
}

func And(conditions ...task.Condition) *AllOf {
	return &AllOf{conditions: conditions}
}

func (c *AllOf) Name() string {
	return "and(" + joinNames(c.conditions) + ")"
}

func (c *AllOf) Validate() error {
	return validateAll(c.conditions)
}

func (c *AllOf) Evaluate(ctx context.Context, rt runtime.Runtime) (bool, error) {
	for _, inner := range c.conditions {
		ok, err := inner.Evaluate(ctx, rt)
		if err != nil {
			return false, errors.Wrapf(err, "condition %s", inner.Name())
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// AnyOf is met when at least one inner condition is met. Evaluation stops at the first met one.
// An empty AnyOf is never met.
type AnyOf struct {
	conditions []task.Condition
}

func Or(conditions ...task.Condition) *AnyOf {
	return &AnyOf{conditions: conditions}
}

func (c *AnyOf) Name() string {
	return "or(" + joinNames(c.conditions) + ")"
}

func (c *AnyOf) Validate() error {
	return validateAll(c.conditions)
}

func (c *AnyOf) Evaluate(ctx context.Context, rt runtime.Runtime) (bool, error) {
	for _, inner := range c.conditions {
		ok, err := inner.Evaluate(ctx, rt)
		if err != nil {
			return false, errors.Wrapf(err, "condition %s", inner.Name())
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// Negation inverts an inner condition. Errors are passed through.
type Negation struct {
	inner task.Condition
}

func Not(inner task.Condition) *Negation {
	return &Negation{inner: inner}
}

func (c *Negation) Name() string {
	if c.inner == nil {
		return "not(<nil>)"
	}
	return "not(" + c.inner.Name() + ")"
}

func (c *Negation) Validate() error {
	return validateAll([]task.Condition{c.inner})
}

func (c *Negation) Evaluate(ctx context.Context, rt runtime.Runtime) (bool, error) {
	ok, err := c.inner.Evaluate(ctx, rt)
	if err != nil {
		return false, err
	}
	return !ok, nil
}

func validateAll(conditions []task.Condition) error {
	for i, c := range conditions {
		if c == nil {
			return errors.Errorf("inner condition %d is nil", i+1)
		}
		if v, ok := c.(task.Validatable); ok {
			if err := v.Validate(); err != nil {
				return errors.Wrapf(err, "inner condition %s", c.Name())
			}
		}
	}
	return nil
}

func joinNames(conditions []task.Condition) string {
	names := make([]string, 0, len(conditions))
	for _, c := range conditions {
		if c == nil {
			names = append(names, "<nil>")
			continue
		}
		names = append(names, c.Name())
	}
	return strings.Join(names, ",")
}
