package hook

import (
	"github.com/pkg/errors"
)

// Interface splits a unit of work into a body, a failure handler and a finaliser.
type Interface interface {
	// Try runs the work.
	Try() error
	// Catch is called with Try's error, including a recovered panic, and returns the error to report.
	Catch(err error) error
	// Finally always runs last.
	Finally()
}

// ErrPanic wraps panics recovered from Try.
var ErrPanic = errors.New("panic occurred during hook execution")

// Call runs hook.Try, routes its failure through hook.Catch and always runs hook.Finally.
func Call(hook Interface) (err error) {
	if hook == nil {
		return errors.New("hook cannot be nil")
	}

	defer hook.Finally()

	defer func() {
		if r := recover(); r != nil {
			err = hook.Catch(errors.Wrapf(ErrPanic, "%v", r))
		}
	}()

	if tryErr := hook.Try(); tryErr != nil {
		return hook.Catch(tryErr)
	}
	return nil
}
