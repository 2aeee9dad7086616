// Package action provides failure actions: remediation steps a build runs
// when a task's run fails.
package action

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/mensylisir/xmbuild/common"
	"github.com/mensylisir/xmbuild/runtime"
	"github.com/mensylisir/xmbuild/task"
)

// LogAction writes the failure to the build logger.
type LogAction struct {
	Level logrus.Level
}

func Log(level logrus.Level) *LogAction {
	return &LogAction{Level: level}
}

func (a *LogAction) Name() string {
	return "log(" + a.Level.String() + ")"
}

func (a *LogAction) Invoke(ctx context.Context, rt runtime.Runtime, failed task.Task, cause error) error {
	entry := rt.Logger().WithFields(logrus.Fields{
		common.TaskName:   failed.NameOrType(),
		common.ActionName: a.Name(),
	})
	msg := fmt.Sprintf("Task %s failed: %v", failed.NameOrType(), cause)
	switch a.Level {
	case logrus.TraceLevel, logrus.DebugLevel:
		entry.Debug(msg)
	case logrus.InfoLevel:
		entry.Info(msg)
	case logrus.WarnLevel:
		entry.Warn(msg)
	default:
		entry.Error(msg)
	}
	return nil
}

// SetPropertyAction records a marker in the build properties.
// An empty Value stores the failed task's name.
type SetPropertyAction struct {
	Key   string
	Value string
}

func SetProperty(key, value string) *SetPropertyAction {
	return &SetPropertyAction{Key: key, Value: value}
}

// MarkFailedTask stores the failed task's name under common.FailedTaskProperty.
func MarkFailedTask() *SetPropertyAction {
	return SetProperty(common.FailedTaskProperty, "")
}

func (a *SetPropertyAction) Name() string {
	return "setProperty(" + a.Key + ")"
}

func (a *SetPropertyAction) Validate() error {
	if a.Key == "" {
		return errors.New("property key is required")
	}
	return nil
}

func (a *SetPropertyAction) Invoke(ctx context.Context, rt runtime.Runtime, failed task.Task, cause error) error {
	value := a.Value
	if value == "" {
		value = failed.NameOrType()
	}
	rt.Properties().Set(a.Key, value)
	return nil
}

// RunCommandAction runs a remediation command through the build's executor.
// A non-zero exit code is an error.
type RunCommandAction struct {
	Command string
	Sudo    bool
}

func RunCommand(command string) *RunCommandAction {
	return &RunCommandAction{Command: command}
}

func (a *RunCommandAction) Name() string {
	return "runCommand(" + a.Command + ")"
}

func (a *RunCommandAction) Validate() error {
	if strings.TrimSpace(a.Command) == "" {
		return errors.New("command is required")
	}
	return nil
}

func (a *RunCommandAction) Invoke(ctx context.Context, rt runtime.Runtime, failed task.Task, cause error) error {
	exec := rt.Executor().Execute
	if a.Sudo {
		exec = rt.Executor().SudoExecute
	}
	_, stderr, exitCode, err := exec(ctx, a.Command)
	if err != nil {
		return errors.Wrapf(err, "failure action command '%s' execution error", a.Command)
	}
	if exitCode != 0 {
		return errors.Errorf("failure action command '%s' failed with exit code %d (stderr: %s)", a.Command, exitCode, strings.TrimSpace(stderr))
	}
	return nil
}
