package common

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"github.com/pkg/errors"

	xmcommon "github.com/mensylisir/xmbuild/common"
	"github.com/mensylisir/xmbuild/runtime"
	"github.com/mensylisir/xmbuild/task"
	"github.com/mensylisir/xmbuild/util"
)

const maxStderrInError = 512

// RunCommandTask executes one or more shell commands through the build's executor.
// Commands containing {{ }} are rendered as text/template against the build properties first.
// The combined stdout is published as the "<name>.output" property.
type RunCommandTask struct {
	*task.BaseTask
	Commands []string
	Sudo     bool

	output strings.Builder
}

// NewRunCommandTask creates a task that runs commands in order, stopping at the first failure.
func NewRunCommandTask(name string, commands ...string) *RunCommandTask {
	t := &RunCommandTask{Commands: commands}
	t.BaseTask = task.NewBaseTask(name, fmt.Sprintf("Run %d command(s)", len(commands)), t)
	return t
}

func (t *RunCommandTask) OnValidate() error {
	if len(t.Commands) == 0 {
		return errors.New("at least one command is required")
	}
	for i, cmd := range t.Commands {
		if strings.TrimSpace(cmd) == "" {
			return errors.Errorf("command %d is empty", i+1)
		}
	}
	return nil
}

func (t *RunCommandTask) OnInitialise() error {
	t.output.Reset()
	return nil
}

// OutputProperty is the property key the task's stdout is stored under.
func (t *RunCommandTask) OutputProperty() string {
	return t.NameOrType() + xmcommon.OutputPropertySuffix
}

func (t *RunCommandTask) OnRun(ctx context.Context, rt runtime.Runtime) iter.Seq2[task.Task, error] {
	return func(yield func(task.Task, error) bool) {
		log := t.Logger()
		for i, cmd := range t.Commands {
			if util.IsTemplate(cmd) {
				rendered, err := util.RenderString(cmd, util.Data(rt.Properties().Snapshot()))
				if err != nil {
					yield(nil, errors.Wrapf(err, "command %d", i+1))
					return
				}
				cmd = rendered
			}
			log.Infof("Executing command %d/%d: %s", i+1, len(t.Commands), cmd)

			var stdout, stderr string
			var exitCode int
			var err error
			if t.Sudo {
				stdout, stderr, exitCode, err = rt.Executor().SudoExecute(ctx, cmd)
			} else {
				stdout, stderr, exitCode, err = rt.Executor().Execute(ctx, cmd)
			}
			t.output.WriteString(stdout)
			rt.Properties().Set(t.OutputProperty(), t.output.String())

			if err != nil {
				yield(nil, errors.Wrapf(err, "command '%s' execution error", cmd))
				return
			}
			if exitCode != 0 {
				log.Warnf("Command '%s' exited with code %d. Stderr: %s", cmd, exitCode, stderr)
				yield(nil, errors.Errorf("command '%s' failed with exit code %d (stderr: %s)", cmd, exitCode, util.TruncateString(strings.TrimSpace(stderr), maxStderrInError, "...")))
				return
			}
			if stderr != "" {
				log.Debugf("Stderr from command '%s':\n%s", cmd, stderr)
			}
		}
	}
}
