package cmd

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/mensylisir/xmbuild/action"
	"github.com/mensylisir/xmbuild/common"
	"github.com/mensylisir/xmbuild/condition"
	"github.com/mensylisir/xmbuild/config"
	"github.com/mensylisir/xmbuild/executor"
	"github.com/mensylisir/xmbuild/project"
	taskcommon "github.com/mensylisir/xmbuild/task/common"
)

// taskOptions describe the command line task tree: one sequence of command steps.
type taskOptions struct {
	commands     []string
	sudo         bool
	ignoreError  bool
	onFailure    []string
	onlyIfExists string
	schedule     string
	window       time.Duration
}

func (o *taskOptions) stepName(i int) string {
	return fmt.Sprintf("step-%d", i+1)
}

func buildProject(cfg *config.BuildConfig, o *taskOptions, log logrus.FieldLogger, metrics *project.Metrics) (*project.Project, error) {
	if len(o.commands) == 0 {
		return nil, errors.New("at least one --cmd is required")
	}

	seq := taskcommon.NewSequenceTask(cfg.Metadata.Name, cfg.Metadata.Description)
	for i, c := range o.commands {
		step := taskcommon.NewRunCommandTask(o.stepName(i), c)
		step.Sudo = o.sudo
		step.AddFailureAction(action.Log(logrus.ErrorLevel), action.MarkFailedTask())
		for _, r := range o.onFailure {
			remediation := action.RunCommand(r)
			remediation.Sudo = o.sudo
			step.AddFailureAction(remediation)
		}
		seq.AddChild(step)
	}
	if o.onlyIfExists != "" {
		seq.AddCondition(condition.FileExists(o.onlyIfExists))
	}
	if o.schedule != "" {
		seq.AddCondition(condition.Schedule(o.schedule, o.window))
	}

	p := project.New(cfg.Metadata.Name,
		project.WithLogger(log),
		project.WithMetrics(metrics),
		project.WithDescription(cfg.Metadata.Description),
	)
	p.AddTask(seq)
	return p, nil
}

func newExecutor(cfg *config.BuildConfig) (executor.Executor, error) {
	if cfg.Spec.Host == nil {
		return executor.NewLocalExecutor(), nil
	}
	exec, err := executor.NewRemoteExecutor(cfg.Spec.Host.SSHConfig())
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to host %s", cfg.Spec.Host.Name)
	}
	return exec, nil
}

func nodeName(cfg *config.BuildConfig) string {
	if cfg.Spec.Host == nil {
		return common.LocalHostname
	}
	return cfg.Spec.Host.Name
}

func properties(cfg *config.BuildConfig) map[string]any {
	props := make(map[string]any, len(cfg.Spec.Properties))
	for k, v := range cfg.Spec.Properties {
		props[k] = v
	}
	return props
}
