package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/mensylisir/xmbuild/common"
	"github.com/mensylisir/xmbuild/config"
	"github.com/mensylisir/xmbuild/logger"
	"github.com/mensylisir/xmbuild/project"
	"github.com/mensylisir/xmbuild/runtime"
)

func addTaskFlags(cmd *cobra.Command, o *taskOptions) {
	flags := cmd.Flags()
	flags.StringArrayVar(&o.commands, "cmd", nil, "shell command to run as a build step, repeatable")
	flags.BoolVar(&o.sudo, "sudo", false, "run steps and remediation commands with sudo")
	flags.StringArrayVar(&o.onFailure, "on-failure", nil, "remediation command run when a step fails, repeatable")
	flags.StringVar(&o.onlyIfExists, "only-if-exists", "", "skip the build unless this path exists, relative to the work dir")
	flags.StringVar(&o.schedule, "schedule", "", "cron spec; skip the build unless an activation fell within --window")
	flags.DurationVar(&o.window, "window", time.Hour, "look-back window for --schedule")
}

func newValidateCommand(root *rootOptions) *cobra.Command {
	o := &taskOptions{}
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration and task tree without running anything",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			p, err := buildProject(cfg, o, logger.Discard(), nil)
			if err != nil {
				return err
			}
			if err := p.Validate(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "project %s is valid (%d steps)\n", p.Name(), len(o.commands))
			return nil
		},
	}
	addTaskFlags(cmd, o)
	return cmd
}

func newRunCommand(root *rootOptions) *cobra.Command {
	o := &taskOptions{}
	var workDir string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a build",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			if o.ignoreError {
				cfg.Spec.IgnoreError = true
			}
			if workDir != "" {
				cfg.Spec.WorkDir = workDir
			}
			if err := initLogger(cfg); err != nil {
				return err
			}
			return runBuild(cmd, cfg, o)
		},
	}
	addTaskFlags(cmd, o)
	cmd.Flags().BoolVar(&o.ignoreError, "ignore-error", false, "keep going after a step fails")
	cmd.Flags().StringVar(&workDir, "work-dir", "", "build work directory")
	return cmd
}

func runBuild(cmd *cobra.Command, cfg *config.BuildConfig, o *taskOptions) error {
	reg := prometheus.NewRegistry()
	metrics, err := project.NewMetrics(cfg.Spec.Metrics.Namespace, reg)
	if err != nil {
		return err
	}

	log := logger.Log.WithField(common.NodeName, nodeName(cfg))
	p, err := buildProject(cfg, o, log, metrics)
	if err != nil {
		return err
	}

	exec, err := newExecutor(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := exec.Close(); err != nil {
			logger.Log.Warnf("Failed to close executor: %v", err)
		}
	}()

	rt := runtime.NewBuildContext(runtime.Config{
		ProjectName: cfg.Metadata.Name,
		WorkDir:     cfg.Spec.WorkDir,
		IgnoreError: cfg.Spec.IgnoreError,
		Executor:    exec,
		Properties:  properties(cfg),
		Logger:      log,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, buildErr := p.Build(ctx, rt)
	fmt.Fprintln(cmd.OutOrStdout(), res.Summary())

	if path := cfg.Spec.Metrics.Textfile; path != "" {
		if err := prometheus.WriteToTextfile(path, reg); err != nil {
			logger.Log.Warnf("Failed to write metrics to %s: %v", path, err)
		}
	}

	if buildErr != nil {
		return buildErr
	}
	if res.IsFailed() && !cfg.Spec.IgnoreError {
		return errors.Errorf("build %s", res.Status())
	}
	return nil
}
