package runtime

import (
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mensylisir/xmbuild/common"
	"github.com/mensylisir/xmbuild/ending"
	"github.com/mensylisir/xmbuild/executor"
)

const DefaultWorkDir = "./.xmbuild"

// buildContext implements the Runtime interface.
type buildContext struct {
	buildID     string
	projectName string
	label       string
	workDir     string
	ignoreError bool
	startedAt   time.Time

	executor   executor.Executor
	properties *Properties
	results    *ending.BuildResult
	log        logrus.FieldLogger
}

// Config for creating a new build context.
type Config struct {
	// BuildID defaults to a random UUID.
	BuildID     string
	ProjectName string
	// Label defaults to the BuildID.
	Label       string
	WorkDir     string
	IgnoreError bool
	// Executor defaults to a local executor.
	Executor   executor.Executor
	Properties map[string]any
	// Logger defaults to a logger that discards everything.
	Logger logrus.FieldLogger
}

// NewBuildContext creates the Runtime for one build pass.
func NewBuildContext(cfg Config) Runtime {
	if cfg.BuildID == "" {
		cfg.BuildID = uuid.NewString()
	}
	if cfg.Label == "" {
		cfg.Label = cfg.BuildID
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = DefaultWorkDir
	}
	if cfg.Executor == nil {
		cfg.Executor = executor.NewLocalExecutor()
	}
	if cfg.Logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		cfg.Logger = l
	}

	return &buildContext{
		buildID:     cfg.BuildID,
		projectName: cfg.ProjectName,
		label:       cfg.Label,
		workDir:     cfg.WorkDir,
		ignoreError: cfg.IgnoreError,
		startedAt:   time.Now(),
		executor:    cfg.Executor,
		properties:  NewProperties(cfg.Properties),
		results:     ending.NewBuildResult(cfg.BuildID, cfg.ProjectName),
		log: cfg.Logger.WithFields(logrus.Fields{
			common.ProjectName: cfg.ProjectName,
			common.BuildID:     cfg.BuildID,
		}),
	}
}

func (b *buildContext) BuildID() string {
	return b.buildID
}

func (b *buildContext) ProjectName() string {
	return b.projectName
}

func (b *buildContext) Label() string {
	return b.label
}

func (b *buildContext) WorkDir() string {
	return b.workDir
}

func (b *buildContext) IgnoreError() bool {
	return b.ignoreError
}

func (b *buildContext) StartedAt() time.Time {
	return b.startedAt
}

func (b *buildContext) Executor() executor.Executor {
	return b.executor
}

func (b *buildContext) Properties() *Properties {
	return b.properties
}

func (b *buildContext) Results() *ending.BuildResult {
	return b.results
}

func (b *buildContext) Logger() logrus.FieldLogger {
	return b.log
}
