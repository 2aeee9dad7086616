package runtime

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mensylisir/xmbuild/ending"
	"github.com/mensylisir/xmbuild/executor"
)

// Runtime is the execution context of one build pass. Task nodes pass it through
// untouched to their conditions and run hooks.
type Runtime interface {
	BuildID() string
	ProjectName() string
	// Label is a human readable build label, e.g. "1.0.42".
	Label() string
	WorkDir() string
	IgnoreError() bool
	StartedAt() time.Time

	// Executor runs commands on the build target.
	Executor() executor.Executor
	Properties() *Properties
	Results() *ending.BuildResult
	Logger() logrus.FieldLogger
}
