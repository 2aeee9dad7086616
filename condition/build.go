package condition

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/mensylisir/xmbuild/ending"
	"github.com/mensylisir/xmbuild/runtime"
)

// BuildStatusCondition is met when the running build's current status is one of Statuses.
// A build with no failure so far counts as ending.StatusSuccess.
type BuildStatusCondition struct {
	Statuses []ending.Status
}

func BuildStatus(statuses ...ending.Status) *BuildStatusCondition {
	return &BuildStatusCondition{Statuses: statuses}
}

func (c *BuildStatusCondition) Name() string {
	names := make([]string, 0, len(c.Statuses))
	for _, s := range c.Statuses {
		names = append(names, s.String())
	}
	return "buildStatus(" + strings.Join(names, ",") + ")"
}

func (c *BuildStatusCondition) Validate() error {
	if len(c.Statuses) == 0 {
		return errors.New("at least one build status is required")
	}
	return nil
}

func (c *BuildStatusCondition) Evaluate(ctx context.Context, rt runtime.Runtime) (bool, error) {
	current := rt.Results().CurrentStatus()
	for _, s := range c.Statuses {
		if s == current {
			return true, nil
		}
	}
	return false, nil
}

// PropertyCondition is met when a build property, formatted as a string, equals Value.
// A missing property is not met.
type PropertyCondition struct {
	Key   string
	Value string
}

func PropertyEquals(key, value string) *PropertyCondition {
	return &PropertyCondition{Key: key, Value: value}
}

func (c *PropertyCondition) Name() string {
	return fmt.Sprintf("property(%s=%s)", c.Key, c.Value)
}

func (c *PropertyCondition) Validate() error {
	if c.Key == "" {
		return errors.New("property key is required")
	}
	return nil
}

func (c *PropertyCondition) Evaluate(ctx context.Context, rt runtime.Runtime) (bool, error) {
	v, ok := rt.Properties().String(c.Key)
	if !ok {
		return false, nil
	}
	return v == c.Value, nil
}

// FileExistsCondition is met when Path is a regular file on the build target.
// Relative paths are resolved against the build's work directory.
type FileExistsCondition struct {
	Path string
}

func FileExists(path string) *FileExistsCondition {
	return &FileExistsCondition{Path: path}
}

func (c *FileExistsCondition) Name() string {
	return "fileExists(" + c.Path + ")"
}

func (c *FileExistsCondition) Validate() error {
	if c.Path == "" {
		return errors.New("path is required")
	}
	return nil
}

func (c *FileExistsCondition) Evaluate(ctx context.Context, rt runtime.Runtime) (bool, error) {
	path := c.Path
	if !filepath.IsAbs(path) {
		path = filepath.Join(rt.WorkDir(), path)
	}
	ok, err := rt.Executor().RemoteFileExists(ctx, path)
	if err != nil {
		return false, errors.Wrapf(err, "failed to check %s", path)
	}
	return ok, nil
}
