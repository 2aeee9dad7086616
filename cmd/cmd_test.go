package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mensylisir/xmbuild/logger"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	orig := logger.Log
	t.Cleanup(func() { logger.Log = orig })

	var out bytes.Buffer
	root := NewRootCommand()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "xmbuild dev\n", out)
}

func TestValidate(t *testing.T) {
	out, err := execute(t, "validate", "--name", "demo", "--cmd", "true", "--cmd", "echo hi")
	require.NoError(t, err)
	assert.Contains(t, out, "project demo is valid (2 steps)")

	_, err = execute(t, "validate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--cmd")

	_, err = execute(t, "validate", "--cmd", "true", "--schedule", "not a cron")
	assert.Error(t, err)
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "ran")
	out, err := execute(t, "run", "--name", "demo", "--work-dir", dir,
		"--cmd", "echo building", "--cmd", "touch "+marker)
	require.NoError(t, err)
	assert.Contains(t, out, "of demo: SUCCESS (3 tasks: completed=3)")
	_, err = os.Stat(marker)
	assert.NoError(t, err)
}

func TestRun_FailureRunsRemediation(t *testing.T) {
	dir := t.TempDir()
	cleaned := filepath.Join(dir, "cleaned")
	never := filepath.Join(dir, "never")
	out, err := execute(t, "run", "--work-dir", dir,
		"--cmd", "exit 3", "--cmd", "touch "+never, "--on-failure", "touch "+cleaned)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exit code 3")
	assert.Contains(t, out, "FAILURE")

	_, statErr := os.Stat(cleaned)
	assert.NoError(t, statErr)
	_, statErr = os.Stat(never)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRun_IgnoreError(t *testing.T) {
	dir := t.TempDir()
	after := filepath.Join(dir, "after")
	out, err := execute(t, "run", "--work-dir", dir, "--ignore-error",
		"--cmd", "false", "--cmd", "touch "+after)
	require.NoError(t, err)
	assert.Contains(t, out, "FAILURE")
	_, statErr := os.Stat(after)
	assert.NoError(t, statErr)
}

func TestRun_SkippedWhenFileMissing(t *testing.T) {
	dir := t.TempDir()
	out, err := execute(t, "run", "--work-dir", dir, "--only-if-exists", "trigger", "--cmd", "exit 1")
	require.NoError(t, err)
	assert.Contains(t, out, "SUCCESS (1 tasks: skipped=1)")
}

func TestRun_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	prom := filepath.Join(dir, "xmbuild.prom")
	cfgPath := filepath.Join(dir, "build.yaml")
	cfg := strings.Join([]string{
		"apiVersion: xmbuild/v1",
		"kind: BuildConfig",
		"metadata:",
		"  name: from-file",
		"spec:",
		"  workDir: " + dir,
		"  logging:",
		"    outputPath: " + filepath.Join(dir, "logs"),
		"  metrics:",
		"    namespace: ci",
		"    textfile: " + prom,
	}, "\n")
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0644))

	out, err := execute(t, "run", "--config", cfgPath, "--cmd", "true")
	require.NoError(t, err)
	assert.Contains(t, out, "of from-file: SUCCESS")

	data, err := os.ReadFile(prom)
	require.NoError(t, err)
	assert.Contains(t, string(data), `ci_builds_total{status="SUCCESS"} 1`)
	assert.Contains(t, string(data), `ci_tasks_total{state="completed"} 2`)
}

func TestRun_BadConfig(t *testing.T) {
	_, err := execute(t, "run", "--config", filepath.Join(t.TempDir(), "missing.yaml"), "--cmd", "true")
	assert.Error(t, err)
}
