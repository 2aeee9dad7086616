package executor

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"

	"github.com/pkg/errors"
)

const defaultShell = "/bin/sh"

// localExecutor implements the Executor interface for local machine operations.
type localExecutor struct {
	shell string
}

// NewLocalExecutor creates a new Executor for local operations.
func NewLocalExecutor() Executor {
	return &localExecutor{shell: defaultShell}
}

func (l *localExecutor) run(ctx context.Context, name string, args ...string) (string, string, int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return stdout.String(), stderr.String(), 0, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return stdout.String(), stderr.String(), -1, errors.Wrap(ctxErr, "command execution cancelled")
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		exitCode := 1
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			exitCode = status.ExitStatus()
		}
		return stdout.String(), stderr.String(), exitCode, nil
	}
	return stdout.String(), stderr.String(), -1, errors.Wrapf(err, "failed to run command '%s %s'", name, strings.Join(args, " "))
}

func (l *localExecutor) Execute(ctx context.Context, command string) (string, string, int, error) {
	if strings.TrimSpace(command) == "" {
		return "", "", -1, errors.New("empty command")
	}
	return l.run(ctx, l.shell, "-c", command)
}

func (l *localExecutor) SudoExecute(ctx context.Context, command string) (string, string, int, error) {
	if strings.TrimSpace(command) == "" {
		return "", "", -1, errors.New("empty command")
	}
	return l.run(ctx, l.shell, "-c", SudoPrefix(command))
}

func (l *localExecutor) StatRemote(ctx context.Context, path string) (os.FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, os.ErrNotExist
		}
		return nil, errors.Wrapf(err, "failed to stat %s", path)
	}
	return info, nil
}

func (l *localExecutor) RemoteFileExists(ctx context.Context, path string) (bool, error) {
	info, err := l.StatRemote(ctx, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return !info.IsDir(), nil
}

func (l *localExecutor) RemoteDirExists(ctx context.Context, path string) (bool, error) {
	info, err := l.StatRemote(ctx, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return info.IsDir(), nil
}

func (l *localExecutor) Close() error {
	return nil
}

// SudoPrefix wraps a command so it runs through sudo with the caller's environment.
func SudoPrefix(command string) string {
	escaped := strings.ReplaceAll(command, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	return fmt.Sprintf("sudo -E /bin/bash -c \"%s\"", escaped)
}
