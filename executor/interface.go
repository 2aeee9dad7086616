package executor

import (
	"context"
	"os"
)

// Executor runs commands and inspects files on the build target, which may be the
// local machine or a remote host reached over SSH.
type Executor interface {
	// Execute runs a shell command on the target. A non-zero exit code is not an error.
	Execute(ctx context.Context, command string) (stdout string, stderr string, exitCode int, err error)

	// SudoExecute runs a shell command with superuser privileges on the target.
	SudoExecute(ctx context.Context, command string) (stdout string, stderr string, exitCode int, err error)

	// StatRemote returns os.ErrNotExist when the path is missing.
	StatRemote(ctx context.Context, path string) (os.FileInfo, error)

	// RemoteFileExists checks if a regular file (not a directory) exists on the target.
	RemoteFileExists(ctx context.Context, path string) (bool, error)

	// RemoteDirExists checks if a directory exists on the target.
	RemoteDirExists(ctx context.Context, path string) (bool, error)

	// Close releases any connection held by the executor.
	Close() error
}
