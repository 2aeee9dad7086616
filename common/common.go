package common

import (
	"io/fs"
)

const AppName = "xmbuild"

// Log field names. The logger formatter prints them in this order.
const (
	ProjectName   = "Project"
	BuildID       = "Build"
	TaskName      = "Task"
	ConditionName = "Condition"
	ActionName    = "Action"
	NodeName      = "Node"
	// LocalHostname is the Node value when commands run on this machine.
	LocalHostname = "LocalHost"
)

// LogFieldOrder is the display order used by the logger formatter.
var LogFieldOrder = []string{ProjectName, BuildID, TaskName, ConditionName, ActionName, NodeName}

const (
	// FileMode0755 represents rwxr-xr-x
	FileMode0755 fs.FileMode = 0755
	// FileMode0644 represents rw-r--r--
	FileMode0644 fs.FileMode = 0644
	// FileMode0600 represents rw-------
	FileMode0600 fs.FileMode = 0600
)

const (
	DefaultSSHPort = 22
)

// Property keys written by the built-in tasks and failure actions.
const (
	// OutputPropertySuffix is appended to a task name to store the task's command output.
	OutputPropertySuffix = ".output"
	// FailedTaskProperty holds the name of the last task whose run failed.
	FailedTaskProperty = "build.failedTask"
)
