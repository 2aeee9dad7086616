package ending

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Status is the overall outcome of a build pass.
type Status int

const (
	StatusUnknown Status = iota // Build has not finished and nothing has failed yet
	StatusSuccess               // Every visited task completed or was skipped
	StatusFailure               // At least one task failed
	StatusAborted               // The build was cancelled before it finished
)

// String returns a string representation of the Status.
func (s Status) String() string {
	switch s {
	case StatusUnknown:
		return "UNKNOWN"
	case StatusSuccess:
		return "SUCCESS"
	case StatusFailure:
		return "FAILURE"
	case StatusAborted:
		return "ABORTED"
	default:
		return fmt.Sprintf("UNKNOWN_STATUS_%d", int(s))
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// TaskResult records what happened to one visited task node.
type TaskResult struct {
	Path         string
	Name         string
	State        string
	Error        error
	ActionErrors []error
	StartedAt    time.Time
	EndedAt      time.Time
}

func (r TaskResult) Duration() time.Duration {
	if r.EndedAt.IsZero() || r.StartedAt.IsZero() {
		return 0
	}
	return r.EndedAt.Sub(r.StartedAt)
}

func (r TaskResult) IsFailed() bool {
	return r.Error != nil
}

// BuildResult accumulates task results for one build pass. It is safe for concurrent use.
type BuildResult struct {
	BuildID string
	Project string

	mu        sync.Mutex
	status    Status
	tasks     []TaskResult
	errors    []error
	startedAt time.Time
	endedAt   time.Time
}

// NewBuildResult creates a new BuildResult, defaulting to StatusUnknown.
func NewBuildResult(buildID, project string) *BuildResult {
	return &BuildResult{
		BuildID:   buildID,
		Project:   project,
		status:    StatusUnknown,
		tasks:     make([]TaskResult, 0),
		errors:    make([]error, 0),
		startedAt: time.Now(),
	}
}

// Record appends a task result. A failed task marks the build as failed.
func (r *BuildResult) Record(res TaskResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks = append(r.tasks, res)
	if res.Error != nil && (r.status == StatusUnknown || r.status == StatusSuccess) {
		r.status = StatusFailure
	}
}

// AddError appends a build level error and marks the build as failed unless it was aborted.
func (r *BuildResult) AddError(err error) {
	if err == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, err)
	if r.status == StatusUnknown || r.status == StatusSuccess {
		r.status = StatusFailure
	}
}

// Abort marks the build as cancelled. It overrides any other status.
func (r *BuildResult) Abort(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.errors = append(r.errors, err)
	}
	r.status = StatusAborted
}

// Finish stamps the end time and resolves an undecided status to success.
func (r *BuildResult) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endedAt = time.Now()
	if r.status == StatusUnknown {
		r.status = StatusSuccess
	}
}

func (r *BuildResult) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// CurrentStatus is the status as seen from inside a running build: a build
// with no failure so far counts as successful.
func (r *BuildResult) CurrentStatus() Status {
	s := r.Status()
	if s == StatusUnknown {
		return StatusSuccess
	}
	return s
}

func (r *BuildResult) IsFailed() bool {
	s := r.Status()
	return s == StatusFailure || s == StatusAborted
}

// Tasks returns a copy of the recorded task results in recording order.
func (r *BuildResult) Tasks() []TaskResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]TaskResult, len(r.tasks))
	copy(out, r.tasks)
	return out
}

// Task returns the last result recorded under path.
func (r *BuildResult) Task(path string) (TaskResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.tasks) - 1; i >= 0; i-- {
		if r.tasks[i].Path == path {
			return r.tasks[i], true
		}
	}
	return TaskResult{}, false
}

func (r *BuildResult) Errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]error, len(r.errors))
	copy(out, r.errors)
	return out
}

func (r *BuildResult) Duration() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.endedAt.IsZero() {
		return time.Since(r.startedAt)
	}
	return r.endedAt.Sub(r.startedAt)
}

// CombinedError returns a single error object that aggregates all recorded errors.
// Returns nil if there are no errors.
func (r *BuildResult) CombinedError() error {
	errs := r.Errors()
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, e.Error())
	}
	return fmt.Errorf("multiple errors occurred: %s", strings.Join(msgs, "; "))
}

// Summary renders a one-line description of the build, e.g.
// "build 1234 of demo: SUCCESS (3 tasks: completed=2 skipped=1)".
func (r *BuildResult) Summary() string {
	tasks := r.Tasks()
	counts := make(map[string]int)
	for _, t := range tasks {
		counts[t.State]++
	}
	states := make([]string, 0, len(counts))
	for s := range counts {
		states = append(states, s)
	}
	sort.Strings(states)
	parts := make([]string, 0, len(states))
	for _, s := range states {
		parts = append(parts, fmt.Sprintf("%s=%d", s, counts[s]))
	}
	return fmt.Sprintf("build %s of %s: %s (%d tasks: %s)", r.BuildID, r.Project, r.Status(), len(tasks), strings.Join(parts, " "))
}
