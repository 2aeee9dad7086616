package condition

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/mensylisir/xmbuild/runtime"
)

// ErrInvalidCronSpec is returned when the cron specification cannot be parsed.
var ErrInvalidCronSpec = errors.New("invalid cron spec")

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ScheduleCondition is met when the cron schedule fired within Window before the
// reference time, which defaults to the build start. It lets a task in every
// build run only in, say, the nightly build.
type ScheduleCondition struct {
	Spec   string
	Window time.Duration
	// Now overrides the reference time.
	Now func() time.Time

	schedule cron.Schedule
}

// Schedule creates a schedule-window condition. The spec uses the standard five
// cron fields or a descriptor such as "@daily".
func Schedule(spec string, window time.Duration) *ScheduleCondition {
	return &ScheduleCondition{Spec: spec, Window: window}
}

func (c *ScheduleCondition) Name() string {
	return fmt.Sprintf("schedule(%s within %s)", c.Spec, c.Window)
}

func (c *ScheduleCondition) Validate() error {
	if c.Window <= 0 {
		return errors.Errorf("window must be positive, got %s", c.Window)
	}
	_, err := c.parse()
	return err
}

func (c *ScheduleCondition) parse() (cron.Schedule, error) {
	if c.schedule != nil {
		return c.schedule, nil
	}
	sched, err := cronParser.Parse(c.Spec)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidCronSpec, "%q: %v", c.Spec, err)
	}
	c.schedule = sched
	return sched, nil
}

func (c *ScheduleCondition) Evaluate(ctx context.Context, rt runtime.Runtime) (bool, error) {
	sched, err := c.parse()
	if err != nil {
		return false, err
	}
	ref := rt.StartedAt()
	if c.Now != nil {
		ref = c.Now()
	}
	next := sched.Next(ref.Add(-c.Window))
	return !next.IsZero() && !next.After(ref), nil
}
