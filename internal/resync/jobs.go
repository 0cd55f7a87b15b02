package resync

import (
	"context"
	"fmt"
	"log/slog"
)

// Resyncer is the subset of the reconciler manager needed by the full
// resync job. Defined here to avoid a circular dependency on the
// reconciler package.
type Resyncer interface {
	ResyncAll() int
}

// FullResyncJob forces a hardware poll on every bound entity, catching
// drift that happened between regular poll cycles (e.g. a module swapped
// while its worker was backing off).
type FullResyncJob struct {
	Manager      Resyncer
	Logger       *slog.Logger
	ScheduleExpr string // empty = default "*/15 * * * *"
}

// Compile-time interface check.
var _ Job = (*FullResyncJob)(nil)

// Name implements Job.
func (j *FullResyncJob) Name() string { return "full_resync" }

// Schedule implements Job.
func (j *FullResyncJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "*/15 * * * *"
}

// Run requests a fresh poll from every entity worker. The request is
// asynchronous; workers with a cycle in flight fold it into their next pass.
func (j *FullResyncJob) Run(ctx context.Context) error {
	if ctx.Err() != nil {
		return fmt.Errorf("resync: cancelled: %w", ctx.Err())
	}
	n := j.Manager.ResyncAll()
	j.Logger.Info("resync: full resync requested", "entities", n)
	return nil
}
