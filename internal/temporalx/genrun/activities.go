package genrun

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/activity"

	"github.com/yungbote/lumen-backend/internal/platform/logger"
	"github.com/yungbote/lumen-backend/internal/services"
)

type Activities struct {
	Log    *logger.Logger
	Runner services.JobRunner
}

func (a *Activities) Execute(ctx context.Context, run services.GenerationRun) error {
	if a == nil || a.Runner == nil {
		return fmt.Errorf("genrun: activity not configured")
	}
	jobID, err := uuid.Parse(strings.TrimSpace(run.JobID))
	if err != nil || jobID == uuid.Nil {
		return fmt.Errorf("genrun: invalid job_id %q", run.JobID)
	}

	stop := startHeartbeat(ctx)
	defer stop()

	if err := a.Runner.Execute(ctx, jobID, run.Attempt); err != nil {
		if a.Log != nil {
			a.Log.Warn("Generation attempt failed", "job_id", jobID, "attempt", run.Attempt, "error", err)
		}
		return err
	}
	return nil
}

func startHeartbeat(ctx context.Context) func() {
	if !activity.IsActivity(ctx) {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		t := time.NewTicker(10 * time.Second)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-t.C:
				activity.RecordHeartbeat(ctx)
			}
		}
	}()
	return func() { close(done) }
}
