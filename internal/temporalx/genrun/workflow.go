package genrun

import (
	"fmt"
	"strings"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/yungbote/lumen-backend/internal/services"
)

// Workflow executes one generation attempt. Attempts are never retried by
// Temporal; a new attempt is a new workflow with a higher retry_count.
func Workflow(ctx workflow.Context, run services.GenerationRun) error {
	if strings.TrimSpace(run.JobID) == "" {
		return fmt.Errorf("genrun: missing job_id")
	}
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Hour,
		HeartbeatTimeout:    30 * time.Second,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	})
	return workflow.ExecuteActivity(ctx, services.GenerationActivityName, run).Get(ctx, nil)
}
