package temporalworker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/activity"
	temporalsdkclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/yungbote/lumen-backend/internal/platform/envutil"
	"github.com/yungbote/lumen-backend/internal/platform/logger"
	"github.com/yungbote/lumen-backend/internal/services"
	"github.com/yungbote/lumen-backend/internal/temporalx"
	"github.com/yungbote/lumen-backend/internal/temporalx/genrun"
)

// Runner polls the generation task queue and executes attempts through the
// shared JobRunner.
type Runner struct {
	log    *logger.Logger
	tc     temporalsdkclient.Client
	runner services.JobRunner
}

func NewRunner(log *logger.Logger, tc temporalsdkclient.Client, runner services.JobRunner) (*Runner, error) {
	if tc == nil {
		return nil, fmt.Errorf("temporal client is not configured")
	}
	if runner == nil {
		return nil, fmt.Errorf("temporal worker missing job runner")
	}
	return &Runner{log: log.With("component", "TemporalWorker"), tc: tc, runner: runner}, nil
}

// Start launches the worker and returns once it is polling. The worker stops
// when ctx is canceled.
func (r *Runner) Start(ctx context.Context) error {
	if r == nil || r.tc == nil {
		return fmt.Errorf("temporal worker not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := temporalx.LoadConfig()
	r.log.Info("Starting Temporal worker", "address", cfg.Address, "namespace", cfg.Namespace, "task_queue", cfg.TaskQueue)

	maxWait := envutil.Seconds("TEMPORAL_WORKER_START_MAX_WAIT_SECONDS", 60)
	backoff := envutil.Millis("TEMPORAL_WORKER_START_BACKOFF_MS", 250)
	backoffMax := envutil.Millis("TEMPORAL_WORKER_START_BACKOFF_MAX_MS", 5000)
	deadline := time.Now().Add(maxWait)

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		w := r.newWorker(cfg)
		startErr := w.Start()
		if startErr == nil {
			go func() {
				<-ctx.Done()
				w.Stop()
			}()
			r.log.Info("Temporal worker started", "namespace", cfg.Namespace, "task_queue", cfg.TaskQueue, "attempts", attempt)
			return nil
		}
		w.Stop()

		var nfe *serviceerror.NamespaceNotFound
		missingNamespace := errors.As(startErr, &nfe)
		if missingNamespace && envutil.Bool("TEMPORAL_AUTO_REGISTER_NAMESPACE", false) {
			if err := temporalx.EnsureNamespace(ctx, cfg, r.log); err != nil {
				r.log.Warn("Temporal namespace ensure failed", "namespace", cfg.Namespace, "error", err)
			}
		}

		if maxWait <= 0 || time.Now().After(deadline) {
			if missingNamespace {
				return fmt.Errorf("temporal namespace not found (namespace=%s): %w", cfg.Namespace, startErr)
			}
			return startErr
		}
		r.log.Warn("Temporal worker failed to start; retrying", "namespace", cfg.Namespace, "task_queue", cfg.TaskQueue, "attempt", attempt, "error", startErr)
		time.Sleep(temporalx.ClampBackoff(backoff, backoffMax, attempt))
	}
}

func (r *Runner) newWorker(cfg temporalx.Config) worker.Worker {
	concurrency := envutil.Int("WORKER_CONCURRENCY", 4)
	if concurrency < 1 {
		concurrency = 1
	}
	w := worker.New(r.tc, cfg.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     concurrency,
		MaxConcurrentWorkflowTaskExecutionSize: concurrency,
	})
	acts := &genrun.Activities{Log: r.log, Runner: r.runner}
	w.RegisterWorkflowWithOptions(genrun.Workflow, workflow.RegisterOptions{Name: services.GenerationWorkflowName})
	w.RegisterActivityWithOptions(acts.Execute, activity.RegisterOptions{Name: services.GenerationActivityName})
	return w
}
