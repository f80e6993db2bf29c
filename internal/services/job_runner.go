package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/temporal"
	temporalsdkclient "go.temporal.io/sdk/client"

	"github.com/yungbote/lumen-backend/internal/data/repos"
	"github.com/yungbote/lumen-backend/internal/domain/generation"
	gen "github.com/yungbote/lumen-backend/internal/generation"
	"github.com/yungbote/lumen-backend/internal/generation/stream"
	"github.com/yungbote/lumen-backend/internal/observability"
	"github.com/yungbote/lumen-backend/internal/platform/dbctx"
	"github.com/yungbote/lumen-backend/internal/platform/logger"
	"github.com/yungbote/lumen-backend/internal/realtime"
)

const (
	GenerationWorkflowName = "generation_job"
	GenerationActivityName = "generation_job_execute"

	defaultPendingGrace = 30 * time.Second
	defaultStaleAfter   = 15 * time.Minute
	heartbeatEvery      = 30 * time.Second
	recoverBatch        = 100
)

// GenerationRun is the Temporal workflow input: one attempt of one job.
type GenerationRun struct {
	JobID   string `json:"job_id"`
	Attempt int    `json:"attempt"`
}

// JobRunner drives simulation/video jobs through generating to a terminal
// status. It reacts to every observed job record and makes sure each
// (job id, retry_count) attempt is issued at most once from this replica.
type JobRunner interface {
	OnJobRecord(ctx context.Context, job *generation.GenerationJob)
	// HandleMessage feeds realtime bus messages into OnJobRecord.
	HandleMessage(ctx context.Context, msg realtime.Message)
	Dispatch(ctx context.Context, job *generation.GenerationJob) error
	Execute(ctx context.Context, jobID uuid.UUID, attempt int) error
	InFlight(jobID uuid.UUID) bool
	// Wait blocks until every in-process run started by Dispatch returns.
	Wait()
	// Recover re-dispatches pending jobs nobody picked up and fails
	// generating jobs whose run stopped heartbeating.
	Recover(ctx context.Context) (RecoveryReport, error)
	// RunRecovery calls Recover now and then every interval until ctx ends.
	RunRecovery(ctx context.Context, every time.Duration)
}

type RecoveryReport struct {
	Redispatched int
	Expired      int
}

type JobRunnerDeps struct {
	Log       *logger.Logger
	Jobs      repos.GenerationJobRepo
	Generator gen.Generator
	Artifacts ArtifactStore
	Ledger    LedgerService
	Notify    Notifier
	// Temporal is optional; nil runs attempts in-process.
	Temporal  temporalsdkclient.Client
	TaskQueue string
	// PendingGrace is how long a pending job may wait before recovery
	// dispatches it again.
	PendingGrace time.Duration
	// StaleAfter is how long a generating job may go without a heartbeat
	// before recovery marks it failed.
	StaleAfter time.Duration
}

type jobRunner struct {
	log       *logger.Logger
	jobs      repos.GenerationJobRepo
	generator gen.Generator
	artifacts ArtifactStore
	ledger    LedgerService
	notify    Notifier
	temporal  temporalsdkclient.Client
	taskQueue string

	pendingGrace time.Duration
	staleAfter   time.Duration

	mu        sync.Mutex
	triggered map[generation.AttemptKey]struct{}
	running   map[uuid.UUID]int
	wg        sync.WaitGroup
}

func NewJobRunner(deps JobRunnerDeps) JobRunner {
	if deps.PendingGrace <= 0 {
		deps.PendingGrace = defaultPendingGrace
	}
	if deps.StaleAfter <= 0 {
		deps.StaleAfter = defaultStaleAfter
	}
	return &jobRunner{
		log:       deps.Log.With("service", "JobRunner"),
		jobs:      deps.Jobs,
		generator: deps.Generator,
		artifacts: deps.Artifacts,
		ledger:    deps.Ledger,
		notify:    deps.Notify,
		temporal:  deps.Temporal,
		taskQueue: deps.TaskQueue,

		pendingGrace: deps.PendingGrace,
		staleAfter:   deps.StaleAfter,

		triggered: map[generation.AttemptKey]struct{}{},
		running:   map[uuid.UUID]int{},
	}
}

func (r *jobRunner) HandleMessage(ctx context.Context, msg realtime.Message) {
	if msg.Event != realtime.EventJobUpdated {
		return
	}
	if kind, _, err := realtime.ParseChannel(msg.Channel); err != nil || kind != realtime.ChannelJob {
		return
	}
	var payload struct {
		Job *generation.GenerationJob `json:"job"`
	}
	if err := msg.Decode(&payload); err != nil || payload.Job == nil {
		r.log.Warn("Undecodable job record on bus", "channel", msg.Channel, "error", err)
		return
	}
	r.OnJobRecord(ctx, payload.Job)
}

func (r *jobRunner) OnJobRecord(ctx context.Context, job *generation.GenerationJob) {
	if job == nil || job.ID == uuid.Nil {
		return
	}
	if job.Kind == generation.KindCourseSession {
		return
	}
	if job.Status.Terminal() {
		r.prune(job.ID, job.RetryCount)
		return
	}
	if job.Status != generation.StatusPending {
		return
	}
	if !r.markTriggered(job.AttemptKey()) {
		return
	}
	if err := r.Dispatch(ctx, job); err != nil {
		r.log.Error("Dispatch failed", "job_id", job.ID, "attempt", job.RetryCount, "error", err)
	}
}

// markTriggered reports true the first time a key is seen.
func (r *jobRunner) markTriggered(key generation.AttemptKey) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, seen := r.triggered[key]; seen {
		return false
	}
	r.triggered[key] = struct{}{}
	return true
}

func (r *jobRunner) prune(jobID uuid.UUID, upTo int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key := range r.triggered {
		if key.JobID == jobID && key.Attempt <= upTo {
			delete(r.triggered, key)
		}
	}
}

func (r *jobRunner) InFlight(jobID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.running[jobID]
	return ok
}

func (r *jobRunner) begin(jobID uuid.UUID, attempt int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, busy := r.running[jobID]; busy {
		return false
	}
	r.running[jobID] = attempt
	return true
}

func (r *jobRunner) end(jobID uuid.UUID) {
	r.mu.Lock()
	delete(r.running, jobID)
	r.mu.Unlock()
}

func (r *jobRunner) Dispatch(ctx context.Context, job *generation.GenerationJob) error {
	if job == nil {
		return fmt.Errorf("dispatch: nil job")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	r.markTriggered(job.AttemptKey())
	if r.temporal != nil {
		return r.startWorkflow(ctx, job.ID, job.RetryCount)
	}
	runCtx := context.WithoutCancel(ctx)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				r.log.Error("Generation run panic", "job_id", job.ID, "panic", rec)
			}
		}()
		_ = r.Execute(runCtx, job.ID, job.RetryCount)
	}()
	return nil
}

func (r *jobRunner) Wait() { r.wg.Wait() }

func (r *jobRunner) startWorkflow(ctx context.Context, jobID uuid.UUID, attempt int) error {
	tq := strings.TrimSpace(r.taskQueue)
	if tq == "" {
		tq = "lumen"
	}
	opts := temporalsdkclient.StartWorkflowOptions{
		ID:                    fmt.Sprintf("%s-%d", jobID, attempt),
		TaskQueue:             tq,
		WorkflowIDReusePolicy: enums.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE_FAILED_ONLY,
		RetryPolicy:           &temporal.RetryPolicy{MaximumAttempts: 1},
	}
	_, err := r.temporal.ExecuteWorkflow(ctx, opts, GenerationWorkflowName, GenerationRun{JobID: jobID.String(), Attempt: attempt})
	if err != nil {
		var already *serviceerror.WorkflowExecutionAlreadyStarted
		if errors.As(err, &already) {
			return nil
		}
		return fmt.Errorf("start generation workflow: %w", err)
	}
	return nil
}

// Execute runs one attempt. It claims pending jobs with a conditional update
// and silently skips attempts that are stale or already claimed elsewhere.
func (r *jobRunner) Execute(ctx context.Context, jobID uuid.UUID, attempt int) error {
	ctx, span := otel.Tracer("services").Start(ctx, "services.JobRunner.Execute")
	defer span.End()
	span.SetAttributes(attribute.String("job.id", jobID.String()), attribute.Int("job.attempt", attempt))

	dbc := dbctx.Context{Ctx: ctx}
	job, err := r.jobs.GetByID(dbc, jobID)
	if err != nil {
		return fmt.Errorf("load job: %w", err)
	}
	if job.RetryCount != attempt {
		r.log.Debug("Stale generation attempt skipped", "job_id", jobID, "attempt", attempt, "retry_count", job.RetryCount)
		return nil
	}
	if !r.begin(jobID, attempt) {
		r.log.Debug("Generation already running here", "job_id", jobID, "attempt", attempt)
		return nil
	}
	defer r.end(jobID)

	switch job.Status {
	case generation.StatusPending:
		ok, err := r.jobs.TransitionStatus(dbc, jobID, generation.StatusPending, generation.StatusGenerating, nil)
		if err != nil {
			return fmt.Errorf("claim job: %w", err)
		}
		if !ok {
			return nil
		}
		job.Status = generation.StatusGenerating
		r.publishJob(ctx, jobID)
	case generation.StatusGenerating:
	default:
		r.log.Debug("Job not runnable", "job_id", jobID, "status", job.Status)
		return nil
	}

	req := gen.Request{
		SubjectID: job.ID,
		Prompt:    job.Prompt,
		OwnerID:   job.OwnerUserID,
		ModelHint: job.ModelHint,
		Kind:      string(job.Kind),
	}
	if len(job.Params) > 0 {
		req.Params = json.RawMessage(job.Params)
	}

	start := time.Now()
	lastBeat := start
	res, genErr := r.generator.Generate(ctx, req, func(f stream.Frame) error {
		if time.Since(lastBeat) >= heartbeatEvery {
			lastBeat = time.Now()
			if err := r.jobs.Heartbeat(dbc, jobID); err != nil {
				r.log.Warn("Job heartbeat failed", "job_id", jobID, "error", err)
			}
		}
		if f.Type == stream.FrameStatus && r.notify != nil {
			r.notify.JobProgress(ctx, job, f.Message)
		}
		return nil
	})
	if genErr != nil {
		failure := &GenerationFailedError{SubjectID: jobID.String(), Cause: genErr}
		span.RecordError(failure)
		span.SetStatus(codes.Error, failure.Error())
		observability.Current().ObserveGeneration(string(job.Kind), "failed", time.Since(start))
		r.fail(ctx, job, failure)
		return failure
	}

	ref, err := r.artifacts.Put(ctx, job.OwnerUserID, job.ID, job.RetryCount, res.Final)
	if err != nil {
		failure := &GenerationFailedError{SubjectID: jobID.String(), Cause: err}
		r.fail(ctx, job, failure)
		return failure
	}

	ok, err := r.jobs.TransitionStatus(dbc, jobID, generation.StatusGenerating, generation.StatusCompleted, map[string]interface{}{
		"result_ref": ref,
	})
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	if !ok {
		r.log.Warn("Job left generating before completion was recorded", "job_id", jobID)
		return nil
	}
	observability.Current().ObserveGeneration(string(job.Kind), "completed", time.Since(start))
	r.log.Info("Generation completed",
		"job_id", jobID,
		"attempt", attempt,
		"status_frames", res.StatusFrames,
		"decode_errors", res.DecodeErrors,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	r.publishJob(ctx, jobID)
	if r.ledger != nil {
		_, _ = r.ledger.Refresh(ctx, job.OwnerUserID)
	}
	return nil
}

func (r *jobRunner) fail(ctx context.Context, job *generation.GenerationJob, cause error) {
	msg := cause.Error()
	var remote *stream.RemoteError
	if errors.As(cause, &remote) && remote.Message != "" {
		msg = remote.Message
	}
	ok, err := r.jobs.TransitionStatus(dbctx.Context{Ctx: ctx}, job.ID, generation.StatusGenerating, generation.StatusFailed, map[string]interface{}{
		"last_error": msg,
	})
	if err != nil {
		r.log.Error("Failed to persist job failure", "job_id", job.ID, "error", err)
		return
	}
	if !ok {
		return
	}
	r.log.Warn("Generation failed", "job_id", job.ID, "attempt", job.RetryCount, "error", cause)
	r.publishJob(ctx, job.ID)
}

func (r *jobRunner) publishJob(ctx context.Context, jobID uuid.UUID) {
	if r.notify == nil {
		return
	}
	fresh, err := r.jobs.GetByID(dbctx.Context{Ctx: ctx}, jobID)
	if err != nil {
		r.log.Warn("Reload job for publish failed", "job_id", jobID, "error", err)
		return
	}
	r.notify.JobUpdated(ctx, fresh)
}

func (r *jobRunner) Recover(ctx context.Context) (RecoveryReport, error) {
	var report RecoveryReport
	dbc := dbctx.Context{Ctx: ctx}
	now := time.Now()

	pending, err := r.jobs.ListStale(dbc, generation.StatusPending, now.Add(-r.pendingGrace), recoverBatch)
	if err != nil {
		return report, fmt.Errorf("list pending jobs: %w", err)
	}
	for _, job := range pending {
		if job.Kind == generation.KindCourseSession || r.InFlight(job.ID) {
			continue
		}
		if err := r.Dispatch(ctx, job); err != nil {
			r.log.Warn("Redispatch failed", "job_id", job.ID, "attempt", job.RetryCount, "error", err)
			continue
		}
		report.Redispatched++
	}

	cutoff := now.Add(-r.staleAfter)
	stuck, err := r.jobs.ListStale(dbc, generation.StatusGenerating, cutoff, recoverBatch)
	if err != nil {
		return report, fmt.Errorf("list generating jobs: %w", err)
	}
	for _, job := range stuck {
		if r.InFlight(job.ID) {
			continue
		}
		ok, err := r.jobs.ExpireGenerating(dbc, job.ID, cutoff, "generation interrupted")
		if err != nil {
			r.log.Warn("Expire stale job failed", "job_id", job.ID, "error", err)
			continue
		}
		if !ok {
			continue
		}
		report.Expired++
		r.prune(job.ID, job.RetryCount)
		r.log.Warn("Stale generation expired", "job_id", job.ID, "attempt", job.RetryCount, "since", job.UpdatedAt)
		r.publishJob(ctx, job.ID)
	}

	if report.Redispatched > 0 || report.Expired > 0 {
		r.log.Info("Job recovery pass", "redispatched", report.Redispatched, "expired", report.Expired)
	}
	return report, nil
}

func (r *jobRunner) RunRecovery(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = time.Minute
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		if _, err := r.Recover(ctx); err != nil && ctx.Err() == nil {
			r.log.Warn("Job recovery failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
