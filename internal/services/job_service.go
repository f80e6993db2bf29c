package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/lumen-backend/internal/data/repos"
	"github.com/yungbote/lumen-backend/internal/domain/content"
	"github.com/yungbote/lumen-backend/internal/domain/generation"
	"github.com/yungbote/lumen-backend/internal/loader"
	"github.com/yungbote/lumen-backend/internal/platform/ctxutil"
	"github.com/yungbote/lumen-backend/internal/platform/dbctx"
	"github.com/yungbote/lumen-backend/internal/platform/logger"
)

type CreateJobInput struct {
	Kind      generation.JobKind
	Prompt    string
	ModelHint string
	Params    json.RawMessage
}

type JobService interface {
	Create(ctx context.Context, ownerUserID uuid.UUID, in CreateJobInput) (*generation.GenerationJob, error)
	// Get waits out read-after-create lag with the resilient loader.
	Get(ctx context.Context, ownerUserID, jobID uuid.UUID) (*generation.GenerationJob, error)
	List(ctx context.Context, ownerUserID uuid.UUID, limit int) ([]*generation.GenerationJob, error)
	Regenerate(ctx context.Context, ownerUserID, jobID uuid.UUID) (*generation.GenerationJob, error)
	PublishJob(ctx context.Context, ownerUserID, jobID uuid.UUID, caption string) (*content.Post, error)
	OpenArtifact(ctx context.Context, ownerUserID, jobID uuid.UUID) (*StoredArtifact, error)
}

type JobServiceDeps struct {
	DB        *gorm.DB
	Log       *logger.Logger
	Jobs      repos.GenerationJobRepo
	Posts     repos.PostRepo
	Runner    JobRunner
	Ledger    LedgerService
	Notify    Notifier
	Artifacts ArtifactStore
	Loader    loader.Options
}

type jobService struct {
	db        *gorm.DB
	log       *logger.Logger
	jobs      repos.GenerationJobRepo
	posts     repos.PostRepo
	runner    JobRunner
	ledger    LedgerService
	notify    Notifier
	artifacts ArtifactStore
	loadOpts  loader.Options
}

func NewJobService(deps JobServiceDeps) JobService {
	return &jobService{
		db:        deps.DB,
		log:       deps.Log.With("service", "JobService"),
		jobs:      deps.Jobs,
		posts:     deps.Posts,
		runner:    deps.Runner,
		ledger:    deps.Ledger,
		notify:    deps.Notify,
		artifacts: deps.Artifacts,
		loadOpts:  deps.Loader,
	}
}

func (s *jobService) Create(ctx context.Context, ownerUserID uuid.UUID, in CreateJobInput) (*generation.GenerationJob, error) {
	if ownerUserID == uuid.Nil {
		return nil, ErrForbidden
	}
	in.Prompt = strings.TrimSpace(in.Prompt)
	if in.Prompt == "" {
		return nil, fmt.Errorf("%w: prompt required", ErrInvalidInput)
	}
	// Course sessions are multi-turn and go through the session controller.
	if !in.Kind.Valid() || in.Kind == generation.KindCourseSession {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKind, in.Kind)
	}
	if len(in.Params) > 0 && !json.Valid(in.Params) {
		return nil, fmt.Errorf("%w: params must be JSON", ErrInvalidInput)
	}
	if err := s.ledger.Require(ctx, ownerUserID, OperationForKind(in.Kind)); err != nil {
		return nil, err
	}

	job := &generation.GenerationJob{
		OwnerUserID: ownerUserID,
		Kind:        in.Kind,
		Prompt:      in.Prompt,
		ModelHint:   strings.TrimSpace(in.ModelHint),
		Status:      generation.StatusPending,
	}
	if len(in.Params) > 0 {
		job.Params = datatypes.JSON(in.Params)
	}
	if err := s.jobs.Create(dbctx.Context{Ctx: ctx}, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	fields := []interface{}{"job_id", job.ID, "kind", job.Kind, "owner_id", ownerUserID}
	if td := ctxutil.GetTraceData(ctx); td != nil && td.TraceID != "" {
		fields = append(fields, "trace_id", td.TraceID)
	}
	s.log.Info("Generation job created", fields...)

	if s.notify != nil {
		s.notify.JobUpdated(ctx, job)
	}
	// Hand the record to the local runner as well; the bus echo of the
	// same attempt is deduped there, and recovery covers a lost dispatch.
	if s.runner != nil {
		s.runner.OnJobRecord(ctx, job)
	}
	return job, nil
}

func (s *jobService) Get(ctx context.Context, ownerUserID, jobID uuid.UUID) (*generation.GenerationJob, error) {
	job, err := loader.Load(ctx, func(ctx context.Context) (*generation.GenerationJob, error) {
		return s.jobs.GetByID(dbctx.Context{Ctx: ctx}, jobID)
	}, s.loadOpts)
	if err != nil {
		return nil, err
	}
	if job.OwnerUserID != ownerUserID {
		return nil, ErrForbidden
	}
	return job, nil
}

func (s *jobService) List(ctx context.Context, ownerUserID uuid.UUID, limit int) ([]*generation.GenerationJob, error) {
	return s.jobs.ListByOwner(dbctx.Context{Ctx: ctx}, ownerUserID, limit)
}

func (s *jobService) load(ctx context.Context, ownerUserID, jobID uuid.UUID) (*generation.GenerationJob, error) {
	job, err := s.jobs.GetByID(dbctx.Context{Ctx: ctx}, jobID)
	if err != nil {
		if errors.Is(err, repos.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if job.OwnerUserID != ownerUserID {
		return nil, ErrForbidden
	}
	return job, nil
}

func (s *jobService) Regenerate(ctx context.Context, ownerUserID, jobID uuid.UUID) (*generation.GenerationJob, error) {
	if s.runner != nil && s.runner.InFlight(jobID) {
		return nil, ErrGenerationInFlight
	}
	job, err := s.load(ctx, ownerUserID, jobID)
	if err != nil {
		return nil, err
	}
	switch job.Status {
	case generation.StatusPending, generation.StatusGenerating:
		return nil, ErrGenerationInFlight
	case generation.StatusFailed:
	default:
		return nil, fmt.Errorf("%w: %s job cannot be regenerated", ErrInvalidTransition, job.Status)
	}
	if err := s.ledger.Require(ctx, ownerUserID, OperationForKind(job.Kind)); err != nil {
		return nil, err
	}

	ok, err := s.jobs.BeginRetry(dbctx.Context{Ctx: ctx}, jobID)
	if err != nil {
		return nil, fmt.Errorf("begin retry: %w", err)
	}
	if !ok {
		// Someone else regenerated between our read and the update.
		return nil, ErrGenerationInFlight
	}
	job, err = s.jobs.GetByID(dbctx.Context{Ctx: ctx}, jobID)
	if err != nil {
		return nil, err
	}
	s.log.Info("Generation job regenerating", "job_id", jobID, "retry_count", job.RetryCount)
	if s.notify != nil {
		s.notify.JobUpdated(ctx, job)
	}
	if s.runner != nil {
		if err := s.runner.Dispatch(ctx, job); err != nil {
			s.markDispatchFailed(ctx, job, err)
			return nil, err
		}
	}
	return job, nil
}

func (s *jobService) markDispatchFailed(ctx context.Context, job *generation.GenerationJob, cause error) {
	ok, err := s.jobs.TransitionStatus(dbctx.Context{Ctx: ctx}, job.ID, generation.StatusGenerating, generation.StatusFailed, map[string]interface{}{
		"last_error": "dispatch failed: " + cause.Error(),
	})
	if err != nil || !ok {
		s.log.Error("Failed to mark undispatched job failed", "job_id", job.ID, "error", err)
		return
	}
	if fresh, err := s.jobs.GetByID(dbctx.Context{Ctx: ctx}, job.ID); err == nil && s.notify != nil {
		s.notify.JobUpdated(ctx, fresh)
	}
}

func (s *jobService) PublishJob(ctx context.Context, ownerUserID, jobID uuid.UUID, caption string) (*content.Post, error) {
	job, err := s.load(ctx, ownerUserID, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != generation.StatusCompleted {
		return nil, fmt.Errorf("%w: only completed jobs can be published", ErrInvalidTransition)
	}
	if existing, err := s.posts.GetByJob(dbctx.Context{Ctx: ctx}, jobID); err == nil && existing != nil {
		return nil, ErrAlreadyPublished
	} else if err != nil && !errors.Is(err, repos.ErrNotFound) {
		return nil, err
	}

	kind := content.PostSimulation
	if job.Kind == generation.KindVideo {
		kind = content.PostVideo
	}
	id := jobID
	post := &content.Post{
		OwnerUserID: ownerUserID,
		Kind:        kind,
		JobID:       &id,
		Caption:     strings.TrimSpace(caption),
		ArtifactRef: job.ResultRef,
	}
	if err := s.posts.Create(dbctx.Context{Ctx: ctx}, post); err != nil {
		if errors.Is(err, repos.ErrConflict) {
			return nil, ErrAlreadyPublished
		}
		return nil, fmt.Errorf("create post: %w", err)
	}
	if s.notify != nil {
		s.notify.PostUpdated(ctx, post)
	}
	return post, nil
}

func (s *jobService) OpenArtifact(ctx context.Context, ownerUserID, jobID uuid.UUID) (*StoredArtifact, error) {
	job, err := s.load(ctx, ownerUserID, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != generation.StatusCompleted || job.ResultRef == "" {
		return nil, ErrNotFound
	}
	return s.artifacts.Open(ctx, job.ResultRef)
}
