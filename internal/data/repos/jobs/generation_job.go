package jobs

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/lumen-backend/internal/data/repos/repoerr"
	"github.com/yungbote/lumen-backend/internal/domain/generation"
	"github.com/yungbote/lumen-backend/internal/platform/dbctx"
	"github.com/yungbote/lumen-backend/internal/platform/logger"
)

type GenerationJobRepo interface {
	Create(dbc dbctx.Context, job *generation.GenerationJob) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*generation.GenerationJob, error)
	ListByOwner(dbc dbctx.Context, ownerUserID uuid.UUID, limit int) ([]*generation.GenerationJob, error)
	// TransitionStatus moves the job from -> to only if it is still in from.
	// It reports false when another writer got there first.
	TransitionStatus(dbc dbctx.Context, id uuid.UUID, from, to generation.JobStatus, updates map[string]interface{}) (bool, error)
	// BeginRetry moves a failed job back to generating, bumping retry_count
	// and clearing last_error in the same statement.
	BeginRetry(dbc dbctx.Context, id uuid.UUID) (bool, error)
	// ListStale returns jobs still in status whose updated_at is before
	// cutoff, oldest first.
	ListStale(dbc dbctx.Context, status generation.JobStatus, cutoff time.Time, limit int) ([]*generation.GenerationJob, error)
	// ExpireGenerating fails a generating job that has not been touched
	// since cutoff. A heartbeat or retry after cutoff makes it a no-op.
	ExpireGenerating(dbc dbctx.Context, id uuid.UUID, cutoff time.Time, lastError string) (bool, error)
	Heartbeat(dbc dbctx.Context, id uuid.UUID) error
}

type generationJobRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGenerationJobRepo(db *gorm.DB, baseLog *logger.Logger) GenerationJobRepo {
	return &generationJobRepo{
		db:  db,
		log: baseLog.With("repo", "GenerationJobRepo"),
	}
}

func (r *generationJobRepo) Create(dbc dbctx.Context, job *generation.GenerationJob) error {
	transaction := dbc.DB(r.db)
	if job.Status == "" {
		job.Status = generation.StatusPending
	}
	if err := transaction.WithContext(dbc.Context()).Create(job).Error; err != nil {
		return repoerr.MapError(err)
	}
	return nil
}

func (r *generationJobRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*generation.GenerationJob, error) {
	transaction := dbc.DB(r.db)
	var job generation.GenerationJob
	if err := transaction.WithContext(dbc.Context()).Where("id = ?", id).First(&job).Error; err != nil {
		return nil, repoerr.MapError(err)
	}
	return &job, nil
}

func (r *generationJobRepo) ListByOwner(dbc dbctx.Context, ownerUserID uuid.UUID, limit int) ([]*generation.GenerationJob, error) {
	transaction := dbc.DB(r.db)
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var out []*generation.GenerationJob
	if err := transaction.WithContext(dbc.Context()).
		Where("owner_user_id = ?", ownerUserID).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *generationJobRepo) TransitionStatus(dbc dbctx.Context, id uuid.UUID, from, to generation.JobStatus, updates map[string]interface{}) (bool, error) {
	transaction := dbc.DB(r.db)
	fields := map[string]interface{}{}
	for k, v := range updates {
		fields[k] = v
	}
	fields["status"] = to
	fields["updated_at"] = time.Now().UTC()
	res := transaction.WithContext(dbc.Context()).
		Model(&generation.GenerationJob{}).
		Where("id = ? AND status = ?", id, from).
		Updates(fields)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *generationJobRepo) BeginRetry(dbc dbctx.Context, id uuid.UUID) (bool, error) {
	return r.TransitionStatus(dbc, id, generation.StatusFailed, generation.StatusGenerating, map[string]interface{}{
		"retry_count": gorm.Expr("retry_count + 1"),
		"last_error":  "",
		"result_ref":  "",
	})
}

func (r *generationJobRepo) ListStale(dbc dbctx.Context, status generation.JobStatus, cutoff time.Time, limit int) ([]*generation.GenerationJob, error) {
	transaction := dbc.DB(r.db)
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var out []*generation.GenerationJob
	if err := transaction.WithContext(dbc.Context()).
		Where("status = ? AND updated_at < ?", status, cutoff.UTC()).
		Order("created_at ASC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *generationJobRepo) ExpireGenerating(dbc dbctx.Context, id uuid.UUID, cutoff time.Time, lastError string) (bool, error) {
	transaction := dbc.DB(r.db)
	res := transaction.WithContext(dbc.Context()).
		Model(&generation.GenerationJob{}).
		Where("id = ? AND status = ? AND updated_at < ?", id, generation.StatusGenerating, cutoff.UTC()).
		Updates(map[string]interface{}{
			"status":     generation.StatusFailed,
			"last_error": lastError,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *generationJobRepo) Heartbeat(dbc dbctx.Context, id uuid.UUID) error {
	transaction := dbc.DB(r.db)
	return transaction.WithContext(dbc.Context()).
		Model(&generation.GenerationJob{}).
		Where("id = ? AND status = ?", id, generation.StatusGenerating).
		Update("updated_at", time.Now().UTC()).Error
}
