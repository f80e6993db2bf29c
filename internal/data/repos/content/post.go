package content

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/lumen-backend/internal/data/repos/repoerr"
	"github.com/yungbote/lumen-backend/internal/domain/content"
	"github.com/yungbote/lumen-backend/internal/platform/dbctx"
	"github.com/yungbote/lumen-backend/internal/platform/logger"
)

type PostRepo interface {
	// Create fails with repoerr.ErrConflict when the project or job already
	// backs a post.
	Create(dbc dbctx.Context, p *content.Post) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*content.Post, error)
	GetByProject(dbc dbctx.Context, projectID uuid.UUID) (*content.Post, error)
	GetByJob(dbc dbctx.Context, jobID uuid.UUID) (*content.Post, error)
	UpdateCaption(dbc dbctx.Context, id uuid.UUID, caption string) error
	Delete(dbc dbctx.Context, id uuid.UUID) error
	// AdjustCounter adds delta to like_count or save_count and returns the new value.
	AdjustCounter(dbc dbctx.Context, id uuid.UUID, kind content.InteractionKind, delta int) (int64, error)
	ListByOwner(dbc dbctx.Context, ownerUserID uuid.UUID, limit int) ([]*content.Post, error)
}

type postRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPostRepo(db *gorm.DB, baseLog *logger.Logger) PostRepo {
	return &postRepo{db: db, log: baseLog.With("repo", "PostRepo")}
}

func (r *postRepo) Create(dbc dbctx.Context, p *content.Post) error {
	if err := dbc.DB(r.db).WithContext(dbc.Context()).Create(p).Error; err != nil {
		return repoerr.MapError(err)
	}
	return nil
}

func (r *postRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*content.Post, error) {
	return r.first(dbc, "id = ?", id)
}

func (r *postRepo) GetByProject(dbc dbctx.Context, projectID uuid.UUID) (*content.Post, error) {
	return r.first(dbc, "project_id = ?", projectID)
}

func (r *postRepo) GetByJob(dbc dbctx.Context, jobID uuid.UUID) (*content.Post, error) {
	return r.first(dbc, "job_id = ?", jobID)
}

func (r *postRepo) first(dbc dbctx.Context, where string, arg interface{}) (*content.Post, error) {
	var p content.Post
	if err := dbc.DB(r.db).WithContext(dbc.Context()).Where(where, arg).First(&p).Error; err != nil {
		return nil, repoerr.MapError(err)
	}
	return &p, nil
}

func (r *postRepo) UpdateCaption(dbc dbctx.Context, id uuid.UUID, caption string) error {
	res := dbc.DB(r.db).WithContext(dbc.Context()).
		Model(&content.Post{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"caption": caption, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repoerr.ErrNotFound
	}
	return nil
}

func (r *postRepo) Delete(dbc dbctx.Context, id uuid.UUID) error {
	res := dbc.DB(r.db).WithContext(dbc.Context()).Where("id = ?", id).Delete(&content.Post{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repoerr.ErrNotFound
	}
	return nil
}

func counterColumn(kind content.InteractionKind) (string, error) {
	switch kind {
	case content.InteractionLike:
		return "like_count", nil
	case content.InteractionSave:
		return "save_count", nil
	default:
		return "", fmt.Errorf("unknown interaction kind %q", kind)
	}
}

func (r *postRepo) AdjustCounter(dbc dbctx.Context, id uuid.UUID, kind content.InteractionKind, delta int) (int64, error) {
	col, err := counterColumn(kind)
	if err != nil {
		return 0, err
	}
	transaction := dbc.DB(r.db).WithContext(dbc.Context())
	if delta != 0 {
		res := transaction.Model(&content.Post{}).
			Where("id = ?", id).
			Update(col, gorm.Expr(col+" + ?", delta))
		if res.Error != nil {
			return 0, res.Error
		}
		if res.RowsAffected == 0 {
			return 0, repoerr.ErrNotFound
		}
	}
	var count int64
	if err := transaction.Model(&content.Post{}).
		Where("id = ?", id).
		Select(col).
		Scan(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *postRepo) ListByOwner(dbc dbctx.Context, ownerUserID uuid.UUID, limit int) ([]*content.Post, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var out []*content.Post
	if err := dbc.DB(r.db).WithContext(dbc.Context()).
		Where("owner_user_id = ?", ownerUserID).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
