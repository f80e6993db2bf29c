package content

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/lumen-backend/internal/data/repos/repoerr"
	"github.com/yungbote/lumen-backend/internal/domain/content"
	"github.com/yungbote/lumen-backend/internal/platform/dbctx"
	"github.com/yungbote/lumen-backend/internal/platform/logger"
)

type ProjectRepo interface {
	Create(dbc dbctx.Context, p *content.Project) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*content.Project, error)
	GetBySession(dbc dbctx.Context, sessionID uuid.UUID) (*content.Project, error)
	UpdateSnapshot(dbc dbctx.Context, id uuid.UUID, snapshot string, seq int) error
}

type projectRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProjectRepo(db *gorm.DB, baseLog *logger.Logger) ProjectRepo {
	return &projectRepo{db: db, log: baseLog.With("repo", "ProjectRepo")}
}

func (r *projectRepo) Create(dbc dbctx.Context, p *content.Project) error {
	if err := dbc.DB(r.db).WithContext(dbc.Context()).Create(p).Error; err != nil {
		return repoerr.MapError(err)
	}
	return nil
}

func (r *projectRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*content.Project, error) {
	var p content.Project
	if err := dbc.DB(r.db).WithContext(dbc.Context()).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, repoerr.MapError(err)
	}
	return &p, nil
}

func (r *projectRepo) GetBySession(dbc dbctx.Context, sessionID uuid.UUID) (*content.Project, error) {
	var p content.Project
	if err := dbc.DB(r.db).WithContext(dbc.Context()).Where("session_id = ?", sessionID).First(&p).Error; err != nil {
		return nil, repoerr.MapError(err)
	}
	return &p, nil
}

func (r *projectRepo) UpdateSnapshot(dbc dbctx.Context, id uuid.UUID, snapshot string, seq int) error {
	res := dbc.DB(r.db).WithContext(dbc.Context()).
		Model(&content.Project{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"snapshot":     snapshot,
			"snapshot_seq": seq,
			"updated_at":   time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repoerr.ErrNotFound
	}
	return nil
}
