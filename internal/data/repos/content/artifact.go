package content

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/lumen-backend/internal/data/repos/repoerr"
	"github.com/yungbote/lumen-backend/internal/domain/content"
	"github.com/yungbote/lumen-backend/internal/platform/dbctx"
	"github.com/yungbote/lumen-backend/internal/platform/logger"
)

type ArtifactRepo interface {
	Create(dbc dbctx.Context, a *content.Artifact) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*content.Artifact, error)
}

type artifactRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewArtifactRepo(db *gorm.DB, baseLog *logger.Logger) ArtifactRepo {
	return &artifactRepo{db: db, log: baseLog.With("repo", "ArtifactRepo")}
}

func (r *artifactRepo) Create(dbc dbctx.Context, a *content.Artifact) error {
	if err := dbc.DB(r.db).WithContext(dbc.Context()).Create(a).Error; err != nil {
		return repoerr.MapError(err)
	}
	return nil
}

func (r *artifactRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*content.Artifact, error) {
	var a content.Artifact
	if err := dbc.DB(r.db).WithContext(dbc.Context()).Where("id = ?", id).First(&a).Error; err != nil {
		return nil, repoerr.MapError(err)
	}
	return &a, nil
}
