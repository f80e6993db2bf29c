package sessions

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/lumen-backend/internal/data/repos/repoerr"
	"github.com/yungbote/lumen-backend/internal/domain/sessions"
	"github.com/yungbote/lumen-backend/internal/platform/dbctx"
	"github.com/yungbote/lumen-backend/internal/platform/logger"
)

type SessionRepo interface {
	Create(dbc dbctx.Context, s *sessions.Session) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*sessions.Session, error)
	SetProject(dbc dbctx.Context, id uuid.UUID, projectID uuid.UUID) error
	// BeginGenerating sets generating_since to at unless another turn holds
	// a marker newer than staleBefore. It reports false when one does.
	BeginGenerating(dbc dbctx.Context, id uuid.UUID, at, staleBefore time.Time) (bool, error)
	// EndGenerating clears the marker set at at; a marker taken over since
	// is left alone.
	EndGenerating(dbc dbctx.Context, id uuid.UUID, at time.Time) error
}

type sessionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSessionRepo(db *gorm.DB, baseLog *logger.Logger) SessionRepo {
	return &sessionRepo{db: db, log: baseLog.With("repo", "SessionRepo")}
}

func (r *sessionRepo) Create(dbc dbctx.Context, s *sessions.Session) error {
	if err := dbc.DB(r.db).WithContext(dbc.Context()).Create(s).Error; err != nil {
		return repoerr.MapError(err)
	}
	return nil
}

func (r *sessionRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*sessions.Session, error) {
	var s sessions.Session
	if err := dbc.DB(r.db).WithContext(dbc.Context()).Where("id = ?", id).First(&s).Error; err != nil {
		return nil, repoerr.MapError(err)
	}
	return &s, nil
}

func (r *sessionRepo) SetProject(dbc dbctx.Context, id uuid.UUID, projectID uuid.UUID) error {
	res := dbc.DB(r.db).WithContext(dbc.Context()).
		Model(&sessions.Session{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"project_id": projectID, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return repoerr.MapError(res.Error)
	}
	if res.RowsAffected == 0 {
		return repoerr.ErrNotFound
	}
	return nil
}

func (r *sessionRepo) BeginGenerating(dbc dbctx.Context, id uuid.UUID, at, staleBefore time.Time) (bool, error) {
	res := dbc.DB(r.db).WithContext(dbc.Context()).
		Model(&sessions.Session{}).
		Where("id = ? AND (generating_since IS NULL OR generating_since < ?)", id, staleBefore.UTC()).
		Update("generating_since", markerTime(at))
	if res.Error != nil {
		return false, repoerr.MapError(res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *sessionRepo) EndGenerating(dbc dbctx.Context, id uuid.UUID, at time.Time) error {
	res := dbc.DB(r.db).WithContext(dbc.Context()).
		Model(&sessions.Session{}).
		Where("id = ? AND generating_since = ?", id, markerTime(at)).
		Update("generating_since", nil)
	if res.Error != nil {
		return repoerr.MapError(res.Error)
	}
	return nil
}

// markerTime matches the precision Postgres keeps so EndGenerating can compare.
func markerTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
