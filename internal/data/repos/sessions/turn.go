package sessions

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/lumen-backend/internal/data/repos/repoerr"
	"github.com/yungbote/lumen-backend/internal/domain/sessions"
	"github.com/yungbote/lumen-backend/internal/platform/dbctx"
	"github.com/yungbote/lumen-backend/internal/platform/logger"
)

type TurnRepo interface {
	// Append assigns the next seq for the session and inserts the turn.
	Append(dbc dbctx.Context, turn *sessions.Turn) error
	ListBySession(dbc dbctx.Context, sessionID uuid.UUID) ([]*sessions.Turn, error)
}

type turnRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTurnRepo(db *gorm.DB, baseLog *logger.Logger) TurnRepo {
	return &turnRepo{db: db, log: baseLog.With("repo", "TurnRepo")}
}

func (r *turnRepo) Append(dbc dbctx.Context, turn *sessions.Turn) error {
	transaction := dbc.DB(r.db).WithContext(dbc.Context())
	var maxSeq *int
	if err := transaction.Model(&sessions.Turn{}).
		Where("session_id = ?", turn.SessionID).
		Select("MAX(seq)").
		Scan(&maxSeq).Error; err != nil {
		return err
	}
	turn.Seq = 1
	if maxSeq != nil {
		turn.Seq = *maxSeq + 1
	}
	// The (session_id, seq) unique index rejects a concurrent append.
	if err := transaction.Create(turn).Error; err != nil {
		return repoerr.MapError(err)
	}
	return nil
}

func (r *turnRepo) ListBySession(dbc dbctx.Context, sessionID uuid.UUID) ([]*sessions.Turn, error) {
	var out []*sessions.Turn
	if err := dbc.DB(r.db).WithContext(dbc.Context()).
		Where("session_id = ?", sessionID).
		Order("seq ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
