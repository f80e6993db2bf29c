package content

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/lumen-backend/internal/domain/content"
	"github.com/yungbote/lumen-backend/internal/platform/dbctx"
	"github.com/yungbote/lumen-backend/internal/platform/logger"
)

type InteractionRepo interface {
	// Activate inserts the interaction if absent and reports whether a row was added.
	Activate(dbc dbctx.Context, subjectID, userID uuid.UUID, kind content.InteractionKind) (bool, error)
	// Deactivate removes the interaction if present and reports whether a row was removed.
	Deactivate(dbc dbctx.Context, subjectID, userID uuid.UUID, kind content.InteractionKind) (bool, error)
	IsActive(dbc dbctx.Context, subjectID, userID uuid.UUID, kind content.InteractionKind) (bool, error)
}

type interactionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewInteractionRepo(db *gorm.DB, baseLog *logger.Logger) InteractionRepo {
	return &interactionRepo{db: db, log: baseLog.With("repo", "InteractionRepo")}
}

func (r *interactionRepo) Activate(dbc dbctx.Context, subjectID, userID uuid.UUID, kind content.InteractionKind) (bool, error) {
	row := &content.Interaction{SubjectID: subjectID, UserID: userID, Kind: kind}
	res := dbc.DB(r.db).WithContext(dbc.Context()).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "subject_id"}, {Name: "user_id"}, {Name: "kind"}},
			DoNothing: true,
		}).
		Create(row)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *interactionRepo) Deactivate(dbc dbctx.Context, subjectID, userID uuid.UUID, kind content.InteractionKind) (bool, error) {
	res := dbc.DB(r.db).WithContext(dbc.Context()).
		Where("subject_id = ? AND user_id = ? AND kind = ?", subjectID, userID, kind).
		Delete(&content.Interaction{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *interactionRepo) IsActive(dbc dbctx.Context, subjectID, userID uuid.UUID, kind content.InteractionKind) (bool, error) {
	var n int64
	if err := dbc.DB(r.db).WithContext(dbc.Context()).
		Model(&content.Interaction{}).
		Where("subject_id = ? AND user_id = ? AND kind = ?", subjectID, userID, kind).
		Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}
