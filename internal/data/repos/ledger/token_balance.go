package ledger

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/lumen-backend/internal/domain/ledger"
	"github.com/yungbote/lumen-backend/internal/platform/dbctx"
	"github.com/yungbote/lumen-backend/internal/platform/logger"
)

type TokenBalanceRepo interface {
	// Get returns 0 for owners the billing system has not credited yet.
	Get(dbc dbctx.Context, ownerUserID uuid.UUID) (int64, error)
	// Set is used by local seeding and tests; production balances are written elsewhere.
	Set(dbc dbctx.Context, ownerUserID uuid.UUID, balance int64) error
}

type tokenBalanceRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTokenBalanceRepo(db *gorm.DB, baseLog *logger.Logger) TokenBalanceRepo {
	return &tokenBalanceRepo{db: db, log: baseLog.With("repo", "TokenBalanceRepo")}
}

func (r *tokenBalanceRepo) Get(dbc dbctx.Context, ownerUserID uuid.UUID) (int64, error) {
	var row ledger.TokenBalance
	err := dbc.DB(r.db).WithContext(dbc.Context()).Where("owner_user_id = ?", ownerUserID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return row.Balance, nil
}

func (r *tokenBalanceRepo) Set(dbc dbctx.Context, ownerUserID uuid.UUID, balance int64) error {
	row := &ledger.TokenBalance{OwnerUserID: ownerUserID, Balance: balance, UpdatedAt: time.Now().UTC()}
	return dbc.DB(r.db).WithContext(dbc.Context()).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "owner_user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"balance", "updated_at"}),
		}).
		Create(row).Error
}
