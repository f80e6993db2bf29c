package ledger

import (
	"time"

	"github.com/google/uuid"
)

// TokenBalance is written by the billing system. This service only reads it.
type TokenBalance struct {
	OwnerUserID uuid.UUID `gorm:"type:uuid;primaryKey" json:"owner_user_id"`
	Balance     int64     `gorm:"not null;default:0" json:"balance"`
	UpdatedAt   time.Time `gorm:"not null" json:"updated_at"`
}

func (TokenBalance) TableName() string { return "token_balance" }
