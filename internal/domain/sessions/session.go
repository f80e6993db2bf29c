package sessions

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Session is a multi-turn course generation conversation. It is linked 1:1
// to the Project that holds its latest saved snapshot.
type Session struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerUserID uuid.UUID  `gorm:"type:uuid;not null;index" json:"owner_user_id"`
	ProjectID   *uuid.UUID `gorm:"type:uuid;uniqueIndex" json:"project_id,omitempty"`
	ModelHint   string     `gorm:"column:model_hint;type:text" json:"model_hint,omitempty"`
	// GeneratingSince marks a turn in flight on some replica.
	GeneratingSince *time.Time `gorm:"column:generating_since" json:"generating_since,omitempty"`
	CreatedAt   time.Time  `gorm:"not null;index" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"not null;index" json:"updated_at"`
}

func (Session) TableName() string { return "generation_session" }

func (s *Session) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

type TurnRole string

const (
	RoleUser      TurnRole = "user"
	RoleAssistant TurnRole = "assistant"
)

// Turn is append-only. Assistant turns carry the artifact produced by that
// turn's completed generation.
type Turn struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	SessionID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_session_turn_seq,priority:1" json:"session_id"`
	Seq       int       `gorm:"not null;uniqueIndex:idx_session_turn_seq,priority:2" json:"seq"`
	Role      TurnRole  `gorm:"type:text;not null" json:"role"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
}

func (Turn) TableName() string { return "session_turn" }

func (t *Turn) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
