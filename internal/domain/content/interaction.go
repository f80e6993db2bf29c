package content

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type InteractionKind string

const (
	InteractionLike InteractionKind = "like"
	InteractionSave InteractionKind = "save"
)

func (k InteractionKind) Valid() bool {
	return k == InteractionLike || k == InteractionSave
}

// Interaction rows exist only while the interaction is active.
type Interaction struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	SubjectID uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_interaction_subject_user_kind,priority:1" json:"subject_id"`
	UserID    uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_interaction_subject_user_kind,priority:2;index" json:"user_id"`
	Kind      InteractionKind `gorm:"type:text;not null;uniqueIndex:idx_interaction_subject_user_kind,priority:3" json:"kind"`
	CreatedAt time.Time       `gorm:"not null" json:"created_at"`
}

func (Interaction) TableName() string { return "interaction" }

func (i *Interaction) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// Artifact holds generated bytes when object storage runs in inline mode.
type Artifact struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerUserID uuid.UUID `gorm:"type:uuid;not null;index" json:"owner_user_id"`
	SubjectID   uuid.UUID `gorm:"type:uuid;not null;index" json:"subject_id"`
	ContentType string    `gorm:"type:text;not null" json:"content_type"`
	Body        string    `gorm:"type:text;not null" json:"-"`
	CreatedAt   time.Time `gorm:"not null" json:"created_at"`
}

func (Artifact) TableName() string { return "artifact" }

func (a *Artifact) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
