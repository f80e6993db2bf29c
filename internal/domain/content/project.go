package content

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Project is the private, editable draft behind a course session.
// SnapshotSeq is the turn seq whose artifact Snapshot holds.
type Project struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerUserID uuid.UUID  `gorm:"type:uuid;not null;index" json:"owner_user_id"`
	SessionID   *uuid.UUID `gorm:"type:uuid;uniqueIndex" json:"session_id,omitempty"`
	Title       string     `gorm:"type:text" json:"title,omitempty"`
	Snapshot    string     `gorm:"type:text" json:"snapshot,omitempty"`
	SnapshotSeq int        `gorm:"not null;default:0" json:"snapshot_seq"`
	CreatedAt   time.Time  `gorm:"not null;index" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"not null;index" json:"updated_at"`
}

func (Project) TableName() string { return "project" }

func (p *Project) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

type PostKind string

const (
	PostCourse     PostKind = "course"
	PostSimulation PostKind = "simulation"
	PostVideo      PostKind = "video"
)

// Post is the published copy of a Project or of a completed GenerationJob.
// Each source can back at most one Post.
type Post struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerUserID uuid.UUID  `gorm:"type:uuid;not null;index" json:"owner_user_id"`
	Kind        PostKind   `gorm:"type:text;not null;index" json:"kind"`
	ProjectID   *uuid.UUID `gorm:"type:uuid;uniqueIndex" json:"project_id,omitempty"`
	JobID       *uuid.UUID `gorm:"type:uuid;uniqueIndex" json:"job_id,omitempty"`
	Caption     string     `gorm:"type:text" json:"caption"`
	Body        string     `gorm:"type:text" json:"body,omitempty"`
	ArtifactRef string     `gorm:"type:text" json:"artifact_ref,omitempty"`
	LikeCount   int64      `gorm:"not null;default:0" json:"like_count"`
	SaveCount   int64      `gorm:"not null;default:0" json:"save_count"`
	CreatedAt   time.Time  `gorm:"not null;index" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"not null;index" json:"updated_at"`
}

func (Post) TableName() string { return "post" }

func (p *Post) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// RefKind returns the union tag a card for this post renders under.
func (p *Post) RefKind() RefKind {
	switch p.Kind {
	case PostSimulation:
		return RefSimulationPost
	case PostCourse, PostVideo:
		return RefPost
	default:
		return RefPost
	}
}
