package generation

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type JobKind string

const (
	KindCourseSession JobKind = "course_session"
	KindSimulation    JobKind = "simulation"
	KindVideo         JobKind = "video"
)

func (k JobKind) Valid() bool {
	switch k {
	case KindCourseSession, KindSimulation, KindVideo:
		return true
	default:
		return false
	}
}

type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusGenerating JobStatus = "generating"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition reports whether a job may move from one status to another.
// failed -> generating is the regenerate path and must bump retry_count.
func CanTransition(from, to JobStatus) bool {
	switch from {
	case StatusPending:
		return to == StatusGenerating
	case StatusGenerating:
		return to == StatusCompleted || to == StatusFailed
	case StatusFailed:
		return to == StatusGenerating
	default:
		return false
	}
}

// GenerationJob is one single-shot artifact request. Re-runs reuse the id
// and are told apart by RetryCount.
type GenerationJob struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerUserID uuid.UUID      `gorm:"type:uuid;not null;index" json:"owner_user_id"`
	Kind        JobKind        `gorm:"column:kind;type:text;not null;index" json:"kind"`
	Prompt      string         `gorm:"column:prompt;type:text;not null" json:"prompt"`
	ModelHint   string         `gorm:"column:model_hint;type:text" json:"model_hint,omitempty"`
	// Params are forwarded verbatim to the generator.
	Params      datatypes.JSON `gorm:"column:params" json:"params,omitempty"`
	Status      JobStatus      `gorm:"column:status;type:text;not null;index" json:"status"`
	RetryCount  int            `gorm:"column:retry_count;not null;default:0" json:"retry_count"`
	LastError   string         `gorm:"column:last_error;type:text" json:"last_error,omitempty"`
	ResultRef   string         `gorm:"column:result_ref;type:text" json:"result_ref,omitempty"`
	CreatedAt   time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null;index" json:"updated_at"`
}

func (GenerationJob) TableName() string { return "generation_job" }

func (j *GenerationJob) BeforeCreate(tx *gorm.DB) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	return nil
}

// AttemptKey identifies one run of a job.
type AttemptKey struct {
	JobID   uuid.UUID
	Attempt int
}

func (j *GenerationJob) AttemptKey() AttemptKey {
	return AttemptKey{JobID: j.ID, Attempt: j.RetryCount}
}
