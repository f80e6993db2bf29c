package domain

import (
	"github.com/yungbote/lumen-backend/internal/domain/content"
	"github.com/yungbote/lumen-backend/internal/domain/generation"
	"github.com/yungbote/lumen-backend/internal/domain/ledger"
	"github.com/yungbote/lumen-backend/internal/domain/sessions"
)

type (
	GenerationJob = generation.GenerationJob
	JobKind       = generation.JobKind
	JobStatus     = generation.JobStatus
	Session       = sessions.Session
	Turn          = sessions.Turn
	Project       = content.Project
	Post          = content.Post
	Interaction   = content.Interaction
	Artifact      = content.Artifact
	ContentRef    = content.Ref
	TokenBalance  = ledger.TokenBalance
)

// Models lists every table this service migrates, in dependency order.
func Models() []interface{} {
	return []interface{}{
		&generation.GenerationJob{},
		&sessions.Session{},
		&sessions.Turn{},
		&content.Project{},
		&content.Post{},
		&content.Interaction{},
		&content.Artifact{},
		&ledger.TokenBalance{},
	}
}
