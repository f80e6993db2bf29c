package repos

import (
	"github.com/yungbote/lumen-backend/internal/data/repos/content"
	"github.com/yungbote/lumen-backend/internal/data/repos/jobs"
	"github.com/yungbote/lumen-backend/internal/data/repos/ledger"
	"github.com/yungbote/lumen-backend/internal/data/repos/repoerr"
	"github.com/yungbote/lumen-backend/internal/data/repos/sessions"
)

type GenerationJobRepo = jobs.GenerationJobRepo
type SessionRepo = sessions.SessionRepo
type TurnRepo = sessions.TurnRepo
type ProjectRepo = content.ProjectRepo
type PostRepo = content.PostRepo
type InteractionRepo = content.InteractionRepo
type ArtifactRepo = content.ArtifactRepo
type TokenBalanceRepo = ledger.TokenBalanceRepo

var (
	ErrNotFound = repoerr.ErrNotFound
	ErrConflict = repoerr.ErrConflict
)

func MapError(err error) error { return repoerr.MapError(err) }
