package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/lumen-backend/internal/data/repos"
	contentrepo "github.com/yungbote/lumen-backend/internal/data/repos/content"
	jobsrepo "github.com/yungbote/lumen-backend/internal/data/repos/jobs"
	ledgerrepo "github.com/yungbote/lumen-backend/internal/data/repos/ledger"
	sessionsrepo "github.com/yungbote/lumen-backend/internal/data/repos/sessions"
	"github.com/yungbote/lumen-backend/internal/platform/logger"
)

type Repos struct {
	GenerationJob repos.GenerationJobRepo
	Session       repos.SessionRepo
	Turn          repos.TurnRepo
	Project       repos.ProjectRepo
	Post          repos.PostRepo
	Interaction   repos.InteractionRepo
	Artifact      repos.ArtifactRepo
	TokenBalance  repos.TokenBalanceRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		GenerationJob: jobsrepo.NewGenerationJobRepo(db, log),
		Session:       sessionsrepo.NewSessionRepo(db, log),
		Turn:          sessionsrepo.NewTurnRepo(db, log),
		Project:       contentrepo.NewProjectRepo(db, log),
		Post:          contentrepo.NewPostRepo(db, log),
		Interaction:   contentrepo.NewInteractionRepo(db, log),
		Artifact:      contentrepo.NewArtifactRepo(db, log),
		TokenBalance:  ledgerrepo.NewTokenBalanceRepo(db, log),
	}
}
