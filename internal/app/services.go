package app

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/lumen-backend/internal/loader"
	"github.com/yungbote/lumen-backend/internal/platform/envutil"
	"github.com/yungbote/lumen-backend/internal/platform/logger"
	"github.com/yungbote/lumen-backend/internal/services"
	"github.com/yungbote/lumen-backend/internal/temporalx"
)

type Services struct {
	Notify       services.Notifier
	Ledger       services.LedgerService
	Artifacts    services.ArtifactStore
	Runner       services.JobRunner
	Jobs         services.JobService
	Sessions     *services.SessionRegistry
	Posts        services.PostService
	Interactions services.InteractionService
	Content      services.ContentService
}

func wireServices(db *gorm.DB, log *logger.Logger, clients Clients, reposet Repos) (Services, error) {
	log.Info("Wiring services...")

	pricing, err := services.LoadPricing(log)
	if err != nil {
		return Services{}, fmt.Errorf("load pricing: %w", err)
	}
	loadOpts := loader.OptionsFromEnv()

	notify := services.NewNotifier(clients.Bus, log)
	ledger := services.NewLedgerService(log, reposet.TokenBalance, pricing, notify)
	artifacts := services.NewArtifactStore(db, log, clients.Bucket, reposet.Artifact)

	runner := services.NewJobRunner(services.JobRunnerDeps{
		Log:       log,
		Jobs:      reposet.GenerationJob,
		Generator: clients.Generator,
		Artifacts: artifacts,
		Ledger:    ledger,
		Notify:    notify,
		Temporal:  clients.Temporal,
		TaskQueue: temporalx.LoadConfig().TaskQueue,

		PendingGrace: envutil.Seconds("JOB_PENDING_GRACE_SECONDS", 30),
		StaleAfter:   envutil.Seconds("JOB_STALE_GENERATING_SECONDS", 900),
	})

	jobs := services.NewJobService(services.JobServiceDeps{
		DB:        db,
		Log:       log,
		Jobs:      reposet.GenerationJob,
		Posts:     reposet.Post,
		Runner:    runner,
		Ledger:    ledger,
		Notify:    notify,
		Artifacts: artifacts,
		Loader:    loadOpts,
	})

	registry := services.NewSessionRegistry(services.SessionRegistryDeps{
		DB:        db,
		Log:       log,
		Sessions:  reposet.Session,
		Turns:     reposet.Turn,
		Projects:  reposet.Project,
		Posts:     reposet.Post,
		Generator: clients.Generator,
		Ledger:    ledger,
		Notify:    notify,
		Loader:    loadOpts,

		StaleAfter: envutil.Seconds("SESSION_STALE_GENERATING_SECONDS", 900),
	})

	return Services{
		Notify:       notify,
		Ledger:       ledger,
		Artifacts:    artifacts,
		Runner:       runner,
		Jobs:         jobs,
		Sessions:     registry,
		Posts:        services.NewPostService(db, log, reposet.Post, notify, registry),
		Interactions: services.NewInteractionService(db, log, reposet.Post, reposet.Interaction, notify),
		Content:      services.NewContentService(log, reposet.Post, reposet.Project, reposet.GenerationJob),
	}, nil
}
