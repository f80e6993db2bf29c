package app

import (
	"fmt"

	temporalsdkclient "go.temporal.io/sdk/client"
	"gorm.io/gorm"

	"github.com/yungbote/lumen-backend/internal/data/db"
	gen "github.com/yungbote/lumen-backend/internal/generation"
	"github.com/yungbote/lumen-backend/internal/platform/gcp"
	"github.com/yungbote/lumen-backend/internal/platform/logger"
	"github.com/yungbote/lumen-backend/internal/realtime/bus"
	"github.com/yungbote/lumen-backend/internal/temporalx"
)

type Clients struct {
	DB        *gorm.DB
	Bus       bus.Bus
	Bucket    gcp.BucketService
	Generator *gen.Client
	Temporal  temporalsdkclient.Client
}

func openDB(log *logger.Logger, cfg Config) (*gorm.DB, error) {
	var (
		theDB *gorm.DB
		err   error
	)
	switch cfg.DBDriver {
	case "sqlite":
		theDB, err = db.OpenSQLite(log, cfg.SQLitePath)
	default:
		var pg *db.PostgresService
		pg, err = db.NewPostgresService(log)
		if err == nil {
			theDB = pg.DB()
		}
	}
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrateAll(theDB); err != nil {
		return nil, err
	}
	return theDB, nil
}

func wireClients(log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")

	theDB, err := openDB(log, cfg)
	if err != nil {
		return Clients{}, fmt.Errorf("init database: %w", err)
	}

	b, err := bus.NewFromEnv(log)
	if err != nil {
		return Clients{}, fmt.Errorf("init realtime bus: %w", err)
	}

	storageCfg, err := gcp.ResolveObjectStorageConfigFromEnv()
	if err != nil {
		_ = b.Close()
		return Clients{}, fmt.Errorf("resolve artifact storage: %w", err)
	}
	var bucket gcp.BucketService
	if !storageCfg.IsInline() {
		bucket, err = gcp.NewBucketService(log, storageCfg)
		if err != nil {
			_ = b.Close()
			return Clients{}, fmt.Errorf("init bucket client: %w", err)
		}
	} else {
		log.Info("Artifact storage inline; no bucket configured")
	}

	generator, err := gen.NewFromEnv(log)
	if err != nil {
		_ = b.Close()
		return Clients{}, fmt.Errorf("init generation client: %w", err)
	}

	tc, err := temporalx.NewClient(log)
	if err != nil {
		_ = b.Close()
		return Clients{}, fmt.Errorf("init temporal client: %w", err)
	}

	return Clients{
		DB:        theDB,
		Bus:       b,
		Bucket:    bucket,
		Generator: generator,
		Temporal:  tc,
	}, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.Temporal != nil {
		c.Temporal.Close()
	}
	if c.Bus != nil {
		_ = c.Bus.Close()
	}
	if c.DB != nil {
		if sqlDB, err := c.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}
