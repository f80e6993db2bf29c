package db

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/yungbote/lumen-backend/internal/platform/envutil"
	"github.com/yungbote/lumen-backend/internal/platform/logger"
)

type PostgresService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPostgresService(logg *logger.Logger) (*PostgresService, error) {
	serviceLog := logg.With("service", "PostgresService")

	dsn := envutil.String("POSTGRES_DSN", "")
	if dsn == "" {
		dsn = fmt.Sprintf(
			"postgres://%s:%s@%s:%s/%s?sslmode=%s",
			envutil.String("POSTGRES_USER", "postgres"),
			os.Getenv("POSTGRES_PASSWORD"),
			envutil.String("POSTGRES_HOST", "localhost"),
			envutil.String("POSTGRES_PORT", "5432"),
			envutil.String("POSTGRES_NAME", "lumen"),
			envutil.String("POSTGRES_SSLMODE", "disable"),
		)
	}

	db, err := gorm.Open(postgres.Open(dsn), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(envutil.Int("POSTGRES_MAX_OPEN_CONNS", 20))
		sqlDB.SetMaxIdleConns(envutil.Int("POSTGRES_MAX_IDLE_CONNS", 5))
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	serviceLog.Info("Connected to Postgres", "host", envutil.String("POSTGRES_HOST", "localhost"))
	return &PostgresService{db: db, log: serviceLog}, nil
}

func (s *PostgresService) DB() *gorm.DB { return s.db }

func gormConfig() *gorm.Config {
	gormLog := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             1 * time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	return &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLog,
	}
}
