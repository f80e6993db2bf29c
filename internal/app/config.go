package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/yungbote/lumen-backend/internal/platform/envutil"
	"github.com/yungbote/lumen-backend/internal/platform/logger"
)

type Config struct {
	ServiceName string
	Environment string
	Version     string
	Port        string

	JWTSecretKey string

	// DBDriver is postgres or sqlite.
	DBDriver   string
	SQLitePath string

	ShutdownGrace time.Duration
}

// loadDotEnv reads .env (or ENV_FILE) when present. Variables already in the
// process environment win.
func loadDotEnv(log *logger.Logger) {
	path := envutil.String("ENV_FILE", ".env")
	if err := godotenv.Load(path); err != nil {
		log.Debug("No env file loaded", "path", path, "error", err)
		return
	}
	log.Info("Loaded env file", "path", path)
}

func LoadConfig(log *logger.Logger) (Config, error) {
	cfg := Config{
		ServiceName:   envutil.String("OTEL_SERVICE_NAME", "lumen-backend"),
		Environment:   envutil.String("APP_ENV", "development"),
		Version:       envutil.String("APP_VERSION", ""),
		Port:          envutil.String("PORT", "8080"),
		JWTSecretKey:  envutil.String("JWT_SECRET_KEY", ""),
		DBDriver:      strings.ToLower(envutil.String("DB_DRIVER", "postgres")),
		SQLitePath:    envutil.String("SQLITE_PATH", ""),
		ShutdownGrace: envutil.Seconds("SHUTDOWN_GRACE_SECONDS", 15),
	}
	switch cfg.DBDriver {
	case "postgres", "sqlite":
	default:
		return cfg, fmt.Errorf("unknown DB_DRIVER=%q (allowed: postgres, sqlite)", cfg.DBDriver)
	}
	if cfg.JWTSecretKey == "" {
		if cfg.Environment == "production" {
			return cfg, fmt.Errorf("JWT_SECRET_KEY is required in production")
		}
		log.Warn("JWT_SECRET_KEY not set; using development secret")
		cfg.JWTSecretKey = "lumen-dev-secret"
	}
	return cfg, nil
}

func (c Config) Address() string {
	if strings.Contains(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}
