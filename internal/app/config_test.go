package app

import (
	"testing"

	"github.com/yungbote/lumen-backend/internal/platform/logger"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DB_DRIVER", "")
	t.Setenv("JWT_SECRET_KEY", "")
	t.Setenv("APP_ENV", "")
	t.Setenv("PORT", "")

	cfg, err := LoadConfig(logger.NewNop())
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.DBDriver != "postgres" {
		t.Fatalf("driver: want=postgres got=%s", cfg.DBDriver)
	}
	if cfg.JWTSecretKey == "" {
		t.Fatalf("development secret missing")
	}
	if got := cfg.Address(); got != ":8080" {
		t.Fatalf("address: want=:8080 got=%s", got)
	}
}

func TestLoadConfigRejects(t *testing.T) {
	t.Setenv("DB_DRIVER", "mysql")
	if _, err := LoadConfig(logger.NewNop()); err == nil {
		t.Fatalf("unknown driver: want error")
	}

	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET_KEY", "")
	if _, err := LoadConfig(logger.NewNop()); err == nil {
		t.Fatalf("production without secret: want error")
	}

	t.Setenv("JWT_SECRET_KEY", "s3cret")
	t.Setenv("PORT", "127.0.0.1:9000")
	cfg, err := LoadConfig(logger.NewNop())
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.DBDriver != "sqlite" || cfg.Address() != "127.0.0.1:9000" {
		t.Fatalf("config: driver=%s address=%s", cfg.DBDriver, cfg.Address())
	}
}
