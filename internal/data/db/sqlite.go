package db

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/yungbote/lumen-backend/internal/platform/logger"
)

// OpenSQLite opens a SQLite database for local runs. path may be ":memory:"
// or a file URI.
func OpenSQLite(logg *logger.Logger, path string) (*gorm.DB, error) {
	if path == "" {
		path = "file:lumen.db?_busy_timeout=5000"
	}
	db, err := gorm.Open(sqlite.Open(path), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite %q: %w", path, err)
	}
	logg.With("service", "SQLite").Info("Opened SQLite database", "path", path)
	return db, nil
}
