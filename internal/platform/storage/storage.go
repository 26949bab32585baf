// Package storage persists archived komens messages, weekly reports and
// synced mail in a local SQLite database.
package storage

import (
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/oto-macenauer/school-summary/internal/platform/config"
	"github.com/oto-macenauer/school-summary/internal/platform/errors"
)

// Open creates the database file (and its directory) if needed and runs
// the schema migration.
func Open(cfg config.StorageConfig) (*gorm.DB, error) {
	dir := filepath.Dir(cfg.Path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(errors.KindStorage, "open", "create data directory", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(cfg.Path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(errors.KindStorage, "open", "open database", err)
	}

	if err := db.AutoMigrate(&KomensMessage{}, &WeekReport{}, &MailRecord{}); err != nil {
		return nil, errors.Wrap(errors.KindStorage, "open", "migrate schema", err)
	}
	return db, nil
}
