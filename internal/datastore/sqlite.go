package datastore

import (
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ando01/BirdView/internal/errors"
	"github.com/ando01/BirdView/internal/logger"
)

// SQLiteStore implements Interface on a SQLite file.
type SQLiteStore struct {
	DataStore
	Path string
}

// Open creates the database directory, opens the file in WAL mode and migrates.
func (store *SQLiteStore) Open() error {
	if dir := filepath.Dir(store.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.New(err).
				Component("datastore").
				Category(errors.CategoryFileIO).
				Context("path", store.Path).
				Build()
		}
	}

	dsn := store.Path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(dsn), gormConfig())
	if err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("db_type", "sqlite").
			Context("path", store.Path).
			Build()
	}

	store.DB = db
	GetLogger().Info("database opened", logger.String("db_type", "sqlite"), logger.String("path", store.Path))
	return performAutoMigration(db, "sqlite")
}
