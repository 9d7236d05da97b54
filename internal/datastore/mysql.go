package datastore

import (
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/ando01/BirdView/internal/errors"
	"github.com/ando01/BirdView/internal/logger"
)

// MySQLStore implements Interface on a MySQL server.
type MySQLStore struct {
	DataStore
	Host     string
	Port     string
	Username string
	Password string
	Database string
	// DSN overrides the fields above when set.
	DSN string
}

func (store *MySQLStore) dsn() string {
	if store.DSN != "" {
		return store.DSN
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		store.Username, store.Password, store.Host, store.Port, store.Database)
}

// Open connects and migrates.
func (store *MySQLStore) Open() error {
	db, err := gorm.Open(mysql.Open(store.dsn()), gormConfig())
	if err != nil {
		GetLogger().Error("failed to open MySQL database",
			logger.String("host", store.Host),
			logger.String("port", store.Port),
			logger.String("database", store.Database),
			logger.Error(err))
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("db_type", "mysql").
			Context("host", store.Host).
			Build()
	}

	store.DB = db
	GetLogger().Info("database opened", logger.String("db_type", "mysql"), logger.String("host", store.Host))
	return performAutoMigration(db, "mysql")
}
