package datastore

import (
	"github.com/ando01/BirdView/internal/conf"
	"github.com/ando01/BirdView/internal/observability/metrics"
)

// New returns the store selected by settings: MySQL when enabled, SQLite otherwise.
// The store is not opened.
func New(settings *conf.Settings, m *metrics.DatastoreMetrics) Interface {
	if settings.Output.MySQL.Enabled {
		my := settings.Output.MySQL
		return &MySQLStore{
			DataStore: DataStore{Metrics: m},
			Host:      my.Host,
			Port:      my.Port,
			Username:  my.Username,
			Password:  my.Password,
			Database:  my.Database,
		}
	}
	return &SQLiteStore{
		DataStore: DataStore{Metrics: m},
		Path:      settings.Output.SQLite.Path,
	}
}
