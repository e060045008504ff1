package storage

import (
	"github.com/idaholeg/mediaportal/internal/config"
	"github.com/idaholeg/mediaportal/internal/domain"
	log "github.com/sirupsen/logrus"
)

// New selects and constructs the active backend from the resolved
// configuration. Selection happens once at startup; callers only ever see the
// MediaStore interface.
func New(cfg *config.Config) (domain.MediaStore, error) {
	switch cfg.Database.Type {
	case config.BackendSQLite:
		log.WithField("path", cfg.Database.SQLitePath).Info("using relational media store")
		return NewSQLiteStore(cfg.Database.SQLitePath)
	case config.BackendBolt:
		log.WithField("path", cfg.Database.BoltPath).Info("using document media store")
		return NewBoltStore(cfg.Database.BoltPath)
	default:
		log.WithField("type", cfg.Database.Type).Warn("unknown database type, defaulting to document store")
		return NewBoltStore(cfg.Database.BoltPath)
	}
}
