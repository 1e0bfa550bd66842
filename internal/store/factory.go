// internal/store/factory.go
package store

import (
	"fmt"
	"log/slog"

	"github.com/skyloop/engine/internal/database"
	gormstore "github.com/skyloop/engine/internal/store/gorm"
	"github.com/skyloop/engine/internal/store/memory"
)

// NewBackend creates a store backend based on configuration.
func NewBackend(storeType string, db *database.Manager, log *slog.Logger) (Backend, error) {
	switch storeType {
	case "gorm", "postgres", "sqlite":
		if db == nil || db.DB == nil {
			return nil, fmt.Errorf("gorm store requires a connected database")
		}
		return gormstore.New(gormstore.Dependencies{
			DB:     db.DB,
			Logger: log,
		}), nil
	case "memory":
		return memory.New(log), nil
	default:
		return nil, fmt.Errorf("unknown store type: %s", storeType)
	}
}
