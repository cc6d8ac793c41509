// Package storage opens the mission store selected by the configuration.
package storage

import (
	"context"
	"fmt"

	"github.com/cadrimil/engine/diaria"
	"github.com/cadrimil/engine/diaria/store"
	"github.com/cadrimil/engine/internal/config"
	"github.com/cadrimil/engine/ratesource"
	"github.com/cadrimil/engine/store/postgres"
	"github.com/cadrimil/engine/store/sqlite"
)

// Opened is an open store. Cache is nil for drivers that cannot keep the
// rate table between runs.
type Opened struct {
	Missions diaria.MissionStore
	Cache    ratesource.Cache
	close    func()
}

// Close releases the underlying connection.
func (o Opened) Close() {
	if o.close != nil {
		o.close()
	}
}

// Open returns the store for cfg.Driver. Postgres runs its migrations
// before returning.
func Open(ctx context.Context, cfg config.StorageConfig) (Opened, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		s, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return Opened{}, err
		}
		return Opened{Missions: s, Cache: s, close: s.Close}, nil
	case config.DriverMemory:
		return Opened{Missions: store.NewMemory()}, nil
	case config.DriverSQLite, "":
		s, err := sqlite.New(cfg.Path)
		if err != nil {
			return Opened{}, err
		}
		return Opened{Missions: s, Cache: s, close: func() { s.Close() }}, nil
	default:
		return Opened{}, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
