package store

import (
	"context"
	"fmt"

	"qlcal/internal/config"
	"qlcal/internal/schedule"
)

// Store persists the serialized events of a Schedule. Records are saved as a
// whole; insertion order is preserved.
type Store interface {
	Load(ctx context.Context) ([]schedule.Record, error)
	Save(ctx context.Context, records []schedule.Record) error
	Close() error
}

// Open returns the Store selected by cfg.Backend.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Backend {
	case config.BackendFile, "":
		return NewFile(cfg.Path), nil
	case config.BackendSQLite:
		s, err := OpenSQLite(ctx, cfg.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.BackendPostgres:
		s, err := OpenPostgres(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("store: unknown backend %q", cfg.Backend)
	}
}

// LoadSchedule reads every record from s and rebuilds a Schedule from them.
func LoadSchedule(ctx context.Context, s Store) (*schedule.Schedule, error) {
	records, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	return schedule.FromRecords(records), nil
}
