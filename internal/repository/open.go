package repository

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/stemsi/placement-backend/internal/config"
	"github.com/stemsi/placement-backend/internal/database"
)

// Opener opens one backend.
type Opener func(ctx context.Context) (Store, error)

// DefaultOpeners returns the openers for every known backend, built from cfg.
func DefaultOpeners(cfg *config.Config, log zerolog.Logger) map[string]Opener {
	return map[string]Opener{
		BackendPostgres: func(ctx context.Context) (Store, error) {
			pool, err := database.NewPostgresPool(ctx, cfg, log)
			if err != nil {
				return nil, err
			}
			store, err := NewPostgresStore(ctx, pool)
			if err != nil {
				pool.Close()
				return nil, err
			}
			return store, nil
		},
		BackendSQLite: func(ctx context.Context) (Store, error) {
			db, err := database.NewSQLiteDB(ctx, cfg.SQLitePath, log)
			if err != nil {
				return nil, err
			}
			store, err := NewSQLiteStore(ctx, db)
			if err != nil {
				db.Close()
				return nil, err
			}
			return store, nil
		},
		BackendFile: func(ctx context.Context) (Store, error) {
			return NewFileStore(filepath.Join(cfg.DataDir, "db.json"))
		},
	}
}

// OpenChain tries each backend in order and returns the first that opens.
// The choice is made once; later failures of that backend are not retried elsewhere.
func OpenChain(ctx context.Context, chain []string, openers map[string]Opener, log zerolog.Logger) (Store, error) {
	if len(chain) == 0 {
		return nil, errors.New("no storage backend configured")
	}

	var errs []error
	for _, name := range chain {
		open, ok := openers[name]
		if !ok {
			log.Warn().Str("backend", name).Msg("Unknown storage backend, skipping")
			errs = append(errs, fmt.Errorf("%s: unknown backend", name))
			continue
		}

		store, err := open(ctx)
		if err != nil {
			log.Warn().Err(err).Str("backend", name).Msg("Storage backend unavailable, trying next")
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}

		log.Info().Str("backend", name).Msg("Storage backend selected")
		return store, nil
	}

	return nil, fmt.Errorf("all storage backends failed: %w", errors.Join(errs...))
}

// Open selects a store from cfg.StoreBackends.
func Open(ctx context.Context, cfg *config.Config, log zerolog.Logger) (Store, error) {
	return OpenChain(ctx, cfg.StoreBackends, DefaultOpeners(cfg, log), log)
}
