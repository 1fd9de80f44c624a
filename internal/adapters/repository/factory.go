package repository

import (
	"context"
	"fmt"
	"net/http"

	"github.com/okian/standings/internal/config"
)

// Open builds the backend selected by cfg, wrapped with instrumentation.
func Open(ctx context.Context, cfg *config.Config, opts ...Option) (Store, error) {
	var (
		s   Store
		err error
	)
	switch cfg.StoreBackend {
	case config.StoreMemory, "":
		s = NewTreapStore(opts...)
	case config.StoreSQLite:
		s, err = NewSQLiteStore(ctx, cfg.SQLitePath, opts...)
	case config.StorePostgres:
		s, err = NewPostgresStore(ctx, cfg.PostgresDSN, opts...)
	case config.StoreRemote:
		s, err = NewRemoteStore(cfg.RemoteURL, &http.Client{Timeout: 2 * cfg.FetchTimeout()})
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.StoreBackend, err)
	}
	return Instrument(s, backendLabel(cfg.StoreBackend)), nil
}

func backendLabel(b string) string {
	if b == "" {
		return BackendMemory
	}
	return b
}
