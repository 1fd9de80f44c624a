package service

import (
	"context"
	"net/http"

	"github.com/okian/standings/internal/adapters/http/api"
	"github.com/okian/standings/internal/adapters/http/site"
	"github.com/okian/standings/internal/adapters/http/swagger"
)

// Mount registers every route of a started service on mux: the JSON API,
// the display websocket, the API docs and the display page.
func (s *Service) Mount(ctx context.Context, mux *http.ServeMux) error {
	s.mu.RLock()
	started, store, hub := s.started, s.store, s.hub
	s.mu.RUnlock()
	if !started {
		return ErrNotStarted
	}

	apiServer := api.NewServer(api.Dependencies{
		Store:         store,
		Notifier:      s,
		Display:       s,
		Stats:         s,
		MaxNameLength: s.cfg.MaxNameLength,
		PublicURL:     s.cfg.PublicURL,
		Logger:        s.logger.Named("api"),
	})
	apiServer.Register(ctx, mux)
	mux.HandleFunc("/ws", hub.ServeWS)
	swagger.Register(ctx, mux)
	site.Register(ctx, mux)
	return nil
}
