// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/standings/internal/domain/director"
	"github.com/okian/standings/internal/domain/model"
	"github.com/okian/standings/internal/domain/types"
	"github.com/okian/standings/pkg/logger"
)

const defaultMaxNameLength = 64

// Store is the slice of the score store the API mutates.
type Store interface {
	Ranking(ctx context.Context) (types.Ranking, error)
	Add(ctx context.Context, name string, score int64) (types.Entry, error)
	Update(ctx context.Context, id, name string, score int64) (types.Entry, error)
	Delete(ctx context.Context, id string) error
	Clear(ctx context.Context) (int, error)
}

// Notifier announces a mutation so the display polls right away.
type Notifier interface {
	Notify(ctx context.Context, kind model.Kind, entryID string)
}

// Display is the running display engine.
type Display interface {
	// Retry asks for an immediate poll. It reports false when a poll is
	// already waiting.
	Retry(ctx context.Context) bool
	View(ctx context.Context) (director.View, error)
}

// Dependencies bundles what the handlers need.
type Dependencies struct {
	Store         Store
	Notifier      Notifier
	Display       Display
	Stats         StatsProvider
	MaxNameLength int
	// PublicURL is encoded by /qr.png. Empty means derive it from the request.
	PublicURL string
	Logger    logger.Logger
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	scoresHandler  *ScoresHandler
	displayHandler *DisplayHandler
	qrHandler      *QRHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies) *Server {
	if deps.MaxNameLength < 1 {
		deps.MaxNameLength = defaultMaxNameLength
	}
	if deps.Notifier == nil {
		deps.Notifier = nopNotifier{}
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	return &Server{
		healthHandler:  NewHealthHandler(),
		statsHandler:   NewStatsHandler(deps.Stats),
		scoresHandler:  NewScoresHandler(deps.Store, deps.Notifier, deps.MaxNameLength, deps.Logger),
		displayHandler: NewDisplayHandler(deps.Display),
		qrHandler:      NewQRHandler(deps.PublicURL),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/api/scores", MetricsMiddleware(s.scoresHandler.HandleScores, "scores"))
	mux.HandleFunc("/api/display/retry", MetricsMiddleware(s.displayHandler.HandleRetry, "display_retry"))
	mux.HandleFunc("/api/display/state", MetricsMiddleware(s.displayHandler.HandleState, "display_state"))
	mux.HandleFunc("/qr.png", MetricsMiddleware(s.qrHandler.HandleQR, "qr"))
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, model.Kind, string) {}

// messageResponse is the envelope every score endpoint answers with.
type messageResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message,omitempty"`
	Score   *types.Entry `json:"score,omitempty"`
	Rank    *int         `json:"rank,omitempty"`
	Cleared *int         `json:"cleared,omitempty"`
}

type scoresResponse struct {
	Success bool          `json:"success"`
	Scores  []types.Entry `json:"scores"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError answers with {success:false, message}. The message is the
// public text; err is only reported through the middleware.
func writeError(w http.ResponseWriter, status int, message string, err error) {
	if rw, ok := w.(*responseWriter); ok {
		rw.err = err
	}
	if message == "" {
		message = http.StatusText(status)
	}
	writeJSON(w, status, messageResponse{Success: false, Message: message})
}
