package api

import (
	"net/http"
	"time"

	"github.com/okian/standings/internal/domain/director"
)

// DisplayHandler exposes the display engine.
type DisplayHandler struct {
	display Display
}

// NewDisplayHandler creates a display handler.
func NewDisplayHandler(display Display) *DisplayHandler {
	return &DisplayHandler{display: display}
}

type retryResponse struct {
	Success bool   `json:"success"`
	Queued  bool   `json:"queued"`
	Message string `json:"message"`
}

// HandleRetry handles POST /api/display/retry.
func (h *DisplayHandler) HandleRetry(w http.ResponseWriter, r *http.Request) {
	const op = "api.display_retry"
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "", nil)
		return
	}
	if h.display == nil {
		writeError(w, http.StatusServiceUnavailable, "Display is not running", NewKind(op, ErrUnavailable))
		return
	}
	queued := h.display.Retry(r.Context())
	msg := "Retry scheduled"
	if !queued {
		msg = "A refresh is already pending"
	}
	writeJSON(w, http.StatusAccepted, retryResponse{Success: true, Queued: queued, Message: msg})
}

type stateRow struct {
	ID     string        `json:"id"`
	Name   string        `json:"name"`
	Score  int64         `json:"score"`
	Shown  int64         `json:"shown"`
	Rank   int           `json:"rank"`
	Tags   []string      `json:"tags,omitempty"`
	Rect   director.Rect `json:"rect"`
	Moving bool          `json:"moving"`
}

type stateResponse struct {
	Phase      string     `json:"phase"`
	Generation uint64     `json:"generation"`
	Rows       []stateRow `json:"rows"`
	Error      string     `json:"error,omitempty"`
	FailedAt   *time.Time `json:"failedAt,omitempty"`
}

// HandleState handles GET /api/display/state.
func (h *DisplayHandler) HandleState(w http.ResponseWriter, r *http.Request) {
	const op = "api.display_state"
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, http.StatusMethodNotAllowed, "", nil)
		return
	}
	if h.display == nil {
		writeError(w, http.StatusServiceUnavailable, "Display is not running", NewKind(op, ErrUnavailable))
		return
	}
	v, err := h.display.View(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "Display is not running", WrapKind(op, ErrUnavailable, err))
		return
	}

	resp := stateResponse{Phase: v.Phase.String(), Generation: v.Generation, Rows: make([]stateRow, len(v.Rows))}
	for i, row := range v.Rows {
		resp.Rows[i] = stateRow{
			ID: row.Entry.ID, Name: row.Entry.Name, Score: row.Entry.Score, Shown: row.Score,
			Rank: row.Rank + 1, Tags: row.Tags.Names(), Rect: row.Rect, Moving: row.Moving,
		}
	}
	if v.Err != nil {
		resp.Error = v.Err.Error()
		at := v.FailedAt
		resp.FailedAt = &at
	}
	writeJSON(w, http.StatusOK, resp)
}
