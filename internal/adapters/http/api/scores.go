package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/okian/standings/internal/adapters/repository"
	"github.com/okian/standings/internal/domain/model"
	"github.com/okian/standings/internal/domain/types"
	"github.com/okian/standings/pkg/logger"
)

const maxBodyBytes = 1 << 16

// Public messages.
const (
	msgNameRequired  = "Name is required and must be a non-empty string"
	msgNameTooLong   = "Name is too long"
	msgIDRequired    = "ID and name are required"
	msgBadScore      = "Score must be a valid non-negative integer"
	msgBadBody       = "Request body must be a JSON object"
	msgNotFound      = "Score not found"
	msgAdded         = "Score added successfully!"
	msgUpdated       = "Score updated successfully!"
	msgDeleted       = "Score deleted successfully!"
	msgCleared       = "All scores cleared successfully!"
	msgStoreFailed   = "Failed to update scores. Please try again."
	allowScoreMethod = "GET, POST, PUT, DELETE"
)

// ScoresHandler serves /api/scores.
type ScoresHandler struct {
	store    Store
	notifier Notifier
	maxName  int
	log      logger.Logger
}

// NewScoresHandler creates a scores handler.
func NewScoresHandler(store Store, notifier Notifier, maxName int, log logger.Logger) *ScoresHandler {
	return &ScoresHandler{store: store, notifier: notifier, maxName: maxName, log: log.Named("api")}
}

// scoreRequest mirrors the body of POST and PUT /api/scores. Score stays raw
// so strings, fractions and missing values can be told apart.
type scoreRequest struct {
	ID    string          `json:"id"`
	Name  *string         `json:"name"`
	Score json.RawMessage `json:"score"`
}

// HandleScores dispatches on method.
func (h *ScoresHandler) HandleScores(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodPost:
		h.add(w, r)
	case http.MethodPut:
		h.update(w, r)
	case http.MethodDelete:
		h.remove(w, r)
	default:
		w.Header().Set("Allow", allowScoreMethod)
		writeError(w, http.StatusMethodNotAllowed, "", nil)
	}
}

func (h *ScoresHandler) list(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_scores"
	ranking, err := h.store.Ranking(r.Context())
	if err != nil {
		h.log.Error(r.Context(), "list scores failed", logger.Error(Wrap(op, err)))
		writeJSON(w, http.StatusInternalServerError, scoresResponse{Success: false, Scores: []types.Entry{}})
		return
	}
	if ranking == nil {
		ranking = types.Ranking{}
	}
	writeJSON(w, http.StatusOK, scoresResponse{Success: true, Scores: ranking})
}

func (h *ScoresHandler) add(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_score"
	req, err := decodeScoreRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, msgBadBody, WrapKind(op, ErrBadRequest, err))
		return
	}
	name, score, msg := h.validate(req)
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg, NewKind(op, ErrBadRequest))
		return
	}

	e, err := h.store.Add(r.Context(), name, score)
	if err != nil {
		h.storeError(w, r, op, err)
		return
	}
	h.notifier.Notify(r.Context(), model.KindAdded, e.ID)
	writeJSON(w, http.StatusCreated, messageResponse{Success: true, Message: msgAdded, Score: &e, Rank: h.rank(r, e.ID)})
}

func (h *ScoresHandler) update(w http.ResponseWriter, r *http.Request) {
	const op = "api.put_score"
	req, err := decodeScoreRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, msgBadBody, WrapKind(op, ErrBadRequest, err))
		return
	}
	if strings.TrimSpace(req.ID) == "" || req.Name == nil || strings.TrimSpace(*req.Name) == "" {
		writeError(w, http.StatusBadRequest, msgIDRequired, NewKind(op, ErrBadRequest))
		return
	}
	name, score, msg := h.validate(req)
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg, NewKind(op, ErrBadRequest))
		return
	}

	e, err := h.store.Update(r.Context(), req.ID, name, score)
	if err != nil {
		h.storeError(w, r, op, err)
		return
	}
	h.notifier.Notify(r.Context(), model.KindUpdated, e.ID)
	writeJSON(w, http.StatusOK, messageResponse{Success: true, Message: msgUpdated, Score: &e, Rank: h.rank(r, e.ID)})
}

func (h *ScoresHandler) remove(w http.ResponseWriter, r *http.Request) {
	const op = "api.delete_scores"
	if id := r.URL.Query().Get("id"); id != "" {
		if err := h.store.Delete(r.Context(), id); err != nil {
			h.storeError(w, r, op, err)
			return
		}
		h.notifier.Notify(r.Context(), model.KindDeleted, id)
		writeJSON(w, http.StatusOK, messageResponse{Success: true, Message: msgDeleted})
		return
	}

	n, err := h.store.Clear(r.Context())
	if err != nil {
		h.storeError(w, r, op, err)
		return
	}
	h.notifier.Notify(r.Context(), model.KindCleared, "")
	writeJSON(w, http.StatusOK, messageResponse{Success: true, Message: msgCleared, Cleared: &n})
}

// rank is nil when the store cannot look positions up cheaply.
func (h *ScoresHandler) rank(r *http.Request, id string) *int {
	n, ok := repository.PositionOf(r.Context(), h.store, id)
	if !ok {
		return nil
	}
	return &n
}

func (h *ScoresHandler) storeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, msgNotFound, WrapKind(op, ErrNotFound, err))
	case errors.Is(err, repository.ErrInvalidEntry):
		writeError(w, http.StatusBadRequest, msgBadScore, WrapKind(op, ErrBadRequest, err))
	default:
		h.log.Error(r.Context(), "store operation failed", logger.String("op", op), logger.Error(err))
		writeError(w, http.StatusInternalServerError, msgStoreFailed, Wrap(op, err))
	}
}

// validate returns the trimmed name and the score, or a public message.
func (h *ScoresHandler) validate(req scoreRequest) (string, int64, string) {
	if req.Name == nil {
		return "", 0, msgNameRequired
	}
	name := strings.TrimSpace(*req.Name)
	switch {
	case name == "":
		return "", 0, msgNameRequired
	case utf8.RuneCountInString(name) > h.maxName:
		return "", 0, msgNameTooLong
	}
	score, ok := parseScore(req.Score)
	if !ok {
		return "", 0, msgBadScore
	}
	return name, score, ""
}

// parseScore accepts a JSON number holding a non-negative integer. 42.0 is
// accepted, 42.5 and "42" are not.
func parseScore(raw json.RawMessage) (int64, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] == '"' || string(raw) == "null" {
		return 0, false
	}
	if n, err := strconv.ParseInt(string(raw), 10, 64); err == nil {
		return n, n >= 0
	}
	f, err := strconv.ParseFloat(string(raw), 64)
	if err != nil || f < 0 || f != math.Trunc(f) || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

func decodeScoreRequest(r *http.Request) (scoreRequest, error) {
	var req scoreRequest
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		return scoreRequest{}, err
	}
	return req, nil
}
