package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/okian/standings/internal/domain/types"
)

const maxRemoteBody = 4 << 20

// envelope is the response shape of /api/scores.
type envelope struct {
	Success *bool          `json:"success"`
	Scores  *[]wireEntry `json:"scores"`
	Score   *wireEntry   `json:"score"`
	Message string       `json:"message"`
	Cleared *int         `json:"cleared"`
}

// wireEntry keeps field presence so a missing score is not read as 0.
type wireEntry struct {
	ID        *string   `json:"id"`
	Name      *string   `json:"name"`
	Score     *int64    `json:"score"`
	CreatedAt time.Time `json:"createdAt"`
}

func (w wireEntry) entry() (types.Entry, error) {
	switch {
	case w.ID == nil:
		return types.Entry{}, errors.New("entry has no id")
	case w.Name == nil:
		return types.Entry{}, fmt.Errorf("entry %s has no name", *w.ID)
	case w.Score == nil:
		return types.Entry{}, fmt.Errorf("entry %s has no score", *w.ID)
	}
	return types.Entry{ID: *w.ID, Name: *w.Name, Score: *w.Score, CreatedAt: w.CreatedAt}, nil
}

// RemoteStore reads and mutates the scoreboard of another instance over
// its HTTP API.
type RemoteStore struct {
	base   *url.URL
	client *http.Client
}

// NewRemoteStore points at base, e.g. http://scores.internal:9080.
// A nil client means http.DefaultClient.
func NewRemoteStore(base string, client *http.Client) (*RemoteStore, error) {
	u, err := url.ParseRequestURI(base)
	if err != nil {
		return nil, fmt.Errorf("remote url: %w", err)
	}
	if client == nil {
		client = http.DefaultClient
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/api/scores"
	return &RemoteStore{base: u, client: client}, nil
}

func (s *RemoteStore) Ranking(ctx context.Context) (types.Ranking, error) {
	env, err := s.do(ctx, http.MethodGet, nil, nil)
	if err != nil {
		return nil, err
	}
	if env.Success == nil || !*env.Success || env.Scores == nil {
		return nil, fmt.Errorf("%w: response has no scores", types.ErrMalformedRanking)
	}
	out := make(types.Ranking, 0, len(*env.Scores))
	for i, w := range *env.Scores {
		e, err := w.entry()
		if err != nil {
			return nil, fmt.Errorf("%w: rank %d: %w", types.ErrMalformedRanking, i, err)
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *RemoteStore) Add(ctx context.Context, name string, score int64) (types.Entry, error) {
	if err := checkEntry(name, score); err != nil {
		return types.Entry{}, err
	}
	env, err := s.do(ctx, http.MethodPost, nil, map[string]any{"name": name, "score": score})
	if err != nil {
		return types.Entry{}, err
	}
	return s.entry(env)
}

func (s *RemoteStore) Update(ctx context.Context, id, name string, score int64) (types.Entry, error) {
	if err := checkEntry(name, score); err != nil {
		return types.Entry{}, err
	}
	env, err := s.do(ctx, http.MethodPut, nil, map[string]any{"id": id, "name": name, "score": score})
	if err != nil {
		return types.Entry{}, err
	}
	return s.entry(env)
}

func (s *RemoteStore) Delete(ctx context.Context, id string) error {
	_, err := s.do(ctx, http.MethodDelete, url.Values{"id": {id}}, nil)
	return err
}

func (s *RemoteStore) Clear(ctx context.Context) (int, error) {
	env, err := s.do(ctx, http.MethodDelete, nil, nil)
	if err != nil {
		return 0, err
	}
	if env.Cleared == nil {
		return 0, nil
	}
	return *env.Cleared, nil
}

func (s *RemoteStore) Count(ctx context.Context) (int, error) {
	r, err := s.Ranking(ctx)
	if err != nil {
		return 0, err
	}
	return len(r), nil
}

// Close releases idle connections.
func (s *RemoteStore) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func (s *RemoteStore) entry(env envelope) (types.Entry, error) {
	if env.Score == nil {
		return types.Entry{}, fmt.Errorf("%w: response has no score", ErrRemote)
	}
	e, err := env.Score.entry()
	if err != nil {
		return types.Entry{}, fmt.Errorf("%w: %w", ErrRemote, err)
	}
	return e, nil
}

func (s *RemoteStore) do(ctx context.Context, method string, q url.Values, body any) (envelope, error) {
	u := *s.base
	u.RawQuery = q.Encode()

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return envelope{}, fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return envelope{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return envelope{}, fmt.Errorf("%w: %w", ErrRemote, err)
	}
	defer resp.Body.Close()

	var env envelope
	dec := json.NewDecoder(io.LimitReader(resp.Body, maxRemoteBody))
	decErr := dec.Decode(&env)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return envelope{}, ErrNotFound
	case resp.StatusCode == http.StatusBadRequest:
		return envelope{}, fmt.Errorf("%w: %s", ErrInvalidEntry, env.Message)
	case resp.StatusCode >= 300:
		return envelope{}, fmt.Errorf("%w: %s %s: status %d", ErrRemote, method, u.Path, resp.StatusCode)
	}
	if decErr != nil {
		if errors.Is(decErr, io.EOF) {
			decErr = errors.New("empty body")
		}
		return envelope{}, fmt.Errorf("%w: %w", types.ErrMalformedRanking, decErr)
	}
	return env, nil
}
