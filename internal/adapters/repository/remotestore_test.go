package repository

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/okian/standings/internal/domain/types"
)

func TestRemoteStore(t *testing.T) {
	ctx := context.Background()

	serve := func(t *testing.T, h http.HandlerFunc) *RemoteStore {
		srv := httptest.NewServer(h)
		t.Cleanup(srv.Close)
		s, err := NewRemoteStore(srv.URL+"/", srv.Client())
		require.NoError(t, err)
		return s
	}

	t.Run("reads the scores envelope", func(t *testing.T) {
		s := serve(t, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/api/scores", r.URL.Path)
			_, _ = w.Write([]byte(`{"success":true,"scores":[{"id":"a","name":"Ann","score":9},{"id":"b","name":"Bob","score":3}]}`))
		})
		r, err := s.Ranking(ctx)
		require.NoError(t, err)
		require.Equal(t, []string{"Ann", "Bob"}, names(r))
	})

	t.Run("missing scores is malformed", func(t *testing.T) {
		s := serve(t, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"success":true}`))
		})
		_, err := s.Ranking(ctx)
		require.ErrorIs(t, err, types.ErrMalformedRanking)
	})

	t.Run("entry missing a field is malformed", func(t *testing.T) {
		for _, body := range []string{
			`{"success":true,"scores":[{"id":"a","name":"Ann","score":10},{"id":"b","name":"Bob"}]}`,
			`{"success":true,"scores":[{"name":"Ann","score":10}]}`,
			`{"success":true,"scores":[{"id":"a","score":10}]}`,
		} {
			s := serve(t, func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(body))
			})
			r, err := s.Ranking(ctx)
			require.ErrorIs(t, err, types.ErrMalformedRanking, body)
			require.Nil(t, r)
		}
	})

	t.Run("has no rank lookup", func(t *testing.T) {
		s := serve(t, func(http.ResponseWriter, *http.Request) {
			t.Error("no request expected")
		})
		_, ok := PositionOf(ctx, Instrument(s, BackendRemote), "a")
		require.False(t, ok)
	})

	t.Run("a real zero score is kept", func(t *testing.T) {
		s := serve(t, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"success":true,"scores":[{"id":"a","name":"Ann","score":0}]}`))
		})
		r, err := s.Ranking(ctx)
		require.NoError(t, err)
		require.Len(t, r, 1)
		require.Equal(t, int64(0), r[0].Score)
	})

	t.Run("garbage body is malformed", func(t *testing.T) {
		s := serve(t, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`<html>`))
		})
		_, err := s.Ranking(ctx)
		require.ErrorIs(t, err, types.ErrMalformedRanking)
	})

	t.Run("server error", func(t *testing.T) {
		s := serve(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})
		_, err := s.Ranking(ctx)
		require.ErrorIs(t, err, ErrRemote)
	})

	t.Run("mutations", func(t *testing.T) {
		s := serve(t, func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodPost:
				var body map[string]any
				require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				require.Equal(t, "Ann", body["name"])
				w.WriteHeader(http.StatusCreated)
				_, _ = w.Write([]byte(`{"success":true,"score":{"id":"a","name":"Ann","score":4}}`))
			case http.MethodDelete:
				if r.URL.Query().Get("id") == "missing" {
					w.WriteHeader(http.StatusNotFound)
					_, _ = w.Write([]byte(`{"success":false,"message":"Score not found"}`))
					return
				}
				_, _ = w.Write([]byte(`{"success":true,"cleared":3}`))
			}
		})

		e, err := s.Add(ctx, "Ann", 4)
		require.NoError(t, err)
		require.Equal(t, "a", e.ID)

		require.ErrorIs(t, s.Delete(ctx, "missing"), ErrNotFound)

		n, err := s.Clear(ctx)
		require.NoError(t, err)
		require.Equal(t, 3, n)
	})
}
