package store

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkawato/shotline/internal/model"
)

func newHTTPStore(t *testing.T, handler http.Handler) (*HTTPStore, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	s := NewHTTPStore(HTTPConfig{
		BaseURL:         srv.URL,
		ScriptName:      "shotline",
		APIKey:          "secret",
		Timeout:         2 * time.Second,
		RetryMaxElapsed: 5 * time.Second,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return s, srv
}

func TestHTTPStoreFindRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	s, _ := newHTTPStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "temporarily down", http.StatusInternalServerError)
			return
		}
		assert.Equal(t, "/api/v1/entity/Task/_search", r.URL.Path)
		assert.Equal(t, "shotline", r.Header.Get("X-Script-Name"))
		assert.Equal(t, "secret", r.Header.Get("X-Script-Key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"records":[{"id":301,"content":"Anim"}]}`))
	}))

	records, err := s.Find(context.Background(), model.EntityTask, nil, nil)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 301, records[0].ID())
	assert.Equal(t, int32(2), calls.Load())
}

func TestHTTPStoreFindRejectionIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	s, _ := newHTTPStore(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "bad filter", http.StatusBadRequest)
	}))

	_, err := s.Find(context.Background(), model.EntityTask, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad filter")
	assert.Equal(t, int32(1), calls.Load())
}

func TestHTTPStoreFindOneNotFound(t *testing.T) {
	s, _ := newHTTPStore(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"records":[]}`))
	}))

	_, err := s.FindOne(context.Background(), model.EntityTask, ByID(1), nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHTTPStoreUpdate(t *testing.T) {
	var gotMethod, gotPath string
	s, _ := newHTTPStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))

	err := s.Update(context.Background(), model.EntityTask, 301, map[string]any{"sg_status_list": "rev"})
	require.NoError(t, err)
	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "/api/v1/entity/Task/301", gotPath)
}

// A transport failure during batch must surface immediately: replaying a
// partially applied batch is worse than failing the run.
func TestHTTPStoreBatchIsNeverRetried(t *testing.T) {
	var calls atomic.Int32
	s, _ := newHTTPStore(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "down", http.StatusInternalServerError)
	}))

	_, err := s.Batch(context.Background(), []model.BatchOperation{
		model.CreateOp(model.EntityVersion, map[string]any{"code": "v1"}),
	})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}
