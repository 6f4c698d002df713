package preload

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meallensai/meallens-go/internal/api"
	"github.com/meallensai/meallens-go/internal/cache"
	"github.com/meallensai/meallens-go/internal/storage"
)

func newFixture(t *testing.T, handler http.Handler) (*Preloader, *cache.Caches) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	caches := cache.New(storage.New(nil))
	client := api.New(api.Config{BaseURL: srv.URL}, nil)
	return New(client, caches), caches
}

func TestPreloader_PopulatesCaches(t *testing.T) {
	p, caches := newFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/detection_history":
			// One of the backend's wrapped shapes.
			_, _ = w.Write([]byte(`{"data":{"history":[{"id":"d1"},{"id":"d2"}]}}`))
		case "/settings/history":
			_, _ = w.Write([]byte(`[{"id":"s1"}]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	p.Run(context.Background(), "u1")

	var history []map[string]any
	_, ok := caches.History("u1").GetInto(&history)
	require.True(t, ok)
	assert.Len(t, history, 2)

	var settings []map[string]any
	_, ok = caches.SettingsHistory("u1").GetInto(&settings)
	require.True(t, ok)
	assert.Len(t, settings, 1)
}

func TestPreloader_SkipsWhenFresh(t *testing.T) {
	var requests atomic.Int32
	p, caches := newFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		_, _ = w.Write([]byte(`[]`))
	}))

	caches.History("u1").Put([]map[string]any{{"id": "cached"}})

	p.Run(context.Background(), "u1")

	assert.Equal(t, int32(0), requests.Load())
}

func TestPreloader_FailuresAreIndependent(t *testing.T) {
	p, caches := newFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/detection_history" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"settings_history":[{"id":"s1"}]}`))
	}))

	assert.NotPanics(t, func() { p.Run(context.Background(), "u1") })

	_, _, ok := caches.History("u1").Get()
	assert.False(t, ok, "failed fetch must not write the cache")

	var settings []map[string]any
	_, ok = caches.SettingsHistory("u1").GetInto(&settings)
	require.True(t, ok, "the other fetch must still succeed")
	assert.Len(t, settings, 1)
}

func TestPreloader_ServerErrorIsNotRetried(t *testing.T) {
	var historyCalls atomic.Int32
	p, _ := newFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/detection_history" {
			historyCalls.Add(1)
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))

	p.Run(context.Background(), "u1")

	assert.Equal(t, int32(1), historyCalls.Load(), "5xx is permanent, not transient")
}

func TestPreloader_UnknownShapeCachesEmptyList(t *testing.T) {
	p, _ := newFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"unexpected":"envelope"}`))
	}))

	p.Run(context.Background(), "u1")

	payload, fresh, ok := p.CachedHistory("u1")
	require.True(t, ok)
	assert.True(t, fresh)
	assert.JSONEq(t, `[]`, string(payload))
}

func TestPreloader_CachedReadersServeStale(t *testing.T) {
	caches := cache.New(storage.New(nil))
	now := fixedClock(caches)

	client := api.New(api.Config{BaseURL: "http://127.0.0.1:1"}, nil)
	p := New(client, caches)

	caches.History("u1").Put([]map[string]any{{"id": "old"}})

	*now = now.Add(6 * cache.FreshnessWindow)

	payload, fresh, ok := p.CachedHistory("u1")
	require.True(t, ok)
	assert.False(t, fresh)

	var items []map[string]any
	require.NoError(t, json.Unmarshal(payload, &items))
	assert.Equal(t, "old", items[0]["id"])
}

// fixedClock pins the cache clock and returns a pointer tests can advance.
func fixedClock(c *cache.Caches) *time.Time {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.WithClock(func() time.Time { return now })
	return &now
}
