package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meallensai/meallens-go/internal/api"
	"github.com/meallensai/meallens-go/internal/storage"
)

type recordingTransition struct {
	mu        sync.Mutex
	shown     []string
	redirects int
}

func (r *recordingTransition) ShowSignOut(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shown = append(r.shown, reason)
}

func (r *recordingTransition) RedirectHome() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.redirects++
}

func (r *recordingTransition) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.shown), r.redirects
}

func newFixture(t *testing.T, handler http.Handler) (*Controller, *Store, *recordingTransition) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	store := NewStore(storage.New(nil))
	client := api.New(api.Config{BaseURL: srv.URL}, store)
	transition := &recordingTransition{}
	return NewController(store, client, transition), store, transition
}

func okProfile(w http.ResponseWriter) {
	_, _ = w.Write([]byte(`{"user":{"id":"u1","email":"a@b.c"}}`))
}

func TestController_InitializeNoSession(t *testing.T) {
	c, _, _ := newFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		okProfile(w)
	}))

	c.Initialize(context.Background(), InitializeOptions{})

	assert.Equal(t, StateUnauthenticated, c.State())
	assert.False(t, c.IsAuthenticated())
	assert.False(t, c.Loading())
	assert.Nil(t, c.CurrentUser())
}

func TestController_InitializeRestoresOptimistically(t *testing.T) {
	c, store, _ := newFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		okProfile(w)
	}))
	store.Save("an-opaque-token-of-plausible-length", api.User{ID: "u1", Email: "a@b.c"})

	c.Initialize(context.Background(), InitializeOptions{SkipVerify: true})

	assert.Equal(t, StateAuthenticated, c.State())
	assert.True(t, c.IsAuthenticated())
	require.NotNil(t, c.CurrentUser())
	assert.Equal(t, "u1", c.CurrentUser().ID)
}

func TestController_InitializeOnce(t *testing.T) {
	var calls atomic.Int32
	c, store, _ := newFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		okProfile(w)
	}))
	store.Save("an-opaque-token-of-plausible-length", api.User{ID: "u1", Email: "a@b.c"})

	c.Initialize(context.Background(), InitializeOptions{SkipVerify: true})
	c.Initialize(context.Background(), InitializeOptions{})
	c.Initialize(context.Background(), InitializeOptions{})

	// Re-initialization never re-triggers restore or verification.
	assert.Equal(t, int32(0), calls.Load())
	assert.Equal(t, StateAuthenticated, c.State())
}

func TestController_MalformedRecordUnauthenticated(t *testing.T) {
	c, store, _ := newFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		okProfile(w)
	}))
	store.Save("short", api.User{ID: "u1", Email: "a@b.c"})

	assert.NotPanics(t, func() {
		c.Initialize(context.Background(), InitializeOptions{})
	})
	assert.Equal(t, StateUnauthenticated, c.State())
}

func TestController_RefreshVerifies(t *testing.T) {
	t.Run("verification success keeps session and updates user", func(t *testing.T) {
		c, store, _ := newFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"user":{"id":"u1","email":"a@b.c","name":"Fresh Name"}}`))
		}))
		store.Save("an-opaque-token-of-plausible-length", api.User{ID: "u1", Email: "a@b.c"})

		c.Refresh(context.Background())

		assert.True(t, c.IsAuthenticated())
		assert.Equal(t, "Fresh Name", c.CurrentUser().Name)
	})

	t.Run("verification 401 clears session", func(t *testing.T) {
		c, store, transition := newFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		store.Save("an-opaque-token-of-plausible-length", api.User{ID: "u1", Email: "a@b.c"})

		c.Refresh(context.Background())

		assert.Equal(t, StateUnauthenticated, c.State())
		_, err := store.Load()
		assert.ErrorIs(t, err, ErrNoSession)

		shown, redirects := transition.counts()
		assert.Equal(t, 1, shown)
		assert.Equal(t, 1, redirects)
	})

	t.Run("transient verification failure is tolerated", func(t *testing.T) {
		c, store, _ := newFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		store.Save("an-opaque-token-of-plausible-length", api.User{ID: "u1", Email: "a@b.c"})

		c.Refresh(context.Background())

		// The design tolerates flaky verification rather than logging out.
		assert.True(t, c.IsAuthenticated())
		_, err := store.Load()
		assert.NoError(t, err)
	})
}

func TestController_RefreshSingleFlight(t *testing.T) {
	var calls atomic.Int32
	arrived := make(chan struct{})
	release := make(chan struct{})

	c, store, _ := newFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		close(arrived)
		<-release
		okProfile(w)
	}))
	store.Save("an-opaque-token-of-plausible-length", api.User{ID: "u1", Email: "a@b.c"})

	done := make(chan struct{})
	go func() {
		c.Refresh(context.Background())
		close(done)
	}()

	// Wait until the first refresh is mid-verification, then issue a second.
	<-arrived
	c.Refresh(context.Background())

	close(release)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("refresh did not complete")
	}

	assert.Equal(t, int32(1), calls.Load(), "second refresh must be a no-op")
	assert.True(t, c.IsAuthenticated())
}

func TestController_SignOut(t *testing.T) {
	var loggedOut atomic.Bool
	c, store, transition := newFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/logout" {
			loggedOut.Store(true)
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	store.Save("an-opaque-token-of-plausible-length", api.User{ID: "u1", Email: "a@b.c"})
	c.Initialize(context.Background(), InitializeOptions{SkipVerify: true})

	c.SignOut(context.Background())

	assert.True(t, loggedOut.Load())
	assert.False(t, c.IsAuthenticated())
	_, err := store.Load()
	assert.ErrorIs(t, err, ErrNoSession)

	shown, redirects := transition.counts()
	assert.Equal(t, 1, shown)
	assert.Equal(t, 1, redirects)
}

func TestController_SignOutToleratesBackendFailure(t *testing.T) {
	c, store, _ := newFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	store.Save("an-opaque-token-of-plausible-length", api.User{ID: "u1", Email: "a@b.c"})
	c.Initialize(context.Background(), InitializeOptions{SkipVerify: true})

	c.SignOut(context.Background())

	assert.False(t, c.IsAuthenticated())
	_, err := store.Load()
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestController_ForcedSignOutOn401(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	store := NewStore(storage.New(nil))
	client := api.New(api.Config{BaseURL: srv.URL}, store)
	transition := &recordingTransition{}
	c := NewController(store, client, transition)

	store.Save("an-opaque-token-of-plausible-length", api.User{ID: "u1", Email: "a@b.c"})
	c.Initialize(context.Background(), InitializeOptions{SkipVerify: true})
	require.True(t, c.IsAuthenticated())

	// Any non-exempt call hitting a 401 triggers the forced sign-out.
	_, err := client.Do(context.Background(), api.Request{Method: http.MethodGet, Path: "/meal_plan"})
	require.Error(t, err)
	assert.True(t, api.IsAuthentication(err))

	assert.False(t, c.IsAuthenticated())
	_, loadErr := store.Load()
	assert.ErrorIs(t, loadErr, ErrNoSession)

	shown, redirects := transition.counts()
	assert.Equal(t, 1, shown)
	assert.Equal(t, 1, redirects)
}

func TestController_ClearSessionIsLocalOnly(t *testing.T) {
	var requests atomic.Int32
	c, store, transition := newFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		okProfile(w)
	}))
	store.Save("an-opaque-token-of-plausible-length", api.User{ID: "u1", Email: "a@b.c"})
	c.Initialize(context.Background(), InitializeOptions{SkipVerify: true})

	c.ClearSession()

	assert.Equal(t, int32(0), requests.Load())
	assert.False(t, c.IsAuthenticated())

	shown, redirects := transition.counts()
	assert.Zero(t, shown)
	assert.Zero(t, redirects)
}
