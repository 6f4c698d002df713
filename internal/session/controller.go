package session

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/meallensai/meallens-go/internal/api"
)

// State is the controller's lifecycle state.
type State int

const (
	StateUninitialized State = iota
	StateRestoring
	StateAuthenticated
	StateUnauthenticated
)

// Transition is the frontend-facing hook for the sign-out experience. The
// web client shows a branded overlay and hard-navigates after a short paint
// delay; that behavior belongs to the implementation, keeping the session
// logic free of UI side effects.
type Transition interface {
	// ShowSignOut is called before the session is torn down.
	ShowSignOut(reason string)
	// RedirectHome is called after the session is cleared.
	RedirectHome()
}

// NopTransition is a Transition that does nothing.
type NopTransition struct{}

func (NopTransition) ShowSignOut(string) {}
func (NopTransition) RedirectHome()      {}

// InitializeOptions controls session restoration.
type InitializeOptions struct {
	// SkipVerify suppresses the backend verification call, for use right
	// after a fresh login where the token is known-good.
	SkipVerify bool
}

// Controller owns the in-memory session and its transitions. Restoration is
// optimistic: a well-formed persisted record authenticates immediately and a
// background verification only demotes the session on a definitive 401, so
// flaky networks never log the user out.
type Controller struct {
	store      *Store
	client     *api.Client
	transition Transition

	initialized atomic.Bool
	refreshing  atomic.Bool

	mu      sync.Mutex
	state   State
	user    *api.User
	token   string
	loading bool
}

// NewController wires the controller to its store, client, and transition
// hook, and registers itself as the client's forced sign-out handler.
func NewController(store *Store, client *api.Client, transition Transition) *Controller {
	if transition == nil {
		transition = NopTransition{}
	}
	c := &Controller{
		store:      store,
		client:     client,
		transition: transition,
		state:      StateUninitialized,
	}
	client.OnSessionExpired(c.forceSignOut)
	return c
}

// Initialize restores the session exactly once per process. Later calls are
// no-ops regardless of options. Verification runs in the background unless
// opts.SkipVerify is set.
func (c *Controller) Initialize(ctx context.Context, opts InitializeOptions) {
	if !c.initialized.CompareAndSwap(false, true) {
		return
	}

	if !c.restore() {
		return
	}
	if opts.SkipVerify {
		return
	}
	go c.verify(ctx)
}

// Refresh re-runs the restore/verify sequence synchronously. A call while
// another Refresh is in flight is a no-op, so overlapping refreshes can
// never race the state.
func (c *Controller) Refresh(ctx context.Context) {
	if !c.refreshing.CompareAndSwap(false, true) {
		log.Debug().Msg("refresh already in flight, skipping")
		return
	}
	defer c.refreshing.Store(false)

	c.initialized.Store(true)
	if c.restore() {
		c.verify(ctx)
	}
}

// restore hydrates in-memory state from the persisted record. Returns true
// when a session was restored and verification should follow.
func (c *Controller) restore() bool {
	c.mu.Lock()
	c.state = StateRestoring
	c.loading = true
	c.mu.Unlock()

	rec, err := c.store.Load()
	if err != nil {
		c.setUnauthenticated()
		return false
	}

	// Optimistic: trust the local record so the UI is responsive while the
	// backend check runs.
	c.mu.Lock()
	c.state = StateAuthenticated
	c.user = &rec.User
	c.token = rec.Token
	c.loading = false
	c.mu.Unlock()

	log.Debug().Str("user", rec.User.ID).Msg("session restored")
	return true
}

// verify checks the restored session against the backend. Only a definitive
// 401 demotes the session; the forced sign-out path has already run via the
// client's expiry handler by the time that error surfaces here. Any other
// failure is tolerated.
func (c *Controller) verify(ctx context.Context) {
	user, err := c.client.Profile(ctx)
	switch {
	case err == nil:
		c.mu.Lock()
		c.user = user
		c.mu.Unlock()
	case api.IsAuthentication(err):
		c.setUnauthenticated()
	default:
		log.Debug().Err(err).Msg("session verification inconclusive, keeping session")
	}
}

// SignOut runs the user-initiated sign-out: transition overlay, best-effort
// backend logout (a server-side failure never blocks local sign-out), local
// clear, redirect.
func (c *Controller) SignOut(ctx context.Context) {
	c.transition.ShowSignOut("signing out")

	if err := c.client.Logout(ctx); err != nil {
		log.Debug().Err(err).Msg("backend logout failed, continuing")
	}

	c.ClearSession()
	c.transition.RedirectHome()
}

// ClearSession removes the persisted record and resets in-memory state.
// Storage-only: no navigation, no backend call.
func (c *Controller) ClearSession() {
	c.store.Clear()
	c.setUnauthenticated()
}

// forceSignOut handles a session-breaking 401 reported by the client.
func (c *Controller) forceSignOut() {
	c.transition.ShowSignOut("session expired")
	c.ClearSession()
	c.transition.RedirectHome()
}

func (c *Controller) setUnauthenticated() {
	c.mu.Lock()
	c.state = StateUnauthenticated
	c.user = nil
	c.token = ""
	c.loading = false
	c.mu.Unlock()
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsAuthenticated reports whether both token and user are present.
func (c *Controller) IsAuthenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token != "" && c.user != nil
}

// CurrentUser returns the signed-in user, or nil.
func (c *Controller) CurrentUser() *api.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.user == nil {
		return nil
	}
	u := *c.user
	return &u
}

// Loading reports whether restoration is still in progress, so callers can
// avoid mistaking a not-yet-restored session for signed-out.
func (c *Controller) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}
