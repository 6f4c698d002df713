// Package preload warms the history caches right after login so the first
// page of history renders from cache instead of waiting on the backend.
package preload

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/meallensai/meallens-go/internal/api"
	"github.com/meallensai/meallens-go/internal/cache"
	"github.com/meallensai/meallens-go/internal/telemetry"
)

// maxFetchAttempts bounds the retries for each background fetch.
const maxFetchAttempts = 3

// Precedence-ordered envelope shapes for each payload. The backend has
// shipped all of these at one point or another.
var (
	historyShapes         = []string{"history", "detection_history", "data", "data.history"}
	settingsHistoryShapes = []string{"settings_history", "history", "data", "data.settings_history"}
)

// Preloader populates the detection and settings history caches in the
// background. It never reports failure to its caller: completion is
// observable only through the caches filling up.
type Preloader struct {
	client *api.Client
	caches *cache.Caches
}

// New creates a Preloader.
func New(client *api.Client, caches *cache.Caches) *Preloader {
	return &Preloader{client: client, caches: caches}
}

// Preload kicks off the warm-up for userID and returns immediately.
func (p *Preloader) Preload(ctx context.Context, userID string) {
	go p.Run(ctx, userID)
}

// Run performs the warm-up synchronously. Exported so callers and tests can
// wait for completion. The two fetches run concurrently and fail
// independently; neither failure surfaces beyond a log line.
func (p *Preloader) Run(ctx context.Context, userID string) {
	if p.caches.History(userID).Fresh() {
		log.Debug().Str("user", userID).Msg("history cache fresh, preload skipped")
		countRun(ctx, "skipped")
		return
	}

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		raw, err := p.fetch(ctx, p.client.ListDetectionHistory)
		if err != nil {
			log.Warn().Err(err).Str("user", userID).Msg("history preload failed")
			return
		}
		p.caches.History(userID).Put(api.ExtractList(raw, historyShapes...))
	}()

	go func() {
		defer wg.Done()
		raw, err := p.fetch(ctx, p.client.ListSettingsHistory)
		if err != nil {
			log.Warn().Err(err).Str("user", userID).Msg("settings history preload failed")
			return
		}
		p.caches.SettingsHistory(userID).Put(api.ExtractList(raw, settingsHistoryShapes...))
	}()

	wg.Wait()
	countRun(ctx, "completed")
	log.Debug().Str("user", userID).Msg("preload complete")
}

func countRun(ctx context.Context, outcome string) {
	telemetry.Get().PreloadRunsTotal.Add(ctx, 1,
		metric.WithAttributes(attribute.String("outcome", outcome)))
}

// fetch runs one backend call, retrying transient failures with exponential
// backoff. Non-transient failures are permanent.
func (p *Preloader) fetch(ctx context.Context, call func(context.Context) (json.RawMessage, error)) (json.RawMessage, error) {
	op := func() (json.RawMessage, error) {
		raw, err := call(ctx)
		if err != nil && !api.IsTransient(err) {
			return nil, backoff.Permanent(err)
		}
		return raw, err
	}
	return backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(maxFetchAttempts))
}

// CachedHistory reads the detection history cache, serving stale entries so
// callers can paint immediately while a refresh runs.
func (p *Preloader) CachedHistory(userID string) (payload json.RawMessage, fresh, ok bool) {
	return p.caches.History(userID).Get()
}

// CachedSettingsHistory reads the settings history cache under the same
// serve-stale policy.
func (p *Preloader) CachedSettingsHistory(userID string) (payload json.RawMessage, fresh, ok bool) {
	return p.caches.SettingsHistory(userID).Get()
}
