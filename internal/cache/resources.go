package cache

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/meallensai/meallens-go/internal/storage"
	"github.com/meallensai/meallens-go/internal/telemetry"
)

// Storage key prefixes. These match the keys the web client writes so cached
// data survives client upgrades.
const (
	historyPrefix          = "meallensai_history_cache"
	settingsHistoryPrefix  = "meallensai_settings_history_cache"
	enterpriseListPrefix   = "meallensai_enterprise_cache"
	enterpriseDetailPrefix = "meallensai_enterprise_detail"
	healthSettingsPrefix   = "meallensai_health_settings"
)

// Caches exposes one Resource per cached backend resource, each with its own
// staleness policy. The hard/soft split is deliberate: history-style caches
// serve stale data for immediate rendering, enterprise and settings caches
// enforce strict freshness.
type Caches struct {
	store *Store
}

// New creates the resource caches over kv.
func New(kv *storage.SafeStore) *Caches {
	return &Caches{store: NewStore(kv)}
}

// WithClock overrides the clock on the underlying store. Used by tests.
func (c *Caches) WithClock(now func() time.Time) *Caches {
	c.store.WithClock(now)
	return c
}

// History is the detection history cache for a user. Soft TTL.
func (c *Caches) History(userID string) Resource {
	return c.resource("history", historyPrefix, SoftTTL, userID)
}

// SettingsHistory is the health settings history cache for a user. Soft TTL.
func (c *Caches) SettingsHistory(userID string) Resource {
	return c.resource("settings_history", settingsHistoryPrefix, SoftTTL, userID)
}

// EnterpriseList is the enterprise membership cache for a user. Hard TTL.
func (c *Caches) EnterpriseList(userID string) Resource {
	return c.resource("enterprise_list", enterpriseListPrefix, HardTTL, userID)
}

// EnterpriseDetail is the detail bundle cache for one enterprise. Hard TTL.
func (c *Caches) EnterpriseDetail(userID, enterpriseID string) Resource {
	return c.resource("enterprise_detail", enterpriseDetailPrefix, HardTTL, userID, enterpriseID)
}

// HealthSettings is the per-member health settings cache, scoped by the
// viewing user, the enterprise, and the member owning the settings. Hard TTL.
func (c *Caches) HealthSettings(userID, enterpriseID, ownerID string) Resource {
	return c.resource("health_settings", healthSettingsPrefix, HardTTL, userID, enterpriseID, ownerID)
}

func (c *Caches) resource(name, prefix string, policy Policy, scope ...string) Resource {
	suffix := "_" + strings.Join(scope, "_")
	return Resource{
		name:       name,
		payloadKey: prefix + suffix,
		stampKey:   prefix + "_timestamp" + suffix,
		policy:     policy,
		caches:     c,
	}
}

// Resource is one scoped cache entry with a fixed staleness policy.
type Resource struct {
	name       string
	payloadKey string
	stampKey   string
	policy     Policy
	caches     *Caches
}

// Get returns the cached payload. Under SoftTTL a stale payload is still
// returned with fresh=false; under HardTTL staleness is a miss and the entry
// is removed.
func (r Resource) Get() (payload json.RawMessage, fresh, ok bool) {
	payload, fresh, ok = r.caches.store.Read(r.payloadKey, r.stampKey, r.policy)
	switch {
	case !ok:
		r.count("miss")
	case fresh:
		r.count("hit")
	default:
		r.count("stale")
	}
	return payload, fresh, ok
}

// GetInto unmarshals the cached payload into v, honoring the policy.
func (r Resource) GetInto(v any) (fresh, ok bool) {
	payload, fresh, ok := r.Get()
	if !ok {
		return false, false
	}
	if err := json.Unmarshal(payload, v); err != nil {
		log.Warn().Err(err).Str("resource", r.name).Msg("discarding undecodable cache entry")
		r.Clear()
		return false, false
	}
	return fresh, true
}

// Put marshals v and writes it with a fresh timestamp.
func (r Resource) Put(v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		log.Warn().Err(err).Str("resource", r.name).Msg("cache write skipped")
		return
	}
	r.caches.store.Write(r.payloadKey, r.stampKey, payload)
}

// Fresh reports whether a valid entry exists within the freshness window.
func (r Resource) Fresh() bool {
	return r.caches.store.Fresh(r.payloadKey, r.stampKey)
}

// Clear removes the entry.
func (r Resource) Clear() {
	r.caches.store.Delete(r.payloadKey, r.stampKey)
}

func (r Resource) count(outcome string) {
	telemetry.Get().CacheReadsTotal.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String("resource", r.name),
			attribute.String("outcome", outcome),
		))
}
