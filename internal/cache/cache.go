// Package cache provides TTL-bounded caching of backend resources over the
// safe storage layer. Every cached resource is stored as two keys: the raw
// payload and a timestamp record carrying the write time plus a payload
// checksum. A resource is either hard-TTL (stale entries are deleted and not
// returned) or soft-TTL (stale entries are still served so callers can render
// immediately while a refresh runs in the background).
package cache

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/minio/crc64nvme"
	"github.com/rs/zerolog/log"

	"github.com/meallensai/meallens-go/internal/storage"
)

// FreshnessWindow is the maximum age before a cached entry is stale.
const FreshnessWindow = 5 * time.Minute

// Policy controls what a read does with a stale entry.
type Policy int

const (
	// HardTTL deletes stale entries and reports a miss.
	HardTTL Policy = iota
	// SoftTTL serves stale entries anyway, flagged as not fresh.
	SoftTTL
)

// Store implements the two-key TTL envelope over a SafeStore.
type Store struct {
	kv  *storage.SafeStore
	ttl time.Duration
	now func() time.Time
}

// NewStore creates a Store with the default freshness window.
func NewStore(kv *storage.SafeStore) *Store {
	return &Store{kv: kv, ttl: FreshnessWindow, now: time.Now}
}

// WithClock overrides the clock. Used by tests to age entries.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Write stores payload under key, stamping it with the current time and a
// CRC-64/NVME checksum of the payload.
func (s *Store) Write(payloadKey, stampKey string, payload []byte) {
	stamp := fmt.Sprintf("%d:%016x", s.now().UnixMilli(), crc64nvme.Checksum(payload))
	s.kv.Set(payloadKey, string(payload))
	s.kv.Set(stampKey, stamp)
}

// Read returns the payload for key according to policy. fresh reports whether
// the entry is within the freshness window; ok reports whether a payload was
// returned at all. Corrupt entries (bad stamp or checksum mismatch) are
// removed and reported as a miss.
func (s *Store) Read(payloadKey, stampKey string, policy Policy) (payload []byte, fresh, ok bool) {
	raw, found := s.kv.Get(payloadKey)
	stamp, stampFound := s.kv.Get(stampKey)
	if !found || !stampFound {
		return nil, false, false
	}

	writtenAt, sum, err := parseStamp(stamp)
	if err != nil || crc64nvme.Checksum([]byte(raw)) != sum {
		log.Warn().Str("key", payloadKey).Msg("discarding corrupt cache entry")
		s.Delete(payloadKey, stampKey)
		return nil, false, false
	}

	age := s.now().Sub(writtenAt)
	if age <= s.ttl {
		return []byte(raw), true, true
	}

	if policy == HardTTL {
		s.Delete(payloadKey, stampKey)
		return nil, false, false
	}
	return []byte(raw), false, true
}

// Fresh reports whether a valid entry exists within the freshness window.
func (s *Store) Fresh(payloadKey, stampKey string) bool {
	_, fresh, ok := s.Read(payloadKey, stampKey, SoftTTL)
	return ok && fresh
}

// Delete removes both keys of an entry.
func (s *Store) Delete(payloadKey, stampKey string) {
	s.kv.Remove(payloadKey)
	s.kv.Remove(stampKey)
}

func parseStamp(stamp string) (time.Time, uint64, error) {
	msPart, sumPart, found := strings.Cut(stamp, ":")
	if !found {
		return time.Time{}, 0, fmt.Errorf("malformed stamp %q", stamp)
	}
	ms, err := strconv.ParseInt(msPart, 10, 64)
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("malformed stamp time: %w", err)
	}
	sum, err := strconv.ParseUint(sumPart, 16, 64)
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("malformed stamp checksum: %w", err)
	}
	return time.UnixMilli(ms), sum, nil
}
