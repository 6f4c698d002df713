package storage

import (
	"sync"

	"github.com/gregjones/httpcache"
	"github.com/gregjones/httpcache/diskcache"
	"github.com/minio/crc64nvme"
	"github.com/rs/zerolog/log"
)

// SafeStore is a key/value store that never fails. Reads and writes go to a
// durable backend (disk cache in production); any backend failure, including
// panics and unverified writes, falls back to an in-process map so callers
// behave identically whether or not durable storage is available.
type SafeStore struct {
	mu       sync.Mutex
	backend  httpcache.Cache
	fallback map[string]string
}

// New creates a SafeStore over the given backend. A nil backend keeps
// everything in memory.
func New(backend httpcache.Cache) *SafeStore {
	if backend == nil {
		backend = httpcache.NewMemoryCache()
	}
	return &SafeStore{
		backend:  backend,
		fallback: make(map[string]string),
	}
}

// NewDisk creates a SafeStore persisted under dir.
// If dir is empty, an in-memory backend is used instead.
func NewDisk(dir string) *SafeStore {
	if dir == "" {
		return New(httpcache.NewMemoryCache())
	}
	return New(diskcache.New(dir))
}

// Get returns the stored value for key. The fallback map takes precedence
// since it holds values whose durable write could not be verified.
func (s *SafeStore) Get(key string) (string, bool) {
	s.mu.Lock()
	if v, ok := s.fallback[key]; ok {
		s.mu.Unlock()
		return v, true
	}
	s.mu.Unlock()

	var (
		data []byte
		ok   bool
	)
	if !s.try(func() { data, ok = s.backend.Get(key) }) || !ok {
		return "", false
	}
	return string(data), true
}

// Set stores value under key. The durable write is verified by reading it
// back and comparing checksums; on any failure the value is retained in the
// in-memory fallback instead.
func (s *SafeStore) Set(key, value string) {
	want := crc64nvme.Checksum([]byte(value))

	verified := false
	s.try(func() {
		s.backend.Set(key, []byte(value))
		if got, ok := s.backend.Get(key); ok && crc64nvme.Checksum(got) == want {
			verified = true
		}
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	if verified {
		// Durable copy is authoritative again.
		delete(s.fallback, key)
		return
	}
	log.Debug().Str("key", key).Msg("durable write not verified, using memory fallback")
	s.fallback[key] = value
}

// Remove deletes key from both the backend and the fallback map.
func (s *SafeStore) Remove(key string) {
	s.try(func() { s.backend.Delete(key) })

	s.mu.Lock()
	delete(s.fallback, key)
	s.mu.Unlock()
}

// try runs fn, absorbing panics from misbehaving backends.
// Returns false if fn panicked.
func (s *SafeStore) try(fn func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Debug().Interface("cause", r).Msg("storage backend failure absorbed")
			ok = false
		}
	}()
	fn()
	return true
}
