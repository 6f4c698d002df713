// Package session owns the authenticated session: the persisted record
// (token + user), its validation at restore time, and the in-memory state
// machine the rest of the client consults.
package session

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/mr-tron/base58"
	"github.com/rs/zerolog/log"

	"github.com/meallensai/meallens-go/internal/api"
	"github.com/meallensai/meallens-go/internal/storage"
)

// Well-known storage keys. The token and user record are a single unit:
// they are written and cleared together, never one without the other.
const (
	tokenKey    = "access_token"
	userKey     = "user_data"
	clientIDKey = "meallensai_client_id"
)

// Keys cleared alongside the session on sign-out so billing state never
// outlives the identity it belongs to.
var signOutKeys = []string{
	"meallensai_subscription_status",
	"meallensai_subscription_plan",
	"meallensai_trial_status",
	"meallensai_trial_expires_at",
}

// minTokenLength is the shortest plausible bearer token. Anything shorter in
// the persisted record is treated as corrupt.
const minTokenLength = 20

var (
	ErrNoSession        = errors.New("no session")
	ErrMalformedSession = errors.New("malformed session record")
)

// Record is a restored session.
type Record struct {
	Token string
	User  api.User
}

// recordShape is what a persisted record must look like to be trusted.
type recordShape struct {
	Token  string `validate:"required,min=20"`
	UserID string `validate:"required"`
	Email  string `validate:"required"`
}

var validate = validator.New()

// Store persists the session record over the safe storage layer.
// It implements api.TokenSource.
type Store struct {
	kv  *storage.SafeStore
	now func() time.Time
}

// NewStore creates a session store over kv.
func NewStore(kv *storage.SafeStore) *Store {
	return &Store{kv: kv, now: time.Now}
}

// Save persists token and user as a unit.
func (s *Store) Save(token string, user api.User) {
	data, err := json.Marshal(user)
	if err != nil {
		log.Error().Err(err).Msg("session user not serializable")
		return
	}
	s.kv.Set(tokenKey, token)
	s.kv.Set(userKey, string(data))
}

// Load restores the persisted record. A record that fails shape validation,
// or whose token is a JWT that has already expired, is discarded and
// reported as malformed rather than half-restored.
func (s *Store) Load() (*Record, error) {
	token, haveToken := s.kv.Get(tokenKey)
	rawUser, haveUser := s.kv.Get(userKey)
	if !haveToken && !haveUser {
		return nil, ErrNoSession
	}

	var user api.User
	if err := json.Unmarshal([]byte(rawUser), &user); err != nil {
		log.Warn().Msg("discarding undecodable session record")
		s.Clear()
		return nil, ErrMalformedSession
	}

	shape := recordShape{Token: token, UserID: user.ID, Email: user.Email}
	if err := validate.Struct(shape); err != nil {
		log.Warn().Msg("discarding session record with invalid shape")
		s.Clear()
		return nil, ErrMalformedSession
	}

	if expired, known := tokenExpired(token, s.now()); known && expired {
		log.Info().Msg("discarding session with expired token")
		s.Clear()
		return nil, ErrMalformedSession
	}

	return &Record{Token: token, User: user}, nil
}

// Clear removes the session record plus the subscription/trial keys.
// Token and user always go together.
func (s *Store) Clear() {
	s.kv.Remove(tokenKey)
	s.kv.Remove(userKey)
	for _, key := range signOutKeys {
		s.kv.Remove(key)
	}
}

// Token implements api.TokenSource, reading through to storage so the
// attached header always reflects the current persisted session.
func (s *Store) Token() (string, bool) {
	token, ok := s.kv.Get(tokenKey)
	if !ok || len(token) < minTokenLength {
		return "", false
	}
	return token, true
}

// ClientID returns the stable per-install identifier, generating and
// persisting one on first use. The format mirrors a key fingerprint:
// base58-encoded SHA-256 of a random UUID.
func (s *Store) ClientID() string {
	if id, ok := s.kv.Get(clientIDKey); ok && id != "" {
		return id
	}
	sum := sha256.Sum256([]byte(uuid.NewString()))
	id := base58.Encode(sum[:])
	s.kv.Set(clientIDKey, id)
	return id
}

// tokenExpired inspects token as a JWT without verifying its signature.
// Tokens are opaque to this client, so a token that does not parse as a JWT
// is simply unknown (known=false) and passes through on the length check.
func tokenExpired(token string, now time.Time) (expired, known bool) {
	if strings.Count(token, ".") != 2 {
		return false, false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false, false
	}
	return exp.Before(now), true
}
