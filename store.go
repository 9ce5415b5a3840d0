package authclient

import (
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

// DefaultMarkerSuffix is the name pattern identifying session markers in a
// store, matching the hosted provider's `<project>-auth-token` convention.
const DefaultMarkerSuffix = "-auth-token"

// ErrMarkerNotFound is returned by stores for missing keys.
var ErrMarkerNotFound = goerrors.New("session marker not found", goerrors.CategoryNotFound).
	WithCode(goerrors.CodeNotFound)

// MemoryStore is an in-process SessionStore. Safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: map[string]string{},
	}
}

func (s *MemoryStore) Get(key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.entries[key]
	if !ok {
		return "", ErrMarkerNotFound
	}
	return value, nil
}

func (s *MemoryStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = value
	return nil
}

func (s *MemoryStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}

func (s *MemoryStore) Keys() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	return keys, nil
}

var _ SessionStore = (*MemoryStore)(nil)

// MarkerKeys lists store keys matching the session marker name pattern.
func MarkerKeys(store SessionStore, suffix string) []string {
	if store == nil {
		return nil
	}
	if suffix == "" {
		suffix = DefaultMarkerSuffix
	}

	keys, err := store.Keys()
	if err != nil {
		return nil
	}

	matched := make([]string, 0, len(keys))
	for _, k := range keys {
		if strings.HasSuffix(k, suffix) {
			matched = append(matched, k)
		}
	}
	return matched
}

// LikelyAuthenticated is the fast local pre-check: marker presence plus an
// unverified expiry peek when the marker is a JWT. It never performs network
// I/O and never treats its answer as proof of a live session.
func LikelyAuthenticated(store SessionStore, suffix string) bool {
	for _, key := range MarkerKeys(store, suffix) {
		value, err := store.Get(key)
		if err != nil || value == "" {
			continue
		}

		if markerUsable(value, time.Now()) {
			return true
		}
	}
	return false
}

// markerUsable peeks at a JWT marker's exp claim without verifying the
// signature. Non-JWT markers count as usable; validity is the gateway's call.
func markerUsable(value string, now time.Time) bool {
	token, _, err := jwt.NewParser().ParseUnverified(value, jwt.MapClaims{})
	if err != nil {
		return true
	}

	exp, err := token.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return true
	}

	return now.Before(exp.Time)
}

// ClearMarkers deletes every marker matching the name pattern. Returns the
// first delete failure but attempts every key.
func ClearMarkers(store SessionStore, suffix string) error {
	var firstErr error
	for _, key := range MarkerKeys(store, suffix) {
		if err := store.Delete(key); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
