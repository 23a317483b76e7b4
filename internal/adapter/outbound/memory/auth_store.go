package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pressroom-io/pressroom/internal/domain/identity"
)

// ErrNotFound is returned when an identity or API key does not exist.
var ErrNotFound = errors.New("not found")

// AuthStore is a thread-safe in-memory identity store, populated from
// configuration at startup.
type AuthStore struct {
	mu         sync.RWMutex
	identities map[string]identity.Identity
	apiKeys    map[string]identity.APIKey // keyed by key hash
}

var _ identity.Store = (*AuthStore)(nil)

// NewAuthStore creates an empty auth store.
func NewAuthStore() *AuthStore {
	return &AuthStore{
		identities: make(map[string]identity.Identity),
		apiKeys:    make(map[string]identity.APIKey),
	}
}

// PutIdentity inserts or replaces an identity.
func (s *AuthStore) PutIdentity(id identity.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identities[id.ID] = id
}

// PutAPIKey inserts or replaces an API key, keyed by its hash.
func (s *AuthStore) PutAPIKey(key identity.APIKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apiKeys[key.Key] = key
}

// GetIdentity returns a copy of the identity.
func (s *AuthStore) GetIdentity(_ context.Context, id string) (*identity.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ident, ok := s.identities[id]
	if !ok {
		return nil, fmt.Errorf("identity %s: %w", id, ErrNotFound)
	}
	ident.Scopes = append(identity.ScopeSet(nil), ident.Scopes...)
	return &ident, nil
}

// GetAPIKey returns a copy of the API key with the given hash.
func (s *AuthStore) GetAPIKey(_ context.Context, keyHash string) (*identity.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key, ok := s.apiKeys[keyHash]
	if !ok {
		return nil, fmt.Errorf("api key: %w", ErrNotFound)
	}
	return &key, nil
}

// ListAPIKeys returns copies of all stored API keys.
func (s *AuthStore) ListAPIKeys(_ context.Context) ([]*identity.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*identity.APIKey, 0, len(s.apiKeys))
	for _, key := range s.apiKeys {
		k := key
		out = append(out, &k)
	}
	return out, nil
}
