package identity

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fakeStore is a minimal in-test Store.
type fakeStore struct {
	identities map[string]*Identity
	keys       map[string]*APIKey
}

func (f *fakeStore) GetIdentity(_ context.Context, id string) (*Identity, error) {
	if ident, ok := f.identities[id]; ok {
		return ident, nil
	}
	return nil, errors.New("identity not found")
}

func (f *fakeStore) GetAPIKey(_ context.Context, keyHash string) (*APIKey, error) {
	if key, ok := f.keys[keyHash]; ok {
		return key, nil
	}
	return nil, errors.New("key not found")
}

func (f *fakeStore) ListAPIKeys(_ context.Context) ([]*APIKey, error) {
	out := make([]*APIKey, 0, len(f.keys))
	for _, key := range f.keys {
		out = append(out, key)
	}
	return out, nil
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		identities: make(map[string]*Identity),
		keys:       make(map[string]*APIKey),
	}
}

func TestValidateSHA256FastPath(t *testing.T) {
	store := newFakeStore()
	store.identities["alice"] = &Identity{ID: "alice", Active: true}
	store.keys[HashKey("secret")] = &APIKey{Key: HashKey("secret"), IdentityID: "alice"}

	svc := NewAPIKeyService(store)
	ident, err := svc.Validate(context.Background(), "secret")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if ident.ID != "alice" {
		t.Fatalf("identity = %+v", ident)
	}

	if _, err := svc.Validate(context.Background(), "wrong"); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("err = %v, want ErrInvalidKey", err)
	}
}

func TestValidatePrefixedAndArgon2idHashes(t *testing.T) {
	argonHash, err := HashKeyArgon2id("secret")
	if err != nil {
		t.Fatalf("HashKeyArgon2id: %v", err)
	}

	store := newFakeStore()
	store.identities["alice"] = &Identity{ID: "alice", Active: true}
	store.identities["bob"] = &Identity{ID: "bob", Active: true}
	// Prefixed sha256 and argon2id hashes both miss the fast path and
	// are resolved by iteration.
	store.keys["sha256:"+HashKey("prefixed")] = &APIKey{Key: "sha256:" + HashKey("prefixed"), IdentityID: "alice"}
	store.keys[argonHash] = &APIKey{Key: argonHash, IdentityID: "bob"}

	svc := NewAPIKeyService(store)
	if ident, err := svc.Validate(context.Background(), "prefixed"); err != nil || ident.ID != "alice" {
		t.Fatalf("prefixed: ident=%v err=%v", ident, err)
	}
	if ident, err := svc.Validate(context.Background(), "secret"); err != nil || ident.ID != "bob" {
		t.Fatalf("argon2id: ident=%v err=%v", ident, err)
	}
}

func TestValidateRejectsRevokedExpiredInactive(t *testing.T) {
	past := time.Now().Add(-time.Hour)

	tests := []struct {
		name  string
		key   *APIKey
		ident *Identity
	}{
		{
			name:  "revoked key",
			key:   &APIKey{Key: HashKey("k"), IdentityID: "alice", Revoked: true},
			ident: &Identity{ID: "alice", Active: true},
		},
		{
			name:  "expired key",
			key:   &APIKey{Key: HashKey("k"), IdentityID: "alice", ExpiresAt: &past},
			ident: &Identity{ID: "alice", Active: true},
		},
		{
			name:  "inactive identity",
			key:   &APIKey{Key: HashKey("k"), IdentityID: "alice"},
			ident: &Identity{ID: "alice", Active: false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			store.identities[tt.ident.ID] = tt.ident
			store.keys[tt.key.Key] = tt.key

			svc := NewAPIKeyService(store)
			if _, err := svc.Validate(context.Background(), "k"); !errors.Is(err, ErrInvalidKey) {
				t.Fatalf("err = %v, want ErrInvalidKey", err)
			}
		})
	}
}

func TestDetectHashType(t *testing.T) {
	tests := []struct {
		hash string
		want string
	}{
		{"$argon2id$v=19$m=47104,t=1,p=1$c29tZXNhbHQ$aGFzaA", "argon2id"},
		{"sha256:" + HashKey("x"), "sha256"},
		{HashKey("x"), "sha256"},
		{"plaintext-key", "unknown"},
	}
	for _, tt := range tests {
		if got := DetectHashType(tt.hash); got != tt.want {
			t.Errorf("DetectHashType(%q) = %q, want %q", tt.hash, got, tt.want)
		}
	}
}
