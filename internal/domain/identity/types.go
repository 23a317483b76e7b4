// Package identity contains the domain types for caller identity:
// roles, topic scopes, identities, and API keys.
package identity

import (
	"time"
)

// Role represents a platform role for authorization purposes.
type Role string

const (
	// RoleReader has read-only access to published content.
	RoleReader Role = "reader"
	// RoleAnalyst drafts articles and attaches resources on assigned topics.
	RoleAnalyst Role = "analyst"
	// RoleEditor reviews, publishes, recalls, and purges content on assigned topics.
	RoleEditor Role = "editor"
	// RoleAdmin has global access to all operations on all topics.
	RoleAdmin Role = "admin"
)

// IsValid returns true if the role is a known valid role.
func (r Role) IsValid() bool {
	switch r {
	case RoleReader, RoleAnalyst, RoleEditor, RoleAdmin:
		return true
	default:
		return false
	}
}

// Identity represents an authenticated user or service account.
type Identity struct {
	// ID is the unique identifier for this identity.
	ID string
	// Name is the display name for this identity.
	Name string
	// Scopes are the topic:role credentials held by this identity.
	Scopes ScopeSet
	// Active indicates whether the identity may dispatch actions.
	// Deactivated identities keep their scopes but are rejected at auth.
	Active bool
}

// APIKey represents an API key credential for the agent or service callers.
type APIKey struct {
	// Key is the hashed key value (SHA-256 hex or Argon2id PHC format).
	Key string
	// IdentityID maps this key to an Identity.
	IdentityID string
	// Name is a human-readable label for this key.
	Name string
	// CreatedAt is when the key was created (UTC).
	CreatedAt time.Time
	// ExpiresAt is when the key expires (nil = never expires).
	ExpiresAt *time.Time
	// Revoked indicates if the key has been revoked.
	Revoked bool
}

// IsExpired returns true if the API key has expired.
// A key with nil ExpiresAt never expires.
func (k *APIKey) IsExpired() bool {
	if k.ExpiresAt == nil {
		return false
	}
	return time.Now().UTC().After(*k.ExpiresAt)
}
