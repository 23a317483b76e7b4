package identity

import (
	"errors"
	"fmt"
	"strings"
)

// GlobalAdminScope is the scope string granting global admin rights,
// valid on every topic and for global-only actions.
const GlobalAdminScope = "global:admin"

// ErrMalformedScope is returned when a scope string is not "{topic}:{role}".
var ErrMalformedScope = errors.New("malformed scope")

// Scope is a string credential of the form "{topic}:{role}" such as
// "macro:analyst", or the special "global:admin".
type Scope string

// Parse splits the scope into its topic and role parts.
// Returns ErrMalformedScope when the scope has no separator, an empty
// part, or an unknown role.
func (s Scope) Parse() (topic string, role Role, err error) {
	raw := string(s)
	idx := strings.IndexByte(raw, ':')
	if idx <= 0 || idx == len(raw)-1 {
		return "", "", fmt.Errorf("%w: %q", ErrMalformedScope, raw)
	}
	topic = raw[:idx]
	role = Role(raw[idx+1:])
	if !role.IsValid() {
		return "", "", fmt.Errorf("%w: unknown role in %q", ErrMalformedScope, raw)
	}
	return topic, role, nil
}

// ScopeSet is the set of scopes held by a caller.
// Order is not significant; malformed entries are ignored by the matchers
// so that a single bad credential from the token source cannot poison the set.
type ScopeSet []Scope

// ParseScopeSet converts raw scope strings (as delivered in a token's
// scopes claim) into a ScopeSet. Malformed entries are dropped and
// reported in the returned slice of errors; the set itself is always usable.
func ParseScopeSet(raw []string) (ScopeSet, []error) {
	set := make(ScopeSet, 0, len(raw))
	var errs []error
	for _, r := range raw {
		s := Scope(r)
		if s != GlobalAdminScope {
			if _, _, err := s.Parse(); err != nil {
				errs = append(errs, err)
				continue
			}
		}
		set = append(set, s)
	}
	return set, errs
}

// IsGlobalAdmin returns true if the set contains the global admin scope.
func (ss ScopeSet) IsGlobalAdmin() bool {
	for _, s := range ss {
		if s == GlobalAdminScope {
			return true
		}
	}
	return false
}

// HasTopicRole returns true if the set contains "{topic}:{role}" exactly.
// The global admin scope does NOT satisfy this check; callers that want
// admin override must test IsGlobalAdmin separately.
func (ss ScopeSet) HasTopicRole(topic string, role Role) bool {
	want := Scope(topic + ":" + string(role))
	for _, s := range ss {
		if s == want {
			return true
		}
	}
	return false
}

// HasAnyRole returns true if the set contains some topic scope whose role
// is one of the given roles.
func (ss ScopeSet) HasAnyRole(roles ...Role) bool {
	for _, s := range ss {
		if s == GlobalAdminScope {
			continue
		}
		_, r, err := s.Parse()
		if err != nil {
			continue
		}
		for _, want := range roles {
			if r == want {
				return true
			}
		}
	}
	return false
}

// TopicsWithRole returns the topics on which the set holds any of the given
// roles, in scope order with duplicates removed.
func (ss ScopeSet) TopicsWithRole(roles ...Role) []string {
	var topics []string
	seen := make(map[string]struct{})
	for _, s := range ss {
		if s == GlobalAdminScope {
			continue
		}
		t, r, err := s.Parse()
		if err != nil {
			continue
		}
		for _, want := range roles {
			if r == want {
				if _, dup := seen[t]; !dup {
					seen[t] = struct{}{}
					topics = append(topics, t)
				}
				break
			}
		}
	}
	return topics
}

// Strings returns the scopes as plain strings, for logging and transport.
func (ss ScopeSet) Strings() []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = string(s)
	}
	return out
}
