// Package permission contains the declarative permission model for
// dispatchable actions and the guard that evaluates caller scopes
// against it.
package permission

import (
	"github.com/pressroom-io/pressroom/internal/domain/identity"
)

// ScopeClass determines how caller scopes are matched against an
// action's required roles.
type ScopeClass string

const (
	// ClassTopicScoped requires a rule role on the CURRENT topic context.
	ClassTopicScoped ScopeClass = "topic_scoped"
	// ClassAnyTopic requires a rule role on at least one topic. Used for
	// navigation actions that do not target a specific resource.
	ClassAnyTopic ScopeClass = "any_topic"
	// ClassGlobalOnly requires the global admin scope regardless of topic.
	ClassGlobalOnly ScopeClass = "global_only"
)

// String returns the string representation of the ScopeClass.
func (c ScopeClass) String() string {
	return string(c)
}

// Rule is the permission rule for one action type.
type Rule struct {
	// Roles is the set of roles sufficient to permit the action.
	// Ignored for ClassGlobalOnly, which always requires global admin.
	Roles []identity.Role
	// Class is the scope class the roles are matched under.
	Class ScopeClass
	// Destructive marks actions whose handler must additionally require
	// the explicit confirmed flag before performing the side effect.
	Destructive bool
}

// HasRole returns true if the rule lists the given role.
func (r Rule) HasRole(role identity.Role) bool {
	for _, rr := range r.Roles {
		if rr == role {
			return true
		}
	}
	return false
}

// DecisionKind classifies a guard decision.
type DecisionKind string

const (
	// DecisionAllow permits the action to proceed to dispatch.
	DecisionAllow DecisionKind = "allow"
	// DecisionDenyNavigate denies the action but offers a navigation
	// target where the caller does hold a relevant role. The caller
	// performs the redirect; the guard only returns the hint.
	DecisionDenyNavigate DecisionKind = "deny_navigate"
	// DecisionDenyError denies the action with no recovery guidance.
	DecisionDenyError DecisionKind = "deny_error"
)

// Decision is the guard's pure verdict on one action request.
type Decision struct {
	// Kind classifies the verdict.
	Kind DecisionKind
	// Reason explains a denial in human-readable form.
	Reason string
	// NavigateTo is the suggested UI target for DecisionDenyNavigate.
	NavigateTo string
	// RuleName names the override rule that produced the denial, when the
	// denial came from a configured override rather than the static table.
	RuleName string
}

// Allowed reports whether the decision permits the action.
func (d Decision) Allowed() bool {
	return d.Kind == DecisionAllow
}

// Allow builds an allowing decision.
func Allow() Decision {
	return Decision{Kind: DecisionAllow}
}

// DenyNavigate builds a denial carrying a navigation hint.
func DenyNavigate(target, reason string) Decision {
	return Decision{Kind: DecisionDenyNavigate, NavigateTo: target, Reason: reason}
}

// DenyError builds a denial with no recovery guidance.
func DenyError(reason string) Decision {
	return Decision{Kind: DecisionDenyError, Reason: reason}
}
