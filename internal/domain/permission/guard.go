package permission

import (
	"fmt"

	"github.com/pressroom-io/pressroom/internal/domain/dispatch"
	"github.com/pressroom-io/pressroom/internal/domain/identity"
)

// DashboardTarget returns the UI path of the dashboard for a role on a
// topic. Used for DenyNavigate guidance and by the goto_* handlers, so the
// redirect the guard suggests is the same one the navigation actions produce.
func DashboardTarget(role identity.Role, topic string) string {
	switch role {
	case identity.RoleEditor:
		return "/topics/" + topic + "/editor"
	case identity.RoleAnalyst:
		return "/topics/" + topic + "/analyst"
	default:
		return "/topics/" + topic
	}
}

// Check evaluates an action request against the static permission table.
// It is a pure decision: navigation guidance is returned as data and the
// caller performs any redirect.
//
//   - No rule: DenyError (implicit denial of unknown actions).
//   - global_only: allow iff the caller holds the global admin scope.
//   - topic_scoped: allow iff the caller holds "{currentTopic}:{role}" for
//     some rule role, or global admin. A caller holding a rule role on a
//     DIFFERENT topic gets DenyNavigate toward that topic's dashboard;
//     a caller with no relevant role at all gets DenyError.
//   - any_topic: allow iff the caller holds a rule role on any topic,
//     or global admin.
func Check(actionType dispatch.ActionType, scopes identity.ScopeSet, currentTopic string) Decision {
	rule, ok := Resolve(actionType)
	if !ok {
		return DenyError(fmt.Sprintf("unknown action %q", actionType))
	}

	if scopes.IsGlobalAdmin() {
		return Allow()
	}

	switch rule.Class {
	case ClassGlobalOnly:
		return DenyError("insufficient permissions: global admin required")

	case ClassTopicScoped:
		for _, role := range rule.Roles {
			if scopes.HasTopicRole(currentTopic, role) {
				return Allow()
			}
		}
		// Wrong topic context: guide toward a topic where the caller does
		// hold one of the rule roles.
		for _, role := range rule.Roles {
			if topics := scopes.TopicsWithRole(role); len(topics) > 0 {
				return DenyNavigate(
					DashboardTarget(role, topics[0]),
					fmt.Sprintf("no %s role on topic %q", role, currentTopic),
				)
			}
		}
		return DenyError(fmt.Sprintf("insufficient permissions for %q", actionType))

	case ClassAnyTopic:
		if scopes.HasAnyRole(rule.Roles...) {
			return Allow()
		}
		return DenyError(fmt.Sprintf("insufficient permissions for %q", actionType))

	default:
		// Unreachable with a well-formed table; treated as denial.
		return DenyError(fmt.Sprintf("unknown scope class %q", rule.Class))
	}
}
