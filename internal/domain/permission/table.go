package permission

import (
	"github.com/pressroom-io/pressroom/internal/domain/dispatch"
	"github.com/pressroom-io/pressroom/internal/domain/identity"
)

// table enumerates exactly one Rule per dispatchable action. An action
// absent from the table is implicitly denied, so adding a new ActionType
// to the dispatch enumeration requires adding its rule here or the action
// is unreachable. MissingRules exposes the self-check.
var table = map[dispatch.ActionType]Rule{
	dispatch.ActionSaveDraft: {
		Roles: []identity.Role{identity.RoleAnalyst, identity.RoleEditor},
		Class: ClassTopicScoped,
	},
	dispatch.ActionSubmitForReview: {
		Roles: []identity.Role{identity.RoleAnalyst},
		Class: ClassTopicScoped,
	},
	dispatch.ActionPublishArticle: {
		Roles: []identity.Role{identity.RoleEditor},
		Class: ClassTopicScoped,
	},
	dispatch.ActionRecallArticle: {
		Roles:       []identity.Role{identity.RoleEditor},
		Class:       ClassTopicScoped,
		Destructive: true,
	},
	dispatch.ActionPurgeArticle: {
		Roles:       []identity.Role{identity.RoleEditor},
		Class:       ClassTopicScoped,
		Destructive: true,
	},
	dispatch.ActionCreateResource: {
		Roles: []identity.Role{identity.RoleAnalyst, identity.RoleEditor},
		Class: ClassTopicScoped,
	},
	dispatch.ActionDeleteResource: {
		Roles:       []identity.Role{identity.RoleEditor},
		Class:       ClassTopicScoped,
		Destructive: true,
	},
	dispatch.ActionSetTonality: {
		Roles: []identity.Role{identity.RoleEditor},
		Class: ClassTopicScoped,
	},

	dispatch.ActionGotoAnalystDashboard: {
		Roles: []identity.Role{identity.RoleAnalyst},
		Class: ClassAnyTopic,
	},
	dispatch.ActionGotoEditorDesk: {
		Roles: []identity.Role{identity.RoleEditor},
		Class: ClassAnyTopic,
	},
	dispatch.ActionGotoTopicOverview: {
		Roles: []identity.Role{identity.RoleAnalyst, identity.RoleEditor},
		Class: ClassAnyTopic,
	},
	dispatch.ActionGotoAdminGlobal: {
		Roles: []identity.Role{identity.RoleAdmin},
		Class: ClassGlobalOnly,
	},

	dispatch.ActionAssignRole: {
		Roles: []identity.Role{identity.RoleAdmin},
		Class: ClassGlobalOnly,
	},
	dispatch.ActionRevokeRole: {
		Roles:       []identity.Role{identity.RoleAdmin},
		Class:       ClassGlobalOnly,
		Destructive: true,
	},
	dispatch.ActionDeactivateUser: {
		Roles:       []identity.Role{identity.RoleAdmin},
		Class:       ClassGlobalOnly,
		Destructive: true,
	},
	dispatch.ActionUpdatePrompt: {
		Roles: []identity.Role{identity.RoleAdmin},
		Class: ClassGlobalOnly,
	},
}

// Resolve returns the permission rule for the given action type.
// The second return is false when no rule exists, which callers must
// treat as an implicit denial.
func Resolve(actionType dispatch.ActionType) (Rule, bool) {
	rule, ok := table[actionType]
	return rule, ok
}

// Table returns a copy of the full permission table, keyed by action type,
// for the registry/permissions listings.
func Table() map[dispatch.ActionType]Rule {
	out := make(map[dispatch.ActionType]Rule, len(table))
	for t, r := range table {
		rc := r
		rc.Roles = append([]identity.Role(nil), r.Roles...)
		out[t] = rc
	}
	return out
}

// MissingRules returns the dispatchable action types that have no
// permission rule. A non-empty result is a programming error: the table
// self-check test fails and the serve command refuses to start.
func MissingRules() []dispatch.ActionType {
	var missing []dispatch.ActionType
	for _, t := range dispatch.AllActionTypes {
		if _, ok := table[t]; !ok {
			missing = append(missing, t)
		}
	}
	return missing
}
