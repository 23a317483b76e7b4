// Package dispatch implements the UI-action dispatch core: the action
// envelope and result types, the handler registry, and the dispatch store
// with watermark-based exactly-once execution.
//
// An envelope is produced by the chat agent or any UI trigger, permission
// checked by the guard, set as the single pending action, and executed at
// most once by the first registered handler for its type.
package dispatch

// ActionType identifies a dispatchable UI action. The set is closed:
// every type listed here has exactly one permission rule, and dispatching
// a type outside the enumeration is denied.
type ActionType string

const (
	// ActionSaveDraft saves the draft body of an article on the current topic.
	ActionSaveDraft ActionType = "save_draft"
	// ActionSubmitForReview moves a draft into the editorial review queue.
	ActionSubmitForReview ActionType = "submit_for_review"
	// ActionPublishArticle publishes a reviewed article.
	ActionPublishArticle ActionType = "publish_article"
	// ActionRecallArticle withdraws a published article. Destructive.
	ActionRecallArticle ActionType = "recall_article"
	// ActionPurgeArticle permanently deletes an article. Destructive.
	ActionPurgeArticle ActionType = "purge_article"
	// ActionCreateResource attaches a reference resource to the current topic.
	ActionCreateResource ActionType = "create_resource"
	// ActionDeleteResource removes a resource from the current topic. Destructive.
	ActionDeleteResource ActionType = "delete_resource"
	// ActionSetTonality changes the tonality applied to an article.
	ActionSetTonality ActionType = "set_tonality"

	// ActionGotoAnalystDashboard navigates to the caller's analyst dashboard.
	ActionGotoAnalystDashboard ActionType = "goto_analyst_dashboard"
	// ActionGotoEditorDesk navigates to the caller's editor desk.
	ActionGotoEditorDesk ActionType = "goto_editor_desk"
	// ActionGotoTopicOverview navigates to a topic's overview page.
	ActionGotoTopicOverview ActionType = "goto_topic_overview"
	// ActionGotoAdminGlobal navigates to the global admin console.
	ActionGotoAdminGlobal ActionType = "goto_admin_global"

	// ActionAssignRole grants a user a role on a topic.
	ActionAssignRole ActionType = "assign_role"
	// ActionRevokeRole removes a user's role on a topic. Destructive.
	ActionRevokeRole ActionType = "revoke_role"
	// ActionDeactivateUser deactivates a user account. Destructive.
	ActionDeactivateUser ActionType = "deactivate_user"
	// ActionUpdatePrompt updates a system prompt used by the assistant.
	ActionUpdatePrompt ActionType = "update_prompt"
)

// AllActionTypes lists every dispatchable action in a stable order.
// Used by the registry listing and the permission table self-check.
var AllActionTypes = []ActionType{
	ActionSaveDraft,
	ActionSubmitForReview,
	ActionPublishArticle,
	ActionRecallArticle,
	ActionPurgeArticle,
	ActionCreateResource,
	ActionDeleteResource,
	ActionSetTonality,
	ActionGotoAnalystDashboard,
	ActionGotoEditorDesk,
	ActionGotoTopicOverview,
	ActionGotoAdminGlobal,
	ActionAssignRole,
	ActionRevokeRole,
	ActionDeactivateUser,
	ActionUpdatePrompt,
}

// String returns the string representation of the ActionType.
func (t ActionType) String() string {
	return string(t)
}

// IsValid returns true if the type belongs to the closed enumeration.
func (t ActionType) IsValid() bool {
	for _, known := range AllActionTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Envelope carries one requested UI action. Envelopes are immutable once
// created: a later dispatch supersedes (never mutates) the pending one.
type Envelope struct {
	// Type identifies the requested action.
	Type ActionType `json:"type"`
	// Params holds action-specific parameters (article_id, topic,
	// confirmed flag, ...). Shape is validated by the handler, not here.
	Params map[string]any `json:"params,omitempty"`
	// Timestamp is the creation time in milliseconds, strictly increasing
	// per store. It is the sole de-duplication key for execution.
	Timestamp int64 `json:"timestamp"`
}

// Param returns the named parameter, or nil when absent.
func (e *Envelope) Param(key string) any {
	if e.Params == nil {
		return nil
	}
	return e.Params[key]
}

// StringParam returns the named parameter as a string.
// Returns "" when the parameter is absent or not a string.
func (e *Envelope) StringParam(key string) string {
	s, _ := e.Param(key).(string)
	return s
}

// BoolParam returns the named parameter as a bool.
// Returns false when the parameter is absent or not a bool.
func (e *Envelope) BoolParam(key string) bool {
	b, _ := e.Param(key).(bool)
	return b
}

// Confirmed reports whether the envelope carries the explicit
// confirmation flag required by destructive actions.
func (e *Envelope) Confirmed() bool {
	return e.BoolParam("confirmed")
}

// Result is the terminal outcome of one execution attempt. Exactly one of
// Message and Error is populated; both are human-readable strings suitable
// for the chat transcript.
type Result struct {
	// Success reports whether the handler completed its side effect.
	Success bool `json:"success"`
	// Action echoes the originating type for correlation.
	Action ActionType `json:"action"`
	// Message describes a successful outcome. Empty on failure.
	Message string `json:"message,omitempty"`
	// Error describes a failed outcome. Empty on success.
	Error string `json:"error,omitempty"`
	// Data is an optional opaque payload from the handler, e.g. a
	// navigation target for the UI to redirect to.
	Data map[string]any `json:"data,omitempty"`
}

// SuccessResult builds a successful Result for the given action.
func SuccessResult(action ActionType, message string, data map[string]any) Result {
	return Result{Success: true, Action: action, Message: message, Data: data}
}

// FailureResult builds a failed Result for the given action.
func FailureResult(action ActionType, errMsg string) Result {
	return Result{Success: false, Action: action, Error: errMsg}
}
