package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pressroom-io/pressroom/internal/ctxkey"
	"github.com/pressroom-io/pressroom/internal/domain/audit"
	"github.com/pressroom-io/pressroom/internal/domain/dispatch"
	"github.com/pressroom-io/pressroom/internal/domain/identity"
	"github.com/pressroom-io/pressroom/internal/domain/permission"
)

// DispatchService is the entry point for agent-initiated actions. It
// runs the permission guard, places allowed actions in the dispatch
// store, executes the current action and emits an audit record for
// every request, allowed or denied.
type DispatchService struct {
	guard  *GuardService
	store  *dispatch.Store
	audit  *AuditService
	logger *slog.Logger
}

// NewDispatchService wires the guard, the dispatch store and audit.
// audit may be nil (tests, tooling).
func NewDispatchService(guard *GuardService, store *dispatch.Store, auditSvc *AuditService, logger *slog.Logger) *DispatchService {
	return &DispatchService{
		guard:  guard,
		store:  store,
		audit:  auditSvc,
		logger: logger,
	}
}

// Outcome is the full result of one dispatch request: the guard
// decision and, when the action executed, its result. Result is nil
// when the guard denied the action or when a newer dispatch superseded
// this one before it ran.
type Outcome struct {
	Decision permission.Decision
	Result   *dispatch.Result
	// Superseded is true when the action passed the guard but was
	// replaced by a newer dispatch before execution.
	Superseded bool
}

// Dispatch validates and executes one action on behalf of caller.
// Topic is the caller's current topic context, used for navigation
// guidance on topic-scoped denials.
func (s *DispatchService) Dispatch(ctx context.Context, caller *identity.Identity, actionType dispatch.ActionType, params map[string]any, topic string) Outcome {
	start := time.Now()
	requestID := requestIDFromContext(ctx)

	decision := s.guard.Check(actionType, caller.Scopes, topic, params)
	if !decision.Allowed() {
		s.logger.Info("action denied",
			"request_id", requestID,
			"identity", caller.ID,
			"action", actionType,
			"kind", decision.Kind,
			"reason", decision.Reason,
		)
		s.recordAudit(requestID, caller, actionType, topic, params, decision, nil, start)
		return Outcome{Decision: decision}
	}

	s.store.Dispatch(actionType, params)
	result := s.store.ExecuteCurrentAction(ctx)
	if result == nil {
		// A concurrent dispatch replaced this envelope before it ran.
		s.logger.Info("action superseded before execution",
			"request_id", requestID,
			"identity", caller.ID,
			"action", actionType,
		)
		s.recordAudit(requestID, caller, actionType, topic, params, decision, nil, start)
		return Outcome{Decision: decision, Superseded: true}
	}

	s.logger.Info("action executed",
		"request_id", requestID,
		"identity", caller.ID,
		"action", actionType,
		"success", result.Success,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	s.recordAudit(requestID, caller, actionType, topic, params, decision, result, start)
	return Outcome{Decision: decision, Result: result}
}

// ExecutePending runs whatever action is currently pending, bypassing
// the guard. Used by the agent channel after a guarded dispatch placed
// the envelope, and by tests.
func (s *DispatchService) ExecutePending(ctx context.Context) *dispatch.Result {
	return s.store.ExecuteCurrentAction(ctx)
}

// RegisterHandler forwards a handler registration to the dispatch
// store, returning its unregister closure.
func (s *DispatchService) RegisterHandler(actionType dispatch.ActionType, fn dispatch.Handler) func() {
	return s.store.RegisterHandler(actionType, fn)
}

// Pending returns the currently pending envelope, if any.
func (s *DispatchService) Pending() *dispatch.Envelope {
	return s.store.Pending()
}

// RegisteredActions lists the action types that have at least one
// handler, in stable order.
func (s *DispatchService) RegisteredActions() []dispatch.ActionType {
	return s.store.RegisteredActions()
}

// SubscribeResults forwards result subscriptions to the store.
func (s *DispatchService) SubscribeResults(fn func(dispatch.Result)) func() {
	return s.store.SubscribeResults(fn)
}

// PermissionTable exposes the static rule table for the permissions
// endpoint and the CLI.
func (s *DispatchService) PermissionTable() map[dispatch.ActionType]permission.Rule {
	return permission.Table()
}

func (s *DispatchService) recordAudit(requestID string, caller *identity.Identity, actionType dispatch.ActionType, topic string, params map[string]any, decision permission.Decision, result *dispatch.Result, start time.Time) {
	if s.audit == nil {
		return
	}

	record := audit.Record{
		Timestamp:     time.Now().UTC(),
		RequestID:     requestID,
		IdentityID:    caller.ID,
		IdentityName:  caller.Name,
		Action:        string(actionType),
		Topic:         topic,
		Params:        params,
		Reason:        decision.Reason,
		LatencyMicros: time.Since(start).Microseconds(),
	}

	switch {
	case !decision.Allowed():
		record.Decision = audit.DecisionDeny
	case result != nil && !result.Success:
		record.Decision = audit.DecisionError
	default:
		record.Decision = audit.DecisionAllow
	}
	if result != nil {
		record.Success = result.Success
		if record.Reason == "" {
			record.Reason = result.Error
		}
	}

	s.audit.Record(record)
}

// requestIDFromContext reads the request ID placed by the inbound
// middleware, generating one for callers outside the HTTP path.
func requestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(ctxkey.RequestIDKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.NewString()
}
