package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pressroom-io/pressroom/internal/domain/audit"
	"github.com/pressroom-io/pressroom/internal/domain/dispatch"
	"github.com/pressroom-io/pressroom/internal/domain/identity"
	"github.com/pressroom-io/pressroom/internal/domain/permission"
	"github.com/pressroom-io/pressroom/internal/service"
)

// Handler serves the pressroom REST API.
type Handler struct {
	dispatcher *service.DispatchService
	apiKeys    *identity.APIKeyService
	identities identity.Store
	auditLog   audit.Reader
	metrics    *Metrics
	registry   *prometheus.Registry
	logger     *slog.Logger

	jwtSecret   string
	devIdentity *identity.Identity
}

// Option configures a Handler.
type Option func(*Handler)

// WithJWTSecret enables bearer token authentication.
func WithJWTSecret(secret string) Option {
	return func(h *Handler) {
		h.jwtSecret = secret
	}
}

// WithDevIdentity makes unauthenticated requests act as the given
// identity. Development only.
func WithDevIdentity(ident *identity.Identity) Option {
	return func(h *Handler) {
		h.devIdentity = ident
	}
}

// WithMetrics attaches a metrics registry to the handler.
func WithMetrics(registry *prometheus.Registry, metrics *Metrics) Option {
	return func(h *Handler) {
		h.registry = registry
		h.metrics = metrics
	}
}

// WithAuditReader exposes recent audit records on the API.
func WithAuditReader(reader audit.Reader) Option {
	return func(h *Handler) {
		h.auditLog = reader
	}
}

// NewHandler creates the API handler.
func NewHandler(dispatcher *service.DispatchService, apiKeys *identity.APIKeyService, identities identity.Store, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		dispatcher: dispatcher,
		apiKeys:    apiKeys,
		identities: identities,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes builds the full route table with middleware applied.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", h.handleHealth)
	if h.registry != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{}))
	}

	authed := func(fn http.HandlerFunc) http.Handler {
		return h.withAuth(fn)
	}
	mux.Handle("POST /api/v1/actions", authed(h.handleDispatch))
	mux.Handle("GET /api/v1/actions/pending", authed(h.handlePending))
	mux.Handle("GET /api/v1/actions/registry", authed(h.handleRegistry))
	mux.Handle("GET /api/v1/permissions", authed(h.handlePermissions))
	mux.Handle("GET /api/v1/results/stream", authed(h.handleResultStream))
	mux.Handle("GET /api/v1/audit", authed(h.handleAudit))
	mux.Handle("POST /api/v1/agent", authed(h.handleAgent))

	return h.withRequestID(h.withRecovery(h.withLogging(mux)))
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// dispatchRequest is the body of POST /api/v1/actions.
type dispatchRequest struct {
	// Action is the action type, e.g. "publish_article".
	Action string `json:"action"`
	// Params are the action parameters.
	Params map[string]any `json:"params,omitempty"`
	// Topic is the caller's current topic context.
	Topic string `json:"topic,omitempty"`
}

// decisionResponse mirrors permission.Decision on the wire.
type decisionResponse struct {
	Kind       string `json:"kind"`
	Reason     string `json:"reason,omitempty"`
	NavigateTo string `json:"navigate_to,omitempty"`
	Rule       string `json:"rule,omitempty"`
}

// dispatchResponse is the reply to POST /api/v1/actions.
type dispatchResponse struct {
	Decision   decisionResponse `json:"decision"`
	Result     *dispatch.Result `json:"result,omitempty"`
	Superseded bool             `json:"superseded,omitempty"`
}

func toDecisionResponse(d permission.Decision) decisionResponse {
	return decisionResponse{
		Kind:       string(d.Kind),
		Reason:     d.Reason,
		NavigateTo: d.NavigateTo,
		Rule:       d.RuleName,
	}
}

func (h *Handler) handleDispatch(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "no authenticated caller")
		return
	}

	var req dispatchRequest
	if err := readJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "%v", err)
		return
	}
	actionType := dispatch.ActionType(req.Action)
	if req.Action == "" {
		respondError(w, http.StatusBadRequest, "action is required")
		return
	}
	topic := req.Topic
	if topic == "" {
		topic = r.Header.Get("X-Current-Topic")
	}

	outcome := h.dispatcher.Dispatch(r.Context(), caller, actionType, req.Params, topic)
	h.recordDispatchMetrics(actionType, outcome)

	resp := dispatchResponse{
		Decision:   toDecisionResponse(outcome.Decision),
		Result:     outcome.Result,
		Superseded: outcome.Superseded,
	}
	switch {
	case !outcome.Decision.Allowed():
		respondJSON(w, http.StatusForbidden, resp)
	case outcome.Superseded:
		respondJSON(w, http.StatusConflict, resp)
	default:
		respondJSON(w, http.StatusOK, resp)
	}
}

func (h *Handler) recordDispatchMetrics(actionType dispatch.ActionType, outcome service.Outcome) {
	if h.metrics == nil {
		return
	}
	h.metrics.GuardDecisions.WithLabelValues(string(outcome.Decision.Kind)).Inc()

	var label string
	switch {
	case !outcome.Decision.Allowed():
		label = "denied"
	case outcome.Superseded:
		label = "superseded"
	case outcome.Result != nil && !outcome.Result.Success:
		label = "failed"
	default:
		label = "executed"
	}
	h.metrics.DispatchTotal.WithLabelValues(string(actionType), label).Inc()
}

func (h *Handler) handlePending(w http.ResponseWriter, _ *http.Request) {
	pending := h.dispatcher.Pending()
	if pending == nil {
		respondJSON(w, http.StatusOK, map[string]any{"pending": nil})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"pending": pending})
}

func (h *Handler) handleRegistry(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"actions": h.dispatcher.RegisteredActions(),
	})
}

// permissionEntry is one row of the permissions endpoint.
type permissionEntry struct {
	Action      string   `json:"action"`
	Roles       []string `json:"roles"`
	Scope       string   `json:"scope"`
	Destructive bool     `json:"destructive"`
}

func (h *Handler) handlePermissions(w http.ResponseWriter, _ *http.Request) {
	table := h.dispatcher.PermissionTable()
	entries := make([]permissionEntry, 0, len(table))
	for _, actionType := range dispatch.AllActionTypes {
		rule, ok := table[actionType]
		if !ok {
			continue
		}
		roles := make([]string, len(rule.Roles))
		for i, role := range rule.Roles {
			roles[i] = string(role)
		}
		entries = append(entries, permissionEntry{
			Action:      string(actionType),
			Roles:       roles,
			Scope:       string(rule.Class),
			Destructive: rule.Destructive,
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{"permissions": entries})
}

func (h *Handler) handleAudit(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFromContext(r.Context())
	if !ok || !caller.Scopes.IsGlobalAdmin() {
		respondError(w, http.StatusForbidden, "audit access requires global admin")
		return
	}
	if h.auditLog == nil {
		respondError(w, http.StatusNotFound, "audit log not configured")
		return
	}

	n := 100
	if raw := r.URL.Query().Get("n"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 1000 {
			respondError(w, http.StatusBadRequest, "n must be an integer between 1 and 1000")
			return
		}
		n = parsed
	}
	respondJSON(w, http.StatusOK, map[string]any{"records": h.auditLog.GetRecent(n)})
}
