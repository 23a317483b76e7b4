package api

import (
	"io"
	"net/http"

	"github.com/pressroom-io/pressroom/internal/domain/dispatch"
	"github.com/pressroom-io/pressroom/pkg/agentrpc"
)

// handleAgent serves the JSON-RPC channel the LLM agent dispatches
// through. One request per HTTP POST; the guard applies exactly as on
// the REST endpoint.
func (h *Handler) handleAgent(w http.ResponseWriter, r *http.Request) {
	if _, ok := callerFromContext(r.Context()); !ok {
		respondError(w, http.StatusUnauthorized, "no authenticated caller")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err != nil {
		h.writeRPC(w, nil, agentrpc.CodeParseError, "failed to read request body")
		return
	}
	msg, err := agentrpc.Decode(body)
	if err != nil {
		h.writeRPC(w, nil, agentrpc.CodeParseError, "invalid JSON-RPC message")
		return
	}
	req := msg.Request()
	if req == nil {
		h.writeRPC(w, msg.RawID(), agentrpc.CodeInvalidRequest, "expected a JSON-RPC request")
		return
	}

	switch req.Method {
	case agentrpc.MethodDispatch:
		h.agentDispatch(w, r, msg)
	case agentrpc.MethodPending:
		h.writeRPCResult(w, msg.RawID(), map[string]any{"pending": h.dispatcher.Pending()})
	case agentrpc.MethodRegistry:
		h.writeRPCResult(w, msg.RawID(), map[string]any{"actions": h.dispatcher.RegisteredActions()})
	case agentrpc.MethodPermissions:
		h.writeRPCResult(w, msg.RawID(), map[string]any{"permissions": h.dispatcher.PermissionTable()})
	default:
		h.writeRPC(w, msg.RawID(), agentrpc.CodeMethodNotFound, "unknown method "+req.Method)
	}
}

func (h *Handler) agentDispatch(w http.ResponseWriter, r *http.Request, msg *agentrpc.Message) {
	caller, _ := callerFromContext(r.Context())
	params := msg.ParseParams()
	if params == nil {
		h.writeRPC(w, msg.RawID(), agentrpc.CodeInvalidParams, "params are required")
		return
	}
	action, _ := params["action"].(string)
	if action == "" {
		h.writeRPC(w, msg.RawID(), agentrpc.CodeInvalidParams, "params.action is required")
		return
	}
	actionParams, _ := params["params"].(map[string]any)
	topic, _ := params["topic"].(string)

	actionType := dispatch.ActionType(action)
	outcome := h.dispatcher.Dispatch(r.Context(), caller, actionType, actionParams, topic)
	h.recordDispatchMetrics(actionType, outcome)

	h.writeRPCResult(w, msg.RawID(), dispatchResponse{
		Decision:   toDecisionResponse(outcome.Decision),
		Result:     outcome.Result,
		Superseded: outcome.Superseded,
	})
}

func (h *Handler) writeRPCResult(w http.ResponseWriter, id []byte, result any) {
	payload, err := agentrpc.NewResultResponse(id, result)
	if err != nil {
		h.writeRPC(w, id, agentrpc.CodeInternalError, "failed to encode response")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

func (h *Handler) writeRPC(w http.ResponseWriter, id []byte, code int, message string) {
	payload, err := agentrpc.NewErrorResponse(id, code, message)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to encode error response")
		return
	}
	// JSON-RPC errors travel in a 200 body.
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}
