// Package agentrpc defines the JSON-RPC message layer the LLM agent
// uses to dispatch UI actions. It wraps the MCP SDK's jsonrpc wire
// codec with pressroom-specific helpers.
package agentrpc

import (
	"encoding/json"
	"time"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
)

// Methods the agent channel understands.
const (
	MethodDispatch    = "actions/dispatch"
	MethodPending     = "actions/pending"
	MethodRegistry    = "actions/registry"
	MethodPermissions = "actions/permissions"
)

// JSON-RPC error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Message wraps one decoded JSON-RPC message together with its raw
// bytes, so the request ID can be echoed back in its original format.
type Message struct {
	// Raw is the original wire bytes.
	Raw []byte
	// Decoded is either a *jsonrpc.Request or a *jsonrpc.Response.
	Decoded jsonrpc.Message
	// Timestamp records when the message was received.
	Timestamp time.Time

	parsedParams map[string]any
}

// Decode parses raw JSON-RPC bytes.
func Decode(raw []byte) (*Message, error) {
	decoded, err := jsonrpc.DecodeMessage(raw)
	if err != nil {
		return nil, err
	}
	return &Message{
		Raw:       raw,
		Decoded:   decoded,
		Timestamp: time.Now(),
	}, nil
}

// Request returns the underlying request, nil for responses.
func (m *Message) Request() *jsonrpc.Request {
	req, _ := m.Decoded.(*jsonrpc.Request)
	return req
}

// Method returns the request method, empty for responses.
func (m *Message) Method() string {
	if req := m.Request(); req != nil {
		return req.Method
	}
	return ""
}

// ParseParams parses the request params into a map. Safe to call
// repeatedly; returns nil when there are no params or parsing fails.
func (m *Message) ParseParams() map[string]any {
	if m.parsedParams != nil {
		return m.parsedParams
	}
	req := m.Request()
	if req == nil || req.Params == nil {
		return nil
	}
	var params map[string]any
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return nil
	}
	m.parsedParams = params
	return params
}

// RawID extracts the request ID from the raw bytes, preserving its
// original format (number, string or null). The SDK's jsonrpc.ID type
// does not marshal correctly through interface values, so responses
// echo the raw ID instead.
func (m *Message) RawID() json.RawMessage {
	if m.Raw == nil {
		return nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(m.Raw, &raw); err != nil {
		return nil
	}
	return raw["id"]
}

// rpcError is the JSON-RPC error object.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// rawResponse is a JSON-RPC response with a pass-through ID.
type rawResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// NewResultResponse encodes a successful response echoing id.
func NewResultResponse(id json.RawMessage, result any) ([]byte, error) {
	return json.Marshal(rawResponse{
		JSONRPC: "2.0",
		ID:      normalizeID(id),
		Result:  result,
	})
}

// NewErrorResponse encodes an error response echoing id.
func NewErrorResponse(id json.RawMessage, code int, message string) ([]byte, error) {
	return json.Marshal(rawResponse{
		JSONRPC: "2.0",
		ID:      normalizeID(id),
		Error:   &rpcError{Code: code, Message: message},
	})
}

// normalizeID substitutes JSON null for a missing ID so the response is
// still a valid JSON-RPC object.
func normalizeID(id json.RawMessage) json.RawMessage {
	if len(id) == 0 {
		return json.RawMessage("null")
	}
	return id
}
