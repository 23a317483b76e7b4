// Package api is the inbound HTTP adapter: the REST surface the UI and
// operators use, plus the agent JSON-RPC endpoint.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// maxRequestBody bounds request bodies to 1 MiB.
const maxRequestBody = 1 << 20

// errorResponse is the JSON shape of every error reply.
type errorResponse struct {
	Error string `json:"error"`
}

// respondJSON writes a JSON response with the given status.
func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

// respondError writes a JSON error response.
func respondError(w http.ResponseWriter, status int, format string, args ...any) {
	respondJSON(w, status, errorResponse{Error: fmt.Sprintf(format, args...)})
}

// readJSON decodes a request body into v, rejecting unknown fields and
// oversized bodies.
func readJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
