// Package audit contains domain types for the dispatch audit trail.
package audit

import (
	"context"
	"strings"
	"time"
)

// Decision constants for audit records.
const (
	// DecisionAllow indicates the guard permitted the dispatch.
	DecisionAllow = "allow"
	// DecisionDeny indicates the guard denied the dispatch.
	DecisionDeny = "deny"
	// DecisionError indicates the dispatch failed after being allowed
	// (missing handler, handler failure, confirmation refused).
	DecisionError = "error"
)

// Record represents one auditable dispatch attempt, terminal Result
// included.
type Record struct {
	// Timestamp is when the dispatch was received (UTC).
	Timestamp time.Time `json:"timestamp"`
	// RequestID correlates the record with the originating API request.
	RequestID string `json:"request_id"`
	// IdentityID of the caller.
	IdentityID string `json:"identity_id"`
	// IdentityName is the caller's display name.
	IdentityName string `json:"identity_name,omitempty"`
	// Action is the dispatched action type.
	Action string `json:"action"`
	// Topic is the current topic context of the dispatch.
	Topic string `json:"topic,omitempty"`
	// Params are the envelope parameters, redacted.
	Params map[string]any `json:"params,omitempty"`
	// Decision is "allow", "deny", or "error".
	Decision string `json:"decision"`
	// Reason explains a denial or failure.
	Reason string `json:"reason,omitempty"`
	// Success reports whether the handler completed its side effect.
	Success bool `json:"success"`
	// LatencyMicros is the end-to-end dispatch latency in microseconds.
	LatencyMicros int64 `json:"latency_micros"`
}

// Store persists audit records.
type Store interface {
	// Append stores records. Implementations must be safe for
	// concurrent use by the audit worker and queries.
	Append(ctx context.Context, records ...Record) error
	// Close releases resources.
	Close() error
}

// Reader provides read access to recent records for the API.
type Reader interface {
	// GetRecent returns the N most recent records, newest first.
	GetRecent(n int) []Record
}

// sensitiveKeywords lists substrings that indicate a sensitive
// parameter key. Comparison is case-insensitive.
var sensitiveKeywords = []string{
	"password", "secret", "token", "api_key", "apikey",
	"credential", "auth", "private_key", "privatekey",
}

// RedactSensitiveParams returns a copy of params with sensitive values
// masked. A key is sensitive if it contains any of the sensitiveKeywords
// (case-insensitive). Values are replaced with "***REDACTED***".
func RedactSensitiveParams(params map[string]any) map[string]any {
	if len(params) == 0 {
		return params
	}
	redacted := make(map[string]any, len(params))
	for k, v := range params {
		if isSensitiveKey(k) {
			redacted[k] = "***REDACTED***"
		} else {
			redacted[k] = v
		}
	}
	return redacted
}

// isSensitiveKey checks if a key name indicates sensitive data.
func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, kw := range sensitiveKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
