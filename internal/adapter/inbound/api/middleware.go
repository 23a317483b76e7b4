package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/pressroom-io/pressroom/internal/ctxkey"
	"github.com/pressroom-io/pressroom/internal/domain/identity"
)

// statusRecorder captures the response status for logging and metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Flush forwards to the underlying writer so SSE works through the
// middleware chain.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// withRequestID assigns a request ID and stores it in the context.
func (h *Handler) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)
		ctx := context.WithValue(r.Context(), ctxkey.RequestIDKey{}, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// withLogging logs one line per request and records request metrics.
func (h *Handler) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		requestID, _ := r.Context().Value(ctxkey.RequestIDKey{}).(string)
		h.logger.Info("http request",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", duration.Milliseconds(),
		)
		if h.metrics != nil {
			h.metrics.RequestsTotal.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(rec.status)).Inc()
			h.metrics.RequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration.Seconds())
		}
	})
}

// withRecovery converts handler panics into 500 responses.
func (h *Handler) withRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				h.logger.Error("handler panic",
					"panic", rec,
					"method", r.Method,
					"path", r.URL.Path,
				)
				respondError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// withAuth resolves the caller from an X-API-Key header or a bearer
// token and stores the identity in the context. In dev mode an
// unauthenticated request falls back to the seeded dev identity.
func (h *Handler) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, err := h.authenticate(r)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "authentication failed: %v", err)
			return
		}
		ctx := context.WithValue(r.Context(), ctxkey.CallerKey{}, caller)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) authenticate(r *http.Request) (*identity.Identity, error) {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return h.apiKeys.Validate(r.Context(), key)
	}

	if auth := r.Header.Get("Authorization"); len(auth) > len("Bearer ") && auth[:len("Bearer ")] == "Bearer " {
		return h.authenticateJWT(r.Context(), auth[len("Bearer "):])
	}

	if h.devIdentity != nil {
		return h.devIdentity, nil
	}
	return nil, fmt.Errorf("missing credentials")
}

// jwtClaims is the shape of pressroom bearer tokens: standard claims
// plus the scope list.
type jwtClaims struct {
	Name   string   `json:"name,omitempty"`
	Scopes []string `json:"scopes"`
	jwt.RegisteredClaims
}

// authenticateJWT verifies an HS256 token and builds the identity from
// its claims. When the subject matches a configured identity the stored
// scopes win over the token's.
func (h *Handler) authenticateJWT(ctx context.Context, token string) (*identity.Identity, error) {
	if h.jwtSecret == "" {
		return nil, fmt.Errorf("bearer tokens not configured")
	}

	var claims jwtClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(h.jwtSecret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if !parsed.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	if h.identities != nil && claims.Subject != "" {
		if ident, err := h.identities.GetIdentity(ctx, claims.Subject); err == nil {
			if !ident.Active {
				return nil, fmt.Errorf("identity %s is inactive", ident.ID)
			}
			return ident, nil
		}
	}

	scopes, errs := identity.ParseScopeSet(claims.Scopes)
	if len(errs) > 0 {
		return nil, fmt.Errorf("token carries malformed scopes: %v", errs[0])
	}
	name := claims.Name
	if name == "" {
		name = claims.Subject
	}
	return &identity.Identity{
		ID:     claims.Subject,
		Name:   name,
		Scopes: scopes,
		Active: true,
	}, nil
}

// callerFromContext reads the authenticated identity.
func callerFromContext(ctx context.Context) (*identity.Identity, bool) {
	caller, ok := ctx.Value(ctxkey.CallerKey{}).(*identity.Identity)
	return caller, ok
}
