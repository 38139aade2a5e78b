package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
)

type contextKey string

const subjectKey contextKey = "auth_subject"

// Subject retrieves the authenticated username from a request context.
func Subject(ctx context.Context) (string, bool) {
	subject, ok := ctx.Value(subjectKey).(string)
	return subject, ok
}

// WithSubject returns a context carrying the authenticated username.
// Exposed for handler tests.
func WithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, subjectKey, subject)
}

// Middleware enforces bearer token authentication.
type Middleware struct {
	tokens *TokenService
	logger *slog.Logger
}

// NewMiddleware creates authentication middleware backed by the given
// token service.
func NewMiddleware(tokens *TokenService) *Middleware {
	return &Middleware{
		tokens: tokens,
		logger: slog.Default().With("component", "auth"),
	}
}

// Handle wraps a handler, rejecting requests without a valid bearer token
// before any dispatch work happens. The validated subject is attached to
// the request context.
func (m *Middleware) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := extractBearer(r)
		if err != nil {
			m.logger.Warn("request without credentials",
				"remote_addr", r.RemoteAddr,
				"path", r.URL.Path,
			)
			unauthorized(w, "Not authenticated")
			return
		}

		subject, err := m.tokens.Validate(token)
		if err != nil {
			m.logger.Warn("token rejected",
				"error", err,
				"remote_addr", r.RemoteAddr,
				"path", r.URL.Path,
			)
			unauthorized(w, "Could not validate credentials")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithSubject(r.Context(), subject)))
	})
}

// extractBearer pulls the token out of the Authorization header.
func extractBearer(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrMissingCredential
	}

	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", ErrMissingCredential
	}
	return token, nil
}

// unauthorized writes the 401 response. The WWW-Authenticate challenge
// tells clients which scheme the gateway expects.
func unauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}
