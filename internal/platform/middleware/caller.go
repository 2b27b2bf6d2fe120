package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
)

// CallerClaims is the authenticated caller identity extracted from a bearer
// token. The wallet/session machinery that issued the token lives outside
// this service; we only consume its result.
type CallerClaims struct {
	Address string
	Role    string
}

// TokenValidator validates a bearer token and returns the caller identity.
type TokenValidator interface {
	Validate(token string) (*CallerClaims, error)
}

type callerKey struct{}

// GetCaller retrieves the authenticated caller from the context.
func GetCaller(ctx context.Context) (CallerClaims, bool) {
	c, ok := ctx.Value(callerKey{}).(CallerClaims)
	return c, ok
}

// WithCaller returns a context carrying the given caller. Exposed for tests
// that exercise handlers without the middleware stack.
func WithCaller(ctx context.Context, c CallerClaims) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

// CallerAuth authenticates requests via the Authorization header and stores
// the caller identity in the request context. Requests without a valid token
// are rejected before any handler runs.
func CallerAuth(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				unauthorized(w, "missing bearer token")
				return
			}

			claims, err := validator.Validate(strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				logger.Warn("caller token rejected",
					"error", err,
					"request_id", GetRequestID(r.Context()),
				)
				unauthorized(w, "invalid caller token")
				return
			}

			ctx := WithCaller(r.Context(), *claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"kind":"permission_denied","message":"` + msg + `"}`))
}
