package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"toutjavascript/infollama/pkg/telemetry/logging"
)

// IdentityMiddleware resolves the caller's bearer token and stores the
// identity in the request context. It never rejects a request; access
// decisions are made per endpoint by a Policy.
type IdentityMiddleware struct {
	store *UserStore
}

// NewIdentityMiddleware creates the middleware for store.
func NewIdentityMiddleware(store *UserStore) *IdentityMiddleware {
	return &IdentityMiddleware{store: store}
}

// Handle wraps an HTTP handler with identity resolution.
func (m *IdentityMiddleware) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := m.store.Resolve(BearerToken(r))

		ctx := WithIdentity(r.Context(), id)
		ctx = logging.WithIdentity(ctx, id.Name)

		logging.FromContext(ctx, slog.Default()).Debug("identity resolved",
			"class", id.Class.String(),
			"path", r.URL.Path,
		)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// BearerToken extracts the token of an "Authorization: Bearer <token>"
// header. The scheme is matched case-insensitively. Anything else yields "".
func BearerToken(r *http.Request) string {
	value := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(value, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

type contextKey string

const identityKey contextKey = "identity"

// IdentityFromContext returns the identity stored by IdentityMiddleware.
// Requests that did not pass through the middleware are Anonymous.
func IdentityFromContext(ctx context.Context) Identity {
	if id, ok := ctx.Value(identityKey).(Identity); ok {
		return id
	}
	return Anonymous
}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}
