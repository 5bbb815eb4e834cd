package middleware

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"

	apperrors "github.com/timiFoxtrot/main-product-store/pkg/errors"
	"github.com/timiFoxtrot/main-product-store/pkg/httputil"
	"github.com/timiFoxtrot/main-product-store/pkg/logger"
)

type contextKey string

const identityKey contextKey = "identity"

// Identity is the authenticated principal attached to a request.
type Identity struct {
	ID    string
	Name  string
	Email string
	Roles []string
}

// HasRole reports whether the identity holds role.
func (i *Identity) HasRole(role string) bool {
	return i != nil && slices.Contains(i.Roles, role)
}

// Authenticator resolves a bearer token to an identity. Implementations
// return an error for expired, malformed or revoked tokens.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*Identity, error)
}

// AuthenticatorFunc adapts a function to Authenticator.
type AuthenticatorFunc func(ctx context.Context, token string) (*Identity, error)

func (f AuthenticatorFunc) Authenticate(ctx context.Context, token string) (*Identity, error) {
	return f(ctx, token)
}

// Authenticate rejects requests without a valid bearer token and stores the
// resolved identity in the request context.
func Authenticate(a Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				httputil.WriteError(w, r, apperrors.Unauthorized("missing authorization header"), nil)
				return
			}

			scheme, token, ok := strings.Cut(header, " ")
			if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
				httputil.WriteError(w, r, apperrors.Unauthorized("invalid authorization header format"), nil)
				return
			}

			id, err := a.Authenticate(r.Context(), strings.TrimSpace(token))
			if err != nil {
				if errors.Is(err, apperrors.ErrInternal) || errors.Is(err, apperrors.ErrServiceUnavail) {
					httputil.WriteError(w, r, err, nil)
					return
				}
				httputil.WriteError(w, r, apperrors.Unauthorized("invalid or expired token"), nil)
				return
			}

			ctx := WithIdentity(r.Context(), id)
			ctx = logger.WithCallerID(ctx, id.ID)
			ctx = logger.NewContext(ctx, logger.FromContext(ctx).With("caller_id", id.ID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole allows the request through only when the identity holds at
// least one of roles. It must be mounted after Authenticate.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFromContext(r.Context())
			if !ok {
				httputil.WriteError(w, r, apperrors.Unauthorized("authentication required"), nil)
				return
			}
			for _, role := range roles {
				if id.HasRole(role) {
					next.ServeHTTP(w, r)
					return
				}
			}
			httputil.WriteError(w, r, apperrors.Forbidden("insufficient permissions"), nil)
		})
	}
}

// WithIdentity stores id in ctx.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns the identity set by Authenticate.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey).(*Identity)
	return id, ok && id != nil
}
