package auth

import (
	"context"
	"errors"

	"github.com/timiFoxtrot/main-product-store/internal/domain"
	apperrors "github.com/timiFoxtrot/main-product-store/pkg/errors"
	"github.com/timiFoxtrot/main-product-store/pkg/middleware"
)

// UserGetter loads the account a token was issued to.
type UserGetter interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
}

// Authenticator verifies bearer tokens and re-loads the user on every
// request, so deleted accounts and role changes take effect immediately.
type Authenticator struct {
	jwt   *JWTManager
	users UserGetter
}

// NewAuthenticator creates an Authenticator.
func NewAuthenticator(jwt *JWTManager, users UserGetter) *Authenticator {
	return &Authenticator{jwt: jwt, users: users}
}

var _ middleware.Authenticator = (*Authenticator)(nil)

// Authenticate implements middleware.Authenticator.
func (a *Authenticator) Authenticate(ctx context.Context, token string) (*middleware.Identity, error) {
	claims, err := a.jwt.Validate(token)
	if err != nil {
		return nil, apperrors.Unauthorized("invalid or expired token")
	}

	user, err := a.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Unauthorized("user no longer exists")
		}
		return nil, apperrors.Internal(err)
	}

	return &middleware.Identity{
		ID:    user.ID,
		Name:  user.Name,
		Email: user.Email,
		Roles: user.Roles,
	}, nil
}

// CallerFrom converts the request identity into the domain caller.
func CallerFrom(ctx context.Context) (domain.Caller, bool) {
	id, ok := middleware.IdentityFromContext(ctx)
	if !ok || id == nil {
		return domain.Caller{}, false
	}
	return domain.Caller{ID: id.ID, Name: id.Name, Email: id.Email, Roles: id.Roles}, true
}
