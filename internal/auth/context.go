package auth

import (
	"context"

	"fpolysms.io/internal/token"
)

type identityContextKey struct{}

// Identity is the authenticated caller attached to a request context by
// the HTTP layer after access-token verification.
type Identity struct {
	UserID      string
	Email       string
	StudentCode string
	FullName    string
}

// IdentityFromClaims projects verified token claims into an Identity.
func IdentityFromClaims(claims *token.Claims) Identity {
	return Identity{
		UserID:      claims.Subject,
		Email:       claims.Email,
		StudentCode: claims.StudentCode,
		FullName:    claims.FullName,
	}
}

// ContextWithIdentity attaches the authenticated identity to the context.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, &id)
}

// IdentityFromContext extracts the authenticated identity, if any.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	v, ok := ctx.Value(identityContextKey{}).(*Identity)
	if !ok || v == nil || v.UserID == "" {
		return Identity{}, false
	}
	return *v, true
}
