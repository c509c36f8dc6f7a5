package port

import "context"

// IdentityUpdate lists the identity attributes that may change. Nil fields are left untouched.
type IdentityUpdate struct {
	Email    *string
	Password *string
}

// IdentityProvider exposes the hosted authentication service that owns credentials
// and issues account identifiers.
type IdentityProvider interface {
	CreateIdentity(ctx context.Context, email, password, displayName string) (string, error)
	UpdateIdentity(ctx context.Context, id string, update IdentityUpdate) error
	DeleteIdentity(ctx context.Context, id string) error
}
