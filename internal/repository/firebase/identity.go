package firebase

import (
	"context"
	"errors"
	"fmt"

	"firebase.google.com/go/v4/auth"

	"github.com/arklim/ecotrack-accounts/internal/core/port"
	"github.com/arklim/ecotrack-accounts/internal/repository"
)

type authClient interface {
	CreateUser(ctx context.Context, user *auth.UserToCreate) (*auth.UserRecord, error)
	UpdateUser(ctx context.Context, uid string, user *auth.UserToUpdate) (*auth.UserRecord, error)
	DeleteUser(ctx context.Context, uid string) error
}

// IdentityProvider implements port.IdentityProvider on Firebase Authentication.
type IdentityProvider struct {
	client authClient
}

// NewIdentityProvider wraps a Firebase Auth client.
func NewIdentityProvider(client authClient) *IdentityProvider {
	return &IdentityProvider{client: client}
}

// CreateIdentity registers an email/password user and returns the Firebase uid.
func (p *IdentityProvider) CreateIdentity(ctx context.Context, email, password, displayName string) (string, error) {
	params := (&auth.UserToCreate{}).
		Email(email).
		EmailVerified(false).
		Password(password).
		DisplayName(displayName).
		Disabled(false)

	record, err := p.client.CreateUser(ctx, params)
	if err != nil {
		return "", fmt.Errorf("create firebase user: %w", classify(err))
	}
	if record == nil || record.UserInfo == nil || record.UID == "" {
		return "", errors.New("create firebase user: empty uid")
	}
	return record.UID, nil
}

// UpdateIdentity applies the non-nil fields of update.
func (p *IdentityProvider) UpdateIdentity(ctx context.Context, id string, update port.IdentityUpdate) error {
	if update.Email == nil && update.Password == nil {
		return nil
	}

	params := &auth.UserToUpdate{}
	if update.Email != nil {
		params = params.Email(*update.Email)
	}
	if update.Password != nil {
		params = params.Password(*update.Password)
	}

	if _, err := p.client.UpdateUser(ctx, id, params); err != nil {
		return fmt.Errorf("update firebase user: %w", classify(err))
	}
	return nil
}

// DeleteIdentity removes the Firebase user.
func (p *IdentityProvider) DeleteIdentity(ctx context.Context, id string) error {
	if err := p.client.DeleteUser(ctx, id); err != nil {
		return fmt.Errorf("delete firebase user: %w", classify(err))
	}
	return nil
}

func classify(err error) error {
	switch {
	case auth.IsEmailAlreadyExists(err):
		return errors.Join(repository.ErrAlreadyExists, err)
	case auth.IsUserNotFound(err):
		return errors.Join(repository.ErrNotFound, err)
	default:
		return err
	}
}

var _ port.IdentityProvider = (*IdentityProvider)(nil)
