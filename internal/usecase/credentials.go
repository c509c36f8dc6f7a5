package usecase

import (
	"errors"
	"fmt"

	"github.com/arklim/ecotrack-accounts/internal/core/domain"
	"github.com/arklim/ecotrack-accounts/internal/core/port"
	"github.com/arklim/ecotrack-accounts/internal/infra/security"
)

// CredentialManager hashes passwords, enforces the password policy and issues
// the bearer tokens bound to an account.
type CredentialManager struct {
	hasher port.PasswordHasher
	tokens *security.TokenIssuer
	policy *security.PasswordPolicy
}

func NewCredentialManager(hasher port.PasswordHasher, tokens *security.TokenIssuer, policy *security.PasswordPolicy) *CredentialManager {
	if policy == nil {
		policy = security.NewPasswordPolicy(security.DefaultPasswordPolicyConfig())
	}
	return &CredentialManager{hasher: hasher, tokens: tokens, policy: policy}
}

func (m *CredentialManager) Hash(password string) (string, error) {
	hash, err := m.hasher.Hash(password)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return hash, nil
}

// Verify reports whether password matches the stored digest. Digest comparison is
// constant time.
func (m *CredentialManager) Verify(password, hash string) (bool, error) {
	ok, err := m.hasher.Verify(password, hash)
	if err != nil {
		return false, fmt.Errorf("verify password: %w", err)
	}
	return ok, nil
}

// IssueToken signs an access token whose subject is the account ID.
func (m *CredentialManager) IssueToken(account domain.Account) (string, error) {
	token, err := m.tokens.Issue(security.TokenSubject{
		UserID:   account.ID,
		Username: account.Username,
		Role:     account.Role,
	})
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	return token, nil
}

func (m *CredentialManager) ParseToken(raw string) (*security.AccessTokenClaims, error) {
	claims, err := m.tokens.Parse(raw)
	if err != nil {
		if errors.Is(err, security.ErrExpiredToken) {
			return nil, ErrExpiredAccessToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidAccessToken, err)
	}
	return claims, nil
}

// ValidatePassword applies the password policy. userInputs (username, email) make
// passwords derived from them score lower.
func (m *CredentialManager) ValidatePassword(password string, userInputs ...string) error {
	return policyError(m.policy.Validate(password, userInputs...))
}

// ValidatePasswordChange also rejects a new password equal to the current one.
func (m *CredentialManager) ValidatePasswordChange(current, password string, userInputs ...string) error {
	return policyError(m.policy.ValidateChange(current, password, userInputs...))
}

func policyError(err error) error {
	if err == nil {
		return nil
	}
	var pwErr *security.PasswordValidationError
	if errors.As(err, &pwErr) {
		return &ValidationError{Field: domain.FieldPassword, Message: pwErr.Message}
	}
	return &ValidationError{Field: domain.FieldPassword, Message: err.Error()}
}
