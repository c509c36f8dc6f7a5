package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	uuid "github.com/google/uuid"
)

var (
	// ErrKeyIDMissing indicates no kid is associated with the signing key or token.
	ErrKeyIDMissing = errors.New("jwt: missing key identifier")
	// ErrInvalidToken covers malformed, tampered or wrongly scoped tokens.
	ErrInvalidToken = errors.New("jwt: invalid token")
	// ErrExpiredToken is returned for well formed tokens past their exp claim.
	ErrExpiredToken = errors.New("jwt: token expired")
)

const defaultAccessTokenTTL = time.Hour

// AccessTokenClaims binds a token to an account.
type AccessTokenClaims struct {
	UserID   string `json:"uid"`
	Username string `json:"username,omitempty"`
	Role     string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// TokenSubject is the account data encoded into an access token.
type TokenSubject struct {
	UserID   string
	Username string
	Role     string
}

// TokenIssuer signs and parses RS256 access tokens.
type TokenIssuer struct {
	keys     KeyProvider
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
}

// TokenIssuerOption customises a TokenIssuer.
type TokenIssuerOption func(*TokenIssuer)

// WithTokenClock overrides the clock used for iat/nbf/exp and validation.
func WithTokenClock(now func() time.Time) TokenIssuerOption {
	return func(t *TokenIssuer) {
		if now != nil {
			t.now = now
		}
	}
}

// NewTokenIssuer builds an issuer. issuer doubles as the audience.
func NewTokenIssuer(keys KeyProvider, issuer string, ttl time.Duration, opts ...TokenIssuerOption) (*TokenIssuer, error) {
	if keys == nil {
		return nil, fmt.Errorf("jwt: key provider not configured")
	}
	issuer = strings.TrimSpace(issuer)
	if issuer == "" {
		return nil, fmt.Errorf("jwt: issuer is required")
	}
	if ttl <= 0 {
		ttl = defaultAccessTokenTTL
	}

	t := &TokenIssuer{
		keys:     keys,
		issuer:   issuer,
		audience: issuer,
		ttl:      ttl,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// TTL reports the lifetime of issued tokens.
func (t *TokenIssuer) TTL() time.Duration {
	return t.ttl
}

// Issue signs a token for subject.
func (t *TokenIssuer) Issue(subject TokenSubject) (string, error) {
	userID := strings.TrimSpace(subject.UserID)
	if userID == "" {
		return "", fmt.Errorf("jwt: user id is required")
	}

	kid := t.keys.GetSigningKeyID()
	if kid == "" {
		return "", ErrKeyIDMissing
	}
	signingKey, err := t.keys.GetSigningKey()
	if err != nil {
		return "", fmt.Errorf("jwt: get signing key: %w", err)
	}

	now := t.now().UTC()
	claims := &AccessTokenClaims{
		UserID:   userID,
		Username: subject.Username,
		Role:     subject.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    t.issuer,
			Audience:  jwt.ClaimStrings{t.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid

	signed, err := token.SignedString(signingKey)
	if err != nil {
		return "", fmt.Errorf("jwt: sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies signature, issuer, audience and lifetime and returns the claims.
func (t *TokenIssuer) Parse(raw string) (*AccessTokenClaims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrInvalidToken
	}

	claims := &AccessTokenClaims{}
	parsed, err := jwt.ParseWithClaims(raw, claims, t.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithAudience(t.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.UserID == "" || claims.UserID != claims.Subject {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (t *TokenIssuer) keyFunc(token *jwt.Token) (any, error) {
	kid, _ := token.Header["kid"].(string)
	if kid == "" {
		return nil, ErrKeyIDMissing
	}
	return t.keys.GetVerificationKey(kid)
}
