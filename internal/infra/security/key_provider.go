package security

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	ephemeralKeyBits   = 2048
	ephemeralKeyPrefix = "ephemeral-"
)

var (
	ErrKeyNotFound    = errors.New("key not found")
	ErrNoSigningKey   = errors.New("no private key found for signing")
	ErrKeyDirRequired = errors.New("jwt key directory is required in production")
)

// KeyProvider supplies the RSA key pair used to sign and verify access tokens.
type KeyProvider interface {
	GetSigningKey() (*rsa.PrivateKey, error)
	GetSigningKeyID() string
	GetVerificationKey(kid string) (*rsa.PublicKey, error)
}

// StaticKeyProvider serves an in-memory signing key and a fixed set of verification keys.
type StaticKeyProvider struct {
	kid        string
	signingKey *rsa.PrivateKey
	keys       map[string]*rsa.PublicKey
}

// NewStaticKeyProvider registers key under kid for both signing and verification.
func NewStaticKeyProvider(kid string, key *rsa.PrivateKey) (*StaticKeyProvider, error) {
	kid = strings.TrimSpace(kid)
	if kid == "" {
		return nil, ErrKeyIDMissing
	}
	if key == nil {
		return nil, ErrNoSigningKey
	}
	return &StaticKeyProvider{
		kid:        kid,
		signingKey: key,
		keys:       map[string]*rsa.PublicKey{kid: &key.PublicKey},
	}, nil
}

// NewEphemeralKeyProvider generates a throwaway key pair. Tokens signed with it do not
// survive a restart.
func NewEphemeralKeyProvider() (*StaticKeyProvider, error) {
	key, err := rsa.GenerateKey(rand.Reader, ephemeralKeyBits)
	if err != nil {
		return nil, fmt.Errorf("generate rsa key: %w", err)
	}
	kid := ephemeralKeyPrefix + fingerprint(&key.PublicKey)
	return NewStaticKeyProvider(kid, key)
}

// NewDirKeyProvider loads PEM encoded keys from keyDir. The file name without extension
// becomes the kid. The first private key in lexical order signs new tokens; every key
// found can verify.
func NewDirKeyProvider(keyDir string) (*StaticKeyProvider, error) {
	files, err := os.ReadDir(keyDir)
	if err != nil {
		return nil, fmt.Errorf("read key directory: %w", err)
	}

	names := make([]string, 0, len(files))
	for _, file := range files {
		if !file.IsDir() {
			names = append(names, file.Name())
		}
	}
	sort.Strings(names)

	provider := &StaticKeyProvider{keys: make(map[string]*rsa.PublicKey)}
	for _, name := range names {
		path := filepath.Join(keyDir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read key file %s: %w", path, err)
		}

		kid := strings.TrimSuffix(name, filepath.Ext(name))
		private, public, err := parsePEMKey(data)
		if err != nil {
			return nil, fmt.Errorf("parse key file %s: %w", path, err)
		}

		if private != nil && provider.signingKey == nil {
			provider.signingKey = private
			provider.kid = kid
		}
		provider.keys[kid] = public
	}

	if provider.signingKey == nil {
		return nil, ErrNoSigningKey
	}
	return provider, nil
}

// NewKeyProvider loads keys from keyDir when set. Outside production an empty keyDir
// falls back to an ephemeral key.
func NewKeyProvider(env, keyDir string) (KeyProvider, error) {
	if strings.TrimSpace(keyDir) != "" {
		return NewDirKeyProvider(keyDir)
	}
	if env == "production" {
		return nil, ErrKeyDirRequired
	}
	return NewEphemeralKeyProvider()
}

func (p *StaticKeyProvider) GetSigningKey() (*rsa.PrivateKey, error) {
	if p.signingKey == nil {
		return nil, ErrNoSigningKey
	}
	return p.signingKey, nil
}

func (p *StaticKeyProvider) GetSigningKeyID() string {
	return p.kid
}

func (p *StaticKeyProvider) GetVerificationKey(kid string) (*rsa.PublicKey, error) {
	key, ok := p.keys[kid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, kid)
	}
	return key, nil
}

func parsePEMKey(data []byte) (*rsa.PrivateKey, *rsa.PublicKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, nil, errors.New("no PEM block")
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, &key.PublicKey, nil
	}
	if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		if rsaKey, ok := key.(*rsa.PrivateKey); ok {
			return rsaKey, &rsaKey.PublicKey, nil
		}
		return nil, nil, errors.New("PKCS#8 key is not RSA")
	}
	if key, err := x509.ParsePKCS1PublicKey(block.Bytes); err == nil {
		return nil, key, nil
	}
	if key, err := x509.ParsePKIXPublicKey(block.Bytes); err == nil {
		if rsaKey, ok := key.(*rsa.PublicKey); ok {
			return nil, rsaKey, nil
		}
		return nil, nil, errors.New("PKIX key is not RSA")
	}
	return nil, nil, errors.New("unsupported key encoding")
}

func fingerprint(key *rsa.PublicKey) string {
	n := key.N.Text(16)
	if len(n) > 12 {
		n = n[len(n)-12:]
	}
	return n
}
