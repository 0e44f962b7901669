// Package auth signs and verifies session tokens and checks passwords.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/MrSnakeDoc/tidy/internal/logger"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken       = errors.New("invalid or expired session")
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// Claims is the payload of a session token.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// KeyStore holds the HS256 secrets by key id. Only the current key signs;
// retired keys still verify so rotation does not log everyone out.
type KeyStore struct {
	current string
	secrets map[string][]byte
}

// NewKeyStore creates a key store with a current key and optional retired keys.
func NewKeyStore(currentID, currentSecret string, retired map[string]string) (*KeyStore, error) {
	if currentID == "" || currentSecret == "" {
		return nil, errors.New("current signing key id and secret are required")
	}
	ks := &KeyStore{current: currentID, secrets: make(map[string][]byte, len(retired)+1)}
	for kid, secret := range retired {
		ks.secrets[kid] = []byte(secret)
	}
	ks.secrets[currentID] = []byte(currentSecret)
	return ks, nil
}

func (ks *KeyStore) lookup(t *jwt.Token) (any, error) {
	kid, _ := t.Header["kid"].(string)
	secret, ok := ks.secrets[kid]
	if !ok {
		return nil, fmt.Errorf("unknown key id %q", kid)
	}
	return secret, nil
}

// Revoker remembers logged-out session ids. Implemented by the Redis store.
type Revoker interface {
	RevokeSession(ctx context.Context, jti string, ttl time.Duration) error
	IsSessionRevoked(ctx context.Context, jti string) (bool, error)
}

// Manager issues and verifies session tokens.
type Manager struct {
	keys    *KeyStore
	ttl     time.Duration
	revoker Revoker // optional
	logger  logger.Logger
	now     func() time.Time
}

// NewManager creates a token manager. revoker may be nil.
func NewManager(keys *KeyStore, ttl time.Duration, revoker Revoker, log logger.Logger) *Manager {
	return &Manager{
		keys:    keys,
		ttl:     ttl,
		revoker: revoker,
		logger:  log.With(logger.Component("auth")),
		now:     time.Now,
	}
}

// TTL is the lifetime of issued tokens.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Issue signs a new session token for a user.
func (m *Manager) Issue(userID int64, username string) (string, *Claims, error) {
	now := m.now()
	claims := &Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["kid"] = m.keys.current
	signed, err := token.SignedString(m.keys.secrets[m.keys.current])
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, claims, nil
}

// Verify parses a token, checks its signature, expiry and revocation.
func (m *Manager) Verify(ctx context.Context, raw string) (*Claims, error) {
	if raw == "" {
		return nil, ErrInvalidToken
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, m.keys.lookup,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if m.revoker != nil && claims.ID != "" {
		revoked, err := m.revoker.IsSessionRevoked(ctx, claims.ID)
		switch {
		case err != nil:
			// Redis is optional; a signed, unexpired token stays valid when it is down
			m.logger.Warn("session revocation check failed", logger.Error(err))
		case revoked:
			return nil, fmt.Errorf("%w: session revoked", ErrInvalidToken)
		}
	}
	return claims, nil
}

// Revoke invalidates a session until its natural expiry. It is a no-op
// without a revoker.
func (m *Manager) Revoke(ctx context.Context, claims *Claims) error {
	if m.revoker == nil || claims == nil || claims.ID == "" {
		return nil
	}
	ttl := m.ttl
	if claims.ExpiresAt != nil {
		ttl = claims.ExpiresAt.Sub(m.now())
	}
	return m.revoker.RevokeSession(ctx, claims.ID, ttl)
}
