// Package token issues and verifies HS256 access tokens.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/tamir303/Afekaton2024/internal/errs"
	"github.com/tamir303/Afekaton2024/internal/model"
)

// Leeway tolerates clock skew between issuer and verifier.
const Leeway = 30 * time.Second

// Claims are the registered claims plus the caller's role.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Manager signs and checks tokens with one shared key.
type Manager struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// NewManager constructs a Manager for key and access-token ttl.
func NewManager(key []byte, ttl time.Duration) *Manager {
	return &Manager{key: key, ttl: ttl, now: time.Now}
}

// Issue creates a signed token whose subject is the user id.
func (m *Manager) Issue(actor model.Actor) (string, time.Time, error) {
	now := m.now()
	exp := now.Add(m.ttl)
	claims := Claims{
		Role: actor.Role.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.key)
	return signed, exp, err
}

// Verify parses tok and returns the actor it names. Every failure wraps errs.ErrUnauthorized.
func (m *Manager) Verify(tok string) (model.Actor, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(tok, &claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return m.key, nil
	},
		jwt.WithLeeway(Leeway),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || !parsed.Valid {
		return model.Actor{}, fmt.Errorf("invalid token: %w", errs.ErrUnauthorized)
	}

	id, err := uuid.FromString(claims.Subject)
	if err != nil {
		return model.Actor{}, fmt.Errorf("bad subject: %w", errs.ErrUnauthorized)
	}
	role, err := model.ParseRole(claims.Role)
	if err != nil {
		return model.Actor{}, fmt.Errorf("bad role claim: %w", errs.ErrUnauthorized)
	}
	return model.Actor{ID: id, Role: role}, nil
}
