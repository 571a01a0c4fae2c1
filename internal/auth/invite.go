// Package auth issues and verifies group invitation tokens.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid invitation")
	ErrExpiredToken = errors.New("invitation has expired")
	ErrMissingToken = errors.New("invitation token required")
)

const issuer = "cameratogether"

// InviteManager signs invitation tokens that carry the group they open.
// A verified token is still looked up in storage; the signature only lets
// the server reject forged or truncated tokens without a query.
type InviteManager struct {
	secretKey []byte
	ttl       time.Duration
	now       func() time.Time
}

// InviteClaims are the JWT claims of an invitation.
type InviteClaims struct {
	GroupID string `json:"group_id"`
	jwt.RegisteredClaims
}

// NewInviteManager creates an invite manager. A zero ttl issues tokens
// that only expire together with their group.
func NewInviteManager(secretKey string, ttl time.Duration) *InviteManager {
	return &InviteManager{
		secretKey: []byte(secretKey),
		ttl:       ttl,
		now:       time.Now,
	}
}

// SetClock replaces time.Now for issuing and verifying tokens.
func (m *InviteManager) SetClock(now func() time.Time) {
	m.now = now
}

// Issue creates an invitation token for groupID. When expiresAt is set the
// token expires no later than the group.
func (m *InviteManager) Issue(groupID string, expiresAt *time.Time) (string, error) {
	now := m.now()
	claims := &InviteClaims{
		GroupID: groupID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	var exp *time.Time
	if m.ttl > 0 {
		t := now.Add(m.ttl)
		exp = &t
	}
	if expiresAt != nil && (exp == nil || expiresAt.Before(*exp)) {
		exp = expiresAt
	}
	if exp != nil {
		claims.ExpiresAt = jwt.NewNumericDate(*exp)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(m.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign invitation: %w", err)
	}

	return tokenString, nil
}

// Verify checks the token signature and expiry and returns the group id it
// was issued for.
func (m *InviteManager) Verify(tokenString string) (string, error) {
	if tokenString == "" {
		return "", ErrMissingToken
	}

	token, err := jwt.ParseWithClaims(
		tokenString,
		&InviteClaims{},
		func(token *jwt.Token) (any, error) {
			// Verify the signing method
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return m.secretKey, nil
		},
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(m.now),
	)
	if errors.Is(err, jwt.ErrTokenExpired) {
		return "", ErrExpiredToken
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*InviteClaims)
	if !ok || !token.Valid || claims.GroupID == "" {
		return "", ErrInvalidToken
	}

	return claims.GroupID, nil
}
