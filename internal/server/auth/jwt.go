// Package auth issues and verifies the signed, time-bound bearer tokens
// handed out by Login.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dmitrijs2005/accounts/internal/common"
)

// Claims carries the public identity of an account. The password digest is
// never part of it.
type Claims struct {
	jwt.RegisteredClaims
	AccountID string   `json:"id"`
	Email     string   `json:"email"`
	Username  string   `json:"username"`
	Roles     []string `json:"roles"`
}

// HasRole reports whether the claims include role.
func (c *Claims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Issuer signs and verifies HS256 tokens with a single secret.
type Issuer struct {
	secretKey []byte
	ttl       time.Duration
	now       func() time.Time
}

func NewIssuer(secretKey []byte, ttl time.Duration) *Issuer {
	return &Issuer{secretKey: secretKey, ttl: ttl, now: time.Now}
}

// TTL is the lifetime applied by Issue.
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// Issue signs claims with the default lifetime.
func (i *Issuer) Issue(claims Claims) (string, error) {
	return i.IssueWithTTL(claims, i.ttl)
}

// IssueWithTTL signs claims valid for ttl from now.
func (i *Issuer) IssueWithTTL(claims Claims, ttl time.Duration) (string, error) {
	now := i.now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   claims.AccountID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString(i.secretKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return s, nil
}

// Verify checks signature and expiry. An expired token yields
// common.ErrTokenExpired; anything else wrong yields common.ErrInvalidToken.
func (i *Issuer) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return i.secretKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}

	if !token.Valid || claims.AccountID == "" {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}
