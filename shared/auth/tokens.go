package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nordbooking/nordbooking/shared/models"
)

const tokenIssuer = "nordbooking"

// Claims are the claims carried by platform access tokens. Role and tenant are hints for
// clients only; every authorization decision reloads the account.
type Claims struct {
	Email    string `json:"email"`
	Role     string `json:"role"`
	TenantID *uint  `json:"tenant_id,omitempty"`
	jwt.RegisteredClaims
}

// UserID parses the subject claim
func (c *Claims) UserID() (uint, error) {
	id, err := strconv.ParseUint(c.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid subject %q: %w", c.Subject, err)
	}
	return uint(id), nil
}

// TokenIssuer signs and verifies HS256 access tokens
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: ttl}
}

// TTL is the lifetime of issued tokens
func (t *TokenIssuer) TTL() time.Duration {
	return t.ttl
}

// Issue signs a token for the account
func (t *TokenIssuer) Issue(u *models.User) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(t.ttl)
	claims := Claims{
		Email:    u.Email,
		Role:     string(u.Role),
		TenantID: u.TenantID(),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    tokenIssuer,
			Subject:   strconv.FormatUint(uint64(u.ID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify checks signature, issuer and expiry
func (t *TokenIssuer) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secret, nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: token expired", ErrUnauthenticated)
		}
		return nil, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}
	if !token.Valid {
		return nil, ErrUnauthenticated
	}
	return claims, nil
}
