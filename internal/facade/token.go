// ABOUTME: JWT minting and verification for short-lived facade sessions
// ABOUTME: Uses HS256 signing with configurable secret

package facade

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token errors
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrMissingClaim = errors.New("missing required claim")
)

// Default TTL for exchanged tokens: 1 hour.
const defaultTokenTTL = time.Hour

// Maximum TTL for exchanged tokens: 24 hours.
const maxTokenTTL = 24 * time.Hour

// JWTIssuer mints and verifies HS256 tokens carrying the API key id.
type JWTIssuer struct {
	secret []byte
}

// NewJWTIssuer creates a new issuer with the given secret.
func NewJWTIssuer(secret []byte) *JWTIssuer {
	return &JWTIssuer{secret: secret}
}

// Generate creates a token for the given API key id with expiration.
func (i *JWTIssuer) Generate(keyID string, expiresIn time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": keyID,
		"iat": now.Unix(),
		"exp": now.Add(expiresIn).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

// Verify validates the token and extracts the API key id from the "sub" claim.
func (i *JWTIssuer) Verify(tokenString string) (keyID string, err error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return i.secret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredToken
		}
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !token.Valid {
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", fmt.Errorf("%w: sub", ErrMissingClaim)
	}

	return sub, nil
}
