// Package identity provides token verification backends for resolving
// bearer tokens into principals.
package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tendant/simple-feed/pkg/simplefeed"
)

const DefaultTokenExpire = time.Hour * 24

// JWTVerifier validates HS256-signed tokens and extracts the principal from
// the standard subject and email claims.
type JWTVerifier struct {
	key []byte
}

// NewJWTVerifier creates a verifier for tokens signed with the given key.
func NewJWTVerifier(key string) (*JWTVerifier, error) {
	if key == "" {
		return nil, fmt.Errorf("jwt verifier requires a signing key")
	}
	return &JWTVerifier{key: []byte(key)}, nil
}

// Verify implements simplefeed.TokenVerifier.
func (v *JWTVerifier) Verify(ctx context.Context, token string) (*simplefeed.Principal, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.key, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !parsed.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("unexpected token claims")
	}

	principal := &simplefeed.Principal{}
	if sub, ok := claims["sub"].(string); ok {
		principal.ExternalID = sub
	}
	if email, ok := claims["email"].(string); ok {
		principal.Email = email
	}
	if principal.Email == "" {
		return nil, fmt.Errorf("token missing email claim")
	}
	return principal, nil
}

// Issue signs a token for the given principal. Intended for development
// tooling and tests; production tokens come from the identity provider.
func (v *JWTVerifier) Issue(principal *simplefeed.Principal, expire time.Duration) (string, error) {
	if expire == 0 {
		expire = DefaultTokenExpire
	}
	claims := jwt.MapClaims{
		"sub":   principal.ExternalID,
		"email": principal.Email,
		"exp":   time.Now().Add(expire).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.key)
}
