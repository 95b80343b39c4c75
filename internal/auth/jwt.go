package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var errNoPrincipal = errors.New("token has neither username nor sub")

type tokenClaims struct {
	jwt.RegisteredClaims
	Username string `json:"username,omitempty"`
}

// TokenVerifier checks HS256 tokens signed with a shared secret.
type TokenVerifier struct {
	secret []byte
	leeway time.Duration
}

func NewTokenVerifier(secret []byte) *TokenVerifier {
	return &TokenVerifier{secret: secret, leeway: 30 * time.Second}
}

// Verify returns the token's principal: the username claim, else sub.
// exp is checked when present but not required.
func (v *TokenVerifier) Verify(tokenString string) (string, error) {
	claims := &tokenClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, v.key,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(v.leeway),
	)
	if err != nil {
		return "", fmt.Errorf("parse token: %w", err)
	}

	if claims.Username != "" {
		return claims.Username, nil
	}
	if claims.Subject != "" {
		return claims.Subject, nil
	}
	return "", errNoPrincipal
}

func (v *TokenVerifier) key(*jwt.Token) (any, error) {
	return v.secret, nil
}
