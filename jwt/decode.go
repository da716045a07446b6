package jwt

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMissingSubject is returned by [Decode] when the token carries no "sub" claim.
var ErrMissingSubject = errors.New("token has no subject claim")

// ErrMalformed wraps every structural decode failure.
var ErrMalformed = errors.New("malformed token")

// Claims is the claim set the backend puts into access tokens.
type Claims struct {
	jwt.RegisteredClaims
}

// Decode splits and base64-decodes token and returns its claims without
// verifying the signature. Tokens without a subject are rejected.
func Decode(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("%w: empty token", ErrMalformed)
	}

	claims := &Claims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, ErrMissingSubject)
	}

	return claims, nil
}
