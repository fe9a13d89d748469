package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/MRAMOS343/moncar-api/internal/shared"
)

var (
	// ErrMissingToken indicates the request carried no bearer credential.
	ErrMissingToken = fmt.Errorf("auth: bearer token required: %w", shared.ErrUnauthorized)
	// ErrInvalidToken covers bad signatures, expiry and malformed claims.
	ErrInvalidToken = fmt.Errorf("auth: invalid or expired token: %w", shared.ErrUnauthorized)
)

// Verifier validates HS256 bearer tokens issued elsewhere.
type Verifier struct {
	secret []byte
	parser *jwt.Parser
}

// NewVerifier builds a Verifier for the shared secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{
		secret: []byte(secret),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
		),
	}
}

// Verify parses the token and returns the caller it identifies.
func (v *Verifier) Verify(token string) (shared.Principal, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return shared.Principal{}, ErrMissingToken
	}
	claims := &Claims{}
	parsed, err := v.parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return v.secret, nil
	})
	if err != nil || !parsed.Valid {
		return shared.Principal{}, errors.Join(ErrInvalidToken, err)
	}
	if claims.Subject == "" || claims.Role == "" {
		return shared.Principal{}, fmt.Errorf("%w: sub and rol are required", ErrInvalidToken)
	}
	return shared.Principal{
		Subject:  claims.Subject,
		Role:     claims.Role,
		BranchID: claims.BranchID,
	}, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	const prefix = "bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
