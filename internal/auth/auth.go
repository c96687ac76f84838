// Package auth verifies the Firebase ID tokens callable clients send as
// bearer tokens.
package auth

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Caller identifies an authenticated end user.
type Caller struct {
	UID   string
	Email string
}

// Verifier turns a raw bearer token into a Caller.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Caller, error)
}

// KeySource supplies the RSA public keys tokens are signed with, by key id.
type KeySource interface {
	Keys(ctx context.Context) (map[string]*rsa.PublicKey, error)
}

// keyRefresher is implemented by key sources that can refetch on demand.
type keyRefresher interface {
	Refresh(ctx context.Context) (map[string]*rsa.PublicKey, error)
}

var (
	ErrNoToken    = errors.New("no bearer token")
	ErrUnknownKey = errors.New("token signed with unknown key")
)

type firebaseClaims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// FirebaseVerifier validates Firebase Auth ID tokens for one project.
type FirebaseVerifier struct {
	projectID string
	keys      KeySource
	parser    *jwt.Parser
}

func NewFirebaseVerifier(projectID string, keys KeySource) *FirebaseVerifier {
	return &FirebaseVerifier{
		projectID: projectID,
		keys:      keys,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
			jwt.WithAudience(projectID),
			jwt.WithIssuer("https://securetoken.google.com/"+projectID),
			jwt.WithExpirationRequired(),
			jwt.WithIssuedAt(),
		),
	}
}

func (v *FirebaseVerifier) Verify(ctx context.Context, token string) (*Caller, error) {
	if token == "" {
		return nil, ErrNoToken
	}

	keys, err := v.keys.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load signing keys: %w", err)
	}

	claims, err := v.parse(token, keys)
	if errors.Is(err, ErrUnknownKey) {
		// The signing key may have rotated in since the last fetch.
		if r, ok := v.keys.(keyRefresher); ok {
			if keys, err = r.Refresh(ctx); err != nil {
				return nil, fmt.Errorf("failed to refresh signing keys: %w", err)
			}
			claims, err = v.parse(token, keys)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("invalid id token: %w", err)
	}
	if claims.Subject == "" {
		return nil, errors.New("invalid id token: empty subject")
	}

	return &Caller{UID: claims.Subject, Email: claims.Email}, nil
}

func (v *FirebaseVerifier) parse(token string, keys map[string]*rsa.PublicKey) (*firebaseClaims, error) {
	var claims firebaseClaims
	_, err := v.parser.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		key, ok := keys[kid]
		if !ok {
			return nil, ErrUnknownKey
		}
		return key, nil
	})
	return &claims, err
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
