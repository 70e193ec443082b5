// Package auth verifies and issues session tokens.
//
// Tokens are JWTs signed with HS256 (shared secret) or RS256 (PEM key
// pair). The subject claim carries the user id.
package auth

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/rickgao/emission-engine/internal/config"
)

var (
	// ErrMissingToken is returned when a request carries no bearer token.
	ErrMissingToken = errors.New("missing bearer token")

	// ErrInvalidToken is returned for malformed, expired or mis-signed tokens.
	ErrInvalidToken = errors.New("invalid token")
)

// Verifier validates session tokens.
type Verifier struct {
	method jwt.SigningMethod
	key    any
	issuer string
}

// NewHMACVerifier verifies HS256 tokens signed with secret.
func NewHMACVerifier(secret []byte, issuer string) *Verifier {
	return &Verifier{method: jwt.SigningMethodHS256, key: secret, issuer: issuer}
}

// NewRSAVerifier verifies RS256 tokens signed by pub's private key.
func NewRSAVerifier(pub *rsa.PublicKey, issuer string) *Verifier {
	return &Verifier{method: jwt.SigningMethodRS256, key: pub, issuer: issuer}
}

// NewVerifier builds a Verifier from cfg. A public key path selects RS256.
func NewVerifier(cfg config.AuthConfig) (*Verifier, error) {
	if cfg.PublicKeyPath != "" {
		pub, err := LoadPublicKey(cfg.PublicKeyPath)
		if err != nil {
			return nil, fmt.Errorf("load public key: %w", err)
		}
		return NewRSAVerifier(pub, cfg.Issuer), nil
	}
	if cfg.Secret == "" {
		return nil, errors.New("auth secret or public key path is required")
	}
	return NewHMACVerifier([]byte(cfg.Secret), cfg.Issuer), nil
}

// Verify parses token and returns its subject.
func (v *Verifier) Verify(token string) (string, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{v.method.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return v.key, nil
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return "", fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims.Subject, nil
}

// VerifyRequest verifies the request's Authorization bearer token.
func (v *Verifier) VerifyRequest(r *http.Request) (string, error) {
	token, ok := BearerToken(r)
	if !ok {
		return "", ErrMissingToken
	}
	return v.Verify(token)
}

// BearerToken extracts the token from "Authorization: Bearer <token>".
func BearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// Issuer signs session tokens.
type Issuer struct {
	method jwt.SigningMethod
	key    any
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewHMACIssuer signs HS256 tokens with secret.
func NewHMACIssuer(secret []byte, issuer string, ttl time.Duration) *Issuer {
	return &Issuer{method: jwt.SigningMethodHS256, key: secret, issuer: issuer, ttl: ttl, now: time.Now}
}

// NewRSAIssuer signs RS256 tokens with priv.
func NewRSAIssuer(priv *rsa.PrivateKey, issuer string, ttl time.Duration) *Issuer {
	return &Issuer{method: jwt.SigningMethodRS256, key: priv, issuer: issuer, ttl: ttl, now: time.Now}
}

// NewIssuer builds an Issuer from cfg. A private key path selects RS256.
func NewIssuer(cfg config.AuthConfig) (*Issuer, error) {
	if cfg.PrivateKeyPath != "" {
		priv, err := LoadPrivateKey(cfg.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("load private key: %w", err)
		}
		return NewRSAIssuer(priv, cfg.Issuer, cfg.TokenTTL), nil
	}
	if cfg.Secret == "" {
		return nil, errors.New("auth secret or private key path is required")
	}
	return NewHMACIssuer([]byte(cfg.Secret), cfg.Issuer, cfg.TokenTTL), nil
}

// Issue returns a signed token for userID.
func (i *Issuer) Issue(userID string) (string, error) {
	if userID == "" {
		return "", errors.New("user id is required")
	}

	ttl := i.ttl
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	now := i.now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    i.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(i.method, claims).SignedString(i.key)
}

type contextKey struct{}

// WithUserID returns a context carrying userID.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, contextKey{}, userID)
}

// UserID returns the authenticated user id, or "" if none.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(contextKey{}).(string)
	return id
}
