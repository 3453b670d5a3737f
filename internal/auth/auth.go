// Package auth verifies the Supabase-issued bearer tokens that accompany
// edit and job status requests.
//
// Tokens are HS256 JWTs signed with the project's JWT secret. A token is
// accepted when the signature verifies, the issuer matches the configured
// Supabase issuer, and it has not expired.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/rs/zerolog/log"
)

// Errors returned by Authenticate. Messages are safe to show to clients.
var (
	ErrMissingToken  = errors.New("Missing or invalid Authorization header")
	ErrInvalidToken  = errors.New("Invalid or expired token")
	ErrNotConfigured = errors.New("Server configuration error")
)

// Claims are the token fields the API relies on.
type Claims struct {
	Subject string
	Email   string
	Role    string
	Expiry  time.Time
}

// supabaseClaims adds the Supabase-specific fields to the registered claims.
type supabaseClaims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

// Verifier checks bearer tokens against a signing secret and issuer.
type Verifier struct {
	secret []byte
	issuer string
	leeway time.Duration
	now    func() time.Time
}

// NewVerifier creates a Verifier. issuer may be empty to skip the issuer check.
func NewVerifier(secret, issuer string) *Verifier {
	return &Verifier{
		secret: []byte(secret),
		issuer: issuer,
		leeway: jwt.DefaultLeeway,
		now:    time.Now,
	}
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(header[len("Bearer "):])
	return token, token != ""
}

// Authenticate verifies the request's bearer token and returns its claims.
func (v *Verifier) Authenticate(r *http.Request) (*Claims, error) {
	token, ok := BearerToken(r)
	if !ok {
		return nil, ErrMissingToken
	}
	return v.Verify(token)
}

// Verify checks a raw compact JWT.
func (v *Verifier) Verify(token string) (*Claims, error) {
	if len(v.secret) == 0 {
		log.Error().Msg("JWT secret not configured")
		return nil, ErrNotConfigured
	}

	parsed, err := jwt.ParseSigned(token, []jose.SignatureAlgorithm{jose.HS256})
	if err != nil {
		log.Debug().Err(err).Msg("JWT parse failed")
		return nil, ErrInvalidToken
	}

	var registered jwt.Claims
	var extra supabaseClaims
	if err := parsed.Claims(v.secret, &registered, &extra); err != nil {
		log.Debug().Err(err).Msg("JWT signature verification failed")
		return nil, ErrInvalidToken
	}

	expected := jwt.Expected{Issuer: v.issuer, Time: v.now()}
	if err := registered.ValidateWithLeeway(expected, v.leeway); err != nil {
		log.Debug().Err(err).Str("issuer", registered.Issuer).Msg("JWT claims rejected")
		return nil, ErrInvalidToken
	}

	claims := &Claims{
		Subject: registered.Subject,
		Email:   extra.Email,
		Role:    extra.Role,
	}
	if registered.Expiry != nil {
		claims.Expiry = registered.Expiry.Time()
	}
	return claims, nil
}

type claimsKey struct{}

// WithClaims stores verified claims on the context.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

// FromContext returns the claims stored by WithClaims, or nil.
func FromContext(ctx context.Context) *Claims {
	c, _ := ctx.Value(claimsKey{}).(*Claims)
	return c
}

// SubjectFromContext returns the authenticated user id, or "".
func SubjectFromContext(ctx context.Context) string {
	if c := FromContext(ctx); c != nil {
		return c.Subject
	}
	return ""
}

// String implements fmt.Stringer without exposing the secret.
func (v *Verifier) String() string {
	return fmt.Sprintf("auth.Verifier{issuer=%q}", v.issuer)
}
