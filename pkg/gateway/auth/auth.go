// Package auth authenticates gateway callers. Two credential shapes are
// accepted on the Authorization header: a static API key from the
// configured set, or an HS256 JWT signed with the shared secret.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidCredentials = errors.New("auth: invalid credentials")

type Method string

const (
	MethodAPIKey Method = "api_key"
	MethodJWT    Method = "jwt"
)

// Principal is the authenticated caller identity. Subject is the JWT sub
// claim for token auth, or the API key itself for key auth; it doubles as
// the enrollment user id for voiceprint lookups.
type Principal struct {
	Subject string
	Method  Method
}

type ctxKey struct{}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

func PrincipalFrom(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(*Principal)
	return p, ok && p != nil
}

// ParseBearer extracts the bearer token from the Authorization header,
// or from the access_token query parameter as a fallback for WebSocket
// clients that cannot set headers.
func ParseBearer(r *http.Request) (string, bool) {
	authz := strings.TrimSpace(r.Header.Get("Authorization"))
	if authz != "" {
		const prefix = "Bearer "
		if !strings.HasPrefix(authz, prefix) {
			return "", false
		}
		token := strings.TrimSpace(strings.TrimPrefix(authz, prefix))
		if token == "" {
			return "", false
		}
		return token, true
	}
	if token := strings.TrimSpace(r.URL.Query().Get("access_token")); token != "" {
		return token, true
	}
	return "", false
}

// Verifier validates bearer credentials against the API key set and,
// when a secret is configured, HS256 JWTs.
type Verifier struct {
	APIKeys   map[string]struct{}
	JWTSecret []byte
	Audience  string
}

func NewVerifier(apiKeys map[string]struct{}, jwtSecret, audience string) *Verifier {
	v := &Verifier{APIKeys: apiKeys, Audience: audience}
	if jwtSecret != "" {
		v.JWTSecret = []byte(jwtSecret)
	}
	return v
}

// Verify resolves a bearer token to a principal. API keys win over JWT
// parsing since key lookup is cheap and unambiguous.
func (v *Verifier) Verify(token string) (*Principal, error) {
	if _, ok := v.APIKeys[token]; ok {
		return &Principal{Subject: token, Method: MethodAPIKey}, nil
	}
	if len(v.JWTSecret) == 0 {
		return nil, ErrInvalidCredentials
	}
	return v.verifyJWT(token)
}

func (v *Verifier) verifyJWT(token string) (*Principal, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if v.Audience != "" {
		opts = append(opts, jwt.WithAudience(v.Audience))
	}

	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		return v.JWTSecret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}

	sub, err := parsed.Claims.GetSubject()
	if err != nil || sub == "" {
		return nil, fmt.Errorf("%w: missing sub claim", ErrInvalidCredentials)
	}
	return &Principal{Subject: sub, Method: MethodJWT}, nil
}
