// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package auth provides bearer-token providers for authenticating
// requests against A2A agents.
package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwt"
)

// TokenProvider supplies a bearer token for an outgoing request. An
// empty token with a nil error means the request goes out unauthenticated.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// StaticProvider returns a fixed token for every request.
type StaticProvider struct {
	token string
}

// NewStaticProvider creates a provider that always returns token.
func NewStaticProvider(token string) *StaticProvider {
	return &StaticProvider{token: token}
}

// Token implements TokenProvider.
func (p *StaticProvider) Token(ctx context.Context) (string, error) {
	return p.token, nil
}

// TokenProviderFunc adapts a function to the TokenProvider interface.
type TokenProviderFunc func(ctx context.Context) (string, error)

// Token implements TokenProvider.
func (f TokenProviderFunc) Token(ctx context.Context) (string, error) {
	return f(ctx)
}

// JWTProvider mints short-lived HS256-signed JWTs from a shared secret
// and caches them until shortly before expiry. It is safe for concurrent
// use.
type JWTProvider struct {
	secret   []byte
	issuer   string
	subject  string
	audience string
	ttl      time.Duration

	// now is replaceable for tests.
	now func() time.Time

	mu      sync.Mutex
	cached  string
	expires time.Time
}

// JWTOption configures a JWTProvider.
type JWTOption func(*JWTProvider)

// WithIssuer sets the iss claim.
func WithIssuer(issuer string) JWTOption {
	return func(p *JWTProvider) { p.issuer = issuer }
}

// WithSubject sets the sub claim.
func WithSubject(subject string) JWTOption {
	return func(p *JWTProvider) { p.subject = subject }
}

// WithAudience sets the aud claim.
func WithAudience(audience string) JWTOption {
	return func(p *JWTProvider) { p.audience = audience }
}

// WithTTL sets the token lifetime. The default is five minutes.
func WithTTL(ttl time.Duration) JWTOption {
	return func(p *JWTProvider) { p.ttl = ttl }
}

// NewJWTProvider creates a JWTProvider signing with the given shared
// secret.
func NewJWTProvider(secret []byte, opts ...JWTOption) (*JWTProvider, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("signing secret must not be empty")
	}
	p := &JWTProvider{
		secret: secret,
		ttl:    5 * time.Minute,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Token implements TokenProvider. A cached token is reused until 30
// seconds before expiry.
func (p *JWTProvider) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	if p.cached != "" && now.Before(p.expires.Add(-30*time.Second)) {
		return p.cached, nil
	}

	builder := jwt.NewBuilder().
		IssuedAt(now).
		Expiration(now.Add(p.ttl))
	if p.issuer != "" {
		builder = builder.Issuer(p.issuer)
	}
	if p.subject != "" {
		builder = builder.Subject(p.subject)
	}
	if p.audience != "" {
		builder = builder.Audience([]string{p.audience})
	}

	tok, err := builder.Build()
	if err != nil {
		return "", fmt.Errorf("build JWT: %w", err)
	}

	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256(), p.secret))
	if err != nil {
		return "", fmt.Errorf("sign JWT: %w", err)
	}

	p.cached = string(signed)
	p.expires = now.Add(p.ttl)
	return p.cached, nil
}
