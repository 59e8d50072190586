package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/wricardo/gobang-online/directory"
	"github.com/wricardo/gobang-online/game/presence"
)

// CookieName carries the session token in browsers.
const CookieName = "gobang_session"

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrAlreadySignedIn    = errors.New("user already signed in")
	ErrUnauthenticated    = errors.New("unauthenticated")
)

// Provider verifies credentials, enforces one sign-in per identity and maps
// session tokens to identities.
type Provider struct {
	users    directory.Authenticator
	presence *presence.Registry
	log      zerolog.Logger

	mu     sync.RWMutex
	tokens map[string]string // token -> identity
}

// Option configures a Provider.
type Option func(*Provider)

// WithLogger sets the provider logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(p *Provider) {
		p.log = logger
	}
}

// NewProvider creates a Provider backed by users and sharing reg with the
// coordinator.
func NewProvider(users directory.Authenticator, reg *presence.Registry, opts ...Option) *Provider {
	p := &Provider{
		users:    users,
		presence: reg,
		log:      zerolog.Nop(),
		tokens:   make(map[string]string),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log = p.log.With().Str("component", "auth").Logger()
	return p
}

// Login checks the password, atomically claims the identity and returns a
// new session token. A second login of an identity that is connected, or
// whose previous login has not connected yet, fails with ErrAlreadySignedIn.
func (p *Provider) Login(ctx context.Context, username, password string) (string, error) {
	rec, err := p.users.Authenticate(ctx, username, password)
	if err != nil {
		if errors.Is(err, directory.ErrInvalidCredentials) {
			p.log.Debug().Str("user", username).Msg("bad credentials")
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("authenticate %s: %w", username, err)
	}

	if err := p.presence.Claim(rec.Username); err != nil {
		if errors.Is(err, presence.ErrAlreadySignedIn) {
			p.log.Info().Str("user", rec.Username).Msg("rejected second sign-in")
			return "", ErrAlreadySignedIn
		}
		return "", err
	}

	token := uuid.NewString()
	p.mu.Lock()
	p.tokens[token] = rec.Username
	p.mu.Unlock()

	p.log.Info().Str("user", rec.Username).Msg("signed in")
	return token, nil
}

// Logout forgets token. An unknown token is ignored.
func (p *Provider) Logout(token string) {
	p.mu.Lock()
	identity, ok := p.tokens[token]
	delete(p.tokens, token)
	p.mu.Unlock()

	if ok {
		// A login that never connected gives its claim back.
		p.presence.Release(identity)
		p.log.Info().Str("user", identity).Msg("signed out")
	}
}

// Lookup returns the identity behind token.
func (p *Provider) Lookup(token string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	identity, ok := p.tokens[token]
	return identity, ok
}

// Identify resolves the identity of an HTTP request from the session cookie
// or, for non-browser clients, the token query parameter.
func (p *Provider) Identify(r *http.Request) (string, error) {
	token := TokenFromRequest(r)
	if token == "" {
		return "", ErrUnauthenticated
	}
	identity, ok := p.Lookup(token)
	if !ok {
		return "", ErrUnauthenticated
	}
	return identity, nil
}

// TokenFromRequest extracts the session token, cookie first.
func TokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value
	}
	return r.URL.Query().Get("token")
}

// SessionCookie builds the cookie that carries token.
func SessionCookie(token string) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// ExpiredCookie clears the session cookie.
func ExpiredCookie() *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	}
}
