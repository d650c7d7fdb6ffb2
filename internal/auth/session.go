// Package auth issues and verifies the signed session cookie that carries a
// user's identity between requests.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"fintrack/internal/core"
)

const CookieName = "fintrack_session"

var (
	ErrNoSession      = errors.New("no session")
	ErrInvalidSession = errors.New("invalid session")
)

type claims struct {
	Email       string `json:"email"`
	AccessToken string `json:"sat,omitempty"`
	jwt.RegisteredClaims
}

// Manager signs sessions with HS256.
type Manager struct {
	secret []byte
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

func NewManager(secret []byte, ttl time.Duration, secure bool) *Manager {
	return &Manager{secret: secret, ttl: ttl, secure: secure, now: time.Now}
}

// Issue returns a signed token for id and its expiry. When the identity holds
// a hosted-store access token the session never outlives it.
func (m *Manager) Issue(id core.Identity) (string, time.Time, error) {
	if id.IsZero() {
		return "", time.Time{}, ErrNoSession
	}
	now := m.now()
	exp := now.Add(m.ttl)
	if upstream, ok := upstreamExpiry(id.AccessToken); ok && upstream.Before(exp) {
		exp = upstream
	}
	c := claims{
		Email:       id.Email,
		AccessToken: id.AccessToken,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session: %w", err)
	}
	return signed, exp, nil
}

func (m *Manager) Parse(token string) (core.Identity, error) {
	var c claims
	_, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return core.Identity{}, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	if c.Subject == "" {
		return core.Identity{}, ErrInvalidSession
	}
	return core.Identity{UserID: c.Subject, Email: c.Email, AccessToken: c.AccessToken}, nil
}

// upstreamExpiry reads the exp claim of a hosted-store token without
// verifying it; the store itself verifies the signature.
func upstreamExpiry(token string) (time.Time, bool) {
	if token == "" {
		return time.Time{}, false
	}
	var rc jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &rc); err != nil || rc.ExpiresAt == nil {
		return time.Time{}, false
	}
	return rc.ExpiresAt.Time, true
}

// SetCookie issues a session for id and writes it to w.
func (m *Manager) SetCookie(w http.ResponseWriter, id core.Identity) error {
	token, exp, err := m.Issue(id)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  exp,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (m *Manager) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// FromRequest resolves the identity carried by the request's session cookie.
func (m *Manager) FromRequest(r *http.Request) (core.Identity, error) {
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return core.Identity{}, ErrNoSession
	}
	return m.Parse(c.Value)
}

type identityKey struct{}

func WithIdentity(ctx context.Context, id core.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the identity stored by the middleware, or the zero
// identity for anonymous requests.
func IdentityFrom(ctx context.Context) core.Identity {
	id, _ := ctx.Value(identityKey{}).(core.Identity)
	return id
}
