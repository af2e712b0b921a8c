package domain

import (
	"context"
	"time"
)

// Identity is the authenticated owner of a session.
type Identity string

// Session proves a prior successful login. It is valid while
// now - CreatedAt < timeout; lookups never extend it.
type Session struct {
	Token     string    `json:"token"`
	Owner     Identity  `json:"owner"`
	CreatedAt time.Time `json:"created_at"`
}

// Expired reports whether the session has outlived timeout at now.
func (s Session) Expired(now time.Time, timeout time.Duration) bool {
	return now.Sub(s.CreatedAt) >= timeout
}

// SessionStore persists sessions by token. Get returns ErrSessionNotFound
// for unknown tokens.
type SessionStore interface {
	Save(ctx context.Context, session Session, ttl time.Duration) error
	Get(ctx context.Context, token string) (Session, error)
	Delete(ctx context.Context, token string) error
	Count(ctx context.Context) (int, error)
}

// Authenticator decides whether a token identifies a live session.
type Authenticator interface {
	Validate(ctx context.Context, token string) (Identity, error)
}
