package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Ahmedmecatronique/AquaWing/internal/domain"
	"github.com/jonboulle/clockwork"
)

const tokenBytes = 32

// SessionManager implements domain.Authenticator on top of a SessionStore.
type SessionManager struct {
	store   domain.SessionStore
	clock   clockwork.Clock
	timeout time.Duration
}

var _ domain.Authenticator = (*SessionManager)(nil)

func NewSessionManager(store domain.SessionStore, clock clockwork.Clock, timeout time.Duration) *SessionManager {
	return &SessionManager{store: store, clock: clock, timeout: timeout}
}

func (m *SessionManager) Timeout() time.Duration {
	return m.timeout
}

// Create starts a new session for owner.
func (m *SessionManager) Create(ctx context.Context, owner domain.Identity) (domain.Session, error) {
	token, err := newToken()
	if err != nil {
		return domain.Session{}, fmt.Errorf("failed to generate session token: %w", err)
	}

	session := domain.Session{
		Token:     token,
		Owner:     owner,
		CreatedAt: m.clock.Now(),
	}
	if err := m.store.Save(ctx, session, m.timeout); err != nil {
		return domain.Session{}, fmt.Errorf("failed to save session: %w", err)
	}

	slog.InfoContext(ctx, "Session created", "owner", owner)
	return session, nil
}

// Validate returns the owner of token. Empty, unknown and expired tokens yield
// domain.ErrInvalidSession; any other error means the store could not answer.
func (m *SessionManager) Validate(ctx context.Context, token string) (domain.Identity, error) {
	if token == "" {
		return "", domain.ErrInvalidSession
	}

	session, err := m.store.Get(ctx, token)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return "", domain.ErrInvalidSession
	}
	if err != nil {
		return "", fmt.Errorf("failed to load session: %w", err)
	}

	if session.Expired(m.clock.Now(), m.timeout) {
		if err := m.store.Delete(ctx, token); err != nil {
			slog.WarnContext(ctx, "Failed to evict expired session", "owner", session.Owner, "error", err)
		}
		slog.InfoContext(ctx, "Session expired", "owner", session.Owner, "age", m.clock.Since(session.CreatedAt))
		return "", domain.ErrInvalidSession
	}

	return session.Owner, nil
}

// Destroy ends a session. Destroying an unknown token is not an error.
func (m *SessionManager) Destroy(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := m.store.Delete(ctx, token); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// ActiveSessions counts stored sessions, including expired ones that no
// lookup has evicted yet.
func (m *SessionManager) ActiveSessions(ctx context.Context) (int, error) {
	n, err := m.store.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return n, nil
}

func newToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
