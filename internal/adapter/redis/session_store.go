package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/Ahmedmecatronique/AquaWing/internal/domain"
)

const (
	sessionKeyPrefix = "aquawing:session:"
	scanBatch        = 100
)

// SessionStore keeps sessions in Redis so that several ground station
// processes share logins. Keys carry a native TTL equal to the session
// timeout; SessionManager still checks CreatedAt on every lookup.
type SessionStore struct {
	rdb *goredis.Client
}

var _ domain.SessionStore = (*SessionStore)(nil)

func NewSessionStore(rdb *goredis.Client) *SessionStore {
	return &SessionStore{rdb: rdb}
}

func sessionKey(token string) string {
	return sessionKeyPrefix + token
}

func (s *SessionStore) Save(ctx context.Context, session domain.Session, ttl time.Duration) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := s.rdb.Set(ctx, sessionKey(session.Token), data, ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *SessionStore) Get(ctx context.Context, token string) (domain.Session, error) {
	data, err := s.rdb.Get(ctx, sessionKey(token)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("get session: %w", err)
	}

	var session domain.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return domain.Session{}, fmt.Errorf("decode session: %w", err)
	}
	return session, nil
}

func (s *SessionStore) Delete(ctx context.Context, token string) error {
	if err := s.rdb.Del(ctx, sessionKey(token)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Count walks the session keyspace with SCAN. It is meant for status pages,
// not hot paths.
func (s *SessionStore) Count(ctx context.Context) (int, error) {
	var (
		cursor uint64
		total  int
	)
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, sessionKeyPrefix+"*", scanBatch).Result()
		if err != nil {
			return 0, fmt.Errorf("scan sessions: %w", err)
		}
		total += len(keys)
		if next == 0 {
			return total, nil
		}
		cursor = next
	}
}
