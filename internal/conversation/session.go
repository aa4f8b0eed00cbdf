package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"psymatch/internal/cache"
	"psymatch/internal/models"

	"github.com/redis/go-redis/v9"
)

// DefaultSessionTTL abandons sessions that have seen no input for a day.
const DefaultSessionTTL = 24 * time.Hour

// Session is the transient state of one user's conversation.
type Session struct {
	UserID    int64                   `json:"user_id"`
	Flow      Flow                    `json:"flow"`
	State     State                   `json:"state"`
	Role      models.Role             `json:"role,omitempty"`
	Draft     map[models.Field]string `json:"draft"`
	UpdatedAt time.Time               `json:"updated_at"`
}

// SessionStore owns sessions keyed by user id.
type SessionStore interface {
	// Get returns nil, nil when the user has no live session.
	Get(ctx context.Context, userID int64) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, userID int64) error
}

// RedisSessionStore keeps sessions as JSON with a sliding TTL.
type RedisSessionStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisSessionStore creates a store on rdb. A non-positive ttl uses DefaultSessionTTL.
func NewRedisSessionStore(rdb *redis.Client, ttl time.Duration) *RedisSessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &RedisSessionStore{rdb: rdb, ttl: ttl}
}

func (r *RedisSessionStore) Get(ctx context.Context, userID int64) (*Session, error) {
	raw, err := r.rdb.Get(ctx, cache.SessionKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session %d: %w", userID, err)
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode session %d: %w", userID, err)
	}
	if s.Draft == nil {
		s.Draft = map[models.Field]string{}
	}
	return &s, nil
}

func (r *RedisSessionStore) Save(ctx context.Context, s *Session) error {
	s.UpdatedAt = time.Now().UTC()
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session %d: %w", s.UserID, err)
	}
	if err := r.rdb.Set(ctx, cache.SessionKey(s.UserID), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("save session %d: %w", s.UserID, err)
	}
	return nil
}

func (r *RedisSessionStore) Delete(ctx context.Context, userID int64) error {
	if err := r.rdb.Del(ctx, cache.SessionKey(userID)).Err(); err != nil {
		return fmt.Errorf("delete session %d: %w", userID, err)
	}
	return nil
}

// MemorySessionStore is the in-process fallback used when Redis is absent.
// Sessions do not survive a restart.
type MemorySessionStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	sessions map[int64]Session
}

// NewMemorySessionStore creates an empty store. A non-positive ttl uses DefaultSessionTTL.
func NewMemorySessionStore(ttl time.Duration) *MemorySessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &MemorySessionStore{ttl: ttl, now: time.Now, sessions: make(map[int64]Session)}
}

func (m *MemorySessionStore) Get(_ context.Context, userID int64) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[userID]
	if !ok {
		return nil, nil
	}
	if m.now().Sub(s.UpdatedAt) > m.ttl {
		delete(m.sessions, userID)
		return nil, nil
	}
	return cloneSession(s), nil
}

func (m *MemorySessionStore) Save(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s.UpdatedAt = m.now().UTC()
	m.sessions[s.UserID] = *cloneSession(*s)
	return nil
}

func (m *MemorySessionStore) Delete(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
	return nil
}

// Len reports the number of stored sessions, expired ones included.
func (m *MemorySessionStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func cloneSession(s Session) *Session {
	draft := make(map[models.Field]string, len(s.Draft))
	for k, v := range s.Draft {
		draft[k] = v
	}
	s.Draft = draft
	return &s
}
