package auth

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionStore tracks which session ids are still signed in.
type SessionStore interface {
	Add(ctx context.Context, sessionID, uid string, ttl time.Duration) error
	Active(ctx context.Context, sessionID string) (bool, error)
	Revoke(ctx context.Context, sessionID string) error
}

const sessionKeyPrefix = "inventory:session:"

// RedisSessions keeps one key per session, expiring with the token.
type RedisSessions struct {
	client *redis.Client
}

func NewRedisSessions(client *redis.Client) *RedisSessions {
	return &RedisSessions{client: client}
}

func (r *RedisSessions) Add(ctx context.Context, sessionID, uid string, ttl time.Duration) error {
	return r.client.Set(ctx, sessionKeyPrefix+sessionID, uid, ttl).Err()
}

func (r *RedisSessions) Active(ctx context.Context, sessionID string) (bool, error) {
	n, err := r.client.Exists(ctx, sessionKeyPrefix+sessionID).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *RedisSessions) Revoke(ctx context.Context, sessionID string) error {
	return r.client.Del(ctx, sessionKeyPrefix+sessionID).Err()
}

// MemorySessions is a single-process SessionStore.
type MemorySessions struct {
	mu       sync.Mutex
	sessions map[string]time.Time // id -> expiry
	now      func() time.Time
}

func NewMemorySessions() *MemorySessions {
	return &MemorySessions{sessions: make(map[string]time.Time), now: time.Now}
}

func (m *MemorySessions) Add(_ context.Context, sessionID, _ string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for id, exp := range m.sessions {
		if !exp.After(now) {
			delete(m.sessions, id)
		}
	}
	m.sessions[sessionID] = now.Add(ttl)
	return nil
}

func (m *MemorySessions) Active(_ context.Context, sessionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	exp, ok := m.sessions[sessionID]
	return ok && exp.After(m.now()), nil
}

func (m *MemorySessions) Revoke(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
	return nil
}
