package auth

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/JonMunkholm/inventory/internal/core"
)

// ProfileLoader returns nil, nil when a uid has no profile.
type ProfileLoader interface {
	GetProfile(ctx context.Context, uid string) (*core.UserProfile, error)
}

const profileLoadTimeout = 5 * time.Second

type cachedProfile struct {
	profile  *core.UserProfile
	loadedAt time.Time
}

// Gate resolves tokens to sessions and caches profiles between requests.
type Gate struct {
	provider Provider
	profiles ProfileLoader
	ttl      time.Duration
	now      func() time.Time

	mu    sync.RWMutex
	cache map[string]cachedProfile

	unsubscribe func()
}

// NewGate subscribes to provider events until Close.
func NewGate(provider Provider, profiles ProfileLoader, cacheTTL time.Duration) *Gate {
	g := &Gate{
		provider: provider,
		profiles: profiles,
		ttl:      cacheTTL,
		now:      time.Now,
		cache:    make(map[string]cachedProfile),
	}
	g.unsubscribe = provider.Subscribe(g.onEvent)
	return g
}

func (g *Gate) Close() { g.unsubscribe() }

func (g *Gate) onEvent(ev SessionEvent) {
	switch ev.Kind {
	case SignedIn:
		ctx, cancel := context.WithTimeout(context.Background(), profileLoadTimeout)
		defer cancel()
		g.load(ctx, ev.Identity.UID)
	case SignedOut:
		g.mu.Lock()
		delete(g.cache, ev.Identity.UID)
		g.mu.Unlock()
	}
}

// load fetches and caches the profile. Fetch errors are logged and yield
// nil without caching, so the next request retries.
func (g *Gate) load(ctx context.Context, uid string) *core.UserProfile {
	p, err := g.profiles.GetProfile(ctx, uid)
	if err != nil {
		slog.Warn("profile load failed", "uid", uid, "error", err)
		return nil
	}
	if p == nil {
		slog.Debug("signed-in user has no profile", "uid", uid)
	}
	g.mu.Lock()
	g.cache[uid] = cachedProfile{profile: p, loadedAt: g.now()}
	g.mu.Unlock()
	return p
}

func (g *Gate) profile(ctx context.Context, uid string) *core.UserProfile {
	g.mu.RLock()
	c, ok := g.cache[uid]
	g.mu.RUnlock()
	if ok && g.now().Sub(c.loadedAt) < g.ttl {
		return c.profile
	}
	return g.load(ctx, uid)
}

// Resolve verifies token and attaches the user's profile.
func (g *Gate) Resolve(ctx context.Context, token Token) (*Session, error) {
	id, err := g.provider.Verify(ctx, token)
	if err != nil {
		return nil, err
	}
	return &Session{Identity: id, Profile: g.profile(ctx, id.UID)}, nil
}

// SignIn signs in through the provider and returns the new session.
func (g *Gate) SignIn(ctx context.Context, email, password string) (Token, *Session, error) {
	token, id, err := g.provider.SignIn(ctx, email, password)
	if err != nil {
		return "", nil, err
	}
	return token, &Session{Identity: id, Profile: g.profile(ctx, id.UID)}, nil
}

// SignOut revokes token. Cached state is gone when it returns.
func (g *Gate) SignOut(ctx context.Context, token Token) error {
	return g.provider.SignOut(ctx, token)
}

// Invalidate drops the cached profile for uid.
func (g *Gate) Invalidate(uid string) {
	g.mu.Lock()
	delete(g.cache, uid)
	g.mu.Unlock()
}
