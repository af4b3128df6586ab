package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/JonMunkholm/inventory/internal/core"
	"github.com/JonMunkholm/inventory/internal/metrics"
)

// MinPasswordLength applies to Register only; sign-in checks the hash.
const MinPasswordLength = 8

// LocalOptions configures a LocalProvider.
type LocalOptions struct {
	Credentials core.CredentialStore
	Sessions    SessionStore
	Secret      []byte
	TokenTTL    time.Duration
	BcryptCost  int
	Now         func() time.Time
}

// LocalProvider checks bcrypt hashes from the credential store and issues
// HS256 tokens whose session id must still be active in Sessions.
type LocalProvider struct {
	creds    core.CredentialStore
	sessions SessionStore
	signer   tokenSigner
	cost     int
	now      func() time.Time

	mu     sync.RWMutex
	subs   map[int]func(SessionEvent)
	nextID int
}

var _ Provider = (*LocalProvider)(nil)

func NewLocalProvider(opts LocalOptions) *LocalProvider {
	if opts.Sessions == nil {
		opts.Sessions = NewMemorySessions()
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = 12 * time.Hour
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &LocalProvider{
		creds:    opts.Credentials,
		sessions: opts.Sessions,
		signer:   tokenSigner{secret: opts.Secret, ttl: opts.TokenTTL},
		cost:     opts.BcryptCost,
		now:      opts.Now,
		subs:     make(map[int]func(SessionEvent)),
	}
}

// Register stores a credential for email and returns the new uid.
func (p *LocalProvider) Register(ctx context.Context, email, password string) (string, error) {
	email = core.NormalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return "", fmt.Errorf("register: invalid email %q", email)
	}
	if len(password) < MinPasswordLength {
		return "", fmt.Errorf("register: password must be at least %d characters", MinPasswordLength)
	}
	if _, err := p.creds.GetCredential(ctx, email); err == nil {
		return "", fmt.Errorf("register: %s already has a credential", email)
	} else if !errors.Is(err, core.ErrNotFound) {
		return "", fmt.Errorf("register: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return "", fmt.Errorf("register: hash password: %w", err)
	}
	uid := uuid.NewString()
	err = p.creds.PutCredential(ctx, core.Credential{
		UID:          uid,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    p.now().UTC(),
	})
	if err != nil {
		return "", fmt.Errorf("register: %w", err)
	}
	return uid, nil
}

func (p *LocalProvider) SignIn(ctx context.Context, email, password string) (Token, Identity, error) {
	cred, err := p.creds.GetCredential(ctx, email)
	if errors.Is(err, core.ErrNotFound) {
		metrics.SignIns.WithLabelValues("invalid").Inc()
		return "", Identity{}, ErrInvalidCredentials
	}
	if err != nil {
		metrics.SignIns.WithLabelValues("error").Inc()
		return "", Identity{}, fmt.Errorf("sign in: %w", err)
	}
	if bcrypt.CompareHashAndPassword(cred.PasswordHash, []byte(password)) != nil {
		metrics.SignIns.WithLabelValues("invalid").Inc()
		return "", Identity{}, ErrInvalidCredentials
	}

	id := Identity{UID: cred.UID, Email: cred.Email, SessionID: uuid.NewString()}
	token, err := p.signer.sign(id, p.now())
	if err != nil {
		metrics.SignIns.WithLabelValues("error").Inc()
		return "", Identity{}, err
	}
	if err := p.sessions.Add(ctx, id.SessionID, id.UID, p.signer.ttl); err != nil {
		metrics.SignIns.WithLabelValues("error").Inc()
		return "", Identity{}, fmt.Errorf("sign in: store session: %w", err)
	}

	metrics.SignIns.WithLabelValues("ok").Inc()
	p.emit(SessionEvent{Kind: SignedIn, Identity: id})
	return token, id, nil
}

// SignOut revokes the session. Signing out an invalid token is a no-op.
func (p *LocalProvider) SignOut(ctx context.Context, token Token) error {
	id, err := p.signer.parse(token, p.now())
	if err != nil {
		return nil
	}
	if err := p.sessions.Revoke(ctx, id.SessionID); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	p.emit(SessionEvent{Kind: SignedOut, Identity: id})
	return nil
}

func (p *LocalProvider) Verify(ctx context.Context, token Token) (Identity, error) {
	id, err := p.signer.parse(token, p.now())
	if err != nil {
		return Identity{}, err
	}
	active, err := p.sessions.Active(ctx, id.SessionID)
	if err != nil {
		return Identity{}, fmt.Errorf("verify session: %w", err)
	}
	if !active {
		return Identity{}, ErrSessionRevoked
	}
	return id, nil
}

func (p *LocalProvider) Subscribe(fn func(SessionEvent)) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.subs[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.subs, id)
		p.mu.Unlock()
	}
}

func (p *LocalProvider) emit(ev SessionEvent) {
	p.mu.RLock()
	subs := make([]func(SessionEvent), 0, len(p.subs))
	for _, fn := range p.subs {
		subs = append(subs, fn)
	}
	p.mu.RUnlock()

	slog.Debug("session event", "kind", ev.Kind.String(), "uid", ev.Identity.UID)
	for _, fn := range subs {
		fn(ev)
	}
}
