// Package auth owns identity and the per-request session.
//
// A Provider signs users in with email and password and issues opaque
// tokens. The Gate listens to provider events, loads the matching profile
// and turns a token into a Session that handlers read roles from.
package auth

import (
	"context"
	"errors"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrSessionRevoked     = errors.New("session expired")
)

// Token is the bearer string handed to clients.
type Token string

// Identity is who a token belongs to, without any role information.
type Identity struct {
	UID       string `json:"uid"`
	Email     string `json:"email"`
	SessionID string `json:"-"`
}

// EventKind distinguishes provider notifications.
type EventKind int

const (
	SignedIn EventKind = iota + 1
	SignedOut
)

func (k EventKind) String() string {
	switch k {
	case SignedIn:
		return "signed_in"
	case SignedOut:
		return "signed_out"
	}
	return "unknown"
}

// SessionEvent is delivered to subscribers synchronously, before the
// provider call that caused it returns.
type SessionEvent struct {
	Kind     EventKind
	Identity Identity
}

// Provider is the identity backend.
type Provider interface {
	SignIn(ctx context.Context, email, password string) (Token, Identity, error)
	SignOut(ctx context.Context, token Token) error
	Verify(ctx context.Context, token Token) (Identity, error)
	Subscribe(fn func(SessionEvent)) (unsubscribe func())
}
