package auth

import (
	"context"

	"github.com/JonMunkholm/inventory/internal/core"
)

// Session is the signed-in user for one request. Profile is nil when the
// user has no profile document.
type Session struct {
	Identity Identity
	Profile  *core.UserProfile
}

// Role falls back to assistant when there is no profile.
func (s *Session) Role() core.Role {
	if s == nil || s.Profile == nil || s.Profile.Role == "" {
		return core.RoleAssistant
	}
	return s.Profile.Role
}

func (s *Session) IsAdmin() bool { return s.Role() == core.RoleAdmin }

// DisplayName prefers the profile's full name over the email.
func (s *Session) DisplayName() string {
	if s.Profile != nil {
		if name := s.Profile.FullName(); name != "" {
			return name
		}
	}
	return s.Identity.Email
}

type sessionKey struct{}

func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// FromContext returns nil outside an authenticated request.
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionKey{}).(*Session)
	return s
}
