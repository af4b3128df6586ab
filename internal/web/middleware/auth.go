package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/JonMunkholm/inventory/internal/auth"
	"github.com/JonMunkholm/inventory/internal/core"
	"github.com/JonMunkholm/inventory/internal/logging"
)

// Login and access-denied pages for browser redirects.
const (
	LoginPath        = "/login"
	AccessDeniedPath = "/access-denied"
)

// Resolver turns a token into a session.
type Resolver interface {
	Resolve(ctx context.Context, token auth.Token) (*auth.Session, error)
}

// TokenFromRequest reads a bearer token, falling back to the session cookie.
func TokenFromRequest(r *http.Request, cookieName string) auth.Token {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return auth.Token(strings.TrimSpace(token))
		}
	}
	if c, err := r.Cookie(cookieName); err == nil {
		return auth.Token(c.Value)
	}
	return ""
}

// Authenticate attaches the session to the request context when the token
// resolves. Requests without a valid token pass through unauthenticated.
func Authenticate(resolver Resolver, cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromRequest(r, cookieName)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			sess, err := resolver.Resolve(r.Context(), token)
			if err != nil {
				logging.FromContext(r.Context()).Debug("auth: token rejected", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			ctx := auth.WithSession(r.Context(), sess)
			ctx = core.ContextWithActor(ctx, sess.Identity.Email)
			ctx = logging.ContextWith(ctx, "uid", sess.Identity.UID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireSession answers 401 for API calls and redirects browsers to the
// login page when there is no session.
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth.FromContext(r.Context()) == nil {
			deny(w, r, http.StatusUnauthorized, LoginPath, "AUTH002", "Your session has expired")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole lets only sessions holding role through.
func RequireRole(role core.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := auth.FromContext(r.Context())
			if sess == nil {
				deny(w, r, http.StatusUnauthorized, LoginPath, "AUTH002", "Your session has expired")
				return
			}
			if sess.Role() != role {
				slog.Warn("auth: role denied",
					"path", r.URL.Path,
					"uid", sess.Identity.UID,
					"role", sess.Role(),
					"required", role,
				)
				deny(w, r, http.StatusForbidden, AccessDeniedPath, "AUTH003", "You do not have permission to perform this action")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func deny(w http.ResponseWriter, r *http.Request, status int, redirect, code, message string) {
	if !strings.HasPrefix(r.URL.Path, "/api/") && !strings.Contains(r.Header.Get("Accept"), "application/json") {
		http.Redirect(w, r, redirect, http.StatusSeeOther)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   message,
		"message": message,
		"code":    code,
	})
}
