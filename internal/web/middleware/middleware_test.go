package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/JonMunkholm/inventory/internal/auth"
	"github.com/JonMunkholm/inventory/internal/core"
)

func echoRemote(w http.ResponseWriter, r *http.Request) {
	_, _ = w.Write([]byte(r.RemoteAddr))
}

func TestTrustedRealIP(t *testing.T) {
	h := TrustedRealIP([]string{"10.0.0.0/8", "192.168.1.5", "not-a-cidr"})(http.HandlerFunc(echoRemote))

	tests := []struct {
		name   string
		remote string
		header string
		value  string
		want   string
	}{
		{"trusted proxy real ip", "10.1.2.3:5000", "X-Real-IP", "203.0.113.9", "203.0.113.9"},
		{"trusted single address", "192.168.1.5:80", "X-Forwarded-For", "198.51.100.1, 10.1.1.1", "198.51.100.1"},
		{"untrusted client spoofing", "203.0.113.50:1234", "X-Real-IP", "1.2.3.4", "203.0.113.50:1234"},
		{"trusted proxy bad header", "10.1.2.3:5000", "X-Real-IP", "garbage", "10.1.2.3:5000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			req.Header.Set(tt.header, tt.value)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Body.String())
		})
	}
}

type stubResolver map[auth.Token]*auth.Session

func (s stubResolver) Resolve(_ context.Context, token auth.Token) (*auth.Session, error) {
	if sess, ok := s[token]; ok {
		return sess, nil
	}
	return nil, errors.New("unknown token")
}

func TestAuthenticateAndRequireRole(t *testing.T) {
	resolver := stubResolver{
		"admin-token": {Identity: auth.Identity{UID: "u1", Email: "a@x.com"}, Profile: &core.UserProfile{Role: core.RoleAdmin}},
		"asst-token":  {Identity: auth.Identity{UID: "u2", Email: "b@x.com"}},
	}
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(core.ActorFromContext(r.Context())))
	})
	adminOnly := Authenticate(resolver, "sid")(RequireRole(core.RoleAdmin)(ok))
	signedIn := Authenticate(resolver, "sid")(RequireSession(ok))

	tests := []struct {
		name     string
		handler  http.Handler
		path     string
		token    string
		cookie   string
		want     int
		location string
	}{
		{"admin passes", adminOnly, "/api/products", "admin-token", "", http.StatusOK, ""},
		{"assistant forbidden", adminOnly, "/api/products", "asst-token", "", http.StatusForbidden, ""},
		{"anonymous api", adminOnly, "/api/products", "", "", http.StatusUnauthorized, ""},
		{"anonymous browser redirected", signedIn, "/dashboard", "", "", http.StatusSeeOther, LoginPath},
		{"assistant browser redirected", adminOnly, "/import", "asst-token", "", http.StatusSeeOther, AccessDeniedPath},
		{"cookie session", signedIn, "/api/session", "", "asst-token", http.StatusOK, ""},
		{"bad token", signedIn, "/api/session", "nope", "", http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: "sid", Value: tt.cookie})
			}
			rec := httptest.NewRecorder()
			tt.handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			if tt.location != "" {
				assert.Equal(t, tt.location, rec.Header().Get("Location"))
			}
		})
	}
}

func TestAuthenticateSetsActor(t *testing.T) {
	resolver := stubResolver{"t": {Identity: auth.Identity{UID: "u1", Email: "ana@example.com"}}}
	h := Authenticate(resolver, "sid")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(core.ActorFromContext(r.Context())))
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	req.Header.Set("Authorization", "Bearer t")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "ana@example.com", rec.Body.String())
}

func TestLoggerKeepsStatus(t *testing.T) {
	h := Logger(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
