package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/JonMunkholm/inventory/internal/auth"
	"github.com/JonMunkholm/inventory/internal/core"
	"github.com/JonMunkholm/inventory/internal/logging"
	"github.com/JonMunkholm/inventory/internal/web/middleware"
)

// maxJSONBody bounds non-upload request bodies.
const maxJSONBody = 1 << 20

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SessionView is the session as returned to clients.
type SessionView struct {
	UID         string            `json:"uid"`
	Email       string            `json:"email"`
	DisplayName string            `json:"displayName"`
	Role        core.Role         `json:"role"`
	IsAdmin     bool              `json:"isAdmin"`
	Profile     *core.UserProfile `json:"profile"`
}

func newSessionView(s *auth.Session) SessionView {
	return SessionView{
		UID:         s.Identity.UID,
		Email:       s.Identity.Email,
		DisplayName: s.DisplayName(),
		Role:        s.Role(),
		IsAdmin:     s.IsAdmin(),
		Profile:     s.Profile,
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		respondError(w, r, auth.ErrInvalidCredentials)
		return
	}

	token, sess, err := s.gate.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		respondError(w, r, err)
		return
	}

	logging.FromContext(r.Context()).Info("signed in", "uid", sess.Identity.UID, "role", sess.Role())
	s.setSessionCookie(w, string(token), int(s.cfg.Auth.TokenTTL.Seconds()))
	writeJSON(w, http.StatusOK, map[string]any{
		"token":   token,
		"session": newSessionView(sess),
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := middleware.TokenFromRequest(r, s.cfg.Auth.CookieName)
	if token != "" {
		if err := s.gate.SignOut(r.Context(), token); err != nil {
			respondError(w, r, err)
			return
		}
	}
	s.setSessionCookie(w, "", -1)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newSessionView(auth.FromContext(r.Context())))
}

func (s *Server) setSessionCookie(w http.ResponseWriter, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.Auth.CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.cfg.Security.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}
