package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/inventory/internal/auth"
	"github.com/JonMunkholm/inventory/internal/core"
	"github.com/JonMunkholm/inventory/internal/logging"
)

type profileRequest struct {
	Name     *string `json:"name"`
	LastName *string `json:"lastName"`
}

type roleRequest struct {
	Role string `json:"role"`
}

// handleUpdateProfile edits the caller's own name and last name.
func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	uid := auth.FromContext(r.Context()).Identity.UID

	p, err := s.service.UpdateProfile(r.Context(), uid, core.ProfileUpdate{Name: req.Name, LastName: req.LastName})
	if err != nil {
		respondError(w, r, err)
		return
	}
	s.gate.Invalidate(uid)
	writeJSON(w, http.StatusOK, p)
}

// handleSetRole changes another user's role. The cached profile is dropped
// so the next request of that user sees the new role.
func (s *Server) handleSetRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	role := core.Role(req.Role)
	uid := chi.URLParam(r, "uid")

	p, err := s.service.UpdateProfile(r.Context(), uid, core.ProfileUpdate{Role: &role})
	if err != nil {
		respondError(w, r, err)
		return
	}
	s.gate.Invalidate(uid)

	logging.FromContext(r.Context()).Info("role changed",
		"uid", uid,
		"role", p.Role,
		"by", auth.FromContext(r.Context()).Identity.UID,
	)
	writeJSON(w, http.StatusOK, p)
}
