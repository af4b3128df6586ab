package web

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/inventory/internal/core"
)

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.service.ListCategories(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	if cats == nil {
		cats = []core.Category{}
	}
	writeJSON(w, http.StatusOK, cats)
}

type categoryRequest struct {
	Name string `json:"nombre"`
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	c, err := s.service.CreateCategory(requestContext(r), req.Name)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteCategory(requestContext(r), chi.URLParam(r, "id")); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := s.service.Dashboard(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleWarehouseGrid(w http.ResponseWriter, r *http.Request) {
	g, err := s.service.WarehouseGrid(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// handleListLocations returns the flat slot list. occupied=true keeps only
// non-empty slots, ordered by sort (location, quantity or volume).
func (s *Server) handleListLocations(w http.ResponseWriter, r *http.Request) {
	g, err := s.service.WarehouseGrid(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}

	var slots []*core.Slot
	if r.URL.Query().Get("occupied") == "true" {
		slots = g.OccupiedSlots(strings.ToLower(r.URL.Query().Get("sort")))
	} else {
		slots = g.Slots()
	}
	if slots == nil {
		slots = []*core.Slot{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"summary": g.Summary,
		"slots":   slots,
	})
}

func (s *Server) handleLocationDetail(w http.ResponseWriter, r *http.Request) {
	g, err := s.service.WarehouseGrid(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	slot, ok := g.Slot(chi.URLParam(r, "location"))
	if !ok {
		respondError(w, r, core.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, slot)
}
