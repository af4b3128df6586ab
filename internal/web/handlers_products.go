package web

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/inventory/internal/core"
)

// handleListProducts returns products newest first. Optional filters:
// category (exact) and q (name or SKU substring, case-insensitive).
func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.service.ListProducts(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}

	category := strings.TrimSpace(r.URL.Query().Get("category"))
	q := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("q")))
	if category != "" || q != "" {
		filtered := products[:0]
		for _, p := range products {
			if category != "" && p.Category != category {
				continue
			}
			if q != "" && !strings.Contains(strings.ToLower(p.Name), q) && !strings.Contains(strings.ToLower(p.SKU), q) {
				continue
			}
			filtered = append(filtered, p)
		}
		products = filtered
	}
	if products == nil {
		products = []core.Product{}
	}
	writeJSON(w, http.StatusOK, products)
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := s.service.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handleCheckSKU reports whether sku is free, ignoring the product being
// edited (exclude).
func (s *Server) handleCheckSKU(w http.ResponseWriter, r *http.Request) {
	sku := r.URL.Query().Get("sku")
	existing, err := s.service.CheckSKU(r.Context(), sku, r.URL.Query().Get("exclude"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sku":       strings.TrimSpace(sku),
		"available": existing == nil,
		"product":   existing,
	})
}

func (s *Server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var p core.Product
	if err := decodeJSON(w, r, &p); err != nil {
		respondError(w, r, err)
		return
	}
	created, err := s.service.CreateProduct(requestContext(r), p)
	if err != nil {
		respondProductError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	var p core.Product
	if err := decodeJSON(w, r, &p); err != nil {
		respondError(w, r, err)
		return
	}
	updated, err := s.service.UpdateProduct(requestContext(r), chi.URLParam(r, "id"), p)
	if err != nil {
		respondProductError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

type stockRequest struct {
	Stock *int `json:"stock"`
}

// handleUpdateStock is open to every signed-in role.
func (s *Server) handleUpdateStock(w http.ResponseWriter, r *http.Request) {
	var req stockRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if req.Stock == nil {
		respondError(w, r, core.ErrInvalidStock)
		return
	}
	id := chi.URLParam(r, "id")
	if err := s.service.UpdateStock(requestContext(r), id, *req.Stock); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "stock": *req.Stock})
}

func (s *Server) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteProduct(requestContext(r), chi.URLParam(r, "id")); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// productErrorResponse adds per-field details to validation failures.
type productErrorResponse struct {
	ErrorResponse
	Fields core.ValidationErrors `json:"fields,omitempty"`
	SKU    string                `json:"sku,omitempty"`
	InUse  string                `json:"existingProduct,omitempty"`
}

func respondProductError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		fields core.ValidationErrors
		dup    *core.DuplicateSKUError
	)
	isFields := errors.As(err, &fields)
	isDup := errors.As(err, &dup)
	if !isFields && !isDup {
		respondError(w, r, err)
		return
	}

	msg := core.MapError(err)
	body := productErrorResponse{
		ErrorResponse: ErrorResponse{Error: msg.Message, Message: msg.Message, Action: msg.Action, Code: msg.Code},
		Fields:        fields,
	}
	if isDup {
		body.SKU, body.InUse = dup.SKU, dup.Existing
	}
	writeJSON(w, statusFor(err), body)
}
