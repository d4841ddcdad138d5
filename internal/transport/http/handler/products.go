package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/storefront-pipeline/internal/application/catalog"
	"github.com/storefront-pipeline/internal/domain"
	"github.com/storefront-pipeline/internal/pkg/validate"
	"github.com/storefront-pipeline/internal/transport/http/middleware"
)

// ProductHandler handles seller-side product transitions.
type ProductHandler struct {
	svc catalog.Service
}

func NewProductHandler(svc catalog.Service) *ProductHandler { return &ProductHandler{svc: svc} }

func (h *ProductHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req domain.UpdateProductStatusRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	p, err := h.svc.SetStatus(r.Context(), claims.UserID(), chi.URLParam(r, "id"), req.Status)
	if err != nil && p == nil {
		writeServiceError(w, err)
		return
	}
	if err != nil {
		// Stored, but the transition event was not published.
		writeJSON(w, http.StatusAccepted, p)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
