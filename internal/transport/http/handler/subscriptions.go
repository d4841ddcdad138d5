package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/storefront-pipeline/internal/application/subscription"
	"github.com/storefront-pipeline/internal/domain"
	"github.com/storefront-pipeline/internal/pkg/validate"
	"github.com/storefront-pipeline/internal/transport/http/middleware"
)

// SubscriptionHandler handles "notify me when available" requests of the
// signed-in shopper.
type SubscriptionHandler struct {
	svc subscription.Service
}

func NewSubscriptionHandler(svc subscription.Service) *SubscriptionHandler {
	return &SubscriptionHandler{svc: svc}
}

func (h *SubscriptionHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req domain.SubscribeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	sub, err := h.svc.Subscribe(r.Context(), claims.UserID(), req.ProductID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

func (h *SubscriptionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.svc.Unsubscribe(r.Context(), claims.UserID(), chi.URLParam(r, "productId")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SubscriptionHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	subs, err := h.svc.ListForUser(r.Context(), claims.UserID())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SubscriptionsEnvelope{Data: subs})
}
