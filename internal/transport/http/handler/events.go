package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/storefront-pipeline/internal/domain"
	"github.com/storefront-pipeline/internal/infrastructure/eventbus"
	"github.com/storefront-pipeline/internal/pkg/validate"
)

type publisher interface {
	Publish(ctx context.Context, name string, payload any) (eventbus.Event, error)
}

// payloadCheck rejects a payload before it reaches the bus.
type payloadCheck func(data []byte) error

func checkAs[T any](data []byte) error {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("decode payload: %w", domain.ErrBadRequest)
	}
	return validate.Struct(v)
}

// acceptedEvents lists the names external producers may publish.
var acceptedEvents = map[string]payloadCheck{
	domain.EventUserCreated:              checkAs[domain.IdentityUserEvent],
	domain.EventUserUpdated:              checkAs[domain.IdentityUserEvent],
	domain.EventUserDeleted:              checkAs[domain.IdentityUserEvent],
	domain.EventOrderCreated:             checkAs[domain.OrderCreated],
	domain.EventOrderConfirmationRequest: checkAs[domain.OrderConfirmation],
	domain.EventProductActivated:         checkAs[domain.ProductStatusChanged],
	domain.EventProductDeactivated:       checkAs[domain.ProductStatusChanged],
	domain.EventReviewAdded:              checkAs[domain.ReviewAdded],
}

// EventHandler ingests producer webhooks onto the bus.
type EventHandler struct {
	bus publisher
	log *slog.Logger
}

func NewEventHandler(bus publisher, log *slog.Logger) *EventHandler {
	if log == nil {
		log = slog.Default()
	}
	return &EventHandler{bus: bus, log: log}
}

// Publish accepts POST /v1/events/{name}. The name may contain slashes, so
// the route uses a wildcard.
func (h *EventHandler) Publish(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "*")
	check, ok := acceptedEvents[name]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown event "+name)
		return
	}
	var payload json.RawMessage
	if !decodeBody(w, r, &payload) {
		return
	}
	if err := check(payload); err != nil {
		writeServiceError(w, err)
		return
	}
	ev, err := h.bus.Publish(r.Context(), name, payload)
	if err != nil {
		h.log.Error("publish failed", "event", name, "err", err)
		writeError(w, http.StatusServiceUnavailable, "event bus unavailable")
		return
	}
	writeJSON(w, http.StatusAccepted, EventEnvelope{ID: ev.ID, Name: ev.Name})
}
