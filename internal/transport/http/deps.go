package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/storefront-pipeline/internal/application/catalog"
	"github.com/storefront-pipeline/internal/application/subscription"
	"github.com/storefront-pipeline/internal/infrastructure/eventbus"
	jwtinfra "github.com/storefront-pipeline/internal/infrastructure/jwt"
	"github.com/storefront-pipeline/internal/transport/http/handler"
)

// Publisher is the part of the event bus the router needs.
type Publisher interface {
	Publish(ctx context.Context, name string, payload any) (eventbus.Event, error)
}

// TokenVerifier checks shopper and seller session tokens.
type TokenVerifier interface {
	Verify(token string) (*jwtinfra.Claims, error)
}

// Deps holds everything the router serves.
type Deps struct {
	Bus           Publisher
	Catalog       catalog.Service
	Subscriptions subscription.Service
	// Verifier is optional; without it authenticated routes reject every request.
	Verifier TokenVerifier
	Metrics  http.Handler
	Checks   map[string]handler.Check
	Logger   *slog.Logger
}
