package catalog

import (
	"context"
	"fmt"

	"github.com/storefront-pipeline/internal/domain"
	"github.com/storefront-pipeline/internal/infrastructure/eventbus"
)

type Service interface {
	// SetStatus moves a product between active and inactive and announces the
	// transition. Only the product's owner may change it.
	SetStatus(ctx context.Context, actorID, productID, status string) (*domain.Product, error)
}

type productStore interface {
	Get(ctx context.Context, productID string) (*domain.Product, error)
	UpdateStatus(ctx context.Context, productID, status string) error
}

type publisher interface {
	Publish(ctx context.Context, name string, payload any) (eventbus.Event, error)
}

type service struct {
	products productStore
	bus      publisher
}

type ServiceDeps struct {
	ProductRepo productStore
	Bus         publisher
}

func NewService(deps ServiceDeps) Service {
	return &service{products: deps.ProductRepo, bus: deps.Bus}
}

func (s *service) SetStatus(ctx context.Context, actorID, productID, status string) (*domain.Product, error) {
	var event string
	switch status {
	case domain.ProductStatusActive:
		event = domain.EventProductActivated
	case domain.ProductStatusInactive:
		event = domain.EventProductDeactivated
	default:
		return nil, fmt.Errorf("unknown product status %q: %w", status, domain.ErrBadRequest)
	}

	p, err := s.products.Get(ctx, productID)
	if err != nil {
		return nil, err
	}
	if p.UserID != actorID {
		return nil, fmt.Errorf("product %s belongs to another seller: %w", productID, domain.ErrForbidden)
	}
	if err := s.products.UpdateStatus(ctx, productID, status); err != nil {
		return nil, err
	}
	p.Status = status

	if _, err := s.bus.Publish(ctx, event, domain.ProductStatusChanged{ProductID: productID}); err != nil {
		return p, fmt.Errorf("publish %s for %s: %w", event, productID, err)
	}
	return p, nil
}
