package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/storefront-pipeline/internal/domain"
	"github.com/storefront-pipeline/internal/pkg/mailtmpl"
)

// anonymousAuthor stands in for reviewers whose account is gone.
const anonymousAuthor = "A customer"

// Outcome of a review notification.
const (
	OutcomeSent            = "sent"
	OutcomeProductNotFound = "product_not_found"
	OutcomeOwnerNoEmail    = "owner_without_email"
)

type Service interface {
	// NotifyOwner emails the seller of the reviewed product.
	NotifyOwner(ctx context.Context, ev domain.ReviewAdded) (string, error)
}

type productStore interface {
	Get(ctx context.Context, productID string) (*domain.Product, error)
}

type userStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
}

type emailResolver interface {
	Email(ctx context.Context, userID string) (string, error)
}

type mailer interface {
	Send(ctx context.Context, to, subject, html string) error
}

type renderer interface {
	ReviewAdded(n mailtmpl.ReviewNotice) (mailtmpl.Message, error)
}

type recorder interface {
	Notification(kind, outcome string)
}

type service struct {
	products productStore
	users    userStore
	resolver emailResolver
	mailer   mailer
	renderer renderer
	metrics  recorder
	log      *slog.Logger
}

type ServiceDeps struct {
	ProductRepo productStore
	UserRepo    userStore
	Resolver    emailResolver
	Mailer      mailer
	Renderer    renderer
	Metrics     recorder
	Logger      *slog.Logger
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		products: deps.ProductRepo,
		users:    deps.UserRepo,
		resolver: deps.Resolver,
		mailer:   deps.Mailer,
		renderer: deps.Renderer,
		metrics:  deps.Metrics,
		log:      deps.Logger,
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	return s
}

func (s *service) NotifyOwner(ctx context.Context, ev domain.ReviewAdded) (string, error) {
	product, err := s.products.Get(ctx, ev.ProductID)
	if errors.Is(err, domain.ErrNotFound) {
		s.record(OutcomeProductNotFound)
		return OutcomeProductNotFound, nil
	}
	if err != nil {
		return "", fmt.Errorf("load product %s: %w", ev.ProductID, err)
	}

	to, err := s.resolver.Email(ctx, product.UserID)
	if err != nil {
		return "", fmt.Errorf("resolve owner email of %s: %w", ev.ProductID, err)
	}
	if to == "" {
		s.log.Warn("product owner has no email", "product_id", ev.ProductID, "owner_id", product.UserID)
		s.record(OutcomeOwnerNoEmail)
		return OutcomeOwnerNoEmail, nil
	}

	author, err := s.authorName(ctx, ev.UserID)
	if err != nil {
		return "", err
	}
	msg, err := s.renderer.ReviewAdded(mailtmpl.ReviewNotice{
		ProductID:   product.ProductID,
		ProductName: product.Name,
		Author:      author,
		Rating:      ev.Rating,
		Comment:     ev.Comment,
	})
	if err != nil {
		return "", err
	}
	if err := s.mailer.Send(ctx, to, msg.Subject, msg.HTML); err != nil {
		s.record("failed")
		return "", fmt.Errorf("send review notice for %s: %w", ev.ReviewID, err)
	}
	s.record(OutcomeSent)
	return OutcomeSent, nil
}

func (s *service) authorName(ctx context.Context, userID string) (string, error) {
	u, err := s.users.Get(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return anonymousAuthor, nil
	}
	if err != nil {
		return "", fmt.Errorf("load review author %s: %w", userID, err)
	}
	if u.Name == "" {
		return anonymousAuthor, nil
	}
	return u.Name, nil
}

func (s *service) record(outcome string) {
	if s.metrics != nil {
		s.metrics.Notification("review", outcome)
	}
}
