package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/storefront-pipeline/internal/domain"
)

type Service interface {
	// SyncUser creates or overwrites the local copy of an identity-provider
	// account. Applying the same event twice leaves one record.
	SyncUser(ctx context.Context, ev domain.IdentityUserEvent) (*domain.User, error)
	// DeleteUser removes the user and everything the user owns. Every step is
	// delete-if-exists, so re-running after a partial failure is safe.
	DeleteUser(ctx context.Context, userID string) (DeletionResult, error)
}

// DeletionResult counts what a cascade removed.
type DeletionResult struct {
	Products      int
	Reviews       int
	Addresses     int
	Subscriptions int
	MediaObjects  int
}

type userStore interface {
	Upsert(ctx context.Context, u *domain.User) error
	Delete(ctx context.Context, userID string) error
}

type ownedStore interface {
	DeleteByUser(ctx context.Context, userID string) (int, error)
}

type productStore interface {
	DeleteByOwner(ctx context.Context, userID string) (int, error)
}

type mediaStore interface {
	DeletePrefix(ctx context.Context, prefix string) (int, error)
}

type service struct {
	users         userStore
	products      productStore
	reviews       ownedStore
	addresses     ownedStore
	subscriptions ownedStore
	media         mediaStore
	mediaPrefix   func(userID string) string
	log           *slog.Logger
	now           func() time.Time
}

type ServiceDeps struct {
	UserRepo         userStore
	ProductRepo      productStore
	ReviewRepo       ownedStore
	AddressRepo      ownedStore
	SubscriptionRepo ownedStore
	// Media is optional; without it uploads are left in place.
	Media       mediaStore
	MediaPrefix func(userID string) string
	Logger      *slog.Logger
}

func NewService(deps ServiceDeps) Service {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	return &service{
		users:         deps.UserRepo,
		products:      deps.ProductRepo,
		reviews:       deps.ReviewRepo,
		addresses:     deps.AddressRepo,
		subscriptions: deps.SubscriptionRepo,
		media:         deps.Media,
		mediaPrefix:   deps.MediaPrefix,
		log:           log,
		now:           time.Now,
	}
}

func (s *service) SyncUser(ctx context.Context, ev domain.IdentityUserEvent) (*domain.User, error) {
	if strings.TrimSpace(ev.ID) == "" {
		return nil, fmt.Errorf("identity event without id: %w", domain.ErrBadRequest)
	}
	u := &domain.User{
		UserID:    ev.ID,
		Name:      ev.DisplayName(),
		Email:     ev.Email(),
		ImageURL:  ev.AvatarURL,
		UpdatedAt: s.now().UTC(),
	}
	if err := s.users.Upsert(ctx, u); err != nil {
		return nil, fmt.Errorf("upsert user %s: %w", ev.ID, err)
	}
	return u, nil
}

func (s *service) DeleteUser(ctx context.Context, userID string) (DeletionResult, error) {
	var res DeletionResult
	if strings.TrimSpace(userID) == "" {
		return res, fmt.Errorf("identity event without id: %w", domain.ErrBadRequest)
	}

	var errs []error
	step := func(name string, n *int, fn func() (int, error)) {
		deleted, err := fn()
		*n = deleted
		if err != nil {
			s.log.Warn("user cascade step failed", "user_id", userID, "step", name, "err", err)
			errs = append(errs, fmt.Errorf("delete %s of %s: %w", name, userID, err))
		}
	}

	step("products", &res.Products, func() (int, error) { return s.products.DeleteByOwner(ctx, userID) })
	step("reviews", &res.Reviews, func() (int, error) { return s.reviews.DeleteByUser(ctx, userID) })
	step("addresses", &res.Addresses, func() (int, error) { return s.addresses.DeleteByUser(ctx, userID) })
	if s.subscriptions != nil {
		step("subscriptions", &res.Subscriptions, func() (int, error) { return s.subscriptions.DeleteByUser(ctx, userID) })
	}
	if s.media != nil && s.mediaPrefix != nil {
		step("media", &res.MediaObjects, func() (int, error) { return s.media.DeletePrefix(ctx, s.mediaPrefix(userID)) })
	}

	if err := s.users.Delete(ctx, userID); err != nil {
		errs = append(errs, fmt.Errorf("delete user %s: %w", userID, err))
	}
	return res, errors.Join(errs...)
}
