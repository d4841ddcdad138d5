// Package events binds the application services to the event bus.
package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/storefront-pipeline/internal/application/identity"
	"github.com/storefront-pipeline/internal/application/order"
	"github.com/storefront-pipeline/internal/application/retention"
	"github.com/storefront-pipeline/internal/application/review"
	"github.com/storefront-pipeline/internal/application/subscription"
	"github.com/storefront-pipeline/internal/domain"
	"github.com/storefront-pipeline/internal/infrastructure/eventbus"
	"github.com/storefront-pipeline/internal/pkg/validate"
)

// Subscription ids. They key de-duplication records, so renaming one makes
// the bus forget which events it already handled.
const (
	SubUserCreated       = "identity.sync-created"
	SubUserUpdated       = "identity.sync-updated"
	SubUserDeleted       = "identity.delete-cascade"
	SubOrderIngest       = "orders.ingest"
	SubOrderConfirmation = "orders.confirmation-email"
	SubProductActivated  = "subscriptions.notify-activation"
	SubProductDeactivate = "subscriptions.reset"
	SubReviewAdded       = "reviews.notify-owner"
	SubRetentionSweep    = "retention.sweep"
)

// Bus is the part of eventbus.Bus the pipeline registers against.
type Bus interface {
	Subscribe(subID, name string, h eventbus.Handler, opts ...eventbus.Option) error
	SubscribeBatch(subID, name string, h eventbus.BatchHandler, p eventbus.BatchPolicy, opts ...eventbus.Option) error
	SubscribeCron(subID string, at eventbus.DailyAt, h eventbus.Handler, opts ...eventbus.Option) error
}

type Services struct {
	Identity      identity.Service
	Orders        order.Service
	Subscriptions subscription.Service
	Reviews       review.Service
	Retention     retention.Service
}

type Config struct {
	OrderBatch  eventbus.BatchPolicy
	RetentionAt eventbus.DailyAt
}

type pipeline struct {
	svc Services
	log *slog.Logger
}

// Register subscribes every handler. It stops at the first registration error.
func Register(bus Bus, svc Services, cfg Config, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}
	p := &pipeline{svc: svc, log: log}

	regs := []func() error{
		func() error { return bus.Subscribe(SubUserCreated, domain.EventUserCreated, p.syncUser) },
		func() error { return bus.Subscribe(SubUserUpdated, domain.EventUserUpdated, p.syncUser) },
		func() error { return bus.Subscribe(SubUserDeleted, domain.EventUserDeleted, p.deleteUser) },
		func() error {
			return bus.SubscribeBatch(SubOrderIngest, domain.EventOrderCreated, p.ingestOrders, cfg.OrderBatch)
		},
		func() error {
			return bus.Subscribe(SubOrderConfirmation, domain.EventOrderConfirmationRequest, p.confirmOrder)
		},
		func() error { return bus.Subscribe(SubProductActivated, domain.EventProductActivated, p.notifyActivation) },
		func() error { return bus.Subscribe(SubProductDeactivate, domain.EventProductDeactivated, p.resetSubscriptions) },
		func() error { return bus.Subscribe(SubReviewAdded, domain.EventReviewAdded, p.notifyReview) },
		func() error { return bus.SubscribeCron(SubRetentionSweep, cfg.RetentionAt, p.sweep) },
	}
	for _, reg := range regs {
		if err := reg(); err != nil {
			return err
		}
	}
	return nil
}

func (p *pipeline) syncUser(ctx context.Context, ev eventbus.Event) error {
	in, err := decode[domain.IdentityUserEvent](ev)
	if err != nil {
		return err
	}
	if _, err := p.svc.Identity.SyncUser(ctx, in); err != nil {
		return classify(err)
	}
	p.log.Info("user synced", "event", ev.Name, "user_id", in.ID)
	return nil
}

func (p *pipeline) deleteUser(ctx context.Context, ev eventbus.Event) error {
	in, err := decode[domain.IdentityUserEvent](ev)
	if err != nil {
		return err
	}
	res, err := p.svc.Identity.DeleteUser(ctx, in.ID)
	if err != nil {
		return classify(err)
	}
	p.log.Info("user deleted", "user_id", in.ID,
		"products", res.Products, "reviews", res.Reviews, "addresses", res.Addresses,
		"subscriptions", res.Subscriptions, "media", res.MediaObjects)
	return nil
}

// ingestOrders drops payloads that can never be stored and ingests the rest.
// A batch with nothing valid left fails permanently.
func (p *pipeline) ingestOrders(ctx context.Context, evs []eventbus.Event) error {
	batch := make([]domain.OrderCreated, 0, len(evs))
	for _, ev := range evs {
		in, err := decode[domain.OrderCreated](ev)
		if err != nil {
			p.log.Error("dropping invalid order event", "event_id", ev.ID, "err", err)
			continue
		}
		batch = append(batch, in)
	}
	if len(batch) == 0 {
		return eventbus.Permanent(fmt.Errorf("no valid orders in batch of %d: %w", len(evs), domain.ErrBadRequest))
	}
	res, err := p.svc.Orders.Ingest(ctx, batch)
	if err != nil {
		return classify(err)
	}
	p.log.Info("orders ingested", "batch", len(evs), "processed", res.Processed, "duplicates", res.Duplicates)
	return nil
}

func (p *pipeline) confirmOrder(ctx context.Context, ev eventbus.Event) error {
	in, err := decode[domain.OrderConfirmation](ev)
	if err != nil {
		return err
	}
	if err := p.svc.Orders.SendConfirmation(ctx, in); err != nil {
		return classify(err)
	}
	return nil
}

func (p *pipeline) notifyActivation(ctx context.Context, ev eventbus.Event) error {
	in, err := decode[domain.ProductStatusChanged](ev)
	if err != nil {
		return err
	}
	res, err := p.svc.Subscriptions.NotifyActivation(ctx, in.ProductID)
	if err != nil {
		return classify(err)
	}
	if res.Status == subscription.StatusProductNotFound {
		p.log.Warn("activated product not found", "product_id", in.ProductID, "event_id", ev.ID)
	}
	return nil
}

func (p *pipeline) resetSubscriptions(ctx context.Context, ev eventbus.Event) error {
	in, err := decode[domain.ProductStatusChanged](ev)
	if err != nil {
		return err
	}
	_, err = p.svc.Subscriptions.ResetForProduct(ctx, in.ProductID)
	return classify(err)
}

func (p *pipeline) notifyReview(ctx context.Context, ev eventbus.Event) error {
	in, err := decode[domain.ReviewAdded](ev)
	if err != nil {
		return err
	}
	outcome, err := p.svc.Reviews.NotifyOwner(ctx, in)
	if err != nil {
		return classify(err)
	}
	p.log.Info("review notification", "review_id", in.ReviewID, "outcome", outcome)
	return nil
}

// sweep runs relative to the timer event's timestamp so a retried delivery
// uses the same cutoffs.
func (p *pipeline) sweep(ctx context.Context, ev eventbus.Event) error {
	res, err := p.svc.Retention.Sweep(ctx, ev.Timestamp)
	if err != nil {
		return err
	}
	p.log.Info("retention sweep finished",
		"subscriptions_deleted", res.SubscriptionsDeleted, "orders_deleted", res.OrdersDeleted)
	return nil
}

func decode[T any](ev eventbus.Event) (T, error) {
	var v T
	if err := ev.Decode(&v); err != nil {
		return v, eventbus.Permanent(fmt.Errorf("decode %s %s: %w", ev.Name, ev.ID, err))
	}
	if err := validate.Struct(v); err != nil {
		return v, eventbus.Permanent(fmt.Errorf("invalid %s %s: %w", ev.Name, ev.ID, err))
	}
	return v, nil
}

// classify marks failures that a retry cannot fix.
func classify(err error) error {
	if errors.Is(err, domain.ErrBadRequest) || errors.Is(err, domain.ErrNotFound) {
		return eventbus.Permanent(err)
	}
	return err
}
