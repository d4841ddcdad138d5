package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/storefront-pipeline/internal/domain"
	"github.com/storefront-pipeline/internal/pkg/mailtmpl"
)

// Fan-out terminal states.
const (
	StatusCompleted       = "completed"
	StatusProductNotFound = "product_not_found"
	StatusNothingToDo     = "nothing_to_do"
)

// Per-recipient outcomes.
const (
	OutcomeSent    = "sent"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

const notificationKind = "back_in_stock"

type Service interface {
	Subscribe(ctx context.Context, userID, productID string) (*domain.Subscription, error)
	Unsubscribe(ctx context.Context, userID, productID string) error
	ListForUser(ctx context.Context, userID string) ([]domain.Subscription, error)
	// NotifyActivation emails every subscriber still waiting on productID.
	// Recipient failures are recorded in the result and never abort the loop.
	NotifyActivation(ctx context.Context, productID string) (FanoutResult, error)
	// ResetForProduct re-arms every subscription of productID.
	ResetForProduct(ctx context.Context, productID string) (int, error)
}

// RecipientResult is the outcome for one subscriber of a fan-out.
type RecipientResult struct {
	UserID  string `json:"user_id"`
	Email   string `json:"email,omitempty"`
	Outcome string `json:"outcome"`
	Reason  string `json:"reason,omitempty"`
}

type FanoutResult struct {
	ProductID  string            `json:"product_id"`
	Status     string            `json:"status"`
	Sent       int               `json:"sent"`
	Skipped    int               `json:"skipped"`
	Failed     int               `json:"failed"`
	Recipients []RecipientResult `json:"recipients,omitempty"`
}

func (r *FanoutResult) add(rr RecipientResult) {
	switch rr.Outcome {
	case OutcomeSent:
		r.Sent++
	case OutcomeSkipped:
		r.Skipped++
	default:
		r.Failed++
	}
	r.Recipients = append(r.Recipients, rr)
}

type subscriptionStore interface {
	Create(ctx context.Context, s *domain.Subscription) error
	Delete(ctx context.Context, productID, userID string) error
	ListPending(ctx context.Context, productID string) ([]domain.Subscription, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Subscription, error)
	MarkNotified(ctx context.Context, productID, userID string) error
	ResetNotified(ctx context.Context, productID string) (int, error)
}

type productStore interface {
	Get(ctx context.Context, productID string) (*domain.Product, error)
}

type emailResolver interface {
	Email(ctx context.Context, userID string) (string, error)
}

type mailer interface {
	Send(ctx context.Context, to, subject, html string) error
}

type renderer interface {
	BackInStock(p *domain.Product) (mailtmpl.Message, error)
}

type recorder interface {
	Notification(kind, outcome string)
}

type nopRecorder struct{}

func (nopRecorder) Notification(string, string) {}

type service struct {
	subs            subscriptionStore
	products        productStore
	resolver        emailResolver
	mailer          mailer
	renderer        renderer
	metrics         recorder
	outboundTimeout time.Duration
	log             *slog.Logger
	now             func() time.Time
}

type ServiceDeps struct {
	SubscriptionRepo subscriptionStore
	ProductRepo      productStore
	Resolver         emailResolver
	Mailer           mailer
	Renderer         renderer
	Metrics          recorder
	// OutboundTimeout bounds each identity lookup and each send. Zero means
	// only the caller's context applies.
	OutboundTimeout time.Duration
	Logger          *slog.Logger
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		subs:            deps.SubscriptionRepo,
		products:        deps.ProductRepo,
		resolver:        deps.Resolver,
		mailer:          deps.Mailer,
		renderer:        deps.Renderer,
		metrics:         deps.Metrics,
		outboundTimeout: deps.OutboundTimeout,
		log:             deps.Logger,
		now:             time.Now,
	}
	if s.metrics == nil {
		s.metrics = nopRecorder{}
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	return s
}

func (s *service) Subscribe(ctx context.Context, userID, productID string) (*domain.Subscription, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(productID) == "" {
		return nil, fmt.Errorf("user id and product id are required: %w", domain.ErrBadRequest)
	}
	if _, err := s.products.Get(ctx, productID); err != nil {
		return nil, err
	}
	sub := &domain.Subscription{
		ProductID: productID,
		UserID:    userID,
		Notified:  false,
		CreatedAt: s.now().UTC(),
	}
	if err := s.subs.Create(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *service) Unsubscribe(ctx context.Context, userID, productID string) error {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(productID) == "" {
		return fmt.Errorf("user id and product id are required: %w", domain.ErrBadRequest)
	}
	return s.subs.Delete(ctx, productID, userID)
}

func (s *service) ListForUser(ctx context.Context, userID string) ([]domain.Subscription, error) {
	return s.subs.ListByUser(ctx, userID)
}

func (s *service) NotifyActivation(ctx context.Context, productID string) (FanoutResult, error) {
	res := FanoutResult{ProductID: productID}

	product, err := s.products.Get(ctx, productID)
	if isNotFound(err) {
		res.Status = StatusProductNotFound
		return res, nil
	}
	if err != nil {
		return res, fmt.Errorf("load product %s: %w", productID, err)
	}

	pending, err := s.subs.ListPending(ctx, productID)
	if err != nil {
		return res, fmt.Errorf("list pending subscriptions of %s: %w", productID, err)
	}
	if len(pending) == 0 {
		res.Status = StatusNothingToDo
		return res, nil
	}

	msg, err := s.renderer.BackInStock(product)
	if err != nil {
		return res, err
	}

	for _, sub := range pending {
		rr := s.notifyOne(ctx, sub, msg)
		s.metrics.Notification(notificationKind, rr.Outcome)
		if rr.Outcome == OutcomeFailed {
			s.log.Warn("back in stock notification failed",
				"product_id", productID, "user_id", sub.UserID, "reason", rr.Reason)
		}
		res.add(rr)
	}
	res.Status = StatusCompleted
	s.log.Info("activation fan-out finished",
		"product_id", productID, "sent", res.Sent, "skipped", res.Skipped, "failed", res.Failed)
	return res, nil
}

func (s *service) notifyOne(ctx context.Context, sub domain.Subscription, msg mailtmpl.Message) RecipientResult {
	rr := RecipientResult{UserID: sub.UserID}

	email, err := s.withTimeout(ctx, func(ctx context.Context) (string, error) {
		return s.resolver.Email(ctx, sub.UserID)
	})
	if err != nil {
		rr.Outcome, rr.Reason = OutcomeFailed, "resolve email: "+err.Error()
		return rr
	}
	if email == "" {
		rr.Outcome, rr.Reason = OutcomeSkipped, "no email address"
		return rr
	}
	rr.Email = email

	_, err = s.withTimeout(ctx, func(ctx context.Context) (string, error) {
		return "", s.mailer.Send(ctx, email, msg.Subject, msg.HTML)
	})
	if err != nil {
		rr.Outcome, rr.Reason = OutcomeFailed, "send: "+err.Error()
		return rr
	}

	if err := s.subs.MarkNotified(ctx, sub.ProductID, sub.UserID); err != nil {
		if isNotFound(err) {
			// Unsubscribed while the email was in flight.
			rr.Outcome = OutcomeSent
			return rr
		}
		rr.Outcome, rr.Reason = OutcomeFailed, "mark notified: "+err.Error()
		return rr
	}
	rr.Outcome = OutcomeSent
	return rr
}

func (s *service) withTimeout(ctx context.Context, fn func(context.Context) (string, error)) (string, error) {
	if s.outboundTimeout <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, s.outboundTimeout)
	defer cancel()
	return fn(ctx)
}

func (s *service) ResetForProduct(ctx context.Context, productID string) (int, error) {
	n, err := s.subs.ResetNotified(ctx, productID)
	if err != nil {
		return n, fmt.Errorf("reset subscriptions of %s: %w", productID, err)
	}
	if n > 0 {
		s.log.Info("subscriptions re-armed", "product_id", productID, "count", n)
	}
	return n, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
