package order

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/storefront-pipeline/internal/domain"
	"github.com/storefront-pipeline/internal/pkg/id"
	"github.com/storefront-pipeline/internal/pkg/mailtmpl"
)

type Service interface {
	// Ingest writes a batch of order/created payloads with one bulk insert.
	Ingest(ctx context.Context, batch []domain.OrderCreated) (IngestResult, error)
	// SendConfirmation emails the buyer an itemized summary of the order.
	SendConfirmation(ctx context.Context, c domain.OrderConfirmation) error
}

// IngestResult reports how many orders of a batch were written and how many
// already existed from an earlier delivery.
type IngestResult struct {
	Processed  int `json:"processed"`
	Duplicates int `json:"duplicates"`
}

type orderStore interface {
	BulkInsert(ctx context.Context, orders []domain.Order) (inserted, duplicates int, err error)
}

type productStore interface {
	Get(ctx context.Context, productID string) (*domain.Product, error)
}

type addressStore interface {
	Get(ctx context.Context, addressID string) (*domain.Address, error)
}

type emailResolver interface {
	Email(ctx context.Context, userID string) (string, error)
}

type mailer interface {
	Send(ctx context.Context, to, subject, html string) error
}

type renderer interface {
	OrderConfirmation(s mailtmpl.OrderSummary) (mailtmpl.Message, error)
}

type recorder interface {
	OrdersIngested(inserted, duplicates int)
	Notification(kind, outcome string)
}

type nopRecorder struct{}

func (nopRecorder) OrdersIngested(int, int)     {}
func (nopRecorder) Notification(string, string) {}

type service struct {
	orders    orderStore
	products  productStore
	addresses addressStore
	resolver  emailResolver
	mailer    mailer
	renderer  renderer
	metrics   recorder
	log       *slog.Logger
}

type ServiceDeps struct {
	OrderRepo   orderStore
	ProductRepo productStore
	AddressRepo addressStore
	Resolver    emailResolver
	Mailer      mailer
	Renderer    renderer
	Metrics     recorder
	Logger      *slog.Logger
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		orders:    deps.OrderRepo,
		products:  deps.ProductRepo,
		addresses: deps.AddressRepo,
		resolver:  deps.Resolver,
		mailer:    deps.Mailer,
		renderer:  deps.Renderer,
		metrics:   deps.Metrics,
		log:       deps.Logger,
	}
	if s.metrics == nil {
		s.metrics = nopRecorder{}
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	return s
}

func (s *service) Ingest(ctx context.Context, batch []domain.OrderCreated) (IngestResult, error) {
	if len(batch) == 0 {
		return IngestResult{}, nil
	}
	orders := make([]domain.Order, 0, len(batch))
	for _, ev := range batch {
		orders = append(orders, toOrder(ev))
	}
	inserted, dup, err := s.orders.BulkInsert(ctx, orders)
	if err != nil {
		return IngestResult{}, fmt.Errorf("bulk insert %d orders: %w", len(orders), err)
	}
	s.metrics.OrdersIngested(inserted, dup)
	if dup > 0 {
		s.log.Info("orders already ingested", "duplicates", dup, "inserted", inserted)
	}
	return IngestResult{Processed: inserted, Duplicates: dup}, nil
}

// toOrder keeps the producer's order_id so a redelivered batch maps onto the
// same keys. Orders without one get a fresh id timestamped at creation.
func toOrder(ev domain.OrderCreated) domain.Order {
	orderID := ev.OrderID
	if orderID == "" {
		orderID = id.New()
	}
	return domain.Order{
		OrderID:   orderID,
		UserID:    ev.UserID,
		Items:     ev.Items,
		Amount:    ev.Amount,
		AddressID: ev.AddressID,
		Status:    domain.OrderStatusPlaced,
		CreatedAt: ev.CreatedAtMillis,
	}
}

func (s *service) SendConfirmation(ctx context.Context, c domain.OrderConfirmation) error {
	email, err := s.resolver.Email(ctx, c.UserID)
	if err != nil {
		return fmt.Errorf("resolve email of %s: %w", c.UserID, err)
	}
	if email == "" {
		s.metrics.Notification("order_confirmation", "skipped")
		return fmt.Errorf("email of user %s: %w", c.UserID, domain.ErrNotFound)
	}

	summary := mailtmpl.OrderSummary{Reference: c.OrderID, Total: c.Amount}
	addr, err := s.addresses.Get(ctx, c.AddressID)
	switch {
	case err == nil:
		summary.Address = addr
	case errors.Is(err, domain.ErrNotFound):
		s.log.Warn("order address missing", "address_id", c.AddressID, "user_id", c.UserID)
	default:
		return fmt.Errorf("load address %s: %w", c.AddressID, err)
	}

	for _, item := range c.Items {
		line, err := s.line(ctx, item)
		if err != nil {
			return err
		}
		summary.Lines = append(summary.Lines, line)
	}

	msg, err := s.renderer.OrderConfirmation(summary)
	if err != nil {
		return err
	}
	if err := s.mailer.Send(ctx, email, msg.Subject, msg.HTML); err != nil {
		s.metrics.Notification("order_confirmation", "failed")
		return fmt.Errorf("send order confirmation to %s: %w", c.UserID, err)
	}
	s.metrics.Notification("order_confirmation", "sent")
	return nil
}

// line prices an item at the product's current offer price. A product removed
// since checkout is listed by id with a zero line total.
func (s *service) line(ctx context.Context, item domain.OrderItem) (mailtmpl.OrderLine, error) {
	p, err := s.products.Get(ctx, item.ProductID)
	if errors.Is(err, domain.ErrNotFound) {
		return mailtmpl.OrderLine{Name: item.ProductID, Quantity: item.Quantity}, nil
	}
	if err != nil {
		return mailtmpl.OrderLine{}, fmt.Errorf("load product %s: %w", item.ProductID, err)
	}
	return mailtmpl.OrderLine{
		Name:      p.Name,
		Quantity:  item.Quantity,
		LineTotal: p.OfferPrice.Mul(item.Quantity),
	}, nil
}
