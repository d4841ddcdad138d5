package retention

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Default windows.
const (
	DefaultSubscriptionRetention = 30 * 24 * time.Hour
	DefaultOrderRetention        = 365 * 24 * time.Hour
)

// Pass names, also used as metric labels.
const (
	PassSubscriptions = "subscriptions"
	PassOrders        = "orders"
)

type Service interface {
	// Sweep runs both cleanup passes relative to now. A failing pass does not
	// stop the other; their errors are joined after both ran.
	Sweep(ctx context.Context, now time.Time) (Result, error)
}

type Result struct {
	SubscriptionsDeleted int      `json:"subscriptions_deleted"`
	OrdersDeleted        int      `json:"orders_deleted"`
	Errors               []string `json:"errors,omitempty"`
}

type subscriptionStore interface {
	DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int, error)
}

type orderStore interface {
	// DeleteTerminalBefore removes delivered or cancelled orders created
	// strictly before cutoffMillis.
	DeleteTerminalBefore(ctx context.Context, cutoffMillis int64) (int, error)
}

type recorder interface {
	SweepDeleted(pass string, n int)
}

type service struct {
	subs                  subscriptionStore
	orders                orderStore
	subscriptionRetention time.Duration
	orderRetention        time.Duration
	metrics               recorder
	log                   *slog.Logger
}

type ServiceDeps struct {
	SubscriptionRepo      subscriptionStore
	OrderRepo             orderStore
	SubscriptionRetention time.Duration
	OrderRetention        time.Duration
	Metrics               recorder
	Logger                *slog.Logger
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		subs:                  deps.SubscriptionRepo,
		orders:                deps.OrderRepo,
		subscriptionRetention: deps.SubscriptionRetention,
		orderRetention:        deps.OrderRetention,
		metrics:               deps.Metrics,
		log:                   deps.Logger,
	}
	if s.subscriptionRetention <= 0 {
		s.subscriptionRetention = DefaultSubscriptionRetention
	}
	if s.orderRetention <= 0 {
		s.orderRetention = DefaultOrderRetention
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	return s
}

// Cutoffs are exclusive: a row created exactly at now-window is kept.
func (s *service) Sweep(ctx context.Context, now time.Time) (Result, error) {
	var (
		res  Result
		errs []error
	)

	subCutoff := now.Add(-s.subscriptionRetention)
	n, err := s.subs.DeleteCreatedBefore(ctx, subCutoff)
	res.SubscriptionsDeleted = n
	s.report(PassSubscriptions, n, err)
	if err != nil {
		errs = append(errs, fmt.Errorf("%s pass: %w", PassSubscriptions, err))
	}

	orderCutoff := now.Add(-s.orderRetention).UnixMilli()
	n, err = s.orders.DeleteTerminalBefore(ctx, orderCutoff)
	res.OrdersDeleted = n
	s.report(PassOrders, n, err)
	if err != nil {
		errs = append(errs, fmt.Errorf("%s pass: %w", PassOrders, err))
	}

	for _, e := range errs {
		res.Errors = append(res.Errors, e.Error())
	}
	return res, errors.Join(errs...)
}

func (s *service) report(pass string, n int, err error) {
	if s.metrics != nil {
		s.metrics.SweepDeleted(pass, n)
	}
	if err != nil {
		s.log.Error("retention pass failed", "pass", pass, "deleted", n, "err", err)
		return
	}
	s.log.Info("retention pass finished", "pass", pass, "deleted", n)
}
