package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"smm-orders/internal/core/logger"
	"smm-orders/internal/core/metrics"
	"smm-orders/internal/features/orders/domain"
	"smm-orders/internal/features/orders/ports"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// OrderService drives orders through their lifecycle against the default provider.
type OrderService struct {
	orders    ports.OrderRepository
	uow       ports.UnitOfWorkFactory
	providers ports.ProviderFactory
	metrics   *metrics.Metrics

	skipPush        func(*domain.Order) bool
	newBackOff      func() backoff.BackOff
	compensateTries uint64
}

// Option customizes an OrderService.
type Option func(*OrderService)

// WithSkipPush decides per order whether Start should leave submission to
// someone else. The order still moves to in progress.
func WithSkipPush(fn func(*domain.Order) bool) Option {
	return func(s *OrderService) { s.skipPush = fn }
}

// WithMetrics counts start outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *OrderService) { s.metrics = m }
}

// WithCompensationBackOff sets the retry policy of the cancelled write that
// follows a failed start.
func WithCompensationBackOff(fn func() backoff.BackOff, maxRetries uint64) Option {
	return func(s *OrderService) {
		s.newBackOff = fn
		s.compensateTries = maxRetries
	}
}

// NewOrderService creates a new instance of OrderService.
func NewOrderService(orders ports.OrderRepository, uow ports.UnitOfWorkFactory, providers ports.ProviderFactory, opts ...Option) *OrderService {
	s := &OrderService{
		orders:    orders,
		uow:       uow,
		providers: providers,
		skipPush:  func(*domain.Order) bool { return false },
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			b.MaxInterval = 2 * time.Second
			return b
		},
		compensateTries: 3,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateOrder stores a new pending order.
func (s *OrderService) CreateOrder(ctx context.Context, serviceID int, link string, quantity int) (*domain.Order, error) {
	order, err := domain.NewOrder(serviceID, link, quantity)
	if err != nil {
		return nil, err
	}

	if err := s.orders.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("service: failed to create order: %w", err)
	}
	return order, nil
}

// GetOrder retrieves an order by ID.
func (s *OrderService) GetOrder(ctx context.Context, id uint) (*domain.Order, error) {
	return s.orders.Get(ctx, id)
}

// GetOrders retrieves the existing orders among ids.
func (s *OrderService) GetOrders(ctx context.Context, ids []uint) ([]*domain.Order, error) {
	return s.orders.GetMany(ctx, ids)
}

// SkipPush reports whether Start should skip submission for order.
func (s *OrderService) SkipPush(order *domain.Order) bool {
	return s.skipPush(order)
}

// Start moves the order to in progress and submits it, all in one transaction.
// On any failure the transaction is rolled back, the order is marked cancelled
// by a separate write, and false is returned.
func (s *OrderService) Start(ctx context.Context, order *domain.Order, interval domain.Interval) bool {
	log := logger.Named("order_service")
	snapshot := *order

	skipped, err := s.startInTx(ctx, order, interval)
	if err == nil {
		result := "submitted"
		if skipped {
			result = "skipped"
		}
		s.countStart(result)
		log.Info("Order started",
			zap.Uint("order_id", order.ID),
			zap.Bool("push_skipped", skipped),
		)
		return true
	}

	*order = snapshot
	log.Error("Order start failed",
		zap.Uint("order_id", order.ID),
		zap.Error(err),
	)
	s.compensate(ctx, order)
	s.countStart("failed")
	return false
}

func (s *OrderService) startInTx(ctx context.Context, order *domain.Order, interval domain.Interval) (skipped bool, err error) {
	uow := s.uow.Create()
	if err := uow.Begin(ctx); err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}

	done := false
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during start: %v", r)
		}
		if !done {
			if rbErr := uow.Rollback(ctx); rbErr != nil {
				logger.Named("order_service").Warn("Rollback failed",
					zap.Uint("order_id", order.ID),
					zap.Error(rbErr),
				)
			}
		}
	}()

	store := uow.Orders()
	inProgress := domain.StatusChange(domain.StatusInProgress)
	if err := store.UpdateFields(ctx, order.ID, inProgress); err != nil {
		return false, fmt.Errorf("failed to mark order in progress: %w", err)
	}
	order.Apply(inProgress)

	skipped = s.SkipPush(order)
	if !skipped {
		provider, err := s.providers.CreateDefault(domain.Single(order), store)
		if err != nil {
			return false, err
		}
		if err := provider.Submit(ctx, interval); err != nil {
			return false, err
		}
	}

	done = true
	if err := uow.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit start: %w", err)
	}
	return skipped, nil
}

// compensate writes the cancelled status outside the rolled back transaction.
// It runs even when ctx is already done so that a timed out request still
// leaves the order in a final state.
func (s *OrderService) compensate(ctx context.Context, order *domain.Order) {
	cancelled := domain.StatusChange(domain.StatusCancelled)
	writeCtx := context.WithoutCancel(ctx)

	op := func() error {
		err := s.orders.UpdateFields(writeCtx, order.ID, cancelled)
		if errors.Is(err, ports.ErrOrderNotFound) {
			return backoff.Permanent(err)
		}
		return err
	}

	policy := backoff.WithMaxRetries(s.newBackOff(), s.compensateTries)
	if err := backoff.Retry(op, policy); err != nil {
		logger.Named("order_service").Error("Failed to mark order cancelled after failed start",
			zap.Uint("order_id", order.ID),
			zap.Error(err),
		)
		return
	}
	order.Apply(cancelled)
}

// SyncStatuses reconciles target with the provider. Errors are returned as is.
func (s *OrderService) SyncStatuses(ctx context.Context, target domain.Target) error {
	provider, err := s.providers.CreateDefault(target, s.orders)
	if err != nil {
		return err
	}
	return provider.FetchStatuses(ctx)
}

// Cancel asks the provider to cancel target. Errors are returned as is.
func (s *OrderService) Cancel(ctx context.Context, target domain.Target) error {
	provider, err := s.providers.CreateDefault(target, s.orders)
	if err != nil {
		return err
	}
	return provider.Cancel(ctx)
}

func (s *OrderService) countStart(result string) {
	if s.metrics != nil {
		s.metrics.OrderStarts.WithLabelValues(result).Inc()
	}
}
