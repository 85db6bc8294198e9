// Package jobs holds the scheduled background work of the orders feature.
package jobs

import (
	"context"
	"errors"
	"fmt"

	"smm-orders/internal/core/logger"
	"smm-orders/internal/features/orders/domain"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// OrderLister pages through orders that still need reconciliation.
type OrderLister interface {
	ListSyncable(ctx context.Context, afterID uint, limit int) ([]*domain.Order, error)
}

// StatusSyncer reconciles a target with the provider.
type StatusSyncer interface {
	SyncStatuses(ctx context.Context, target domain.Target) error
}

// SyncJob periodically pulls provider statuses for every submitted,
// non-terminal order, batchSize orders per provider call.
type SyncJob struct {
	orders    OrderLister
	syncer    StatusSyncer
	schedule  string
	batchSize int
	cron      *cron.Cron
	log       *zap.Logger
}

// NewSyncJob creates the job. schedule accepts any robfig/cron spec,
// including descriptors such as "@every 5m".
func NewSyncJob(orders OrderLister, syncer StatusSyncer, schedule string, batchSize int) *SyncJob {
	return &SyncJob{
		orders:    orders,
		syncer:    syncer,
		schedule:  schedule,
		batchSize: batchSize,
		cron:      cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		log:       logger.Named("sync_job"),
	}
}

// Start registers the job on its schedule and starts the scheduler.
func (j *SyncJob) Start() error {
	if j.batchSize <= 0 {
		return fmt.Errorf("sync job: batch size must be positive, got %d", j.batchSize)
	}

	_, err := j.cron.AddFunc(j.schedule, func() {
		ctx := context.Background()
		if _, err := j.RunOnce(ctx); err != nil {
			j.log.Error("Status sync run finished with errors", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("sync job: invalid schedule %q: %w", j.schedule, err)
	}

	j.cron.Start()
	j.log.Info("Status sync job started", zap.String("schedule", j.schedule), zap.Int("batch_size", j.batchSize))
	return nil
}

// Stop stops the scheduler and waits for a running pass to finish.
func (j *SyncJob) Stop() {
	<-j.cron.Stop().Done()
	j.log.Info("Status sync job stopped")
}

// RunOnce walks all syncable orders once. A failing batch is logged and the
// walk continues with the next one. It returns the number of orders sent to
// the provider and the joined batch errors.
func (j *SyncJob) RunOnce(ctx context.Context) (int, error) {
	var (
		afterID uint
		synced  int
		errs    []error
	)

	for {
		if err := ctx.Err(); err != nil {
			return synced, errors.Join(append(errs, err)...)
		}

		batch, err := j.orders.ListSyncable(ctx, afterID, j.batchSize)
		if err != nil {
			return synced, errors.Join(append(errs, fmt.Errorf("list syncable orders: %w", err))...)
		}
		if len(batch) == 0 {
			break
		}
		afterID = batch[len(batch)-1].ID

		if err := j.syncer.SyncStatuses(ctx, domain.Batch(batch...)); err != nil {
			j.log.Warn("Status sync batch failed",
				zap.Uint("first_id", batch[0].ID),
				zap.Uint("last_id", afterID),
				zap.Error(err),
			)
			errs = append(errs, err)
		} else {
			synced += len(batch)
		}

		if len(batch) < j.batchSize {
			break
		}
	}

	j.log.Debug("Status sync pass done", zap.Int("synced", synced), zap.Int("failed_batches", len(errs)))
	return synced, errors.Join(errs...)
}
