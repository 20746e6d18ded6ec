// Package jobs runs scheduled fulfillment work.
package jobs

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/tournevent/fulfillment/internal/fulfillment"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// Fulfiller is what the sweep needs from the fulfillment service.
type Fulfiller interface {
	PendingOrderIDs(ctx context.Context) ([]string, error)
	FulfillBulk(ctx context.Context, orderIDs []string) (*fulfillment.BulkResult, error)
}

// AutoFulfillJob periodically buys labels for pending orders using each
// order's stored shipping method.
type AutoFulfillJob struct {
	fulfiller Fulfiller
	cron      *cron.Cron
	logger    *otelzap.Logger
	batchSize int
	timeout   time.Duration
	running   atomic.Bool
}

// NewAutoFulfillJob creates the sweep. batchSize caps the orders per run,
// 0 takes every pending order.
func NewAutoFulfillJob(fulfiller Fulfiller, logger *otelzap.Logger, batchSize int, timeout time.Duration) *AutoFulfillJob {
	return &AutoFulfillJob{
		fulfiller: fulfiller,
		cron:      cron.New(),
		logger:    logger,
		batchSize: batchSize,
		timeout:   timeout,
	}
}

// Start schedules the sweep with a standard five-field cron spec.
func (j *AutoFulfillJob) Start(spec string) error {
	_, err := j.cron.AddFunc(spec, func() {
		ctx := context.Background()
		if j.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, j.timeout)
			defer cancel()
		}
		if _, err := j.Run(ctx); err != nil {
			j.logger.Ctx(ctx).Error("Auto-fulfill sweep failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("scheduling auto-fulfill %q: %w", spec, err)
	}

	j.cron.Start()
	j.logger.Info("Auto-fulfill job started", zap.String("schedule", spec))
	return nil
}

// Stop stops scheduling and waits for a running sweep to finish.
func (j *AutoFulfillJob) Stop() {
	<-j.cron.Stop().Done()
	j.logger.Info("Auto-fulfill job stopped")
}

// Run performs one sweep. A sweep that starts while another is running does
// nothing and returns a nil result.
func (j *AutoFulfillJob) Run(ctx context.Context) (*fulfillment.BulkResult, error) {
	if !j.running.CompareAndSwap(false, true) {
		j.logger.Ctx(ctx).Debug("Auto-fulfill sweep already running, skipping")
		return nil, nil
	}
	defer j.running.Store(false)

	ids, err := j.fulfiller.PendingOrderIDs(ctx)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return &fulfillment.BulkResult{Results: []fulfillment.BulkOutcome{}}, nil
	}
	if j.batchSize > 0 && len(ids) > j.batchSize {
		ids = ids[:j.batchSize]
	}

	j.logger.Ctx(ctx).Info("Auto-fulfilling pending orders", zap.Int("orders", len(ids)))
	return j.fulfiller.FulfillBulk(ctx, ids)
}
