package fulfillment

import (
	"context"
	"fmt"

	"github.com/tournevent/fulfillment/internal/order"
	"github.com/tournevent/fulfillment/pkg/shipper"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// BulkOutcome is the result for one order of a bulk run.
type BulkOutcome struct {
	OrderID        string `json:"orderId" yaml:"orderId"`
	Success        bool   `json:"success" yaml:"success"`
	TrackingNumber string `json:"trackingNumber,omitempty" yaml:"trackingNumber,omitempty"`
	LabelData      string `json:"labelData,omitempty" yaml:"labelData,omitempty"`
	Reason         string `json:"error,omitempty" yaml:"error,omitempty"`
}

// BulkResult aggregates a bulk run. Results follow the order of the
// requested ids.
type BulkResult struct {
	Succeeded int           `json:"succeeded" yaml:"succeeded"`
	Failed    int           `json:"failed" yaml:"failed"`
	Results   []BulkOutcome `json:"results" yaml:"results"`
}

// BulkProcessor buys labels for many stored orders at once. Each order is
// an independent workflow: its failure only fills its own result slot.
type BulkProcessor struct {
	orders      *order.Repository
	reconciler  *order.Reconciler
	shopper     *RateShopper
	pipeline    *pipeline
	concurrency int
	logger      *otelzap.Logger
}

// Process fulfills the given orders. The returned error is set only when
// the orders could not be read at all; a missing or undecodable record
// fails its own order. Callers must not repeat an id.
func (b *BulkProcessor) Process(ctx context.Context, orderIDs []string) (*BulkResult, error) {
	orders, err := b.orders.FindByOrderIDs(ctx, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("bulk fulfillment: %w", err)
	}

	results := make([]BulkOutcome, len(orderIDs))

	g := new(errgroup.Group)
	if b.concurrency > 0 {
		g.SetLimit(b.concurrency)
	}
	for i, id := range orderIDs {
		g.Go(func() error {
			o, err := orders.Get(id)
			results[i] = b.processOne(ctx, id, o, err)
			return nil
		})
	}
	_ = g.Wait()

	res := &BulkResult{Results: results}
	for _, r := range results {
		if r.Success {
			res.Succeeded++
		} else {
			res.Failed++
		}
	}
	b.pipeline.metrics.RecordBulk(len(orderIDs))

	b.logger.Ctx(ctx).Info("Bulk fulfillment finished",
		zap.Int("orders", len(orderIDs)),
		zap.Int("succeeded", res.Succeeded),
		zap.Int("failed", res.Failed),
	)
	return res, nil
}

func (b *BulkProcessor) processOne(ctx context.Context, id string, o *order.Order, readErr error) BulkOutcome {
	var shipment *shipper.Shipment
	err := readErr
	if err == nil {
		shipment, err = b.fulfill(ctx, o)
	}
	b.pipeline.report(ctx, "bulk", id, shipment, err)
	if err != nil {
		return BulkOutcome{OrderID: id, Reason: Reason(err)}
	}
	return BulkOutcome{
		OrderID:        id,
		Success:        true,
		TrackingNumber: shipment.TrackingNumber,
		LabelData:      shipment.LabelData,
	}
}

func (b *BulkProcessor) fulfill(ctx context.Context, o *order.Order) (*shipper.Shipment, error) {
	if err := fulfillable(o); err != nil {
		return nil, err
	}

	rates, err := b.shopper.Shop(ctx, RateQuery{Destination: o.ShipTo, Items: o.Items, Mode: ModePurchase})
	if err != nil {
		return nil, err
	}
	rate, err := MatchShippingMethod(o.ShippingMethod, rates.All())
	if err != nil {
		return nil, err
	}

	shipment, err := b.pipeline.ship(ctx, o, rate)
	if err != nil {
		return nil, err
	}

	if _, err := b.reconciler.ApplyLabel(ctx, o, shipment, order.LabelTrackingOnly); err != nil {
		b.logger.Ctx(ctx).Error("Label purchased but order not updated",
			zap.String("order_id", o.OrderID),
			zap.String("shipment_id", shipment.ShipmentID),
			zap.String("tracking_number", shipment.TrackingNumber),
			zap.Error(err),
		)
		return nil, fmt.Errorf("recording label: %w", err)
	}
	return shipment, nil
}
