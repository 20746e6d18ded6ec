package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tournevent/fulfillment/internal/events"
	"github.com/tournevent/fulfillment/internal/order"
	"github.com/tournevent/fulfillment/internal/telemetry"
	"github.com/tournevent/fulfillment/pkg/shipper"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// pipeline runs orchestrator attempts under the retry policy and reports
// every outcome. Single and bulk fulfillment share it.
type pipeline struct {
	orchestrator *Orchestrator
	reconciler   *order.Reconciler
	retry        RetryPolicy
	publisher    events.Publisher
	metrics      *telemetry.Metrics
	logger       *otelzap.Logger
	now          func() time.Time
}

// ship buys a label for an order. When the attempts are used up by
// retryable carrier failures the order is marked failed.
func (p *pipeline) ship(ctx context.Context, o *order.Order, rate shipper.Rate) (*shipper.Shipment, error) {
	req := ShipmentRequest{
		OrderNumber:   o.OrderID,
		CustomerName:  o.CustomerName,
		CustomerEmail: o.Email,
		ShipTo:        o.ShipTo,
		Items:         o.Items,
		AmountPaid:    o.Total,
		Rate:          rate,
	}

	start := p.now()
	var shipment *shipper.Shipment
	attempts, err := p.retry.Do(ctx, func(ctx context.Context) error {
		s, err := p.orchestrator.Fulfill(ctx, req)
		if err != nil {
			p.recordCarrierError(err)
			return err
		}
		shipment = s
		return nil
	})

	status := "ok"
	if err != nil {
		status = "error"
	}
	p.metrics.RecordRequest("fulfill", string(rate.Carrier), status, p.now().Sub(start).Seconds())

	if err == nil {
		return shipment, nil
	}

	if shipper.IsRetryable(err) && attempts >= p.retry.attempts() {
		reason := fmt.Sprintf("carrier unavailable after %d attempts: %s", attempts, Reason(err))
		if _, ferr := p.reconciler.MarkFailed(ctx, o, reason); ferr != nil {
			p.logger.Ctx(ctx).Error("Failed to mark order failed",
				zap.String("order_id", o.OrderID),
				zap.Error(ferr),
			)
		}
	}
	return nil, err
}

func (p *pipeline) recordCarrierError(err error) {
	var ce *shipper.CarrierError
	if errors.As(err, &ce) {
		p.metrics.RecordError(ce.Carrier, ce.Code)
	}
}

// report publishes the outcome of one order and counts it.
func (p *pipeline) report(ctx context.Context, mode, orderID string, shipment *shipper.Shipment, err error) {
	p.metrics.RecordFulfillment(mode, err == nil)

	outcome := events.Outcome{OrderID: orderID, Status: events.StatusFulfilled, At: p.now().UTC()}
	if err != nil {
		outcome.Status = events.StatusFailed
		outcome.Error = Reason(err)
	} else if shipment != nil {
		outcome.TrackingNumber = shipment.TrackingNumber
		outcome.ShipmentID = shipment.ShipmentID
	}
	p.publish(ctx, outcome)
}

func (p *pipeline) publish(ctx context.Context, outcome events.Outcome) {
	if err := p.publisher.Publish(ctx, outcome); err != nil {
		p.logger.Ctx(ctx).Warn("Failed to publish fulfillment outcome",
			zap.String("order_id", outcome.OrderID),
			zap.Error(err),
		)
	}
}

// fulfillable rejects orders that already carry a label or whose status
// cannot move to processing.
func fulfillable(o *order.Order) error {
	if o.TrackingNumber != "" {
		return fmt.Errorf("%w: order %s already has tracking number %s", ErrNotFulfillable, o.OrderID, o.TrackingNumber)
	}
	if !o.Status.CanTransitionTo(order.StatusProcessing) {
		return fmt.Errorf("%w: order %s is %s", ErrNotFulfillable, o.OrderID, o.Status)
	}
	return nil
}
