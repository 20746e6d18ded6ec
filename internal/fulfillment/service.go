// Package fulfillment turns paid orders into carrier shipments: it shops
// rates, buys labels and reconciles the outcome into order state.
package fulfillment

import (
	"context"
	"fmt"
	"time"

	"github.com/tournevent/fulfillment/internal/events"
	"github.com/tournevent/fulfillment/internal/order"
	"github.com/tournevent/fulfillment/internal/store"
	"github.com/tournevent/fulfillment/internal/telemetry"
	"github.com/tournevent/fulfillment/pkg/shipper"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// Config configures the fulfillment service.
type Config struct {
	Rates        RateShopperConfig
	Orchestrator OrchestratorConfig
	Retry        RetryPolicy

	// BulkConcurrency caps concurrent orders in a bulk run. 0 is unbounded.
	BulkConcurrency int
}

// Service is the caller-facing fulfillment surface.
type Service struct {
	carrier    shipper.Carrier
	orders     *order.Repository
	reconciler *order.Reconciler
	shopper    *RateShopper
	pipeline   *pipeline
	bulk       *BulkProcessor
	logger     *otelzap.Logger
}

// Option customizes a Service.
type Option func(*Service)

// WithPublisher sets where outcomes are published.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.pipeline.publisher = p }
}

// WithMetrics sets the metrics outcomes are counted in.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Service) { s.pipeline.metrics = m }
}

// NewService wires the rate shopper, orchestrator, bulk processor and
// reconciler over one carrier and one record store.
func NewService(cfg Config, carrier shipper.Carrier, accounts *shipper.Registry, records store.Store, logger *otelzap.Logger, opts ...Option) (*Service, error) {
	if accounts == nil || accounts.Count() == 0 {
		return nil, &shipper.ConfigurationError{Component: "fulfillment", Missing: []string{"carrier accounts"}}
	}
	orchestrator, err := NewOrchestrator(carrier, accounts, cfg.Orchestrator, logger)
	if err != nil {
		return nil, err
	}

	if cfg.Rates.OriginPostalCode == "" {
		cfg.Rates.OriginPostalCode = orchestrator.ShipFrom().PostalCode
	}
	if cfg.Rates.PackageCode == "" {
		cfg.Rates.PackageCode = orchestrator.cfg.PackageCode
	}
	shopper := NewRateShopper(carrier, accounts, cfg.Rates, logger)

	repo := order.NewRepository(records)
	reconciler := order.NewReconciler(records, logger)

	p := &pipeline{
		orchestrator: orchestrator,
		reconciler:   reconciler,
		retry:        cfg.Retry,
		publisher:    events.Nop{},
		logger:       logger,
		now:          time.Now,
	}

	s := &Service{
		carrier:    carrier,
		orders:     repo,
		reconciler: reconciler,
		shopper:    shopper,
		pipeline:   p,
		logger:     logger,
		bulk: &BulkProcessor{
			orders:      repo,
			reconciler:  reconciler,
			shopper:     shopper,
			pipeline:    p,
			concurrency: cfg.BulkConcurrency,
			logger:      logger,
		},
	}
	for _, opt := range opts {
		opt(s)
	}

	tags := accounts.Tags()
	names := make([]string, 0, len(tags))
	for _, tag := range tags {
		names = append(names, string(tag))
	}
	logger.Info("Fulfillment service ready",
		zap.String("carrier", carrier.Name()),
		zap.Strings("accounts", names),
	)
	return s, nil
}

// Orders returns the order repository.
func (s *Service) Orders() *order.Repository {
	return s.orders
}

// ShopRates prices a package for checkout. Missing postal code or state
// fall back to defaults.
func (s *Service) ShopRates(ctx context.Context, dest shipper.Address, items []shipper.PackageItem) (*shipper.RateSet, error) {
	return s.shopper.Shop(ctx, RateQuery{Destination: dest, Items: items, Mode: ModePreview})
}

// RecordCheckout stores a paid order as pending.
func (s *Service) RecordCheckout(ctx context.Context, d order.Draft) (*order.Order, error) {
	return s.reconciler.RecordCheckout(ctx, d)
}

// FulfillOrder buys a label for a stored order at the chosen rate and moves
// the order to processing.
func (s *Service) FulfillOrder(ctx context.Context, orderID, rateID string) (*shipper.Shipment, error) {
	shipment, err := s.fulfillOrder(ctx, orderID, rateID)
	s.pipeline.report(ctx, "single", orderID, shipment, err)
	return shipment, err
}

func (s *Service) fulfillOrder(ctx context.Context, orderID, rateID string) (*shipper.Shipment, error) {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := fulfillable(o); err != nil {
		return nil, err
	}

	rates, err := s.shopper.Shop(ctx, RateQuery{Destination: o.ShipTo, Items: o.Items, Mode: ModePurchase})
	if err != nil {
		return nil, err
	}
	rate, ok := rates.Find(rateID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRateNotOffered, rateID)
	}

	shipment, err := s.pipeline.ship(ctx, o, rate)
	if err != nil {
		return nil, err
	}

	if _, err := s.reconciler.ApplyLabel(ctx, o, shipment, order.LabelFull); err != nil {
		s.logger.Ctx(ctx).Error("Label purchased but order not updated",
			zap.String("order_id", o.OrderID),
			zap.String("shipment_id", shipment.ShipmentID),
			zap.String("tracking_number", shipment.TrackingNumber),
			zap.Error(err),
		)
		return nil, fmt.Errorf("recording label: %w", err)
	}
	return shipment, nil
}

// FulfillBulk buys labels for many orders using each order's stored
// shipping method.
func (s *Service) FulfillBulk(ctx context.Context, orderIDs []string) (*BulkResult, error) {
	return s.bulk.Process(ctx, orderIDs)
}

// UpdateStatus applies an administrative status change.
func (s *Service) UpdateStatus(ctx context.Context, orderID string, to order.Status, opts order.TransitionOptions) (*order.Order, error) {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return s.reconciler.Transition(ctx, o, to, opts)
}

// VoidLabel voids the order's label with the carrier and cancels the order.
func (s *Service) VoidLabel(ctx context.Context, orderID string) (*order.Order, error) {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.ShipmentID == "" {
		return nil, shipper.NewValidationError("shipmentId", "order "+orderID+" has no label to void")
	}
	if !o.Status.CanTransitionTo(order.StatusCancelled) {
		return nil, fmt.Errorf("order %s: %w", orderID, &order.InvalidTransitionError{From: o.Status, To: order.StatusCancelled})
	}

	if err := s.carrier.VoidLabel(ctx, o.ShipmentID); err != nil {
		s.pipeline.recordCarrierError(err)
		return nil, fmt.Errorf("voiding label of order %s: %w", orderID, err)
	}

	updated, err := s.reconciler.Transition(ctx, o, order.StatusCancelled, order.TransitionOptions{Reason: "label voided"})
	if err != nil {
		return nil, err
	}
	s.pipeline.publish(ctx, events.Outcome{
		OrderID:    orderID,
		Status:     events.StatusVoided,
		ShipmentID: o.ShipmentID,
		At:         s.pipeline.now().UTC(),
	})
	return updated, nil
}

// Tracking looks up the carrier status of an order's shipment.
func (s *Service) Tracking(ctx context.Context, orderID string) (*shipper.TrackingInfo, error) {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.TrackingNumber == "" {
		return nil, shipper.NewValidationError("trackingNumber", "order "+orderID+" has no tracking number")
	}

	info, err := s.carrier.GetTracking(ctx, o.TrackingNumber)
	if err != nil {
		s.pipeline.recordCarrierError(err)
		return nil, fmt.Errorf("tracking order %s: %w", orderID, err)
	}
	return info, nil
}

// PendingOrderIDs lists orders waiting for a label, oldest first. Records
// that cannot be decoded are logged and left out.
func (s *Service) PendingOrderIDs(ctx context.Context) ([]string, error) {
	pending, err := s.orders.FindByStatus(ctx, order.StatusPending)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(pending.Orders))
	for _, id := range pending.IDs {
		if err, bad := pending.Invalid[id]; bad {
			s.logger.Ctx(ctx).Warn("Skipping unreadable pending order",
				zap.String("order_id", id),
				zap.Error(err),
			)
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}
