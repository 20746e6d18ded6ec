package fulfillment

import (
	"context"

	"github.com/google/uuid"
	"github.com/tournevent/fulfillment/pkg/shipper"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// State is where a fulfillment attempt stands.
type State string

const (
	StateNotStarted   State = "not_started"
	StateOrderCreated State = "order_created"
	StateLabeled      State = "labeled"
	StateFailed       State = "failed"
)

// OrchestratorConfig configures shipment creation.
type OrchestratorConfig struct {
	ShipFrom     shipper.Address
	PackageCode  string
	Confirmation string
	Dimensions   shipper.Dimensions
	TestLabel    bool
}

// ShipmentRequest is one paid order and the rate chosen for it.
type ShipmentRequest struct {
	OrderNumber   string
	CustomerName  string
	CustomerEmail string
	ShipTo        shipper.Address
	Items         []shipper.PackageItem
	AmountPaid    float64
	Rate          shipper.Rate
}

// Attempt records how far one run got.
type Attempt struct {
	State          State
	CarrierOrderID string
	Shipment       *shipper.Shipment
	Err            error
}

// Orchestrator creates the carrier order and buys its label, strictly in
// that order. It does not retry.
type Orchestrator struct {
	carrier  shipper.Carrier
	accounts *shipper.Registry
	cfg      OrchestratorConfig
	logger   *otelzap.Logger
}

// NewOrchestrator creates an orchestrator. An incomplete ship-from address
// is a configuration error.
func NewOrchestrator(carrier shipper.Carrier, accounts *shipper.Registry, cfg OrchestratorConfig, logger *otelzap.Logger) (*Orchestrator, error) {
	cfg.ShipFrom = cfg.ShipFrom.Normalize()
	if missing := cfg.ShipFrom.MissingFields(); len(missing) > 0 {
		for i, f := range missing {
			missing[i] = "shipFrom." + f
		}
		return nil, &shipper.ConfigurationError{Component: "orchestrator", Missing: missing}
	}
	if cfg.PackageCode == "" {
		cfg.PackageCode = "package"
	}
	if cfg.Confirmation == "" {
		cfg.Confirmation = "none"
	}
	if cfg.Dimensions == (shipper.Dimensions{}) {
		cfg.Dimensions = shipper.DefaultDimensions
	}
	return &Orchestrator{carrier: carrier, accounts: accounts, cfg: cfg, logger: logger}, nil
}

// ShipFrom returns the normalized origin address.
func (o *Orchestrator) ShipFrom() shipper.Address {
	return o.cfg.ShipFrom
}

// OrderKey is the idempotency key sent with CreateOrder. It depends only on
// the order number so a retried attempt upserts the same carrier order.
func OrderKey(orderNumber string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("fulfillment:order:"+orderNumber)).String()
}

// Fulfill runs one attempt and returns the shipment or a *FulfillmentError.
func (o *Orchestrator) Fulfill(ctx context.Context, req ShipmentRequest) (*shipper.Shipment, error) {
	a := o.Run(ctx, req)
	return a.Shipment, a.Err
}

// Run runs one attempt and reports the state it reached.
func (o *Orchestrator) Run(ctx context.Context, req ShipmentRequest) *Attempt {
	a := &Attempt{State: StateNotStarted}
	fail := func(stage Stage, kind Kind, err error) *Attempt {
		a.Err = &FulfillmentError{
			OrderNumber:    req.OrderNumber,
			Stage:          stage,
			Kind:           kind,
			CarrierOrderID: a.CarrierOrderID,
			Err:            err,
		}
		o.logger.Ctx(ctx).Warn("Fulfillment attempt failed",
			zap.String("order_id", req.OrderNumber),
			zap.String("stage", string(stage)),
			zap.String("reached", string(a.State)),
			zap.Error(err),
		)
		a.State = StateFailed
		return a
	}

	account, err := o.validate(req)
	if err != nil {
		return fail(StageValidate, KindValidation, err)
	}

	shipTo := req.ShipTo.Normalize()
	weight := shipper.TotalWeight(req.Items)

	carrierOrder, err := o.carrier.CreateOrder(ctx, &shipper.OrderRequest{
		OrderNumber:   req.OrderNumber,
		OrderKey:      OrderKey(req.OrderNumber),
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		ShipTo:        shipTo,
		ShipFrom:      o.cfg.ShipFrom,
		Items:         req.Items,
		AmountPaid:    req.AmountPaid,
		CarrierCode:   account.Code,
		ServiceCode:   req.Rate.ID,
		PackageCode:   o.cfg.PackageCode,
		Confirmation:  o.cfg.Confirmation,
		Weight:        weight,
		Dimensions:    o.cfg.Dimensions,
	})
	if err != nil {
		return fail(StageCreateOrder, kindOf(err), err)
	}
	if carrierOrder == nil || carrierOrder.OrderID == "" || carrierOrder.OrderID == "-1" {
		return fail(StageCreateOrder, KindEmptyResponse, ErrEmptyCarrierOrder)
	}
	a.State = StateOrderCreated
	a.CarrierOrderID = carrierOrder.OrderID

	label, err := o.carrier.CreateLabel(ctx, carrierOrder.OrderID, req.Rate.ID, shipper.LabelOptions{
		CarrierCode:  account.Code,
		PackageCode:  o.cfg.PackageCode,
		Confirmation: o.cfg.Confirmation,
		Weight:       weight,
		Dimensions:   o.cfg.Dimensions,
		ShipFrom:     o.cfg.ShipFrom,
		ShipTo:       shipTo,
		TestLabel:    o.cfg.TestLabel,
	})
	if err != nil {
		return fail(StageCreateLabel, kindOf(err), err)
	}
	if label == nil || label.LabelData == "" {
		var shipmentID string
		if label != nil {
			shipmentID = label.ShipmentID
		}
		return fail(StageCreateLabel, KindEmptyResponse, &shipper.IncompleteLabelError{
			CarrierOrderID: carrierOrder.OrderID,
			ShipmentID:     shipmentID,
		})
	}

	a.State = StateLabeled
	a.Shipment = &shipper.Shipment{
		CarrierOrderID: carrierOrder.OrderID,
		OrderNumber:    req.OrderNumber,
		ShipmentID:     label.ShipmentID,
		TrackingNumber: label.TrackingNumber,
		LabelData:      label.LabelData,
		Carrier:        req.Rate.Carrier,
		CarrierCode:    account.Code,
		ServiceCode:    req.Rate.ID,
	}

	o.logger.Ctx(ctx).Info("Label purchased",
		zap.String("order_id", req.OrderNumber),
		zap.String("carrier_order_id", carrierOrder.OrderID),
		zap.String("shipment_id", label.ShipmentID),
		zap.String("tracking_number", label.TrackingNumber),
		zap.String("service_code", req.Rate.ID),
	)
	return a
}

func (o *Orchestrator) validate(req ShipmentRequest) (shipper.Account, error) {
	if req.OrderNumber == "" {
		return shipper.Account{}, shipper.NewValidationError("orderNumber", "required")
	}
	if req.Rate.ID == "" {
		return shipper.Account{}, shipper.NewValidationError("rate.id", "required")
	}
	account, err := o.accounts.Get(req.Rate.Carrier)
	if err != nil {
		return shipper.Account{}, shipper.NewValidationError("rate.carrier", err.Error())
	}
	if missing := req.ShipTo.Normalize().MissingFields(); len(missing) > 0 {
		return shipper.Account{}, shipper.NewValidationError("shipTo."+missing[0], "required")
	}
	return account, nil
}
