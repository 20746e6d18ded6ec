package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tournevent/fulfillment/internal/store"
	"github.com/tournevent/fulfillment/pkg/shipper"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// ErrTrackingRequired is returned when an order would enter processing
// without a tracking number and no override was given.
var ErrTrackingRequired = errors.New("tracking number required to enter processing")

// ErrOrderExists is returned when a checkout reuses a recorded order id.
var ErrOrderExists = errors.New("order already recorded")

// Transition is one recorded status change.
type Transition struct {
	OrderID string
	From    Status
	To      Status
	At      time.Time
	Reason  string
}

// LabelScope selects which fields a label outcome writes.
type LabelScope int

const (
	// LabelFull writes status, tracking number, shipment id and label reference.
	LabelFull LabelScope = iota
	// LabelTrackingOnly writes status and tracking number only.
	LabelTrackingOnly
)

// TransitionOptions qualify an administrative status change.
type TransitionOptions struct {
	// Override allows entering processing without a tracking number.
	Override       bool
	TrackingNumber string
	Reason         string
}

// Reconciler applies status transitions to order records. It is the only
// component that writes order state: one record update per transition,
// plus a history row carrying the transition time.
type Reconciler struct {
	store  store.Store
	logger *otelzap.Logger
	now    func() time.Time
}

// NewReconciler creates a reconciler over a record store.
func NewReconciler(s store.Store, logger *otelzap.Logger) *Reconciler {
	return &Reconciler{store: s, logger: logger, now: time.Now}
}

// RecordCheckout stores a completed checkout as a pending order.
func (r *Reconciler) RecordCheckout(ctx context.Context, d Draft) (*Order, error) {
	if d.OrderID == "" {
		return nil, shipper.NewValidationError(FieldOrderID, "required")
	}
	existing, err := r.store.Find(ctx, TableOrders, store.Filter{Field: FieldOrderID, Values: []string{d.OrderID}})
	if err != nil {
		return nil, fmt.Errorf("checking order %s: %w", d.OrderID, err)
	}
	if len(existing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrOrderExists, d.OrderID)
	}

	now := r.now()
	fields, err := d.Fields(now)
	if err != nil {
		return nil, err
	}
	rec, err := r.store.Create(ctx, TableOrders, fields)
	if err != nil {
		return nil, fmt.Errorf("recording order %s: %w", d.OrderID, err)
	}
	r.recordHistory(ctx, Transition{OrderID: d.OrderID, To: StatusPending, At: now, Reason: "checkout completed"})
	return Decode(rec)
}

// ApplyLabel moves an order to processing with the label's tracking number.
func (r *Reconciler) ApplyLabel(ctx context.Context, o *Order, s *shipper.Shipment, scope LabelScope) (*Order, error) {
	if s == nil || s.TrackingNumber == "" {
		return nil, fmt.Errorf("order %s: %w", o.OrderID, ErrTrackingRequired)
	}

	fields := store.Fields{
		FieldTrackingNumber: s.TrackingNumber,
	}
	if scope == LabelFull {
		fields[FieldShipmentID] = s.ShipmentID
		fields[FieldLabelURL] = labelReference(s)
	}

	reason := fmt.Sprintf("label purchased: %s %s", s.CarrierCode, s.ServiceCode)
	return r.apply(ctx, o, StatusProcessing, fields, reason)
}

// MarkFailed moves an order to failed after the caller gave up on it.
func (r *Reconciler) MarkFailed(ctx context.Context, o *Order, reason string) (*Order, error) {
	return r.apply(ctx, o, StatusFailed, store.Fields{}, reason)
}

// Transition applies an administrative status change.
func (r *Reconciler) Transition(ctx context.Context, o *Order, to Status, opts TransitionOptions) (*Order, error) {
	fields := store.Fields{}
	if opts.TrackingNumber != "" {
		fields[FieldTrackingNumber] = opts.TrackingNumber
	}
	if to == StatusProcessing && o.Status != StatusProcessing &&
		o.TrackingNumber == "" && opts.TrackingNumber == "" && !opts.Override {
		return nil, fmt.Errorf("order %s: %w", o.OrderID, ErrTrackingRequired)
	}

	reason := opts.Reason
	if reason == "" {
		reason = "manual update"
	}
	if opts.Override {
		reason += " (override)"
	}
	return r.apply(ctx, o, to, fields, reason)
}

func (r *Reconciler) apply(ctx context.Context, o *Order, to Status, fields store.Fields, reason string) (*Order, error) {
	next, err := o.Status.TransitionTo(to)
	if err != nil {
		return nil, fmt.Errorf("order %s: %w", o.OrderID, err)
	}

	fields[FieldStatus] = next.String()
	if _, err := r.store.Update(ctx, TableOrders, o.RecordID, fields); err != nil {
		return nil, fmt.Errorf("updating order %s: %w", o.OrderID, err)
	}

	r.logger.Ctx(ctx).Info("Order status updated",
		zap.String("order_id", o.OrderID),
		zap.String("from", o.Status.String()),
		zap.String("to", next.String()),
		zap.String("reason", reason),
	)

	if o.Status != next {
		r.recordHistory(ctx, Transition{OrderID: o.OrderID, From: o.Status, To: next, At: r.now(), Reason: reason})
	}

	updated := *o
	updated.Status = next
	if v, ok := fields[FieldTrackingNumber].(string); ok {
		updated.TrackingNumber = v
	}
	if v, ok := fields[FieldShipmentID].(string); ok {
		updated.ShipmentID = v
	}
	if v, ok := fields[FieldLabelURL].(string); ok {
		updated.LabelURL = v
	}
	return &updated, nil
}

// recordHistory appends a history row. The order update has already been
// made, so a failure here is logged and not returned.
func (r *Reconciler) recordHistory(ctx context.Context, t Transition) {
	_, err := r.store.Create(ctx, TableHistory, store.Fields{
		FieldOrderID: t.OrderID,
		"From":       t.From.String(),
		"To":         t.To.String(),
		"At":         t.At.UTC().Format(time.RFC3339Nano),
		"Reason":     t.Reason,
	})
	if err != nil {
		r.logger.Ctx(ctx).Warn("Failed to record status history",
			zap.String("order_id", t.OrderID),
			zap.String("to", t.To.String()),
			zap.Error(err),
		)
	}
}

func decodeTransition(rec store.Record) Transition {
	t := Transition{
		OrderID: text(rec.Fields[FieldOrderID]),
		From:    Status(text(rec.Fields["From"])),
		To:      Status(text(rec.Fields["To"])),
		Reason:  text(rec.Fields["Reason"]),
		At:      rec.CreatedAt,
	}
	if at, err := time.Parse(time.RFC3339Nano, text(rec.Fields["At"])); err == nil {
		t.At = at
	}
	return t
}

// labelReference is the value stored in the Label URL field.
func labelReference(s *shipper.Shipment) string {
	if s.LabelData == "" {
		return ""
	}
	return "data:application/pdf;base64," + s.LabelData
}
