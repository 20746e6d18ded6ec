// Package shipper provides an abstraction layer over the shipping carrier API
// used to create carrier orders, buy labels and shop rates.
package shipper

import (
	"context"
)

// Carrier defines the operations the fulfillment core needs from the carrier API.
type Carrier interface {
	// Name returns the integration identifier (e.g., "shipstation").
	Name() string

	// CreateOrder registers an order with the carrier and returns its carrier-side id.
	CreateOrder(ctx context.Context, req *OrderRequest) (*CarrierOrder, error)

	// CreateLabel buys a label for a previously created carrier order.
	CreateLabel(ctx context.Context, carrierOrderID, serviceCode string, opts LabelOptions) (*Label, error)

	// GetRates returns the raw rates offered by one carrier account.
	GetRates(ctx context.Context, req *RateRequest) ([]CarrierRate, error)

	// VoidLabel voids a purchased label.
	VoidLabel(ctx context.Context, shipmentID string) error

	// GetTracking looks up the latest carrier status of a tracking number.
	GetTracking(ctx context.Context, trackingNumber string) (*TrackingInfo, error)
}
