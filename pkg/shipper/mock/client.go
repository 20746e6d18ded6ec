// Package mock provides an in-memory shipper.Carrier for testing the
// fulfillment workflow without the carrier API.
package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/tournevent/fulfillment/pkg/shipper"
)

// Call records one invocation.
type Call struct {
	Method         string
	OrderNumber    string // CreateOrder
	CarrierOrderID string // CreateLabel
	ServiceCode    string
	CarrierCode    string
}

// Client is a mock carrier. Hooks override the default behavior; every call
// is recorded in order.
type Client struct {
	name string

	// Rates returned per carrier account code when OnGetRates is nil.
	Rates map[string][]shipper.CarrierRate

	OnCreateOrder func(ctx context.Context, req *shipper.OrderRequest) (*shipper.CarrierOrder, error)
	OnCreateLabel func(ctx context.Context, carrierOrderID, serviceCode string, opts shipper.LabelOptions) (*shipper.Label, error)
	OnGetRates    func(ctx context.Context, req *shipper.RateRequest) ([]shipper.CarrierRate, error)
	OnVoidLabel   func(ctx context.Context, shipmentID string) error
	OnGetTracking func(ctx context.Context, trackingNumber string) (*shipper.TrackingInfo, error)

	mu     sync.Mutex
	calls  []Call
	nextID int
}

// New creates a new mock carrier.
func New(name string) *Client {
	return &Client{
		name:   name,
		Rates:  make(map[string][]shipper.CarrierRate),
		nextID: 1000,
	}
}

// Name returns the carrier name.
func (c *Client) Name() string {
	return c.name
}

// Calls returns a copy of the recorded calls.
func (c *Client) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Call, len(c.calls))
	copy(out, c.calls)
	return out
}

// CallsTo returns the recorded calls of one method.
func (c *Client) CallsTo(method string) []Call {
	var out []Call
	for _, call := range c.Calls() {
		if call.Method == method {
			out = append(out, call)
		}
	}
	return out
}

func (c *Client) record(call Call) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, call)
	c.nextID++
	return c.nextID
}

// CreateOrder returns a sequential carrier order id.
func (c *Client) CreateOrder(ctx context.Context, req *shipper.OrderRequest) (*shipper.CarrierOrder, error) {
	id := c.record(Call{
		Method:      "CreateOrder",
		OrderNumber: req.OrderNumber,
		ServiceCode: req.ServiceCode,
		CarrierCode: req.CarrierCode,
	})
	if c.OnCreateOrder != nil {
		return c.OnCreateOrder(ctx, req)
	}
	return &shipper.CarrierOrder{
		OrderID:     fmt.Sprintf("%d", id),
		OrderNumber: req.OrderNumber,
		OrderKey:    req.OrderKey,
	}, nil
}

// CreateLabel returns a label whose tracking number derives from the carrier order id.
func (c *Client) CreateLabel(ctx context.Context, carrierOrderID, serviceCode string, opts shipper.LabelOptions) (*shipper.Label, error) {
	id := c.record(Call{
		Method:         "CreateLabel",
		CarrierOrderID: carrierOrderID,
		ServiceCode:    serviceCode,
		CarrierCode:    opts.CarrierCode,
	})
	if c.OnCreateLabel != nil {
		return c.OnCreateLabel(ctx, carrierOrderID, serviceCode, opts)
	}
	return &shipper.Label{
		ShipmentID:     fmt.Sprintf("%d", id),
		OrderID:        carrierOrderID,
		TrackingNumber: "TRK-" + carrierOrderID,
		LabelData:      "JVBERi0xLjQ=",
	}, nil
}

// GetRates returns the canned rates for the requested account.
func (c *Client) GetRates(ctx context.Context, req *shipper.RateRequest) ([]shipper.CarrierRate, error) {
	c.record(Call{Method: "GetRates", CarrierCode: req.CarrierCode})
	if c.OnGetRates != nil {
		return c.OnGetRates(ctx, req)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	rates := c.Rates[req.CarrierCode]
	out := make([]shipper.CarrierRate, len(rates))
	copy(out, rates)
	return out, nil
}

// VoidLabel succeeds unless OnVoidLabel says otherwise.
func (c *Client) VoidLabel(ctx context.Context, shipmentID string) error {
	c.record(Call{Method: "VoidLabel", CarrierOrderID: shipmentID})
	if c.OnVoidLabel != nil {
		return c.OnVoidLabel(ctx, shipmentID)
	}
	return nil
}

// GetTracking reports the tracking number as in transit unless
// OnGetTracking says otherwise.
func (c *Client) GetTracking(ctx context.Context, trackingNumber string) (*shipper.TrackingInfo, error) {
	c.record(Call{Method: "GetTracking", CarrierOrderID: trackingNumber})
	if c.OnGetTracking != nil {
		return c.OnGetTracking(ctx, trackingNumber)
	}
	return &shipper.TrackingInfo{TrackingNumber: trackingNumber, Status: "in_transit"}, nil
}

// Ensure Client implements shipper.Carrier interface
var _ shipper.Carrier = (*Client)(nil)
