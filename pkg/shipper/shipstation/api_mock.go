package shipstation

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// MockAPIClient is a mock implementation of APIClient for testing.
type MockAPIClient struct {
	SimulateErrors  bool
	SimulateLatency time.Duration

	OnCreateOrder func(ctx context.Context, req *CreateOrderRequest) (*OrderResponse, error)
	OnCreateLabel func(ctx context.Context, req *CreateLabelRequest) (*LabelResponse, error)
	OnGetRates    func(ctx context.Context, req *RatesRequest) ([]RateResponse, error)
	OnVoidLabel   func(ctx context.Context, shipmentID string) (*VoidLabelResponse, error)
	OnTrack       func(ctx context.Context, req *TrackRequest) (*TrackingResponse, error)

	nextID atomic.Int64
	calls  atomic.Int64
}

// NewMockAPIClient creates a new mock API client with default behavior.
func NewMockAPIClient() *MockAPIClient {
	m := &MockAPIClient{}
	m.nextID.Store(100000)
	return m
}

// Calls returns how many API calls reached the mock.
func (m *MockAPIClient) Calls() int {
	return int(m.calls.Load())
}

func (m *MockAPIClient) before(ctx context.Context) error {
	m.calls.Add(1)
	if m.SimulateLatency > 0 {
		select {
		case <-time.After(m.SimulateLatency):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if m.SimulateErrors {
		return &APIError{StatusCode: 500, Message: "Simulated API error", Body: `{"Message":"Simulated API error"}`}
	}
	return nil
}

// CreateOrder returns a mock carrier order.
func (m *MockAPIClient) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*OrderResponse, error) {
	if err := m.before(ctx); err != nil {
		return nil, err
	}

	if m.OnCreateOrder != nil {
		return m.OnCreateOrder(ctx, req)
	}

	return &OrderResponse{
		OrderID:     ID(fmt.Sprintf("%d", m.nextID.Add(1))),
		OrderNumber: req.OrderNumber,
		OrderKey:    req.OrderKey,
		OrderStatus: req.OrderStatus,
	}, nil
}

// CreateLabel returns a mock label.
func (m *MockAPIClient) CreateLabel(ctx context.Context, req *CreateLabelRequest) (*LabelResponse, error) {
	if err := m.before(ctx); err != nil {
		return nil, err
	}

	if m.OnCreateLabel != nil {
		return m.OnCreateLabel(ctx, req)
	}

	tracking := "9400" + strings.ReplaceAll(uuid.New().String(), "-", "")[:18]
	if strings.HasPrefix(req.CarrierCode, "ups") {
		tracking = "1Z" + strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:16])
	}

	return &LabelResponse{
		ShipmentID:     ID(fmt.Sprintf("%d", m.nextID.Add(1))),
		OrderID:        ID(fmt.Sprintf("%d", req.OrderID)),
		ShipmentCost:   7.35,
		TrackingNumber: tracking,
		LabelData:      base64.StdEncoding.EncodeToString([]byte("%PDF-1.4 mock label")),
	}, nil
}

// GetRates returns canned rates for the postal and parcel accounts.
func (m *MockAPIClient) GetRates(ctx context.Context, req *RatesRequest) ([]RateResponse, error) {
	if err := m.before(ctx); err != nil {
		return nil, err
	}

	if m.OnGetRates != nil {
		return m.OnGetRates(ctx, req)
	}

	if strings.HasPrefix(req.CarrierCode, "ups") {
		return []RateResponse{
			{ServiceName: "UPS® Ground", ServiceCode: "ups_ground", ShipmentCost: 11.20, OtherCost: 0.85},
			{ServiceName: "UPS 2nd Day Air®", ServiceCode: "ups_2nd_day_air", ShipmentCost: 24.10, OtherCost: 1.80},
			{ServiceName: "UPS Next Day Air®", ServiceCode: "ups_next_day_air", ShipmentCost: 48.75, OtherCost: 3.60},
		}, nil
	}

	return []RateResponse{
		{ServiceName: "USPS First Class Mail - Package", ServiceCode: "usps_first_class_mail", ShipmentCost: 4.50},
		{ServiceName: "USPS Priority Mail - Package", ServiceCode: "usps_priority_mail", ShipmentCost: 8.70},
		{ServiceName: "USPS Priority Mail Express - Package", ServiceCode: "usps_priority_mail_express", ShipmentCost: 28.75},
		{ServiceName: "USPS Media Mail - Package", ServiceCode: "usps_media_mail", ShipmentCost: 3.65},
	}, nil
}

// VoidLabel approves every void.
func (m *MockAPIClient) VoidLabel(ctx context.Context, shipmentID string) (*VoidLabelResponse, error) {
	if err := m.before(ctx); err != nil {
		return nil, err
	}

	if m.OnVoidLabel != nil {
		return m.OnVoidLabel(ctx, shipmentID)
	}

	return &VoidLabelResponse{Approved: true, Message: "Label voided successfully"}, nil
}

// Track reports every shipment as in transit since midnight UTC.
func (m *MockAPIClient) Track(ctx context.Context, req *TrackRequest) (*TrackingResponse, error) {
	if err := m.before(ctx); err != nil {
		return nil, err
	}

	if m.OnTrack != nil {
		return m.OnTrack(ctx, req)
	}

	carrier := "stamps_com"
	if strings.HasPrefix(req.TrackingNumber, "1Z") {
		carrier = "ups"
	}
	return &TrackingResponse{
		TrackingNumber: req.TrackingNumber,
		Status:         "IN_TRANSIT",
		StatusDate:     time.Now().UTC().Truncate(24 * time.Hour).Format(apiTimeLayout),
		CarrierCode:    carrier,
	}, nil
}

// Ensure MockAPIClient implements APIClient interface
var _ APIClient = (*MockAPIClient)(nil)
