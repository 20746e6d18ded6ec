package shipstation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
)

// APIClient defines the interface for ShipStation API operations.
// This abstraction allows for mock implementations during testing
// and real implementations in production.
type APIClient interface {
	// CreateOrder creates or updates an order. POST /orders/createorder
	CreateOrder(ctx context.Context, req *CreateOrderRequest) (*OrderResponse, error)

	// CreateLabel buys a label for an order. POST /shipments/createlabel
	CreateLabel(ctx context.Context, req *CreateLabelRequest) (*LabelResponse, error)

	// GetRates lists rates for one carrier account. POST /shipments/getrates
	GetRates(ctx context.Context, req *RatesRequest) ([]RateResponse, error)

	// VoidLabel voids a label. POST /shipments/{shipmentId}/voidlabel
	VoidLabel(ctx context.Context, shipmentID string) (*VoidLabelResponse, error)

	// Track looks up a tracking number. POST /shipments/track
	Track(ctx context.Context, req *TrackRequest) (*TrackingResponse, error)
}

// ============================================================================
// API Request/Response Types (match ShipStation REST API structure)
// ============================================================================

// ID is a carrier identifier that the API sends either as a JSON number or
// as a string.
type ID string

// UnmarshalJSON accepts numbers, strings and null.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a number or string: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// Int64 parses the identifier as the integer the API expects in requests.
func (id ID) Int64() (int64, error) {
	return strconv.ParseInt(string(id), 10, 64)
}

// Address as the API spells it.
type Address struct {
	Name        string `json:"name"`
	Company     string `json:"company,omitempty"`
	Street1     string `json:"street1"`
	Street2     string `json:"street2,omitempty"`
	City        string `json:"city"`
	State       string `json:"state"`
	PostalCode  string `json:"postalCode"`
	Country     string `json:"country"`
	Phone       string `json:"phone,omitempty"`
	Residential bool   `json:"residential"`
}

// Weight is always sent as {value, units}.
type Weight struct {
	Value float64 `json:"value"`
	Units string  `json:"units"`
}

// Dimensions of the package.
type Dimensions struct {
	Length float64 `json:"length"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Units  string  `json:"units"`
}

// OrderItem is one line of the order manifest.
type OrderItem struct {
	LineItemKey string  `json:"lineItemKey,omitempty"`
	SKU         string  `json:"sku,omitempty"`
	Name        string  `json:"name"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unitPrice"`
	Weight      *Weight `json:"weight,omitempty"`
}

// CreateOrderRequest represents a ShipStation create order request.
// POST /orders/createorder
type CreateOrderRequest struct {
	OrderNumber      string      `json:"orderNumber"`
	OrderKey         string      `json:"orderKey,omitempty"` // upsert key
	OrderDate        string      `json:"orderDate"`
	OrderStatus      string      `json:"orderStatus"` // "awaiting_shipment"
	CustomerUsername string      `json:"customerUsername,omitempty"`
	CustomerEmail    string      `json:"customerEmail,omitempty"`
	BillTo           Address     `json:"billTo"`
	ShipTo           Address     `json:"shipTo"`
	Items            []OrderItem `json:"items"`
	AmountPaid       float64     `json:"amountPaid"`
	CarrierCode      string      `json:"carrierCode,omitempty"`
	ServiceCode      string      `json:"serviceCode,omitempty"`
	PackageCode      string      `json:"packageCode,omitempty"`
	Confirmation     string      `json:"confirmation,omitempty"`
	Weight           *Weight     `json:"weight,omitempty"`
	Dimensions       *Dimensions `json:"dimensions,omitempty"`
}

// OrderResponse is the order as stored by ShipStation.
type OrderResponse struct {
	OrderID     ID     `json:"orderId"`
	OrderNumber string `json:"orderNumber"`
	OrderKey    string `json:"orderKey"`
	OrderStatus string `json:"orderStatus"`
}

// CreateLabelRequest represents a ShipStation label purchase.
// POST /shipments/createlabel
type CreateLabelRequest struct {
	OrderID      int64       `json:"orderId"`
	CarrierCode  string      `json:"carrierCode"`
	ServiceCode  string      `json:"serviceCode"`
	PackageCode  string      `json:"packageCode"`
	Confirmation string      `json:"confirmation,omitempty"`
	ShipDate     string      `json:"shipDate"` // YYYY-MM-DD
	Weight       Weight      `json:"weight"`
	Dimensions   *Dimensions `json:"dimensions,omitempty"`
	ShipFrom     Address     `json:"shipFrom"`
	ShipTo       Address     `json:"shipTo"`
	TestLabel    bool        `json:"testLabel"`
}

// LabelResponse is a purchased label.
type LabelResponse struct {
	ShipmentID     ID      `json:"shipmentId"`
	OrderID        ID      `json:"orderId"`
	ShipmentCost   float64 `json:"shipmentCost"`
	InsuranceCost  float64 `json:"insuranceCost"`
	TrackingNumber string  `json:"trackingNumber"`
	LabelData      string  `json:"labelData"` // base64 PDF
	FormData       string  `json:"formData,omitempty"`
}

// RatesRequest asks for rates from one carrier account.
// POST /shipments/getrates
type RatesRequest struct {
	CarrierCode    string      `json:"carrierCode"`
	ServiceCode    *string     `json:"serviceCode"`
	PackageCode    string      `json:"packageCode"`
	FromPostalCode string      `json:"fromPostalCode"`
	ToState        string      `json:"toState"`
	ToCountry      string      `json:"toCountry"`
	ToPostalCode   string      `json:"toPostalCode"`
	Weight         Weight      `json:"weight"`
	Dimensions     *Dimensions `json:"dimensions,omitempty"`
	Confirmation   string      `json:"confirmation,omitempty"`
	Residential    bool        `json:"residential"`
}

// RateResponse is one rate returned by getrates.
type RateResponse struct {
	ServiceName  string  `json:"serviceName"`
	ServiceCode  string  `json:"serviceCode"`
	ShipmentCost float64 `json:"shipmentCost"`
	OtherCost    float64 `json:"otherCost"`
	TransitDays  *int    `json:"transitDays,omitempty"`
	CarrierCode  string  `json:"carrierCode,omitempty"`
}

// VoidLabelResponse reports whether the void was approved.
type VoidLabelResponse struct {
	Approved bool   `json:"approved"`
	Message  string `json:"message"`
}

// TrackRequest asks for the status of one tracking number.
// POST /shipments/track
type TrackRequest struct {
	TrackingNumber string `json:"trackingNumber"`
}

// TrackingResponse is the carrier status of a tracking number.
type TrackingResponse struct {
	TrackingNumber string `json:"trackingNumber"`
	Status         string `json:"status"`
	StatusDate     string `json:"statusDate"`
	CarrierCode    string `json:"carrierCode"`
	TrackingURL    string `json:"trackingUrl,omitempty"`
}

// APIError is a non-2xx answer from the API.
type APIError struct {
	StatusCode int
	Message    string
	Body       string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("shipstation API error (HTTP %d): %s", e.StatusCode, e.Message)
}
