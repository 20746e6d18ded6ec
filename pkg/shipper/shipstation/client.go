// Package shipstation provides integration with the ShipStation API, which
// fronts the postal (Stamps.com) and parcel (UPS) carrier accounts.
package shipstation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tournevent/fulfillment/pkg/shipper"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const carrierName = "shipstation"

// Sentinel id the API uses for an order it did not persist.
const placeholderOrderID = "-1"

// Config holds ShipStation configuration.
type Config struct {
	APIKey    string
	APISecret string
	BaseURL   string
	Timeout   time.Duration // per call
	RateLimit float64       // requests per second, 0 disables limiting
	TestLabel bool          // buy test labels
	UseMock   bool          // When true, uses mock API client
}

// Client is the ShipStation carrier client.
// It implements the shipper.Carrier interface and delegates
// API calls to the underlying APIClient (mock or HTTP).
type Client struct {
	config    Config
	apiClient APIClient
	logger    *otelzap.Logger
	tracer    trace.Tracer
}

// New creates a new ShipStation client. Missing credentials are a
// configuration error, reported before any request is made.
func New(cfg Config, logger *otelzap.Logger, tracer trace.Tracer) (*Client, error) {
	var missing []string
	if strings.TrimSpace(cfg.APIKey) == "" {
		missing = append(missing, "SHIPSTATION_API_KEY")
	}
	if strings.TrimSpace(cfg.APISecret) == "" {
		missing = append(missing, "SHIPSTATION_API_SECRET")
	}
	if len(missing) > 0 {
		return nil, &shipper.ConfigurationError{Component: carrierName, Missing: missing}
	}

	var apiClient APIClient
	if cfg.UseMock {
		apiClient = NewMockAPIClient()
	} else {
		apiClient = NewHTTPAPIClient(HTTPAPIClientConfig{
			BaseURL:   cfg.BaseURL,
			APIKey:    cfg.APIKey,
			APISecret: cfg.APISecret,
			Timeout:   cfg.Timeout,
			RateLimit: cfg.RateLimit,
		})
	}

	return NewWithAPIClient(cfg, apiClient, logger, tracer), nil
}

// NewWithAPIClient creates a new ShipStation client with a custom API client.
// This is useful for injecting mock clients in tests.
func NewWithAPIClient(cfg Config, apiClient APIClient, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	if tracer == nil {
		tracer = otel.Tracer("github.com/tournevent/fulfillment/pkg/shipper/shipstation")
	}
	return &Client{
		config:    cfg,
		apiClient: apiClient,
		logger:    logger,
		tracer:    tracer,
	}
}

// Name returns the integration name.
func (c *Client) Name() string {
	return carrierName
}

// CreateOrder registers an order and returns its ShipStation id.
func (c *Client) CreateOrder(ctx context.Context, req *shipper.OrderRequest) (*shipper.CarrierOrder, error) {
	ctx, span := c.tracer.Start(ctx, "shipstation.CreateOrder", trace.WithAttributes(
		attribute.String("order.number", req.OrderNumber),
		attribute.String("carrier.code", req.CarrierCode),
		attribute.String("service.code", req.ServiceCode),
	))
	defer span.End()

	if req.OrderNumber == "" {
		return nil, c.fail(span, shipper.NewValidationError("orderNumber", "required"))
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	c.logger.Ctx(ctx).Info("Creating ShipStation order",
		zap.String("order_number", req.OrderNumber),
		zap.String("carrier_code", req.CarrierCode),
		zap.String("service_code", req.ServiceCode),
	)

	apiResp, err := c.apiClient.CreateOrder(ctx, orderRequestToAPI(req))
	if err != nil {
		return nil, c.fail(span, c.classify(ctx, "create order", err))
	}

	span.SetAttributes(attribute.String("carrier.order_id", string(apiResp.OrderID)))
	return &shipper.CarrierOrder{
		OrderID:     string(apiResp.OrderID),
		OrderNumber: apiResp.OrderNumber,
		OrderKey:    apiResp.OrderKey,
	}, nil
}

// CreateLabel buys a label for a carrier order. Inputs are validated before
// any request is sent; a 2xx answer without label data is an
// IncompleteLabelError.
func (c *Client) CreateLabel(ctx context.Context, carrierOrderID, serviceCode string, opts shipper.LabelOptions) (*shipper.Label, error) {
	ctx, span := c.tracer.Start(ctx, "shipstation.CreateLabel", trace.WithAttributes(
		attribute.String("carrier.order_id", carrierOrderID),
		attribute.String("carrier.code", opts.CarrierCode),
		attribute.String("service.code", serviceCode),
	))
	defer span.End()

	apiReq, err := c.labelRequest(carrierOrderID, serviceCode, opts)
	if err != nil {
		return nil, c.fail(span, err)
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	c.logger.Ctx(ctx).Info("Creating ShipStation label",
		zap.String("carrier_order_id", carrierOrderID),
		zap.String("carrier_code", opts.CarrierCode),
		zap.String("service_code", serviceCode),
	)

	apiResp, err := c.apiClient.CreateLabel(ctx, apiReq)
	if err != nil {
		return nil, c.fail(span, c.classify(ctx, "create label", err))
	}

	if strings.TrimSpace(apiResp.LabelData) == "" {
		return nil, c.fail(span, &shipper.IncompleteLabelError{
			CarrierOrderID: carrierOrderID,
			ShipmentID:     string(apiResp.ShipmentID),
		})
	}

	span.SetAttributes(attribute.String("shipment.id", string(apiResp.ShipmentID)))
	return &shipper.Label{
		ShipmentID:     string(apiResp.ShipmentID),
		OrderID:        string(apiResp.OrderID),
		TrackingNumber: apiResp.TrackingNumber,
		LabelData:      apiResp.LabelData,
		ShipmentCost:   apiResp.ShipmentCost,
	}, nil
}

// GetRates returns the rates one carrier account offers for a package.
func (c *Client) GetRates(ctx context.Context, req *shipper.RateRequest) ([]shipper.CarrierRate, error) {
	ctx, span := c.tracer.Start(ctx, "shipstation.GetRates", trace.WithAttributes(
		attribute.String("carrier.code", req.CarrierCode),
		attribute.String("to.postal_code", req.ToPostalCode),
	))
	defer span.End()

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	c.logger.Ctx(ctx).Debug("Getting ShipStation rates",
		zap.String("carrier_code", req.CarrierCode),
		zap.String("from_postal_code", req.FromPostalCode),
		zap.String("to_postal_code", req.ToPostalCode),
		zap.Float64("weight_oz", req.Weight.Ounces()),
	)

	apiResp, err := c.apiClient.GetRates(ctx, ratesRequestToAPI(req))
	if err != nil {
		return nil, c.fail(span, c.classify(ctx, "get rates", err))
	}

	span.SetAttributes(attribute.Int("rates.count", len(apiResp)))
	return ratesResponseToShipper(apiResp), nil
}

// VoidLabel voids a purchased label.
func (c *Client) VoidLabel(ctx context.Context, shipmentID string) error {
	ctx, span := c.tracer.Start(ctx, "shipstation.VoidLabel", trace.WithAttributes(
		attribute.String("shipment.id", shipmentID),
	))
	defer span.End()

	if strings.TrimSpace(shipmentID) == "" {
		return c.fail(span, shipper.NewValidationError("shipmentId", "required"))
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	c.logger.Ctx(ctx).Info("Voiding ShipStation label", zap.String("shipment_id", shipmentID))

	apiResp, err := c.apiClient.VoidLabel(ctx, shipmentID)
	if err != nil {
		return c.fail(span, c.classify(ctx, "void label", err))
	}
	if !apiResp.Approved {
		return c.fail(span, shipper.NewCarrierError(carrierName, "VOID_REJECTED", apiResp.Message))
	}
	return nil
}

// GetTracking looks up the carrier status of a tracking number.
func (c *Client) GetTracking(ctx context.Context, trackingNumber string) (*shipper.TrackingInfo, error) {
	ctx, span := c.tracer.Start(ctx, "shipstation.GetTracking", trace.WithAttributes(
		attribute.String("tracking.number", trackingNumber),
	))
	defer span.End()

	trackingNumber = strings.TrimSpace(trackingNumber)
	if trackingNumber == "" {
		return nil, c.fail(span, shipper.NewValidationError("trackingNumber", "required"))
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	c.logger.Ctx(ctx).Debug("Fetching ShipStation tracking", zap.String("tracking_number", trackingNumber))

	apiResp, err := c.apiClient.Track(ctx, &TrackRequest{TrackingNumber: trackingNumber})
	if err != nil {
		return nil, c.fail(span, c.classify(ctx, "track", err))
	}

	info := trackingToShipper(apiResp)
	if info.TrackingNumber == "" {
		info.TrackingNumber = trackingNumber
	}
	span.SetAttributes(attribute.String("tracking.status", info.Status))
	return info, nil
}

func (c *Client) labelRequest(carrierOrderID, serviceCode string, opts shipper.LabelOptions) (*CreateLabelRequest, error) {
	carrierOrderID = strings.TrimSpace(carrierOrderID)
	if carrierOrderID == "" || carrierOrderID == placeholderOrderID {
		return nil, shipper.NewValidationError("carrierOrderId", "missing or placeholder order id")
	}
	orderID, err := ID(carrierOrderID).Int64()
	if err != nil {
		return nil, shipper.NewValidationError("carrierOrderId", "must be numeric")
	}
	if serviceCode == "" {
		return nil, shipper.NewValidationError("serviceCode", "required")
	}
	if opts.Weight.Value <= 0 {
		return nil, shipper.NewValidationError("weight", "must be greater than zero")
	}
	if missing := opts.ShipTo.MissingFields(); len(missing) > 0 {
		return nil, shipper.NewValidationError("shipTo", "missing "+strings.Join(missing, ", "))
	}
	if strings.TrimSpace(opts.PackageCode) == "" {
		return nil, shipper.NewValidationError("packageCode", "required")
	}

	req := &CreateLabelRequest{
		OrderID:      orderID,
		CarrierCode:  opts.CarrierCode,
		ServiceCode:  serviceCode,
		PackageCode:  opts.PackageCode,
		Confirmation: opts.Confirmation,
		ShipDate:     time.Now().Format("2006-01-02"),
		Weight:       weightToAPI(opts.Weight),
		Dimensions:   dimensionsToAPI(opts.Dimensions),
		ShipFrom:     addressToAPI(opts.ShipFrom),
		ShipTo:       addressToAPI(opts.ShipTo),
		TestLabel:    opts.TestLabel || c.config.TestLabel,
	}
	return req, nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.config.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.config.Timeout)
}

func (c *Client) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// classify turns an API client error into a shipper.CarrierError.
func (c *Client) classify(ctx context.Context, op string, err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		carrierErr := shipper.NewCarrierError(carrierName, fmt.Sprintf("HTTP_%d", apiErr.StatusCode), apiErr.Message).
			WithStatusCode(apiErr.StatusCode).
			WithBody(apiErr.Body)

		switch {
		case apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden:
			carrierErr.WithCause(shipper.ErrAuthenticationFailed)
		case apiErr.StatusCode == http.StatusTooManyRequests:
			carrierErr.WithCause(shipper.ErrRateLimitExceeded).WithRetryable(true)
		case apiErr.StatusCode >= 500:
			carrierErr.WithCause(shipper.ErrServiceUnavailable).WithRetryable(true)
		}

		c.logger.Ctx(ctx).Error("ShipStation API error",
			zap.String("operation", op),
			zap.Int("status", apiErr.StatusCode),
			zap.String("message", apiErr.Message),
		)
		c.logger.Ctx(ctx).Debug("ShipStation error body", zap.String("operation", op), zap.String("body", apiErr.Body))
		return carrierErr
	}

	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
		c.logger.Ctx(ctx).Error("ShipStation call timed out", zap.String("operation", op), zap.Error(err))
		return shipper.NewCarrierError(carrierName, "TIMEOUT", op+" timed out").
			WithCause(err).
			WithRetryable(true)
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		c.logger.Ctx(ctx).Error("ShipStation response not understood", zap.String("operation", op), zap.Error(err))
		return shipper.NewCarrierError(carrierName, "DECODE", op+" returned an unreadable response").WithCause(err)
	}

	c.logger.Ctx(ctx).Error("ShipStation transport error", zap.String("operation", op), zap.Error(err))
	return shipper.NewCarrierError(carrierName, "TRANSPORT", op+" failed").
		WithCause(err).
		WithRetryable(true)
}

// ============================================================================
// Conversion helpers: Shipper models -> API models
// ============================================================================

func addressToAPI(addr shipper.Address) Address {
	country := addr.Country
	if country == "" {
		country = "US"
	}
	return Address{
		Name:        addr.Name,
		Company:     addr.Company,
		Street1:     addr.Street1,
		Street2:     addr.Street2,
		City:        addr.City,
		State:       addr.State,
		PostalCode:  addr.PostalCode,
		Country:     country,
		Phone:       addr.Phone,
		Residential: addr.Residential,
	}
}

func weightToAPI(w shipper.Weight) Weight {
	units := string(w.Units)
	if units == "" {
		units = string(shipper.WeightOunces)
	}
	return Weight{Value: w.Value, Units: units}
}

func dimensionsToAPI(d shipper.Dimensions) *Dimensions {
	if d.Length == 0 && d.Width == 0 && d.Height == 0 {
		return nil
	}
	units := string(d.Units)
	if units == "" {
		units = string(shipper.DimensionInches)
	}
	return &Dimensions{Length: d.Length, Width: d.Width, Height: d.Height, Units: units}
}

func orderRequestToAPI(req *shipper.OrderRequest) *CreateOrderRequest {
	items := make([]OrderItem, 0, len(req.Items))
	for i, item := range req.Items {
		apiItem := OrderItem{
			LineItemKey: fmt.Sprintf("%s-%d", req.OrderNumber, i+1),
			SKU:         item.SKU,
			Name:        item.Name,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		}
		if item.Weight.Value > 0 {
			w := weightToAPI(item.Weight)
			apiItem.Weight = &w
		}
		items = append(items, apiItem)
	}

	weight := weightToAPI(req.Weight)
	shipTo := addressToAPI(req.ShipTo)

	return &CreateOrderRequest{
		OrderNumber:      req.OrderNumber,
		OrderKey:         req.OrderKey,
		OrderDate:        time.Now().UTC().Format(apiTimeLayout),
		OrderStatus:      "awaiting_shipment",
		CustomerUsername: req.CustomerEmail,
		CustomerEmail:    req.CustomerEmail,
		BillTo:           shipTo,
		ShipTo:           shipTo,
		Items:            items,
		AmountPaid:       req.AmountPaid,
		CarrierCode:      req.CarrierCode,
		ServiceCode:      req.ServiceCode,
		PackageCode:      req.PackageCode,
		Confirmation:     req.Confirmation,
		Weight:           &weight,
		Dimensions:       dimensionsToAPI(req.Dimensions),
	}
}

func ratesRequestToAPI(req *shipper.RateRequest) *RatesRequest {
	country := req.ToCountry
	if country == "" {
		country = "US"
	}
	return &RatesRequest{
		CarrierCode:    req.CarrierCode,
		PackageCode:    req.PackageCode,
		FromPostalCode: req.FromPostalCode,
		ToState:        req.ToState,
		ToCountry:      country,
		ToPostalCode:   req.ToPostalCode,
		Weight:         weightToAPI(req.Weight),
		Dimensions:     dimensionsToAPI(req.Dimensions),
		Confirmation:   "none",
		Residential:    req.Residential,
	}
}

// ============================================================================
// Conversion helpers: API models -> Shipper models
// ============================================================================

func ratesResponseToShipper(resp []RateResponse) []shipper.CarrierRate {
	rates := make([]shipper.CarrierRate, 0, len(resp))
	for _, r := range resp {
		if r.ServiceCode == "" || r.ShipmentCost < 0 || r.OtherCost < 0 {
			continue
		}
		rate := shipper.CarrierRate{
			ServiceCode:  r.ServiceCode,
			ServiceName:  r.ServiceName,
			ShipmentCost: r.ShipmentCost,
			OtherCost:    r.OtherCost,
		}
		if r.TransitDays != nil && *r.TransitDays > 0 {
			rate.TransitDays = *r.TransitDays
		}
		rates = append(rates, rate)
	}
	return rates
}

// apiTimeLayout is how the API writes zoneless timestamps.
const apiTimeLayout = "2006-01-02T15:04:05.0000000"

func trackingToShipper(resp *TrackingResponse) *shipper.TrackingInfo {
	info := &shipper.TrackingInfo{
		TrackingNumber: resp.TrackingNumber,
		Status:         strings.ToLower(strings.TrimSpace(resp.Status)),
		CarrierCode:    resp.CarrierCode,
		TrackingURL:    resp.TrackingURL,
	}
	for _, layout := range []string{time.RFC3339Nano, apiTimeLayout} {
		if t, err := time.Parse(layout, resp.StatusDate); err == nil {
			info.StatusDate = t.UTC()
			break
		}
	}
	return info
}

// Ensure Client implements shipper.Carrier interface
var _ shipper.Carrier = (*Client)(nil)
