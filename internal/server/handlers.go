package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/tournevent/fulfillment/internal/order"
	"github.com/tournevent/fulfillment/pkg/shipper"
)

type shopRatesRequest struct {
	Destination shipper.Address       `json:"destination"`
	Items       []shipper.PackageItem `json:"items"`
}

type checkoutRequest struct {
	OrderID        string                `json:"orderId"`
	CustomerName   string                `json:"customerName"`
	Email          string                `json:"email"`
	Phone          string                `json:"phone"`
	ShipTo         shipper.Address       `json:"shipTo"`
	Items          []shipper.PackageItem `json:"items"`
	ShippingMethod string                `json:"shippingMethod"`
	Total          float64               `json:"total"`
}

type fulfillRequest struct {
	RateID string `json:"rateId"`
}

type bulkRequest struct {
	OrderIDs []string `json:"orderIds"`
}

type statusRequest struct {
	Status         string `json:"status"`
	TrackingNumber string `json:"trackingNumber"`
	Override       bool   `json:"override"`
	Reason         string `json:"reason"`
}

// orderResponse is the public view of an order.
type orderResponse struct {
	OrderID        string                `json:"orderId"`
	Status         string                `json:"status"`
	CustomerName   string                `json:"customerName"`
	Email          string                `json:"email,omitempty"`
	ShipTo         shipper.Address       `json:"shipTo"`
	Items          []shipper.PackageItem `json:"items"`
	ShippingMethod string                `json:"shippingMethod,omitempty"`
	Total          float64               `json:"total"`
	ShipmentID     string                `json:"shipmentId,omitempty"`
	TrackingNumber string                `json:"trackingNumber,omitempty"`
	LabelURL       string                `json:"labelUrl,omitempty"`
	PlacedAt       time.Time             `json:"placedAt"`
	History        []transitionResponse  `json:"history,omitempty"`
}

type transitionResponse struct {
	From   string    `json:"from,omitempty"`
	To     string    `json:"to"`
	At     time.Time `json:"at"`
	Reason string    `json:"reason,omitempty"`
}

func toOrderResponse(o *order.Order) orderResponse {
	items := o.Items
	if items == nil {
		items = []shipper.PackageItem{}
	}
	return orderResponse{
		OrderID:        o.OrderID,
		Status:         o.Status.String(),
		CustomerName:   o.CustomerName,
		Email:          o.Email,
		ShipTo:         o.ShipTo,
		Items:          items,
		ShippingMethod: o.ShippingMethod,
		Total:          o.Total,
		ShipmentID:     o.ShipmentID,
		TrackingNumber: o.TrackingNumber,
		LabelURL:       o.LabelURL,
		PlacedAt:       o.PlacedAt,
	}
}

// handleShopRates handles POST /v1/rates.
func (s *Server) handleShopRates(c echo.Context) error {
	var req shopRatesRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	rates, err := s.service.ShopRates(c.Request().Context(), req.Destination, req.Items)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, rates)
}

// handleCheckout handles POST /v1/orders.
func (s *Server) handleCheckout(c echo.Context) error {
	var req checkoutRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	shipTo := req.ShipTo
	if shipTo.Name == "" {
		shipTo.Name = req.CustomerName
	}
	o, err := s.service.RecordCheckout(c.Request().Context(), order.Draft{
		OrderID:        req.OrderID,
		CustomerName:   req.CustomerName,
		Email:          req.Email,
		Phone:          req.Phone,
		ShipTo:         shipTo,
		Items:          req.Items,
		ShippingMethod: req.ShippingMethod,
		Total:          req.Total,
	})
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusCreated, toOrderResponse(o))
}

// handleGetOrder handles GET /v1/orders/:id.
func (s *Server) handleGetOrder(c echo.Context) error {
	ctx := c.Request().Context()
	o, err := s.service.Orders().Get(ctx, c.Param("id"))
	if err != nil {
		return s.fail(c, err)
	}
	history, err := s.service.Orders().History(ctx, o.OrderID)
	if err != nil {
		return s.fail(c, err)
	}

	resp := toOrderResponse(o)
	for _, t := range history {
		resp.History = append(resp.History, transitionResponse{
			From:   t.From.String(),
			To:     t.To.String(),
			At:     t.At,
			Reason: t.Reason,
		})
	}
	return c.JSON(http.StatusOK, resp)
}

// handleFulfill handles POST /v1/orders/:id/fulfill.
func (s *Server) handleFulfill(c echo.Context) error {
	var req fulfillRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.RateID == "" {
		return badRequest(c, "rateId is required")
	}
	shipment, err := s.service.FulfillOrder(c.Request().Context(), c.Param("id"), req.RateID)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, shipment)
}

// handleBulk handles POST /v1/fulfillments/bulk.
func (s *Server) handleBulk(c echo.Context) error {
	var req bulkRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if len(req.OrderIDs) == 0 {
		return badRequest(c, "orderIds must not be empty")
	}
	res, err := s.service.FulfillBulk(c.Request().Context(), req.OrderIDs)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// handleUpdateStatus handles POST /v1/orders/:id/status.
func (s *Server) handleUpdateStatus(c echo.Context) error {
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	status, err := order.ParseStatus(req.Status)
	if err != nil {
		return s.fail(c, err)
	}
	o, err := s.service.UpdateStatus(c.Request().Context(), c.Param("id"), status, order.TransitionOptions{
		Override:       req.Override,
		TrackingNumber: req.TrackingNumber,
		Reason:         req.Reason,
	})
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, toOrderResponse(o))
}

// handleVoid handles POST /v1/orders/:id/void.
func (s *Server) handleVoid(c echo.Context) error {
	o, err := s.service.VoidLabel(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, toOrderResponse(o))
}

func (s *Server) handleTracking(c echo.Context) error {
	info, err := s.service.Tracking(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, info)
}
