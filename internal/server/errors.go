package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/tournevent/fulfillment/internal/fulfillment"
	"github.com/tournevent/fulfillment/internal/order"
	"github.com/tournevent/fulfillment/pkg/shipper"
	"go.uber.org/zap"
)

// errorResponse is the body of every failed request.
type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// statusOf maps a service error to an HTTP status.
func statusOf(err error) int {
	switch {
	case errors.Is(err, order.ErrInvalidRecord):
		return http.StatusUnprocessableEntity
	case errors.Is(err, shipper.ErrValidation),
		errors.Is(err, shipper.ErrCarrierNotFound),
		errors.Is(err, order.ErrUnknownStatus):
		return http.StatusBadRequest
	case errors.Is(err, order.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, order.ErrInvalidTransition),
		errors.Is(err, order.ErrOrderExists),
		errors.Is(err, order.ErrTrackingRequired),
		errors.Is(err, fulfillment.ErrNotFulfillable):
		return http.StatusConflict
	case errors.Is(err, fulfillment.ErrNoMatchingRate),
		errors.Is(err, fulfillment.ErrRateNotOffered),
		errors.Is(err, fulfillment.ErrEmptyCarrierOrder),
		errors.Is(err, shipper.ErrIncompleteLabel):
		return http.StatusUnprocessableEntity
	case errors.Is(err, shipper.ErrRemote):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err as JSON. Carrier response bodies stay in the log.
func (s *Server) fail(c echo.Context, err error) error {
	status := statusOf(err)
	msg := err.Error()
	switch status {
	case http.StatusBadGateway:
		msg = "carrier request failed: " + fulfillment.Reason(err)
	case http.StatusInternalServerError:
		msg = "internal error"
	}

	log := s.logger.Ctx(c.Request().Context())
	if status >= http.StatusInternalServerError {
		var ce *shipper.CarrierError
		fields := []zap.Field{zap.String("path", c.Path()), zap.Int("status", status), zap.Error(err)}
		if errors.As(err, &ce) && ce.Body != "" {
			fields = append(fields, zap.String("carrier_body", ce.Body))
		}
		log.Error("Request failed", fields...)
	} else {
		log.Debug("Request rejected", zap.String("path", c.Path()), zap.Int("status", status), zap.Error(err))
	}

	return c.JSON(status, errorResponse{Code: status, Message: msg})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, errorResponse{Code: http.StatusBadRequest, Message: msg})
}
