package fulfillment

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tournevent/fulfillment/pkg/shipper"
)

// Stage names the workflow step an attempt failed in.
type Stage string

const (
	StageValidate    Stage = "validate"
	StageCreateOrder Stage = "create_order"
	StageCreateLabel Stage = "create_label"
)

// Kind classifies a failure.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindRemote        Kind = "remote"
	KindEmptyResponse Kind = "empty_response"
)

var (
	// ErrNoMatchingRate is matched by *NoMatchingRateError.
	ErrNoMatchingRate = errors.New("no matching rate")

	// ErrEmptyCarrierOrder is returned when the carrier accepted an order
	// but did not say which id it got.
	ErrEmptyCarrierOrder = errors.New("carrier returned no order id")

	// ErrRateNotOffered is returned when the chosen rate id is not among
	// the current offers.
	ErrRateNotOffered = errors.New("rate not offered")

	// ErrNotFulfillable is returned for orders whose status does not allow
	// buying a label.
	ErrNotFulfillable = errors.New("order cannot be fulfilled in its current status")
)

// FulfillmentError reports the step a fulfillment attempt stopped at. When
// Stage is create_label the carrier order exists and CarrierOrderID names it.
type FulfillmentError struct {
	OrderNumber    string
	Stage          Stage
	Kind           Kind
	CarrierOrderID string
	Err            error
}

func (e *FulfillmentError) Error() string {
	return fmt.Sprintf("fulfilling order %s: %s failed (%s): %v", e.OrderNumber, e.Stage, e.Kind, e.Err)
}

func (e *FulfillmentError) Unwrap() error {
	return e.Err
}

// NoMatchingRateError means none of the offered rates matches the shipping
// method chosen at checkout.
type NoMatchingRateError struct {
	ShippingMethod string
	Offered        []string
}

func (e *NoMatchingRateError) Error() string {
	if e.ShippingMethod == "" {
		return "no matching rate: order has no shipping method"
	}
	return fmt.Sprintf("no matching rate for %q among [%s]", e.ShippingMethod, strings.Join(e.Offered, ", "))
}

func (e *NoMatchingRateError) Is(target error) bool {
	return target == ErrNoMatchingRate
}

// kindOf classifies an error returned by the carrier.
func kindOf(err error) Kind {
	switch {
	case errors.Is(err, shipper.ErrValidation):
		return KindValidation
	case errors.Is(err, shipper.ErrIncompleteLabel), errors.Is(err, ErrEmptyCarrierOrder):
		return KindEmptyResponse
	default:
		return KindRemote
	}
}

// Reason renders an error for a bulk outcome or event. Carrier response
// bodies never appear here.
func Reason(err error) string {
	var nm *NoMatchingRateError
	if errors.As(err, &nm) {
		return ErrNoMatchingRate.Error()
	}
	var ce *shipper.CarrierError
	if errors.As(err, &ce) {
		return fmt.Sprintf("%s: %s", ce.Code, ce.Message)
	}
	return err.Error()
}
