// Package order holds the storefront order record, its status lifecycle and
// the reconciler that is the only writer of order state.
package order

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tournevent/fulfillment/internal/store"
	"github.com/tournevent/fulfillment/pkg/shipper"
)

// Record store tables.
const (
	TableOrders  = "Shipping Orders"
	TableHistory = "Status History"
)

// Field names of an order record.
const (
	FieldOrderID        = "Order ID"
	FieldCustomerName   = "Customer Name"
	FieldEmail          = "Email"
	FieldPhone          = "Phone"
	FieldAddress        = "Address"
	FieldAddress2       = "Address 2"
	FieldCity           = "City"
	FieldState          = "State"
	FieldZipCode        = "Zip Code"
	FieldCountry        = "Country"
	FieldItems          = "Items"
	FieldStatus         = "Status"
	FieldShipmentID     = "Shipment ID"
	FieldTrackingNumber = "Tracking Number"
	FieldLabelURL       = "Label URL"
	FieldShippingMethod = "Shipping Method"
	FieldTotal          = "Total"
	FieldTimestamp      = "Timestamp"
)

// Order is the typed view of a Shipping Orders record.
type Order struct {
	RecordID       string
	OrderID        string
	CustomerName   string
	Email          string
	Phone          string
	ShipTo         shipper.Address
	Items          []shipper.PackageItem
	Status         Status
	ShipmentID     string
	TrackingNumber string
	LabelURL       string
	ShippingMethod string
	Total          float64
	PlacedAt       time.Time
}

// Draft is a checked-out order about to be recorded.
type Draft struct {
	OrderID        string
	CustomerName   string
	Email          string
	Phone          string
	ShipTo         shipper.Address
	Items          []shipper.PackageItem
	ShippingMethod string
	Total          float64
}

// Decode reads an order from its record. Missing optional fields decode to
// zero values; an unreadable manifest or status is a validation error.
func Decode(rec store.Record) (*Order, error) {
	f := rec.Fields

	o := &Order{
		RecordID:       rec.ID,
		OrderID:        text(f[FieldOrderID]),
		CustomerName:   text(f[FieldCustomerName]),
		Email:          text(f[FieldEmail]),
		Phone:          text(f[FieldPhone]),
		ShipmentID:     text(f[FieldShipmentID]),
		TrackingNumber: text(f[FieldTrackingNumber]),
		LabelURL:       text(f[FieldLabelURL]),
		ShippingMethod: text(f[FieldShippingMethod]),
		Total:          number(f[FieldTotal]),
		PlacedAt:       timestamp(f[FieldTimestamp], rec.CreatedAt),
	}
	if o.OrderID == "" {
		return nil, shipper.NewValidationError(FieldOrderID, "missing on record "+rec.ID)
	}

	o.ShipTo = shipper.Address{
		Name:        o.CustomerName,
		Street1:     text(f[FieldAddress]),
		Street2:     text(f[FieldAddress2]),
		City:        text(f[FieldCity]),
		State:       text(f[FieldState]),
		PostalCode:  text(f[FieldZipCode]),
		Country:     text(f[FieldCountry]),
		Phone:       o.Phone,
		Residential: true,
	}.Normalize()

	status := text(f[FieldStatus])
	if status == "" {
		o.Status = StatusPending
	} else {
		st, err := ParseStatus(status)
		if err != nil {
			return nil, shipper.NewValidationError(FieldStatus, err.Error())
		}
		o.Status = st
	}

	items, err := decodeItems(f[FieldItems])
	if err != nil {
		return nil, shipper.NewValidationError(FieldItems, err.Error())
	}
	o.Items = items

	return o, nil
}

// Fields encodes a draft as a new pending record.
func (d Draft) Fields(now time.Time) (store.Fields, error) {
	items, err := json.Marshal(d.Items)
	if err != nil {
		return nil, fmt.Errorf("encoding items: %w", err)
	}
	addr := d.ShipTo.Normalize()
	return store.Fields{
		FieldOrderID:        d.OrderID,
		FieldCustomerName:   d.CustomerName,
		FieldEmail:          d.Email,
		FieldPhone:          d.Phone,
		FieldAddress:        addr.Street1,
		FieldAddress2:       addr.Street2,
		FieldCity:           addr.City,
		FieldState:          addr.State,
		FieldZipCode:        addr.PostalCode,
		FieldCountry:        addr.Country,
		FieldItems:          string(items),
		FieldStatus:         StatusPending.String(),
		FieldShippingMethod: d.ShippingMethod,
		FieldTotal:          d.Total,
		FieldTimestamp:      now.UTC().Format(time.RFC3339),
	}, nil
}

// itemRecord accepts the manifest shapes the storefront has written:
// price or unitPrice, weight as a number of ounces or as {value, units}.
type itemRecord struct {
	ID        json.RawMessage `json:"id"`
	SKU       string          `json:"sku"`
	Name      string          `json:"name"`
	Quantity  json.Number     `json:"quantity"`
	Price     json.Number     `json:"price"`
	UnitPrice json.Number     `json:"unitPrice"`
	Weight    json.RawMessage `json:"weight"`
}

func decodeItems(v any) ([]shipper.PackageItem, error) {
	var raw []byte
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		if strings.TrimSpace(t) == "" {
			return nil, nil
		}
		raw = []byte(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return nil, err
		}
		raw = b
	}

	var records []itemRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("items are not a JSON list: %w", err)
	}

	items := make([]shipper.PackageItem, 0, len(records))
	for _, r := range records {
		qty, _ := r.Quantity.Int64()
		if qty < 1 {
			qty = 1
		}
		price := r.UnitPrice
		if price == "" {
			price = r.Price
		}
		unitPrice, _ := price.Float64()

		sku := r.SKU
		if sku == "" && len(r.ID) > 0 {
			var id ID
			if err := json.Unmarshal(r.ID, &id); err == nil {
				sku = string(id)
			}
		}

		weight, err := decodeWeight(r.Weight)
		if err != nil {
			return nil, fmt.Errorf("item %q: %w", r.Name, err)
		}

		items = append(items, shipper.PackageItem{
			SKU:       sku,
			Name:      r.Name,
			Quantity:  int(qty),
			UnitPrice: unitPrice,
			Weight:    weight,
		})
	}
	return items, nil
}

func decodeWeight(raw json.RawMessage) (shipper.Weight, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return shipper.Weight{Units: shipper.WeightOunces}, nil
	}
	var ounces float64
	if err := json.Unmarshal(raw, &ounces); err == nil {
		return shipper.Weight{Value: ounces, Units: shipper.WeightOunces}, nil
	}
	var w shipper.Weight
	if err := json.Unmarshal(raw, &w); err != nil {
		return shipper.Weight{}, fmt.Errorf("weight is neither a number nor {value, units}")
	}
	if w.Units == "" {
		w.Units = shipper.WeightOunces
	}
	return w, nil
}

// ID is an identifier stored either as a JSON string or number.
type ID string

// UnmarshalJSON accepts numbers and strings.
func (id *ID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

func text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

func number(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case string:
		f, _ := strconv.ParseFloat(strings.TrimPrefix(strings.TrimSpace(t), "$"), 64)
		return f
	default:
		return 0
	}
}

func timestamp(v any, fallback time.Time) time.Time {
	if s := text(v); s != "" {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t
		}
	}
	return fallback
}
