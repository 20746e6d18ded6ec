package shipper

import (
	"math"
	"strings"
	"time"
)

// CarrierTag identifies a carrier family in rate results.
type CarrierTag string

const (
	CarrierUSPS CarrierTag = "usps"
	CarrierUPS  CarrierTag = "ups"
)

// WeightUnit represents weight measurement unit as the carrier API spells it.
type WeightUnit string

const (
	WeightOunces    WeightUnit = "ounces"
	WeightPounds    WeightUnit = "pounds"
	WeightGrams     WeightUnit = "grams"
	WeightKilograms WeightUnit = "kilograms"
)

// DimensionUnit represents dimension measurement unit.
type DimensionUnit string

const (
	DimensionInches      DimensionUnit = "inches"
	DimensionCentimeters DimensionUnit = "centimeters"
)

// Address represents a shipping address.
type Address struct {
	Name        string `json:"name" yaml:"name"`
	Company     string `json:"company,omitempty" yaml:"company,omitempty"`
	Street1     string `json:"street1" yaml:"street1"`
	Street2     string `json:"street2,omitempty" yaml:"street2,omitempty"`
	City        string `json:"city" yaml:"city"`
	State       string `json:"state" yaml:"state"` // two-letter code
	PostalCode  string `json:"postalCode" yaml:"postalCode"`
	Country     string `json:"country,omitempty" yaml:"country,omitempty"` // ISO 3166-1 alpha-2
	Phone       string `json:"phone,omitempty" yaml:"phone,omitempty"`
	Residential bool   `json:"residential,omitempty" yaml:"residential,omitempty"`
}

// Normalize trims every field, upper-cases state and country and defaults
// the country to US.
func (a Address) Normalize() Address {
	a.Name = strings.TrimSpace(a.Name)
	a.Company = strings.TrimSpace(a.Company)
	a.Street1 = strings.TrimSpace(a.Street1)
	a.Street2 = strings.TrimSpace(a.Street2)
	a.City = strings.TrimSpace(a.City)
	a.State = strings.ToUpper(strings.TrimSpace(a.State))
	a.PostalCode = strings.TrimSpace(a.PostalCode)
	a.Country = strings.ToUpper(strings.TrimSpace(a.Country))
	a.Phone = strings.TrimSpace(a.Phone)
	if a.Country == "" {
		a.Country = "US"
	}
	return a
}

// MissingFields returns the names of the fields a label purchase requires
// that are empty.
func (a Address) MissingFields() []string {
	var missing []string
	check := func(name, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	check("name", a.Name)
	check("street1", a.Street1)
	check("city", a.City)
	check("state", a.State)
	check("postalCode", a.PostalCode)
	return missing
}

// Complete reports whether the address can be used to buy a label.
func (a Address) Complete() bool {
	return len(a.MissingFields()) == 0
}

// Weight is a value with its unit.
type Weight struct {
	Value float64    `json:"value" yaml:"value"`
	Units WeightUnit `json:"units" yaml:"units"`
}

// Ounces converts the weight to ounces. Unknown or empty units are read as ounces.
func (w Weight) Ounces() float64 {
	switch w.Units {
	case WeightPounds:
		return w.Value * 16
	case WeightGrams:
		return w.Value / 28.349523125
	case WeightKilograms:
		return w.Value * 35.27396195
	default:
		return w.Value
	}
}

// Dimensions of the package.
type Dimensions struct {
	Length float64       `json:"length" yaml:"length"`
	Width  float64       `json:"width" yaml:"width"`
	Height float64       `json:"height" yaml:"height"`
	Units  DimensionUnit `json:"units" yaml:"units"`
}

// DefaultDimensions is the box used when an order does not specify one.
var DefaultDimensions = Dimensions{Length: 12, Width: 12, Height: 12, Units: DimensionInches}

// PackageItem is one line of an order manifest.
type PackageItem struct {
	SKU       string  `json:"sku,omitempty" yaml:"sku,omitempty"`
	Name      string  `json:"name" yaml:"name"`
	Quantity  int     `json:"quantity" yaml:"quantity"`
	UnitPrice float64 `json:"unitPrice" yaml:"unitPrice"`
	Weight    Weight  `json:"weight" yaml:"weight"` // per unit
}

// TotalWeight aggregates unit weight times quantity in ounces, floored to 1
// so a package with weightless items can still be rated.
func TotalWeight(items []PackageItem) Weight {
	var total float64
	for _, item := range items {
		qty := item.Quantity
		if qty < 1 {
			qty = 1
		}
		total += item.Weight.Ounces() * float64(qty)
	}
	if total < 1 {
		total = 1
	}
	return Weight{Value: math.Round(total*100) / 100, Units: WeightOunces}
}

// Rate is a purchasable shipping option as offered to the customer.
type Rate struct {
	ID            string     `json:"id" yaml:"id"` // carrier service code
	Name          string     `json:"name" yaml:"name"`
	Price         float64    `json:"price" yaml:"price"`
	EstimatedDays *int       `json:"estimatedDays" yaml:"estimatedDays"`
	Carrier       CarrierTag `json:"carrier" yaml:"carrier"`
}

// RateSet groups rates by carrier. Both groups are always present.
type RateSet struct {
	USPS []Rate `json:"usps" yaml:"usps"`
	UPS  []Rate `json:"ups" yaml:"ups"`
}

// Find returns the rate with the given id from either group.
func (s *RateSet) Find(id string) (Rate, bool) {
	for _, group := range [][]Rate{s.USPS, s.UPS} {
		for _, r := range group {
			if r.ID == id {
				return r, true
			}
		}
	}
	return Rate{}, false
}

// All returns postal rates followed by parcel rates.
func (s *RateSet) All() []Rate {
	all := make([]Rate, 0, len(s.USPS)+len(s.UPS))
	all = append(all, s.USPS...)
	return append(all, s.UPS...)
}

// RateRequest asks one carrier account for rates.
type RateRequest struct {
	CarrierCode    string
	FromPostalCode string
	ToPostalCode   string
	ToState        string
	ToCountry      string
	Weight         Weight
	Dimensions     Dimensions
	PackageCode    string
	Residential    bool
}

// CarrierRate is a raw rate as returned by the carrier API.
type CarrierRate struct {
	ServiceCode  string
	ServiceName  string
	ShipmentCost float64
	OtherCost    float64
	TransitDays  int // 0 when the carrier does not say
}

// OrderRequest registers an order with the carrier.
type OrderRequest struct {
	OrderNumber   string
	OrderKey      string // idempotency key, upserts the same carrier order on retry
	CustomerName  string
	CustomerEmail string
	ShipTo        Address
	ShipFrom      Address
	Items         []PackageItem
	AmountPaid    float64
	CarrierCode   string
	ServiceCode   string
	PackageCode   string
	Confirmation  string
	Weight        Weight
	Dimensions    Dimensions
}

// CarrierOrder is the carrier-side order record.
type CarrierOrder struct {
	OrderID     string
	OrderNumber string
	OrderKey    string
}

// LabelOptions carries what the carrier needs to buy a label.
type LabelOptions struct {
	CarrierCode  string
	PackageCode  string
	Confirmation string
	Weight       Weight
	Dimensions   Dimensions
	ShipFrom     Address
	ShipTo       Address
	TestLabel    bool
}

// Label is a purchased shipping label.
type Label struct {
	ShipmentID     string
	OrderID        string
	TrackingNumber string
	LabelData      string // base64 PDF
	ShipmentCost   float64
}

// Shipment is the outcome of a completed fulfillment.
type Shipment struct {
	CarrierOrderID string     `json:"carrierOrderId" yaml:"carrierOrderId"`
	OrderNumber    string     `json:"orderNumber" yaml:"orderNumber"`
	ShipmentID     string     `json:"shipmentId" yaml:"shipmentId"`
	TrackingNumber string     `json:"trackingNumber" yaml:"trackingNumber"`
	LabelData      string     `json:"labelData" yaml:"labelData"`
	Carrier        CarrierTag `json:"carrier" yaml:"carrier"`
	CarrierCode    string     `json:"carrierCode" yaml:"carrierCode"`
	ServiceCode    string     `json:"serviceCode" yaml:"serviceCode"`
}

// TrackingInfo is the carrier's latest view of a shipment in transit.
type TrackingInfo struct {
	TrackingNumber string    `json:"trackingNumber" yaml:"trackingNumber"`
	Status         string    `json:"status" yaml:"status"`
	StatusDate     time.Time `json:"statusDate,omitempty" yaml:"statusDate,omitempty"`
	CarrierCode    string    `json:"carrierCode,omitempty" yaml:"carrierCode,omitempty"`
	TrackingURL    string    `json:"trackingUrl,omitempty" yaml:"trackingUrl,omitempty"`
}
