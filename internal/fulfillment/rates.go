package fulfillment

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/tournevent/fulfillment/pkg/shipper"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Mode selects how strictly a destination is checked.
type Mode int

const (
	// ModePreview fills a missing postal code or state with fallbacks so a
	// partially typed address can still be priced.
	ModePreview Mode = iota
	// ModePurchase requires a complete destination.
	ModePurchase
)

// RateQuery describes the package to price.
type RateQuery struct {
	Destination shipper.Address
	Items       []shipper.PackageItem
	Carrier     shipper.CarrierTag // optional, empty shops every account
	Mode        Mode
}

// RateShopperConfig configures rate shopping.
type RateShopperConfig struct {
	OriginPostalCode   string
	PackagingFee       float64
	PackageCode        string
	Dimensions         shipper.Dimensions
	FallbackPostalCode string
	FallbackState      string
}

// DefaultRateShopperConfig returns the storefront defaults.
func DefaultRateShopperConfig() RateShopperConfig {
	return RateShopperConfig{
		OriginPostalCode:   "10001",
		PackagingFee:       1.25,
		PackageCode:        "package",
		Dimensions:         shipper.DefaultDimensions,
		FallbackPostalCode: "12345",
		FallbackState:      "NY",
	}
}

// RateShopper queries every carrier account concurrently and turns the raw
// rates into ranked offers.
type RateShopper struct {
	carrier  shipper.Carrier
	accounts *shipper.Registry
	cfg      RateShopperConfig
	logger   *otelzap.Logger
}

// NewRateShopper creates a rate shopper.
func NewRateShopper(carrier shipper.Carrier, accounts *shipper.Registry, cfg RateShopperConfig, logger *otelzap.Logger) *RateShopper {
	if cfg.OriginPostalCode == "" {
		cfg.OriginPostalCode = DefaultRateShopperConfig().OriginPostalCode
	}
	if cfg.Dimensions == (shipper.Dimensions{}) {
		cfg.Dimensions = shipper.DefaultDimensions
	}
	return &RateShopper{carrier: carrier, accounts: accounts, cfg: cfg, logger: logger}
}

// Shop returns the offers for a package. A carrier account that fails
// contributes an empty group; only an unusable query is an error.
func (s *RateShopper) Shop(ctx context.Context, q RateQuery) (*shipper.RateSet, error) {
	dest, err := s.destination(q)
	if err != nil {
		return nil, err
	}

	accounts := s.accounts.All()
	if q.Carrier != "" {
		account, err := s.accounts.Get(q.Carrier)
		if err != nil {
			return nil, err
		}
		accounts = []shipper.Account{account}
	}

	weight := shipper.TotalWeight(q.Items)

	var mu sync.Mutex
	groups := make(map[shipper.CarrierTag][]shipper.Rate, len(accounts))

	g, gctx := errgroup.WithContext(ctx)
	for _, account := range accounts {
		g.Go(func() error {
			raw, err := s.carrier.GetRates(gctx, &shipper.RateRequest{
				CarrierCode:    account.Code,
				FromPostalCode: s.cfg.OriginPostalCode,
				ToPostalCode:   dest.PostalCode,
				ToState:        dest.State,
				ToCountry:      dest.Country,
				Weight:         weight,
				Dimensions:     s.cfg.Dimensions,
				PackageCode:    s.cfg.PackageCode,
				Residential:    dest.Residential,
			})
			if err != nil {
				s.logger.Ctx(ctx).Warn("Rate query failed, offering no rates for carrier",
					zap.String("carrier", string(account.Tag)),
					zap.String("carrier_code", account.Code),
					zap.Error(err),
				)
				return nil // Don't fail the group, continue with other carriers
			}
			rates := s.offers(account, raw)
			mu.Lock()
			defer mu.Unlock()
			groups[account.Tag] = rates
			return nil
		})
	}
	_ = g.Wait()

	set := &shipper.RateSet{USPS: []shipper.Rate{}, UPS: []shipper.Rate{}}
	if rates, ok := groups[shipper.CarrierUSPS]; ok {
		set.USPS = rates
	}
	if rates, ok := groups[shipper.CarrierUPS]; ok {
		set.UPS = rates
	}

	s.logger.Ctx(ctx).Debug("Rates shopped",
		zap.String("to_postal_code", dest.PostalCode),
		zap.Float64("weight_oz", weight.Value),
		zap.Int("usps", len(set.USPS)),
		zap.Int("ups", len(set.UPS)),
	)
	return set, nil
}

func (s *RateShopper) destination(q RateQuery) (shipper.Address, error) {
	dest := q.Destination.Normalize()
	if q.Mode == ModePurchase {
		for _, field := range dest.MissingFields() {
			if field == "name" {
				continue
			}
			return dest, shipper.NewValidationError("destination."+field, "required to purchase a label")
		}
		return dest, nil
	}
	if dest.PostalCode == "" {
		dest.PostalCode = s.cfg.FallbackPostalCode
	}
	if dest.State == "" {
		dest.State = s.cfg.FallbackState
	}
	return dest, nil
}

// offers applies the account allow-list and packaging fee, keeps the
// cheapest rate per service and ranks by price.
func (s *RateShopper) offers(account shipper.Account, raw []shipper.CarrierRate) []shipper.Rate {
	byID := make(map[string]shipper.Rate, len(raw))
	for _, r := range raw {
		if !account.Allows(r.ServiceCode) {
			continue
		}
		rate := shipper.Rate{
			ID:            r.ServiceCode,
			Name:          r.ServiceName,
			Price:         roundCents(r.ShipmentCost + r.OtherCost + s.cfg.PackagingFee),
			EstimatedDays: transitDays(account, r),
			Carrier:       account.Tag,
		}
		if prev, ok := byID[rate.ID]; ok && prev.Price <= rate.Price {
			continue
		}
		byID[rate.ID] = rate
	}

	out := make([]shipper.Rate, 0, len(byID))
	for _, r := range byID {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Price != out[j].Price {
			return out[i].Price < out[j].Price
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func transitDays(account shipper.Account, r shipper.CarrierRate) *int {
	days := r.TransitDays
	if days <= 0 {
		d, ok := account.DefaultTransitDays(r.ServiceCode)
		if !ok {
			return nil
		}
		days = d
	}
	return &days
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
