package fulfillment_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/fulfillment/internal/fulfillment"
	"github.com/tournevent/fulfillment/pkg/shipper"
)

func newTestShopper(carrier shipper.Carrier) *fulfillment.RateShopper {
	return fulfillment.NewRateShopper(carrier, testRegistry(), fulfillment.DefaultRateShopperConfig(), testLogger())
}

var mugs = []shipper.PackageItem{{Name: "Mug", Quantity: 2, Weight: shipper.Weight{Value: 10, Units: shipper.WeightOunces}}}

func TestRateShopper_Shop(t *testing.T) {
	shopper := newTestShopper(newTestCarrier())

	set, err := shopper.Shop(context.Background(), fulfillment.RateQuery{Destination: customer, Items: mugs})

	require.NoError(t, err)
	require.Len(t, set.USPS, 3, "media mail is not on the postal allow-list")
	assert.Equal(t, "usps_first_class_mail", set.USPS[0].ID)
	assert.Equal(t, 5.75, set.USPS[0].Price)
	require.NotNil(t, set.USPS[0].EstimatedDays)
	assert.Equal(t, 3, *set.USPS[0].EstimatedDays)
	assert.Equal(t, shipper.CarrierUSPS, set.USPS[0].Carrier)

	assert.Equal(t, "usps_priority_mail", set.USPS[1].ID)
	assert.Equal(t, 9.95, set.USPS[1].Price)

	assert.Equal(t, "usps_priority_mail_express", set.USPS[2].ID)
	assert.Equal(t, 30.0, set.USPS[2].Price)
	assert.Equal(t, 2, *set.USPS[2].EstimatedDays, "carrier transit days win over the default table")

	require.Len(t, set.UPS, 2)
	assert.Equal(t, "ups_ground", set.UPS[0].ID)
	assert.Equal(t, 13.55, set.UPS[0].Price)
	assert.Equal(t, 5, *set.UPS[0].EstimatedDays)
	assert.Equal(t, "ups_next_day_air", set.UPS[1].ID)
	assert.Equal(t, 43.35, set.UPS[1].Price)
	assert.Equal(t, shipper.CarrierUPS, set.UPS[1].Carrier)
}

func TestRateShopper_OffersAreUniqueAndRanked(t *testing.T) {
	carrier := newTestCarrier()
	carrier.Rates["ups_walleted"] = []shipper.CarrierRate{
		{ServiceCode: "ups_ground", ServiceName: "UPS Ground", ShipmentCost: 12.00},
		{ServiceCode: "ups_ground", ServiceName: "UPS Ground", ShipmentCost: 10.00},
		{ServiceCode: "ups_3_day_select", ServiceName: "UPS 3 Day Select", ShipmentCost: 10.00},
		{ServiceCode: "ups_surepost", ServiceName: "UPS SurePost", ShipmentCost: 9.00},
	}

	set, err := newTestShopper(carrier).Shop(context.Background(), fulfillment.RateQuery{Destination: customer, Items: mugs})

	require.NoError(t, err)
	ids := make([]string, 0, len(set.UPS))
	for _, r := range set.UPS {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"ups_surepost", "ups_3_day_select", "ups_ground"}, ids)
	assert.Equal(t, 11.25, set.UPS[2].Price, "cheapest duplicate is kept")
	assert.Nil(t, set.UPS[0].EstimatedDays, "unknown transit time stays unknown")
}

func TestRateShopper_OneCarrierFails(t *testing.T) {
	carrier := newTestCarrier()
	carrier.OnGetRates = func(ctx context.Context, req *shipper.RateRequest) ([]shipper.CarrierRate, error) {
		if req.CarrierCode == "ups_walleted" {
			return nil, remoteError(503, true)
		}
		return carrier.Rates[req.CarrierCode], nil
	}

	set, err := newTestShopper(carrier).Shop(context.Background(), fulfillment.RateQuery{Destination: customer, Items: mugs})

	require.NoError(t, err)
	assert.NotNil(t, set.UPS)
	assert.Empty(t, set.UPS)
	assert.Len(t, set.USPS, 3)
}

func TestRateShopper_BothCarriersFail(t *testing.T) {
	carrier := newTestCarrier()
	carrier.OnGetRates = func(ctx context.Context, req *shipper.RateRequest) ([]shipper.CarrierRate, error) {
		return nil, errors.New("connection refused")
	}

	set, err := newTestShopper(carrier).Shop(context.Background(), fulfillment.RateQuery{Destination: customer, Items: mugs})

	require.NoError(t, err)
	assert.Empty(t, set.USPS)
	assert.Empty(t, set.UPS)
}

func TestRateShopper_Request(t *testing.T) {
	carrier := newTestCarrier()
	var mu sync.Mutex
	requests := map[string]shipper.RateRequest{}
	carrier.OnGetRates = func(ctx context.Context, req *shipper.RateRequest) ([]shipper.CarrierRate, error) {
		mu.Lock()
		defer mu.Unlock()
		requests[req.CarrierCode] = *req
		return nil, nil
	}

	_, err := newTestShopper(carrier).Shop(context.Background(), fulfillment.RateQuery{
		Destination: shipper.Address{City: "Austin"},
		Items:       mugs,
	})

	require.NoError(t, err)
	require.Len(t, requests, 2)
	req := requests["stamps_com"]
	assert.Equal(t, "10001", req.FromPostalCode)
	assert.Equal(t, "12345", req.ToPostalCode, "preview falls back to a default postal code")
	assert.Equal(t, "NY", req.ToState)
	assert.Equal(t, "US", req.ToCountry)
	assert.Equal(t, shipper.Weight{Value: 20, Units: shipper.WeightOunces}, req.Weight)
	assert.Equal(t, shipper.DefaultDimensions, req.Dimensions)
	assert.Equal(t, "package", req.PackageCode)
}

func TestRateShopper_PurchaseRequiresCompleteAddress(t *testing.T) {
	carrier := newTestCarrier()

	_, err := newTestShopper(carrier).Shop(context.Background(), fulfillment.RateQuery{
		Destination: shipper.Address{Street1: "456 Oak Ave", City: "Austin", State: "TX"},
		Items:       mugs,
		Mode:        fulfillment.ModePurchase,
	})

	var ve *shipper.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "destination.postalCode", ve.Field)
	assert.Empty(t, carrier.Calls())
}

func TestRateShopper_CarrierHint(t *testing.T) {
	carrier := newTestCarrier()

	set, err := newTestShopper(carrier).Shop(context.Background(), fulfillment.RateQuery{
		Destination: customer,
		Items:       mugs,
		Carrier:     shipper.CarrierUPS,
	})

	require.NoError(t, err)
	assert.Empty(t, set.USPS)
	assert.Len(t, set.UPS, 2)
	calls := carrier.CallsTo("GetRates")
	require.Len(t, calls, 1)
	assert.Equal(t, "ups_walleted", calls[0].CarrierCode)

	_, err = newTestShopper(carrier).Shop(context.Background(), fulfillment.RateQuery{Destination: customer, Carrier: "fedex"})
	assert.ErrorIs(t, err, shipper.ErrCarrierNotFound)
}

func TestMatchShippingMethod(t *testing.T) {
	offers := []shipper.Rate{
		{ID: "usps_first_class_mail", Name: "USPS First Class Mail", Price: 5.75},
		{ID: "usps_priority_mail", Name: "USPS Priority Mail", Price: 9.95},
		{ID: "usps_priority_mail_express", Name: "USPS Priority Mail Express", Price: 30},
		{ID: "ups_ground", Name: "UPS® Ground", Price: 13.55},
	}

	tests := []struct {
		method string
		want   string
	}{
		{"USPS Priority Mail", "usps_priority_mail"},
		{"usps priority mail express", "usps_priority_mail_express"},
		{"first class", "usps_first_class_mail"},
		{" Ground ", "ups_ground"},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			got, err := fulfillment.MatchShippingMethod(tt.method, offers)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.ID)
		})
	}

	for _, method := range []string{"Carrier Pigeon", ""} {
		_, err := fulfillment.MatchShippingMethod(method, offers)
		assert.ErrorIs(t, err, fulfillment.ErrNoMatchingRate)
		assert.Equal(t, "no matching rate", fulfillment.Reason(err))
	}
}
