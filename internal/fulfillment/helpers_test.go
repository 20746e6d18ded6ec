package fulfillment_test

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tournevent/fulfillment/internal/events"
	"github.com/tournevent/fulfillment/internal/fulfillment"
	"github.com/tournevent/fulfillment/internal/order"
	"github.com/tournevent/fulfillment/internal/store"
	"github.com/tournevent/fulfillment/pkg/shipper"
	"github.com/tournevent/fulfillment/pkg/shipper/mock"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

var warehouse = shipper.Address{
	Name:       "Tournevent Warehouse",
	Street1:    "1 Dock St",
	City:       "New York",
	State:      "NY",
	PostalCode: "10001",
}

var customer = shipper.Address{
	Name:       "Jane Doe",
	Street1:    "456 Oak Ave",
	City:       "Austin",
	State:      "TX",
	PostalCode: "78701",
}

func testLogger() *otelzap.Logger {
	return otelzap.New(zap.NewNop())
}

func testRegistry() *shipper.Registry {
	return shipper.DefaultRegistry("stamps_com", "ups_walleted")
}

// newTestCarrier returns a mock carrier with canned USPS and UPS rates.
func newTestCarrier() *mock.Client {
	c := mock.New("shipstation")
	c.Rates["stamps_com"] = []shipper.CarrierRate{
		{ServiceCode: "usps_priority_mail", ServiceName: "USPS Priority Mail", ShipmentCost: 8.70},
		{ServiceCode: "usps_first_class_mail", ServiceName: "USPS First Class Mail", ShipmentCost: 4.50},
		{ServiceCode: "usps_media_mail", ServiceName: "USPS Media Mail", ShipmentCost: 3.65},
		{ServiceCode: "usps_priority_mail_express", ServiceName: "USPS Priority Mail Express", ShipmentCost: 28.75, TransitDays: 2},
	}
	c.Rates["ups_walleted"] = []shipper.CarrierRate{
		{ServiceCode: "ups_next_day_air", ServiceName: "UPS Next Day Air", ShipmentCost: 40.10, OtherCost: 2.00},
		{ServiceCode: "ups_ground", ServiceName: "UPS Ground", ShipmentCost: 12.30},
	}
	return c
}

type testEnv struct {
	service  *fulfillment.Service
	carrier  *mock.Client
	store    *store.Memory
	orders   *order.Repository
	recorder *events.Recorder
}

func newTestEnv(t *testing.T, carrier *mock.Client, mutate ...func(*fulfillment.Config)) *testEnv {
	t.Helper()
	cfg := fulfillment.Config{
		Rates:        fulfillment.DefaultRateShopperConfig(),
		Orchestrator: fulfillment.OrchestratorConfig{ShipFrom: warehouse},
		Retry:        fulfillment.RetryPolicy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond},
	}
	for _, m := range mutate {
		m(&cfg)
	}

	s := store.NewMemory()
	rec := &events.Recorder{}
	svc, err := fulfillment.NewService(cfg, carrier, testRegistry(), s, testLogger(), fulfillment.WithPublisher(rec))
	require.NoError(t, err)
	return &testEnv{service: svc, carrier: carrier, store: s, orders: svc.Orders(), recorder: rec}
}

// checkout stores a pending order shipping to customer.
func (e *testEnv) checkout(t *testing.T, id, method string) *order.Order {
	t.Helper()
	o, err := e.service.RecordCheckout(context.Background(), order.Draft{
		OrderID:      id,
		CustomerName: customer.Name,
		Email:        "jane@example.com",
		ShipTo:       customer,
		Items: []shipper.PackageItem{
			{SKU: "MUG", Name: "Mug", Quantity: 2, UnitPrice: 12.5, Weight: shipper.Weight{Value: 10, Units: shipper.WeightOunces}},
		},
		ShippingMethod: method,
		Total:          25,
	})
	require.NoError(t, err)
	return o
}

func (e *testEnv) order(t *testing.T, id string) *order.Order {
	t.Helper()
	o, err := e.orders.Get(context.Background(), id)
	require.NoError(t, err)
	return o
}

func remoteError(status int, retryable bool) *shipper.CarrierError {
	return shipper.NewCarrierError("shipstation", "HTTP_"+strconv.Itoa(status), "upstream failure").
		WithStatusCode(status).
		WithRetryable(retryable)
}
