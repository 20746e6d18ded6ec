package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/tournevent/fulfillment/pkg/shipper"
	"go.opentelemetry.io/otel/attribute"
)

// Config holds all configuration for the service.
type Config struct {
	// Server
	Port     int    `envconfig:"PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// ShipStation
	ShipStationAPIKey    string        `envconfig:"SHIPSTATION_API_KEY"`
	ShipStationAPISecret string        `envconfig:"SHIPSTATION_API_SECRET"`
	ShipStationBaseURL   string        `envconfig:"SHIPSTATION_BASE_URL" default:"https://ssapi.shipstation.com"`
	ShipStationTimeout   time.Duration `envconfig:"SHIPSTATION_TIMEOUT" default:"30s"`
	ShipStationRateLimit float64       `envconfig:"SHIPSTATION_RATE_LIMIT" default:"0"`
	ShipStationTestLabel bool          `envconfig:"SHIPSTATION_TEST_LABEL" default:"false"`
	ShipStationUseMock   bool          `envconfig:"SHIPSTATION_USE_MOCK" default:"false"`

	// Carrier accounts
	USPSCarrierCode string `envconfig:"USPS_CARRIER_CODE" default:"stamps_com"`
	UPSCarrierCode  string `envconfig:"UPS_CARRIER_CODE" default:"ups_walleted"`

	// Ship-from address
	ShipFromName       string `envconfig:"SHIP_FROM_NAME"`
	ShipFromCompany    string `envconfig:"SHIP_FROM_COMPANY"`
	ShipFromStreet1    string `envconfig:"SHIP_FROM_STREET1"`
	ShipFromStreet2    string `envconfig:"SHIP_FROM_STREET2"`
	ShipFromCity       string `envconfig:"SHIP_FROM_CITY"`
	ShipFromState      string `envconfig:"SHIP_FROM_STATE"`
	ShipFromPostalCode string `envconfig:"SHIP_FROM_POSTAL_CODE"`
	ShipFromCountry    string `envconfig:"SHIP_FROM_COUNTRY" default:"US"`
	ShipFromPhone      string `envconfig:"SHIP_FROM_PHONE"`

	// Packaging and rates
	PackagingFee       float64 `envconfig:"PACKAGING_FEE" default:"1.25"`
	PackageCode        string  `envconfig:"PACKAGE_CODE" default:"package"`
	Confirmation       string  `envconfig:"CONFIRMATION" default:"none"`
	FallbackPostalCode string  `envconfig:"RATE_FALLBACK_POSTAL_CODE" default:"12345"`
	FallbackState      string  `envconfig:"RATE_FALLBACK_STATE" default:"NY"`

	// Fulfillment
	MaxAttempts     int           `envconfig:"FULFILLMENT_MAX_ATTEMPTS" default:"3"`
	RetryBackoff    time.Duration `envconfig:"FULFILLMENT_RETRY_BACKOFF" default:"500ms"`
	RetryMaxBackoff time.Duration `envconfig:"FULFILLMENT_RETRY_MAX_BACKOFF" default:"5s"`
	BulkConcurrency int           `envconfig:"BULK_CONCURRENCY" default:"0"`

	// Storage and events
	DatabaseURL   string `envconfig:"DATABASE_URL"`
	RedisURL      string `envconfig:"REDIS_URL"`
	EventsChannel string `envconfig:"EVENTS_CHANNEL" default:"fulfillment:outcomes"`

	// Auto-fulfill sweep, disabled when the schedule is empty
	AutoFulfillSchedule  string        `envconfig:"AUTO_FULFILL_SCHEDULE"`
	AutoFulfillBatchSize int           `envconfig:"AUTO_FULFILL_BATCH_SIZE" default:"50"`
	AutoFulfillTimeout   time.Duration `envconfig:"AUTO_FULFILL_TIMEOUT" default:"10m"`

	// Telemetry
	OTELEnabled  bool   `envconfig:"OTEL_ENABLED" default:"false"`
	OTELEndpoint string `envconfig:"OTEL_ENDPOINT" default:"http://localhost:4318"`
	ServiceName  string `envconfig:"SERVICE_NAME" default:"fulfillment"`
	Version      string `envconfig:"SERVICE_VERSION" default:"0.0.1"`
}

// Load reads configuration from environment variables. Variables from the
// given .env files (default ".env") are applied first when the files exist;
// they never override variables already set.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return &cfg, nil
}

// Validate reports every setting required to buy labels that is missing.
func (c *Config) Validate() error {
	var missing []string
	require := func(name, value string) {
		if value == "" {
			missing = append(missing, name)
		}
	}
	require("SHIPSTATION_API_KEY", c.ShipStationAPIKey)
	require("SHIPSTATION_API_SECRET", c.ShipStationAPISecret)
	require("SHIP_FROM_NAME", c.ShipFromName)
	require("SHIP_FROM_STREET1", c.ShipFromStreet1)
	require("SHIP_FROM_CITY", c.ShipFromCity)
	require("SHIP_FROM_STATE", c.ShipFromState)
	require("SHIP_FROM_POSTAL_CODE", c.ShipFromPostalCode)
	if len(missing) > 0 {
		return &shipper.ConfigurationError{Component: "fulfillment", Missing: missing}
	}

	if c.MaxAttempts < 1 {
		return fmt.Errorf("FULFILLMENT_MAX_ATTEMPTS must be at least 1, got %d", c.MaxAttempts)
	}
	if c.BulkConcurrency < 0 {
		return fmt.Errorf("BULK_CONCURRENCY must not be negative, got %d", c.BulkConcurrency)
	}
	if c.PackagingFee < 0 {
		return fmt.Errorf("PACKAGING_FEE must not be negative, got %v", c.PackagingFee)
	}
	return nil
}

// ShipFrom returns the origin address of every shipment.
func (c *Config) ShipFrom() shipper.Address {
	return shipper.Address{
		Name:       c.ShipFromName,
		Company:    c.ShipFromCompany,
		Street1:    c.ShipFromStreet1,
		Street2:    c.ShipFromStreet2,
		City:       c.ShipFromCity,
		State:      c.ShipFromState,
		PostalCode: c.ShipFromPostalCode,
		Country:    c.ShipFromCountry,
		Phone:      c.ShipFromPhone,
	}.Normalize()
}

// Attributes returns OpenTelemetry attributes for this configuration.
func (c *Config) Attributes() []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("service.name", c.ServiceName),
		attribute.String("service.version", c.Version),
		attribute.Bool("shipstation.mock", c.ShipStationUseMock),
		attribute.Bool("shipstation.test_label", c.ShipStationTestLabel),
		attribute.Bool("store.postgres", c.DatabaseURL != ""),
		attribute.Bool("events.redis", c.RedisURL != ""),
	}
}
