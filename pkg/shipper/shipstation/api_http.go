package shipstation

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// DefaultBaseURL is the production ShipStation API.
const DefaultBaseURL = "https://ssapi.shipstation.com"

// HTTPAPIClient is the production implementation of APIClient using HTTP.
type HTTPAPIClient struct {
	baseURL    string
	authHeader string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// HTTPAPIClientConfig holds configuration for the HTTP client.
type HTTPAPIClientConfig struct {
	BaseURL   string
	APIKey    string
	APISecret string
	Timeout   time.Duration
	RateLimit float64 // requests per second, 0 disables limiting
	RateBurst int
}

// BasicAuth returns the Authorization header value for an API key pair.
func BasicAuth(apiKey, apiSecret string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(apiKey+":"+apiSecret))
}

// NewHTTPAPIClient creates a new HTTP-based API client for production use.
func NewHTTPAPIClient(cfg HTTPAPIClientConfig) *HTTPAPIClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return &HTTPAPIClient{
		baseURL:    baseURL,
		authHeader: BasicAuth(cfg.APIKey, cfg.APISecret),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter: limiter,
	}
}

// CreateOrder creates or updates an order via the ShipStation API.
func (c *HTTPAPIClient) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*OrderResponse, error) {
	var result OrderResponse
	if err := c.post(ctx, "/orders/createorder", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CreateLabel buys a label via the ShipStation API.
func (c *HTTPAPIClient) CreateLabel(ctx context.Context, req *CreateLabelRequest) (*LabelResponse, error) {
	var result LabelResponse
	if err := c.post(ctx, "/shipments/createlabel", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetRates lists rates via the ShipStation API.
func (c *HTTPAPIClient) GetRates(ctx context.Context, req *RatesRequest) ([]RateResponse, error) {
	var result []RateResponse
	if err := c.post(ctx, "/shipments/getrates", req, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// VoidLabel voids a label via the ShipStation API.
func (c *HTTPAPIClient) VoidLabel(ctx context.Context, shipmentID string) (*VoidLabelResponse, error) {
	path := fmt.Sprintf("/shipments/%s/voidlabel", url.PathEscape(shipmentID))
	body := map[string]string{"shipmentId": shipmentID}

	var result VoidLabelResponse
	if err := c.post(ctx, path, body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Track looks up a tracking number via the ShipStation API.
func (c *HTTPAPIClient) Track(ctx context.Context, req *TrackRequest) (*TrackingResponse, error) {
	var result TrackingResponse
	if err := c.post(ctx, "/shipments/track", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *HTTPAPIClient) post(ctx context.Context, path string, body, out interface{}) error {
	resp, err := c.doRequest(ctx, http.MethodPost, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.parseError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

// doRequest performs an HTTP request with proper headers and authentication.
func (c *HTTPAPIClient) doRequest(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("waiting for rate limiter: %w", err)
		}
	}

	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", c.authHeader)
	req.Header.Set("User-Agent", "tournevent-fulfillment/1.0")

	return c.httpClient.Do(req)
}

// parseError extracts error information from an HTTP response.
func (c *HTTPAPIClient) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Body:       string(body),
	}

	// ShipStation answers {"Message": "...", "ExceptionMessage": "..."}
	var payload struct {
		Message          string `json:"Message"`
		ExceptionMessage string `json:"ExceptionMessage"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		apiErr.Message = payload.Message
		if payload.ExceptionMessage != "" {
			apiErr.Message = strings.TrimSpace(apiErr.Message + " " + payload.ExceptionMessage)
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

// Ensure HTTPAPIClient implements APIClient interface
var _ APIClient = (*HTTPAPIClient)(nil)
