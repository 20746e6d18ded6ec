package shipstation_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/fulfillment/pkg/shipper"
	"github.com/tournevent/fulfillment/pkg/shipper/shipstation"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

func TestBasicAuth(t *testing.T) {
	// base64("key:secret")
	assert.Equal(t, "Basic a2V5OnNlY3JldA==", shipstation.BasicAuth("key", "secret"))
}

func TestID_UnmarshalJSON(t *testing.T) {
	var resp shipstation.LabelResponse
	require.NoError(t, json.Unmarshal([]byte(`{"shipmentId": 72513480, "orderId": "94113592", "labelData": "x"}`), &resp))
	assert.Equal(t, shipstation.ID("72513480"), resp.ShipmentID)
	assert.Equal(t, shipstation.ID("94113592"), resp.OrderID)

	require.NoError(t, json.Unmarshal([]byte(`{"shipmentId": null}`), &resp))
	assert.Equal(t, shipstation.ID(""), resp.ShipmentID)

	assert.Error(t, json.Unmarshal([]byte(`{"shipmentId": true}`), &resp))

	n, err := shipstation.ID("-1").Int64()
	require.NoError(t, err)
	assert.Equal(t, int64(-1), n)
}

func TestHTTPAPIClient_CreateLabel(t *testing.T) {
	var gotAuth, gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"shipmentId": 72513480, "orderId": 94113592, "trackingNumber": "1Z999AA10123456784", "labelData": "JVBERi0="}`))
	}))
	defer srv.Close()

	api := shipstation.NewHTTPAPIClient(shipstation.HTTPAPIClientConfig{
		BaseURL: srv.URL, APIKey: "key", APISecret: "secret",
	})

	resp, err := api.CreateLabel(context.Background(), &shipstation.CreateLabelRequest{
		OrderID:     94113592,
		CarrierCode: "ups_walleted",
		ServiceCode: "ups_ground",
		PackageCode: "package",
		Weight:      shipstation.Weight{Value: 3, Units: "ounces"},
	})

	require.NoError(t, err)
	assert.Equal(t, "Basic a2V5OnNlY3JldA==", gotAuth)
	assert.Equal(t, "/shipments/createlabel", gotPath)
	assert.Equal(t, float64(94113592), gotBody["orderId"], "order id is sent as a number")
	assert.Equal(t, map[string]any{"value": float64(3), "units": "ounces"}, gotBody["weight"])
	assert.Equal(t, shipstation.ID("72513480"), resp.ShipmentID)
	assert.Equal(t, "1Z999AA10123456784", resp.TrackingNumber)
}

func TestHTTPAPIClient_Paths(t *testing.T) {
	var (
		mu    sync.Mutex
		paths []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.Method+" "+r.URL.Path)
		mu.Unlock()
		switch r.URL.Path {
		case "/shipments/getrates":
			_, _ = w.Write([]byte(`[{"serviceName":"UPS Ground","serviceCode":"ups_ground","shipmentCost":9.5,"otherCost":0.5}]`))
		case "/orders/createorder":
			_, _ = w.Write([]byte(`{"orderId": 42, "orderNumber": "ORD-1"}`))
		case "/shipments/track":
			var req shipstation.TrackRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			_ = json.NewEncoder(w).Encode(shipstation.TrackingResponse{TrackingNumber: req.TrackingNumber, Status: "DELIVERED"})
		default:
			_, _ = w.Write([]byte(`{"approved": true, "message": "ok"}`))
		}
	}))
	defer srv.Close()

	api := shipstation.NewHTTPAPIClient(shipstation.HTTPAPIClientConfig{
		BaseURL: srv.URL + "/", APIKey: "k", APISecret: "s", RateLimit: 100,
	})
	ctx := context.Background()

	rates, err := api.GetRates(ctx, &shipstation.RatesRequest{CarrierCode: "ups_walleted"})
	require.NoError(t, err)
	require.Len(t, rates, 1)
	assert.Equal(t, 9.5, rates[0].ShipmentCost)

	order, err := api.CreateOrder(ctx, &shipstation.CreateOrderRequest{OrderNumber: "ORD-1"})
	require.NoError(t, err)
	assert.Equal(t, shipstation.ID("42"), order.OrderID)

	void, err := api.VoidLabel(ctx, "555")
	require.NoError(t, err)
	assert.True(t, void.Approved)

	track, err := api.Track(ctx, &shipstation.TrackRequest{TrackingNumber: "1Z999"})
	require.NoError(t, err)
	assert.Equal(t, "1Z999", track.TrackingNumber)
	assert.Equal(t, "DELIVERED", track.Status)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{
		"POST /shipments/getrates",
		"POST /orders/createorder",
		"POST /shipments/555/voidlabel",
		"POST /shipments/track",
	}, paths)
}

func TestHTTPAPIClient_ErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"Message":"The request is invalid.","ExceptionMessage":"Invalid zip"}`))
	}))
	defer srv.Close()

	api := shipstation.NewHTTPAPIClient(shipstation.HTTPAPIClientConfig{BaseURL: srv.URL, APIKey: "k", APISecret: "s"})

	_, err := api.CreateOrder(context.Background(), &shipstation.CreateOrderRequest{OrderNumber: "ORD-1"})

	var apiErr *shipstation.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "The request is invalid. Invalid zip", apiErr.Message)
	assert.Contains(t, apiErr.Body, "Invalid zip")
}

func TestHTTPAPIClient_EmptyLabelThroughClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"shipmentId": 1, "orderId": 42, "trackingNumber": "", "labelData": ""}`))
	}))
	defer srv.Close()

	api := shipstation.NewHTTPAPIClient(shipstation.HTTPAPIClientConfig{BaseURL: srv.URL, APIKey: "k", APISecret: "s"})
	client := shipstation.NewWithAPIClient(shipstation.Config{}, api, otelzap.New(zap.NewNop()), nil)

	_, err := client.CreateLabel(context.Background(), "42", "usps_priority_mail", validLabelOptions())

	assert.ErrorIs(t, err, shipper.ErrIncompleteLabel)
}
