package events_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/tournevent/fulfillment/internal/events"
)

func TestOutcome_JSON(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	b, err := json.Marshal(events.Outcome{OrderID: "1001", Status: "processing", TrackingNumber: "1Z999", At: at})
	require.NoError(t, err)
	assert.JSONEq(t, `{"orderId":"1001","status":"processing","trackingNumber":"1Z999","at":"2026-03-01T10:00:00Z"}`, string(b))
}

func TestRecorder(t *testing.T) {
	var r events.Recorder
	require.NoError(t, r.Publish(context.Background(), events.Outcome{OrderID: "1"}))
	require.NoError(t, r.Publish(context.Background(), events.Outcome{OrderID: "2"}))

	got := r.Outcomes()
	require.Len(t, got, 2)
	assert.Equal(t, "2", got[1].OrderID)
	assert.NoError(t, events.Nop{}.Publish(context.Background(), events.Outcome{}))
}

func TestNewRedisPublisher_DefaultChannel(t *testing.T) {
	p := events.NewRedisPublisher(redis.NewClient(&redis.Options{Addr: "localhost:0"}), "")
	assert.Equal(t, "fulfillment:outcomes", p.Channel())
}

func TestRedisPublisher_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping redis integration test in short mode")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client, err := events.OpenRedis(ctx, fmt.Sprintf("redis://%s:%s/0", host, port.Port()))
	require.NoError(t, err)
	defer client.Close()

	sub := client.Subscribe(ctx, events.DefaultChannel)
	defer sub.Close()
	_, err = sub.Receive(ctx)
	require.NoError(t, err)

	pub := events.NewRedisPublisher(client, "")
	require.NoError(t, pub.Publish(ctx, events.Outcome{OrderID: "1001", Status: "processing", At: time.Now().UTC()}))

	select {
	case msg := <-sub.Channel():
		var got events.Outcome
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		assert.Equal(t, "1001", got.OrderID)
		assert.Equal(t, "processing", got.Status)
	case <-time.After(5 * time.Second):
		t.Fatal("no message received")
	}
}
