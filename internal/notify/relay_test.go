package notify_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/randalmurphal/appforge/internal/notify"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisRelay_PublishesToFlowChannel(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	relay := notify.NewRedisRelay(client, "test")
	defer relay.Close()

	ctx := context.Background()
	require.NoError(t, relay.Ping(ctx))
	assert.Equal(t, "test:agent-updates-p1", relay.ChannelFor("p1"))

	listener := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer listener.Close()
	pubsub := listener.Subscribe(ctx, relay.ChannelFor("p1"))
	defer pubsub.Close()
	_, err = pubsub.Receive(ctx)
	require.NoError(t, err)

	hub := notify.NewHub(notify.DefaultHubConfig)
	defer hub.Close()
	hub.SubscribeAll(relay)

	hub.Publish("p1", notify.Message{Type: notify.TypeStatus, Step: "analyze_intent", Message: "go"})

	select {
	case msg := <-pubsub.Channel():
		var got notify.Message
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		assert.Equal(t, notify.TypeStatus, got.Type)
		assert.Equal(t, "analyze_intent", got.Step)
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not publish")
	}
}
