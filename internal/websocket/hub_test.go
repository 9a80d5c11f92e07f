package websocket

import (
	"context"
	"testing"
	"time"

	"subgate-service/internal/domain/capability"
	"subgate-service/internal/notifier"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newRunningHub() (*Hub, *notifier.Bus, context.CancelFunc) {
	bus := notifier.NewBus(zap.NewNop())
	hub := NewHub(bus, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	return hub, bus, cancel
}

func registerTestClient(t *testing.T, hub *Hub, name string) *Client {
	t.Helper()
	c := NewClient(hub, nil, &ClientAuth{
		IdentityName: name,
		Capability:   capability.Reader,
	}, zap.NewNop())
	select {
	case hub.Register <- c:
	case <-time.After(time.Second):
		t.Fatal("hub did not accept registration")
	}
	return c
}

func TestHubBroadcastSurvivesSlowClient(t *testing.T) {
	hub, bus, cancel := newRunningHub()
	defer cancel()

	slow := registerTestClient(t, hub, "slow-consumer")
	require.Eventually(t, func() bool { return hub.TotalClients() == 1 },
		time.Second, 10*time.Millisecond)

	// Saturate the send buffer so the next broadcast cannot be queued.
	for i := 0; i < cap(slow.send); i++ {
		select {
		case slow.send <- []byte("{}"):
		default:
		}
	}

	bus.Publish(notifier.Change{UserID: uuid.New()})

	// The hub must keep serving registrations instead of wedging on the
	// saturated client.
	second := NewClient(hub, nil, &ClientAuth{
		IdentityName: "second",
		Capability:   capability.Reader,
	}, zap.NewNop())
	select {
	case hub.Register <- second:
	case <-time.After(2 * time.Second):
		t.Fatal("hub stopped accepting registrations after a slow client")
	}

	// The saturated client is canceled rather than blocking the feed.
	require.Eventually(t, func() bool { return slow.ctx.Err() != nil },
		time.Second, 10*time.Millisecond)
}

func TestHubDeliversChangeToWatchingClient(t *testing.T) {
	hub, bus, cancel := newRunningHub()
	defer cancel()

	client := registerTestClient(t, hub, "reader-svc")
	require.Eventually(t, func() bool { return hub.TotalClients() == 1 },
		time.Second, 10*time.Millisecond)

	// Drain the connected greeting.
	select {
	case <-client.send:
	case <-time.After(time.Second):
		t.Fatal("no greeting queued on registration")
	}

	userID := uuid.New()
	bus.Publish(notifier.Change{UserID: userID})

	select {
	case raw := <-client.send:
		msg, err := ParseMessage(raw)
		require.NoError(t, err)
		require.Equal(t, EventTypeChange, msg.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("change fact was not forwarded to the client")
	}
}
