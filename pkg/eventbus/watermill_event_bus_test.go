package eventbus_test

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/lakeflow/pkg/channels/gochannel"
	"github.com/dukex/lakeflow/pkg/eventbus"
	"github.com/dukex/lakeflow/pkg/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBus(t *testing.T) eventbus.EventBus {
	t.Helper()

	pub, sub, err := gochannel.CreateChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)
	t.Cleanup(func() { _ = bus.Close() })

	return bus
}

func TestWatermillEventBus_PublishAndHandle(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := newBus(t)
	received := make(chan *events.RunRequested, 1)

	require.NoError(t, bus.Handle(events.RunRequestedEvent, func(_ context.Context, event interface{}) error {
		received <- event.(*events.RunRequested)

		return nil
	}))
	require.NoError(t, bus.Subscribe(ctx))

	err := bus.Publish(ctx, "run-1", events.RunRequested{
		BaseEvent: events.NewBaseEvent(events.RunRequestedEvent, "run-1"),
		Trigger:   "api",
	})
	require.NoError(t, err)

	select {
	case event := <-received:
		assert.Equal(t, "run-1", event.RunID)
		assert.Equal(t, "api", event.Trigger)
	case <-time.After(5 * time.Second):
		t.Fatal("event not delivered")
	}
}

func TestWatermillEventBus_IgnoresUnhandledTypes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := newBus(t)
	received := make(chan string, 2)

	require.NoError(t, bus.Handle(events.RunFailedEvent, func(_ context.Context, event interface{}) error {
		received <- event.(*events.RunFailed).RunID

		return nil
	}))
	require.NoError(t, bus.Subscribe(ctx))

	require.NoError(t, bus.Publish(ctx, "run-1", events.RunStarted{BaseEvent: events.NewBaseEvent(events.RunStartedEvent, "run-1")}))
	require.NoError(t, bus.Publish(ctx, "run-2", events.RunFailed{BaseEvent: events.NewBaseEvent(events.RunFailedEvent, "run-2")}))

	select {
	case id := <-received:
		assert.Equal(t, "run-2", id)
	case <-time.After(5 * time.Second):
		t.Fatal("event not delivered")
	}
}

func TestWatermillEventBus_GenerateID(t *testing.T) {
	bus := newBus(t)

	assert.NotEqual(t, bus.GenerateID(), bus.GenerateID())
}
