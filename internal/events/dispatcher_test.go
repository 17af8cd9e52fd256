package events_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-service/internal/events"
)

func TestDispatcherDeliversToSubscribers(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()

	var received []events.Event
	dispatcher.Subscribe(events.EventTicketClosed, func(_ context.Context, e events.Event) error {
		received = append(received, e)
		return nil
	})
	dispatcher.Subscribe(events.EventTicketCreated, func(_ context.Context, e events.Event) error {
		t.Fatal("wrong event type delivered")
		return nil
	})

	err := dispatcher.Publish(context.Background(), events.Event{Type: events.EventTicketClosed, TicketID: 7})
	require.NoError(t, err)
	require.Len(t, received, 1)
	require.Equal(t, int64(7), received[0].TicketID)
}

func TestDispatcherSwallowsHandlerErrors(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()

	calls := 0
	dispatcher.Subscribe(events.EventTicketUpdated, func(context.Context, events.Event) error {
		calls++
		return errors.New("handler boom")
	})
	dispatcher.Subscribe(events.EventTicketUpdated, func(context.Context, events.Event) error {
		calls++
		return nil
	})

	err := dispatcher.Publish(context.Background(), events.Event{Type: events.EventTicketUpdated})
	require.NoError(t, err)
	require.Equal(t, 2, calls, "an erroring handler never blocks the rest")
}
