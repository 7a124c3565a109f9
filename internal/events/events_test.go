package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"slotbook/internal/model"
)

func TestBus_PublishDeliversByType(t *testing.T) {
	bus := NewBus(nil)

	var created, canceled []string
	bus.Subscribe(BookingCreated, func(_ context.Context, e Event) error {
		created = append(created, e.Booking.BookingNumber)
		return nil
	})
	bus.Subscribe(BookingCanceled, func(_ context.Context, e Event) error {
		canceled = append(canceled, e.Booking.BookingNumber)
		return nil
	})

	bus.Publish(context.Background(), Event{Type: BookingCreated, Booking: &model.Booking{BookingNumber: "BK-001"}})
	bus.Publish(context.Background(), Event{Type: BookingCanceled, Booking: &model.Booking{BookingNumber: "BK-002"}})
	bus.Publish(context.Background(), Event{Type: "unknown"})

	assert.Equal(t, []string{"BK-001"}, created)
	assert.Equal(t, []string{"BK-002"}, canceled)
}

func TestBus_HandlerErrorDoesNotStopOthers(t *testing.T) {
	bus := NewBus(nil)

	calls := 0
	bus.Subscribe(BookingCreated, func(context.Context, Event) error {
		calls++
		return errors.New("boom")
	})
	bus.Subscribe(BookingCreated, func(_ context.Context, e Event) error {
		calls++
		assert.False(t, e.CreatedAt.IsZero())
		return nil
	})

	bus.Publish(context.Background(), Event{Type: BookingCreated, Booking: &model.Booking{}})
	assert.Equal(t, 2, calls)
}

func TestBus_NilDropsEvents(t *testing.T) {
	var bus *Bus
	assert.NotPanics(t, func() {
		bus.Publish(context.Background(), Event{Type: BookingCreated})
	})
}
