// Package events is an in-process pub/sub for booking lifecycle events.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"slotbook/internal/model"
)

// Booking event types.
const (
	BookingCreated  = "booking.created"
	BookingCanceled = "booking.canceled"
)

// Event is one booking lifecycle change.
type Event struct {
	Type      string
	Slug      string
	Booking   *model.Booking
	CreatedAt time.Time
}

// Handler reacts to an event.
type Handler func(ctx context.Context, event Event) error

// Bus delivers events to subscribers synchronously. A nil *Bus drops
// every event.
type Bus struct {
	subscribers map[string][]Handler
	mu          sync.RWMutex
	logger      *zerolog.Logger
}

func NewBus(logger *zerolog.Logger) *Bus {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Bus{subscribers: make(map[string][]Handler), logger: logger}
}

// Subscribe registers a handler for eventType.
func (b *Bus) Subscribe(eventType string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish runs every handler of the event's type. Handler errors are logged
// and do not stop the remaining handlers.
func (b *Bus) Publish(ctx context.Context, event Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	handlers := append([]Handler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			ev := b.logger.Error().Err(err).Str("event", event.Type)
			if event.Booking != nil {
				ev = ev.Str("booking_number", event.Booking.BookingNumber)
			}
			ev.Msg("event handler failed")
		}
	}
}
