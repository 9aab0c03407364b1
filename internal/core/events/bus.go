package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is anything published on the bus. Concrete events are typed structs
// embedding Meta; subscribers type-assert to the one they registered for.
type Event interface {
	EventType() string
	EventID() string
	OccurredAt() time.Time
}

// Meta carries the identity every event shares.
type Meta struct {
	ID   string    `json:"id"`
	Type string    `json:"type"`
	At   time.Time `json:"occurred_at"`
}

func newMeta(eventType string) Meta {
	return Meta{ID: uuid.NewString(), Type: eventType, At: time.Now().UTC()}
}

func (m Meta) EventType() string     { return m.Type }
func (m Meta) EventID() string       { return m.ID }
func (m Meta) OccurredAt() time.Time { return m.At }

type Handler func(ctx context.Context, event Event) error

// Publisher is the side of the bus producers depend on.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// EventBus is an in-process fan-out. Async handlers are tracked so shutdown
// can drain them with Wait.
type EventBus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	inflight sync.WaitGroup
	logger   *slog.Logger
}

func NewEventBus(logger *slog.Logger) *EventBus {
	return &EventBus{
		handlers: make(map[string][]Handler),
		logger:   logger,
	}
}

func (eb *EventBus) Subscribe(eventType string, handler Handler) {
	eb.mu.Lock()
	eb.handlers[eventType] = append(eb.handlers[eventType], handler)
	count := len(eb.handlers[eventType])
	eb.mu.Unlock()

	eb.logger.Info("event handler registered", "event_type", eventType, "total_handlers", count)
}

// Publish runs every handler in its own goroutine. Handlers get a context
// detached from the caller so they outlive the request that produced the event.
func (eb *EventBus) Publish(ctx context.Context, event Event) error {
	handlers, log := eb.prepare(event, "publishing event")
	if len(handlers) == 0 {
		return nil
	}

	detached := context.WithoutCancel(ctx)
	eb.inflight.Add(len(handlers))
	for _, h := range handlers {
		go func() {
			defer eb.inflight.Done()
			if err := h(detached, event); err != nil {
				log.Error("event handler failed", "error", err)
			}
		}()
	}
	return nil
}

// PublishSync runs handlers in registration order and stops at the first error.
func (eb *EventBus) PublishSync(ctx context.Context, event Event) error {
	handlers, log := eb.prepare(event, "publishing event synchronously")

	for _, h := range handlers {
		if err := h(ctx, event); err != nil {
			log.Error("event handler failed", "error", err)
			return fmt.Errorf("handler failed for event %s: %w", event.EventType(), err)
		}
	}
	return nil
}

// Wait blocks until in-flight asynchronous handlers finish or ctx is done.
func (eb *EventBus) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		eb.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (eb *EventBus) prepare(event Event, msg string) ([]Handler, *slog.Logger) {
	log := eb.logger.With("event_type", event.EventType(), "event_id", event.EventID())

	eb.mu.RLock()
	handlers := append([]Handler(nil), eb.handlers[event.EventType()]...)
	eb.mu.RUnlock()

	if len(handlers) == 0 {
		log.Debug("no handlers for event type")
		return nil, log
	}
	log.Info(msg, "handlers_count", len(handlers))
	return handlers, log
}
