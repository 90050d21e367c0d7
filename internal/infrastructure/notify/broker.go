package notify

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"newsroom/internal/bootstrap/logging"
	"newsroom/internal/ports"
)

const defaultBuffer = 64

// Subscription is one live consumer of the status stream.
// C is closed when the subscription ends, either by Unsubscribe or because the consumer fell behind.
type Subscription struct {
	ID string
	C  <-chan ports.Event
}

// Broker fans every published event out to all subscribers.
// Publish never blocks: a subscriber whose buffer is full is dropped and has to reconnect.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[string]chan ports.Event
	buffer      int
	bridges     []ports.Notifier
}

var _ ports.Notifier = (*Broker)(nil)

func NewBroker(buffer int, bridges ...ports.Notifier) *Broker {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Broker{
		subscribers: make(map[string]chan ports.Event),
		buffer:      buffer,
		bridges:     bridges,
	}
}

func (b *Broker) Subscribe() Subscription {
	ch := make(chan ports.Event, b.buffer)
	id := uuid.NewString()

	b.mu.Lock()
	b.subscribers[id] = ch
	b.mu.Unlock()

	return Subscription{ID: id, C: ch}
}

func (b *Broker) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.subscribers[id]; ok {
		delete(b.subscribers, id)
		close(ch)
	}
}

// Count returns the number of connected subscribers.
func (b *Broker) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

func (b *Broker) Publish(ctx context.Context, event ports.Event) {
	if ctx == nil {
		ctx = context.Background()
	}

	var dropped []string
	b.mu.Lock()
	for id, ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			delete(b.subscribers, id)
			close(ch)
			dropped = append(dropped, id)
		}
	}
	b.mu.Unlock()

	if len(dropped) > 0 {
		logCtx := logging.WithAttrs(ctx, slog.String("component", "notify.broker"))
		for _, id := range dropped {
			logging.Warn(logCtx, "dropping slow subscriber", slog.String("subscriber_id", id), slog.String("event", event.Name))
		}
	}

	for _, bridge := range b.bridges {
		bridge.Publish(ctx, event)
	}
}

// Close ends every subscription.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, ch := range b.subscribers {
		delete(b.subscribers, id)
		close(ch)
	}
}
