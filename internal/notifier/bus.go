// internal/notifier/bus.go
package notifier

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Channel is the Postgres notification channel the store publishes on.
const Channel = "subscriptions_changed"

// Change is the fact fanned out after a committed subscription mutation.
// It carries only the affected user; listeners re-read authoritative state.
type Change struct {
	UserID uuid.UUID `json:"user_id"`
}

// Bus fans Change facts out to in-process subscribers. Delivery is
// best-effort: a subscriber whose buffer is full loses the fact rather
// than blocking the publisher.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]chan Change
	nextID int
	logger *zap.Logger
}

func NewBus(logger *zap.Logger) *Bus {
	return &Bus{
		subs:   make(map[int]chan Change),
		logger: logger,
	}
}

// Subscribe registers a new subscriber with the given buffer size and
// returns its channel plus a cancel func that closes it.
func (b *Bus) Subscribe(buffer int) (<-chan Change, func()) {
	if buffer < 1 {
		buffer = 1
	}
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	ch := make(chan Change, buffer)
	b.subs[id] = ch
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if existing, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(existing)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers the change to every subscriber without blocking.
func (b *Bus) Publish(change Change) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs {
		select {
		case ch <- change:
		default:
			if b.logger != nil {
				b.logger.Warn("notifier bus subscriber lagging, change dropped",
					zap.String("user_id", change.UserID.String()))
			}
		}
	}
}

// Subscribers returns the current subscriber count.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
