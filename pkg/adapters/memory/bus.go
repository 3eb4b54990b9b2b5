package memory

import (
	"context"
	"log/slog"
	"sync"

	"github.com/aretw0/parley/internal/logging"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
)

// subscriberBuffer is the channel buffer of each subscriber.
const subscriberBuffer = 64

// Bus is an in-process ports.EventBus.
// Publishing never blocks: a subscriber whose buffer is full misses the event.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan domain.Event]struct{}
	logger      *slog.Logger
}

var _ ports.EventBus = (*Bus)(nil)

// NewBus creates an empty bus. A nil logger discards.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Bus{
		subscribers: make(map[string]map[chan domain.Event]struct{}),
		logger:      logger.With("component", "event_bus"),
	}
}

// Subscribe registers a subscriber until ctx is done.
func (b *Bus) Subscribe(ctx context.Context, conversationID string) (<-chan domain.Event, error) {
	ch := make(chan domain.Event, subscriberBuffer)

	b.mu.Lock()
	if _, ok := b.subscribers[conversationID]; !ok {
		b.subscribers[conversationID] = make(map[chan domain.Event]struct{})
	}
	b.subscribers[conversationID][ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.unsubscribe(conversationID, ch)
	}()
	return ch, nil
}

func (b *Bus) unsubscribe(conversationID string, ch chan domain.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.subscribers[conversationID]
	if !ok {
		return
	}
	if _, ok := subs[ch]; ok {
		delete(subs, ch)
		close(ch)
	}
	if len(subs) == 0 {
		delete(b.subscribers, conversationID)
	}
}

// Publish delivers event to the subscribers of its conversation.
func (b *Bus) Publish(ctx context.Context, event domain.Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers[event.ConversationID] {
		select {
		case ch <- event:
		default:
			b.logger.Warn("Dropping event for slow subscriber",
				"conversation_id", event.ConversationID,
				"type", event.Type,
			)
		}
	}
	return nil
}

// Subscribers returns the number of live subscriptions for a conversation.
func (b *Bus) Subscribers(conversationID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[conversationID])
}
