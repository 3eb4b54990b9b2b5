package ports

import (
	"context"

	"github.com/aretw0/parley/pkg/domain"
)

// EventSink receives the events of a single turn, in order.
type EventSink interface {
	Emit(ctx context.Context, event domain.Event) error
}

// SinkFunc adapts a function to EventSink.
type SinkFunc func(ctx context.Context, event domain.Event) error

func (f SinkFunc) Emit(ctx context.Context, event domain.Event) error { return f(ctx, event) }

// EventBus fans events out to every subscriber of a conversation.
type EventBus interface {
	// Publish delivers event to the current subscribers of event.ConversationID.
	Publish(ctx context.Context, event domain.Event) error

	// Subscribe returns a channel of events for conversationID.
	// The channel is closed once ctx is done.
	Subscribe(ctx context.Context, conversationID string) (<-chan domain.Event, error)
}
