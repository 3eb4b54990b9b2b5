package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aretw0/parley/internal/logging"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

const subscriberBuffer = 64

// Bus implements ports.EventBus over Redis Pub/Sub, so that a conversation's events
// reach subscribers connected to any replica.
type Bus struct {
	client *backend.Client
	prefix string
	logger *slog.Logger
}

var _ ports.EventBus = (*Bus)(nil)

// Option configures the Bus.
type Option func(*Bus)

// WithPrefix sets the channel prefix.
func WithPrefix(prefix string) Option {
	return func(b *Bus) {
		b.prefix = prefix
	}
}

// WithLogger configures a logger for the Bus.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bus) {
		b.logger = logger
	}
}

// New creates a new Redis bus with options.
func New(address, password string, db int, opts ...Option) *Bus {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis bus from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Bus {
	b := &Bus{
		client: client,
		prefix: "parley:events:",
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.With("component", "redis_bus")
	return b
}

func (b *Bus) channel(conversationID string) string {
	return b.prefix + conversationID
}

// Publish sends the event as JSON on the conversation channel.
func (b *Bus) Publish(ctx context.Context, event domain.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel(event.ConversationID), data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Subscribe returns once Redis confirmed the subscription, so events published
// afterwards are not missed.
func (b *Bus) Subscribe(ctx context.Context, conversationID string) (<-chan domain.Event, error) {
	ps := b.client.Subscribe(ctx, b.channel(conversationID))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	out := make(chan domain.Event, subscriberBuffer)
	go func() {
		defer close(out)
		defer ps.Close()

		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev domain.Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					b.logger.Warn("Skipping malformed event", "channel", msg.Channel, "error", err)
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Close releases the Redis client.
func (b *Bus) Close() error {
	return b.client.Close()
}
