package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"strayland/internal/middleware"

	"github.com/redis/go-redis/v9"
)

// Notifier publishes feed events. With Redis, events travel through
// FeedChannel so every instance's hub sees them; without it they go
// straight to the local hub.
type Notifier struct {
	rdb *redis.Client
	hub *Hub
}

// NewNotifier creates a Notifier; rdb may be nil.
func NewNotifier(rdb *redis.Client, hub *Hub) *Notifier {
	return &Notifier{rdb: rdb, hub: hub}
}

// Publish sends an event of eventType with payload.
func (n *Notifier) Publish(ctx context.Context, eventType string, payload any) error {
	message, err := Encode(eventType, payload)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", eventType, err)
	}

	if n.rdb == nil {
		n.broadcastLocal(message)
		return nil
	}
	if err := n.rdb.Publish(ctx, FeedChannel, message).Err(); err != nil {
		// Local viewers still get the event.
		n.broadcastLocal(message)
		return fmt.Errorf("publish %s event: %w", eventType, err)
	}
	return nil
}

func (n *Notifier) broadcastLocal(message []byte) {
	if n.hub != nil {
		n.hub.Broadcast(message)
	}
}

// StartSubscriber forwards FeedChannel messages to the hub until ctx is done.
// It returns once the subscription is confirmed.
func (n *Notifier) StartSubscriber(ctx context.Context) error {
	if n.rdb == nil || n.hub == nil {
		return nil
	}
	sub := n.rdb.Subscribe(ctx, FeedChannel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe %s: %w", FeedChannel, err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							middleware.Logger.Error("panic in feed subscriber",
								slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
						}
					}()
					n.hub.Broadcast([]byte(msg.Payload))
				}()
			}
		}
	}()
	return nil
}
