package tags

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// channelFor returns the Redis pub/sub channel carrying one user's tag
// events. Channels are per-user so a relay only ever sees its own traffic.
func channelFor(userID string) string {
	return "memoria:tags:" + userID
}

// Notifier broadcasts tag events to the owner's open sessions. Publishing
// is best-effort: a failed broadcast never fails the mutation that caused
// it, other sessions simply converge on their next full fetch.
type Notifier interface {
	Publish(ctx context.Context, userID string, event Event)
}

// redisNotifier publishes events over Redis pub/sub so broadcasts reach
// sessions held by any server instance.
type redisNotifier struct {
	client *redis.Client
	logger *slog.Logger
}

func NewNotifier(client *redis.Client, logger *slog.Logger) Notifier {
	return &redisNotifier{client: client, logger: logger}
}

func (n *redisNotifier) Publish(ctx context.Context, userID string, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		n.logger.Error("encoding tag event", "error", err)
		return
	}
	if err := n.client.Publish(ctx, channelFor(userID), payload).Err(); err != nil {
		n.logger.Warn("tag event publish failed", "user_id", userID, "error", err)
	}
}

// Subscribe opens the user's tag event stream. The returned channel closes
// when ctx is cancelled.
func Subscribe(ctx context.Context, client *redis.Client, userID string) <-chan Event {
	sub := client.Subscribe(ctx, channelFor(userID))
	out := make(chan Event)

	go func() {
		defer close(out)
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-sub.Channel():
				if !ok {
					return
				}
				var event Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					slog.Warn("malformed tag event", "user_id", userID, "error", err)
					continue
				}
				select {
				case out <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}
