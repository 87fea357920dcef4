package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// NotifyGuard suppresses duplicate notification sends across notifier
// replicas. The outbox dedupe key is the primary guarantee; this is the
// chat-level backstop.
type NotifyGuard struct {
	client *redis.Client
	ttl    time.Duration
}

func NewNotifyGuard(client *redis.Client, ttl time.Duration) *NotifyGuard {
	return &NotifyGuard{client: client, ttl: ttl}
}

// Acquire returns true exactly once per key within the TTL window.
func (g *NotifyGuard) Acquire(ctx context.Context, key string) (bool, error) {
	res := g.client.SetNX(ctx, "notified:"+key, 1, g.ttl)
	return res.Val(), res.Err()
}
