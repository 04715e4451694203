package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/common/database"
)

// Deduplicator remembers message ids for a while so redelivered events are
// processed once.
type Deduplicator struct {
	client goredis.UniversalClient
	key    func(parts ...string) string
	ttl    time.Duration
}

func NewDeduplicator(rc *database.RedisClient, ttl time.Duration) *Deduplicator {
	return &Deduplicator{client: rc.GetClient(), key: rc.Key, ttl: ttl}
}

// FirstSeen claims id in scope and reports whether this caller is the first.
func (d *Deduplicator) FirstSeen(ctx context.Context, scope, id string) (bool, error) {
	ok, err := d.client.SetNX(ctx, d.key("dedupe", scope, id), time.Now().UTC().Format(time.RFC3339), d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedupe %s/%s: %w", scope, id, err)
	}
	return ok, nil
}

// Forget releases id so a failed message can be processed again.
func (d *Deduplicator) Forget(ctx context.Context, scope, id string) error {
	if err := d.client.Del(ctx, d.key("dedupe", scope, id)).Err(); err != nil {
		return fmt.Errorf("dedupe release %s/%s: %w", scope, id, err)
	}
	return nil
}
