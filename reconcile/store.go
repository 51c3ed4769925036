package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store persists the latest snapshot per viewer so a restarted session can
// show data before its first refresh lands.
type Store interface {
	Save(ctx context.Context, viewer string, snap *Snapshot) error
	Load(ctx context.Context, viewer string) (*Snapshot, error)
}

// OpenRedis connects and pings a Redis instance.
func OpenRedis(addr string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("reconcile: ping redis: %w", err)
	}
	return client, nil
}

// RedisStore keeps snapshots in Redis as JSON with a bounded lifetime. Stale
// entries expiring away is fine; the snapshot is a warm-start convenience,
// not an authority.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisStore wraps an existing Redis client. A non-positive ttl defaults
// to one hour.
func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func snapshotKey(viewer string) string {
	return "peerlend:snapshot:" + viewer
}

// Save marshals and stores the snapshot under the viewer's key.
func (s *RedisStore) Save(ctx context.Context, viewer string, snap *Snapshot) error {
	if snap == nil {
		return fmt.Errorf("reconcile: nil snapshot")
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("reconcile: marshal snapshot: %w", err)
	}
	return s.rdb.Set(ctx, snapshotKey(viewer), raw, s.ttl).Err()
}

// Load returns the stored snapshot, or nil when none exists.
func (s *RedisStore) Load(ctx context.Context, viewer string) (*Snapshot, error) {
	raw, err := s.rdb.Get(ctx, snapshotKey(viewer)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reconcile: load snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("reconcile: unmarshal snapshot: %w", err)
	}
	return &snap, nil
}
