package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	appErrors "github.com/noah-isme/lnd-admin-api/pkg/errors"
)

const prefixScanBatch = 100

// SnapshotRepository stores JSON snapshots of course cost summaries and dashboards in Redis.
type SnapshotRepository struct {
	client *redis.Client
}

// NewSnapshotRepository constructs a SnapshotRepository.
func NewSnapshotRepository(client *redis.Client) *SnapshotRepository {
	return &SnapshotRepository{client: client}
}

// Load decodes the snapshot stored under key. A missing key yields ErrCacheMiss.
func (r *SnapshotRepository) Load(ctx context.Context, key string, dest interface{}) error {
	raw, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return appErrors.ErrCacheMiss
	}
	if err != nil {
		return fmt.Errorf("load snapshot %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("decode snapshot %s: %w", key, err)
	}
	return nil
}

// Save stores value under key for ttl.
func (r *SnapshotRepository) Save(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", key, err)
	}
	if err := r.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("save snapshot %s: %w", key, err)
	}
	return nil
}

// Delete removes the given keys.
func (r *SnapshotRepository) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("delete snapshots: %w", err)
	}
	return nil
}

// DeletePrefix removes every key starting with prefix, scanning in batches.
func (r *SnapshotRepository) DeletePrefix(ctx context.Context, prefix string) error {
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, prefix+"*", prefixScanBatch).Result()
		if err != nil {
			return fmt.Errorf("scan snapshots %s: %w", prefix, err)
		}
		if err := r.Delete(ctx, keys...); err != nil {
			return err
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}
