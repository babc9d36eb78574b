package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/lnd-admin-api/pkg/config"
)

// KeyPrefix namespaces every key written by this service.
const KeyPrefix = "lnd:"

// NewRedis returns a configured Redis client.
func NewRedis(cfg config.RedisConfig) (*redis.Client, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return client, nil
}

// CourseKey is the cache key for a course cost summary.
func CourseKey(courseID string) string {
	return KeyPrefix + "course:" + courseID + ":costs"
}

// DashboardKey is the cache key for the admin dashboard for the given day.
func DashboardKey(day string) string {
	return KeyPrefix + "dashboard:" + day
}

// DashboardPrefix prefixes every cached dashboard snapshot.
func DashboardPrefix() string {
	return KeyPrefix + "dashboard:"
}
