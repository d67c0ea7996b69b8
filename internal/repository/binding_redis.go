package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBindingStore keeps the ephemeral device -> session bindings in
// Redis so scanning devices can roam between gateway instances. Keys
// expire with the session, so stale bindings clean themselves up.
type RedisBindingStore struct {
	client *redis.Client
	prefix string
}

// NewRedisBindingStore constructs a binding store on the given client.
func NewRedisBindingStore(client *redis.Client) *RedisBindingStore {
	return &RedisBindingStore{client: client, prefix: "binding:device:"}
}

func (r *RedisBindingStore) key(deviceID string) string {
	return r.prefix + deviceID
}

// Bind associates the device with the session for at most ttl.
func (r *RedisBindingStore) Bind(ctx context.Context, deviceID, sessionID string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = time.Second
	}
	if err := r.client.Set(ctx, r.key(deviceID), sessionID, ttl).Err(); err != nil {
		return fmt.Errorf("bind device: %w", err)
	}
	return nil
}

// Get returns the bound session ID, or empty when the device is unbound.
func (r *RedisBindingStore) Get(ctx context.Context, deviceID string) (string, error) {
	val, err := r.client.Get(ctx, r.key(deviceID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("get binding: %w", err)
	}
	return val, nil
}

// Clear removes the device binding.
func (r *RedisBindingStore) Clear(ctx context.Context, deviceID string) error {
	if err := r.client.Del(ctx, r.key(deviceID)).Err(); err != nil {
		return fmt.Errorf("clear binding: %w", err)
	}
	return nil
}
