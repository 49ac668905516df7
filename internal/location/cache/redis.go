package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"aegis/internal/location"
)

// Redis shares the position cache across instances. Entries carry a TTL equal
// to the freshness window; anything older is useless as a fallback anyway.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

func key(userID string) string {
	return "aegis:position:" + userID
}

func (r *Redis) Get(ctx context.Context, userID string) (location.Position, bool, error) {
	raw, err := r.client.Get(ctx, key(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return location.Position{}, false, nil
		}
		return location.Position{}, false, fmt.Errorf("get cached position: %w", err)
	}

	var pos location.Position
	if err := json.Unmarshal(raw, &pos); err != nil {
		return location.Position{}, false, fmt.Errorf("decode cached position: %w", err)
	}
	return pos, true, nil
}

func (r *Redis) Put(ctx context.Context, userID string, pos location.Position) error {
	raw, err := json.Marshal(pos)
	if err != nil {
		return fmt.Errorf("encode position: %w", err)
	}
	if err := r.client.Set(ctx, key(userID), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("cache position: %w", err)
	}
	return nil
}
