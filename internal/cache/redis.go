package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// memberSetKey is the Redis set holding authorized user ids.
	memberSetKey = "tracker_user"
	// floodKeyPrefix prefixes the per-user flood cool-down keys.
	floodKeyPrefix = "flood_"
)

// Redis implements Membership and FloodGuard over a shared Redis instance.
// Membership is a set keyed by memberSetKey; flood guards are expiring
// string keys armed with SET NX.
type Redis struct {
	Client *redis.Client
}

// NewRedis wraps an existing go-redis client.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{Client: client}
}

// NewRedisClient connects to Redis and verifies the connection with a short
// ping. It returns nil when the server is unreachable so callers can degrade
// to the in-memory implementation.
func NewRedisClient(addr, password string, db int) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil
	}
	return client
}

// Contains reports set membership via SISMEMBER.
func (r *Redis) Contains(ctx context.Context, id int64) (bool, error) {
	return r.Client.SIsMember(ctx, memberSetKey, id).Result()
}

// Add inserts the id via SADD.
func (r *Redis) Add(ctx context.Context, id int64) error {
	return r.Client.SAdd(ctx, memberSetKey, id).Err()
}

// Remove deletes the id via SREM.
func (r *Redis) Remove(ctx context.Context, id int64) error {
	return r.Client.SRem(ctx, memberSetKey, id).Err()
}

// Clear drops the whole membership set.
func (r *Redis) Clear(ctx context.Context) error {
	return r.Client.Del(ctx, memberSetKey).Err()
}

// Hit arms the per-user flood key with SET NX + TTL. When the key already
// exists the user is guarded and the existing expiry is left untouched.
func (r *Redis) Hit(ctx context.Context, id int64, ttl time.Duration) (bool, error) {
	armed, err := r.Client.SetNX(ctx, fmt.Sprintf("%s%d", floodKeyPrefix, id), "1", ttl).Result()
	if err != nil {
		return false, err
	}
	return !armed, nil
}
