// Package redis provides a Redis-backed LockStore for quotaledger.
//
// Locks are plain keys written with SET NX PX. Release runs a Lua script that
// deletes the key only while it still holds the caller's token, so a holder
// whose TTL lapsed cannot remove the next holder's lock.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/ineyio/quotaledger"
)

// Store is a Redis-backed LockStore.
type Store struct {
	client    goredis.Cmdable
	keyPrefix string
}

var _ quotaledger.LockStore = (*Store)(nil)

// Option configures Store.
type Option func(*Store)

// WithKeyPrefix sets the Redis key prefix (default "quotaledger:").
func WithKeyPrefix(prefix string) Option {
	return func(s *Store) { s.keyPrefix = prefix }
}

// New creates a new Redis-backed LockStore.
// The client must be a connected *goredis.Client or *goredis.ClusterClient.
func New(client goredis.Cmdable, opts ...Option) *Store {
	s := &Store{
		client:    client,
		keyPrefix: "quotaledger:",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) lockKey(key string) string {
	return s.keyPrefix + key
}

// releaseScript deletes a lock only if it still holds the caller's token.
// KEYS[1] = lock key
// ARGV[1] = token
//
// Returns:
//
//	1 = deleted
//	0 = missing or owned by someone else
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`)

// Acquire attempts SET key token NX with the given expiry.
func (s *Store) Acquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.lockKey(key), token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("quotaledger/redis: acquire %s: %w", key, err)
	}
	return ok, nil
}

// Release deletes key if token still owns it. A lock that already expired is not an error.
func (s *Store) Release(ctx context.Context, key, token string) error {
	_, err := releaseScript.Run(ctx, s.client, []string{s.lockKey(key)}, token).Int64()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return fmt.Errorf("quotaledger/redis: release %s: %w", key, err)
	}
	return nil
}

// TTL returns the remaining expiry of key, or 0 when it is not held.
func (s *Store) TTL(ctx context.Context, key string) (time.Duration, error) {
	d, err := s.client.PTTL(ctx, s.lockKey(key)).Result()
	if err != nil {
		return 0, fmt.Errorf("quotaledger/redis: ttl %s: %w", key, err)
	}
	if d < 0 {
		return 0, nil
	}
	return d, nil
}
