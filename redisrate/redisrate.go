// Package redisrate is an [identity.RateLimitStore] on Redis, for
// deployments where login pressure should not reach the primary database.
// The increment runs as a Lua script so the reset-or-count decision is
// atomic on the server.
package redisrate

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/praxisauth/identity"
)

const keyPrefix = "identity:ratelimit:"

// incrScript resets the counter when the stored window start is at or
// before the cutoff, otherwise increments in place. Returns count and
// window start in unix nanoseconds.
var incrScript = redis.NewScript(`
local ws = redis.call('HGET', KEYS[1], 'ws')
if not ws or tonumber(ws) <= tonumber(ARGV[2]) then
	redis.call('HSET', KEYS[1], 'count', 1, 'ws', ARGV[1])
	redis.call('PEXPIRE', KEYS[1], ARGV[3])
	return {1, ARGV[1]}
end
local count = redis.call('HINCRBY', KEYS[1], 'count', 1)
return {count, ws}
`)

// Store implements identity.RateLimitStore on a Redis client.
type Store struct {
	client redis.UniversalClient
}

// New wraps an existing client. The caller owns the client's lifecycle.
func New(client redis.UniversalClient) *Store {
	return &Store{client: client}
}

func counterKey(key string) string { return keyPrefix + key }
func blockKey(key string) string   { return keyPrefix + "block:" + key }

func (s *Store) GetRateLimit(ctx context.Context, key string) (*identity.RateLimitRecord, error) {
	fields, err := s.client.HGetAll(ctx, counterKey(key)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", identity.ErrStoreUnavailable, err)
	}

	blocked, err := s.client.Get(ctx, blockKey(key)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %v", identity.ErrStoreUnavailable, err)
	}

	if len(fields) == 0 && blocked == "" {
		return nil, nil
	}

	rec := &identity.RateLimitRecord{Key: key}
	if raw, ok := fields["count"]; ok {
		rec.Count, _ = strconv.Atoi(raw)
	}
	if raw, ok := fields["ws"]; ok {
		ns, _ := strconv.ParseInt(raw, 10, 64)
		rec.WindowStart = time.Unix(0, ns).UTC()
	}
	if blocked != "" {
		ns, _ := strconv.ParseInt(blocked, 10, 64)
		until := time.Unix(0, ns).UTC()
		rec.BlockedUntil = &until
	}
	return rec, nil
}

func (s *Store) IncrementRateLimit(ctx context.Context, key string, now time.Time, window time.Duration) (*identity.RateLimitRecord, error) {
	cutoff := now.Add(-window)

	// The key expires two windows after its last reset, long enough for
	// the block check yet self-cleaning for idle keys.
	res, err := incrScript.Run(ctx, s.client, []string{counterKey(key)},
		now.UnixNano(), cutoff.UnixNano(), (2 * window).Milliseconds()).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", identity.ErrStoreUnavailable, err)
	}
	if len(res) != 2 {
		return nil, fmt.Errorf("%w: unexpected script reply", identity.ErrStoreUnavailable)
	}

	return &identity.RateLimitRecord{
		Key:         key,
		Count:       int(res[0]),
		WindowStart: time.Unix(0, res[1]).UTC(),
	}, nil
}

func (s *Store) BlockRateLimit(ctx context.Context, key string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	if err := s.client.Set(ctx, blockKey(key),
		strconv.FormatInt(until.UnixNano(), 10), ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", identity.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *Store) DeleteRateLimit(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, counterKey(key), blockKey(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", identity.ErrStoreUnavailable, err)
	}
	return nil
}
