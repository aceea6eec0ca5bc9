package lock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"k8s.io/utils/clock"
)

// releaseScript deletes the key only when it still carries the caller's token
var releaseScript = redis.NewScript(`
local v = redis.call("GET", KEYS[1])
if not v then
  return 0
end
local ok, lock = pcall(cjson.decode, v)
if ok and lock.token == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

type redisValue struct {
	Token      string    `json:"token"`
	Holder     string    `json:"holder"`
	Initiator  string    `json:"initiator"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// RedisStore keeps locks as Redis keys set with NX and a millisecond TTL
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	clock  clock.PassiveClock
}

// NewRedisStore creates a store using client; keys are prefix + scope
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, clock: clock.RealClock{}}
}

// Acquire implements Store
func (s *RedisStore) Acquire(
	ctx context.Context, scope, holder, initiator, token string, ttl time.Duration,
) (bool, error) {
	data, err := json.Marshal(redisValue{
		Token:      token,
		Holder:     holder,
		Initiator:  initiator,
		AcquiredAt: s.clock.Now().UTC(),
	})
	if err != nil {
		return false, fmt.Errorf("failed to marshal lock: %w", err)
	}
	return s.client.SetNX(ctx, s.prefix+scope, data, ttl).Result()
}

// Get implements Store
func (s *RedisStore) Get(ctx context.Context, scope string) (*Info, error) {
	key := s.prefix + scope

	pipe := s.client.Pipeline()
	getCmd := pipe.Get(ctx, key)
	ttlCmd := pipe.PTTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	data, err := getCmd.Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var v redisValue
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("failed to unmarshal lock: %w", err)
	}

	now := s.clock.Now().UTC()
	info := &Info{
		Scope:      scope,
		Holder:     v.Holder,
		Initiator:  v.Initiator,
		AcquiredAt: v.AcquiredAt,
		Age:        now.Sub(v.AcquiredAt),
	}
	if ttl, err := ttlCmd.Result(); err == nil && ttl > 0 {
		info.ExpiresAt = now.Add(ttl)
	}
	return info, nil
}

// Release implements Store
func (s *RedisStore) Release(ctx context.Context, scope, token string) (bool, error) {
	n, err := releaseScript.Run(ctx, s.client, []string{s.prefix + scope}, token).Int()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
