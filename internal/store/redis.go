package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/strikemap-systems/strikemap/internal/models"
)

const (
	keyCounterToday     = "counter:today"
	keyCounterYesterday = "counter:yesterday"
	keyRecentAttacks    = "attacks:recent"

	yesterdayTTLSeconds = 25 * 60 * 60
	recentTTL           = time.Hour
)

// rotateScript performs the day rotation as one atomic unit: archive
// today's total under counter:yesterday with a 25h TTL (only when a total
// exists), then delete counter:today. Running it as a script guarantees no
// concurrent INCR interleaves between the read and the reset.
var rotateScript = redis.NewScript(`
local today = redis.call('GET', KEYS[1])
if today then
  redis.call('SETEX', KEYS[2], ARGV[1], today)
end
redis.call('DEL', KEYS[1])
return today
`)

// RedisStore implements Store on a Redis client.
type RedisStore struct {
	client *redis.Client
}

// NewRedis connects to Redis at url and verifies reachability.
func NewRedis(url string) (*RedisStore, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &RedisStore{client: client}, nil
}

// NewRedisFromClient wraps an existing Redis connection (tests).
func NewRedisFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// IncrementToday implements Store.
func (s *RedisStore) IncrementToday(ctx context.Context, n int64) (int64, error) {
	total, err := s.client.IncrBy(ctx, keyCounterToday, n).Result()
	if err != nil {
		return 0, fmt.Errorf("increment today counter: %w", err)
	}
	return total, nil
}

// GetToday implements Store.
func (s *RedisStore) GetToday(ctx context.Context) (int64, error) {
	val, err := s.client.Get(ctx, keyCounterToday).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get today counter: %w", err)
	}
	return val, nil
}

// GetYesterday implements Store.
func (s *RedisStore) GetYesterday(ctx context.Context) (int64, bool, error) {
	val, err := s.client.Get(ctx, keyCounterYesterday).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get yesterday counter: %w", err)
	}
	return val, true, nil
}

// RotateDay implements Store.
func (s *RedisStore) RotateDay(ctx context.Context) error {
	err := rotateScript.Run(ctx, s.client,
		[]string{keyCounterToday, keyCounterYesterday},
		yesterdayTTLSeconds,
	).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("rotate day counter: %w", err)
	}
	return nil
}

// PushRecent implements Store. The prepend, trim and TTL refresh run as
// one pipeline.
func (s *RedisStore) PushRecent(ctx context.Context, ev *models.AttackEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.LPush(ctx, keyRecentAttacks, payload)
	pipe.LTrim(ctx, keyRecentAttacks, 0, MaxRecent-1)
	pipe.Expire(ctx, keyRecentAttacks, recentTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("push recent event: %w", err)
	}
	return nil
}

// GetRecent implements Store. Malformed entries are skipped.
func (s *RedisStore) GetRecent(ctx context.Context, limit int) ([]models.AttackEvent, error) {
	if limit <= 0 || limit > MaxRecent {
		limit = MaxRecent
	}

	items, err := s.client.LRange(ctx, keyRecentAttacks, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("get recent events: %w", err)
	}

	events := make([]models.AttackEvent, 0, len(items))
	for _, item := range items {
		var ev models.AttackEvent
		if err := json.Unmarshal([]byte(item), &ev); err != nil {
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

// Publish implements Store.
func (s *RedisStore) Publish(ctx context.Context, ev *models.AttackEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := s.client.Publish(ctx, ChannelAttacks, payload).Err(); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Subscribe implements Store. It waits for the subscription confirmation
// so a broken transport surfaces here, not on first Receive.
func (s *RedisStore) Subscribe(ctx context.Context) (Subscription, error) {
	ps := s.client.Subscribe(ctx, ChannelAttacks)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe to %s: %w", ChannelAttacks, err)
	}
	return &redisSubscription{ps: ps}, nil
}

// Ping implements Store.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close implements Store.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

type redisSubscription struct {
	ps *redis.PubSub
}

func (r *redisSubscription) Receive(ctx context.Context) ([]byte, error) {
	msg, err := r.ps.ReceiveMessage(ctx)
	if err != nil {
		return nil, err
	}
	return []byte(msg.Payload), nil
}

func (r *redisSubscription) Close() error {
	return r.ps.Close()
}
