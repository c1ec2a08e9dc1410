package bucket

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"becoming/internal/ratelimit/models"
	"becoming/pkg/platform/sentinel"
)

const (
	redisKeyPrefix = "becoming:ratelimit:"
	maxTxRetries   = 8
)

// RedisBucketStore keeps one sorted set per key, scored by request time in
// microseconds, so every replica shares the same window.
type RedisBucketStore struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedisBucketStore(client *redis.Client) *RedisBucketStore {
	return &RedisBucketStore{client: client, now: time.Now}
}

func (s *RedisBucketStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.Result, error) {
	k := redisKeyPrefix + key
	var result *models.Result

	check := func(tx *redis.Tx) error {
		now := s.now()
		cutoff := strconv.FormatInt(now.Add(-window).UnixMicro(), 10)

		count, err := tx.ZCount(ctx, k, "("+cutoff, "+inf").Result()
		if err != nil {
			return err
		}
		if count >= int64(limit) {
			oldest, err := tx.ZRangeByScoreWithScores(ctx, k, &redis.ZRangeBy{
				Min: "(" + cutoff, Max: "+inf", Offset: 0, Count: 1,
			}).Result()
			if err != nil {
				return err
			}
			resetAt := now.Add(window)
			if len(oldest) > 0 {
				resetAt = time.UnixMicro(int64(oldest[0].Score)).Add(window)
			}
			result = denied(limit, resetAt, now)
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.ZRemRangeByScore(ctx, k, "-inf", cutoff)
			p.ZAdd(ctx, k, redis.Z{Score: float64(now.UnixMicro()), Member: uuid.NewString()})
			p.PExpire(ctx, k, window)
			return nil
		})
		if err != nil {
			return err
		}

		resetAt := now.Add(window)
		if count > 0 {
			oldest, err := s.client.ZRangeWithScores(ctx, k, 0, 0).Result()
			if err == nil && len(oldest) > 0 {
				resetAt = time.UnixMicro(int64(oldest[0].Score)).Add(window)
			}
		}
		result = &models.Result{
			Allowed:   true,
			Limit:     limit,
			Remaining: limit - int(count) - 1,
			ResetAt:   resetAt,
		}
		return nil
	}

	for range maxTxRetries {
		err := s.client.Watch(ctx, check, k)
		if err == nil {
			return result, nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return nil, fmt.Errorf("rate limit %s: %w", key, err)
		}
	}
	return nil, fmt.Errorf("rate limit %s: %w", key, sentinel.ErrUnavailable)
}

func (s *RedisBucketStore) Reset(ctx context.Context, key string) error {
	return s.client.Del(ctx, redisKeyPrefix+key).Err()
}
