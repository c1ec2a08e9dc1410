package bucket

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"becoming/internal/ratelimit/models"
)

type bucketStore interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.Result, error)
	Reset(ctx context.Context, key string) error
}

// BucketStoreSuite runs the same behaviour against every implementation.
type BucketStoreSuite struct {
	suite.Suite
	newStore func(now func() time.Time) bucketStore
	store    bucketStore
	now      time.Time
}

func TestInMemoryBucketStore(t *testing.T) {
	suite.Run(t, &BucketStoreSuite{newStore: func(now func() time.Time) bucketStore {
		s := NewInMemoryBucketStore()
		s.now = now
		return s
	}})
}

func TestRedisBucketStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	suite.Run(t, &BucketStoreSuite{newStore: func(now func() time.Time) bucketStore {
		mr.FlushAll()
		s := NewRedisBucketStore(client)
		s.now = now
		return s
	}})
}

func (s *BucketStoreSuite) SetupTest() {
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.store = s.newStore(func() time.Time { return s.now })
}

func (s *BucketStoreSuite) allow(key string) *models.Result {
	res, err := s.store.Allow(context.Background(), key, 3, time.Minute)
	s.Require().NoError(err)
	return res
}

func (s *BucketStoreSuite) TestAllowsUpToLimit() {
	for want := 2; want >= 0; want-- {
		res := s.allow("ip:read:10.0.0.1")
		s.True(res.Allowed)
		s.Equal(3, res.Limit)
		s.Equal(want, res.Remaining)
	}

	res := s.allow("ip:read:10.0.0.1")
	s.False(res.Allowed)
	s.Equal(0, res.Remaining)
	s.Equal(60, res.RetryAfter)
	s.WithinDuration(s.now.Add(time.Minute), res.ResetAt, 0)
}

func (s *BucketStoreSuite) TestKeysAreIndependent() {
	for range 3 {
		s.True(s.allow("caller:write:a").Allowed)
	}
	s.False(s.allow("caller:write:a").Allowed)
	s.True(s.allow("caller:write:b").Allowed)
}

func (s *BucketStoreSuite) TestWindowSlides() {
	s.True(s.allow("k").Allowed)
	s.now = s.now.Add(30 * time.Second)
	s.True(s.allow("k").Allowed)
	s.True(s.allow("k").Allowed)
	s.False(s.allow("k").Allowed)

	// The first request leaves the window; one slot frees up.
	s.now = s.now.Add(31 * time.Second)
	res := s.allow("k")
	s.True(res.Allowed)
	s.Equal(0, res.Remaining)
	s.False(s.allow("k").Allowed)
}

func (s *BucketStoreSuite) TestRetryAfterCountsFromOldestRequest() {
	s.True(s.allow("k").Allowed)
	s.now = s.now.Add(45 * time.Second)
	s.True(s.allow("k").Allowed)
	s.True(s.allow("k").Allowed)

	res := s.allow("k")
	s.False(res.Allowed)
	s.Equal(15, res.RetryAfter)
}

func (s *BucketStoreSuite) TestReset() {
	for range 3 {
		s.allow("k")
	}
	s.Require().NoError(s.store.Reset(context.Background(), "k"))
	s.True(s.allow("k").Allowed)
}
