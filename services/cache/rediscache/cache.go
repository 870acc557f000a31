package rediscache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/assignment"
)

const keyPrefix = "gradebook:assignments:course:"

// Open connects to redis and pings it.
func Open(ctx context.Context, conf *core.Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     conf.Redis.Addr,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrapf(err, "pinging redis at %s", conf.Redis.Addr)
	}
	return rdb, nil
}

type cache struct {
	rdb redis.Cmdable
	ttl time.Duration
}

var _ assignment.Cache = (*cache)(nil)

func NewAssignmentCache(rdb redis.Cmdable, ttl time.Duration) assignment.Cache {
	return &cache{rdb: rdb, ttl: ttl}
}

func key(courseID string) string {
	return keyPrefix + courseID
}

func (c *cache) Get(ctx context.Context, courseID string) ([]assignment.Assignment, bool, error) {
	b, err := c.rdb.Get(ctx, key(courseID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, errors.Wrap(err, "reading cached assignments")
	}
	as := make([]assignment.Assignment, 0)
	if err = json.Unmarshal(b, &as); err != nil {
		return nil, false, errors.Wrap(err, "decoding cached assignments")
	}
	return as, true, nil
}

func (c *cache) Set(ctx context.Context, courseID string, as []assignment.Assignment) error {
	b, err := json.Marshal(as)
	if err != nil {
		return errors.Wrap(err, "encoding assignments")
	}
	return errors.Wrap(c.rdb.Set(ctx, key(courseID), b, c.ttl).Err(), "caching assignments")
}

func (c *cache) Invalidate(ctx context.Context, courseIDs ...string) error {
	if len(courseIDs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(courseIDs))
	for _, id := range courseIDs {
		keys = append(keys, key(id))
	}
	return errors.Wrap(c.rdb.Del(ctx, keys...).Err(), "invalidating cached assignments")
}
