package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const keyPrefix = "candlearchive:watermark"

// RedisStore keeps per-unit watermarks: the timestamp through which a unit
// is complete and validated. A missing key reads as watermark zero, which
// simply forces a full fetch.
type RedisStore struct {
	client *redis.Client
	logger *logrus.Entry
}

func NewRedisStore(client *redis.Client, logger *logrus.Logger) *RedisStore {
	return &RedisStore{
		client: client,
		logger: logger.WithField("component", "checkpoint"),
	}
}

func key(symbol, unit string) string {
	return fmt.Sprintf("%s:%s:%s", keyPrefix, symbol, unit)
}

func (s *RedisStore) Watermark(ctx context.Context, symbol, unit string) (int64, error) {
	val, err := s.client.Get(ctx, key(symbol, unit)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read watermark: %w", err)
	}
	ts, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse watermark %q: %w", val, err)
	}
	return ts, nil
}

func (s *RedisStore) SetWatermark(ctx context.Context, symbol, unit string, ts int64) error {
	if err := s.client.Set(ctx, key(symbol, unit), strconv.FormatInt(ts, 10), 0).Err(); err != nil {
		return fmt.Errorf("store watermark: %w", err)
	}
	s.logger.WithFields(logrus.Fields{
		"symbol":    symbol,
		"unit":      unit,
		"watermark": ts,
	}).Debug("watermark advanced")
	return nil
}
