package cache

import (
	"context"
	"errors"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"

	"github.com/segyhp/lending-ledger/internal/domain"
	customError "github.com/segyhp/lending-ledger/pkg/errors"
)

const reportKey = "lending-ledger:report"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ReportCache keeps the last library report in redis for ttl.
type ReportCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewReportCache(client *redis.Client, ttl time.Duration) *ReportCache {
	return &ReportCache{client: client, ttl: ttl}
}

// NewClient builds a redis client from a redis:// URL.
func NewClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return redis.NewClient(opts), nil
}

// Get returns nil, nil when nothing is cached.
func (c *ReportCache) Get(ctx context.Context) (*domain.Report, error) {
	raw, err := c.client.Get(ctx, reportKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, customError.WrapCacheError(err)
	}

	var report domain.Report
	if err := json.Unmarshal(raw, &report); err != nil {
		return nil, customError.WrapCacheError(err)
	}
	return &report, nil
}

func (c *ReportCache) Set(ctx context.Context, report *domain.Report) error {
	raw, err := json.Marshal(report)
	if err != nil {
		return customError.WrapCacheError(err)
	}
	if err := c.client.Set(ctx, reportKey, raw, c.ttl).Err(); err != nil {
		return customError.WrapCacheError(err)
	}
	return nil
}

func (c *ReportCache) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, reportKey).Err(); err != nil {
		return customError.WrapCacheError(err)
	}
	return nil
}
