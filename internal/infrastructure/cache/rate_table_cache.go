package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tpa/backend/internal/domain/currency"
	"github.com/tpa/backend/internal/domain/shared/valueobject"
	"go.uber.org/zap"
)

const (
	rateKeyPrefix  = "tpa:rates"
	rateVersionKey = "tpa:rates:version"
)

// RateTableCache is a read-through cache in front of a rate repository.
// Lookups are keyed by base and date; saving a table bumps a version so
// that earlier lookups are not served again.
type RateTableCache struct {
	next   currency.RateRepository
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRateTableCache wraps next. A nil client disables caching.
func NewRateTableCache(next currency.RateRepository, client *redis.Client, ttl time.Duration, logger *zap.Logger) *RateTableCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateTableCache{next: next, client: client, ttl: ttl, logger: logger}
}

type cachedTable struct {
	Base  valueobject.Currency `json:"base"`
	AsOf  time.Time            `json:"as_of"`
	Rates []currency.Rate      `json:"rates"`
}

// Save writes through and invalidates cached lookups
func (c *RateTableCache) Save(ctx context.Context, table *currency.RateTable) error {
	if err := c.next.Save(ctx, table); err != nil {
		return err
	}
	if c.client == nil {
		return nil
	}
	if err := c.client.Incr(ctx, rateVersionKey).Err(); err != nil {
		c.logger.Warn("Failed to invalidate rate cache", zap.Error(err))
	}
	return nil
}

// Latest serves from Redis when possible. Redis failures fall back to the
// repository.
func (c *RateTableCache) Latest(ctx context.Context, base valueobject.Currency, asOf time.Time) (*currency.RateTable, error) {
	if c.client == nil {
		return c.next.Latest(ctx, base, asOf)
	}

	key, err := c.key(ctx, base, asOf)
	if err != nil {
		c.logger.Warn("Rate cache unavailable", zap.Error(err))
		return c.next.Latest(ctx, base, asOf)
	}

	payload, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cached cachedTable
		if err := json.Unmarshal(payload, &cached); err == nil {
			return currency.NewRateTable(cached.Base, cached.AsOf, cached.Rates)
		}
		c.logger.Warn("Discarding unreadable rate cache entry", zap.String("key", key))
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("Rate cache read failed", zap.Error(err))
	}

	table, err := c.next.Latest(ctx, base, asOf)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(cachedTable{Base: table.Base(), AsOf: table.AsOf(), Rates: table.Rates()})
	if err == nil {
		err = c.client.Set(ctx, key, raw, c.ttl).Err()
	}
	if err != nil {
		c.logger.Warn("Rate cache write failed", zap.Error(err))
	}
	return table, nil
}

func (c *RateTableCache) key(ctx context.Context, base valueobject.Currency, asOf time.Time) (string, error) {
	ver, err := c.client.Get(ctx, rateVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		ver, err = 0, nil
	}
	if err != nil {
		return "", err
	}
	return strings.Join([]string{
		rateKeyPrefix,
		string(base),
		asOf.Format(time.DateOnly),
		strconv.FormatInt(ver, 10),
	}, ":"), nil
}

var _ currency.RateRepository = (*RateTableCache)(nil)
