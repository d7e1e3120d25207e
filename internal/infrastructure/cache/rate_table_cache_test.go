package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tpa/backend/internal/domain/currency"
	"github.com/tpa/backend/internal/domain/shared"
	"github.com/tpa/backend/internal/domain/shared/valueobject"
)

type countingRepo struct {
	table *currency.RateTable
	err   error
	reads int
	saves int
}

func (r *countingRepo) Save(_ context.Context, table *currency.RateTable) error {
	r.saves++
	r.table = table
	return nil
}

func (r *countingRepo) Latest(context.Context, valueobject.Currency, time.Time) (*currency.RateTable, error) {
	r.reads++
	if r.err != nil {
		return nil, r.err
	}
	return r.table, nil
}

func newTable(t *testing.T, usd string) *currency.RateTable {
	t.Helper()
	table, err := currency.NewRateTable(valueobject.EUR, time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC), []currency.Rate{
		{Currency: valueobject.USD, Rate: decimal.RequireFromString(usd)},
	})
	require.NoError(t, err)
	return table
}

func usdRate(t *testing.T, table *currency.RateTable) decimal.Decimal {
	t.Helper()
	got, err := table.Convert(valueobject.Zero(valueobject.EUR).WithAmount(decimal.NewFromInt(1)), valueobject.USD)
	require.NoError(t, err)
	return got.Amount()
}

func setupCache(t *testing.T, repo *countingRepo) (*RateTableCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRateTableCache(repo, client, time.Hour, nil), mr
}

func TestRateTableCache_ReadThrough(t *testing.T) {
	repo := &countingRepo{table: newTable(t, "1.25")}
	c, mr := setupCache(t, repo)
	ctx := context.Background()
	asOf := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)

	first, err := c.Latest(ctx, valueobject.EUR, asOf)
	require.NoError(t, err)
	second, err := c.Latest(ctx, valueobject.EUR, asOf)
	require.NoError(t, err)

	assert.Equal(t, 1, repo.reads, "second lookup is served from redis")
	assert.True(t, usdRate(t, second).Equal(decimal.RequireFromString("1.25")))
	assert.Equal(t, first.AsOf().Format(time.DateOnly), second.AsOf().Format(time.DateOnly))
	assert.Equal(t, valueobject.EUR, second.Base())
	assert.True(t, mr.Exists("tpa:rates:EUR:2025-01-15:0"))
	assert.Equal(t, time.Hour, mr.TTL("tpa:rates:EUR:2025-01-15:0"))
}

func TestRateTableCache_SaveInvalidates(t *testing.T) {
	repo := &countingRepo{table: newTable(t, "1.25")}
	c, _ := setupCache(t, repo)
	ctx := context.Background()
	asOf := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)

	_, err := c.Latest(ctx, valueobject.EUR, asOf)
	require.NoError(t, err)

	require.NoError(t, c.Save(ctx, newTable(t, "1.3")))
	assert.Equal(t, 1, repo.saves)

	table, err := c.Latest(ctx, valueobject.EUR, asOf)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.reads)
	assert.True(t, usdRate(t, table).Equal(decimal.RequireFromString("1.3")))
}

func TestRateTableCache_Fallbacks(t *testing.T) {
	t.Run("errors are not cached", func(t *testing.T) {
		repo := &countingRepo{err: shared.ErrNotFound}
		c, _ := setupCache(t, repo)

		_, err := c.Latest(context.Background(), valueobject.EUR, time.Now())
		assert.True(t, errors.Is(err, shared.ErrNotFound))
		_, _ = c.Latest(context.Background(), valueobject.EUR, time.Now())
		assert.Equal(t, 2, repo.reads)
	})

	t.Run("redis down", func(t *testing.T) {
		repo := &countingRepo{table: newTable(t, "1.25")}
		c, mr := setupCache(t, repo)
		mr.Close()

		table, err := c.Latest(context.Background(), valueobject.EUR, time.Now())
		require.NoError(t, err)
		assert.True(t, usdRate(t, table).Equal(decimal.RequireFromString("1.25")))
	})

	t.Run("no client", func(t *testing.T) {
		repo := &countingRepo{table: newTable(t, "1.25")}
		c := NewRateTableCache(repo, nil, time.Hour, nil)

		require.NoError(t, c.Save(context.Background(), repo.table))
		_, err := c.Latest(context.Background(), valueobject.EUR, time.Now())
		require.NoError(t, err)
		assert.Equal(t, 1, repo.reads)
	})

	t.Run("corrupt entry", func(t *testing.T) {
		repo := &countingRepo{table: newTable(t, "1.25")}
		c, mr := setupCache(t, repo)
		require.NoError(t, mr.Set("tpa:rates:EUR:2025-01-15:0", "{"))

		_, err := c.Latest(context.Background(), valueobject.EUR, time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC))
		require.NoError(t, err)
		assert.Equal(t, 1, repo.reads)
	})
}
