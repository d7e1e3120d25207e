package transferpricing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tpa/backend/internal/domain/currency"
	"github.com/tpa/backend/internal/domain/shared/valueobject"
)

func eur(s string) *valueobject.Money {
	return valueobject.MustNewMoney(decimal.RequireFromString(s), valueobject.EUR).Ptr()
}

func usd(s string) *valueobject.Money {
	return valueobject.MustNewMoney(decimal.RequireFromString(s), valueobject.USD).Ptr()
}

func dec(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func seg(pairs ...any) Segmentation {
	s := Segmentation{}
	for i := 0; i+1 < len(pairs); i += 2 {
		s[pairs[i].(int)] = pairs[i+1].(string)
	}
	return s
}

func date(s string) *time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return &d
}

func rates(t *testing.T) currency.Normalizer {
	t.Helper()
	table, err := currency.NewRateTable(valueobject.EUR, time.Time{}, []currency.Rate{
		{Currency: valueobject.USD, Rate: decimal.RequireFromString("1.25")},
	})
	require.NoError(t, err)
	return table
}

func assertAmount(t *testing.T, want string, got *valueobject.Money) {
	t.Helper()
	require.NotNil(t, got)
	assertDecimal(t, want, got.Amount())
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Truef(t, got.Equal(decimal.RequireFromString(want)), "want %s, got %s", want, got)
}
