package method

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tpa/backend/internal/domain/currency"
	"github.com/tpa/backend/internal/domain/shared"
	"github.com/tpa/backend/internal/domain/shared/strategy"
	"github.com/tpa/backend/internal/domain/shared/valueobject"
	"github.com/tpa/backend/internal/domain/transferpricing"
)

func eur(s string) *valueobject.Money {
	return valueobject.MustNewMoney(decimal.RequireFromString(s), valueobject.EUR).Ptr()
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func record() *transferpricing.OutputRecord {
	return transferpricing.NewOutputRecord(transferpricing.Record{
		ID:                1,
		LocalCurrency:     valueobject.EUR,
		ProfitIndicator:   eur("100"),
		Assets:            eur("1000"),
		CapitalEmployed:   eur("500"),
		BeforeSales:       eur("1000"),
		OGSales:           eur("400"),
		COGS:              eur("800"),
		OperatingExpenses: eur("250"),
		RoyaltyPaid:       eur("50"),
		BaseRoyalty:       eur("1000"),
	})
}

func TestStrategies(t *testing.T) {
	norm := currency.EmptyRateTable()
	onSales := &transferpricing.Rule{DeclaringImpact: transferpricing.ImpactSales}
	onCOGS := &transferpricing.Rule{DeclaringImpact: transferpricing.ImpactCOGS}

	tests := []struct {
		name    string
		s       strategy.MethodStrategy
		rule    *transferpricing.Rule
		kpi     string
		target  string
		wantTPA string
	}{
		{"roa", NewROAStrategy(), onCOGS, "0.1", "0.15", "50"},
		{"roce", NewROCEStrategy(), onCOGS, "0.2", "0.1", "-50"},
		{"roogs", NewROOGSStrategy(), onCOGS, "0.25", "0.5", "100"},
		{"rocogs", NewROCOGSStrategy(), onCOGS, "0.125", "0.25", "100"},
		{"rooe", NewROOEStrategy(), onCOGS, "0.4", "0.2", "-50"},
		{"ros on sales", NewROSStrategy(), onSales, "0.1", "0.2", "125"},
		{"ros elsewhere", NewROSStrategy(), onCOGS, "0.1", "0.2", "100"},
		{"royalty", NewRoyaltyStrategy(), onCOGS, "0.4", "0.03", "-80"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := record()
			assert.NotEmpty(t, tt.s.Description())

			kpi, err := tt.s.KPI(rec, norm)
			require.NoError(t, err)
			require.True(t, kpi.Valid)
			assert.Truef(t, kpi.Decimal.Equal(d(tt.kpi)), "kpi %s", kpi.Decimal)

			tpa, err := tt.s.Adjustment(rec, tt.rule, d(tt.target), norm)
			require.NoError(t, err)
			assert.Equal(t, valueobject.EUR, tpa.Currency())
			assert.Truef(t, tpa.Amount().Equal(d(tt.wantTPA)), "tpa %s", tpa.Amount())
		})
	}
}

func TestROCStrategy(t *testing.T) {
	norm := currency.EmptyRateTable()
	s := NewROCStrategy()
	rec := transferpricing.NewOutputRecord(transferpricing.Record{
		LocalCurrency:   valueobject.EUR,
		ProfitIndicator: eur("200"),
		BeforeSales:     eur("1200"),
	})

	kpi, err := s.KPI(rec, norm)
	require.NoError(t, err)
	assert.True(t, kpi.Decimal.Equal(d("0.2")))

	tpa, err := s.Adjustment(rec, &transferpricing.Rule{DeclaringImpact: transferpricing.ImpactSales}, d("0.25"), norm)
	require.NoError(t, err)
	assert.True(t, tpa.Amount().Equal(d("40")), "got %s", tpa.Amount())

	tpa, err = s.Adjustment(rec, &transferpricing.Rule{DeclaringImpact: transferpricing.ImpactOperatingExpenses}, d("0.25"), norm)
	require.NoError(t, err)
	assert.True(t, tpa.Amount().Equal(d("50")), "got %s", tpa.Amount())

	t.Run("undefined when costs are zero", func(t *testing.T) {
		flat := transferpricing.NewOutputRecord(transferpricing.Record{
			LocalCurrency:   valueobject.EUR,
			ProfitIndicator: eur("10"),
			BeforeSales:     eur("10"),
		})
		kpi, err := s.KPI(flat, norm)
		require.NoError(t, err)
		assert.False(t, kpi.Valid)
	})
}

func TestKPI_UndefinedOnZeroOrMissingBase(t *testing.T) {
	norm := currency.EmptyRateTable()
	rec := transferpricing.NewOutputRecord(transferpricing.Record{
		LocalCurrency:   valueobject.EUR,
		ProfitIndicator: eur("10"),
		Assets:          eur("0"),
	})

	kpi, err := NewROAStrategy().KPI(rec, norm)
	require.NoError(t, err)
	assert.False(t, kpi.Valid)

	kpi, err = NewROCEStrategy().KPI(rec, norm)
	require.NoError(t, err)
	assert.False(t, kpi.Valid, "absent capital employed counts as zero")
}

func TestKPI_HomogenizesToLocalCurrency(t *testing.T) {
	table, err := currency.NewRateTable(valueobject.EUR, time.Time{}, []currency.Rate{
		{Currency: valueobject.USD, Rate: d("1.25")},
	})
	require.NoError(t, err)

	rec := transferpricing.NewOutputRecord(transferpricing.Record{
		LocalCurrency:   valueobject.EUR,
		ProfitIndicator: eur("100"),
		Assets:          valueobject.MustNewMoney(d("1250"), valueobject.USD).Ptr(),
	})
	kpi, err := NewROAStrategy().KPI(rec, table)
	require.NoError(t, err)
	assert.True(t, kpi.Decimal.Equal(d("0.1")))

	tpa, err := NewROAStrategy().Adjustment(rec, &transferpricing.Rule{}, d("0.2"), table)
	require.NoError(t, err)
	assert.Equal(t, valueobject.EUR, tpa.Currency())
	assert.True(t, tpa.Amount().Equal(d("100")))
}

func TestAdjustment_UnreachableTarget(t *testing.T) {
	norm := currency.EmptyRateTable()
	onSales := &transferpricing.Rule{ID: 3, DeclaringImpact: transferpricing.ImpactSales}

	_, err := NewROSStrategy().Adjustment(record(), onSales, d("1"), norm)
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrInvalidInput))

	_, err = NewROCStrategy().Adjustment(record(), onSales, d("-1"), norm)
	assert.True(t, errors.Is(err, shared.ErrInvalidInput))
}
