package transferpricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tpa/backend/internal/domain/currency"
	"github.com/tpa/backend/internal/domain/shared/valueobject"
)

func pair() (*OutputRecord, *OutputRecord) {
	rec := NewOutputRecord(Record{
		ID:                1,
		LocalCurrency:     valueobject.EUR,
		ProfitIndicator:   eur("100"),
		BeforeSales:       eur("1000"),
		COGS:              eur("600"),
		OperatingExpenses: eur("300"),
		RoyaltyPaid:       eur("50"),
	})
	counterpart := NewOutputRecord(Record{
		ID:                2,
		LocalCurrency:     valueobject.EUR,
		ProfitIndicator:   eur("200"),
		BeforeSales:       eur("2000"),
		COGS:              eur("1200"),
		OperatingExpenses: eur("400"),
	})
	return rec, counterpart
}

func TestApply(t *testing.T) {
	norm := currency.EmptyRateTable()

	t.Run("moves both sides and their impact lines", func(t *testing.T) {
		rec, cp := pair()
		rule := &Rule{Method: MethodROS, DeclaringImpact: ImpactSales, CounterpartImpact: ImpactCOGS}

		err := Apply(rec, cp, rule, Outcome{KPI: dec("0.1"), Band: BandBelow, Adjustment: eur("10")}, norm)
		require.NoError(t, err)

		assertAmount(t, "10", rec.Adjustment)
		assertAmount(t, "-10", cp.Adjustment)
		assertAmount(t, "110", rec.Lines.ProfitIndicator)
		assertAmount(t, "190", cp.Lines.ProfitIndicator)
		assertAmount(t, "1010", rec.Lines.Sales)
		assertAmount(t, "1210", cp.Lines.COGS)
		assertAmount(t, "2000", cp.Lines.Sales)
		assert.Equal(t, KPIReturnOnSales, rec.KPI)
		assert.Equal(t, BandBelow, rec.FiredBand)
		assertDecimal(t, "0.1", rec.KPIValue.Decimal)

		// inputs stay untouched
		assertAmount(t, "100", rec.Input.ProfitIndicator)
		assertAmount(t, "1000", rec.Input.BeforeSales)
	})

	t.Run("opposite impacts on expenses lines", func(t *testing.T) {
		rec, cp := pair()
		rule := &Rule{Method: MethodROOE, DeclaringImpact: ImpactOperatingExpenses, CounterpartImpact: ImpactOperatingExpenses}

		require.NoError(t, Apply(rec, cp, rule, Outcome{KPI: dec("0.3"), Band: BandAbove, Adjustment: eur("-20")}, norm))

		assertAmount(t, "320", rec.Lines.OperatingExpenses)
		assertAmount(t, "380", cp.Lines.OperatingExpenses)
		assertAmount(t, "1000", rec.Lines.Sales)
	})

	t.Run("cogs impact on declaring side", func(t *testing.T) {
		rec, cp := pair()
		rule := &Rule{Method: MethodROCOGS, DeclaringImpact: ImpactCOGS, CounterpartImpact: ImpactSales}

		require.NoError(t, Apply(rec, cp, rule, Outcome{KPI: dec("0.1"), Band: BandInside, Adjustment: eur("5")}, norm))

		assertAmount(t, "595", rec.Lines.COGS)
		assertAmount(t, "1995", cp.Lines.Sales)
	})

	t.Run("first kpi and band are kept", func(t *testing.T) {
		rec, cp := pair()
		rule := &Rule{Method: MethodROA}

		require.NoError(t, Apply(rec, cp, rule, Outcome{KPI: dec("0.1"), Band: BandBelow, Adjustment: eur("1")}, norm))
		require.NoError(t, Apply(rec, cp, rule, Outcome{KPI: dec("0.2"), Band: BandInside, Adjustment: eur("2")}, norm))

		assertDecimal(t, "0.1", rec.KPIValue.Decimal)
		assert.Equal(t, BandBelow, rec.FiredBand)
		assertAmount(t, "3", rec.Adjustment)
		assertAmount(t, "-3", cp.Adjustment)
	})

	t.Run("no adjustment leaves lines alone", func(t *testing.T) {
		rec, cp := pair()
		rule := &Rule{Method: MethodROA, DeclaringImpact: ImpactSales}

		require.NoError(t, Apply(rec, cp, rule, Outcome{KPI: dec("0.1"), Band: BandAbove}, norm))
		require.NoError(t, Apply(rec, cp, rule, Outcome{KPI: dec("0.1"), Band: BandAbove, Adjustment: eur("0")}, norm))

		assert.Nil(t, rec.Adjustment)
		assert.Nil(t, cp.Adjustment)
		assertAmount(t, "1000", rec.Lines.Sales)
		assert.Equal(t, KPIReturnOnAssets, rec.KPI)
		assert.Equal(t, BandAbove, rec.FiredBand)
	})

	t.Run("counterpart lines follow its own currency", func(t *testing.T) {
		rec, _ := pair()
		cp := NewOutputRecord(Record{ID: 3, LocalCurrency: valueobject.USD, ProfitIndicator: usd("100")})
		rule := &Rule{Method: MethodROA}

		require.NoError(t, Apply(rec, cp, rule, Outcome{KPI: dec("0.1"), Band: BandBelow, Adjustment: eur("10")}, rates(t)))

		assert.Equal(t, valueobject.USD, cp.Adjustment.Currency())
		assertAmount(t, "-12.5", cp.Adjustment)
		assertAmount(t, "87.5", cp.Lines.ProfitIndicator)
	})

	t.Run("missing rate is reported", func(t *testing.T) {
		rec, _ := pair()
		cp := NewOutputRecord(Record{ID: 3, LocalCurrency: valueobject.JPY})
		err := Apply(rec, cp, &Rule{Method: MethodROA}, Outcome{Adjustment: eur("1")}, rates(t))
		assert.Error(t, err)
	})
}

func TestApply_Royalty(t *testing.T) {
	norm := currency.EmptyRateTable()
	rec, cp := pair()
	rule := &Rule{
		Method: MethodRoyalty,
		Royalty: RoyaltyParams{
			WHTRate:          dec("0.1"),
			WHTBase:          dec("1"),
			WHTDeductibility: dec("0.25"),
			SpecificRate:     dec("0.3"),
			ExemptionRate:    dec("0.5"),
			TaxCredits:       dec("0.4"),
		},
	}
	tpa := eur("100")

	require.NoError(t, Apply(rec, cp, rule, Outcome{KPI: dec("0.2"), Band: BandBelow, Adjustment: tpa}, norm))
	require.NoError(t, ApplyWithholding(rec, cp, rule, tpa, norm))

	assertAmount(t, "150", rec.Lines.RoyaltyPaid)
	assertAmount(t, "-100", cp.Lines.RoyaltyReceived)
	assertAmount(t, "-30", cp.Lines.RoyaltyReceivedSpecificRate)

	assertAmount(t, "-10", rec.Withholding.DeltaWHTRoyaltyPaid)
	assertAmount(t, "7.5", rec.Withholding.DeltaPBTWHTRoyaltyPaid)
	assert.Nil(t, rec.Withholding.DeltaWHTRoyaltyReceived)

	assertAmount(t, "-10", cp.Withholding.DeltaWHTRoyaltyReceived)
	assertAmount(t, "-2", cp.Withholding.PossibleWHTTaxCredits)
	assertAmount(t, "5", cp.Withholding.DeltaPBTWHTRoyaltyReceived)
	assertAmount(t, "1.5", cp.Withholding.DeltaTaxWHTRoyaltyReceived)
	assert.Nil(t, cp.Withholding.DeltaWHTRoyaltyPaid)
}

func TestApplyWithholding_IgnoresOtherMethods(t *testing.T) {
	rec, cp := pair()
	rule := &Rule{Method: MethodROS, Royalty: RoyaltyParams{WHTRate: dec("0.1"), WHTBase: dec("1")}}

	require.NoError(t, ApplyWithholding(rec, cp, rule, eur("100"), currency.EmptyRateTable()))
	assert.Equal(t, Withholding{}, rec.Withholding)
	assert.Equal(t, Withholding{}, cp.Withholding)
}

func TestApply_Conservation(t *testing.T) {
	norm := currency.EmptyRateTable()
	rec, cp := pair()
	rule := &Rule{Method: MethodROC, DeclaringImpact: ImpactSales, CounterpartImpact: ImpactCOGS}

	for _, amount := range []string{"12.345", "-3.2", "0.001", "-9.146"} {
		require.NoError(t, Apply(rec, cp, rule, Outcome{KPI: dec("0.1"), Band: BandInside, Adjustment: eur(amount)}, norm))
		total, err := Sum(norm, valueobject.EUR, rec.Adjustment, cp.Adjustment)
		require.NoError(t, err)
		assert.True(t, total.IsZero(), "adjustments must cancel, got %s", total)
	}
}

func TestSum(t *testing.T) {
	norm := rates(t)

	got, err := Sum(norm, valueobject.EUR, eur("10"), nil, usd("12.5"))
	require.NoError(t, err)
	assertAmount(t, "20", got)
	assert.Equal(t, valueobject.EUR, got.Currency())

	got, err = Sum(norm, "", nil, usd("1"), eur("4"))
	require.NoError(t, err)
	assert.Equal(t, valueobject.USD, got.Currency())
	assertAmount(t, "6", got)

	got, err = Sum(norm, valueobject.EUR, nil, nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}
