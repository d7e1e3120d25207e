package transferpricing

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tpa/backend/internal/domain/shared"
	"github.com/tpa/backend/internal/domain/shared/valueobject"
	tp "github.com/tpa/backend/internal/domain/transferpricing"
	"github.com/tpa/backend/internal/infrastructure/strategy"
	"github.com/tpa/backend/internal/infrastructure/telemetry"
)

func eur(s string) *valueobject.Money {
	return valueobject.MustNewMoney(decimal.RequireFromString(s), valueobject.EUR).Ptr()
}

func dec(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func record(id int64, taxpayer, country, sales, profit string) tp.Record {
	return tp.Record{
		ID:                id,
		Taxpayer:          taxpayer,
		BeforeSales:       eur(sales),
		ProfitIndicator:   eur(profit),
		BeforePBT:         eur(profit),
		BeforeTaxExpenses: eur("0"),
		LocalCurrency:     valueobject.EUR,
		Declaring:         tp.Segmentation{0: country},
	}
}

// rosRule adjusts the declaring country toward a return on sales inside
// [q1, q3], booking the opposite movement on the counterpart country.
func rosRule(id int64, declaring, counterpart, q1, q3 string) tp.Rule {
	return tp.Rule{
		ID:     id,
		Method: tp.MethodROS,
		Benchmark: tp.Benchmark{
			FirstQuartile: dec(q1),
			ThirdQuartile: dec(q3),
			TargetBelow:   dec(q1),
			TargetAbove:   dec(q3),
		},
		Modulations:       []tp.Band{tp.BandBelow, tp.BandAbove},
		DeclaringImpact:   tp.ImpactProfitIndicatorOnly,
		CounterpartImpact: tp.ImpactProfitIndicatorOnly,
		Tax:               tp.TaxParams{Rate: dec("0.25")},
		Declaring:         tp.Segmentation{0: declaring},
		Counterpart:       tp.Segmentation{0: counterpart},
	}
}

func newService(t *testing.T, metrics *telemetry.EngineMetrics) *ComputationService {
	t.Helper()
	registry, err := strategy.NewRegistryWithDefaults()
	require.NoError(t, err)
	svc, err := NewComputationService(registry, tp.DefaultConvergencePolicy(), metrics)
	require.NoError(t, err)
	return svc
}

func compute(t *testing.T, svc *ComputationService, records []tp.Record, rules []tp.Rule) ([]*tp.OutputRecord, *Report, error) {
	t.Helper()
	ctx := context.Background()
	return svc.Compute(ctx, svc.ResolveRules(ctx, records, rules), nil)
}

func assertAmount(t *testing.T, want string, got *valueobject.Money) {
	t.Helper()
	require.NotNil(t, got)
	assert.Truef(t, got.Amount().Equal(decimal.RequireFromString(want)), "want %s, got %s", want, got.Amount())
}

func TestNewComputationService_Validation(t *testing.T) {
	_, err := NewComputationService(nil, tp.DefaultConvergencePolicy(), nil)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	registry, err := strategy.NewRegistryWithDefaults()
	require.NoError(t, err)
	policy := tp.DefaultConvergencePolicy()
	policy.MaxIterationsMultiplier = 0
	_, err = NewComputationService(registry, policy, nil)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	svc, err := NewComputationService(registry, tp.DefaultConvergencePolicy(), nil)
	require.NoError(t, err)
	assert.Equal(t, tp.DefaultConvergencePolicy(), svc.Policy())
}

func TestResolveRules_PairsInInputOrder(t *testing.T) {
	svc := newService(t, nil)
	records := []tp.Record{
		record(1, "FR01", "FR", "1000", "10"),
		record(2, "DE01", "DE", "500", "50"),
	}

	pairings := svc.ResolveRules(context.Background(), records, []tp.Rule{rosRule(7, "FR", "DE", "0.02", "0.05")})

	require.Len(t, pairings, 2)
	assert.Equal(t, int64(1), pairings[0].Record.ID)
	require.NotNil(t, pairings[0].Rule)
	assert.Equal(t, int64(7), pairings[0].Rule.ID)
	assert.Nil(t, pairings[1].Rule)
}

func TestAffect_ListsEveryMatchingRule(t *testing.T) {
	svc := newService(t, nil)
	records := []tp.Record{
		record(1, "FR01", "FR", "1000", "10"),
		record(2, "IT01", "IT", "500", "50"),
	}
	rules := []tp.Rule{
		rosRule(7, "FR", "DE", "0.02", "0.05"),
		rosRule(8, "FR", "ES", "0.01", "0.04"),
	}

	got := svc.Affect(context.Background(), records, rules)

	require.Len(t, got, 2)
	assert.Equal(t, int64(1), got[0].Record.ID)
	assert.Len(t, got[0].Rules, 2)
	assert.Empty(t, got[1].Rules)
}

func TestCompute_AdjustsBelowBenchmark(t *testing.T) {
	svc := newService(t, nil)
	records := []tp.Record{
		record(1, "FR01", "FR", "1000", "10"),
		record(2, "DE01", "DE", "500", "50"),
	}

	outputs, report, err := compute(t, svc, records, []tp.Rule{rosRule(7, "FR", "DE", "0.02", "0.05")})
	require.NoError(t, err)
	require.Len(t, outputs, 2)

	fr, de := outputs[0], outputs[1]
	assertAmount(t, "10", fr.Adjustment)
	assertAmount(t, "20", fr.Lines.ProfitIndicator)
	assertAmount(t, "-10", de.Adjustment)
	assertAmount(t, "40", de.Lines.ProfitIndicator)

	assert.True(t, fr.KPIValue.Decimal.Equal(decimal.RequireFromString("0.01")))
	assert.Equal(t, tp.KPIReturnOnSales, fr.KPI)
	assert.Equal(t, tp.BandBelow, fr.FiredBand)
	assert.False(t, de.KPIValue.Valid)

	assert.Equal(t, 2, report.Pairings)
	assert.Equal(t, 1, report.Ruled)
	assert.Equal(t, 2, report.Passes)
	assert.True(t, report.FinalSum.IsZero())
	assert.False(t, report.Forced)
	assert.NotEqual(t, uuid.Nil, report.RunID)

	require.Len(t, report.Taxpayers, 1)
	assert.Equal(t, "FR01", report.Taxpayers[0].ID)
	assert.True(t, report.Taxpayers[0].Tax.Rate.Decimal.Equal(decimal.RequireFromString("0.25")))
	assertAmount(t, "50", de.Fiscal.PBT)
}

func TestCompute_CounterpartWithoutRuleStaysOutOfItsGroup(t *testing.T) {
	svc := newService(t, nil)
	records := []tp.Record{
		record(1, "G", "FR", "1000", "10"),
		record(2, "G", "DE", "500", "50"),
	}

	outputs, report, err := compute(t, svc, records, []tp.Rule{rosRule(7, "FR", "DE", "0.02", "0.05")})
	require.NoError(t, err)

	require.Len(t, report.Taxpayers, 1)
	g := report.Taxpayers[0]
	assert.Equal(t, "G", g.ID)
	require.Len(t, g.Members, 1)
	assert.Same(t, outputs[0], g.Members[0])
	assert.True(t, g.PBT.Equal(decimal.NewFromInt(10)), "pbt %s", g.PBT)
	assert.True(t, g.DeltaPBT.Equal(decimal.NewFromInt(10)), "delta pbt %s", g.DeltaPBT)
	assert.True(t, g.DeltaTax.Equal(decimal.RequireFromString("2.5")), "delta tax %s", g.DeltaTax)

	fr, de := outputs[0], outputs[1]
	assertAmount(t, "20", fr.Fiscal.PBT)
	assertAmount(t, "2.5", fr.Fiscal.TaxExpenses)
	assertAmount(t, "-10", de.Adjustment)
	assertAmount(t, "50", de.Fiscal.PBT)
	assertAmount(t, "0", de.Fiscal.TaxExpenses)
}

// royaltyRecord pays no royalty yet on a base of 1000 against operating
// expenses of 1000.
func royaltyRecord(id int64, taxpayer, country, profit, taxExpenses string) tp.Record {
	r := record(id, taxpayer, country, "1000", profit)
	r.OperatingExpenses = eur("1000")
	r.RoyaltyPaid = eur("0")
	r.BaseRoyalty = eur("1000")
	r.BeforeTaxExpenses = eur(taxExpenses)
	return r
}

func TestCompute_RoyaltyWithholdingFlowsIntoTax(t *testing.T) {
	svc := newService(t, nil)
	records := []tp.Record{
		royaltyRecord(1, "TA", "FR", "100", "25"),
		royaltyRecord(2, "TB", "DE", "200", "60"),
	}
	royalty := tp.Rule{
		ID:     7,
		Method: tp.MethodRoyalty,
		Benchmark: tp.Benchmark{
			FirstQuartile: dec("0.2"),
			ThirdQuartile: dec("0.3"),
			TargetBelow:   dec("0.05"),
		},
		Modulations:       []tp.Band{tp.BandBelow},
		DeclaringImpact:   tp.ImpactProfitIndicatorOnly,
		CounterpartImpact: tp.ImpactProfitIndicatorOnly,
		Tax:               tp.TaxParams{Rate: dec("0.25")},
		Royalty: tp.RoyaltyParams{
			WHTRate:          dec("0.1"),
			WHTBase:          dec("1"),
			WHTDeductibility: dec("0.6"),
			SpecificRate:     dec("0.1"),
			ExemptionRate:    dec("0.2"),
			TaxCredits:       dec("1"),
		},
		Declaring:   tp.Segmentation{0: "FR"},
		Counterpart: tp.Segmentation{0: "DE"},
	}
	// The licensor never adjusts but carries its own tax rate.
	licensor := rosRule(8, "DE", "FR", "0", "1")
	licensor.Modulations = nil
	licensor.Tax = tp.TaxParams{Rate: dec("0.3")}

	outputs, report, err := compute(t, svc, records, []tp.Rule{royalty, licensor})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Passes)

	payer, licensee := outputs[0], outputs[1]
	assertAmount(t, "-50", payer.Adjustment)
	assertAmount(t, "-50", payer.Lines.RoyaltyPaid)
	assertAmount(t, "5", payer.Withholding.DeltaWHTRoyaltyPaid)
	assertAmount(t, "-2", payer.Withholding.DeltaPBTWHTRoyaltyPaid)
	assertAmount(t, "50", licensee.Adjustment)
	assertAmount(t, "50", licensee.Lines.RoyaltyReceived)
	assertAmount(t, "5", licensee.Lines.RoyaltyReceivedSpecificRate)
	assertAmount(t, "5", licensee.Withholding.DeltaWHTRoyaltyReceived)
	assertAmount(t, "4", licensee.Withholding.PossibleWHTTaxCredits)
	assertAmount(t, "-1", licensee.Withholding.DeltaPBTWHTRoyaltyReceived)
	assertAmount(t, "-0.1", licensee.Withholding.DeltaTaxWHTRoyaltyReceived)

	require.Len(t, report.Taxpayers, 2)
	ta, tb := report.Taxpayers[0], report.Taxpayers[1]
	equal := func(want string, got decimal.Decimal, name string) {
		t.Helper()
		assert.Truef(t, got.Equal(decimal.RequireFromString(want)), "%s: want %s, got %s", name, want, got)
	}

	equal("-12.5", ta.DeltaTaxInit, "payer delta tax init")
	equal("0", ta.ConsumableTaxCredit, "payer credit")
	equal("-12.5", ta.DeltaTax, "payer delta tax")
	equal("48", ta.FiscalPBT, "payer fiscal pbt")

	equal("5.1", tb.DeltaTaxInit, "licensee delta tax init")
	equal("0.102", tb.MeanTaxRate, "licensee mean rate")
	equal("4", tb.ConsumableTaxCredit, "licensee credit")
	equal("6.1", tb.DeltaTax, "licensee delta tax")
	equal("249", tb.FiscalPBT, "licensee fiscal pbt")
	equal("5", tb.WHTPaid, "licensee withholding")

	assertAmount(t, "48", payer.Fiscal.PBT)
	assertAmount(t, "12.5", payer.Fiscal.TaxExpenses)
	assertAmount(t, "5", payer.Fiscal.WHTPaid)
	assertAmount(t, "249", licensee.Fiscal.PBT)
	assertAmount(t, "66.1", licensee.Fiscal.TaxExpenses)
	assert.Nil(t, licensee.Fiscal.WHTPaid)
}

func TestCompute_AdjustsAboveBenchmark(t *testing.T) {
	svc := newService(t, nil)
	records := []tp.Record{
		record(1, "FR01", "FR", "1000", "80"),
		record(2, "DE01", "DE", "500", "50"),
	}

	outputs, _, err := compute(t, svc, records, []tp.Rule{rosRule(7, "FR", "DE", "0.02", "0.05")})
	require.NoError(t, err)

	assertAmount(t, "-30", outputs[0].Adjustment)
	assertAmount(t, "30", outputs[1].Adjustment)
	assert.Equal(t, tp.BandAbove, outputs[0].FiredBand)
}

func TestCompute_InsideBandRecordsKPIOnly(t *testing.T) {
	svc := newService(t, nil)
	records := []tp.Record{
		record(1, "FR01", "FR", "1000", "30"),
		record(2, "DE01", "DE", "500", "50"),
	}

	outputs, report, err := compute(t, svc, records, []tp.Rule{rosRule(7, "FR", "DE", "0.02", "0.05")})
	require.NoError(t, err)

	assert.Nil(t, outputs[0].Adjustment)
	assert.Nil(t, outputs[1].Adjustment)
	assert.Equal(t, tp.BandInside, outputs[0].FiredBand)
	assert.True(t, outputs[0].KPIValue.Decimal.Equal(decimal.RequireFromString("0.03")))
	assert.Equal(t, 1, report.Passes)
}

func TestCompute_StallShrinksBudget(t *testing.T) {
	svc := newService(t, nil)
	records := []tp.Record{
		record(1, "FR01", "FR", "1000", "10"),
		record(2, "DE01", "DE", "500", "50"),
	}
	rules := []tp.Rule{
		rosRule(7, "FR", "DE", "0.02", "0.05"),
		rosRule(8, "DE", "FR", "0.2", "0.3"),
	}

	outputs, report, err := compute(t, svc, records, rules)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Passes)
	assert.True(t, report.Forced)
	assert.True(t, report.FinalSum.Equal(decimal.NewFromInt(120)))
	assert.LessOrEqual(t, report.Passes, 2*svc.Policy().MaxIterationsMultiplier+1)

	net := outputs[0].Adjustment.Amount().Add(outputs[1].Adjustment.Amount())
	assert.True(t, net.IsZero(), "adjustments must net to zero, got %s", net)
}

func TestCompute_UnruledRecordsPassThrough(t *testing.T) {
	svc := newService(t, nil)
	records := []tp.Record{
		record(1, "FR01", "FR", "1000", "10"),
		record(2, "DE01", "DE", "500", "50"),
	}

	outputs, report, err := compute(t, svc, records, nil)
	require.NoError(t, err)

	require.Len(t, outputs, 2)
	for i, o := range outputs {
		assert.Equal(t, records[i], o.Input)
		assert.Nil(t, o.Adjustment)
		assert.Equal(t, tp.BandUndefined, o.FiredBand)
	}
	assert.Equal(t, 1, report.Passes)
	assert.Empty(t, report.Taxpayers)
}

func TestCompute_SelfCounterpartIsSkipped(t *testing.T) {
	svc := newService(t, nil)
	records := []tp.Record{record(1, "FR01", "FR", "1000", "10")}

	outputs, _, err := compute(t, svc, records, []tp.Rule{rosRule(7, "FR", "FR", "0.02", "0.05")})
	require.NoError(t, err)

	assert.Nil(t, outputs[0].Adjustment)
	assert.False(t, outputs[0].KPIValue.Valid)
}

func TestCompute_CounterpartErrors(t *testing.T) {
	tests := []struct {
		name    string
		records []tp.Record
		want    error
		code    string
	}{
		{
			name:    "missing",
			records: []tp.Record{record(1, "FR01", "FR", "1000", "10"), record(2, "IT01", "IT", "500", "50")},
			want:    shared.ErrCounterpartNotFound,
			code:    "COUNTERPART_NOT_FOUND",
		},
		{
			name: "ambiguous",
			records: []tp.Record{
				record(1, "FR01", "FR", "1000", "10"),
				record(2, "DE01", "DE", "500", "50"),
				record(3, "DE02", "DE", "700", "70"),
			},
			want: shared.ErrAmbiguousCounterpart,
			code: "AMBIGUOUS_COUNTERPART",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := prometheus.NewRegistry()
			svc := newService(t, telemetry.NewEngineMetrics(reg))

			outputs, report, err := compute(t, svc, tt.records, []tp.Rule{rosRule(7, "FR", "DE", "0.02", "0.05")})
			require.ErrorIs(t, err, tt.want)
			assert.Nil(t, outputs)
			assert.Zero(t, report.Passes)

			n, gatherErr := testutil.GatherAndCount(reg, "tpa_computation_failures_total")
			require.NoError(t, gatherErr)
			assert.Equal(t, 1, n)
			assert.Equal(t, tt.code, errorCode(err))
		})
	}
}

func TestCompute_MethodlessRuleAndMissingStrategy(t *testing.T) {
	records := []tp.Record{
		record(1, "FR01", "FR", "1000", "10"),
		record(2, "DE01", "DE", "500", "50"),
	}

	t.Run("rule without a method never adjusts", func(t *testing.T) {
		svc := newService(t, nil)
		rule := rosRule(7, "FR", "DE", "0.02", "0.05")
		rule.Method = ""

		outputs, report, err := compute(t, svc, records, []tp.Rule{rule})
		require.NoError(t, err)

		for _, o := range outputs {
			assert.Nil(t, o.Adjustment)
			assert.False(t, o.KPIValue.Valid)
			assert.Equal(t, tp.BandUndefined, o.FiredBand)
		}
		assert.Equal(t, 1, report.Ruled)
		assert.Equal(t, 1, report.Passes)
		require.Len(t, report.Taxpayers, 1)
		assert.Equal(t, "FR01", report.Taxpayers[0].ID)
		assert.True(t, report.Taxpayers[0].DeltaTax.IsZero())
	})

	t.Run("valid method without a strategy fails", func(t *testing.T) {
		svc, err := NewComputationService(strategy.NewStrategyRegistry(), tp.DefaultConvergencePolicy(), nil)
		require.NoError(t, err)

		_, _, err = compute(t, svc, records, []tp.Rule{rosRule(7, "FR", "DE", "0.02", "0.05")})
		assert.ErrorIs(t, err, shared.ErrNotFound)
		assert.Contains(t, err.Error(), "rule 7")
	})
}

func TestCompute_Canceled(t *testing.T) {
	svc := newService(t, nil)
	records := []tp.Record{
		record(1, "FR01", "FR", "1000", "10"),
		record(2, "DE01", "DE", "500", "50"),
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, report, err := svc.Compute(ctx, svc.ResolveRules(ctx, records, []tp.Rule{rosRule(7, "FR", "DE", "0.02", "0.05")}), nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "CANCELED", errorCode(err))
	assert.Zero(t, report.Passes)
}
