package parser

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tpa/backend/internal/domain/shared"
	"github.com/tpa/backend/internal/domain/shared/valueobject"
	tp "github.com/tpa/backend/internal/domain/transferpricing"
)

func load(t *testing.T, name string) []map[string]any {
	t.Helper()
	body, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	raw, err := Load(name, body)
	require.NoError(t, err)
	return raw
}

func assertMoney(t *testing.T, want string, cur valueobject.Currency, got *valueobject.Money) {
	t.Helper()
	require.NotNil(t, got)
	assert.Equal(t, cur, got.Currency())
	assert.True(t, got.Amount().Equal(decimal.RequireFromString(want)), "want %s, got %s", want, got.Amount())
}

func TestParseRecords_Fixture(t *testing.T) {
	records, err := ParseRecords(load(t, "data.json"))
	require.NoError(t, err)
	require.Len(t, records, 2)

	fr := records[0]
	assert.Equal(t, int64(1), fr.ID)
	assert.Equal(t, "FR01", fr.Taxpayer)
	assert.Equal(t, valueobject.EUR, fr.LocalCurrency)
	assertMoney(t, "1000", valueobject.EUR, fr.BeforeSales)
	assertMoney(t, "10", valueobject.EUR, fr.ProfitIndicator)
	assertMoney(t, "0", valueobject.EUR, fr.TLCFN)
	assert.Nil(t, fr.TLCFN1)
	assert.Nil(t, fr.BaseRoyalty)
	require.NotNil(t, fr.FirmCreationDate)
	assert.Equal(t, "2015-03-01", fr.FirmCreationDate.Format("2006-01-02"))
	assert.True(t, fr.Declaring.Equal(tp.Segmentation{0: "FR", 1: "distribution"}))
}

func TestParseRecords(t *testing.T) {
	t.Run("ill-typed optional fields are absent", func(t *testing.T) {
		records, err := ParseRecords([]map[string]any{{
			"atp_taxpayer":           42,
			"atp_assets":             "not a number",
			"atp_before_sales":       true,
			"atp_firm_creation_date": "yesterday",
		}})
		require.NoError(t, err)
		require.Len(t, records, 1)
		r := records[0]
		assert.Equal(t, int64(1), r.ID)
		assert.Empty(t, r.Taxpayer)
		assert.Nil(t, r.Assets)
		assert.Nil(t, r.BeforeSales)
		assert.Nil(t, r.FirmCreationDate)
		assert.Nil(t, r.Declaring)
	})

	t.Run("money forms", func(t *testing.T) {
		records, err := ParseRecords([]map[string]any{{
			"local_currency":         "usd",
			"atp_assets":             "12.5",
			"atp_cogs":               map[string]any{"amount": 3, "currency": "gbp"},
			"atp_profit_indicator":   float64(7),
			"atp_operating_expenses": map[string]any{"amount": "1.10"},
		}})
		require.NoError(t, err)
		r := records[0]
		assert.Equal(t, valueobject.USD, r.LocalCurrency)
		assertMoney(t, "12.5", valueobject.USD, r.Assets)
		assertMoney(t, "3", valueobject.GBP, r.COGS)
		assertMoney(t, "7", valueobject.USD, r.ProfitIndicator)
		assertMoney(t, "1.1", valueobject.USD, r.OperatingExpenses)
	})

	t.Run("non-string segmentation rejects the document", func(t *testing.T) {
		_, err := ParseRecords([]map[string]any{
			{"atp_declaring_entity_segmentation_0": "FR"},
			{"atp_declaring_entity_segmentation_0": 3},
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, shared.ErrInvalidInput))
		var fe *FieldError
		require.True(t, errors.As(err, &fe))
		assert.Equal(t, 1, fe.Row)
		assert.Equal(t, ErrCodeSegmentationType, fe.Code)
		assert.Equal(t, "atp_declaring_entity_segmentation_0", fe.Field)
	})

	t.Run("segmentation attribute without index", func(t *testing.T) {
		_, err := ParseRecords([]map[string]any{{"atp_declaring_entity_segmentation_x": "FR"}})
		var fe *FieldError
		require.True(t, errors.As(err, &fe))
		assert.Equal(t, ErrCodeSegmentationKey, fe.Code)
	})
}

func TestParseRules_Fixture(t *testing.T) {
	rules, err := ParseRules(load(t, "rules.json"))
	require.NoError(t, err)
	require.Len(t, rules, 1)

	r := rules[0]
	assert.Equal(t, int64(1), r.ID)
	assert.Equal(t, tp.MethodROS, r.Method)
	assert.Equal(t, "0.02", r.Benchmark.FirstQuartile.Decimal.String())
	assert.Equal(t, "0.035", r.Benchmark.TargetIn.Decimal.String())
	assert.Equal(t, []tp.Band{tp.BandBelow, tp.BandAbove}, r.Modulations)
	assert.Equal(t, tp.ImpactProfitIndicatorOnly, r.DeclaringImpact)
	require.NotNil(t, r.InScope)
	assert.True(t, *r.InScope)
	require.NotNil(t, r.Validity.From)
	require.NotNil(t, r.Validity.To)
	assert.Equal(t, 2030, r.Validity.To.Year())
	assertMoney(t, "1000000", "", r.Tax.TLCFCeiling)
	assert.True(t, r.Declaring.Equal(tp.Segmentation{0: "FR"}))
	assert.True(t, r.Counterpart.Equal(tp.Segmentation{0: "DE"}))
}

func TestParseRules(t *testing.T) {
	t.Run("enum values", func(t *testing.T) {
		rules, err := ParseRules([]map[string]any{{
			"atp_tp_method":                         "TNMM Unknown",
			"atp_accounting_impact_for_declaring":   "Operating expenses",
			"atp_accounting_impact_for_counterpart": float64(9),
			"atp_rule_application_modulation":       []any{float64(3), float64(7), "Apply if inferior", 1.5},
		}})
		require.NoError(t, err)
		r := rules[0]
		assert.Empty(t, r.Method)
		assert.Equal(t, tp.ImpactOperatingExpenses, r.DeclaringImpact)
		assert.Equal(t, tp.ImpactUndefined, r.CounterpartImpact)
		assert.Equal(t, []tp.Band{tp.BandInside, tp.BandBelow}, r.Modulations)
	})

	t.Run("ids default to position", func(t *testing.T) {
		rules, err := ParseRules([]map[string]any{{}, {"id": float64(40)}, {"id": 2.5}})
		require.NoError(t, err)
		assert.Equal(t, int64(1), rules[0].ID)
		assert.Equal(t, int64(40), rules[1].ID)
		assert.Equal(t, int64(3), rules[2].ID)
	})

	t.Run("counterpart segmentation must be a string", func(t *testing.T) {
		_, err := ParseRules([]map[string]any{{"atp_counterpart_entity_segmentation_2": []any{"x"}}})
		assert.True(t, errors.Is(err, shared.ErrInvalidInput))
	})
}

func TestResolveRules_LayeredSegmentations(t *testing.T) {
	records, err := ParseRecords(load(t, "data_layered.json"))
	require.NoError(t, err)
	rules, err := ParseRules(load(t, "rules_layered.json"))
	require.NoError(t, err)

	pairings := tp.ResolveRules(records, rules)
	require.Len(t, pairings, 6)

	tests := []struct {
		id               int64
		rule             int64
		below, in, above string
	}{
		{id: 1, rule: 10, below: "0.02", in: "0.05", above: "0.105"},
		{id: 2, rule: 14, below: "1", in: "0.5", above: "0.205"},
		{id: 3, rule: 10, below: "0.02", in: "0.5", above: "0.205"},
		{id: 4, rule: 11, below: "0.9", in: "0.05", above: "0.105"},
		// out of scope
		{id: 5, rule: 14, below: "1", in: "0.5", above: "0.205"},
		// created before the FR rule's validity window
		{id: 6, rule: 11, below: "0.9", in: "0.05", above: "0.205"},
	}
	for i, tt := range tests {
		p := pairings[i]
		assert.Equal(t, tt.id, p.Record.ID)
		require.NotNil(t, p.Rule, "record %d", tt.id)
		assert.Equal(t, tt.rule, p.Rule.ID, "record %d", tt.id)
		assert.Equal(t, tp.MethodROS, p.Rule.Method, "record %d", tt.id)
		b := p.Rule.Benchmark
		assert.True(t, b.TargetBelow.Decimal.Equal(decimal.RequireFromString(tt.below)), "record %d below: %s", tt.id, b.TargetBelow.Decimal)
		assert.True(t, b.TargetIn.Decimal.Equal(decimal.RequireFromString(tt.in)), "record %d in: %s", tt.id, b.TargetIn.Decimal)
		assert.True(t, b.TargetAbove.Decimal.Equal(decimal.RequireFromString(tt.above)), "record %d above: %s", tt.id, b.TargetAbove.Decimal)
	}

	first := pairings[0].Rule
	assert.Equal(t, "0.01", first.Benchmark.FirstQuartile.Decimal.String())
	assert.True(t, first.Declaring.Equal(tp.Segmentation{0: "FR", 1: "distribution", 2: "retail"}))
}

func TestReadCSV(t *testing.T) {
	rules, err := ParseRules(load(t, "rules.csv"))
	require.NoError(t, err)
	require.Len(t, rules, 2)

	first := rules[0]
	assert.Equal(t, tp.MethodROS, first.Method)
	assert.Equal(t, []tp.Band{tp.BandBelow, tp.BandAbove}, first.Modulations)
	assert.Equal(t, "0.035", first.Benchmark.TargetIn.Decimal.String())

	second := rules[1]
	assert.False(t, second.Benchmark.TargetBelow.Valid)
	require.NotNil(t, second.InScope)
	assert.False(t, *second.InScope)
	assert.Equal(t, tp.ImpactSales, second.DeclaringImpact)
	assert.Equal(t, tp.ImpactCOGS, second.CounterpartImpact)
	assert.True(t, second.Counterpart.Equal(tp.Segmentation{0: "0001"}), "segment values stay strings")

	t.Run("bom and delimiter", func(t *testing.T) {
		body := "\xEF\xBB\xBFid;atp_taxpayer\n7;FR01\n"
		raw, err := ReadCSV(strings.NewReader(body), WithDelimiter(';'))
		require.NoError(t, err)
		require.Len(t, raw, 1)
		records, err := ParseRecords(raw)
		require.NoError(t, err)
		assert.Equal(t, int64(7), records[0].ID)
		assert.Equal(t, "FR01", records[0].Taxpayer)
	})

	t.Run("empty file", func(t *testing.T) {
		_, err := ReadCSV(bytes.NewReader(nil))
		assert.ErrorIs(t, err, ErrEmptyFile)
	})

	t.Run("invalid encoding", func(t *testing.T) {
		_, err := ReadCSV(bytes.NewReader([]byte{'i', 'd', '\n', 0xff, 0xfe}))
		assert.ErrorIs(t, err, ErrInvalidEncoding)
	})
}

func TestDecodeJSON(t *testing.T) {
	t.Run("numbers keep precision", func(t *testing.T) {
		raw, err := DecodeJSON(strings.NewReader(`[{"atp_assets": 0.1000000000000000055511}]`))
		require.NoError(t, err)
		records, err := ParseRecords(raw)
		require.NoError(t, err)
		assert.Equal(t, "0.1000000000000000055511", records[0].Assets.Amount().String())
	})

	t.Run("not an array", func(t *testing.T) {
		_, err := DecodeJSON(strings.NewReader(`{"id": 1}`))
		var fe *FieldError
		require.True(t, errors.As(err, &fe))
		assert.Equal(t, ErrCodeNotAnArray, fe.Code)
		assert.Equal(t, -1, fe.Row)
	})

	t.Run("array of scalars", func(t *testing.T) {
		_, err := DecodeJSON(strings.NewReader(`[{}, 3]`))
		var fe *FieldError
		require.True(t, errors.As(err, &fe))
		assert.Equal(t, 1, fe.Row)
	})
}

func TestParseRates(t *testing.T) {
	f, err := os.Open(filepath.Join("testdata", "rates.json"))
	require.NoError(t, err)
	defer f.Close()

	table, err := ParseRates(f)
	require.NoError(t, err)
	assert.Equal(t, valueobject.EUR, table.Base())
	assert.Equal(t, 3, table.Len())
	assert.Equal(t, "2024-12-31", table.AsOf().Format("2006-01-02"))

	got, err := table.Convert(valueobject.Zero(valueobject.USD).WithAmount(decimal.NewFromInt(125)), valueobject.GBP)
	require.NoError(t, err)
	assert.True(t, got.Amount().Equal(decimal.NewFromInt(80)))

	tests := []struct {
		name string
		body string
		want error
	}{
		{"missing base", `{"rates": []}`, shared.ErrInvalidInput},
		{"bad date", `{"base": "EUR", "date": "31/12/2024"}`, shared.ErrInvalidInput},
		{"bad currency", `{"base": "EUR", "rates": [{"currency": "US", "rate": 1}]}`, shared.ErrInvalidInput},
		{"zero rate", `{"base": "EUR", "rates": [{"currency": "USD", "rate": 0}]}`, shared.ErrInvalidRateTable},
		{"not json", `rates`, shared.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRates(strings.NewReader(tt.body))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}
