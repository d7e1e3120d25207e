package parser

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tpa/backend/internal/domain/shared/valueobject"
	tp "github.com/tpa/backend/internal/domain/transferpricing"
)

// entry is one input object with typed accessors. Every accessor returns
// the zero value when the key is missing or holds the wrong type.
type entry map[string]any

func (e entry) str(key string) string {
	s, _ := e[key].(string)
	return s
}

func (e entry) number(key string) decimal.NullDecimal {
	d, ok := toDecimal(e[key], false)
	if !ok {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

func (e entry) integer(key string) (int64, bool) {
	d, ok := toDecimal(e[key], false)
	if !ok || !d.Equal(d.Truncate(0)) {
		return 0, false
	}
	return d.IntPart(), true
}

func (e entry) boolean(key string) *bool {
	b, ok := e[key].(bool)
	if !ok {
		return nil
	}
	return &b
}

// money accepts a number, a numeric string or an {amount, currency}
// object. Amounts without their own currency take fallback.
func (e entry) money(key string, fallback valueobject.Currency) *valueobject.Money {
	cur := fallback
	raw := e[key]
	if obj, ok := raw.(map[string]any); ok {
		if c, ok := obj["currency"].(string); ok && strings.TrimSpace(c) != "" {
			cur = valueobject.NormalizeCurrency(c)
		}
		raw = obj["amount"]
	}
	amount, ok := toDecimal(raw, true)
	if !ok {
		return nil
	}
	return valueobject.Zero(cur).WithAmount(amount).Ptr()
}

// date accepts YYYY-MM-DD or RFC3339.
func (e entry) date(key string) *time.Time {
	switch v := e[key].(type) {
	case time.Time:
		return &v
	case string:
		for _, layout := range []string{"2006-01-02", time.RFC3339, time.RFC3339Nano} {
			if d, err := time.Parse(layout, strings.TrimSpace(v)); err == nil {
				return &d
			}
		}
	}
	return nil
}

func (e entry) method(key string) tp.Method {
	s, ok := e[key].(string)
	if !ok {
		return ""
	}
	m, err := tp.ParseMethod(s)
	if err != nil {
		return ""
	}
	return m
}

var impactLabels = map[string]tp.AccountingImpact{
	"only profit indicator": tp.ImpactProfitIndicatorOnly,
	"operating expenses":    tp.ImpactOperatingExpenses,
	"sales":                 tp.ImpactSales,
	"cogs":                  tp.ImpactCOGS,
}

// impact accepts the numeric code or the label of an accounting impact.
func (e entry) impact(key string) tp.AccountingImpact {
	if s, ok := e[key].(string); ok {
		return impactLabels[strings.ToLower(strings.TrimSpace(s))]
	}
	n, ok := e.integer(key)
	if !ok || !tp.AccountingImpact(n).IsValid() {
		return tp.ImpactUndefined
	}
	return tp.AccountingImpact(n)
}

var bandLabels = map[string]tp.Band{
	"apply if inferior": tp.BandBelow,
	"apply if superior": tp.BandAbove,
	"apply if inside":   tp.BandInside,
}

// bands reads a list of modulations, dropping unknown entries. A list
// without any valid entry is absent.
func (e entry) bands(key string) []tp.Band {
	list, ok := e[key].([]any)
	if !ok {
		return nil
	}
	var out []tp.Band
	for _, item := range list {
		if s, ok := item.(string); ok {
			if b, ok := bandLabels[strings.ToLower(strings.TrimSpace(s))]; ok {
				out = append(out, b)
			}
			continue
		}
		d, ok := toDecimal(item, false)
		if !ok || !d.Equal(d.Truncate(0)) {
			continue
		}
		if b := tp.Band(d.IntPart()); b.IsValid() {
			out = append(out, b)
		}
	}
	return out
}

// segmentation collects the attributes named prefix+index. Such attributes
// are mandatory strings.
func (e entry) segmentation(row int, prefix string) (tp.Segmentation, error) {
	var s tp.Segmentation
	for key, raw := range e {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		i, ok := tp.ParseKey(prefix, key)
		if !ok {
			return nil, fieldError(row, key, ErrCodeSegmentationKey, "segmentation attribute must end with a segment index")
		}
		v, ok := raw.(string)
		if !ok {
			return nil, fieldError(row, key, ErrCodeSegmentationType, "segmentation value must be a string, got %T", raw)
		}
		if s == nil {
			s = tp.Segmentation{}
		}
		s[i] = v
	}
	return s, nil
}

func toDecimal(v any, allowString bool) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case json.Number:
		d, err := decimal.NewFromString(n.String())
		return d, err == nil
	case float64:
		return decimal.NewFromFloat(n), true
	case float32:
		return decimal.NewFromFloat32(n), true
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int64:
		return decimal.NewFromInt(n), true
	case decimal.Decimal:
		return n, true
	case string:
		if !allowString {
			return decimal.Decimal{}, false
		}
		d, err := decimal.NewFromString(strings.TrimSpace(n))
		return d, err == nil
	}
	return decimal.Decimal{}, false
}
