package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/tpa/backend/internal/domain/currency"
	"github.com/tpa/backend/internal/domain/shared/valueobject"
)

// ExchangeRateModel is one quote of a currency against a base at a date.
type ExchangeRateModel struct {
	BaseModel
	Base          string          `gorm:"type:char(3);not null;uniqueIndex:idx_exchange_rates_key,priority:1"`
	Currency      string          `gorm:"type:char(3);not null;uniqueIndex:idx_exchange_rates_key,priority:2"`
	Rate          decimal.Decimal `gorm:"type:numeric(24,12);not null"`
	EffectiveDate time.Time       `gorm:"type:date;not null;uniqueIndex:idx_exchange_rates_key,priority:3"`
}

// TableName returns the table name for GORM
func (ExchangeRateModel) TableName() string {
	return "exchange_rates"
}

// ExchangeRateModelsFromTable flattens a table into rows, base excluded
func ExchangeRateModelsFromTable(t *currency.RateTable) []ExchangeRateModel {
	date := DateOnly(t.AsOf())
	var rows []ExchangeRateModel
	for _, r := range t.Rates() {
		if r.Currency == t.Base() {
			continue
		}
		rows = append(rows, ExchangeRateModel{
			Base:          string(t.Base()),
			Currency:      string(r.Currency),
			Rate:          r.Rate,
			EffectiveDate: date,
		})
	}
	return rows
}

// ToRate converts the row into a domain quote
func (m *ExchangeRateModel) ToRate() currency.Rate {
	return currency.Rate{
		Currency: valueobject.NormalizeCurrency(m.Currency),
		Rate:     m.Rate,
	}
}

// DateOnly truncates t to midnight UTC of its calendar day
func DateOnly(t time.Time) time.Time {
	y, mo, d := t.Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
}
