package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/tpa/backend/internal/domain/currency"
	"github.com/tpa/backend/internal/domain/shared/valueobject"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// RatesInput is the wire form of an exchange-rate table.
type RatesInput struct {
	Base  string      `json:"base" validate:"required,len=3,alpha"`
	Date  string      `json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Rates []RateInput `json:"rates" validate:"dive"`
}

// RateInput is one quote against the base currency.
type RateInput struct {
	Currency string          `json:"currency" validate:"required,len=3,alpha"`
	Rate     decimal.Decimal `json:"rate"`
}

// Table validates the input and builds the rate table.
func (in RatesInput) Table() (*currency.RateTable, error) {
	if err := validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return nil, &FieldError{
				Row:     -1,
				Field:   verrs[0].Namespace(),
				Code:    ErrCodeInvalidRates,
				Message: fmt.Sprintf("%s failed on '%s'", verrs[0].Namespace(), verrs[0].Tag()),
			}
		}
		return nil, &FieldError{Row: -1, Code: ErrCodeInvalidRates, Message: err.Error()}
	}

	var asOf time.Time
	if in.Date != "" {
		asOf, _ = time.Parse("2006-01-02", in.Date)
	}
	rates := make([]currency.Rate, 0, len(in.Rates))
	for _, r := range in.Rates {
		rates = append(rates, currency.Rate{
			Currency: valueobject.NormalizeCurrency(strings.TrimSpace(r.Currency)),
			Rate:     r.Rate,
		})
	}
	return currency.NewRateTable(valueobject.NormalizeCurrency(in.Base), asOf, rates)
}

// ParseRates decodes a JSON rate table.
func ParseRates(r io.Reader) (*currency.RateTable, error) {
	var in RatesInput
	if err := json.NewDecoder(r).Decode(&in); err != nil {
		return nil, &FieldError{Row: -1, Code: ErrCodeInvalidRates, Message: fmt.Sprintf("invalid JSON: %v", err)}
	}
	return in.Table()
}
