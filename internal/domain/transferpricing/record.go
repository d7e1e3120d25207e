package transferpricing

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/tpa/backend/internal/domain/shared/valueobject"
)

// Record is the financial data of one entity for one period. It is the unit
// of adjustment and is never mutated.
type Record struct {
	ID                int64
	Taxpayer          string
	Assets            *valueobject.Money
	CapitalEmployed   *valueobject.Money
	BeforeSales       *valueobject.Money
	OGSales           *valueobject.Money
	COGS              *valueobject.Money
	RoyaltyPaid       *valueobject.Money
	OperatingExpenses *valueobject.Money
	ProfitIndicator   *valueobject.Money
	BeforePBT         *valueobject.Money
	BeforeTaxExpenses *valueobject.Money
	TLCFN             *valueobject.Money
	TLCFN1            *valueobject.Money
	Tax               *valueobject.Money
	BaseRoyalty       *valueobject.Money
	FirmCreationDate  *time.Time
	LocalCurrency     valueobject.Currency
	Declaring         Segmentation
}

// Lines are the accounting lines the ledger moves while adjusting.
type Lines struct {
	ProfitIndicator             *valueobject.Money
	Sales                       *valueobject.Money
	COGS                        *valueobject.Money
	OperatingExpenses           *valueobject.Money
	RoyaltyPaid                 *valueobject.Money
	RoyaltyReceived             *valueobject.Money
	RoyaltyReceivedSpecificRate *valueobject.Money
}

// Withholding accumulates the withholding-tax effects of royalty adjustments.
type Withholding struct {
	DeltaWHTRoyaltyReceived    *valueobject.Money
	DeltaWHTRoyaltyPaid        *valueobject.Money
	PossibleWHTTaxCredits      *valueobject.Money
	DeltaPBTWHTRoyaltyReceived *valueobject.Money
	DeltaPBTWHTRoyaltyPaid     *valueobject.Money
	DeltaTaxWHTRoyaltyReceived *valueobject.Money
}

// Fiscal lines are projected from the taxpayer group after convergence.
type Fiscal struct {
	PBT                        *valueobject.Money
	TaxExpenses                *valueobject.Money
	TLCFN                      *valueobject.Money
	TaxLossesGeneratedConsumed *valueobject.Money
	WHTPaid                    *valueobject.Money
}

// OutputRecord is a Record together with everything the engine computes for
// it. It is created once before the first pass and mutated in place.
type OutputRecord struct {
	Input       Record
	Lines       Lines
	Adjustment  *valueobject.Money
	KPIValue    decimal.NullDecimal
	KPI         KPIName
	FiredBand   Band
	Withholding Withholding
	Fiscal      Fiscal
}

// NewOutputRecord seeds the working lines from the input record.
func NewOutputRecord(r Record) *OutputRecord {
	return &OutputRecord{
		Input: r,
		Lines: Lines{
			ProfitIndicator:   valueobject.Clone(r.ProfitIndicator),
			Sales:             valueobject.Clone(r.BeforeSales),
			COGS:              valueobject.Clone(r.COGS),
			OperatingExpenses: valueobject.Clone(r.OperatingExpenses),
			RoyaltyPaid:       valueobject.Clone(r.RoyaltyPaid),
		},
		Fiscal: Fiscal{
			PBT:         valueobject.Clone(r.BeforePBT),
			TaxExpenses: valueobject.Clone(r.BeforeTaxExpenses),
			TLCFN:       valueobject.Clone(r.TLCFN),
		},
	}
}

// Currency returns the currency adjustments of this record are booked in.
// An empty local currency defers to the currency of the line being moved.
func (o *OutputRecord) Currency() valueobject.Currency {
	return o.Input.LocalCurrency
}
