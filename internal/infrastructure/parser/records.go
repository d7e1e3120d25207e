package parser

import (
	"github.com/tpa/backend/internal/domain/shared/valueobject"
	tp "github.com/tpa/backend/internal/domain/transferpricing"
)

// Record attribute names
const (
	FieldID                = "id"
	FieldTaxpayer          = "atp_taxpayer"
	FieldLocalCurrency     = "local_currency"
	FieldAssets            = "atp_assets"
	FieldCapitalEmployed   = "atp_capital_employed"
	FieldBeforeSales       = "atp_before_sales"
	FieldOGSales           = "atp_og_sales"
	FieldCOGS              = "atp_cogs"
	FieldRoyaltyPaid       = "atp_royalty_paid"
	FieldOperatingExpenses = "atp_operating_expenses"
	FieldProfitIndicator   = "atp_profit_indicator"
	FieldBeforePBT         = "atp_before_pbt"
	FieldBeforeTaxExpenses = "atp_before_tax_expenses"
	FieldTLCFN             = "atp_tax_losses_carryforward_n"
	FieldTLCFN1            = "atp_tax_losses_carryforward_n1"
	FieldTax               = "atp_tax"
	FieldBaseRoyalty       = "atp_base_royalty"
	FieldFirmCreationDate  = "atp_firm_creation_date"
)

// ParseRecords converts raw financial entries into records. Entries without
// an integer id are numbered by position, starting at 1.
func ParseRecords(raw []map[string]any) ([]tp.Record, error) {
	records := make([]tp.Record, 0, len(raw))
	for i, m := range raw {
		r, err := parseRecord(i, entry(m))
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, nil
}

func parseRecord(row int, e entry) (tp.Record, error) {
	declaring, err := e.segmentation(row, tp.DeclaringSegmentationPrefix)
	if err != nil {
		return tp.Record{}, err
	}

	id, ok := e.integer(FieldID)
	if !ok {
		id = int64(row + 1)
	}

	var cur valueobject.Currency
	if s := e.str(FieldLocalCurrency); s != "" {
		cur = valueobject.NormalizeCurrency(s)
	}

	return tp.Record{
		ID:                id,
		Taxpayer:          e.str(FieldTaxpayer),
		Assets:            e.money(FieldAssets, cur),
		CapitalEmployed:   e.money(FieldCapitalEmployed, cur),
		BeforeSales:       e.money(FieldBeforeSales, cur),
		OGSales:           e.money(FieldOGSales, cur),
		COGS:              e.money(FieldCOGS, cur),
		RoyaltyPaid:       e.money(FieldRoyaltyPaid, cur),
		OperatingExpenses: e.money(FieldOperatingExpenses, cur),
		ProfitIndicator:   e.money(FieldProfitIndicator, cur),
		BeforePBT:         e.money(FieldBeforePBT, cur),
		BeforeTaxExpenses: e.money(FieldBeforeTaxExpenses, cur),
		TLCFN:             e.money(FieldTLCFN, cur),
		TLCFN1:            e.money(FieldTLCFN1, cur),
		Tax:               e.money(FieldTax, cur),
		BaseRoyalty:       e.money(FieldBaseRoyalty, cur),
		FirmCreationDate:  e.date(FieldFirmCreationDate),
		LocalCurrency:     cur,
		Declaring:         declaring,
	}, nil
}
