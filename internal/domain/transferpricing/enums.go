// Package transferpricing holds the transfer-pricing domain: rules, financial
// records, rule resolution, the ledger applied by each adjustment and the
// fiscal cascade run per taxpayer group.
package transferpricing

import "fmt"

// Method is the transfer-pricing method of a rule. It selects both the KPI
// and the formula inverting it.
type Method string

const (
	MethodROA     Method = "TNMM ROA"
	MethodROCE    Method = "TNMM ROCE"
	MethodROS     Method = "TNMM ROS"
	MethodROOGS   Method = "TNMM ROOGS"
	MethodROCOGS  Method = "TNMM ROCOGS"
	MethodROOE    Method = "TNMM ROOE"
	MethodROC     Method = "TNMM ROC"
	MethodRoyalty Method = "Royalty"
)

// AllMethods returns every method in declaration order
func AllMethods() []Method {
	return []Method{
		MethodROA,
		MethodROCE,
		MethodROS,
		MethodROOGS,
		MethodROCOGS,
		MethodROOE,
		MethodROC,
		MethodRoyalty,
	}
}

// String returns the wire value
func (m Method) String() string {
	return string(m)
}

// IsValid returns true for one of the eight known methods
func (m Method) IsValid() bool {
	_, ok := methodKPI[m]
	return ok
}

// KPI returns the indicator measured by the method
func (m Method) KPI() KPIName {
	return methodKPI[m]
}

// ParseMethod converts a wire value into a Method
func ParseMethod(s string) (Method, error) {
	m := Method(s)
	if !m.IsValid() {
		return "", fmt.Errorf("unknown transfer-pricing method %q", s)
	}
	return m, nil
}

// KPIName identifies the profitability ratio computed for a record.
type KPIName int

const (
	KPIReturnOnAssets KPIName = iota + 1
	KPIReturnOnCapitalEmployed
	KPIReturnOnSales
	KPIReturnOnOutOfGroupSales
	KPIReturnOnCOGS
	KPIBerryRatio
	KPIReturnOnCosts
	KPIRoyaltyRate
)

var methodKPI = map[Method]KPIName{
	MethodROA:     KPIReturnOnAssets,
	MethodROCE:    KPIReturnOnCapitalEmployed,
	MethodROS:     KPIReturnOnSales,
	MethodROOGS:   KPIReturnOnOutOfGroupSales,
	MethodROCOGS:  KPIReturnOnCOGS,
	MethodROOE:    KPIBerryRatio,
	MethodROC:     KPIReturnOnCosts,
	MethodRoyalty: KPIRoyaltyRate,
}

var kpiLabels = map[KPIName]string{
	KPIReturnOnAssets:          "Return on Asset",
	KPIReturnOnCapitalEmployed: "Return on Capital Employed",
	KPIReturnOnSales:           "Return on Sales",
	KPIReturnOnOutOfGroupSales: "Return on Out of Group Sales",
	KPIReturnOnCOGS:            "Return on Costs of Goods Solds",
	KPIBerryRatio:              "Return on Operating Expenses / Berry Ratio",
	KPIReturnOnCosts:           "Return on Costs",
	KPIRoyaltyRate:             "Royalty rate",
}

// String returns the human-readable indicator name
func (k KPIName) String() string {
	if l, ok := kpiLabels[k]; ok {
		return l
	}
	return "undefined"
}

// AccountingImpact is the accounting line a TPA is booked against, on top of
// the profit indicator.
type AccountingImpact int

const (
	ImpactUndefined AccountingImpact = iota
	ImpactProfitIndicatorOnly
	ImpactOperatingExpenses
	ImpactSales
	ImpactCOGS
)

// IsValid reports whether the impact is one of the four defined values
func (a AccountingImpact) IsValid() bool {
	return a >= ImpactProfitIndicatorOnly && a <= ImpactCOGS
}

// Band is the position of a KPI relative to the interquartile range. Rules
// list the bands in which an adjustment is allowed.
type Band int

const (
	BandUndefined Band = iota
	BandBelow          // apply if inferior
	BandAbove          // apply if superior
	BandInside         // apply if inside
)

// IsValid reports whether the band is one of the three defined values
func (b Band) IsValid() bool {
	return b >= BandBelow && b <= BandInside
}

// String returns a short label
func (b Band) String() string {
	switch b {
	case BandBelow:
		return "below"
	case BandAbove:
		return "above"
	case BandInside:
		return "inside"
	default:
		return "undefined"
	}
}
