/*
Package earnings defines the institutional earnings of the cooperative.

PURPOSE:
  Institutional earnings split the month's income into interest,
  credit commissions and other income. All three are calculated from the
  same transactional tables as the balance, at fixed rates, and each can
  be overridden by an admin independently.

FIELDS:
  intereses       issued credits * 0.03
  creditos        issued credits * 0.02
  otros_ingresos  approved contributions * 0.01

NET EARNINGS:
  netEarnings = intereses + creditos + otros_ingresos

SEE ALSO:
  - balances/: The financial balance kind
*/
package earnings

import (
	"github.com/aneupi/finance-engine/generic"
	"github.com/shopspring/decimal"
)

const KindID generic.KindID = "earnings"

const (
	FieldIntereses     generic.FieldName = "intereses"
	FieldCreditos      generic.FieldName = "creditos"
	FieldOtrosIngresos generic.FieldName = "otros_ingresos"
)

var (
	InteresesRate     = decimal.RequireFromString("0.03")
	CreditosRate      = decimal.RequireFromString("0.02")
	OtrosIngresosRate = decimal.RequireFromString("0.01")
)

func init() {
	generic.RegisterKind(Kind())
}

// Kind returns the built-in earnings definition.
func Kind() generic.Kind {
	return generic.Kind{
		ID:   KindID,
		Name: "Ganancias institucionales",
		Fields: []generic.FieldDef{
			{
				Name:          FieldIntereses,
				JSONName:      "intereses",
				FlagJSONName:  "interesesModified",
				TotalJSONName: "totalIntereses",
				Source:        generic.SourceIssuedCredits,
				Rate:          InteresesRate,
			},
			{
				Name:          FieldCreditos,
				JSONName:      "creditos",
				FlagJSONName:  "creditosModified",
				TotalJSONName: "totalCreditos",
				Source:        generic.SourceIssuedCredits,
				Rate:          CreditosRate,
			},
			{
				Name:          FieldOtrosIngresos,
				JSONName:      "otrosIngresos",
				FlagJSONName:  "otrosModified",
				TotalJSONName: "totalOtrosIngresos",
				Source:        generic.SourceApprovedContributions,
				Rate:          OtrosIngresosRate,
			},
		},
		Net:         NetEarnings,
		NetJSONName: "netEarnings",
		BulkJSONKey: "earnings",
	}
}

// NetEarnings sums the three income lines.
func NetEarnings(totals map[generic.FieldName]decimal.Decimal) decimal.Decimal {
	return totals[FieldIntereses].Add(totals[FieldCreditos]).Add(totals[FieldOtrosIngresos])
}
