/*
Package balances defines the monthly financial balance of the cooperative.

PURPOSE:
  The balance compares what shareholders put in with what the credit
  portfolio brings back. Each month carries two fields, both calculated
  from the transactional tables and both overridable by an admin.

FIELDS:
  total_shareholder_contributions  approved contributions * 1
  total_credit_income              issued credits * 0.05

NET PROFIT:
  netProfit = totalContributions - totalCreditIncome

  The sign convention is kept as the dashboards have always shown it:
  a month where credit income exceeds contributions reports a negative
  net profit.

EXAMPLE:
  March 2024: contributions 50 Aprobado + 30 Rechazado, one credit of 1000
    total_shareholder_contributions = 50.00
    total_credit_income             = 50.00
    netProfit                       = 0.00

SEE ALSO:
  - earnings/: The institutional earnings kind
  - factory/rules.go: JSON rule sheets that can retune the rates
*/
package balances

import (
	"github.com/aneupi/finance-engine/generic"
	"github.com/shopspring/decimal"
)

// =============================================================================
// KIND AND FIELDS
// =============================================================================

const KindID generic.KindID = "balances"

const (
	FieldContributions generic.FieldName = "total_shareholder_contributions"
	FieldCreditIncome  generic.FieldName = "total_credit_income"
)

// CreditIncomeRate is the share of issued credits booked as income.
var CreditIncomeRate = decimal.RequireFromString("0.05")

func init() {
	generic.RegisterKind(Kind())
}

// Kind returns the built-in balance definition.
func Kind() generic.Kind {
	return generic.Kind{
		ID:   KindID,
		Name: "Balance financiero",
		Fields: []generic.FieldDef{
			{
				Name:          FieldContributions,
				JSONName:      "totalShareholderContributions",
				FlagJSONName:  "isContributionsOverridden",
				TotalJSONName: "totalContributions",
				Source:        generic.SourceApprovedContributions,
				Rate:          decimal.NewFromInt(1),
			},
			{
				Name:          FieldCreditIncome,
				JSONName:      "totalCreditIncome",
				FlagJSONName:  "isCreditIncomeOverridden",
				TotalJSONName: "totalCreditIncome",
				Source:        generic.SourceIssuedCredits,
				Rate:          CreditIncomeRate,
			},
		},
		Net:         NetProfit,
		NetJSONName: "netProfit",
		BulkJSONKey: "balances",
	}
}

// NetProfit is contributions minus credit income.
func NetProfit(totals map[generic.FieldName]decimal.Decimal) decimal.Decimal {
	return totals[FieldContributions].Sub(totals[FieldCreditIncome])
}
