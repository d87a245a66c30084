package balances

import "encoding/json"

// DefaultRulesJSON returns the built-in rule sheet for the balance kind.
//
// The sheet is what operators copy into RULES_DIR/balances.json to retune
// rates without a release. It is built as a map rather than through the
// factory types so this package does not import factory.
func DefaultRulesJSON() string {
	return RulesJSON(CreditIncomeRate.String())
}

// RulesJSON returns the balance rule sheet with a custom credit income rate.
func RulesJSON(creditIncomeRate string) string {
	rj := map[string]interface{}{
		"id":            string(KindID),
		"name":          "Balance financiero",
		"net_json_name": "netProfit",
		"bulk_json_key": "balances",
		"fields": []map[string]interface{}{
			{
				"name":            string(FieldContributions),
				"json_name":       "totalShareholderContributions",
				"flag_json_name":  "isContributionsOverridden",
				"total_json_name": "totalContributions",
				"source":          "approved_contributions",
				"rate":            "1",
			},
			{
				"name":            string(FieldCreditIncome),
				"json_name":       "totalCreditIncome",
				"flag_json_name":  "isCreditIncomeOverridden",
				"total_json_name": "totalCreditIncome",
				"source":          "issued_credits",
				"rate":            creditIncomeRate,
			},
		},
	}
	b, _ := json.MarshalIndent(rj, "", "  ")
	return string(b)
}
