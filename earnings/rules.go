package earnings

import "encoding/json"

// DefaultRulesJSON returns the built-in rule sheet for institutional earnings.
func DefaultRulesJSON() string {
	rj := map[string]interface{}{
		"id":            string(KindID),
		"name":          "Ganancias institucionales",
		"net_json_name": "netEarnings",
		"bulk_json_key": "earnings",
		"fields": []map[string]interface{}{
			{
				"name":            string(FieldIntereses),
				"json_name":       "intereses",
				"flag_json_name":  "interesesModified",
				"total_json_name": "totalIntereses",
				"source":          "issued_credits",
				"rate":            InteresesRate.String(),
			},
			{
				"name":            string(FieldCreditos),
				"json_name":       "creditos",
				"flag_json_name":  "creditosModified",
				"total_json_name": "totalCreditos",
				"source":          "issued_credits",
				"rate":            CreditosRate.String(),
			},
			{
				"name":            string(FieldOtrosIngresos),
				"json_name":       "otrosIngresos",
				"flag_json_name":  "otrosModified",
				"total_json_name": "totalOtrosIngresos",
				"source":          "approved_contributions",
				"rate":            OtrosIngresosRate.String(),
			},
		},
	}
	b, _ := json.MarshalIndent(rj, "", "  ")
	return string(b)
}
