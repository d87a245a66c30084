package generic_test

import (
	"testing"

	"github.com/aneupi/finance-engine/balances"
	"github.com/aneupi/finance-engine/earnings"
	"github.com/aneupi/finance-engine/generic"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKinds_BuiltinsRegistered(t *testing.T) {
	kinds := generic.Kinds()

	ids := make([]generic.KindID, len(kinds))
	for i, k := range kinds {
		ids[i] = k.ID
	}
	assert.Equal(t, []generic.KindID{balances.KindID, earnings.KindID}, ids)

	for _, k := range kinds {
		assert.NoError(t, k.Validate(), "kind %s", k.ID)
	}
}

func TestKind_FieldLookup(t *testing.T) {
	kind := generic.MustLookupKind(earnings.KindID)

	f, ok := kind.FieldByJSON("otrosIngresos")
	require.True(t, ok)
	assert.Equal(t, earnings.FieldOtrosIngresos, f.Name)
	assert.Equal(t, "otrosModified", f.FlagJSONName)

	_, ok = kind.Field("total_credit_income")
	assert.False(t, ok)

	_, ok = generic.LookupKind("payroll")
	assert.False(t, ok)
}

func TestKind_Validate_Rejects(t *testing.T) {
	base := balances.Kind()

	tests := []struct {
		name   string
		mutate func(k *generic.Kind)
	}{
		{"missing id", func(k *generic.Kind) { k.ID = "" }},
		{"no fields", func(k *generic.Kind) { k.Fields = nil }},
		{"no bulk key", func(k *generic.Kind) { k.BulkJSONKey = "" }},
		{"duplicate field", func(k *generic.Kind) { k.Fields = append(k.Fields, k.Fields[0]) }},
		{"unknown source", func(k *generic.Kind) { k.Fields[0].Source = "payments" }},
		{"negative rate", func(k *generic.Kind) { k.Fields[1].Rate = decimal.NewFromInt(-1) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k := base
			k.Fields = append([]generic.FieldDef(nil), base.Fields...)
			tt.mutate(&k)
			assert.ErrorIs(t, k.Validate(), generic.ErrInvalidKind)
		})
	}
}

func TestKind_NetOf_DefaultsToSum(t *testing.T) {
	kind := generic.Kind{ID: "custom"}
	net := kind.NetOf(map[generic.FieldName]decimal.Decimal{
		"a": money("1.50"),
		"b": money("2.25"),
	})
	assertMoney(t, "3.75", net)
}
