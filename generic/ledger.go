/*
ledger.go - Override ledger

PURPOSE:
  Every field of a monthly record carries a boolean "admin controls this
  value" flag next to the value. The ledger is not a separate table or
  service: it is the set of operations on Record that read and move those
  flags. Only the reconciler and the admin update path call them.

STATE MACHINE (per field):

    Auto ──admin edit──▶ Overridden ──admin reset──▶ Auto

  Auto is both the initial state and re-enterable. There is no terminal
  state.

CRITICAL INVARIANTS:
  1. Override() always sets the flag to true.
  2. ClearOverrides() always sets every flag to false.
  3. ApplyCalculated() never writes a flagged field.

SEE ALSO:
  - reconciler.go: Uses ApplyCalculated on every sync
  - service.go: Uses Override / ClearOverrides for admin writes
*/
package generic

import "github.com/shopspring/decimal"

// Value returns the field's value, zero when the field was never written.
func (r Record) Value(field FieldName) decimal.Decimal {
	return r.Fields[field].Value
}

// IsOverridden reports whether an admin controls the field.
func (r Record) IsOverridden(field FieldName) bool {
	return r.Fields[field].Overridden
}

// OverriddenFields lists flagged fields in kind order.
func (r Record) OverriddenFields(kind Kind) []FieldName {
	var out []FieldName
	for _, f := range kind.Fields {
		if r.IsOverridden(f.Name) {
			out = append(out, f.Name)
		}
	}
	return out
}

// Override sets an admin value and flags the field.
func (r *Record) Override(field FieldName, value decimal.Decimal) {
	if r.Fields == nil {
		r.Fields = make(map[FieldName]FieldValue)
	}
	r.Fields[field] = FieldValue{Value: value, Overridden: true}
}

// ClearOverrides returns every field to automatic calculation.
// Values are left untouched; the caller recomputes them.
func (r *Record) ClearOverrides() {
	for name, fv := range r.Fields {
		fv.Overridden = false
		r.Fields[name] = fv
	}
}

// ApplyCalculated merges freshly calculated values: flagged fields keep
// their stored value and flag, every other field takes the calculated value
// with the flag false. Fields missing from calculated are set to zero.
func (r *Record) ApplyCalculated(kind Kind, calculated map[FieldName]decimal.Decimal) {
	if r.Fields == nil {
		r.Fields = make(map[FieldName]FieldValue, len(kind.Fields))
	}
	for _, f := range kind.Fields {
		if existing, ok := r.Fields[f.Name]; ok && existing.Overridden {
			continue
		}
		value, ok := calculated[f.Name]
		if !ok {
			value = decimal.Zero
		}
		r.Fields[f.Name] = FieldValue{Value: value, Overridden: false}
	}
}
