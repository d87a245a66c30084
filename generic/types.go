/*
Package generic provides the kind-agnostic monthly reconciliation engine.

PURPOSE:
  This package contains the types and algorithms shared by every monthly
  aggregate the cooperative publishes. Whether it is the financial balance
  (contributions vs. credit income) or the institutional earnings
  (interest, commissions, other income), the same engine computes the
  monthly values, protects admin overrides, and rolls the year up.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: decimal.Decimal, always rounded to cents when calculated
  - FieldName / FieldValue: one cell of a monthly record plus its override flag
  - Record: the materialised (kind, year, month) row
  - AdminID / KindID: type-safe identifiers

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal everywhere, never float64
  2. Override safety: a flagged field is never written by recomputation
  3. Lazy materialisation: a missing month is "zero, not yet synced"
  4. One canonical record shape, kind-specific field sets

USAGE:
  rec := generic.NewRecord(balances.KindID, 2024, 3)
  rec.Override(balances.FieldContributions, decimal.NewFromInt(999))

SEE ALSO:
  - kind.go: Kind definitions and the kind registry
  - ledger.go: Override ledger operations on Record
  - reconciler.go: Sync / EnsureYear
  - service.go: Query and summary layer
*/
package generic

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY
// =============================================================================

// MoneyPlaces is the number of decimal places of every stored amount.
const MoneyPlaces = 2

// RoundMoney rounds half away from zero to cents.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

// KindID identifies a record kind ("balances", "earnings").
type KindID string

// AdminID identifies the authenticated administrator that performed a write.
type AdminID int64

// FieldName is the storage name of a record field.
type FieldName string

// =============================================================================
// RECORD - One materialised (kind, year, month) row
// =============================================================================

// FieldValue is a single cell of the override ledger: the value and whether
// an admin controls it.
type FieldValue struct {
	Value      decimal.Decimal
	Overridden bool
}

// Record is the monthly aggregate for one kind.
//
// INVARIANTS:
//   - Exactly one Record per (Kind, Year, Month).
//   - A field with Overridden=true is only changed by an explicit admin edit
//     or cleared by ResetToAutoCalculated.
type Record struct {
	Kind   KindID
	Year   int
	Month  int
	Fields map[FieldName]FieldValue

	AdminNotes     *string
	LastModifiedAt time.Time
	LastModifiedBy *AdminID
}

// NewRecord returns an empty, not yet materialised record.
func NewRecord(kind KindID, year, month int) Record {
	return Record{
		Kind:   kind,
		Year:   year,
		Month:  month,
		Fields: make(map[FieldName]FieldValue),
	}
}

// Period returns the month this record covers.
func (r Record) Period() MonthPeriod {
	return MonthPeriod{Year: r.Year, Month: r.Month}
}

// Clone returns a deep copy so callers can mutate without aliasing store state.
func (r Record) Clone() Record {
	out := r
	out.Fields = make(map[FieldName]FieldValue, len(r.Fields))
	for k, v := range r.Fields {
		out.Fields[k] = v
	}
	if r.AdminNotes != nil {
		notes := *r.AdminNotes
		out.AdminNotes = &notes
	}
	if r.LastModifiedBy != nil {
		admin := *r.LastModifiedBy
		out.LastModifiedBy = &admin
	}
	return out
}

// =============================================================================
// UPDATES AND SUMMARIES
// =============================================================================

// FieldUpdate is an admin edit of one month. Only the fields present in
// Values are overridden; Notes is applied when non-nil.
type FieldUpdate struct {
	Values map[FieldName]decimal.Decimal
	Notes  *string
}

// IsEmpty reports whether the update changes nothing.
func (u FieldUpdate) IsEmpty() bool {
	return len(u.Values) == 0 && u.Notes == nil
}

// MonthUpdate is one entry of a bulk update.
type MonthUpdate struct {
	Month  int
	Update FieldUpdate
}

// YearSummary is the derived rollup of twelve monthly records.
type YearSummary struct {
	Year   int
	Kind   KindID
	Totals map[FieldName]decimal.Decimal
	Net    decimal.Decimal
	Months []Record
}
