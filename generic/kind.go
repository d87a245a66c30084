/*
kind.go - Record kind definitions and the kind registry

PURPOSE:
  A Kind describes one family of monthly records: its fields, where each
  field's automatic value comes from, and how the yearly net figure is
  derived. Domain packages (balances, earnings) define their kinds and
  register them on init(); the engine, the store and the API only ever see
  generic.Kind.

HOW A FIELD IS CALCULATED:
  value(field, month) = round2( sum(field.Source, month) * field.Rate )

  Sources:
    approved_contributions: sum of amount_to_pay of contributions with
                            status Aprobado for (year, month)
    issued_credits:         sum of monto_credito of credit forms issued
                            inside the month's date range

USAGE:
  // In balances/kind.go
  func init() {
      generic.RegisterKind(Kind())
  }

  kind, ok := generic.LookupKind("balances")

SEE ALSO:
  - calculator.go: Evaluates FieldDef against a SourceReader
  - factory/rules.go: Builds kinds from JSON rule sheets
*/
package generic

import (
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
)

// =============================================================================
// KIND DEFINITION
// =============================================================================

// Source names the transactional table a field aggregates.
type Source string

const (
	SourceApprovedContributions Source = "approved_contributions"
	SourceIssuedCredits         Source = "issued_credits"
)

// Valid reports whether s is a known source.
func (s Source) Valid() bool {
	return s == SourceApprovedContributions || s == SourceIssuedCredits
}

// FieldDef declares one field of a kind.
type FieldDef struct {
	Name          FieldName
	JSONName      string // API value key, e.g. "totalCreditIncome"
	FlagJSONName  string // API override flag key, e.g. "isCreditIncomeOverridden"
	TotalJSONName string // API yearly total key, e.g. "totalCreditIncome"
	Source        Source
	Rate          decimal.Decimal
}

// NetFunc derives the yearly net figure from per-field totals.
type NetFunc func(totals map[FieldName]decimal.Decimal) decimal.Decimal

// Kind is a family of monthly records sharing one field set.
type Kind struct {
	ID          KindID
	Name        string
	Fields      []FieldDef
	Net         NetFunc
	NetJSONName string // API key of the net figure, e.g. "netProfit"
	BulkJSONKey string // API key of the bulk update array, e.g. "balances"
}

// Field finds a field by storage name.
func (k Kind) Field(name FieldName) (FieldDef, bool) {
	for _, f := range k.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldDef{}, false
}

// FieldByJSON finds a field by its API key.
func (k Kind) FieldByJSON(key string) (FieldDef, bool) {
	for _, f := range k.Fields {
		if f.JSONName == key {
			return f, true
		}
	}
	return FieldDef{}, false
}

// FieldNames returns the storage names in declaration order.
func (k Kind) FieldNames() []FieldName {
	names := make([]FieldName, len(k.Fields))
	for i, f := range k.Fields {
		names[i] = f.Name
	}
	return names
}

// NetOf applies the kind's NetFunc, defaulting to a plain sum.
func (k Kind) NetOf(totals map[FieldName]decimal.Decimal) decimal.Decimal {
	if k.Net == nil {
		return SumNet(totals)
	}
	return k.Net(totals)
}

// Validate checks the definition is usable by the engine.
func (k Kind) Validate() error {
	if k.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidKind)
	}
	if len(k.Fields) == 0 {
		return fmt.Errorf("%w: %s has no fields", ErrInvalidKind, k.ID)
	}
	if k.NetJSONName == "" || k.BulkJSONKey == "" {
		return fmt.Errorf("%w: %s needs net and bulk json names", ErrInvalidKind, k.ID)
	}
	seen := make(map[FieldName]bool, len(k.Fields))
	seenJSON := make(map[string]bool, len(k.Fields))
	for _, f := range k.Fields {
		switch {
		case f.Name == "":
			return fmt.Errorf("%w: %s has a field without name", ErrInvalidKind, k.ID)
		case seen[f.Name]:
			return fmt.Errorf("%w: %s declares %s twice", ErrInvalidKind, k.ID, f.Name)
		case f.JSONName == "" || f.FlagJSONName == "" || f.TotalJSONName == "":
			return fmt.Errorf("%w: %s.%s needs json, flag and total names", ErrInvalidKind, k.ID, f.Name)
		case seenJSON[f.JSONName]:
			return fmt.Errorf("%w: %s reuses json name %s", ErrInvalidKind, k.ID, f.JSONName)
		case !f.Source.Valid():
			return fmt.Errorf("%w: %s.%s has unknown source %q", ErrInvalidKind, k.ID, f.Name, f.Source)
		case f.Rate.IsNegative():
			return fmt.Errorf("%w: %s.%s has negative rate", ErrInvalidKind, k.ID, f.Name)
		}
		seen[f.Name] = true
		seenJSON[f.JSONName] = true
	}
	return nil
}

// SumNet adds every total.
func SumNet(totals map[FieldName]decimal.Decimal) decimal.Decimal {
	sum := decimal.Zero
	for _, v := range totals {
		sum = sum.Add(v)
	}
	return sum
}

// =============================================================================
// KIND REGISTRY
// =============================================================================

var (
	kindRegistry = make(map[KindID]Kind)
	registryMu   sync.RWMutex
)

// RegisterKind adds or replaces a kind in the global registry.
// Call this from domain package init() functions.
func RegisterKind(k Kind) {
	registryMu.Lock()
	defer registryMu.Unlock()
	kindRegistry[k.ID] = k
}

// LookupKind finds a registered kind by id.
func LookupKind(id KindID) (Kind, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	k, ok := kindRegistry[id]
	return k, ok
}

// MustLookupKind finds a registered kind or panics.
// Use in tests or when you're certain the kind exists.
func MustLookupKind(id KindID) Kind {
	k, ok := LookupKind(id)
	if !ok {
		panic(fmt.Sprintf("record kind not registered: %s", id))
	}
	return k
}

// Kinds returns all registered kinds ordered by id.
func Kinds() []Kind {
	registryMu.RLock()
	defer registryMu.RUnlock()
	result := make([]Kind, 0, len(kindRegistry))
	for _, k := range kindRegistry {
		result = append(result, k)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}
