/*
Package factory provides JSON to Go kind conversion.

PURPOSE:
  Converts JSON rule sheets into generic.Kind definitions. The treasurer can
  retune a rate (say the credit income percentage) by dropping a sheet into
  RULES_DIR and restarting, without a release.

JSON SCHEMA:
  {
    "id": "balances",
    "name": "Balance financiero",
    "net_json_name": "netProfit",
    "bulk_json_key": "balances",
    "fields": [
      {
        "name": "total_credit_income",
        "json_name": "totalCreditIncome",
        "flag_json_name": "isCreditIncomeOverridden",
        "total_json_name": "totalCreditIncome",
        "source": "issued_credits",
        "rate": "0.05"
      }
    ]
  }

NET FIGURES:
  Sheets carry data only. The net function of a kind is bound by id to the
  code in its domain package (balances.NetProfit, earnings.NetEarnings);
  unknown ids fall back to a plain sum.

USAGE:
  f := factory.NewRuleFactory()
  kind, err := f.ParseKind(balances.DefaultRulesJSON())

  kinds, err := f.LoadDir(cfg.RulesDir)
  for _, k := range kinds {
      generic.RegisterKind(k)
  }

SEE ALSO:
  - generic/kind.go: Kind definition and Validate
  - balances/rules.go, earnings/rules.go: Built-in sheets
*/
package factory

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aneupi/finance-engine/balances"
	"github.com/aneupi/finance-engine/earnings"
	"github.com/aneupi/finance-engine/generic"
	"github.com/shopspring/decimal"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// KindJSON is the JSON representation of a kind.
type KindJSON struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	NetJSONName string      `json:"net_json_name"`
	BulkJSONKey string      `json:"bulk_json_key"`
	Fields      []FieldJSON `json:"fields"`
}

// FieldJSON represents one field. Rate accepts a JSON string or number.
type FieldJSON struct {
	Name          string           `json:"name"`
	JSONName      string           `json:"json_name"`
	FlagJSONName  string           `json:"flag_json_name"`
	TotalJSONName string           `json:"total_json_name"`
	Source        string           `json:"source"`
	Rate          *decimal.Decimal `json:"rate"`
}

// =============================================================================
// RULE FACTORY
// =============================================================================

// RuleFactory converts JSON rule sheets to kinds.
type RuleFactory struct {
	nets map[generic.KindID]generic.NetFunc
}

// NewRuleFactory creates a factory that knows the built-in net functions.
func NewRuleFactory() *RuleFactory {
	return &RuleFactory{
		nets: map[generic.KindID]generic.NetFunc{
			balances.KindID: balances.NetProfit,
			earnings.KindID: earnings.NetEarnings,
		},
	}
}

// BindNet associates a net function with a kind id.
func (f *RuleFactory) BindNet(id generic.KindID, net generic.NetFunc) {
	f.nets[id] = net
}

// ParseKind parses a JSON string into a validated Kind.
func (f *RuleFactory) ParseKind(jsonStr string) (generic.Kind, error) {
	var kj KindJSON
	dec := json.NewDecoder(strings.NewReader(jsonStr))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&kj); err != nil {
		return generic.Kind{}, fmt.Errorf("failed to parse kind JSON: %w", err)
	}
	return f.FromJSON(kj)
}

// FromJSON converts KindJSON to generic.Kind.
func (f *RuleFactory) FromJSON(kj KindJSON) (generic.Kind, error) {
	kind := generic.Kind{
		ID:          generic.KindID(kj.ID),
		Name:        kj.Name,
		Net:         f.nets[generic.KindID(kj.ID)],
		NetJSONName: kj.NetJSONName,
		BulkJSONKey: kj.BulkJSONKey,
	}

	for _, fj := range kj.Fields {
		if fj.Rate == nil {
			return generic.Kind{}, fmt.Errorf("%w: %s.%s has no rate", generic.ErrInvalidKind, kj.ID, fj.Name)
		}
		kind.Fields = append(kind.Fields, generic.FieldDef{
			Name:          generic.FieldName(fj.Name),
			JSONName:      fj.JSONName,
			FlagJSONName:  fj.FlagJSONName,
			TotalJSONName: fj.TotalJSONName,
			Source:        generic.Source(fj.Source),
			Rate:          *fj.Rate,
		})
	}

	if err := kind.Validate(); err != nil {
		return generic.Kind{}, err
	}
	return kind, nil
}

// ToJSON converts a Kind back to its sheet form.
func (f *RuleFactory) ToJSON(kind generic.Kind) KindJSON {
	kj := KindJSON{
		ID:          string(kind.ID),
		Name:        kind.Name,
		NetJSONName: kind.NetJSONName,
		BulkJSONKey: kind.BulkJSONKey,
	}
	for _, fd := range kind.Fields {
		rate := fd.Rate
		kj.Fields = append(kj.Fields, FieldJSON{
			Name:          string(fd.Name),
			JSONName:      fd.JSONName,
			FlagJSONName:  fd.FlagJSONName,
			TotalJSONName: fd.TotalJSONName,
			Source:        string(fd.Source),
			Rate:          &rate,
		})
	}
	return kj
}

// =============================================================================
// RULE DIRECTORY
// =============================================================================

// LoadDir parses every *.json sheet in dir, ordered by file name. A sheet
// must declare the same id as its file name. An empty dir returns nothing.
func (f *RuleFactory) LoadDir(dir string) ([]generic.Kind, error) {
	if dir == "" {
		return nil, nil
	}

	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("list rule sheets: %w", err)
	}
	sort.Strings(paths)

	var (
		kinds []generic.Kind
		errs  []error
	)
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			errs = append(errs, fmt.Errorf("read %s: %w", path, err))
			continue
		}
		kind, err := f.ParseKind(string(data))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", filepath.Base(path), err))
			continue
		}
		if want := strings.TrimSuffix(filepath.Base(path), ".json"); string(kind.ID) != want {
			errs = append(errs, fmt.Errorf("%s: %w: id %q does not match file name", filepath.Base(path), generic.ErrInvalidKind, kind.ID))
			continue
		}
		kinds = append(kinds, kind)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return kinds, nil
}
