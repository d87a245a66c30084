/*
dto.go - Data Transfer Objects for the HTTP API

PURPOSE:
  Defines the JSON shapes of requests and responses. Monthly records and
  summaries are rendered from the kind definition, so the key names
  (totalShareholderContributions, intereses, netProfit ...) come from
  generic.FieldDef and never from hard-coded structs.

MONEY:
  Amounts are rendered as JSON numbers with two decimals (json.Number over
  decimal.StringFixed) and accepted as numbers or numeric strings.

RESPONSE SHAPES:
  MonthlyBreakdown:
    {year, month, monthName, <field>: number, <flag>: bool,
     adminNotes, lastModifiedAt, lastModifiedBy}

  YearSummary:
    {year, <total>: number, <net>: number, monthlyBreakdown: [...]}

SEE ALSO:
  - handlers.go: Uses these types
  - generic/kind.go: FieldDef JSON names
*/
package api

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/aneupi/finance-engine/generic"
	"github.com/shopspring/decimal"
)

// Keys shared by every kind's record payloads.
const (
	keyAdminNotes = "adminNotes"
	keyAdminID    = "adminId"
	keyMonth      = "month"
)

// money renders an amount as a JSON number with cents.
func money(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(generic.MoneyPlaces))
}

// =============================================================================
// RECORD RESPONSES
// =============================================================================

func recordDTO(kind generic.Kind, rec generic.Record) map[string]any {
	out := map[string]any{
		"year":      rec.Year,
		"month":     rec.Month,
		"monthName": generic.MonthName(rec.Month),
	}
	for _, f := range kind.Fields {
		out[f.JSONName] = money(rec.Value(f.Name))
		out[f.FlagJSONName] = rec.IsOverridden(f.Name)
	}

	out[keyAdminNotes] = nil
	if rec.AdminNotes != nil {
		out[keyAdminNotes] = *rec.AdminNotes
	}
	out["lastModifiedAt"] = nil
	if !rec.LastModifiedAt.IsZero() {
		out["lastModifiedAt"] = rec.LastModifiedAt.UTC().Format(time.RFC3339)
	}
	out["lastModifiedBy"] = nil
	if rec.LastModifiedBy != nil {
		out["lastModifiedBy"] = int64(*rec.LastModifiedBy)
	}
	return out
}

func recordDTOs(kind generic.Kind, recs []generic.Record) []map[string]any {
	out := make([]map[string]any, len(recs))
	for i, rec := range recs {
		out[i] = recordDTO(kind, rec)
	}
	return out
}

func summaryDTO(kind generic.Kind, s generic.YearSummary) map[string]any {
	out := map[string]any{
		"year":             s.Year,
		kind.NetJSONName:   money(s.Net),
		"monthlyBreakdown": recordDTOs(kind, s.Months),
	}
	for _, f := range kind.Fields {
		out[f.TotalJSONName] = money(s.Totals[f.Name])
	}
	return out
}

// =============================================================================
// RECORD REQUESTS
// =============================================================================

// parseFieldUpdate reads one month's edit from a JSON object keyed by the
// kind's field JSON names. adminNotes is optional; adminId and month are
// ignored, as is any key the kind does not know. null means absent.
func parseFieldUpdate(kind generic.Kind, body map[string]json.RawMessage) (generic.FieldUpdate, error) {
	update := generic.FieldUpdate{Values: make(map[generic.FieldName]decimal.Decimal)}
	for key, raw := range body {
		if isNull(raw) {
			continue
		}
		switch key {
		case keyAdminID, keyMonth:
			continue
		case keyAdminNotes:
			var notes string
			if err := json.Unmarshal(raw, &notes); err != nil {
				return generic.FieldUpdate{}, generic.NewValidationError(keyAdminNotes, "must be a string", generic.ErrInvalidSource)
			}
			update.Notes = &notes
			continue
		}

		f, ok := kind.FieldByJSON(key)
		if !ok {
			continue
		}
		var value decimal.Decimal
		if err := json.Unmarshal(raw, &value); err != nil {
			return generic.FieldUpdate{}, generic.NewValidationError(key, "must be a number", generic.ErrInvalidAmount)
		}
		update.Values[f.Name] = value
	}
	return update, nil
}

// parseBulkUpdate reads {<bulkKey>: [{month, ...fields}]}. Entries whose
// month is missing or outside 1..12 are dropped before their fields are
// parsed.
func parseBulkUpdate(kind generic.Kind, body map[string]json.RawMessage) ([]generic.MonthUpdate, error) {
	raw, ok := body[kind.BulkJSONKey]
	if !ok || isNull(raw) {
		return nil, generic.NewValidationError(kind.BulkJSONKey, "required", generic.ErrEmptyUpdate)
	}
	var entries []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, generic.NewValidationError(kind.BulkJSONKey, "must be an array of objects", generic.ErrInvalidSource)
	}

	updates := make([]generic.MonthUpdate, 0, len(entries))
	for _, entry := range entries {
		var month int
		if m, ok := entry[keyMonth]; ok {
			if err := json.Unmarshal(m, &month); err != nil {
				continue
			}
		}
		if generic.ValidateMonth(month) != nil {
			continue
		}
		update, err := parseFieldUpdate(kind, entry)
		if err != nil {
			return nil, err
		}
		updates = append(updates, generic.MonthUpdate{Month: month, Update: update})
	}
	return updates, nil
}

func isNull(raw json.RawMessage) bool {
	return strings.TrimSpace(string(raw)) == "null"
}

// updatedFields lists the storage names an update touches, in kind order.
func updatedFields(kind generic.Kind, u generic.FieldUpdate) []generic.FieldName {
	var names []generic.FieldName
	for _, f := range kind.Fields {
		if _, ok := u.Values[f.Name]; ok {
			names = append(names, f.Name)
		}
	}
	return names
}

// =============================================================================
// SOURCE ROWS
// =============================================================================

// ContributionRequest is the body of POST /api/admin/contributions.
type ContributionRequest struct {
	ID          string          `json:"id,omitempty"`
	UserID      int64           `json:"userId"`
	Year        int             `json:"year"`
	Month       int             `json:"month"`
	AmountToPay decimal.Decimal `json:"amountToPay"`
	AmountPaid  decimal.Decimal `json:"amountPaid"`
	Status      string          `json:"status,omitempty"`
}

// ContributionDTO is the API representation of a contribution.
type ContributionDTO struct {
	ID          string      `json:"id"`
	UserID      int64       `json:"userId"`
	Year        int         `json:"year"`
	Month       int         `json:"month"`
	AmountToPay json.Number `json:"amountToPay"`
	AmountPaid  json.Number `json:"amountPaid"`
	Status      string      `json:"status"`
	CreatedAt   string      `json:"createdAt"`
}

func toContributionDTO(c generic.Contribution) ContributionDTO {
	return ContributionDTO{
		ID:          c.ID,
		UserID:      c.UserID,
		Year:        c.Year,
		Month:       c.Month,
		AmountToPay: money(c.AmountToPay),
		AmountPaid:  money(c.AmountPaid),
		Status:      string(c.Status),
		CreatedAt:   c.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// StatusRequest is the body of PUT /api/admin/contributions/{id}/status.
type StatusRequest struct {
	Status string `json:"status"`
}

// CreditRequest is the body of POST /api/admin/credits. IssuedAt is a
// calendar date, YYYY-MM-DD.
type CreditRequest struct {
	ID           string          `json:"id,omitempty"`
	UserID       int64           `json:"userId"`
	MontoCredito decimal.Decimal `json:"montoCredito"`
	IssuedAt     string          `json:"issuedAt"`
}

// CreditDTO is the API representation of a credit form.
type CreditDTO struct {
	ID           string      `json:"id"`
	UserID       int64       `json:"userId"`
	MontoCredito json.Number `json:"montoCredito"`
	IssuedAt     string      `json:"issuedAt"`
	CreatedAt    string      `json:"createdAt"`
}

func toCreditDTO(c generic.Credit) CreditDTO {
	return CreditDTO{
		ID:           c.ID,
		UserID:       c.UserID,
		MontoCredito: money(c.MontoCredito),
		IssuedAt:     c.IssuedAt.UTC().Format(dateLayout),
		CreatedAt:    c.CreatedAt.UTC().Format(time.RFC3339),
	}
}

const dateLayout = "2006-01-02"

// =============================================================================
// MISC
// =============================================================================

// ScenarioDTO describes a demo data set.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// HealthDTO is the body of /healthz.
type HealthDTO struct {
	Status string `json:"status"`
}
