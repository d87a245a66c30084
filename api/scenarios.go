/*
scenarios.go - Demo data loaders for testing and demonstrations

PURPOSE:
  Provides pre-built data sets that populate the source tables with
  realistic contributions and credit forms, so the dashboards and the
  reconciliation can be demonstrated on an empty database.

AVAILABLE SCENARIOS:
  march-2024:      50 approved + 30 rejected contributions in March 2024,
                   one credit of 1000 issued in March
  full-year:       Every month of the current year: approved, pending and
                   paid contributions plus one credit per month
  status-mix:      One month of the current year with all four statuses,
                   only Aprobado rows count

HOW SCENARIOS WORK:
  Rows are written through the SourceLedger with fixed ids, so loading a
  scenario twice upserts the same rows. Monthly records are not touched;
  the next read or scheduled sync picks the new rows up.

USAGE VIA API:
  POST /api/admin/scenarios/load
  {"scenario_id": "march-2024"}

ADDING NEW SCENARIOS:
  1. Add to 'scenarios' slice with ID, name, description
  2. Create loader function: loadXxxScenario(ctx)
  3. Add case to loadScenario

SEE ALSO:
  - handlers.go: Source ingestion endpoints
  - generic/sources.go: Contribution and Credit rows
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aneupi/finance-engine/generic"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "march-2024",
		Name:        "March 2024",
		Description: "One approved and one rejected contribution plus one credit in March 2024",
	},
	{
		ID:          "full-year",
		Name:        "Full Year",
		Description: "Contributions in several statuses and one credit for every month of the current year",
	},
	{
		ID:          "status-mix",
		Name:        "Status Mix",
		Description: "All four contribution statuses in the current month; only Aprobado counts",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, scenarios)
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScenarioID string `json:"scenario_id"`
	}
	if err := decodeInto(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	if err := h.loadScenario(r.Context(), req.ScenarioID); err != nil {
		h.fail(w, r, err)
		return
	}

	h.logger.Info("scenario loaded", zap.String("scenario", req.ScenarioID))
	writeData(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

func (h *Handler) loadScenario(ctx context.Context, id string) error {
	switch id {
	case "march-2024":
		return h.loadMarch2024Scenario(ctx)
	case "full-year":
		return h.loadFullYearScenario(ctx)
	case "status-mix":
		return h.loadStatusMixScenario(ctx)
	default:
		return generic.NewValidationError("scenario_id", fmt.Sprintf("unknown scenario %q", id), generic.ErrInvalidSource)
	}
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadMarch2024Scenario(ctx context.Context) error {
	rows := []generic.Contribution{
		h.demoContribution("demo-2024-03-a", 101, 2024, 3, "50", generic.StatusAprobado),
		h.demoContribution("demo-2024-03-b", 102, 2024, 3, "30", generic.StatusRechazado),
	}
	if err := h.saveContributions(ctx, rows); err != nil {
		return err
	}
	return h.sources.SaveCredit(ctx, h.demoCredit("demo-credit-2024-03", 101, date(2024, 3, 10), "1000"))
}

func (h *Handler) loadFullYearScenario(ctx context.Context) error {
	year := h.clock().Year()
	for month := 1; month <= 12; month++ {
		base := decimal.NewFromInt(int64(100 * month))
		rows := []generic.Contribution{
			h.demoContribution(fmt.Sprintf("demo-%d-%02d-approved", year, month), 201, year, month, base.String(), generic.StatusAprobado),
			h.demoContribution(fmt.Sprintf("demo-%d-%02d-pending", year, month), 202, year, month, "75", generic.StatusPendiente),
			h.demoContribution(fmt.Sprintf("demo-%d-%02d-paid", year, month), 203, year, month, "40", generic.StatusPagado),
		}
		if err := h.saveContributions(ctx, rows); err != nil {
			return err
		}

		credit := h.demoCredit(fmt.Sprintf("demo-credit-%d-%02d", year, month), 201, date(year, month, 15), base.Mul(decimal.NewFromInt(10)).String())
		if err := h.sources.SaveCredit(ctx, credit); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) loadStatusMixScenario(ctx context.Context) error {
	now := h.clock()
	year, month := now.Year(), int(now.Month())
	statuses := []generic.ContributionStatus{
		generic.StatusPendiente,
		generic.StatusAprobado,
		generic.StatusRechazado,
		generic.StatusPagado,
	}

	rows := make([]generic.Contribution, len(statuses))
	for i, status := range statuses {
		id := fmt.Sprintf("demo-mix-%d-%02d-%d", year, month, i)
		rows[i] = h.demoContribution(id, int64(300+i), year, month, "25", status)
	}
	return h.saveContributions(ctx, rows)
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) saveContributions(ctx context.Context, rows []generic.Contribution) error {
	for _, c := range rows {
		if err := h.sources.SaveContribution(ctx, c); err != nil {
			return fmt.Errorf("save contribution %s: %w", c.ID, err)
		}
	}
	return nil
}

func (h *Handler) demoContribution(id string, user int64, year, month int, amount string, status generic.ContributionStatus) generic.Contribution {
	return generic.Contribution{
		ID:          id,
		UserID:      user,
		Year:        year,
		Month:       month,
		AmountToPay: decimal.RequireFromString(amount),
		AmountPaid:  decimal.Zero,
		Status:      status,
		CreatedAt:   h.clock(),
	}
}

func (h *Handler) demoCredit(id string, user int64, issued time.Time, amount string) generic.Credit {
	return generic.Credit{
		ID:           id,
		UserID:       user,
		MontoCredito: decimal.RequireFromString(amount),
		IssuedAt:     issued,
		CreatedAt:    h.clock(),
	}
}

func date(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}
