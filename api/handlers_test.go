/*
handlers_test.go - HTTP tests for the record, source and health endpoints

Tests for:
- Read routes (12 months, summary, years, year validation)
- Admin writes (override, bulk, reset) and their audit events
- The override-until-reset scenario end to end
- Source ingestion and error mapping
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/aneupi/finance-engine/balances"
	"github.com/aneupi/finance-engine/events"
	"github.com/aneupi/finance-engine/generic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// READS
// =============================================================================

func TestListYear_ReturnsTwelveMonthsAscending(t *testing.T) {
	// GIVEN: An empty database
	env := newTestEnv(t)

	// WHEN: Listing 2024
	rec := env.do(t, http.MethodGet, "/api/balances?year=2024", "", "")

	// THEN: Twelve materialised months, January first
	require.Equal(t, http.StatusOK, rec.Code)
	envelope := decodeEnvelope(t, rec)
	require.NotNil(t, envelope.Year)
	assert.Equal(t, 2024, *envelope.Year)

	rows := decodeData[[]map[string]any](t, rec)
	require.Len(t, rows, 12)
	for i, row := range rows {
		assert.Equal(t, json.Number(strconv.Itoa(i+1)), row["month"])
	}
	assert.Equal(t, "Enero", rows[0]["monthName"])
	assert.Equal(t, "Diciembre", rows[11]["monthName"])
	assert.Equal(t, json.Number("0.00"), rows[0]["totalShareholderContributions"])
	assert.Equal(t, false, rows[0]["isContributionsOverridden"])
	assert.Nil(t, rows[0]["lastModifiedBy"])
}

func TestListYear_DefaultsToCurrentYear(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/institutional-earnings", "", "")

	require.Equal(t, http.StatusOK, rec.Code)
	envelope := decodeEnvelope(t, rec)
	require.NotNil(t, envelope.Year)
	assert.Equal(t, testNow.Year(), *envelope.Year)
}

func TestListYear_RejectsInvalidYear(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		year string
	}{
		{"before range", "2019"},
		{"after range", "2051"},
		{"not a number", "abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, "/api/balances?year="+tt.year, "", "")

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			envelope := decodeEnvelope(t, rec)
			assert.False(t, envelope.Success)
			assert.Contains(t, envelope.Error, "year")
		})
	}
}

func TestSummary_Balances(t *testing.T) {
	// GIVEN: 50 approved in March and a credit of 400 issued in March
	env := newTestEnv(t)
	env.addContribution(t, "c1", 2024, 3, "50", generic.StatusAprobado)
	env.addContribution(t, "c2", 2024, 3, "30", generic.StatusRechazado)
	env.addCredit(t, "k1", time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), "400")

	// WHEN: Requesting the summary
	rec := env.do(t, http.MethodGet, "/api/balances/summary?year=2024", "", "")

	// THEN: Totals use the balance net rule (contributions - credit income)
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decodeData[map[string]any](t, rec)
	assert.Equal(t, json.Number("50.00"), summary["totalContributions"])
	assert.Equal(t, json.Number("20.00"), summary["totalCreditIncome"])
	assert.Equal(t, json.Number("30.00"), summary["netProfit"])
	assert.Len(t, summary["monthlyBreakdown"], 12)
}

func TestSummary_Earnings(t *testing.T) {
	env := newTestEnv(t)
	env.addContribution(t, "c1", 2024, 3, "50", generic.StatusAprobado)
	env.addCredit(t, "k1", time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), "400")

	rec := env.do(t, http.MethodGet, "/api/institutional-earnings/summary?year=2024", "", "")

	require.Equal(t, http.StatusOK, rec.Code)
	summary := decodeData[map[string]any](t, rec)
	assert.Equal(t, json.Number("12.00"), summary["totalIntereses"])
	assert.Equal(t, json.Number("8.00"), summary["totalCreditos"])
	assert.Equal(t, json.Number("0.50"), summary["totalOtrosIngresos"])
	assert.Equal(t, json.Number("20.50"), summary["netEarnings"])
}

func TestYears_EmptyStoreMaterialisesCurrentYear(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/balances/years", "", "")

	require.Equal(t, http.StatusOK, rec.Code)
	years := decodeData[[]int](t, rec)
	assert.Equal(t, []int{2024}, years)

	// A read of another year adds it, newest first
	env.do(t, http.MethodGet, "/api/balances?year=2022", "", "")
	rec = env.do(t, http.MethodGet, "/api/balances/years", "", "")
	assert.Equal(t, []int{2024, 2022}, decodeData[[]int](t, rec))
}

// =============================================================================
// ADMIN WRITES
// =============================================================================

func TestOverrideSticksUntilReset(t *testing.T) {
	// GIVEN: 50 approved and 30 rejected in March 2024
	env := newTestEnv(t)
	token := env.token(t, 1)
	env.addContribution(t, "a", 2024, 3, "50", generic.StatusAprobado)
	env.addContribution(t, "b", 2024, 3, "30", generic.StatusRechazado)

	rows := decodeData[[]map[string]any](t, env.do(t, http.MethodGet, "/api/balances?year=2024", "", ""))
	march := findMonth(t, rows, 3)
	assert.Equal(t, json.Number("50.00"), march["totalShareholderContributions"])
	assert.Equal(t, false, march["isContributionsOverridden"])

	// WHEN: Admin 1 overrides the contributions (the body's adminId is ignored)
	rec := env.do(t, http.MethodPut, "/api/admin/balances/2024/3",
		`{"totalShareholderContributions": 999, "adminNotes": "ajuste", "adminId": 7}`, token)

	// THEN: The value and flag are set and attributed to the token's admin
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decodeData[map[string]any](t, rec)
	assert.Equal(t, json.Number("999.00"), updated["totalShareholderContributions"])
	assert.Equal(t, true, updated["isContributionsOverridden"])
	assert.Equal(t, false, updated["isCreditIncomeOverridden"])
	assert.Equal(t, "ajuste", updated["adminNotes"])
	assert.Equal(t, json.Number("1"), updated["lastModifiedBy"])

	// WHEN: More approved rows arrive and the month is read again
	env.addContribution(t, "c", 2024, 3, "20", generic.StatusAprobado)
	rows = decodeData[[]map[string]any](t, env.do(t, http.MethodGet, "/api/balances?year=2024", "", ""))

	// THEN: The override survives the sync
	assert.Equal(t, json.Number("999.00"), findMonth(t, rows, 3)["totalShareholderContributions"])

	// WHEN: The month is reset
	rec = env.do(t, http.MethodPost, "/api/admin/balances/2024/3/reset", "", token)

	// THEN: The live sum is back and the flag is cleared
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	reset := decodeData[map[string]any](t, rec)
	assert.Equal(t, json.Number("70.00"), reset["totalShareholderContributions"])
	assert.Equal(t, false, reset["isContributionsOverridden"])

	published := env.events.Events()
	require.Len(t, published, 2)
	assert.Equal(t, events.TypeFieldsOverridden, published[0].Type)
	assert.Equal(t, int64(1), published[0].AdminID)
	assert.Equal(t, []string{string(balances.FieldContributions)}, published[0].Fields)
	assert.Equal(t, events.TypeRecordReset, published[1].Type)
}

func TestUpdateMonth_Validation(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, 1)

	tests := []struct {
		name    string
		path    string
		body    string
		wantErr string
	}{
		{"no body", "/api/admin/balances/2024/3", "", "body"},
		{"empty object", "/api/admin/balances/2024/3", `{}`, "no fields"},
		{"only unknown keys", "/api/admin/balances/2024/3", `{"foo": 1}`, "no fields"},
		{"negative amount", "/api/admin/balances/2024/3", `{"totalCreditIncome": -5}`, "totalCreditIncome"},
		{"not a number", "/api/admin/balances/2024/3", `{"totalCreditIncome": "abc"}`, "totalCreditIncome"},
		{"month out of range", "/api/admin/balances/2024/13", `{"totalCreditIncome": 5}`, "month"},
		{"month not a number", "/api/admin/balances/2024/marzo", `{"totalCreditIncome": 5}`, "month"},
		{"year out of range", "/api/admin/balances/2019/3", `{"totalCreditIncome": 5}`, "year"},
		{"earnings field on balances", "/api/admin/balances/2024/3", `{"intereses": 5}`, "no fields"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPut, tt.path, tt.body, token)

			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			envelope := decodeEnvelope(t, rec)
			assert.False(t, envelope.Success)
			assert.Contains(t, envelope.Error, tt.wantErr)
		})
	}
	assert.Empty(t, env.events.Events())
}

func TestUpdateMonth_EarningsFields(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, 2)

	rec := env.do(t, http.MethodPut, "/api/admin/institutional-earnings/2024/5",
		`{"intereses": "10.55", "otrosIngresos": 3}`, token)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decodeData[map[string]any](t, rec)
	assert.Equal(t, json.Number("10.55"), updated["intereses"])
	assert.Equal(t, true, updated["interesesModified"])
	assert.Equal(t, json.Number("0.00"), updated["creditos"])
	assert.Equal(t, false, updated["creditosModified"])
	assert.Equal(t, true, updated["otrosModified"])
	assert.Equal(t, "Mayo", updated["monthName"])
}

func TestUpdateYear_SkipsOutOfRangeMonths(t *testing.T) {
	// GIVEN: A bulk body with month 13 and month 5
	env := newTestEnv(t)
	token := env.token(t, 1)
	body := `{"balances": [
		{"month": 13, "totalCreditIncome": 1},
		{"month": 5, "totalCreditIncome": 12.5}
	]}`

	// WHEN: Applying it
	rec := env.do(t, http.MethodPut, "/api/admin/balances/2024", body, token)

	// THEN: Only May is written
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rows := decodeData[[]map[string]any](t, rec)
	require.Len(t, rows, 1)
	assert.Equal(t, json.Number("5"), rows[0]["month"])
	assert.Equal(t, json.Number("12.50"), rows[0]["totalCreditIncome"])
	assert.Equal(t, true, rows[0]["isCreditIncomeOverridden"])

	published := env.events.Events()
	require.Len(t, published, 1)
	assert.Equal(t, 5, published[0].Month)
	assert.Equal(t, []string{string(balances.FieldCreditIncome)}, published[0].Fields)
}

func TestUpdateYear_OutOfRangeEntryIsNotParsed(t *testing.T) {
	// GIVEN: A month-13 entry with a malformed value next to a valid May entry
	env := newTestEnv(t)
	token := env.token(t, 1)
	body := `{"balances": [
		{"month": 13, "totalCreditIncome": "abc"},
		{"month": 5, "totalCreditIncome": 10}
	]}`

	// WHEN: Applying it
	rec := env.do(t, http.MethodPut, "/api/admin/balances/2024", body, token)

	// THEN: The request succeeds and only May is written
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rows := decodeData[[]map[string]any](t, rec)
	require.Len(t, rows, 1)
	assert.Equal(t, json.Number("5"), rows[0]["month"])
	assert.Equal(t, json.Number("10.00"), rows[0]["totalCreditIncome"])

	records, err := env.store.ListRecords(context.Background(), balances.KindID, 2024)
	require.NoError(t, err)
	for _, r := range records {
		assert.Equal(t, r.Month == 5, r.IsOverridden(balances.FieldCreditIncome), "month %d", r.Month)
	}
}

func TestUpdateMonth_RejectsSubCentAmount(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, 1)

	rec := env.do(t, http.MethodPut, "/api/admin/balances/2024/3",
		`{"totalShareholderContributions": 999.999}`, token)

	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.Contains(t, decodeEnvelope(t, rec).Error, "totalShareholderContributions")
	stored, err := env.store.GetRecord(context.Background(), balances.KindID, 2024, 3)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestUpdateYear_RequiresKindBulkKey(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, 1)

	rec := env.do(t, http.MethodPut, "/api/admin/institutional-earnings/2024",
		`{"balances": [{"month": 5, "intereses": 1}]}`, token)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeEnvelope(t, rec).Error, "earnings")
}

func TestUpdateYear_ValidatesBeforeWriting(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, 1)

	rec := env.do(t, http.MethodPut, "/api/admin/balances/2024",
		`{"balances": [{"month": 1, "totalCreditIncome": 5}, {"month": 2, "totalCreditIncome": -1}]}`, token)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec2, err := env.store.GetRecord(context.Background(), balances.KindID, 2024, 1)
	require.NoError(t, err)
	assert.Nil(t, rec2, "no entry is written when any entry is invalid")
}

func TestPublishFailureDoesNotFailWrite(t *testing.T) {
	env := newTestEnv(t)
	env.events.FailWith(errors.New("broker down"))

	rec := env.do(t, http.MethodPut, "/api/admin/balances/2024/3", `{"totalCreditIncome": 5}`, env.token(t, 1))

	assert.Equal(t, http.StatusOK, rec.Code)
}

// =============================================================================
// SOURCE INGESTION
// =============================================================================

func TestContributions_CreateListAndApprove(t *testing.T) {
	// GIVEN: A pending contribution recorded through the API
	env := newTestEnv(t)
	token := env.token(t, 1)

	rec := env.do(t, http.MethodPost, "/api/admin/contributions",
		`{"id": "c-1", "userId": 42, "year": 2024, "month": 3, "amountToPay": 50, "amountPaid": 0}`, token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeData[map[string]any](t, rec)
	assert.Equal(t, "Pendiente", created["status"])
	assert.Equal(t, json.Number("50.00"), created["amountToPay"])

	// THEN: It does not count yet
	rows := decodeData[[]map[string]any](t, env.do(t, http.MethodGet, "/api/balances?year=2024", "", ""))
	assert.Equal(t, json.Number("0.00"), findMonth(t, rows, 3)["totalShareholderContributions"])

	// WHEN: It is approved
	rec = env.do(t, http.MethodPut, "/api/admin/contributions/c-1/status", `{"status": "Aprobado"}`, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// THEN: The next read reflects it
	rows = decodeData[[]map[string]any](t, env.do(t, http.MethodGet, "/api/balances?year=2024", "", ""))
	assert.Equal(t, json.Number("50.00"), findMonth(t, rows, 3)["totalShareholderContributions"])

	listed := decodeData[[]map[string]any](t, env.do(t, http.MethodGet, "/api/admin/contributions?year=2024&month=3", "", token))
	require.Len(t, listed, 1)
	assert.Equal(t, "Aprobado", listed[0]["status"])
}

func TestContributions_Errors(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, 1)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"bad status", http.MethodPost, "/api/admin/contributions", `{"year": 2024, "month": 3, "amountToPay": 5, "status": "Aceptado"}`, http.StatusBadRequest},
		{"negative amount", http.MethodPost, "/api/admin/contributions", `{"year": 2024, "month": 3, "amountToPay": -5}`, http.StatusBadRequest},
		{"bad month", http.MethodPost, "/api/admin/contributions", `{"year": 2024, "month": 0, "amountToPay": 5}`, http.StatusBadRequest},
		{"unknown id", http.MethodPut, "/api/admin/contributions/missing/status", `{"status": "Aprobado"}`, http.StatusNotFound},
		{"list without month", http.MethodGet, "/api/admin/contributions?year=2024", "", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, tt.method, tt.path, tt.body, token)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			assert.False(t, decodeEnvelope(t, rec).Success)
		})
	}
}

func TestCredits_CreateAndList(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, 1)

	rec := env.do(t, http.MethodPost, "/api/admin/credits",
		`{"userId": 7, "montoCredito": "1000", "issuedAt": "2024-03-31"}`, token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeData[map[string]any](t, rec)
	assert.NotEmpty(t, created["id"])
	assert.Equal(t, "2024-03-31", created["issuedAt"])

	march := decodeData[[]map[string]any](t, env.do(t, http.MethodGet, "/api/admin/credits?year=2024&month=3", "", token))
	assert.Len(t, march, 1)
	april := decodeData[[]map[string]any](t, env.do(t, http.MethodGet, "/api/admin/credits?year=2024&month=4", "", token))
	assert.Empty(t, april)

	rows := decodeData[[]map[string]any](t, env.do(t, http.MethodGet, "/api/balances?year=2024", "", ""))
	assert.Equal(t, json.Number("50.00"), findMonth(t, rows, 3)["totalCreditIncome"])
	assert.Equal(t, json.Number("0.00"), findMonth(t, rows, 4)["totalCreditIncome"])
}

func TestCredits_RejectsBadInput(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, 1)

	rec := env.do(t, http.MethodPost, "/api/admin/credits", `{"montoCredito": 10, "issuedAt": "03/2024"}`, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeEnvelope(t, rec).Error, "issuedAt")

	rec = env.do(t, http.MethodPost, "/api/admin/credits", `{"montoCredito": 0, "issuedAt": "2024-03-01"}`, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// HEALTH, METRICS AND FAILURES
// =============================================================================

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/healthz", "", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeData[HealthDTO](t, rec).Status)

	env.store.Close()
	rec = env.do(t, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStoreFailureIsHidden(t *testing.T) {
	// GIVEN: A closed database
	env := newTestEnv(t)
	env.store.Close()

	// WHEN: Reading a year
	rec := env.do(t, http.MethodGet, "/api/balances?year=2024", "", "")

	// THEN: 500 with a generic message
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	envelope := decodeEnvelope(t, rec)
	assert.False(t, envelope.Success)
	assert.Equal(t, internalErrorMessage, envelope.Error)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodGet, "/api/balances?year=2024", "", "")

	rec := env.do(t, http.MethodGet, "/metrics", "", "")

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `aneupi_reconciler_syncs_total{kind="balances"} 12`)
	assert.Contains(t, body, `aneupi_http_requests_total{method="GET",route="/api/balances`)
}

func TestNewHandler_RequiresDependencies(t *testing.T) {
	_, err := NewHandler(Deps{})
	assert.Error(t, err)

	env := newTestEnv(t)
	_, err = NewHandler(Deps{
		Kinds:   []KindRoute{{Path: "balances", Service: env.balances}},
		Sources: env.store,
	})
	assert.Error(t, err, "authenticator is required")
}
