package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/aneupi/finance-engine/balances"
	"github.com/aneupi/finance-engine/earnings"
	"github.com/aneupi/finance-engine/events"
	"github.com/aneupi/finance-engine/generic"
	"github.com/aneupi/finance-engine/metrics"
	"github.com/aneupi/finance-engine/store/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var testNow = time.Date(2024, time.June, 15, 10, 0, 0, 0, time.UTC)

const testSecret = "test-secret-0123456789"

func fixedClock() time.Time { return testNow }

type testEnv struct {
	store    *sqlite.Store
	handler  *Handler
	router   http.Handler
	auth     *Authenticator
	events   *events.Memory
	metrics  *metrics.Metrics
	balances *generic.Service
	earnings *generic.Service
}

func newTestEnv(t *testing.T, opts ...func(*Deps)) *testEnv {
	t.Helper()

	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	m := metrics.New()
	bal := generic.NewService(store, balances.Kind(), generic.WithClock(fixedClock), generic.WithObserver(m))
	earn := generic.NewService(store, earnings.Kind(), generic.WithClock(fixedClock), generic.WithObserver(m))

	auth := NewAuthenticator(testSecret)
	auth.clock = fixedClock
	pub := events.NewMemory()

	deps := Deps{
		Kinds: []KindRoute{
			{Path: "balances", Service: bal},
			{Path: "institutional-earnings", Service: earn},
		},
		Sources:   store,
		Auth:      auth,
		Limiter:   NewAdminLimiter(1000, 1000),
		Publisher: pub,
		Metrics:   m,
		Health:    store,
		Clock:     fixedClock,
	}
	for _, opt := range opts {
		opt(&deps)
	}

	h, err := NewHandler(deps)
	require.NoError(t, err)

	return &testEnv{
		store:    store,
		handler:  h,
		router:   NewRouter(h),
		auth:     auth,
		events:   pub,
		metrics:  m,
		balances: bal,
		earnings: earn,
	}
}

func (e *testEnv) token(t *testing.T, admin generic.AdminID) string {
	t.Helper()
	token, err := e.auth.Issue(admin, RoleAdmin, time.Hour)
	require.NoError(t, err)
	return token
}

// do sends a request; an empty token sends no Authorization header.
func (e *testEnv) do(t *testing.T, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := newRequest(method, path, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return serve(e, req)
}

func newRequest(method, path, body string) *http.Request {
	var reader io.Reader = http.NoBody
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func serve(e *testEnv, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) addContribution(t *testing.T, id string, year, month int, amount string, status generic.ContributionStatus) {
	t.Helper()
	require.NoError(t, e.store.SaveContribution(context.Background(), generic.Contribution{
		ID:          id,
		UserID:      1,
		Year:        year,
		Month:       month,
		AmountToPay: decimal.RequireFromString(amount),
		AmountPaid:  decimal.Zero,
		Status:      status,
		CreatedAt:   testNow,
	}))
}

func (e *testEnv) addCredit(t *testing.T, id string, issued time.Time, amount string) {
	t.Helper()
	require.NoError(t, e.store.SaveCredit(context.Background(), generic.Credit{
		ID:           id,
		UserID:       1,
		MontoCredito: decimal.RequireFromString(amount),
		IssuedAt:     issued,
		CreatedAt:    testNow,
	}))
}

// =============================================================================
// RESPONSE DECODING
// =============================================================================

type testEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Year    *int            `json:"year"`
	Error   string          `json:"error"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) testEnvelope {
	t.Helper()
	var env testEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

// decodeData decodes the envelope's data with json.Number for amounts.
func decodeData[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	env := decodeEnvelope(t, rec)
	require.True(t, env.Success, "expected success, got error %q", env.Error)

	var out T
	dec := json.NewDecoder(bytes.NewReader(env.Data))
	dec.UseNumber()
	require.NoError(t, dec.Decode(&out))
	return out
}

func findMonth(t *testing.T, rows []map[string]any, month int) map[string]any {
	t.Helper()
	for _, row := range rows {
		if row["month"] == json.Number(strconv.Itoa(month)) {
			return row
		}
	}
	t.Fatalf("month %d not in response", month)
	return nil
}
