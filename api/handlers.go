/*
handlers.go - HTTP API handlers for the reconciliation engine

PURPOSE:
  Exposes the monthly records of every kind via REST. Handles HTTP
  request/response, JSON serialization, and delegates to generic.Service.

ENDPOINTS (per kind, e.g. path "balances"):
  GET    /api/balances?year=YYYY              12 monthly records
  GET    /api/balances/summary?year=YYYY      Totals, net figure, breakdown
  GET    /api/balances/years                  Years with data, newest first

  PUT    /api/admin/balances/{year}/{month}   Override fields of one month
  PUT    /api/admin/balances/{year}           Bulk override {balances: [...]}
  POST   /api/admin/balances/{year}/{month}/reset

SOURCE INGESTION:
  POST   /api/admin/contributions             Record a contribution
  GET    /api/admin/contributions?year&month  List a month's contributions
  PUT    /api/admin/contributions/{id}/status Approve / reject / mark paid
  POST   /api/admin/credits                   Record an issued credit
  GET    /api/admin/credits?year&month        List a month's credits

ARCHITECTURE:
  Handler struct holds all dependencies:
  - One KindRoute (path + service) per record kind
  - SourceLedger for contributions and credits
  - Publisher for audit events (failures are logged, never returned)

REQUEST FLOW:
  1. Parse path/query/body
  2. Read the admin from context (admin routes only)
  3. Call the service
  4. Render with the kind's JSON names
  5. Map errors: 400 / 404 / 500

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - errors.go: Status mapping and envelope
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aneupi/finance-engine/events"
	"github.com/aneupi/finance-engine/generic"
	"github.com/aneupi/finance-engine/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// KindRoute binds a record kind's service to its URL segment.
type KindRoute struct {
	Path    string
	Service *generic.Service
}

// Pinger reports whether the database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators of a Handler. Kinds, Sources and Auth are
// required; the rest have working defaults.
type Deps struct {
	Kinds       []KindRoute
	Sources     generic.SourceLedger
	Auth        *Authenticator
	Limiter     *AdminLimiter
	Publisher   events.Publisher
	Metrics     *metrics.Metrics
	Health      Pinger
	Logger      *zap.Logger
	CORSOrigins []string
	Clock       func() time.Time
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	kinds     []KindRoute
	sources   generic.SourceLedger
	auth      *Authenticator
	limiter   *AdminLimiter
	publisher events.Publisher
	metrics   *metrics.Metrics
	health    Pinger
	logger    *zap.Logger
	origins   []string
	clock     func() time.Time
}

// NewHandler validates deps and fills in defaults.
func NewHandler(d Deps) (*Handler, error) {
	if len(d.Kinds) == 0 {
		return nil, errors.New("api: at least one kind route is required")
	}
	for _, kr := range d.Kinds {
		if kr.Path == "" || kr.Service == nil {
			return nil, fmt.Errorf("api: kind route %q needs a path and a service", kr.Path)
		}
	}
	if d.Sources == nil {
		return nil, errors.New("api: source ledger is required")
	}
	if d.Auth == nil {
		return nil, errors.New("api: authenticator is required")
	}

	h := &Handler{
		kinds:     d.Kinds,
		sources:   d.Sources,
		auth:      d.Auth,
		limiter:   d.Limiter,
		publisher: d.Publisher,
		metrics:   d.Metrics,
		health:    d.Health,
		logger:    d.Logger,
		origins:   d.CORSOrigins,
		clock:     d.Clock,
	}
	if h.limiter == nil {
		h.limiter = NewAdminLimiter(0, 1)
	}
	if h.publisher == nil {
		h.publisher = events.Nop{}
	}
	if h.logger == nil {
		h.logger = zap.NewNop()
	}
	h.logger = h.logger.Named("api")
	if len(h.origins) == 0 {
		h.origins = []string{"http://localhost:5173"}
	}
	if h.clock == nil {
		h.clock = func() time.Time { return time.Now().UTC() }
	}
	return h, nil
}

// =============================================================================
// KIND READS
// =============================================================================

// ListYear handles GET /api/{kind}?year=YYYY.
func (h *Handler) ListYear(kr KindRoute) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		year, err := h.queryYear(r)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		records, err := kr.Service.ByYear(r.Context(), year)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeYearData(w, year, recordDTOs(kr.Service.Kind(), records))
	}
}

// Summary handles GET /api/{kind}/summary?year=YYYY.
func (h *Handler) Summary(kr KindRoute) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		year, err := h.queryYear(r)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		summary, err := kr.Service.YearSummary(r.Context(), year)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeData(w, http.StatusOK, summaryDTO(kr.Service.Kind(), summary))
	}
}

// Years handles GET /api/{kind}/years.
func (h *Handler) Years(kr KindRoute) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		years, err := kr.Service.AvailableYears(r.Context())
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeData(w, http.StatusOK, years)
	}
}

// =============================================================================
// KIND ADMIN WRITES
// =============================================================================

// UpdateMonth handles PUT /api/admin/{kind}/{year}/{month}.
func (h *Handler) UpdateMonth(kr KindRoute) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		admin, ok := h.requireAdmin(w, r)
		if !ok {
			return
		}
		year, month, err := pathPeriod(r)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		body, err := decodeObject(r)
		if err != nil {
			h.fail(w, r, err)
			return
		}

		kind := kr.Service.Kind()
		update, err := parseFieldUpdate(kind, body)
		if err != nil {
			h.fail(w, r, err)
			return
		}

		rec, err := kr.Service.UpdateFields(r.Context(), year, month, update, admin)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		h.publish(r.Context(), events.NewFieldsOverridden(rec, updatedFields(kind, update), admin))

		writeData(w, http.StatusOK, recordDTO(kind, rec))
	}
}

// UpdateYear handles PUT /api/admin/{kind}/{year}. Entries with a month
// outside 1..12 are skipped; the response lists the records written.
func (h *Handler) UpdateYear(kr KindRoute) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		admin, ok := h.requireAdmin(w, r)
		if !ok {
			return
		}
		year, err := pathInt(r, "year", generic.ErrInvalidYear)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		body, err := decodeObject(r)
		if err != nil {
			h.fail(w, r, err)
			return
		}

		kind := kr.Service.Kind()
		updates, err := parseBulkUpdate(kind, body)
		if err != nil {
			h.fail(w, r, err)
			return
		}

		records, err := kr.Service.UpdateMultiple(r.Context(), year, updates, admin)
		if err != nil {
			h.fail(w, r, err)
			return
		}

		touched := make(map[int][]generic.FieldName, len(updates))
		for _, u := range updates {
			touched[u.Month] = updatedFields(kind, u.Update)
		}
		for _, rec := range records {
			h.publish(r.Context(), events.NewFieldsOverridden(rec, touched[rec.Month], admin))
		}

		writeYearData(w, year, recordDTOs(kind, records))
	}
}

// ResetMonth handles POST /api/admin/{kind}/{year}/{month}/reset.
func (h *Handler) ResetMonth(kr KindRoute) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		admin, ok := h.requireAdmin(w, r)
		if !ok {
			return
		}
		year, month, err := pathPeriod(r)
		if err != nil {
			h.fail(w, r, err)
			return
		}

		rec, err := kr.Service.ResetToAutoCalculated(r.Context(), year, month, admin)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		h.publish(r.Context(), events.NewRecordReset(rec, admin))

		writeData(w, http.StatusOK, recordDTO(kr.Service.Kind(), rec))
	}
}

// =============================================================================
// SOURCE INGESTION
// =============================================================================

// CreateContribution handles POST /api/admin/contributions.
func (h *Handler) CreateContribution(w http.ResponseWriter, r *http.Request) {
	var req ContributionRequest
	if err := decodeInto(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	c := generic.Contribution{
		ID:          req.ID,
		UserID:      req.UserID,
		Year:        req.Year,
		Month:       req.Month,
		AmountToPay: req.AmountToPay,
		AmountPaid:  req.AmountPaid,
		Status:      generic.ContributionStatus(req.Status),
		CreatedAt:   h.clock(),
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Status == "" {
		c.Status = generic.StatusPendiente
	}

	if err := h.sources.SaveContribution(r.Context(), c); err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, toContributionDTO(c))
}

// ListContributions handles GET /api/admin/contributions?year&month.
func (h *Handler) ListContributions(w http.ResponseWriter, r *http.Request) {
	period, err := queryPeriod(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	rows, err := h.sources.ListContributions(r.Context(), period.Year, period.Month)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]ContributionDTO, len(rows))
	for i, c := range rows {
		out[i] = toContributionDTO(c)
	}
	writeYearData(w, period.Year, out)
}

// SetContributionStatus handles PUT /api/admin/contributions/{id}/status.
func (h *Handler) SetContributionStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req StatusRequest
	if err := decodeInto(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	status := generic.ContributionStatus(req.Status)
	if err := h.sources.SetContributionStatus(r.Context(), id, status); err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]string{"id": id, "status": string(status)})
}

// CreateCredit handles POST /api/admin/credits.
func (h *Handler) CreateCredit(w http.ResponseWriter, r *http.Request) {
	var req CreditRequest
	if err := decodeInto(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	issued, err := time.Parse(dateLayout, strings.TrimSpace(req.IssuedAt))
	if err != nil {
		h.fail(w, r, generic.NewValidationError("issuedAt", "must be a date YYYY-MM-DD", generic.ErrInvalidSource))
		return
	}

	c := generic.Credit{
		ID:           req.ID,
		UserID:       req.UserID,
		MontoCredito: req.MontoCredito,
		IssuedAt:     issued,
		CreatedAt:    h.clock(),
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}

	if err := h.sources.SaveCredit(r.Context(), c); err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, toCreditDTO(c))
}

// ListCredits handles GET /api/admin/credits?year&month.
func (h *Handler) ListCredits(w http.ResponseWriter, r *http.Request) {
	period, err := queryPeriod(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	rows, err := h.sources.ListCredits(r.Context(), period)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]CreditDTO, len(rows))
	for i, c := range rows {
		out[i] = toCreditDTO(c)
	}
	writeYearData(w, period.Year, out)
}

// =============================================================================
// HEALTH
// =============================================================================

// Health handles GET /healthz.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.health.Ping(ctx); err != nil {
			h.logger.Warn("health check failed", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
	}
	writeData(w, http.StatusOK, HealthDTO{Status: "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) requireAdmin(w http.ResponseWriter, r *http.Request) (generic.AdminID, bool) {
	admin, ok := AdminFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, ErrMissingToken.Error())
		return 0, false
	}
	return admin, true
}

// publish sends an audit event. The write already happened, so a broker
// failure is only logged.
func (h *Handler) publish(ctx context.Context, e events.Event) {
	if err := h.publisher.Publish(ctx, e); err != nil {
		h.logger.Warn("audit event not published",
			zap.String("type", string(e.Type)),
			zap.String("kind", string(e.Kind)),
			zap.Int("year", e.Year),
			zap.Int("month", e.Month),
			zap.Error(err))
	}
}

// queryYear reads ?year=, defaulting to the current year.
func (h *Handler) queryYear(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("year")
	if raw == "" {
		return h.clock().Year(), nil
	}
	year, err := strconv.Atoi(raw)
	if err != nil {
		return 0, generic.NewValidationError("year", "must be an integer, got "+strconv.Quote(raw), generic.ErrInvalidYear)
	}
	if err := generic.ValidateYear(year); err != nil {
		return 0, err
	}
	return year, nil
}

// queryPeriod reads the required ?year=&month= pair.
func queryPeriod(r *http.Request) (generic.MonthPeriod, error) {
	q := r.URL.Query()
	year, err := strconv.Atoi(q.Get("year"))
	if err != nil {
		return generic.MonthPeriod{}, generic.NewValidationError("year", "must be an integer", generic.ErrInvalidYear)
	}
	month, err := strconv.Atoi(q.Get("month"))
	if err != nil {
		return generic.MonthPeriod{}, generic.NewValidationError("month", "must be an integer", generic.ErrInvalidMonth)
	}
	return generic.NewMonthPeriod(year, month)
}

func pathPeriod(r *http.Request) (int, int, error) {
	year, err := pathInt(r, "year", generic.ErrInvalidYear)
	if err != nil {
		return 0, 0, err
	}
	month, err := pathInt(r, "month", generic.ErrInvalidMonth)
	if err != nil {
		return 0, 0, err
	}
	if _, err := generic.NewMonthPeriod(year, month); err != nil {
		return 0, 0, err
	}
	return year, month, nil
}

func pathInt(r *http.Request, name string, sentinel error) (int, error) {
	raw := chi.URLParam(r, name)
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, generic.NewValidationError(name, "must be an integer, got "+strconv.Quote(raw), sentinel)
	}
	return n, nil
}

// decodeObject reads a JSON object body. An empty or non-object body is a
// client error.
func decodeObject(r *http.Request) (map[string]json.RawMessage, error) {
	var body map[string]json.RawMessage
	if err := decodeInto(r, &body); err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, generic.ErrEmptyUpdate
	}
	return body, nil
}

func decodeInto(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return generic.NewValidationError("body", "invalid JSON: "+err.Error(), generic.ErrInvalidSource)
	}
	return nil
}
