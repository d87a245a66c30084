/*
service.go - Query, summary and admin-write layer

PURPOSE:
  Service is what the API talks to. Reads always materialise the year
  first (EnsureYear) so a dashboard never sees a missing month. Admin
  writes go through the override ledger so the flags stay consistent.

OPERATIONS:
  ByYear                 12 records, month ascending
  YearSummary            Per-field totals, kind net figure, monthly breakdown
  AvailableYears         Distinct years descending; materialises the current
                         year when the store is empty
  UpdateFields           Admin edit of one month (sets override flags)
  ResetToAutoCalculated  Clears every flag and recomputes
  UpdateMultiple         Bulk edit; months outside 1..12 are skipped

SEE ALSO:
  - reconciler.go: Sync / EnsureYear
  - ledger.go: Override / ClearOverrides
*/
package generic

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Service exposes one kind to the API.
type Service struct {
	reconciler *Reconciler
	store      Store
	kind       Kind
	logger     *zap.Logger
	observer   Observer
	clock      func() time.Time
}

// NewService builds the reconciler and the query layer for kind.
func NewService(store Store, kind Kind, opts ...Option) *Service {
	o := buildOptions(opts)
	return &Service{
		reconciler: NewReconciler(store, kind, opts...),
		store:      store,
		kind:       kind,
		logger:     o.logger.Named("service").With(zap.String("kind", string(kind.ID))),
		observer:   o.observer,
		clock:      o.clock,
	}
}

// Kind returns the kind definition.
func (s *Service) Kind() Kind {
	return s.kind
}

// Reconciler exposes the underlying reconciler (scheduler, tests).
func (s *Service) Reconciler() *Reconciler {
	return s.reconciler
}

// =============================================================================
// READS
// =============================================================================

// ByYear returns the twelve monthly records of a year, month ascending.
func (s *Service) ByYear(ctx context.Context, year int) ([]Record, error) {
	if err := s.reconciler.EnsureYear(ctx, year); err != nil {
		return nil, err
	}
	records, err := s.store.ListRecords(ctx, s.kind.ID, year)
	if err != nil {
		return nil, fmt.Errorf("list %s %d: %w", s.kind.ID, year, err)
	}
	return records, nil
}

// YearSummary rolls the twelve months up. It has no side effects beyond
// the materialisation done by ByYear.
func (s *Service) YearSummary(ctx context.Context, year int) (YearSummary, error) {
	records, err := s.ByYear(ctx, year)
	if err != nil {
		return YearSummary{}, err
	}
	return Summarize(s.kind, year, records), nil
}

// Summarize computes totals and the net figure from already loaded records.
func Summarize(kind Kind, year int, records []Record) YearSummary {
	totals := make(map[FieldName]decimal.Decimal, len(kind.Fields))
	for _, f := range kind.Fields {
		totals[f.Name] = decimal.Zero
	}
	for _, rec := range records {
		for _, f := range kind.Fields {
			totals[f.Name] = totals[f.Name].Add(rec.Value(f.Name))
		}
	}
	return YearSummary{
		Year:   year,
		Kind:   kind.ID,
		Totals: totals,
		Net:    kind.NetOf(totals),
		Months: records,
	}
}

// AvailableYears lists the years with records, newest first. An empty store
// materialises the current year and reports only that.
func (s *Service) AvailableYears(ctx context.Context) ([]int, error) {
	years, err := s.store.ListYears(ctx, s.kind.ID)
	if err != nil {
		return nil, fmt.Errorf("list %s years: %w", s.kind.ID, err)
	}
	if len(years) > 0 {
		return years, nil
	}

	current := s.clock().Year()
	if err := s.reconciler.EnsureYear(ctx, current); err != nil {
		return nil, err
	}
	return []int{current}, nil
}

// =============================================================================
// ADMIN WRITES
// =============================================================================

// ValidateUpdate checks field names and amounts against the kind.
func (s *Service) ValidateUpdate(u FieldUpdate) error {
	if u.IsEmpty() {
		return ErrEmptyUpdate
	}
	for name, value := range u.Values {
		if _, ok := s.kind.Field(name); !ok {
			return NewValidationError(string(name), "not a field of "+string(s.kind.ID), ErrUnknownField)
		}
		if value.IsNegative() {
			return NewValidationError(s.jsonName(name), "must not be negative", ErrInvalidAmount)
		}
		if !value.Equal(RoundMoney(value)) {
			return NewValidationError(s.jsonName(name), "must have at most 2 decimal places", ErrInvalidAmount)
		}
	}
	return nil
}

// UpdateFields overrides the given fields of one month and stamps the admin.
func (s *Service) UpdateFields(ctx context.Context, year, month int, u FieldUpdate, admin AdminID) (Record, error) {
	if _, err := NewMonthPeriod(year, month); err != nil {
		return Record{}, err
	}
	if err := s.ValidateUpdate(u); err != nil {
		return Record{}, err
	}

	// Sync first so the untouched fields are fresh and the row exists.
	rec, err := s.reconciler.Sync(ctx, year, month)
	if err != nil {
		return Record{}, err
	}

	for _, f := range s.kind.Fields {
		value, ok := u.Values[f.Name]
		if !ok {
			continue
		}
		rec.Override(f.Name, value)
		s.observer.Overridden(s.kind.ID, f.Name)
	}
	if u.Notes != nil {
		notes := *u.Notes
		rec.AdminNotes = &notes
	}
	rec.LastModifiedAt = s.clock()
	rec.LastModifiedBy = &admin

	if err := s.store.UpsertRecord(ctx, rec); err != nil {
		return Record{}, fmt.Errorf("update %s %s: %w", s.kind.ID, rec.Period(), err)
	}

	s.logger.Info("fields overridden",
		zap.Stringer("period", rec.Period()),
		zap.Int64("admin_id", int64(admin)),
		zap.Int("fields", len(u.Values)))

	return s.reload(ctx, year, month)
}

// ResetToAutoCalculated clears every override flag of one month and stores
// the current calculated values.
func (s *Service) ResetToAutoCalculated(ctx context.Context, year, month int, admin AdminID) (Record, error) {
	period, err := NewMonthPeriod(year, month)
	if err != nil {
		return Record{}, err
	}

	calculated := s.reconciler.Calculate(ctx, period)

	existing, err := s.store.GetRecord(ctx, s.kind.ID, year, month)
	if err != nil {
		return Record{}, fmt.Errorf("reset %s %s: load record: %w", s.kind.ID, period, err)
	}
	rec := NewRecord(s.kind.ID, year, month)
	if existing != nil {
		rec = existing.Clone()
	}

	rec.ClearOverrides()
	rec.ApplyCalculated(s.kind, calculated)
	rec.LastModifiedAt = s.clock()
	rec.LastModifiedBy = &admin

	if err := s.store.UpsertRecord(ctx, rec); err != nil {
		return Record{}, fmt.Errorf("reset %s %s: %w", s.kind.ID, period, err)
	}

	s.observer.Reset(s.kind.ID)
	s.logger.Info("record reset to calculated values",
		zap.Stringer("period", period),
		zap.Int64("admin_id", int64(admin)))

	return s.reload(ctx, year, month)
}

// UpdateMultiple applies UpdateFields to each entry whose month is 1..12.
// Entries with any other month, and entries that change nothing, are
// skipped without error. All applicable entries are validated before the
// first write.
func (s *Service) UpdateMultiple(ctx context.Context, year int, updates []MonthUpdate, admin AdminID) ([]Record, error) {
	if err := ValidateYear(year); err != nil {
		return nil, err
	}

	var apply []MonthUpdate
	for _, mu := range updates {
		if ValidateMonth(mu.Month) != nil {
			s.logger.Debug("bulk update entry skipped", zap.Int("month", mu.Month))
			continue
		}
		if mu.Update.IsEmpty() {
			continue
		}
		if err := s.ValidateUpdate(mu.Update); err != nil {
			return nil, fmt.Errorf("month %d: %w", mu.Month, err)
		}
		apply = append(apply, mu)
	}

	results := make([]Record, 0, len(apply))
	for _, mu := range apply {
		rec, err := s.UpdateFields(ctx, year, mu.Month, mu.Update, admin)
		if err != nil {
			return nil, err
		}
		results = append(results, rec)
	}
	return results, nil
}

func (s *Service) reload(ctx context.Context, year, month int) (Record, error) {
	rec, err := s.store.GetRecord(ctx, s.kind.ID, year, month)
	if err != nil {
		return Record{}, fmt.Errorf("reload %s %04d-%02d: %w", s.kind.ID, year, month, err)
	}
	if rec == nil {
		return Record{}, fmt.Errorf("%s %04d-%02d: %w", s.kind.ID, year, month, ErrRecordNotFound)
	}
	return *rec, nil
}

func (s *Service) jsonName(name FieldName) string {
	if f, ok := s.kind.Field(name); ok {
		return f.JSONName
	}
	return string(name)
}
