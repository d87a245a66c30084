/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements generic.Store (monthly records + source sums) and
  generic.SourceLedger (contribution and credit ingestion) on SQLite.

INTERFACES IMPLEMENTED:
  generic.RecordStore:  Materialised monthly records and override flags
  generic.SourceReader: Sums over contributions and credits
  generic.SourceLedger: Writes and listings of contributions and credits

KEY TABLES:
  contributions:         Monthly shareholder contributions with status
  credits:               Issued credit forms (issued_at is YYYY-MM-DD)
  monthly_records:       One row per (kind, year, month) with audit columns
  monthly_record_fields: Value + overridden flag per field

MONEY:
  Amounts are stored as decimal strings and summed in Go with
  shopspring/decimal. SQLite's SUM() would go through float64.

UPSERT:
  UpsertRecord writes the header and every field in one SQL transaction
  with ON CONFLICT DO UPDATE, so a reader never sees a header without its
  fields.

SCHEMA:
  Managed by golang-migrate with migrations embedded from migrations/*.sql,
  applied in New().

WAL MODE:
  File databases are opened with WAL so dashboard reads do not block the
  nightly sync. ":memory:" databases are pinned to one connection since
  every connection would otherwise get its own empty database.

USAGE:
  store, err := sqlite.New("./aneupi.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := generic.NewService(store, balances.Kind())

SEE ALSO:
  - generic/store.go: Interface definitions
  - generic/store/memory.go: In-memory implementation for testing
  - migrate.go: Embedded migrations
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aneupi/finance-engine/generic"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// Store implements generic.Store and generic.SourceLedger using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var (
	_ generic.Store        = (*Store)(nil)
	_ generic.SourceLedger = (*Store)(nil)
)

// New creates a new SQLite store with the given database path and applies
// migrations. Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := Migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{db: db}, nil
}

// NewWithDB wraps an already open and migrated database.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// =============================================================================
// RECORD STORE (generic.RecordStore interface)
// =============================================================================

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// GetRecord returns the record or (nil, nil) when it does not exist.
func (s *Store) GetRecord(ctx context.Context, kind generic.KindID, year, month int) (*generic.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT admin_notes, last_modified_at, last_modified_by
		 FROM monthly_records WHERE kind = ? AND year = ? AND month = ?`,
		string(kind), year, month)

	rec := generic.NewRecord(kind, year, month)
	err := scanHeader(row, &rec)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load record: %w", err)
	}

	fields, err := s.loadFields(ctx,
		`SELECT month, field, value, overridden FROM monthly_record_fields
		 WHERE kind = ? AND year = ? AND month = ?`,
		string(kind), year, month)
	if err != nil {
		return nil, err
	}
	if f, ok := fields[month]; ok {
		rec.Fields = f
	}
	return &rec, nil
}

// UpsertRecord creates or replaces the header and every field atomically.
func (s *Store) UpsertRecord(ctx context.Context, rec generic.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := upsertHeader(ctx, sqlTx, rec); err != nil {
		return err
	}
	for name, fv := range rec.Fields {
		if err := upsertField(ctx, sqlTx, rec, name, fv); err != nil {
			return err
		}
	}

	return sqlTx.Commit()
}

func upsertHeader(ctx context.Context, db execer, rec generic.Record) error {
	query := `
		INSERT INTO monthly_records (kind, year, month, admin_notes, last_modified_at, last_modified_by)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(kind, year, month) DO UPDATE SET
			admin_notes = excluded.admin_notes,
			last_modified_at = excluded.last_modified_at,
			last_modified_by = excluded.last_modified_by
	`

	var notes sql.NullString
	if rec.AdminNotes != nil {
		notes = sql.NullString{String: *rec.AdminNotes, Valid: true}
	}
	var admin sql.NullInt64
	if rec.LastModifiedBy != nil {
		admin = sql.NullInt64{Int64: int64(*rec.LastModifiedBy), Valid: true}
	}

	_, err := db.ExecContext(ctx, query,
		string(rec.Kind), rec.Year, rec.Month,
		notes,
		rec.LastModifiedAt.UTC().Format(time.RFC3339),
		admin,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert record: %w", err)
	}
	return nil
}

func upsertField(ctx context.Context, db execer, rec generic.Record, name generic.FieldName, fv generic.FieldValue) error {
	query := `
		INSERT INTO monthly_record_fields (kind, year, month, field, value, overridden)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(kind, year, month, field) DO UPDATE SET
			value = excluded.value,
			overridden = excluded.overridden
	`

	_, err := db.ExecContext(ctx, query,
		string(rec.Kind), rec.Year, rec.Month, string(name),
		fv.Value.String(), boolToInt(fv.Overridden),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert field %s: %w", name, err)
	}
	return nil
}

// ListRecords returns the stored records of a year, month ascending.
func (s *Store) ListRecords(ctx context.Context, kind generic.KindID, year int) ([]generic.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT month, admin_notes, last_modified_at, last_modified_by
		 FROM monthly_records WHERE kind = ? AND year = ? ORDER BY month ASC`,
		string(kind), year)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	var records []generic.Record
	for rows.Next() {
		var month int
		var notes sql.NullString
		var modifiedAt string
		var admin sql.NullInt64
		if err := rows.Scan(&month, &notes, &modifiedAt, &admin); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		rec := generic.NewRecord(kind, year, month)
		applyHeader(&rec, notes, modifiedAt, admin)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	fields, err := s.loadFields(ctx,
		`SELECT month, field, value, overridden FROM monthly_record_fields
		 WHERE kind = ? AND year = ?`,
		string(kind), year)
	if err != nil {
		return nil, err
	}
	for i := range records {
		if f, ok := fields[records[i].Month]; ok {
			records[i].Fields = f
		}
	}
	return records, nil
}

// ListYears returns the distinct years with records, newest first.
func (s *Store) ListYears(ctx context.Context, kind generic.KindID) ([]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT year FROM monthly_records WHERE kind = ? ORDER BY year DESC`,
		string(kind))
	if err != nil {
		return nil, fmt.Errorf("failed to list years: %w", err)
	}
	defer rows.Close()

	var years []int
	for rows.Next() {
		var y int
		if err := rows.Scan(&y); err != nil {
			return nil, err
		}
		years = append(years, y)
	}
	return years, rows.Err()
}

func (s *Store) loadFields(ctx context.Context, query string, args ...any) (map[int]map[generic.FieldName]generic.FieldValue, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load fields: %w", err)
	}
	defer rows.Close()

	out := make(map[int]map[generic.FieldName]generic.FieldValue)
	for rows.Next() {
		var month, overridden int
		var field, value string
		if err := rows.Scan(&month, &field, &value, &overridden); err != nil {
			return nil, fmt.Errorf("failed to scan field: %w", err)
		}
		d, err := decimal.NewFromString(value)
		if err != nil {
			return nil, fmt.Errorf("corrupt value for %s in month %d: %w", field, month, err)
		}
		if out[month] == nil {
			out[month] = make(map[generic.FieldName]generic.FieldValue)
		}
		out[month][generic.FieldName(field)] = generic.FieldValue{Value: d, Overridden: overridden != 0}
	}
	return out, rows.Err()
}

func scanHeader(row *sql.Row, rec *generic.Record) error {
	var notes sql.NullString
	var modifiedAt string
	var admin sql.NullInt64
	if err := row.Scan(&notes, &modifiedAt, &admin); err != nil {
		return err
	}
	applyHeader(rec, notes, modifiedAt, admin)
	return nil
}

func applyHeader(rec *generic.Record, notes sql.NullString, modifiedAt string, admin sql.NullInt64) {
	if notes.Valid {
		n := notes.String
		rec.AdminNotes = &n
	}
	rec.LastModifiedAt, _ = time.Parse(time.RFC3339, modifiedAt)
	if admin.Valid {
		id := generic.AdminID(admin.Int64)
		rec.LastModifiedBy = &id
	}
}

// =============================================================================
// SOURCE READER (generic.SourceReader interface)
// =============================================================================

// SumApprovedContributions sums amount_to_pay of Aprobado contributions.
func (s *Store) SumApprovedContributions(ctx context.Context, period generic.MonthPeriod) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.sumColumn(ctx,
		`SELECT amount_to_pay FROM contributions WHERE year = ? AND month = ? AND status = ?`,
		period.Year, period.Month, string(generic.StatusAprobado))
}

// SumIssuedCredits sums monto_credito of credits issued in [Start, End).
func (s *Store) SumIssuedCredits(ctx context.Context, period generic.MonthPeriod) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.sumColumn(ctx,
		`SELECT monto_credito FROM credits WHERE issued_at >= ? AND issued_at < ?`,
		period.Start().Format(dateLayout), period.End().Format(dateLayout))
}

func (s *Store) sumColumn(ctx context.Context, query string, args ...any) (decimal.Decimal, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to query sum: %w", err)
	}
	defer rows.Close()

	sum := decimal.Zero
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return decimal.Zero, fmt.Errorf("failed to scan amount: %w", err)
		}
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return decimal.Zero, fmt.Errorf("corrupt amount %q: %w", raw, err)
		}
		sum = sum.Add(d)
	}
	if err := rows.Err(); err != nil {
		return decimal.Zero, err
	}
	return sum, nil
}

// =============================================================================
// SOURCE LEDGER (generic.SourceLedger interface)
// =============================================================================

// SaveContribution inserts or replaces a contribution.
func (s *Store) SaveContribution(ctx context.Context, c generic.Contribution) error {
	if err := c.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO contributions (id, user_id, year, month, amount_to_pay, amount_paid, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			year = excluded.year,
			month = excluded.month,
			amount_to_pay = excluded.amount_to_pay,
			amount_paid = excluded.amount_paid,
			status = excluded.status
	`

	_, err := s.db.ExecContext(ctx, query,
		c.ID, c.UserID, c.Year, c.Month,
		c.AmountToPay.String(), c.AmountPaid.String(),
		string(c.Status),
		createdAt(c.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save contribution: %w", err)
	}
	return nil
}

// SetContributionStatus moves a contribution to another status.
func (s *Store) SetContributionStatus(ctx context.Context, id string, status generic.ContributionStatus) error {
	if !status.Valid() {
		return generic.NewValidationError("status", string(status), generic.ErrInvalidStatus)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `UPDATE contributions SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("failed to update contribution status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", id, generic.ErrContributionNotFound)
	}
	return nil
}

// ListContributions returns every contribution of (year, month).
func (s *Store) ListContributions(ctx context.Context, year, month int) ([]generic.Contribution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, year, month, amount_to_pay, amount_paid, status, created_at
		 FROM contributions WHERE year = ? AND month = ? ORDER BY created_at, id`,
		year, month)
	if err != nil {
		return nil, fmt.Errorf("failed to list contributions: %w", err)
	}
	defer rows.Close()

	var result []generic.Contribution
	for rows.Next() {
		var c generic.Contribution
		var toPay, paid, status, created string
		if err := rows.Scan(&c.ID, &c.UserID, &c.Year, &c.Month, &toPay, &paid, &status, &created); err != nil {
			return nil, fmt.Errorf("failed to scan contribution: %w", err)
		}
		if c.AmountToPay, err = parseAmount("amount_to_pay", c.ID, toPay); err != nil {
			return nil, err
		}
		if c.AmountPaid, err = parseAmount("amount_paid", c.ID, paid); err != nil {
			return nil, err
		}
		c.Status = generic.ContributionStatus(status)
		c.CreatedAt, _ = time.Parse(time.RFC3339, created)
		result = append(result, c)
	}
	return result, rows.Err()
}

// SaveCredit inserts or replaces a credit form.
func (s *Store) SaveCredit(ctx context.Context, c generic.Credit) error {
	if err := c.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO credits (id, user_id, monto_credito, issued_at, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			monto_credito = excluded.monto_credito,
			issued_at = excluded.issued_at
	`

	_, err := s.db.ExecContext(ctx, query,
		c.ID, c.UserID, c.MontoCredito.String(),
		c.IssuedAt.UTC().Format(dateLayout),
		createdAt(c.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save credit: %w", err)
	}
	return nil
}

// ListCredits returns the credits issued inside the period.
func (s *Store) ListCredits(ctx context.Context, period generic.MonthPeriod) ([]generic.Credit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, monto_credito, issued_at, created_at
		 FROM credits WHERE issued_at >= ? AND issued_at < ? ORDER BY issued_at, id`,
		period.Start().Format(dateLayout), period.End().Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to list credits: %w", err)
	}
	defer rows.Close()

	var result []generic.Credit
	for rows.Next() {
		var c generic.Credit
		var monto, issued, created string
		if err := rows.Scan(&c.ID, &c.UserID, &monto, &issued, &created); err != nil {
			return nil, fmt.Errorf("failed to scan credit: %w", err)
		}
		if c.MontoCredito, err = parseAmount("monto_credito", c.ID, monto); err != nil {
			return nil, err
		}
		c.IssuedAt, _ = time.Parse(dateLayout, issued)
		c.CreatedAt, _ = time.Parse(time.RFC3339, created)
		result = append(result, c)
	}
	return result, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

// parseAmount decodes a TEXT money column of one source row.
func parseAmount(column, id, raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("corrupt %s for %s: %w", column, id, err)
	}
	return d, nil
}

// dsn appends the connection options, keeping any query string dbPath
// already carries.
func dsn(dbPath string) string {
	const opts = "_foreign_keys=on&_journal_mode=WAL"
	if strings.Contains(dbPath, "?") {
		return dbPath + "&" + opts
	}
	return dbPath + "?" + opts
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func createdAt(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(time.RFC3339)
}
