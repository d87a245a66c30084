/*
store.go - Persistence interfaces for monthly records and their sources

PURPOSE:
  Defines the interface between the reconciliation engine and the database.
  The engine never builds queries; it asks for sums and for records.

KEY INTERFACES:
  RecordStore:  Materialised monthly records (read, upsert, list)
  SourceReader: Read-only sums over the transactional tables
  Store:        Both, as implemented by sqlite.Store and store.Memory

UPSERT CONTRACT:
  UpsertRecord writes the record header and every field atomically and
  creates the row when missing. Records are never deleted.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite with golang-migrate schema
  - generic/store/memory.go: In-memory for testing

SEE ALSO:
  - reconciler.go: Main consumer
  - calculator.go: Consumer of SourceReader
*/
package generic

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// RECORD STORE
// =============================================================================

// RecordStore persists monthly records.
type RecordStore interface {
	// GetRecord returns the record, or (nil, nil) when it was never materialised.
	GetRecord(ctx context.Context, kind KindID, year, month int) (*Record, error)

	// UpsertRecord creates or replaces the record and all its fields.
	UpsertRecord(ctx context.Context, rec Record) error

	// ListRecords returns the materialised records of a year, month ascending.
	ListRecords(ctx context.Context, kind KindID, year int) ([]Record, error)

	// ListYears returns the distinct years with at least one record, descending.
	ListYears(ctx context.Context, kind KindID) ([]int, error)
}

// =============================================================================
// SOURCE READER
// =============================================================================

// SourceReader aggregates the transactional tables. Read-only.
type SourceReader interface {
	// SumApprovedContributions sums amount_to_pay of contributions for the
	// period's (year, month) whose status is Aprobado.
	SumApprovedContributions(ctx context.Context, period MonthPeriod) (decimal.Decimal, error)

	// SumIssuedCredits sums monto_credito of credits issued in [Start, End).
	SumIssuedCredits(ctx context.Context, period MonthPeriod) (decimal.Decimal, error)
}

// Store is the full persistence surface the engine needs.
type Store interface {
	RecordStore
	SourceReader
}

// =============================================================================
// OBSERVER - Metrics hooks
// =============================================================================

// Observer receives engine events. The metrics package provides the
// Prometheus implementation; NopObserver is the default.
type Observer interface {
	Synced(kind KindID)
	AggregationFailed(kind KindID, field FieldName)
	Overridden(kind KindID, field FieldName)
	Reset(kind KindID)
}

// NopObserver discards every event.
type NopObserver struct{}

func (NopObserver) Synced(KindID)                       {}
func (NopObserver) AggregationFailed(KindID, FieldName) {}
func (NopObserver) Overridden(KindID, FieldName)        {}
func (NopObserver) Reset(KindID)                        {}
