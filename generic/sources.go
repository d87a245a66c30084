package generic

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SOURCE ROWS - Transactional inputs, read-only to the engine
// =============================================================================

// ContributionStatus is the approval state of a monthly contribution.
type ContributionStatus string

const (
	StatusPendiente ContributionStatus = "Pendiente"
	StatusAprobado  ContributionStatus = "Aprobado"
	StatusRechazado ContributionStatus = "Rechazado"
	StatusPagado    ContributionStatus = "Pagado"
)

// Valid reports whether s is one of the four known statuses.
func (s ContributionStatus) Valid() bool {
	switch s {
	case StatusPendiente, StatusAprobado, StatusRechazado, StatusPagado:
		return true
	}
	return false
}

// Contribution is a shareholder's monthly contribution.
//
// Only AmountToPay of Aprobado rows counts toward totals; AmountPaid is
// kept for the member portal and is not aggregated.
type Contribution struct {
	ID          string
	UserID      int64
	Year        int
	Month       int
	AmountToPay decimal.Decimal
	AmountPaid  decimal.Decimal
	Status      ContributionStatus
	CreatedAt   time.Time
}

// Credit is an issued credit form. IssuedAt is a calendar date (UTC midnight).
type Credit struct {
	ID           string
	UserID       int64
	MontoCredito decimal.Decimal
	IssuedAt     time.Time
	CreatedAt    time.Time
}

// Validate checks a contribution before it is stored.
func (c Contribution) Validate() error {
	if c.ID == "" {
		return NewValidationError("id", "required", ErrInvalidSource)
	}
	if err := (MonthPeriod{Year: c.Year, Month: c.Month}).Validate(); err != nil {
		return err
	}
	if c.AmountToPay.IsNegative() {
		return NewValidationError("amountToPay", "must not be negative", ErrInvalidAmount)
	}
	if c.AmountPaid.IsNegative() {
		return NewValidationError("amountPaid", "must not be negative", ErrInvalidAmount)
	}
	if !c.Status.Valid() {
		return NewValidationError("status", string(c.Status), ErrInvalidStatus)
	}
	return nil
}

// Validate checks a credit before it is stored.
func (c Credit) Validate() error {
	if c.ID == "" {
		return NewValidationError("id", "required", ErrInvalidSource)
	}
	if c.IssuedAt.IsZero() {
		return NewValidationError("issuedAt", "required", ErrInvalidSource)
	}
	if !c.MontoCredito.IsPositive() {
		return NewValidationError("montoCredito", "must be positive", ErrInvalidAmount)
	}
	return nil
}

// =============================================================================
// SOURCE LEDGER - Ingestion of contributions and credits
// =============================================================================

// SourceLedger records the transactional rows the calculator aggregates.
type SourceLedger interface {
	SaveContribution(ctx context.Context, c Contribution) error
	SetContributionStatus(ctx context.Context, id string, status ContributionStatus) error
	ListContributions(ctx context.Context, year, month int) ([]Contribution, error)
	SaveCredit(ctx context.Context, c Credit) error
	ListCredits(ctx context.Context, period MonthPeriod) ([]Credit, error)
}
