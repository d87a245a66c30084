package generic

import (
	"fmt"
	"time"
)

// =============================================================================
// MONTH PERIOD - The unit every aggregate is computed for
// =============================================================================

// Year bounds accepted by the API and the engine.
const (
	MinYear = 2020
	MaxYear = 2050
)

var monthNames = [...]string{
	"Enero", "Febrero", "Marzo", "Abril", "Mayo", "Junio",
	"Julio", "Agosto", "Septiembre", "Octubre", "Noviembre", "Diciembre",
}

// MonthPeriod identifies one calendar month.
//
// Source rows are matched with the half-open range [Start, End), so a credit
// issued on the last day of March at 23:59 belongs to March and one issued
// on April 1st belongs to April.
type MonthPeriod struct {
	Year  int
	Month int
}

// NewMonthPeriod validates and builds a period.
func NewMonthPeriod(year, month int) (MonthPeriod, error) {
	p := MonthPeriod{Year: year, Month: month}
	if err := p.Validate(); err != nil {
		return MonthPeriod{}, err
	}
	return p, nil
}

// Validate checks the year and month bounds.
func (p MonthPeriod) Validate() error {
	if err := ValidateYear(p.Year); err != nil {
		return err
	}
	return ValidateMonth(p.Month)
}

// Start is the first instant of the month (UTC).
func (p MonthPeriod) Start() time.Time {
	return time.Date(p.Year, time.Month(p.Month), 1, 0, 0, 0, 0, time.UTC)
}

// End is the first instant of the following month (exclusive bound).
func (p MonthPeriod) End() time.Time {
	return p.Start().AddDate(0, 1, 0)
}

// Contains reports whether t falls inside [Start, End).
func (p MonthPeriod) Contains(t time.Time) bool {
	t = t.UTC()
	return !t.Before(p.Start()) && t.Before(p.End())
}

// Name returns the Spanish month name used by the dashboards.
func (p MonthPeriod) Name() string {
	return MonthName(p.Month)
}

func (p MonthPeriod) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}

// MonthName returns the Spanish name for month 1..12, or "" when out of range.
func MonthName(month int) string {
	if month < 1 || month > 12 {
		return ""
	}
	return monthNames[month-1]
}

// YearMonths returns the twelve periods of a year in ascending order.
func YearMonths(year int) []MonthPeriod {
	months := make([]MonthPeriod, 12)
	for i := range months {
		months[i] = MonthPeriod{Year: year, Month: i + 1}
	}
	return months
}

// ValidateYear enforces [MinYear, MaxYear].
func ValidateYear(year int) error {
	if year < MinYear || year > MaxYear {
		return &ValidationError{
			Field:  "year",
			Reason: fmt.Sprintf("must be between %d and %d, got %d", MinYear, MaxYear, year),
			err:    ErrInvalidYear,
		}
	}
	return nil
}

// ValidateMonth enforces [1, 12].
func ValidateMonth(month int) error {
	if month < 1 || month > 12 {
		return &ValidationError{
			Field:  "month",
			Reason: fmt.Sprintf("must be between 1 and 12, got %d", month),
			err:    ErrInvalidMonth,
		}
	}
	return nil
}
