// Package store provides Store implementations.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aneupi/finance-engine/generic"
	"github.com/shopspring/decimal"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements generic.Store in process memory.
type Memory struct {
	mu            sync.RWMutex
	records       map[key]generic.Record
	contributions []generic.Contribution
	credits       []generic.Credit
	failures      map[generic.Source]error
}

type key struct {
	Kind  generic.KindID
	Year  int
	Month int
}

var (
	_ generic.Store        = (*Memory)(nil)
	_ generic.SourceLedger = (*Memory)(nil)
)

func NewMemory() *Memory {
	return &Memory{
		records:  make(map[key]generic.Record),
		failures: make(map[generic.Source]error),
	}
}

// =============================================================================
// RECORD STORE
// =============================================================================

func (m *Memory) GetRecord(_ context.Context, kind generic.KindID, year, month int) (*generic.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[key{Kind: kind, Year: year, Month: month}]
	if !ok {
		return nil, nil
	}
	out := rec.Clone()
	return &out, nil
}

func (m *Memory) UpsertRecord(_ context.Context, rec generic.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records[key{Kind: rec.Kind, Year: rec.Year, Month: rec.Month}] = rec.Clone()
	return nil
}

func (m *Memory) ListRecords(_ context.Context, kind generic.KindID, year int) ([]generic.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []generic.Record
	for k, rec := range m.records {
		if k.Kind == kind && k.Year == year {
			result = append(result, rec.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Month < result[j].Month })
	return result, nil
}

func (m *Memory) ListYears(_ context.Context, kind generic.KindID) ([]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[int]bool)
	var years []int
	for k := range m.records {
		if k.Kind == kind && !seen[k.Year] {
			seen[k.Year] = true
			years = append(years, k.Year)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(years)))
	return years, nil
}

// =============================================================================
// SOURCE READER
// =============================================================================

func (m *Memory) SumApprovedContributions(_ context.Context, period generic.MonthPeriod) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.failures[generic.SourceApprovedContributions]; err != nil {
		return decimal.Zero, err
	}

	sum := decimal.Zero
	for _, c := range m.contributions {
		if c.Year == period.Year && c.Month == period.Month && c.Status == generic.StatusAprobado {
			sum = sum.Add(c.AmountToPay)
		}
	}
	return sum, nil
}

func (m *Memory) SumIssuedCredits(_ context.Context, period generic.MonthPeriod) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.failures[generic.SourceIssuedCredits]; err != nil {
		return decimal.Zero, err
	}

	sum := decimal.Zero
	for _, c := range m.credits {
		if period.Contains(c.IssuedAt) {
			sum = sum.Add(c.MontoCredito)
		}
	}
	return sum, nil
}

// =============================================================================
// SOURCE LEDGER
// =============================================================================

func (m *Memory) SaveContribution(_ context.Context, c generic.Contribution) error {
	if err := c.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.contributions {
		if m.contributions[i].ID == c.ID {
			m.contributions[i] = c
			return nil
		}
	}
	m.contributions = append(m.contributions, c)
	return nil
}

func (m *Memory) SetContributionStatus(_ context.Context, id string, status generic.ContributionStatus) error {
	if !status.Valid() {
		return generic.NewValidationError("status", string(status), generic.ErrInvalidStatus)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.contributions {
		if m.contributions[i].ID == id {
			m.contributions[i].Status = status
			return nil
		}
	}
	return fmt.Errorf("%s: %w", id, generic.ErrContributionNotFound)
}

func (m *Memory) ListContributions(_ context.Context, year, month int) ([]generic.Contribution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []generic.Contribution
	for _, c := range m.contributions {
		if c.Year == year && c.Month == month {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *Memory) SaveCredit(_ context.Context, c generic.Credit) error {
	if err := c.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.credits {
		if m.credits[i].ID == c.ID {
			m.credits[i] = c
			return nil
		}
	}
	m.credits = append(m.credits, c)
	return nil
}

func (m *Memory) ListCredits(_ context.Context, period generic.MonthPeriod) ([]generic.Credit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []generic.Credit
	for _, c := range m.credits {
		if period.Contains(c.IssuedAt) {
			out = append(out, c)
		}
	}
	return out, nil
}

// =============================================================================
// TEST HELPERS
// =============================================================================

// AddContribution appends a contribution row without validation.
func (m *Memory) AddContribution(c generic.Contribution) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contributions = append(m.contributions, c)
}

// AddCredit appends a credit row without validation.
func (m *Memory) AddCredit(c generic.Credit) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.credits = append(m.credits, c)
}

// FailSource makes every sum over source return err until cleared with nil.
func (m *Memory) FailSource(source generic.Source, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, source)
		return
	}
	m.failures[source] = err
}

// RecordCount returns the number of materialised records of a kind.
func (m *Memory) RecordCount(kind generic.KindID) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for k := range m.records {
		if k.Kind == kind {
			n++
		}
	}
	return n
}
