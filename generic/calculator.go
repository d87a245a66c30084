/*
calculator.go - Aggregate calculator

PURPOSE:
  Computes the automatic value of each field of a kind for one month from
  the transactional tables. Pure with respect to the records: it only reads
  sources through a SourceReader.

DEGRADATION POLICY:
  A failed source sum must not fail the dashboard. Field() reports the
  failure as an *AggregationError; All() substitutes zero for that field,
  logs a warning, notifies the observer, and still hands the errors back so
  the caller can see exactly what was degraded.

ROUNDING:
  sum * rate, rounded to cents. A source sum is fetched at most once per
  month even when several fields share it (earnings uses issued credits
  twice).

SEE ALSO:
  - kind.go: FieldDef (source, rate)
  - reconciler.go: The only caller of All()
*/
package generic

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Calculator evaluates field definitions against a SourceReader.
type Calculator struct {
	sources  SourceReader
	logger   *zap.Logger
	observer Observer
}

// NewCalculator creates a calculator. A nil logger or observer is replaced
// with a no-op.
func NewCalculator(sources SourceReader, logger *zap.Logger, observer Observer) *Calculator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if observer == nil {
		observer = NopObserver{}
	}
	return &Calculator{sources: sources, logger: logger, observer: observer}
}

// SourceSum returns the raw sum of a source for a month.
func (c *Calculator) SourceSum(ctx context.Context, source Source, period MonthPeriod) (decimal.Decimal, error) {
	switch source {
	case SourceApprovedContributions:
		return c.sources.SumApprovedContributions(ctx, period)
	case SourceIssuedCredits:
		return c.sources.SumIssuedCredits(ctx, period)
	default:
		return decimal.Zero, NewValidationError("source", string(source), ErrInvalidKind)
	}
}

// Field calculates one field. Errors are *AggregationError.
func (c *Calculator) Field(ctx context.Context, kind KindID, f FieldDef, period MonthPeriod) (decimal.Decimal, error) {
	sum, err := c.SourceSum(ctx, f.Source, period)
	if err != nil {
		return decimal.Zero, &AggregationError{Kind: kind, Field: f.Name, Period: period, Err: err}
	}
	return RoundMoney(sum.Mul(f.Rate)), nil
}

// All calculates every field of the kind. Failed fields are zero in the
// returned map and reported in errs.
func (c *Calculator) All(ctx context.Context, kind Kind, period MonthPeriod) (values map[FieldName]decimal.Decimal, errs []error) {
	values = make(map[FieldName]decimal.Decimal, len(kind.Fields))

	type sourceResult struct {
		sum decimal.Decimal
		err error
	}
	sums := make(map[Source]sourceResult, 2)

	for _, f := range kind.Fields {
		res, ok := sums[f.Source]
		if !ok {
			res.sum, res.err = c.SourceSum(ctx, f.Source, period)
			sums[f.Source] = res
		}

		if res.err != nil {
			aggErr := &AggregationError{Kind: kind.ID, Field: f.Name, Period: period, Err: res.err}
			c.logger.Warn("aggregation failed, using zero",
				zap.String("kind", string(kind.ID)),
				zap.String("field", string(f.Name)),
				zap.Stringer("period", period),
				zap.Error(res.err))
			c.observer.AggregationFailed(kind.ID, f.Name)
			values[f.Name] = decimal.Zero
			errs = append(errs, aggErr)
			continue
		}

		values[f.Name] = RoundMoney(res.sum.Mul(f.Rate))
	}

	return values, errs
}
