/*
accrual.go - Interest-period derivation

PURPOSE:
  Reconstructs, for one invoice and an as-of date, the chronological
  sequence of interest periods implied by its assignment history. Each
  period is a maximal span during which the outstanding principal was
  constant; assignment dates are the partition boundaries.

ALGORITHM:
  1. Interest starts at issue_date + grace days.
  2. Assignments dated on or before the start reduce the effective
     principal the first period opens with (a payment applied before
     interest begins never accrues against).
  3. Remaining assignment dates, sorted by (date, id) for determinism,
     partition [start, as_of). Boundaries past as_of are discarded.
  4. Each span [a, b) accrues AccrualFactor(principal at a, a, b).
  5. Accrual stops early when the principal reaches zero: the last period
     ends at the zeroing assignment date, not as_of.

  The result is deterministic and idempotent: recomputing with unchanged
  assignments yields identical periods.

CONTRACT:
  Periods never overlap, never gap, and their principals are
  non-increasing for a normally-paying invoice. The final period has a
  nil End only when it runs through as_of and the invoice still owes.
*/
package ledger

import (
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// INTEREST PERIOD
// =============================================================================

// InterestPeriod is a span [Start, End) during which the invoice's
// outstanding principal was constant. End is nil for the open-ended final
// period, which accrues through the ledger's as-of date.
type InterestPeriod struct {
	Start     Date
	End       *Date
	Days      int
	Principal decimal.Decimal
	Interest  decimal.Decimal
}

// EndsAt returns the concrete end of the period given the as-of date the
// periods were computed for.
func (p InterestPeriod) EndsAt(asOf Date) Date {
	if p.End != nil {
		return *p.End
	}
	return asOf
}

// =============================================================================
// PERIOD COMPUTATION
// =============================================================================

// ComputeInterestPeriods partitions the invoice's accrual timeline at its
// assignment dates and prices each span with the rate policy. The
// assignments slice must contain exactly the assignments referencing this
// invoice; order does not matter.
func ComputeInterestPeriods(inv *Invoice, assignments []*Assignment, cfg RateConfig, asOf Date) ([]InterestPeriod, error) {
	start := inv.IssueDate.AddDays(cfg.GraceDays)
	if asOf.BeforeOrEqual(start) {
		// Still inside the grace window (or asked about the past): nothing
		// has accrued yet.
		return nil, nil
	}

	sorted := make([]*Assignment, len(assignments))
	copy(sorted, assignments)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].Date.Equal(sorted[j].Date) {
			return sorted[i].Date.Before(sorted[j].Date)
		}
		return sorted[i].ID < sorted[j].ID
	})

	// Assignments at or before the accrual start reduce the opening
	// principal instead of creating a boundary.
	principal := inv.OriginalAmount
	boundaries := sorted[:0:0]
	for _, a := range sorted {
		if a.Date.BeforeOrEqual(start) {
			principal = principal.Sub(a.Amount)
			continue
		}
		boundaries = append(boundaries, a)
	}

	var periods []InterestPeriod
	cursor := start

	appendPeriod := func(end Date) error {
		if cursor.AfterOrEqual(end) || !principal.IsPositive() {
			return nil
		}
		interest, err := cfg.AccrualFactor(principal, cursor, end)
		if err != nil {
			return err
		}
		endCopy := end
		periods = append(periods, InterestPeriod{
			Start:     cursor,
			End:       &endCopy,
			Days:      DaysBetween(cursor, end),
			Principal: principal,
			Interest:  interest,
		})
		return nil
	}

	for _, a := range boundaries {
		if a.Date.After(asOf) {
			break // clamped: boundaries past as_of are discarded
		}
		if err := appendPeriod(a.Date); err != nil {
			return nil, err
		}
		principal = principal.Sub(a.Amount)
		if a.Date.After(cursor) {
			cursor = a.Date
		}
		if !principal.IsPositive() {
			// Fully paid (or overpaid) before as_of: the timeline ends at
			// the date the balance reached zero.
			return periods, nil
		}
	}

	if err := appendPeriod(asOf); err != nil {
		return nil, err
	}

	// The trailing period runs through as_of with the invoice still owing:
	// it is open-ended.
	if n := len(periods); n > 0 && periods[n-1].End.Equal(asOf) && principal.IsPositive() {
		periods[n-1].End = nil
	}

	return periods, nil
}

// TotalInterest sums the periods' interest at full precision.
func TotalInterest(periods []InterestPeriod) decimal.Decimal {
	total := decimal.Zero
	for _, p := range periods {
		total = total.Add(p.Interest)
	}
	return total
}
