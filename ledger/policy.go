/*
policy.go - Rate policy: nominal rate + conventions → accrued interest

PURPOSE:
  Converts a configured nominal rate (annual or monthly, simple or
  monthly-compounding) into the interest accrued on a principal over a
  date span. Pure function of configuration; the accrual engine calls
  AccrualFactor once per interest period.

SPLIT INVARIANCE:
  Payment assignments can fall mid-month, so the monthly-compound policy
  must produce identical results whether applied to one long span or the
  same span split at arbitrary boundaries (carrying the compounded
  principal forward). This holds because interest is
  P * ((1+m)^n - 1) with n measured in fractional months derived from an
  additive day count: n(a,c) = n(a,b) + n(b,c) exactly, so the growth
  factors compose.

DAY COUNTS:
  actual/365  days / 365
  actual/360  days / 360
  30/360      European style: each date maps to an index
              360y + 30(m-1) + min(d,30); the fraction is the index
              difference over 360, which keeps it exactly additive.
*/
package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CONFIGURATION
// =============================================================================

type RateBasis string

const (
	RateBasisAnnual  RateBasis = "annual"
	RateBasisMonthly RateBasis = "monthly"
)

type Compounding string

const (
	CompoundingSimple  Compounding = "simple"
	CompoundingMonthly Compounding = "monthly_compound"
)

type DayCount string

const (
	DayCountActual365 DayCount = "actual/365"
	DayCountActual360 DayCount = "actual/360"
	DayCount30360     DayCount = "30/360"
)

// RateConfig is the active accrual convention for a ledger.
type RateConfig struct {
	Basis       RateBasis
	Compounding Compounding
	DayCount    DayCount

	// Rate is the nominal rate for the configured basis: 0.18 means 18%/year
	// under RateBasisAnnual, 1.5%/month under RateBasisMonthly at 0.015.
	Rate decimal.Decimal

	// GraceDays shifts the accrual start: interest begins at
	// issue_date + GraceDays. Assignments inside the grace window reduce
	// the principal the first period starts with.
	GraceDays int
}

// DefaultRateConfig mirrors the conventional terms this system ships with:
// 1.5% per month, compounded monthly, 30 days grace.
func DefaultRateConfig() RateConfig {
	return RateConfig{
		Basis:       RateBasisMonthly,
		Compounding: CompoundingMonthly,
		DayCount:    DayCountActual365,
		Rate:        decimal.NewFromFloat(0.015),
		GraceDays:   30,
	}
}

var (
	decTwelve = decimal.NewFromInt(12)
	dec365    = decimal.NewFromInt(365)
	dec360    = decimal.NewFromInt(360)
	decOne    = decimal.NewFromInt(1)
)

// powPrecision bounds the fractional-exponent expansion used for
// monthly compounding. 24 digits keeps split-invariance well below any
// representable cent on realistic principals.
const powPrecision = 24

// AnnualRate returns the nominal rate expressed per year.
func (c RateConfig) AnnualRate() decimal.Decimal {
	if c.Basis == RateBasisMonthly {
		return c.Rate.Mul(decTwelve)
	}
	return c.Rate
}

// MonthlyRate returns the nominal rate expressed per month.
func (c RateConfig) MonthlyRate() decimal.Decimal {
	if c.Basis == RateBasisMonthly {
		return c.Rate
	}
	return c.Rate.Div(decTwelve)
}

// Validate rejects unknown convention names and negative rates.
func (c RateConfig) Validate() error {
	switch c.Basis {
	case RateBasisAnnual, RateBasisMonthly:
	default:
		return fmt.Errorf("rate_basis %q: %w", string(c.Basis), ErrMalformedSnapshot)
	}
	switch c.Compounding {
	case CompoundingSimple, CompoundingMonthly:
	default:
		return fmt.Errorf("compounding %q: %w", string(c.Compounding), ErrMalformedSnapshot)
	}
	switch c.DayCount {
	case DayCountActual365, DayCountActual360, DayCount30360:
	default:
		return fmt.Errorf("day_count %q: %w", string(c.DayCount), ErrMalformedSnapshot)
	}
	if c.Rate.IsNegative() {
		return &AmountError{Field: "rate", Value: c.Rate}
	}
	if c.GraceDays < 0 {
		return fmt.Errorf("grace_days %d: %w", c.GraceDays, ErrMalformedSnapshot)
	}
	return nil
}

// =============================================================================
// ACCRUAL FACTOR
// =============================================================================

// AccrualFactor returns the interest accrued on principal over [start, end)
// under the configured convention. A zero-length span yields zero interest;
// end before start is a contract violation.
func (c RateConfig) AccrualFactor(principal decimal.Decimal, start, end Date) (decimal.Decimal, error) {
	if end.Before(start) {
		return decimal.Zero, &PeriodError{Start: start, End: end}
	}
	if start.Equal(end) || !principal.IsPositive() {
		return decimal.Zero, nil
	}

	yearFrac := c.yearFraction(start, end)

	if c.Compounding == CompoundingMonthly {
		// A = P(1+m)^n; interest = A - P. n is in fractional months so an
		// assignment mid-month compounds exactly like a month boundary.
		months := yearFrac.Mul(decTwelve)
		growth, err := decOne.Add(c.MonthlyRate()).PowWithPrecision(months, powPrecision)
		if err != nil {
			return decimal.Zero, err
		}
		return principal.Mul(growth.Sub(decOne)), nil
	}

	return principal.Mul(c.AnnualRate()).Mul(yearFrac), nil
}

// yearFraction returns the day-count fraction of a year covered by
// [start, end). Every convention here is additive across split points.
func (c RateConfig) yearFraction(start, end Date) decimal.Decimal {
	switch c.DayCount {
	case DayCountActual360:
		return decimal.NewFromInt(int64(DaysBetween(start, end))).Div(dec360)
	case DayCount30360:
		return decimal.NewFromInt(int64(dayIndex360(end) - dayIndex360(start))).Div(dec360)
	default:
		return decimal.NewFromInt(int64(DaysBetween(start, end))).Div(dec365)
	}
}

// dayIndex360 maps a date onto the 30/360 number line.
func dayIndex360(d Date) int {
	day := d.Day()
	if day > 30 {
		day = 30
	}
	return d.Year()*360 + (int(d.Month())-1)*30 + day
}
