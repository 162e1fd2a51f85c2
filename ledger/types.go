/*
Package ledger implements the invoice–payment interest accrual engine.

PURPOSE:
  This package contains the data model and algorithms for tracking money
  owed on interest-bearing invoices: applying payments (in whole or in
  part) against invoices, deriving the chronological interest periods an
  invoice accrued under, computing interest per period and in aggregate,
  and classifying invoice status.

KEY CONCEPTS IN THIS FILE (types.go):
  - Invoice: a billed amount accruing interest from its issue date
  - Payment: money received, splittable across invoices via assignments
  - Assignment: applies part of a payment to an invoice as of a date
  - InvoiceStatus: open/partial/paid/overpaid, a pure function of balance

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal for all money; comparisons are exact,
     never epsilon-tolerant
  2. Derived fields are recomputed from the assignment history, never
     stored as independent truth (conservation cannot drift)
  3. Pure computation: the engine performs no I/O; collaborators feed it
     snapshots and consume its derived output

SEE ALSO:
  - policy.go: rate policy and accrual-factor math
  - accrual.go: interest-period derivation
  - assign.go: payment assignment operations
  - ledger.go: the aggregate root and orchestration
*/
package ledger

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type InvoiceID string
type PaymentID string
type AssignmentID string

// =============================================================================
// MONEY HELPERS
// =============================================================================

// ParseMoney parses an exact decimal amount from its string form.
func ParseMoney(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}

// MustMoney parses an amount or panics. Test and fixture use only.
func MustMoney(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// RoundCents rounds half-up to two decimal places. Interest is carried at
// full precision internally; rounding happens only at the read boundary.
func RoundCents(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// =============================================================================
// INVOICE STATUS - pure function of balance vs original amount
// =============================================================================

type InvoiceStatus string

const (
	StatusOpen     InvoiceStatus = "open"     // no amount applied yet
	StatusPartial  InvoiceStatus = "partial"  // 0 < balance < original
	StatusPaid     InvoiceStatus = "paid"     // balance exactly zero
	StatusOverpaid InvoiceStatus = "overpaid" // assignments exceed original
)

// StatusFor classifies an invoice from its balance. There is no terminal
// state: removing an assignment can move an invoice backward (paid →
// partial), which is intentional — the ledger reflects current truth.
func StatusFor(balance, originalAmount decimal.Decimal) InvoiceStatus {
	switch {
	case balance.Equal(originalAmount):
		return StatusOpen
	case balance.IsZero():
		return StatusPaid
	case balance.IsNegative():
		return StatusOverpaid
	default:
		return StatusPartial
	}
}

// =============================================================================
// ENTITIES
// =============================================================================

// Invoice is a billed amount that accrues interest from its issue date
// until fully offset by assignments.
type Invoice struct {
	ID             InvoiceID
	IssueDate      Date
	Description    string
	OriginalAmount decimal.Decimal

	// Derived fields, recomputed by the engine. Never hand-edit:
	// TotalApplied is always the sum of assignment amounts referencing
	// this invoice, and Balance = OriginalAmount - TotalApplied.
	Status           InvoiceStatus
	TotalApplied     decimal.Decimal
	Balance          decimal.Decimal
	LastActivityDate *Date

	// Accrual cache, invalidated on any assignment change and rebuilt by
	// Recompute.
	Periods         []InterestPeriod
	AccruedInterest decimal.Decimal
}

// Payment is money received, which may be split across multiple invoices.
type Payment struct {
	ID           PaymentID
	ReceivedDate Date
	Description  string
	Amount       decimal.Decimal

	// Derived: AssignedAmount + UnassignedAmount = Amount, exactly.
	AssignedAmount   decimal.Decimal
	UnassignedAmount decimal.Decimal
}

// Assignment applies part or all of a payment to a specific invoice as of
// a specific date (the date interest stops for the assigned portion). The
// Assignment record is the sole source of truth for "how much of payment P
// went to invoice I and when"; invoice and payment derived fields are
// projections of it.
type Assignment struct {
	ID        AssignmentID
	PaymentID PaymentID
	InvoiceID InvoiceID
	Amount    decimal.Decimal
	Date      Date
	Notes     string

	// Retroactive flags an assignment dated before its payment was
	// received. Permitted (a payment may be applied retroactively) but
	// surfaced as a policy warning, not an error.
	Retroactive bool
}
