/*
errors.go - Centralized error types for the accrual engine

PURPOSE:
  All error kinds in one place for consistency and discoverability.
  Callers match on the sentinels with errors.Is and recover detail from
  the structured types with errors.As.

CONTRACT:
  Mutating operations validate everything before writing any field: on
  error the ledger is exactly as it was before the call. Recoverable
  business outcomes (overpayment, retroactive assignment) are modeled as
  valid states with a flag, never as errors.

SEE ALSO:
  - assign.go: raises the assignment-constraint errors
  - policy.go: raises ErrInvalidPeriod
  - snapshot.go: raises ErrMalformedSnapshot
*/
package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidPeriod is returned when an accrual span ends before it starts.
	ErrInvalidPeriod = errors.New("invalid period: end before start")

	// ErrInsufficientUnassignedFunds is returned when an assignment exceeds
	// the payment's unassigned amount.
	ErrInsufficientUnassignedFunds = errors.New("insufficient unassigned funds")

	// ErrUnknownEntity is returned when a referenced invoice, payment, or
	// assignment id does not exist in the ledger.
	ErrUnknownEntity = errors.New("unknown entity")

	// ErrNegativeOrZeroAmount is returned when an amount constraint is violated.
	ErrNegativeOrZeroAmount = errors.New("amount must be positive")

	// ErrAssignmentBeforeIssue is returned when an assignment is dated before
	// the invoice's issue date. An invoice cannot be paid before it exists.
	// (Dating an assignment before the payment's received date is NOT an
	// error; see Assignment.Retroactive.)
	ErrAssignmentBeforeIssue = errors.New("assignment predates invoice issue date")

	// ErrMalformedSnapshot is returned when an input snapshot fails eager
	// validation at the construction boundary.
	ErrMalformedSnapshot = errors.New("malformed snapshot")

	// ErrDuplicateEntity is returned when registering an invoice, payment,
	// or assignment under an id that already exists. Silent replacement
	// would detach derived totals from the assignment history.
	ErrDuplicateEntity = errors.New("duplicate entity id")
)

// =============================================================================
// STRUCTURED ERRORS - Carry the offending entity ids
// =============================================================================

// PeriodError reports an accrual span whose end precedes its start.
type PeriodError struct {
	Start Date
	End   Date
}

func (e *PeriodError) Error() string {
	return fmt.Sprintf("invalid period: end %s before start %s", e.End, e.Start)
}

func (e *PeriodError) Unwrap() error { return ErrInvalidPeriod }

// InsufficientFundsError reports an assignment exceeding a payment's
// unassigned pool.
type InsufficientFundsError struct {
	PaymentID  PaymentID
	Requested  decimal.Decimal
	Unassigned decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("payment %s: requested %v exceeds unassigned %v",
		e.PaymentID, e.Requested, e.Unassigned)
}

func (e *InsufficientFundsError) Unwrap() error { return ErrInsufficientUnassignedFunds }

// UnknownEntityError reports a dangling reference.
type UnknownEntityError struct {
	Kind string // "invoice", "payment", "assignment"
	ID   string
}

func (e *UnknownEntityError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *UnknownEntityError) Unwrap() error { return ErrUnknownEntity }

// DuplicateEntityError reports an id collision on registration.
type DuplicateEntityError struct {
	Kind string // "invoice", "payment", "assignment"
	ID   string
}

func (e *DuplicateEntityError) Error() string {
	return fmt.Sprintf("%s %s already exists", e.Kind, e.ID)
}

func (e *DuplicateEntityError) Unwrap() error { return ErrDuplicateEntity }

// AmountError reports a non-positive amount where a positive one is required.
type AmountError struct {
	Field string
	Value decimal.Decimal
}

func (e *AmountError) Error() string {
	return fmt.Sprintf("%s must be positive, got %v", e.Field, e.Value)
}

func (e *AmountError) Unwrap() error { return ErrNegativeOrZeroAmount }

// BeforeIssueError reports an assignment dated before its invoice existed.
type BeforeIssueError struct {
	InvoiceID      InvoiceID
	IssueDate      Date
	AssignmentDate Date
}

func (e *BeforeIssueError) Error() string {
	return fmt.Sprintf("invoice %s: assignment date %s precedes issue date %s",
		e.InvoiceID, e.AssignmentDate, e.IssueDate)
}

func (e *BeforeIssueError) Unwrap() error { return ErrAssignmentBeforeIssue }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrInsufficientUnassignedFunds) ||
		errors.Is(err, ErrNegativeOrZeroAmount) ||
		errors.Is(err, ErrAssignmentBeforeIssue) ||
		errors.Is(err, ErrMalformedSnapshot) ||
		errors.Is(err, ErrDuplicateEntity)
}

// IsNotFound returns true if the error indicates a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrUnknownEntity)
}
