/*
ledger.go - The aggregate root and orchestration

PURPOSE:
  Ledger owns the invoice/payment/assignment maps, the active rate
  policy, and the as-of date for open-ended accrual. It is the single
  entry point collaborators hold: mutations go through the assignment
  operations (assign.go), then Recompute rebuilds derived state before
  any external read is trusted.

RECOMPUTE-BEFORE-READ:
  Derived fields (status, balance, interest periods, totals) are never
  stored as independent truth. Any assignment mutation invalidates the
  affected invoices; Recompute rebuilds them from the full assignment
  history. Recomputation is idempotent.

CONCURRENCY:
  The engine is single-threaded and synchronous. A hosting application
  serving concurrent requests must serialize mutations against a Ledger
  instance; reads must not interleave with a mutation or recompute.
*/
package ledger

import (
	"sort"
	"strconv"

	"github.com/shopspring/decimal"
)

// =============================================================================
// LEDGER - Aggregate root
// =============================================================================

// Ledger is the in-memory aggregate of one project's invoices, payments,
// and assignments, plus the active rate policy. Construct one from a
// Snapshot (snapshot.go) or empty via New.
type Ledger struct {
	invoices    map[InvoiceID]*Invoice
	payments    map[PaymentID]*Payment
	assignments map[AssignmentID]*Assignment

	config RateConfig
	asOf   Date

	// dirty tracks invoices whose accrual cache was invalidated by a
	// mutation and not yet rebuilt.
	dirty map[InvoiceID]bool
}

// New creates an empty ledger with the given rate policy and as-of date.
func New(cfg RateConfig, asOf Date) *Ledger {
	return &Ledger{
		invoices:    make(map[InvoiceID]*Invoice),
		payments:    make(map[PaymentID]*Payment),
		assignments: make(map[AssignmentID]*Assignment),
		config:      cfg,
		asOf:        asOf,
		dirty:       make(map[InvoiceID]bool),
	}
}

func (l *Ledger) Config() RateConfig { return l.config }
func (l *Ledger) AsOf() Date         { return l.asOf }

// SetConfig swaps the rate policy and invalidates every invoice's accrual.
func (l *Ledger) SetConfig(cfg RateConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	l.config = cfg
	l.invalidateAll()
	return nil
}

// SetAsOf moves the open-ended accrual horizon and invalidates every
// invoice's accrual.
func (l *Ledger) SetAsOf(asOf Date) {
	if asOf.Equal(l.asOf) {
		return
	}
	l.asOf = asOf
	l.invalidateAll()
}

func (l *Ledger) invalidateAll() {
	for id := range l.invoices {
		l.invalidate(id)
	}
}

func (l *Ledger) invalidate(id InvoiceID) {
	if inv, ok := l.invoices[id]; ok {
		inv.Periods = nil
		inv.AccruedInterest = decimal.Zero
		l.dirty[id] = true
	}
}

// =============================================================================
// ENTITY REGISTRATION AND LOOKUP
// =============================================================================

// AddInvoice registers a new invoice. The id must be unused and the amount
// positive; derived fields are initialized for the open state.
func (l *Ledger) AddInvoice(id InvoiceID, issueDate Date, description string, amount decimal.Decimal) (*Invoice, error) {
	if _, ok := l.invoices[id]; ok {
		return nil, &DuplicateEntityError{Kind: "invoice", ID: string(id)}
	}
	if !amount.IsPositive() {
		return nil, &AmountError{Field: "original_amount", Value: amount}
	}
	inv := &Invoice{
		ID:             id,
		IssueDate:      issueDate,
		Description:    description,
		OriginalAmount: amount,
		Status:         StatusOpen,
		TotalApplied:   decimal.Zero,
		Balance:        amount,
	}
	l.invoices[id] = inv
	l.dirty[id] = true
	return inv, nil
}

// AddPayment registers a new payment with its full amount unassigned. The
// id must be unused.
func (l *Ledger) AddPayment(id PaymentID, receivedDate Date, description string, amount decimal.Decimal) (*Payment, error) {
	if _, ok := l.payments[id]; ok {
		return nil, &DuplicateEntityError{Kind: "payment", ID: string(id)}
	}
	if !amount.IsPositive() {
		return nil, &AmountError{Field: "amount", Value: amount}
	}
	p := &Payment{
		ID:               id,
		ReceivedDate:     receivedDate,
		Description:      description,
		Amount:           amount,
		AssignedAmount:   decimal.Zero,
		UnassignedAmount: amount,
	}
	l.payments[id] = p
	return p, nil
}

// Invoice returns the invoice with the given id.
func (l *Ledger) Invoice(id InvoiceID) (*Invoice, error) {
	inv, ok := l.invoices[id]
	if !ok {
		return nil, &UnknownEntityError{Kind: "invoice", ID: string(id)}
	}
	return inv, nil
}

// Payment returns the payment with the given id.
func (l *Ledger) Payment(id PaymentID) (*Payment, error) {
	p, ok := l.payments[id]
	if !ok {
		return nil, &UnknownEntityError{Kind: "payment", ID: string(id)}
	}
	return p, nil
}

// Assignment returns the assignment with the given id.
func (l *Ledger) Assignment(id AssignmentID) (*Assignment, error) {
	a, ok := l.assignments[id]
	if !ok {
		return nil, &UnknownEntityError{Kind: "assignment", ID: string(id)}
	}
	return a, nil
}

// Invoices returns all invoices ordered by (issue date, id).
func (l *Ledger) Invoices() []*Invoice {
	out := make([]*Invoice, 0, len(l.invoices))
	for _, inv := range l.invoices {
		out = append(out, inv)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].IssueDate.Equal(out[j].IssueDate) {
			return out[i].IssueDate.Before(out[j].IssueDate)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Payments returns all payments ordered by (received date, id).
func (l *Ledger) Payments() []*Payment {
	out := make([]*Payment, 0, len(l.payments))
	for _, p := range l.payments {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ReceivedDate.Equal(out[j].ReceivedDate) {
			return out[i].ReceivedDate.Before(out[j].ReceivedDate)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Assignments returns all assignments ordered by (date, id).
func (l *Ledger) Assignments() []*Assignment {
	out := make([]*Assignment, 0, len(l.assignments))
	for _, a := range l.assignments {
		out = append(out, a)
	}
	sortAssignments(out)
	return out
}

// AssignmentsForInvoice returns the invoice's assignments ordered by
// (date, id).
func (l *Ledger) AssignmentsForInvoice(id InvoiceID) []*Assignment {
	var out []*Assignment
	for _, a := range l.assignments {
		if a.InvoiceID == id {
			out = append(out, a)
		}
	}
	sortAssignments(out)
	return out
}

// AssignmentsForPayment returns the payment's assignments ordered by
// (date, id).
func (l *Ledger) AssignmentsForPayment(id PaymentID) []*Assignment {
	var out []*Assignment
	for _, a := range l.assignments {
		if a.PaymentID == id {
			out = append(out, a)
		}
	}
	sortAssignments(out)
	return out
}

func sortAssignments(as []*Assignment) {
	sort.Slice(as, func(i, j int) bool {
		if !as[i].Date.Equal(as[j].Date) {
			return as[i].Date.Before(as[j].Date)
		}
		return as[i].ID < as[j].ID
	})
}

// =============================================================================
// RECOMPUTE - invalidate-then-rebuild derived fields
// =============================================================================

// Recompute rebuilds the derived fields of the named invoices (or every
// invoice when none are named) from the full assignment history. Must run
// after any assignment mutation before external reads are trusted.
func (l *Ledger) Recompute(ids ...InvoiceID) error {
	if len(ids) == 0 {
		for id := range l.invoices {
			ids = append(ids, id)
		}
	}
	for _, id := range ids {
		inv, err := l.Invoice(id)
		if err != nil {
			return err
		}
		if err := l.recomputeInvoice(inv); err != nil {
			return err
		}
	}
	return nil
}

func (l *Ledger) recomputeInvoice(inv *Invoice) error {
	as := l.AssignmentsForInvoice(inv.ID)

	total := decimal.Zero
	var last *Date
	for _, a := range as {
		total = total.Add(a.Amount)
		if last == nil || a.Date.After(*last) {
			d := a.Date
			last = &d
		}
	}

	inv.TotalApplied = total
	inv.Balance = inv.OriginalAmount.Sub(total)
	inv.Status = StatusFor(inv.Balance, inv.OriginalAmount)
	inv.LastActivityDate = last

	periods, err := ComputeInterestPeriods(inv, as, l.config, l.asOf)
	if err != nil {
		return err
	}
	inv.Periods = periods
	inv.AccruedInterest = TotalInterest(periods)

	delete(l.dirty, inv.ID)
	return nil
}

// recomputeDirty rebuilds only invalidated invoices.
func (l *Ledger) recomputeDirty() error {
	for id := range l.dirty {
		inv, err := l.Invoice(id)
		if err != nil {
			return err
		}
		if err := l.recomputeInvoice(inv); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// SUMMARY - project-wide aggregation
// =============================================================================

// InvoiceSummary is one row of the per-invoice breakdown.
type InvoiceSummary struct {
	ID          InvoiceID
	Description string
	Status      InvoiceStatus
	Principal   decimal.Decimal
	Payments    decimal.Decimal
	Balance     decimal.Decimal
	Interest    decimal.Decimal
}

// Summary aggregates principal, payments, and accrued interest across the
// whole ledger as of a date.
type Summary struct {
	AsOf Date

	// TotalOutstanding sums the positive invoice balances only; an
	// overpaid invoice does not offset another invoice's debt.
	TotalOutstanding decimal.Decimal

	TotalPrincipal decimal.Decimal
	TotalInterest  decimal.Decimal
	TotalPayments  decimal.Decimal
	TotalDue       decimal.Decimal

	Invoices []InvoiceSummary
}

// Summarize recomputes anything stale and aggregates across all invoices
// as of the given date. A horizon differing from the ledger's own as-of
// date is applied transiently to the accrual computation only: summarizing
// is a read and leaves the ledger's state untouched. Monetary outputs are
// rounded to cents at this read boundary.
func (l *Ledger) Summarize(asOf Date) (*Summary, error) {
	if err := l.recomputeDirty(); err != nil {
		return nil, err
	}
	retarget := !asOf.Equal(l.asOf)

	s := &Summary{
		AsOf:             asOf,
		TotalOutstanding: decimal.Zero,
		TotalPrincipal:   decimal.Zero,
		TotalInterest:    decimal.Zero,
		TotalPayments:    decimal.Zero,
		TotalDue:         decimal.Zero,
	}

	for _, inv := range l.Invoices() {
		accrued := inv.AccruedInterest
		if retarget {
			periods, err := ComputeInterestPeriods(inv, l.AssignmentsForInvoice(inv.ID), l.config, asOf)
			if err != nil {
				return nil, err
			}
			accrued = TotalInterest(periods)
		}
		interest := RoundCents(accrued)
		s.TotalPrincipal = s.TotalPrincipal.Add(inv.OriginalAmount)
		s.TotalInterest = s.TotalInterest.Add(interest)
		s.TotalPayments = s.TotalPayments.Add(inv.TotalApplied)
		if inv.Balance.IsPositive() {
			s.TotalOutstanding = s.TotalOutstanding.Add(inv.Balance)
		}
		s.Invoices = append(s.Invoices, InvoiceSummary{
			ID:          inv.ID,
			Description: inv.Description,
			Status:      inv.Status,
			Principal:   inv.OriginalAmount,
			Payments:    inv.TotalApplied,
			Balance:     inv.Balance,
			Interest:    interest,
		})
	}

	s.TotalDue = s.TotalPrincipal.Add(s.TotalInterest).Sub(s.TotalPayments)
	return s, nil
}

// =============================================================================
// EXPORT - read contracts for reporting collaborators
// =============================================================================

// ExportAmortization returns the invoice's interest periods, recomputing
// first if stale. The returned slice is a copy; callers may not mutate
// engine state through it.
func (l *Ledger) ExportAmortization(id InvoiceID) ([]InterestPeriod, error) {
	inv, err := l.Invoice(id)
	if err != nil {
		return nil, err
	}
	if l.dirty[id] {
		if err := l.recomputeInvoice(inv); err != nil {
			return nil, err
		}
	}
	out := make([]InterestPeriod, len(inv.Periods))
	copy(out, inv.Periods)
	return out, nil
}

// AmortizationRow is one line of the detailed schedule: an interest
// accrual or a payment application, with the running balance after it.
type AmortizationRow struct {
	Date        Date
	Type        string // "interest_accrual" or "payment"
	Description string
	Principal   decimal.Decimal
	Interest    decimal.Decimal
	Payment     decimal.Decimal
	Balance     decimal.Decimal
}

// AmortizationSchedule interleaves the invoice's interest periods with the
// payments that closed them, tracking the running balance
// (principal + interest accrued since the last payment).
func (l *Ledger) AmortizationSchedule(id InvoiceID) ([]AmortizationRow, error) {
	periods, err := l.ExportAmortization(id)
	if err != nil {
		return nil, err
	}
	inv, _ := l.Invoice(id)
	assignments := l.AssignmentsForInvoice(id)

	var rows []AmortizationRow
	running := inv.OriginalAmount
	cumInterest := decimal.Zero

	for _, p := range periods {
		end := p.EndsAt(l.asOf)
		interest := RoundCents(p.Interest)
		cumInterest = cumInterest.Add(interest)

		rows = append(rows, AmortizationRow{
			Date:        end,
			Type:        "interest_accrual",
			Description: fmtDays(p.Days),
			Principal:   p.Principal,
			Interest:    interest,
			Balance:     running.Add(cumInterest),
		})

		for _, a := range assignments {
			if !a.Date.Equal(end) {
				continue
			}
			running = running.Add(cumInterest).Sub(a.Amount)
			cumInterest = decimal.Zero
			rows = append(rows, AmortizationRow{
				Date:        a.Date,
				Type:        "payment",
				Description: "payment applied (" + string(a.PaymentID) + ")",
				Payment:     a.Amount,
				Balance:     running,
			})
		}
	}

	return rows, nil
}

func fmtDays(n int) string {
	if n == 1 {
		return "interest accrual (1 day)"
	}
	return "interest accrual (" + strconv.Itoa(n) + " days)"
}
