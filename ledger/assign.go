/*
assign.go - Payment assignment operations

PURPOSE:
  The four mutations that move money between the payments' unassigned
  pools and the invoices' balances: assign, reassign, remove, and FIFO
  auto-assign. Assignments are the sole source of truth; invoice and
  payment derived fields are projections rebuilt here eagerly.

ATOMICITY:
  Every operation validates all constraints before writing any field.
  On error the ledger is exactly as it was before the call.

SEE ALSO:
  - accrual.go: how an assignment's date partitions interest periods
  - ledger.go: Recompute, which rebuilds the invalidated accrual cache
*/
package ledger

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// ASSIGN
// =============================================================================

// AssignPayment applies amount from a payment's unassigned pool to an
// invoice as of date. The amount must be positive and must not exceed the
// payment's unassigned amount; the date must not precede the invoice's
// issue date. Over-assigning the invoice is allowed and yields the
// overpaid status. A date before the payment's received date marks the
// assignment retroactive.
func (l *Ledger) AssignPayment(paymentID PaymentID, invoiceID InvoiceID, amount decimal.Decimal, date Date, notes string) (*Assignment, error) {
	p, err := l.Payment(paymentID)
	if err != nil {
		return nil, err
	}
	inv, err := l.Invoice(invoiceID)
	if err != nil {
		return nil, err
	}
	if !amount.IsPositive() {
		return nil, &AmountError{Field: "amount", Value: amount}
	}
	if amount.GreaterThan(p.UnassignedAmount) {
		return nil, &InsufficientFundsError{
			PaymentID:  paymentID,
			Requested:  amount,
			Unassigned: p.UnassignedAmount,
		}
	}
	if date.Before(inv.IssueDate) {
		return nil, &BeforeIssueError{
			InvoiceID:      invoiceID,
			IssueDate:      inv.IssueDate,
			AssignmentDate: date,
		}
	}

	a := &Assignment{
		ID:          AssignmentID(uuid.NewString()),
		PaymentID:   paymentID,
		InvoiceID:   invoiceID,
		Amount:      amount,
		Date:        date,
		Notes:       notes,
		Retroactive: date.Before(p.ReceivedDate),
	}
	l.assignments[a.ID] = a
	l.applyToPayment(p, amount)
	l.applyToInvoice(inv, a)
	return a, nil
}

// restoreAssignment re-registers an assignment with a known id, used when
// rebuilding a ledger from a snapshot. Same validation as AssignPayment,
// plus id uniqueness: a repeated id would double-count against the
// payment's pool while leaving a single surviving record.
func (l *Ledger) restoreAssignment(id AssignmentID, paymentID PaymentID, invoiceID InvoiceID, amount decimal.Decimal, date Date, notes string) (*Assignment, error) {
	if _, ok := l.assignments[id]; ok {
		return nil, &DuplicateEntityError{Kind: "assignment", ID: string(id)}
	}
	a, err := l.AssignPayment(paymentID, invoiceID, amount, date, notes)
	if err != nil {
		return nil, err
	}
	delete(l.assignments, a.ID)
	a.ID = id
	l.assignments[id] = a
	return a, nil
}

// =============================================================================
// REASSIGN
// =============================================================================

// ReassignInput carries the fields of an assignment to change; nil fields
// keep their current values.
type ReassignInput struct {
	InvoiceID *InvoiceID
	Amount    *decimal.Decimal
	Date      *Date
	Notes     *string
}

// Reassign edits an existing assignment: target invoice, amount, date, or
// notes. The full constraint set is revalidated against the new values,
// with the assignment's own amount returned to the payment's pool for the
// funds check (growing an assignment only needs the delta available).
func (l *Ledger) Reassign(assignmentID AssignmentID, in ReassignInput) (*Assignment, error) {
	a, err := l.Assignment(assignmentID)
	if err != nil {
		return nil, err
	}
	p, err := l.Payment(a.PaymentID)
	if err != nil {
		return nil, err
	}
	oldInv, err := l.Invoice(a.InvoiceID)
	if err != nil {
		return nil, err
	}

	newInvoiceID := a.InvoiceID
	if in.InvoiceID != nil {
		newInvoiceID = *in.InvoiceID
	}
	newAmount := a.Amount
	if in.Amount != nil {
		newAmount = *in.Amount
	}
	newDate := a.Date
	if in.Date != nil {
		newDate = *in.Date
	}
	newNotes := a.Notes
	if in.Notes != nil {
		newNotes = *in.Notes
	}

	newInv, err := l.Invoice(newInvoiceID)
	if err != nil {
		return nil, err
	}
	if !newAmount.IsPositive() {
		return nil, &AmountError{Field: "amount", Value: newAmount}
	}
	// The assignment's current amount counts as available again.
	available := p.UnassignedAmount.Add(a.Amount)
	if newAmount.GreaterThan(available) {
		return nil, &InsufficientFundsError{
			PaymentID:  p.ID,
			Requested:  newAmount,
			Unassigned: available,
		}
	}
	if newDate.Before(newInv.IssueDate) {
		return nil, &BeforeIssueError{
			InvoiceID:      newInvoiceID,
			IssueDate:      newInv.IssueDate,
			AssignmentDate: newDate,
		}
	}

	// All checks passed; write.
	l.applyToPayment(p, newAmount.Sub(a.Amount))
	a.InvoiceID = newInvoiceID
	a.Amount = newAmount
	a.Date = newDate
	a.Notes = newNotes
	a.Retroactive = newDate.Before(p.ReceivedDate)

	l.refreshInvoice(oldInv)
	if newInv.ID != oldInv.ID {
		l.refreshInvoice(newInv)
	}
	return a, nil
}

// =============================================================================
// REMOVE
// =============================================================================

// RemoveAssignment deletes an assignment, returning its amount to the
// payment's unassigned pool. The invoice's status may move backward
// (paid → partial); interest periods are recomputed without the removed
// boundary.
func (l *Ledger) RemoveAssignment(assignmentID AssignmentID) error {
	a, err := l.Assignment(assignmentID)
	if err != nil {
		return err
	}
	p, err := l.Payment(a.PaymentID)
	if err != nil {
		return err
	}
	inv, err := l.Invoice(a.InvoiceID)
	if err != nil {
		return err
	}

	delete(l.assignments, assignmentID)
	l.applyToPayment(p, a.Amount.Neg())
	l.refreshInvoice(inv)
	return nil
}

// =============================================================================
// FIFO AUTO-ASSIGNMENT
// =============================================================================

// ApplyFIFO distributes a payment's unassigned amount across invoices with
// positive balances, oldest first (issue date, then id). Each invoice
// receives min(its balance, remaining funds): FIFO never overpays. Funds
// left after every balance is covered stay unassigned. The assignment date
// is the later of the payment's received date and the invoice's issue
// date, so auto-assignment can never violate the issue-date floor.
func (l *Ledger) ApplyFIFO(paymentID PaymentID) ([]*Assignment, error) {
	p, err := l.Payment(paymentID)
	if err != nil {
		return nil, err
	}

	var created []*Assignment
	for _, inv := range l.Invoices() {
		if !p.UnassignedAmount.IsPositive() {
			break
		}
		if !inv.Balance.IsPositive() {
			continue
		}
		amount := decimal.Min(inv.Balance, p.UnassignedAmount)
		date := p.ReceivedDate
		if inv.IssueDate.After(date) {
			date = inv.IssueDate
		}
		a, err := l.AssignPayment(paymentID, inv.ID, amount, date, "auto-assigned (FIFO)")
		if err != nil {
			return created, err
		}
		created = append(created, a)
	}
	return created, nil
}

// =============================================================================
// EAGER PROJECTION UPDATES
// =============================================================================

// applyToPayment shifts delta from the unassigned pool to the assigned
// total. Conservation holds exactly: the two always sum to Amount.
func (l *Ledger) applyToPayment(p *Payment, delta decimal.Decimal) {
	p.AssignedAmount = p.AssignedAmount.Add(delta)
	p.UnassignedAmount = p.Amount.Sub(p.AssignedAmount)
}

// applyToInvoice folds one new assignment into the invoice's derived
// fields and invalidates its accrual cache.
func (l *Ledger) applyToInvoice(inv *Invoice, a *Assignment) {
	inv.TotalApplied = inv.TotalApplied.Add(a.Amount)
	inv.Balance = inv.OriginalAmount.Sub(inv.TotalApplied)
	inv.Status = StatusFor(inv.Balance, inv.OriginalAmount)
	if inv.LastActivityDate == nil || a.Date.After(*inv.LastActivityDate) {
		d := a.Date
		inv.LastActivityDate = &d
	}
	inv.Periods = nil
	inv.AccruedInterest = decimal.Zero
	l.dirty[inv.ID] = true
}

// refreshInvoice rebuilds an invoice's derived fields from scratch after a
// removal or edit, where folding a single delta is not enough.
func (l *Ledger) refreshInvoice(inv *Invoice) {
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
	inv.Periods = nil
	inv.AccruedInterest = decimal.Zero
	l.dirty[inv.ID] = true
}
