/*
snapshot.go - Ledger construction and export

PURPOSE:
  The serialization boundary of the engine. A Snapshot is the flat JSON
  form of a project's ledger: rate config, invoices, payments, and
  assignments. ParseSnapshot validates eagerly (structure via the
  validator tags, semantics via the ledger's own constraints);
  BuildLedger replays the records through the assignment engine so every
  derived field is recomputed rather than trusted; ExportSnapshot writes
  the ledger back out including derived state, rounded at this read
  boundary.

VALIDATION:
  Malformed input fails construction with ErrMalformedSnapshot wrapped
  around the field-level detail. A snapshot that parses but violates a
  business constraint (e.g. an assignment exceeding its payment) fails
  BuildLedger with the engine's own structured error.

SEE ALSO:
  - assign.go: restoreAssignment, which replays records with known ids
  - store: persists the serialized form per project
*/
package ledger

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

// =============================================================================
// SNAPSHOT RECORDS - the wire/storage form
// =============================================================================

// Snapshot is the serialized form of one project's ledger.
type Snapshot struct {
	AsOf        string             `json:"as_of" validate:"required,datetime=2006-01-02"`
	RateConfig  RateConfigRecord   `json:"rate_config"`
	Invoices    []InvoiceRecord    `json:"invoices" validate:"dive"`
	Payments    []PaymentRecord    `json:"payments" validate:"dive"`
	Assignments []AssignmentRecord `json:"assignments" validate:"dive"`
}

// RateConfigRecord carries no required tags: an omitted or empty
// rate_config means the shipped defaults (ParseRateConfig), and a
// partially filled one is rejected by RateConfig.Validate during build.
type RateConfigRecord struct {
	Basis       string          `json:"rate_basis"`
	Compounding string          `json:"compounding"`
	DayCount    string          `json:"day_count"`
	Rate        decimal.Decimal `json:"rate"`
	GraceDays   int             `json:"grace_days" validate:"min=0"`
}

type InvoiceRecord struct {
	ID             string          `json:"id" validate:"required"`
	IssueDate      string          `json:"issue_date" validate:"required,datetime=2006-01-02"`
	Description    string          `json:"description"`
	OriginalAmount decimal.Decimal `json:"original_amount"`

	// Derived, populated on export and ignored on parse.
	Status           string           `json:"status,omitempty"`
	TotalApplied     *decimal.Decimal `json:"total_applied,omitempty"`
	Balance          *decimal.Decimal `json:"balance,omitempty"`
	AccruedInterest  *decimal.Decimal `json:"accrued_interest,omitempty"`
	LastActivityDate string           `json:"last_activity_date,omitempty"`
	Periods          []PeriodRecord   `json:"interest_periods,omitempty"`
}

type PaymentRecord struct {
	ID           string          `json:"id" validate:"required"`
	ReceivedDate string          `json:"received_date" validate:"required,datetime=2006-01-02"`
	Description  string          `json:"description"`
	Amount       decimal.Decimal `json:"amount"`

	// Derived, populated on export and ignored on parse.
	AssignedAmount   *decimal.Decimal `json:"assigned_amount,omitempty"`
	UnassignedAmount *decimal.Decimal `json:"unassigned_amount,omitempty"`
}

type AssignmentRecord struct {
	ID        string          `json:"id" validate:"required"`
	PaymentID string          `json:"payment_id" validate:"required"`
	InvoiceID string          `json:"invoice_id" validate:"required"`
	Amount    decimal.Decimal `json:"assigned_amount"`
	Date      string          `json:"assignment_date" validate:"required,datetime=2006-01-02"`
	Notes     string          `json:"notes,omitempty"`

	// Derived, populated on export and ignored on parse.
	Retroactive bool `json:"retroactive,omitempty"`
}

type PeriodRecord struct {
	Start     string          `json:"start_date"`
	End       string          `json:"end_date,omitempty"` // empty for the open-ended final period
	Days      int             `json:"days"`
	Principal decimal.Decimal `json:"principal"`
	Interest  decimal.Decimal `json:"interest_amount"`
}

// =============================================================================
// PARSE
// =============================================================================

// ParseSnapshot decodes and structurally validates a serialized ledger.
func ParseSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
	}
	if err := validate.Struct(&s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
	}
	return &s, nil
}

// ParseRateConfig converts the serialized convention names into a
// validated RateConfig. Zero-valued records get the shipped defaults.
func ParseRateConfig(r RateConfigRecord) (RateConfig, error) {
	if r == (RateConfigRecord{}) {
		return DefaultRateConfig(), nil
	}
	cfg := RateConfig{
		Basis:       RateBasis(r.Basis),
		Compounding: Compounding(r.Compounding),
		DayCount:    DayCount(r.DayCount),
		Rate:        r.Rate,
		GraceDays:   r.GraceDays,
	}
	if err := cfg.Validate(); err != nil {
		return RateConfig{}, err
	}
	return cfg, nil
}

// =============================================================================
// BUILD
// =============================================================================

// BuildLedger replays a snapshot's records through the engine. Every
// business constraint is enforced during the replay, so a snapshot that
// was hand-edited into an inconsistent state is rejected rather than
// loaded. Derived fields in the snapshot are ignored and recomputed.
func BuildLedger(s *Snapshot) (*Ledger, error) {
	cfg, err := ParseRateConfig(s.RateConfig)
	if err != nil {
		return nil, err
	}
	asOf, err := ParseDate(s.AsOf)
	if err != nil {
		return nil, fmt.Errorf("%w: as_of: %v", ErrMalformedSnapshot, err)
	}

	l := New(cfg, asOf)

	for _, r := range s.Invoices {
		issue, err := ParseDate(r.IssueDate)
		if err != nil {
			return nil, fmt.Errorf("%w: invoice %s issue_date: %v", ErrMalformedSnapshot, r.ID, err)
		}
		if _, err := l.AddInvoice(InvoiceID(r.ID), issue, r.Description, r.OriginalAmount); err != nil {
			return nil, err
		}
	}
	for _, r := range s.Payments {
		received, err := ParseDate(r.ReceivedDate)
		if err != nil {
			return nil, fmt.Errorf("%w: payment %s received_date: %v", ErrMalformedSnapshot, r.ID, err)
		}
		if _, err := l.AddPayment(PaymentID(r.ID), received, r.Description, r.Amount); err != nil {
			return nil, err
		}
	}
	for _, r := range s.Assignments {
		date, err := ParseDate(r.Date)
		if err != nil {
			return nil, fmt.Errorf("%w: assignment %s date: %v", ErrMalformedSnapshot, r.ID, err)
		}
		if _, err := l.restoreAssignment(AssignmentID(r.ID), PaymentID(r.PaymentID), InvoiceID(r.InvoiceID), r.Amount, date, r.Notes); err != nil {
			return nil, err
		}
	}

	if err := l.Recompute(); err != nil {
		return nil, err
	}
	return l, nil
}

// LoadLedger is ParseSnapshot followed by BuildLedger.
func LoadLedger(data []byte) (*Ledger, error) {
	s, err := ParseSnapshot(data)
	if err != nil {
		return nil, err
	}
	return BuildLedger(s)
}

// =============================================================================
// EXPORT
// =============================================================================

// ExportSnapshot serializes the ledger including derived state. Monetary
// derived fields are rounded to cents here; the stored inputs (original
// amounts, payment amounts, assignment amounts) are written exactly as
// entered.
func (l *Ledger) ExportSnapshot() (*Snapshot, error) {
	if err := l.recomputeDirty(); err != nil {
		return nil, err
	}

	s := &Snapshot{
		AsOf: l.asOf.String(),
		RateConfig: RateConfigRecord{
			Basis:       string(l.config.Basis),
			Compounding: string(l.config.Compounding),
			DayCount:    string(l.config.DayCount),
			Rate:        l.config.Rate,
			GraceDays:   l.config.GraceDays,
		},
	}

	for _, inv := range l.Invoices() {
		rec := InvoiceRecord{
			ID:             string(inv.ID),
			IssueDate:      inv.IssueDate.String(),
			Description:    inv.Description,
			OriginalAmount: inv.OriginalAmount,
			Status:         string(inv.Status),
			TotalApplied:   decPtr(inv.TotalApplied),
			Balance:        decPtr(inv.Balance),
			AccruedInterest: decPtr(
				RoundCents(inv.AccruedInterest)),
		}
		if inv.LastActivityDate != nil {
			rec.LastActivityDate = inv.LastActivityDate.String()
		}
		for _, p := range inv.Periods {
			pr := PeriodRecord{
				Start:     p.Start.String(),
				Days:      p.Days,
				Principal: p.Principal,
				Interest:  RoundCents(p.Interest),
			}
			if p.End != nil {
				pr.End = p.End.String()
			}
			rec.Periods = append(rec.Periods, pr)
		}
		s.Invoices = append(s.Invoices, rec)
	}

	for _, p := range l.Payments() {
		s.Payments = append(s.Payments, PaymentRecord{
			ID:               string(p.ID),
			ReceivedDate:     p.ReceivedDate.String(),
			Description:      p.Description,
			Amount:           p.Amount,
			AssignedAmount:   decPtr(p.AssignedAmount),
			UnassignedAmount: decPtr(p.UnassignedAmount),
		})
	}

	for _, a := range l.Assignments() {
		s.Assignments = append(s.Assignments, AssignmentRecord{
			ID:          string(a.ID),
			PaymentID:   string(a.PaymentID),
			InvoiceID:   string(a.InvoiceID),
			Amount:      a.Amount,
			Date:        a.Date.String(),
			Notes:       a.Notes,
			Retroactive: a.Retroactive,
		})
	}

	return s, nil
}

// MarshalLedger is ExportSnapshot followed by JSON encoding.
func MarshalLedger(l *Ledger) ([]byte, error) {
	s, err := l.ExportSnapshot()
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(s, "", "  ")
}

func decPtr(d decimal.Decimal) *decimal.Decimal { return &d }
