/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract. Monetary
  values travel as decimal strings; derived money is rounded to cents at
  this boundary.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Request bodies carry validator tags; handlers run the shared validator
  before touching the engine. Amount strings are parsed (and
  positivity-checked) by the engine itself.

SEE ALSO:
  - handlers.go: Uses these types
  - ledger/snapshot.go: the snapshot records reused for import/export
*/
package api

import (
	"github.com/shopspring/decimal"

	"github.com/warp/interest-engine/ledger"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// CreateProjectRequest creates an empty ledger under a name.
type CreateProjectRequest struct {
	Name       string                   `json:"name" validate:"required"`
	AsOf       string                   `json:"as_of" validate:"required,datetime=2006-01-02"`
	RateConfig *ledger.RateConfigRecord `json:"rate_config,omitempty"`
}

type CreateInvoiceRequest struct {
	ID          string `json:"id" validate:"required"`
	IssueDate   string `json:"issue_date" validate:"required,datetime=2006-01-02"`
	Description string `json:"description"`
	Amount      string `json:"amount" validate:"required"`
}

type CreatePaymentRequest struct {
	ID           string `json:"id" validate:"required"`
	ReceivedDate string `json:"received_date" validate:"required,datetime=2006-01-02"`
	Description  string `json:"description"`
	Amount       string `json:"amount" validate:"required"`
}

type CreateAssignmentRequest struct {
	PaymentID string `json:"payment_id" validate:"required"`
	InvoiceID string `json:"invoice_id" validate:"required"`
	Amount    string `json:"amount" validate:"required"`
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	Notes     string `json:"notes"`
}

// ReassignRequest edits an assignment; omitted fields keep their values.
type ReassignRequest struct {
	InvoiceID *string `json:"invoice_id,omitempty"`
	Amount    *string `json:"amount,omitempty"`
	Date      *string `json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Notes     *string `json:"notes,omitempty"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

type InvoiceDTO struct {
	ID               string      `json:"id"`
	IssueDate        string      `json:"issue_date"`
	Description      string      `json:"description,omitempty"`
	OriginalAmount   string      `json:"original_amount"`
	Status           string      `json:"status"`
	TotalApplied     string      `json:"total_applied"`
	Balance          string      `json:"balance"`
	AccruedInterest  string      `json:"accrued_interest"`
	LastActivityDate string      `json:"last_activity_date,omitempty"`
	Periods          []PeriodDTO `json:"interest_periods,omitempty"`
}

type PeriodDTO struct {
	Start     string `json:"start"`
	End       string `json:"end,omitempty"`
	Days      int    `json:"days"`
	Principal string `json:"principal"`
	Interest  string `json:"interest"`
}

type PaymentDTO struct {
	ID               string `json:"id"`
	ReceivedDate     string `json:"received_date"`
	Description      string `json:"description,omitempty"`
	Amount           string `json:"amount"`
	AssignedAmount   string `json:"assigned_amount"`
	UnassignedAmount string `json:"unassigned_amount"`
}

type AssignmentDTO struct {
	ID          string `json:"id"`
	PaymentID   string `json:"payment_id"`
	InvoiceID   string `json:"invoice_id"`
	Amount      string `json:"amount"`
	Date        string `json:"date"`
	Notes       string `json:"notes,omitempty"`
	Retroactive bool   `json:"retroactive,omitempty"`
}

type SummaryDTO struct {
	AsOf             string              `json:"as_of"`
	TotalPrincipal   string              `json:"total_principal"`
	TotalInterest    string              `json:"total_interest"`
	TotalPayments    string              `json:"total_payments"`
	TotalOutstanding string              `json:"total_outstanding"`
	TotalDue         string              `json:"total_due"`
	Invoices         []InvoiceSummaryDTO `json:"invoices"`
}

type InvoiceSummaryDTO struct {
	ID          string `json:"id"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status"`
	Principal   string `json:"principal"`
	Payments    string `json:"payments"`
	Balance     string `json:"balance"`
	Interest    string `json:"interest"`
}

type AmortizationRowDTO struct {
	Date        string `json:"date"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Principal   string `json:"principal,omitempty"`
	Interest    string `json:"interest,omitempty"`
	Payment     string `json:"payment,omitempty"`
	Balance     string `json:"balance"`
}

type ErrorDTO struct {
	Error string `json:"error"`
}

// =============================================================================
// MAPPING
// =============================================================================

func toInvoiceDTO(inv *ledger.Invoice) InvoiceDTO {
	dto := InvoiceDTO{
		ID:              string(inv.ID),
		IssueDate:       inv.IssueDate.String(),
		Description:     inv.Description,
		OriginalAmount:  inv.OriginalAmount.String(),
		Status:          string(inv.Status),
		TotalApplied:    inv.TotalApplied.String(),
		Balance:         inv.Balance.String(),
		AccruedInterest: ledger.RoundCents(inv.AccruedInterest).String(),
	}
	if inv.LastActivityDate != nil {
		dto.LastActivityDate = inv.LastActivityDate.String()
	}
	for _, p := range inv.Periods {
		dto.Periods = append(dto.Periods, toPeriodDTO(p))
	}
	return dto
}

func toPeriodDTO(p ledger.InterestPeriod) PeriodDTO {
	dto := PeriodDTO{
		Start:     p.Start.String(),
		Days:      p.Days,
		Principal: p.Principal.String(),
		Interest:  ledger.RoundCents(p.Interest).String(),
	}
	if p.End != nil {
		dto.End = p.End.String()
	}
	return dto
}

func toPaymentDTO(p *ledger.Payment) PaymentDTO {
	return PaymentDTO{
		ID:               string(p.ID),
		ReceivedDate:     p.ReceivedDate.String(),
		Description:      p.Description,
		Amount:           p.Amount.String(),
		AssignedAmount:   p.AssignedAmount.String(),
		UnassignedAmount: p.UnassignedAmount.String(),
	}
}

func toAssignmentDTO(a *ledger.Assignment) AssignmentDTO {
	return AssignmentDTO{
		ID:          string(a.ID),
		PaymentID:   string(a.PaymentID),
		InvoiceID:   string(a.InvoiceID),
		Amount:      a.Amount.String(),
		Date:        a.Date.String(),
		Notes:       a.Notes,
		Retroactive: a.Retroactive,
	}
}

func toSummaryDTO(s *ledger.Summary) SummaryDTO {
	dto := SummaryDTO{
		AsOf:             s.AsOf.String(),
		TotalPrincipal:   s.TotalPrincipal.String(),
		TotalInterest:    s.TotalInterest.String(),
		TotalPayments:    s.TotalPayments.String(),
		TotalOutstanding: s.TotalOutstanding.String(),
		TotalDue:         s.TotalDue.String(),
	}
	for _, row := range s.Invoices {
		dto.Invoices = append(dto.Invoices, InvoiceSummaryDTO{
			ID:          string(row.ID),
			Description: row.Description,
			Status:      string(row.Status),
			Principal:   row.Principal.String(),
			Payments:    row.Payments.String(),
			Balance:     row.Balance.String(),
			Interest:    row.Interest.String(),
		})
	}
	return dto
}

func toAmortizationDTO(rows []ledger.AmortizationRow) []AmortizationRowDTO {
	out := make([]AmortizationRowDTO, 0, len(rows))
	for _, r := range rows {
		dto := AmortizationRowDTO{
			Date:        r.Date.String(),
			Type:        r.Type,
			Description: r.Description,
			Balance:     ledger.RoundCents(r.Balance).String(),
		}
		if !r.Principal.IsZero() {
			dto.Principal = r.Principal.String()
		}
		if !r.Interest.IsZero() {
			dto.Interest = r.Interest.String()
		}
		if !r.Payment.IsZero() {
			dto.Payment = r.Payment.String()
		}
		out = append(out, dto)
	}
	return out
}

func parseAmount(s string) (decimal.Decimal, error) {
	return ledger.ParseMoney(s)
}
