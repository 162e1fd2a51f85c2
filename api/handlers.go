/*
handlers.go - HTTP API handlers for the interest accrual engine

PURPOSE:
  Exposes the ledger engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic. One ledger per
  project, loaded from the ProjectStore on first touch and persisted
  after every mutation.

ENDPOINTS:
  Projects:
    GET    /api/projects                       List project names
    POST   /api/projects                       Create empty project
    DELETE /api/projects/{project}             Delete project

  Snapshot:
    GET    /api/projects/{project}/snapshot    Export full ledger state
    PUT    /api/projects/{project}/snapshot    Replace ledger from snapshot

  Invoices:
    GET    /api/projects/{project}/invoices
    POST   /api/projects/{project}/invoices
    GET    /api/projects/{project}/invoices/{id}
    GET    /api/projects/{project}/invoices/{id}/amortization

  Payments:
    GET    /api/projects/{project}/payments
    POST   /api/projects/{project}/payments
    POST   /api/projects/{project}/payments/{id}/apply-fifo

  Assignments:
    GET    /api/projects/{project}/assignments
    POST   /api/projects/{project}/assignments
    PUT    /api/projects/{project}/assignments/{id}
    DELETE /api/projects/{project}/assignments/{id}

  Reporting:
    GET    /api/projects/{project}/summary?as_of=YYYY-MM-DD
    PUT    /api/projects/{project}/rate-config

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, business-constraint violations
  - 404: Unknown project/invoice/payment/assignment
  - 500: Internal errors

CONCURRENCY:
  The engine is synchronous; a single mutex serializes all ledger access.
  Fine-grained per-project locking is unnecessary at this scale.

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - ledger: the engine being exposed
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/warp/interest-engine/ledger"
	"github.com/warp/interest-engine/store"
)

var validate = validator.New()

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store store.ProjectStore
	Log   zerolog.Logger

	mu      sync.Mutex
	ledgers map[string]*ledger.Ledger
}

// NewHandler creates a new handler backed by the given store.
func NewHandler(st store.ProjectStore, log zerolog.Logger) *Handler {
	return &Handler{
		Store:   st,
		Log:     log,
		ledgers: make(map[string]*ledger.Ledger),
	}
}

// ledgerFor returns the project's ledger, loading it from the store on
// first touch. Caller must hold h.mu.
func (h *Handler) ledgerFor(r *http.Request) (string, *ledger.Ledger, error) {
	project := chi.URLParam(r, "project")
	if l, ok := h.ledgers[project]; ok {
		return project, l, nil
	}
	snap, err := h.Store.Load(r.Context(), project)
	if err != nil {
		return project, nil, err
	}
	l, err := ledger.BuildLedger(snap)
	if err != nil {
		return project, nil, err
	}
	h.ledgers[project] = l
	return project, l, nil
}

// persist writes the project's current ledger state back to the store.
// Caller must hold h.mu.
func (h *Handler) persist(r *http.Request, project string, l *ledger.Ledger) error {
	snap, err := l.ExportSnapshot()
	if err != nil {
		return err
	}
	return h.Store.Save(r.Context(), project, snap)
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.Log.Error().Err(err).Msg("failed to encode response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case ledger.IsNotFound(err), errors.Is(err, store.ErrProjectNotFound):
		status = http.StatusNotFound
	case ledger.IsClientError(err):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		h.Log.Error().Err(err).Msg("internal error")
	}
	h.writeJSON(w, status, ErrorDTO{Error: err.Error()})
}

// decodeValid decodes the request body into v and runs the validator.
func (h *Handler) decodeValid(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.writeJSON(w, http.StatusBadRequest, ErrorDTO{Error: "invalid JSON: " + err.Error()})
		return false
	}
	if err := validate.Struct(v); err != nil {
		h.writeJSON(w, http.StatusBadRequest, ErrorDTO{Error: err.Error()})
		return false
	}
	return true
}

// =============================================================================
// PROJECT HANDLERS
// =============================================================================

func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	names, err := h.Store.List(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	h.writeJSON(w, http.StatusOK, names)
}

func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req CreateProjectRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	cfg := ledger.DefaultRateConfig()
	if req.RateConfig != nil {
		var err error
		if cfg, err = ledger.ParseRateConfig(*req.RateConfig); err != nil {
			h.writeError(w, err)
			return
		}
	}
	asOf, err := ledger.ParseDate(req.AsOf)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, ErrorDTO{Error: err.Error()})
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	l := ledger.New(cfg, asOf)
	if err := h.persist(r, req.Name, l); err != nil {
		h.writeError(w, err)
		return
	}
	h.ledgers[req.Name] = l
	h.Log.Info().Str("project", req.Name).Msg("project created")
	h.writeJSON(w, http.StatusCreated, map[string]string{"name": req.Name})
}

func (h *Handler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	project := chi.URLParam(r, "project")

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.Store.Delete(r.Context(), project); err != nil {
		h.writeError(w, err)
		return
	}
	delete(h.ledgers, project)
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// SNAPSHOT HANDLERS
// =============================================================================

func (h *Handler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	_, l, err := h.ledgerFor(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	snap, err := l.ExportSnapshot()
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) PutSnapshot(w http.ResponseWriter, r *http.Request) {
	project := chi.URLParam(r, "project")

	var snap ledger.Snapshot
	if err := json.NewDecoder(r.Body).Decode(&snap); err != nil {
		h.writeJSON(w, http.StatusBadRequest, ErrorDTO{Error: "invalid JSON: " + err.Error()})
		return
	}

	l, err := ledger.BuildLedger(&snap)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.persist(r, project, l); err != nil {
		h.writeError(w, err)
		return
	}
	h.ledgers[project] = l
	h.writeJSON(w, http.StatusOK, map[string]string{"name": project})
}

// =============================================================================
// INVOICE HANDLERS
// =============================================================================

func (h *Handler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	_, l, err := h.ledgerFor(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := l.Recompute(); err != nil {
		h.writeError(w, err)
		return
	}

	out := []InvoiceDTO{}
	for _, inv := range l.Invoices() {
		out = append(out, toInvoiceDTO(inv))
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	var req CreateInvoiceRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, ErrorDTO{Error: err.Error()})
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	project, l, err := h.ledgerFor(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	inv, err := l.AddInvoice(ledger.InvoiceID(req.ID), ledger.MustDate(req.IssueDate), req.Description, amount)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.persist(r, project, l); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, toInvoiceDTO(inv))
}

func (h *Handler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	_, l, err := h.ledgerFor(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	id := ledger.InvoiceID(chi.URLParam(r, "id"))
	inv, err := l.Invoice(id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := l.Recompute(id); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toInvoiceDTO(inv))
}

func (h *Handler) GetAmortization(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	_, l, err := h.ledgerFor(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	rows, err := l.AmortizationSchedule(ledger.InvoiceID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toAmortizationDTO(rows))
}

// =============================================================================
// PAYMENT HANDLERS
// =============================================================================

func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	_, l, err := h.ledgerFor(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	out := []PaymentDTO{}
	for _, p := range l.Payments() {
		out = append(out, toPaymentDTO(p))
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var req CreatePaymentRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, ErrorDTO{Error: err.Error()})
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	project, l, err := h.ledgerFor(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	p, err := l.AddPayment(ledger.PaymentID(req.ID), ledger.MustDate(req.ReceivedDate), req.Description, amount)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.persist(r, project, l); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, toPaymentDTO(p))
}

func (h *Handler) ApplyFIFO(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	project, l, err := h.ledgerFor(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	created, err := l.ApplyFIFO(ledger.PaymentID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.persist(r, project, l); err != nil {
		h.writeError(w, err)
		return
	}

	out := []AssignmentDTO{}
	for _, a := range created {
		out = append(out, toAssignmentDTO(a))
	}
	h.writeJSON(w, http.StatusOK, out)
}

// =============================================================================
// ASSIGNMENT HANDLERS
// =============================================================================

func (h *Handler) ListAssignments(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	_, l, err := h.ledgerFor(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	out := []AssignmentDTO{}
	for _, a := range l.Assignments() {
		out = append(out, toAssignmentDTO(a))
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) CreateAssignment(w http.ResponseWriter, r *http.Request) {
	var req CreateAssignmentRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, ErrorDTO{Error: err.Error()})
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	project, l, err := h.ledgerFor(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	a, err := l.AssignPayment(
		ledger.PaymentID(req.PaymentID),
		ledger.InvoiceID(req.InvoiceID),
		amount,
		ledger.MustDate(req.Date),
		req.Notes,
	)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.persist(r, project, l); err != nil {
		h.writeError(w, err)
		return
	}
	if a.Retroactive {
		h.Log.Warn().Str("assignment", string(a.ID)).Str("date", a.Date.String()).
			Msg("assignment dated before payment receipt")
	}
	h.writeJSON(w, http.StatusCreated, toAssignmentDTO(a))
}

func (h *Handler) UpdateAssignment(w http.ResponseWriter, r *http.Request) {
	var req ReassignRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	in := ledger.ReassignInput{}
	if req.InvoiceID != nil {
		id := ledger.InvoiceID(*req.InvoiceID)
		in.InvoiceID = &id
	}
	if req.Amount != nil {
		amount, err := parseAmount(*req.Amount)
		if err != nil {
			h.writeJSON(w, http.StatusBadRequest, ErrorDTO{Error: err.Error()})
			return
		}
		in.Amount = &amount
	}
	if req.Date != nil {
		d := ledger.MustDate(*req.Date)
		in.Date = &d
	}
	in.Notes = req.Notes

	h.mu.Lock()
	defer h.mu.Unlock()

	project, l, err := h.ledgerFor(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	a, err := l.Reassign(ledger.AssignmentID(chi.URLParam(r, "id")), in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.persist(r, project, l); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toAssignmentDTO(a))
}

func (h *Handler) DeleteAssignment(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	project, l, err := h.ledgerFor(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := l.RemoveAssignment(ledger.AssignmentID(chi.URLParam(r, "id"))); err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.persist(r, project, l); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// REPORTING HANDLERS
// =============================================================================

func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	_, l, err := h.ledgerFor(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	asOf := l.AsOf()
	if q := r.URL.Query().Get("as_of"); q != "" {
		if asOf, err = ledger.ParseDate(q); err != nil {
			h.writeJSON(w, http.StatusBadRequest, ErrorDTO{Error: err.Error()})
			return
		}
	}

	s, err := l.Summarize(asOf)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toSummaryDTO(s))
}

func (h *Handler) PutRateConfig(w http.ResponseWriter, r *http.Request) {
	var rec ledger.RateConfigRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		h.writeJSON(w, http.StatusBadRequest, ErrorDTO{Error: "invalid JSON: " + err.Error()})
		return
	}
	cfg, err := ledger.ParseRateConfig(rec)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	project, l, err := h.ledgerFor(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := l.SetConfig(cfg); err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.persist(r, project, l); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
