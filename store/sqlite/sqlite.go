/*
Package sqlite provides a SQLite-backed ProjectStore.

PURPOSE:
  Persists ledger snapshots in normalized tables rather than as opaque
  blobs, so the data stays inspectable with plain SQL. In production the
  same patterns apply to PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  projects:    one row per project, carries as_of and the rate config
  invoices:    stored inputs only (derived fields are recomputed on load)
  payments:    stored inputs only
  assignments: the source-of-truth history

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  multiple readers don't block, a single writer at a time.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - store/store.go: ProjectStore interface
  - store/memory.go: in-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/interest-engine/ledger"
	"github.com/warp/interest-engine/store"
)

// Store implements store.ProjectStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a SQLite store at the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS projects (
		name TEXT PRIMARY KEY,
		as_of TEXT NOT NULL,
		rate_basis TEXT NOT NULL,
		compounding TEXT NOT NULL,
		day_count TEXT NOT NULL,
		rate TEXT NOT NULL,
		grace_days INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS invoices (
		id TEXT NOT NULL,
		project TEXT NOT NULL REFERENCES projects(name) ON DELETE CASCADE,
		issue_date TEXT NOT NULL,
		description TEXT,
		original_amount TEXT NOT NULL,
		PRIMARY KEY (project, id)
	);

	CREATE INDEX IF NOT EXISTS idx_invoices_project_issue
		ON invoices(project, issue_date);

	CREATE TABLE IF NOT EXISTS payments (
		id TEXT NOT NULL,
		project TEXT NOT NULL REFERENCES projects(name) ON DELETE CASCADE,
		received_date TEXT NOT NULL,
		description TEXT,
		amount TEXT NOT NULL,
		PRIMARY KEY (project, id)
	);

	CREATE TABLE IF NOT EXISTS assignments (
		id TEXT NOT NULL,
		project TEXT NOT NULL REFERENCES projects(name) ON DELETE CASCADE,
		payment_id TEXT NOT NULL,
		invoice_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		date TEXT NOT NULL,
		notes TEXT,
		PRIMARY KEY (project, id)
	);

	CREATE INDEX IF NOT EXISTS idx_assignments_project_invoice
		ON assignments(project, invoice_id);
	CREATE INDEX IF NOT EXISTS idx_assignments_project_payment
		ON assignments(project, payment_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// PROJECT STORE (store.ProjectStore interface)
// =============================================================================

// Save replaces the project's stored state with the snapshot, atomically.
func (s *Store) Save(ctx context.Context, project string, snap *ledger.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Replace wholesale: the snapshot is the complete truth for a project.
	for _, stmt := range []string{
		"DELETE FROM assignments WHERE project = ?",
		"DELETE FROM payments WHERE project = ?",
		"DELETE FROM invoices WHERE project = ?",
		"DELETE FROM projects WHERE name = ?",
	} {
		if _, err := tx.ExecContext(ctx, stmt, project); err != nil {
			return fmt.Errorf("failed to clear project: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO projects (name, as_of, rate_basis, compounding, day_count, rate, grace_days)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		project, snap.AsOf,
		snap.RateConfig.Basis, snap.RateConfig.Compounding, snap.RateConfig.DayCount,
		snap.RateConfig.Rate.String(), snap.RateConfig.GraceDays,
	)
	if err != nil {
		return fmt.Errorf("failed to save project: %w", err)
	}

	for _, inv := range snap.Invoices {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO invoices (id, project, issue_date, description, original_amount)
			 VALUES (?, ?, ?, ?, ?)`,
			inv.ID, project, inv.IssueDate, inv.Description, inv.OriginalAmount.String(),
		)
		if err != nil {
			return fmt.Errorf("failed to save invoice %s: %w", inv.ID, err)
		}
	}

	for _, p := range snap.Payments {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO payments (id, project, received_date, description, amount)
			 VALUES (?, ?, ?, ?, ?)`,
			p.ID, project, p.ReceivedDate, p.Description, p.Amount.String(),
		)
		if err != nil {
			return fmt.Errorf("failed to save payment %s: %w", p.ID, err)
		}
	}

	for _, a := range snap.Assignments {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO assignments (id, project, payment_id, invoice_id, amount, date, notes)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			a.ID, project, a.PaymentID, a.InvoiceID, a.Amount.String(), a.Date, a.Notes,
		)
		if err != nil {
			return fmt.Errorf("failed to save assignment %s: %w", a.ID, err)
		}
	}

	return tx.Commit()
}

// Load rebuilds the project's snapshot from its tables. Only stored
// inputs come back; derived fields are recomputed when the snapshot is
// replayed into a ledger.
func (s *Store) Load(ctx context.Context, project string) (*ledger.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &ledger.Snapshot{}
	var rate string
	err := s.db.QueryRowContext(ctx,
		`SELECT as_of, rate_basis, compounding, day_count, rate, grace_days
		 FROM projects WHERE name = ?`, project,
	).Scan(&snap.AsOf, &snap.RateConfig.Basis, &snap.RateConfig.Compounding,
		&snap.RateConfig.DayCount, &rate, &snap.RateConfig.GraceDays)
	if err == sql.ErrNoRows {
		return nil, store.ErrProjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load project: %w", err)
	}
	if snap.RateConfig.Rate, err = decimal.NewFromString(rate); err != nil {
		return nil, fmt.Errorf("corrupt rate for project %s: %w", project, err)
	}

	if snap.Invoices, err = s.loadInvoices(ctx, project); err != nil {
		return nil, err
	}
	if snap.Payments, err = s.loadPayments(ctx, project); err != nil {
		return nil, err
	}
	if snap.Assignments, err = s.loadAssignments(ctx, project); err != nil {
		return nil, err
	}
	return snap, nil
}

func (s *Store) loadInvoices(ctx context.Context, project string) ([]ledger.InvoiceRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, issue_date, description, original_amount
		 FROM invoices WHERE project = ? ORDER BY issue_date, id`, project)
	if err != nil {
		return nil, fmt.Errorf("failed to query invoices: %w", err)
	}
	defer rows.Close()

	var out []ledger.InvoiceRecord
	for rows.Next() {
		var r ledger.InvoiceRecord
		var desc sql.NullString
		var amount string
		if err := rows.Scan(&r.ID, &r.IssueDate, &desc, &amount); err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		r.Description = desc.String
		if r.OriginalAmount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("corrupt amount for invoice %s: %w", r.ID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) loadPayments(ctx context.Context, project string) ([]ledger.PaymentRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, received_date, description, amount
		 FROM payments WHERE project = ? ORDER BY received_date, id`, project)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	var out []ledger.PaymentRecord
	for rows.Next() {
		var r ledger.PaymentRecord
		var desc sql.NullString
		var amount string
		if err := rows.Scan(&r.ID, &r.ReceivedDate, &desc, &amount); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		r.Description = desc.String
		if r.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("corrupt amount for payment %s: %w", r.ID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) loadAssignments(ctx context.Context, project string) ([]ledger.AssignmentRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, payment_id, invoice_id, amount, date, notes
		 FROM assignments WHERE project = ? ORDER BY date, id`, project)
	if err != nil {
		return nil, fmt.Errorf("failed to query assignments: %w", err)
	}
	defer rows.Close()

	var out []ledger.AssignmentRecord
	for rows.Next() {
		var r ledger.AssignmentRecord
		var notes sql.NullString
		var amount string
		if err := rows.Scan(&r.ID, &r.PaymentID, &r.InvoiceID, &amount, &r.Date, &notes); err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		r.Notes = notes.String
		if r.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("corrupt amount for assignment %s: %w", r.ID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// List returns all project names, sorted.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT name FROM projects ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Delete removes a project and, via cascade, its rows.
func (s *Store) Delete(ctx context.Context, project string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM projects WHERE name = ?", project)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrProjectNotFound
	}
	return nil
}
