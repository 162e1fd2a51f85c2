/*
Package store defines the persistence boundary for ledger snapshots.

PURPOSE:
  The engine is pure and in-memory; persistence is a collaborator's
  concern. A ProjectStore keeps one serialized snapshot per named
  project. Implementations: memory (tests, demos) and sqlite
  (normalized tables, WAL).

SEE ALSO:
  - ledger/snapshot.go: the snapshot form being persisted
  - store/memory.go: in-memory implementation
  - store/sqlite: SQLite implementation
*/
package store

import (
	"context"
	"errors"

	"github.com/warp/interest-engine/ledger"
)

// ErrProjectNotFound is returned when loading or deleting an unknown project.
var ErrProjectNotFound = errors.New("project not found")

// ProjectStore persists one ledger snapshot per project name.
type ProjectStore interface {
	// Save writes the project's snapshot, replacing any previous state.
	Save(ctx context.Context, project string, snap *ledger.Snapshot) error

	// Load returns the project's snapshot, or ErrProjectNotFound.
	Load(ctx context.Context, project string) (*ledger.Snapshot, error)

	// List returns all project names, sorted.
	List(ctx context.Context) ([]string, error)

	// Delete removes a project and its snapshot, or ErrProjectNotFound.
	Delete(ctx context.Context, project string) error

	// Close releases any underlying resources.
	Close() error
}
