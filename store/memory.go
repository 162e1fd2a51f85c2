package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/warp/interest-engine/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu       sync.RWMutex
	projects map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{projects: make(map[string][]byte)}
}

// Save stores a deep copy of the snapshot, keyed by project name.
func (m *Memory) Save(_ context.Context, project string, snap *ledger.Snapshot) error {
	// Round-tripping through JSON detaches the stored state from the
	// caller's snapshot.
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.projects[project] = data
	return nil
}

func (m *Memory) Load(_ context.Context, project string) (*ledger.Snapshot, error) {
	m.mu.RLock()
	data, ok := m.projects[project]
	m.mu.RUnlock()

	if !ok {
		return nil, ErrProjectNotFound
	}
	return ledger.ParseSnapshot(data)
}

func (m *Memory) List(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.projects))
	for name := range m.projects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (m *Memory) Delete(_ context.Context, project string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.projects[project]; !ok {
		return ErrProjectNotFound
	}
	delete(m.projects, project)
	return nil
}

func (m *Memory) Close() error { return nil }
