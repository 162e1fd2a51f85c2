package sqlite_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/interest-engine/ledger"
	"github.com/warp/interest-engine/store"
	"github.com/warp/interest-engine/store/sqlite"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func buildSnapshot(t *testing.T) *ledger.Snapshot {
	t.Helper()
	l := ledger.New(ledger.DefaultRateConfig(), ledger.MustDate("2024-07-01"))
	_, err := l.AddInvoice("inv-1", ledger.MustDate("2024-01-01"), "consulting", ledger.MustMoney("1000"))
	require.NoError(t, err)
	_, err = l.AddInvoice("inv-2", ledger.MustDate("2024-02-15"), "hosting", ledger.MustMoney("250.50"))
	require.NoError(t, err)
	_, err = l.AddPayment("pay-1", ledger.MustDate("2024-04-01"), "wire", ledger.MustMoney("400"))
	require.NoError(t, err)
	_, err = l.AssignPayment("pay-1", "inv-1", ledger.MustMoney("400"), ledger.MustDate("2024-04-01"), "first installment")
	require.NoError(t, err)

	snap, err := l.ExportSnapshot()
	require.NoError(t, err)
	return snap
}

func TestSQLite_SaveLoadRoundTrip(t *testing.T) {
	// GIVEN: A snapshot saved into normalized tables
	// WHEN: Loading and replaying it
	// THEN: History and exact decimal amounts survive

	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Save(ctx, "acme", buildSnapshot(t)))

	loaded, err := s.Load(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, loaded.Invoices, 2)
	require.Len(t, loaded.Payments, 1)
	require.Len(t, loaded.Assignments, 1)
	assert.True(t, loaded.Invoices[1].OriginalAmount.Equal(ledger.MustMoney("250.50")))
	assert.Equal(t, "first installment", loaded.Assignments[0].Notes)

	l, err := ledger.BuildLedger(loaded)
	require.NoError(t, err)
	inv, err := l.Invoice("inv-1")
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusPartial, inv.Status)
	assert.True(t, inv.Balance.Equal(ledger.MustMoney("600")))
	assert.Equal(t, ledger.DefaultRateConfig(), l.Config())
}

func TestSQLite_SaveReplacesPreviousState(t *testing.T) {
	// GIVEN: A saved project
	// WHEN: Saving a smaller snapshot under the same name
	// THEN: The old rows are gone, not merged

	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.Save(ctx, "acme", buildSnapshot(t)))

	l := ledger.New(ledger.DefaultRateConfig(), ledger.MustDate("2024-07-01"))
	_, err := l.AddInvoice("inv-9", ledger.MustDate("2024-06-01"), "", ledger.MustMoney("50"))
	require.NoError(t, err)
	snap, err := l.ExportSnapshot()
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, "acme", snap))

	loaded, err := s.Load(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, loaded.Invoices, 1)
	assert.Equal(t, "inv-9", loaded.Invoices[0].ID)
	assert.Empty(t, loaded.Assignments)
}

func TestSQLite_LoadUnknownProject(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Load(context.Background(), "ghost")
	require.ErrorIs(t, err, store.ErrProjectNotFound)
}

func TestSQLite_ListAndDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.Save(ctx, "beta", buildSnapshot(t)))
	require.NoError(t, s.Save(ctx, "acme", buildSnapshot(t)))

	names, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"acme", "beta"}, names)

	require.NoError(t, s.Delete(ctx, "beta"))
	require.ErrorIs(t, s.Delete(ctx, "beta"), store.ErrProjectNotFound)

	_, err = s.Load(ctx, "beta")
	require.ErrorIs(t, err, store.ErrProjectNotFound)
}
