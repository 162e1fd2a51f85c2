package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/interest-engine/ledger"
	"github.com/warp/interest-engine/store"
)

func sampleSnapshot(t *testing.T) *ledger.Snapshot {
	t.Helper()
	l := ledger.New(ledger.DefaultRateConfig(), ledger.MustDate("2024-07-01"))
	_, err := l.AddInvoice("inv-1", ledger.MustDate("2024-01-01"), "consulting", ledger.MustMoney("1000"))
	require.NoError(t, err)
	_, err = l.AddPayment("pay-1", ledger.MustDate("2024-04-01"), "wire", ledger.MustMoney("400"))
	require.NoError(t, err)
	_, err = l.AssignPayment("pay-1", "inv-1", ledger.MustMoney("400"), ledger.MustDate("2024-04-01"), "")
	require.NoError(t, err)

	snap, err := l.ExportSnapshot()
	require.NoError(t, err)
	return snap
}

func TestMemory_SaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	require.NoError(t, m.Save(ctx, "acme", sampleSnapshot(t)))

	loaded, err := m.Load(ctx, "acme")
	require.NoError(t, err)

	l, err := ledger.BuildLedger(loaded)
	require.NoError(t, err)
	inv, err := l.Invoice("inv-1")
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusPartial, inv.Status)
	assert.True(t, inv.Balance.Equal(ledger.MustMoney("600")))
}

func TestMemory_LoadUnknownProject(t *testing.T) {
	_, err := store.NewMemory().Load(context.Background(), "ghost")
	require.ErrorIs(t, err, store.ErrProjectNotFound)
}

func TestMemory_SaveDetachesFromCaller(t *testing.T) {
	// GIVEN: A saved snapshot
	// WHEN: The caller mutates their copy afterwards
	// THEN: The stored state is unaffected

	ctx := context.Background()
	m := store.NewMemory()
	snap := sampleSnapshot(t)
	require.NoError(t, m.Save(ctx, "acme", snap))

	snap.Invoices[0].OriginalAmount = ledger.MustMoney("999999")

	loaded, err := m.Load(ctx, "acme")
	require.NoError(t, err)
	assert.True(t, loaded.Invoices[0].OriginalAmount.Equal(ledger.MustMoney("1000")))
}

func TestMemory_ListAndDelete(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	require.NoError(t, m.Save(ctx, "beta", sampleSnapshot(t)))
	require.NoError(t, m.Save(ctx, "acme", sampleSnapshot(t)))

	names, err := m.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"acme", "beta"}, names)

	require.NoError(t, m.Delete(ctx, "beta"))
	require.ErrorIs(t, m.Delete(ctx, "beta"), store.ErrProjectNotFound)

	names, err = m.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"acme"}, names)
}
