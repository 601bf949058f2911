package audit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/durolabs/duro/internal/audit"
	"github.com/durolabs/duro/internal/store"
)

// newTestLog builds a Log over a fresh store database with a ticking clock
// so appended entries carry strictly increasing timestamps.
func newTestLog(t *testing.T) *audit.Log {
	t.Helper()
	s, err := store.New(store.Config{DataDir: t.TempDir(), Now: time.Now})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	base := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	now := func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	return audit.New(s.DB(), now)
}

func appendN(t *testing.T, l *audit.Log, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := l.Append("delete", "fact-20250101T000000.000-deadbeef", "cleanup", "tester")
		require.NoError(t, err)
	}
}

func TestVerifyChain_Empty(t *testing.T) {
	l := newTestLog(t)

	report, err := l.VerifyChain(context.Background())
	require.NoError(t, err)
	assert.True(t, report.ChainValid)
	assert.Zero(t, report.Entries)
}

func TestAppend_LinksFromGenesis(t *testing.T) {
	l := newTestLog(t)

	first, err := l.Append("delete", "fact-x", "why", "tester")
	require.NoError(t, err)
	assert.Equal(t, int64(0), first.Index)
	assert.Equal(t, audit.GenesisHash(), first.PrevHash)
	assert.NotEmpty(t, first.ThisHash)

	second, err := l.Append("supersede", "decision-y", "replaced", "lifecycle")
	require.NoError(t, err)
	assert.Equal(t, int64(1), second.Index)
	assert.Equal(t, first.ThisHash, second.PrevHash)
}

func TestVerifyChain_Valid(t *testing.T) {
	l := newTestLog(t)
	appendN(t, l, 10)

	report, err := l.VerifyChain(context.Background())
	require.NoError(t, err)
	assert.True(t, report.ChainValid)
	assert.Equal(t, 10, report.Entries)
	assert.Nil(t, report.BreakIndex)

	n, err := l.Len()
	require.NoError(t, err)
	assert.Equal(t, 10, n)
}

func TestAppendTx_ResolvesWithTransaction(t *testing.T) {
	s, err := store.New(store.Config{DataDir: t.TempDir(), Now: time.Now})
	require.NoError(t, err)
	defer s.Close()
	l := audit.New(s.DB(), time.Now)

	// A rolled-back transaction leaves no entry behind.
	tx, err := s.DB().Begin()
	require.NoError(t, err)
	_, release, err := l.AppendTx(tx, "delete", "fact-a", "cleanup", "tester")
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())
	release()

	n, err := l.Len()
	require.NoError(t, err)
	assert.Zero(t, n)

	// A committed one extends the chain from genesis.
	tx, err = s.DB().Begin()
	require.NoError(t, err)
	entry, release, err := l.AppendTx(tx, "delete", "fact-a", "cleanup", "tester")
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	release()

	assert.Equal(t, int64(0), entry.Index)
	assert.Equal(t, audit.GenesisHash(), entry.PrevHash)

	report, err := l.VerifyChain(context.Background())
	require.NoError(t, err)
	assert.True(t, report.ChainValid)
	assert.Equal(t, 1, report.Entries)
}

func TestVerifyChain_DetectsModifiedField(t *testing.T) {
	s, err := store.New(store.Config{DataDir: t.TempDir(), Now: time.Now})
	require.NoError(t, err)
	defer s.Close()
	l := audit.New(s.DB(), time.Now)
	appendN(t, l, 5)

	_, err = s.DB().Exec(`UPDATE audit_log SET reason = 'rewritten history' WHERE idx = 2`)
	require.NoError(t, err)

	report, err := l.VerifyChain(context.Background())
	require.NoError(t, err)
	assert.False(t, report.ChainValid)
	require.NotNil(t, report.BreakIndex)
	assert.Equal(t, int64(2), *report.BreakIndex)
	assert.Contains(t, report.Detail, "recomputed")
}

func TestVerifyChain_DetectsDeletedEntry(t *testing.T) {
	s, err := store.New(store.Config{DataDir: t.TempDir(), Now: time.Now})
	require.NoError(t, err)
	defer s.Close()
	l := audit.New(s.DB(), time.Now)
	appendN(t, l, 5)

	_, err = s.DB().Exec(`DELETE FROM audit_log WHERE idx = 1`)
	require.NoError(t, err)

	report, err := l.VerifyChain(context.Background())
	require.NoError(t, err)
	assert.False(t, report.ChainValid)
	require.NotNil(t, report.BreakIndex)
	assert.Equal(t, int64(1), *report.BreakIndex)
	assert.Contains(t, report.Detail, "index gap")
}

func TestVerifyChain_DetectsRelinkedTail(t *testing.T) {
	s, err := store.New(store.Config{DataDir: t.TempDir(), Now: time.Now})
	require.NoError(t, err)
	defer s.Close()
	l := audit.New(s.DB(), time.Now)
	appendN(t, l, 3)

	// Re-pointing an entry at the genesis hash breaks linkage even when its
	// own hash is recomputed to match.
	_, err = s.DB().Exec(`UPDATE audit_log SET prev_hash = ? WHERE idx = 2`, audit.GenesisHash())
	require.NoError(t, err)

	report, err := l.VerifyChain(context.Background())
	require.NoError(t, err)
	assert.False(t, report.ChainValid)
	require.NotNil(t, report.BreakIndex)
	assert.Equal(t, int64(2), *report.BreakIndex)
}

func TestVerifyChain_Cancelled(t *testing.T) {
	l := newTestLog(t)
	appendN(t, l, 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := l.VerifyChain(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRecord_ImplementsAuditor(t *testing.T) {
	l := newTestLog(t)
	var auditor store.Auditor = l
	require.NoError(t, auditor.Record("delete", "fact-z", "test", "tester"))

	entries, err := l.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "delete", entries[0].Action)
	assert.Equal(t, "tester", entries[0].Actor)
}
