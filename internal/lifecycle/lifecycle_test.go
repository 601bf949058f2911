package lifecycle_test

import (
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/durolabs/duro/internal/artifact"
	"github.com/durolabs/duro/internal/lifecycle"
	"github.com/durolabs/duro/internal/store"
)

// recordingAuditor captures audit records for assertions.
type recordingAuditor struct {
	actions []string
}

func (r *recordingAuditor) Record(action, targetID, reason, actor string) error {
	r.actions = append(r.actions, action)
	return nil
}

func (r *recordingAuditor) RecordTx(_ *sql.Tx, action, targetID, reason, actor string) (func(), error) {
	return func() {}, r.Record(action, targetID, reason, actor)
}

func newTestManager(t *testing.T) (*lifecycle.Manager, *store.Store, *recordingAuditor) {
	t.Helper()
	now := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)
	s, err := store.New(store.Config{DataDir: t.TempDir(), Now: func() time.Time { return now }})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	aud := &recordingAuditor{}
	return lifecycle.New(s, aud, func() time.Time { return now }), s, aud
}

func createDecision(t *testing.T, s *store.Store, text string) *artifact.Artifact {
	t.Helper()
	a, err := s.Create(&artifact.Artifact{
		Type: artifact.TypeDecision,
		Decision: &artifact.Decision{
			Decision:        text,
			Rationale:       "tradeoffs considered",
			ExpectedOutcome: "fewer pages",
		},
	})
	require.NoError(t, err)
	return a
}

func createFact(t *testing.T, s *store.Store, claim string) *artifact.Artifact {
	t.Helper()
	a, err := s.Create(&artifact.Artifact{
		Type: artifact.TypeFact,
		Fact: &artifact.Fact{
			Claim:        claim,
			Confidence:   0.5,
			EvidenceType: artifact.EvidenceNone,
			Provenance:   artifact.ProvenanceUnknown,
		},
	})
	require.NoError(t, err)
	return a
}

// ─── Validate ───────────────────────────────────────────────────────────────

func TestValidate_Success(t *testing.T) {
	m, s, aud := newTestManager(t)
	d := createDecision(t, s, "move ingestion to a worker pool")

	got, err := m.Validate(d.ID, lifecycle.ResultSuccess, "p99 dropped by half", "")
	require.NoError(t, err)

	assert.Equal(t, artifact.StatusValidated, got.Decision.Status)
	assert.Equal(t, "success", got.Decision.Result)
	assert.Equal(t, "p99 dropped by half", got.Decision.ActualOutcome)
	assert.InDelta(t, 0.65, got.Decision.Confidence, 1e-9)
	assert.Contains(t, aud.actions, "validate")
}

func TestValidate_Partial(t *testing.T) {
	m, s, _ := newTestManager(t)
	d := createDecision(t, s, "partial win")

	got, err := m.Validate(d.ID, lifecycle.ResultPartial, "improved but not fixed", "")
	require.NoError(t, err)
	assert.InDelta(t, 0.575, got.Decision.Confidence, 1e-9)
	assert.Equal(t, "partial", got.Decision.Result)
}

func TestValidate_OnlyFromPending(t *testing.T) {
	m, s, _ := newTestManager(t)
	d := createDecision(t, s, "validate once")

	_, err := m.Validate(d.ID, lifecycle.ResultSuccess, "worked", "")
	require.NoError(t, err)

	_, err = m.Validate(d.ID, lifecycle.ResultSuccess, "worked again", "")
	assert.ErrorIs(t, err, artifact.ErrInvalidTransition)
}

func TestValidate_BadResult(t *testing.T) {
	m, s, _ := newTestManager(t)
	d := createDecision(t, s, "bad result")

	_, err := m.Validate(d.ID, "amazing", "", "")
	assert.ErrorIs(t, err, artifact.ErrValidation)
}

func TestValidate_RejectsNonDecision(t *testing.T) {
	m, s, _ := newTestManager(t)
	f := createFact(t, s, "not a decision")

	_, err := m.Validate(f.ID, lifecycle.ResultSuccess, "", "")
	assert.ErrorIs(t, err, artifact.ErrValidation)
}

// ─── Reverse ────────────────────────────────────────────────────────────────

func TestReverse_RequiresNextAction(t *testing.T) {
	m, s, _ := newTestManager(t)
	d := createDecision(t, s, "no follow-up")

	_, err := m.Reverse(d.ID, "made things worse", "  ")
	assert.ErrorIs(t, err, artifact.ErrValidation)

	// The decision is untouched.
	got, err := s.Get(d.ID)
	require.NoError(t, err)
	assert.Equal(t, artifact.StatusPending, got.Decision.Status)
}

func TestReverse_FromPending(t *testing.T) {
	m, s, aud := newTestManager(t)
	d := createDecision(t, s, "roll back the cache layer")

	got, err := m.Reverse(d.ID, "cache invalidation bugs", "remove the layer and re-measure")
	require.NoError(t, err)

	assert.Equal(t, artifact.StatusReversed, got.Decision.Status)
	assert.Equal(t, "failed", got.Decision.Result)
	assert.Equal(t, "remove the layer and re-measure", got.Decision.NextAction)
	assert.InDelta(t, 0.25, got.Decision.Confidence, 1e-9)
	assert.Contains(t, aud.actions, "reverse")
}

func TestReverse_FromValidated(t *testing.T) {
	m, s, _ := newTestManager(t)
	d := createDecision(t, s, "looked right at first")

	_, err := m.Validate(d.ID, lifecycle.ResultSuccess, "seemed fine", "")
	require.NoError(t, err)

	got, err := m.Reverse(d.ID, "regressed under load", "revert and shard instead")
	require.NoError(t, err)
	assert.Equal(t, artifact.StatusReversed, got.Decision.Status)
}

func TestReverse_NotFromReversed(t *testing.T) {
	m, s, _ := newTestManager(t)
	d := createDecision(t, s, "reverse once")

	_, err := m.Reverse(d.ID, "bad", "try plan b")
	require.NoError(t, err)

	_, err = m.Reverse(d.ID, "still bad", "try plan c")
	assert.ErrorIs(t, err, artifact.ErrInvalidTransition)
}

// ─── Supersede ──────────────────────────────────────────────────────────────

func TestSupersede_LinksAndExpires(t *testing.T) {
	m, s, aud := newTestManager(t)
	old := createFact(t, s, "old truth")
	repl := createFact(t, s, "new truth")

	require.NoError(t, m.Supersede(old.ID, repl.ID, "data refreshed"))

	got, err := s.Get(old.ID)
	require.NoError(t, err)
	assert.Equal(t, repl.ID, got.Fact.SupersededBy)
	require.NotNil(t, got.ValidUntil)

	// The replacement is untouched.
	gotRepl, err := s.Get(repl.ID)
	require.NoError(t, err)
	assert.Empty(t, gotRepl.Fact.SupersededBy)
	assert.Nil(t, gotRepl.ValidUntil)

	assert.Contains(t, aud.actions, "supersede")
}

func TestSupersede_DecisionMovesToSuperseded(t *testing.T) {
	m, s, _ := newTestManager(t)
	old := createDecision(t, s, "v1 approach")
	repl := createDecision(t, s, "v2 approach")

	require.NoError(t, m.Supersede(old.ID, repl.ID, "replaced by v2"))

	got, err := s.Get(old.ID)
	require.NoError(t, err)
	assert.Equal(t, artifact.StatusSuperseded, got.Decision.Status)
	assert.Equal(t, repl.ID, got.Decision.SupersededBy)
}

func TestSupersede_SelfCycle(t *testing.T) {
	m, s, _ := newTestManager(t)
	a := createFact(t, s, "self")

	err := m.Supersede(a.ID, a.ID, "oops")
	assert.ErrorIs(t, err, artifact.ErrCycle)
}

func TestSupersede_TwoNodeCycle(t *testing.T) {
	m, s, _ := newTestManager(t)
	a := createFact(t, s, "a")
	b := createFact(t, s, "b")

	require.NoError(t, m.Supersede(a.ID, b.ID, "a replaced by b"))
	err := m.Supersede(b.ID, a.ID, "b replaced by a")
	assert.ErrorIs(t, err, artifact.ErrCycle)
}

func TestSupersede_ConcurrentOpposingCallsCannotLoop(t *testing.T) {
	m, s, _ := newTestManager(t)
	a := createFact(t, s, "a")
	b := createFact(t, s, "b")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		errs[0] = m.Supersede(a.ID, b.ID, "a replaced by b")
	}()
	go func() {
		defer wg.Done()
		errs[1] = m.Supersede(b.ID, a.ID, "b replaced by a")
	}()
	wg.Wait()

	// Exactly one direction wins; the other hits the cycle check.
	var failures int
	for _, err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, artifact.ErrCycle)
			failures++
		}
	}
	assert.Equal(t, 1, failures)

	// Whichever won, both ids resolve to a terminal artifact.
	latest, err := m.ResolveLatest(a.ID)
	require.NoError(t, err)
	assert.Empty(t, latest.SupersededBy())
}

func TestSupersede_TypeMismatch(t *testing.T) {
	m, s, _ := newTestManager(t)
	f := createFact(t, s, "a fact")
	d := createDecision(t, s, "a decision")

	err := m.Supersede(f.ID, d.ID, "wrong kind")
	assert.ErrorIs(t, err, artifact.ErrTypeMismatch)
}

func TestSupersede_OnlyFactsAndDecisions(t *testing.T) {
	m, s, _ := newTestManager(t)
	e1, err := s.Create(&artifact.Artifact{
		Type:    artifact.TypeEpisode,
		Episode: &artifact.Episode{Goal: "one"},
	})
	require.NoError(t, err)
	e2, err := s.Create(&artifact.Artifact{
		Type:    artifact.TypeEpisode,
		Episode: &artifact.Episode{Goal: "two"},
	})
	require.NoError(t, err)

	err = m.Supersede(e1.ID, e2.ID, "episodes do not chain")
	assert.ErrorIs(t, err, artifact.ErrValidation)
}

func TestSupersede_MissingArtifact(t *testing.T) {
	m, s, _ := newTestManager(t)
	a := createFact(t, s, "exists")

	err := m.Supersede(a.ID, "fact-20250101T000000.000-deadbeef", "gone")
	assert.ErrorIs(t, err, artifact.ErrNotFound)
}

// ─── ResolveLatest ──────────────────────────────────────────────────────────

func TestResolveLatest_WalksChain(t *testing.T) {
	m, s, _ := newTestManager(t)
	v1 := createFact(t, s, "v1")
	v2 := createFact(t, s, "v2")
	v3 := createFact(t, s, "v3")

	require.NoError(t, m.Supersede(v1.ID, v2.ID, ""))
	require.NoError(t, m.Supersede(v2.ID, v3.ID, ""))

	got, err := m.ResolveLatest(v1.ID)
	require.NoError(t, err)
	assert.Equal(t, v3.ID, got.ID)

	// A current artifact resolves to itself.
	got, err = m.ResolveLatest(v3.ID)
	require.NoError(t, err)
	assert.Equal(t, v3.ID, got.ID)
}

func TestResolveLatest_CorruptedChainLoops(t *testing.T) {
	m, s, _ := newTestManager(t)
	a := createFact(t, s, "a")
	b := createFact(t, s, "b")

	// Write the loop directly: Supersede would refuse it.
	_, err := s.Update(a.ID, func(cur *artifact.Artifact) error {
		cur.Fact.SupersededBy = b.ID
		return nil
	})
	require.NoError(t, err)
	_, err = s.Update(b.ID, func(cur *artifact.Artifact) error {
		cur.Fact.SupersededBy = a.ID
		return nil
	})
	require.NoError(t, err)

	_, err = m.ResolveLatest(a.ID)
	assert.ErrorIs(t, err, artifact.ErrCycle)
}
