// Package lifecycle manages artifact lifecycles on top of the store: the
// decision validation state machine, the supersession chain, and episode
// open/append/close rules.
//
// Decision states: pending → validated | reversed | superseded. Validated,
// reversed, and superseded are terminal for validate/reverse; superseded
// additionally records a forward link to its replacement.
package lifecycle

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/durolabs/duro/internal/artifact"
	"github.com/durolabs/duro/internal/store"
)

// Confidence deltas for validation outcomes.
const (
	deltaSuccess  = 0.15
	deltaPartial  = 0.075
	deltaReversal = -0.25
)

// Result grades a validated decision's outcome.
type Result string

const (
	ResultSuccess Result = "success"
	ResultPartial Result = "partial"
)

// Manager drives decision and episode lifecycles. All artifact mutations go
// through the store's Update; approvals land in the audit chain.
type Manager struct {
	store   *store.Store
	auditor store.Auditor
	now     func() time.Time

	// Serializes supersession cycle-check + link. The store's per-id locks
	// cover one artifact; a supersede spans two, so concurrent A→B and B→A
	// could otherwise both pass the cycle check.
	supersedeMu sync.Mutex
}

// New creates a lifecycle manager. auditor may be nil (no approval
// auditing); now may be nil to use wall-clock time.
func New(s *store.Store, auditor store.Auditor, now func() time.Time) *Manager {
	if now == nil {
		now = time.Now
	}
	return &Manager{store: s, auditor: auditor, now: now}
}

// ─── Decision validation ─────────────────────────────────────────────────────

// Validate moves a pending decision to validated, recording outcomes and
// adjusting confidence upward by a bounded delta.
func (m *Manager) Validate(decisionID string, result Result, actualOutcome, expectedOutcome string) (*artifact.Artifact, error) {
	var delta float64
	switch result {
	case ResultSuccess:
		delta = deltaSuccess
	case ResultPartial:
		delta = deltaPartial
	default:
		return nil, fmt.Errorf("%w: invalid result %q: must be success or partial", artifact.ErrValidation, result)
	}

	a, err := m.store.Update(decisionID, func(cur *artifact.Artifact) error {
		d, err := decisionOf(cur)
		if err != nil {
			return err
		}
		if d.Status != artifact.StatusPending {
			return fmt.Errorf("%w: cannot validate decision %s from status %s", artifact.ErrInvalidTransition, cur.ID, d.Status)
		}
		d.Status = artifact.StatusValidated
		d.Result = string(result)
		d.ActualOutcome = actualOutcome
		if expectedOutcome != "" {
			d.ExpectedOutcome = expectedOutcome
		}
		d.Confidence = artifact.ClampConfidence(d.Confidence + delta)
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.recordApproval("validate", decisionID, fmt.Sprintf("result=%s", result))
	return a, nil
}

// Reverse moves a pending (or re-assessed validated) decision to reversed.
// next_action is a hard precondition: a reversal without a follow-up is not
// accepted.
func (m *Manager) Reverse(decisionID, actualOutcome, nextAction string) (*artifact.Artifact, error) {
	if strings.TrimSpace(nextAction) == "" {
		return nil, fmt.Errorf("%w: reverse requires a non-empty next_action", artifact.ErrValidation)
	}

	a, err := m.store.Update(decisionID, func(cur *artifact.Artifact) error {
		d, err := decisionOf(cur)
		if err != nil {
			return err
		}
		if d.Status != artifact.StatusPending && d.Status != artifact.StatusValidated {
			return fmt.Errorf("%w: cannot reverse decision %s from status %s", artifact.ErrInvalidTransition, cur.ID, d.Status)
		}
		d.Status = artifact.StatusReversed
		d.Result = "failed"
		d.ActualOutcome = actualOutcome
		d.NextAction = nextAction
		d.Confidence = artifact.ClampConfidence(d.Confidence + deltaReversal)
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.recordApproval("reverse", decisionID, fmt.Sprintf("next_action=%s", nextAction))
	return a, nil
}

func decisionOf(a *artifact.Artifact) (*artifact.Decision, error) {
	if a.Type != artifact.TypeDecision || a.Decision == nil {
		return nil, fmt.Errorf("%w: %s is a %s, not a decision", artifact.ErrValidation, a.ID, a.Type)
	}
	return a.Decision, nil
}

// ─── Supersession ────────────────────────────────────────────────────────────

// Supersede links an artifact to its replacement: same kind only, no cycles.
// The old artifact gets valid_until=now and the forward link; superseded
// decisions also move to the superseded status. The new artifact is not
// touched.
func (m *Manager) Supersede(oldID, newID, reason string) error {
	if oldID == newID {
		return fmt.Errorf("%w: artifact %s cannot supersede itself", artifact.ErrCycle, oldID)
	}

	m.supersedeMu.Lock()
	defer m.supersedeMu.Unlock()

	old, err := m.store.Get(oldID)
	if err != nil {
		return err
	}
	repl, err := m.store.Get(newID)
	if err != nil {
		return err
	}

	if old.Type != repl.Type {
		return fmt.Errorf("%w: cannot supersede %s (%s) with %s (%s)",
			artifact.ErrTypeMismatch, oldID, old.Type, newID, repl.Type)
	}
	if old.Type != artifact.TypeFact && old.Type != artifact.TypeDecision {
		return fmt.Errorf("%w: only facts and decisions form supersession chains, got %s", artifact.ErrValidation, old.Type)
	}

	// Walking forward from the replacement must never reach the old
	// artifact, or the chain would loop.
	if err := m.walkForward(newID, oldID); err != nil {
		return err
	}

	now := m.now()
	_, err = m.store.Update(oldID, func(cur *artifact.Artifact) error {
		switch cur.Type {
		case artifact.TypeFact:
			cur.Fact.SupersededBy = newID
		case artifact.TypeDecision:
			cur.Decision.SupersededBy = newID
			cur.Decision.Status = artifact.StatusSuperseded
		}
		cur.ValidUntil = &now
		return nil
	})
	if err != nil {
		return err
	}
	m.recordApproval("supersede", oldID, fmt.Sprintf("superseded_by=%s reason=%s", newID, reason))
	return nil
}

// walkForward follows superseded_by links from startID and fails with
// ErrCycle if forbiddenID is reachable or a loop is found.
func (m *Manager) walkForward(startID, forbiddenID string) error {
	seen := map[string]bool{startID: true}
	cur := startID
	for {
		a, err := m.store.Get(cur)
		if err != nil {
			return err
		}
		next := a.SupersededBy()
		if next == "" {
			return nil
		}
		if next == forbiddenID {
			return fmt.Errorf("%w: %s is already superseded by %s's chain", artifact.ErrCycle, forbiddenID, startID)
		}
		if seen[next] {
			return fmt.Errorf("%w: supersession chain from %s loops at %s", artifact.ErrCycle, startID, next)
		}
		seen[next] = true
		cur = next
	}
}

// ResolveLatest follows supersession links from id to the terminal artifact.
// Traversal tracks visited ids so a corrupted chain cannot loop forever.
func (m *Manager) ResolveLatest(id string) (*artifact.Artifact, error) {
	seen := map[string]bool{}
	cur := id
	for {
		if seen[cur] {
			return nil, fmt.Errorf("%w: supersession chain from %s loops at %s", artifact.ErrCycle, id, cur)
		}
		seen[cur] = true

		a, err := m.store.Get(cur)
		if err != nil {
			return nil, err
		}
		next := a.SupersededBy()
		if next == "" {
			return a, nil
		}
		cur = next
	}
}

// recordApproval appends an approval entry to the audit chain. The state
// change is already committed at this point, so a failed append is logged
// rather than returned.
func (m *Manager) recordApproval(action, targetID, reason string) {
	if m.auditor == nil {
		return
	}
	if err := m.auditor.Record(action, targetID, reason, "lifecycle"); err != nil {
		log.Printf("lifecycle: audit %s of %s failed: %v", action, targetID, err)
	}
}
