// Package decay implements time-based confidence erosion and reinforcement
// for fact artifacts, plus episode-grade confidence adjustments.
//
// Decay algorithm:
//   - new_confidence = old_confidence * 0.99^days since last reinforcement
//   - days are whole days, fraction truncated
//   - floor: 0.05 — facts are never fully forgotten
//   - pinned facts are skipped entirely, not decayed by zero
//   - reinforcement resets the clock without raising confidence
//
// The engine mutates artifacts only through the store's Update, one record
// at a time, so a cancelled pass leaves every already-processed fact
// committed and the rest untouched.
package decay

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/durolabs/duro/internal/artifact"
	"github.com/durolabs/duro/internal/store"
)

// DailyRate is the per-day confidence retention factor.
const DailyRate = 0.99

// Engine applies decay and reinforcement on top of the artifact store.
type Engine struct {
	store *store.Store
	now   func() time.Time
}

// New creates a decay engine. now may be nil to use wall-clock time.
func New(s *store.Store, now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{store: s, now: now}
}

// Reinforce resets a fact's decay clock. Confidence is unchanged:
// reinforcement stops decay, it does not raise belief.
func (e *Engine) Reinforce(factID string) (*artifact.Artifact, error) {
	return e.store.Update(factID, func(a *artifact.Artifact) error {
		if a.Type != artifact.TypeFact {
			return fmt.Errorf("%w: reinforce targets facts, %s is a %s", artifact.ErrValidation, a.ID, a.Type)
		}
		a.Fact.LastReinforcedAt = e.now()
		a.Fact.LastDecayedAt = time.Time{}
		return nil
	})
}

// Options controls a decay pass.
type Options struct {
	// DryRun reports proposed changes without mutating anything.
	DryRun bool
	// MinConfidence limits the pass to facts at or above this confidence.
	// Zero means all facts.
	MinConfidence float64
}

// Change is one fact's proposed or applied confidence adjustment.
type Change struct {
	FactID        string  `json:"fact_id"`
	OldConfidence float64 `json:"old_confidence"`
	NewConfidence float64 `json:"new_confidence"`
	Days          int     `json:"days"`
}

// Report summarizes a decay pass. Partial is set when the pass was
// cancelled; Changes then covers only the records processed before the
// cancellation, all of which remain committed.
type Report struct {
	Scanned int      `json:"scanned"`
	Skipped int      `json:"skipped_pinned"`
	Changes []Change `json:"changes"`
	DryRun  bool     `json:"dry_run"`
	Partial bool     `json:"partial"`
}

// Run scans all facts and applies (or, for dry runs, proposes) decay.
// Each record's update is atomic and independently committed; cancellation
// between records returns a partial report rather than rolling back.
func (e *Engine) Run(ctx context.Context, opts Options) (*Report, error) {
	report := &Report{DryRun: opts.DryRun}
	now := e.now()

	// Superseded facts are out of scope: their valid_until already marks
	// them stale, and their confidence is no longer consulted anywhere.
	for a, err := range e.store.List(store.ListFilter{Type: artifact.TypeFact}) {
		if err != nil {
			return report, err
		}
		select {
		case <-ctx.Done():
			report.Partial = true
			return report, ctx.Err()
		default:
		}

		f := a.Fact
		if f == nil {
			continue
		}
		report.Scanned++

		if f.Pinned {
			report.Skipped++
			continue
		}
		if opts.MinConfidence > 0 && f.Confidence < opts.MinConfidence {
			continue
		}

		// Decay is charged from the later of the reinforcement clock and the
		// decay watermark: reinforcement restarts the clock, the watermark
		// keeps an immediate second pass from compounding the same days.
		ref := f.LastReinforcedAt
		if f.LastDecayedAt.After(ref) {
			ref = f.LastDecayedAt
		}
		days := wholeDays(now.Sub(ref))
		if days <= 0 {
			continue
		}

		newConf := Decayed(f.Confidence, days)
		if newConf == f.Confidence {
			continue
		}

		change := Change{FactID: a.ID, OldConfidence: f.Confidence, NewConfidence: newConf, Days: days}
		if !opts.DryRun {
			decayedAt := ref.Add(time.Duration(days) * 24 * time.Hour)
			if _, err := e.store.Update(a.ID, func(cur *artifact.Artifact) error {
				cur.Fact.Confidence = newConf
				cur.Fact.LastDecayedAt = decayedAt
				return nil
			}); err != nil {
				report.Partial = true
				return report, fmt.Errorf("decay %s: %w", a.ID, err)
			}
		}
		report.Changes = append(report.Changes, change)
	}
	return report, nil
}

// Decayed computes a confidence after the given number of whole days,
// clamped to the legal range.
func Decayed(confidence float64, days int) float64 {
	if days <= 0 {
		return confidence
	}
	return artifact.ClampConfidence(confidence * math.Pow(DailyRate, float64(days)))
}

func wholeDays(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(d.Hours() / 24)
}
