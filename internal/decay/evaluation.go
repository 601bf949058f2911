package decay

import (
	"errors"
	"fmt"
	"strings"

	"github.com/durolabs/duro/internal/artifact"
)

// gradeDeltas maps an episode evaluation grade to the confidence delta
// applied to each fact the episode links. Deltas are already within the
// ±0.02 per-episode cap.
var gradeDeltas = map[string]float64{
	"A+": 0.02,
	"A":  0.02,
	"B+": 0.01,
	"B":  0.01,
	"C":  0,
	"D":  -0.01,
	"F":  -0.02,
}

// EvalReport summarizes one evaluation application.
type EvalReport struct {
	EpisodeID      string   `json:"episode_id"`
	Grade          string   `json:"grade"`
	Delta          float64  `json:"delta"`
	AdjustedFacts  []string `json:"adjusted_facts,omitempty"`
	SkippedLinks   []string `json:"skipped_links,omitempty"`
	AlreadyApplied bool     `json:"already_applied"`
}

// ApplyEvaluation attaches a grade to a closed episode and propagates the
// grade's confidence delta to every linked fact. Re-applying is a no-op:
// the evaluation records applied=true the first time, so the same grade can
// never double-count.
func (e *Engine) ApplyEvaluation(episodeID, grade, rubric string) (*EvalReport, error) {
	grade = strings.ToUpper(strings.TrimSpace(grade))
	delta, ok := gradeDeltas[grade]
	if !ok {
		return nil, fmt.Errorf("%w: unknown grade %q: must be one of: A+, A, B+, B, C, D, F", artifact.ErrValidation, grade)
	}

	report := &EvalReport{EpisodeID: episodeID, Grade: grade, Delta: delta}

	var links []string
	updated, err := e.store.Update(episodeID, func(a *artifact.Artifact) error {
		if a.Type != artifact.TypeEpisode {
			return fmt.Errorf("%w: evaluation targets episodes, %s is a %s", artifact.ErrValidation, a.ID, a.Type)
		}
		ep := a.Episode
		if ep.Open() {
			return fmt.Errorf("%w: episode %s is still open; close it before evaluating", artifact.ErrValidation, a.ID)
		}
		if ep.Evaluation != nil && ep.Evaluation.Applied {
			report.AlreadyApplied = true
			return nil
		}
		ep.Evaluation = &artifact.Evaluation{Grade: grade, Rubric: rubric, Applied: true}
		links = append(links, ep.Links...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if report.AlreadyApplied || delta == 0 {
		report.EpisodeID = updated.ID
		return report, nil
	}

	// applied is already set, so a failed propagation cannot be retried.
	// Links to deleted facts are skipped instead of aborting the loop.
	for _, id := range links {
		if artifact.TypeOfID(id) != artifact.TypeFact {
			continue
		}
		if _, err := e.store.Update(id, func(a *artifact.Artifact) error {
			a.Fact.Confidence = artifact.ClampConfidence(a.Fact.Confidence + delta)
			return nil
		}); err != nil {
			if errors.Is(err, artifact.ErrNotFound) {
				report.SkippedLinks = append(report.SkippedLinks, id)
				continue
			}
			return report, fmt.Errorf("adjust fact %s: %w", id, err)
		}
		report.AdjustedFacts = append(report.AdjustedFacts, id)
	}
	return report, nil
}
