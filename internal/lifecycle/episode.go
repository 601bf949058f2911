package lifecycle

import (
	"fmt"
	"strings"

	"github.com/durolabs/duro/internal/artifact"
)

// AppendAction adds a step to an open episode. Actions are append-only and
// refused once the episode has a result.
func (m *Manager) AppendAction(episodeID, summary, tool string) (*artifact.Artifact, error) {
	if strings.TrimSpace(summary) == "" {
		return nil, fmt.Errorf("%w: action requires a non-empty summary", artifact.ErrValidation)
	}
	return m.store.Update(episodeID, func(a *artifact.Artifact) error {
		ep, err := episodeOf(a)
		if err != nil {
			return err
		}
		if !ep.Open() {
			return fmt.Errorf("%w: episode %s is closed; actions are append-only while open", artifact.ErrValidation, a.ID)
		}
		ep.Actions = append(ep.Actions, artifact.Action{
			Timestamp: m.now(),
			Summary:   summary,
			Tool:      tool,
		})
		return nil
	})
}

// CloseEpisode sets the episode's terminal result and optionally links the
// facts/decisions it created or used. The result is immutable once set;
// evaluation may still attach a rubric afterwards.
func (m *Manager) CloseEpisode(episodeID string, result artifact.EpisodeResult, links []string) (*artifact.Artifact, error) {
	if err := artifact.ValidateEpisodeResult(result); err != nil {
		return nil, err
	}
	return m.store.Update(episodeID, func(a *artifact.Artifact) error {
		ep, err := episodeOf(a)
		if err != nil {
			return err
		}
		if !ep.Open() {
			return fmt.Errorf("%w: episode %s already closed with result %s", artifact.ErrValidation, a.ID, ep.Result)
		}
		ep.Result = result
		ep.Links = append(ep.Links, links...)
		return nil
	})
}

func episodeOf(a *artifact.Artifact) (*artifact.Episode, error) {
	if a.Type != artifact.TypeEpisode || a.Episode == nil {
		return nil, fmt.Errorf("%w: %s is a %s, not an episode", artifact.ErrValidation, a.ID, a.Type)
	}
	return a.Episode, nil
}
