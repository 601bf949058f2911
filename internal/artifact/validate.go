package artifact

import (
	"fmt"
	"strings"
)

// Validate checks the artifact's variant invariants. It is called by the
// store on create and after every update; a failing artifact is never
// persisted.
func (a *Artifact) Validate() error {
	if err := ValidateType(a.Type); err != nil {
		return err
	}
	if !validSensitivities[a.Sensitivity] {
		return fmt.Errorf("%w: invalid sensitivity %q", ErrValidation, a.Sensitivity)
	}

	switch a.Type {
	case TypeFact:
		if a.Fact == nil {
			return fmt.Errorf("%w: fact artifact missing fact content", ErrValidation)
		}
		return a.Fact.validate()
	case TypeDecision:
		if a.Decision == nil {
			return fmt.Errorf("%w: decision artifact missing decision content", ErrValidation)
		}
		return a.Decision.validate()
	case TypeEpisode:
		if a.Episode == nil {
			return fmt.Errorf("%w: episode artifact missing episode content", ErrValidation)
		}
		return a.Episode.validate()
	case TypeIncident:
		if a.Incident == nil {
			return fmt.Errorf("%w: incident artifact missing incident content", ErrValidation)
		}
		return a.Incident.validate()
	case TypeChange:
		if a.Change == nil {
			return fmt.Errorf("%w: change artifact missing change content", ErrValidation)
		}
		return a.Change.validate()
	}
	return nil
}

func (f *Fact) validate() error {
	if strings.TrimSpace(f.Claim) == "" {
		return fmt.Errorf("%w: fact requires a non-empty claim", ErrValidation)
	}
	if f.Confidence < ConfidenceFloor || f.Confidence > ConfidenceCeiling {
		return fmt.Errorf("%w: fact confidence %.3f outside [%.2f, %.2f]",
			ErrValidation, f.Confidence, ConfidenceFloor, ConfidenceCeiling)
	}
	if f.EvidenceType != "" && !validEvidenceTypes[f.EvidenceType] {
		return fmt.Errorf("%w: invalid evidence_type %q: must be one of: quote, paraphrase, inference, none", ErrValidation, f.EvidenceType)
	}
	if f.Provenance != "" && !validProvenances[f.Provenance] {
		return fmt.Errorf("%w: invalid provenance %q: must be one of: web, local_file, user, tool_output, unknown", ErrValidation, f.Provenance)
	}

	// High-confidence claims must carry their evidence.
	if f.Confidence >= HighConfidenceGate {
		if len(f.SourceURLs) == 0 {
			return fmt.Errorf("%w: fact with confidence >= %.1f requires non-empty source_urls", ErrValidation, HighConfidenceGate)
		}
		if f.EvidenceType == "" || f.EvidenceType == EvidenceNone {
			return fmt.Errorf("%w: fact with confidence >= %.1f requires evidence_type other than none", ErrValidation, HighConfidenceGate)
		}
	}
	return nil
}

func (d *Decision) validate() error {
	if strings.TrimSpace(d.Decision) == "" {
		return fmt.Errorf("%w: decision requires non-empty decision text", ErrValidation)
	}
	if strings.TrimSpace(d.Rationale) == "" {
		return fmt.Errorf("%w: decision requires a non-empty rationale", ErrValidation)
	}
	switch d.Status {
	case StatusPending, StatusValidated, StatusReversed, StatusSuperseded:
	default:
		return fmt.Errorf("%w: invalid decision status %q", ErrValidation, d.Status)
	}
	if d.Confidence < ConfidenceFloor || d.Confidence > ConfidenceCeiling {
		return fmt.Errorf("%w: decision confidence %.3f outside [%.2f, %.2f]",
			ErrValidation, d.Confidence, ConfidenceFloor, ConfidenceCeiling)
	}
	return nil
}

func (e *Episode) validate() error {
	if strings.TrimSpace(e.Goal) == "" {
		return fmt.Errorf("%w: episode requires a non-empty goal", ErrValidation)
	}
	if e.Result != "" {
		if err := ValidateEpisodeResult(e.Result); err != nil {
			return err
		}
	}
	return nil
}

func (i *Incident) validate() error {
	if strings.TrimSpace(i.Symptom) == "" {
		return fmt.Errorf("%w: incident requires a non-empty symptom", ErrValidation)
	}
	// Gate: incidents are not storable until they can be reproduced.
	steps := 0
	for _, s := range i.ReproSteps {
		if strings.TrimSpace(s) != "" {
			steps++
		}
	}
	if steps < 2 {
		return fmt.Errorf("%w: incident requires at least 2 repro_steps, got %d", ErrValidation, steps)
	}
	if len(i.RecentChangeScan.ChangeIDs) == 0 && strings.TrimSpace(i.RecentChangeScan.ClearedReason) == "" {
		return fmt.Errorf("%w: incident recent_change_scan must link change artifacts or record a cleared_reason", ErrValidation)
	}
	for _, id := range i.RecentChangeScan.ChangeIDs {
		if TypeOfID(id) != TypeChange {
			return fmt.Errorf("%w: recent_change_scan id %q is not a change artifact id", ErrValidation, id)
		}
	}
	return nil
}

func (c *Change) validate() error {
	if strings.TrimSpace(c.Scope) == "" {
		return fmt.Errorf("%w: change requires a non-empty scope", ErrValidation)
	}
	if strings.TrimSpace(c.Change) == "" {
		return fmt.Errorf("%w: change requires a non-empty change description", ErrValidation)
	}
	for _, tag := range c.RiskTags {
		if !riskTagVocabulary[tag] {
			return fmt.Errorf("%w: unknown risk tag %q: must be one of: security, data, perf, availability, api, config, deps, infra", ErrValidation, tag)
		}
	}
	return nil
}
