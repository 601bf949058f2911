// Package artifact defines the typed memory records Duro persists and the
// rules they must satisfy.
//
// An Artifact is a tagged union: the Type field names the variant and exactly
// one of the variant pointers (Fact, Decision, Episode, Incident, Change) is
// non-nil. Variant payloads are strongly typed — callers never reach into a
// loose JSON blob.
package artifact

import (
	"fmt"
	"strings"
	"time"
)

// --- Artifact type enum ---

// Type categorizes what kind of memory an artifact holds.
type Type string

const (
	TypeFact     Type = "fact"
	TypeDecision Type = "decision"
	TypeEpisode  Type = "episode"
	TypeIncident Type = "incident"
	TypeChange   Type = "change"
)

// validTypes is the set of allowed artifact types.
var validTypes = map[Type]bool{
	TypeFact:     true,
	TypeDecision: true,
	TypeEpisode:  true,
	TypeIncident: true,
	TypeChange:   true,
}

// ValidateType returns an error if the type is not recognized.
func ValidateType(t Type) error {
	if !validTypes[t] {
		return fmt.Errorf("%w: invalid artifact type %q: must be one of: fact, decision, episode, incident, change", ErrValidation, t)
	}
	return nil
}

// --- Sensitivity enum ---

// Sensitivity gates deletion behavior: sensitive artifacts require force.
type Sensitivity string

const (
	SensitivityPublic    Sensitivity = "public"
	SensitivityInternal  Sensitivity = "internal"
	SensitivitySensitive Sensitivity = "sensitive"
)

var validSensitivities = map[Sensitivity]bool{
	SensitivityPublic:    true,
	SensitivityInternal:  true,
	SensitivitySensitive: true,
}

// NormalizeSensitivity lowercases and defaults empty to internal.
func NormalizeSensitivity(s string) (Sensitivity, error) {
	v := Sensitivity(strings.TrimSpace(strings.ToLower(s)))
	if v == "" {
		return SensitivityInternal, nil
	}
	if !validSensitivities[v] {
		return "", fmt.Errorf("%w: invalid sensitivity %q: must be one of: public, internal, sensitive", ErrValidation, v)
	}
	return v, nil
}

// --- Confidence bounds ---

const (
	// ConfidenceFloor is the lowest confidence any fact or decision can hold.
	ConfidenceFloor = 0.05
	// ConfidenceCeiling is the highest confidence any fact or decision can hold.
	ConfidenceCeiling = 0.99
	// HighConfidenceGate is the threshold above which facts require sources
	// and an evidence type.
	HighConfidenceGate = 0.8
)

// ClampConfidence folds a computed confidence back into the legal range.
// Out-of-range values are clamped, never rejected.
func ClampConfidence(c float64) float64 {
	if c < ConfidenceFloor {
		return ConfidenceFloor
	}
	if c > ConfidenceCeiling {
		return ConfidenceCeiling
	}
	return c
}

// --- Fact variant ---

// EvidenceType describes the evidentiary basis of a fact's sources.
type EvidenceType string

const (
	EvidenceQuote      EvidenceType = "quote"
	EvidenceParaphrase EvidenceType = "paraphrase"
	EvidenceInference  EvidenceType = "inference"
	EvidenceNone       EvidenceType = "none"
)

var validEvidenceTypes = map[EvidenceType]bool{
	EvidenceQuote:      true,
	EvidenceParaphrase: true,
	EvidenceInference:  true,
	EvidenceNone:       true,
}

// Provenance describes where a fact came from.
type Provenance string

const (
	ProvenanceWeb        Provenance = "web"
	ProvenanceLocalFile  Provenance = "local_file"
	ProvenanceUser       Provenance = "user"
	ProvenanceToolOutput Provenance = "tool_output"
	ProvenanceUnknown    Provenance = "unknown"
)

var validProvenances = map[Provenance]bool{
	ProvenanceWeb:        true,
	ProvenanceLocalFile:  true,
	ProvenanceUser:       true,
	ProvenanceToolOutput: true,
	ProvenanceUnknown:    true,
}

// Fact is an assertion with provenance and a decaying confidence score.
type Fact struct {
	Claim            string       `json:"claim"`
	Confidence       float64      `json:"confidence"`
	SourceURLs       []string     `json:"source_urls,omitempty"`
	EvidenceType     EvidenceType `json:"evidence_type"`
	Provenance       Provenance   `json:"provenance"`
	Pinned           bool         `json:"pinned"`
	LastReinforcedAt time.Time    `json:"last_reinforced_at"`
	// LastDecayedAt is the watermark up to which decay has already been
	// charged. Decay never resets the reinforcement clock, so this is what
	// keeps back-to-back passes from compounding the same elapsed days.
	LastDecayedAt time.Time `json:"last_decayed_at,omitempty"`
	SupersededBy  string    `json:"superseded_by,omitempty"`
}

// --- Decision variant ---

// DecisionStatus is the decision lifecycle state. Transitions are monotonic:
// pending is the only state validate/reverse may leave from.
type DecisionStatus string

const (
	StatusPending    DecisionStatus = "pending"
	StatusValidated  DecisionStatus = "validated"
	StatusReversed   DecisionStatus = "reversed"
	StatusSuperseded DecisionStatus = "superseded"
)

// Terminal reports whether the status admits no further validate/reverse.
func (s DecisionStatus) Terminal() bool {
	return s == StatusValidated || s == StatusReversed || s == StatusSuperseded
}

// Decision records a choice, its rationale, and its validation lifecycle.
type Decision struct {
	Decision        string         `json:"decision"`
	Rationale       string         `json:"rationale"`
	Alternatives    []string       `json:"alternatives,omitempty"`
	Status          DecisionStatus `json:"status"`
	Confidence      float64        `json:"confidence"`
	ExpectedOutcome string         `json:"expected_outcome,omitempty"`
	ActualOutcome   string         `json:"actual_outcome,omitempty"`
	Result          string         `json:"result,omitempty"`
	NextAction      string         `json:"next_action,omitempty"`
	SupersededBy    string         `json:"superseded_by,omitempty"`
}

// --- Episode variant ---

// EpisodeResult is the terminal outcome of an episode.
type EpisodeResult string

const (
	ResultSuccess EpisodeResult = "success"
	ResultPartial EpisodeResult = "partial"
	ResultFailed  EpisodeResult = "failed"
)

var validEpisodeResults = map[EpisodeResult]bool{
	ResultSuccess: true,
	ResultPartial: true,
	ResultFailed:  true,
}

// ValidateEpisodeResult returns an error if the result is not recognized.
func ValidateEpisodeResult(r EpisodeResult) error {
	if !validEpisodeResults[r] {
		return fmt.Errorf("%w: invalid episode result %q: must be one of: success, partial, failed", ErrValidation, r)
	}
	return nil
}

// Action is a single step taken during an episode. Actions are append-only
// while the episode is open.
type Action struct {
	Timestamp time.Time `json:"timestamp"`
	Summary   string    `json:"summary"`
	Tool      string    `json:"tool,omitempty"`
}

// Evaluation is a post-close grade attached to an episode. Applied marks
// that its confidence deltas have been propagated to linked facts, so
// re-applying never double-counts.
type Evaluation struct {
	Grade   string `json:"grade"`
	Rubric  string `json:"rubric,omitempty"`
	Applied bool   `json:"applied"`
}

// Episode records a goal-directed run: the plan, the actions taken, and the
// terminal result. Result is immutable once set.
type Episode struct {
	Goal       string        `json:"goal"`
	Plan       []string      `json:"plan,omitempty"`
	Actions    []Action      `json:"actions,omitempty"`
	Result     EpisodeResult `json:"result,omitempty"`
	Links      []string      `json:"links,omitempty"`
	Evaluation *Evaluation   `json:"evaluation,omitempty"`
}

// Open reports whether the episode still accepts actions.
func (e *Episode) Open() bool { return e.Result == "" }

// --- Incident variant ---

// ChangeScan is the structured record of a time-windowed query over recent
// Change artifacts, run while triaging an incident. Either ChangeIDs is
// non-empty or ClearedReason explains why no change is implicated.
type ChangeScan struct {
	WindowStart   time.Time `json:"window_start"`
	WindowEnd     time.Time `json:"window_end"`
	ChangeIDs     []string  `json:"change_ids,omitempty"`
	ClearedReason string    `json:"cleared_reason,omitempty"`
}

// Incident records a failure, its root cause, and how to keep it from
// recurring. At least two repro steps are required before storage.
type Incident struct {
	Symptom          string     `json:"symptom"`
	ActualCause      string     `json:"actual_cause,omitempty"`
	Fix              string     `json:"fix,omitempty"`
	Prevention       string     `json:"prevention,omitempty"`
	ReproSteps       []string   `json:"repro_steps"`
	Severity         string     `json:"severity,omitempty"`
	RecentChangeScan ChangeScan `json:"recent_change_scan"`
}

// --- Change variant ---

// riskTagVocabulary is the fixed set of allowed risk tags on a change.
var riskTagVocabulary = map[string]bool{
	"security":     true,
	"data":         true,
	"perf":         true,
	"availability": true,
	"api":          true,
	"config":       true,
	"deps":         true,
	"infra":        true,
}

// Change records a deliberate modification to a system: what changed, why,
// and how to quickly check it.
type Change struct {
	Scope       string   `json:"scope"`
	Change      string   `json:"change"`
	Why         string   `json:"why,omitempty"`
	RiskTags    []string `json:"risk_tags,omitempty"`
	QuickChecks []string `json:"quick_checks,omitempty"`
}

// --- Artifact ---

// Artifact is the persisted record. Exactly one variant pointer matching
// Type is non-nil.
type Artifact struct {
	ID             string      `json:"id"`
	Type           Type        `json:"type"`
	Sensitivity    Sensitivity `json:"sensitivity"`
	Tags           []string    `json:"tags,omitempty"`
	SourceWorkflow string      `json:"source_workflow,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
	ValidUntil     *time.Time  `json:"valid_until,omitempty"`

	Fact     *Fact     `json:"fact,omitempty"`
	Decision *Decision `json:"decision,omitempty"`
	Episode  *Episode  `json:"episode,omitempty"`
	Incident *Incident `json:"incident,omitempty"`
	Change   *Change   `json:"change,omitempty"`
}

// Content returns the variant payload matching the artifact's type, or nil
// if the payload is missing.
func (a *Artifact) Content() any {
	switch a.Type {
	case TypeFact:
		if a.Fact != nil {
			return a.Fact
		}
	case TypeDecision:
		if a.Decision != nil {
			return a.Decision
		}
	case TypeEpisode:
		if a.Episode != nil {
			return a.Episode
		}
	case TypeIncident:
		if a.Incident != nil {
			return a.Incident
		}
	case TypeChange:
		if a.Change != nil {
			return a.Change
		}
	}
	return nil
}

// SupersededBy returns the forward supersession link for fact and decision
// artifacts, or "" when the artifact is current (or the kind never chains).
func (a *Artifact) SupersededBy() string {
	switch a.Type {
	case TypeFact:
		if a.Fact != nil {
			return a.Fact.SupersededBy
		}
	case TypeDecision:
		if a.Decision != nil {
			return a.Decision.SupersededBy
		}
	}
	return ""
}

// HasTag reports whether the artifact carries the given tag.
func (a *Artifact) HasTag(tag string) bool {
	for _, t := range a.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// SearchText concatenates the variant's human-readable fields for the
// full-text index. The index is derived and rebuildable; this is the only
// place that decides what is searchable.
func (a *Artifact) SearchText() string {
	var parts []string
	switch {
	case a.Fact != nil:
		parts = append(parts, a.Fact.Claim)
	case a.Decision != nil:
		parts = append(parts, a.Decision.Decision, a.Decision.Rationale)
		parts = append(parts, a.Decision.Alternatives...)
	case a.Episode != nil:
		parts = append(parts, a.Episode.Goal)
		parts = append(parts, a.Episode.Plan...)
		for _, act := range a.Episode.Actions {
			parts = append(parts, act.Summary)
		}
	case a.Incident != nil:
		parts = append(parts, a.Incident.Symptom, a.Incident.ActualCause, a.Incident.Fix, a.Incident.Prevention)
	case a.Change != nil:
		parts = append(parts, a.Change.Scope, a.Change.Change, a.Change.Why)
	}
	var nonEmpty []string
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, "\n")
}

// Clone returns a deep copy of the artifact. Engines mutate clones and hand
// them back to the store, never the store's own instance.
func (a *Artifact) Clone() *Artifact {
	cp := *a
	cp.Tags = append([]string(nil), a.Tags...)
	if a.ValidUntil != nil {
		t := *a.ValidUntil
		cp.ValidUntil = &t
	}
	if a.Fact != nil {
		f := *a.Fact
		f.SourceURLs = append([]string(nil), a.Fact.SourceURLs...)
		cp.Fact = &f
	}
	if a.Decision != nil {
		d := *a.Decision
		d.Alternatives = append([]string(nil), a.Decision.Alternatives...)
		cp.Decision = &d
	}
	if a.Episode != nil {
		e := *a.Episode
		e.Plan = append([]string(nil), a.Episode.Plan...)
		e.Actions = append([]Action(nil), a.Episode.Actions...)
		e.Links = append([]string(nil), a.Episode.Links...)
		if a.Episode.Evaluation != nil {
			ev := *a.Episode.Evaluation
			e.Evaluation = &ev
		}
		cp.Episode = &e
	}
	if a.Incident != nil {
		i := *a.Incident
		i.ReproSteps = append([]string(nil), a.Incident.ReproSteps...)
		i.RecentChangeScan.ChangeIDs = append([]string(nil), a.Incident.RecentChangeScan.ChangeIDs...)
		cp.Incident = &i
	}
	if a.Change != nil {
		c := *a.Change
		c.RiskTags = append([]string(nil), a.Change.RiskTags...)
		c.QuickChecks = append([]string(nil), a.Change.QuickChecks...)
		cp.Change = &c
	}
	return &cp
}
