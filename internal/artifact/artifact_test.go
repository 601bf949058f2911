package artifact_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/durolabs/duro/internal/artifact"
)

// validFact returns a minimal passing fact artifact.
func validFact() *artifact.Artifact {
	return &artifact.Artifact{
		Type:        artifact.TypeFact,
		Sensitivity: artifact.SensitivityInternal,
		Fact: &artifact.Fact{
			Claim:        "the API rate limit is 100 requests per minute",
			Confidence:   0.5,
			EvidenceType: artifact.EvidenceNone,
			Provenance:   artifact.ProvenanceUnknown,
		},
	}
}

// ─── IDs ────────────────────────────────────────────────────────────────────

func TestNewID_CarriesTypePrefix(t *testing.T) {
	now := time.Date(2025, 9, 1, 14, 23, 1, 512_000_000, time.UTC)
	id := artifact.NewID(artifact.TypeFact, now)

	if !strings.HasPrefix(id, "fact-20250901T142301.512-") {
		t.Errorf("id = %q, want fact-20250901T142301.512-<suffix>", id)
	}
	if artifact.TypeOfID(id) != artifact.TypeFact {
		t.Errorf("TypeOfID(%q) = %q, want fact", id, artifact.TypeOfID(id))
	}
}

func TestNewID_TimeSortable(t *testing.T) {
	t1 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Second)
	id1 := artifact.NewID(artifact.TypeDecision, t1)
	id2 := artifact.NewID(artifact.TypeDecision, t2)
	if !(id1 < id2) {
		t.Errorf("ids should sort by time: %q >= %q", id1, id2)
	}
}

func TestTypeOfID_Unrecognized(t *testing.T) {
	for _, id := range []string{"", "nodash", "widget-123", "fact"} {
		if got := artifact.TypeOfID(id); got != "" {
			t.Errorf("TypeOfID(%q) = %q, want empty", id, got)
		}
	}
}

// ─── Confidence ─────────────────────────────────────────────────────────────

func TestClampConfidence(t *testing.T) {
	cases := []struct {
		in, want float64
	}{
		{0.5, 0.5},
		{0.01, 0.05},
		{-3, 0.05},
		{1.0, 0.99},
		{0.99, 0.99},
		{0.05, 0.05},
	}
	for _, c := range cases {
		if got := artifact.ClampConfidence(c.in); got != c.want {
			t.Errorf("ClampConfidence(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}

// ─── Fact validation ────────────────────────────────────────────────────────

func TestFactValidate_Basic(t *testing.T) {
	if err := validFact().Validate(); err != nil {
		t.Fatalf("valid fact rejected: %v", err)
	}
}

func TestFactValidate_EmptyClaim(t *testing.T) {
	a := validFact()
	a.Fact.Claim = "  "
	err := a.Validate()
	if !errors.Is(err, artifact.ErrValidation) {
		t.Errorf("want ErrValidation, got %v", err)
	}
}

func TestFactValidate_ConfidenceOutOfRange(t *testing.T) {
	for _, conf := range []float64{0.0, 0.04, 1.0, -1} {
		a := validFact()
		a.Fact.Confidence = conf
		if err := a.Validate(); !errors.Is(err, artifact.ErrValidation) {
			t.Errorf("confidence %v: want ErrValidation, got %v", conf, err)
		}
	}
}

func TestFactValidate_HighConfidenceRequiresEvidence(t *testing.T) {
	// No sources at all.
	a := validFact()
	a.Fact.Confidence = 0.85
	if err := a.Validate(); !errors.Is(err, artifact.ErrValidation) {
		t.Errorf("high confidence without sources: want ErrValidation, got %v", err)
	}

	// Sources but evidence_type none.
	a = validFact()
	a.Fact.Confidence = 0.8
	a.Fact.SourceURLs = []string{"https://example.com/docs"}
	a.Fact.EvidenceType = artifact.EvidenceNone
	if err := a.Validate(); !errors.Is(err, artifact.ErrValidation) {
		t.Errorf("high confidence with evidence none: want ErrValidation, got %v", err)
	}

	// Both present passes.
	a.Fact.EvidenceType = artifact.EvidenceQuote
	if err := a.Validate(); err != nil {
		t.Errorf("gated fact with sources+evidence rejected: %v", err)
	}

	// Just under the gate needs neither.
	a = validFact()
	a.Fact.Confidence = 0.79
	if err := a.Validate(); err != nil {
		t.Errorf("below-gate fact rejected: %v", err)
	}
}

// ─── Decision validation ────────────────────────────────────────────────────

func TestDecisionValidate(t *testing.T) {
	a := &artifact.Artifact{
		Type:        artifact.TypeDecision,
		Sensitivity: artifact.SensitivityInternal,
		Decision: &artifact.Decision{
			Decision:   "use sqlite for persistence",
			Rationale:  "single file, zero ops",
			Status:     artifact.StatusPending,
			Confidence: 0.5,
		},
	}
	if err := a.Validate(); err != nil {
		t.Fatalf("valid decision rejected: %v", err)
	}

	a.Decision.Rationale = ""
	if err := a.Validate(); !errors.Is(err, artifact.ErrValidation) {
		t.Errorf("missing rationale: want ErrValidation, got %v", err)
	}

	a.Decision.Rationale = "ok"
	a.Decision.Status = "bogus"
	if err := a.Validate(); !errors.Is(err, artifact.ErrValidation) {
		t.Errorf("bogus status: want ErrValidation, got %v", err)
	}
}

func TestDecisionStatusTerminal(t *testing.T) {
	if artifact.StatusPending.Terminal() {
		t.Error("pending should not be terminal")
	}
	for _, s := range []artifact.DecisionStatus{artifact.StatusValidated, artifact.StatusReversed, artifact.StatusSuperseded} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
}

// ─── Incident validation ────────────────────────────────────────────────────

func TestIncidentValidate_ReproSteps(t *testing.T) {
	a := &artifact.Artifact{
		Type:        artifact.TypeIncident,
		Sensitivity: artifact.SensitivityInternal,
		Incident: &artifact.Incident{
			Symptom:    "worker crashes on startup",
			ReproSteps: []string{"start the worker", "  "},
			RecentChangeScan: artifact.ChangeScan{
				ClearedReason: "no deploys in window",
			},
		},
	}
	// One blank step: only one real step.
	if err := a.Validate(); !errors.Is(err, artifact.ErrValidation) {
		t.Errorf("single repro step: want ErrValidation, got %v", err)
	}

	a.Incident.ReproSteps = []string{"start the worker", "observe panic in logs"}
	if err := a.Validate(); err != nil {
		t.Fatalf("valid incident rejected: %v", err)
	}
}

func TestIncidentValidate_ChangeScanRequired(t *testing.T) {
	a := &artifact.Artifact{
		Type:        artifact.TypeIncident,
		Sensitivity: artifact.SensitivityInternal,
		Incident: &artifact.Incident{
			Symptom:    "latency spike",
			ReproSteps: []string{"send traffic", "watch p99"},
		},
	}
	if err := a.Validate(); !errors.Is(err, artifact.ErrValidation) {
		t.Errorf("empty change scan: want ErrValidation, got %v", err)
	}

	a.Incident.RecentChangeScan.ChangeIDs = []string{"fact-20250101T000000.000-abcd1234"}
	if err := a.Validate(); !errors.Is(err, artifact.ErrValidation) {
		t.Errorf("non-change id in scan: want ErrValidation, got %v", err)
	}

	a.Incident.RecentChangeScan.ChangeIDs = []string{"change-20250101T000000.000-abcd1234"}
	if err := a.Validate(); err != nil {
		t.Errorf("valid change scan rejected: %v", err)
	}
}

// ─── Change validation ──────────────────────────────────────────────────────

func TestChangeValidate_RiskTagVocabulary(t *testing.T) {
	a := &artifact.Artifact{
		Type:        artifact.TypeChange,
		Sensitivity: artifact.SensitivityInternal,
		Change: &artifact.Change{
			Scope:    "ingest service",
			Change:   "bumped batch size to 500",
			RiskTags: []string{"perf", "config"},
		},
	}
	if err := a.Validate(); err != nil {
		t.Fatalf("valid change rejected: %v", err)
	}

	a.Change.RiskTags = append(a.Change.RiskTags, "vibes")
	if err := a.Validate(); !errors.Is(err, artifact.ErrValidation) {
		t.Errorf("unknown risk tag: want ErrValidation, got %v", err)
	}
}

// ─── Variant pointer invariant ──────────────────────────────────────────────

func TestValidate_MissingVariant(t *testing.T) {
	a := &artifact.Artifact{Type: artifact.TypeEpisode, Sensitivity: artifact.SensitivityInternal}
	if err := a.Validate(); !errors.Is(err, artifact.ErrValidation) {
		t.Errorf("missing episode content: want ErrValidation, got %v", err)
	}
}

// ─── Clone ──────────────────────────────────────────────────────────────────

func TestClone_DeepCopiesSlices(t *testing.T) {
	a := validFact()
	a.Tags = []string{"infra"}
	a.Fact.SourceURLs = []string{"https://example.com"}

	cp := a.Clone()
	cp.Tags[0] = "changed"
	cp.Fact.SourceURLs[0] = "changed"
	cp.Fact.Claim = "changed"

	if a.Tags[0] != "infra" {
		t.Error("Clone shares Tags backing array")
	}
	if a.Fact.SourceURLs[0] != "https://example.com" {
		t.Error("Clone shares SourceURLs backing array")
	}
	if a.Fact.Claim == "changed" {
		t.Error("Clone shares Fact pointer")
	}
}

// ─── SearchText ─────────────────────────────────────────────────────────────

func TestSearchText_CoversVariantFields(t *testing.T) {
	a := &artifact.Artifact{
		Type: artifact.TypeDecision,
		Decision: &artifact.Decision{
			Decision:     "adopt errgroup for fan-out",
			Rationale:    "bounded concurrency with error propagation",
			Alternatives: []string{"raw goroutines"},
		},
	}
	text := a.SearchText()
	for _, want := range []string{"errgroup", "bounded concurrency", "raw goroutines"} {
		if !strings.Contains(text, want) {
			t.Errorf("SearchText missing %q:\n%s", want, text)
		}
	}
}

func TestEpisodeOpen(t *testing.T) {
	e := &artifact.Episode{Goal: "migrate db"}
	if !e.Open() {
		t.Error("episode without result should be open")
	}
	e.Result = artifact.ResultSuccess
	if e.Open() {
		t.Error("episode with result should be closed")
	}
}
