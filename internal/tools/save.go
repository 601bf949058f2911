package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/durolabs/duro/internal/artifact"
	"github.com/durolabs/duro/internal/search"
	"github.com/durolabs/duro/internal/store"
)

// SaveTool handles the artifact_save MCP tool: typed creation of any
// artifact variant.
type SaveTool struct {
	store  *store.Store
	search *search.Service
}

// NewSaveTool creates a SaveTool with the given store and search service.
func NewSaveTool(s *store.Store, search *search.Service) *SaveTool {
	return &SaveTool{store: s, search: search}
}

// Definition returns the MCP tool definition for artifact_save.
func (t *SaveTool) Definition() mcp.Tool {
	return mcp.NewTool("artifact_save",
		mcp.WithDescription(
			"Save a memory artifact. Type determines which fields apply: "+
				"fact (claim, confidence, source_urls, evidence_type, provenance, pinned), "+
				"decision (decision, rationale, alternatives, expected_outcome), "+
				"episode (goal, plan), "+
				"incident (symptom, repro_steps, severity, change_ids or cleared_reason), "+
				"change (scope, change, why, risk_tags, quick_checks).",
		),
		mcp.WithString("type",
			mcp.Required(),
			mcp.Description("Artifact type: fact, decision, episode, incident, change"),
		),
		mcp.WithString("sensitivity",
			mcp.Description("public, internal (default), or sensitive — sensitive artifacts require force to delete"),
		),
		mcp.WithString("tags",
			mcp.Description("Comma-separated tags"),
		),
		mcp.WithString("source_workflow",
			mcp.Description("Identifier of the producing process"),
		),
		// Fact fields
		mcp.WithString("claim", mcp.Description("Fact: the assertion")),
		mcp.WithNumber("confidence", mcp.Description("Fact: confidence in [0.05, 0.99]; >= 0.8 requires sources and evidence")),
		mcp.WithString("source_urls", mcp.Description("Fact: comma-separated source URLs")),
		mcp.WithString("evidence_type", mcp.Description("Fact: quote, paraphrase, inference, or none")),
		mcp.WithString("provenance", mcp.Description("Fact: web, local_file, user, tool_output, or unknown")),
		mcp.WithBoolean("pinned", mcp.Description("Fact: pinned facts are exempt from decay")),
		// Decision fields
		mcp.WithString("decision", mcp.Description("Decision: what was decided")),
		mcp.WithString("rationale", mcp.Description("Decision: why")),
		mcp.WithString("alternatives", mcp.Description("Decision: comma-separated alternatives considered")),
		mcp.WithString("expected_outcome", mcp.Description("Decision: what success looks like")),
		// Episode fields
		mcp.WithString("goal", mcp.Description("Episode: what the run is trying to achieve")),
		mcp.WithString("plan", mcp.Description("Episode: newline-separated plan steps")),
		// Incident fields
		mcp.WithString("symptom", mcp.Description("Incident: observed failure")),
		mcp.WithString("repro_steps", mcp.Description("Incident: newline-separated repro steps (at least 2)")),
		mcp.WithString("severity", mcp.Description("Incident: severity label")),
		mcp.WithString("change_ids", mcp.Description("Incident: comma-separated change artifact ids from the recent-change scan")),
		mcp.WithString("cleared_reason", mcp.Description("Incident: why no recent change is implicated")),
		// Change fields
		mcp.WithString("scope", mcp.Description("Change: what part of the system changed")),
		mcp.WithString("change", mcp.Description("Change: what was changed")),
		mcp.WithString("why", mcp.Description("Change: why it was changed")),
		mcp.WithString("risk_tags", mcp.Description("Change: comma-separated risk tags (security, data, perf, availability, api, config, deps, infra)")),
		mcp.WithString("quick_checks", mcp.Description("Change: newline-separated verification steps")),
	)
}

// Handle processes the artifact_save tool call.
func (t *SaveTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	typ := artifact.Type(req.GetString("type", ""))
	if err := artifact.ValidateType(typ); err != nil {
		return toolError(err), nil
	}

	sensitivity, err := artifact.NormalizeSensitivity(req.GetString("sensitivity", ""))
	if err != nil {
		return toolError(err), nil
	}

	a := &artifact.Artifact{
		Type:           typ,
		Sensitivity:    sensitivity,
		Tags:           listArg(req, "tags"),
		SourceWorkflow: req.GetString("source_workflow", ""),
	}

	switch typ {
	case artifact.TypeFact:
		a.Fact = &artifact.Fact{
			Claim:        req.GetString("claim", ""),
			Confidence:   floatArg(req, "confidence", 0.5),
			SourceURLs:   listArg(req, "source_urls"),
			EvidenceType: artifact.EvidenceType(req.GetString("evidence_type", "none")),
			Provenance:   artifact.Provenance(req.GetString("provenance", "unknown")),
			Pinned:       boolArg(req, "pinned", false),
		}
	case artifact.TypeDecision:
		a.Decision = &artifact.Decision{
			Decision:        req.GetString("decision", ""),
			Rationale:       req.GetString("rationale", ""),
			Alternatives:    listArg(req, "alternatives"),
			ExpectedOutcome: req.GetString("expected_outcome", ""),
		}
	case artifact.TypeEpisode:
		a.Episode = &artifact.Episode{
			Goal: req.GetString("goal", ""),
			Plan: listArg(req, "plan"),
		}
	case artifact.TypeIncident:
		a.Incident = &artifact.Incident{
			Symptom:    req.GetString("symptom", ""),
			ReproSteps: listArg(req, "repro_steps"),
			Severity:   req.GetString("severity", ""),
			RecentChangeScan: artifact.ChangeScan{
				WindowStart:   t.store.Now().Add(-72 * time.Hour),
				WindowEnd:     t.store.Now(),
				ChangeIDs:     listArg(req, "change_ids"),
				ClearedReason: req.GetString("cleared_reason", ""),
			},
		}
	case artifact.TypeChange:
		a.Change = &artifact.Change{
			Scope:       req.GetString("scope", ""),
			Change:      req.GetString("change", ""),
			Why:         req.GetString("why", ""),
			RiskTags:    listArg(req, "risk_tags"),
			QuickChecks: listArg(req, "quick_checks"),
		}
	}

	created, err := t.store.Create(a)
	if err != nil {
		return toolError(err), nil
	}

	// Embedding generation is derived data; failure never blocks the save.
	if t.search != nil {
		if err := t.search.IndexArtifact(ctx, created); err != nil {
			return mcp.NewToolResultText(fmt.Sprintf("Saved %s (embedding skipped: %v)", created.ID, err)), nil
		}
	}

	return jsonResult(created), nil
}
