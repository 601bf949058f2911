package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/durolabs/duro/internal/lifecycle"
)

// ValidateDecisionTool handles decision_validate.
type ValidateDecisionTool struct {
	lifecycle *lifecycle.Manager
}

// NewValidateDecisionTool creates a ValidateDecisionTool.
func NewValidateDecisionTool(m *lifecycle.Manager) *ValidateDecisionTool {
	return &ValidateDecisionTool{lifecycle: m}
}

// Definition returns the MCP tool definition for decision_validate.
func (t *ValidateDecisionTool) Definition() mcp.Tool {
	return mcp.NewTool("decision_validate",
		mcp.WithDescription(
			"Mark a pending decision validated with its observed outcome. "+
				"Confidence rises by a bounded delta: success +0.15, partial +0.075.",
		),
		mcp.WithString("id", mcp.Required(), mcp.Description("Decision artifact id")),
		mcp.WithString("result", mcp.Required(), mcp.Description("success or partial")),
		mcp.WithString("actual_outcome", mcp.Required(), mcp.Description("What actually happened")),
		mcp.WithString("expected_outcome", mcp.Description("What was expected, if not recorded at creation")),
	)
}

// Handle processes the decision_validate tool call.
func (t *ValidateDecisionTool) Handle(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("id", "")
	if id == "" {
		return mcp.NewToolResultError("'id' is required"), nil
	}
	a, err := t.lifecycle.Validate(
		id,
		lifecycle.Result(req.GetString("result", "")),
		req.GetString("actual_outcome", ""),
		req.GetString("expected_outcome", ""),
	)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(a), nil
}

// ReverseDecisionTool handles decision_reverse.
type ReverseDecisionTool struct {
	lifecycle *lifecycle.Manager
}

// NewReverseDecisionTool creates a ReverseDecisionTool.
func NewReverseDecisionTool(m *lifecycle.Manager) *ReverseDecisionTool {
	return &ReverseDecisionTool{lifecycle: m}
}

// Definition returns the MCP tool definition for decision_reverse.
func (t *ReverseDecisionTool) Definition() mcp.Tool {
	return mcp.NewTool("decision_reverse",
		mcp.WithDescription(
			"Mark a decision reversed. Requires next_action (what to do instead). "+
				"Confidence drops by 0.25, clamped to the floor.",
		),
		mcp.WithString("id", mcp.Required(), mcp.Description("Decision artifact id")),
		mcp.WithString("actual_outcome", mcp.Required(), mcp.Description("What went wrong")),
		mcp.WithString("next_action", mcp.Required(), mcp.Description("Required follow-up — reversal without one is rejected")),
	)
}

// Handle processes the decision_reverse tool call.
func (t *ReverseDecisionTool) Handle(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("id", "")
	if id == "" {
		return mcp.NewToolResultError("'id' is required"), nil
	}
	a, err := t.lifecycle.Reverse(id, req.GetString("actual_outcome", ""), req.GetString("next_action", ""))
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(a), nil
}

// SupersedeTool handles artifact_supersede.
type SupersedeTool struct {
	lifecycle *lifecycle.Manager
}

// NewSupersedeTool creates a SupersedeTool.
func NewSupersedeTool(m *lifecycle.Manager) *SupersedeTool {
	return &SupersedeTool{lifecycle: m}
}

// Definition returns the MCP tool definition for artifact_supersede.
func (t *SupersedeTool) Definition() mcp.Tool {
	return mcp.NewTool("artifact_supersede",
		mcp.WithDescription(
			"Link an outdated fact or decision to its replacement. Same artifact kind only; "+
				"chains are acyclic. The old artifact keeps its content but gets valid_until and a forward link.",
		),
		mcp.WithString("old_id", mcp.Required(), mcp.Description("Artifact being replaced")),
		mcp.WithString("new_id", mcp.Required(), mcp.Description("Replacement artifact of the same type")),
		mcp.WithString("reason", mcp.Required(), mcp.Description("Why the replacement supersedes — recorded in the audit chain")),
	)
}

// Handle processes the artifact_supersede tool call.
func (t *SupersedeTool) Handle(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	oldID := req.GetString("old_id", "")
	newID := req.GetString("new_id", "")
	reason := req.GetString("reason", "")
	if oldID == "" || newID == "" {
		return mcp.NewToolResultError("'old_id' and 'new_id' are required"), nil
	}
	if reason == "" {
		return mcp.NewToolResultError("'reason' is required"), nil
	}
	if err := t.lifecycle.Supersede(oldID, newID, reason); err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s superseded by %s", oldID, newID)), nil
}

// ResolveLatestTool handles artifact_resolve_latest.
type ResolveLatestTool struct {
	lifecycle *lifecycle.Manager
}

// NewResolveLatestTool creates a ResolveLatestTool.
func NewResolveLatestTool(m *lifecycle.Manager) *ResolveLatestTool {
	return &ResolveLatestTool{lifecycle: m}
}

// Definition returns the MCP tool definition for artifact_resolve_latest.
func (t *ResolveLatestTool) Definition() mcp.Tool {
	return mcp.NewTool("artifact_resolve_latest",
		mcp.WithDescription("Follow supersession links from an artifact to the current terminal artifact."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Any artifact id in the chain")),
	)
}

// Handle processes the artifact_resolve_latest tool call.
func (t *ResolveLatestTool) Handle(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("id", "")
	if id == "" {
		return mcp.NewToolResultError("'id' is required"), nil
	}
	a, err := t.lifecycle.ResolveLatest(id)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(a), nil
}
