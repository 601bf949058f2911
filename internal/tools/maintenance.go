package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/durolabs/duro/internal/audit"
	"github.com/durolabs/duro/internal/decay"
	"github.com/durolabs/duro/internal/store"
)

// ReinforceFactTool handles fact_reinforce.
type ReinforceFactTool struct {
	decay *decay.Engine
}

// NewReinforceFactTool creates a ReinforceFactTool.
func NewReinforceFactTool(e *decay.Engine) *ReinforceFactTool {
	return &ReinforceFactTool{decay: e}
}

// Definition returns the MCP tool definition for fact_reinforce.
func (t *ReinforceFactTool) Definition() mcp.Tool {
	return mcp.NewTool("fact_reinforce",
		mcp.WithDescription(
			"Reset a fact's decay clock. Confidence is unchanged — reinforcement stops decay, it does not raise belief.",
		),
		mcp.WithString("id", mcp.Required(), mcp.Description("Fact artifact id")),
	)
}

// Handle processes the fact_reinforce tool call.
func (t *ReinforceFactTool) Handle(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("id", "")
	if id == "" {
		return mcp.NewToolResultError("'id' is required"), nil
	}
	a, err := t.decay.Reinforce(id)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(a), nil
}

// ApplyDecayTool handles decay_apply.
type ApplyDecayTool struct {
	decay *decay.Engine
}

// NewApplyDecayTool creates an ApplyDecayTool.
func NewApplyDecayTool(e *decay.Engine) *ApplyDecayTool {
	return &ApplyDecayTool{decay: e}
}

// Definition returns the MCP tool definition for decay_apply.
func (t *ApplyDecayTool) Definition() mcp.Tool {
	return mcp.NewTool("decay_apply",
		mcp.WithDescription(
			"Apply time-based confidence decay to all non-pinned facts "+
				"(0.99 per day since last reinforcement, floor 0.05). "+
				"dry_run=true previews the changes without mutating anything.",
		),
		mcp.WithBoolean("dry_run", mcp.Description("Report proposed changes without applying them")),
		mcp.WithNumber("min_confidence", mcp.Description("Only decay facts at or above this confidence")),
	)
}

// Handle processes the decay_apply tool call.
func (t *ApplyDecayTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	report, err := t.decay.Run(ctx, decay.Options{
		DryRun:        boolArg(req, "dry_run", false),
		MinConfidence: floatArg(req, "min_confidence", 0),
	})
	if err != nil {
		// A cancelled pass still carries the partial report: per-record
		// updates stay committed.
		if report != nil && report.Partial {
			return jsonResult(report), nil
		}
		return toolError(err), nil
	}
	return jsonResult(report), nil
}

// VerifyAuditTool handles audit_verify.
type VerifyAuditTool struct {
	audit *audit.Log
}

// NewVerifyAuditTool creates a VerifyAuditTool.
func NewVerifyAuditTool(log *audit.Log) *VerifyAuditTool {
	return &VerifyAuditTool{audit: log}
}

// Definition returns the MCP tool definition for audit_verify.
func (t *VerifyAuditTool) Definition() mcp.Tool {
	return mcp.NewTool("audit_verify",
		mcp.WithDescription(
			"Verify the audit chain's hashes, linkage, sequencing, and timestamp order. "+
				"Tampering is reported, never raised: the result carries chain_valid and the first break index.",
		),
	)
}

// Handle processes the audit_verify tool call.
func (t *VerifyAuditTool) Handle(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	report, err := t.audit.VerifyChain(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("verify chain: %v", err)), nil
	}
	return jsonResult(report), nil
}

// RebuildIndexTool handles index_rebuild.
type RebuildIndexTool struct {
	store *store.Store
}

// NewRebuildIndexTool creates a RebuildIndexTool.
func NewRebuildIndexTool(s *store.Store) *RebuildIndexTool {
	return &RebuildIndexTool{store: s}
}

// Definition returns the MCP tool definition for index_rebuild.
func (t *RebuildIndexTool) Definition() mcp.Tool {
	return mcp.NewTool("index_rebuild",
		mcp.WithDescription(
			"Reconstruct the full-text index from the artifact store. "+
				"The index is derived data — rebuilding is idempotent and safe anytime.",
		),
	)
}

// Handle processes the index_rebuild tool call.
func (t *RebuildIndexTool) Handle(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	n, err := t.store.RebuildIndex(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("rebuilt %d entries before failure: %v", n, err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Index rebuilt: %d artifacts", n)), nil
}
