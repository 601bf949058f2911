package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/durolabs/duro/internal/artifact"
	"github.com/durolabs/duro/internal/audit"
	"github.com/durolabs/duro/internal/store"
)

// GetTool handles artifact_get.
type GetTool struct {
	store *store.Store
}

// NewGetTool creates a GetTool.
func NewGetTool(s *store.Store) *GetTool {
	return &GetTool{store: s}
}

// Definition returns the MCP tool definition for artifact_get.
func (t *GetTool) Definition() mcp.Tool {
	return mcp.NewTool("artifact_get",
		mcp.WithDescription("Fetch a single artifact by id."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Artifact id")),
	)
}

// Handle processes the artifact_get tool call.
func (t *GetTool) Handle(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("id", "")
	if id == "" {
		return mcp.NewToolResultError("'id' is required"), nil
	}
	a, err := t.store.Get(id)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(a), nil
}

// UpdateTool handles artifact_update: metadata and safe content patches.
// Lifecycle-managed fields (decision status, episode result/actions,
// supersession links) are not patchable here — they go through their
// dedicated tools so the state machines stay authoritative.
type UpdateTool struct {
	store *store.Store
}

// NewUpdateTool creates an UpdateTool.
func NewUpdateTool(s *store.Store) *UpdateTool {
	return &UpdateTool{store: s}
}

// Definition returns the MCP tool definition for artifact_update.
func (t *UpdateTool) Definition() mcp.Tool {
	return mcp.NewTool("artifact_update",
		mcp.WithDescription(
			"Update an artifact's metadata (tags, sensitivity, source_workflow) "+
				"or safe content fields (fact claim/pinned, incident analysis fields, change why/quick_checks). "+
				"Type and id are immutable; lifecycle fields use the dedicated tools.",
		),
		mcp.WithString("id", mcp.Required(), mcp.Description("Artifact id")),
		mcp.WithString("tags", mcp.Description("Replacement comma-separated tags")),
		mcp.WithString("sensitivity", mcp.Description("public, internal, or sensitive")),
		mcp.WithString("source_workflow", mcp.Description("Producing process identifier")),
		mcp.WithString("claim", mcp.Description("Fact: replacement claim text")),
		mcp.WithBoolean("pinned", mcp.Description("Fact: set decay exemption")),
		mcp.WithString("actual_cause", mcp.Description("Incident: root cause")),
		mcp.WithString("fix", mcp.Description("Incident: what fixed it")),
		mcp.WithString("prevention", mcp.Description("Incident: how to prevent recurrence")),
		mcp.WithString("why", mcp.Description("Change: replacement why")),
		mcp.WithString("quick_checks", mcp.Description("Change: replacement newline-separated checks")),
	)
}

// Handle processes the artifact_update tool call.
func (t *UpdateTool) Handle(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("id", "")
	if id == "" {
		return mcp.NewToolResultError("'id' is required"), nil
	}

	args := req.GetArguments()
	has := func(key string) bool { _, ok := args[key]; return ok }

	updated, err := t.store.Update(id, func(a *artifact.Artifact) error {
		if has("tags") {
			a.Tags = listArg(req, "tags")
		}
		if has("sensitivity") {
			s, err := artifact.NormalizeSensitivity(req.GetString("sensitivity", ""))
			if err != nil {
				return err
			}
			a.Sensitivity = s
		}
		if has("source_workflow") {
			a.SourceWorkflow = req.GetString("source_workflow", "")
		}
		if a.Fact != nil {
			if has("claim") {
				a.Fact.Claim = req.GetString("claim", "")
			}
			if has("pinned") {
				a.Fact.Pinned = boolArg(req, "pinned", a.Fact.Pinned)
			}
		}
		if a.Incident != nil {
			if has("actual_cause") {
				a.Incident.ActualCause = req.GetString("actual_cause", "")
			}
			if has("fix") {
				a.Incident.Fix = req.GetString("fix", "")
			}
			if has("prevention") {
				a.Incident.Prevention = req.GetString("prevention", "")
			}
		}
		if a.Change != nil {
			if has("why") {
				a.Change.Why = req.GetString("why", "")
			}
			if has("quick_checks") {
				a.Change.QuickChecks = listArg(req, "quick_checks")
			}
		}
		return nil
	})
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(updated), nil
}

// DeleteTool handles artifact_delete.
type DeleteTool struct {
	store *store.Store
}

// NewDeleteTool creates a DeleteTool.
func NewDeleteTool(s *store.Store) *DeleteTool {
	return &DeleteTool{store: s}
}

// Definition returns the MCP tool definition for artifact_delete.
func (t *DeleteTool) Definition() mcp.Tool {
	return mcp.NewTool("artifact_delete",
		mcp.WithDescription(
			"Delete an artifact. The deletion is recorded in the tamper-evident audit log. "+
				"Sensitive artifacts require force=true.",
		),
		mcp.WithString("id", mcp.Required(), mcp.Description("Artifact id")),
		mcp.WithString("reason", mcp.Required(), mcp.Description("Why the artifact is being deleted — recorded in the audit chain")),
		mcp.WithString("actor", mcp.Description("Who is deleting (default: mcp)")),
		mcp.WithBoolean("force", mcp.Description("Required for sensitivity=sensitive artifacts")),
	)
}

// Handle processes the artifact_delete tool call.
func (t *DeleteTool) Handle(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("id", "")
	reason := req.GetString("reason", "")
	if id == "" {
		return mcp.NewToolResultError("'id' is required"), nil
	}
	if reason == "" {
		return mcp.NewToolResultError("'reason' is required"), nil
	}

	actor := req.GetString("actor", "mcp")
	force := boolArg(req, "force", false)

	if err := t.store.Delete(id, reason, actor, force); err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Deleted %s (audited: %q)", id, reason)), nil
}

// ListTool handles artifact_list.
type ListTool struct {
	store *store.Store
}

// NewListTool creates a ListTool.
func NewListTool(s *store.Store) *ListTool {
	return &ListTool{store: s}
}

// Definition returns the MCP tool definition for artifact_list.
func (t *ListTool) Definition() mcp.Tool {
	return mcp.NewTool("artifact_list",
		mcp.WithDescription("List artifacts filtered by type, tag, and creation date range."),
		mcp.WithString("type", mcp.Description("Artifact type filter: fact, decision, episode, incident, change")),
		mcp.WithString("tag", mcp.Description("Only artifacts carrying this tag")),
		mcp.WithString("since", mcp.Description("RFC3339 lower bound on created_at")),
		mcp.WithString("until", mcp.Description("RFC3339 upper bound on created_at")),
		mcp.WithBoolean("include_superseded", mcp.Description("Include artifacts with a valid_until (default false)")),
		mcp.WithNumber("limit", mcp.Description("Max results (default 50)")),
	)
}

// Handle processes the artifact_list tool call.
func (t *ListTool) Handle(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	f := store.ListFilter{
		Type:              artifact.Type(req.GetString("type", "")),
		Tag:               req.GetString("tag", ""),
		IncludeSuperseded: boolArg(req, "include_superseded", false),
		Limit:             int(floatArg(req, "limit", 50)),
	}
	if f.Type != "" {
		if err := artifact.ValidateType(f.Type); err != nil {
			return toolError(err), nil
		}
	}
	if since := req.GetString("since", ""); since != "" {
		ts, err := time.Parse(time.RFC3339, since)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid 'since': %v", err)), nil
		}
		f.Since = ts
	}
	if until := req.GetString("until", ""); until != "" {
		ts, err := time.Parse(time.RFC3339, until)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid 'until': %v", err)), nil
		}
		f.Until = ts
	}

	var artifacts []*artifact.Artifact
	for a, err := range t.store.List(f) {
		if err != nil {
			return toolError(err), nil
		}
		artifacts = append(artifacts, a)
	}
	return jsonResult(artifacts), nil
}

// StatsTool handles memory_stats.
type StatsTool struct {
	store *store.Store
	audit *audit.Log
}

// NewStatsTool creates a StatsTool.
func NewStatsTool(s *store.Store, log *audit.Log) *StatsTool {
	return &StatsTool{store: s, audit: log}
}

// Definition returns the MCP tool definition for memory_stats.
func (t *StatsTool) Definition() mcp.Tool {
	return mcp.NewTool("memory_stats",
		mcp.WithDescription("Aggregate memory statistics: artifact counts per type, pinned facts, audit chain length."),
	)
}

// Handle processes the memory_stats tool call.
func (t *StatsTool) Handle(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	counts, err := t.store.CountByType()
	if err != nil {
		return toolError(err), nil
	}
	pinned, err := t.store.CountPinnedFacts()
	if err != nil {
		return toolError(err), nil
	}
	auditLen, err := t.audit.Len()
	if err != nil {
		return toolError(err), nil
	}

	return jsonResult(map[string]any{
		"artifacts":    counts,
		"pinned_facts": pinned,
		"audit_length": auditLen,
	}), nil
}
