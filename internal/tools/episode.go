package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/durolabs/duro/internal/artifact"
	"github.com/durolabs/duro/internal/decay"
	"github.com/durolabs/duro/internal/lifecycle"
)

// EpisodeLogTool handles episode_log: appending actions to an open episode
// or closing it with a terminal result.
type EpisodeLogTool struct {
	lifecycle *lifecycle.Manager
}

// NewEpisodeLogTool creates an EpisodeLogTool.
func NewEpisodeLogTool(m *lifecycle.Manager) *EpisodeLogTool {
	return &EpisodeLogTool{lifecycle: m}
}

// Definition returns the MCP tool definition for episode_log.
func (t *EpisodeLogTool) Definition() mcp.Tool {
	return mcp.NewTool("episode_log",
		mcp.WithDescription(
			"Log progress on an episode. With 'summary', appends an action (only while open). "+
				"With 'result', closes the episode — the result is immutable once set.",
		),
		mcp.WithString("id", mcp.Required(), mcp.Description("Episode artifact id")),
		mcp.WithString("summary", mcp.Description("Append an action with this summary")),
		mcp.WithString("tool", mcp.Description("Tool used for the appended action")),
		mcp.WithString("result", mcp.Description("Close with: success, partial, or failed")),
		mcp.WithString("links", mcp.Description("On close: comma-separated fact/decision ids created or used")),
	)
}

// Handle processes the episode_log tool call.
func (t *EpisodeLogTool) Handle(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("id", "")
	if id == "" {
		return mcp.NewToolResultError("'id' is required"), nil
	}

	summary := req.GetString("summary", "")
	result := req.GetString("result", "")
	if summary == "" && result == "" {
		return mcp.NewToolResultError("provide 'summary' to append an action or 'result' to close"), nil
	}

	if summary != "" {
		a, err := t.lifecycle.AppendAction(id, summary, req.GetString("tool", ""))
		if err != nil {
			return toolError(err), nil
		}
		if result == "" {
			return jsonResult(a), nil
		}
	}

	a, err := t.lifecycle.CloseEpisode(id, artifact.EpisodeResult(result), listArg(req, "links"))
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(a), nil
}

// EpisodeEvaluateTool handles episode_evaluate: grading a closed episode and
// propagating the grade's confidence deltas to linked facts.
type EpisodeEvaluateTool struct {
	decay *decay.Engine
}

// NewEpisodeEvaluateTool creates an EpisodeEvaluateTool.
func NewEpisodeEvaluateTool(e *decay.Engine) *EpisodeEvaluateTool {
	return &EpisodeEvaluateTool{decay: e}
}

// Definition returns the MCP tool definition for episode_evaluate.
func (t *EpisodeEvaluateTool) Definition() mcp.Tool {
	return mcp.NewTool("episode_evaluate",
		mcp.WithDescription(
			"Grade a closed episode (A+/A: +0.02, B+/B: +0.01, C: 0, D: -0.01, F: -0.02 to each linked fact). "+
				"Idempotent: a grade applies at most once.",
		),
		mcp.WithString("id", mcp.Required(), mcp.Description("Episode artifact id")),
		mcp.WithString("grade", mcp.Required(), mcp.Description("A+, A, B+, B, C, D, or F")),
		mcp.WithString("rubric", mcp.Description("Free-form grading notes")),
	)
}

// Handle processes the episode_evaluate tool call.
func (t *EpisodeEvaluateTool) Handle(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("id", "")
	grade := req.GetString("grade", "")
	if id == "" || grade == "" {
		return mcp.NewToolResultError("'id' and 'grade' are required"), nil
	}
	report, err := t.decay.ApplyEvaluation(id, grade, req.GetString("rubric", ""))
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(report), nil
}
