package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/durolabs/duro/internal/artifact"
	"github.com/durolabs/duro/internal/search"
)

// SearchTool handles memory_search: hybrid keyword + semantic retrieval.
type SearchTool struct {
	search *search.Service
}

// NewSearchTool creates a SearchTool.
func NewSearchTool(s *search.Service) *SearchTool {
	return &SearchTool{search: s}
}

// Definition returns the MCP tool definition for memory_search.
func (t *SearchTool) Definition() mcp.Tool {
	return mcp.NewTool("memory_search",
		mcp.WithDescription(
			"Search stored artifacts. Combines full-text keyword matching with "+
				"semantic similarity over embeddings into one ranked list.",
		),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search terms")),
		mcp.WithString("type", mcp.Description("Restrict to one artifact type")),
		mcp.WithNumber("limit", mcp.Description("Max results (default 10)")),
	)
}

// Handle processes the memory_search tool call.
func (t *SearchTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := req.GetString("query", "")
	if query == "" {
		return mcp.NewToolResultError("'query' is required"), nil
	}

	opts := search.Options{
		Limit: int(floatArg(req, "limit", 10)),
		Type:  artifact.Type(req.GetString("type", "")),
	}
	if opts.Type != "" {
		if err := artifact.ValidateType(opts.Type); err != nil {
			return toolError(err), nil
		}
	}

	results, err := t.search.Search(ctx, query, opts)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(results), nil
}
