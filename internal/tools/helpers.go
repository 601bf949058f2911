// Package tools provides the MCP tool handlers for Duro's memory engine.
//
// Each handler follows the same pattern:
// - A struct with dependencies injected via constructor
// - Definition() returns the mcp.Tool schema
// - Handle() processes the request and returns a result
//
// Handlers translate between the MCP surface and the typed engines; no
// business logic lives here.
package tools

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/durolabs/duro/internal/artifact"
)

// boolArg extracts a boolean argument from a tool request.
func boolArg(req mcp.CallToolRequest, key string, defaultVal bool) bool {
	v, ok := req.GetArguments()[key].(bool)
	if !ok {
		return defaultVal
	}
	return v
}

// floatArg extracts a numeric argument from a tool request, returning
// defaultVal if the key is missing or not a number.
func floatArg(req mcp.CallToolRequest, key string, defaultVal float64) float64 {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return v
}

// listArg parses a list argument given either as a JSON array of strings or
// as a newline/comma separated string.
func listArg(req mcp.CallToolRequest, key string) []string {
	switch v := req.GetArguments()[key].(type) {
	case []any:
		var out []string
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
		return out
	case string:
		return splitList(v)
	}
	return nil
}

func splitList(s string) []string {
	sep := ","
	if strings.Contains(s, "\n") {
		sep = "\n"
	}
	var out []string
	for _, part := range strings.Split(s, sep) {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// toolError renders a typed engine error as an MCP tool error with the
// taxonomy kind prefixed, so callers can correct and retry.
func toolError(err error) *mcp.CallToolResult {
	kind := "error"
	switch {
	case errors.Is(err, artifact.ErrValidation):
		kind = "validation_error"
	case errors.Is(err, artifact.ErrNotFound):
		kind = "not_found"
	case errors.Is(err, artifact.ErrInvalidTransition):
		kind = "invalid_transition"
	case errors.Is(err, artifact.ErrPermission):
		kind = "permission_error"
	case errors.Is(err, artifact.ErrCycle):
		kind = "cycle_error"
	case errors.Is(err, artifact.ErrTypeMismatch):
		kind = "type_mismatch"
	}
	return mcp.NewToolResultError(fmt.Sprintf("%s: %v", kind, err))
}

// jsonResult marshals v as an indented JSON tool result.
func jsonResult(v any) *mcp.CallToolResult {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal result: %v", err))
	}
	return mcp.NewToolResultText(string(b))
}
