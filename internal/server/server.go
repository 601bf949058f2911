// Package server wires all MCP components and creates the server instance.
//
// This is the composition root: it creates concrete implementations and
// injects them into the tools that depend on abstractions. No business
// logic lives here — only wiring.
package server

import (
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"github.com/durolabs/duro/internal/audit"
	"github.com/durolabs/duro/internal/config"
	"github.com/durolabs/duro/internal/decay"
	"github.com/durolabs/duro/internal/lifecycle"
	"github.com/durolabs/duro/internal/search"
	"github.com/durolabs/duro/internal/store"
	"github.com/durolabs/duro/internal/tools"
)

// Version is set at build time via ldflags.
var Version = "dev"

// New creates and configures the MCP server with all tools registered.
// This is the single place where all dependencies are resolved.
//
// The returned cleanup function closes the store's database connection and
// must be called on shutdown (typically via defer). It is always non-nil.
func New(cfg config.Config) (*server.MCPServer, func(), error) {
	st, err := store.New(store.Config{
		DataDir:          cfg.DataDir,
		MaxSearchResults: cfg.Search.MaxResults,
		Now:              time.Now,
	})
	if err != nil {
		return nil, noop, fmt.Errorf("opening artifact store: %w", err)
	}
	cleanup := func() { _ = st.Close() }

	auditLog := audit.New(st.DB(), time.Now)
	st.SetAuditor(auditLog)

	decayEngine := decay.New(st, time.Now)
	lifecycleMgr := lifecycle.New(st, auditLog, time.Now)

	var embedder search.Embedder
	if cfg.Embedding.Provider != "none" {
		embedder = search.NewHashEmbedder(cfg.Embedding.Dimensions)
	}
	searchSvc := search.New(st, embedder)

	s := server.NewMCPServer(
		"duro",
		Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	saveTool := tools.NewSaveTool(st, searchSvc)
	s.AddTool(saveTool.Definition(), saveTool.Handle)

	getTool := tools.NewGetTool(st)
	s.AddTool(getTool.Definition(), getTool.Handle)

	updateTool := tools.NewUpdateTool(st)
	s.AddTool(updateTool.Definition(), updateTool.Handle)

	deleteTool := tools.NewDeleteTool(st)
	s.AddTool(deleteTool.Definition(), deleteTool.Handle)

	listTool := tools.NewListTool(st)
	s.AddTool(listTool.Definition(), listTool.Handle)

	statsTool := tools.NewStatsTool(st, auditLog)
	s.AddTool(statsTool.Definition(), statsTool.Handle)

	searchTool := tools.NewSearchTool(searchSvc)
	s.AddTool(searchTool.Definition(), searchTool.Handle)

	validateTool := tools.NewValidateDecisionTool(lifecycleMgr)
	s.AddTool(validateTool.Definition(), validateTool.Handle)

	reverseTool := tools.NewReverseDecisionTool(lifecycleMgr)
	s.AddTool(reverseTool.Definition(), reverseTool.Handle)

	supersedeTool := tools.NewSupersedeTool(lifecycleMgr)
	s.AddTool(supersedeTool.Definition(), supersedeTool.Handle)

	resolveTool := tools.NewResolveLatestTool(lifecycleMgr)
	s.AddTool(resolveTool.Definition(), resolveTool.Handle)

	episodeLogTool := tools.NewEpisodeLogTool(lifecycleMgr)
	s.AddTool(episodeLogTool.Definition(), episodeLogTool.Handle)

	evaluateTool := tools.NewEpisodeEvaluateTool(decayEngine)
	s.AddTool(evaluateTool.Definition(), evaluateTool.Handle)

	reinforceTool := tools.NewReinforceFactTool(decayEngine)
	s.AddTool(reinforceTool.Definition(), reinforceTool.Handle)

	decayTool := tools.NewApplyDecayTool(decayEngine)
	s.AddTool(decayTool.Definition(), decayTool.Handle)

	verifyTool := tools.NewVerifyAuditTool(auditLog)
	s.AddTool(verifyTool.Definition(), verifyTool.Handle)

	rebuildTool := tools.NewRebuildIndexTool(st)
	s.AddTool(rebuildTool.Definition(), rebuildTool.Handle)

	return s, cleanup, nil
}

func noop() {}

func serverInstructions() string {
	return `Duro is persistent, provenance-aware memory for AI agents.

Save what you learn as typed artifacts: facts (with confidence and sources),
decisions (with rationale — validate or reverse them once outcomes land),
episodes (goal, actions, result), incidents, and changes.

Confidence decays over time unless a fact is reinforced or pinned. When a
fact or decision becomes outdated, supersede it rather than deleting; every
deletion and approval is recorded in a tamper-evident audit chain.

Search before asking: memory_search ranks artifacts by combined keyword and
semantic relevance.`
}
