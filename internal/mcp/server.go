// Package mcp implements the Model Context Protocol server for pathcurate.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/ajitpratap0/pathcurate/internal/curator"
	"github.com/ajitpratap0/pathcurate/internal/models"
	"github.com/ajitpratap0/pathcurate/internal/parser"
)

// Server wraps an MCPServer with pathcurate dependencies.
type Server struct {
	mcp          *mcpserver.MCPServer
	curator      *curator.Curator
	workspace    *curator.Workspace
	defaultModel string
	logger       *slog.Logger
}

// NewServer creates a new MCP server. If c or ws are nil, the corresponding
// tool calls return an error response instead of panicking.
func NewServer(c *curator.Curator, ws *curator.Workspace, defaultModel string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		curator:      c,
		workspace:    ws,
		defaultModel: defaultModel,
		logger:       logger,
	}

	mcpSrv := mcpserver.NewMCPServer(
		"pathcurate",
		"1.0.0",
		mcpserver.WithToolCapabilities(true),
	)

	mcpSrv.AddTool(buildAddPathwayTool(), s.handleAddPathway)
	mcpSrv.AddTool(buildAddReactionsTool(), s.handleAddReactions)
	mcpSrv.AddTool(buildFluxTestTool(), s.handleFluxTest)
	mcpSrv.AddTool(buildModelStatsTool(), s.handleModelStats)
	mcpSrv.AddTool(buildParseRecordTool(), s.handleParseRecord)

	s.mcp = mcpSrv
	return s
}

// MCPServer returns the underlying mcp-go MCPServer for use with ServeStdio.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcp
}

// HandleAddPathway is the exported handler for the "add_pathway" tool.
// It is exposed for direct testing without the mcp-go transport layer.
func (s *Server) HandleAddPathway(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleAddPathway(ctx, req)
}

// HandleAddReactions is the exported handler for the "add_reactions" tool.
func (s *Server) HandleAddReactions(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleAddReactions(ctx, req)
}

// HandleFluxTest is the exported handler for the "flux_test" tool.
func (s *Server) HandleFluxTest(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleFluxTest(ctx, req)
}

// HandleModelStats is the exported handler for the "model_stats" tool.
func (s *Server) HandleModelStats(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleModelStats(ctx, req)
}

// HandleParseRecord is the exported handler for the "parse_record" tool.
func (s *Server) HandleParseRecord(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleParseRecord(ctx, req)
}

// --- helpers ---

// toolResultJSON marshals v to JSON and returns it as a tool text result.
func toolResultJSON(v any) (*mcpgo.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("mcp: marshaling result: %w", err)
	}
	return mcpgo.NewToolResultText(string(b)), nil
}

// splitList splits a comma- or newline-separated argument.
func splitList(s string) []string {
	var out []string
	for _, f := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '\n' }) {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func (s *Server) model(req mcpgo.CallToolRequest) string {
	if id := strings.TrimSpace(req.GetString("model", "")); id != "" {
		return id
	}
	return s.defaultModel
}

func (s *Server) ready() *mcpgo.CallToolResult {
	if s.curator == nil || s.workspace == nil {
		return mcpgo.NewToolResultError("curator is unavailable")
	}
	return nil
}

// --- tool definitions ---

func buildAddPathwayTool() mcpgo.Tool {
	return mcpgo.NewTool("add_pathway",
		mcpgo.WithDescription("Fetch a pathway from a metabolic database and merge its reactions into a model. Dead ends are repaired with sinks and demands."),
		mcpgo.WithString("id",
			mcpgo.Required(),
			mcpgo.Description("Pathway identifier, e.g. ACETOACETATE-DEG-PWY or M00118"),
		),
		mcpgo.WithString("model",
			mcpgo.Description("Model identifier (default: the configured model)"),
		),
		mcpgo.WithString("database",
			mcpgo.Description("Database: META, ARA, KEGG, BIGG or another BioCyc database (default: configured)"),
		),
		mcpgo.WithString("compartment",
			mcpgo.Description("Compartment for new entities (default: c)"),
		),
		mcpgo.WithString("avoid",
			mcpgo.Description("Comma-separated reaction identifiers to leave out"),
		),
		mcpgo.WithString("ignore_flux",
			mcpgo.Description("Comma-separated reaction identifiers exempt from dead-end repair"),
		),
	)
}

func buildAddReactionsTool() mcpgo.Tool {
	return mcpgo.NewTool("add_reactions",
		mcpgo.WithDescription("Merge reactions and metabolites given as entry lines: a database identifier, 'id, name, compartment, formula, charge' for a metabolite, or 'id, name | a_c:-1, b_c:1' for a reaction."),
		mcpgo.WithString("entries",
			mcpgo.Required(),
			mcpgo.Description("Entries, one per line"),
		),
		mcpgo.WithString("model",
			mcpgo.Description("Model identifier (default: the configured model)"),
		),
		mcpgo.WithString("database",
			mcpgo.Description("Database for identifier entries (default: configured)"),
		),
		mcpgo.WithString("compartment",
			mcpgo.Description("Compartment for entries without one (default: c)"),
		),
		mcpgo.WithString("pathway_id",
			mcpgo.Description("Group the reactions into a linear pathway with this identifier"),
		),
	)
}

func buildFluxTestTool() mcpgo.Tool {
	return mcpgo.NewTool("flux_test",
		mcpgo.WithDescription("Check whether reactions of a model can carry non-zero flux."),
		mcpgo.WithString("model",
			mcpgo.Description("Model identifier (default: the configured model)"),
		),
		mcpgo.WithString("reactions",
			mcpgo.Description("Comma-separated reaction identifiers (default: all reactions)"),
		),
	)
}

func buildModelStatsTool() mcpgo.Tool {
	return mcpgo.NewTool("model_stats",
		mcpgo.WithDescription("Count metabolites, reactions, boundary reactions, genes and pathways of a model."),
		mcpgo.WithString("model",
			mcpgo.Description("Model identifier (default: the configured model)"),
		),
	)
}

func buildParseRecordTool() mcpgo.Tool {
	return mcpgo.NewTool("parse_record",
		mcpgo.WithDescription("Fetch one database record and return it in normalized form without changing any model."),
		mcpgo.WithString("id",
			mcpgo.Required(),
			mcpgo.Description("Record identifier"),
		),
		mcpgo.WithString("database",
			mcpgo.Description("Database (default: configured)"),
		),
	)
}

// --- tool handlers ---

// handleAddPathway merges a pathway and returns the merge summary.
func (s *Server) handleAddPathway(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if res := s.ready(); res != nil {
		return res, nil
	}
	id := strings.TrimSpace(req.GetString("id", ""))
	if id == "" {
		return mcpgo.NewToolResultError("id is required and must not be empty"), nil
	}

	preq := curator.PathwayRequest{
		ID:          id,
		Database:    req.GetString("database", ""),
		Compartment: req.GetString("compartment", ""),
		Avoid:       splitList(req.GetString("avoid", "")),
		IgnoreFlux:  splitList(req.GetString("ignore_flux", "")),
	}
	var res *curator.Result
	err := s.workspace.Update(ctx, s.model(req), true, func(m *models.Model) error {
		var err error
		res, err = s.curator.AddPathway(ctx, m, preq)
		return err
	})
	if err != nil {
		return mcpgo.NewToolResultErrorf("add pathway failed: %s", err.Error()), nil
	}

	s.logger.Info("mcp: pathway merged", "pathway", id, "batch", res.Summary.BatchID)
	return toolResultJSON(res)
}

// handleAddReactions parses entry lines and merges them.
func (s *Server) handleAddReactions(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if res := s.ready(); res != nil {
		return res, nil
	}
	raw := req.GetString("entries", "")
	if strings.TrimSpace(raw) == "" {
		return mcpgo.NewToolResultError("entries is required and must not be empty"), nil
	}
	entries, err := parser.ParseEntries(strings.NewReader(raw))
	if err != nil {
		return mcpgo.NewToolResultErrorf("invalid entries: %s", err.Error()), nil
	}

	ereq := curator.EntriesRequest{
		Entries:     entries,
		Database:    req.GetString("database", ""),
		Compartment: req.GetString("compartment", ""),
		PathwayID:   req.GetString("pathway_id", ""),
	}
	var res *curator.Result
	err = s.workspace.Update(ctx, s.model(req), true, func(m *models.Model) error {
		var err error
		res, err = s.curator.AddReactions(ctx, m, ereq)
		return err
	})
	if err != nil {
		return mcpgo.NewToolResultErrorf("add reactions failed: %s", err.Error()), nil
	}

	s.logger.Info("mcp: entries merged", "entries", len(entries), "batch", res.Summary.BatchID)
	return toolResultJSON(res)
}

// handleFluxTest checks reactions for flux.
func (s *Server) handleFluxTest(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if res := s.ready(); res != nil {
		return res, nil
	}
	var results []curator.FluxResult
	err := s.workspace.View(ctx, s.model(req), func(m *models.Model) error {
		var err error
		results, err = s.curator.FluxTest(ctx, m, splitList(req.GetString("reactions", "")))
		return err
	})
	if err != nil {
		return mcpgo.NewToolResultErrorf("flux test failed: %s", err.Error()), nil
	}

	var blocked []string
	for _, r := range results {
		if !r.CanCarry {
			blocked = append(blocked, r.Reaction)
		}
	}
	return toolResultJSON(map[string]any{
		"results": results,
		"blocked": blocked,
	})
}

// handleModelStats returns entity counts.
func (s *Server) handleModelStats(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if res := s.ready(); res != nil {
		return res, nil
	}
	var stats curator.Stats
	err := s.workspace.View(ctx, s.model(req), func(m *models.Model) error {
		stats = curator.StatsOf(m)
		return nil
	})
	if err != nil {
		return mcpgo.NewToolResultErrorf("stats failed: %s", err.Error()), nil
	}
	return toolResultJSON(stats)
}

// handleParseRecord fetches and parses a single record.
func (s *Server) handleParseRecord(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.curator == nil {
		return mcpgo.NewToolResultError("curator is unavailable"), nil
	}
	id := strings.TrimSpace(req.GetString("id", ""))
	if id == "" {
		return mcpgo.NewToolResultError("id is required and must not be empty"), nil
	}
	rec, err := s.curator.Record(ctx, id, req.GetString("database", ""))
	if err != nil {
		return mcpgo.NewToolResultErrorf("parse record failed: %s", err.Error()), nil
	}
	return toolResultJSON(rec)
}
