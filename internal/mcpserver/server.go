// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes adrkb tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/adrkb/internal/apperr"
	"github.com/starford/adrkb/internal/diag"
	"github.com/starford/adrkb/internal/index"
	"github.com/starford/adrkb/internal/kb"
	"github.com/starford/adrkb/internal/models"
)

// Refresher rescans the folders and brings the search index up to date.
type Refresher func(ctx context.Context) error

// Server wraps the MCP server with adrkb tools.
type Server struct {
	mcp     *server.MCPServer
	svc     *kb.Service
	db      index.RecordIndex
	refresh Refresher
	logger  *slog.Logger
}

// New creates a new MCP server with all adrkb tools registered. refresh, if
// non-nil, runs before searches and after creates. A nil logger uses
// slog.Default.
func New(svc *kb.Service, db index.RecordIndex, refresh Refresher, logger *slog.Logger, version string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{svc: svc, db: db, refresh: refresh, logger: logger}

	s.mcp = server.NewMCPServer(
		"adrkb",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_adrs",
		mcp.WithDescription("List architecture decision records, optionally filtered by status and package."),
		mcp.WithString("statuses", mcp.Description("Comma-separated statuses, e.g. accepted,proposed")),
		mcp.WithString("package", mcp.Description("Package name; empty or '_' for the global folder only")),
	), s.listADRs)

	s.mcp.AddTool(mcp.NewTool("read_adr",
		mcp.WithDescription("Read the full Markdown content of a record."),
		mcp.WithString("slug", mcp.Required(), mcp.Description("Record slug, e.g. 0004-use-postgres")),
		mcp.WithString("package", mcp.Description("Package name; omit for the global folder")),
	), s.readADR)

	s.mcp.AddTool(mcp.NewTool("create_adr",
		mcp.WithDescription("Create a new record from the folder template. The next free id and "+
			"a unique slug are assigned automatically. Read the format via get_adr_format or the "+
			FormatURI+" resource before editing the created file."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Decision title")),
		mcp.WithString("package", mcp.Description("Package name; omit for the global folder")),
		mcp.WithString("status", mcp.Description("Initial status (default draft)")),
	), s.createADR)

	s.mcp.AddTool(mcp.NewTool("diagnose_adrs",
		mcp.WithDescription("Run the consistency checks over every record and return the findings."),
	), s.diagnoseADRs)

	s.mcp.AddTool(mcp.NewTool("search_adrs",
		mcp.WithDescription("Full-text search through record titles, bodies and tags."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of hits (default 20)")),
	), s.searchADRs)

	s.mcp.AddTool(mcp.NewTool("get_adr_format",
		mcp.WithDescription("Returns the canonical record format contract."),
	), s.getADRFormat)

	// Resource: record format contract.
	s.mcp.AddResource(
		mcp.NewResource(FormatURI, "ADR Format Contract",
			mcp.WithResourceDescription("Canonical Markdown format of architecture decision records."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// recordSummary is the list_adrs item shape.
type recordSummary struct {
	Ref     string   `json:"ref"`
	ID      int      `json:"id"`
	Title   string   `json:"title"`
	Status  string   `json:"status"`
	Date    string   `json:"date,omitempty"`
	Package string   `json:"package,omitempty"`
	Tags    []string `json:"tags,omitempty"`
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func errorResult(err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError("not found: " + err.Error())
	case errors.Is(err, apperr.ErrUnknownPackage):
		return mcp.NewToolResultError("unknown package: " + err.Error())
	}
	return mcp.NewToolResultError(err.Error())
}

func packageArg(req mcp.CallToolRequest) models.PackageRef {
	p := strings.TrimSpace(req.GetString("package", ""))
	if p == "_" || p == "global" {
		return models.Global
	}
	return models.PackageRef(p)
}

func (s *Server) listADRs(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	statuses, err := kb.ParseStatuses(req.GetString("statuses", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	f := kb.Filter{Statuses: statuses}
	if _, ok := req.GetArguments()["package"]; ok {
		f.Packages = []models.PackageRef{packageArg(req)}
	}
	res, err := s.svc.List(ctx, f)
	if err != nil {
		return errorResult(err), nil
	}
	out := make([]recordSummary, 0, len(res.Records))
	for _, r := range res.Records {
		item := recordSummary{
			Ref:     r.Ref().String(),
			ID:      r.ID,
			Title:   r.Title,
			Status:  string(r.Status),
			Package: string(r.Package),
			Tags:    r.Tags,
		}
		if !r.Date.IsZero() {
			item.Date = r.Date.Format(time.DateOnly)
		}
		out = append(out, item)
	}
	return jsonResult(out), nil
}

func (s *Server) readADR(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	slug, err := req.RequireString("slug")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	d, err := s.svc.Get(ctx, packageArg(req), slug)
	if err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(d.Content), nil
}

func (s *Server) createADR(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	created, err := s.svc.Create(ctx, kb.CreateInput{
		Package: packageArg(req),
		Title:   title,
		Status:  models.Status(strings.ToLower(strings.TrimSpace(req.GetString("status", "")))),
	})
	if err != nil {
		return errorResult(err), nil
	}
	if s.refresh != nil {
		if err := s.refresh(ctx); err != nil {
			s.logger.Warn("refresh after create failed", slog.String("error", err.Error()))
		}
	}
	return jsonResult(created), nil
}

func (s *Server) diagnoseADRs(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ds, err := s.svc.Diagnose(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	if len(ds) == 0 {
		return mcp.NewToolResultText("no problems found"), nil
	}
	return jsonResult(diag.ToDTOs(ds)), nil
}

func (s *Server) searchADRs(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if s.refresh != nil {
		if err := s.refresh(ctx); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("refresh index: %v", err)), nil
		}
	}
	results, err := s.db.Search(query, int(req.GetFloat("limit", 20)))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if results == nil {
		results = []index.SearchResult{}
	}
	return jsonResult(results), nil
}

func (s *Server) getADRFormat(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(RecordFormatContract), nil
}

func (s *Server) readFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      FormatURI,
			MIMEType: "text/markdown",
			Text:     RecordFormatContract,
		},
	}, nil
}
