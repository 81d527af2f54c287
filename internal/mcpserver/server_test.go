package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/adrkb/internal/index"
	"github.com/starford/adrkb/internal/kb"
	"github.com/starford/adrkb/internal/repository"
	"github.com/starford/adrkb/internal/testutil"
)

func testServer(t *testing.T) (*Server, string) {
	t.Helper()

	root := testutil.Folder(t)
	global := testutil.Mkdir(t, root, "docs/adr")
	billing := testutil.Mkdir(t, root, "billing/adr")

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := kb.NewService([]repository.Folder{
		{Path: global},
		{Path: billing, Package: "billing"},
	}, kb.WithLogger(logger))

	db, err := index.Open(filepath.Join(t.TempDir(), "mcp-test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	refresh := func(ctx context.Context) error {
		res, err := svc.Scan(ctx)
		if err != nil {
			return err
		}
		_, err = index.Sync(db, res.Repository(), logger)
		return err
	}
	return New(svc, db, refresh, logger, "test"), global
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" test helper, so the handlers are
	// invoked directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "list_adrs":
		result, err = srv.listADRs(ctx, req)
	case "read_adr":
		result, err = srv.readADR(ctx, req)
	case "create_adr":
		result, err = srv.createADR(ctx, req)
	case "diagnose_adrs":
		result, err = srv.diagnoseADRs(ctx, req)
	case "search_adrs":
		result, err = srv.searchADRs(ctx, req)
	case "get_adr_format":
		result, err = srv.getADRFormat(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestCreateAndReadADR(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "create_adr", map[string]any{"title": "Use Postgres", "status": "proposed"})
	if r.IsError {
		t.Fatalf("create failed: %s", resultText(r))
	}
	var created kb.Created
	if err := json.Unmarshal([]byte(resultText(r)), &created); err != nil {
		t.Fatalf("create result = %q: %v", resultText(r), err)
	}
	if created.Slug != "0001-use-postgres" {
		t.Errorf("slug = %q", created.Slug)
	}

	r = callTool(t, srv, "read_adr", map[string]any{"slug": "0001-use-postgres"})
	text := resultText(r)
	if r.IsError || !strings.Contains(text, "# Use Postgres") || !strings.Contains(text, "status: proposed") {
		t.Errorf("read result = %q", text)
	}
}

func TestCreateADR_InPackage(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "create_adr", map[string]any{"title": "Use Stripe", "package": "billing"})
	if r.IsError {
		t.Fatalf("create failed: %s", resultText(r))
	}
	r = callTool(t, srv, "read_adr", map[string]any{"slug": "0001-use-stripe", "package": "billing"})
	if r.IsError {
		t.Errorf("read failed: %s", resultText(r))
	}

	r = callTool(t, srv, "create_adr", map[string]any{"title": "X", "package": "nope"})
	if !r.IsError || !strings.Contains(resultText(r), "unknown package") {
		t.Errorf("unknown package result = %q", resultText(r))
	}
}

func TestListADRs(t *testing.T) {
	srv, global := testServer(t)
	testutil.WriteADR(t, global, "0001-a.md", testutil.Doc("# A\n", "title", "A", "date", "2024-02-01", "status", "accepted"))
	testutil.WriteADR(t, global, "0002-b.md", testutil.Doc("# B\n", "title", "B", "date", "2024-02-02", "status", "draft"))

	r := callTool(t, srv, "list_adrs", map[string]any{})
	var items []recordSummary
	if err := json.Unmarshal([]byte(resultText(r)), &items); err != nil {
		t.Fatalf("list result = %q: %v", resultText(r), err)
	}
	if len(items) != 2 || items[0].Date != "2024-02-01" {
		t.Errorf("items = %+v", items)
	}

	r = callTool(t, srv, "list_adrs", map[string]any{"statuses": "draft"})
	_ = json.Unmarshal([]byte(resultText(r)), &items)
	if len(items) != 1 || items[0].Ref != "0002-b" {
		t.Errorf("filtered = %+v", items)
	}

	r = callTool(t, srv, "list_adrs", map[string]any{"package": "billing"})
	_ = json.Unmarshal([]byte(resultText(r)), &items)
	if len(items) != 0 {
		t.Errorf("billing = %+v", items)
	}

	r = callTool(t, srv, "list_adrs", map[string]any{"statuses": "bogus"})
	if !r.IsError {
		t.Error("expected error for unknown status")
	}
}

func TestReadADRMissing(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "read_adr", map[string]any{"slug": "0007-nope"})
	if !r.IsError {
		t.Error("expected error for missing record")
	}
	r = callTool(t, srv, "read_adr", map[string]any{})
	if !r.IsError {
		t.Error("expected error for missing slug")
	}
}

func TestDiagnoseADRs(t *testing.T) {
	srv, global := testServer(t)
	r := callTool(t, srv, "diagnose_adrs", nil)
	if resultText(r) != "no problems found" {
		t.Errorf("empty diagnose = %q", resultText(r))
	}

	testutil.WriteADR(t, global, "0001-old.md", testutil.Doc("# Old\n", "title", "Old", "date", "2024-01-01", "status", "superseded"))
	r = callTool(t, srv, "diagnose_adrs", nil)
	if !strings.Contains(resultText(r), "SUPERSEDED_WITHOUT_SUCCESSOR") {
		t.Errorf("diagnose = %q", resultText(r))
	}
}

func TestSearchADRs(t *testing.T) {
	srv, global := testServer(t)
	testutil.WriteADR(t, global, "0001-queue.md", testutil.Doc("# Queue\n\nAdopt nats for fan-out.\n", "title", "Queue", "status", "accepted"))

	r := callTool(t, srv, "search_adrs", map[string]any{"query": "nats"})
	var hits []index.SearchResult
	if err := json.Unmarshal([]byte(resultText(r)), &hits); err != nil {
		t.Fatalf("search result = %q: %v", resultText(r), err)
	}
	if len(hits) != 1 || hits[0].Ref != "0001-queue" {
		t.Errorf("hits = %+v", hits)
	}
}

func TestGetADRFormat(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_adr_format", nil)
	if !strings.Contains(resultText(r), "create_adr") {
		t.Error("contract should point at create_adr")
	}
	contents, err := srv.readFormatResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil || len(contents) != 1 {
		t.Fatalf("resource = %v, %v", contents, err)
	}
	if tc, ok := contents[0].(mcp.TextResourceContents); !ok || tc.URI != FormatURI {
		t.Errorf("resource contents = %+v", contents[0])
	}
}

func TestCreateADR_RefreshFailureIsLogged(t *testing.T) {
	global := testutil.Folder(t)
	svc := kb.NewService([]repository.Folder{{Path: global}})
	db, err := index.Open(filepath.Join(t.TempDir(), "mcp-test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	failing := func(context.Context) error { return errors.New("index locked") }
	srv := New(svc, db, failing, logger, "test")

	r := callTool(t, srv, "create_adr", map[string]any{"title": "Use Redis"})
	if r.IsError {
		t.Fatalf("create failed: %s", resultText(r))
	}
	if !strings.Contains(logs.String(), "refresh after create failed") || !strings.Contains(logs.String(), "index locked") {
		t.Errorf("logs = %q", logs.String())
	}
}
