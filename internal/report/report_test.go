package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/starford/adrkb/internal/diag"
	"github.com/starford/adrkb/internal/models"
)

var now = time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)

func sample() []*models.Record {
	return []*models.Record{
		{ID: 1, Slug: "0001-use-go", Title: "Use Go", Status: models.StatusAccepted, Date: time.Date(2024, 3, 18, 0, 0, 0, 0, time.UTC)},
		{ID: 2, Slug: "0002-日本語", Title: "日本語のタイトル", Status: models.StatusDraft, Package: "billing"},
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"table": FormatTable, "RAW": FormatRaw, " json ": FormatJSON} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("expected error for xml")
	}
}

func TestRecords_Table(t *testing.T) {
	var buf bytes.Buffer
	if err := Records(&buf, sample(), FormatTable, Options{Now: now}); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %q", lines)
	}
	if !strings.HasPrefix(lines[0], "ID") || !strings.Contains(lines[0], "TITLE") {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.Contains(lines[1], "2024-03-18 (2 days ago)") {
		t.Errorf("row 1 = %q", lines[1])
	}
	if !strings.Contains(lines[1], "global") || !strings.Contains(lines[2], "billing") {
		t.Errorf("package column: %q / %q", lines[1], lines[2])
	}
	if !strings.Contains(lines[2], "0002") || strings.Contains(lines[2], "ago") {
		t.Errorf("row 2 = %q", lines[2])
	}
	// Title column starts at the same display offset in every row.
	col := strings.Index(lines[0], "TITLE")
	if got := strings.Index(lines[1], "Use Go"); got != col {
		t.Errorf("title offset = %d, want %d", got, col)
	}
	if strings.Contains(buf.String(), "\x1b[") {
		t.Error("colors must be off unless requested")
	}
}

func TestRecords_TableColorAndTruncate(t *testing.T) {
	var buf bytes.Buffer
	if err := Records(&buf, sample(), FormatTable, Options{Now: now, Color: true, TitleWidth: 6}); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "\x1b[") {
		t.Error("expected ANSI escapes")
	}
	if !strings.Contains(out, "日...") {
		t.Errorf("wide title not truncated by display width: %q", out)
	}
}

func TestRecords_Empty(t *testing.T) {
	var buf bytes.Buffer
	_ = Records(&buf, nil, FormatTable, Options{})
	if buf.String() != "No ADRs found.\n" {
		t.Errorf("table = %q", buf.String())
	}
	buf.Reset()
	_ = Records(&buf, nil, FormatJSON, Options{})
	if strings.TrimSpace(buf.String()) != "[]" {
		t.Errorf("json = %q", buf.String())
	}
}

func TestRecords_Raw(t *testing.T) {
	var buf bytes.Buffer
	_ = Records(&buf, sample(), FormatRaw, Options{})
	want := "0001-use-go\taccepted\t2024-03-18\tUse Go\n" +
		"billing/0002-日本語\tdraft\t\t日本語のタイトル\n"
	if buf.String() != want {
		t.Errorf("raw = %q, want %q", buf.String(), want)
	}
}

func TestRecords_JSON(t *testing.T) {
	var buf bytes.Buffer
	_ = Records(&buf, sample(), FormatJSON, Options{})
	var got []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0]["slug"] != "0001-use-go" || got[1]["package"] != "billing" {
		t.Errorf("json = %v", got)
	}
}

func TestDiagnostics(t *testing.T) {
	ds := []diag.Diagnostic{
		diag.New(diag.DuplicateID, "id 1", diag.Subject{Slug: "0001-a", ID: 1}, diag.Subject{Slug: "0001-b", ID: 1}),
		diag.New(diag.DanglingRelation, "supersedes 0009-x", diag.Subject{Package: "billing", Slug: "0002-c", ID: 2}),
		diag.New(diag.IDGap, "missing 3"),
	}

	var buf bytes.Buffer
	if err := Diagnostics(&buf, ds, FormatTable, Options{}); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"DUPLICATE_ID", "0001-a, 0001-b", "billing/0002-c", "1 error(s), 1 warning(s), 1 info"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	_ = Diagnostics(&buf, ds, FormatRaw, Options{})
	first := strings.SplitN(buf.String(), "\n", 2)[0]
	if first != "error\tDUPLICATE_ID\t0001-a, 0001-b\ttwo records share the same id (id 1)" {
		t.Errorf("raw first line = %q", first)
	}

	buf.Reset()
	_ = Diagnostics(&buf, ds, FormatJSON, Options{})
	var dtos []diag.DTO
	if err := json.Unmarshal(buf.Bytes(), &dtos); err != nil {
		t.Fatal(err)
	}
	if len(dtos) != 3 || dtos[2].Code != "ID_GAP" || dtos[2].Severity != diag.SevInfo {
		t.Errorf("dtos = %+v", dtos)
	}
}

func TestDiagnostics_Empty(t *testing.T) {
	var buf bytes.Buffer
	_ = Diagnostics(&buf, nil, FormatTable, Options{})
	if buf.String() != "No problems found.\n" {
		t.Errorf("empty = %q", buf.String())
	}
	buf.Reset()
	_ = Diagnostics(&buf, nil, FormatJSON, Options{})
	if strings.TrimSpace(buf.String()) != "[]" {
		t.Errorf("empty json = %q", buf.String())
	}
}

func TestSummary(t *testing.T) {
	ds := []diag.Diagnostic{
		diag.New(diag.InvalidStatus, "wip", diag.Subject{Slug: "0001-a", ID: 1}),
		diag.New(diag.InvalidStatus, "tbd", diag.Subject{Slug: "0002-b", ID: 2}),
		diag.New(diag.MissingStatus, "", diag.Subject{Slug: "0003-c", ID: 3}),
	}
	var buf bytes.Buffer
	if err := Summary(&buf, ds, Options{}); err != nil {
		t.Fatal(err)
	}
	if got := buf.String(); got != "2 error(s), 0 warning(s), 1 info\n" {
		t.Errorf("summary = %q", got)
	}
}
