package parser

import (
	"testing"
	"time"

	"github.com/starford/adrkb/internal/diag"
	"github.com/starford/adrkb/internal/models"
)

func codes(rec *models.Record) map[diag.Code]int {
	out := make(map[diag.Code]int)
	for _, d := range rec.Findings {
		out[d.Code]++
	}
	return out
}

func TestParseRecord_Complete(t *testing.T) {
	data := []byte("---\ntitle: Use PostgreSQL\ndate: 2024-03-01\nstatus: accepted\ntags: [db]\nowner: team-a\n---\n# Use PostgreSQL\n")
	rec := ParseRecord("/kb/0003-use-postgresql.md", data, models.Global, time.UTC)

	if !rec.Valid {
		t.Error("expected valid record")
	}
	if len(rec.Findings) != 0 {
		t.Errorf("findings = %+v, want none", rec.Findings)
	}
	if rec.ID != 3 || rec.Slug != "0003-use-postgresql" {
		t.Errorf("id/slug = %d/%q", rec.ID, rec.Slug)
	}
	if rec.Status != models.StatusAccepted {
		t.Errorf("status = %q", rec.Status)
	}
	want := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	if !rec.Date.Equal(want) {
		t.Errorf("date = %v, want %v", rec.Date, want)
	}
	if rec.FrontMatter["owner"] != "team-a" {
		t.Errorf("unknown field not preserved: %v", rec.FrontMatter)
	}
	if rec.Checksum == "" {
		t.Error("expected checksum")
	}
}

func TestParseRecord_MalformedDate(t *testing.T) {
	data := []byte("---\ntitle: Bad date\ndate: not-a-date\nstatus: proposed\n---\n")
	rec := ParseRecord("/kb/0001-bad-date.md", data, models.Global, time.UTC)

	c := codes(rec)
	if c[diag.InvalidDate] != 1 {
		t.Errorf("findings = %+v, want one INVALID_DATE", rec.Findings)
	}
	if rec.DateRaw != "not-a-date" {
		t.Errorf("raw date = %q", rec.DateRaw)
	}
	if !rec.Date.IsZero() {
		t.Errorf("date = %v, want zero", rec.Date)
	}
	if rec.Title != "Bad date" || rec.Status != models.StatusProposed {
		t.Errorf("other fields lost: %+v", rec)
	}
}

func TestParseRecord_MissingFrontMatter(t *testing.T) {
	data := []byte("# Record architecture decisions\n\n* Status: accepted\n* Date: 2023-01-02\n")
	rec := ParseRecord("/kb/0001-record-architecture-decisions.md", data, "", time.UTC)

	if rec.Valid {
		t.Error("expected invalid record")
	}
	if codes(rec)[diag.ParseFailure] != 1 {
		t.Errorf("findings = %+v, want PARSE_FAILURE", rec.Findings)
	}
	if rec.Title != "Record architecture decisions" {
		t.Errorf("title = %q", rec.Title)
	}
	if rec.Status != models.StatusAccepted {
		t.Errorf("status = %q, want accepted from body", rec.Status)
	}
	if rec.Date.IsZero() {
		t.Error("expected date from body")
	}
}

func TestParseRecord_Defaults(t *testing.T) {
	rec := ParseRecord("/kb/0002-use-kafka.md", []byte("---\nfoo: bar\n---\nno heading\n"), "billing", time.UTC)

	c := codes(rec)
	if c[diag.MissingTitle] != 1 || c[diag.MissingStatus] != 1 || c[diag.MissingDate] != 1 {
		t.Errorf("findings = %+v", rec.Findings)
	}
	if rec.Title != "Use kafka" {
		t.Errorf("title = %q, want derived from filename", rec.Title)
	}
	if rec.Status != models.DefaultStatus {
		t.Errorf("status = %q", rec.Status)
	}
	if rec.Package != "billing" {
		t.Errorf("package = %q", rec.Package)
	}
	for _, d := range rec.Findings {
		if len(d.Subjects) != 1 || d.Subjects[0].Package != "billing" || d.Subjects[0].Slug != "0002-use-kafka" {
			t.Errorf("subject = %+v", d.Subjects)
		}
	}
}

func TestParseRecord_InvalidStatus(t *testing.T) {
	rec := ParseRecord("/kb/0004-x.md", []byte("---\ntitle: X\ndate: 2024-01-01\nstatus: maybe\n---\n"), "", time.UTC)
	if codes(rec)[diag.InvalidStatus] != 1 {
		t.Errorf("findings = %+v", rec.Findings)
	}
	if rec.Status != models.DefaultStatus || rec.StatusRaw != "maybe" {
		t.Errorf("status = %q raw = %q", rec.Status, rec.StatusRaw)
	}
}

func TestParseRecord_InvalidFilename(t *testing.T) {
	rec := ParseRecord("/kb/Use Redis.md", []byte("---\ntitle: Redis\ndate: 2024-01-01\nstatus: draft\n---\n"), "", time.UTC)
	if codes(rec)[diag.InvalidFilename] != 1 {
		t.Errorf("findings = %+v", rec.Findings)
	}
	if rec.ID != 0 {
		t.Errorf("id = %d, want 0", rec.ID)
	}
}

func TestParseRecord_TOMLDate(t *testing.T) {
	data := []byte("+++\ntitle = \"T\"\ndate = 2024-05-06\nstatus = \"draft\"\n+++\n")
	loc := time.FixedZone("X", 3600)
	rec := ParseRecord("/kb/0001-t.md", data, "", loc)
	if len(rec.Findings) != 0 {
		t.Fatalf("findings = %+v", rec.Findings)
	}
	if y, m, d := rec.Date.Date(); y != 2024 || m != time.May || d != 6 {
		t.Errorf("date = %v", rec.Date)
	}
	if rec.Date.Location() != loc {
		t.Errorf("location = %v", rec.Date.Location())
	}
}

func TestParseDate_Layouts(t *testing.T) {
	for _, s := range []string{"2024-01-02", "2024-01-02T10:00:00Z", "2024-01-02 10:00", "2024-01-02T10:00:00"} {
		if _, err := ParseDate(s, time.UTC); err != nil {
			t.Errorf("ParseDate(%q): %v", s, err)
		}
	}
	if _, err := ParseDate("02/01/2024", time.UTC); err == nil {
		t.Error("expected error for unsupported layout")
	}
}
