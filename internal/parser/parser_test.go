package parser

import (
	"testing"
)

func TestParse_FrontmatterAndBody(t *testing.T) {
	input := []byte("---\ntitle: Hello\ntags:\n  - go\n  - adr\n---\n# Hello\nBody text.\n")
	r, err := Parse(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Format != FormatYAML {
		t.Errorf("format = %q, want yaml", r.Format)
	}
	if r.Title != "Hello" {
		t.Errorf("title = %q, want %q", r.Title, "Hello")
	}
	if len(r.Tags) < 2 || r.Tags[0] != "go" || r.Tags[1] != "adr" {
		t.Errorf("tags = %v, want [go adr]", r.Tags)
	}
	if r.Body != "# Hello\nBody text.\n" {
		t.Errorf("body = %q", r.Body)
	}
	if r.RawFrontMatter != "title: Hello\ntags:\n  - go\n  - adr" {
		t.Errorf("raw front matter = %q", r.RawFrontMatter)
	}
}

func TestParse_TOMLFrontmatter(t *testing.T) {
	input := []byte("+++\ntitle = \"Use TOML\"\nstatus = \"accepted\"\n+++\nBody\n")
	r, err := Parse(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Format != FormatTOML {
		t.Errorf("format = %q, want toml", r.Format)
	}
	if r.Title != "Use TOML" {
		t.Errorf("title = %q", r.Title)
	}
	if r.FrontMatter["status"] != "accepted" {
		t.Errorf("status = %v", r.FrontMatter["status"])
	}
}

func TestParse_NoFrontmatter(t *testing.T) {
	input := []byte("# Just a heading\nSome text.\n")
	r, err := Parse(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.FrontMatter != nil {
		t.Errorf("expected nil frontmatter, got %v", r.FrontMatter)
	}
	if r.Title != "Just a heading" {
		t.Errorf("title = %q, want %q", r.Title, "Just a heading")
	}
}

func TestParse_EmptyFrontmatter(t *testing.T) {
	r, err := Parse([]byte("---\n---\nBody\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.FrontMatter == nil || len(r.FrontMatter) != 0 {
		t.Errorf("frontmatter = %v, want empty map", r.FrontMatter)
	}
	if r.Body != "Body\n" {
		t.Errorf("body = %q", r.Body)
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	input := []byte("---\n: invalid: yaml: {{{\n---\nBody\n")
	r, err := Parse(input)
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
	if r == nil || r.FrontMatter != nil {
		t.Errorf("expected partial result without frontmatter, got %+v", r)
	}
	if r.Body != "Body\n" {
		t.Errorf("body = %q", r.Body)
	}
}

func TestParse_Unterminated(t *testing.T) {
	input := []byte("---\ntitle: x\nno closing\n")
	r, err := Parse(input)
	if err == nil {
		t.Fatal("expected error for unterminated front matter")
	}
	if r.Body != string(input) {
		t.Errorf("body = %q, want whole input", r.Body)
	}
}

func TestParse_CRLF(t *testing.T) {
	r, err := Parse([]byte("---\r\ntitle: Windows\r\n---\r\nBody\r\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Title != "Windows" {
		t.Errorf("title = %q", r.Title)
	}
}

func TestParse_BOM(t *testing.T) {
	r, err := Parse([]byte("\xef\xbb\xbf---\ntitle: Notepad\n---\nBody\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Format != FormatYAML || r.Title != "Notepad" {
		t.Errorf("format = %v, title = %q", r.Format, r.Title)
	}
}

func TestExtractTags_InlineAndFrontmatter(t *testing.T) {
	fm := map[string]any{
		"tags": []any{"alpha"},
	}
	body := "Some text #beta and #alpha again.\n## Heading"
	tags := extractTags(body, fm)
	// alpha from FM, beta from body; alpha not duplicated.
	if len(tags) != 2 || tags[0] != "alpha" || tags[1] != "beta" {
		t.Errorf("tags = %v, want [alpha beta]", tags)
	}
}

func TestExtractTags_CommaString(t *testing.T) {
	tags := extractTags("", map[string]any{"tags": "db, storage"})
	if len(tags) != 2 || tags[0] != "db" || tags[1] != "storage" {
		t.Errorf("tags = %v", tags)
	}
}

func TestDeriveTitle_FrontmatterOverH1(t *testing.T) {
	fm := map[string]any{"title": "FM Title"}
	body := "# H1 Title\ntext"
	title := deriveTitle(fm, body)
	if title != "FM Title" {
		t.Errorf("title = %q, want %q", title, "FM Title")
	}
}

func TestDeriveTitle_H1Fallback(t *testing.T) {
	title := deriveTitle(nil, "some text\n# My Heading\nmore")
	if title != "My Heading" {
		t.Errorf("title = %q, want %q", title, "My Heading")
	}
}
