// Package parser turns ADR markdown files into records. It extracts YAML
// (---) or TOML (+++) front matter, the body, tags and derived fields.
package parser

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Format is the front matter encoding of a document.
type Format string

const (
	FormatNone Format = ""
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

var tagRe = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_/-]*)`)

// Result holds the output of splitting a Markdown document.
type Result struct {
	Format         Format
	FrontMatter    map[string]any
	RawFrontMatter string
	Body           string
	Tags           []string
	Title          string
}

// Parse separates front matter from the body. Missing front matter is not an
// error; an unterminated block or undecodable YAML/TOML is, and the returned
// Result then still carries the whole input as Body.
func Parse(data []byte) (*Result, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	data = bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
	format, raw, body, err := splitFrontmatter(data)
	if err != nil {
		return &Result{Format: format, RawFrontMatter: raw, Body: string(data), Title: deriveTitle(nil, string(data))}, err
	}

	var fm map[string]any
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal([]byte(raw), &fm); err != nil {
			return &Result{Format: format, RawFrontMatter: raw, Body: body, Title: deriveTitle(nil, body)}, fmt.Errorf("invalid YAML front matter: %w", err)
		}
	case FormatTOML:
		if err := toml.Unmarshal([]byte(raw), &fm); err != nil {
			return &Result{Format: format, RawFrontMatter: raw, Body: body, Title: deriveTitle(nil, body)}, fmt.Errorf("invalid TOML front matter: %w", err)
		}
	}
	if format != FormatNone && fm == nil {
		fm = map[string]any{}
	}

	return &Result{
		Format:         format,
		FrontMatter:    fm,
		RawFrontMatter: raw,
		Body:           body,
		Tags:           extractTags(body, fm),
		Title:          deriveTitle(fm, body),
	}, nil
}

// splitFrontmatter separates a front matter block (between leading --- or
// +++ delimiters) from the Markdown body. Without a leading delimiter the
// entire content is body.
func splitFrontmatter(data []byte) (Format, string, string, error) {
	trimmed := bytes.TrimLeft(data, "\n")

	var delim string
	var format Format
	switch {
	case bytes.HasPrefix(trimmed, []byte("---")):
		delim, format = "---", FormatYAML
	case bytes.HasPrefix(trimmed, []byte("+++")):
		delim, format = "+++", FormatTOML
	default:
		return FormatNone, "", string(data), nil
	}

	rest := trimmed[len(delim):]
	var block []byte
	var afterDelim []byte
	if bytes.HasPrefix(rest, []byte("\n"+delim)) {
		afterDelim = rest[1+len(delim):]
	} else {
		idx := bytes.Index(rest, []byte("\n"+delim))
		if idx < 0 {
			return format, "", string(data), fmt.Errorf("unterminated %s front matter", format)
		}
		block = rest[:idx]
		afterDelim = rest[idx+1+len(delim):]
	}
	body := strings.TrimLeft(string(afterDelim), "\n")
	return format, strings.TrimPrefix(string(block), "\n"), body, nil
}

// extractTags collects #tags from body and from frontmatter "tags" field.
func extractTags(body string, fm map[string]any) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		if _, dup := seen[s]; dup {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}

	switch v := fm["tags"].(type) {
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				add(s)
			}
		}
	case string:
		for _, s := range strings.Split(v, ",") {
			add(s)
		}
	}

	for _, m := range tagRe.FindAllStringSubmatch(body, -1) {
		add(m[1])
	}
	return out
}

// deriveTitle returns the frontmatter "title" if present, otherwise the first
// H1 heading, otherwise empty string.
func deriveTitle(fm map[string]any, body string) string {
	if s := stringField(fm, "title"); s != "" {
		return s
	}
	return headingTitle(body)
}

func headingTitle(body string) string {
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}

// stringField renders a scalar front matter value as text.
func stringField(fm map[string]any, key string) string {
	v, ok := fm[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case []any, map[string]any:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}
