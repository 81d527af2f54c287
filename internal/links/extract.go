// Package links extracts relation declarations from records and resolves
// them against a scanned knowledge base.
package links

import (
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/starford/adrkb/internal/models"
)

var (
	// Typed body markers: "Supersedes [[0001-x]]", "superseded by [ADR-5](0005-y.md)".
	markerRe = regexp.MustCompile(`(?i)\b(supersedes|superseded[ _-]?by|amends|amended[ _-]?by)\s*:?\s*(?:\[\[([^\]|]+)(?:\|[^\]]*)?\]\]|\[[^\]]*\]\(([^)\s]+)\))`)
	wikiRe   = regexp.MustCompile(`\[\[([^\]|]+)(?:\|[^\]]*)?\]\]`)
	mdLinkRe = regexp.MustCompile(`\[[^\]]*\]\(([^)\s]+)\)`)
	schemeRe = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*:`)
)

var kindOrder = map[models.RelationKind]int{
	models.Supersedes:   0,
	models.SupersededBy: 1,
	models.Amends:       2,
	models.AmendedBy:    3,
	models.Links:        4,
}

// Extract returns the relations rec declares, front matter first, then body
// markers, then free-form links. Duplicates are dropped; nothing is resolved.
func Extract(rec *models.Record) []models.Relation {
	var out []models.Relation
	seen := make(map[string]struct{})
	add := func(kind models.RelationKind, raw string, origin models.Origin) {
		raw = strings.TrimSpace(raw)
		if raw == "" || isExternal(raw) {
			return
		}
		t := parseTarget(raw)
		if t.slug == "" {
			return
		}
		key := string(kind) + "\x00" + t.key()
		if _, dup := seen[key]; dup {
			return
		}
		// A target already related by a typed edge is not also a free link.
		if kind == models.Links {
			for k := range kindOrder {
				if _, typed := seen[string(k)+"\x00"+t.key()]; typed {
					return
				}
			}
		}
		seen[key] = struct{}{}
		out = append(out, models.Relation{Kind: kind, Target: raw, Origin: origin})
	}

	for _, fk := range frontMatterKeys(rec.FrontMatter) {
		for _, v := range targetValues(rec.FrontMatter[fk.key]) {
			add(fk.kind, v, models.OriginFrontMatter)
		}
	}

	body := rec.RawBody
	for _, m := range markerRe.FindAllStringSubmatch(body, -1) {
		kind, ok := models.ParseRelationKind(m[1])
		if !ok {
			continue
		}
		target := m[2]
		if target == "" {
			target = m[3]
		}
		add(kind, target, models.OriginBody)
	}
	for _, m := range wikiRe.FindAllStringSubmatch(body, -1) {
		add(models.Links, m[1], models.OriginBody)
	}
	for _, m := range mdLinkRe.FindAllStringSubmatch(body, -1) {
		href := m[1]
		if isExternal(href) || !strings.HasSuffix(stripAnchor(href), ".md") {
			continue
		}
		add(models.Links, href, models.OriginBody)
	}
	return out
}

type fmKey struct {
	key  string
	kind models.RelationKind
}

// frontMatterKeys lists relation-bearing keys in a stable order.
func frontMatterKeys(fm map[string]any) []fmKey {
	var keys []fmKey
	for k := range fm {
		if kind, ok := models.ParseRelationKind(k); ok {
			keys = append(keys, fmKey{key: k, kind: kind})
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].kind != keys[j].kind {
			return kindOrder[keys[i].kind] < kindOrder[keys[j].kind]
		}
		return keys[i].key < keys[j].key
	})
	return keys
}

// targetValues flattens a scalar or list front matter value into strings.
func targetValues(v any) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		return []string{t}
	case []any:
		var out []string
		for _, item := range t {
			out = append(out, targetValues(item)...)
		}
		return out
	case []string:
		return t
	case map[string]any:
		return nil
	default:
		return []string{fmt.Sprint(t)}
	}
}

func isExternal(href string) bool {
	return schemeRe.MatchString(href) || strings.HasPrefix(href, "#")
}

func stripAnchor(s string) string {
	if i := strings.IndexAny(s, "#?"); i >= 0 {
		return s[:i]
	}
	return s
}

// target is a parsed reference: a slug or id plus an optional package hint
// taken from the parent path element.
type target struct {
	hint string
	slug string
}

func (t target) key() string {
	if t.hint == "" {
		return t.slug
	}
	return t.hint + "/" + t.slug
}

func parseTarget(raw string) target {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(strings.TrimSuffix(s, "]]"), "[[")
	if m := mdLinkRe.FindStringSubmatch(s); m != nil {
		s = m[1]
	} else if i := strings.IndexByte(s, '|'); i >= 0 {
		s = s[:i]
	}
	s = stripAnchor(s)
	s = strings.TrimSuffix(s, ".md")
	s = strings.Trim(s, "/")
	if s == "" {
		return target{}
	}
	dir, base := path.Split(s)
	dir = strings.Trim(dir, "/")
	hint := path.Base(dir)
	if dir == "" || hint == "." || hint == ".." {
		hint = ""
	}
	return target{hint: hint, slug: base}
}
