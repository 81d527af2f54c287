package links

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/starford/adrkb/internal/models"
)

var numericRe = regexp.MustCompile(`(?i)^(?:adr[-_ ]?)?0*([0-9]+)$`)

// Index answers target lookups for one scan. Records must be supplied in
// folder order so that the first candidate wins ties.
type Index struct {
	bySlug   map[string][]*models.Record
	byID     map[int][]*models.Record
	packages map[string]struct{}
}

// NewIndex builds a lookup index over records.
func NewIndex(records []*models.Record) *Index {
	ix := &Index{
		bySlug:   make(map[string][]*models.Record),
		byID:     make(map[int][]*models.Record),
		packages: make(map[string]struct{}),
	}
	for _, r := range records {
		ix.bySlug[r.Slug] = append(ix.bySlug[r.Slug], r)
		if r.ID > 0 {
			ix.byID[r.ID] = append(ix.byID[r.ID], r)
		}
		if !r.Package.IsGlobal() {
			ix.packages[string(r.Package)] = struct{}{}
		}
	}
	return ix
}

// Lookup resolves a raw target as seen from the record from. The order is
// exact slug (package hint, then own folder, then folder order), numeric id in
// the own folder, then numeric id across all folders.
func (ix *Index) Lookup(from *models.Record, raw string) (*models.Record, bool) {
	t := parseTarget(raw)
	if t.slug == "" {
		return nil, false
	}
	var hint *models.PackageRef
	if _, ok := ix.packages[t.hint]; ok {
		p := models.PackageRef(t.hint)
		hint = &p
	}
	home := from.Package
	if hint != nil {
		home = *hint
	}

	if cands := ix.bySlug[t.slug]; len(cands) > 0 {
		if r := pick(cands, home); r != nil {
			return r, true
		}
		return cands[0], true
	}

	m := numericRe.FindStringSubmatch(t.slug)
	if m == nil {
		return nil, false
	}
	id, err := strconv.Atoi(m[1])
	if err != nil {
		return nil, false
	}
	cands := ix.byID[id]
	if len(cands) == 0 {
		return nil, false
	}
	if r := pick(cands, home); r != nil {
		return r, true
	}
	return cands[0], true
}

func pick(cands []*models.Record, pkg models.PackageRef) *models.Record {
	for _, r := range cands {
		if r.Package == pkg {
			return r
		}
	}
	return nil
}

// Resolve replaces every record's relations with its declared relations,
// resolved against the scan, and adds the inverse edge on each target that
// does not already declare it. Unresolved relations stay, marked dangling.
func Resolve(records []*models.Record) {
	ix := NewIndex(records)
	for _, r := range records {
		r.Relations = Extract(r)
		for i := range r.Relations {
			rel := &r.Relations[i]
			if target, ok := ix.Lookup(r, rel.Target); ok {
				ref := target.Ref()
				rel.Resolved = &ref
			} else {
				rel.Dangling = true
			}
		}
	}

	type edge struct {
		target *models.Record
		rel    models.Relation
	}
	var inferred []edge
	for _, r := range records {
		src := r.Ref()
		for _, rel := range r.Relations {
			if rel.Resolved == nil {
				continue
			}
			inv, ok := rel.Kind.Inverse()
			if !ok || sameRef(*rel.Resolved, src) {
				continue
			}
			target := ix.find(*rel.Resolved)
			if target == nil || target.HasRelation(inv, src) {
				continue
			}
			inferred = append(inferred, edge{target, models.Relation{
				Kind:     inv,
				Target:   src.String(),
				Origin:   models.OriginInferred,
				Resolved: &src,
			}})
		}
	}
	for _, e := range inferred {
		if e.target.HasRelation(e.rel.Kind, *e.rel.Resolved) {
			continue
		}
		e.target.Relations = append(e.target.Relations, e.rel)
	}
}

func (ix *Index) find(ref models.Ref) *models.Record {
	for _, r := range ix.bySlug[ref.Slug] {
		if r.Package == ref.Package {
			return r
		}
	}
	return nil
}

func sameRef(a, b models.Ref) bool {
	return a.Package == b.Package && a.Slug == b.Slug
}

// Contradiction is a pair of records whose explicit typed declarations about
// each other disagree, e.g. A amends B while B says it is superseded by A.
type Contradiction struct {
	From     *models.Record
	To       *models.Record
	Declared []models.RelationKind // From -> To
	Replied  []models.RelationKind // To -> From
}

// Contradictions reports every record pair where both sides explicitly declare
// a typed relation toward the other and at least one declaration lacks its
// inverse on the other side. Inferred edges, free-form links and one-sided
// declarations never contradict anything. Each pair is reported once, with
// From being the record that comes first in records.
func Contradictions(records []*models.Record) []Contradiction {
	pos := make(map[models.Ref]int, len(records))
	for i, r := range records {
		pos[refKey(r.Ref())] = i
	}
	declared := make(map[[2]int][]models.RelationKind)
	for i, r := range records {
		for _, rel := range r.Relations {
			if !rel.Explicit() || rel.Resolved == nil {
				continue
			}
			if _, ok := rel.Kind.Inverse(); !ok {
				continue
			}
			j, ok := pos[refKey(*rel.Resolved)]
			if !ok || j == i {
				continue
			}
			pair := [2]int{i, j}
			if !containsKind(declared[pair], rel.Kind) {
				declared[pair] = append(declared[pair], rel.Kind)
			}
		}
	}

	var out []Contradiction
	for i := range records {
		for j := i + 1; j < len(records); j++ {
			there, back := declared[[2]int{i, j}], declared[[2]int{j, i}]
			if len(there) == 0 || len(back) == 0 {
				continue
			}
			if agree(there, back) && agree(back, there) {
				continue
			}
			out = append(out, Contradiction{From: records[i], To: records[j], Declared: there, Replied: back})
		}
	}
	return out
}

// agree reports whether every kind in a has its inverse in b.
func agree(a, b []models.RelationKind) bool {
	for _, k := range a {
		inv, _ := k.Inverse()
		if !containsKind(b, inv) {
			return false
		}
	}
	return true
}

func containsKind(ks []models.RelationKind, k models.RelationKind) bool {
	for _, x := range ks {
		if x == k {
			return true
		}
	}
	return false
}

// refKey drops the id so that a ref built from a relation matches the record's.
func refKey(r models.Ref) models.Ref {
	return models.Ref{Package: r.Package, Slug: r.Slug}
}

// Describe renders a relation for diagnostics, e.g. "supersedes 0001-x".
func Describe(rel models.Relation) string {
	var b strings.Builder
	b.WriteString(string(rel.Kind))
	b.WriteByte(' ')
	if rel.Resolved != nil {
		b.WriteString(rel.Resolved.String())
	} else {
		b.WriteString(rel.Target)
	}
	return b.String()
}
