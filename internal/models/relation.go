package models

import "strings"

// RelationKind is the type of a link between two records.
type RelationKind string

const (
	Supersedes   RelationKind = "supersedes"
	SupersededBy RelationKind = "superseded-by"
	Amends       RelationKind = "amends"
	AmendedBy    RelationKind = "amended-by"
	Links        RelationKind = "links"
)

var inverseKinds = map[RelationKind]RelationKind{
	Supersedes:   SupersededBy,
	SupersededBy: Supersedes,
	Amends:       AmendedBy,
	AmendedBy:    Amends,
}

// Inverse returns the opposite direction of a kind. Free-form links have none.
func (k RelationKind) Inverse() (RelationKind, bool) {
	inv, ok := inverseKinds[k]
	return inv, ok
}

// ParseRelationKind accepts the canonical kind and the spellings used in
// front matter and body text ("superseded_by", "supersededBy", "Superseded by").
func ParseRelationKind(s string) (RelationKind, bool) {
	k := strings.ToLower(strings.TrimSpace(s))
	k = strings.NewReplacer("_", "-", " ", "-").Replace(k)
	switch k {
	case "supersedes":
		return Supersedes, true
	case "superseded-by", "supersededby":
		return SupersededBy, true
	case "amends":
		return Amends, true
	case "amended-by", "amendedby":
		return AmendedBy, true
	case "links", "link", "related", "relates-to", "references":
		return Links, true
	}
	return "", false
}

// Origin tells where a relation was declared.
type Origin string

const (
	OriginFrontMatter Origin = "frontmatter"
	OriginBody        Origin = "body"
	OriginInferred    Origin = "inferred"
)

// Relation is a directed edge from the owning record to Target.
type Relation struct {
	Kind RelationKind `json:"kind"`
	// Target is the reference as written (slug, id or pkg/slug).
	Target string `json:"target"`
	Origin Origin `json:"origin"`
	// Resolved is set once the target is found in the same scan.
	Resolved *Ref `json:"resolved,omitempty"`
	Dangling bool `json:"dangling,omitempty"`
}

// Inferred reports whether the resolver synthesized this edge.
func (r Relation) Inferred() bool { return r.Origin == OriginInferred }

// Explicit reports whether the relation was declared in the file.
func (r Relation) Explicit() bool { return r.Origin != OriginInferred }
