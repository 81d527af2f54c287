// Package models defines the domain types of the ADR knowledge base.
package models

import (
	"time"

	"github.com/starford/adrkb/internal/diag"
)

// PackageRef names the package owning a record. The zero value is the
// global scope.
type PackageRef string

// Global is the scope of the main ADR folder.
const Global PackageRef = ""

// IsGlobal reports whether the ref is the global scope.
func (p PackageRef) IsGlobal() bool { return p == Global }

func (p PackageRef) String() string {
	if p == Global {
		return "global"
	}
	return string(p)
}

// Ref identifies a record across the whole knowledge base.
type Ref struct {
	Package PackageRef `json:"package,omitempty"`
	Slug    string     `json:"slug"`
	ID      int        `json:"id"`
}

func (r Ref) String() string {
	if r.Package == Global {
		return r.Slug
	}
	return string(r.Package) + "/" + r.Slug
}

// Record is one parsed ADR.
type Record struct {
	ID      int        `json:"id"`
	Slug    string     `json:"slug"`
	Title   string     `json:"title"`
	Date    time.Time  `json:"date"`
	DateRaw string     `json:"-"`
	Status  Status     `json:"status"`
	Package PackageRef `json:"package,omitempty"`
	Tags    []string   `json:"tags,omitempty"`

	Relations []Relation `json:"relations,omitempty"`

	Path           string         `json:"path"`
	Checksum       string         `json:"checksum"`
	FrontMatter    map[string]any `json:"frontmatter,omitempty"`
	RawFrontMatter string         `json:"-"`
	RawBody        string         `json:"-"`
	StatusRaw      string         `json:"-"`

	// Valid is false when the front matter could not be read.
	Valid bool `json:"valid"`
	// Findings are the record-local problems found while parsing.
	Findings []diag.Diagnostic `json:"-"`
}

// Ref returns the knowledge-base wide identity of the record.
func (r *Record) Ref() Ref {
	return Ref{Package: r.Package, Slug: r.Slug, ID: r.ID}
}

// Subject returns the diagnostic subject for this record.
func (r *Record) Subject() diag.Subject {
	return diag.Subject{Package: string(r.Package), Slug: r.Slug, ID: r.ID, Path: r.Path}
}

// RelationsOf returns the relations of the given kind, in declaration order.
func (r *Record) RelationsOf(kind RelationKind) []Relation {
	var out []Relation
	for _, rel := range r.Relations {
		if rel.Kind == kind {
			out = append(out, rel)
		}
	}
	return out
}

// HasRelation reports whether a relation of kind points at target (resolved).
func (r *Record) HasRelation(kind RelationKind, target Ref) bool {
	for _, rel := range r.Relations {
		if rel.Kind == kind && rel.Resolved != nil && rel.Resolved.Package == target.Package && rel.Resolved.Slug == target.Slug {
			return true
		}
	}
	return false
}

// FileMeta is the lightweight description of an ADR file on disk.
type FileMeta struct {
	Path      string    `json:"path"`
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}
