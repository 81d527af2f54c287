// Package diag defines the diagnostic kinds, severities and the transport
// shape handed to presentation layers.
package diag

import (
	"sort"
	"strings"
)

// Subject identifies a record a diagnostic is about.
type Subject struct {
	Package string `json:"package,omitempty"`
	Slug    string `json:"slug"`
	ID      int    `json:"id"`
	Path    string `json:"path,omitempty"`
}

func (s Subject) String() string {
	if s.Package == "" {
		return s.Slug
	}
	return s.Package + "/" + s.Slug
}

// Diagnostic is one finding. Severity always equals Code.Severity().
type Diagnostic struct {
	Code     Code      `json:"code"`
	Severity Severity  `json:"severity"`
	Subjects []Subject `json:"subjects,omitempty"`
	Details  string    `json:"details,omitempty"`
}

// New builds a diagnostic with the severity fixed by its code.
func New(code Code, details string, subjects ...Subject) Diagnostic {
	return Diagnostic{
		Code:     code,
		Severity: code.Severity(),
		Subjects: subjects,
		Details:  details,
	}
}

// Message is the human-readable text, including details when present.
func (d Diagnostic) Message() string {
	if d.Details == "" {
		return d.Code.Title()
	}
	return d.Code.Title() + " (" + d.Details + ")"
}

// About reports whether the diagnostic references the given record.
func (d Diagnostic) About(pkg, slug string) bool {
	for _, s := range d.Subjects {
		if s.Package == pkg && s.Slug == slug {
			return true
		}
	}
	return false
}

// DTO is the transport shape consumed outside the core.
type DTO struct {
	Code     string   `json:"code"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// ToDTO converts a diagnostic to its transport shape.
func (d Diagnostic) ToDTO() DTO {
	return DTO{
		Code:     d.Code.Tag(),
		Severity: d.Severity,
		Message:  d.Message(),
	}
}

// ToDTOs converts a list, never returning nil.
func ToDTOs(ds []Diagnostic) []DTO {
	out := make([]DTO, 0, len(ds))
	for _, d := range ds {
		out = append(out, d.ToDTO())
	}
	return out
}

// HasErrors reports whether any diagnostic has error severity.
func HasErrors(ds []Diagnostic) bool {
	for i := range ds {
		if ds[i].Severity >= SevError {
			return true
		}
	}
	return false
}

// Count returns how many diagnostics carry the given code.
func Count(ds []Diagnostic, code Code) int {
	n := 0
	for i := range ds {
		if ds[i].Code == code {
			n++
		}
	}
	return n
}

// Sort orders diagnostics by severity (desc), folder rank, record id, code
// and details. rank maps a package name to its folder position; diagnostics
// without subjects sort after those with one.
func Sort(ds []Diagnostic, rank func(pkg string) int) {
	sort.SliceStable(ds, func(i, j int) bool {
		di, dj := ds[i], ds[j]
		if di.Severity != dj.Severity {
			return di.Severity > dj.Severity
		}
		ri, idi, si := primary(di, rank)
		rj, idj, sj := primary(dj, rank)
		if ri != rj {
			return ri < rj
		}
		if idi != idj {
			return idi < idj
		}
		if si != sj {
			return si < sj
		}
		if di.Code != dj.Code {
			return di.Code < dj.Code
		}
		return strings.Compare(di.Details, dj.Details) < 0
	})
}

func primary(d Diagnostic, rank func(string) int) (int, int, string) {
	if len(d.Subjects) == 0 {
		return int(^uint(0) >> 1), 0, ""
	}
	s := d.Subjects[0]
	r := 0
	if rank != nil {
		r = rank(s.Package)
	}
	return r, s.ID, s.Slug
}
