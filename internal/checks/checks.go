// Package checks is the diagnostics engine: an ordered list of independent,
// side-effect free rules over one repository snapshot.
package checks

import (
	"fmt"
	"strings"

	"github.com/starford/adrkb/internal/diag"
	"github.com/starford/adrkb/internal/links"
	"github.com/starford/adrkb/internal/models"
	"github.com/starford/adrkb/internal/repository"
	"github.com/starford/adrkb/internal/status"
)

// Rule inspects the whole repository and returns its findings.
type Rule struct {
	Name  string
	Check func(repo *repository.Repository) []diag.Diagnostic
}

// RecordRule lifts a per-record check into a Rule.
func RecordRule(name string, check func(r *models.Record) []diag.Diagnostic) Rule {
	return Rule{Name: name, Check: func(repo *repository.Repository) []diag.Diagnostic {
		var out []diag.Diagnostic
		for _, r := range repo.Records() {
			out = append(out, check(r)...)
		}
		return out
	}}
}

// Default returns the built-in rules in evaluation order.
func Default() []Rule {
	return []Rule{
		RecordRule("parse", parseFindings),
		{Name: "duplicate-id", Check: duplicateIDs},
		{Name: "duplicate-slug", Check: duplicateSlugs},
		{Name: "id-gap", Check: idGaps},
		RecordRule("dangling", dangling),
		RecordRule("self", selfRelations),
		{Name: "inconsistent", Check: inconsistentRelations},
		RecordRule("status", status.Check),
	}
}

// Run applies rules (Default when none are given) and returns the findings
// sorted by severity, folder order and record id. It never mutates repo.
func Run(repo *repository.Repository, rules ...Rule) []diag.Diagnostic {
	if len(rules) == 0 {
		rules = Default()
	}
	out := []diag.Diagnostic{}
	for _, rule := range rules {
		out = append(out, rule.Check(repo)...)
	}
	diag.Sort(out, repo.FolderRank)
	return out
}

// ForRecord filters ds down to the findings that reference rec.
func ForRecord(ds []diag.Diagnostic, rec *models.Record) []diag.Diagnostic {
	var out []diag.Diagnostic
	for _, d := range ds {
		if d.About(string(rec.Package), rec.Slug) {
			out = append(out, d)
		}
	}
	return out
}

func parseFindings(r *models.Record) []diag.Diagnostic {
	return append([]diag.Diagnostic(nil), r.Findings...)
}

// duplicateIDs emits one diagnostic per extra record sharing an id with the
// first record of that id in the folder, referencing both.
func duplicateIDs(repo *repository.Repository) []diag.Diagnostic {
	var out []diag.Diagnostic
	for _, f := range repo.Folders() {
		seen := make(map[int]*models.Record)
		for _, r := range repo.FolderRecords(f.Package) {
			if r.ID == 0 {
				continue
			}
			first, ok := seen[r.ID]
			if !ok {
				seen[r.ID] = r
				continue
			}
			out = append(out, diag.New(diag.DuplicateID,
				fmt.Sprintf("id %d used by %s and %s", r.ID, first.Slug, r.Slug),
				first.Subject(), r.Subject()))
		}
	}
	return out
}

// duplicateSlugs compares slugs case-insensitively within a folder, which is
// what a case-insensitive file system would collapse into one file.
func duplicateSlugs(repo *repository.Repository) []diag.Diagnostic {
	var out []diag.Diagnostic
	for _, f := range repo.Folders() {
		seen := make(map[string]*models.Record)
		for _, r := range repo.FolderRecords(f.Package) {
			key := strings.ToLower(r.Slug)
			first, ok := seen[key]
			if !ok {
				seen[key] = r
				continue
			}
			out = append(out, diag.New(diag.DuplicateSlug,
				fmt.Sprintf("%s and %s", first.Slug, r.Slug),
				first.Subject(), r.Subject()))
		}
	}
	return out
}

// idGaps reports every missing id range between 1 and the highest id of a
// folder, attached to the record following the gap.
func idGaps(repo *repository.Repository) []diag.Diagnostic {
	var out []diag.Diagnostic
	for _, f := range repo.Folders() {
		prev := 0
		for _, r := range repo.FolderRecords(f.Package) {
			if r.ID == 0 || r.ID == prev {
				continue
			}
			if r.ID > prev+1 {
				out = append(out, diag.New(diag.IDGap, gapText(prev+1, r.ID-1), r.Subject()))
			}
			prev = r.ID
		}
	}
	return out
}

func gapText(from, to int) string {
	if from == to {
		return fmt.Sprintf("id %d is missing", from)
	}
	return fmt.Sprintf("ids %d-%d are missing", from, to)
}

func dangling(r *models.Record) []diag.Diagnostic {
	var out []diag.Diagnostic
	for _, rel := range r.Relations {
		if rel.Dangling {
			out = append(out, diag.New(diag.DanglingRelation, links.Describe(rel), r.Subject()))
		}
	}
	return out
}

func selfRelations(r *models.Record) []diag.Diagnostic {
	var out []diag.Diagnostic
	self := r.Ref()
	for _, rel := range r.Relations {
		if rel.Resolved != nil && rel.Resolved.Package == self.Package && rel.Resolved.Slug == self.Slug {
			out = append(out, diag.New(diag.SelfRelation, links.Describe(rel), r.Subject()))
		}
	}
	return out
}

// inconsistentRelations flags record pairs whose explicit declarations about
// each other do not mirror one another.
func inconsistentRelations(repo *repository.Repository) []diag.Diagnostic {
	var out []diag.Diagnostic
	for _, c := range links.Contradictions(repo.Records()) {
		out = append(out, diag.New(diag.InconsistentRelation,
			fmt.Sprintf("%s declares %s %s, but %s declares %s %s",
				c.From.Ref(), joinKinds(c.Declared), c.To.Ref(),
				c.To.Ref(), joinKinds(c.Replied), c.From.Ref()),
			c.From.Subject(), c.To.Subject()))
	}
	return out
}

func joinKinds(ks []models.RelationKind) string {
	parts := make([]string, len(ks))
	for i, k := range ks {
		parts[i] = string(k)
	}
	return strings.Join(parts, ", ")
}
