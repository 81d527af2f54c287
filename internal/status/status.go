// Package status holds the consistency rules of the record lifecycle. There
// is no transition function: a record changes state by editing its file, and
// these rules only judge whether a state agrees with the record's relations.
package status

import (
	"strings"

	"github.com/starford/adrkb/internal/diag"
	"github.com/starford/adrkb/internal/links"
	"github.com/starford/adrkb/internal/models"
)

// Rule is one predicate that must hold for a record in a given state. Check
// returns the violations, if any.
type Rule struct {
	Code  diag.Code
	Check func(r *models.Record) []diag.Diagnostic
}

var (
	requireSuccessor = Rule{diag.SupersededWithoutSuccessor, func(r *models.Record) []diag.Diagnostic {
		for _, rel := range r.RelationsOf(models.SupersededBy) {
			if rel.Resolved != nil {
				return nil
			}
		}
		return []diag.Diagnostic{diag.New(diag.SupersededWithoutSuccessor, "", r.Subject())}
	}}

	rejectAmenders = Rule{diag.AmendsInactiveTarget, func(r *models.Record) []diag.Diagnostic {
		var out []diag.Diagnostic
		for _, rel := range r.RelationsOf(models.AmendedBy) {
			if rel.Resolved == nil {
				continue
			}
			amender := diag.Subject{Package: string(rel.Resolved.Package), Slug: rel.Resolved.Slug, ID: rel.Resolved.ID}
			out = append(out, diag.New(diag.AmendsInactiveTarget,
				rel.Resolved.String()+" amends a "+string(r.Status)+" record", r.Subject(), amender))
		}
		return out
	}}

	requireRelation = Rule{diag.UnlinkedDecision, func(r *models.Record) []diag.Diagnostic {
		if len(r.Relations) > 0 {
			return nil
		}
		return []diag.Diagnostic{diag.New(diag.UnlinkedDecision, string(r.Status)+" without relations", r.Subject())}
	}}

	forbidOutgoing = Rule{diag.StatusRelationMismatch, func(r *models.Record) []diag.Diagnostic {
		var kinds []string
		for _, k := range []models.RelationKind{models.Supersedes, models.Amends} {
			for _, rel := range r.RelationsOf(k) {
				if rel.Explicit() {
					kinds = append(kinds, links.Describe(rel))
				}
			}
		}
		if len(kinds) == 0 {
			return nil
		}
		return []diag.Diagnostic{diag.New(diag.StatusRelationMismatch,
			string(r.Status)+" record declares "+strings.Join(kinds, ", "), r.Subject())}
	}}

	forbidDeclaredSuccessor = Rule{diag.StatusRelationMismatch, func(r *models.Record) []diag.Diagnostic {
		var succ []string
		for _, rel := range r.RelationsOf(models.SupersededBy) {
			if rel.Explicit() {
				succ = append(succ, links.Describe(rel))
			}
		}
		if len(succ) == 0 {
			return nil
		}
		return []diag.Diagnostic{diag.New(diag.StatusRelationMismatch,
			string(r.Status)+" record declares "+strings.Join(succ, ", "), r.Subject())}
	}}
)

// Rules maps every state to the predicates that must hold for it. Only draft
// and proposed records may exist without relations.
var Rules = map[models.Status][]Rule{
	models.StatusDraft:      {forbidOutgoing, forbidDeclaredSuccessor},
	models.StatusProposed:   {forbidDeclaredSuccessor},
	models.StatusAccepted:   {requireRelation, forbidDeclaredSuccessor},
	models.StatusRejected:   {requireRelation, forbidOutgoing, rejectAmenders, forbidDeclaredSuccessor},
	models.StatusDeprecated: {requireRelation, rejectAmenders, forbidDeclaredSuccessor},
	models.StatusSuperseded: {requireSuccessor},
}

// Check evaluates the rules for r's state. A record whose declared status
// could not be read is not judged on the default it fell back to.
func Check(r *models.Record) []diag.Diagnostic {
	if diag.Count(r.Findings, diag.InvalidStatus) > 0 {
		return nil
	}
	var out []diag.Diagnostic
	for _, rule := range Rules[r.Status] {
		out = append(out, rule.Check(r)...)
	}
	return out
}
