package kb

import (
	"fmt"
	"slices"
	"strings"

	"github.com/starford/adrkb/internal/models"
)

// Filter selects records for List. Zero fields match everything.
type Filter struct {
	Statuses []models.Status
	// Packages restricts to the given folders; models.Global selects the
	// global folder.
	Packages []models.PackageRef
	Tag      string
}

// Empty reports whether the filter matches every record.
func (f Filter) Empty() bool {
	return len(f.Statuses) == 0 && f.Packages == nil && f.Tag == ""
}

// Match reports whether r passes the filter.
func (f Filter) Match(r *models.Record) bool {
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, r.Status) {
		return false
	}
	if f.Packages != nil && !slices.Contains(f.Packages, r.Package) {
		return false
	}
	if f.Tag != "" && !slices.Contains(r.Tags, f.Tag) {
		return false
	}
	return true
}

// ParseStatuses reads a comma separated status list such as
// "accepted,proposed".
func ParseStatuses(s string) ([]models.Status, error) {
	var out []models.Status
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		st, err := models.ParseStatus(part)
		if err != nil {
			return nil, fmt.Errorf("kb: statuses: %w", err)
		}
		if !slices.Contains(out, st) {
			out = append(out, st)
		}
	}
	return out, nil
}
