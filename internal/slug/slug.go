// Package slug computes sequence numbers and filesystem-safe slugs for new
// records.
package slug

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"fortio.org/safecast"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/starford/adrkb/internal/apperr"
	"github.com/starford/adrkb/internal/models"
)

// MaxAttempts bounds the collision retries for one creation.
const MaxAttempts = 50

// Untitled replaces a title that normalises to nothing.
const Untitled = "untitled"

var (
	nonAlnumRe  = regexp.MustCompile(`[^a-z0-9]+`)
	canonicalRe = regexp.MustCompile(`^[0-9]+-[a-z0-9]+(?:-[a-z0-9]+)*$`)
	idPrefixRe  = regexp.MustCompile(`^([0-9]+)(?:-|$)`)
)

// Normalize lower-cases, strips diacritics, collapses every run of
// non-alphanumeric characters to one hyphen and trims hyphens.
func Normalize(title string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	s, _, err := transform.String(t, title)
	if err != nil {
		s = title
	}
	s = strings.ToLower(s)
	s = nonAlnumRe.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// Pad renders an id the way it prefixes file names.
func Pad(id int) string {
	return fmt.Sprintf("%04d", id)
}

// Candidate returns the slug tried at the given 0-based attempt. Attempt 0
// is the plain slug; later attempts append -2, -3, ...
func Candidate(id int, title string, attempt int) string {
	base := Normalize(title)
	if base == "" {
		base = Untitled
	}
	s := Pad(id) + "-" + base
	if attempt > 0 {
		s += "-" + strconv.Itoa(attempt+1)
	}
	return s
}

// Assignment is the id and slug reserved for a new record.
type Assignment struct {
	ID   int
	Slug string
}

// NextID returns max(existing ids)+1, or 1 for an empty folder. Gaps left by
// deleted records are never reused.
func NextID(existing []*models.Record) int {
	maxID := 0
	for _, r := range existing {
		if r.ID > maxID {
			maxID = r.ID
		}
	}
	return maxID + 1
}

// Next computes the id and first free slug for title among the records of
// one folder. taken may report extra occupied slugs (files created since the
// scan); it can be nil. Next never mutates existing.
func Next(existing []*models.Record, title string, taken func(string) bool) (Assignment, error) {
	id := NextID(existing)
	used := make(map[string]struct{}, len(existing))
	for _, r := range existing {
		used[r.Slug] = struct{}{}
	}
	for attempt := 0; attempt < MaxAttempts; attempt++ {
		s := Candidate(id, title, attempt)
		if _, ok := used[s]; ok {
			continue
		}
		if taken != nil && taken(s) {
			continue
		}
		return Assignment{ID: id, Slug: s}, nil
	}
	return Assignment{}, fmt.Errorf("slug: %q after %d attempts: %w", Candidate(id, title, 0), MaxAttempts, apperr.ErrSlugExhausted)
}

// ParseID extracts the numeric prefix of a file stem ("0042-foo" → 42).
func ParseID(stem string) (int, bool) {
	m := idPrefixRe.FindStringSubmatch(stem)
	if m == nil {
		return 0, false
	}
	n, err := strconv.ParseUint(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	id, err := safecast.Conv[int](n)
	if err != nil {
		return 0, false
	}
	return id, true
}

// IsCanonical reports whether stem has the <digits>-<normalized words> shape.
func IsCanonical(stem string) bool {
	return canonicalRe.MatchString(stem)
}

// TitleFromSlug derives a readable title from a file stem:
// "0003-use-postgres" → "Use postgres".
func TitleFromSlug(stem string) string {
	s := idPrefixRe.ReplaceAllString(stem, "")
	s = strings.TrimSpace(strings.NewReplacer("-", " ", "_", " ").Replace(s))
	if s == "" {
		return stem
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}
