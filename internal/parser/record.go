package parser

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/starford/adrkb/internal/checksum"
	"github.com/starford/adrkb/internal/diag"
	"github.com/starford/adrkb/internal/models"
	"github.com/starford/adrkb/internal/slug"
)

var (
	madrStatusRe = regexp.MustCompile(`(?im)^\s*[-*]\s*status:\s*(.+?)\s*$`)
	madrDateRe   = regexp.MustCompile(`(?im)^\s*[-*]\s*date:\s*(.+?)\s*$`)
)

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParseDate interprets s in loc using the accepted record date layouts.
// Layouts carrying an offset keep it and are converted to loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.In(loc), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

type finding struct {
	code    diag.Code
	details string
}

// ParseRecord builds a record from the file at path. It never fails: any
// problem is recorded in Findings and the record is filled with best-effort
// defaults, so one bad file cannot abort a scan.
func ParseRecord(path string, data []byte, pkg models.PackageRef, loc *time.Location) *models.Record {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	rec := &models.Record{
		Slug:     stem,
		Package:  pkg,
		Path:     path,
		Checksum: checksum.Sum(data),
		Valid:    true,
	}
	var found []finding

	if id, ok := slug.ParseID(stem); ok {
		rec.ID = id
	}
	if !slug.IsCanonical(stem) {
		found = append(found, finding{diag.InvalidFilename, filepath.Base(path)})
	}

	res, err := Parse(data)
	switch {
	case err != nil:
		rec.Valid = false
		found = append(found, finding{diag.ParseFailure, err.Error()})
	case res.Format == FormatNone:
		rec.Valid = false
		found = append(found, finding{diag.ParseFailure, "no front matter"})
	}
	rec.FrontMatter = res.FrontMatter
	rec.RawFrontMatter = res.RawFrontMatter
	rec.RawBody = res.Body
	rec.Tags = res.Tags

	rec.Title = res.Title
	if rec.Title == "" {
		rec.Title = slug.TitleFromSlug(stem)
		found = append(found, finding{diag.MissingTitle, "using " + rec.Title})
	}

	rec.StatusRaw = stringField(res.FrontMatter, "status")
	if rec.StatusRaw == "" {
		if m := madrStatusRe.FindStringSubmatch(res.Body); m != nil {
			rec.StatusRaw = m[1]
		}
	}
	rec.Status = models.DefaultStatus
	if rec.StatusRaw == "" {
		found = append(found, finding{diag.MissingStatus, ""})
	} else if st, err := models.ParseStatus(rec.StatusRaw); err != nil {
		found = append(found, finding{diag.InvalidStatus, rec.StatusRaw})
	} else {
		rec.Status = st
	}

	date, raw, ok := frontMatterDate(res.FrontMatter, loc)
	if !ok && raw == "" {
		if m := madrDateRe.FindStringSubmatch(res.Body); m != nil {
			raw = m[1]
			date, err = ParseDate(raw, loc)
			ok = err == nil
		}
	}
	rec.DateRaw = raw
	switch {
	case ok:
		rec.Date = date
	case raw == "":
		found = append(found, finding{diag.MissingDate, ""})
	default:
		found = append(found, finding{diag.InvalidDate, raw})
	}

	for _, f := range found {
		rec.Findings = append(rec.Findings, diag.New(f.code, f.details, rec.Subject()))
	}
	return rec
}

// frontMatterDate reads the "date" field. YAML and TOML decoders may already
// produce a time value; strings go through ParseDate.
func frontMatterDate(fm map[string]any, loc *time.Location) (time.Time, string, bool) {
	if loc == nil {
		loc = time.UTC
	}
	v, ok := fm["date"]
	if !ok || v == nil {
		return time.Time{}, "", false
	}
	switch t := v.(type) {
	case time.Time:
		return t.In(loc), t.Format(time.RFC3339), true
	case interface{ AsTime(*time.Location) time.Time }:
		d := t.AsTime(loc)
		return d, d.Format("2006-01-02"), true
	}
	raw := stringField(fm, "date")
	if raw == "" {
		return time.Time{}, fmt.Sprint(v), false
	}
	d, err := ParseDate(raw, loc)
	if err != nil {
		return time.Time{}, raw, false
	}
	return d, raw, true
}
