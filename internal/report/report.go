// Package report renders records and diagnostics for terminals and scripts.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"github.com/starford/adrkb/internal/diag"
	"github.com/starford/adrkb/internal/models"
)

// Format selects the output shape.
type Format string

const (
	FormatTable Format = "table"
	FormatRaw   Format = "raw"
	FormatJSON  Format = "json"
)

// ParseFormat accepts table, raw and json (case-insensitive).
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatTable, FormatRaw, FormatJSON:
		return f, nil
	}
	return "", fmt.Errorf("report: unknown format %q: must be one of: table, raw, json", s)
}

// Options tune table output.
type Options struct {
	// Color enables ANSI colors.
	Color bool
	// TitleWidth truncates titles; 0 keeps them whole.
	TitleWidth int
	// Now anchors relative dates; zero means time.Now.
	Now time.Time
}

func (o Options) now() time.Time {
	if o.Now.IsZero() {
		return time.Now()
	}
	return o.Now
}

var (
	statusColors = map[models.Status]*color.Color{
		models.StatusDraft:      color.New(color.FgWhite),
		models.StatusProposed:   color.New(color.FgCyan),
		models.StatusAccepted:   color.New(color.FgGreen, color.Bold),
		models.StatusRejected:   color.New(color.FgRed),
		models.StatusDeprecated: color.New(color.FgYellow),
		models.StatusSuperseded: color.New(color.FgMagenta),
	}
	severityColors = map[diag.Severity]*color.Color{
		diag.SevError:   color.New(color.FgRed, color.Bold),
		diag.SevWarning: color.New(color.FgYellow, color.Bold),
		diag.SevInfo:    color.New(color.FgBlue),
	}
	headerColor = color.New(color.Bold, color.Underline)
)

// paint applies c when enabled. color.NoColor is global, so the per-call
// switch toggles the color value instead.
func paint(c *color.Color, enabled bool, s string) string {
	if c == nil || !enabled {
		return s
	}
	cc := *c
	cc.EnableColor()
	return cc.Sprint(s)
}

// Records writes the records in the requested format.
func Records(w io.Writer, records []*models.Record, f Format, opts Options) error {
	switch f {
	case FormatJSON:
		if records == nil {
			records = []*models.Record{}
		}
		return writeJSON(w, records)
	case FormatRaw:
		for _, r := range records {
			if _, err := fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Ref(), r.Status, dateOnly(r.Date), r.Title); err != nil {
				return err
			}
		}
		return nil
	}

	if len(records) == 0 {
		_, err := fmt.Fprintln(w, "No ADRs found.")
		return err
	}
	t := &table{header: []string{"ID", "PACKAGE", "SLUG", "STATUS", "DATE", "TITLE"}, colored: opts.Color}
	now := opts.now()
	for _, r := range records {
		date := ""
		if !r.Date.IsZero() {
			date = dateOnly(r.Date) + " (" + humanize.RelTime(r.Date, now, "ago", "from now") + ")"
		}
		t.add([]cell{
			{text: fmt.Sprintf("%04d", r.ID)},
			{text: r.Package.String()},
			{text: r.Slug},
			{text: string(r.Status), color: statusColors[r.Status]},
			{text: date},
			{text: truncate(r.Title, opts.TitleWidth)},
		})
	}
	return t.write(w)
}

// Diagnostics writes the diagnostics in the requested format, followed by a
// summary line for table output.
func Diagnostics(w io.Writer, ds []diag.Diagnostic, f Format, opts Options) error {
	switch f {
	case FormatJSON:
		return writeJSON(w, diag.ToDTOs(ds))
	case FormatRaw:
		for _, d := range ds {
			if _, err := fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", d.Severity, d.Code.Tag(), subjects(d), d.Message()); err != nil {
				return err
			}
		}
		return nil
	}

	if len(ds) == 0 {
		_, err := fmt.Fprintln(w, paint(statusColors[models.StatusAccepted], opts.Color, "No problems found."))
		return err
	}
	t := &table{header: []string{"SEVERITY", "CODE", "RECORD", "MESSAGE"}, colored: opts.Color}
	for _, d := range ds {
		t.add([]cell{
			{text: d.Severity.String(), color: severityColors[d.Severity]},
			{text: d.Code.Tag()},
			{text: subjects(d)},
			{text: d.Message()},
		})
	}
	if err := t.write(w); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w); err != nil {
		return err
	}
	return Summary(w, ds, opts)
}

// Summary writes the per-severity counts of ds on one line, e.g.
// "1 error(s), 0 warning(s), 2 info".
func Summary(w io.Writer, ds []diag.Diagnostic, opts Options) error {
	counts := map[diag.Severity]int{}
	for _, d := range ds {
		counts[d.Severity]++
	}
	_, err := fmt.Fprintf(w, "%s, %s, %s\n",
		paint(severityColors[diag.SevError], opts.Color && counts[diag.SevError] > 0, humanize.Comma(int64(counts[diag.SevError]))+" error(s)"),
		paint(severityColors[diag.SevWarning], opts.Color && counts[diag.SevWarning] > 0, humanize.Comma(int64(counts[diag.SevWarning]))+" warning(s)"),
		humanize.Comma(int64(counts[diag.SevInfo]))+" info")
	return err
}

func subjects(d diag.Diagnostic) string {
	if len(d.Subjects) == 0 {
		return "-"
	}
	parts := make([]string, len(d.Subjects))
	for i, s := range d.Subjects {
		parts[i] = s.String()
	}
	return strings.Join(parts, ", ")
}

func dateOnly(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.DateOnly)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncate(value string, width int) string {
	if width <= 0 {
		return value
	}
	if runewidth.StringWidth(value) <= width {
		return value
	}
	if width <= 3 {
		return runewidth.Truncate(value, width, "")
	}
	// The tail counts toward width.
	return runewidth.Truncate(value, width, "...")
}
