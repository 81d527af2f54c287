package report

import (
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"
)

type cell struct {
	text  string
	color *color.Color
}

// table aligns columns by display width, so CJK titles and emoji line up.
type table struct {
	header  []string
	rows    [][]cell
	colored bool
}

func (t *table) add(row []cell) { t.rows = append(t.rows, row) }

func (t *table) widths() []int {
	w := make([]int, len(t.header))
	for i, h := range t.header {
		w[i] = runewidth.StringWidth(h)
	}
	for _, row := range t.rows {
		for i, c := range row {
			if n := runewidth.StringWidth(c.text); n > w[i] {
				w[i] = n
			}
		}
	}
	return w
}

func (t *table) write(w io.Writer) error {
	widths := t.widths()
	var b strings.Builder
	last := len(t.header) - 1

	for i, h := range t.header {
		b.WriteString(paint(headerColor, t.colored, h))
		if i < last {
			b.WriteString(strings.Repeat(" ", widths[i]-runewidth.StringWidth(h)+2))
		}
	}
	b.WriteByte('\n')

	for _, row := range t.rows {
		for i, c := range row {
			b.WriteString(paint(c.color, t.colored, c.text))
			if i < last {
				// Pad outside the escape codes so colors do not skew widths.
				b.WriteString(strings.Repeat(" ", widths[i]-runewidth.StringWidth(c.text)+2))
			}
		}
		b.WriteByte('\n')
	}
	_, err := io.WriteString(w, b.String())
	return err
}
