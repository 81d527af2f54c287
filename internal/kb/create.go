package kb

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/starford/adrkb/internal/apperr"
	"github.com/starford/adrkb/internal/models"
	"github.com/starford/adrkb/internal/parser"
	"github.com/starford/adrkb/internal/repository"
	"github.com/starford/adrkb/internal/slug"
)

//go:embed assets/*.md
var assets embed.FS

// TemplateFile is the per-folder template consulted by Create.
const TemplateFile = "template.md"

// CreateInput describes a new record.
type CreateInput struct {
	Package models.PackageRef `json:"package,omitempty"`
	Title   string            `json:"title"`
	// Status defaults to draft.
	Status models.Status `json:"status,omitempty"`
	// Template overrides the template files when set.
	Template string `json:"template,omitempty"`
	// Date defaults to the current day.
	Date time.Time `json:"date,omitzero"`
}

// Validate implements validation.Validatable.
func (in CreateInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Title, validation.Required, validation.Length(1, 200)),
		validation.Field(&in.Status, validation.By(func(v any) error {
			st, _ := v.(models.Status)
			if st == "" {
				return nil
			}
			_, err := models.ParseStatus(string(st))
			return err
		})),
	)
}

// Created reports the identity and location of a new record.
type Created struct {
	Package models.PackageRef `json:"package,omitempty"`
	ID      int               `json:"id"`
	Slug    string            `json:"slug"`
	Path    string            `json:"path"`
}

// Create numbers and writes a new record. The folder is scanned, the next id
// and a free slug are computed, and the file is created exclusively; if a
// concurrent writer takes the slug first, the next candidate is tried.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Created, error) {
	in.Title = strings.TrimSpace(in.Title)
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("kb: create: %w", err)
	}
	if in.Status == "" {
		in.Status = models.DefaultStatus
	}
	if in.Date.IsZero() {
		in.Date = timeNow()
	}

	folder, err := s.Folder(in.Package)
	if err != nil {
		return nil, err
	}
	repo, err := repository.Scan(ctx, []repository.Folder{folder}, s.scanOptions()...)
	if err != nil {
		return nil, fmt.Errorf("kb: create: %w", err)
	}
	fsys, err := s.open(folder.Path)
	if err != nil {
		return nil, fmt.Errorf("kb: create: %w", err)
	}

	tmpl, err := s.template(in)
	if err != nil {
		return nil, err
	}

	existing := repo.Records()
	claimed := make(map[string]struct{})
	taken := func(candidate string) bool {
		if _, ok := claimed[candidate]; ok {
			return true
		}
		ok, err := fsys.Exists(candidate + ".md")
		return err != nil || ok
	}

	for attempt := 0; attempt < slug.MaxAttempts; attempt++ {
		a, err := slug.Next(existing, in.Title, taken)
		if err != nil {
			return nil, fmt.Errorf("kb: create: %w", err)
		}
		body, err := render(tmpl, in.Title, in.Date.In(s.loc), in.Status)
		if err != nil {
			return nil, fmt.Errorf("kb: create: %w", err)
		}
		err = fsys.Create(a.Slug+".md", body)
		if errors.Is(err, apperr.ErrAlreadyExists) {
			s.logger.Debug("slug taken concurrently, retrying", "slug", a.Slug)
			claimed[a.Slug] = struct{}{}
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("kb: create: %w", err)
		}
		s.logger.Info("record created", "package", in.Package.String(), "slug", a.Slug)
		return &Created{
			Package: in.Package,
			ID:      a.ID,
			Slug:    a.Slug,
			Path:    filepath.Join(folder.Path, a.Slug+".md"),
		}, nil
	}
	return nil, fmt.Errorf("kb: create %q: %w", in.Title, apperr.ErrSlugExhausted)
}

// template picks the template text: explicit input, the package folder's
// template.md, the global template.md, then the built-in one.
func (s *Service) template(in CreateInput) ([]byte, error) {
	if in.Template != "" {
		return []byte(in.Template), nil
	}
	candidates := []models.PackageRef{in.Package}
	if !in.Package.IsGlobal() {
		candidates = append(candidates, models.Global)
	}
	for _, pkg := range candidates {
		f, err := s.Folder(pkg)
		if err != nil {
			continue
		}
		fsys, err := s.open(f.Path)
		if err != nil {
			continue
		}
		data, err := fsys.Read(TemplateFile)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, apperr.ErrNotFound) {
			return nil, fmt.Errorf("kb: template: %w", err)
		}
	}
	return BuiltinTemplate(), nil
}

// BuiltinTemplate returns the MADR template shipped with the binary.
func BuiltinTemplate() []byte {
	data, _ := assets.ReadFile("assets/" + TemplateFile)
	return data
}

// render sets title, date and status in the template front matter, keeping
// every other field, and rewrites the first H1 of the body.
func render(tmpl []byte, title string, date time.Time, st models.Status) ([]byte, error) {
	res, err := parser.Parse(tmpl)
	if err != nil {
		return nil, fmt.Errorf("template: %w", err)
	}
	day := date.Format("2006-01-02")

	var fm string
	delim := "---"
	switch res.Format {
	case parser.FormatTOML:
		delim = "+++"
		m := res.FrontMatter
		m["title"] = title
		m["date"] = toml.LocalDate{Year: date.Year(), Month: int(date.Month()), Day: date.Day()}
		m["status"] = string(st)
		out, err := toml.Marshal(m)
		if err != nil {
			return nil, fmt.Errorf("template: encode toml: %w", err)
		}
		fm = string(out)
	default:
		out, err := setYAMLFields(res.RawFrontMatter, [][2]string{
			{"title", title},
			{"date", day},
			{"status", string(st)},
		})
		if err != nil {
			return nil, fmt.Errorf("template: %w", err)
		}
		fm = out
	}

	var b strings.Builder
	b.WriteString(delim + "\n")
	b.WriteString(fm)
	if !strings.HasSuffix(fm, "\n") {
		b.WriteByte('\n')
	}
	b.WriteString(delim + "\n")
	b.WriteString(retitle(res.Body, title))
	return []byte(b.String()), nil
}

// setYAMLFields edits a YAML mapping through the node API so that key order,
// comments and unknown fields survive.
func setYAMLFields(raw string, fields [][2]string) (string, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(raw), &doc); err != nil {
		return "", fmt.Errorf("decode yaml: %w", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		doc = yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}}}
	}
	m := doc.Content[0]
	if m.Kind != yaml.MappingNode {
		return "", fmt.Errorf("front matter is not a mapping")
	}
	for i, f := range fields {
		tag := ""
		if i == 0 {
			tag = "!!str"
		}
		val := &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: f[1]}
		set := false
		for j := 0; j+1 < len(m.Content); j += 2 {
			if m.Content[j].Value == f[0] {
				val.HeadComment = m.Content[j+1].HeadComment
				val.LineComment = m.Content[j+1].LineComment
				m.Content[j+1] = val
				set = true
				break
			}
		}
		if !set {
			m.Content = append(m.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: f[0]}, val)
		}
	}
	out, err := yaml.Marshal(&doc)
	if err != nil {
		return "", fmt.Errorf("encode yaml: %w", err)
	}
	return string(out), nil
}

// retitle replaces the first H1 of body with title, or prepends one.
func retitle(body, title string) string {
	lines := strings.Split(body, "\n")
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "# ") {
			lines[i] = "# " + title
			return strings.Join(lines, "\n")
		}
	}
	return "# " + title + "\n\n" + body
}
