package kb

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/starford/adrkb/internal/apperr"
	"github.com/starford/adrkb/internal/models"
	"github.com/starford/adrkb/internal/repository"
)

// Placeholders replaced in seeded records and assets.
const (
	PlaceholderDateYesterday = "{DATE_YESTERDAY}"
	PlaceholderADRSlug       = "{ADRKB_ADR_SLUG}"
	PlaceholderProjectName   = "{PROJECT_NAME}"
)

// Seeded lists what Init wrote.
type Seeded struct {
	Assets  []string  `json:"assets"`
	Records []Created `json:"records"`
}

// Init prepares a new knowledge base: missing folders are created, the
// template, index and README are copied into the global folder when absent,
// and the introductory records are written. The MADR record is only added
// when the knowledge base had no records before. Running it again on an
// initialized knowledge base writes nothing.
func (s *Service) Init(ctx context.Context, projectName string) (*Seeded, error) {
	repo, err := repository.Scan(ctx, s.folders, s.scanOptions(repository.WithCreateMissing())...)
	if err != nil {
		return nil, fmt.Errorf("kb: init: %w", err)
	}
	wasEmpty := repo.Empty()

	global, err := s.Folder(models.Global)
	if err != nil {
		return nil, err
	}
	fsys, err := s.open(global.Path)
	if err != nil {
		return nil, fmt.Errorf("kb: init: %w", err)
	}

	out := &Seeded{Assets: []string{}, Records: []Created{}}
	for _, name := range []string{TemplateFile, "index.md", "README.md"} {
		data, err := assets.ReadFile("assets/" + name)
		if err != nil {
			return nil, fmt.Errorf("kb: init: %w", err)
		}
		text := strings.ReplaceAll(string(data), PlaceholderProjectName, projectName)
		err = fsys.Create(name, []byte(text))
		switch {
		case errors.Is(err, apperr.ErrAlreadyExists):
			continue
		case err != nil:
			return nil, fmt.Errorf("kb: init: %w", err)
		}
		out.Assets = append(out.Assets, name)
	}

	if seededBefore(repo, adrkbStem) {
		s.logger.Info("knowledge base already initialized", "assets", len(out.Assets))
		return out, nil
	}
	first, err := s.seed(ctx, "Use adrkb to manage the ADRs", adrkbStem+".md", nil)
	if err != nil {
		return nil, err
	}
	out.Records = append(out.Records, *first)

	if wasEmpty {
		second, err := s.seed(ctx, "Use Markdown Architectural Decision Records",
			"use-markdown-architectural-decision-records.md",
			map[string]string{PlaceholderADRSlug: first.Slug})
		if err != nil {
			return nil, err
		}
		out.Records = append(out.Records, *second)
	}
	s.logger.Info("knowledge base initialized", "assets", len(out.Assets), "records", len(out.Records))
	return out, nil
}

const adrkbStem = "use-adrkb-to-manage-the-adrs"

// seededBefore reports whether the global folder already holds a record whose
// slug, without its id prefix, is stem.
func seededBefore(repo *repository.Repository, stem string) bool {
	for _, r := range repo.FolderRecords(models.Global) {
		if _, rest, ok := strings.Cut(r.Slug, "-"); ok && strings.HasPrefix(rest, stem) {
			return true
		}
	}
	return false
}

// seed creates a record from an embedded source and fills its placeholders.
// Yesterday's date keeps seeded records below anything written today.
func (s *Service) seed(ctx context.Context, title, source string, replacements map[string]string) (*Created, error) {
	tmpl, err := assets.ReadFile("assets/" + source)
	if err != nil {
		return nil, fmt.Errorf("kb: seed: %w", err)
	}
	yesterday := timeNow().In(s.loc).AddDate(0, 0, -1)

	created, err := s.Create(ctx, CreateInput{
		Title:    title,
		Status:   models.StatusAccepted,
		Template: string(tmpl),
		Date:     yesterday,
	})
	if err != nil {
		return nil, err
	}

	all := map[string]string{PlaceholderDateYesterday: yesterday.Format("2006-01-02")}
	for k, v := range replacements {
		all[k] = v
	}
	if err := s.Substitute(ctx, models.Global, created.Slug, all); err != nil {
		return nil, err
	}
	return created, nil
}
