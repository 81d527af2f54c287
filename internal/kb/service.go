// Package kb is the entry point of the knowledge-base engine: it scans the
// configured folders, diagnoses them and creates new records.
package kb

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/starford/adrkb/internal/apperr"
	"github.com/starford/adrkb/internal/checks"
	"github.com/starford/adrkb/internal/diag"
	"github.com/starford/adrkb/internal/models"
	"github.com/starford/adrkb/internal/repository"
	"github.com/starford/adrkb/internal/storage"
)

// timeNow is replaced in tests.
var timeNow = time.Now

// Service coordinates scanning, diagnostics and record creation.
type Service struct {
	folders []repository.Folder
	loc     *time.Location
	logger  *slog.Logger
	open    storage.Opener
}

// Option configures a Service.
type Option func(*Service)

// WithLocation sets the time zone used for record dates.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.loc = loc }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithStorage sets how ADR folders are opened for reading and writing.
func WithStorage(open storage.Opener) Option {
	return func(s *Service) { s.open = open }
}

// NewService creates a service over folders, the global folder first.
func NewService(folders []repository.Folder, opts ...Option) *Service {
	s := &Service{
		folders: append([]repository.Folder(nil), folders...),
		loc:     time.UTC,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		open:    storage.OpenFS,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Result is one consistent snapshot: records and the diagnostics computed
// from the same scan.
type Result struct {
	Records     []*models.Record  `json:"records"`
	Diagnostics []diag.Diagnostic `json:"diagnostics"`

	repo *repository.Repository
}

// Repository returns the scanned repository behind the result.
func (r *Result) Repository() *repository.Repository { return r.repo }

// Detail is one record with its content and the findings about it.
type Detail struct {
	Record      *models.Record    `json:"record"`
	Content     string            `json:"content"`
	Diagnostics []diag.Diagnostic `json:"diagnostics"`
}

// Folders returns the configured folders.
func (s *Service) Folders() []repository.Folder {
	return append([]repository.Folder(nil), s.folders...)
}

// Location returns the time zone record dates are read in.
func (s *Service) Location() *time.Location { return s.loc }

// Folder returns the folder owned by pkg.
func (s *Service) Folder(pkg models.PackageRef) (repository.Folder, error) {
	for _, f := range s.folders {
		if f.Package == pkg {
			return f, nil
		}
	}
	return repository.Folder{}, fmt.Errorf("kb: package %q: %w", pkg, apperr.ErrUnknownPackage)
}

func (s *Service) scanOptions(extra ...repository.Option) []repository.Option {
	return append([]repository.Option{
		repository.WithLocation(s.loc),
		repository.WithLogger(s.logger),
		repository.WithStorage(s.open),
	}, extra...)
}

// Scan reads every folder and diagnoses the result.
func (s *Service) Scan(ctx context.Context) (*Result, error) {
	repo, err := repository.Scan(ctx, s.folders, s.scanOptions()...)
	if err != nil {
		return nil, fmt.Errorf("kb: scan: %w", err)
	}
	ds := checks.Run(repo)
	s.logger.Debug("knowledge base scanned", "records", repo.Len(), "diagnostics", len(ds))
	return &Result{Records: repo.Records(), Diagnostics: ds, repo: repo}, nil
}

// Diagnose returns the sorted diagnostics of a fresh scan.
func (s *Service) Diagnose(ctx context.Context) ([]diag.Diagnostic, error) {
	res, err := s.Scan(ctx)
	if err != nil {
		return nil, err
	}
	return res.Diagnostics, nil
}

// List returns the records matching f. Diagnostics are narrowed to those
// about a listed record, plus findings not tied to any record.
func (s *Service) List(ctx context.Context, f Filter) (*Result, error) {
	res, err := s.Scan(ctx)
	if err != nil {
		return nil, err
	}
	if f.Empty() {
		return res, nil
	}

	out := &Result{Records: []*models.Record{}, Diagnostics: []diag.Diagnostic{}, repo: res.repo}
	for _, r := range res.Records {
		if f.Match(r) {
			out.Records = append(out.Records, r)
		}
	}
	for _, d := range res.Diagnostics {
		if len(d.Subjects) == 0 {
			out.Diagnostics = append(out.Diagnostics, d)
			continue
		}
		for _, r := range out.Records {
			if d.About(string(r.Package), r.Slug) {
				out.Diagnostics = append(out.Diagnostics, d)
				break
			}
		}
	}
	return out, nil
}

// Get returns one record with its raw content.
func (s *Service) Get(ctx context.Context, pkg models.PackageRef, slug string) (*Detail, error) {
	if _, err := s.Folder(pkg); err != nil {
		return nil, err
	}
	res, err := s.Scan(ctx)
	if err != nil {
		return nil, err
	}
	rec, ok := res.repo.Lookup(pkg, strings.TrimSuffix(slug, ".md"))
	if !ok {
		return nil, fmt.Errorf("kb: get %s: %w", models.Ref{Package: pkg, Slug: slug}, apperr.ErrNotFound)
	}
	f, _ := res.repo.Folder(pkg)
	fsys, err := s.open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("kb: get: %w", err)
	}
	data, err := fsys.Read(filepath.Base(rec.Path))
	if err != nil {
		return nil, fmt.Errorf("kb: get: %w", err)
	}
	ds := checks.ForRecord(res.Diagnostics, rec)
	if ds == nil {
		ds = []diag.Diagnostic{}
	}
	return &Detail{Record: rec, Content: string(data), Diagnostics: ds}, nil
}

// Substitute replaces placeholders in a record file in place.
func (s *Service) Substitute(_ context.Context, pkg models.PackageRef, slug string, replacements map[string]string) error {
	f, err := s.Folder(pkg)
	if err != nil {
		return err
	}
	fsys, err := s.open(f.Path)
	if err != nil {
		return fmt.Errorf("kb: substitute: %w", err)
	}
	name := slug + ".md"
	data, err := fsys.Read(name)
	if err != nil {
		return fmt.Errorf("kb: substitute: %w", err)
	}
	keys := make([]string, 0, len(replacements))
	for k := range replacements {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, k, replacements[k])
	}
	out := strings.NewReplacer(pairs...).Replace(string(data))
	if out == string(data) {
		return nil
	}
	if err := fsys.Write(name, []byte(out)); err != nil {
		return fmt.Errorf("kb: substitute: %w", err)
	}
	return nil
}
