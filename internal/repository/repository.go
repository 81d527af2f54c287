// Package repository aggregates the ADR folders of a knowledge base into one
// cross-referenced, immutable collection of records.
package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/adrkb/internal/apperr"
	"github.com/starford/adrkb/internal/links"
	"github.com/starford/adrkb/internal/models"
	"github.com/starford/adrkb/internal/parser"
	"github.com/starford/adrkb/internal/storage"
)

// Folder describes one ADR folder: an absolute path and its owning package.
type Folder struct {
	Path    string            `json:"path"`
	Package models.PackageRef `json:"package,omitempty"`
}

// reserved files live next to records but are not records.
var reserved = map[string]struct{}{
	"template.md": {},
	"index.md":    {},
	"readme.md":   {},
}

// IsReserved reports whether name is a knowledge-base asset, not a record.
func IsReserved(name string) bool {
	_, ok := reserved[strings.ToLower(name)]
	return ok
}

type scanOptions struct {
	createMissing bool
	loc           *time.Location
	logger        *slog.Logger
	concurrency   int
	open          storage.Opener
}

// Option configures Scan.
type Option func(*scanOptions)

// WithCreateMissing creates missing folders instead of failing. Only the
// knowledge-base creation path uses it.
func WithCreateMissing() Option {
	return func(o *scanOptions) { o.createMissing = true }
}

// WithLocation sets the time zone record dates are interpreted in.
func WithLocation(loc *time.Location) Option {
	return func(o *scanOptions) { o.loc = loc }
}

// WithLogger sets the logger used for scan progress.
func WithLogger(l *slog.Logger) Option {
	return func(o *scanOptions) { o.logger = l }
}

// WithConcurrency bounds the number of files parsed at once.
func WithConcurrency(n int) Option {
	return func(o *scanOptions) { o.concurrency = n }
}

// WithStorage sets how folders are opened. The default is storage.OpenFS.
func WithStorage(open storage.Opener) Option {
	return func(o *scanOptions) { o.open = open }
}

// Repository is the result of one scan. It is never mutated after Scan
// returns and is not shared between scans.
type Repository struct {
	folders []Folder
	records []*models.Record
	rank    map[models.PackageRef]int
	bySlug  map[models.PackageRef]map[string]*models.Record
	byID    map[models.PackageRef]map[int][]*models.Record
}

type job struct {
	folder int
	fs     storage.Provider
	file   models.FileMeta
}

// Scan discovers the markdown files directly inside each folder, parses them
// concurrently, waits for every parse to finish, orders the records (folders
// in the given order, then ascending id) and resolves their relations.
func Scan(ctx context.Context, folders []Folder, opts ...Option) (*Repository, error) {
	o := scanOptions{
		loc:         time.UTC,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		concurrency: runtime.GOMAXPROCS(0),
		open:        storage.OpenFS,
	}
	for _, opt := range opts {
		opt(&o)
	}
	start := time.Now()

	rank := make(map[models.PackageRef]int, len(folders))
	var jobs []job
	for i, f := range folders {
		if _, dup := rank[f.Package]; dup {
			return nil, fmt.Errorf("repository: scan: package %q configured twice", f.Package)
		}
		rank[f.Package] = i

		if o.createMissing {
			if err := os.MkdirAll(f.Path, 0o755); err != nil {
				return nil, fmt.Errorf("repository: create folder: %w", err)
			}
		}
		fsys, err := o.open(f.Path)
		if err != nil {
			return nil, fmt.Errorf("repository: scan %s folder: %w", f.Package, err)
		}
		files, err := fsys.List("")
		if err != nil {
			return nil, fmt.Errorf("repository: scan %s folder: %w", f.Package, err)
		}
		for _, file := range files {
			if IsReserved(file.Name) {
				continue
			}
			jobs = append(jobs, job{folder: i, fs: fsys, file: file})
		}
	}

	// Each goroutine owns one slot, so the slice needs no lock.
	results := make([]*models.Record, len(jobs))
	if len(jobs) > 0 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(max(1, min(o.concurrency, len(jobs))))
		for i, j := range jobs {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				data, err := j.fs.Read(j.file.Path)
				if err != nil {
					if errors.Is(err, apperr.ErrNotFound) {
						o.logger.Debug("file vanished during scan", "path", j.file.Path)
						return nil
					}
					return fmt.Errorf("repository: %w", err)
				}
				abs := filepath.Join(j.fs.Root(), filepath.FromSlash(j.file.Path))
				results[i] = parser.ParseRecord(abs, data, folders[j.folder].Package, o.loc)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	records := make([]*models.Record, 0, len(results))
	for _, r := range results {
		if r != nil {
			records = append(records, r)
		}
	}
	sortRecords(records, rank)
	links.Resolve(records)

	repo := &Repository{
		folders: append([]Folder(nil), folders...),
		records: records,
		rank:    rank,
		bySlug:  make(map[models.PackageRef]map[string]*models.Record, len(folders)),
		byID:    make(map[models.PackageRef]map[int][]*models.Record, len(folders)),
	}
	for _, f := range folders {
		repo.bySlug[f.Package] = make(map[string]*models.Record)
		repo.byID[f.Package] = make(map[int][]*models.Record)
	}
	for _, r := range records {
		if _, ok := repo.bySlug[r.Package][r.Slug]; !ok {
			repo.bySlug[r.Package][r.Slug] = r
		}
		if r.ID > 0 {
			repo.byID[r.Package][r.ID] = append(repo.byID[r.Package][r.ID], r)
		}
	}

	o.logger.Debug("scan complete",
		"folders", len(folders),
		"records", len(records),
		"duration", time.Since(start),
	)
	return repo, nil
}

// sortRecords orders by folder rank, then id (records without an id last),
// then slug.
func sortRecords(records []*models.Record, rank map[models.PackageRef]int) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if ra, rb := rank[a.Package], rank[b.Package]; ra != rb {
			return ra < rb
		}
		if a.ID != b.ID {
			if a.ID == 0 || b.ID == 0 {
				return b.ID == 0
			}
			return a.ID < b.ID
		}
		return a.Slug < b.Slug
	})
}

// Records returns all records in folder order, then ascending id.
func (r *Repository) Records() []*models.Record {
	return append([]*models.Record{}, r.records...)
}

// Folders returns the scanned folders in configured order.
func (r *Repository) Folders() []Folder {
	return append([]Folder(nil), r.folders...)
}

// Folder returns the folder owned by pkg.
func (r *Repository) Folder(pkg models.PackageRef) (Folder, bool) {
	i, ok := r.rank[pkg]
	if !ok {
		return Folder{}, false
	}
	return r.folders[i], true
}

// FolderRank returns the configured position of pkg's folder. Unknown
// packages sort after every known one.
func (r *Repository) FolderRank(pkg string) int {
	if i, ok := r.rank[models.PackageRef(pkg)]; ok {
		return i
	}
	return len(r.folders)
}

// Lookup returns the record with the given slug in pkg's folder.
func (r *Repository) Lookup(pkg models.PackageRef, slug string) (*models.Record, bool) {
	rec, ok := r.bySlug[pkg][slug]
	return rec, ok
}

// ByID returns the records of pkg's folder carrying id. More than one means
// the folder has duplicates.
func (r *Repository) ByID(pkg models.PackageRef, id int) []*models.Record {
	return append([]*models.Record(nil), r.byID[pkg][id]...)
}

// FolderRecords returns the records of one folder in ascending id order.
func (r *Repository) FolderRecords(pkg models.PackageRef) []*models.Record {
	var out []*models.Record
	for _, rec := range r.records {
		if rec.Package == pkg {
			out = append(out, rec)
		}
	}
	return out
}

// Len returns the number of records.
func (r *Repository) Len() int { return len(r.records) }

// Empty reports whether the knowledge base holds no records at all.
func (r *Repository) Empty() bool { return len(r.records) == 0 }
