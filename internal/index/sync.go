package index

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/starford/adrkb/internal/models"
	"github.com/starford/adrkb/internal/repository"
)

// Changes lists the refs touched by one Sync.
type Changes struct {
	Created []string
	Updated []string
	Deleted []string
}

// Empty reports whether the sync changed no record rows.
func (c Changes) Empty() bool {
	return len(c.Created) == 0 && len(c.Updated) == 0 && len(c.Deleted) == 0
}

// EventCallback is called for every record row a refresh changed.
// kind is one of "created", "updated", "deleted"; ref is the record ref.
type EventCallback func(kind string, ref string)

// RescanFunc produces a fresh repository for the indexed folders.
type RescanFunc func(ctx context.Context) (*repository.Repository, error)

// Syncer runs rescan and Sync as one step under a lock. Two overlapping
// passes would both diff against the same rows and report a change twice.
type Syncer struct {
	mu     sync.Mutex
	db     *DB
	rescan RescanFunc
	logger *slog.Logger
	cb     EventCallback
}

// NewSyncer returns a Syncer over db. cb may be nil.
func NewSyncer(db *DB, rescan RescanFunc, logger *slog.Logger, cb EventCallback) *Syncer {
	return &Syncer{db: db, rescan: rescan, logger: logger, cb: cb}
}

// Refresh rescans, syncs the index and reports the changed rows to the
// callback. Concurrent calls run one after the other.
func (s *Syncer) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	repo, err := s.rescan(ctx)
	if err != nil {
		return fmt.Errorf("index: rescan: %w", err)
	}
	ch, err := Sync(s.db, repo, s.logger)
	if err != nil {
		return fmt.Errorf("index: sync: %w", err)
	}
	if s.cb == nil {
		return nil
	}
	for _, ref := range ch.Created {
		s.cb("created", ref)
	}
	for _, ref := range ch.Updated {
		s.cb("updated", ref)
	}
	for _, ref := range ch.Deleted {
		s.cb("deleted", ref)
	}
	return nil
}

// Sync brings the index up to date with a fresh scan:
//   - new/changed records are upserted
//   - relations are rewritten for every record, since inferred edges
//     depend on other files
//   - records no longer present are deleted from the index
func Sync(db *DB, repo *repository.Repository, logger *slog.Logger) (Changes, error) {
	var ch Changes
	checksums, err := db.AllChecksums()
	if err != nil {
		return ch, err
	}

	seen := make(map[string]struct{}, repo.Len())
	for _, rec := range repo.Records() {
		ref := rec.Ref().String()
		seen[ref] = struct{}{}

		old, indexed := checksums[ref]
		if !indexed || old != rec.Checksum {
			if err := db.UpsertRecord(rowOf(rec), rec.RawBody); err != nil {
				logger.Warn("sync: index failed", slog.String("ref", ref), slog.String("error", err.Error()))
				continue
			}
			if indexed {
				ch.Updated = append(ch.Updated, ref)
			} else {
				ch.Created = append(ch.Created, ref)
			}
			logger.Debug("sync: indexed", slog.String("ref", ref))
		}
		if err := db.ReplaceRelations(ref, relationsOf(ref, rec)); err != nil {
			logger.Warn("sync: relations failed", slog.String("ref", ref), slog.String("error", err.Error()))
		}
	}

	// Remove stale entries.
	for ref := range checksums {
		if _, ok := seen[ref]; ok {
			continue
		}
		if err := db.DeleteRecord(ref); err != nil {
			logger.Warn("sync: delete failed", slog.String("ref", ref), slog.String("error", err.Error()))
			continue
		}
		ch.Deleted = append(ch.Deleted, ref)
		logger.Debug("sync: removed stale", slog.String("ref", ref))
	}
	return ch, nil
}

func rowOf(rec *models.Record) RecordRow {
	row := RecordRow{
		Ref:      rec.Ref().String(),
		Package:  string(rec.Package),
		Slug:     rec.Slug,
		ID:       rec.ID,
		Title:    rec.Title,
		Status:   string(rec.Status),
		Checksum: rec.Checksum,
		Tags:     rec.Tags,
		Path:     rec.Path,
	}
	if !rec.Date.IsZero() {
		row.Date = rec.Date.Format("2006-01-02")
	}
	return row
}

// relationsOf keeps resolved relations only; dangling targets have no row
// to point at and are reported by diagnostics instead.
func relationsOf(source string, rec *models.Record) []RelationRow {
	var out []RelationRow
	for _, rel := range rec.Relations {
		if rel.Resolved == nil {
			continue
		}
		out = append(out, RelationRow{
			Source: source,
			Target: rel.Resolved.String(),
			Kind:   string(rel.Kind),
			Origin: string(rel.Origin),
		})
	}
	return out
}
