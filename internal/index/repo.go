package index

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"fortio.org/safecast"
)

// RecordRow represents a row in the records table.
type RecordRow struct {
	Ref       string
	Package   string
	Slug      string
	ID        int
	Title     string
	Status    string
	Date      string
	Checksum  string
	Tags      []string
	Path      string
	UpdatedAt time.Time
}

// RelationRow represents a row in the relations table.
type RelationRow struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Kind   string `json:"kind"`
	Origin string `json:"origin"`
}

// SearchResult represents one search hit.
type SearchResult struct {
	Ref     string `json:"ref"`
	Package string `json:"package,omitempty"`
	Slug    string `json:"slug"`
	Title   string `json:"title"`
	Status  string `json:"status"`
	Snippet string `json:"snippet"`
}

// GraphNode is one record in the relation graph.
type GraphNode struct {
	Ref     string `json:"id"`
	Package string `json:"package,omitempty"`
	Title   string `json:"title"`
	Status  string `json:"status"`
	Seq     int    `json:"seq"`
}

// GraphLink is one resolved relation in the graph.
type GraphLink struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Kind   string `json:"kind"`
}

// UpsertRecord inserts or replaces a record and its FTS entry within a transaction.
func (db *DB) UpsertRecord(r RecordRow, body string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if r.Tags == nil {
		r.Tags = []string{}
	}
	tagsJSON, _ := json.Marshal(r.Tags)
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = time.Now().UTC()
	}

	_, err = tx.Exec(`
		INSERT INTO records (ref, package, slug, seq, title, status, date, checksum, tags, path, body, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(ref) DO UPDATE SET
			package    = excluded.package,
			slug       = excluded.slug,
			seq        = excluded.seq,
			title      = excluded.title,
			status     = excluded.status,
			date       = excluded.date,
			checksum   = excluded.checksum,
			tags       = excluded.tags,
			path       = excluded.path,
			body       = excluded.body,
			updated_at = excluded.updated_at
	`, r.Ref, r.Package, r.Slug, r.ID, r.Title, r.Status, r.Date, r.Checksum, string(tagsJSON), r.Path, body, r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert record: %w", err)
	}

	// FTS upsert (no-op when FTS5 tag is absent).
	if err := ftsUpsert(tx, r.Ref, r.Title, body, r.Tags); err != nil {
		return err
	}
	return tx.Commit()
}

// ReplaceRelations swaps the outgoing relations of source for rels.
func (db *DB) ReplaceRelations(source string, rels []RelationRow) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(`DELETE FROM relations WHERE source = ?`, source); err != nil {
		return fmt.Errorf("index: clear relations: %w", err)
	}
	if len(rels) > 0 {
		stmt, err := tx.Prepare(`INSERT OR IGNORE INTO relations (source, target, kind, origin) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare relation insert: %w", err)
		}
		defer stmt.Close()
		for _, rel := range rels {
			if _, err := stmt.Exec(source, rel.Target, rel.Kind, rel.Origin); err != nil {
				return fmt.Errorf("index: insert relation: %w", err)
			}
		}
	}
	return tx.Commit()
}

// DeleteRecord removes a record, its FTS entry, and outgoing relations.
func (db *DB) DeleteRecord(ref string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, ref)
	_, _ = tx.Exec(`DELETE FROM relations WHERE source = ?`, ref)
	_, _ = tx.Exec(`DELETE FROM records WHERE ref = ?`, ref)

	return tx.Commit()
}

// GetChecksum returns the stored checksum for a record, or empty string if not found.
func (db *DB) GetChecksum(ref string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM records WHERE ref = ?`, ref).Scan(&cs)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: get checksum: %w", err)
	}
	return cs, nil
}

// AllChecksums returns ref -> checksum for every indexed record.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT ref, checksum FROM records`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var ref, cs string
		if err := rows.Scan(&ref, &cs); err != nil {
			return nil, err
		}
		out[ref] = cs
	}
	return out, rows.Err()
}

// Referrers returns every relation pointing at ref.
func (db *DB) Referrers(ref string) ([]RelationRow, error) {
	rows, err := db.conn.Query(`SELECT source, target, kind, origin FROM relations WHERE target = ? ORDER BY source, kind`, ref)
	if err != nil {
		return nil, fmt.Errorf("index: referrers: %w", err)
	}
	defer rows.Close()

	var out []RelationRow
	for rows.Next() {
		var r RelationRow
		if err := rows.Scan(&r.Source, &r.Target, &r.Kind, &r.Origin); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Graph returns every record as a node and every relation between indexed
// records as a link. Inferred inverses are omitted so each edge appears once.
func (db *DB) Graph() ([]GraphNode, []GraphLink, error) {
	rows, err := db.conn.Query(`SELECT ref, package, title, status, seq FROM records ORDER BY package, seq, slug`)
	if err != nil {
		return nil, nil, fmt.Errorf("index: graph nodes: %w", err)
	}
	nodes := []GraphNode{}
	for rows.Next() {
		var n GraphNode
		var seq int64
		if err := rows.Scan(&n.Ref, &n.Package, &n.Title, &n.Status, &seq); err != nil {
			rows.Close()
			return nil, nil, err
		}
		if n.Seq, err = safecast.Conv[int](seq); err != nil {
			rows.Close()
			return nil, nil, fmt.Errorf("index: graph node %s: %w", n.Ref, err)
		}
		nodes = append(nodes, n)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	lrows, err := db.conn.Query(`
		SELECT rel.source, rel.target, rel.kind
		FROM relations rel
		JOIN records r ON r.ref = rel.target
		WHERE rel.origin != 'inferred'
		ORDER BY rel.source, rel.kind, rel.target
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("index: graph links: %w", err)
	}
	defer lrows.Close()
	links := []GraphLink{}
	for lrows.Next() {
		var l GraphLink
		if err := lrows.Scan(&l.Source, &l.Target, &l.Kind); err != nil {
			return nil, nil, err
		}
		links = append(links, l)
	}
	return nodes, links, lrows.Err()
}

func scanResults(rows *sql.Rows) ([]SearchResult, error) {
	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.Ref, &r.Package, &r.Slug, &r.Title, &r.Status, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
