//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"strings"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS records_fts USING fts5(
			ref UNINDEXED,
			title,
			body,
			tags,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, ref, title, body string, tags []string) error {
	_, _ = tx.Exec(`DELETE FROM records_fts WHERE ref = ?`, ref)
	_, err := tx.Exec(`INSERT INTO records_fts (ref, title, body, tags) VALUES (?, ?, ?, ?)`,
		ref, title, body, strings.Join(tags, " "))
	if err != nil {
		return fmt.Errorf("index: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, ref string) {
	_, _ = tx.Exec(`DELETE FROM records_fts WHERE ref = ?`, ref)
}

// Search performs an FTS5 full-text search and returns matching results with snippets.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT r.ref, r.package, r.slug, r.title, r.status,
		       snippet(records_fts, 2, '<b>', '</b>', '...', 64)
		FROM records_fts
		JOIN records r ON r.ref = records_fts.ref
		WHERE records_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()
	return scanResults(rows)
}
