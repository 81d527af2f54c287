//go:build sqlite_fts5

package index

import (
	"testing"
)

func TestFTS5_TableExists(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM records_fts`).Scan(&count); err != nil {
		t.Fatalf("records_fts table missing: %v", err)
	}
}

func TestFTS5_SearchWithSnippet(t *testing.T) {
	db := testDB(t)
	row := RecordRow{
		Ref:      "billing/0003-use-kafka",
		Package:  "billing",
		Slug:     "0003-use-kafka",
		Title:    "Use Kafka",
		Status:   "proposed",
		Checksum: "f1",
		Tags:     []string{"messaging"},
	}
	if err := db.UpsertRecord(row, "Events are published to a durable commit log."); err != nil {
		t.Fatalf("UpsertRecord: %v", err)
	}

	results, err := db.Search("durable", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Ref != "billing/0003-use-kafka" || results[0].Package != "billing" {
		t.Errorf("result = %+v", results[0])
	}
	if results[0].Snippet == "" {
		t.Error("expected non-empty snippet")
	}
}

func TestFTS5_DeleteRemovesFromFTS(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertRecord(RecordRow{Ref: "0001-gone", Slug: "0001-gone", Checksum: "g"}, "vanishing content")
	_ = db.DeleteRecord("0001-gone")

	results, _ := db.Search("vanishing", 10)
	for _, r := range results {
		if r.Ref == "0001-gone" {
			t.Error("deleted record still in FTS index")
		}
	}
}

func TestFTS5_UpsertReplacesContent(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertRecord(RecordRow{Ref: "0001-evo", Slug: "0001-evo", Title: "Old", Checksum: "1"}, "original text")
	_ = db.UpsertRecord(RecordRow{Ref: "0001-evo", Slug: "0001-evo", Title: "New", Checksum: "2"}, "replacement text")

	results, _ := db.Search("original", 10)
	if len(results) != 0 {
		t.Error("old FTS content should be gone")
	}
	results, _ = db.Search("replacement", 10)
	if len(results) != 1 || results[0].Title != "New" {
		t.Errorf("FTS not updated: %+v", results)
	}
}
