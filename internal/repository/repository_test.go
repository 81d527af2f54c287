package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/starford/adrkb/internal/apperr"
	"github.com/starford/adrkb/internal/models"
	"github.com/starford/adrkb/internal/testutil"
)

func adr(title, status string, extra ...string) string {
	kv := append([]string{"title", title, "date", "2024-01-01", "status", status}, extra...)
	return testutil.Doc("# "+title+"\n", kv...)
}

func TestScan_Empty(t *testing.T) {
	dir := testutil.Folder(t)
	repo, err := Scan(context.Background(), []Folder{{Path: dir}})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if !repo.Empty() || repo.Len() != 0 {
		t.Errorf("records = %d, want 0", repo.Len())
	}
	if got := repo.Records(); len(got) != 0 {
		t.Errorf("Records() = %v", got)
	}
}

func TestScan_OrderAndReserved(t *testing.T) {
	root := testutil.Folder(t)
	global := testutil.Mkdir(t, root, "docs/adr")
	billing := testutil.Mkdir(t, root, "packages/billing/adr")

	testutil.WriteADR(t, global, "0010-ten.md", adr("Ten", "accepted"))
	testutil.WriteADR(t, global, "0002-two.md", adr("Two", "accepted"))
	testutil.WriteADR(t, global, "template.md", adr("Template", "draft"))
	testutil.WriteADR(t, global, "README.md", "# readme\n")
	testutil.WriteADR(t, global, "notes.txt", "ignored")
	testutil.WriteADR(t, billing, "0001-one.md", adr("One", "draft"))
	testutil.Mkdir(t, global, "nested")
	testutil.WriteADR(t, filepath.Join(global, "nested"), "0003-deep.md", adr("Deep", "draft"))

	repo, err := Scan(context.Background(), []Folder{
		{Path: global},
		{Path: billing, Package: "billing"},
	}, WithConcurrency(2))
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	var got []string
	for _, r := range repo.Records() {
		got = append(got, r.Ref().String())
	}
	want := []string{"0002-two", "0010-ten", "billing/0001-one"}
	if len(got) != len(want) {
		t.Fatalf("records = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("records[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	if repo.FolderRank("billing") != 1 || repo.FolderRank("") != 0 || repo.FolderRank("nope") != 2 {
		t.Error("unexpected folder ranks")
	}
	if r, ok := repo.Lookup("billing", "0001-one"); !ok || r.Package != "billing" {
		t.Errorf("Lookup = %v, %v", r, ok)
	}
	if recs := repo.FolderRecords(models.Global); len(recs) != 2 {
		t.Errorf("global records = %d", len(recs))
	}
}

func TestScan_MissingFolder(t *testing.T) {
	missing := filepath.Join(testutil.Folder(t), "docs", "adr")
	_, err := Scan(context.Background(), []Folder{{Path: missing}})
	if !errors.Is(err, apperr.ErrFolderMissing) {
		t.Fatalf("err = %v, want ErrFolderMissing", err)
	}

	repo, err := Scan(context.Background(), []Folder{{Path: missing}}, WithCreateMissing())
	if err != nil {
		t.Fatalf("Scan with create: %v", err)
	}
	if !repo.Empty() {
		t.Error("expected empty repository")
	}
}

func TestScan_DuplicateIDsKeepBothRecords(t *testing.T) {
	dir := testutil.Folder(t)
	testutil.WriteADR(t, dir, "0001-a.md", adr("A", "accepted"))
	testutil.WriteADR(t, dir, "0001-b.md", adr("B", "accepted"))

	repo, err := Scan(context.Background(), []Folder{{Path: dir}})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if repo.Len() != 2 {
		t.Fatalf("records = %d, want 2", repo.Len())
	}
	if n := len(repo.ByID(models.Global, 1)); n != 2 {
		t.Errorf("ByID(1) = %d records, want 2", n)
	}
}

func TestScan_ResolvesAcrossFolders(t *testing.T) {
	root := testutil.Folder(t)
	global := testutil.Mkdir(t, root, "adr")
	pkg := testutil.Mkdir(t, root, "pkg")
	testutil.WriteADR(t, global, "0001-base.md", adr("Base", "accepted"))
	testutil.WriteADR(t, pkg, "0001-ext.md", adr("Ext", "accepted", "amends", "0001-base"))

	repo, err := Scan(context.Background(), []Folder{{Path: global}, {Path: pkg, Package: "pkg"}})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	base, _ := repo.Lookup(models.Global, "0001-base")
	ext, _ := repo.Lookup("pkg", "0001-ext")
	if !base.HasRelation(models.AmendedBy, ext.Ref()) {
		t.Errorf("base relations = %+v", base.Relations)
	}
}

func TestScan_BadFileDoesNotAbort(t *testing.T) {
	dir := testutil.Folder(t)
	testutil.WriteADR(t, dir, "0001-good.md", adr("Good", "accepted"))
	testutil.WriteADR(t, dir, "0002-bad.md", "---\ntitle: [unclosed\n---\n")

	repo, err := Scan(context.Background(), []Folder{{Path: dir}})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if repo.Len() != 2 {
		t.Fatalf("records = %d, want 2", repo.Len())
	}
	bad, _ := repo.Lookup(models.Global, "0002-bad")
	if bad.Valid || len(bad.Findings) == 0 {
		t.Errorf("bad record = %+v", bad)
	}
}

func TestScan_DuplicatePackage(t *testing.T) {
	dir := testutil.Folder(t)
	if _, err := Scan(context.Background(), []Folder{{Path: dir, Package: "a"}, {Path: dir, Package: "a"}}); err == nil {
		t.Error("expected error for package configured twice")
	}
}

func TestScan_Cancelled(t *testing.T) {
	dir := testutil.Folder(t)
	testutil.WriteADR(t, dir, "0001-a.md", adr("A", "accepted"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Scan(ctx, []Folder{{Path: dir}}); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
