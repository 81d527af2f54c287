package index

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/starford/adrkb/internal/repository"
	"github.com/starford/adrkb/internal/testutil"
)

// watcherTestEnv sets up an ADR folder, its rescan func, and a DB for watcher tests.
func watcherTestEnv(t *testing.T) (string, []repository.Folder, RescanFunc, *DB) {
	t.Helper()
	dir := testutil.Folder(t)
	folders := []repository.Folder{{Path: dir}}
	rescan := func(ctx context.Context) (*repository.Repository, error) {
		return repository.Scan(ctx, folders)
	}
	return dir, folders, rescan, testDB(t)
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func TestWatcher_NewFileIndexed(t *testing.T) {
	dir, folders, rescan, db := watcherTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var events []string

	syncer := NewSyncer(db, rescan, quietLogger(), func(kind, ref string) {
		mu.Lock()
		events = append(events, kind+":"+ref)
		mu.Unlock()
	})
	go Watch(ctx, folders, syncer.Refresh, quietLogger())

	time.Sleep(100 * time.Millisecond)

	testutil.WriteADR(t, dir, "0001-new.md", testutil.Doc("# New\n", "title", "New"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("0001-new")
		return cs != ""
	}, "new record not indexed by watcher")

	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, e := range events {
			if e == "created:0001-new" {
				return true
			}
		}
		return false
	}, "expected created:0001-new callback")
}

func TestWatcher_IgnoresNonMarkdown(t *testing.T) {
	dir, folders, _, db := watcherTestEnv(t)

	var mu sync.Mutex
	scans := 0
	rescan := func(ctx context.Context) (*repository.Repository, error) {
		mu.Lock()
		scans++
		mu.Unlock()
		return repository.Scan(ctx, folders)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Watch(ctx, folders, NewSyncer(db, rescan, quietLogger(), nil).Refresh, quietLogger())
	time.Sleep(100 * time.Millisecond)

	testutil.WriteADR(t, dir, "notes.txt", "scratch")
	testutil.WriteADR(t, dir, ".adrkb-tmp-123", "staging")
	time.Sleep(3 * debounceDelay)

	mu.Lock()
	defer mu.Unlock()
	if scans != 0 {
		t.Errorf("rescans = %d, want 0", scans)
	}
}

func TestWatcher_DeleteRemovesFromIndex(t *testing.T) {
	dir, folders, rescan, db := watcherTestEnv(t)

	testutil.WriteADR(t, dir, "0001-del.md", testutil.Doc("# Delete Me\n", "title", "Delete Me"))
	repo, _ := rescan(context.Background())
	if _, err := Sync(db, repo, quietLogger()); err != nil {
		t.Fatal(err)
	}

	cs, _ := db.GetChecksum("0001-del")
	if cs == "" {
		t.Fatal("precondition: record should be indexed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, folders, NewSyncer(db, rescan, quietLogger(), nil).Refresh, quietLogger())
	time.Sleep(100 * time.Millisecond)

	_ = os.Remove(filepath.Join(dir, "0001-del.md"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("0001-del")
		return cs == ""
	}, "deleted record still in index")
}

func TestWatcher_RenameReconciles(t *testing.T) {
	dir, folders, rescan, db := watcherTestEnv(t)

	testutil.WriteADR(t, dir, "0001-old.md", testutil.Doc("# Rename\n", "title", "Rename"))
	repo, _ := rescan(context.Background())
	_, _ = Sync(db, repo, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, folders, NewSyncer(db, rescan, quietLogger(), nil).Refresh, quietLogger())
	time.Sleep(100 * time.Millisecond)

	_ = os.Rename(filepath.Join(dir, "0001-old.md"), filepath.Join(dir, "0001-renamed.md"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		oldCS, _ := db.GetChecksum("0001-old")
		newCS, _ := db.GetChecksum("0001-renamed")
		return oldCS == "" && newCS != ""
	}, "rename: old ref should be removed and new ref indexed")
}

func TestSyncer_ConcurrentRefreshReportsCreateOnce(t *testing.T) {
	dir, _, rescan, db := watcherTestEnv(t)
	testutil.WriteADR(t, dir, "0001-once.md", testutil.Doc("# Once\n", "title", "Once"))

	var mu sync.Mutex
	created := 0
	syncer := NewSyncer(db, rescan, quietLogger(), func(kind, ref string) {
		if kind == "created" && ref == "0001-once" {
			mu.Lock()
			created++
			mu.Unlock()
		}
	})

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := syncer.Refresh(context.Background()); err != nil {
				t.Errorf("Refresh: %v", err)
			}
		}()
	}
	wg.Wait()

	if created != 1 {
		t.Errorf("created events = %d, want 1", created)
	}
}
