package database

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *ArticleStore {
	t.Helper()

	db, err := NewConnection(":memory:")
	if err != nil {
		t.Fatalf("Failed to open in-memory database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, _, err := RunMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	store, err := NewArticleStore(db, "")
	if err != nil {
		t.Fatalf("Failed to create article store: %v", err)
	}
	store.now = func() time.Time {
		return time.Date(2020, time.May, 1, 0, 0, 0, 0, time.UTC)
	}

	return store
}

func mustInsert(t *testing.T, store *ArticleStore, uid, title string, released time.Time) int64 {
	t.Helper()

	id, err := store.Insert(Article{
		Title:        title,
		UID:          uid,
		DateReleased: released,
		Text:         "body of " + uid,
	})
	if err != nil {
		t.Fatalf("Failed to insert %q: %v", uid, err)
	}
	return id
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestInsertAssignsDateAdded(t *testing.T) {
	store := newTestStore(t)

	id := mustInsert(t, store, "uid-1", "First", day(2015, time.March, 25))
	if id != 1 {
		t.Errorf("Expected first ID to be 1, got %d", id)
	}

	article, err := store.GetByID(id)
	if err != nil {
		t.Fatalf("Failed to get article: %v", err)
	}
	if article == nil {
		t.Fatal("Expected article, got nil")
	}
	if !article.DateAdded.Equal(day(2020, time.May, 1)) {
		t.Errorf("Expected dateAdded to be assigned at insert time, got %v", article.DateAdded)
	}
}

func TestGetByIDNotFound(t *testing.T) {
	store := newTestStore(t)

	article, err := store.GetByID(42)
	if err != nil {
		t.Fatalf("Expected soft failure for missing ID, got error: %v", err)
	}
	if article != nil {
		t.Errorf("Expected nil for missing ID, got %+v", article)
	}
}

func TestGetByUID(t *testing.T) {
	store := newTestStore(t)
	mustInsert(t, store, "uid-1", "First", day(2015, time.March, 25))

	article, err := store.GetByUID("uid-1")
	if err != nil {
		t.Fatalf("Failed to get article by UID: %v", err)
	}
	if article == nil || article.Title != "First" {
		t.Errorf("Expected article 'First', got %+v", article)
	}

	missing, err := store.GetByUID("uid-unknown")
	if err != nil {
		t.Fatalf("Expected soft failure for missing UID, got error: %v", err)
	}
	if missing != nil {
		t.Errorf("Expected nil for missing UID, got %+v", missing)
	}
}

func TestRecentUIDs(t *testing.T) {
	store := newTestStore(t)
	mustInsert(t, store, "old", "Old", day(2015, time.January, 1))
	mustInsert(t, store, "mid", "Mid", day(2015, time.June, 1))
	mustInsert(t, store, "new", "New", day(2016, time.January, 1))

	uids, err := store.RecentUIDs(2)
	if err != nil {
		t.Fatalf("Failed to get recent UIDs: %v", err)
	}

	if len(uids) != 2 {
		t.Fatalf("Expected 2 UIDs, got %d", len(uids))
	}
	if uids[0] != "new" || uids[1] != "mid" {
		t.Errorf("Expected [new mid], got %v", uids)
	}
}

func TestQueryRange(t *testing.T) {
	store := newTestStore(t)
	mustInsert(t, store, "a", "A", day(2014, time.January, 1))
	mustInsert(t, store, "b", "B", day(2015, time.June, 1))
	mustInsert(t, store, "c", "C", day(2016, time.December, 31))

	after := day(2015, time.January, 1)
	before := day(2016, time.January, 1)

	rows, err := store.QueryRange(&after, &before, OrderDesc)
	if err != nil {
		t.Fatalf("Failed to query range: %v", err)
	}
	if len(rows) != 1 || rows[0].UID != "b" {
		t.Errorf("Expected only 'b' in range, got %+v", rows)
	}

	rows, err = store.QueryRange(&after, nil, OrderAsc)
	if err != nil {
		t.Fatalf("Failed to query open range: %v", err)
	}
	if len(rows) != 2 || rows[0].UID != "b" || rows[1].UID != "c" {
		t.Errorf("Expected [b c] ascending, got %+v", rows)
	}

	rows, err = store.QueryRange(nil, nil, OrderDesc)
	if err != nil {
		t.Fatalf("Failed to query unbounded range: %v", err)
	}
	if len(rows) != 3 || rows[0].UID != "c" {
		t.Errorf("Expected all rows newest first, got %+v", rows)
	}
}

func TestRebuildRenumbersIDs(t *testing.T) {
	store := newTestStore(t)
	mustInsert(t, store, "a", "A", day(2015, time.January, 1))
	mustInsert(t, store, "b", "B", day(2015, time.February, 1))
	mustInsert(t, store, "c", "C", day(2015, time.March, 1))

	err := store.Rebuild(func(a Article) (Article, error) {
		a.Title = a.Title + "!"
		return a, nil
	})
	if err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}

	rows, err := store.QueryRange(nil, nil, OrderAsc)
	if err != nil {
		t.Fatalf("Failed to read rows after rebuild: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("Expected 3 rows after rebuild, got %d", len(rows))
	}
	for i, row := range rows {
		if row.ID != int64(i+1) {
			t.Errorf("Expected dense ID %d, got %d", i+1, row.ID)
		}
		if row.Title[len(row.Title)-1] != '!' {
			t.Errorf("Expected transform to be applied, got title %q", row.Title)
		}
	}

	// The sequence continues densely after the rebuild.
	id := mustInsert(t, store, "d", "D", day(2015, time.April, 1))
	if id != 4 {
		t.Errorf("Expected next ID 4 after rebuild, got %d", id)
	}
}

func TestRebuildIsAtomic(t *testing.T) {
	store := newTestStore(t)
	mustInsert(t, store, "a", "A", day(2015, time.January, 1))
	mustInsert(t, store, "b", "B", day(2015, time.February, 1))

	boom := errors.New("boom")
	calls := 0
	err := store.Rebuild(func(a Article) (Article, error) {
		calls++
		if calls == 2 {
			return Article{}, boom
		}
		return a, nil
	})

	if err == nil {
		t.Fatal("Expected rebuild to fail")
	}
	var txErr *TransactionError
	if !errors.As(err, &txErr) {
		t.Errorf("Expected *TransactionError, got %T", err)
	}
	if !errors.Is(err, boom) {
		t.Errorf("Expected wrapped cause, got %v", err)
	}

	// Table must be exactly as before the call.
	rows, err := store.QueryRange(nil, nil, OrderAsc)
	if err != nil {
		t.Fatalf("Failed to read rows after failed rebuild: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("Expected 2 rows after rollback, got %d", len(rows))
	}
	if rows[0].ID != 1 || rows[0].Title != "A" || rows[1].ID != 2 || rows[1].Title != "B" {
		t.Errorf("Expected original rows untouched, got %+v", rows)
	}
}

func TestDeduplicateAndRebuild(t *testing.T) {
	store := newTestStore(t)
	mustInsert(t, store, "A", "A first", day(2015, time.January, 1))
	mustInsert(t, store, "B", "B", day(2015, time.February, 1))
	mustInsert(t, store, "A", "A second", day(2015, time.March, 1))
	mustInsert(t, store, "C", "C", day(2015, time.April, 1))

	removed, err := store.DeduplicateAndRebuild(func(a Article) (Article, error) {
		return a, nil
	})
	if err != nil {
		t.Fatalf("DeduplicateAndRebuild failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("Expected 1 row removed, got %d", removed)
	}

	rows, err := store.QueryRange(nil, nil, OrderAsc)
	if err != nil {
		t.Fatalf("Failed to read rows after repair: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("Expected 3 rows, got %d", len(rows))
	}

	seen := map[string]bool{}
	for i, row := range rows {
		if seen[row.UID] {
			t.Errorf("Duplicate UID %q survived repair", row.UID)
		}
		seen[row.UID] = true
		_ = i
	}
	for _, uid := range []string{"A", "B", "C"} {
		if !seen[uid] {
			t.Errorf("Expected UID %q to survive repair", uid)
		}
	}

	// IDs are dense after repair, and the last-seen duplicate was kept.
	byUID, err := store.GetByUID("A")
	if err != nil {
		t.Fatalf("Failed to get deduplicated row: %v", err)
	}
	if byUID.Title != "A second" {
		t.Errorf("Expected last-seen duplicate to win, got %q", byUID.Title)
	}
	for i := int64(1); i <= 3; i++ {
		row, err := store.GetByID(i)
		if err != nil || row == nil {
			t.Errorf("Expected dense ID %d to exist after repair (err=%v)", i, err)
		}
	}
}

func TestNewArticleStoreRejectsBadTableName(t *testing.T) {
	db, err := NewConnection(":memory:")
	if err != nil {
		t.Fatalf("Failed to open in-memory database: %v", err)
	}
	defer db.Close()

	for _, name := range []string{`Articles"; DROP TABLE x; --`, "bad name", "1bad"} {
		if _, err := NewArticleStore(db, name); err == nil {
			t.Errorf("Expected invalid table name %q to be rejected", name)
		}
	}
}

func TestEnsureTableCustomName(t *testing.T) {
	db, err := NewConnection(":memory:")
	if err != nil {
		t.Fatalf("Failed to open in-memory database: %v", err)
	}
	defer db.Close()

	store, err := NewArticleStore(db, "CustomArticles")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	if err := store.EnsureTable(); err != nil {
		t.Fatalf("EnsureTable failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		uid := fmt.Sprintf("uid-%d", i)
		if _, err := store.Insert(Article{UID: uid, Title: uid, DateReleased: day(2015, time.January, i+1)}); err != nil {
			t.Fatalf("Insert into custom table failed: %v", err)
		}
	}

	count, err := store.Count()
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 rows in custom table, got %d", count)
	}
}
