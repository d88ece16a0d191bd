package repair

import (
	"testing"
	"time"

	"github.com/galnetfeed/galnet-archive/app/database"
)

func newTestStore(t *testing.T) *database.ArticleStore {
	t.Helper()

	db, err := database.NewConnection(":memory:")
	if err != nil {
		t.Fatalf("Failed to open in-memory database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, _, err := database.RunMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	store, err := database.NewArticleStore(db, "")
	if err != nil {
		t.Fatalf("Failed to create article store: %v", err)
	}

	return store
}

func insert(t *testing.T, store *database.ArticleStore, uid, title, text string, released time.Time) {
	t.Helper()
	if _, err := store.Insert(database.Article{UID: uid, Title: title, Text: text, DateReleased: released}); err != nil {
		t.Fatalf("Failed to insert %q: %v", uid, err)
	}
}

func TestRunRemovesDuplicatesAndRenumbers(t *testing.T) {
	store := newTestStore(t)
	insert(t, store, "A", "A first", "", time.Date(2015, time.January, 1, 0, 0, 0, 0, time.UTC))
	insert(t, store, "B", "B", "", time.Date(2015, time.February, 1, 0, 0, 0, 0, time.UTC))
	insert(t, store, "A", "A second", "", time.Date(2015, time.March, 1, 0, 0, 0, 0, time.UTC))
	insert(t, store, "C", "C", "", time.Date(2015, time.April, 1, 0, 0, 0, 0, time.UTC))

	report, err := NewRepairer(store).Run()
	if err != nil {
		t.Fatalf("Repair failed: %v", err)
	}

	if report.Removed != 1 {
		t.Errorf("Expected 1 duplicate removed, got %d", report.Removed)
	}
	if report.Total != 3 {
		t.Errorf("Expected 3 surviving rows, got %d", report.Total)
	}

	for i := int64(1); i <= 3; i++ {
		row, err := store.GetByID(i)
		if err != nil {
			t.Fatalf("GetByID(%d) failed: %v", i, err)
		}
		if row == nil {
			t.Errorf("Expected dense ID %d to exist after repair", i)
		}
	}
}

func TestRunRenormalizesLegacyRows(t *testing.T) {
	store := newTestStore(t)
	// Row stored in the pre-migration display calendar with legacy escaping
	// and a blank title.
	insert(t, store, "legacy", "   ", "the commander''s ship", time.Date(3301, time.June, 1, 0, 0, 0, 0, time.UTC))

	if _, err := NewRepairer(store).Run(); err != nil {
		t.Fatalf("Repair failed: %v", err)
	}

	row, err := store.GetByUID("legacy")
	if err != nil {
		t.Fatalf("GetByUID failed: %v", err)
	}
	if row == nil {
		t.Fatal("Expected legacy row to survive repair")
	}

	if row.Title != database.NoTitleSentinel {
		t.Errorf("Expected blank title replaced by sentinel, got %q", row.Title)
	}
	if row.Text != "the commander's ship" {
		t.Errorf("Expected legacy escaping undone, got %q", row.Text)
	}
	if row.DateReleased.Year() != 2015 {
		t.Errorf("Expected display-calendar date converted to canonical, got %v", row.DateReleased)
	}
}

func TestRunKeepsCanonicalRowsUntouched(t *testing.T) {
	store := newTestStore(t)
	released := time.Date(2015, time.June, 1, 0, 0, 0, 0, time.UTC)
	insert(t, store, "ok", "Fine Title", "fine body", released)

	if _, err := NewRepairer(store).Run(); err != nil {
		t.Fatalf("Repair failed: %v", err)
	}

	row, err := store.GetByUID("ok")
	if err != nil || row == nil {
		t.Fatalf("Expected row to survive (err=%v)", err)
	}
	if row.Title != "Fine Title" || row.Text != "fine body" || !row.DateReleased.Equal(released) {
		t.Errorf("Expected canonical row untouched, got %+v", row)
	}
}
