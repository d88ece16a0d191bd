package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/galnetfeed/galnet-archive/app/database"
	"github.com/galnetfeed/galnet-archive/app/search"
	"github.com/galnetfeed/galnet-archive/app/tasks"
)

type fakeScheduler struct {
	updates int
	repairs int
}

func (s *fakeScheduler) Start()                                {}
func (s *fakeScheduler) Stop()                                 {}
func (s *fakeScheduler) EnqueueTask(tasks.TaskInterface) error { return nil }
func (s *fakeScheduler) EnqueueUpdate() error                  { s.updates++; return nil }
func (s *fakeScheduler) EnqueueRepair() error                  { s.repairs++; return nil }

func newTestServer(t *testing.T, apiAccessKey string) (http.Handler, *database.ArticleStore, *fakeScheduler) {
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

	scheduler := &fakeScheduler{}
	handler := NewHandler(store, search.NewEngine(store), scheduler)

	return NewServer(handler, apiAccessKey), store, scheduler
}

func insert(t *testing.T, store *database.ArticleStore, uid, title, text string, released time.Time) {
	t.Helper()
	if _, err := store.Insert(database.Article{UID: uid, Title: title, Text: text, DateReleased: released}); err != nil {
		t.Fatalf("Failed to insert %q: %v", uid, err)
	}
}

func TestSearchEndpoint(t *testing.T) {
	server, store, _ := newTestServer(t, "")
	insert(t, store, "uid-1", "Thargoid Sighting", "reports from the frontier",
		time.Date(2015, time.June, 1, 0, 0, 0, 0, time.UTC))

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/search?q=thargoid", nil)
	server.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp SearchResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if resp.Total != 1 || len(resp.Articles) != 1 {
		t.Fatalf("Expected 1 result, got total=%d returned=%d", resp.Total, len(resp.Articles))
	}
	if resp.Articles[0].DateReleased != "3301-06-01" {
		t.Errorf("Expected display-calendar date, got %q", resp.Articles[0].DateReleased)
	}
}

func TestSearchRejectsSemicolon(t *testing.T) {
	server, _, _ := newTestServer(t, "")

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/search?q=thargoid%3Bdrop", nil)
	server.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for semicolon query, got %d", w.Code)
	}
}

func TestSearchMissingQuery(t *testing.T) {
	server, _, _ := newTestServer(t, "")

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/search", nil)
	server.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing query, got %d", w.Code)
	}
}

func TestCountEndpoint(t *testing.T) {
	server, store, _ := newTestServer(t, "")
	released := time.Date(2015, time.June, 1, 0, 0, 0, 0, time.UTC)
	insert(t, store, "uid-1", "Alpha", "the station fell silent", released)
	insert(t, store, "uid-2", "Beta", "the station reopened", released.AddDate(0, 0, 1))

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/count?q=station", nil)
	server.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp CountResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Total != 2 {
		t.Errorf("Expected total 2, got %d", resp.Total)
	}
}

func TestGetArticleByID(t *testing.T) {
	server, store, _ := newTestServer(t, "")
	insert(t, store, "uid-1", "Alpha", "body",
		time.Date(2015, time.June, 1, 0, 0, 0, 0, time.UTC))

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/articles/1", nil)
	server.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var resp ArticleResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.UID != "uid-1" {
		t.Errorf("Expected uid-1, got %q", resp.UID)
	}
}

func TestGetArticleByIDNotFound(t *testing.T) {
	server, _, _ := newTestServer(t, "")

	for _, path := range []string{"/articles/99", "/articles/not-a-number"} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", path, nil)
		server.ServeHTTP(w, req)

		if w.Code != http.StatusNotFound {
			t.Errorf("Expected 404 for %s, got %d", path, w.Code)
		}
	}
}

func TestMaintenanceAuth(t *testing.T) {
	server, _, scheduler := newTestServer(t, "secret")

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/repair", nil)
	server.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without key, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest("POST", "/api/repair", nil)
	req.Header.Set("X-API-Key", "secret")
	server.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Errorf("Expected 202 with key, got %d", w.Code)
	}
	if scheduler.repairs != 1 {
		t.Errorf("Expected 1 repair enqueued, got %d", scheduler.repairs)
	}
}

func TestMaintenanceDisabledWithoutKey(t *testing.T) {
	server, _, _ := newTestServer(t, "")

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/update", nil)
	server.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 when maintenance endpoints disabled, got %d", w.Code)
	}
}
