// Package repair implements the one-shot corpus maintenance routine: remove
// duplicate UIDs, renumber IDs densely and re-normalize rows still carrying
// pre-migration text escaping or display-calendar dates. The whole routine is
// one transaction; any failure leaves the store untouched.
package repair

import (
	"log/slog"

	"github.com/galnetfeed/galnet-archive/app/calendar"
	"github.com/galnetfeed/galnet-archive/app/database"
	"github.com/galnetfeed/galnet-archive/app/ingest"
)

// Report summarizes one repair run.
type Report struct {
	Removed int
	Total   int
}

type Repairer struct {
	repo database.ArticleRepository
}

func NewRepairer(repo database.ArticleRepository) *Repairer {
	return &Repairer{repo: repo}
}

// Run performs the repair. Must not run concurrently with an ingestion run;
// the operator (CLI flag or authed API trigger) owns that exclusion.
func (r *Repairer) Run() (*Report, error) {
	removed, err := r.repo.DeduplicateAndRebuild(Transform)
	if err != nil {
		return nil, err
	}

	total, err := r.repo.Count()
	if err != nil {
		return nil, err
	}

	slog.Info("Corpus repair completed", "removed", removed, "total", total)

	return &Report{Removed: removed, Total: total}, nil
}

// Transform re-normalizes one row during rebuild: legacy text escaping is
// undone, blank titles get the sentinel, and dates still stored in the
// display calendar are converted to canonical form.
func Transform(a database.Article) (database.Article, error) {
	a.Title = ingest.NormalizeTitle(a.Title)
	a.Text = ingest.NormalizeText(a.Text)
	a.DateReleased = calendar.NormalizeAmbiguous(a.DateReleased)
	return a, nil
}
