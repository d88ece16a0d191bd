// Package ingest implements the incremental update pipeline: diff the live
// feed index against the stored corpus, fetch unseen articles, normalize and
// insert them.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/galnetfeed/galnet-archive/app/calendar"
	"github.com/galnetfeed/galnet-archive/app/database"
	"github.com/galnetfeed/galnet-archive/app/fetcher"
)

// RecentWindow is how many of the most recently released UIDs are compared
// against the feed index to detect new articles.
const RecentWindow = 50

// Failure records one article that could not be ingested this run. The
// article stays absent from the store and is retried on the next run.
type Failure struct {
	UID string
	Err error
}

// UpdateResult reports one pipeline run: rows actually inserted, their UIDs,
// and per-article failures (partial-failure signal, never fatal for the run).
type UpdateResult struct {
	Count    int
	UIDs     []string
	Failures []Failure
}

type Pipeline struct {
	fetcher fetcher.Fetcher
	repo    database.ArticleRepository
	workers int
}

func NewPipeline(f fetcher.Fetcher, repo database.ArticleRepository, workers int) *Pipeline {
	if workers < 1 {
		workers = 1
	}
	return &Pipeline{fetcher: f, repo: repo, workers: workers}
}

// Update looks for new articles. It is idempotent and safe to call on a
// timer: already-stored UIDs are skipped via the recent-UID window, repeats
// within one feed render are deduplicated, and a duplicate-key race with a
// concurrent run is skipped per article. Returns nil when no new articles
// were found.
func (p *Pipeline) Update(ctx context.Context) (*UpdateResult, error) {
	index, err := p.fetcher.FetchIndex(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed index: %w", err)
	}

	recent, err := p.repo.RecentUIDs(RecentWindow)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent UIDs: %w", err)
	}

	known := make(map[string]bool, len(recent))
	for _, uid := range recent {
		known[uid] = true
	}

	// A feed render may repeat a UID; dedupe the candidate list itself.
	var candidates []string
	seen := make(map[string]bool)
	for _, uid := range index {
		if known[uid] || seen[uid] {
			continue
		}
		seen[uid] = true
		candidates = append(candidates, uid)
	}

	if len(candidates) == 0 {
		return nil, nil
	}

	result := &UpdateResult{}
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, p.workers)

	for _, uid := range candidates {
		wg.Add(1)
		sem <- struct{}{}
		go func(uid string) {
			defer wg.Done()
			defer func() { <-sem }()

			inserted, err := p.ingestOne(ctx, uid)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				result.Failures = append(result.Failures, Failure{UID: uid, Err: err})
			case inserted:
				result.Count++
				result.UIDs = append(result.UIDs, uid)
			}
		}(uid)
	}
	wg.Wait()

	for _, failure := range result.Failures {
		slog.Warn("Article ingestion failed, will retry next run", "uid", failure.UID, "error", failure.Err)
	}

	return result, nil
}

// ingestOne fetches, normalizes and inserts a single article. A duplicate-key
// rejection (race with a concurrent run) is not an error; the article is
// simply skipped.
func (p *Pipeline) ingestOne(ctx context.Context, uid string) (bool, error) {
	raw, err := p.fetcher.FetchArticle(ctx, uid)
	if err != nil {
		return false, err
	}

	article, err := normalize(raw)
	if err != nil {
		return false, err
	}

	if _, err := p.repo.Insert(*article); err != nil {
		var constraintErr *database.ConstraintError
		if errors.As(err, &constraintErr) {
			slog.Debug("Duplicate UID raced in by concurrent run, skipping", "uid", uid)
			return false, nil
		}
		return false, err
	}

	return true, nil
}

// InitialBuild populates an empty table with the complete archive, oldest
// first. One-shot, operator-invoked.
func (p *Pipeline) InitialBuild(ctx context.Context) (*UpdateResult, error) {
	links, err := p.fetcher.FetchAllLinks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch archive listing: %w", err)
	}

	result := &UpdateResult{}
	seen := make(map[string]bool)

	for _, link := range links {
		uids, err := p.fetcher.FetchDay(ctx, link.Path)
		if err != nil {
			slog.Warn("Failed to fetch archive page, skipping", "path", link.Path, "error", err)
			continue
		}

		for _, uid := range uids {
			if seen[uid] {
				continue
			}
			seen[uid] = true

			raw, err := p.fetcher.FetchArticle(ctx, uid)
			if err != nil {
				result.Failures = append(result.Failures, Failure{UID: uid, Err: err})
				continue
			}
			// Archive pages carry the authoritative date in the link path.
			raw.RawDate = link.RawDate

			article, err := normalize(raw)
			if err != nil {
				result.Failures = append(result.Failures, Failure{UID: uid, Err: err})
				continue
			}

			if _, err := p.repo.Insert(*article); err != nil {
				result.Failures = append(result.Failures, Failure{UID: uid, Err: err})
				continue
			}
			result.Count++
			result.UIDs = append(result.UIDs, uid)
		}
	}

	return result, nil
}

func normalize(raw *fetcher.RawArticle) (*database.Article, error) {
	released, err := calendar.ToCanonical(raw.RawDate)
	if err != nil {
		return nil, err
	}

	return &database.Article{
		Title:        NormalizeTitle(raw.Title),
		UID:          raw.UID,
		DateReleased: released,
		Text:         NormalizeText(raw.BodyText),
	}, nil
}

// NormalizeTitle trims whitespace and substitutes the sentinel for blank
// titles.
func NormalizeTitle(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return database.NoTitleSentinel
	}
	return title
}

// NormalizeText percent-unescapes the body and undoes the doubled
// single-quote escaping carried over from the legacy string-interpolated
// insert path. Parameterized queries need neither.
func NormalizeText(text string) string {
	if unescaped, err := url.PathUnescape(text); err == nil {
		text = unescaped
	}
	return strings.ReplaceAll(text, "''", "'")
}
