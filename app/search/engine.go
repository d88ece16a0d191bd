package search

import (
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/text/cases"

	"github.com/galnetfeed/galnet-archive/app/database"
)

const (
	cacheTTL     = time.Minute
	cacheCleanup = 5 * time.Minute
)

// Result is one executed search: the truncated rows plus the full match
// count before truncation (clients use it for "N results found" and
// pagination math).
type Result struct {
	Articles []database.Article
	Total    int
}

// Engine runs parsed filters against the store. Results for identical option
// strings are served from a short-lived cache that ingestion and repair runs
// flush.
type Engine struct {
	repo  database.ArticleRepository
	cache *gocache.Cache
}

func NewEngine(repo database.ArticleRepository) *Engine {
	return &Engine{
		repo:  repo,
		cache: gocache.New(cacheTTL, cacheCleanup),
	}
}

// Run parses and executes one option string, caching by the raw input.
func (e *Engine) Run(input string) (*Result, error) {
	if cached, ok := e.cache.Get(input); ok {
		return cached.(*Result), nil
	}

	filter, err := ParseOptions(input)
	if err != nil {
		return nil, err
	}

	articles, total, err := e.Search(filter)
	if err != nil {
		return nil, err
	}

	result := &Result{Articles: articles, Total: total}
	e.cache.SetDefault(input, result)

	return result, nil
}

// Search returns the first filter.Limit matching rows in range-query order
// and the total match count before truncation.
func (e *Engine) Search(filter *Filter) ([]database.Article, int, error) {
	rows, err := e.repo.QueryRange(filter.After, filter.Before, filter.Order)
	if err != nil {
		return nil, 0, err
	}

	match := matcher(filter)

	var matched []database.Article
	for _, row := range rows {
		if match(row) {
			matched = append(matched, row)
		}
	}

	total := len(matched)
	if filter.Limit > 0 && total > filter.Limit {
		matched = matched[:filter.Limit]
	}

	return matched, total, nil
}

// Count executes the option string with an unbounded limit and returns only
// the total match count. "--all" is accepted as an alias for "--searchall".
func (e *Engine) Count(input string) (int, error) {
	tokens := strings.Fields(input)
	for i, token := range tokens {
		if token == "--all" {
			tokens[i] = "--searchall"
		}
	}
	tokens = append(tokens, "--limitall")

	result, err := e.Run(strings.Join(tokens, " "))
	if err != nil {
		return 0, err
	}

	return result.Total, nil
}

// FlushCache drops all cached results. Called after ingestion and repair
// runs change the corpus.
func (e *Engine) FlushCache() {
	e.cache.Flush()
}

// matcher builds the row predicate for a filter: a row matches when any
// search word is contained (case-insensitively) in the selected scope. In
// ScopeAll a row counts once even if both fields match. No words means no
// matches, as in the legacy behavior.
func matcher(filter *Filter) func(database.Article) bool {
	return func(article database.Article) bool {
		var haystacks []string
		switch filter.Scope {
		case ScopeContent:
			haystacks = []string{fold(article.Text)}
		case ScopeAll:
			haystacks = []string{fold(article.Title), fold(article.Text)}
		default:
			haystacks = []string{fold(article.Title)}
		}

		for _, word := range filter.Words {
			for _, haystack := range haystacks {
				if strings.Contains(haystack, word) {
					return true
				}
			}
		}
		return false
	}
}

// fold case-folds for caseless matching. Casers are stateful, so a fresh one
// is used per call.
func fold(s string) string {
	return cases.Fold().String(s)
}
