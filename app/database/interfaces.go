package database

import (
	"time"
)

// Order is the chronological ordering of a range query.
type Order string

const (
	OrderAsc  Order = "ASC"
	OrderDesc Order = "DESC"
)

// ArticleRepository is the persistence contract consumed by the ingestion
// pipeline, the query engine and the repair routine.
type ArticleRepository interface {
	// Insert appends a new row. DateAdded is assigned at insertion time when
	// unset. Backend duplicate-key rejections surface as *ConstraintError.
	Insert(article Article) (int64, error)

	// RecentUIDs returns up to limit UIDs ordered by dateReleased descending.
	RecentUIDs(limit int) ([]string, error)

	// GetByID and GetByUID return (nil, nil) when no row matches.
	GetByID(id int64) (*Article, error)
	GetByUID(uid string) (*Article, error)

	// QueryRange returns rows whose dateReleased falls in the interval implied
	// by the present bounds: BETWEEN when both are set, strict one-sided
	// comparison otherwise, the whole table when neither is set.
	QueryRange(after, before *time.Time, order Order) ([]Article, error)

	// Rebuild transactionally reads all rows, deletes them, resets the ID
	// sequence and reinserts every transformed row with dense sequential IDs
	// preserving the original order. Failures roll the whole operation back.
	Rebuild(transform func(Article) (Article, error)) error

	// DeduplicateAndRebuild removes rows with duplicate UIDs (keeping the
	// last-seen row per UID) and performs Rebuild, all in one transaction.
	DeduplicateAndRebuild(transform func(Article) (Article, error)) (removed int, err error)

	Count() (int, error)
}
