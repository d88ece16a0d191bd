package database

import (
	"database/sql"
	"fmt"
	"regexp"
	"time"

	"github.com/galnetfeed/galnet-archive/app/calendar"
)

// DefaultTable is the legacy table name used when none is configured.
const DefaultTable = "Articles"

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ArticleStore is the sqlite-backed ArticleRepository.
type ArticleStore struct {
	db    *DB
	table string
	now   func() time.Time
}

var _ ArticleRepository = (*ArticleStore)(nil)

// NewArticleStore creates a store bound to the given table. The table name is
// validated as a bare identifier; all row values travel through placeholders.
func NewArticleStore(db *DB, table string) (*ArticleStore, error) {
	if table == "" {
		table = DefaultTable
	}
	if !identPattern.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}

	return &ArticleStore{db: db, table: table, now: time.Now}, nil
}

// EnsureTable creates the article table when it does not exist yet. Used by
// the initial corpus build when a non-default table name is configured;
// migrations own the default table.
func (s *ArticleStore) EnsureTable() error {
	_, err := s.db.Exec(fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			"ID" INTEGER PRIMARY KEY AUTOINCREMENT,
			"Title" TEXT,
			"UID" TEXT,
			"dateReleased" DATE,
			"dateAdded" DATE,
			"Text" TEXT
		)
	`, s.quoted()))
	if err != nil {
		return fmt.Errorf("failed to ensure table %s: %w", s.table, err)
	}
	return nil
}

func (s *ArticleStore) quoted() string {
	return `"` + s.table + `"`
}

// Insert appends a new row and returns the assigned ID. DateAdded is set to
// the current date when the caller left it zero and is never mutated
// afterward.
func (s *ArticleStore) Insert(article Article) (int64, error) {
	if article.DateAdded.IsZero() {
		article.DateAdded = s.now()
	}

	res, err := s.db.Exec(fmt.Sprintf(`
		INSERT INTO %s ("Title", "UID", "dateReleased", "dateAdded", "Text")
		VALUES ($1, $2, $3, $4, $5)
	`, s.quoted()),
		article.Title, article.UID,
		formatDate(article.DateReleased), formatDate(article.DateAdded),
		article.Text)
	if err != nil {
		if isConstraintViolation(err) {
			return 0, &ConstraintError{UID: article.UID, Err: err}
		}
		return 0, fmt.Errorf("failed to insert article %q: %w", article.UID, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read inserted ID: %w", err)
	}

	return id, nil
}

// RecentUIDs returns up to limit UIDs ordered by release date descending,
// the cheap duplicate-skip window used by the ingestion pipeline.
func (s *ArticleStore) RecentUIDs(limit int) ([]string, error) {
	rows, err := s.db.Query(fmt.Sprintf(`
		SELECT "UID" FROM %s ORDER BY "dateReleased" DESC LIMIT $1
	`, s.quoted()), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent UIDs: %w", err)
	}
	defer rows.Close()

	var uids []string
	for rows.Next() {
		var uid string
		if err := rows.Scan(&uid); err != nil {
			return nil, fmt.Errorf("failed to scan UID row: %w", err)
		}
		uids = append(uids, uid)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating UID rows: %w", err)
	}

	return uids, nil
}

// GetByID returns the article with the given ID, or nil when absent.
func (s *ArticleStore) GetByID(id int64) (*Article, error) {
	return s.getOne(`"ID" = $1`, id)
}

// GetByUID returns the article with the given UID, or nil when absent.
func (s *ArticleStore) GetByUID(uid string) (*Article, error) {
	return s.getOne(`"UID" = $1`, uid)
}

func (s *ArticleStore) getOne(where string, arg interface{}) (*Article, error) {
	row := s.db.QueryRow(fmt.Sprintf(`
		SELECT "ID", "Title", "UID", "dateReleased", "dateAdded", "Text"
		FROM %s WHERE %s
	`, s.quoted(), where), arg)

	article, err := scanArticle(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get article: %w", err)
	}

	return article, nil
}

// QueryRange returns rows whose release date falls within the interval
// implied by the present bounds, ordered by release date.
func (s *ArticleStore) QueryRange(after, before *time.Time, order Order) ([]Article, error) {
	if order != OrderAsc {
		order = OrderDesc
	}

	query := fmt.Sprintf(`
		SELECT "ID", "Title", "UID", "dateReleased", "dateAdded", "Text"
		FROM %s`, s.quoted())
	var args []interface{}

	switch {
	case after != nil && before != nil:
		query += ` WHERE "dateReleased" BETWEEN $1 AND $2`
		args = append(args, formatDate(*after), formatDate(*before))
	case before != nil:
		query += ` WHERE "dateReleased" < $1`
		args = append(args, formatDate(*before))
	case after != nil:
		query += ` WHERE "dateReleased" > $1`
		args = append(args, formatDate(*after))
	}
	query += fmt.Sprintf(` ORDER BY "dateReleased" %s`, order)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query article range: %w", err)
	}
	defer rows.Close()

	var articles []Article
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan article row: %w", err)
		}
		articles = append(articles, *article)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating article rows: %w", err)
	}

	return articles, nil
}

// Count returns the total number of stored articles.
func (s *ArticleStore) Count() (int, error) {
	var count int
	err := s.db.QueryRow(fmt.Sprintf(`SELECT COUNT(*) FROM %s`, s.quoted())).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count articles: %w", err)
	}
	return count, nil
}

// Rebuild reads all rows, deletes them, resets the ID sequence and reinserts
// every transformed row with dense IDs starting at 1, preserving the original
// relative order. The whole operation is one transaction.
func (s *ArticleStore) Rebuild(transform func(Article) (Article, error)) error {
	tx, err := s.db.Begin()
	if err != nil {
		return &TransactionError{Op: "rebuild", Err: err}
	}
	defer tx.Rollback()

	articles, err := s.selectAllTx(tx)
	if err != nil {
		return &TransactionError{Op: "rebuild", Err: err}
	}

	if err := s.rebuildRowsTx(tx, articles, transform); err != nil {
		return &TransactionError{Op: "rebuild", Err: err}
	}

	if err := tx.Commit(); err != nil {
		return &TransactionError{Op: "rebuild", Err: err}
	}

	return nil
}

// DeduplicateAndRebuild removes duplicate-UID rows keeping the last-seen row
// per UID, then rebuilds IDs, all inside one transaction. It returns the
// number of rows removed.
func (s *ArticleStore) DeduplicateAndRebuild(transform func(Article) (Article, error)) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, &TransactionError{Op: "repair", Err: err}
	}
	defer tx.Rollback()

	articles, err := s.selectAllTx(tx)
	if err != nil {
		return 0, &TransactionError{Op: "repair", Err: err}
	}

	// Last row wins per UID, matching the historical cleanup behavior.
	lastSeen := make(map[string]int, len(articles))
	for i, article := range articles {
		lastSeen[article.UID] = i
	}

	kept := make([]Article, 0, len(lastSeen))
	for i, article := range articles {
		if lastSeen[article.UID] == i {
			kept = append(kept, article)
		}
	}
	removed := len(articles) - len(kept)

	if err := s.rebuildRowsTx(tx, kept, transform); err != nil {
		return 0, &TransactionError{Op: "repair", Err: err}
	}

	if err := tx.Commit(); err != nil {
		return 0, &TransactionError{Op: "repair", Err: err}
	}

	return removed, nil
}

func (s *ArticleStore) selectAllTx(tx *sql.Tx) ([]Article, error) {
	rows, err := tx.Query(fmt.Sprintf(`
		SELECT "ID", "Title", "UID", "dateReleased", "dateAdded", "Text"
		FROM %s ORDER BY "ID"
	`, s.quoted()))
	if err != nil {
		return nil, fmt.Errorf("failed to read articles: %w", err)
	}
	defer rows.Close()

	var articles []Article
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan article row: %w", err)
		}
		articles = append(articles, *article)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating article rows: %w", err)
	}

	return articles, nil
}

func (s *ArticleStore) rebuildRowsTx(tx *sql.Tx, articles []Article, transform func(Article) (Article, error)) error {
	if _, err := tx.Exec(fmt.Sprintf(`DELETE FROM %s`, s.quoted())); err != nil {
		return fmt.Errorf("failed to clear table: %w", err)
	}

	// Reset the autoincrement sequence so post-rebuild inserts continue
	// densely from the reinserted rows.
	if _, err := tx.Exec(`DELETE FROM sqlite_sequence WHERE name = $1`, s.table); err != nil {
		return fmt.Errorf("failed to reset ID sequence: %w", err)
	}

	for i, article := range articles {
		transformed, err := transform(article)
		if err != nil {
			return fmt.Errorf("transform failed for UID %q: %w", article.UID, err)
		}

		_, err = tx.Exec(fmt.Sprintf(`
			INSERT INTO %s ("ID", "Title", "UID", "dateReleased", "dateAdded", "Text")
			VALUES ($1, $2, $3, $4, $5, $6)
		`, s.quoted()),
			int64(i+1), transformed.Title, transformed.UID,
			formatDate(transformed.DateReleased), formatDate(transformed.DateAdded),
			transformed.Text)
		if err != nil {
			return fmt.Errorf("failed to reinsert UID %q: %w", article.UID, err)
		}
	}

	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanArticle(row scanner) (*Article, error) {
	var article Article
	var released, added string

	err := row.Scan(&article.ID, &article.Title, &article.UID, &released, &added, &article.Text)
	if err != nil {
		return nil, err
	}

	if article.DateReleased, err = parseDate(released); err != nil {
		return nil, err
	}
	if article.DateAdded, err = parseDate(added); err != nil {
		return nil, err
	}

	return &article, nil
}

func formatDate(t time.Time) string {
	return t.Format(calendar.DateLayout)
}

func parseDate(value string) (time.Time, error) {
	t, err := time.Parse(calendar.DateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("malformed stored date %q: %w", value, err)
	}
	return t, nil
}
