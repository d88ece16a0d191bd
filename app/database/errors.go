package database

import (
	"errors"
	"fmt"

	sqlite "modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"
)

// ConstraintError reports an insert rejected by the backing store, typically
// a duplicate UID raced in by a concurrent ingestion run. Callers recover by
// skipping the offending article.
type ConstraintError struct {
	UID string
	Err error
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("constraint violation for UID %q: %v", e.UID, e.Err)
}

func (e *ConstraintError) Unwrap() error {
	return e.Err
}

// TransactionError reports a failure inside a transactional maintenance
// operation. The transaction has been rolled back and the table is unchanged.
type TransactionError struct {
	Op  string
	Err error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("%s failed, transaction rolled back: %v", e.Op, e.Err)
}

func (e *TransactionError) Unwrap() error {
	return e.Err
}

// isConstraintViolation reports whether err is a sqlite constraint rejection.
func isConstraintViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code()&0xff == sqlitelib.SQLITE_CONSTRAINT
	}
	return false
}
