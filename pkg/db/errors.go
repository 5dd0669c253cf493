package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

const (
	pgUniqueViolation  = "23505"
	pgLockNotAvailable = "55P03"
	pgQueryCanceled    = "57014"
)

// sqlState extracts the SQLSTATE from either Postgres driver.
func sqlState(err error) (code, constraint string, ok bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, pgErr.ConstraintName, true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code), pqErr.Constraint, true
	}
	return "", "", false
}

// IsLockTimeout reports whether Postgres gave up waiting on a lock, either
// through lock_timeout or a cancelled statement.
func IsLockTimeout(err error) bool {
	code, _, ok := sqlState(err)
	return ok && (code == pgLockNotAvailable || code == pgQueryCanceled)
}

const sqliteUniqueFailed = "UNIQUE constraint failed: "

// Constraint identifies a unique constraint. Postgres reports the name;
// SQLite reports the qualified columns, so both are needed to match either.
// The zero Constraint matches any unique violation.
type Constraint struct {
	Name    string
	Table   string
	Columns []string
}

func (c Constraint) matchesAny() bool {
	return c.Name == "" && len(c.Columns) == 0
}

// sqliteColumns renders the column list the way SQLite prints it.
func (c Constraint) sqliteColumns() string {
	qualified := make([]string, len(c.Columns))
	for i, col := range c.Columns {
		qualified[i] = c.Table + "." + col
	}
	return strings.Join(qualified, ", ")
}

// IsUniqueViolation reports a unique violation on the given constraint, or on
// any constraint when c is zero. SQLite errors are matched on their message.
func IsUniqueViolation(err error, c Constraint) bool {
	if err == nil {
		return false
	}

	if code, constraint, ok := sqlState(err); ok {
		return code == pgUniqueViolation && (c.matchesAny() || constraint == c.Name)
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "duplicate key value"):
		return c.matchesAny() || (c.Name != "" && strings.Contains(msg, `"`+c.Name+`"`))
	case strings.Contains(msg, sqliteUniqueFailed):
		if c.matchesAny() {
			return true
		}
		if len(c.Columns) == 0 {
			return false
		}
		want := sqliteUniqueFailed + c.sqliteColumns()
		at := strings.Index(msg, want)
		return at >= 0 && !strings.HasPrefix(msg[at+len(want):], ",")
	}
	return false
}
