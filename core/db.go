package core

import (
	"context"
	"database/sql"
	"strings"
)

type (
	// DBExecutor is the subset of database/sql operations shared by *sql.DB
	// and *sql.Tx. Repositories take a trailing `exec ...DBExecutor` so a
	// service can run several calls inside one transaction.
	DBExecutor interface {
		Exec(query string, args ...interface{}) (sql.Result, error)
		ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
		Query(query string, args ...interface{}) (*sql.Rows, error)
		QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
		QueryRow(query string, args ...interface{}) *sql.Row
		QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	}

	DB interface {
		DBExecutor

		Begin() (*sql.Tx, error)
		BeginTx(context.Context, *sql.TxOptions) (*sql.Tx, error)
	}

	DBTransactor interface {
		DBExecutor

		Commit() error
		Rollback() error
	}
)

// DBOrdering is one ORDER BY term. Field names come from API query params
// and must be whitelisted by the caller before reaching SQL.
type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// OrderBySQL renders an ORDER BY clause (with leading space) for the given
// terms, or "" when there are none.
func OrderBySQL(ordering []DBOrdering) string {
	if len(ordering) == 0 {
		return ""
	}
	terms := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		terms = append(terms, ord.String())
	}
	return " ORDER BY " + strings.Join(terms, ", ")
}
