package repo

import (
	"context"
	"database/sql"
	"strings"

	"gigline/internal/domain"
)

// Repo persists marketplace rows. Methods with a *sql.Tx participate in the
// caller's write transaction; the others read committed data directly.
type Repo struct {
	DB *sql.DB
}

var ErrNotFound = domain.ErrEntityNotFound

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

func notFound(kind, id string) error {
	return domain.Errorf(domain.ErrEntityNotFound, "%s %s", kind, id)
}

// conflictOnStale turns a zero-row versioned update into a concurrent modification.
func conflictOnStale(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.Errorf(domain.ErrConcurrentModification, "%s %s was modified by another request", kind, id)
	}
	return nil
}

func requireDeleted(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound(kind, id)
	}
	return nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// cursorClause appends keyset pagination over (created_at, id) descending.
func cursorClause(clauses []string, args []any, createdAt, id string) ([]string, []any) {
	if createdAt != "" && id != "" {
		clauses = append(clauses, "(created_at < ? OR (created_at = ? AND id < ?))")
		args = append(args, createdAt, createdAt, id)
	}
	return clauses, args
}

func whereClause(clauses []string) string {
	if len(clauses) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(clauses, " AND ")
}
