package dbx

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
)

// Dialect names the SQL backend a repository talks to. Repository queries are
// written for PostgreSQL; other dialects rewrite them on the way to the driver.
type Dialect string

const (
	// Postgres is the production backend, reached through pgx's database/sql driver.
	Postgres Dialect = "pgx"
	// SQLite is used for local development and tests (modernc.org/sqlite).
	SQLite Dialect = "sqlite"
)

// ParseDialect maps a configured driver name to a Dialect.
func ParseDialect(name string) (Dialect, error) {
	switch name {
	case "pgx", "postgres", "postgresql":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	}
	return "", fmt.Errorf("unsupported database driver %q", name)
}

// DriverName is the database/sql driver to open.
func (d Dialect) DriverName() string {
	return string(d)
}

// GooseDialect is the dialect name goose expects for this backend.
func (d Dialect) GooseDialect() string {
	if d == SQLite {
		return "sqlite3"
	}
	return "postgres"
}

// DSN returns dsn with the connection parameters the dialect needs. SQLite
// writers must take the database lock at BEGIN and wait for each other, so
// _txlock=immediate and a busy timeout are added unless already present.
// Other dialects return dsn unchanged.
func (d Dialect) DSN(dsn string) string {
	if d != SQLite {
		return dsn
	}
	for _, p := range []struct{ key, param string }{
		{"_txlock=", "_txlock=immediate"},
		{"busy_timeout", "_pragma=busy_timeout(10000)"},
	} {
		if strings.Contains(dsn, p.key) {
			continue
		}
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + p.param
	}
	return dsn
}

var (
	placeholderRe = regexp.MustCompile(`\$\d+`)
	forUpdateRe   = regexp.MustCompile(`(?i)\s+FOR\s+UPDATE\b`)
)

// Rewrite converts a PostgreSQL query to the dialect. For SQLite, $n
// placeholders become ? and row locks are dropped; SQLite serializes writers
// at BEGIN (_txlock=immediate), so the lock is implied.
//
// Placeholders must appear once each, in ascending order.
func (d Dialect) Rewrite(query string) string {
	if d != SQLite {
		return query
	}
	query = forUpdateRe.ReplaceAllString(query, "")
	return placeholderRe.ReplaceAllString(query, "?")
}

// Bind wraps db so that every query is rewritten for the dialect.
func (d Dialect) Bind(db DBTX) DBTX {
	if d != SQLite {
		return db
	}
	return &rewritingDBTX{db: db, dialect: d}
}

type rewritingDBTX struct {
	db      DBTX
	dialect Dialect
}

func (r *rewritingDBTX) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return r.db.ExecContext(ctx, r.dialect.Rewrite(query), args...)
}

func (r *rewritingDBTX) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return r.db.QueryContext(ctx, r.dialect.Rewrite(query), args...)
}

func (r *rewritingDBTX) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return r.db.QueryRowContext(ctx, r.dialect.Rewrite(query), args...)
}
