// Package repomanager provides a concrete RepositoryManager for the supported
// SQL dialects, wiring together repository constructors and database
// migrations (via goose).
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/omnivore/internal/dbx"
	"github.com/dmitrijs2005/omnivore/internal/logging"
	"github.com/dmitrijs2005/omnivore/internal/server/migrations"
	"github.com/dmitrijs2005/omnivore/internal/server/repositories/artpieces"
	"github.com/dmitrijs2005/omnivore/internal/server/repositories/comments"
	"github.com/dmitrijs2005/omnivore/internal/server/repositories/grants"
	"github.com/dmitrijs2005/omnivore/internal/server/repositories/likes"
	"github.com/dmitrijs2005/omnivore/internal/server/repositories/notifications"
	"github.com/dmitrijs2005/omnivore/internal/server/repositories/sent"
	"github.com/dmitrijs2005/omnivore/internal/server/repositories/users"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

// SQLRepositoryManager vends repository implementations bound to a DBTX,
// rewriting their queries for the configured dialect.
type SQLRepositoryManager struct {
	dialect dbx.Dialect
	logger  logging.Logger
}

// Option configures a SQLRepositoryManager.
type Option func(*SQLRepositoryManager)

// WithLogger sends migration output to l instead of discarding it.
func WithLogger(l logging.Logger) Option {
	return func(m *SQLRepositoryManager) { m.logger = l }
}

// Users returns a users.Repository bound to the provided DBTX.
func (m *SQLRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewPostgresRepository(m.dialect.Bind(db))
}

// ArtPieces returns an artpieces.Repository bound to the provided DBTX.
func (m *SQLRepositoryManager) ArtPieces(db dbx.DBTX) artpieces.Repository {
	return artpieces.NewPostgresRepository(m.dialect.Bind(db))
}

// Sent returns a sent.Repository bound to the provided DBTX.
func (m *SQLRepositoryManager) Sent(db dbx.DBTX) sent.Repository {
	return sent.NewPostgresRepository(m.dialect.Bind(db))
}

// Grants returns a grants.Repository bound to the provided DBTX.
func (m *SQLRepositoryManager) Grants(db dbx.DBTX) grants.Repository {
	return grants.NewPostgresRepository(m.dialect.Bind(db))
}

// Comments returns a comments.Repository bound to the provided DBTX.
func (m *SQLRepositoryManager) Comments(db dbx.DBTX) comments.Repository {
	return comments.NewPostgresRepository(m.dialect.Bind(db))
}

// Likes returns a likes.Repository bound to the provided DBTX.
func (m *SQLRepositoryManager) Likes(db dbx.DBTX) likes.Repository {
	return likes.NewPostgresRepository(m.dialect.Bind(db))
}

// Notifications returns a notifications.Repository bound to the provided DBTX.
func (m *SQLRepositoryManager) Notifications(db dbx.DBTX) notifications.Repository {
	return notifications.NewPostgresRepository(m.dialect.Bind(db))
}

// Dialect reports the backend the manager was built for.
func (m *SQLRepositoryManager) Dialect() dbx.Dialect {
	return m.dialect
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations of the dialect and
// runs them against the provided database connection.
func (m *SQLRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	logger := m.logger
	if logger == nil {
		logger = logging.Discard()
	}
	goose.SetLogger(&gooseLogger{logger: logger})
	if err := goose.SetDialect(m.dialect.GooseDialect()); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, db, migrations.Dir(m.dialect.GooseDialect())); err != nil {
		return err
	}
	return nil
}

// NewRepositoryManager constructs a RepositoryManager for the dialect.
func NewRepositoryManager(dialect dbx.Dialect, opts ...Option) (RepositoryManager, error) {
	if _, err := dbx.ParseDialect(string(dialect)); err != nil {
		return nil, err
	}
	m := &SQLRepositoryManager{dialect: dialect, logger: logging.Discard()}
	for _, o := range opts {
		o(m)
	}
	return m, nil
}
