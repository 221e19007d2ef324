// Package storetest opens throwaway SQLite databases with the production
// schema and seeds them, for tests of packages above the repositories.
package storetest

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/omnivore/internal/dbx"
	"github.com/dmitrijs2005/omnivore/internal/logging"
	"github.com/dmitrijs2005/omnivore/internal/server/models"
	"github.com/dmitrijs2005/omnivore/internal/server/repositories/repomanager"
	"github.com/stretchr/testify/require"
)

// DSN returns a modernc SQLite DSN for a file database at path. Writers take
// the lock at BEGIN and wait for each other instead of failing.
func DSN(path string) string {
	return "file:" + path +
		"?_txlock=immediate" +
		"&_pragma=busy_timeout(10000)" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=foreign_keys(1)" +
		"&_time_format=sqlite"
}

// Open creates a migrated database in t.TempDir and closes it on cleanup.
func Open(t *testing.T) (*sql.DB, repomanager.RepositoryManager) {
	t.Helper()

	db, err := sql.Open(dbx.SQLite.DriverName(), DSN(filepath.Join(t.TempDir(), "omnivore.db")))
	require.NoError(t, err)
	db.SetMaxOpenConns(8)
	t.Cleanup(func() { _ = db.Close() })

	rm, err := repomanager.NewRepositoryManager(dbx.SQLite, repomanager.WithLogger(logging.Discard()))
	require.NoError(t, err)
	require.NoError(t, rm.RunMigrations(context.Background(), db))

	return db, rm
}

var seq atomic.Int64

// User inserts a user with default preferences. Mutate adjusts the row
// before insert.
func User(t *testing.T, db *sql.DB, rm repomanager.RepositoryManager, name string, mutate ...func(*models.User)) *models.User {
	t.Helper()
	u := &models.User{
		Email:            fmt.Sprintf("%s-%d@example.com", name, seq.Add(1)),
		FirstName:        name,
		EmailOnArtShared: true,
		EmailOnComment:   true,
		CreatedAt:        time.Now().UTC(),
	}
	for _, m := range mutate {
		m(u)
	}
	u, err := rm.Users(db).Create(context.Background(), u)
	require.NoError(t, err)
	return u
}

// Piece inserts an approved piece owned by owner. Mutate adjusts the row
// before insert.
func Piece(t *testing.T, db *sql.DB, rm repomanager.RepositoryManager, owner *models.User, name string, mutate ...func(*models.ArtPiece)) *models.ArtPiece {
	t.Helper()
	now := time.Now().UTC()
	p := &models.ArtPiece{
		OwnerID:       owner.ID,
		ArtistName:    owner.FullName(),
		PieceName:     name,
		Approved:      true,
		WelcomeWeight: 1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	for _, m := range mutate {
		m(p)
	}
	p, err := rm.ArtPieces(db).Create(context.Background(), p)
	require.NoError(t, err)
	return p
}

// Send records that piece was sent to user.
func Send(t *testing.T, db *sql.DB, rm repomanager.RepositoryManager, user *models.User, piece *models.ArtPiece, source models.SentSource) {
	t.Helper()
	_, err := rm.Sent(db).Create(context.Background(), &models.SentRecord{
		UserID: user.ID, ArtPieceID: piece.ID, Source: source, SentAt: time.Now().UTC(),
	})
	require.NoError(t, err)
}

// Count returns SELECT COUNT(*) for the query.
func Count(t *testing.T, db *sql.DB, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(query, args...).Scan(&n))
	return n
}
