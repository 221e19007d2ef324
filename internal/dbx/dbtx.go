// Package dbx provides the DB plumbing shared by repositories. DBTX is the
// minimal interface implemented by both *sql.DB and *sql.Tx, and WithTx runs a
// function inside a transaction. Dialect binds a DBTX to PostgreSQL or SQLite:
// repositories write PostgreSQL queries once and Bind rewrites them for SQLite.
// Dialect.DSN adds the SQLite connection parameters writers rely on, and
// IsUniqueViolation recognizes duplicate-key errors from either driver.
package dbx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/multierr"
)

// DBTX is the subset of database/sql used by our repos.
// Both *sql.DB and *sql.Tx satisfy this interface.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTx runs fn inside a transaction on db. It commits when fn returns nil
// and rolls back when fn fails or panics; panics are rethrown after the
// rollback. An error from fn is returned as is, joined with the rollback
// error if the rollback also failed.
//
// Services run each operation in one call so it is all-or-nothing:
//
//	err := dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
//	    piece, err := rm.ArtPieces(tx).GetByPublicID(ctx, publicID)
//	    if err != nil {
//	        return err
//	    }
//	    return rm.ArtPieces(tx).SoftDelete(ctx, piece.ID, ownerID, reason, now)
//	})
func WithTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(ctx context.Context, tx DBTX) error) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = multierr.Append(err, fmt.Errorf("rollback tx: %w", rbErr))
			}
			return
		}
		if cErr := tx.Commit(); cErr != nil {
			err = fmt.Errorf("commit tx: %w", cErr)
		}
	}()

	return fn(ctx, tx)
}
