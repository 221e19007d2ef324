// Package sent stores SentRecords: the per-user grants of art pieces that
// make a piece ineligible for that user forever.
package sent

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/omnivore/internal/common"
	"github.com/dmitrijs2005/omnivore/internal/dbx"
	"github.com/dmitrijs2005/omnivore/internal/server/models"
	"github.com/google/uuid"
)

const sentColumns = `id, user_id, art_piece_id, source, sent_at, seen_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*models.SentRecord, error) {
	rec := &models.SentRecord{}
	var seenAt sql.NullTime
	if err := row.Scan(&rec.ID, &rec.UserID, &rec.ArtPieceID, &rec.Source, &rec.SentAt, &seenAt); err != nil {
		return nil, err
	}
	rec.SentAt = rec.SentAt.UTC()
	rec.SeenAt = dbx.TimePtr(seenAt)
	return rec, nil
}

// Create inserts the record unless (user, piece) already exists. It reports
// whether a row was inserted; an existing row is not an error.
func (r *PostgresRepository) Create(ctx context.Context, rec *models.SentRecord) (bool, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if !rec.Source.Valid() {
		return false, fmt.Errorf("invalid source %q: %w", rec.Source, common.ErrorValidation)
	}

	query := `
		INSERT INTO sent_art_pieces (id, user_id, art_piece_id, source, sent_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, art_piece_id) DO NOTHING
	`
	res, err := r.db.ExecContext(ctx, query, rec.ID, rec.UserID, rec.ArtPieceID, string(rec.Source), rec.SentAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected error: %w", err)
	}
	return n == 1, nil
}

func (r *PostgresRepository) Get(ctx context.Context, userID, pieceID string) (*models.SentRecord, error) {
	query := `SELECT ` + sentColumns + ` FROM sent_art_pieces WHERE user_id = $1 AND art_piece_id = $2`

	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, userID, pieceID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return rec, nil
}

// ListForUser returns everything the user received, newest first.
func (r *PostgresRepository) ListForUser(ctx context.Context, userID string) ([]*models.SentRecord, error) {
	query := `SELECT ` + sentColumns + ` FROM sent_art_pieces WHERE user_id = $1 ORDER BY sent_at DESC, id`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.SentRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// MarkSeen stamps seen_at once; later calls keep the first timestamp.
func (r *PostgresRepository) MarkSeen(ctx context.Context, userID, pieceID string, at time.Time) error {
	query := `UPDATE sent_art_pieces SET seen_at = $1 WHERE user_id = $2 AND art_piece_id = $3 AND seen_at IS NULL`

	if _, err := r.db.ExecContext(ctx, query, at, userID, pieceID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
