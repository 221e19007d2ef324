// Package grants stores welcome and reciprocal grants. Each grant row is the
// serialization point for its key: callers insert it if missing and then hold
// a row lock on it until commit.
package grants

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

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// InsertWelcome creates the user's welcome grant unless one exists and
// reports whether it did.
func (r *PostgresRepository) InsertWelcome(ctx context.Context, grant *models.WelcomeGrant) (bool, error) {
	if grant.ID == "" {
		grant.ID = uuid.NewString()
	}
	if grant.CreatedAt.IsZero() {
		grant.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO welcome_grants (id, user_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO NOTHING
	`
	return r.insert(ctx, query, grant.ID, grant.UserID, grant.CreatedAt)
}

// LockWelcome reads the user's grant and locks it until the transaction ends.
func (r *PostgresRepository) LockWelcome(ctx context.Context, userID string) (*models.WelcomeGrant, error) {
	query := `
		SELECT id, user_id, sent_art_piece_id, created_at FROM welcome_grants
		WHERE user_id = $1
		FOR UPDATE
	`
	g := &models.WelcomeGrant{}
	var piece sql.NullString
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&g.ID, &g.UserID, &piece, &g.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	g.SentArtPieceID = dbx.StringPtr(piece)
	g.CreatedAt = g.CreatedAt.UTC()
	return g, nil
}

func (r *PostgresRepository) AttachWelcomePiece(ctx context.Context, grantID, pieceID string) error {
	query := `UPDATE welcome_grants SET sent_art_piece_id = $1 WHERE id = $2`
	return r.update(ctx, query, pieceID, grantID)
}

// InsertReciprocal creates the grant for the trigger piece unless one exists
// and reports whether it did.
func (r *PostgresRepository) InsertReciprocal(ctx context.Context, grant *models.ReciprocalGrant) (bool, error) {
	if grant.ID == "" {
		grant.ID = uuid.NewString()
	}
	if grant.CreatedAt.IsZero() {
		grant.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO reciprocal_grants (id, user_id, trigger_art_piece_id, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (trigger_art_piece_id) DO NOTHING
	`
	return r.insert(ctx, query, grant.ID, grant.UserID, grant.TriggerArtPieceID, grant.CreatedAt)
}

// LockReciprocal reads the grant for the trigger piece and locks it until the
// transaction ends.
func (r *PostgresRepository) LockReciprocal(ctx context.Context, triggerPieceID string) (*models.ReciprocalGrant, error) {
	query := `
		SELECT id, user_id, trigger_art_piece_id, sent_art_piece_id, created_at FROM reciprocal_grants
		WHERE trigger_art_piece_id = $1
		FOR UPDATE
	`
	g := &models.ReciprocalGrant{}
	var piece sql.NullString
	err := r.db.QueryRowContext(ctx, query, triggerPieceID).Scan(&g.ID, &g.UserID, &g.TriggerArtPieceID, &piece, &g.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	g.SentArtPieceID = dbx.StringPtr(piece)
	g.CreatedAt = g.CreatedAt.UTC()
	return g, nil
}

func (r *PostgresRepository) AttachReciprocalPiece(ctx context.Context, grantID, pieceID string) error {
	query := `UPDATE reciprocal_grants SET sent_art_piece_id = $1 WHERE id = $2`
	return r.update(ctx, query, pieceID, grantID)
}

func (r *PostgresRepository) insert(ctx context.Context, query string, args ...any) (bool, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
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

func (r *PostgresRepository) update(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n != 1 {
		return common.ErrorNotFound
	}
	return nil
}
