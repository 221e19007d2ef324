// Package likes stores likes, at most one per (user, piece).
package likes

import (
	"context"
	"fmt"
	"time"

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

// Create inserts the like and reports whether it was new.
func (r *PostgresRepository) Create(ctx context.Context, like *models.Like) (bool, error) {
	if like.ID == "" {
		like.ID = uuid.NewString()
	}
	if like.CreatedAt.IsZero() {
		like.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO likes (id, user_id, art_piece_id, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, art_piece_id) DO NOTHING
	`
	res, err := r.db.ExecContext(ctx, query, like.ID, like.UserID, like.ArtPieceID, like.CreatedAt)
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

// Delete removes the like and reports whether there was one.
func (r *PostgresRepository) Delete(ctx context.Context, userID, pieceID string) (bool, error) {
	query := `DELETE FROM likes WHERE user_id = $1 AND art_piece_id = $2`

	res, err := r.db.ExecContext(ctx, query, userID, pieceID)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected error: %w", err)
	}
	return n > 0, nil
}

func (r *PostgresRepository) Count(ctx context.Context, pieceID string) (int, error) {
	query := `SELECT COUNT(*) FROM likes WHERE art_piece_id = $1`

	var n int
	if err := r.db.QueryRowContext(ctx, query, pieceID).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

// LikedPieceIDs returns the set of pieces the user liked.
func (r *PostgresRepository) LikedPieceIDs(ctx context.Context, userID string) (map[string]bool, error) {
	query := `SELECT art_piece_id FROM likes WHERE user_id = $1`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		result[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// ListLikers returns who liked the piece, most recent like first. Only the
// identity columns of each user are filled.
func (r *PostgresRepository) ListLikers(ctx context.Context, pieceID string) ([]*models.User, error) {
	query := `
		SELECT u.id, u.email, u.first_name, u.last_name FROM likes l
		JOIN users u ON u.id = l.user_id
		WHERE l.art_piece_id = $1
		ORDER BY l.created_at DESC, u.id
	`
	rows, err := r.db.QueryContext(ctx, query, pieceID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.User
	for rows.Next() {
		u := &models.User{}
		if err := rows.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName); err != nil {
			return nil, err
		}
		result = append(result, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
