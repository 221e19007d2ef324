// Package artpieces provides the SQL-backed art piece repository, including
// the candidate query used by distribution.
package artpieces

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/dmitrijs2005/omnivore/internal/common"
	"github.com/dmitrijs2005/omnivore/internal/dbx"
	"github.com/dmitrijs2005/omnivore/internal/server/models"
	"github.com/google/uuid"
)

// MaxDeleteReason bounds the stored delete reason, in characters.
const MaxDeleteReason = 200

const pieceColumns = `id, public_id, user_id, artist_name, piece_name, piece_description, link,
		approved, welcome_eligible, welcome_weight, is_deleted, deleted_at, deleted_by, delete_reason,
		created_at, updated_at`

// PostgresRepository implements art piece storage over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPiece(row scanner) (*models.ArtPiece, error) {
	p := &models.ArtPiece{}
	var (
		link, deletedBy sql.NullString
		deletedAt       sql.NullTime
	)
	if err := row.Scan(&p.ID, &p.PublicID, &p.OwnerID, &p.ArtistName, &p.PieceName, &p.PieceDescription, &link,
		&p.Approved, &p.WelcomeEligible, &p.WelcomeWeight, &p.IsDeleted, &deletedAt, &deletedBy, &p.DeleteReason,
		&p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Link = dbx.StringPtr(link)
	p.DeletedBy = dbx.StringPtr(deletedBy)
	p.DeletedAt = dbx.TimePtr(deletedAt)
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, nil
}

// Create inserts the piece, assigning ID and PublicID when empty.
func (r *PostgresRepository) Create(ctx context.Context, piece *models.ArtPiece) (*models.ArtPiece, error) {
	if piece.ID == "" {
		piece.ID = uuid.NewString()
	}
	if piece.PublicID == "" {
		piece.PublicID = uuid.NewString()
	}
	if piece.CreatedAt.IsZero() {
		piece.CreatedAt = time.Now().UTC()
	}
	if piece.UpdatedAt.IsZero() {
		piece.UpdatedAt = piece.CreatedAt
	}

	query := `
		INSERT INTO art_pieces (id, public_id, user_id, artist_name, piece_name, piece_description, link,
			approved, welcome_eligible, welcome_weight, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.db.ExecContext(ctx, query,
		piece.ID, piece.PublicID, piece.OwnerID, piece.ArtistName, piece.PieceName, piece.PieceDescription, piece.Link,
		piece.Approved, piece.WelcomeEligible, piece.WelcomeWeight, piece.CreatedAt, piece.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return piece, nil
}

func (r *PostgresRepository) get(ctx context.Context, column, value string) (*models.ArtPiece, error) {
	query := `SELECT ` + pieceColumns + ` FROM art_pieces WHERE ` + column + ` = $1`

	p, err := scanPiece(r.db.QueryRowContext(ctx, query, value))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return p, nil
}

// GetByID returns the piece including soft-deleted ones.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.ArtPiece, error) {
	return r.get(ctx, "id", id)
}

// GetByPublicID returns the piece including soft-deleted ones.
func (r *PostgresRepository) GetByPublicID(ctx context.Context, publicID string) (*models.ArtPiece, error) {
	return r.get(ctx, "public_id", publicID)
}

// ListByOwner returns the owner's pieces that are not deleted, newest first.
func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.ArtPiece, error) {
	query := `SELECT ` + pieceColumns + ` FROM art_pieces
		WHERE user_id = $1 AND is_deleted = FALSE
		ORDER BY created_at DESC, id`

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.ArtPiece
	for rows.Next() {
		p, err := scanPiece(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Eligible returns the pieces userID may still receive: approved, not deleted,
// owned by someone else and never sent to the user before. welcomeOnly keeps
// only welcome-eligible pieces.
func (r *PostgresRepository) Eligible(ctx context.Context, userID string, welcomeOnly bool) ([]models.Candidate, error) {
	query := `
		SELECT p.id, p.welcome_weight FROM art_pieces p
		WHERE p.approved = TRUE AND p.is_deleted = FALSE AND p.user_id <> $1
		  AND NOT EXISTS (
			SELECT 1 FROM sent_art_pieces s WHERE s.user_id = $2 AND s.art_piece_id = p.id
		  )`
	if welcomeOnly {
		query += `
		  AND p.welcome_eligible = TRUE`
	}
	query += `
		ORDER BY p.id`

	rows, err := r.db.QueryContext(ctx, query, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to select candidates: %w", err)
	}
	defer rows.Close()

	var result []models.Candidate
	for rows.Next() {
		var c models.Candidate
		if err := rows.Scan(&c.ID, &c.WelcomeWeight); err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// SoftDelete hides the piece from everyone and withdraws its approval.
// Update stores the editable fields of a piece that is not deleted.
func (r *PostgresRepository) Update(ctx context.Context, piece *models.ArtPiece) error {
	query := `
		UPDATE art_pieces
		SET artist_name = $1, piece_name = $2, piece_description = $3, link = $4, updated_at = $5
		WHERE id = $6 AND is_deleted = FALSE
	`
	return r.execOne(ctx, query,
		piece.ArtistName, piece.PieceName, piece.PieceDescription, piece.Link, piece.UpdatedAt, piece.ID)
}

func (r *PostgresRepository) SoftDelete(ctx context.Context, id, deletedBy, reason string, at time.Time) error {
	if utf8.RuneCountInString(reason) > MaxDeleteReason {
		reason = string([]rune(reason)[:MaxDeleteReason])
	}

	query := `
		UPDATE art_pieces
		SET is_deleted = TRUE, approved = FALSE, deleted_at = $1, deleted_by = $2, delete_reason = $3, updated_at = $4
		WHERE id = $5
	`
	var by *string
	if deletedBy != "" {
		by = &deletedBy
	}
	return r.execOne(ctx, query, at, by, reason, at, id)
}

// Restore clears the delete markers. Approval is left as it is.
func (r *PostgresRepository) Restore(ctx context.Context, id string, at time.Time) error {
	query := `
		UPDATE art_pieces
		SET is_deleted = FALSE, deleted_at = NULL, deleted_by = NULL, delete_reason = '', updated_at = $1
		WHERE id = $2
	`
	return r.execOne(ctx, query, at, id)
}

func (r *PostgresRepository) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return common.ErrorNotFound
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}
