// Package comments stores thread messages. A thread is one root comment per
// (piece, sender, recipient) plus its replies; the root is guarded by a
// partial unique index.
package comments

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

const commentColumns = `c.id, c.art_piece_id, c.sender_id, c.recipient_id, c.parent_id, c.text, c.created_at, c.updated_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanComment(row scanner) (*models.Comment, error) {
	c := &models.Comment{}
	var parent sql.NullString
	if err := row.Scan(&c.ID, &c.ArtPieceID, &c.SenderID, &c.RecipientID, &parent, &c.Text, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.ParentID = dbx.StringPtr(parent)
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return c, nil
}

func prepare(c *models.Comment) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}
}

// CreateRoot inserts c as a thread root. It returns false when a root for the
// same (piece, sender, recipient) already exists; nothing is written then.
func (r *PostgresRepository) CreateRoot(ctx context.Context, c *models.Comment) (bool, error) {
	prepare(c)
	c.ParentID = nil

	query := `
		INSERT INTO comments (id, art_piece_id, sender_id, recipient_id, text, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (art_piece_id, sender_id, recipient_id) WHERE parent_id IS NULL DO NOTHING
	`
	res, err := r.db.ExecContext(ctx, query,
		c.ID, c.ArtPieceID, c.SenderID, c.RecipientID, c.Text, c.CreatedAt, c.UpdatedAt)
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

// CreateReply inserts c under c.ParentID.
func (r *PostgresRepository) CreateReply(ctx context.Context, c *models.Comment) error {
	if c.ParentID == nil {
		return fmt.Errorf("reply without parent: %w", common.ErrorValidation)
	}
	prepare(c)

	query := `
		INSERT INTO comments (id, art_piece_id, sender_id, recipient_id, parent_id, text, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		c.ID, c.ArtPieceID, c.SenderID, c.RecipientID, *c.ParentID, c.Text, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) one(ctx context.Context, query string, args ...any) (*models.Comment, error) {
	c, err := scanComment(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return c, nil
}

func (r *PostgresRepository) many(ctx context.Context, query string, args ...any) ([]*models.Comment, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Comment, error) {
	query := `SELECT ` + commentColumns + ` FROM comments c WHERE c.id = $1`
	return r.one(ctx, query, id)
}

// FindRoot returns the root of the thread sender started with recipient on the piece.
func (r *PostgresRepository) FindRoot(ctx context.Context, pieceID, senderID, recipientID string) (*models.Comment, error) {
	query := `SELECT ` + commentColumns + ` FROM comments c
		WHERE c.art_piece_id = $1 AND c.sender_id = $2 AND c.recipient_id = $3 AND c.parent_id IS NULL`
	return r.one(ctx, query, pieceID, senderID, recipientID)
}

// ListBetween returns every message exchanged by the two users on the piece,
// oldest first.
func (r *PostgresRepository) ListBetween(ctx context.Context, pieceID, userA, userB string) ([]*models.Comment, error) {
	query := `SELECT ` + commentColumns + ` FROM comments c
		WHERE c.art_piece_id = $1
		  AND ((c.sender_id = $2 AND c.recipient_id = $3) OR (c.sender_id = $4 AND c.recipient_id = $5))
		ORDER BY c.created_at, c.id`
	return r.many(ctx, query, pieceID, userA, userB, userB, userA)
}

// ListForPiece returns all comments on the piece, oldest first.
func (r *PostgresRepository) ListForPiece(ctx context.Context, pieceID string) ([]*models.Comment, error) {
	query := `SELECT ` + commentColumns + ` FROM comments c
		WHERE c.art_piece_id = $1
		ORDER BY c.created_at, c.id`
	return r.many(ctx, query, pieceID)
}

// ListForOwner returns all comments on the owner's live pieces, oldest first.
func (r *PostgresRepository) ListForOwner(ctx context.Context, ownerID string) ([]*models.Comment, error) {
	query := `SELECT ` + commentColumns + ` FROM comments c
		JOIN art_pieces p ON p.id = c.art_piece_id
		WHERE p.user_id = $1 AND p.is_deleted = FALSE
		ORDER BY c.created_at, c.id`
	return r.many(ctx, query, ownerID)
}
