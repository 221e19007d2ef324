// Package notifications stores the in-app inbox.
package notifications

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

const notificationColumns = `id, recipient_id, sender_id, kind, art_piece_id, comment_id, is_read, message, created_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNotification(row scanner) (*models.Notification, error) {
	n := &models.Notification{}
	var piece, comment sql.NullString
	if err := row.Scan(&n.ID, &n.RecipientID, &n.SenderID, &n.Kind, &piece, &comment, &n.IsRead, &n.Message, &n.CreatedAt); err != nil {
		return nil, err
	}
	n.ArtPieceID = dbx.StringPtr(piece)
	n.CommentID = dbx.StringPtr(comment)
	n.CreatedAt = n.CreatedAt.UTC()
	return n, nil
}

func (r *PostgresRepository) Create(ctx context.Context, n *models.Notification) (*models.Notification, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO notifications (id, recipient_id, sender_id, kind, art_piece_id, comment_id, is_read, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.ExecContext(ctx, query,
		n.ID, n.RecipientID, n.SenderID, string(n.Kind), n.ArtPieceID, n.CommentID, n.IsRead, n.Message, n.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) one(ctx context.Context, query string, args ...any) (*models.Notification, error) {
	n, err := scanNotification(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) many(ctx context.Context, query string, args ...any) ([]*models.Notification, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// FindSharedArt returns the earliest shared_art notification for the triple.
func (r *PostgresRepository) FindSharedArt(ctx context.Context, recipientID, senderID, pieceID string) (*models.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications
		WHERE recipient_id = $1 AND sender_id = $2 AND art_piece_id = $3 AND kind = 'shared_art'
		ORDER BY created_at, id
		LIMIT 1`
	return r.one(ctx, query, recipientID, senderID, pieceID)
}

// GetForRecipient returns the notification only if it belongs to recipientID.
func (r *PostgresRepository) GetForRecipient(ctx context.Context, id, recipientID string) (*models.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE id = $1 AND recipient_id = $2`
	return r.one(ctx, query, id, recipientID)
}

// ListUnread returns unread notifications, newest first.
func (r *PostgresRepository) ListUnread(ctx context.Context, recipientID string) ([]*models.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications
		WHERE recipient_id = $1 AND is_read = FALSE
		ORDER BY created_at DESC, id`
	return r.many(ctx, query, recipientID)
}

// ListReadSince returns read notifications created at or after since, newest first.
func (r *PostgresRepository) ListReadSince(ctx context.Context, recipientID string, since time.Time) ([]*models.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications
		WHERE recipient_id = $1 AND is_read = TRUE AND created_at >= $2
		ORDER BY created_at DESC, id`
	return r.many(ctx, query, recipientID, since)
}

func (r *PostgresRepository) MarkRead(ctx context.Context, id, recipientID string) error {
	query := `UPDATE notifications SET is_read = TRUE WHERE id = $1 AND recipient_id = $2`

	res, err := r.db.ExecContext(ctx, query, id, recipientID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

// MarkAllRead returns the number of notifications that changed state.
func (r *PostgresRepository) MarkAllRead(ctx context.Context, recipientID string) (int64, error) {
	query := `UPDATE notifications SET is_read = TRUE WHERE recipient_id = $1 AND is_read = FALSE`

	res, err := r.db.ExecContext(ctx, query, recipientID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}
