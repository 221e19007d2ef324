package notifications

import (
	"context"
	"time"

	"github.com/dmitrijs2005/omnivore/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, n *models.Notification) (*models.Notification, error)
	FindSharedArt(ctx context.Context, recipientID, senderID, pieceID string) (*models.Notification, error)
	GetForRecipient(ctx context.Context, id, recipientID string) (*models.Notification, error)
	ListUnread(ctx context.Context, recipientID string) ([]*models.Notification, error)
	ListReadSince(ctx context.Context, recipientID string, since time.Time) ([]*models.Notification, error)
	MarkRead(ctx context.Context, id, recipientID string) error
	MarkAllRead(ctx context.Context, recipientID string) (int64, error)
}
