package sent

import (
	"context"
	"time"

	"github.com/dmitrijs2005/omnivore/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, rec *models.SentRecord) (bool, error)
	Get(ctx context.Context, userID, pieceID string) (*models.SentRecord, error)
	ListForUser(ctx context.Context, userID string) ([]*models.SentRecord, error)
	MarkSeen(ctx context.Context, userID, pieceID string, at time.Time) error
}
