package likes

import (
	"context"

	"github.com/dmitrijs2005/omnivore/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, like *models.Like) (bool, error)
	Delete(ctx context.Context, userID, pieceID string) (bool, error)
	Count(ctx context.Context, pieceID string) (int, error)
	LikedPieceIDs(ctx context.Context, userID string) (map[string]bool, error)
	ListLikers(ctx context.Context, pieceID string) ([]*models.User, error)
}
