package comments

import (
	"context"

	"github.com/dmitrijs2005/omnivore/internal/server/models"
)

type Repository interface {
	CreateRoot(ctx context.Context, c *models.Comment) (bool, error)
	CreateReply(ctx context.Context, c *models.Comment) error
	GetByID(ctx context.Context, id string) (*models.Comment, error)
	FindRoot(ctx context.Context, pieceID, senderID, recipientID string) (*models.Comment, error)
	ListBetween(ctx context.Context, pieceID, userA, userB string) ([]*models.Comment, error)
	ListForPiece(ctx context.Context, pieceID string) ([]*models.Comment, error)
	ListForOwner(ctx context.Context, ownerID string) ([]*models.Comment, error)
}
