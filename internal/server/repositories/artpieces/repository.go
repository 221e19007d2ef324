package artpieces

import (
	"context"
	"time"

	"github.com/dmitrijs2005/omnivore/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, piece *models.ArtPiece) (*models.ArtPiece, error)
	GetByID(ctx context.Context, id string) (*models.ArtPiece, error)
	GetByPublicID(ctx context.Context, publicID string) (*models.ArtPiece, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*models.ArtPiece, error)
	Eligible(ctx context.Context, userID string, welcomeOnly bool) ([]models.Candidate, error)
	Update(ctx context.Context, piece *models.ArtPiece) error
	SoftDelete(ctx context.Context, id, deletedBy, reason string, at time.Time) error
	Restore(ctx context.Context, id string, at time.Time) error
}
