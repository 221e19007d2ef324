package grants

import (
	"context"

	"github.com/dmitrijs2005/omnivore/internal/server/models"
)

// Repository keeps the welcome and reciprocal grant rows. Rows are created
// once, locked for the rest of the transaction and updated at most once.
type Repository interface {
	InsertWelcome(ctx context.Context, grant *models.WelcomeGrant) (bool, error)
	LockWelcome(ctx context.Context, userID string) (*models.WelcomeGrant, error)
	AttachWelcomePiece(ctx context.Context, grantID, pieceID string) error

	InsertReciprocal(ctx context.Context, grant *models.ReciprocalGrant) (bool, error)
	LockReciprocal(ctx context.Context, triggerPieceID string) (*models.ReciprocalGrant, error)
	AttachReciprocalPiece(ctx context.Context, grantID, pieceID string) error
}
