package users

import (
	"context"
	"time"

	"github.com/dmitrijs2005/omnivore/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	ListForWeekly(ctx context.Context, onlyEmail string, limit int) ([]*models.User, error)
	TouchLastArtSent(ctx context.Context, id string, at time.Time) error
	SetEmailPreference(ctx context.Context, id string, kind models.NotificationKind, enabled bool) error
}
