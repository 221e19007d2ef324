package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/dmitrijs2005/omnivore/internal/common"
	"github.com/dmitrijs2005/omnivore/internal/dbx"
	"github.com/dmitrijs2005/omnivore/internal/server/dispatch"
	"github.com/dmitrijs2005/omnivore/internal/server/models"
	"github.com/dmitrijs2005/omnivore/internal/server/repositories/repomanager"
)

// ReadRetention is how long read notifications stay in the inbox.
const ReadRetention = 14 * 24 * time.Hour

// Inbox is a user's notifications, newest first within each list.
type Inbox struct {
	Unread []*models.Notification `json:"unread"`
	Read   []*models.Notification `json:"read"`
}

type NotificationService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewNotificationService(db *sql.DB, rm repomanager.RepositoryManager) *NotificationService {
	return &NotificationService{db: db, repomanager: rm}
}

func (s *NotificationService) Inbox(ctx context.Context, userID string) (*Inbox, error) {
	repo := s.repomanager.Notifications(s.db)

	unread, err := repo.ListUnread(ctx, userID)
	if err != nil {
		return nil, err
	}
	read, err := repo.ListReadSince(ctx, userID, clock().Add(-ReadRetention))
	if err != nil {
		return nil, err
	}
	return &Inbox{Unread: unread, Read: read}, nil
}

// Open marks the notification read and returns where it leads.
// Notifications of other users are common.ErrorNotFound.
func (s *NotificationService) Open(ctx context.Context, userID, notificationID string) (dispatch.Target, error) {
	var target dispatch.Target

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Notifications(tx)

		n, err := repo.GetForRecipient(ctx, notificationID, userID)
		if err != nil {
			return err
		}
		if !n.IsRead {
			if err := repo.MarkRead(ctx, n.ID, userID); err != nil {
				return err
			}
		}

		var publicID string
		if n.ArtPieceID != nil {
			piece, err := s.repomanager.ArtPieces(tx).GetByID(ctx, *n.ArtPieceID)
			switch {
			case err == nil && !piece.IsDeleted:
				publicID = piece.PublicID
			case err != nil && !errors.Is(err, common.ErrorNotFound):
				return err
			}
		}
		target = dispatch.TargetFor(n, publicID)
		return nil
	})
	if err != nil {
		return dispatch.Target{}, err
	}
	return target, nil
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	return s.repomanager.Notifications(s.db).MarkAllRead(ctx, userID)
}
