package services

import (
	"context"
	"database/sql"
	"time"

	"github.com/dmitrijs2005/omnivore/internal/common"
	"github.com/dmitrijs2005/omnivore/internal/dbx"
	"github.com/dmitrijs2005/omnivore/internal/logging"
	"github.com/dmitrijs2005/omnivore/internal/server/models"
	"github.com/dmitrijs2005/omnivore/internal/server/repositories/repomanager"
)

// ReceivedItem is one piece in a user's received gallery.
type ReceivedItem struct {
	Piece  *models.ArtPiece  `json:"piece"`
	Owner  string            `json:"owner"`
	Source models.SentSource `json:"source"`
	SentAt time.Time         `json:"sent_at"`
	IsNew  bool              `json:"is_new"`
	Liked  bool              `json:"liked"`
}

// GalleryService serves the received and owned art lists.
type GalleryService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	newWindow   time.Duration
	logger      logging.Logger
}

func NewGalleryService(db *sql.DB, rm repomanager.RepositoryManager, newWindow time.Duration, logger logging.Logger) *GalleryService {
	if newWindow <= 0 {
		newWindow = 30 * 24 * time.Hour
	}
	return &GalleryService{
		db:          db,
		repomanager: rm,
		newWindow:   newWindow,
		logger:      logger.With("module", "gallery"),
	}
}

// Received lists what the user received, newest first. Deleted pieces are
// left out.
func (s *GalleryService) Received(ctx context.Context, userID string) ([]ReceivedItem, error) {
	records, err := s.repomanager.Sent(s.db).ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	liked, err := s.repomanager.Likes(s.db).LikedPieceIDs(ctx, userID)
	if err != nil {
		return nil, err
	}

	pieces := s.repomanager.ArtPieces(s.db)
	users := s.repomanager.Users(s.db)
	owners := map[string]string{}
	now := clock()

	items := make([]ReceivedItem, 0, len(records))
	for _, rec := range records {
		piece, err := pieces.GetByID(ctx, rec.ArtPieceID)
		if err != nil {
			return nil, err
		}
		if piece.IsDeleted {
			continue
		}

		owner, ok := owners[piece.OwnerID]
		if !ok {
			u, err := users.GetByID(ctx, piece.OwnerID)
			if err != nil {
				return nil, err
			}
			owner = u.FullName()
			owners[piece.OwnerID] = owner
		}

		items = append(items, ReceivedItem{
			Piece:  piece,
			Owner:  owner,
			Source: rec.Source,
			SentAt: rec.SentAt,
			IsNew:  rec.IsNew(now, s.newWindow),
			Liked:  liked[piece.ID],
		})
	}
	return items, nil
}

// OwnedPieces lists the owner's pieces that are not deleted, newest first.
func (s *GalleryService) OwnedPieces(ctx context.Context, ownerID string) ([]*models.ArtPiece, error) {
	return s.repomanager.ArtPieces(s.db).ListByOwner(ctx, ownerID)
}

// SoftDeletePiece hides one of the owner's pieces. Pieces of other users,
// and already deleted ones, are common.ErrorNotFound.
func (s *GalleryService) SoftDeletePiece(ctx context.Context, ownerID, publicID, reason string) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		pieces := s.repomanager.ArtPieces(tx)

		piece, err := pieces.GetByPublicID(ctx, publicID)
		if err != nil {
			return err
		}
		if piece.OwnerID != ownerID || piece.IsDeleted {
			return common.ErrorNotFound
		}

		if err := pieces.SoftDelete(ctx, piece.ID, ownerID, reason, clock()); err != nil {
			return err
		}
		s.logger.Info(ctx, "piece deleted", "piece", piece.ID, "owner", ownerID)
		return nil
	})
}

// UpdatePiece edits one of the owner's pieces. Input is validated like a
// submission; approval and distribution history are kept. Pieces of other
// users, and deleted ones, are common.ErrorNotFound.
func (s *GalleryService) UpdatePiece(ctx context.Context, ownerID, publicID string, in NewPiece) (*models.ArtPiece, error) {
	in, err := validatePiece(in)
	if err != nil {
		return nil, err
	}

	var piece *models.ArtPiece
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		pieces := s.repomanager.ArtPieces(tx)

		var err error
		piece, err = pieces.GetByPublicID(ctx, publicID)
		if err != nil {
			return err
		}
		if piece.OwnerID != ownerID || piece.IsDeleted {
			return common.ErrorNotFound
		}

		piece.ArtistName = in.ArtistName
		piece.PieceName = in.PieceName
		piece.PieceDescription = in.PieceDescription
		piece.Link = nil
		if in.Link != "" {
			piece.Link = &in.Link
		}
		piece.UpdatedAt = clock()
		return pieces.Update(ctx, piece)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "piece updated", "piece", piece.ID, "owner", ownerID)
	return piece, nil
}

// RestorePiece undoes the owner's own soft delete. The piece comes back
// unapproved and is not distributed again until it is approved. Pieces the
// owner does not have deleted are common.ErrorNotFound; pieces removed by
// someone else stay removed with common.ErrorUnauthorized.
func (s *GalleryService) RestorePiece(ctx context.Context, ownerID, publicID string) (*models.ArtPiece, error) {
	var piece *models.ArtPiece
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		pieces := s.repomanager.ArtPieces(tx)

		var err error
		piece, err = pieces.GetByPublicID(ctx, publicID)
		if err != nil {
			return err
		}
		if piece.OwnerID != ownerID || !piece.IsDeleted {
			return common.ErrorNotFound
		}
		if piece.DeletedBy != nil && *piece.DeletedBy != ownerID {
			return common.ErrorUnauthorized
		}

		if err := pieces.Restore(ctx, piece.ID, clock()); err != nil {
			return err
		}
		piece, err = pieces.GetByID(ctx, piece.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "piece restored", "piece", piece.ID, "owner", ownerID)
	return piece, nil
}
