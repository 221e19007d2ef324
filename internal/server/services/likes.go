package services

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/omnivore/internal/common"
	"github.com/dmitrijs2005/omnivore/internal/dbx"
	"github.com/dmitrijs2005/omnivore/internal/logging"
	"github.com/dmitrijs2005/omnivore/internal/server/dispatch"
	"github.com/dmitrijs2005/omnivore/internal/server/models"
	"github.com/dmitrijs2005/omnivore/internal/server/repositories/repomanager"
)

// LikeState is the viewer's like after a toggle and the piece's total.
type LikeState struct {
	Liked bool `json:"liked"`
	Count int  `json:"count"`
}

type LikeService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	notifier    Notifier
	logger      logging.Logger
}

func NewLikeService(db *sql.DB, rm repomanager.RepositoryManager, notifier Notifier, logger logging.Logger) *LikeService {
	return &LikeService{
		db:          db,
		repomanager: rm,
		notifier:    notifier,
		logger:      logger.With("module", "likes"),
	}
}

// ToggleLike likes the piece, or removes the like if there is one. Only the
// owner and recipients may like; others get common.ErrorNotFound.
func (s *LikeService) ToggleLike(ctx context.Context, userID, piecePublicID string) (LikeState, error) {
	var (
		state   LikeState
		piece   *models.ArtPiece
		created bool
	)

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		piece, err = livePiece(ctx, s.repomanager, tx, piecePublicID)
		if err != nil {
			return err
		}
		ok, err := canView(ctx, s.repomanager, tx, userID, piece)
		if err != nil {
			return err
		}
		if !ok {
			return common.ErrorNotFound
		}

		likes := s.repomanager.Likes(tx)
		removed, err := likes.Delete(ctx, userID, piece.ID)
		if err != nil {
			return err
		}
		if !removed {
			created, err = likes.Create(ctx, &models.Like{UserID: userID, ArtPieceID: piece.ID, CreatedAt: clock()})
			if err != nil {
				return err
			}
		}
		state.Liked = !removed

		state.Count, err = likes.Count(ctx, piece.ID)
		return err
	})
	if err != nil {
		return LikeState{}, err
	}

	if created && userID != piece.OwnerID {
		liker, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
		if err != nil {
			s.logger.Error(ctx, "load liker", "user_id", userID, "error", err)
			return state, nil
		}
		notify(ctx, s.notifier, s.logger, dispatch.LikeEvent{Liker: liker, Piece: piece})
	}
	return state, nil
}

// Likers lists who liked one of the owner's pieces.
func (s *LikeService) Likers(ctx context.Context, ownerID, piecePublicID string) ([]*models.User, error) {
	piece, err := livePiece(ctx, s.repomanager, s.db, piecePublicID)
	if err != nil {
		return nil, err
	}
	if piece.OwnerID != ownerID {
		return nil, common.ErrorNotFound
	}
	return s.repomanager.Likes(s.db).ListLikers(ctx, piece.ID)
}
