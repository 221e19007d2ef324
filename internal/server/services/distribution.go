package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/dmitrijs2005/omnivore/internal/common"
	"github.com/dmitrijs2005/omnivore/internal/dbx"
	"github.com/dmitrijs2005/omnivore/internal/logging"
	"github.com/dmitrijs2005/omnivore/internal/server/dispatch"
	"github.com/dmitrijs2005/omnivore/internal/server/models"
	"github.com/dmitrijs2005/omnivore/internal/server/repositories/repomanager"
)

// Field limits of a submitted piece, in characters.
const (
	MaxArtistName       = 200
	MaxPieceName        = 300
	MaxPieceDescription = 5000
	MaxLink             = 2048
)

// ShareOptions tune ShareWeekly.
type ShareOptions struct {
	// DryRun selects a piece without recording or announcing it.
	DryRun bool
}

// NewPiece is a submission.
type NewPiece struct {
	ArtistName       string `json:"artist_name"`
	PieceName        string `json:"piece_name"`
	PieceDescription string `json:"piece_description"`
	Link             string `json:"link"`
}

// SubmitResult is the stored piece and the reciprocal gift, if any.
type SubmitResult struct {
	Piece  *models.ArtPiece `json:"piece"`
	Gift   *models.ArtPiece `json:"gift,omitempty"`
	Paused bool             `json:"paused"`
}

// WelcomeResult is the welcome gift, if any. Paused is informational.
type WelcomeResult struct {
	Piece   *models.ArtPiece `json:"piece,omitempty"`
	Created bool             `json:"created"`
	Paused  bool             `json:"paused"`
}

// DistributionService decides which pieces reach which users.
type DistributionService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	ledger      *Ledger
	selector    *Selector
	notifier    Notifier
	logger      logging.Logger
}

func NewDistributionService(db *sql.DB, rm repomanager.RepositoryManager, ledger *Ledger, selector *Selector,
	notifier Notifier, logger logging.Logger) *DistributionService {
	return &DistributionService{
		db:          db,
		repomanager: rm,
		ledger:      ledger,
		selector:    selector,
		notifier:    notifier,
		logger:      logger.With("module", "distribution"),
	}
}

// ShareWeekly sends the user one random piece they have never received.
// It returns nil when the user is paused or nothing is eligible.
func (s *DistributionService) ShareWeekly(ctx context.Context, userID string, opts ShareOptions) (*models.ArtPiece, error) {
	var (
		user    *models.User
		piece   *models.ArtPiece
		created bool
	)

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		user, err = s.repomanager.Users(tx).GetByID(ctx, userID)
		if err != nil {
			return err
		}
		if user.ReceiveArtPaused {
			return nil
		}

		candidates, err := s.ledger.EligiblePieces(ctx, tx, user.ID, false)
		if err != nil {
			return err
		}
		choice, ok := s.selector.ChooseUniform(candidates)
		if !ok {
			s.logger.Info(ctx, "no eligible art", "user_id", user.ID)
			return nil
		}

		piece, err = s.repomanager.ArtPieces(tx).GetByID(ctx, choice.ID)
		if err != nil {
			return err
		}
		if opts.DryRun {
			return nil
		}

		_, created, err = s.ledger.RecordWeeklySend(ctx, tx, user, piece)
		return err
	})
	if err != nil {
		return nil, err
	}

	if created {
		s.announce(ctx, user, piece)
	}
	return piece, nil
}

func (s *DistributionService) announce(ctx context.Context, recipient *models.User, piece *models.ArtPiece) {
	owner, err := s.repomanager.Users(s.db).GetByID(ctx, piece.OwnerID)
	if err != nil {
		s.logger.Error(ctx, "load piece owner", "piece", piece.ID, "error", err)
		return
	}
	notify(ctx, s.notifier, s.logger, dispatch.SharedArtEvent{Recipient: recipient, Owner: owner, Piece: piece})
}

func validatePiece(in NewPiece) (NewPiece, error) {
	in.ArtistName = strings.TrimSpace(in.ArtistName)
	in.PieceName = strings.TrimSpace(in.PieceName)
	in.PieceDescription = strings.TrimSpace(in.PieceDescription)
	in.Link = strings.TrimSpace(in.Link)

	switch {
	case in.ArtistName == "":
		return in, fmt.Errorf("artist name is required: %w", common.ErrorValidation)
	case in.PieceName == "":
		return in, fmt.Errorf("piece name is required: %w", common.ErrorValidation)
	case utf8.RuneCountInString(in.ArtistName) > MaxArtistName:
		return in, fmt.Errorf("artist name longer than %d characters: %w", MaxArtistName, common.ErrorValidation)
	case utf8.RuneCountInString(in.PieceName) > MaxPieceName:
		return in, fmt.Errorf("piece name longer than %d characters: %w", MaxPieceName, common.ErrorValidation)
	case utf8.RuneCountInString(in.PieceDescription) > MaxPieceDescription:
		return in, fmt.Errorf("description longer than %d characters: %w", MaxPieceDescription, common.ErrorValidation)
	}

	if in.Link != "" {
		if len(in.Link) > MaxLink {
			return in, fmt.Errorf("link too long: %w", common.ErrorValidation)
		}
		u, err := url.Parse(in.Link)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return in, fmt.Errorf("link must be an http(s) URL: %w", common.ErrorValidation)
		}
	}
	return in, nil
}

// SubmitPiece stores the piece and, unless the user is paused, gives them a
// reciprocal gift. The piece is committed before the gift is attempted, so a
// failed gift never loses the submission.
func (s *DistributionService) SubmitPiece(ctx context.Context, userID string, in NewPiece) (SubmitResult, error) {
	in, err := validatePiece(in)
	if err != nil {
		return SubmitResult{}, err
	}

	var (
		result SubmitResult
		user   *models.User
	)

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		user, err = s.repomanager.Users(tx).GetByID(ctx, userID)
		if err != nil {
			return err
		}

		piece := &models.ArtPiece{
			OwnerID:          user.ID,
			ArtistName:       in.ArtistName,
			PieceName:        in.PieceName,
			PieceDescription: in.PieceDescription,
			Approved:         true,
			WelcomeWeight:    1,
			CreatedAt:        clock(),
		}
		if in.Link != "" {
			piece.Link = &in.Link
		}
		result.Piece, err = s.repomanager.ArtPieces(tx).Create(ctx, piece)
		return err
	})
	if err != nil {
		return SubmitResult{}, err
	}

	if user.ReceiveArtPaused {
		result.Paused = true
		return result, nil
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		outcome, err := s.ledger.EnsureReciprocalGrant(ctx, tx, result.Piece, user)
		if err != nil {
			return err
		}
		result.Gift = outcome.Piece
		return nil
	})
	if err != nil {
		s.logger.Error(ctx, "reciprocal gift", "user_id", user.ID, "piece", result.Piece.ID, "error", err)
		return result, err
	}

	return result, nil
}

// EnsureWelcomeGift returns the user's welcome piece, granting it on the first
// call that finds one. Safe to call on every page load.
func (s *DistributionService) EnsureWelcomeGift(ctx context.Context, userID string) (WelcomeResult, error) {
	var result WelcomeResult

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		user, err := s.repomanager.Users(tx).GetByID(ctx, userID)
		if err != nil {
			return err
		}
		result.Paused = user.ReceiveArtPaused

		outcome, err := s.ledger.EnsureWelcomeGrant(ctx, tx, user)
		if err != nil {
			return err
		}
		result.Piece = outcome.Piece
		result.Created = outcome.Created
		return nil
	})
	if err != nil {
		return WelcomeResult{}, err
	}
	return result, nil
}

// ReciprocalGift returns the piece identified by publicID only if it reached
// the user as a reciprocal gift. Anything else yields nil without error.
func (s *DistributionService) ReciprocalGift(ctx context.Context, userID, publicID string) (*models.ArtPiece, error) {
	if publicID == "" {
		return nil, nil
	}

	piece, err := s.repomanager.ArtPieces(s.db).GetByPublicID(ctx, publicID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, nil
		}
		return nil, err
	}

	rec, err := s.repomanager.Sent(s.db).Get(ctx, userID, piece.ID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if rec.Source != models.SourceReciprocal {
		return nil, nil
	}
	return piece, nil
}
