package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/omnivore/internal/common"
	"github.com/dmitrijs2005/omnivore/internal/dbx"
	"github.com/dmitrijs2005/omnivore/internal/logging"
	"github.com/dmitrijs2005/omnivore/internal/server/models"
	"github.com/dmitrijs2005/omnivore/internal/server/repositories/repomanager"
)

// GrantOutcome is the piece a grant resolved to. Piece is nil when nothing
// was eligible; Created is set only on the call that made the grant.
type GrantOutcome struct {
	Piece   *models.ArtPiece
	Created bool
}

// Ledger records who received what. Every method runs inside the caller's
// transaction and relies on the grant row lock or a unique index to
// serialize concurrent callers for the same key.
type Ledger struct {
	repomanager repomanager.RepositoryManager
	selector    *Selector
	logger      logging.Logger
}

func NewLedger(rm repomanager.RepositoryManager, selector *Selector, logger logging.Logger) *Ledger {
	return &Ledger{
		repomanager: rm,
		selector:    selector,
		logger:      logger.With("module", "ledger"),
	}
}

// EligiblePieces lists the pieces userID may still receive.
func (l *Ledger) EligiblePieces(ctx context.Context, tx dbx.DBTX, userID string, welcomeOnly bool) ([]models.Candidate, error) {
	return l.repomanager.ArtPieces(tx).Eligible(ctx, userID, welcomeOnly)
}

// EnsureWelcomeGrant returns the user's welcome piece, choosing one by weight
// the first time a welcome-eligible piece is available. A grant without a
// piece is kept and filled on a later call.
func (l *Ledger) EnsureWelcomeGrant(ctx context.Context, tx dbx.DBTX, user *models.User) (GrantOutcome, error) {
	grants := l.repomanager.Grants(tx)

	if _, err := grants.InsertWelcome(ctx, &models.WelcomeGrant{UserID: user.ID, CreatedAt: clock()}); err != nil {
		return GrantOutcome{}, err
	}
	grant, err := grants.LockWelcome(ctx, user.ID)
	if err != nil {
		return GrantOutcome{}, err
	}

	if grant.SentArtPieceID != nil {
		piece, err := l.repomanager.ArtPieces(tx).GetByID(ctx, *grant.SentArtPieceID)
		if err != nil {
			return GrantOutcome{}, err
		}
		return GrantOutcome{Piece: piece}, nil
	}

	candidates, err := l.EligiblePieces(ctx, tx, user.ID, true)
	if err != nil {
		return GrantOutcome{}, err
	}
	choice, ok := l.selector.ChooseWeighted(candidates)
	if !ok {
		l.logger.Info(ctx, "no welcome-eligible art", "user_id", user.ID)
		return GrantOutcome{}, nil
	}

	if err := grants.AttachWelcomePiece(ctx, grant.ID, choice.ID); err != nil {
		return GrantOutcome{}, err
	}
	return l.send(ctx, tx, user, choice.ID, models.SourceWelcome)
}

// EnsureReciprocalGrant returns the gift for trigger. Only the call that
// creates the grant selects a piece; later calls return what was attached.
func (l *Ledger) EnsureReciprocalGrant(ctx context.Context, tx dbx.DBTX, trigger *models.ArtPiece, user *models.User) (GrantOutcome, error) {
	grants := l.repomanager.Grants(tx)

	created, err := grants.InsertReciprocal(ctx, &models.ReciprocalGrant{
		UserID:            user.ID,
		TriggerArtPieceID: trigger.ID,
		CreatedAt:         clock(),
	})
	if err != nil {
		return GrantOutcome{}, err
	}
	grant, err := grants.LockReciprocal(ctx, trigger.ID)
	if err != nil {
		return GrantOutcome{}, err
	}

	if !created {
		if grant.SentArtPieceID == nil {
			return GrantOutcome{}, nil
		}
		piece, err := l.repomanager.ArtPieces(tx).GetByID(ctx, *grant.SentArtPieceID)
		if err != nil {
			return GrantOutcome{}, err
		}
		return GrantOutcome{Piece: piece}, nil
	}

	candidates, err := l.EligiblePieces(ctx, tx, user.ID, false)
	if err != nil {
		return GrantOutcome{}, err
	}
	choice, ok := l.selector.ChooseUniform(candidates)
	if !ok {
		l.logger.Info(ctx, "no eligible art for reciprocal gift", "user_id", user.ID, "trigger", trigger.ID)
		return GrantOutcome{}, nil
	}

	if err := grants.AttachReciprocalPiece(ctx, grant.ID, choice.ID); err != nil {
		return GrantOutcome{}, err
	}
	return l.send(ctx, tx, user, choice.ID, models.SourceReciprocal)
}

// RecordWeeklySend grants piece to user. When the pair already exists the
// existing record is returned with created=false.
func (l *Ledger) RecordWeeklySend(ctx context.Context, tx dbx.DBTX, user *models.User, piece *models.ArtPiece) (*models.SentRecord, bool, error) {
	sent := l.repomanager.Sent(tx)

	rec := &models.SentRecord{
		UserID:     user.ID,
		ArtPieceID: piece.ID,
		Source:     models.SourceWeekly,
		SentAt:     clock(),
	}
	created, err := sent.Create(ctx, rec)
	if err != nil {
		return nil, false, err
	}
	if !created {
		existing, err := sent.Get(ctx, user.ID, piece.ID)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}

	if err := l.repomanager.Users(tx).TouchLastArtSent(ctx, user.ID, rec.SentAt); err != nil {
		return nil, false, err
	}
	return rec, true, nil
}

func (l *Ledger) send(ctx context.Context, tx dbx.DBTX, user *models.User, pieceID string, source models.SentSource) (GrantOutcome, error) {
	_, err := l.repomanager.Sent(tx).Create(ctx, &models.SentRecord{
		UserID:     user.ID,
		ArtPieceID: pieceID,
		Source:     source,
		SentAt:     clock(),
	})
	if err != nil {
		return GrantOutcome{}, err
	}

	piece, err := l.repomanager.ArtPieces(tx).GetByID(ctx, pieceID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return GrantOutcome{}, fmt.Errorf("granted piece %s vanished: %w", pieceID, common.ErrorInternal)
		}
		return GrantOutcome{}, err
	}
	return GrantOutcome{Piece: piece, Created: true}, nil
}
