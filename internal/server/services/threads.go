package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"html"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dmitrijs2005/omnivore/internal/common"
	"github.com/dmitrijs2005/omnivore/internal/dbx"
	"github.com/dmitrijs2005/omnivore/internal/logging"
	"github.com/dmitrijs2005/omnivore/internal/server/dispatch"
	"github.com/dmitrijs2005/omnivore/internal/server/models"
	"github.com/dmitrijs2005/omnivore/internal/server/repositories/repomanager"
	"github.com/microcosm-cc/bluemonday"
)

// MaxCommentLength bounds a comment, in characters after sanitizing.
const MaxCommentLength = 2000

// PostCommentInput is a comment submission. ParentID is optional.
type PostCommentInput struct {
	Text     string `json:"text"`
	ParentID string `json:"parent_id"`
}

// Conversation is one two-party thread on a piece.
type Conversation struct {
	Other    string            `json:"other"`
	Comments []*models.Comment `json:"comments"`
}

// PieceView is the detail page of a piece for one viewer. Owners see every
// conversation on the piece, recipients only theirs with the owner.
type PieceView struct {
	Piece         *models.ArtPiece `json:"piece"`
	IsOwner       bool             `json:"is_owner"`
	Conversations []Conversation   `json:"conversations"`
}

// ThreadSummary is one entry of the owner's thread list.
type ThreadSummary struct {
	PiecePublicID string    `json:"piece_public_id"`
	PieceName     string    `json:"piece_name"`
	Other         string    `json:"other"`
	Count         int       `json:"count"`
	LastText      string    `json:"last_text"`
	LastCommentAt time.Time `json:"last_comment_at"`
}

// ThreadService keeps exactly one conversation per piece and pair of users.
type ThreadService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	notifier    Notifier
	policy      *bluemonday.Policy
	logger      logging.Logger
}

func NewThreadService(db *sql.DB, rm repomanager.RepositoryManager, notifier Notifier, logger logging.Logger) *ThreadService {
	return &ThreadService{
		db:          db,
		repomanager: rm,
		notifier:    notifier,
		policy:      bluemonday.StrictPolicy(),
		logger:      logger.With("module", "threads"),
	}
}

// sanitize strips markup and returns plain text.
func (s *ThreadService) sanitize(text string) (string, error) {
	clean := strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(text)))
	n := utf8.RuneCountInString(clean)
	if n == 0 {
		return "", fmt.Errorf("comment is empty: %w", common.ErrorValidation)
	}
	if n > MaxCommentLength {
		return "", fmt.Errorf("comment longer than %d characters: %w", MaxCommentLength, common.ErrorValidation)
	}
	return clean, nil
}

// livePiece loads a piece that is not deleted.
func livePiece(ctx context.Context, rm repomanager.RepositoryManager, db dbx.DBTX, publicID string) (*models.ArtPiece, error) {
	piece, err := rm.ArtPieces(db).GetByPublicID(ctx, publicID)
	if err != nil {
		return nil, err
	}
	if piece.IsDeleted {
		return nil, common.ErrorNotFound
	}
	return piece, nil
}

// canView reports whether userID owns or received the piece.
func canView(ctx context.Context, rm repomanager.RepositoryManager, db dbx.DBTX, userID string, piece *models.ArtPiece) (bool, error) {
	if piece.OwnerID == userID {
		return true, nil
	}
	_, err := rm.Sent(db).Get(ctx, userID, piece.ID)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, common.ErrorNotFound) {
		return false, nil
	}
	return false, err
}

// PostComment adds a message to the caller's conversation on the piece.
// Without a parent the caller must be a recipient and the message goes to
// the owner; with a parent it is attached to that thread's root and goes to
// the other participant.
func (s *ThreadService) PostComment(ctx context.Context, callerID, piecePublicID string, in PostCommentInput) (*models.Comment, error) {
	text, err := s.sanitize(in.Text)
	if err != nil {
		return nil, err
	}

	var (
		comment *models.Comment
		piece   *models.ArtPiece
	)

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		piece, err = livePiece(ctx, s.repomanager, tx, piecePublicID)
		if err != nil {
			return err
		}
		ok, err := canView(ctx, s.repomanager, tx, callerID, piece)
		if err != nil {
			return err
		}
		if !ok {
			return common.ErrorUnauthorized
		}

		comments := s.repomanager.Comments(tx)
		now := clock()
		comment = &models.Comment{
			ArtPieceID: piece.ID,
			SenderID:   callerID,
			Text:       text,
			CreatedAt:  now,
			UpdatedAt:  now,
		}

		if in.ParentID != "" {
			root, err := s.rootOf(ctx, tx, piece, in.ParentID)
			if err != nil {
				return err
			}
			if !root.Involves(callerID) {
				return common.ErrorUnauthorized
			}
			comment.RecipientID = root.Counterpart(callerID)
			comment.ParentID = &root.ID
			return comments.CreateReply(ctx, comment)
		}

		if callerID == piece.OwnerID {
			return fmt.Errorf("owner must reply within a thread: %w", common.ErrorUnauthorized)
		}
		comment.RecipientID = piece.OwnerID

		root, err := comments.FindRoot(ctx, piece.ID, callerID, piece.OwnerID)
		if err != nil && !errors.Is(err, common.ErrorNotFound) {
			return err
		}
		if root == nil {
			inserted, err := comments.CreateRoot(ctx, comment)
			if err != nil {
				return err
			}
			if inserted {
				return nil
			}
			// Lost the race for the root: reply to the winner's.
			root, err = comments.FindRoot(ctx, piece.ID, callerID, piece.OwnerID)
			if err != nil {
				return err
			}
			comment.ID = ""
		}
		comment.ParentID = &root.ID
		return comments.CreateReply(ctx, comment)
	})
	if err != nil {
		return nil, err
	}

	sender, err := s.repomanager.Users(s.db).GetByID(ctx, callerID)
	if err != nil {
		s.logger.Error(ctx, "load comment sender", "user_id", callerID, "error", err)
		return comment, nil
	}
	notify(ctx, s.notifier, s.logger, dispatch.CommentEvent{Sender: sender, Comment: comment, Piece: piece})
	return comment, nil
}

// rootOf resolves parentID to the root of its thread on piece.
func (s *ThreadService) rootOf(ctx context.Context, tx dbx.DBTX, piece *models.ArtPiece, parentID string) (*models.Comment, error) {
	comments := s.repomanager.Comments(tx)

	c, err := comments.GetByID(ctx, parentID)
	if err != nil {
		return nil, err
	}
	if c.ArtPieceID != piece.ID {
		return nil, common.ErrorNotFound
	}
	for c.ParentID != nil {
		c, err = comments.GetByID(ctx, *c.ParentID)
		if err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Thread returns the conversation between viewer and other on the piece,
// oldest first.
func (s *ThreadService) Thread(ctx context.Context, viewerID, piecePublicID, otherID string) ([]*models.Comment, error) {
	piece, err := livePiece(ctx, s.repomanager, s.db, piecePublicID)
	if err != nil {
		return nil, err
	}
	ok, err := canView(ctx, s.repomanager, s.db, viewerID, piece)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, common.ErrorNotFound
	}
	return s.repomanager.Comments(s.db).ListBetween(ctx, piece.ID, viewerID, otherID)
}

// PieceConversations builds the detail view of a piece. Users who neither
// own nor received the piece get common.ErrorNotFound. A recipient opening
// the view marks their copy as seen.
func (s *ThreadService) PieceConversations(ctx context.Context, viewerID, piecePublicID string) (*PieceView, error) {
	piece, err := livePiece(ctx, s.repomanager, s.db, piecePublicID)
	if err != nil {
		return nil, err
	}
	comments := s.repomanager.Comments(s.db)

	if piece.OwnerID == viewerID {
		all, err := comments.ListForPiece(ctx, piece.ID)
		if err != nil {
			return nil, err
		}
		return &PieceView{Piece: piece, IsOwner: true, Conversations: groupByCounterpart(all, viewerID)}, nil
	}

	if _, err := s.repomanager.Sent(s.db).Get(ctx, viewerID, piece.ID); err != nil {
		return nil, err
	}
	if err := s.repomanager.Sent(s.db).MarkSeen(ctx, viewerID, piece.ID, clock()); err != nil {
		return nil, err
	}

	thread, err := comments.ListBetween(ctx, piece.ID, viewerID, piece.OwnerID)
	if err != nil {
		return nil, err
	}
	return &PieceView{
		Piece:         piece,
		Conversations: []Conversation{{Other: piece.OwnerID, Comments: thread}},
	}, nil
}

// groupByCounterpart splits the comments (oldest first) by the participant
// that is not viewerID, most recently active conversation first.
func groupByCounterpart(all []*models.Comment, viewerID string) []Conversation {
	index := map[string]int{}
	var out []Conversation
	for _, c := range all {
		other := c.Counterpart(viewerID)
		i, ok := index[other]
		if !ok {
			i = len(out)
			index[other] = i
			out = append(out, Conversation{Other: other})
		}
		out[i].Comments = append(out[i].Comments, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a := out[i].Comments[len(out[i].Comments)-1].CreatedAt
		b := out[j].Comments[len(out[j].Comments)-1].CreatedAt
		return a.After(b)
	})
	return out
}

// OwnerThreads lists every conversation on the owner's pieces, most recent
// comment first.
func (s *ThreadService) OwnerThreads(ctx context.Context, ownerID string) ([]ThreadSummary, error) {
	pieces, err := s.repomanager.ArtPieces(s.db).ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*models.ArtPiece, len(pieces))
	for _, p := range pieces {
		byID[p.ID] = p
	}

	all, err := s.repomanager.Comments(s.db).ListForOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	type key struct{ piece, other string }
	index := map[key]int{}
	var out []ThreadSummary
	for _, c := range all {
		p, ok := byID[c.ArtPieceID]
		if !ok {
			continue
		}
		k := key{c.ArtPieceID, c.Counterpart(ownerID)}
		i, ok := index[k]
		if !ok {
			i = len(out)
			index[k] = i
			out = append(out, ThreadSummary{PiecePublicID: p.PublicID, PieceName: p.PieceName, Other: k.other})
		}
		out[i].Count++
		out[i].LastText = c.Text
		out[i].LastCommentAt = c.CreatedAt
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastCommentAt.After(out[j].LastCommentAt)
	})
	return out, nil
}
