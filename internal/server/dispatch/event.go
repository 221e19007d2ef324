// Package dispatch turns committed domain events into inbox notifications and
// emails. It is called after the originating transaction commits; nothing it
// does can undo that state.
package dispatch

import (
	"fmt"

	"github.com/dmitrijs2005/omnivore/internal/server/models"
)

// Focus tells the client what to open when a notification is followed.
type Focus string

const (
	FocusNone   Focus = ""
	FocusPiece  Focus = "piece"
	FocusThread Focus = "thread"
)

// Target is where a notification leads. An empty PiecePublicID means the inbox.
type Target struct {
	PiecePublicID string `json:"piece_public_id,omitempty"`
	Focus         Focus  `json:"focus,omitempty"`
	Other         string `json:"other,omitempty"`
}

// Path renders the target as a site-relative URL.
func (t Target) Path(notificationID string) string {
	if t.PiecePublicID == "" {
		return "/notifications"
	}
	path := fmt.Sprintf("/art/%s?n=%s", t.PiecePublicID, notificationID)
	if t.Focus != FocusNone {
		path += "&focus=" + string(t.Focus)
	}
	if t.Other != "" {
		path += "&other=" + t.Other
	}
	return path
}

// Event is one of LikeEvent, CommentEvent or SharedArtEvent.
type Event interface {
	Kind() models.NotificationKind
	RecipientID() string
	SenderID() string
	Target() Target
	Message() string
	notification() *models.Notification
	isEvent()
}

// LikeEvent: Liker liked Piece.
type LikeEvent struct {
	Liker *models.User
	Piece *models.ArtPiece
}

func (LikeEvent) isEvent() {}

func (e LikeEvent) Kind() models.NotificationKind { return models.NotificationLike }
func (e LikeEvent) RecipientID() string           { return e.Piece.OwnerID }
func (e LikeEvent) SenderID() string              { return e.Liker.ID }

func (e LikeEvent) Target() Target {
	return Target{PiecePublicID: e.Piece.PublicID, Focus: FocusPiece}
}

func (e LikeEvent) Message() string {
	return fmt.Sprintf("%s liked your art piece %q.", e.Liker.FullName(), e.Piece.PieceName)
}

func (e LikeEvent) notification() *models.Notification {
	return &models.Notification{
		RecipientID: e.RecipientID(), SenderID: e.SenderID(), Kind: e.Kind(),
		ArtPieceID: &e.Piece.ID, Message: e.Message(),
	}
}

// CommentEvent: Sender posted Comment on Piece.
type CommentEvent struct {
	Sender  *models.User
	Comment *models.Comment
	Piece   *models.ArtPiece
}

func (CommentEvent) isEvent() {}

func (e CommentEvent) Kind() models.NotificationKind { return models.NotificationComment }
func (e CommentEvent) RecipientID() string           { return e.Comment.RecipientID }
func (e CommentEvent) SenderID() string              { return e.Comment.SenderID }

func (e CommentEvent) Target() Target {
	return Target{PiecePublicID: e.Piece.PublicID, Focus: FocusThread, Other: e.Comment.SenderID}
}

func (e CommentEvent) Message() string {
	return fmt.Sprintf("%s commented on %q: %s", e.Sender.FullName(), e.Piece.PieceName, excerpt(e.Comment.Text, 140))
}

func (e CommentEvent) notification() *models.Notification {
	return &models.Notification{
		RecipientID: e.RecipientID(), SenderID: e.SenderID(), Kind: e.Kind(),
		ArtPieceID: &e.Piece.ID, CommentID: &e.Comment.ID, Message: e.Message(),
	}
}

// SharedArtEvent: Piece, owned by Owner, was sent to Recipient.
type SharedArtEvent struct {
	Recipient *models.User
	Owner     *models.User
	Piece     *models.ArtPiece
}

func (SharedArtEvent) isEvent() {}

func (e SharedArtEvent) Kind() models.NotificationKind { return models.NotificationSharedArt }
func (e SharedArtEvent) RecipientID() string           { return e.Recipient.ID }
func (e SharedArtEvent) SenderID() string              { return e.Piece.OwnerID }

func (e SharedArtEvent) Target() Target {
	return Target{PiecePublicID: e.Piece.PublicID, Focus: FocusPiece}
}

func (e SharedArtEvent) Message() string {
	return fmt.Sprintf("%s shared %q by %s with you.", e.Owner.FullName(), e.Piece.PieceName, e.Piece.ArtistName)
}

func (e SharedArtEvent) notification() *models.Notification {
	return &models.Notification{
		RecipientID: e.RecipientID(), SenderID: e.SenderID(), Kind: e.Kind(),
		ArtPieceID: &e.Piece.ID, Message: e.Message(),
	}
}

// TargetFor rebuilds the target of a stored notification. piecePublicID is
// empty when the notification has no piece.
func TargetFor(n *models.Notification, piecePublicID string) Target {
	if n.ArtPieceID == nil || piecePublicID == "" {
		return Target{}
	}
	t := Target{PiecePublicID: piecePublicID}
	switch n.Kind {
	case models.NotificationComment:
		t.Focus = FocusThread
		t.Other = n.SenderID
	case models.NotificationLike, models.NotificationSharedArt:
		t.Focus = FocusPiece
	}
	return t
}

func excerpt(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}
