package models

import "time"

// NotificationKind is the event type a notification was created for.
type NotificationKind string

const (
	NotificationLike      NotificationKind = "like"
	NotificationComment   NotificationKind = "comment"
	NotificationSharedArt NotificationKind = "shared_art"
)

// Notification is an in-app inbox row. It is a derived side effect and is
// never consulted by distribution or threading.
type Notification struct {
	ID          string           `json:"id"`
	RecipientID string           `json:"-"`
	SenderID    string           `json:"sender_id"`
	Kind        NotificationKind `json:"kind"`
	ArtPieceID  *string          `json:"-"`
	CommentID   *string          `json:"comment_id,omitempty"`
	IsRead      bool             `json:"is_read"`
	Message     string           `json:"message"`
	CreatedAt   time.Time        `json:"created_at"`
}
