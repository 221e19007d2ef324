package models

import "time"

// Comment is one message of a two-party thread on a piece. A comment with no
// parent is the thread root; at most one root exists per
// (ArtPieceID, SenderID, RecipientID).
type Comment struct {
	ID          string    `json:"id"`
	ArtPieceID  string    `json:"-"`
	SenderID    string    `json:"sender_id"`
	RecipientID string    `json:"recipient_id"`
	ParentID    *string   `json:"parent_id,omitempty"`
	Text        string    `json:"text"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IsRoot reports whether the comment starts a thread.
func (c *Comment) IsRoot() bool {
	return c.ParentID == nil
}

// Involves reports whether userID is one of the two participants.
func (c *Comment) Involves(userID string) bool {
	return c.SenderID == userID || c.RecipientID == userID
}

// Counterpart returns the participant that is not userID.
func (c *Comment) Counterpart(userID string) string {
	if c.SenderID == userID {
		return c.RecipientID
	}
	return c.SenderID
}
