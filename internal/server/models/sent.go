package models

import "time"

// SentSource tags how a piece reached a user.
type SentSource string

const (
	SourceWeekly     SentSource = "weekly"
	SourceWelcome    SentSource = "welcome"
	SourceReciprocal SentSource = "reciprocal"
	SourceManual     SentSource = "manual"
)

// Valid reports whether s is a known source.
func (s SentSource) Valid() bool {
	switch s {
	case SourceWeekly, SourceWelcome, SourceReciprocal, SourceManual:
		return true
	}
	return false
}

// SentRecord grants one piece to one user. (UserID, ArtPieceID) is unique.
type SentRecord struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	ArtPieceID string     `json:"art_piece_id"`
	Source     SentSource `json:"source"`
	SentAt     time.Time  `json:"sent_at"`
	SeenAt     *time.Time `json:"seen_at,omitempty"`
}

// IsNew reports whether the record is unseen and was sent within window of now.
func (s *SentRecord) IsNew(now time.Time, window time.Duration) bool {
	if s.SeenAt != nil {
		return false
	}
	return !s.SentAt.Before(now.Add(-window))
}
