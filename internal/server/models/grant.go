package models

import "time"

// WelcomeGrant records the one welcome gift of a user. SentArtPieceID stays
// nil while no eligible piece has been found.
type WelcomeGrant struct {
	ID             string
	UserID         string
	SentArtPieceID *string
	CreatedAt      time.Time
}

// ReciprocalGrant records the gift given in exchange for one submitted piece.
type ReciprocalGrant struct {
	ID                string
	UserID            string
	TriggerArtPieceID string
	SentArtPieceID    *string
	CreatedAt         time.Time
}
