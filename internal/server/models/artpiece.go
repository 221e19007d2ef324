package models

import "time"

// ArtPiece is a submitted work. It is a distribution candidate only while
// Approved is set and IsDeleted is not.
type ArtPiece struct {
	ID               string  `json:"-"`
	PublicID         string  `json:"public_id"`
	OwnerID          string  `json:"owner_id"`
	ArtistName       string  `json:"artist_name"`
	PieceName        string  `json:"piece_name"`
	PieceDescription string  `json:"piece_description"`
	Link             *string `json:"link,omitempty"`

	Approved        bool `json:"approved"`
	WelcomeEligible bool `json:"welcome_eligible"`
	WelcomeWeight   int  `json:"welcome_weight"`

	IsDeleted    bool       `json:"is_deleted"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
	DeletedBy    *string    `json:"-"`
	DeleteReason string     `json:"delete_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Distributable reports whether the piece may be sent to anyone.
func (p *ArtPiece) Distributable() bool {
	return p.Approved && !p.IsDeleted
}

// Candidate is the projection the selector works on.
type Candidate struct {
	ID            string
	WelcomeWeight int
}
