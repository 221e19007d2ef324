package models

import "time"

type Like struct {
	ID         string
	UserID     string
	ArtPieceID string
	CreatedAt  time.Time
}
