// Package models defines server-side data models persisted in the database.
package models

import "time"

// User is an account with its delivery and email preferences.
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`

	EmailOnArtShared bool `json:"email_on_art_shared"`
	EmailOnComment   bool `json:"email_on_comment"`
	EmailOnLike      bool `json:"email_on_like"`
	ReceiveArtPaused bool `json:"receive_art_paused"`

	LastArtSentAt *time.Time `json:"last_art_sent_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// FullName is "First Last", or the email when both names are empty.
func (u *User) FullName() string {
	name := u.FirstName
	if u.LastName != "" {
		if name != "" {
			name += " "
		}
		name += u.LastName
	}
	if name == "" {
		return u.Email
	}
	return name
}

// WantsEmail reports whether the user accepts email for the notification kind.
func (u *User) WantsEmail(kind NotificationKind) bool {
	switch kind {
	case NotificationLike:
		return u.EmailOnLike
	case NotificationComment:
		return u.EmailOnComment
	case NotificationSharedArt:
		return u.EmailOnArtShared
	}
	return false
}
