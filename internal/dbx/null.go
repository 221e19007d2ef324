package dbx

import (
	"database/sql"
	"time"
)

// TimePtr converts a nullable column to a UTC *time.Time.
func TimePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time.UTC()
	return &t
}

// StringPtr converts a nullable column to *string.
func StringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
