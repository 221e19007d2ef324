package services

import "time"

// clock stamps every timestamp the services persist. Microsecond precision
// matches PostgreSQL.
var clock = func() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
