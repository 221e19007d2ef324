package dbx

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimePtr(t *testing.T) {
	assert.Nil(t, TimePtr(sql.NullTime{}))

	loc := time.FixedZone("X", 3*3600)
	in := time.Date(2025, 1, 2, 15, 0, 0, 0, loc)
	got := TimePtr(sql.NullTime{Time: in, Valid: true})
	require.NotNil(t, got)
	assert.Equal(t, time.UTC, got.Location())
	assert.True(t, got.Equal(in))
}

func TestStringPtr(t *testing.T) {
	assert.Nil(t, StringPtr(sql.NullString{}))

	got := StringPtr(sql.NullString{String: "x", Valid: true})
	require.NotNil(t, got)
	assert.Equal(t, "x", *got)
}
