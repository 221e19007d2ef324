package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupFrom(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestParseEnv_ProcessOverridesDotenv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(
		"OMNIVORE_DATABASE_DSN=file.db\n"+
			"OMNIVORE_SECRET_KEY=from-file\n"+
			"OMNIVORE_NEW_BADGE_WINDOW=48h\n"+
			"UNRELATED=1\n"), 0o600))

	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg, path, lookupFrom(map[string]string{
		"OMNIVORE_SECRET_KEY": "from-env",
		"OMNIVORE_S3_BUCKET":  "reports",
	}))

	assert.Equal(t, "file.db", cfg.DatabaseDSN)
	assert.Equal(t, "from-env", cfg.SecretKey)
	assert.Equal(t, 48*time.Hour, cfg.NewBadgeWindow)
	assert.Equal(t, "reports", cfg.S3Bucket)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
}

func TestParseEnv_MissingDotenvIsFine(t *testing.T) {
	cfg := &Config{}
	require.NotPanics(t, func() {
		parseEnv(cfg, filepath.Join(t.TempDir(), "absent.env"), lookupFrom(nil))
	})
	assert.Equal(t, Config{}, *cfg)
}

func TestParseEnv_BadDurationPanics(t *testing.T) {
	cfg := &Config{}
	require.Panics(t, func() {
		parseEnv(cfg, "", lookupFrom(map[string]string{"OMNIVORE_SHUTDOWN_TIMEOUT": "soon"}))
	})
}
