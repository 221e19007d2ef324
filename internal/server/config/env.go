package config

import (
	"errors"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
)

// EnvPrefix starts every environment variable the config reads.
const EnvPrefix = "OMNIVORE_"

// parseEnv overlays OMNIVORE_* variables. Values from dotenv are used
// unless the process environment sets the same variable. A missing dotenv
// file is not an error; an unreadable one or a bad duration panics.
func parseEnv(config *Config, dotenv string, lookup func(string) (string, bool)) {
	file := map[string]string{}
	if dotenv != "" {
		vars, err := godotenv.Read(dotenv)
		switch {
		case err == nil:
			file = vars
		case !errors.Is(err, fs.ErrNotExist):
			panic(err)
		}
	}

	get := func(name string) (string, bool) {
		name = EnvPrefix + name
		if v, ok := lookup(name); ok {
			return v, true
		}
		v, ok := file[name]
		return v, ok
	}
	str := func(name string, dst *string) {
		if v, ok := get(name); ok {
			*dst = v
		}
	}
	dur := func(name string, dst *time.Duration) {
		v, ok := get(name)
		if !ok {
			return
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			panic(err)
		}
		*dst = d
	}

	str("HTTP_ADDR", &config.HTTPAddr)
	str("HEALTH_ADDR", &config.HealthAddr)
	str("DB_DRIVER", &config.DatabaseDriver)
	str("DATABASE_DSN", &config.DatabaseDSN)
	str("SECRET_KEY", &config.SecretKey)
	str("SITE_URL", &config.SiteURL)
	str("CORS_ORIGIN", &config.CORSOrigin)
	str("LOG_FORMAT", &config.LogFormat)
	str("LOG_LEVEL", &config.LogLevel)
	dur("NEW_BADGE_WINDOW", &config.NewBadgeWindow)
	dur("UNSUBSCRIBE_VALIDITY", &config.UnsubscribeValidity)
	dur("SHUTDOWN_TIMEOUT", &config.ShutdownTimeout)
	str("S3_ACCESS_KEY", &config.S3AccessKey)
	str("S3_SECRET_KEY", &config.S3SecretKey)
	str("S3_BUCKET", &config.S3Bucket)
	str("S3_REGION", &config.S3Region)
	str("S3_BASE_ENDPOINT", &config.S3BaseEndpoint)
	dur("REPORT_URL_VALIDITY", &config.ReportURLValidity)
}
