package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/omnivore/internal/flagx"
	"github.com/dmitrijs2005/omnivore/internal/timex"
)

// JsonConfig is the on-disk form of Config. Durations accept "720h" style
// strings or integer nanoseconds.
type JsonConfig struct {
	HTTPAddr            string         `json:"http_addr"`
	HealthAddr          string         `json:"health_addr"`
	DatabaseDriver      string         `json:"database_driver"`
	DatabaseDSN         string         `json:"database_dsn"`
	SecretKey           string         `json:"secret_key"`
	SiteURL             string         `json:"site_url"`
	CORSOrigin          string         `json:"cors_origin"`
	LogFormat           string         `json:"log_format"`
	LogLevel            string         `json:"log_level"`
	NewBadgeWindow      timex.Duration `json:"new_badge_window"`
	UnsubscribeValidity timex.Duration `json:"unsubscribe_validity"`
	ShutdownTimeout     timex.Duration `json:"shutdown_timeout"`
	S3AccessKey         string         `json:"s3_access_key"`
	S3SecretKey         string         `json:"s3_secret_key"`
	S3Bucket            string         `json:"s3_bucket"`
	S3Region            string         `json:"s3_region"`
	S3BaseEndpoint      string         `json:"s3_base_endpoint"`
	ReportURLValidity   timex.Duration `json:"report_url_validity"`
}

// parseJson overlays the file named by -c/-config in args. Fields missing
// from the file keep their current value. An unreadable file or invalid JSON
// panics.
func parseJson(config *Config, args []string) {
	path := flagx.ConfigPath(args)
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}
	c := &JsonConfig{}
	if err := json.Unmarshal(data, c); err != nil {
		panic(err)
	}

	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.HealthAddr, c.HealthAddr)
	setString(&config.DatabaseDriver, c.DatabaseDriver)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.SiteURL, c.SiteURL)
	setString(&config.CORSOrigin, c.CORSOrigin)
	setString(&config.LogFormat, c.LogFormat)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.S3AccessKey, c.S3AccessKey)
	setString(&config.S3SecretKey, c.S3SecretKey)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)

	if c.NewBadgeWindow.Duration > 0 {
		config.NewBadgeWindow = c.NewBadgeWindow.Duration
	}
	if c.UnsubscribeValidity.Duration > 0 {
		config.UnsubscribeValidity = c.UnsubscribeValidity.Duration
	}
	if c.ShutdownTimeout.Duration > 0 {
		config.ShutdownTimeout = c.ShutdownTimeout.Duration
	}
	if c.ReportURLValidity.Duration > 0 {
		config.ReportURLValidity = c.ReportURLValidity.Duration
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
