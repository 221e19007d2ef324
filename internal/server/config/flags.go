package config

import (
	"flag"

	"github.com/dmitrijs2005/omnivore/internal/flagx"
)

// Flags understood by parseFlags. Only these are taken from the command
// line, so the weekly runner can add its own.
var serverFlags = []string{
	"-a", "-g", "-t", "-d", "-s", "-u", "-o", "-f", "-l", "-n",
	"-k", "-p", "-b", "-r", "-e",
}

// parseFlags overlays command-line flags.
//
//	-a string     HTTP bind address (":8080")
//	-g string     gRPC health bind address (":50051")
//	-t string     database driver, pgx or sqlite
//	-d string     database DSN
//	-s string     token secret key
//	-u string     site URL used in email links
//	-o string     allowed CORS origin
//	-f string     log format, json or text
//	-l string     log level
//	-n duration   new badge window ("720h")
//	-k string     S3 access key
//	-p string     S3 secret key
//	-b string     S3 bucket for weekly reports
//	-r string     S3 region
//	-e string     S3 base endpoint ("http://127.0.0.1:9000/")
//
// A malformed flag panics.
func parseFlags(config *Config, args []string) {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "HTTP bind address")
	fs.StringVar(&config.HealthAddr, "g", config.HealthAddr, "gRPC health bind address")
	fs.StringVar(&config.DatabaseDriver, "t", config.DatabaseDriver, "database driver (pgx|sqlite)")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.StringVar(&config.SiteURL, "u", config.SiteURL, "site URL")
	fs.StringVar(&config.CORSOrigin, "o", config.CORSOrigin, "allowed CORS origin")
	fs.StringVar(&config.LogFormat, "f", config.LogFormat, "log format (json|text)")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	fs.DurationVar(&config.NewBadgeWindow, "n", config.NewBadgeWindow, "new badge window")
	fs.StringVar(&config.S3AccessKey, "k", config.S3AccessKey, "S3 access key")
	fs.StringVar(&config.S3SecretKey, "p", config.S3SecretKey, "S3 secret key")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "r", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	if err := fs.Parse(flagx.FilterArgs(args, serverFlags)); err != nil {
		panic(err)
	}
}
