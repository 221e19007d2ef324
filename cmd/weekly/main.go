package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/omnivore/internal/logging"
	"github.com/dmitrijs2005/omnivore/internal/server"
	"github.com/dmitrijs2005/omnivore/internal/server/config"
	"github.com/dmitrijs2005/omnivore/internal/server/reports"
	"github.com/dmitrijs2005/omnivore/internal/weekly"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Printf("%v", err)
		if !errors.Is(err, weekly.ErrAborted) {
			os.Exit(1)
		}
	}
}

func run(ctx context.Context) error {
	cfg := config.LoadConfig()
	opts, err := weekly.ParseOptions(os.Args[1:])
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := logging.New(os.Stderr, cfg.LogFormat, cfg.LogLevel)

	db, rm, err := server.OpenDatabase(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	svc := server.NewServices(db, rm, cfg, logger)

	cmd := &weekly.Command{
		Runner: svc.Distribution,
		Archiver: reports.NewArchiver(reports.Options{
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
			Bucket:       cfg.S3Bucket,
			Region:       cfg.S3Region,
			BaseEndpoint: cfg.S3BaseEndpoint,
			URLValidity:  cfg.ReportURLValidity,
		}, logger),
		In:     os.Stdin,
		InFd:   int(os.Stdin.Fd()),
		Out:    os.Stdout,
		Logger: logger,
	}
	return cmd.Run(ctx, opts)
}
