// Package server initializes and runs the application: it opens and migrates
// the database, builds the services, serves the JSON API and the gRPC health
// service, and shuts both down on SIGINT/SIGTERM.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/omnivore/internal/logging"
	"github.com/dmitrijs2005/omnivore/internal/server/config"
	"github.com/dmitrijs2005/omnivore/internal/server/dispatch"
	"github.com/dmitrijs2005/omnivore/internal/server/httpapi"
	"github.com/dmitrijs2005/omnivore/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/omnivore/internal/server/services"

	gs "github.com/dmitrijs2005/omnivore/internal/server/grpc"
)

// OpenDatabase connects to the configured database and applies migrations,
// logging migration progress to logger.
func OpenDatabase(ctx context.Context, c *config.Config, logger logging.Logger) (*sql.DB, repomanager.RepositoryManager, error) {
	dialect, err := c.Dialect()
	if err != nil {
		return nil, nil, err
	}

	db, err := sql.Open(dialect.DriverName(), dialect.DSN(c.DatabaseDSN))
	if err != nil {
		return nil, nil, fmt.Errorf("db init error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("db ping error: %w", err)
	}

	rm, err := repomanager.NewRepositoryManager(dialect, repomanager.WithLogger(logger))
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("migrations: %w", err)
	}
	return db, rm, nil
}

// Services is the wired service layer.
type Services struct {
	Dispatcher    *dispatch.Dispatcher
	Distribution  *services.DistributionService
	Threads       *services.ThreadService
	Likes         *services.LikeService
	Notifications *services.NotificationService
	Gallery       *services.GalleryService
}

func NewServices(db *sql.DB, rm repomanager.RepositoryManager, c *config.Config, logger logging.Logger) *Services {
	d := dispatch.NewDispatcher(db, rm, dispatch.NewLogMailer(logger), dispatch.Options{
		SiteURL:             c.SiteURL,
		SecretKey:           []byte(c.SecretKey),
		UnsubscribeValidity: c.UnsubscribeValidity,
	}, logger)

	selector := services.NewSelector(services.DefaultRandomSource())
	ledger := services.NewLedger(rm, selector, logger)

	return &Services{
		Dispatcher:    d,
		Distribution:  services.NewDistributionService(db, rm, ledger, selector, d, logger),
		Threads:       services.NewThreadService(db, rm, d, logger),
		Likes:         services.NewLikeService(db, rm, d, logger),
		Notifications: services.NewNotificationService(db, rm),
		Gallery:       services.NewGalleryService(db, rm, c.NewBadgeWindow, logger),
	}
}

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	http   *httpapi.HTTPServer
	grpc   *gs.GRPCServer
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := logging.New(os.Stdout, c.LogFormat, c.LogLevel)

	db, rm, err := OpenDatabase(ctx, c, logger)
	if err != nil {
		return nil, err
	}

	svc := NewServices(db, rm, c, logger)

	h := httpapi.NewHandler(httpapi.Services{
		Distribution:  svc.Distribution,
		Threads:       svc.Threads,
		Likes:         svc.Likes,
		Notifications: svc.Notifications,
		Gallery:       svc.Gallery,
		Unsubscriber:  svc.Dispatcher,
	}, logger)
	router := httpapi.NewRouter(h, httpapi.RouterOptions{
		SecretKey:  []byte(c.SecretKey),
		CORSOrigin: c.CORSOrigin,
	}, logger)

	return &App{
		config: c,
		logger: logger,
		db:     db,
		http:   httpapi.NewHTTPServer(c.HTTPAddr, router, c.ShutdownTimeout, logger),
		grpc:   gs.NewGRPCServer(c.HealthAddr, db, 0, logger),
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// run starts one server; a failing server stops the others.
func (app *App) run(ctx context.Context, cancelFunc context.CancelFunc, name string, f func(context.Context) error) {
	if err := f(ctx); err != nil {
		app.logger.Error(ctx, name+" server failed", "error", err)
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.run(ctx, cancelFunc, "HTTP", app.http.Run)
	}()
	go func() {
		defer wg.Done()
		app.run(ctx, cancelFunc, "gRPC", app.grpc.Run)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "closing database", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
