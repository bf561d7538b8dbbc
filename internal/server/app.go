// Package server wires the report vault: Postgres repositories, the hasher
// registry and pepper, delivery, the matching engine, the gRPC API, the
// Prometheus endpoint and the periodic matching sweep.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/reportvault/internal/cryptox"
	"github.com/dmitrijs2005/reportvault/internal/hashers"
	"github.com/dmitrijs2005/reportvault/internal/logging"
	"github.com/dmitrijs2005/reportvault/internal/metrics"
	"github.com/dmitrijs2005/reportvault/internal/server/config"
	"github.com/dmitrijs2005/reportvault/internal/server/delivery"
	"github.com/dmitrijs2005/reportvault/internal/server/matching"
	"github.com/dmitrijs2005/reportvault/internal/server/records"
	"github.com/dmitrijs2005/reportvault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/reportvault/internal/server/services"

	gs "github.com/dmitrijs2005/reportvault/internal/server/grpc"
)

type App struct {
	config        *config.Config
	logger        logging.Logger
	db            *sql.DB
	repomanager   repomanager.RepositoryManager
	metrics       *metrics.Registry
	engine        *matching.Engine
	reportService *services.ReportService
}

// NewApp builds every component from c. It fails fast on configuration
// errors such as an unknown hasher or a malformed pepper key.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	level, err := logging.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	logger := logging.NewJSONLogger(os.Stdout, level)

	registry, err := hashers.NewRegistry(c.HasherConfig())
	if err != nil {
		return nil, fmt.Errorf("hashers init error: %w", err)
	}

	pepper, err := cryptox.NewPepperFromHex(c.PepperKey)
	if err != nil {
		return nil, fmt.Errorf("pepper init error: %w", err)
	}

	db, err := repomanager.OpenPostgres(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	archive, err := newArchive(ctx, c)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("archive init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	m := metrics.NewRegistry()
	sealer := records.NewSealer(registry, pepper)
	deliverer := delivery.NewDeliverer(rm, newNotifier(c, logger), delivery.JSONRenderer{}, archive,
		c.AuthorityAddress, c.ReportIDPrefix, logger, m)
	engine := matching.NewEngine(db, rm, sealer, deliverer, c.SweepWorkers, logger, m)
	rs := services.NewReportService(db, rm, sealer, engine, deliverer, c, logger, m)

	return &App{
		config:        c,
		logger:        logger,
		db:            db,
		repomanager:   rm,
		metrics:       m,
		engine:        engine,
		reportService: rs,
	}, nil
}

func newArchive(ctx context.Context, c *config.Config) (delivery.Archive, error) {
	if c.ArchiveDir != "" {
		a, err := delivery.NewDirArchive(c.ArchiveDir)
		if err != nil {
			return nil, err
		}
		return a, nil
	}
	a, err := delivery.NewS3Archive(ctx, c)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func newNotifier(c *config.Config, logger logging.Logger) delivery.Notifier {
	if c.RelayURL != "" {
		return delivery.NewRelayNotifier(c.RelayURL, 10*time.Second)
	}
	return delivery.NewLogNotifier(logger)
}

// Close releases the database pool.
func (app *App) Close() error {
	return app.db.Close()
}

// Migrate applies pending schema migrations.
func (app *App) Migrate(ctx context.Context) error {
	return app.repomanager.RunMigrations(ctx, app.db)
}

// Sweep runs one deferred matching pass over all pending match reports.
func (app *App) Sweep(ctx context.Context) (*matching.Result, error) {
	return app.engine.RunMatching(ctx, nil)
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {

	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.reportService, app.config.SecretKey)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startMetricsServer(ctx context.Context) {
	if app.config.MetricsAddr == "" {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", app.metrics.Handler())
	srv := &http.Server{Addr: app.config.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	app.logger.Info(ctx, "Starting metrics server", "address", app.config.MetricsAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, "metrics server failed", "error", err.Error())
	}
}

// runSweeps runs a deferred matching pass every SweepInterval until ctx is
// done. A failed pass is logged; its groups retry on the next tick.
func (app *App) runSweeps(ctx context.Context) {
	if app.config.SweepInterval <= 0 {
		return
	}

	ticker := time.NewTicker(app.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := app.Sweep(ctx); err != nil {
				app.logger.Error(ctx, "sweep failed", "error", err.Error())
			}
		}
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()
	defer app.Close()

	app.logger.Info(ctx, "Starting app...")

	if err := app.Migrate(ctx); err != nil {
		app.logger.Error(ctx, "migrations failed", "error", err.Error())
		return
	}

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(3)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startMetricsServer(ctx)
	}()
	go func() {
		defer wg.Done()
		app.runSweeps(ctx)
	}()

	wg.Wait()

}
