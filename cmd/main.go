// Package main is the entry point for the exposure scanner service.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/exposure-scanner/autoscan/internal/api"
	"github.com/exposure-scanner/autoscan/internal/callback"
	"github.com/exposure-scanner/autoscan/internal/config"
	"github.com/exposure-scanner/autoscan/internal/history"
	"github.com/exposure-scanner/autoscan/internal/publisher"
	"github.com/exposure-scanner/autoscan/internal/random"
	"github.com/exposure-scanner/autoscan/internal/scheduler"
	"github.com/exposure-scanner/autoscan/internal/sites"
	"github.com/exposure-scanner/autoscan/internal/threats"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	sugar := logger.Sugar()
	sugar.Info("Starting exposure scanner service")

	if err := cfg.Validate(); err != nil {
		sugar.Fatalf("Invalid configuration: %v", err)
	}

	catalog, err := loadCatalog(cfg.Scheduler.Sites)
	if err != nil {
		sugar.Fatalf("Failed to load site catalog: %v", err)
	}

	sugar.Infow("Configuration loaded",
		"port", cfg.Server.Port,
		"sites", catalog.Len(),
		"interval_hours", cfg.Scheduler.IntervalHours,
		"events_transport", cfg.Events.Transport,
		"history", cfg.History.Enabled,
	)

	// Event forwarding
	pub, err := publisher.NewFromConfig(cfg.Events, sugar)
	if err != nil {
		sugar.Fatalf("Failed to initialize publisher: %v", err)
	}
	defer func() { _ = pub.Close() }()
	forwarder := publisher.NewForwarder(pub, sugar)

	sched := scheduler.New(cfg.Scheduler.ToScheduler(), catalog, sugar)
	detachForwarder := forwarder.Attach(sched)
	defer detachForwarder()

	if cfg.Callback.Enabled() {
		detach := callback.NewReporter(cfg.Callback, sugar).Attach(sched)
		defer detach()
	}

	var genOpts []threats.Option
	if cfg.Threats.Seed != 0 {
		genOpts = append(genOpts, threats.WithRand(random.New(cfg.Threats.Seed)))
	}
	gen := threats.NewGenerator(catalog, sugar, genOpts...)

	apiOpts := []api.Option{api.WithReportPublisher(forwarder)}
	if cfg.History.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		store, err := history.NewStore(ctx, cfg.History, sugar)
		cancel()
		if err != nil {
			sugar.Fatalf("Failed to initialize history: %v", err)
		}
		defer func() { _ = store.Close() }()

		history.NewRecorder(store, sugar).Attach(sched)
		apiOpts = append(apiOpts, api.WithHistory(store))
	}

	server := api.New(cfg.Server, sched, gen, sugar, apiOpts...)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      server.Router(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sugar.Infof("HTTP server listening on port %d", cfg.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalf("HTTP server error: %v", err)
		}
	}()

	if cfg.Scheduler.Enabled {
		sched.Start()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	sugar.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sched.Stop()
	server.Shutdown()

	if err := httpServer.Shutdown(ctx); err != nil {
		sugar.Errorf("Server forced to shutdown: %v", err)
	}

	sugar.Info("Server stopped")
}

// loadCatalog uses the configured site list, or the embedded catalog when
// none is configured.
func loadCatalog(names []string) (*sites.Catalog, error) {
	if len(names) > 0 {
		return sites.NewCatalog(names), nil
	}
	return sites.Default()
}

// newLogger builds a production JSON logger, or a development console logger
// when logging.format is "console".
func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid logging.level %q: %w", cfg.Level, err)
	}

	zcfg := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)

	return zcfg.Build()
}
