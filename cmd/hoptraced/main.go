// main.go — hoptraced entrypoint.
// Wires config, logging, storage, the chain tracker, the badge board, and
// the HTTP server; shuts down cleanly on SIGINT/SIGTERM.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hoptrace/hoptrace/internal/badge"
	"github.com/hoptrace/hoptrace/internal/chain"
	"github.com/hoptrace/hoptrace/internal/config"
	"github.com/hoptrace/hoptrace/internal/server"
	"github.com/hoptrace/hoptrace/internal/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "hoptraced: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "hoptrace.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := buildLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck // stderr sync

	store, err := storage.New(cfg.Storage.Path, cfg.Storage.MaxRecords)
	if err != nil {
		return fmt.Errorf("open redirect log: %w", err)
	}
	defer store.Close() //nolint:errcheck // deferred close

	board := badge.NewBoard()
	tracker := chain.NewTracker(buildPolicy(cfg.Policy), store, board, nil, logger)
	defer tracker.Close()

	srv := server.New(tracker, store, board, logger)
	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           srv.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.Int("port", cfg.Server.Port))
		errCh <- httpSrv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		logger.Info("shutting down", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(ctx); err != nil {
			logger.Warn("shutdown incomplete", zap.Error(err))
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func buildLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	if cfg.Development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func buildPolicy(cfg config.PolicyConfig) chain.Policy {
	grace, noisy, await, awaitExt, idle := cfg.Durations()
	p := chain.DefaultPolicy()
	if grace > 0 {
		p.FinalizeGrace = grace
	}
	if noisy > 0 {
		p.NoisyFinalizeDelay = noisy
	}
	if await > 0 {
		p.AwaitWindow = await
	}
	if awaitExt > 0 {
		p.AwaitWindowExtended = awaitExt
	}
	if idle > 0 {
		p.IdleTimeout = idle
	}
	if len(cfg.AwaitedTypes) > 0 {
		p.AwaitedTypes = cfg.AwaitedTypes
	}
	return p
}
