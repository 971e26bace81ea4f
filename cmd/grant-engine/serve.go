package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/grant-engine/internal/aggregate"
	"github.com/pdiddy/grant-engine/internal/engine"
	"github.com/pdiddy/grant-engine/internal/history"
	"github.com/pdiddy/grant-engine/internal/logger"
	"github.com/pdiddy/grant-engine/internal/metrics"
	"github.com/pdiddy/grant-engine/internal/server"
	"github.com/pdiddy/grant-engine/internal/source"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	Long: `Serve exposes the search pipeline over HTTP: POST /v1/search runs an
aggregation, GET /v1/sources lists the enabled sources, /healthz reports
liveness, and /metrics exports Prometheus metrics.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (overrides config)")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := engineConfig()
	srvCfg := serverConfig()
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		srvCfg.Addr = addr
	}

	log, err := logger.New(srvCfg.Env)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	metrics.Register()

	client := &http.Client{Timeout: cfg.Search.Timeout}
	sources := source.Registry(cfg.Search, client)
	agg := aggregate.New(cfg.Search, sources, nil, log)

	c := buildCache(cfg.Cache, log)
	if closer, ok := c.(io.Closer); ok {
		defer closer.Close()
	}

	var rec engine.Recorder
	if store, err := history.NewStore(cfg.History); err != nil {
		log.Warn("history unavailable, runs will not be recorded", zap.Error(err))
	} else {
		defer store.Close()
		rec = store
	}

	eng := engine.New(cfg, agg, c, rec, log)

	srv := &http.Server{
		Addr:         srvCfg.Addr,
		Handler:      server.New(eng, log).Router(),
		ReadTimeout:  srvCfg.ReadTimeout,
		WriteTimeout: srvCfg.WriteTimeout,
		IdleTimeout:  srvCfg.IdleTimeout,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info("Starting HTTP server",
			zap.String("version", version),
			zap.String("addr", srvCfg.Addr),
			zap.Strings("sources", agg.Sources()),
			zap.String("cache_backend", string(cfg.Cache.Backend)))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	log.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), srvCfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Error during shutdown", zap.Error(err))
	}

	log.Info("Server stopped gracefully")
	return nil
}
