package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"transcript-indexer-go/internal/app"
	"transcript-indexer-go/internal/config"
	"transcript-indexer-go/internal/logger"
	"transcript-indexer-go/internal/metrics"
)

func main() {
	cfg, err := config.Load()
	log := logger.New()
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}
	log.WithField("environment", cfg.Environment).Info("starting service")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, metrics.Default(), log)
	if err != nil {
		log.WithError(err).Fatal("failed to build service")
	}

	srv := &server{
		log:       log,
		decoder:   a.Decoder,
		trigger:   a.Trigger,
		runner:    a.Runner,
		assistant: a.Assistant,
		processor: a.Processor,
		contacts:  a.Contacts,
	}

	addr := fmt.Sprintf(":%s", cfg.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      srv.routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.WithField("addr", addr).Info("listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server terminated")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown incomplete")
	}

	log.Info("waiting for in-flight executions")
	if err := a.Close(); err != nil {
		log.WithError(err).Warn("close failed")
	}
	log.Info("stopped")
}
