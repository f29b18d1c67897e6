package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/efreitasn/papertrade/internal/config"
	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/engine"
	"github.com/efreitasn/papertrade/internal/feed"
	"github.com/efreitasn/papertrade/internal/handler"
	"github.com/efreitasn/papertrade/internal/service"
	"github.com/efreitasn/papertrade/internal/store"
)

// run wires the stores, engine and services, serves the API and blocks
// until ctx is cancelled.
func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	var logLevel slog.Level
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Stores.
	accountStore := store.NewAccountStore()
	holdingStore := store.NewHoldingStore()
	orderStore := store.NewOrderStore()
	webhookStore := store.NewWebhookStore()
	stockStore := store.NewStockStore()
	now := time.Now().UTC()
	for _, seed := range cfg.Seeds() {
		stockStore.Put(&domain.Stock{
			Symbol:        seed.Symbol,
			Name:          seed.Name,
			Price:         seed.Price,
			PreviousClose: seed.PreviousClose,
			UpdatedAt:     now,
		})
	}

	// Engine.
	exec := engine.NewExecutor(accountStore, holdingStore, orderStore)
	book := engine.NewBook(exec)

	// Services (webhook first, it receives order events).
	webhookSvc := service.NewWebhookService(webhookStore, accountStore, cfg.WebhookTimeout, logger)
	orderSvc := service.NewOrderService(book, stockStore, accountStore, webhookSvc, logger)
	svc := handler.Services{
		Accounts:  service.NewAccountService(accountStore, holdingStore, book),
		Trading:   service.NewTradingService(exec, stockStore, accountStore, holdingStore, orderStore, logger),
		Orders:    orderSvc,
		Portfolio: service.NewPortfolioService(accountStore, holdingStore, stockStore, book),
		Webhooks:  webhookSvc,
	}

	poller, err := feed.NewPoller(cfg.EvaluationSchedule, cfg.EvaluationTimeout, orderSvc, logger)
	if err != nil {
		return err
	}
	poller.Start()

	feedCtx, stopFeed := context.WithCancel(ctx)
	defer stopFeed()
	feedDone := make(chan struct{})
	if cfg.PriceFeed.URL != "" {
		stream := feed.NewStream(feed.StreamConfig{
			URL:        cfg.PriceFeed.URL,
			Symbols:    stockStore.Symbols(),
			MaxRetries: cfg.PriceFeed.MaxRetries,
			Heartbeat:  cfg.PriceFeed.Heartbeat,
		}, orderSvc, logger)
		go func() {
			defer close(feedDone)
			if err := stream.Run(feedCtx); err != nil {
				logger.Error("price feed stopped", slog.String("error", err.Error()))
			}
		}()
	} else {
		close(feedDone)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler.NewRouter(svc, logger),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serveErr:
		runErr = fmt.Errorf("server error: %w", err)
	}

	// Stop accepting requests before stopping the background writers.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
	}
	stopFeed()
	<-feedDone
	poller.Stop()
	webhookSvc.Wait()

	logger.Info("server stopped")
	return runErr
}
