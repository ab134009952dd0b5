// Command server starts the AI translator HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fairyhunter13/ai-translator/internal/adapter/httpserver"
	"github.com/fairyhunter13/ai-translator/internal/adapter/observability"
	"github.com/fairyhunter13/ai-translator/internal/adapter/queue/redpanda"
	"github.com/fairyhunter13/ai-translator/internal/app"
	"github.com/fairyhunter13/ai-translator/internal/config"
	"github.com/fairyhunter13/ai-translator/internal/domain"
	"github.com/fairyhunter13/ai-translator/internal/service/events"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)
	observability.InitMetrics()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	store, closeStore, err := app.OpenStore(ctx, cfg)
	if err != nil {
		slog.Error("store open failed", slog.String("driver", cfg.StoreDriver), slog.Any("error", err))
		os.Exit(1)
	}
	defer closeStore()

	bus := events.NewBus()
	defer bus.Close()

	var broker domain.Pinger
	if len(cfg.KafkaBrokers) > 0 {
		fwd, err := redpanda.NewForwarder(ctx, cfg.KafkaBrokers, cfg.EventsTopic)
		if err != nil {
			slog.Error("event forwarder setup failed", slog.Any("error", err))
			os.Exit(1)
		}
		defer fwd.Close()
		ch, unsubscribe := bus.Subscribe(256)
		defer unsubscribe()
		go fwd.Run(ctx, ch)
		broker = fwd
	}

	svcs, err := app.BuildServices(ctx, cfg, store, bus)
	if err != nil {
		slog.Error("service wiring failed", slog.Any("error", err))
		os.Exit(1)
	}
	slog.Info("providers loaded", slog.Any("active", svcs.Registry.ActiveProviders()))

	srv := httpserver.NewServer(cfg, svcs.Translator, svcs.Catalog, bus, app.BuildReadinessChecks(store, broker)...)
	handler := app.BuildRouter(cfg, srv)

	srvHTTP := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server starting", slog.Int("port", cfg.Port), slog.String("store", cfg.StoreDriver))
		errCh <- srvHTTP.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", slog.Any("error", err))
		}
	}

	// Closing the bus ends open event streams so Shutdown can drain.
	bus.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	_ = srvHTTP.Shutdown(shutdownCtx)
	stop()
}
