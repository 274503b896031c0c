// Command api runs the HTTP API server over the orchestration run
// registry.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/swarmlink/orchestrate-go/internal/api"
	"github.com/swarmlink/orchestrate-go/internal/config"
	"github.com/swarmlink/orchestrate-go/internal/installdata"
	"github.com/swarmlink/orchestrate-go/internal/observability"
	"github.com/swarmlink/orchestrate-go/internal/orchestrator"
)

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		slog.Error("config error", "error", err)
		os.Exit(1)
	}

	logger := observability.InitLogger(cfg.LogLevel)

	if cfg.OTelEnabled {
		shutdown, err := observability.InitTracer(context.Background(), "orchestrate-api")
		if err != nil {
			logger.Error("otel init failed", "error", err)
		} else {
			defer shutdown(context.Background())
		}
	}

	registry := orchestrator.NewRegistry(cfg, installdata.New(cfg))
	if metrics, err := observability.NewMetrics(); err != nil {
		logger.Error("metrics init failed", "error", err)
	} else {
		registry.SetMetrics(metrics)
	}

	srv := api.New(registry, cfg.CORSOrigins)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.OIDCEnabled() {
		if err := srv.EnableOIDC(ctx, cfg.OIDCIssuer, cfg.OIDCAudience); err != nil {
			logger.Error("oidc init failed", "error", err)
			os.Exit(1)
		}
	}

	var handler http.Handler = srv
	if cfg.OTelEnabled {
		handler = otelhttp.NewHandler(handler, "orchestrate-api")
	}

	httpServer := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: handler,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting API server", "addr", httpServer.Addr, "oidc_enabled", cfg.OIDCEnabled())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
