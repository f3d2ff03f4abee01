package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	httpadapter "github.com/couchcryptid/snow-removal-info-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/snow-removal-info-service/internal/adapter/kafka"
	"github.com/couchcryptid/snow-removal-info-service/internal/adapter/store"
	"github.com/couchcryptid/snow-removal-info-service/internal/clientaddr"
	"github.com/couchcryptid/snow-removal-info-service/internal/config"
	"github.com/couchcryptid/snow-removal-info-service/internal/domain"
	"github.com/couchcryptid/snow-removal-info-service/internal/observability"
	"github.com/couchcryptid/snow-removal-info-service/internal/relay"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	reports, err := store.Open(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open store", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}

	resolver, err := newResolver(cfg, logger, metrics)
	if err != nil {
		logger.Error("failed to configure client address resolution", "error", err)
		os.Exit(1)
	}

	ready := httpadapter.Checks{reports}
	opts := httpadapter.Options{
		Resolver:     resolver,
		Reports:      reports,
		Metrics:      metrics,
		RootRedirect: cfg.RootRedirect,
	}

	// Relay is feature-flagged via KAFKA_ENABLED / KAFKA_BROKERS.
	var (
		writer *kafkaadapter.Writer
		rl     *relay.Relay
	)
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		rl = relay.New(reports, writer, logger, metrics, cfg.BatchSize, cfg.BatchFlushInterval)
		opts.OnReportCreated = func(domain.SnowReport) { rl.Notify() }
		ready = append(ready, rl)
		logger.Info("kafka relay enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	} else {
		logger.Info("kafka relay disabled")
	}
	opts.Ready = ready

	srv := httpadapter.NewServer(cfg.HTTPAddr, opts, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	relayDone := make(chan struct{})
	if rl != nil {
		go func() {
			defer close(relayDone)
			if err := rl.Run(ctx); err != nil {
				logger.Error("relay error", "error", err)
			}
		}()
	} else {
		close(relayDone)
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	select {
	case <-relayDone:
	case <-shutdownCtx.Done():
		logger.Warn("relay did not stop before shutdown timeout")
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
	if err := reports.Close(); err != nil {
		logger.Error("store close error", "error", err)
	}

	logger.Info("shutdown complete")
}

// newResolver builds the client address resolver. TRUSTED_PROXY_CIDRS turns on
// proxy-aware resolution ahead of the raw header steps.
func newResolver(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (*clientaddr.Resolver, error) {
	opts := []clientaddr.Option{
		clientaddr.WithRecorder(metrics),
		clientaddr.WithHeaderSources(cfg.TrustHeaders),
	}

	if len(cfg.TrustedProxyCIDRs) > 0 {
		prefixes, err := clientaddr.ParsePrefixes(cfg.TrustedProxyCIDRs)
		if err != nil {
			return nil, err
		}
		native, err := clientaddr.NewTrustedProxyResolver(prefixes, logger, metrics)
		if err != nil {
			return nil, err
		}
		opts = append(opts, clientaddr.WithNative(native))
		logger.Info("trusted proxy resolution enabled", "proxies", cfg.TrustedProxyCIDRs)
	}
	if !cfg.TrustHeaders {
		logger.Info("forwarding headers ignored outside trusted proxies")
	}

	return clientaddr.New(opts...), nil
}
