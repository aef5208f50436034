// Package main runs the live sniper: signals in, risk-gated entries
// out, with one monitor per open position until exit or shutdown.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"solana-sniper/internal/config"
	"solana-sniper/internal/coordinator"
	"solana-sniper/internal/domain"
	"solana-sniper/internal/executor"
	"solana-sniper/internal/metadata"
	"solana-sniper/internal/notify"
	"solana-sniper/internal/observability"
	"solana-sniper/internal/pricefeed"
	"solana-sniper/internal/riskgate"
	"solana-sniper/internal/scorer"
	"solana-sniper/internal/signal"
	"solana-sniper/internal/solana"
	"solana-sniper/internal/storage"
	chstore "solana-sniper/internal/storage/clickhouse"
	"solana-sniper/internal/storage/memory"
	"solana-sniper/internal/storage/migrations"
	pgstore "solana-sniper/internal/storage/postgres"
	"solana-sniper/internal/venue"
	"solana-sniper/internal/wallet"
)

func main() {
	configPath := flag.String("config", "", "Path to TOML config file (optional, env vars apply on top)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// First signal cancels the context and the coordinator drains within
	// its grace period; a second signal exits immediately.
	sigCh := make(chan os.Signal, 1)
	ossignal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigCh
		logger.WithField("signal", s.String()).Info("shutting down")
		cancel()
		s = <-sigCh
		logger.WithField("signal", s.String()).Warn("forcing immediate exit")
		os.Exit(1)
	}()

	if err := run(ctx, cfg, logger, *useMemory); err != nil && !errors.Is(err, context.Canceled) {
		logger.WithError(err).Error("sniper exited with error")
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger *logrus.Logger, useMemory bool) error {
	w, err := wallet.Load(cfg.Wallet.SecretKey)
	if err != nil {
		return fmt.Errorf("load wallet: %w", err)
	}
	logger.WithField("pubkey", w.PublicKey()).Info("wallet loaded")

	tokens, ticks, cleanup, err := createStores(ctx, cfg, logger, useMemory)
	if err != nil {
		return err
	}
	defer cleanup()

	var alerter *notify.Notifier
	if cfg.Notify.TelegramToken != "" {
		alerter = notify.NewNotifier([]notify.Sender{
			notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID),
		}, logger)
	}

	gate := riskgate.New(riskgate.Options{
		Client:    scorer.NewClient(cfg.Scorer.BaseURL, scorer.WithTimeout(cfg.Scorer.Timeout.Duration)),
		Alerter:   gateAlerter(alerter),
		Threshold: cfg.Scorer.Threshold,
		Timeout:   cfg.Scorer.Timeout.Duration,
		Logger:    logger,
	})

	exec := executor.New(executor.Options{
		Venue:      venue.NewClient(cfg.Venue.BaseURL, venue.WithTimeout(cfg.Venue.Timeout.Duration)),
		Signer:     w,
		RPC:        solana.NewHTTPClient(cfg.Solana.RPCURL),
		Logger:     logger,
		MaxRetries: cfg.Solana.MaxRetries,
		RetryDelay: cfg.Solana.RetryDelay.Duration,
	})

	feed, err := pricefeed.NewWSFeed(ctx, cfg.Solana.PriceFeedURL, nil, logger)
	if err != nil {
		return fmt.Errorf("connect price feed: %w", err)
	}
	defer feed.Close()

	coord, err := coordinator.New(coordinator.Options{
		Gate:             gate,
		Executor:         exec,
		Feed:             feed,
		Metadata:         metadata.NewClient(metadata.DefaultBaseURL),
		Tokens:           tokens,
		Ticks:            ticks,
		Alerter:          coordAlerter(alerter),
		Logger:           logger,
		BaseMint:         cfg.Trade.BaseMint,
		BuyAmount:        cfg.Trade.BuyAmountLamports,
		TargetMultiplier: cfg.Trade.TargetMultiplier,
		SellFraction:     cfg.Trade.SellFraction,
		MaxSlippageBps:   cfg.Trade.MaxSlippageBps,
		MaxConcurrent:    cfg.Trade.MaxConcurrent,
		GracePeriod:      cfg.Trade.GracePeriod.Duration,
	})
	if err != nil {
		return err
	}

	if cfg.Server.Enabled {
		startMetricsServer(ctx, cfg.Server.Port, logger)
	}

	signals, closeSource, err := openSignalSource(ctx, cfg.Signals.JSONLPath, logger)
	if err != nil {
		return err
	}
	defer closeSource()

	logger.WithFields(logrus.Fields{
		"threshold": cfg.Scorer.Threshold,
		"base_mint": cfg.Trade.BaseMint,
		"target":    cfg.Trade.TargetMultiplier,
	}).Info("sniper running")

	return coord.Run(ctx, signals)
}

// createStores wires the persistent stores, or in-memory equivalents
// when requested. The returned cleanup closes whatever was opened.
func createStores(ctx context.Context, cfg *config.Config, logger *logrus.Logger, useMemory bool) (storage.TokenRecordStore, storage.PriceTickStore, func(), error) {
	if useMemory {
		logger.Info("using in-memory storage")
		return memory.NewTokenRecordStore(), memory.NewPriceTickStore(), func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.Postgres.DSN)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if cfg.Postgres.RunMigrations {
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, nil, fmt.Errorf("postgres migrations: %w", err)
		}
	}
	tokens := pgstore.NewTokenRecordStore(pool)

	var ticks storage.PriceTickStore
	cleanup := func() { pool.Close() }
	if cfg.Clickhouse.Enabled {
		conn, err := chstore.NewConn(ctx, cfg.Clickhouse.DSN)
		if err != nil {
			pool.Close()
			return nil, nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
		}
		if cfg.Clickhouse.RunMigrations {
			if err := migrations.RunClickhouseMigrations(ctx, conn); err != nil {
				conn.Close()
				pool.Close()
				return nil, nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
			}
		}
		ticks = chstore.NewPriceTickStore(conn)
		cleanup = func() {
			conn.Close()
			pool.Close()
		}
	}

	return tokens, ticks, cleanup, nil
}

// openSignalSource streams signals from a JSONL file, or stdin when the
// configured path is "-".
func openSignalSource(ctx context.Context, path string, logger *logrus.Logger) (<-chan domain.Signal, func(), error) {
	var (
		r    io.Reader
		name string
		cls  func()
	)
	if path == "-" {
		r = os.Stdin
		name = "stdin"
		cls = func() {}
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, nil, fmt.Errorf("open signal file: %w", err)
		}
		r = f
		name = path
		cls = func() { _ = f.Close() }
	}

	src := signal.NewJSONLSource(name, r, logger)
	ch, err := src.Stream(ctx)
	if err != nil {
		cls()
		return nil, nil, err
	}
	return ch, cls, nil
}

// startMetricsServer serves Prometheus metrics and a liveness probe.
func startMetricsServer(ctx context.Context, port int, logger *logrus.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.WithField("addr", srv.Addr).Info("metrics server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("metrics server failed")
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}

// gateAlerter and coordAlerter avoid handing the components a non-nil
// interface wrapping a nil *notify.Notifier.

func gateAlerter(n *notify.Notifier) riskgate.Alerter {
	if n == nil {
		return nil
	}
	return n
}

func coordAlerter(n *notify.Notifier) coordinator.Alerter {
	if n == nil {
		return nil
	}
	return n
}

func newLogger(level string) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)
	return logger
}
