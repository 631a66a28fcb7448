package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/sittingbulll/tokenwatch/internal/config"
	"github.com/sittingbulll/tokenwatch/internal/metadata"
	"github.com/sittingbulll/tokenwatch/internal/notables"
	"github.com/sittingbulll/tokenwatch/internal/notify"
	"github.com/sittingbulll/tokenwatch/internal/pipeline"
	"github.com/sittingbulll/tokenwatch/internal/policy"
	"github.com/sittingbulll/tokenwatch/internal/store"
	"github.com/sittingbulll/tokenwatch/internal/store/leveldbstore"
	"github.com/sittingbulll/tokenwatch/internal/store/postgres"
	"github.com/sittingbulll/tokenwatch/internal/store/redisstore"
	"github.com/sittingbulll/tokenwatch/internal/tracing"
	"github.com/sittingbulll/tokenwatch/internal/webhook"
	"github.com/sittingbulll/tokenwatch/internal/worker"
)

const serviceName = "tokenwatch"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logLevel := slog.LevelInfo
	switch cfg.Log.Level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	logger.Info("starting tokenwatch",
		"listen_addr", cfg.Server.ListenAddr,
		"metrics_addr", cfg.Server.MetricsAddr,
		"gateways", len(cfg.Gateways.IPFSBases),
		"required_notables", cfg.Notables.RequiredCount,
		"workers", cfg.Pipeline.Workers,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := tracing.Init(ctx, serviceName, cfg.Tracing.Endpoint, cfg.Tracing.Insecure)
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("tracing shutdown error", "error", err)
		}
	}()

	wallets, err := config.LoadWallets(cfg.Policy.WalletsFile)
	if err != nil {
		logger.Error("failed to load wallet allow-list", "file", cfg.Policy.WalletsFile, "error", err)
		os.Exit(1)
	}
	logger.Info("wallet allow-list loaded", "count", len(wallets))

	approvals, contentCache, closeStores, err := buildStores(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer closeStores()

	cookies, err := notables.LoadCookies(cfg.Notables.CookiesFile)
	if err != nil {
		// The service still decides (and rejects) without a session, so a
		// missing cookie file degrades rather than aborts.
		logger.Warn("social graph cookies unavailable, lookups will fail until refreshed",
			"file", cfg.Notables.CookiesFile, "error", err)
		cookies = map[string]string{}
	}

	fetcher := metadata.NewFetcher(metadata.FetcherConfig{
		IPFSGateways: cfg.Gateways.IPFSBases,
		ArweaveBase:  cfg.Gateways.ArweaveBase,
		Timeout:      cfg.Gateways.Timeout,
		MaxRetries:   cfg.Gateways.MaxRetries,
		RetryDelay:   cfg.Gateways.RetryDelay,
	}, contentCache, logger)

	social := notables.NewClient(notables.Config{
		APIURL:  cfg.Notables.APIURL,
		Cookies: cookies,
		Timeout: cfg.Notables.Timeout,
		RPS:     cfg.Notables.RPS,
		Burst:   cfg.Notables.Burst,
	}, logger)

	notifier := notify.NewTelegram(notify.TelegramConfig{
		BotToken:  cfg.Telegram.BotToken,
		ChannelID: cfg.Telegram.ChannelID,
		APIBase:   cfg.Telegram.APIBase,
		Timeout:   cfg.Telegram.Timeout,
	}, logger)

	resolver := metadata.NewRPCClient(cfg.Helius.APIURL, cfg.Helius.APIKey, logger)
	engine := policy.NewEngine(wallets, cfg.Notables.RequiredCount, approvals, logger)
	pipe := pipeline.New(engine, fetcher, resolver, social, notifier, cfg.Notables.TopN, logger)

	pool := worker.NewPool(cfg.Pipeline.Workers, cfg.Pipeline.QueueSize, logger)
	pool.Start(ctx)
	defer pool.Stop()

	srv := webhook.NewServer(pipe, pool, approvals, logger)
	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return runServer(gCtx, "api", cfg.Server.ListenAddr, mux, logger)
	})

	g.Go(func() error {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.Handler())
		metricsMux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		return runServer(gCtx, "metrics", cfg.Server.MetricsAddr, metricsMux, logger)
	})

	g.Go(func() error {
		select {
		case sig := <-sigCh:
			logger.Info("received signal, shutting down", "signal", sig.String())
			cancel()
			return nil
		case <-gCtx.Done():
			return nil
		}
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		logger.Error("tokenwatch exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("tokenwatch shut down gracefully")
}

// buildStores selects the persistence backends. Postgres holds approvals
// when DB_URL is set, otherwise the embedded database does; the content
// cache goes to Redis when REDIS_URL is set, otherwise it shares the
// embedded database.
func buildStores(cfg *config.Config, logger *slog.Logger) (store.ApprovalRepository, store.ContentCache, func(), error) {
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	local, err := leveldbstore.Open(cfg.Store.DataDir)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open embedded store: %w", err)
	}
	closers = append(closers, func() {
		if err := local.Close(); err != nil {
			logger.Warn("embedded store close error", "error", err)
		}
	})

	var approvals store.ApprovalRepository = local
	if cfg.Store.DBURL != "" {
		db, err := postgres.New(postgres.Config{
			URL:             cfg.Store.DBURL,
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		})
		if err != nil {
			closeAll()
			return nil, nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := db.RunMigrations("internal/store/postgres/migrations"); err != nil {
			closeAll()
			return nil, nil, nil, fmt.Errorf("run migrations: %w", err)
		}
		repo := postgres.NewApprovalRepo(db)
		closers = append(closers, func() {
			if err := repo.Close(); err != nil {
				logger.Warn("postgres close error", "error", err)
			}
		})
		approvals = repo
		logger.Info("approval store: postgres")
	} else {
		logger.Info("approval store: embedded", "data_dir", cfg.Store.DataDir)
	}

	var contentCache store.ContentCache = local.ContentCache()
	if cfg.Store.RedisURL != "" {
		rc, err := redisstore.New(cfg.Store.RedisURL, 24*time.Hour)
		if err != nil {
			closeAll()
			return nil, nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		closers = append(closers, func() {
			if err := rc.Close(); err != nil {
				logger.Warn("redis close error", "error", err)
			}
		})
		contentCache = rc
		logger.Info("content cache: redis")
	}

	return approvals, contentCache, closeAll, nil
}

func runServer(ctx context.Context, name, addr string, handler http.Handler, logger *slog.Logger) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && err != http.ErrServerClosed {
			logger.Warn("server shutdown error", "server", name, "error", err)
		}
	}()

	logger.Info("server started", "server", name, "addr", addr)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("%s server: %w", name, err)
	}
	return nil
}
